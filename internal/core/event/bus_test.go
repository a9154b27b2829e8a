package event

import "testing"

type ping struct{ n int }
type pong struct{ s string }

func TestBusDeliversNextTickInOrder(t *testing.T) {
	b := NewBus()
	var got []any
	Subscribe(b, func(e ping) { got = append(got, e) })
	Subscribe(b, func(e pong) { got = append(got, e) })

	Emit(b, ping{1})
	Emit(b, pong{"a"})
	Emit(b, ping{2})
	b.DispatchAll()
	if len(got) != 0 {
		t.Fatalf("events delivered before swap: %v", got)
	}
	if b.Pending() != 3 {
		t.Fatalf("Pending = %d", b.Pending())
	}

	b.SwapBuffers()
	Emit(b, ping{3})
	b.DispatchAll()
	want := []any{ping{1}, pong{"a"}, ping{2}}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}

	got = nil
	b.SwapBuffers()
	b.DispatchAll()
	if len(got) != 1 || got[0] != (ping{3}) {
		t.Fatalf("second tick got %v", got)
	}
}

func TestBusIgnoresUnsubscribedTypes(t *testing.T) {
	b := NewBus()
	Emit(b, "nobody listens")
	b.SwapBuffers()
	b.DispatchAll()
}
