package prim

import (
	"errors"
	"math"
	"testing"
)

func TestParseType(t *testing.T) {
	for _, name := range []string{"i32", "i64", "f32", "f64", "str", "func"} {
		typ, ok := ParseType(name)
		if !ok {
			t.Fatalf("ParseType(%q) failed", name)
		}
		if typ.String() != name {
			t.Errorf("round trip %q -> %q", name, typ.String())
		}
	}
	if _, ok := ParseType("unknown"); ok {
		t.Errorf("unknown must not parse")
	}
	if _, ok := ParseType("bool"); ok {
		t.Errorf("bool must not parse")
	}
}

func TestWidths(t *testing.T) {
	cases := map[Type]int{I32T: 4, F32T: 4, I64T: 8, F64T: 8, StrT: 0, FuncT: 0, Unknown: 0}
	for typ, want := range cases {
		if got := typ.Width(); got != want {
			t.Errorf("%s width = %d, want %d", typ, got, want)
		}
	}
	if Alignment(4) != 4 || Alignment(8) != 8 || Alignment(16) != 8 || Alignment(3) != 4 {
		t.Errorf("unexpected alignment table")
	}
}

func TestAccessorsPanicOnWrongTag(t *testing.T) {
	if AsF32(F32(2.5)) != 2.5 {
		t.Fatalf("AsF32 lost value")
	}
	for name, read := range map[string]func(){
		"wrong tag": func() { AsI32(F32(1)) },
		"empty":     func() { AsStr(Empty{T: StrT}) },
		"nil":       func() { AsI64(nil) },
	} {
		func() {
			defer func() {
				if recover() == nil {
					t.Errorf("%s: expected panic", name)
				}
			}()
			read()
		}()
	}
}

func TestEmptyKeepsType(t *testing.T) {
	e := Empty{T: F64T}
	if !e.IsEmpty() || e.Type() != F64T {
		t.Fatalf("empty = %+v", e)
	}
	if F64(0).IsEmpty() {
		t.Fatalf("zero value reported empty")
	}
}

func TestNumberConversion(t *testing.T) {
	v, err := FromNumber(I32T, 3)
	if err != nil || AsI32(v) != 3 {
		t.Fatalf("FromNumber(i32, 3) = %v, %v", v, err)
	}
	v, err = ParseNumber(F64T, "0.25")
	if err != nil || AsF64(v) != 0.25 {
		t.Fatalf("ParseNumber(f64) = %v, %v", v, err)
	}
	v, err = ParseNumber(I64T, "9007199254740993")
	if err != nil || AsI64(v) != 9007199254740993 {
		t.Fatalf("ParseNumber(i64, 2^53+1) = %v, %v", v, err)
	}
	v, err = ParseNumber(I32T, "1e3")
	if err != nil || AsI32(v) != 1000 {
		t.Fatalf("ParseNumber(i32, 1e3) = %v, %v", v, err)
	}
	if _, err := ParseNumber(I64T, "abc"); err == nil {
		t.Fatalf("expected error for non-numeric string")
	}
	if _, err := FromNumber(StrT, 1); err == nil {
		t.Fatalf("expected error for str")
	}
}

func TestNumberOutOfRange(t *testing.T) {
	cases := []struct {
		t Type
		n float64
	}{
		{I32T, 3.9},
		{I32T, 3e9},
		{I32T, -2147483649},
		{I64T, 0.5},
		{I64T, 9223372036854775808},
		{I64T, math.NaN()},
		{F32T, 1e39},
	}
	for _, c := range cases {
		if v, err := FromNumber(c.t, c.n); !errors.Is(err, ErrRange) {
			t.Errorf("FromNumber(%s, %v) = %v, %v", c.t, c.n, v, err)
		}
	}
	for _, s := range []string{"1.5", "9223372036854775808", "1e400"} {
		if v, err := ParseNumber(I64T, s); !errors.Is(err, ErrRange) {
			t.Errorf("ParseNumber(i64, %s) = %v, %v", s, v, err)
		}
	}
	for _, s := range []string{"2147483648", "-2147483649", "1.5"} {
		if v, err := ParseNumber(I32T, s); !errors.Is(err, ErrRange) {
			t.Errorf("ParseNumber(i32, %s) = %v, %v", s, v, err)
		}
	}
	if v, err := FromNumber(F32T, math.Inf(1)); err != nil || !math.IsInf(float64(AsF32(v)), 1) {
		t.Errorf("FromNumber(f32, +Inf) = %v, %v", v, err)
	}
}
