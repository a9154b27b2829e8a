package pod

import (
	"math"
	"testing"
)

func TestNewRoundsUpAndZeroes(t *testing.T) {
	for _, tc := range []struct{ in, want int }{
		{0, 0}, {1, 8}, {8, 8}, {9, 16}, {20, 24},
	} {
		c := New(tc.in)
		if c.Size() != tc.want {
			t.Errorf("New(%d).Size() = %d, want %d", tc.in, c.Size(), tc.want)
		}
		for i, b := range c.Bytes() {
			if b != 0 {
				t.Fatalf("New(%d) byte %d = %d, want 0", tc.in, i, b)
			}
		}
	}
}

func TestZeroSizeChunksAreDistinct(t *testing.T) {
	a := New(0)
	b := New(0)
	if a == nil || b == nil {
		t.Fatalf("zero-size chunk must not be nil")
	}
	if a == b {
		t.Fatalf("two zero-size chunks compare equal")
	}
}

func TestGetSetRoundTrip(t *testing.T) {
	c := New(32)
	Set[int32](c, 0, -7)
	Set[float32](c, 4, 1.5)
	Set[int64](c, 8, math.MaxInt64)
	Set[float64](c, 16, math.Pi)
	Set[uint8](c, 24, 0xAB)
	Set[int16](c, 26, -300)

	if got := Get[int32](c, 0); got != -7 {
		t.Errorf("int32 = %d", got)
	}
	if got := Get[float32](c, 4); got != 1.5 {
		t.Errorf("float32 = %v", got)
	}
	if got := Get[int64](c, 8); got != math.MaxInt64 {
		t.Errorf("int64 = %d", got)
	}
	if got := Get[float64](c, 16); math.Float64bits(got) != math.Float64bits(math.Pi) {
		t.Errorf("float64 = %v", got)
	}
	if got := Get[uint8](c, 24); got != 0xAB {
		t.Errorf("uint8 = %x", got)
	}
	if got := Get[int16](c, 26); got != -300 {
		t.Errorf("int16 = %d", got)
	}
}

func TestMisalignedAccessPanics(t *testing.T) {
	c := New(16)
	defer func() {
		if recover() == nil {
			t.Fatalf("expected panic on misaligned int64 read")
		}
	}()
	_ = Get[int64](c, 4)
}

func TestOutOfRangeAccessPanics(t *testing.T) {
	c := New(8)
	defer func() {
		if recover() == nil {
			t.Fatalf("expected panic on out-of-range write")
		}
	}()
	Set[int32](c, 8, 1)
}

func TestCopy(t *testing.T) {
	src := New(16)
	Set[int64](src, 8, 42)
	dst := New(24)
	Copy(src, 8, dst, 16, 8)
	if got := Get[int64](dst, 16); got != 42 {
		t.Fatalf("copied value = %d, want 42", got)
	}
	if got := Get[int64](dst, 0); got != 0 {
		t.Fatalf("untouched value = %d, want 0", got)
	}

	// Empty copies from nil are fine.
	Copy(nil, 0, dst, 0, 0)
}

func TestCopyUnalignedPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatalf("expected panic on unaligned copy")
		}
	}()
	Copy(New(16), 4, New(16), 0, 8)
}

func TestCloneIsIndependent(t *testing.T) {
	a := New(8)
	Set[int32](a, 0, 1)
	b := a.Clone()
	Set[int32](b, 0, 2)
	if Get[int32](a, 0) != 1 || Get[int32](b, 0) != 2 {
		t.Fatalf("clone shares storage with original")
	}
}

func TestReleaseTwicePanics(t *testing.T) {
	c := New(8)
	c.Release()
	defer func() {
		if recover() == nil {
			t.Fatalf("expected panic on double release")
		}
	}()
	c.Release()
}
