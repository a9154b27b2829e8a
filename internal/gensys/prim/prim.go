// Package prim defines the primitive values carried by gensys members.
//
// A Value is a closed sum type: exactly one of I32, I64, F32, F64, Str, Fn or
// Empty. Empty carries a declared Type with no payload and is how "no value
// provided" is told apart from a zero value.
package prim

import (
	"errors"
	"fmt"
	"math"
	"strconv"
)

// Type tags a primitive.
type Type uint8

const (
	Unknown Type = iota
	I32T
	I64T
	F32T
	F64T
	StrT
	FuncT
)

var typeNames = [...]string{
	Unknown: "unknown",
	I32T:    "i32",
	I64T:    "i64",
	F32T:    "f32",
	F64T:    "f64",
	StrT:    "str",
	FuncT:   "func",
}

func (t Type) String() string {
	if int(t) < len(typeNames) {
		return typeNames[t]
	}
	return fmt.Sprintf("type(%d)", uint8(t))
}

// ParseType maps an authored type name ("f32", "str", ...) to a Type.
func ParseType(name string) (Type, bool) {
	for t, n := range typeNames {
		if Type(t) != Unknown && n == name {
			return Type(t), true
		}
	}
	return Unknown, false
}

// Width is the byte width of a fixed-size type, 0 for STR, FUNC and Unknown.
func (t Type) Width() int {
	switch t {
	case I32T, F32T:
		return 4
	case I64T, F64T:
		return 8
	}
	return 0
}

// IsPOD reports whether members of this type live in a POD chunk.
func (t Type) IsPOD() bool { return t.Width() > 0 }

// Alignment returns the packing stride for a member of the given byte width.
func Alignment(width int) int {
	switch {
	case width <= 1:
		return 1
	case width <= 2:
		return 2
	case width <= 4:
		return 4
	}
	return 8
}

// FuncRef is an opaque callable owned by the embedding runtime. Gensys only
// stores, copies and interns it, so the dynamic type must be comparable.
type FuncRef any

// Value is one primitive.
type Value interface {
	Type() Type
	IsEmpty() bool
}

type (
	I32 int32
	I64 int64
	F32 float32
	F64 float64
	Str string
	Fn  struct{ Ref FuncRef }
	// Empty is a typed value with no payload.
	Empty struct{ T Type }
)

func (I32) Type() Type     { return I32T }
func (I64) Type() Type     { return I64T }
func (F32) Type() Type     { return F32T }
func (F64) Type() Type     { return F64T }
func (Str) Type() Type     { return StrT }
func (Fn) Type() Type      { return FuncT }
func (e Empty) Type() Type { return e.T }

func (I32) IsEmpty() bool   { return false }
func (I64) IsEmpty() bool   { return false }
func (F32) IsEmpty() bool   { return false }
func (F64) IsEmpty() bool   { return false }
func (Str) IsEmpty() bool   { return false }
func (Fn) IsEmpty() bool    { return false }
func (Empty) IsEmpty() bool { return true }

func mismatch(v Value, want Type) string {
	if v == nil {
		return fmt.Sprintf("prim: read %s from nil value", want)
	}
	if v.IsEmpty() {
		return fmt.Sprintf("prim: read %s from empty %s", want, v.Type())
	}
	return fmt.Sprintf("prim: read %s from %s", want, v.Type())
}

// AsI32 returns the payload of an I32. Any other value panics.
func AsI32(v Value) int32 {
	x, ok := v.(I32)
	if !ok {
		panic(mismatch(v, I32T))
	}
	return int32(x)
}

// AsI64 returns the payload of an I64. Any other value panics.
func AsI64(v Value) int64 {
	x, ok := v.(I64)
	if !ok {
		panic(mismatch(v, I64T))
	}
	return int64(x)
}

// AsF32 returns the payload of an F32. Any other value panics.
func AsF32(v Value) float32 {
	x, ok := v.(F32)
	if !ok {
		panic(mismatch(v, F32T))
	}
	return float32(x)
}

// AsF64 returns the payload of an F64. Any other value panics.
func AsF64(v Value) float64 {
	x, ok := v.(F64)
	if !ok {
		panic(mismatch(v, F64T))
	}
	return float64(x)
}

// AsStr returns the payload of a Str. Any other value panics.
func AsStr(v Value) string {
	x, ok := v.(Str)
	if !ok {
		panic(mismatch(v, StrT))
	}
	return string(x)
}

// AsFunc returns the reference held by a Fn. Any other value panics.
func AsFunc(v Value) FuncRef {
	x, ok := v.(Fn)
	if !ok {
		panic(mismatch(v, FuncT))
	}
	return x.Ref
}

// ErrRange indicates an authored number that the target type cannot hold
// exactly.
var ErrRange = errors.New("prim: number not representable")

// FromNumber converts an authored number into a numeric Value of type t.
// Integer types take only integral numbers within range.
func FromNumber(t Type, n float64) (Value, error) {
	switch t {
	case I32T:
		if n != math.Trunc(n) || n < math.MinInt32 || n > math.MaxInt32 {
			return nil, fmt.Errorf("%v as i32: %w", n, ErrRange)
		}
		return I32(int32(n)), nil
	case I64T:
		// 2^63 is exactly representable as a float64 but not as an int64.
		if n != math.Trunc(n) || n < math.MinInt64 || n >= math.MaxInt64 {
			return nil, fmt.Errorf("%v as i64: %w", n, ErrRange)
		}
		return I64(int64(n)), nil
	case F32T:
		if !math.IsInf(n, 0) && !math.IsNaN(n) && math.Abs(n) > math.MaxFloat32 {
			return nil, fmt.Errorf("%v as f32: %w", n, ErrRange)
		}
		return F32(float32(n)), nil
	case F64T:
		return F64(n), nil
	}
	return nil, fmt.Errorf("prim: %s is not numeric", t)
}

// ParseNumber converts a numeric string into a Value of type t. Integer
// strings for i32 and i64 are parsed exactly.
func ParseNumber(t Type, s string) (Value, error) {
	switch t {
	case I32T, I64T:
		bits := 64
		if t == I32T {
			bits = 32
		}
		i, err := strconv.ParseInt(s, 10, bits)
		if err == nil {
			if t == I32T {
				return I32(int32(i)), nil
			}
			return I64(i), nil
		}
		if errors.Is(err, strconv.ErrRange) {
			return nil, fmt.Errorf("%q as %s: %w", s, t, ErrRange)
		}
	}
	n, err := strconv.ParseFloat(s, 64)
	if err != nil && !errors.Is(err, strconv.ErrRange) {
		return nil, fmt.Errorf("prim: cannot convert %q to number", s)
	}
	if err != nil {
		return nil, fmt.Errorf("%q as %s: %w", s, t, ErrRange)
	}
	return FromNumber(t, n)
}

// Format renders v for logs and error messages.
func Format(v Value) string {
	if v == nil {
		return "<nil>"
	}
	switch x := v.(type) {
	case I32:
		return strconv.FormatInt(int64(x), 10)
	case I64:
		return strconv.FormatInt(int64(x), 10)
	case F32:
		return strconv.FormatFloat(float64(x), 'g', -1, 32)
	case F64:
		return strconv.FormatFloat(float64(x), 'g', -1, 64)
	case Str:
		return strconv.Quote(string(x))
	case Fn:
		return fmt.Sprintf("<func %v>", x.Ref)
	case Empty:
		return fmt.Sprintf("<empty %s>", x.T)
	}
	return fmt.Sprintf("%v", v)
}
