package scripting

import (
	"errors"
	"fmt"
	"sort"

	lua "github.com/yuin/gopher-lua"

	"github.com/l1jgo/gensys/internal/gensys/interm"
	"github.com/l1jgo/gensys/internal/gensys/prim"
)

// ErrBadValue indicates a Lua value that cannot become a primitive.
var ErrBadValue = errors.New("scripting: bad value")

// typedValue reads {"type"} or {"type", value}. A bare function is a FUNC
// value.
func typedValue(lv lua.LValue) (prim.Value, error) {
	switch v := lv.(type) {
	case *lua.LFunction:
		return prim.Fn{Ref: v}, nil
	case *lua.LTable:
		name, ok := v.RawGetInt(1).(lua.LString)
		if !ok {
			return nil, fmt.Errorf("typed value needs a type name first: %w", ErrBadValue)
		}
		t, ok := prim.ParseType(string(name))
		if !ok {
			return nil, fmt.Errorf("type %q: %w", name, interm.ErrUnknownType)
		}
		raw := v.RawGetInt(2)
		if raw == lua.LNil {
			return prim.Empty{T: t}, nil
		}
		return valueOf(t, raw)
	}
	return nil, fmt.Errorf("expected a typed value, got %s: %w", lv.Type(), ErrBadValue)
}

// typeOf reads an interface member declaration: a type name or a typed
// value.
func typeOf(lv lua.LValue) (prim.Type, error) {
	if s, ok := lv.(lua.LString); ok {
		t, ok := prim.ParseType(string(s))
		if !ok {
			return prim.Unknown, fmt.Errorf("type %q: %w", s, interm.ErrUnknownType)
		}
		return t, nil
	}
	v, err := typedValue(lv)
	if err != nil {
		return prim.Unknown, err
	}
	return v.Type(), nil
}

// valueOf converts a bare Lua value to type t. Numeric types accept numbers
// and numeric strings. Lua numbers are doubles, so i64 values beyond 2^53
// must be written as strings. A table is read as a typed value and must
// agree.
func valueOf(t prim.Type, lv lua.LValue) (prim.Value, error) {
	if tbl, ok := lv.(*lua.LTable); ok {
		v, err := typedValue(tbl)
		if err != nil {
			return nil, err
		}
		if v.Type() != t {
			return nil, fmt.Errorf("expected %s, got %s: %w", t, v.Type(), interm.ErrTypeMismatch)
		}
		return v, nil
	}
	switch t {
	case prim.StrT:
		if s, ok := lv.(lua.LString); ok {
			return prim.Str(s), nil
		}
	case prim.FuncT:
		if fn, ok := lv.(*lua.LFunction); ok {
			return prim.Fn{Ref: fn}, nil
		}
	case prim.I32T, prim.I64T, prim.F32T, prim.F64T:
		var v prim.Value
		var err error
		switch n := lv.(type) {
		case lua.LNumber:
			v, err = prim.FromNumber(t, float64(n))
		case lua.LString:
			v, err = prim.ParseNumber(t, string(n))
		default:
			return nil, fmt.Errorf("cannot use %s as %s: %w", lv.Type(), t, interm.ErrTypeMismatch)
		}
		if err != nil {
			return nil, fmt.Errorf("%v: %w", err, interm.ErrTypeMismatch)
		}
		return v, nil
	}
	return nil, fmt.Errorf("cannot use %s as %s: %w", lv.Type(), t, interm.ErrTypeMismatch)
}

// toLua converts a primitive for scripts. Empty values and missing functions
// are nil.
func toLua(v prim.Value) lua.LValue {
	switch x := v.(type) {
	case prim.I32:
		return lua.LNumber(x)
	case prim.I64:
		return lua.LNumber(x)
	case prim.F32:
		return lua.LNumber(x)
	case prim.F64:
		return lua.LNumber(x)
	case prim.Str:
		return lua.LString(x)
	case prim.Fn:
		if fn, ok := x.Ref.(*lua.LFunction); ok {
			return fn
		}
	}
	return lua.LNil
}

// sortedKeys returns the string keys of a Lua table in order. Non-string
// keys are reported.
func sortedKeys(tbl *lua.LTable) ([]string, error) {
	var keys []string
	var bad error
	tbl.ForEach(func(k, _ lua.LValue) {
		s, ok := k.(lua.LString)
		if !ok {
			bad = fmt.Errorf("key %s is not a string: %w", k.String(), ErrBadValue)
			return
		}
		keys = append(keys, string(s))
	})
	if bad != nil {
		return nil, bad
	}
	sort.Strings(keys)
	return keys, nil
}
