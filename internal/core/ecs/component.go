package ecs

import (
	"fmt"

	"github.com/l1jgo/gensys/internal/core/pod"
	"github.com/l1jgo/gensys/internal/gensys/interm"
	"github.com/l1jgo/gensys/internal/gensys/prim"
	"github.com/l1jgo/gensys/internal/gensys/runtime"
)

// Cview reads and writes one component of one entity. It is a small value
// that holds no storage; every access resolves the handle again.
type Cview struct {
	world  *World
	handle Handle
	comp   *runtime.Comp
	agg    runtime.Aggindex
	gen    uint64
}

// Cview returns a view of component cid on entity h.
func (w *World) Cview(h Handle, cid runtime.CompID) (Cview, error) {
	e := w.get(h)
	if e == nil {
		return Cview{}, fmt.Errorf("cview #%d: %w", h, ErrNoEntity)
	}
	agg, ok := w.tables.Arche(e.arche).Offset(cid)
	if !ok {
		return Cview{}, fmt.Errorf("cview #%d [%s]: %w", h, w.tables.Comp(cid).Name, ErrNoComponent)
	}
	return Cview{world: w, handle: h, comp: w.tables.Comp(cid), agg: agg, gen: w.tables.Generation()}, nil
}

// CviewByName returns a view of the component implemented under impl.
func (w *World) CviewByName(h Handle, impl interm.Symbol) (Cview, error) {
	e := w.get(h)
	if e == nil {
		return Cview{}, fmt.Errorf("cview #%d: %w", h, ErrNoEntity)
	}
	cid, ok := w.tables.Arche(e.arche).Implement(impl)
	if !ok {
		return Cview{}, fmt.Errorf("cview #%d %q: %w", h, impl, ErrNoComponent)
	}
	return w.Cview(h, cid)
}

func (v Cview) Handle() Handle      { return v.handle }
func (v Cview) Comp() *runtime.Comp { return v.comp }

func (v Cview) entity() (*entity, error) {
	if v.world == nil {
		return nil, fmt.Errorf("cview: %w", ErrNoEntity)
	}
	if v.gen != v.world.tables.Generation() {
		return nil, fmt.Errorf("cview #%d: %w", v.handle, ErrStaleView)
	}
	e := v.world.get(v.handle)
	if e == nil {
		return nil, fmt.Errorf("cview #%d: %w", v.handle, ErrNoEntity)
	}
	return e, nil
}

// Get reads member sym.
func (v Cview) Get(sym interm.Symbol) (prim.Value, error) {
	e, err := v.entity()
	if err != nil {
		return nil, err
	}
	p, ok := v.comp.Member(sym)
	if !ok {
		return nil, fmt.Errorf("[%s].%s: %w", v.comp.Name, sym, ErrUnknownMember)
	}
	return v.world.read(e, v.agg, p), nil
}

// Set writes member sym. FUNC members are read-only.
func (v Cview) Set(sym interm.Symbol, val prim.Value) error {
	e, err := v.entity()
	if err != nil {
		return err
	}
	p, ok := v.comp.Member(sym)
	if !ok {
		return fmt.Errorf("[%s].%s: %w", v.comp.Name, sym, ErrUnknownMember)
	}
	if err := v.world.write(e, v.agg, p, val); err != nil {
		return fmt.Errorf("[%s].%s: %w", v.comp.Name, sym, err)
	}
	return nil
}

func (w *World) read(e *entity, agg runtime.Aggindex, p runtime.Prim) prim.Value {
	off := HeaderSize + agg.Pod + p.Offset
	switch p.Type {
	case prim.I32T:
		return prim.I32(pod.Get[int32](e.chunk, off))
	case prim.I64T:
		return prim.I64(pod.Get[int64](e.chunk, off))
	case prim.F32T:
		return prim.F32(pod.Get[float32](e.chunk, off))
	case prim.F64T:
		return prim.F64(pod.Get[float64](e.chunk, off))
	case prim.StrT:
		return prim.Str(e.strings[agg.Str+p.Offset])
	case prim.FuncT:
		a := w.tables.Arche(e.arche)
		return prim.Fn{Ref: w.tables.Funcs.Get(a.Funcs[agg.Func+p.Offset])}
	}
	panic(fmt.Sprintf("ecs: member of type %s", p.Type))
}

func (w *World) write(e *entity, agg runtime.Aggindex, p runtime.Prim, v prim.Value) error {
	if p.Type == prim.FuncT {
		return ErrFuncReadOnly
	}
	if v == nil || v.IsEmpty() || v.Type() != p.Type {
		got := "nil"
		if v != nil {
			got = prim.Format(v)
		}
		return fmt.Errorf("want %s, got %s: %w", p.Type, got, ErrTypeMismatch)
	}
	off := HeaderSize + agg.Pod + p.Offset
	switch x := v.(type) {
	case prim.I32:
		pod.Set(e.chunk, off, int32(x))
	case prim.I64:
		pod.Set(e.chunk, off, int64(x))
	case prim.F32:
		pod.Set(e.chunk, off, float32(x))
	case prim.F64:
		pod.Set(e.chunk, off, float64(x))
	case prim.Str:
		e.strings[agg.Str+p.Offset] = string(x)
	default:
		panic(fmt.Sprintf("ecs: write of %s", v.Type()))
	}
	return nil
}
