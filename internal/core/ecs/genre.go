package ecs

import (
	"fmt"

	"github.com/l1jgo/gensys/internal/gensys/interm"
	"github.com/l1jgo/gensys/internal/gensys/prim"
	"github.com/l1jgo/gensys/internal/gensys/runtime"
)

// Genview reads and writes an entity through a genre's interface, using the
// pattern its archetype matched.
type Genview struct {
	world   *World
	handle  Handle
	genre   *runtime.Genre
	pattern *runtime.Pattern
	gen     uint64
}

// Genview returns a view of entity h through genre gid.
func (w *World) Genview(h Handle, gid runtime.GenreID) (Genview, error) {
	e := w.get(h)
	if e == nil {
		return Genview{}, fmt.Errorf("genview #%d: %w", h, ErrNoEntity)
	}
	g := w.tables.Genre(gid)
	p, ok := w.tables.Match(gid, e.arche)
	if !ok {
		return Genview{}, fmt.Errorf("genview #%d <%s>: %w", h, g.Name, ErrNoMatch)
	}
	return Genview{world: w, handle: h, genre: g, pattern: p, gen: w.tables.Generation()}, nil
}

// Matches reports whether entity h matches genre gid.
func (w *World) Matches(h Handle, gid runtime.GenreID) bool {
	e := w.get(h)
	if e == nil {
		return false
	}
	_, ok := w.tables.Match(gid, e.arche)
	return ok
}

func (v Genview) Handle() Handle        { return v.handle }
func (v Genview) Genre() *runtime.Genre { return v.genre }

func (v Genview) entity() (*entity, error) {
	if v.world == nil {
		return nil, fmt.Errorf("genview: %w", ErrNoEntity)
	}
	if v.gen != v.world.tables.Generation() {
		return nil, fmt.Errorf("genview #%d: %w", v.handle, ErrStaleView)
	}
	e := v.world.get(v.handle)
	if e == nil {
		return nil, fmt.Errorf("genview #%d: %w", v.handle, ErrNoEntity)
	}
	return e, nil
}

// Get reads interface member sym, either a static value or the aliased
// component member.
func (v Genview) Get(sym interm.Symbol) (prim.Value, error) {
	e, err := v.entity()
	if err != nil {
		return nil, err
	}
	if val, ok := v.pattern.Statics[sym]; ok {
		return val, nil
	}
	alias, ok := v.pattern.Aliases[sym]
	if !ok {
		return nil, fmt.Errorf("<%s>.%s: %w", v.genre.Name, sym, ErrUnknownMember)
	}
	agg, ok := v.world.tables.Arche(e.arche).Offset(alias.Comp)
	if !ok {
		panic(fmt.Sprintf("ecs: matched archetype lacks aliased component %d", alias.Comp))
	}
	return v.world.read(e, agg, alias.Prim), nil
}

// Set writes interface member sym through its alias.
func (v Genview) Set(sym interm.Symbol, val prim.Value) error {
	e, err := v.entity()
	if err != nil {
		return err
	}
	if _, ok := v.pattern.Statics[sym]; ok {
		return fmt.Errorf("<%s>.%s: %w", v.genre.Name, sym, ErrStaticMember)
	}
	alias, ok := v.pattern.Aliases[sym]
	if !ok {
		return fmt.Errorf("<%s>.%s: %w", v.genre.Name, sym, ErrUnknownMember)
	}
	agg, ok := v.world.tables.Arche(e.arche).Offset(alias.Comp)
	if !ok {
		panic(fmt.Sprintf("ecs: matched archetype lacks aliased component %d", alias.Comp))
	}
	if err := v.world.write(e, agg, alias.Prim, val); err != nil {
		return fmt.Errorf("<%s>.%s: %w", v.genre.Name, sym, err)
	}
	return nil
}
