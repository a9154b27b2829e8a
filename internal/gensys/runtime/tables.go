package runtime

import (
	"fmt"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/l1jgo/gensys/internal/gensys/interm"
	"github.com/l1jgo/gensys/internal/gensys/prim"
)

// PatternResolver evaluates function-form genre patterns. impls maps each
// implementation name of the archetype to its component id. A match returns
// interface member -> "impl.member".
type PatternResolver interface {
	ResolvePattern(fn prim.FuncRef, impls map[interm.Symbol]string) (map[interm.Symbol]string, bool, error)
}

// FuncTable interns function references so the same value always gets the
// same index.
type FuncTable struct {
	refs  []prim.FuncRef
	index map[prim.FuncRef]int
}

func NewFuncTable() *FuncTable {
	return &FuncTable{index: make(map[prim.FuncRef]int)}
}

// Intern returns the index of ref, adding it on first sight. A nil ref is -1.
func (f *FuncTable) Intern(ref prim.FuncRef) int {
	if ref == nil {
		return -1
	}
	if idx, ok := f.index[ref]; ok {
		return idx
	}
	idx := len(f.refs)
	f.refs = append(f.refs, ref)
	f.index[ref] = idx
	return idx
}

// Get returns the reference at idx, nil for -1.
func (f *FuncTable) Get(idx int) prim.FuncRef {
	if idx < 0 {
		return nil
	}
	return f.refs[idx]
}

func (f *FuncTable) Len() int { return len(f.refs) }

// Release drops every held reference.
func (f *FuncTable) Release() {
	f.refs = nil
	f.index = make(map[prim.FuncRef]int)
}

var generation atomic.Uint64

// Tables is the complete output of one compilation.
type Tables struct {
	Comps  []*Comp
	Arches []*Arche
	Genres []*Genre
	Funcs  *FuncTable

	compByName  map[string]CompID
	archeByName map[string]ArcheID
	genreByName map[string]GenreID

	generation uint64
	resolver   PatternResolver
	log        *zap.Logger
}

func NewTables(log *zap.Logger) *Tables {
	if log == nil {
		log = zap.NewNop()
	}
	return &Tables{
		Funcs:       NewFuncTable(),
		compByName:  make(map[string]CompID),
		archeByName: make(map[string]ArcheID),
		genreByName: make(map[string]GenreID),
		generation:  generation.Add(1),
		log:         log,
	}
}

// Generation identifies this compilation; no two Tables share one.
func (t *Tables) Generation() uint64 { return t.generation }

// SetResolver installs the evaluator for function patterns.
func (t *Tables) SetResolver(r PatternResolver) {
	t.resolver = r
	for _, g := range t.Genres {
		g.matches = make(map[ArcheID]*Pattern)
	}
}

// AddComp assigns c the next id.
func (t *Tables) AddComp(c *Comp) CompID {
	c.ID = CompID(len(t.Comps))
	t.Comps = append(t.Comps, c)
	t.compByName[c.Name] = c.ID
	return c.ID
}

// AddArche assigns a the next id.
func (t *Tables) AddArche(a *Arche) ArcheID {
	a.ID = ArcheID(len(t.Arches))
	t.Arches = append(t.Arches, a)
	t.archeByName[a.Name] = a.ID
	return a.ID
}

// AddGenre assigns g the next id.
func (t *Tables) AddGenre(g *Genre) GenreID {
	g.ID = GenreID(len(t.Genres))
	g.matches = make(map[ArcheID]*Pattern)
	t.Genres = append(t.Genres, g)
	t.genreByName[g.Name] = g.ID
	return g.ID
}

func (t *Tables) Comp(id CompID) *Comp {
	if int(id) < 0 || int(id) >= len(t.Comps) {
		panic(fmt.Sprintf("runtime: component id %d out of range", id))
	}
	return t.Comps[id]
}

func (t *Tables) Arche(id ArcheID) *Arche {
	if int(id) < 0 || int(id) >= len(t.Arches) {
		panic(fmt.Sprintf("runtime: archetype id %d out of range", id))
	}
	return t.Arches[id]
}

func (t *Tables) Genre(id GenreID) *Genre {
	if int(id) < 0 || int(id) >= len(t.Genres) {
		panic(fmt.Sprintf("runtime: genre id %d out of range", id))
	}
	return t.Genres[id]
}

// FindComp looks a component up by its staged id.
func (t *Tables) FindComp(name string) (*Comp, bool) {
	id, ok := t.compByName[name]
	if !ok {
		return nil, false
	}
	return t.Comps[id], true
}

// FindArche looks an archetype up by its staged id.
func (t *Tables) FindArche(name string) (*Arche, bool) {
	id, ok := t.archeByName[name]
	if !ok {
		return nil, false
	}
	return t.Arches[id], true
}

// FindGenre looks a genre up by its staged id.
func (t *Tables) FindGenre(name string) (*Genre, bool) {
	id, ok := t.genreByName[name]
	if !ok {
		return nil, false
	}
	return t.Genres[id], true
}

// Release drops everything the tables reference, including interned
// function values.
func (t *Tables) Release() {
	t.Funcs.Release()
	for _, a := range t.Arches {
		if a.Defaults != nil {
			a.Defaults.Release()
			a.Defaults = nil
		}
	}
	t.Comps, t.Arches, t.Genres = nil, nil, nil
	t.compByName = make(map[string]CompID)
	t.archeByName = make(map[string]ArcheID)
	t.genreByName = make(map[string]GenreID)
	t.resolver = nil
}
