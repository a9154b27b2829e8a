package compiler

import (
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/l1jgo/gensys/internal/core/pod"
	"github.com/l1jgo/gensys/internal/gensys/interm"
	"github.com/l1jgo/gensys/internal/gensys/prim"
	"github.com/l1jgo/gensys/internal/gensys/runtime"
)

// compDefaults is a component's packed default payload, used to seed every
// archetype that implements it.
type compDefaults struct {
	chunk   *pod.Chunk
	strings []string
	funcs   []prim.FuncRef
}

type build struct {
	c        *Compiler
	tb       *runtime.Tables
	defaults map[runtime.CompID]compDefaults

	genreState map[string]int
}

// Compile turns every staged object into runtime tables. Components compile
// first, then archetypes, then genres. An object that references something
// no longer staged is skipped with a warning. Staged objects are kept.
func (c *Compiler) Compile() *runtime.Tables {
	b := &build{
		c:          c,
		tb:         runtime.NewTables(c.log),
		defaults:   make(map[runtime.CompID]compDefaults),
		genreState: make(map[string]int),
	}
	for _, id := range sortedKeys(c.comps) {
		b.comp(id, c.comps[id])
	}
	for _, id := range sortedKeys(c.arches) {
		if err := b.arche(id, c.arches[id]); err != nil {
			c.log.Warn("archetype skipped", zap.String("id", id), zap.Error(err))
		}
	}
	for _, id := range sortedKeys(c.genres) {
		b.genre(id)
	}
	for _, d := range b.defaults {
		d.chunk.Release()
	}
	c.log.Info("gensys compiled",
		zap.Int("components", len(b.tb.Comps)),
		zap.Int("archetypes", len(b.tb.Arches)),
		zap.Int("genres", len(b.tb.Genres)),
		zap.Int("functions", b.tb.Funcs.Len()))
	return b.tb
}

func sortedKeys[V any](m map[string]V) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// comp packs POD members widest first, equal widths in symbol order. Members
// without a default are packed too and stay zero.
func (b *build) comp(id string, src *interm.Comp) {
	rc := &runtime.Comp{Name: id, Members: make(map[interm.Symbol]runtime.Prim, len(src.Members))}
	syms := interm.SortedSymbols(src.Members)

	podSyms := make([]interm.Symbol, 0, len(syms))
	for _, s := range syms {
		if src.Members[s].Type().IsPOD() {
			podSyms = append(podSyms, s)
		}
	}
	sort.SliceStable(podSyms, func(i, j int) bool {
		return src.Members[podSyms[i]].Type().Width() > src.Members[podSyms[j]].Type().Width()
	})

	var part Partition
	for _, s := range podSyms {
		t := src.Members[s].Type()
		w := t.Width()
		rc.Members[s] = runtime.Prim{Type: t, Offset: part.Place(w, prim.Alignment(w))}
	}

	var d compDefaults
	d.chunk = pod.New(part.MinimumSize())
	for _, s := range podSyms {
		if v := src.Members[s]; !v.IsEmpty() {
			writePOD(d.chunk, rc.Members[s].Offset, v)
		}
	}
	for _, s := range syms {
		v := src.Members[s]
		switch v.Type() {
		case prim.StrT:
			rc.Members[s] = runtime.Prim{Type: prim.StrT, Offset: len(d.strings)}
			str := ""
			if !v.IsEmpty() {
				str = prim.AsStr(v)
			}
			d.strings = append(d.strings, str)
		case prim.FuncT:
			rc.Members[s] = runtime.Prim{Type: prim.FuncT, Offset: len(d.funcs)}
			var ref prim.FuncRef
			if !v.IsEmpty() {
				ref = prim.AsFunc(v)
			}
			d.funcs = append(d.funcs, ref)
		}
	}
	rc.PodSize = d.chunk.Size()
	rc.NumStrings = len(d.strings)
	rc.NumFuncs = len(d.funcs)

	cid := b.tb.AddComp(rc)
	b.defaults[cid] = d
	b.c.log.Debug("component compiled",
		zap.String("id", id), zap.Int("pod", rc.PodSize),
		zap.Int("strings", rc.NumStrings), zap.Int("funcs", rc.NumFuncs))
}

// writePOD stores a numeric value at off.
func writePOD(c *pod.Chunk, off int, v prim.Value) {
	switch x := v.(type) {
	case prim.I32:
		pod.Set(c, off, int32(x))
	case prim.I64:
		pod.Set(c, off, int64(x))
	case prim.F32:
		pod.Set(c, off, float32(x))
	case prim.F64:
		pod.Set(c, off, float64(x))
	default:
		panic(fmt.Sprintf("compiler: %s is not a POD value", v.Type()))
	}
}

// resolveComp maps a reference held by an intermediate object to the compiled
// component, provided the same object is still staged under that id.
func (b *build) resolveComp(id string, comp *interm.Comp) (*runtime.Comp, error) {
	id = key(id)
	if staged, ok := b.c.comps[id]; !ok || staged != comp {
		return nil, fmt.Errorf("component [%s] is no longer staged: %w", id, interm.ErrDanglingRef)
	}
	rc, ok := b.tb.FindComp(id)
	if !ok {
		panic(fmt.Sprintf("compiler: staged component [%s] missing from tables", id))
	}
	return rc, nil
}

func (b *build) arche(id string, src *interm.Arche) error {
	comps := make([]*runtime.Comp, len(src.Implements))
	var podSize, numStrings, numFuncs int
	for i, im := range src.Implements {
		rc, err := b.resolveComp(im.CompID, im.Comp)
		if err != nil {
			return fmt.Errorf("implementation %q: %w", im.Symbol, err)
		}
		comps[i] = rc
		podSize += rc.PodSize
		numStrings += rc.NumStrings
		numFuncs += rc.NumFuncs
	}

	ra := &runtime.Arche{
		Name:       id,
		Defaults:   pod.New(podSize),
		Strings:    make([]string, 0, numStrings),
		Funcs:      make([]int, 0, numFuncs),
		Offsets:    make(map[runtime.CompID]runtime.Aggindex, len(comps)),
		Implements: make(map[interm.Symbol]runtime.CompID, len(comps)),
	}
	podOff := 0
	for i, im := range src.Implements {
		rc := comps[i]
		d := b.defaults[rc.ID]
		agg := runtime.Aggindex{Pod: podOff, Str: len(ra.Strings), Func: len(ra.Funcs)}

		pod.Copy(d.chunk, 0, ra.Defaults, podOff, rc.PodSize)
		ra.Strings = append(ra.Strings, d.strings...)
		for _, ref := range d.funcs {
			ra.Funcs = append(ra.Funcs, b.tb.Funcs.Intern(ref))
		}

		for member, v := range im.Values {
			if v.IsEmpty() {
				continue
			}
			p, ok := rc.Members[member]
			if !ok {
				panic(fmt.Sprintf("compiler: member %q of [%s] has no offset", member, rc.Name))
			}
			switch p.Type {
			case prim.StrT:
				ra.Strings[agg.Str+p.Offset] = prim.AsStr(v)
			case prim.FuncT:
				ra.Funcs[agg.Func+p.Offset] = b.tb.Funcs.Intern(prim.AsFunc(v))
			default:
				writePOD(ra.Defaults, agg.Pod+p.Offset, v)
			}
		}

		ra.Offsets[rc.ID] = agg
		ra.Implements[im.Symbol] = rc.ID
		ra.Comps = append(ra.Comps, rc.ID)
		podOff += rc.PodSize
	}
	ra.Comps = runtime.SortedUnique(ra.Comps)
	b.tb.AddArche(ra)
	b.c.log.Debug("archetype compiled",
		zap.String("id", id), zap.Int("components", len(ra.Comps)), zap.Int("pod", podSize))
	return nil
}

const (
	genreVisiting = 1
	genreDone     = 2
	genreFailed   = 3
)

// genre compiles id after every genre its patterns are taken from.
func (b *build) genre(id string) bool {
	switch b.genreState[id] {
	case genreDone:
		return true
	case genreFailed:
		return false
	case genreVisiting:
		b.c.log.Warn("genre skipped: cyclic pattern source", zap.String("id", id))
		b.genreState[id] = genreFailed
		return false
	}
	b.genreState[id] = genreVisiting
	rg, err := b.compileGenre(id, b.c.genres[id])
	if err != nil {
		if b.genreState[id] != genreFailed {
			b.c.log.Warn("genre skipped", zap.String("id", id), zap.Error(err))
		}
		b.genreState[id] = genreFailed
		return false
	}
	b.tb.AddGenre(rg)
	b.genreState[id] = genreDone
	return true
}

func (b *build) compileGenre(id string, src *interm.Genre) (*runtime.Genre, error) {
	iface := make(map[interm.Symbol]prim.Type, len(src.Interface))
	for sym, t := range src.Interface {
		iface[sym] = t
	}
	rg := &runtime.Genre{Name: id, Interface: iface}
	for i, p := range src.Patterns {
		var out []*runtime.Pattern
		var err error
		switch p.Kind {
		case interm.PatternTable:
			var rp *runtime.Pattern
			rp, err = b.tablePattern(p)
			out = []*runtime.Pattern{rp}
		case interm.PatternGenre:
			out, err = b.genrePattern(p)
		case interm.PatternFunc:
			b.tb.Funcs.Intern(p.Func)
			out = []*runtime.Pattern{{Func: p.Func, Statics: p.Statics}}
		default:
			panic(fmt.Sprintf("compiler: pattern kind %d", p.Kind))
		}
		if err != nil {
			return nil, fmt.Errorf("pattern #%d: %w", i+1, err)
		}
		rg.Patterns = append(rg.Patterns, out...)
	}
	for i, p := range rg.Patterns {
		if i == 0 {
			rg.Required = append([]runtime.CompID(nil), p.Requires...)
			continue
		}
		rg.Required = runtime.Intersect(rg.Required, p.Requires)
	}
	return rg, nil
}

func (b *build) tablePattern(p interm.Pattern) (*runtime.Pattern, error) {
	locals := make(map[interm.Symbol]*runtime.Comp, len(p.Matching))
	rp := &runtime.Pattern{
		Aliases: make(map[interm.Symbol]runtime.Alias, len(p.Aliases)),
		Statics: p.Statics,
	}
	for _, local := range interm.SortedSymbols(p.Matching) {
		ref := p.Matching[local]
		rc, err := b.resolveComp(ref.ID, ref.Comp)
		if err != nil {
			return nil, err
		}
		locals[local] = rc
		rp.Requires = append(rp.Requires, rc.ID)
	}
	rp.Requires = runtime.SortedUnique(rp.Requires)
	for dest, a := range p.Aliases {
		rc, ok := locals[a.Local]
		if !ok {
			panic(fmt.Sprintf("compiler: alias %q names unknown local %q", dest, a.Local))
		}
		member, ok := rc.Members[a.Member]
		if !ok {
			panic(fmt.Sprintf("compiler: member %q of [%s] has no offset", a.Member, rc.Name))
		}
		rp.Aliases[dest] = runtime.Alias{Comp: rc.ID, Prim: member}
	}
	return rp, nil
}

// genrePattern flattens a pattern taken from another genre into one pattern
// per source pattern, renaming the source interface through p's aliases.
func (b *build) genrePattern(p interm.Pattern) ([]*runtime.Pattern, error) {
	srcID := key(p.GenreID)
	if staged, ok := b.c.genres[srcID]; !ok || staged != p.Genre {
		return nil, fmt.Errorf("genre [%s] is no longer staged: %w", srcID, interm.ErrDanglingRef)
	}
	if !b.genre(srcID) {
		return nil, fmt.Errorf("source genre [%s] did not compile: %w", srcID, interm.ErrDanglingRef)
	}
	sg, ok := b.tb.FindGenre(srcID)
	if !ok {
		panic(fmt.Sprintf("compiler: compiled genre [%s] missing from tables", srcID))
	}

	out := make([]*runtime.Pattern, 0, len(sg.Patterns))
	for _, sp := range sg.Patterns {
		rp := &runtime.Pattern{
			Requires: append([]runtime.CompID(nil), sp.Requires...),
			Statics:  make(map[interm.Symbol]prim.Value, len(p.Statics)),
			Func:     sp.Func,
		}
		for dest, v := range p.Statics {
			rp.Statics[dest] = v
		}
		if sp.IsFunc() {
			rp.Remap = make(map[interm.Symbol]interm.Symbol, len(p.Aliases))
		} else {
			rp.Aliases = make(map[interm.Symbol]runtime.Alias, len(p.Aliases))
		}
		for dest, a := range p.Aliases {
			if v, ok := sp.Statics[a.Member]; ok {
				rp.Statics[dest] = v
				continue
			}
			if sp.IsFunc() {
				reported := a.Member
				if sp.Remap != nil {
					r, ok := sp.Remap[a.Member]
					if !ok {
						continue
					}
					reported = r
				}
				rp.Remap[dest] = reported
				continue
			}
			if sa, ok := sp.Aliases[a.Member]; ok {
				rp.Aliases[dest] = sa
			}
		}
		out = append(out, rp)
	}
	return out, nil
}
