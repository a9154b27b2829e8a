package runtime

import (
	"go.uber.org/zap"

	"github.com/l1jgo/gensys/internal/gensys/interm"
)

// Match returns the first pattern of genre gid satisfied by archetype aid.
// Results, including misses, are cached per archetype.
func (t *Tables) Match(gid GenreID, aid ArcheID) (*Pattern, bool) {
	g := t.Genre(gid)
	if p, ok := g.matches[aid]; ok {
		return p, p != nil
	}
	p := t.match(g, t.Arche(aid))
	g.matches[aid] = p
	return p, p != nil
}

func (t *Tables) match(g *Genre, a *Arche) *Pattern {
	if len(g.Patterns) == 0 || !a.HasAll(g.Required) {
		return nil
	}
	for _, p := range g.Patterns {
		if p.IsFunc() {
			if rp := t.resolveFunc(g, a, p); rp != nil {
				return rp
			}
			continue
		}
		if a.HasAll(p.Requires) {
			return p
		}
	}
	return nil
}

// resolveFunc asks the script layer whether a matches and turns the reported
// "impl.member" paths into concrete aliases.
func (t *Tables) resolveFunc(g *Genre, a *Arche, p *Pattern) *Pattern {
	if t.resolver == nil {
		t.log.Debug("function pattern skipped: no resolver",
			zap.String("genre", g.Name), zap.String("archetype", a.Name))
		return nil
	}
	impls := make(map[interm.Symbol]string, len(a.Implements))
	for sym, cid := range a.Implements {
		impls[sym] = t.Comps[cid].Name
	}
	reported, ok, err := t.resolver.ResolvePattern(p.Func, impls)
	if err != nil {
		t.log.Warn("function pattern failed",
			zap.String("genre", g.Name), zap.String("archetype", a.Name), zap.Error(err))
		return nil
	}
	if !ok {
		return nil
	}

	local := make(map[interm.Symbol]interm.Symbol, len(reported))
	if p.Remap != nil {
		for dest, src := range p.Remap {
			local[src] = dest
		}
	}

	out := &Pattern{
		Aliases: make(map[interm.Symbol]Alias, len(reported)),
		Statics: p.Statics,
	}
	for member, path := range reported {
		dest := member
		if p.Remap != nil {
			mapped, ok := local[member]
			if !ok {
				continue
			}
			dest = mapped
		}
		want, ok := g.Interface[dest]
		if !ok {
			t.log.Warn("function pattern reported unknown member",
				zap.String("genre", g.Name), zap.String("member", string(dest)))
			return nil
		}
		impl, field, err := interm.SplitAlias(path)
		if err != nil {
			t.log.Warn("function pattern reported bad alias",
				zap.String("genre", g.Name), zap.Error(err))
			return nil
		}
		cid, ok := a.Implements[impl]
		if !ok {
			t.log.Warn("function pattern reported unknown implementation",
				zap.String("genre", g.Name), zap.String("archetype", a.Name), zap.String("impl", string(impl)))
			return nil
		}
		rp, ok := t.Comps[cid].Members[field]
		if !ok || rp.Type != want {
			t.log.Warn("function pattern alias does not fit interface",
				zap.String("genre", g.Name), zap.String("member", string(dest)), zap.String("path", path))
			return nil
		}
		out.Aliases[dest] = Alias{Comp: cid, Prim: rp}
		out.Requires = append(out.Requires, cid)
	}
	out.Requires = SortedUnique(out.Requires)
	return out
}
