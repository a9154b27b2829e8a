package scripting

import (
	"fmt"
	"sort"

	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"

	"github.com/l1jgo/gensys/internal/gensys"
	"github.com/l1jgo/gensys/internal/gensys/interm"
	"github.com/l1jgo/gensys/internal/gensys/prim"
)

// Keys with special meaning inside definition tables.
const (
	isKey       = "__is"
	fromKey     = "__from"
	matchingKey = "matching"
	aliasesKey  = "aliases"
	staticKey   = "static"
)

// StageStats counts what StageAll staged and skipped.
type StageStats struct {
	Components int
	Archetypes int
	Genres     int
	Skipped    int
}

func (e *Engine) requireState(L *lua.LState, want gensys.State, op string) {
	if st := e.sess.State(); st != want {
		L.RaiseError("gensys.%s requires a %s session, it is %s", op, want, st)
	}
}

// add_component(id, {member = {"type", default}, fn = function ... end})
func (e *Engine) luaAddComponent(L *lua.LState) int {
	e.requireState(L, gensys.Mutable, "add_component")
	id := L.CheckString(1)
	e.comps[string(interm.Sym(id))] = L.CheckTable(2)
	return 0
}

// add_archetype(id, {impl = {__is = "Comp", member = override}})
func (e *Engine) luaAddArchetype(L *lua.LState) int {
	e.requireState(L, gensys.Mutable, "add_archetype")
	id := L.CheckString(1)
	e.arches[string(interm.Sym(id))] = L.CheckTable(2)
	return 0
}

// add_genre(id, {interface = {member = "type"}, patterns = {...}})
func (e *Engine) luaAddGenre(L *lua.LState) int {
	e.requireState(L, gensys.Mutable, "add_genre")
	id := L.CheckString(1)
	e.genres[string(interm.Sym(id))] = L.CheckTable(2)
	return 0
}

func (e *Engine) editFunc(kind string, defs func() map[string]*lua.LTable) lua.LGFunction {
	return func(L *lua.LState) int {
		e.requireState(L, gensys.Mutable, "edit_"+kind)
		id := L.CheckString(1)
		tbl, ok := defs()[string(interm.Sym(id))]
		if !ok {
			L.RaiseError("gensys.edit_%s: no %s %q", kind, kind, id)
		}
		L.Push(tbl)
		return 1
	}
}

// StageAll converts every definition added from scripts and stages it into
// the session: components, then archetypes, then genres. Definitions that
// fail are logged and skipped. The working set is emptied afterwards.
func (e *Engine) StageAll() StageStats {
	var st StageStats
	skip := func(kind, id string, err error) {
		st.Skipped++
		e.log.Warn("script object skipped",
			zap.String("kind", kind), zap.String("id", id), zap.Error(err))
	}

	for _, id := range sortedIDs(e.comps) {
		c, err := e.component(id, e.comps[id])
		if err != nil {
			skip("component", id, err)
			continue
		}
		e.sess.StageComponent(id, c)
		st.Components++
	}
	for _, id := range sortedIDs(e.arches) {
		a, err := e.archetype(id, e.arches[id])
		if err != nil {
			skip("archetype", id, err)
			continue
		}
		e.sess.StageArchetype(id, a)
		st.Archetypes++
	}

	// Passes, so a genre may take patterns from one that sorts later.
	queue := sortedIDs(e.genres)
	for len(queue) > 0 {
		var retry []string
		var errs []error
		for _, id := range queue {
			g, err := e.genre(id, e.genres[id])
			if err != nil {
				retry = append(retry, id)
				errs = append(errs, err)
				continue
			}
			e.sess.StageGenre(id, g)
			st.Genres++
		}
		if len(retry) == len(queue) {
			for i, id := range retry {
				skip("genre", id, errs[i])
			}
			break
		}
		queue = retry
	}

	e.resetDefinitions()
	return st
}

func sortedIDs(m map[string]*lua.LTable) []string {
	ids := make([]string, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (e *Engine) component(id string, tbl *lua.LTable) (*interm.Comp, error) {
	keys, err := sortedKeys(tbl)
	if err != nil {
		return nil, err
	}
	c := interm.NewComp(id)
	for _, k := range keys {
		sym := interm.Sym(k)
		v, err := typedValue(tbl.RawGetString(k))
		if err != nil {
			return nil, fmt.Errorf("member %q: %w", sym, err)
		}
		if err := c.Define(sym, v); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// archetype implements components in ascending implementation-name order;
// Lua tables carry no authored order.
func (e *Engine) archetype(id string, tbl *lua.LTable) (*interm.Arche, error) {
	keys, err := sortedKeys(tbl)
	if err != nil {
		return nil, err
	}
	a := interm.NewArche(id)
	for _, k := range keys {
		sym := interm.Sym(k)
		impl, ok := tbl.RawGetString(k).(*lua.LTable)
		if !ok {
			return nil, fmt.Errorf("implementation %q must be a table: %w", sym, ErrBadValue)
		}
		compID, ok := impl.RawGetString(isKey).(lua.LString)
		if !ok {
			return nil, fmt.Errorf("implementation %q has no %s: %w", sym, isKey, ErrBadValue)
		}
		comp, ok := e.sess.GetStagedComponent(string(compID))
		if !ok {
			return nil, fmt.Errorf("implementation %q: component [%s]: %w", sym, compID, interm.ErrDanglingRef)
		}
		members, err := sortedKeys(impl)
		if err != nil {
			return nil, fmt.Errorf("implementation %q: %w", sym, err)
		}
		values := make(map[interm.Symbol]prim.Value, len(members))
		for _, m := range members {
			if m == isKey {
				continue
			}
			member := interm.Sym(m)
			def, ok := comp.Members[member]
			if !ok {
				return nil, fmt.Errorf("implementation %q: member %q not in [%s]: %w",
					sym, member, compID, interm.ErrUnknownMember)
			}
			v, err := valueOf(def.Type(), impl.RawGetString(m))
			if err != nil {
				return nil, fmt.Errorf("implementation %q member %q: %w", sym, member, err)
			}
			values[member] = v
		}
		if err := a.Implement(sym, string(compID), comp, values); err != nil {
			return nil, err
		}
	}
	return a, nil
}

func (e *Engine) genre(id string, tbl *lua.LTable) (*interm.Genre, error) {
	iface := make(map[interm.Symbol]prim.Type)
	if it, ok := tbl.RawGetString("interface").(*lua.LTable); ok {
		keys, err := sortedKeys(it)
		if err != nil {
			return nil, fmt.Errorf("interface: %w", err)
		}
		for _, k := range keys {
			t, err := typeOf(it.RawGetString(k))
			if err != nil {
				return nil, fmt.Errorf("interface member %q: %w", k, err)
			}
			iface[interm.Sym(k)] = t
		}
	}
	g, err := interm.NewGenre(id, iface)
	if err != nil {
		return nil, err
	}
	patterns, ok := tbl.RawGetString("patterns").(*lua.LTable)
	if !ok {
		return g, nil
	}
	for i := 1; i <= patterns.Len(); i++ {
		p, err := e.pattern(iface, patterns.RawGetInt(i))
		if err != nil {
			return nil, fmt.Errorf("pattern #%d: %w", i, err)
		}
		if err := g.AddPattern(p); err != nil {
			return nil, err
		}
	}
	return g, nil
}

func (e *Engine) pattern(iface map[interm.Symbol]prim.Type, lv lua.LValue) (interm.Pattern, error) {
	if fn, ok := lv.(*lua.LFunction); ok {
		return interm.FuncPattern(fn), nil
	}
	tbl, ok := lv.(*lua.LTable)
	if !ok {
		return interm.Pattern{}, fmt.Errorf("pattern must be a table or a function: %w", ErrBadValue)
	}
	aliases, err := stringMap(tbl.RawGetString(aliasesKey))
	if err != nil {
		return interm.Pattern{}, fmt.Errorf("aliases: %w", err)
	}

	var p interm.Pattern
	from, hasFrom := tbl.RawGetString(fromKey).(lua.LString)
	matching := tbl.RawGetString(matchingKey)
	switch {
	case hasFrom && matching != lua.LNil:
		return interm.Pattern{}, fmt.Errorf("%s and %s are exclusive: %w", fromKey, matchingKey, ErrBadValue)
	case hasFrom:
		src := make(map[interm.Symbol]interm.Symbol, len(aliases))
		for dest, member := range aliases {
			src[interm.Sym(dest)] = interm.Sym(member)
		}
		if comp, ok := e.sess.GetStagedComponent(string(from)); ok {
			p = interm.FromComp(string(from), comp, src)
		} else if g, ok := e.sess.GetStagedGenre(string(from)); ok {
			p = interm.FromGenre(string(from), g, src)
		} else {
			return interm.Pattern{}, fmt.Errorf("%s [%s]: %w", fromKey, from, interm.ErrDanglingRef)
		}
	default:
		locals, err := stringMap(matching)
		if err != nil {
			return interm.Pattern{}, fmt.Errorf("%s: %w", matchingKey, err)
		}
		refs := make(map[interm.Symbol]interm.MatchRef, len(locals))
		for local, compID := range locals {
			comp, ok := e.sess.GetStagedComponent(compID)
			if !ok {
				return interm.Pattern{}, fmt.Errorf("matching %q -> [%s]: %w", local, compID, interm.ErrDanglingRef)
			}
			refs[interm.Sym(local)] = interm.MatchRef{ID: compID, Comp: comp}
		}
		paths := make(map[interm.Symbol]string, len(aliases))
		for dest, path := range aliases {
			paths[interm.Sym(dest)] = path
		}
		if p, err = interm.MatchingPattern(refs, paths); err != nil {
			return interm.Pattern{}, err
		}
	}

	if st, ok := tbl.RawGetString(staticKey).(*lua.LTable); ok {
		keys, err := sortedKeys(st)
		if err != nil {
			return interm.Pattern{}, fmt.Errorf("static: %w", err)
		}
		p.Statics = make(map[interm.Symbol]prim.Value, len(keys))
		for _, k := range keys {
			sym := interm.Sym(k)
			t, ok := iface[sym]
			if !ok {
				return interm.Pattern{}, fmt.Errorf("static %q not in interface: %w", sym, interm.ErrUnknownMember)
			}
			v, err := valueOf(t, st.RawGetString(k))
			if err != nil {
				return interm.Pattern{}, fmt.Errorf("static %q: %w", sym, err)
			}
			p.Statics[sym] = v
		}
	}
	return p, nil
}

// stringMap reads a table of string keys and string values. nil is empty.
func stringMap(lv lua.LValue) (map[string]string, error) {
	if lv == lua.LNil {
		return nil, nil
	}
	tbl, ok := lv.(*lua.LTable)
	if !ok {
		return nil, fmt.Errorf("expected a table, got %s: %w", lv.Type(), ErrBadValue)
	}
	out := make(map[string]string)
	var bad error
	tbl.ForEach(func(k, v lua.LValue) {
		ks, kok := k.(lua.LString)
		vs, vok := v.(lua.LString)
		if !kok || !vok {
			bad = fmt.Errorf("entry %s = %s is not string to string: %w", k.String(), v.String(), ErrBadValue)
			return
		}
		out[string(ks)] = string(vs)
	})
	if bad != nil {
		return nil, bad
	}
	return out, nil
}
