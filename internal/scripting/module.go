package scripting

import (
	"fmt"
	"time"

	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"

	"github.com/l1jgo/gensys/internal/core/ecs"
	"github.com/l1jgo/gensys/internal/gensys"
	"github.com/l1jgo/gensys/internal/gensys/interm"
	"github.com/l1jgo/gensys/internal/gensys/prim"
)

const (
	entityType = "gensys.entity"
	viewType   = "gensys.view"
)

// openModule installs the global `gensys` table and makes it loadable with
// require("gensys").
func (e *Engine) openModule() {
	L := e.vm
	mod := L.SetFuncs(L.NewTable(), map[string]lua.LGFunction{
		"state": e.luaState,

		"add_component":  e.luaAddComponent,
		"add_archetype":  e.luaAddArchetype,
		"add_genre":      e.luaAddGenre,
		"edit_component": e.editFunc("component", func() map[string]*lua.LTable { return e.comps }),
		"edit_archetype": e.editFunc("archetype", func() map[string]*lua.LTable { return e.arches }),
		"edit_genre":     e.editFunc("genre", func() map[string]*lua.LTable { return e.genres }),

		"find_component": e.luaFindComponent,
		"find_archetype": e.luaFindArchetype,
		"new_entity":     e.luaNewEntity,
		"delete_entity":  e.luaDeleteEntity,
		"spawn":          e.luaSpawn,
		"kill":           e.luaKill,
		"on_archetype":   e.luaOnArchetype,
		"on_component":   e.luaOnComponent,
		"on_genre":       e.luaOnGenre,
	})
	L.SetGlobal("gensys", mod)
	L.PreloadModule("gensys", func(L *lua.LState) int {
		L.Push(mod)
		return 1
	})

	ent := L.NewTypeMetatable(entityType)
	L.SetField(ent, "__index", L.SetFuncs(L.NewTable(), map[string]lua.LGFunction{
		"id":      e.entID,
		"exists":  e.entExists,
		"spawned": e.entSpawned,
		"alive":   e.entAlive,
		"get":     e.entGet,
		"set":     e.entSet,
		"call":    e.entCall,
		"genre":   e.entGenre,
	}))
	L.SetField(ent, "__tostring", L.NewFunction(e.entString))
	L.SetField(ent, "__eq", L.NewFunction(func(L *lua.LState) int {
		L.Push(lua.LBool(checkEntity(L, 1) == checkEntity(L, 2)))
		return 1
	}))

	view := L.NewTypeMetatable(viewType)
	L.SetField(view, "__index", L.SetFuncs(L.NewTable(), map[string]lua.LGFunction{
		"get":    e.viewGet,
		"set":    e.viewSet,
		"entity": e.viewEntity,
	}))
}

func (e *Engine) luaState(L *lua.LState) int {
	L.Push(lua.LString(e.sess.State().String()))
	return 1
}

// find_component(id) -> {name = id, members = {member = "type"}} or nil
func (e *Engine) luaFindComponent(L *lua.LState) int {
	e.requireState(L, gensys.Executable, "find_component")
	c, err := e.sess.FindComp(L.CheckString(1))
	if err != nil {
		L.Push(lua.LNil)
		return 1
	}
	members := L.NewTable()
	for sym, p := range c.Members {
		members.RawSetString(string(sym), lua.LString(p.Type.String()))
	}
	out := L.NewTable()
	out.RawSetString("name", lua.LString(c.Name))
	out.RawSetString("members", members)
	L.Push(out)
	return 1
}

// find_archetype(id) -> {name = id, implements = {impl = "Comp"}} or nil
func (e *Engine) luaFindArchetype(L *lua.LState) int {
	e.requireState(L, gensys.Executable, "find_archetype")
	a, err := e.sess.FindArche(L.CheckString(1))
	if err != nil {
		L.Push(lua.LNil)
		return 1
	}
	impls := L.NewTable()
	for sym, cid := range a.Implements {
		impls.RawSetString(string(sym), lua.LString(e.sess.Tables().Comp(cid).Name))
	}
	out := L.NewTable()
	out.RawSetString("name", lua.LString(a.Name))
	out.RawSetString("implements", impls)
	L.Push(out)
	return 1
}

// new_entity(arche) creates an unspawned, script-owned entity.
func (e *Engine) luaNewEntity(L *lua.LState) int {
	e.requireState(L, gensys.Executable, "new_entity")
	h, err := e.sess.NewEntity(L.CheckString(1))
	if err != nil {
		L.RaiseError("gensys.new_entity: %v", err)
	}
	if err := e.sess.World().SetLuaOwned(h, true); err != nil {
		L.RaiseError("gensys.new_entity: %v", err)
	}
	L.Push(e.pushEntity(h))
	return 1
}

// delete_entity(ent) deletes an entity the script created and has not
// spawned. It returns false when the entity is gone, foreign or spawned.
func (e *Engine) luaDeleteEntity(L *lua.LState) int {
	e.requireState(L, gensys.Executable, "delete_entity")
	h := checkEntity(L, 1)
	w := e.sess.World()
	f, ok := w.Flags(h)
	if !ok || !f.LuaOwned() || f.Spawned() {
		L.Push(lua.LFalse)
		return 1
	}
	if err := w.Delete(h); err != nil {
		L.RaiseError("gensys.delete_entity: %v", err)
	}
	L.Push(lua.LTrue)
	return 1
}

func (e *Engine) luaSpawn(L *lua.LState) int {
	e.requireState(L, gensys.Executable, "spawn")
	if err := e.sess.World().Spawn(checkEntity(L, 1)); err != nil {
		L.RaiseError("gensys.spawn: %v", err)
	}
	return 0
}

func (e *Engine) luaKill(L *lua.LState) int {
	e.requireState(L, gensys.Executable, "kill")
	if err := e.sess.World().Kill(checkEntity(L, 1)); err != nil {
		L.RaiseError("gensys.kill: %v", err)
	}
	return 0
}

// Listeners get the entity or a view plus dt in seconds. A failing listener
// is logged and does not stop the tick.
func (e *Engine) listenerFailed(kind, id string, err error) {
	e.log.Warn("lua listener failed", zap.String("kind", kind), zap.String("id", id), zap.Error(err))
}

func seconds(dt time.Duration) lua.LNumber { return lua.LNumber(dt.Seconds()) }

func (e *Engine) luaOnArchetype(L *lua.LState) int {
	e.requireState(L, gensys.Executable, "on_archetype")
	id, fn := L.CheckString(1), L.CheckFunction(2)
	err := e.sess.OnArche(id, func(h ecs.Handle, dt time.Duration) {
		if _, err := e.call(fn, e.pushEntity(h), seconds(dt)); err != nil {
			e.listenerFailed("archetype", id, err)
		}
	})
	if err != nil {
		L.RaiseError("gensys.on_archetype: %v", err)
	}
	return 0
}

func (e *Engine) luaOnComponent(L *lua.LState) int {
	e.requireState(L, gensys.Executable, "on_component")
	id, fn := L.CheckString(1), L.CheckFunction(2)
	err := e.sess.OnComp(id, func(v ecs.Cview, dt time.Duration) {
		if _, err := e.call(fn, e.pushView(cviewRef{v}), seconds(dt)); err != nil {
			e.listenerFailed("component", id, err)
		}
	})
	if err != nil {
		L.RaiseError("gensys.on_component: %v", err)
	}
	return 0
}

func (e *Engine) luaOnGenre(L *lua.LState) int {
	e.requireState(L, gensys.Executable, "on_genre")
	id, fn := L.CheckString(1), L.CheckFunction(2)
	err := e.sess.OnGenre(id, func(v ecs.Genview, dt time.Duration) {
		if _, err := e.call(fn, e.pushView(genviewRef{v}), seconds(dt)); err != nil {
			e.listenerFailed("genre", id, err)
		}
	})
	if err != nil {
		L.RaiseError("gensys.on_genre: %v", err)
	}
	return 0
}

// ResolvePattern evaluates a function-form genre pattern. The function gets
// a table of implementation name -> component id and returns nil or a table
// of interface member -> "impl.member".
func (e *Engine) ResolvePattern(fn prim.FuncRef, impls map[interm.Symbol]string) (map[interm.Symbol]string, bool, error) {
	lf, ok := fn.(*lua.LFunction)
	if !ok {
		return nil, false, fmt.Errorf("pattern function is %T, not a lua function: %w", fn, ErrBadValue)
	}
	arg := e.vm.NewTable()
	syms := interm.SortedSymbols(impls)
	for _, sym := range syms {
		arg.RawSetString(string(sym), lua.LString(impls[sym]))
	}
	ret, err := e.call(lf, arg)
	if err != nil {
		return nil, false, err
	}
	if ret == lua.LNil || ret == lua.LFalse {
		return nil, false, nil
	}
	m, err := stringMap(ret)
	if err != nil {
		return nil, false, fmt.Errorf("pattern function result: %w", err)
	}
	out := make(map[interm.Symbol]string, len(m))
	for member, path := range m {
		out[interm.Sym(member)] = path
	}
	return out, true, nil
}
