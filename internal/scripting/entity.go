package scripting

import (
	"errors"

	lua "github.com/yuin/gopher-lua"

	"github.com/l1jgo/gensys/internal/core/ecs"
	"github.com/l1jgo/gensys/internal/gensys"
	"github.com/l1jgo/gensys/internal/gensys/interm"
	"github.com/l1jgo/gensys/internal/gensys/prim"
)

// Entities reach scripts as userdata holding only the handle, so a script
// can keep one across ticks and deletions are detected on the next access.

func (e *Engine) pushEntity(h ecs.Handle) *lua.LUserData {
	ud := e.vm.NewUserData()
	ud.Value = h
	e.vm.SetMetatable(ud, e.vm.GetTypeMetatable(entityType))
	return ud
}

func checkEntity(L *lua.LState, n int) ecs.Handle {
	ud := L.CheckUserData(n)
	h, ok := ud.Value.(ecs.Handle)
	if !ok {
		L.ArgError(n, "entity expected")
	}
	return h
}

func (e *Engine) entID(L *lua.LState) int {
	L.Push(lua.LNumber(checkEntity(L, 1)))
	return 1
}

func (e *Engine) entExists(L *lua.LState) int {
	h := checkEntity(L, 1)
	L.Push(lua.LBool(e.sess.State() == gensys.Executable && e.sess.World().Exists(h)))
	return 1
}

func (e *Engine) flags(L *lua.LState) ecs.Flags {
	h := checkEntity(L, 1)
	e.requireState(L, gensys.Executable, "entity")
	f, ok := e.sess.World().Flags(h)
	if !ok {
		L.RaiseError("entity #%d: %v", h, ecs.ErrNoEntity)
	}
	return f
}

func (e *Engine) entSpawned(L *lua.LState) int {
	L.Push(lua.LBool(e.flags(L).Spawned()))
	return 1
}

func (e *Engine) entAlive(L *lua.LState) int {
	L.Push(lua.LBool(e.flags(L).Alive()))
	return 1
}

func (e *Engine) cview(L *lua.LState) ecs.Cview {
	h := checkEntity(L, 1)
	e.requireState(L, gensys.Executable, "entity")
	v, err := e.sess.World().CviewByName(h, interm.Sym(L.CheckString(2)))
	if err != nil {
		L.RaiseError("%v", err)
	}
	return v
}

// ent:get(impl, member)
func (e *Engine) entGet(L *lua.LState) int {
	v := e.cview(L)
	val, err := v.Get(interm.Sym(L.CheckString(3)))
	if err != nil {
		L.RaiseError("%v", err)
	}
	L.Push(toLua(val))
	return 1
}

// ent:set(impl, member, value)
func (e *Engine) entSet(L *lua.LState) int {
	v := e.cview(L)
	setMember(L, cviewRef{v}, interm.Sym(L.CheckString(3)), L.CheckAny(4))
	return 0
}

// ent:call(impl, member, ...) calls a function member with the entity
// followed by the remaining arguments and returns its results.
func (e *Engine) entCall(L *lua.LState) int {
	v := e.cview(L)
	sym := interm.Sym(L.CheckString(3))
	val, err := v.Get(sym)
	if err != nil {
		L.RaiseError("%v", err)
	}
	if val.Type() != prim.FuncT {
		L.RaiseError("[%s].%s is %s, not func", v.Comp().Name, sym, val.Type())
	}
	fn, ok := prim.AsFunc(val).(*lua.LFunction)
	if !ok {
		L.RaiseError("[%s].%s has no function", v.Comp().Name, sym)
	}
	base := L.GetTop()
	L.Push(fn)
	L.Push(L.Get(1))
	for i := 4; i <= base; i++ {
		L.Push(L.Get(i))
	}
	L.Call(base-2, lua.MultRet)
	return L.GetTop() - base
}

// ent:genre(id) returns a view through the genre, or nil when the entity
// does not match it.
func (e *Engine) entGenre(L *lua.LState) int {
	h := checkEntity(L, 1)
	e.requireState(L, gensys.Executable, "entity")
	g, err := e.sess.FindGenre(L.CheckString(2))
	if err != nil {
		L.RaiseError("%v", err)
	}
	v, err := e.sess.World().Genview(h, g.ID)
	if errors.Is(err, ecs.ErrNoMatch) {
		L.Push(lua.LNil)
		return 1
	}
	if err != nil {
		L.RaiseError("%v", err)
	}
	L.Push(e.pushView(genviewRef{v}))
	return 1
}

func (e *Engine) entString(L *lua.LState) int {
	L.Push(lua.LString(e.sess.World().String(checkEntity(L, 1))))
	return 1
}

// view is what component and genre listeners and ent:genre hand to scripts.
type view interface {
	Handle() ecs.Handle
	Get(sym interm.Symbol) (prim.Value, error)
	Set(sym interm.Symbol, val prim.Value) error
	memberType(sym interm.Symbol) (prim.Type, bool)
	name() string
}

type cviewRef struct{ ecs.Cview }

func (r cviewRef) memberType(sym interm.Symbol) (prim.Type, bool) {
	p, ok := r.Comp().Member(sym)
	return p.Type, ok
}

func (r cviewRef) name() string { return "[" + r.Comp().Name + "]" }

type genviewRef struct{ ecs.Genview }

func (r genviewRef) memberType(sym interm.Symbol) (prim.Type, bool) {
	t, ok := r.Genre().Interface[sym]
	return t, ok
}

func (r genviewRef) name() string { return "<" + r.Genre().Name + ">" }

func (e *Engine) pushView(v view) *lua.LUserData {
	ud := e.vm.NewUserData()
	ud.Value = v
	e.vm.SetMetatable(ud, e.vm.GetTypeMetatable(viewType))
	return ud
}

func (e *Engine) checkView(L *lua.LState) view {
	ud := L.CheckUserData(1)
	v, ok := ud.Value.(view)
	if !ok {
		L.ArgError(1, "view expected")
	}
	e.requireState(L, gensys.Executable, "view")
	return v
}

// view:get(member)
func (e *Engine) viewGet(L *lua.LState) int {
	v := e.checkView(L)
	val, err := v.Get(interm.Sym(L.CheckString(2)))
	if err != nil {
		L.RaiseError("%v", err)
	}
	L.Push(toLua(val))
	return 1
}

// view:set(member, value)
func (e *Engine) viewSet(L *lua.LState) int {
	v := e.checkView(L)
	setMember(L, v, interm.Sym(L.CheckString(2)), L.CheckAny(3))
	return 0
}

// view:entity()
func (e *Engine) viewEntity(L *lua.LState) int {
	v := e.checkView(L)
	L.Push(e.pushEntity(v.Handle()))
	return 1
}

func setMember(L *lua.LState, v view, sym interm.Symbol, lv lua.LValue) {
	t, ok := v.memberType(sym)
	if !ok {
		L.RaiseError("%s.%s: %v", v.name(), sym, ecs.ErrUnknownMember)
	}
	val, err := valueOf(t, lv)
	if err != nil {
		L.RaiseError("%s.%s: %v", v.name(), sym, err)
	}
	if err := v.Set(sym, val); err != nil {
		L.RaiseError("%v", err)
	}
}
