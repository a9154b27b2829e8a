package scripting

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"

	"github.com/l1jgo/gensys/internal/gensys"
)

// Engine wraps a single gopher-lua VM bound to one gensys session. Scripts
// author schemas through the global `gensys` table while the session is
// MUTABLE and create and drive entities once it is EXECUTABLE.
// Single-goroutine access only.
type Engine struct {
	vm   *lua.LState
	log  *zap.Logger
	sess *gensys.Session

	// Working definitions, keyed by normalised id, staged by StageAll.
	comps  map[string]*lua.LTable
	arches map[string]*lua.LTable
	genres map[string]*lua.LTable
}

// NewEngine creates a Lua VM, installs the gensys module and registers the
// engine as the session's function-pattern resolver.
func NewEngine(sess *gensys.Session, log *zap.Logger) *Engine {
	if log == nil {
		log = zap.NewNop()
	}
	vm := lua.NewState(lua.Options{
		SkipOpenLibs: false,
	})
	vm.SetGlobal("API_VERSION", lua.LNumber(1))

	e := &Engine{vm: vm, log: log, sess: sess}
	e.resetDefinitions()
	e.openModule()
	sess.SetPatternResolver(e)
	return e
}

// Close shuts the VM down.
func (e *Engine) Close() {
	e.vm.Close()
}

// VM exposes the underlying state for embedding code.
func (e *Engine) VM() *lua.LState { return e.vm }

func (e *Engine) resetDefinitions() {
	e.comps = make(map[string]*lua.LTable)
	e.arches = make(map[string]*lua.LTable)
	e.genres = make(map[string]*lua.LTable)
}

// DoString runs a chunk of Lua source.
func (e *Engine) DoString(src string) error {
	return e.vm.DoString(src)
}

// LoadDir runs every .lua file in dir, in name order. A missing directory
// loads nothing.
func (e *Engine) LoadDir(dir string) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, err
	}
	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".lua" {
			continue
		}
		names = append(names, entry.Name())
	}
	sort.Strings(names)
	for _, name := range names {
		path := filepath.Join(dir, name)
		if err := e.vm.DoFile(path); err != nil {
			return 0, fmt.Errorf("load %s: %w", path, err)
		}
		e.log.Debug("loaded lua script", zap.String("file", path))
	}
	return len(names), nil
}

// call invokes fn with args and returns its first result.
func (e *Engine) call(fn *lua.LFunction, args ...lua.LValue) (lua.LValue, error) {
	if err := e.vm.CallByParam(lua.P{
		Fn:      fn,
		NRet:    1,
		Protect: true,
	}, args...); err != nil {
		return lua.LNil, err
	}
	ret := e.vm.Get(-1)
	e.vm.Pop(1)
	return ret, nil
}
