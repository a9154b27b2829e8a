// Package gensys ties the compiler, the runtime tables and the entity world
// into one session with a strict global lifecycle:
//
//	UNINITIALIZED -> MUTABLE -> EXECUTABLE -> (Cleanup) -> UNINITIALIZED
//
// Staging is only legal while MUTABLE; entities only exist while EXECUTABLE.
// Only one session may be live per process.
package gensys

import (
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/l1jgo/gensys/internal/core/ecs"
	"github.com/l1jgo/gensys/internal/core/event"
	"github.com/l1jgo/gensys/internal/core/system"
	"github.com/l1jgo/gensys/internal/gensys/compiler"
	"github.com/l1jgo/gensys/internal/gensys/interm"
	"github.com/l1jgo/gensys/internal/gensys/runtime"
)

// State is the global lifecycle state.
type State uint8

const (
	Uninitialized State = iota
	Mutable
	Executable
)

func (s State) String() string {
	switch s {
	case Uninitialized:
		return "UNINITIALIZED"
	case Mutable:
		return "MUTABLE"
	case Executable:
		return "EXECUTABLE"
	}
	return fmt.Sprintf("State(%d)", uint8(s))
}

var (
	// ErrUnknownArchetype indicates a lookup of an archetype that did not compile.
	ErrUnknownArchetype = errors.New("gensys: unknown archetype")
	// ErrUnknownComponent indicates a lookup of a component that did not compile.
	ErrUnknownComponent = errors.New("gensys: unknown component")
	// ErrUnknownGenre indicates a lookup of a genre that did not compile.
	ErrUnknownGenre = errors.New("gensys: unknown genre")
)

var live atomic.Pointer[Session]

// Session owns every piece of gensys state.
type Session struct {
	id    string
	state State
	log   *zap.Logger

	compiler *compiler.Compiler
	tables   *runtime.Tables
	world    *ecs.World
	bus      *event.Bus
	runner   *system.Runner
	resolver runtime.PatternResolver

	listeners listeners
}

// NewSession builds an uninitialized session. capacity presizes the entity
// store.
func NewSession(log *zap.Logger, capacity int) *Session {
	if log == nil {
		log = zap.NewNop()
	}
	s := &Session{
		log:    log,
		bus:    event.NewBus(),
		runner: system.NewRunner(log),
	}
	s.compiler = compiler.New(log)
	s.world = ecs.NewWorld(nil, capacity)
	s.world.Registry().Register(ecs.ObserverFunc(s.emitLifecycle))
	s.runner.Register(&EventDispatchSystem{bus: s.bus})
	s.runner.Register(&TickSystem{sess: s})
	s.runner.Register(&CleanupSystem{world: s.world, log: log})
	return s
}

func (s *Session) ID() string                   { return s.id }
func (s *Session) State() State                 { return s.state }
func (s *Session) Log() *zap.Logger             { return s.log }
func (s *Session) Bus() *event.Bus              { return s.bus }
func (s *Session) Compiler() *compiler.Compiler { return s.compiler }

// Tables returns the compiled tables; nil unless EXECUTABLE.
func (s *Session) Tables() *runtime.Tables { return s.tables }

// World returns the entity store. It is empty unless EXECUTABLE.
func (s *Session) World() *ecs.World { return s.world }

func (s *Session) require(want State, op string) {
	if s.state != want {
		panic(fmt.Sprintf("gensys: %s requires %s, session is %s", op, want, s.state))
	}
}

// Initialize starts a MUTABLE phase under a fresh session id.
func (s *Session) Initialize() {
	s.require(Uninitialized, "Initialize")
	if !live.CompareAndSwap(nil, s) {
		panic("gensys: another session is live")
	}
	s.id = uuid.New().String()
	s.compiler.Reset()
	s.state = Mutable
	s.log.Info("gensys session initialized", zap.String("session", s.id))
}

// StageComponent stages comp under id.
func (s *Session) StageComponent(id string, comp *interm.Comp) {
	s.require(Mutable, "StageComponent")
	s.compiler.StageComponent(id, comp)
}

// StageArchetype stages arche under id.
func (s *Session) StageArchetype(id string, arche *interm.Arche) {
	s.require(Mutable, "StageArchetype")
	s.compiler.StageArchetype(id, arche)
}

// StageGenre stages genre under id.
func (s *Session) StageGenre(id string, genre *interm.Genre) {
	s.require(Mutable, "StageGenre")
	s.compiler.StageGenre(id, genre)
}

// GetStagedComponent returns the component staged under id.
func (s *Session) GetStagedComponent(id string) (*interm.Comp, bool) {
	s.require(Mutable, "GetStagedComponent")
	return s.compiler.GetStagedComponent(id)
}

// GetStagedGenre returns the genre staged under id.
func (s *Session) GetStagedGenre(id string) (*interm.Genre, bool) {
	s.require(Mutable, "GetStagedGenre")
	return s.compiler.GetStagedGenre(id)
}

// Staged reports how many components, archetypes and genres are staged.
func (s *Session) Staged() (comps, arches, genres int) {
	s.require(Mutable, "Staged")
	return s.compiler.Counts()
}

// SetPatternResolver installs the evaluator for function-form genre patterns.
func (s *Session) SetPatternResolver(r runtime.PatternResolver) {
	s.resolver = r
	if s.tables != nil {
		s.tables.SetResolver(r)
	}
}

// Compile replaces the runtime tables with a compilation of everything staged
// and moves the session to EXECUTABLE.
func (s *Session) Compile() {
	s.require(Mutable, "Compile")
	start := time.Now()
	tables := s.compiler.Compile()
	if s.resolver != nil {
		tables.SetResolver(s.resolver)
	}
	s.world.Reset(tables)
	if s.tables != nil {
		s.tables.Release()
	}
	s.tables = tables
	s.state = Executable
	event.Emit(s.bus, event.Compiled{
		Components: len(tables.Comps),
		Archetypes: len(tables.Arches),
		Genres:     len(tables.Genres),
	})
	s.log.Info("gensys session executable",
		zap.String("session", s.id), zap.Duration("compile", time.Since(start)))
}

// Cleanup releases everything and returns to UNINITIALIZED. It is valid from
// any state.
func (s *Session) Cleanup() {
	s.world.Reset(nil)
	if s.tables != nil {
		s.tables.Release()
		s.tables = nil
	}
	s.compiler.Reset()
	s.bus.Reset()
	s.listeners = listeners{}
	if s.state != Uninitialized {
		s.log.Info("gensys session cleaned up", zap.String("session", s.id))
	}
	live.CompareAndSwap(s, nil)
	s.state = Uninitialized
	s.id = ""
}

// Tick runs one dispatch, tick and cleanup pass.
func (s *Session) Tick(dt time.Duration) {
	s.require(Executable, "Tick")
	s.runner.Tick(dt)
}

// Ticks is the number of completed ticks.
func (s *Session) Ticks() uint64 { return s.runner.Ticks() }

// FindArche looks up a compiled archetype by id.
func (s *Session) FindArche(id string) (*runtime.Arche, error) {
	s.require(Executable, "FindArche")
	a, ok := s.tables.FindArche(string(interm.Sym(id)))
	if !ok {
		return nil, fmt.Errorf("archetype [%s]: %w", id, ErrUnknownArchetype)
	}
	return a, nil
}

// FindComp looks up a compiled component by id.
func (s *Session) FindComp(id string) (*runtime.Comp, error) {
	s.require(Executable, "FindComp")
	c, ok := s.tables.FindComp(string(interm.Sym(id)))
	if !ok {
		return nil, fmt.Errorf("component [%s]: %w", id, ErrUnknownComponent)
	}
	return c, nil
}

// FindGenre looks up a compiled genre by id.
func (s *Session) FindGenre(id string) (*runtime.Genre, error) {
	s.require(Executable, "FindGenre")
	g, ok := s.tables.FindGenre(string(interm.Sym(id)))
	if !ok {
		return nil, fmt.Errorf("genre <%s>: %w", id, ErrUnknownGenre)
	}
	return g, nil
}

// NewEntity creates an unspawned entity of the named archetype.
func (s *Session) NewEntity(arche string) (ecs.Handle, error) {
	a, err := s.FindArche(arche)
	if err != nil {
		return ecs.NoHandle, err
	}
	return s.world.New(a.ID), nil
}

func (s *Session) emitLifecycle(h ecs.Handle, aid runtime.ArcheID, c ecs.Change) {
	name := s.tables.Arche(aid).Name
	switch c {
	case ecs.Created:
		event.Emit(s.bus, event.EntityCreated{Handle: h, Arche: name})
	case ecs.Spawned:
		event.Emit(s.bus, event.EntitySpawned{Handle: h, Arche: name})
	case ecs.Killed:
		event.Emit(s.bus, event.EntityKilled{Handle: h, Arche: name})
	case ecs.Deleted:
		event.Emit(s.bus, event.EntityDeleted{Handle: h, Arche: name})
	}
}
