package gensys

import (
	"time"

	"go.uber.org/zap"

	"github.com/l1jgo/gensys/internal/core/ecs"
	"github.com/l1jgo/gensys/internal/core/event"
	"github.com/l1jgo/gensys/internal/core/system"
	"github.com/l1jgo/gensys/internal/gensys/runtime"
)

// EventDispatchSystem delivers the previous tick's events.
type EventDispatchSystem struct {
	bus *event.Bus
}

func (s *EventDispatchSystem) Phase() system.Phase { return system.PhaseDispatch }

func (s *EventDispatchSystem) Update(time.Duration) {
	s.bus.SwapBuffers()
	s.bus.DispatchAll()
}

// CleanupSystem flushes entities queued with MarkForDeletion.
type CleanupSystem struct {
	world *ecs.World
	log   *zap.Logger
}

func (s *CleanupSystem) Phase() system.Phase { return system.PhaseCleanup }

func (s *CleanupSystem) Update(time.Duration) {
	if n := s.world.FlushDeletions(); n > 0 {
		s.log.Debug("flushed deletions", zap.Int("count", n))
	}
}

// Listener callbacks. Each receives the entity through the lens it was
// registered with.
type (
	ArcheListener func(h ecs.Handle, dt time.Duration)
	CompListener  func(v ecs.Cview, dt time.Duration)
	GenreListener func(v ecs.Genview, dt time.Duration)
)

type archeListener struct {
	arche runtime.ArcheID
	fn    ArcheListener
}

type compListener struct {
	comp runtime.CompID
	fn   CompListener
}

type genreListener struct {
	genre runtime.GenreID
	fn    GenreListener
}

type listeners struct {
	arches []archeListener
	comps  []compListener
	genres []genreListener
}

func (l listeners) empty() bool {
	return len(l.arches) == 0 && len(l.comps) == 0 && len(l.genres) == 0
}

// OnArche calls fn each tick for every alive entity of archetype id.
func (s *Session) OnArche(id string, fn ArcheListener) error {
	a, err := s.FindArche(id)
	if err != nil {
		return err
	}
	s.listeners.arches = append(s.listeners.arches, archeListener{arche: a.ID, fn: fn})
	return nil
}

// OnComp calls fn each tick for every alive entity containing component id.
func (s *Session) OnComp(id string, fn CompListener) error {
	c, err := s.FindComp(id)
	if err != nil {
		return err
	}
	s.listeners.comps = append(s.listeners.comps, compListener{comp: c.ID, fn: fn})
	return nil
}

// OnGenre calls fn each tick for every alive entity matching genre id.
func (s *Session) OnGenre(id string, fn GenreListener) error {
	g, err := s.FindGenre(id)
	if err != nil {
		return err
	}
	s.listeners.genres = append(s.listeners.genres, genreListener{genre: g.ID, fn: fn})
	return nil
}

// TickSystem offers every alive entity to the registered listeners. The
// world is iterated in deferred mode, so listeners may create and delete
// entities; the changes are applied when the pass ends.
type TickSystem struct {
	sess *Session
}

func (s *TickSystem) Phase() system.Phase { return system.PhaseTick }

func (s *TickSystem) Update(dt time.Duration) {
	l := s.sess.listeners
	if l.empty() {
		return
	}
	w := s.sess.world
	w.ForEach(func(h ecs.Handle) {
		for _, al := range l.arches {
			if aid, ok := w.Arche(h); ok && aid == al.arche && alive(w, h) {
				al.fn(h, dt)
			}
		}
		for _, cl := range l.comps {
			if !alive(w, h) {
				break
			}
			if v, err := w.Cview(h, cl.comp); err == nil {
				cl.fn(v, dt)
			}
		}
		for _, gl := range l.genres {
			if !alive(w, h) {
				break
			}
			if v, err := w.Genview(h, gl.genre); err == nil {
				gl.fn(v, dt)
			}
		}
	})
	w.ApplyPending()
}

func alive(w *ecs.World, h ecs.Handle) bool {
	f, ok := w.Flags(h)
	return ok && f.Alive()
}
