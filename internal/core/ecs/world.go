package ecs

import (
	"fmt"

	"github.com/l1jgo/gensys/internal/gensys/runtime"
)

// World is the entity store. Entities live in a dense slice; deletion swaps
// the last entity into the hole, so storage order is not stable and entities
// are only ever reached through their handle.
//
// While ForEach runs, creations go to a pending list and deletions are
// queued; both are merged by ApplyPending.
type World struct {
	tables   *runtime.Tables
	registry *Registry

	next     Handle
	index    map[Handle]int
	entities []entity

	iterating    bool
	pending      []entity
	pendingIndex map[Handle]int
	removed      map[Handle]struct{}
	removals     []Handle

	deleteQueue []Handle
}

func NewWorld(tables *runtime.Tables, capacity int) *World {
	if capacity < 0 {
		capacity = 0
	}
	return &World{
		tables:       tables,
		registry:     NewRegistry(),
		index:        make(map[Handle]int, capacity),
		entities:     make([]entity, 0, capacity),
		pendingIndex: make(map[Handle]int),
		removed:      make(map[Handle]struct{}),
		deleteQueue:  make([]Handle, 0, 64),
	}
}

func (w *World) Tables() *runtime.Tables { return w.tables }
func (w *World) Registry() *Registry     { return w.registry }

// Reset deletes every entity and switches to new tables. Handles keep
// counting up, so none from before the reset resolves again.
func (w *World) Reset(tables *runtime.Tables) {
	w.Clear()
	w.tables = tables
}

// Clear releases every entity without reporting lifecycle changes.
func (w *World) Clear() {
	if w.iterating {
		panic("ecs: Clear during ForEach")
	}
	for i := range w.entities {
		w.entities[i].chunk.Release()
	}
	for i := range w.pending {
		w.pending[i].chunk.Release()
	}
	w.entities = w.entities[:0]
	w.pending = w.pending[:0]
	w.removals = w.removals[:0]
	w.deleteQueue = w.deleteQueue[:0]
	w.index = make(map[Handle]int)
	w.pendingIndex = make(map[Handle]int)
	w.removed = make(map[Handle]struct{})
}

func (w *World) get(h Handle) *entity {
	if h == NoHandle {
		return nil
	}
	if _, gone := w.removed[h]; gone {
		return nil
	}
	if i, ok := w.index[h]; ok {
		return &w.entities[i]
	}
	if i, ok := w.pendingIndex[h]; ok {
		return &w.pending[i]
	}
	return nil
}

// New creates an unspawned entity from archetype aid.
func (w *World) New(aid runtime.ArcheID) Handle {
	a := w.tables.Arche(aid)
	h := w.next
	w.next++
	e := newEntity(h, a)
	if w.iterating {
		w.pendingIndex[h] = len(w.pending)
		w.pending = append(w.pending, e)
	} else {
		w.ApplyPending()
		w.index[h] = len(w.entities)
		w.entities = append(w.entities, e)
	}
	w.registry.notify(h, aid, Created)
	return h
}

// Exists reports whether h resolves.
func (w *World) Exists(h Handle) bool { return w.get(h) != nil }

// Len is the number of entities that resolve.
func (w *World) Len() int {
	return len(w.entities) + len(w.pending) - len(w.removed)
}

func (w *World) Flags(h Handle) (Flags, bool) {
	e := w.get(h)
	if e == nil {
		return 0, false
	}
	return e.flags(), true
}

func (w *World) Arche(h Handle) (runtime.ArcheID, bool) {
	e := w.get(h)
	if e == nil {
		return 0, false
	}
	return e.arche, true
}

// Spawn moves an unspawned entity to spawned.
func (w *World) Spawn(h Handle) error {
	e := w.get(h)
	if e == nil {
		return fmt.Errorf("spawn #%d: %w", h, ErrNoEntity)
	}
	f := e.flags()
	if f.Spawned() {
		return fmt.Errorf("spawn #%d: %w", h, ErrNotSpawnable)
	}
	e.setFlags(f | FlagSpawned)
	w.registry.notify(h, e.arche, Spawned)
	return nil
}

// Kill moves a spawned entity to killed.
func (w *World) Kill(h Handle) error {
	e := w.get(h)
	if e == nil {
		return fmt.Errorf("kill #%d: %w", h, ErrNoEntity)
	}
	f := e.flags()
	if !f.Alive() {
		return fmt.Errorf("kill #%d: %w", h, ErrNotAlive)
	}
	e.setFlags(f | FlagKilled)
	w.registry.notify(h, e.arche, Killed)
	return nil
}

// SetLuaOwned marks or clears script ownership.
func (w *World) SetLuaOwned(h Handle, owned bool) error {
	e := w.get(h)
	if e == nil {
		return fmt.Errorf("own #%d: %w", h, ErrNoEntity)
	}
	f := e.flags()
	if owned {
		f |= FlagLuaOwned
	} else {
		f &^= FlagLuaOwned
	}
	e.setFlags(f)
	return nil
}

// Delete removes an unspawned or killed entity. The handle stops resolving
// at once; during ForEach the storage is reclaimed by ApplyPending.
func (w *World) Delete(h Handle) error {
	e := w.get(h)
	if e == nil {
		return fmt.Errorf("delete #%d: %w", h, ErrNoEntity)
	}
	if e.flags().Alive() {
		return fmt.Errorf("delete #%d: %w", h, ErrEntitySpawned)
	}
	w.registry.notify(h, e.arche, Deleted)
	if w.iterating {
		w.removed[h] = struct{}{}
		w.removals = append(w.removals, h)
		return nil
	}
	w.ApplyPending()
	w.remove(h)
	return nil
}

// remove swaps the entity with the last one and pops it.
func (w *World) remove(h Handle) {
	i, ok := w.index[h]
	if !ok {
		panic(fmt.Sprintf("ecs: remove of unindexed handle %d", h))
	}
	w.entities[i].chunk.Release()
	last := len(w.entities) - 1
	if i != last {
		w.entities[i] = w.entities[last]
		w.index[w.entities[i].handle] = i
	}
	w.entities[last] = entity{}
	w.entities = w.entities[:last]
	delete(w.index, h)
}

// MarkForDeletion queues h for FlushDeletions.
func (w *World) MarkForDeletion(h Handle) {
	w.deleteQueue = append(w.deleteQueue, h)
}

// FlushDeletions kills and deletes every queued entity that still exists and
// returns how many were deleted.
func (w *World) FlushDeletions() int {
	n := 0
	for _, h := range w.deleteQueue {
		f, ok := w.Flags(h)
		if !ok {
			continue
		}
		if f.Alive() {
			_ = w.Kill(h)
		}
		if w.Delete(h) == nil {
			n++
		}
	}
	w.deleteQueue = w.deleteQueue[:0]
	return n
}

// ForEach calls fn for every entity, including ones created by fn during
// the traversal. Entities deleted during the traversal are skipped from
// then on. Structural changes are merged by ApplyPending afterwards.
func (w *World) ForEach(fn func(Handle)) {
	if w.iterating {
		panic("ecs: nested ForEach")
	}
	w.iterating = true
	defer func() { w.iterating = false }()

	n := len(w.entities)
	for i := 0; i < n; i++ {
		h := w.entities[i].handle
		if _, gone := w.removed[h]; gone {
			continue
		}
		fn(h)
	}
	for i := 0; i < len(w.pending); i++ {
		h := w.pending[i].handle
		if _, gone := w.removed[h]; gone {
			continue
		}
		fn(h)
	}
}

// ApplyPending merges creations and deletions queued during ForEach.
func (w *World) ApplyPending() {
	if w.iterating {
		panic("ecs: ApplyPending during ForEach")
	}
	for _, e := range w.pending {
		w.index[e.handle] = len(w.entities)
		w.entities = append(w.entities, e)
	}
	w.pending = w.pending[:0]
	if len(w.pendingIndex) > 0 {
		w.pendingIndex = make(map[Handle]int)
	}
	for _, h := range w.removals {
		w.remove(h)
	}
	w.removals = w.removals[:0]
	if len(w.removed) > 0 {
		w.removed = make(map[Handle]struct{})
	}
}

// Handles returns every resolving handle in storage order.
func (w *World) Handles() []Handle {
	out := make([]Handle, 0, w.Len())
	for _, list := range [][]entity{w.entities, w.pending} {
		for i := range list {
			if _, gone := w.removed[list[i].handle]; !gone {
				out = append(out, list[i].handle)
			}
		}
	}
	return out
}

// String renders h for logs and scripts.
func (w *World) String(h Handle) string {
	e := w.get(h)
	if e == nil {
		return fmt.Sprintf("<Entity #%d (deleted)>", h)
	}
	return fmt.Sprintf("<Entity #%d arche %s>", h, w.tables.Arche(e.arche).Name)
}
