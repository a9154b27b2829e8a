package ecs

import "github.com/l1jgo/gensys/internal/gensys/runtime"

// Change is a lifecycle transition reported to observers.
type Change uint8

const (
	Created Change = iota
	Spawned
	Killed
	Deleted
)

func (c Change) String() string {
	switch c {
	case Created:
		return "created"
	case Spawned:
		return "spawned"
	case Killed:
		return "killed"
	case Deleted:
		return "deleted"
	}
	return "unknown"
}

// Observer is told about every lifecycle transition. Deleted is reported
// while the entity still resolves.
type Observer interface {
	EntityChanged(h Handle, arche runtime.ArcheID, c Change)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(h Handle, arche runtime.ArcheID, c Change)

func (f ObserverFunc) EntityChanged(h Handle, arche runtime.ArcheID, c Change) { f(h, arche, c) }

// Registry fans lifecycle transitions out to every registered observer.
type Registry struct {
	observers []Observer
}

func NewRegistry() *Registry {
	return &Registry{
		observers: make([]Observer, 0, 4),
	}
}

// Register adds an observer.
func (r *Registry) Register(o Observer) {
	r.observers = append(r.observers, o)
}

func (r *Registry) notify(h Handle, arche runtime.ArcheID, c Change) {
	for _, o := range r.observers {
		o.EntityChanged(h, arche, c)
	}
}
