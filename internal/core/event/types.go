package event

import "github.com/l1jgo/gensys/internal/core/ecs"

// Entity lifecycle events. Arche is the archetype's id as staged.

type EntityCreated struct {
	Handle ecs.Handle
	Arche  string
}

type EntitySpawned struct {
	Handle ecs.Handle
	Arche  string
}

type EntityKilled struct {
	Handle ecs.Handle
	Arche  string
}

type EntityDeleted struct {
	Handle ecs.Handle
	Arche  string
}

// Compiled is emitted after a session compiles.
type Compiled struct {
	Components int
	Archetypes int
	Genres     int
}
