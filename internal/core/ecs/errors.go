package ecs

import "errors"

var (
	// ErrNoEntity indicates a handle that does not resolve to a live entity.
	ErrNoEntity = errors.New("ecs: no such entity")
	// ErrEntitySpawned indicates deletion of an entity that is spawned and not yet killed.
	ErrEntitySpawned = errors.New("ecs: entity is spawned")
	// ErrNotSpawnable indicates spawning an entity that was already spawned.
	ErrNotSpawnable = errors.New("ecs: entity cannot be spawned")
	// ErrNotAlive indicates killing an entity that is not spawned or already killed.
	ErrNotAlive = errors.New("ecs: entity is not alive")
	// ErrNoComponent indicates a view onto a component the entity's archetype lacks.
	ErrNoComponent = errors.New("ecs: archetype lacks component")
	// ErrNoMatch indicates a genre view onto an archetype the genre does not match.
	ErrNoMatch = errors.New("ecs: archetype does not match genre")
	// ErrUnknownMember indicates a member the view does not expose.
	ErrUnknownMember = errors.New("ecs: unknown member")
	// ErrTypeMismatch indicates a write whose value type differs from the member type.
	ErrTypeMismatch = errors.New("ecs: type mismatch")
	// ErrFuncReadOnly indicates a write to a FUNC member.
	ErrFuncReadOnly = errors.New("ecs: function members are read-only")
	// ErrStaticMember indicates a write to a genre member bound to a static value.
	ErrStaticMember = errors.New("ecs: static genre member is read-only")
	// ErrStaleView indicates a view created against tables that have since been replaced.
	ErrStaleView = errors.New("ecs: view outlived its tables")
)
