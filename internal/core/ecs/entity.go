package ecs

import (
	"github.com/l1jgo/gensys/internal/core/pod"
	"github.com/l1jgo/gensys/internal/gensys/runtime"
)

// Handle identifies an entity independent of where it is stored. Handles
// increase monotonically and are never reused within a World.
type Handle int64

// NoHandle never resolves.
const NoHandle Handle = -1

// HeaderSize is the flag word stored in front of each instance payload.
const HeaderSize = pod.Align

// Flags is the lifecycle word. KILLED implies SPAWNED.
type Flags uint64

const (
	FlagSpawned Flags = 1 << iota
	FlagKilled
	FlagLuaOwned
)

func (f Flags) Spawned() bool  { return f&FlagSpawned != 0 }
func (f Flags) Killed() bool   { return f&FlagKilled != 0 }
func (f Flags) LuaOwned() bool { return f&FlagLuaOwned != 0 }

// Alive reports spawned and not yet killed.
func (f Flags) Alive() bool { return f.Spawned() && !f.Killed() }

type entity struct {
	handle  Handle
	arche   runtime.ArcheID
	chunk   *pod.Chunk
	strings []string
}

func (e *entity) flags() Flags {
	return Flags(pod.Get[uint64](e.chunk, 0))
}

func (e *entity) setFlags(f Flags) {
	pod.Set(e.chunk, 0, uint64(f))
}

// newEntity copies the archetype's defaults behind a zeroed header.
func newEntity(h Handle, a *runtime.Arche) entity {
	n := a.Defaults.Size()
	chunk := pod.New(HeaderSize + n)
	pod.Copy(a.Defaults, 0, chunk, HeaderSize, n)
	return entity{
		handle:  h,
		arche:   a.ID,
		chunk:   chunk,
		strings: append([]string(nil), a.Strings...),
	}
}
