package compiler

import (
	"go.uber.org/zap"

	"github.com/l1jgo/gensys/internal/gensys/interm"
)

// StagedType reports which kind of object an id is staged as.
type StagedType uint8

const (
	NotFound StagedType = iota
	StagedComponent
	StagedArchetype
	StagedGenre
)

func (s StagedType) String() string {
	switch s {
	case StagedComponent:
		return "component"
	case StagedArchetype:
		return "archetype"
	case StagedGenre:
		return "genre"
	}
	return "not found"
}

// Compiler holds staged intermediate objects until Compile. Components,
// archetypes and genres share one id namespace.
type Compiler struct {
	log    *zap.Logger
	comps  map[string]*interm.Comp
	arches map[string]*interm.Arche
	genres map[string]*interm.Genre
}

func New(log *zap.Logger) *Compiler {
	if log == nil {
		log = zap.NewNop()
	}
	c := &Compiler{log: log}
	c.Reset()
	return c
}

// Reset drops every staged object.
func (c *Compiler) Reset() {
	c.comps = make(map[string]*interm.Comp)
	c.arches = make(map[string]*interm.Arche)
	c.genres = make(map[string]*interm.Genre)
}

func key(id string) string { return string(interm.Sym(id)) }

// StagedType returns the kind id is currently staged as.
func (c *Compiler) StagedType(id string) StagedType {
	id = key(id)
	if _, ok := c.comps[id]; ok {
		return StagedComponent
	}
	if _, ok := c.arches[id]; ok {
		return StagedArchetype
	}
	if _, ok := c.genres[id]; ok {
		return StagedGenre
	}
	return NotFound
}

// evict removes whatever is staged under id and warns about it.
func (c *Compiler) evict(id string, incoming StagedType) {
	old := c.StagedType(id)
	if old == NotFound {
		return
	}
	c.log.Warn("staged object replaced",
		zap.String("id", id),
		zap.Stringer("old", old),
		zap.Stringer("new", incoming))
	c.unstage(id)
}

func (c *Compiler) unstage(id string) {
	delete(c.comps, id)
	delete(c.arches, id)
	delete(c.genres, id)
}

// StageComponent stages comp under id, replacing anything staged there.
func (c *Compiler) StageComponent(id string, comp *interm.Comp) {
	id = key(id)
	c.evict(id, StagedComponent)
	c.comps[id] = comp
}

// StageArchetype stages arche under id, replacing anything staged there.
func (c *Compiler) StageArchetype(id string, arche *interm.Arche) {
	id = key(id)
	c.evict(id, StagedArchetype)
	c.arches[id] = arche
}

// StageGenre stages genre under id, replacing anything staged there.
func (c *Compiler) StageGenre(id string, genre *interm.Genre) {
	id = key(id)
	c.evict(id, StagedGenre)
	c.genres[id] = genre
}

func (c *Compiler) GetStagedComponent(id string) (*interm.Comp, bool) {
	v, ok := c.comps[key(id)]
	return v, ok
}

func (c *Compiler) GetStagedArchetype(id string) (*interm.Arche, bool) {
	v, ok := c.arches[key(id)]
	return v, ok
}

func (c *Compiler) GetStagedGenre(id string) (*interm.Genre, bool) {
	v, ok := c.genres[key(id)]
	return v, ok
}

// Unstage removes id of any kind. It reports whether anything was removed.
func (c *Compiler) Unstage(id string) bool {
	id = key(id)
	if c.StagedType(id) == NotFound {
		return false
	}
	c.unstage(id)
	return true
}

// Counts returns the number of staged components, archetypes and genres.
func (c *Compiler) Counts() (comps, arches, genres int) {
	return len(c.comps), len(c.arches), len(c.genres)
}
