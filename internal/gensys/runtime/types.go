// Package runtime holds the compiled, execution-phase form of components,
// archetypes and genres. Objects live in session-owned arenas and refer to
// each other by small integer ids.
package runtime

import (
	"sort"

	"github.com/l1jgo/gensys/internal/core/pod"
	"github.com/l1jgo/gensys/internal/gensys/interm"
	"github.com/l1jgo/gensys/internal/gensys/prim"
)

type (
	CompID  int32
	ArcheID int32
	GenreID int32
)

// Prim is a member resolved to a location. Offset is a byte offset into a POD
// chunk for numeric types and an index into the string or function array for
// STR and FUNC.
type Prim struct {
	Type   prim.Type
	Offset int
}

// Comp maps member symbols to their offsets within one component's slice.
type Comp struct {
	ID      CompID
	Name    string
	Members map[interm.Symbol]Prim

	// Sizes of this component's slice of each aggregate array.
	PodSize    int
	NumStrings int
	NumFuncs   int
}

// Member looks up a resolved member.
func (c *Comp) Member(sym interm.Symbol) (Prim, bool) {
	p, ok := c.Members[sym]
	return p, ok
}

// Aggindex is where one component's slice starts inside an archetype's
// aggregate POD chunk, string array and function array.
type Aggindex struct {
	Pod  int
	Str  int
	Func int
}

// Arche is the packed blueprint entities are created from.
type Arche struct {
	ID   ArcheID
	Name string

	Defaults *pod.Chunk
	Strings  []string
	// Funcs holds indices into the session's FuncTable, -1 for no function.
	Funcs []int

	// Comps is sorted for subset tests.
	Comps      []CompID
	Offsets    map[CompID]Aggindex
	Implements map[interm.Symbol]CompID
}

// Has reports whether the archetype contains c.
func (a *Arche) Has(c CompID) bool {
	i := sort.Search(len(a.Comps), func(i int) bool { return a.Comps[i] >= c })
	return i < len(a.Comps) && a.Comps[i] == c
}

// HasAll reports whether every id in the sorted slice want is present.
func (a *Arche) HasAll(want []CompID) bool {
	i := 0
	for _, c := range want {
		for i < len(a.Comps) && a.Comps[i] < c {
			i++
		}
		if i == len(a.Comps) || a.Comps[i] != c {
			return false
		}
		i++
	}
	return true
}

// Offset returns the aggregate offsets of component c.
func (a *Arche) Offset(c CompID) (Aggindex, bool) {
	agg, ok := a.Offsets[c]
	return agg, ok
}

// Implement returns the component bound to an implementation name.
func (a *Arche) Implement(sym interm.Symbol) (CompID, bool) {
	c, ok := a.Implements[sym]
	return c, ok
}

// Alias resolves a genre member to a component member.
type Alias struct {
	Comp CompID
	Prim Prim
}

// Pattern is one compiled genre alternative. Requires is sorted and unique.
// Function patterns carry Func and are resolved per archetype; Remap renames
// the members such a function reports (local name -> reported name) when the
// pattern was inherited from another genre.
type Pattern struct {
	Requires []CompID
	Aliases  map[interm.Symbol]Alias
	Statics  map[interm.Symbol]prim.Value
	Func     prim.FuncRef
	Remap    map[interm.Symbol]interm.Symbol
}

// IsFunc reports whether the pattern is resolved by the script layer.
func (p *Pattern) IsFunc() bool { return p.Func != nil }

// Genre is a compiled structural interface.
type Genre struct {
	ID        GenreID
	Name      string
	Interface map[interm.Symbol]prim.Type
	// Required holds the components every pattern needs.
	Required []CompID
	Patterns []*Pattern

	matches map[ArcheID]*Pattern
}

// SortedUnique sorts ids and drops duplicates in place.
func SortedUnique(ids []CompID) []CompID {
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	out := ids[:0]
	for _, c := range ids {
		if len(out) == 0 || out[len(out)-1] != c {
			out = append(out, c)
		}
	}
	return out
}

// Intersect returns the ids present in both sorted slices.
func Intersect(a, b []CompID) []CompID {
	out := make([]CompID, 0, min(len(a), len(b)))
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		switch {
		case a[i] < b[j]:
			i++
		case a[i] > b[j]:
			j++
		default:
			out = append(out, a[i])
			i++
			j++
		}
	}
	return out
}
