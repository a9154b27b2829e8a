// Package interm holds the author-facing model of components, archetypes and
// genres. Objects are validated as they are built, so anything that reaches
// the compiler is already type-correct.
package interm

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/l1jgo/gensys/internal/gensys/prim"
)

var (
	// ErrDuplicateSymbol indicates a symbol defined twice in one scope.
	ErrDuplicateSymbol = errors.New("interm: duplicate symbol")
	// ErrUnknownMember indicates a reference to a member the source does not define.
	ErrUnknownMember = errors.New("interm: unknown member")
	// ErrTypeMismatch indicates a value whose type differs from the declared type.
	ErrTypeMismatch = errors.New("interm: type mismatch")
	// ErrUnknownType indicates a member declared without a usable primitive type.
	ErrUnknownType = errors.New("interm: unknown primitive type")
	// ErrDanglingRef indicates a reference to a component or genre that is not staged.
	ErrDanglingRef = errors.New("interm: dangling reference")
	// ErrDuplicateComponent indicates an archetype implementing one component twice.
	ErrDuplicateComponent = errors.New("interm: component implemented twice")
	// ErrBadAlias indicates an alias that cannot be resolved against its pattern.
	ErrBadAlias = errors.New("interm: bad alias")
	// ErrOverlap indicates an interface member both aliased and given a static value.
	ErrOverlap = errors.New("interm: alias and static overlap")
)

// Symbol names a member or an archetype-local implementation.
type Symbol string

// Sym normalises an authored name to NFC so visually equal keys intern to the
// same symbol.
func Sym(s string) Symbol {
	return Symbol(norm.NFC.String(s))
}

// SortedSymbols returns the keys of m in ascending order.
func SortedSymbols[V any](m map[Symbol]V) []Symbol {
	out := make([]Symbol, 0, len(m))
	for s := range m {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Comp is a named set of typed member defaults.
type Comp struct {
	Name    string
	Members map[Symbol]prim.Value
}

func NewComp(name string) *Comp {
	return &Comp{Name: name, Members: make(map[Symbol]prim.Value)}
}

// Define adds a member. An Empty value declares the type without a default.
func (c *Comp) Define(sym Symbol, v prim.Value) error {
	if v == nil || v.Type() == prim.Unknown {
		return fmt.Errorf("member %q of %s: %w", sym, c.Name, ErrUnknownType)
	}
	if _, dup := c.Members[sym]; dup {
		return fmt.Errorf("member %q of %s: %w", sym, c.Name, ErrDuplicateSymbol)
	}
	c.Members[sym] = v
	return nil
}

// Implement binds a component to an archetype-local symbol, with overrides.
type Implement struct {
	Symbol Symbol
	CompID string
	Comp   *Comp
	Values map[Symbol]prim.Value
}

// Arche is a composition of component implementations. Implements keeps the
// order they were added in; the compiler lays components out in that order.
type Arche struct {
	Name       string
	Implements []Implement
}

func NewArche(name string) *Arche {
	return &Arche{Name: name}
}

// Implement adds an implementation after checking every override against the
// component's declared members.
func (a *Arche) Implement(sym Symbol, compID string, comp *Comp, values map[Symbol]prim.Value) error {
	if comp == nil {
		return fmt.Errorf("implementation %q: component [%s]: %w", sym, compID, ErrDanglingRef)
	}
	for _, im := range a.Implements {
		if im.Symbol == sym {
			return fmt.Errorf("implementation %q of %s: %w", sym, a.Name, ErrDuplicateSymbol)
		}
		if im.Comp == comp {
			return fmt.Errorf("implementation %q of %s: [%s] already used by %q: %w",
				sym, a.Name, compID, im.Symbol, ErrDuplicateComponent)
		}
	}
	checked := make(map[Symbol]prim.Value, len(values))
	for member, v := range values {
		def, ok := comp.Members[member]
		if !ok {
			return fmt.Errorf("implementation %q: member %q not in component [%s]: %w",
				sym, member, compID, ErrUnknownMember)
		}
		if v == nil || v.Type() != def.Type() {
			got := prim.Unknown
			if v != nil {
				got = v.Type()
			}
			return fmt.Errorf("implementation %q: member %q wants %s, got %s: %w",
				sym, member, def.Type(), got, ErrTypeMismatch)
		}
		checked[member] = v
	}
	a.Implements = append(a.Implements, Implement{
		Symbol: sym,
		CompID: compID,
		Comp:   comp,
		Values: checked,
	})
	return nil
}

// PatternKind selects how a genre pattern is matched.
type PatternKind uint8

const (
	// PatternTable matches archetypes containing every component in Matching.
	PatternTable PatternKind = iota
	// PatternGenre matches whatever the source genre matches.
	PatternGenre
	// PatternFunc is resolved by the embedding script layer.
	PatternFunc
)

// Alias points an interface member at a source member. For table patterns
// Local names an entry of Matching; for genre patterns it is empty and Member
// is a member of the source genre's interface.
type Alias struct {
	Local  Symbol
	Member Symbol
}

// MatchRef is one required component of a table pattern.
type MatchRef struct {
	ID   string
	Comp *Comp
}

// Pattern is one structural alternative of a genre.
type Pattern struct {
	Kind     PatternKind
	Matching map[Symbol]MatchRef
	GenreID  string
	Genre    *Genre
	Aliases  map[Symbol]Alias
	Statics  map[Symbol]prim.Value
	Func     prim.FuncRef
}

// MatchingPattern builds a table pattern from local names and "local.member"
// alias paths.
func MatchingPattern(matching map[Symbol]MatchRef, aliases map[Symbol]string) (Pattern, error) {
	p := Pattern{Kind: PatternTable, Matching: matching, Aliases: make(map[Symbol]Alias, len(aliases))}
	for dest, path := range aliases {
		local, member, err := SplitAlias(path)
		if err != nil {
			return Pattern{}, fmt.Errorf("alias %q: %w", dest, err)
		}
		p.Aliases[dest] = Alias{Local: local, Member: member}
	}
	return p, nil
}

// FromComp builds a table pattern over a single component. aliases maps
// interface members to members of that component.
func FromComp(id string, comp *Comp, aliases map[Symbol]Symbol) Pattern {
	local := Sym(id)
	p := Pattern{
		Kind:     PatternTable,
		Matching: map[Symbol]MatchRef{local: {ID: id, Comp: comp}},
		Aliases:  make(map[Symbol]Alias, len(aliases)),
	}
	for dest, member := range aliases {
		p.Aliases[dest] = Alias{Local: local, Member: member}
	}
	return p
}

// FromGenre builds a pattern reusing another genre's matching. aliases maps
// interface members to members of the source genre's interface.
func FromGenre(id string, g *Genre, aliases map[Symbol]Symbol) Pattern {
	p := Pattern{Kind: PatternGenre, GenreID: id, Genre: g, Aliases: make(map[Symbol]Alias, len(aliases))}
	for dest, member := range aliases {
		p.Aliases[dest] = Alias{Member: member}
	}
	return p
}

// FuncPattern wraps an opaque script function.
func FuncPattern(fn prim.FuncRef) Pattern {
	return Pattern{Kind: PatternFunc, Func: fn}
}

// SplitAlias separates "local.member".
func SplitAlias(path string) (Symbol, Symbol, error) {
	dot := strings.IndexByte(path, '.')
	if dot <= 0 || dot == len(path)-1 {
		return "", "", fmt.Errorf("%q is not of the form local.member: %w", path, ErrBadAlias)
	}
	return Sym(path[:dot]), Sym(path[dot+1:]), nil
}

// Genre is a typed interface plus the ordered patterns that satisfy it.
type Genre struct {
	Name      string
	Interface map[Symbol]prim.Type
	Patterns  []Pattern
}

func NewGenre(name string, iface map[Symbol]prim.Type) (*Genre, error) {
	for sym, t := range iface {
		if t == prim.Unknown {
			return nil, fmt.Errorf("interface member %q of %s: %w", sym, name, ErrUnknownType)
		}
	}
	if iface == nil {
		iface = make(map[Symbol]prim.Type)
	}
	return &Genre{Name: name, Interface: iface}, nil
}

// AddPattern validates p against the interface and its sources, then appends
// it. Pattern order is matching priority.
func (g *Genre) AddPattern(p Pattern) error {
	idx := len(g.Patterns) + 1
	fail := func(err error) error {
		return fmt.Errorf("genre %s pattern #%d: %w", g.Name, idx, err)
	}
	switch p.Kind {
	case PatternFunc:
		if p.Func == nil {
			return fail(fmt.Errorf("nil function: %w", ErrDanglingRef))
		}
	case PatternTable:
		for local, ref := range p.Matching {
			if ref.Comp == nil {
				return fail(fmt.Errorf("%q -> [%s]: %w", local, ref.ID, ErrDanglingRef))
			}
		}
		for dest, a := range p.Aliases {
			want, ok := g.Interface[dest]
			if !ok {
				return fail(fmt.Errorf("alias %q not in interface: %w", dest, ErrUnknownMember))
			}
			ref, ok := p.Matching[a.Local]
			if !ok {
				return fail(fmt.Errorf("alias %q: %q missing from matching: %w", dest, a.Local, ErrBadAlias))
			}
			def, ok := ref.Comp.Members[a.Member]
			if !ok {
				return fail(fmt.Errorf("alias %q: member %q not in component [%s]: %w",
					dest, a.Member, ref.ID, ErrUnknownMember))
			}
			if def.Type() != want {
				return fail(fmt.Errorf("alias %q: expected %s, got %s: %w", dest, want, def.Type(), ErrTypeMismatch))
			}
		}
	case PatternGenre:
		if p.Genre == nil {
			return fail(fmt.Errorf("genre [%s]: %w", p.GenreID, ErrDanglingRef))
		}
		if p.Genre == g {
			return fail(fmt.Errorf("genre [%s] aliases itself: %w", p.GenreID, ErrBadAlias))
		}
		for dest, a := range p.Aliases {
			want, ok := g.Interface[dest]
			if !ok {
				return fail(fmt.Errorf("alias %q not in interface: %w", dest, ErrUnknownMember))
			}
			got, ok := p.Genre.Interface[a.Member]
			if !ok {
				return fail(fmt.Errorf("alias %q: member %q not in genre [%s]: %w",
					dest, a.Member, p.GenreID, ErrUnknownMember))
			}
			if got != want {
				return fail(fmt.Errorf("alias %q: expected %s, got %s: %w", dest, want, got, ErrTypeMismatch))
			}
		}
	default:
		return fail(fmt.Errorf("kind %d: %w", p.Kind, ErrBadAlias))
	}
	for dest, v := range p.Statics {
		want, ok := g.Interface[dest]
		if !ok {
			return fail(fmt.Errorf("static %q not in interface: %w", dest, ErrUnknownMember))
		}
		if v == nil || v.IsEmpty() || v.Type() != want {
			return fail(fmt.Errorf("static %q: expected %s: %w", dest, want, ErrTypeMismatch))
		}
		if _, both := p.Aliases[dest]; both {
			return fail(fmt.Errorf("%q: %w", dest, ErrOverlap))
		}
	}
	g.Patterns = append(g.Patterns, p)
	return nil
}
