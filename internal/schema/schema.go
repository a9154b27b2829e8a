// Package schema loads component, archetype and genre definitions from YAML
// files and stages them. A file looks like:
//
//	components:
//	  Position:
//	    x: [f32, 0]
//	    y: {type: f32, value: 0}
//	archetypes:
//	  Player:
//	    pos:
//	      __is: Position
//	      x: 1
//	genres:
//	  Locatable:
//	    interface: {gx: f32}
//	    patterns:
//	      - from: Position
//	        aliases: {gx: x}
//
// Objects that fail to parse are logged and skipped; the rest still stage.
package schema

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/l1jgo/gensys/internal/gensys/interm"
	"github.com/l1jgo/gensys/internal/gensys/prim"
)

// ErrSyntax indicates a definition that does not have the expected shape.
var ErrSyntax = errors.New("schema: bad definition")

// Target receives staged objects and resolves references to earlier ones.
type Target interface {
	StageComponent(id string, c *interm.Comp)
	StageArchetype(id string, a *interm.Arche)
	StageGenre(id string, g *interm.Genre)
	GetStagedComponent(id string) (*interm.Comp, bool)
	GetStagedGenre(id string) (*interm.Genre, bool)
}

// Document is one parsed schema file. Mapping nodes are kept so authored
// order survives.
type Document struct {
	Name       string    `yaml:"-"`
	Components yaml.Node `yaml:"components"`
	Archetypes yaml.Node `yaml:"archetypes"`
	Genres     yaml.Node `yaml:"genres"`
}

// Stats counts what a load staged and skipped.
type Stats struct {
	Components int
	Archetypes int
	Genres     int
	Skipped    int
}

// Parse decodes one schema file.
func Parse(name string, data []byte) (*Document, error) {
	var doc Document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse %s: %w", name, err)
	}
	doc.Name = name
	return &doc, nil
}

// LoadDir parses every .yaml and .yml file under dir in name order and
// stages their contents. A missing directory loads nothing.
func LoadDir(dir string, t Target, log *zap.Logger) (Stats, error) {
	var paths []string
	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ext := filepath.Ext(path); !d.IsDir() && (ext == ".yaml" || ext == ".yml") {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Stats{}, nil
		}
		return Stats{}, fmt.Errorf("scan %s: %w", dir, err)
	}
	sort.Strings(paths)

	docs := make([]*Document, 0, len(paths))
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return Stats{}, fmt.Errorf("read %s: %w", path, err)
		}
		doc, err := Parse(path, data)
		if err != nil {
			return Stats{}, err
		}
		docs = append(docs, doc)
	}
	return Stage(t, log, docs...), nil
}

// Stage stages every component of every document, then every archetype,
// then every genre.
func Stage(t Target, log *zap.Logger, docs ...*Document) Stats {
	if log == nil {
		log = zap.NewNop()
	}
	l := &loader{t: t, log: log}
	for _, d := range docs {
		l.each(d.Name, "component", &d.Components, l.component)
	}
	for _, d := range docs {
		l.each(d.Name, "archetype", &d.Archetypes, l.archetype)
	}
	l.genres(docs)
	return l.stats
}

type loader struct {
	t     Target
	log   *zap.Logger
	stats Stats
}

func (l *loader) skip(file, kind, id string, err error) {
	l.stats.Skipped++
	l.log.Warn("schema object skipped",
		zap.String("file", file), zap.String("kind", kind), zap.String("id", id), zap.Error(err))
}

// each calls fn for every key of a mapping node in authored order.
func (l *loader) each(file, kind string, n *yaml.Node, fn func(id string, body *yaml.Node) error) {
	if n.Kind == 0 {
		return
	}
	if n.Kind != yaml.MappingNode {
		l.skip(file, kind, "", fmt.Errorf("%ss must be a mapping: %w", kind, ErrSyntax))
		return
	}
	for i := 0; i+1 < len(n.Content); i += 2 {
		id := n.Content[i].Value
		if err := fn(id, n.Content[i+1]); err != nil {
			l.skip(file, kind, id, err)
		}
	}
}

func (l *loader) component(id string, body *yaml.Node) error {
	if body.Kind != yaml.MappingNode {
		return fmt.Errorf("component body: %w", ErrSyntax)
	}
	c := interm.NewComp(id)
	for i := 0; i+1 < len(body.Content); i += 2 {
		sym := interm.Sym(body.Content[i].Value)
		v, err := typedValue(body.Content[i+1])
		if err != nil {
			return fmt.Errorf("member %q: %w", sym, err)
		}
		if err := c.Define(sym, v); err != nil {
			return err
		}
	}
	l.t.StageComponent(id, c)
	l.stats.Components++
	return nil
}

const isKey = "__is"

func (l *loader) archetype(id string, body *yaml.Node) error {
	if body.Kind != yaml.MappingNode {
		return fmt.Errorf("archetype body: %w", ErrSyntax)
	}
	a := interm.NewArche(id)
	for i := 0; i+1 < len(body.Content); i += 2 {
		sym := interm.Sym(body.Content[i].Value)
		impl := body.Content[i+1]
		if impl.Kind != yaml.MappingNode {
			return fmt.Errorf("implementation %q: %w", sym, ErrSyntax)
		}
		var compID string
		overrides := make(map[interm.Symbol]*yaml.Node)
		for j := 0; j+1 < len(impl.Content); j += 2 {
			k, v := impl.Content[j].Value, impl.Content[j+1]
			if k == isKey {
				compID = v.Value
				continue
			}
			overrides[interm.Sym(k)] = v
		}
		if compID == "" {
			return fmt.Errorf("implementation %q has no %s: %w", sym, isKey, ErrSyntax)
		}
		comp, ok := l.t.GetStagedComponent(compID)
		if !ok {
			return fmt.Errorf("implementation %q: component [%s]: %w", sym, compID, interm.ErrDanglingRef)
		}
		values := make(map[interm.Symbol]prim.Value, len(overrides))
		for member, n := range overrides {
			def, ok := comp.Members[member]
			if !ok {
				return fmt.Errorf("implementation %q: member %q not in [%s]: %w",
					sym, member, compID, interm.ErrUnknownMember)
			}
			v, err := valueOf(def.Type(), n)
			if err != nil {
				return fmt.Errorf("implementation %q member %q: %w", sym, member, err)
			}
			values[member] = v
		}
		if err := a.Implement(sym, compID, comp, values); err != nil {
			return err
		}
	}
	l.t.StageArchetype(id, a)
	l.stats.Archetypes++
	return nil
}

type pendingGenre struct {
	file string
	id   string
	body *yaml.Node
}

// genres stages in passes so a genre may take patterns from one defined
// later. Whatever still fails once a pass makes no progress is skipped.
func (l *loader) genres(docs []*Document) {
	var queue []pendingGenre
	for _, d := range docs {
		n := &d.Genres
		if n.Kind == 0 {
			continue
		}
		if n.Kind != yaml.MappingNode {
			l.skip(d.Name, "genre", "", fmt.Errorf("genres must be a mapping: %w", ErrSyntax))
			continue
		}
		for i := 0; i+1 < len(n.Content); i += 2 {
			queue = append(queue, pendingGenre{file: d.Name, id: n.Content[i].Value, body: n.Content[i+1]})
		}
	}
	for len(queue) > 0 {
		var retry []pendingGenre
		var errs []error
		for _, p := range queue {
			if err := l.genre(p.id, p.body); err != nil {
				retry = append(retry, p)
				errs = append(errs, err)
			}
		}
		if len(retry) == len(queue) {
			for i, p := range retry {
				l.skip(p.file, "genre", p.id, errs[i])
			}
			return
		}
		queue = retry
	}
}

type genreBody struct {
	Interface map[string]yaml.Node `yaml:"interface"`
	Patterns  []patternBody        `yaml:"patterns"`
}

type patternBody struct {
	From     string               `yaml:"from"`
	Matching map[string]string    `yaml:"matching"`
	Aliases  map[string]string    `yaml:"aliases"`
	Static   map[string]yaml.Node `yaml:"static"`
}

func (l *loader) genre(id string, body *yaml.Node) error {
	var gb genreBody
	if err := body.Decode(&gb); err != nil {
		return fmt.Errorf("genre body: %v: %w", err, ErrSyntax)
	}
	iface := make(map[interm.Symbol]prim.Type, len(gb.Interface))
	for name, n := range gb.Interface {
		n := n
		t, err := typeOf(&n)
		if err != nil {
			return fmt.Errorf("interface member %q: %w", name, err)
		}
		iface[interm.Sym(name)] = t
	}
	g, err := interm.NewGenre(id, iface)
	if err != nil {
		return err
	}
	for i, pb := range gb.Patterns {
		p, err := l.pattern(pb)
		if err != nil {
			return fmt.Errorf("pattern #%d: %w", i+1, err)
		}
		if p.Statics, err = statics(iface, pb.Static); err != nil {
			return fmt.Errorf("pattern #%d: %w", i+1, err)
		}
		if err := g.AddPattern(p); err != nil {
			return err
		}
	}
	l.t.StageGenre(id, g)
	l.stats.Genres++
	return nil
}

func (l *loader) pattern(pb patternBody) (interm.Pattern, error) {
	switch {
	case pb.From != "" && pb.Matching != nil:
		return interm.Pattern{}, fmt.Errorf("from and matching are exclusive: %w", ErrSyntax)
	case pb.From != "":
		aliases := make(map[interm.Symbol]interm.Symbol, len(pb.Aliases))
		for dest, src := range pb.Aliases {
			aliases[interm.Sym(dest)] = interm.Sym(src)
		}
		if c, ok := l.t.GetStagedComponent(pb.From); ok {
			return interm.FromComp(pb.From, c, aliases), nil
		}
		if g, ok := l.t.GetStagedGenre(pb.From); ok {
			return interm.FromGenre(pb.From, g, aliases), nil
		}
		return interm.Pattern{}, fmt.Errorf("from [%s]: %w", pb.From, interm.ErrDanglingRef)
	default:
		matching := make(map[interm.Symbol]interm.MatchRef, len(pb.Matching))
		for local, compID := range pb.Matching {
			c, ok := l.t.GetStagedComponent(compID)
			if !ok {
				return interm.Pattern{}, fmt.Errorf("matching %q -> [%s]: %w", local, compID, interm.ErrDanglingRef)
			}
			matching[interm.Sym(local)] = interm.MatchRef{ID: compID, Comp: c}
		}
		aliases := make(map[interm.Symbol]string, len(pb.Aliases))
		for dest, path := range pb.Aliases {
			aliases[interm.Sym(dest)] = path
		}
		return interm.MatchingPattern(matching, aliases)
	}
}

func statics(iface map[interm.Symbol]prim.Type, raw map[string]yaml.Node) (map[interm.Symbol]prim.Value, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	out := make(map[interm.Symbol]prim.Value, len(raw))
	for name, n := range raw {
		n := n
		sym := interm.Sym(name)
		t, ok := iface[sym]
		if !ok {
			return nil, fmt.Errorf("static %q not in interface: %w", sym, interm.ErrUnknownMember)
		}
		v, err := valueOf(t, &n)
		if err != nil {
			return nil, fmt.Errorf("static %q: %w", sym, err)
		}
		out[sym] = v
	}
	return out, nil
}
