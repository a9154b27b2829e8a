package schema

import (
	"os"
	"path/filepath"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/l1jgo/gensys/internal/gensys/compiler"
	"github.com/l1jgo/gensys/internal/gensys/interm"
	"github.com/l1jgo/gensys/internal/gensys/prim"
)

const world = `
components:
  Position:
    x: [f32, 0]
    y: {type: f32, value: 0}
  Name:
    label: [str, nobody]
    nick: [str]
archetypes:
  Player:
    pos:
      __is: Position
      x: 1
      y: "2"
    name:
      __is: Name
      label: Hero
  Broken:
    pos:
      __is: Position
      x: not-a-number
  Orphan:
    thing:
      __is: Missing
genres:
  Horizontal:
    interface: {h: f32}
    patterns:
      - from: Locatable
        aliases: {h: gx}
  Locatable:
    interface:
      gx: f32
      kind: str
    patterns:
      - matching: {p: Position, n: Name}
        aliases: {gx: p.x, kind: n.label}
      - from: Position
        aliases: {gx: y}
        static: {kind: thing}
`

func stage(t *testing.T, src string) (*compiler.Compiler, Stats, *observer.ObservedLogs) {
	t.Helper()
	core, logs := observer.New(zapcore.WarnLevel)
	log := zap.New(core)
	doc, err := Parse("world.yaml", []byte(src))
	if err != nil {
		t.Fatal(err)
	}
	c := compiler.New(log)
	return c, Stage(c, log, doc), logs
}

func TestStageWorld(t *testing.T) {
	c, stats, logs := stage(t, world)
	if stats.Components != 2 || stats.Archetypes != 1 || stats.Genres != 2 || stats.Skipped != 2 {
		t.Fatalf("stats = %+v", stats)
	}
	if logs.FilterMessage("schema object skipped").Len() != 2 {
		t.Fatalf("skip warnings = %d", logs.Len())
	}

	name, _ := c.GetStagedComponent("Name")
	if v := name.Members["nick"]; !v.IsEmpty() || v.Type() != prim.StrT {
		t.Fatalf("nick = %#v", v)
	}
	player, ok := c.GetStagedArchetype("Player")
	if !ok || len(player.Implements) != 2 {
		t.Fatalf("Player = %+v", player)
	}
	if player.Implements[0].Symbol != "pos" || player.Implements[1].Symbol != "name" {
		t.Fatalf("implementation order lost: %+v", player.Implements)
	}
	if v := player.Implements[0].Values["y"]; v != prim.F32(2) {
		t.Fatalf("numeric string override = %v", v)
	}

	loc, _ := c.GetStagedGenre("Locatable")
	if len(loc.Patterns) != 2 || loc.Patterns[1].Statics["kind"] != prim.Str("thing") {
		t.Fatalf("Locatable patterns = %+v", loc.Patterns)
	}
	if _, ok := c.GetStagedGenre("Horizontal"); !ok {
		t.Fatalf("genre depending on a later genre was not staged")
	}

	tb := c.Compile()
	if _, ok := tb.FindGenre("Horizontal"); !ok {
		t.Fatalf("Horizontal did not compile")
	}
}

func TestBadDefinitions(t *testing.T) {
	cases := map[string]string{
		"unknown type": `
components:
  A: {x: [u8, 1]}`,
		"func default": `
components:
  A: {f: [func, print]}`,
		"override type": `
components:
  A: {x: [i32, 1]}
archetypes:
  B:
    a: {__is: A, x: [f64, 1]}`,
		"missing __is": `
components:
  A: {x: [i32, 1]}
archetypes:
  B:
    a: {x: 2}`,
		"from and matching": `
components:
  A: {x: [i32, 1]}
genres:
  G:
    interface: {v: i32}
    patterns:
      - from: A
        matching: {a: A}`,
		"static type": `
genres:
  G:
    interface: {v: i32}
    patterns:
      - matching: {}
        static: {v: abc}`,
		"cycle": `
genres:
  G:
    interface: {}
    patterns: [{from: H}]
  H:
    interface: {}
    patterns: [{from: G}]`,
	}
	for name, src := range cases {
		_, stats, logs := stage(t, src)
		if stats.Skipped == 0 || logs.Len() == 0 {
			t.Errorf("%s: nothing skipped (%+v)", name, stats)
		}
	}
}

func TestTypedValueForms(t *testing.T) {
	_, stats, _ := stage(t, `
components:
  A:
    a: [i64, "42"]
    b: {type: f64}
    c: [i32, 7.0]
`)
	if stats.Components != 1 || stats.Skipped != 0 {
		t.Fatalf("stats = %+v", stats)
	}
}

func TestIntegerValuesAreExact(t *testing.T) {
	c, stats, logs := stage(t, `
components:
  Big:
    id: [i64, 9007199254740993]
    low: [i64, -9223372036854775808]
    n: [i32, 2147483647]
  Wide:
    n: [i32, 3000000000]
  Frac:
    n: [i32, 1.5]
  Overflow:
    n: [i64, 9223372036854775808]
archetypes:
  Bad:
    b:
      __is: Big
      n: 1.9
`)
	if stats.Components != 1 || stats.Archetypes != 0 || stats.Skipped != 4 {
		t.Fatalf("stats = %+v", stats)
	}
	if n := logs.FilterMessage("schema object skipped").Len(); n != 4 {
		t.Fatalf("%d skip warnings, want 4", n)
	}
	big, ok := c.GetStagedComponent("Big")
	if !ok {
		t.Fatalf("Big not staged")
	}
	want := map[string]prim.Value{
		"id":  prim.I64(9007199254740993),
		"low": prim.I64(-9223372036854775808),
		"n":   prim.I32(2147483647),
	}
	for m, v := range want {
		if got := big.Members[interm.Sym(m)]; got != v {
			t.Errorf("%s = %v, want %v", m, got, v)
		}
	}
}

func TestLoadDir(t *testing.T) {
	dir := t.TempDir()
	write := func(name, src string) {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(src), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	write("b_arche.yaml", "archetypes:\n  Thing:\n    a: {__is: A}\n")
	write("a_comp.yml", "components:\n  A: {x: [i32, 3]}\n")
	write("notes.txt", "not yaml: [")

	c := compiler.New(nil)
	stats, err := LoadDir(dir, c, nil)
	if err != nil {
		t.Fatal(err)
	}
	if stats.Components != 1 || stats.Archetypes != 1 {
		t.Fatalf("stats = %+v", stats)
	}

	if _, err := LoadDir(filepath.Join(dir, "missing"), c, nil); err != nil {
		t.Fatalf("missing dir: %v", err)
	}
	write("c_bad.yaml", "components: [")
	if _, err := LoadDir(dir, compiler.New(nil), nil); err == nil {
		t.Fatalf("malformed file accepted")
	}
}

func TestParseRejectsNonMapping(t *testing.T) {
	_, stats, _ := stage(t, "components: [1, 2]")
	if stats.Skipped != 1 {
		t.Fatalf("stats = %+v", stats)
	}
	if _, err := Parse("x", []byte("components: {a: [")); err == nil {
		t.Fatalf("truncated yaml parsed")
	}
}
