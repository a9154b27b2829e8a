package compiler

import (
	"reflect"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/l1jgo/gensys/internal/core/pod"
	"github.com/l1jgo/gensys/internal/gensys/interm"
	"github.com/l1jgo/gensys/internal/gensys/prim"
	"github.com/l1jgo/gensys/internal/gensys/runtime"
)

func TestPartition(t *testing.T) {
	var p Partition
	if p.MinimumSize() != 0 || !p.CanOccupy(0, 64) {
		t.Fatalf("empty partition must be free")
	}
	p.Occupy(4, 4)
	if p.CanOccupy(0, 8) || !p.CanOccupy(0, 4) || !p.CanOccupy(8, 100) {
		t.Fatalf("occupancy wrong")
	}
	if p.MinimumSize() != 8 {
		t.Fatalf("MinimumSize = %d, want 8", p.MinimumSize())
	}
	if off := p.Place(8, 8); off != 8 {
		t.Fatalf("Place(8,8) = %d, want 8", off)
	}
	if off := p.Place(4, 4); off != 0 {
		t.Fatalf("Place(4,4) = %d, want 0", off)
	}
	if p.MinimumSize() != 16 {
		t.Fatalf("MinimumSize = %d, want 16", p.MinimumSize())
	}
}

func mustComp(t *testing.T, name string, members map[interm.Symbol]prim.Value) *interm.Comp {
	t.Helper()
	c := interm.NewComp(name)
	for _, s := range interm.SortedSymbols(members) {
		if err := c.Define(s, members[s]); err != nil {
			t.Fatal(err)
		}
	}
	return c
}

func TestComponentPacking(t *testing.T) {
	c := New(nil)
	c.StageComponent("Mixed", mustComp(t, "Mixed", map[interm.Symbol]prim.Value{
		"a":     prim.I32(1),
		"b":     prim.F64(2),
		"c":     prim.F32(3),
		"d":     prim.Empty{T: prim.I64T},
		"e":     prim.I32(5),
		"label": prim.Str("hi"),
		"tag":   prim.Empty{T: prim.StrT},
	}))
	tb := c.Compile()
	rc, ok := tb.FindComp("Mixed")
	if !ok {
		t.Fatal("Mixed not compiled")
	}

	want := map[interm.Symbol]int{"b": 0, "d": 8, "a": 16, "c": 20, "e": 24}
	highest := 0
	for sym, off := range want {
		p := rc.Members[sym]
		if p.Offset != off {
			t.Errorf("%s at %d, want %d", sym, p.Offset, off)
		}
		if p.Offset%p.Type.Width() != 0 {
			t.Errorf("%s misaligned at %d", sym, p.Offset)
		}
		if end := p.Offset + p.Type.Width(); end > highest {
			highest = end
		}
	}
	for s1, p1 := range rc.Members {
		for s2, p2 := range rc.Members {
			if s1 == s2 || !p1.Type.IsPOD() || !p2.Type.IsPOD() {
				continue
			}
			if p1.Offset < p2.Offset+p2.Type.Width() && p2.Offset < p1.Offset+p1.Type.Width() {
				t.Errorf("%s and %s overlap", s1, s2)
			}
		}
	}
	if rc.PodSize != pod.RoundUp(highest) {
		t.Errorf("PodSize = %d, want %d", rc.PodSize, pod.RoundUp(highest))
	}
	if rc.Members["label"].Offset != 0 || rc.Members["tag"].Offset != 1 || rc.NumStrings != 2 {
		t.Errorf("string indices = %+v %+v", rc.Members["label"], rc.Members["tag"])
	}
}

func stagePlayer(t *testing.T, c *Compiler) {
	t.Helper()
	pos := mustComp(t, "Position", map[interm.Symbol]prim.Value{"x": prim.F32(0), "y": prim.F32(0)})
	name := mustComp(t, "Name", map[interm.Symbol]prim.Value{"label": prim.Str("nobody")})
	c.StageComponent("Position", pos)
	c.StageComponent("Name", name)

	a := interm.NewArche("Player")
	if err := a.Implement("pos", "Position", pos, map[interm.Symbol]prim.Value{"x": prim.F32(1), "y": prim.F32(2)}); err != nil {
		t.Fatal(err)
	}
	if err := a.Implement("name", "Name", name, map[interm.Symbol]prim.Value{"label": prim.Str("Hero")}); err != nil {
		t.Fatal(err)
	}
	c.StageArchetype("Player", a)
}

func TestArchetypeOverridesWin(t *testing.T) {
	c := New(nil)
	stagePlayer(t, c)
	tb := c.Compile()

	a, ok := tb.FindArche("Player")
	if !ok {
		t.Fatal("Player not compiled")
	}
	pos, _ := tb.FindComp("Position")
	name, _ := tb.FindComp("Name")
	agg := a.Offsets[pos.ID]
	if got := pod.Get[float32](a.Defaults, agg.Pod+pos.Members["x"].Offset); got != 1 {
		t.Errorf("x = %v, want 1", got)
	}
	if got := pod.Get[float32](a.Defaults, agg.Pod+pos.Members["y"].Offset); got != 2 {
		t.Errorf("y = %v, want 2", got)
	}
	if got := a.Strings[a.Offsets[name.ID].Str+name.Members["label"].Offset]; got != "Hero" {
		t.Errorf("label = %q, want Hero", got)
	}
	if cid, ok := a.Implement("name"); !ok || cid != name.ID {
		t.Errorf("implementation lookup failed")
	}
	if !a.HasAll(runtime.SortedUnique([]runtime.CompID{pos.ID, name.ID})) {
		t.Errorf("archetype component set = %v", a.Comps)
	}
}

func TestArchetypeSlicesAreContiguous(t *testing.T) {
	c := New(nil)
	small := mustComp(t, "Small", map[interm.Symbol]prim.Value{"n": prim.I32(7)})
	big := mustComp(t, "Big", map[interm.Symbol]prim.Value{"v": prim.F64(1.5), "w": prim.I64(9)})
	c.StageComponent("Small", small)
	c.StageComponent("Big", big)
	a := interm.NewArche("Both")
	_ = a.Implement("s", "Small", small, nil)
	_ = a.Implement("b", "Big", big, nil)
	c.StageArchetype("Both", a)
	tb := c.Compile()

	ra, _ := tb.FindArche("Both")
	rs, _ := tb.FindComp("Small")
	rb, _ := tb.FindComp("Big")
	if ra.Offsets[rs.ID].Pod != 0 || ra.Offsets[rb.ID].Pod != rs.PodSize {
		t.Fatalf("offsets = %+v", ra.Offsets)
	}
	if ra.Defaults.Size() != rs.PodSize+rb.PodSize {
		t.Fatalf("default chunk %d bytes", ra.Defaults.Size())
	}
	if got := pod.Get[int32](ra.Defaults, rs.Members["n"].Offset); got != 7 {
		t.Errorf("n = %d", got)
	}
	base := ra.Offsets[rb.ID].Pod
	if got := pod.Get[float64](ra.Defaults, base+rb.Members["v"].Offset); got != 1.5 {
		t.Errorf("v = %v", got)
	}
	if got := pod.Get[int64](ra.Defaults, base+rb.Members["w"].Offset); got != 9 {
		t.Errorf("w = %v", got)
	}
}

func TestRestageWarnsAndLastWins(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	c := New(zap.New(core))

	c.StageComponent("Health", mustComp(t, "Health", map[interm.Symbol]prim.Value{"hp": prim.I32(10)}))
	c.StageComponent("Health", mustComp(t, "Health", map[interm.Symbol]prim.Value{"hp": prim.I32(99)}))

	if n := logs.FilterMessage("staged object replaced").Len(); n != 1 {
		t.Fatalf("replacement warnings = %d, want 1", n)
	}
	hp := mustComp(t, "X", nil)
	c.StageComponent("Shared", hp)
	c.StageArchetype("Shared", interm.NewArche("Shared"))
	if c.StagedType("Shared") != StagedArchetype {
		t.Fatalf("Shared staged as %v", c.StagedType("Shared"))
	}
	if _, ok := c.GetStagedComponent("Shared"); ok {
		t.Fatalf("component under reused id was not evicted")
	}
	entry := logs.FilterMessage("staged object replaced").All()[1]
	if entry.ContextMap()["old"] != "component" || entry.ContextMap()["new"] != "archetype" {
		t.Fatalf("warning context = %v", entry.ContextMap())
	}

	staged, _ := c.GetStagedComponent("Health")
	a := interm.NewArche("Body")
	_ = a.Implement("h", "Health", staged, nil)
	c.StageArchetype("Body", a)

	tb := c.Compile()
	ra, _ := tb.FindArche("Body")
	rc, _ := tb.FindComp("Health")
	if got := pod.Get[int32](ra.Defaults, rc.Members["hp"].Offset); got != 99 {
		t.Fatalf("hp = %d, want second definition 99", got)
	}
}

func TestUnstage(t *testing.T) {
	c := New(nil)
	c.StageGenre("G", &interm.Genre{Name: "G"})
	if !c.Unstage("G") || c.Unstage("G") {
		t.Fatalf("Unstage reports wrong result")
	}
	if c.StagedType("G") != NotFound {
		t.Fatalf("G still staged")
	}
}

func TestArchetypeWithReplacedComponentIsSkipped(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	c := New(zap.New(core))
	stagePlayer(t, c)
	c.StageComponent("Name", mustComp(t, "Name", map[interm.Symbol]prim.Value{"label": prim.Str("")}))

	tb := c.Compile()
	if _, ok := tb.FindArche("Player"); ok {
		t.Fatalf("Player compiled against an evicted component")
	}
	if logs.FilterMessage("archetype skipped").Len() != 1 {
		t.Fatalf("missing skip warning")
	}
}

type fnRef struct{ name string }

func TestFunctionValuesAreInterned(t *testing.T) {
	c := New(nil)
	shared := &fnRef{"update"}
	other := &fnRef{"draw"}
	a := mustComp(t, "A", map[interm.Symbol]prim.Value{"f": prim.Fn{Ref: shared}})
	b := mustComp(t, "B", map[interm.Symbol]prim.Value{"g": prim.Fn{Ref: shared}, "h": prim.Empty{T: prim.FuncT}})
	c.StageComponent("A", a)
	c.StageComponent("B", b)
	arche := interm.NewArche("AB")
	_ = arche.Implement("a", "A", a, nil)
	_ = arche.Implement("b", "B", b, map[interm.Symbol]prim.Value{"h": prim.Fn{Ref: other}})
	c.StageArchetype("AB", arche)

	tb := c.Compile()
	ra, _ := tb.FindArche("AB")
	if len(ra.Funcs) != 3 {
		t.Fatalf("funcs = %v", ra.Funcs)
	}
	if ra.Funcs[0] != ra.Funcs[1] || ra.Funcs[0] == -1 {
		t.Fatalf("shared function interned twice: %v", ra.Funcs)
	}
	if tb.Funcs.Get(ra.Funcs[2]) != other {
		t.Fatalf("override not applied to function slot")
	}
	if tb.Funcs.Len() != 2 {
		t.Fatalf("func table has %d entries, want 2", tb.Funcs.Len())
	}
}

func TestGenreCompilation(t *testing.T) {
	c := New(nil)
	stagePlayer(t, c)
	pos, _ := c.GetStagedComponent("Position")
	name, _ := c.GetStagedComponent("Name")

	locatable, _ := interm.NewGenre("Locatable", map[interm.Symbol]prim.Type{"gx": prim.F32T, "kind": prim.StrT})
	both, _ := interm.MatchingPattern(map[interm.Symbol]interm.MatchRef{
		"p": {ID: "Position", Comp: pos},
		"n": {ID: "Name", Comp: name},
	}, map[interm.Symbol]string{"gx": "p.x", "kind": "n.label"})
	if err := locatable.AddPattern(both); err != nil {
		t.Fatal(err)
	}
	onlyPos := interm.FromComp("Position", pos, map[interm.Symbol]interm.Symbol{"gx": "y"})
	onlyPos.Statics = map[interm.Symbol]prim.Value{"kind": prim.Str("thing")}
	if err := locatable.AddPattern(onlyPos); err != nil {
		t.Fatal(err)
	}
	c.StageGenre("Locatable", locatable)

	horizontal, _ := interm.NewGenre("Horizontal", map[interm.Symbol]prim.Type{"h": prim.F32T, "k": prim.StrT})
	if err := horizontal.AddPattern(interm.FromGenre("Locatable", locatable, map[interm.Symbol]interm.Symbol{"h": "gx", "k": "kind"})); err != nil {
		t.Fatal(err)
	}
	c.StageGenre("Horizontal", horizontal)

	tb := c.Compile()
	rpos, _ := tb.FindComp("Position")
	rname, _ := tb.FindComp("Name")

	rl, ok := tb.FindGenre("Locatable")
	if !ok || len(rl.Patterns) != 2 {
		t.Fatalf("Locatable = %+v", rl)
	}
	if !reflect.DeepEqual(rl.Required, []runtime.CompID{rpos.ID}) {
		t.Fatalf("required intersection = %v, want [Position]", rl.Required)
	}
	if a := rl.Patterns[0].Aliases["kind"]; a.Comp != rname.ID || a.Prim != rname.Members["label"] {
		t.Fatalf("kind alias = %+v", a)
	}

	rh, ok := tb.FindGenre("Horizontal")
	if !ok || len(rh.Patterns) != 2 {
		t.Fatalf("Horizontal = %+v", rh)
	}
	if a := rh.Patterns[0].Aliases["h"]; a.Comp != rpos.ID || a.Prim != rpos.Members["x"] {
		t.Fatalf("flattened h = %+v", a)
	}
	if a := rh.Patterns[1].Aliases["h"]; a.Prim != rpos.Members["y"] {
		t.Fatalf("second flattened h = %+v", a)
	}
	if v := rh.Patterns[1].Statics["k"]; v != prim.Str("thing") {
		t.Fatalf("static carried through as %v", v)
	}

	player, _ := tb.FindArche("Player")
	p, ok := tb.Match(rh.ID, player.ID)
	if !ok || p != rh.Patterns[0] {
		t.Fatalf("Player should match the first Horizontal pattern")
	}
}

func TestGenreCycleIsSkipped(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	c := New(zap.New(core))
	a, _ := interm.NewGenre("A", nil)
	b, _ := interm.NewGenre("B", nil)
	if err := a.AddPattern(interm.FromGenre("B", b, nil)); err != nil {
		t.Fatal(err)
	}
	if err := b.AddPattern(interm.FromGenre("A", a, nil)); err != nil {
		t.Fatal(err)
	}
	ok, _ := interm.NewGenre("Fine", nil)
	c.StageGenre("A", a)
	c.StageGenre("B", b)
	c.StageGenre("Fine", ok)

	tb := c.Compile()
	if _, found := tb.FindGenre("A"); found {
		t.Errorf("A compiled despite cycle")
	}
	if _, found := tb.FindGenre("B"); found {
		t.Errorf("B compiled despite cycle")
	}
	if _, found := tb.FindGenre("Fine"); !found {
		t.Errorf("independent genre was dropped")
	}
	if logs.FilterMessage("genre skipped: cyclic pattern source").Len() == 0 {
		t.Errorf("no cycle warning")
	}
}

func TestFuncPatternFlattenedWithRemap(t *testing.T) {
	c := New(nil)
	fn := &fnRef{"match"}
	src, _ := interm.NewGenre("Src", map[interm.Symbol]prim.Type{"sx": prim.F32T})
	if err := src.AddPattern(interm.FuncPattern(fn)); err != nil {
		t.Fatal(err)
	}
	dst, _ := interm.NewGenre("Dst", map[interm.Symbol]prim.Type{"dx": prim.F32T})
	if err := dst.AddPattern(interm.FromGenre("Src", src, map[interm.Symbol]interm.Symbol{"dx": "sx"})); err != nil {
		t.Fatal(err)
	}
	c.StageGenre("Src", src)
	c.StageGenre("Dst", dst)

	tb := c.Compile()
	rd, _ := tb.FindGenre("Dst")
	if len(rd.Patterns) != 1 || rd.Patterns[0].Func != fn {
		t.Fatalf("patterns = %+v", rd.Patterns)
	}
	if got := rd.Patterns[0].Remap["dx"]; got != "sx" {
		t.Fatalf("remap = %v", rd.Patterns[0].Remap)
	}
	if len(rd.Required) != 0 {
		t.Fatalf("function pattern must not require components, got %v", rd.Required)
	}
}
