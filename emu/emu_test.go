package emu

import (
	"strings"
	"testing"

	"github.com/roxplc/rox/plan"
	"github.com/roxplc/rox/project"
)

func buildController(t *testing.T) *project.Controller {
	t.Helper()
	c := project.NewController("Line1")
	c.Type = "1756-L83ES"

	p := project.NewProgram("MainProgram")
	p.MainRoutineName = "Main"
	main := project.NewRoutine("Main")
	if err := p.AddRoutine(main); err != nil {
		t.Fatal(err)
	}
	if err := c.AddProgram(p); err != nil {
		t.Fatal(err)
	}
	if _, err := main.AddRung("XIC(Start)OTE(Motor);", "", -1); err != nil {
		t.Fatal(err)
	}

	if err := c.AddModule(project.NewModule("Local", "1756-L83ES")); err != nil {
		t.Fatal(err)
	}
	if err := c.AddModule(project.NewModule("Flex1", "1794-AENT")); err != nil {
		t.Fatal(err)
	}
	if err := c.AddModule(project.NewModule("Drive1", "PowerFlex755")); err != nil {
		t.Fatal(err)
	}
	return c
}

func TestGenerateBuildsRoutineTagsAndModuleRungs(t *testing.T) {
	c := buildController(t)
	g := New(c.Type)

	s, err := g.Generate(c, Config{})
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Execute(); err != nil {
		t.Fatal(err)
	}

	for _, name := range []string{"EmuToggleInhibit", "EmuTestMode", "EmuInhibit", "EmuUninhibit", "EmuLocalMode"} {
		if _, ok := c.Tags.Get(name); !ok {
			t.Errorf("tag %s not created", name)
		}
	}

	p, _ := c.Program("MainProgram")
	rt, ok := p.Routine("zZ998_Emulation")
	if !ok {
		t.Fatal("emulation routine not created")
	}

	// Header + setup + toggle + one rung per non-Local module.
	if rt.RungCount() != 5 {
		t.Fatalf("emulation rungs = %d, want 5", rt.RungCount())
	}
	for _, r := range rt.Rungs() {
		if !strings.HasPrefix(r.Comment(), "<@EMU>") {
			t.Errorf("rung %d comment %q lacks marker", r.Number(), r.Comment())
		}
	}
	for i, want := range map[int]string{
		3: "SSV(Module,Flex1,Mode,EmuLocalMode);",
		4: "SSV(Module,Drive1,Mode,EmuLocalMode);",
	} {
		if got := rt.Rung(i).Text(); got != want {
			t.Errorf("rung %d = %q, want %q", i, got, want)
		}
	}

	// The branch rungs must parse into real branch structure.
	if depth := rt.Rung(1).MaxBranchDepth(); depth != 1 {
		t.Errorf("setup rung branch depth = %d, want 1", depth)
	}

	main, _ := p.Routine("Main")
	if got := main.Rung(0).Text(); got != "JSR(zZ998_Emulation,0);" {
		t.Errorf("main rung 0 = %q", got)
	}
}

func TestGenerateIsIdempotentOnTags(t *testing.T) {
	c := buildController(t)
	g := New("")

	s, err := g.Generate(c, Config{})
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Execute(); err != nil {
		t.Fatal(err)
	}

	// A second generation plans no duplicate tags or routine; only the
	// rung additions repeat.
	s2, err := g.Generate(c, Config{})
	if err != nil {
		t.Fatal(err)
	}
	for _, a := range s2.Actions() {
		if a.Kind == plan.ActionAddControllerTag {
			t.Errorf("second generation re-plans tag %s", a.Tag.Name())
		}
		if a.Kind == plan.ActionAddRoutine {
			t.Errorf("second generation re-plans routine %s", a.Routine)
		}
	}
}

func TestRemoveMirrorsGenerate(t *testing.T) {
	c := buildController(t)
	g := New("")

	gen, err := g.Generate(c, Config{})
	if err != nil {
		t.Fatal(err)
	}
	if err := gen.Execute(); err != nil {
		t.Fatal(err)
	}

	rem, err := g.Remove(c, Config{})
	if err != nil {
		t.Fatal(err)
	}
	if err := rem.Execute(); err != nil {
		t.Fatal(err)
	}

	p, _ := c.Program("MainProgram")
	if _, ok := p.Routine("zZ998_Emulation"); ok {
		t.Error("emulation routine still present after removal")
	}
	if _, ok := c.Tags.Get("EmuTestMode"); ok {
		t.Error("emulation tag still present after removal")
	}
	main, _ := p.Routine("Main")
	if main.CallsRoutine("zZ998_Emulation") {
		t.Error("main routine still calls the emulation routine")
	}
	if main.RungCount() != 1 || main.Rung(0).Text() != "XIC(Start)OTE(Motor);" {
		t.Errorf("main routine not restored: %d rungs", main.RungCount())
	}
}

func TestTargetProgramMissing(t *testing.T) {
	c := buildController(t)
	g := New("")
	if _, err := g.Generate(c, Config{TargetProgram: "Ghost"}); err == nil {
		t.Error("Generate with missing target program succeeded")
	}
}

func TestRegistryFallback(t *testing.T) {
	if g := New("never-registered-type"); g == nil {
		t.Fatal("New returned nil for unregistered type")
	}
	found := false
	for _, typ := range Types() {
		if typ == "" {
			found = true
		}
	}
	if !found {
		t.Error("base generator not registered")
	}
}
