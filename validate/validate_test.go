package validate

import (
	"strings"
	"testing"

	"github.com/roxplc/rox/project"
)

// buildController assembles a controller with one unpaired input, one
// redundant coil pair, a diagnostic-tagged rung, and one unreferenced
// module.
func buildController(t *testing.T) *project.Controller {
	t.Helper()

	c := project.NewController("Line1")
	c.CommPath = "AB_ETH-1\\10.0.0.1\\Backplane\\0"

	for _, tag := range []*project.Tag{
		project.NewTag("Start", "BOOL"),
		project.NewTag("Stop", "BOOL"),
		project.NewTag("Motor", "BOOL"),
		project.NewTag("Lamp", "BOOL"),
		project.NewTag("Orphan", "BOOL"),
	} {
		if err := c.AddTag(tag); err != nil {
			t.Fatal(err)
		}
	}

	if err := c.AddModule(project.NewModule("Local", "1756-L83ES")); err != nil {
		t.Fatal(err)
	}
	if err := c.AddModule(project.NewModule("Flex1", "1794-AENT")); err != nil {
		t.Fatal(err)
	}

	p := project.NewProgram("MainProgram")
	p.MainRoutineName = "Main"
	rt := project.NewRoutine("Main")
	if err := p.AddRoutine(rt); err != nil {
		t.Fatal(err)
	}
	if err := c.AddProgram(p); err != nil {
		t.Fatal(err)
	}

	rungs := []struct{ text, comment string }{
		{"XIC(Start)XIO(Stop)OTE(Motor);", ""},
		{"XIC(Motor)OTE(Lamp);", ""},
		{"XIC(Orphan)OTE(Lamp);", ""},         // Lamp driven twice, Orphan never written
		{"XIC(S:FS)OTE(Motor.1);", ""},        // S:FS is ignored by default
		{"JSR(zZ999_Diagnostics,0);", ""},     // diagnostic by routine target
		{"XIC(Start)OTU(Motor);", "<@DIAG> watchdog"},
	}
	for _, r := range rungs {
		if _, err := rt.AddRung(r.text, r.comment, -1); err != nil {
			t.Fatal(err)
		}
	}
	return c
}

func findingsFor(fs []Finding, rule string) []Finding {
	var out []Finding
	for _, f := range fs {
		if f.Rule == rule {
			out = append(out, f)
		}
	}
	return out
}

func TestUnpairedInputs(t *testing.T) {
	c := buildController(t)
	fs := findingsFor(Run(c, DefaultOptions(), nil), "unpaired-inputs")

	var operands []string
	for _, f := range fs {
		operands = append(operands, f.Operand)
	}
	for _, want := range []string{"Orphan", "Start", "Stop"} {
		found := false
		for _, op := range operands {
			if op == want {
				found = true
			}
		}
		if !found {
			t.Errorf("unpaired-inputs missing %q; got %v", want, operands)
		}
	}
	for _, f := range fs {
		switch f.Operand {
		case "Motor", "Lamp", "S:FS":
			t.Errorf("operand %q reported unpaired", f.Operand)
		}
	}
}

func TestUnpairedInputsParentSuppression(t *testing.T) {
	c := buildController(t)
	// Motor.2 is never written itself, but its parent Motor is, so an
	// examine of Motor.2 must not report.
	rt, _ := mustRoutine(t, c)
	if _, err := rt.AddRung("XIC(Motor.2)OTE(Lamp);", "", -1); err != nil {
		t.Fatal(err)
	}
	for _, f := range findingsFor(Run(c, DefaultOptions(), nil), "unpaired-inputs") {
		if f.Operand == "Motor.2" {
			t.Errorf("Motor.2 reported unpaired despite written parent")
		}
	}
}

func TestRedundantCoils(t *testing.T) {
	c := buildController(t)
	fs := findingsFor(Run(c, DefaultOptions(), nil), "redundant-coils")

	if len(fs) != 2 {
		t.Fatalf("redundant-coils findings = %d, want 2: %v", len(fs), fs)
	}
	for _, f := range fs {
		if f.Operand != "Lamp" {
			t.Errorf("redundant coil operand = %q, want Lamp", f.Operand)
		}
	}
}

func TestDiagnosticRungs(t *testing.T) {
	c := buildController(t)
	fs := findingsFor(Run(c, DefaultOptions(), nil), "diagnostic-rungs")

	if len(fs) != 2 {
		t.Fatalf("diagnostic-rungs findings = %d, want 2: %v", len(fs), fs)
	}
	rungs := map[int]bool{}
	for _, f := range fs {
		rungs[f.Rung] = true
	}
	if !rungs[4] || !rungs[5] {
		t.Errorf("diagnostic rungs = %v, want rungs 4 and 5", rungs)
	}
}

func TestModuleReferences(t *testing.T) {
	c := buildController(t)
	fs := findingsFor(Run(c, DefaultOptions(), nil), "module-references")
	if len(fs) != 1 || fs[0].Operand != "Flex1" {
		t.Fatalf("module-references = %v, want one finding for Flex1", fs)
	}

	// An alias into the module's I/O image counts as a reference.
	if err := c.AddTag(project.NewAliasTag("FlexIn", "Flex1:1:I.Data.0")); err != nil {
		t.Fatal(err)
	}
	if fs := findingsFor(Run(c, DefaultOptions(), nil), "module-references"); len(fs) != 0 {
		t.Errorf("module-references after alias = %v, want none", fs)
	}
}

func TestCommPath(t *testing.T) {
	c := buildController(t)
	if fs := findingsFor(Run(c, DefaultOptions(), nil), "comm-path"); len(fs) != 0 {
		t.Errorf("comm-path with configured path = %v", fs)
	}
	c.CommPath = ""
	fs := findingsFor(Run(c, DefaultOptions(), nil), "comm-path")
	if len(fs) != 1 || !strings.Contains(fs[0].Message, "communication path") {
		t.Errorf("comm-path findings = %v", fs)
	}
}

func TestRunFilter(t *testing.T) {
	c := buildController(t)
	fs := Run(c, DefaultOptions(), func(id string) bool { return id == "redundant-coils" })
	for _, f := range fs {
		if f.Rule != "redundant-coils" {
			t.Errorf("filtered run produced rule %q", f.Rule)
		}
	}
	if len(fs) == 0 {
		t.Error("filtered run produced no findings")
	}
}

func mustRoutine(t *testing.T, c *project.Controller) (*project.Routine, *project.Program) {
	t.Helper()
	p, ok := c.Program("MainProgram")
	if !ok {
		t.Fatal("MainProgram missing")
	}
	rt, ok := p.Routine("Main")
	if !ok {
		t.Fatal("Main routine missing")
	}
	return rt, p
}
