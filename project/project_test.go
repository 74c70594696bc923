package project

import (
	"errors"
	"testing"

	"github.com/roxplc/rox/logix"
)

func buildController(t *testing.T) (*Controller, *Program, *Routine) {
	t.Helper()
	c := NewController("Line1")
	p := NewProgram("MainProgram")
	p.MainRoutineName = "Main"
	rt := NewRoutine("Main")

	if err := p.AddRoutine(rt); err != nil {
		t.Fatal(err)
	}
	if err := c.AddProgram(p); err != nil {
		t.Fatal(err)
	}
	return c, p, rt
}

func TestTagTableDuplicateRejected(t *testing.T) {
	tt := NewTagTable(logix.ScopeController)
	if err := tt.Add(NewTag("Motor", "BOOL")); err != nil {
		t.Fatal(err)
	}
	if err := tt.Add(NewTag("Motor", "DINT")); !errors.Is(err, ErrDuplicate) {
		t.Errorf("duplicate Add err = %v, want ErrDuplicate", err)
	}
	if err := tt.Remove("Ghost"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Remove missing err = %v, want ErrNotFound", err)
	}
}

func TestTagScopeFromTable(t *testing.T) {
	ctrl := NewTagTable(logix.ScopeController)
	prog := NewTagTable(logix.ScopeProgram)

	a, b := NewTag("A", "BOOL"), NewTag("B", "BOOL")
	if err := ctrl.Add(a); err != nil {
		t.Fatal(err)
	}
	if err := prog.Add(b); err != nil {
		t.Fatal(err)
	}
	if a.Scope() != logix.ScopeController {
		t.Errorf("controller-table tag scope = %v", a.Scope())
	}
	if b.Scope() != logix.ScopeProgram {
		t.Errorf("program-table tag scope = %v", b.Scope())
	}
}

func TestRoutineRungNumbering(t *testing.T) {
	_, _, rt := buildController(t)

	for _, text := range []string{"XIC(A)OTE(B);", "XIC(C)OTE(D);"} {
		if _, err := rt.AddRung(text, "", -1); err != nil {
			t.Fatal(err)
		}
	}
	if _, err := rt.AddRung("XIC(E)OTE(F);", "", 0); err != nil {
		t.Fatal(err)
	}

	wantTexts := []string{"XIC(E)OTE(F);", "XIC(A)OTE(B);", "XIC(C)OTE(D);"}
	for i, r := range rt.Rungs() {
		if r.Number() != i {
			t.Errorf("rung %d has Number() %d", i, r.Number())
		}
		if r.Text() != wantTexts[i] {
			t.Errorf("rung %d text = %q, want %q", i, r.Text(), wantTexts[i])
		}
	}

	if err := rt.RemoveRung(0); err != nil {
		t.Fatal(err)
	}
	if got := rt.RungCount(); got != 2 {
		t.Fatalf("RungCount() = %d after remove", got)
	}
	if rt.Rung(0).Text() != "XIC(A)OTE(B);" || rt.Rung(0).Number() != 0 {
		t.Errorf("rung 0 after remove = %q #%d", rt.Rung(0).Text(), rt.Rung(0).Number())
	}
}

func TestProgramScopedResolution(t *testing.T) {
	c, p, rt := buildController(t)

	if err := c.AddTag(NewTag("Global", "BOOL")); err != nil {
		t.Fatal(err)
	}
	if err := p.AddTag(NewTag("LocalBit", "BOOL")); err != nil {
		t.Fatal(err)
	}

	r, err := rt.AddRung("XIC(LocalBit)OTE(Global);", "", -1)
	if err != nil {
		t.Fatal(err)
	}

	localOp := r.InstructionAt(0).Operands()[0]
	if got := localOp.Qualified(); got != "Program:MainProgram.LocalBit" {
		t.Errorf("local Qualified() = %q", got)
	}
	globalOp := r.InstructionAt(1).Operands()[0]
	if got := globalOp.Qualified(); got != "Global" {
		t.Errorf("global Qualified() = %q", got)
	}
}

func TestControllerInvalidateOnTagChange(t *testing.T) {
	c, _, rt := buildController(t)

	r, err := rt.AddRung("XIC(Pump);", "", -1)
	if err != nil {
		t.Fatal(err)
	}
	op := r.InstructionAt(0).Operands()[0]
	if got := op.Aliased(); got != "Pump" {
		t.Fatalf("pre-add Aliased() = %q", got)
	}

	// Adding the alias target reparses the rung; the fresh operand
	// resolves through the alias.
	if err := c.AddTag(NewTag("PumpBase", "BOOL")); err != nil {
		t.Fatal(err)
	}
	if err := c.AddTag(NewAliasTag("Pump", "PumpBase")); err != nil {
		t.Fatal(err)
	}
	op = r.InstructionAt(0).Operands()[0]
	if got := op.Aliased(); got != "PumpBase" {
		t.Errorf("post-add Aliased() = %q, want PumpBase", got)
	}
}

func TestControllerAOIRegistration(t *testing.T) {
	c, _, rt := buildController(t)

	r, err := rt.AddRung("MyValve(V1);", "", -1)
	if err != nil {
		t.Fatal(err)
	}
	if got := r.InstructionAt(0).Role(); got != logix.RoleUnknown {
		t.Fatalf("pre-registration Role() = %v", got)
	}

	aoi := NewAddOnInstruction("MyValve")
	aoi.Parameters = append(aoi.Parameters, Parameter{Name: "ValveRef", DataType: "VALVE", Usage: UsageInOut})
	if err := c.AddAOI(aoi); err != nil {
		t.Fatal(err)
	}
	if got := r.InstructionAt(0).Role(); got != logix.RoleOutput {
		t.Errorf("post-registration Role() = %v, want output", got)
	}
	if err := c.AddAOI(NewAddOnInstruction("MyValve")); !errors.Is(err, ErrDuplicate) {
		t.Errorf("duplicate AddAOI err = %v, want ErrDuplicate", err)
	}
}

func TestProgramBlockUnblockRoutine(t *testing.T) {
	_, p, rt := buildController(t)
	sub := NewRoutine("Fill")
	if err := p.AddRoutine(sub); err != nil {
		t.Fatal(err)
	}
	r, err := rt.AddRung("JSR(Fill,0);", "", -1)
	if err != nil {
		t.Fatal(err)
	}

	if err := p.BlockRoutine("Fill", "Blocked"); err != nil {
		t.Fatal(err)
	}
	if got := r.Text(); got != "XIC(Blocked)JSR(Fill,0);" {
		t.Errorf("blocked text = %q", got)
	}

	// Blocking twice is a no-op.
	if err := p.BlockRoutine("Fill", "Blocked"); err != nil {
		t.Fatal(err)
	}
	if got := r.Text(); got != "XIC(Blocked)JSR(Fill,0);" {
		t.Errorf("double-blocked text = %q", got)
	}

	if err := p.UnblockRoutine("Fill", "Blocked"); err != nil {
		t.Fatal(err)
	}
	if got := r.Text(); got != "JSR(Fill,0);" {
		t.Errorf("unblocked text = %q", got)
	}
}

func TestRoutineCallsRoutine(t *testing.T) {
	_, _, rt := buildController(t)
	if _, err := rt.AddRung("JSR(Diag,0);", "", -1); err != nil {
		t.Fatal(err)
	}
	if !rt.CallsRoutine("Diag") {
		t.Error("CallsRoutine(Diag) = false")
	}
	if rt.CallsRoutine("Other") {
		t.Error("CallsRoutine(Other) = true")
	}
}

func TestControllerInstructionAggregation(t *testing.T) {
	c, p, rt := buildController(t)
	sub := NewRoutine("Aux")
	if err := p.AddRoutine(sub); err != nil {
		t.Fatal(err)
	}
	if _, err := rt.AddRung("XIC(A)[XIO(B),XIC(C)]OTE(D);", "", -1); err != nil {
		t.Fatal(err)
	}
	if _, err := sub.AddRung("XIC(E)MOV(S,Dst);", "", -1); err != nil {
		t.Fatal(err)
	}

	if got := len(c.InputInstructions()); got != 4 {
		t.Errorf("len(InputInstructions()) = %d, want 4", got)
	}
	if got := len(c.OutputInstructions()); got != 2 {
		t.Errorf("len(OutputInstructions()) = %d, want 2", got)
	}
}
