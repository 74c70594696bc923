package manifest

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadManifest(t *testing.T) {
	// Create a temporary directory with a rox.toml
	dir := t.TempDir()
	tomlContent := `
[project]
name = "press-line-7"
customer = "acme"
version = "0.3.0"

[validate]
rules = ["unpaired-inputs", "redundant-coils"]
excluded = ["diagnostic-rungs"]
ignored-operands = ["S:FS", "S:N"]

[emulate]
controller-type = "1756-L83ES"
target-program = "MainProgram"
routine-name = "zZ997_Emu"
comment-marker = "<@SIM>"

[store]
path = "runs/findings.db"

[programs.MainProgram]
main-routine = "Main"

[programs.SafetyProgram]
skip = true
`
	if err := os.WriteFile(filepath.Join(dir, "rox.toml"), []byte(tomlContent), 0644); err != nil {
		t.Fatal(err)
	}

	m, err := Load(dir)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if m.Project.Name != "press-line-7" {
		t.Errorf("project name = %q, want press-line-7", m.Project.Name)
	}
	if m.Project.Customer != "acme" {
		t.Errorf("project customer = %q, want acme", m.Project.Customer)
	}
	if len(m.Validate.Rules) != 2 {
		t.Errorf("validate rules count = %d, want 2", len(m.Validate.Rules))
	}
	if len(m.Validate.IgnoredOperands) != 2 {
		t.Errorf("ignored operands = %v, want 2 entries", m.Validate.IgnoredOperands)
	}
	if m.Emulate.ControllerType != "1756-L83ES" {
		t.Errorf("controller-type = %q", m.Emulate.ControllerType)
	}
	if m.Emulate.RoutineName != "zZ997_Emu" {
		t.Errorf("routine-name = %q", m.Emulate.RoutineName)
	}
	if m.Emulate.CommentMarker != "<@SIM>" {
		t.Errorf("comment-marker = %q", m.Emulate.CommentMarker)
	}
	if tgt, ok := m.Programs["SafetyProgram"]; !ok || !tgt.Skip {
		t.Errorf("SafetyProgram target = %v, want skip", m.Programs["SafetyProgram"])
	}
	if got := m.StorePath(); got != filepath.Join(m.Dir, "runs", "findings.db") {
		t.Errorf("StorePath() = %q", got)
	}
}

func TestLoadManifestDefaults(t *testing.T) {
	dir := t.TempDir()
	tomlContent := `
[project]
name = "minimal"
`
	if err := os.WriteFile(filepath.Join(dir, "rox.toml"), []byte(tomlContent), 0644); err != nil {
		t.Fatal(err)
	}

	m, err := Load(dir)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if m.Emulate.RoutineName != "zZ998_Emulation" {
		t.Errorf("default routine-name = %q", m.Emulate.RoutineName)
	}
	if m.Emulate.CommentMarker != "<@EMU>" {
		t.Errorf("default comment-marker = %q", m.Emulate.CommentMarker)
	}
	if len(m.Validate.IgnoredOperands) != 1 || m.Validate.IgnoredOperands[0] != "S:FS" {
		t.Errorf("default ignored operands = %v", m.Validate.IgnoredOperands)
	}
	if m.Store.Path != filepath.Join(".rox", "findings.db") {
		t.Errorf("default store path = %q", m.Store.Path)
	}
}

func TestFindAndLoad(t *testing.T) {
	// Create nested directory structure
	dir := t.TempDir()
	subDir := filepath.Join(dir, "a", "b", "c")
	if err := os.MkdirAll(subDir, 0755); err != nil {
		t.Fatal(err)
	}

	tomlContent := `[project]
name = "found-project"
`
	if err := os.WriteFile(filepath.Join(dir, "rox.toml"), []byte(tomlContent), 0644); err != nil {
		t.Fatal(err)
	}

	// Should find manifest when starting from a deep subdirectory
	m, err := FindAndLoad(subDir)
	if err != nil {
		t.Fatalf("FindAndLoad failed: %v", err)
	}
	if m == nil {
		t.Fatal("FindAndLoad returned nil")
	}
	if m.Project.Name != "found-project" {
		t.Errorf("project name = %q, want found-project", m.Project.Name)
	}
}

func TestFindAndLoadNotFound(t *testing.T) {
	dir := t.TempDir()
	m, err := FindAndLoad(dir)
	if err != nil {
		t.Fatalf("FindAndLoad error: %v", err)
	}
	if m != nil {
		t.Error("expected nil manifest when no rox.toml exists")
	}
}

func TestRuleEnabled(t *testing.T) {
	m := &Manifest{}
	if !m.RuleEnabled("unpaired-inputs") {
		t.Error("empty rule list should enable everything")
	}

	m.Validate.Rules = []string{"unpaired-inputs"}
	if !m.RuleEnabled("unpaired-inputs") || m.RuleEnabled("redundant-coils") {
		t.Error("explicit rule list should enable only listed rules")
	}

	m.Validate.Rules = nil
	m.Validate.Excluded = []string{"diagnostic-rungs"}
	if m.RuleEnabled("diagnostic-rungs") {
		t.Error("excluded rule should be disabled")
	}
	if !m.RuleEnabled("redundant-coils") {
		t.Error("non-excluded rule should stay enabled")
	}
}
