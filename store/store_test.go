package store

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/roxplc/rox/validate"
)

func openStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "findings.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func sampleFindings() []validate.Finding {
	return []validate.Finding{
		{
			Rule:     "unpaired-inputs",
			Severity: validate.SeverityWarning,
			Program:  "MainProgram",
			Routine:  "Main",
			Rung:     2,
			Operand:  "Orphan",
			Message:  "input Orphan is examined but never written",
		},
		{
			Rule:     "comm-path",
			Severity: validate.SeverityWarning,
			Message:  "controller Line1 has no communication path",
		},
	}
}

func TestSaveAndLoadRun(t *testing.T) {
	s := openStore(t)

	id, err := s.SaveRun("Line1", "abc123", sampleFindings())
	if err != nil {
		t.Fatal(err)
	}

	run, err := s.Run(id)
	if err != nil {
		t.Fatal(err)
	}
	if run.Controller != "Line1" || run.Digest != "abc123" || run.Findings != 2 {
		t.Errorf("run = %+v", run)
	}

	got, err := s.Findings(id)
	if err != nil {
		t.Fatal(err)
	}
	want := sampleFindings()
	if len(got) != len(want) {
		t.Fatalf("findings = %d, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("finding %d = %+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestRunsNewestFirst(t *testing.T) {
	s := openStore(t)

	if _, err := s.SaveRun("Line1", "", nil); err != nil {
		t.Fatal(err)
	}
	if _, err := s.SaveRun("Line2", "", sampleFindings()); err != nil {
		t.Fatal(err)
	}

	runs, err := s.Runs()
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 2 {
		t.Fatalf("runs = %d, want 2", len(runs))
	}
	for _, r := range runs {
		if r.Controller == "Line1" && r.Findings != 0 {
			t.Errorf("empty run has %d findings", r.Findings)
		}
		if r.Controller == "Line2" && r.Findings != 2 {
			t.Errorf("Line2 run has %d findings", r.Findings)
		}
	}
}

func TestRunNotFound(t *testing.T) {
	s := openStore(t)
	if _, err := s.Run("no-such-run"); !errors.Is(err, ErrRunNotFound) {
		t.Errorf("Run err = %v, want ErrRunNotFound", err)
	}
	if _, err := s.Findings("no-such-run"); !errors.Is(err, ErrRunNotFound) {
		t.Errorf("Findings err = %v, want ErrRunNotFound", err)
	}
}
