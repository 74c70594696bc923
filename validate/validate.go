// Package validate runs registered diagnostic rules over a parsed
// controller and reports findings with rule, severity, and rung
// coordinates.
package validate

import (
	"fmt"
	"sort"

	"github.com/roxplc/rox/project"
)

// Severity grades a finding.
type Severity int

const (
	SeverityInfo Severity = iota
	SeverityWarning
	SeverityError
)

func (s Severity) String() string {
	switch s {
	case SeverityWarning:
		return "warning"
	case SeverityError:
		return "error"
	default:
		return "info"
	}
}

// Finding is one diagnostic hit: which rule fired, and where.
type Finding struct {
	Rule     string
	Severity Severity
	Program  string
	Routine  string
	Rung     int
	Operand  string
	Message  string
}

func (f Finding) String() string {
	loc := "controller"
	if f.Program != "" {
		loc = fmt.Sprintf("%s/%s/rung %d", f.Program, f.Routine, f.Rung)
	}
	return fmt.Sprintf("[%s] %s: %s (%s)", f.Severity, f.Rule, f.Message, loc)
}

// Options tunes the built-in rules.
type Options struct {
	// IgnoredOperands are qualified operand names never reported as
	// unpaired inputs (hardware status flags like S:FS).
	IgnoredOperands []string

	// DiagnosticMarker flags a rung as diagnostic logic when it appears
	// in the rung comment.
	DiagnosticMarker string

	// DiagnosticRoutine flags a rung as diagnostic logic when a JSR
	// targets it.
	DiagnosticRoutine string
}

// DefaultOptions mirror the conventions of the source projects this
// tooling is used on.
func DefaultOptions() Options {
	return Options{
		IgnoredOperands:   []string{"S:FS"},
		DiagnosticMarker:  "<@DIAG>",
		DiagnosticRoutine: "zZ999_Diagnostics",
	}
}

// Rule is one registered diagnostic.
type Rule struct {
	ID       string
	Severity Severity
	Check    func(*project.Controller, Options) []Finding
}

var registry = map[string]Rule{}

// Register adds a rule to the registry, replacing any rule with the
// same id. Built-in rules register at package init.
func Register(r Rule) {
	registry[r.ID] = r
}

// Rules returns registered rule ids, sorted.
func Rules() []string {
	ids := make([]string, 0, len(registry))
	for id := range registry {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Run executes every registered rule the filter admits, in id order. A
// nil filter runs everything.
func Run(c *project.Controller, opts Options, enabled func(id string) bool) []Finding {
	var findings []Finding
	for _, id := range Rules() {
		if enabled != nil && !enabled(id) {
			continue
		}
		findings = append(findings, registry[id].Check(c, opts)...)
	}
	return findings
}
