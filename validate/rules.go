package validate

import (
	"fmt"
	"sort"
	"strings"

	"github.com/roxplc/rox/logix"
	"github.com/roxplc/rox/project"
)

func init() {
	Register(Rule{ID: "comm-path", Severity: SeverityWarning, Check: checkCommPath})
	Register(Rule{ID: "diagnostic-rungs", Severity: SeverityInfo, Check: checkDiagnosticRungs})
	Register(Rule{ID: "module-references", Severity: SeverityWarning, Check: checkModuleReferences})
	Register(Rule{ID: "redundant-coils", Severity: SeverityWarning, Check: checkRedundantCoils})
	Register(Rule{ID: "unpaired-inputs", Severity: SeverityWarning, Check: checkUnpairedInputs})
}

// site is one rung coordinate a finding points at.
type site struct {
	program string
	routine string
	rung    int
}

// eachRung visits every rung in every program routine, in order.
func eachRung(c *project.Controller, fn func(p *project.Program, rt *project.Routine, r *logix.Rung)) {
	for _, p := range c.Programs() {
		for _, rt := range p.Routines() {
			for _, r := range rt.Rungs() {
				fn(p, rt, r)
			}
		}
	}
}

// sortFindings fixes the report order; rules accumulate findings out of
// map iterations, which would otherwise shuffle between runs.
func sortFindings(fs []Finding) {
	sort.Slice(fs, func(i, j int) bool {
		a, b := fs[i], fs[j]
		switch {
		case a.Program != b.Program:
			return a.Program < b.Program
		case a.Routine != b.Routine:
			return a.Routine < b.Routine
		case a.Rung != b.Rung:
			return a.Rung < b.Rung
		case a.Operand != b.Operand:
			return a.Operand < b.Operand
		default:
			return a.Message < b.Message
		}
	})
}

// checkCommPath flags a controller with no configured communication path.
func checkCommPath(c *project.Controller, _ Options) []Finding {
	if c.CommPath != "" {
		return nil
	}
	return []Finding{{
		Rule:     "comm-path",
		Severity: SeverityWarning,
		Message:  fmt.Sprintf("controller %s has no communication path", c.Name()),
	}}
}

// checkUnpairedInputs reports examined operands that no output instruction
// ever writes, at any dot-truncated parent level. Hardware status flags
// from Options.IgnoredOperands are skipped.
func checkUnpairedInputs(c *project.Controller, opts Options) []Finding {
	ignored := make(map[string]bool, len(opts.IgnoredOperands))
	for _, n := range opts.IgnoredOperands {
		ignored[strings.ToUpper(n)] = true
	}

	inputs := make(map[string][]site)
	parents := make(map[string][]string)
	outputs := make(map[string]bool)

	eachRung(c, func(p *project.Program, rt *project.Routine, r *logix.Rung) {
		for _, in := range r.InputInstructions() {
			for _, op := range in.Operands() {
				q := op.Qualified()
				inputs[q] = append(inputs[q], site{p.Name(), rt.Name(), r.Number()})
				if _, ok := parents[q]; !ok {
					parents[q] = op.QualifiedParents()
				}
			}
		}
		for _, in := range r.OutputInstructions() {
			for _, op := range in.Operands() {
				outputs[op.Qualified()] = true
			}
		}
	})

	var findings []Finding
	for q, sites := range inputs {
		if outputs[q] || ignored[strings.ToUpper(q)] {
			continue
		}
		written := false
		for _, par := range parents[q] {
			if outputs[par] {
				written = true
				break
			}
		}
		if written {
			continue
		}
		for _, s := range sites {
			findings = append(findings, Finding{
				Rule:     "unpaired-inputs",
				Severity: SeverityWarning,
				Program:  s.program,
				Routine:  s.routine,
				Rung:     s.rung,
				Operand:  q,
				Message:  fmt.Sprintf("input %s is examined but never written", q),
			})
		}
	}
	sortFindings(findings)
	return findings
}

// checkRedundantCoils reports qualified operands driven by more than one
// OTE. Duplicate coils fight each other every scan; only the last one
// wins.
func checkRedundantCoils(c *project.Controller, _ Options) []Finding {
	coils := make(map[string][]site)

	eachRung(c, func(p *project.Program, rt *project.Routine, r *logix.Rung) {
		for _, in := range r.Instructions() {
			if in.Opcode() != "OTE" {
				continue
			}
			ops := in.Operands()
			if len(ops) == 0 {
				continue
			}
			q := ops[len(ops)-1].Qualified()
			coils[q] = append(coils[q], site{p.Name(), rt.Name(), r.Number()})
		}
	})

	var findings []Finding
	for q, sites := range coils {
		if len(sites) < 2 {
			continue
		}
		for _, s := range sites {
			findings = append(findings, Finding{
				Rule:     "redundant-coils",
				Severity: SeverityWarning,
				Program:  s.program,
				Routine:  s.routine,
				Rung:     s.rung,
				Operand:  q,
				Message:  fmt.Sprintf("coil %s is driven by %d OTE instructions", q, len(sites)),
			})
		}
	}
	sortFindings(findings)
	return findings
}

// checkDiagnosticRungs reports rungs tagged as diagnostic logic, either
// by the comment marker or by a JSR into the diagnostics routine.
func checkDiagnosticRungs(c *project.Controller, opts Options) []Finding {
	var findings []Finding

	eachRung(c, func(p *project.Program, rt *project.Routine, r *logix.Rung) {
		tagged := opts.DiagnosticMarker != "" && strings.Contains(r.Comment(), opts.DiagnosticMarker)
		if !tagged && opts.DiagnosticRoutine != "" {
			for _, in := range r.FilterInstructions(logix.OpcodeJSR, "") {
				ops := in.Operands()
				if len(ops) > 0 && ops[0].Text() == opts.DiagnosticRoutine {
					tagged = true
					break
				}
			}
		}
		if tagged {
			findings = append(findings, Finding{
				Rule:     "diagnostic-rungs",
				Severity: SeverityInfo,
				Program:  p.Name(),
				Routine:  rt.Name(),
				Rung:     r.Number(),
				Message:  "rung carries diagnostic logic",
			})
		}
	})

	return findings
}

// checkModuleReferences reports configured hardware modules that no tag
// alias and no instruction operand ever names. The controller's own
// "Local" chassis and inhibited modules are exempt.
func checkModuleReferences(c *project.Controller, _ Options) []Finding {
	referenced := make(map[string]bool)
	mark := func(text string) {
		base := text
		if i := strings.IndexAny(base, ":."); i >= 0 {
			base = base[:i]
		}
		if base != "" {
			referenced[base] = true
		}
	}

	for _, t := range c.Tags.Tags() {
		if t.Alias != "" {
			mark(t.Alias)
		}
	}
	for _, p := range c.Programs() {
		for _, t := range p.Tags.Tags() {
			if t.Alias != "" {
				mark(t.Alias)
			}
		}
	}
	eachRung(c, func(_ *project.Program, _ *project.Routine, r *logix.Rung) {
		for _, in := range r.Instructions() {
			for _, op := range in.Operands() {
				mark(op.Text())
				mark(op.Aliased())
			}
		}
	})

	var findings []Finding
	for _, m := range c.Modules() {
		if m.Name() == "Local" || m.Inhibited {
			continue
		}
		if !referenced[m.Name()] {
			findings = append(findings, Finding{
				Rule:     "module-references",
				Severity: SeverityWarning,
				Operand:  m.Name(),
				Message:  fmt.Sprintf("module %s (%s) is never referenced", m.Name(), m.CatalogNumber),
			})
		}
	}
	sortFindings(findings)
	return findings
}
