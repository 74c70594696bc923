package project

import (
	"fmt"
	"strings"

	"github.com/roxplc/rox/logix"
)

// Program is one scheduled program: its local tag table plus an ordered,
// name-unique routine collection.
type Program struct {
	name            string
	Description     string
	MainRoutineName string
	Disabled        bool

	Tags *TagTable

	controller   *Controller
	routineOrder []string
	routines     map[string]*Routine
}

// NewProgram builds an unattached program with an empty local tag table.
func NewProgram(name string) *Program {
	return &Program{
		name:     name,
		Tags:     NewTagTable(logix.ScopeProgram),
		routines: make(map[string]*Routine),
	}
}

// Name returns the program name.
func (p *Program) Name() string { return p.name }

// Controller returns the owning controller, nil while unattached.
func (p *Program) Controller() *Controller { return p.controller }

// Routines returns routines in insertion order.
func (p *Program) Routines() []*Routine {
	out := make([]*Routine, 0, len(p.routineOrder))
	for _, n := range p.routineOrder {
		out = append(out, p.routines[n])
	}
	return out
}

// Routine returns a routine by name.
func (p *Program) Routine(name string) (*Routine, bool) {
	rt, ok := p.routines[name]
	return rt, ok
}

// MainRoutine returns the routine named by MainRoutineName, if any.
func (p *Program) MainRoutine() (*Routine, bool) {
	if p.MainRoutineName == "" {
		return nil, false
	}
	return p.Routine(p.MainRoutineName)
}

// AddRoutine attaches a routine, binding its rung resolver to this
// program's tag scope. Existing rungs reparse under the new resolver.
func (p *Program) AddRoutine(rt *Routine) error {
	if _, ok := p.routines[rt.name]; ok {
		return fmt.Errorf("%w: routine %q", ErrDuplicate, rt.name)
	}
	rt.resolver = p.resolver()
	rt.invalidate()
	p.routines[rt.name] = rt
	p.routineOrder = append(p.routineOrder, rt.name)
	return nil
}

// RemoveRoutine detaches a routine by name.
func (p *Program) RemoveRoutine(name string) error {
	if _, ok := p.routines[name]; !ok {
		return fmt.Errorf("%w: routine %q", ErrNotFound, name)
	}
	delete(p.routines, name)
	for i, n := range p.routineOrder {
		if n == name {
			p.routineOrder = append(p.routineOrder[:i], p.routineOrder[i+1:]...)
			break
		}
	}
	return nil
}

// AddTag adds a program-local tag and invalidates resolutions.
func (p *Program) AddTag(t *Tag) error {
	if err := p.Tags.Add(t); err != nil {
		return err
	}
	p.invalidate()
	return nil
}

// RemoveTag removes a program-local tag and invalidates resolutions.
func (p *Program) RemoveTag(name string) error {
	if err := p.Tags.Remove(name); err != nil {
		return err
	}
	p.invalidate()
	return nil
}

// resolver builds the resolution environment for rungs in this program:
// local table first, then the controller-global table.
func (p *Program) resolver() *logix.Resolver {
	res := &logix.Resolver{
		Local:     p.Tags,
		Container: p.name,
	}
	if p.controller != nil {
		res.Global = p.controller.Tags
		res.AOIs = p.controller.aoiNames
	}
	return res
}

// invalidate reparses every rung in every routine.
func (p *Program) invalidate() {
	for _, rt := range p.routines {
		rt.invalidate()
	}
}

// rebind rebuilds every routine's resolver, for controller attachment
// and AOI registration changes.
func (p *Program) rebind() {
	for _, rt := range p.routines {
		rt.resolver = p.resolver()
	}
	p.invalidate()
}

// Instructions aggregates FilterInstructions across all routines.
func (p *Program) Instructions(opcode, operandSubstr string) []*logix.Instruction {
	var out []*logix.Instruction
	for _, n := range p.routineOrder {
		out = append(out, p.routines[n].FilterInstructions(opcode, operandSubstr)...)
	}
	return out
}

// BlockRoutine prefixes the rung holding the JSR to the named routine
// with an examine of the blocking bit, so the call only runs while the
// bit is set. Already-blocked rungs are left alone.
func (p *Program) BlockRoutine(routineName, blockingBit string) error {
	guard := "XIC(" + blockingBit + ")"
	for _, jsr := range p.Instructions(logix.OpcodeJSR, "") {
		ops := jsr.Operands()
		if len(ops) == 0 || ops[0].Text() != routineName {
			continue
		}
		rung := jsr.Rung()
		if rung == nil {
			return fmt.Errorf("jsr to %q has no owning rung", routineName)
		}
		if strings.HasPrefix(rung.Text(), guard) {
			continue
		}
		if err := rung.SetText(guard + rung.Text()); err != nil {
			return err
		}
	}
	return nil
}

// UnblockRoutine removes the blocking-bit examine added by
// BlockRoutine.
func (p *Program) UnblockRoutine(routineName, blockingBit string) error {
	guard := "XIC(" + blockingBit + ")"
	for _, jsr := range p.Instructions(logix.OpcodeJSR, "") {
		ops := jsr.Operands()
		if len(ops) == 0 || ops[0].Text() != routineName {
			continue
		}
		rung := jsr.Rung()
		if rung == nil || !strings.HasPrefix(rung.Text(), guard) {
			continue
		}
		if err := rung.SetText(strings.TrimPrefix(rung.Text(), guard)); err != nil {
			return err
		}
	}
	return nil
}
