package project

import (
	"fmt"
	"strings"

	"github.com/roxplc/rox/logix"
)

// Routine is an ordered list of rungs. Rung numbers always equal their
// slice index; inserts and removals renumber the remainder.
type Routine struct {
	name        string
	Description string

	resolver *logix.Resolver
	rungs    []*logix.Rung
}

// NewRoutine builds an empty routine. The resolver is bound when the
// routine is attached to a program or AOI.
func NewRoutine(name string) *Routine {
	return &Routine{name: name}
}

// Name returns the routine name.
func (rt *Routine) Name() string { return rt.name }

// Rungs returns the rungs in execution order.
func (rt *Routine) Rungs() []*logix.Rung { return rt.rungs }

// RungCount returns the number of rungs.
func (rt *Routine) RungCount() int { return len(rt.rungs) }

// Rung returns the rung at the given number, or nil out of range.
func (rt *Routine) Rung(number int) *logix.Rung {
	if number < 0 || number >= len(rt.rungs) {
		return nil
	}
	return rt.rungs[number]
}

// AddRung parses text into a new rung at the given index; a negative
// index, or one past the end, appends. All following rungs renumber.
func (rt *Routine) AddRung(text, comment string, index int) (*logix.Rung, error) {
	r, err := logix.NewRung(len(rt.rungs), text, comment, rt.resolver)
	if err != nil {
		return nil, err
	}
	if index < 0 || index >= len(rt.rungs) {
		rt.rungs = append(rt.rungs, r)
	} else {
		rt.rungs = append(rt.rungs[:index], append([]*logix.Rung{r}, rt.rungs[index:]...)...)
	}
	rt.renumber()
	return r, nil
}

// RemoveRung deletes the rung at the given number and renumbers.
func (rt *Routine) RemoveRung(number int) error {
	if number < 0 || number >= len(rt.rungs) {
		return fmt.Errorf("%w: rung %d", ErrNotFound, number)
	}
	rt.rungs = append(rt.rungs[:number], rt.rungs[number+1:]...)
	rt.renumber()
	return nil
}

// ClearRungs deletes every rung.
func (rt *Routine) ClearRungs() {
	rt.rungs = nil
}

// renumber restores number == index. Rungs whose number changed are
// reparsed so their branch ids track the new number.
func (rt *Routine) renumber() {
	for i, r := range rt.rungs {
		if r.Number() != i {
			_ = r.SetNumber(i)
			r.Invalidate()
		}
	}
}

// invalidate reparses every rung, discarding memoized tag resolutions.
func (rt *Routine) invalidate() {
	for _, r := range rt.rungs {
		r.Invalidate()
	}
}

// Instructions returns every instruction across all rungs, in order.
func (rt *Routine) Instructions() []*logix.Instruction {
	var out []*logix.Instruction
	for _, r := range rt.rungs {
		out = append(out, r.Instructions()...)
	}
	return out
}

// InputInstructions returns every always-input instruction across all
// rungs.
func (rt *Routine) InputInstructions() []*logix.Instruction {
	var out []*logix.Instruction
	for _, r := range rt.rungs {
		out = append(out, r.InputInstructions()...)
	}
	return out
}

// OutputInstructions returns every output-capable instruction across
// all rungs.
func (rt *Routine) OutputInstructions() []*logix.Instruction {
	var out []*logix.Instruction
	for _, r := range rt.rungs {
		out = append(out, r.OutputInstructions()...)
	}
	return out
}

// FilterInstructions matches FilterInstructions on every rung.
func (rt *Routine) FilterInstructions(opcode, operandSubstr string) []*logix.Instruction {
	var out []*logix.Instruction
	for _, r := range rt.rungs {
		out = append(out, r.FilterInstructions(opcode, operandSubstr)...)
	}
	return out
}

// CallsRoutine reports whether any rung holds a JSR to the named
// routine.
func (rt *Routine) CallsRoutine(name string) bool {
	for _, in := range rt.FilterInstructions(logix.OpcodeJSR, "") {
		ops := in.Operands()
		if len(ops) > 0 && ops[0].Text() == name {
			return true
		}
	}
	return false
}

// RungsWithCommentPrefix returns rungs whose comment starts with the
// given marker.
func (rt *Routine) RungsWithCommentPrefix(prefix string) []*logix.Rung {
	var out []*logix.Rung
	for _, r := range rt.rungs {
		if strings.HasPrefix(r.Comment(), prefix) {
			out = append(out, r)
		}
	}
	return out
}
