package project

import (
	"fmt"

	"github.com/roxplc/rox/logix"
)

// ParameterUsage is the declared direction of an AOI parameter.
type ParameterUsage int

const (
	UsageInput ParameterUsage = iota
	UsageOutput
	UsageInOut
)

func (u ParameterUsage) String() string {
	switch u {
	case UsageOutput:
		return "Output"
	case UsageInOut:
		return "InOut"
	default:
		return "Input"
	}
}

// Parameter is one declared AOI parameter. The declared usage is carried
// for reporting; operand classification still treats AOI calls as
// uniformly Output.
type Parameter struct {
	Name     string
	DataType string
	Usage    ParameterUsage
	Required bool
}

// AddOnInstruction is a user-defined reusable instruction block: its
// parameter list, local tags, and logic routines.
type AddOnInstruction struct {
	name        string
	Description string
	Revision    string

	Parameters []Parameter
	LocalTags  *TagTable

	controller   *Controller
	routineOrder []string
	routines     map[string]*Routine
}

// NewAddOnInstruction builds an unattached AOI definition.
func NewAddOnInstruction(name string) *AddOnInstruction {
	return &AddOnInstruction{
		name:      name,
		LocalTags: NewTagTable(logix.ScopeProgram),
		routines:  make(map[string]*Routine),
	}
}

// Name returns the AOI name, which is also its opcode when called.
func (a *AddOnInstruction) Name() string { return a.name }

// Routines returns the AOI's logic routines in insertion order.
func (a *AddOnInstruction) Routines() []*Routine {
	out := make([]*Routine, 0, len(a.routineOrder))
	for _, n := range a.routineOrder {
		out = append(out, a.routines[n])
	}
	return out
}

// Routine returns a logic routine by name.
func (a *AddOnInstruction) Routine(name string) (*Routine, bool) {
	rt, ok := a.routines[name]
	return rt, ok
}

// AddRoutine attaches a logic routine, binding its rung resolver to the
// AOI's local tag scope.
func (a *AddOnInstruction) AddRoutine(rt *Routine) error {
	if _, ok := a.routines[rt.name]; ok {
		return fmt.Errorf("%w: routine %q", ErrDuplicate, rt.name)
	}
	rt.resolver = a.resolver()
	rt.invalidate()
	a.routines[rt.name] = rt
	a.routineOrder = append(a.routineOrder, rt.name)
	return nil
}

// Parameter returns a declared parameter by name.
func (a *AddOnInstruction) Parameter(name string) (Parameter, bool) {
	for _, p := range a.Parameters {
		if p.Name == name {
			return p, true
		}
	}
	return Parameter{}, false
}

func (a *AddOnInstruction) resolver() *logix.Resolver {
	res := &logix.Resolver{
		Local:     a.LocalTags,
		Container: a.name,
	}
	if a.controller != nil {
		res.Global = a.controller.Tags
		res.AOIs = a.controller.aoiNames
	}
	return res
}

func (a *AddOnInstruction) rebind() {
	for _, rt := range a.routines {
		rt.resolver = a.resolver()
		rt.invalidate()
	}
}
