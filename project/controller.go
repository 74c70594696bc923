package project

import (
	"fmt"

	"github.com/roxplc/rox/logix"
)

// Controller is the root container for one parsed L5X document:
// controller-global tags, programs, AOI definitions, and hardware
// modules. Structural changes to any tag table invalidate every rung's
// memoized resolutions by reparsing; rung text itself never changes on
// invalidation.
type Controller struct {
	name        string
	Type        string // processor catalog number, e.g. "1756-L83ES"
	Description string
	CommPath    string
	MajorRev    int
	MinorRev    int

	Tags *TagTable

	aoiNames     map[string]bool
	aoiOrder     []string
	aois         map[string]*AddOnInstruction
	programOrder []string
	programs     map[string]*Program
	moduleOrder  []string
	modules      map[string]*Module
}

// NewController builds an empty controller.
func NewController(name string) *Controller {
	return &Controller{
		name:     name,
		Tags:     NewTagTable(logix.ScopeController),
		aoiNames: make(map[string]bool),
		aois:     make(map[string]*AddOnInstruction),
		programs: make(map[string]*Program),
		modules:  make(map[string]*Module),
	}
}

// Name returns the controller name.
func (c *Controller) Name() string { return c.name }

// Programs returns programs in insertion order.
func (c *Controller) Programs() []*Program {
	out := make([]*Program, 0, len(c.programOrder))
	for _, n := range c.programOrder {
		out = append(out, c.programs[n])
	}
	return out
}

// Program returns a program by name.
func (c *Controller) Program(name string) (*Program, bool) {
	p, ok := c.programs[name]
	return p, ok
}

// AOIs returns AOI definitions in insertion order.
func (c *Controller) AOIs() []*AddOnInstruction {
	out := make([]*AddOnInstruction, 0, len(c.aoiOrder))
	for _, n := range c.aoiOrder {
		out = append(out, c.aois[n])
	}
	return out
}

// AOI returns an AOI definition by name.
func (c *Controller) AOI(name string) (*AddOnInstruction, bool) {
	a, ok := c.aois[name]
	return a, ok
}

// Modules returns hardware modules in insertion order.
func (c *Controller) Modules() []*Module {
	out := make([]*Module, 0, len(c.moduleOrder))
	for _, n := range c.moduleOrder {
		out = append(out, c.modules[n])
	}
	return out
}

// Module returns a module by name.
func (c *Controller) Module(name string) (*Module, bool) {
	m, ok := c.modules[name]
	return m, ok
}

// AddProgram attaches a program, rebinding its rung resolvers to this
// controller's global scope.
func (c *Controller) AddProgram(p *Program) error {
	if _, ok := c.programs[p.name]; ok {
		return fmt.Errorf("%w: program %q", ErrDuplicate, p.name)
	}
	p.controller = c
	p.rebind()
	c.programs[p.name] = p
	c.programOrder = append(c.programOrder, p.name)
	return nil
}

// RemoveProgram detaches a program by name.
func (c *Controller) RemoveProgram(name string) error {
	p, ok := c.programs[name]
	if !ok {
		return fmt.Errorf("%w: program %q", ErrNotFound, name)
	}
	p.controller = nil
	p.rebind()
	delete(c.programs, name)
	c.programOrder = removeName(c.programOrder, name)
	return nil
}

// AddAOI registers an AOI definition. Its name becomes a recognized
// opcode, so every rung reparses.
func (c *Controller) AddAOI(a *AddOnInstruction) error {
	if _, ok := c.aois[a.name]; ok {
		return fmt.Errorf("%w: aoi %q", ErrDuplicate, a.name)
	}
	a.controller = c
	a.rebind()
	c.aois[a.name] = a
	c.aoiOrder = append(c.aoiOrder, a.name)
	c.aoiNames[a.name] = true
	c.Invalidate()
	return nil
}

// RemoveAOI unregisters an AOI definition by name.
func (c *Controller) RemoveAOI(name string) error {
	a, ok := c.aois[name]
	if !ok {
		return fmt.Errorf("%w: aoi %q", ErrNotFound, name)
	}
	a.controller = nil
	delete(c.aois, name)
	delete(c.aoiNames, name)
	c.aoiOrder = removeName(c.aoiOrder, name)
	c.Invalidate()
	return nil
}

// AddModule registers a hardware module.
func (c *Controller) AddModule(m *Module) error {
	if _, ok := c.modules[m.name]; ok {
		return fmt.Errorf("%w: module %q", ErrDuplicate, m.name)
	}
	c.modules[m.name] = m
	c.moduleOrder = append(c.moduleOrder, m.name)
	return nil
}

// RemoveModule removes a hardware module by name.
func (c *Controller) RemoveModule(name string) error {
	if _, ok := c.modules[name]; !ok {
		return fmt.Errorf("%w: module %q", ErrNotFound, name)
	}
	delete(c.modules, name)
	c.moduleOrder = removeName(c.moduleOrder, name)
	return nil
}

// AddTag adds a controller-global tag and invalidates every rung.
func (c *Controller) AddTag(t *Tag) error {
	if err := c.Tags.Add(t); err != nil {
		return err
	}
	c.Invalidate()
	return nil
}

// RemoveTag removes a controller-global tag and invalidates every rung.
func (c *Controller) RemoveTag(name string) error {
	if err := c.Tags.Remove(name); err != nil {
		return err
	}
	c.Invalidate()
	return nil
}

// Invalidate reparses every rung in every program, discarding all
// memoized operand resolutions.
func (c *Controller) Invalidate() {
	for _, n := range c.programOrder {
		c.programs[n].invalidate()
	}
	for _, n := range c.aoiOrder {
		for _, rt := range c.aois[n].routines {
			rt.invalidate()
		}
	}
}

// InputInstructions aggregates always-input instructions across every
// program.
func (c *Controller) InputInstructions() []*logix.Instruction {
	var out []*logix.Instruction
	for _, n := range c.programOrder {
		for _, rt := range c.programs[n].Routines() {
			out = append(out, rt.InputInstructions()...)
		}
	}
	return out
}

// OutputInstructions aggregates output-capable instructions across
// every program.
func (c *Controller) OutputInstructions() []*logix.Instruction {
	var out []*logix.Instruction
	for _, n := range c.programOrder {
		for _, rt := range c.programs[n].Routines() {
			out = append(out, rt.OutputInstructions()...)
		}
	}
	return out
}

func removeName(names []string, name string) []string {
	for i, n := range names {
		if n == name {
			return append(names[:i], names[i+1:]...)
		}
	}
	return names
}
