// Package emu generates emulation logic for a parsed controller: control
// tags, an emulation routine called from each target program's main
// routine, and per-module inhibit rungs. Generators are looked up in an
// explicit registry keyed by controller type; every edit goes through a
// plan.Schema so the whole generation applies atomically or not at all.
package emu

import (
	"fmt"
	"sort"
	"strings"

	"github.com/tliron/commonlog"

	"github.com/roxplc/rox/plan"
	"github.com/roxplc/rox/project"
)

var log = commonlog.GetLogger("rox.emu")

// Config tunes generation. Zero-value fields fall back to the defaults
// below.
type Config struct {
	// TargetProgram is the program receiving the emulation routine; ""
	// targets the first program.
	TargetProgram string

	// RoutineName is the emulation routine's name.
	RoutineName string

	// Marker prefixes every generated rung comment; removal finds its
	// rungs by this marker.
	Marker string
}

const (
	defaultRoutineName = "zZ998_Emulation"
	defaultMarker      = "<@EMU>"
)

func (c Config) withDefaults() Config {
	if c.RoutineName == "" {
		c.RoutineName = defaultRoutineName
	}
	if c.Marker == "" {
		c.Marker = defaultMarker
	}
	return c
}

// Generator plans emulation logic for one controller family. Generate
// and Remove return unexecuted schemas; the caller decides when to apply.
type Generator interface {
	ControllerType() string
	Generate(c *project.Controller, cfg Config) (*plan.Schema, error)
	Remove(c *project.Controller, cfg Config) (*plan.Schema, error)
}

var registry = map[string]func() Generator{}

// Register maps a controller-type discriminant to a generator
// constructor. Built-ins register at package init; customer packages
// register their own on top.
func Register(controllerType string, ctor func() Generator) {
	registry[controllerType] = ctor
}

// New returns a generator for the controller type, falling back to the
// base generator when no specific one is registered.
func New(controllerType string) Generator {
	if ctor, ok := registry[controllerType]; ok {
		return ctor()
	}
	return &BaseGenerator{}
}

// Types returns registered controller types, sorted.
func Types() []string {
	out := make([]string, 0, len(registry))
	for t := range registry {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

func init() {
	Register("", func() Generator { return &BaseGenerator{} })
}

// baseTags are the control tags every emulation build relies on.
var baseTags = []struct {
	name, datatype, description string
}{
	{"EmuToggleInhibit", "BOOL", "Latched on first scan; toggles module inhibit handling."},
	{"EmuTestMode", "BOOL", "Latched while the controller runs under emulation."},
	{"EmuInhibit", "DINT", "Module mode value used to inhibit I/O."},
	{"EmuUninhibit", "DINT", "Module mode value used to restore I/O."},
	{"EmuLocalMode", "DINT", "Mode value written to each module."},
}

// BaseGenerator emits the emulation logic common to all controllers.
type BaseGenerator struct{}

// ControllerType identifies the registry key; the base generator is the
// fallback for every type.
func (g *BaseGenerator) ControllerType() string { return "" }

// Generate plans base tags, the emulation routine with its setup and
// inhibit rungs, and one mode rung per non-Local module.
func (g *BaseGenerator) Generate(c *project.Controller, cfg Config) (*plan.Schema, error) {
	cfg = cfg.withDefaults()
	target, err := targetProgram(c, cfg)
	if err != nil {
		return nil, err
	}
	log.Infof("planning emulation for %s into %s/%s", c.Name(), target.Name(), cfg.RoutineName)

	s := plan.NewSchema(c)

	for _, bt := range baseTags {
		if _, ok := c.Tags.Get(bt.name); ok {
			continue
		}
		tag := project.NewTag(bt.name, bt.datatype)
		tag.Description = bt.description
		s.AddControllerTag(tag)
	}

	if _, ok := target.Routine(cfg.RoutineName); !ok {
		s.AddRoutine(target.Name(), cfg.RoutineName, "Emulation logic routine. Auto-generated; do not modify.", true)
	}

	comment := func(text string) string { return cfg.Marker + " " + text }

	s.AddRung(target.Name(), cfg.RoutineName, -1, "NOP();",
		comment("Emulation logic routine header. Do not modify."))

	// First-scan setup: latch test mode and load the inhibit mode values.
	setup := "[XIC(S:FS)OTL(EmuToggleInhibit)OTL(EmuTestMode),MOV(0,EmuUninhibit)MOV(4,EmuInhibit)];"
	s.AddRung(target.Name(), cfg.RoutineName, -1, setup, comment("First-scan setup."))

	// Toggle handling: select the mode value every scan.
	toggle := "[XIO(EmuToggleInhibit)MOV(EmuUninhibit,EmuLocalMode),XIC(EmuToggleInhibit)MOV(EmuInhibit,EmuLocalMode)];"
	s.AddRung(target.Name(), cfg.RoutineName, -1, toggle, comment("Select module mode from the toggle."))

	for _, m := range c.Modules() {
		if m.Name() == "Local" {
			continue
		}
		text := fmt.Sprintf("SSV(Module,%s,Mode,EmuLocalMode);", m.Name())
		s.AddRung(target.Name(), cfg.RoutineName, -1, text,
			comment(fmt.Sprintf("Drive module %s from the emulation mode.", m.Name())))
	}

	return s, nil
}

// Remove plans the inverse of Generate: generated rungs go first
// (found by the comment marker, highest number first so removals do not
// shift each other), then the routine's JSR call, the routine itself,
// and finally the base tags.
func (g *BaseGenerator) Remove(c *project.Controller, cfg Config) (*plan.Schema, error) {
	cfg = cfg.withDefaults()
	target, err := targetProgram(c, cfg)
	if err != nil {
		return nil, err
	}
	log.Infof("planning emulation removal for %s from %s/%s", c.Name(), target.Name(), cfg.RoutineName)

	s := plan.NewSchema(c)

	if main, ok := target.MainRoutine(); ok {
		for i := main.RungCount() - 1; i >= 0; i-- {
			r := main.Rung(i)
			if strings.Contains(r.Text(), "JSR("+cfg.RoutineName) ||
				strings.HasPrefix(r.Comment(), cfg.Marker) {
				s.RemoveRung(target.Name(), main.Name(), i)
			}
		}
	}

	if rt, ok := target.Routine(cfg.RoutineName); ok {
		for i := rt.RungCount() - 1; i >= 0; i-- {
			if strings.HasPrefix(rt.Rung(i).Comment(), cfg.Marker) {
				s.RemoveRung(target.Name(), cfg.RoutineName, i)
			}
		}
		s.RemoveRoutine(target.Name(), cfg.RoutineName)
	}

	for _, bt := range baseTags {
		if _, ok := c.Tags.Get(bt.name); ok {
			s.RemoveControllerTag(bt.name)
		}
	}

	return s, nil
}

func targetProgram(c *project.Controller, cfg Config) (*project.Program, error) {
	if cfg.TargetProgram != "" {
		p, ok := c.Program(cfg.TargetProgram)
		if !ok {
			return nil, fmt.Errorf("target program %q not found in %s", cfg.TargetProgram, c.Name())
		}
		return p, nil
	}
	programs := c.Programs()
	if len(programs) == 0 {
		return nil, fmt.Errorf("controller %s has no programs", c.Name())
	}
	return programs[0], nil
}
