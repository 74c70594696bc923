// Package plan queues batched controller edits. A Schema accumulates
// typed actions (add tag, add routine, add rung, set rung text, remove
// rung, remove routine, remove tag); Execute checks the preconditions of
// the whole queue before any action touches the controller.
package plan

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/tliron/commonlog"

	"github.com/roxplc/rox/logix"
	"github.com/roxplc/rox/project"
)

var log = commonlog.GetLogger("rox.plan")

// ErrPrecondition wraps every queue-check failure. The message names the
// offending action.
var ErrPrecondition = errors.New("plan precondition failed")

// ActionKind discriminates queued actions.
type ActionKind int

const (
	ActionAddControllerTag ActionKind = iota
	ActionAddProgramTag
	ActionAddRoutine
	ActionAddRung
	ActionSetRungText
	ActionRemoveRung
	ActionRemoveRoutine
	ActionRemoveControllerTag
)

var actionKindNames = map[ActionKind]string{
	ActionAddControllerTag:    "add_controller_tag",
	ActionAddProgramTag:       "add_program_tag",
	ActionAddRoutine:          "add_routine",
	ActionAddRung:             "add_rung",
	ActionSetRungText:         "set_rung_text",
	ActionRemoveRung:          "remove_rung",
	ActionRemoveRoutine:       "remove_routine",
	ActionRemoveControllerTag: "remove_controller_tag",
}

func (k ActionKind) String() string {
	if name, ok := actionKindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("ActionKind(%d)", int(k))
}

// Action is one queued edit. Fields beyond Kind are set per kind: tag
// actions carry Tag, routine actions Program/Routine, rung actions also
// RungNumber/Text/Comment.
type Action struct {
	ID   uuid.UUID
	Kind ActionKind

	Tag         *project.Tag
	Program     string
	Routine     string
	Description string
	CallerMain  bool // add_routine: also insert a JSR call in the main routine
	RungNumber  int  // -1 appends
	Text        string
	Comment     string
}

func (a *Action) String() string {
	return fmt.Sprintf("%s[%s]", a.Kind, a.ID)
}

// Schema is an ordered action queue bound to one destination controller.
type Schema struct {
	destination *project.Controller
	actions     []*Action
	executed    bool
}

// NewSchema builds an empty queue targeting the given controller.
func NewSchema(destination *project.Controller) *Schema {
	return &Schema{destination: destination}
}

// Destination returns the controller the queue applies to.
func (s *Schema) Destination() *project.Controller { return s.destination }

// Actions returns the queued actions in execution order.
func (s *Schema) Actions() []*Action { return s.actions }

// Len returns the number of queued actions.
func (s *Schema) Len() int { return len(s.actions) }

// Executed reports whether Execute has run to completion.
func (s *Schema) Executed() bool { return s.executed }

func (s *Schema) enqueue(a *Action) uuid.UUID {
	a.ID = uuid.New()
	s.actions = append(s.actions, a)
	return a.ID
}

// AddControllerTag queues a controller-global tag addition.
func (s *Schema) AddControllerTag(t *project.Tag) uuid.UUID {
	return s.enqueue(&Action{Kind: ActionAddControllerTag, Tag: t})
}

// AddProgramTag queues a program-local tag addition.
func (s *Schema) AddProgramTag(program string, t *project.Tag) uuid.UUID {
	return s.enqueue(&Action{Kind: ActionAddProgramTag, Program: program, Tag: t})
}

// AddRoutine queues a new empty routine in the named program. With
// callFromMain, a JSR rung is inserted at the top of the program's main
// routine unless one already calls the new routine.
func (s *Schema) AddRoutine(program, routine, description string, callFromMain bool) uuid.UUID {
	return s.enqueue(&Action{
		Kind:        ActionAddRoutine,
		Program:     program,
		Routine:     routine,
		Description: description,
		CallerMain:  callFromMain,
	})
}

// AddRung queues a rung insertion at the given index; -1 appends.
func (s *Schema) AddRung(program, routine string, number int, text, comment string) uuid.UUID {
	return s.enqueue(&Action{
		Kind:       ActionAddRung,
		Program:    program,
		Routine:    routine,
		RungNumber: number,
		Text:       text,
		Comment:    comment,
	})
}

// SetRungText queues a text replacement on an existing rung.
func (s *Schema) SetRungText(program, routine string, number int, text string) uuid.UUID {
	return s.enqueue(&Action{
		Kind:       ActionSetRungText,
		Program:    program,
		Routine:    routine,
		RungNumber: number,
		Text:       text,
	})
}

// RemoveRung queues a rung removal.
func (s *Schema) RemoveRung(program, routine string, number int) uuid.UUID {
	return s.enqueue(&Action{
		Kind:       ActionRemoveRung,
		Program:    program,
		Routine:    routine,
		RungNumber: number,
	})
}

// RemoveRoutine queues a routine removal.
func (s *Schema) RemoveRoutine(program, routine string) uuid.UUID {
	return s.enqueue(&Action{Kind: ActionRemoveRoutine, Program: program, Routine: routine})
}

// RemoveControllerTag queues a controller-global tag removal; Tag carries
// only the name.
func (s *Schema) RemoveControllerTag(name string) uuid.UUID {
	return s.enqueue(&Action{Kind: ActionRemoveControllerTag, Tag: project.NewTag(name, "")})
}

// queueState tracks what earlier actions in the queue will have created
// or removed by the time a later action runs, so Check can validate the
// queue as a whole without mutating the controller.
type queueState struct {
	routines map[string]bool // "program/routine" -> exists
	tags     map[string]bool // controller tag name -> exists
}

func (s *Schema) initialState() *queueState {
	st := &queueState{
		routines: make(map[string]bool),
		tags:     make(map[string]bool),
	}
	if s.destination == nil {
		return st
	}
	for _, name := range s.destination.Tags.Names() {
		st.tags[name] = true
	}
	for _, p := range s.destination.Programs() {
		for _, rt := range p.Routines() {
			st.routines[p.Name()+"/"+rt.Name()] = true
		}
	}
	return st
}

// Check validates every queued action against the destination controller
// plus the effects of the actions before it. The first violation is
// returned; nothing is mutated.
func (s *Schema) Check() error {
	if s.destination == nil {
		return fmt.Errorf("%w: schema has no destination controller", ErrPrecondition)
	}
	st := s.initialState()

	for _, a := range s.actions {
		if err := s.checkAction(a, st); err != nil {
			return fmt.Errorf("%w: %s: %v", ErrPrecondition, a, err)
		}
	}
	return nil
}

func (s *Schema) checkAction(a *Action, st *queueState) error {
	routineKey := a.Program + "/" + a.Routine

	switch a.Kind {
	case ActionAddControllerTag:
		if a.Tag == nil {
			return errors.New("no tag")
		}
		if st.tags[a.Tag.Name()] {
			return fmt.Errorf("tag %q already exists", a.Tag.Name())
		}
		st.tags[a.Tag.Name()] = true

	case ActionAddProgramTag:
		if a.Tag == nil {
			return errors.New("no tag")
		}
		if _, ok := s.destination.Program(a.Program); !ok {
			return fmt.Errorf("program %q not found", a.Program)
		}

	case ActionAddRoutine:
		p, ok := s.destination.Program(a.Program)
		if !ok {
			return fmt.Errorf("program %q not found", a.Program)
		}
		if st.routines[routineKey] {
			return fmt.Errorf("routine %q already exists in %q", a.Routine, a.Program)
		}
		if a.CallerMain {
			if _, ok := p.MainRoutine(); !ok {
				return fmt.Errorf("program %q has no main routine for the JSR call", a.Program)
			}
		}
		st.routines[routineKey] = true

	case ActionAddRung, ActionSetRungText:
		if !st.routines[routineKey] {
			return fmt.Errorf("routine %q not found in %q", a.Routine, a.Program)
		}
		// Parse with a nil resolver: structure must hold regardless of
		// the tag tables.
		if _, err := logix.NewRung(0, a.Text, "", nil); err != nil {
			return fmt.Errorf("rung text %q: %v", a.Text, err)
		}

	case ActionRemoveRung:
		if !st.routines[routineKey] {
			return fmt.Errorf("routine %q not found in %q", a.Routine, a.Program)
		}

	case ActionRemoveRoutine:
		if !st.routines[routineKey] {
			return fmt.Errorf("routine %q not found in %q", a.Routine, a.Program)
		}
		st.routines[routineKey] = false

	case ActionRemoveControllerTag:
		if !st.tags[a.Tag.Name()] {
			return fmt.Errorf("tag %q not found", a.Tag.Name())
		}
		st.tags[a.Tag.Name()] = false

	default:
		return fmt.Errorf("unknown action kind %v", a.Kind)
	}
	return nil
}

// Execute checks the whole queue, then applies every action in order.
// A failed check leaves the controller untouched.
func (s *Schema) Execute() error {
	if err := s.Check(); err != nil {
		return err
	}
	for _, a := range s.actions {
		if err := s.executeAction(a); err != nil {
			return fmt.Errorf("%s: %w", a, err)
		}
		log.Debugf("applied %s", a)
	}
	s.executed = true
	log.Infof("applied %d actions to %s", len(s.actions), s.destination.Name())
	return nil
}

func (s *Schema) executeAction(a *Action) error {
	switch a.Kind {
	case ActionAddControllerTag:
		return s.destination.AddTag(a.Tag)

	case ActionAddProgramTag:
		p, ok := s.destination.Program(a.Program)
		if !ok {
			return fmt.Errorf("program %q not found", a.Program)
		}
		return p.AddTag(a.Tag)

	case ActionAddRoutine:
		p, ok := s.destination.Program(a.Program)
		if !ok {
			return fmt.Errorf("program %q not found", a.Program)
		}
		rt := project.NewRoutine(a.Routine)
		rt.Description = a.Description
		if err := p.AddRoutine(rt); err != nil {
			return err
		}
		if a.CallerMain {
			main, ok := p.MainRoutine()
			if !ok {
				return fmt.Errorf("program %q has no main routine", a.Program)
			}
			if !main.CallsRoutine(a.Routine) {
				_, err := main.AddRung(
					fmt.Sprintf("JSR(%s,0);", a.Routine),
					fmt.Sprintf("Call the %s routine.", a.Routine),
					0,
				)
				return err
			}
		}
		return nil

	case ActionAddRung:
		rt, err := s.routine(a)
		if err != nil {
			return err
		}
		_, err = rt.AddRung(a.Text, a.Comment, a.RungNumber)
		return err

	case ActionSetRungText:
		rt, err := s.routine(a)
		if err != nil {
			return err
		}
		r := rt.Rung(a.RungNumber)
		if r == nil {
			return fmt.Errorf("rung %d not found in %s/%s", a.RungNumber, a.Program, a.Routine)
		}
		return r.SetText(a.Text)

	case ActionRemoveRung:
		rt, err := s.routine(a)
		if err != nil {
			return err
		}
		return rt.RemoveRung(a.RungNumber)

	case ActionRemoveRoutine:
		p, ok := s.destination.Program(a.Program)
		if !ok {
			return fmt.Errorf("program %q not found", a.Program)
		}
		return p.RemoveRoutine(a.Routine)

	case ActionRemoveControllerTag:
		return s.destination.RemoveTag(a.Tag.Name())
	}
	return fmt.Errorf("unknown action kind %v", a.Kind)
}

func (s *Schema) routine(a *Action) (*project.Routine, error) {
	p, ok := s.destination.Program(a.Program)
	if !ok {
		return nil, fmt.Errorf("program %q not found", a.Program)
	}
	rt, ok := p.Routine(a.Routine)
	if !ok {
		return nil, fmt.Errorf("routine %q not found in %q", a.Routine, a.Program)
	}
	return rt, nil
}
