package logix

import "strings"

// ---------------------------------------------------------------------------
// Operand: one instruction argument + tag resolution
// ---------------------------------------------------------------------------

// Operand wraps one argument of an instruction and resolves it against
// the rung's tag tables. Every derived value is computed once on first
// access and memoized; operands are never mutated in place, only
// discarded wholesale when the owning rung's text changes.
type Operand struct {
	text     string
	position int
	instr    *Instruction

	baseName string
	parents  []string

	firstTagDone bool
	firstTag     Tag
	baseTagDone  bool
	baseTag      Tag

	aliased          string
	aliasedDone      bool
	qualified        string
	qualifiedDone    bool
	aliasedParents   []string
	qualifiedParents []string

	role     Role
	roleDone bool
}

func newOperand(text string, instr *Instruction, position int) *Operand {
	return &Operand{
		text:     text,
		position: position,
		instr:    instr,
	}
}

// Text returns the raw operand substring.
func (op *Operand) Text() string { return op.text }

// Position returns the operand's index in its instruction's argument list.
func (op *Operand) Position() int { return op.position }

// Instruction returns the owning instruction.
func (op *Operand) Instruction() *Instruction { return op.instr }

// BaseName returns the leftmost dot segment of the operand text.
func (op *Operand) BaseName() string {
	if op.baseName == "" {
		op.baseName, _, _ = strings.Cut(op.text, ".")
	}
	return op.baseName
}

// TrailingName returns everything after the base name, including the
// leading dot, or "" for a plain reference.
func (op *Operand) TrailingName() string {
	if i := strings.IndexByte(op.text, '.'); i >= 0 {
		return op.text[i:]
	}
	return ""
}

// Parents returns every dot-truncated prefix of the raw operand text,
// longest first. A plain reference yields itself as the only entry.
func (op *Operand) Parents() []string {
	if op.parents == nil {
		op.parents = dotPrefixes(op.text)
	}
	return op.parents
}

// dotPrefixes expands "A.B.C" into ["A.B.C", "A.B", "A"].
func dotPrefixes(name string) []string {
	n := strings.Count(name, ".") + 1
	out := make([]string, 0, n)
	cur := name
	for {
		out = append(out, cur)
		i := strings.LastIndexByte(cur, '.')
		if i < 0 {
			return out
		}
		cur = cur[:i]
	}
}

// FirstTag returns the tag the base name resolves to in the local table,
// falling back to the controller-global table, before any alias
// resolution. Nil when the base name is not a tag (hardware status bit,
// literal, don't-care).
func (op *Operand) FirstTag() Tag {
	if !op.firstTagDone {
		op.firstTag, _ = op.resolver().Lookup(op.BaseName())
		op.firstTagDone = true
	}
	return op.firstTag
}

// BaseTag returns the end of the alias chain starting at FirstTag, or nil
// on a lookup miss.
func (op *Operand) BaseTag() Tag {
	if !op.baseTagDone {
		if first := op.FirstTag(); first != nil {
			op.baseTag = op.resolver().BaseTag(first)
		}
		op.baseTagDone = true
	}
	return op.baseTag
}

// Aliased returns the operand with alias names substituted for their
// targets. An operand whose first tag is not an alias (or resolves to no
// tag at all) is returned unchanged.
func (op *Operand) Aliased() string {
	if !op.aliasedDone {
		first := op.FirstTag()
		if first == nil || first.AliasFor() == "" {
			op.aliased = op.text
		} else {
			op.aliased = op.resolver().aliasString(first, op.TrailingName(), 0)
		}
		op.aliasedDone = true
	}
	return op.aliased
}

// Qualified returns the aliased form prefixed with "Program:<name>." when
// the base tag is program-scoped. Lookup misses fall back to the raw
// operand text.
func (op *Operand) Qualified() string {
	if !op.qualifiedDone {
		base := op.BaseTag()
		switch {
		case base == nil:
			op.qualified = op.text
		case base.Scope() == ScopeProgram:
			op.qualified = "Program:" + op.resolver().Container + "." + op.Aliased()
		default:
			op.qualified = op.Aliased()
		}
		op.qualifiedDone = true
	}
	return op.qualified
}

// AliasedParents returns dot-truncated prefixes of the aliased form,
// longest first.
func (op *Operand) AliasedParents() []string {
	if op.aliasedParents == nil {
		op.aliasedParents = dotPrefixes(op.Aliased())
	}
	return op.aliasedParents
}

// QualifiedParents applies the qualified-form prefix to every aliased
// parent. The alias walk happens once; the prefix is applied per entry.
func (op *Operand) QualifiedParents() []string {
	if op.qualifiedParents == nil {
		base := op.BaseTag()
		if base == nil || base.Scope() == ScopeController {
			op.qualifiedParents = op.AliasedParents()
		} else {
			aliased := op.AliasedParents()
			out := make([]string, len(aliased))
			for i, p := range aliased {
				out[i] = "Program:" + op.resolver().Container + "." + p
			}
			op.qualifiedParents = out
		}
	}
	return op.qualifiedParents
}

// Role classifies this operand position against the instruction catalog.
func (op *Operand) Role() Role {
	if !op.roleDone {
		op.role = ClassifyOperand(
			op.instr.Opcode(),
			op.position,
			len(op.instr.Operands()),
			op.resolver().IsAOI(op.instr.Opcode()),
		)
		op.roleDone = true
	}
	return op.role
}

func (op *Operand) resolver() *Resolver {
	if op.instr == nil {
		return nil
	}
	return op.instr.resolver()
}
