package logix

import (
	"fmt"
	"regexp"
	"strings"
)

// ---------------------------------------------------------------------------
// Instruction: one OPCODE(args) span
// ---------------------------------------------------------------------------

var opcodeRE = regexp.MustCompile(`^([A-Za-z0-9_]+)\(`)

// Instruction wraps one instruction token from a rung. Instructions are
// always reconstructed fresh from the current rung text; they never
// outlive a text change.
type Instruction struct {
	text     string
	opcode   string
	rung     *Rung
	operands []*Operand

	aliasedText   string
	qualifiedText string
}

// parseInstructionText validates an OPCODE(args) span and returns the
// opcode and the top-level comma-split argument list. The split respects
// nested parentheses and array-subscript brackets, so "MOV(Arr[0],Dest)"
// yields exactly two operands.
func parseInstructionText(text string) (opcode string, args []string, err error) {
	m := opcodeRE.FindStringSubmatch(text)
	if m == nil {
		return "", nil, fmt.Errorf("%w: %q", ErrBadInstruction, text)
	}
	opcode = m[1]

	open := len(opcode) // index of '('
	depth := 0
	closeAt := -1
	for i := open; i < len(text); i++ {
		switch text[i] {
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 {
				closeAt = i
			}
		}
		if closeAt >= 0 {
			break
		}
	}
	if closeAt < 0 || strings.TrimSpace(text[closeAt+1:]) != "" {
		return "", nil, fmt.Errorf("%w: %q", ErrBadInstruction, text)
	}

	inner := text[open+1 : closeAt]
	if inner == "" {
		return opcode, nil, nil
	}

	depth = 0
	start := 0
	for i := 0; i <= len(inner); i++ {
		if i == len(inner) {
			if arg := inner[start:i]; arg != "" {
				args = append(args, arg)
			}
			break
		}
		switch inner[i] {
		case '(', '[':
			depth++
		case ')', ']':
			depth--
		case ',':
			if depth == 0 {
				if arg := inner[start:i]; arg != "" {
					args = append(args, arg)
				}
				start = i + 1
			}
		}
	}
	return opcode, args, nil
}

// newInstruction builds an Instruction owned by rung from one token span.
func newInstruction(text string, rung *Rung) (*Instruction, error) {
	opcode, args, err := parseInstructionText(text)
	if err != nil {
		return nil, err
	}
	in := &Instruction{
		text:   text,
		opcode: opcode,
		rung:   rung,
	}
	in.operands = make([]*Operand, 0, len(args))
	for i, arg := range args {
		in.operands = append(in.operands, newOperand(arg, in, i))
	}
	return in, nil
}

// Text returns the raw instruction span, e.g. "XIC(Tag1.Member)".
func (in *Instruction) Text() string { return in.text }

// Opcode returns the instruction mnemonic, e.g. "XIC".
func (in *Instruction) Opcode() string { return in.opcode }

// Rung returns the owning rung, or nil for a free-standing instruction.
func (in *Instruction) Rung() *Rung { return in.rung }

// Operands returns the ordered operand list.
func (in *Instruction) Operands() []*Operand { return in.operands }

// Role classifies the instruction by opcode alone: always-input,
// output-capable, subroutine call, or unknown.
func (in *Instruction) Role() Role {
	r := OpcodeRole(in.opcode)
	if r == RoleUnknown && in.resolver().IsAOI(in.opcode) {
		return RoleOutput
	}
	return r
}

// IsAOI reports whether the opcode names a registered Add-On Instruction.
func (in *Instruction) IsAOI() bool {
	return in.resolver().IsAOI(in.opcode)
}

// BackingTag resolves the tag sharing the instruction's name, if any.
// AOI calls are backed by a tag of the AOI's data type.
func (in *Instruction) BackingTag() Tag {
	if t, ok := in.resolver().Lookup(in.opcode); ok {
		return t
	}
	return nil
}

// AliasedText returns the instruction span with every operand replaced by
// its aliased form. Memoized; discarded with the instruction on any text
// change.
func (in *Instruction) AliasedText() string {
	if in.aliasedText == "" {
		in.aliasedText = in.rebuild(func(op *Operand) string { return op.Aliased() })
	}
	return in.aliasedText
}

// QualifiedText returns the instruction span with every operand replaced
// by its fully qualified form.
func (in *Instruction) QualifiedText() string {
	if in.qualifiedText == "" {
		in.qualifiedText = in.rebuild(func(op *Operand) string { return op.Qualified() })
	}
	return in.qualifiedText
}

// rebuild reassembles the span from mapped operand texts rather than
// substring replacement, so operands that are substrings of one another
// cannot corrupt the result.
func (in *Instruction) rebuild(mapOp func(*Operand) string) string {
	if len(in.operands) == 0 {
		return in.text
	}
	parts := make([]string, len(in.operands))
	for i, op := range in.operands {
		parts[i] = mapOp(op)
	}
	return in.opcode + "(" + strings.Join(parts, ",") + ")"
}

func (in *Instruction) resolver() *Resolver {
	if in.rung == nil {
		return nil
	}
	return in.rung.resolver
}
