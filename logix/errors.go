package logix

import (
	"errors"
	"fmt"
)

// Sentinel errors for mutation preconditions. Callers can test with
// errors.Is; the wrapped message carries the offending value.
var (
	// ErrOutOfRange indicates a position or index outside the current
	// token sequence.
	ErrOutOfRange = errors.New("position out of range")

	// ErrBadInstruction indicates instruction text that does not parse as
	// OPCODE(args).
	ErrBadInstruction = errors.New("malformed instruction text")

	// ErrNoInstruction indicates that no instruction matched the given
	// text, occurrence, or token position.
	ErrNoInstruction = errors.New("instruction not found")

	// ErrUnknownBranch indicates a branch id that is not present in the
	// rung's branch table.
	ErrUnknownBranch = errors.New("branch not found")
)

// StructureError reports an unbalanced or malformed branch structure
// discovered while building the rung sequence. Parse-time structure
// errors abort rung construction; no partial sequence is ever exposed.
type StructureError struct {
	Position int    // token position where the violation was detected
	Reason   string
}

func (e *StructureError) Error() string {
	return fmt.Sprintf("rung structure error at token %d: %s", e.Position, e.Reason)
}
