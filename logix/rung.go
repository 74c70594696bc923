package logix

import (
	"fmt"
	"strings"
)

// ---------------------------------------------------------------------------
// Rung: text + comment + derived sequence, and the mutation API
// ---------------------------------------------------------------------------

// Rung owns one row of ladder logic: its text (always ';'-terminated),
// its comment, and its ordinal number within the routine. Every text
// change discards and fully rebuilds the derived instruction list,
// sequence and branch table; nothing is re-parsed incrementally.
//
// Mutations are all-or-nothing: the candidate text is parsed to
// completion first, and the rung's prior state is untouched if the parse
// fails. Rungs are not safe for concurrent mutation; callers serialize
// access externally.
type Rung struct {
	number   int
	text     string
	comment  string
	resolver *Resolver

	instructions []*Instruction
	sequence     []*SequenceElement
	branches     map[string]*Branch
	branchOrder  []string
	warnings     []string

	inputInstrs  []*Instruction
	outputInstrs []*Instruction
}

// NewRung parses text into a rung. Structural errors abort construction;
// no partially built sequence is ever exposed. A missing trailing ';' is
// appended.
func NewRung(number int, text, comment string, resolver *Resolver) (*Rung, error) {
	r := &Rung{
		number:   number,
		comment:  comment,
		resolver: resolver,
	}
	if err := r.SetText(text); err != nil {
		return nil, err
	}
	return r, nil
}

// parsedState is the complete derived state for one rung text, built
// off to the side so a failed parse never disturbs the live rung.
type parsedState struct {
	text         string
	instructions []*Instruction
	sequence     []*SequenceElement
	branches     map[string]*Branch
	branchOrder  []string
	warnings     []string
}

// parseText tokenizes and builds the sequence, restarting on degenerate
// single-arm branches. Each restart removes exactly two tokens, so the
// loop is bounded by the token count.
func (r *Rung) parseText(text string) (*parsedState, error) {
	st := &parsedState{}
	for {
		instrs, err := r.extractInstructions(text)
		if err != nil {
			return nil, err
		}
		tokens := Tokenize(text)

		res, heal, err := buildSequence(r.number, tokens, instrs)
		if err != nil {
			return nil, err
		}
		if heal != nil {
			reduced := make([]Token, 0, len(tokens)-2)
			for i, tok := range tokens {
				if i == heal.startToken || i == heal.endToken {
					continue
				}
				reduced = append(reduced, tok)
			}
			st.warnings = append(st.warnings, fmt.Sprintf(
				"degenerate branch at tokens %d-%d removed", heal.startToken, heal.endToken))
			text = terminate(JoinTokens(reduced))
			continue
		}

		st.text = text
		st.instructions = instrs
		st.sequence = res.sequence
		st.branches = res.branches
		st.branchOrder = res.order
		return st, nil
	}
}

func (r *Rung) extractInstructions(text string) ([]*Instruction, error) {
	spans := ExtractInstructions(text)
	instrs := make([]*Instruction, 0, len(spans))
	for _, s := range spans {
		in, err := newInstruction(s, r)
		if err != nil {
			return nil, err
		}
		instrs = append(instrs, in)
	}
	return instrs, nil
}

// terminate appends the trailing ';' if missing.
func terminate(text string) string {
	if !strings.HasSuffix(text, ";") {
		return text + ";"
	}
	return text
}

// SetText replaces the rung text and rebuilds all derived state. On
// error the previous text and structure remain intact.
func (r *Rung) SetText(text string) error {
	st, err := r.parseText(terminate(text))
	if err != nil {
		return err
	}
	r.text = st.text
	r.instructions = st.instructions
	r.sequence = st.sequence
	r.branches = st.branches
	r.branchOrder = st.branchOrder
	r.warnings = st.warnings
	r.inputInstrs = nil
	r.outputInstrs = nil
	return nil
}

// Invalidate rebuilds all derived state from the current text. Containers
// call this after structural tag-table changes so memoized operand
// resolutions are discarded.
func (r *Rung) Invalidate() {
	// The text already parsed once; a re-parse of identical text cannot
	// fail.
	_ = r.SetText(r.text)
}

// ---------------------------------------------------------------------------
// Accessors
// ---------------------------------------------------------------------------

// Number returns the rung's ordinal within its routine.
func (r *Rung) Number() int { return r.number }

// SetNumber sets the rung ordinal. Negative ordinals are rejected.
func (r *Rung) SetNumber(n int) error {
	if n < 0 {
		return fmt.Errorf("%w: rung number %d", ErrOutOfRange, n)
	}
	r.number = n
	return nil
}

// Text returns the canonical rung text, always ';'-terminated.
func (r *Rung) Text() string { return r.text }

// Comment returns the rung comment, possibly multi-line.
func (r *Rung) Comment() string { return r.comment }

// SetComment sets the rung comment.
func (r *Rung) SetComment(c string) { r.comment = c }

// CommentLines returns the number of lines in the comment.
func (r *Rung) CommentLines() int {
	if r.comment == "" {
		return 0
	}
	return len(strings.Split(strings.TrimSuffix(r.comment, "\n"), "\n"))
}

// Resolver returns the tag-resolution environment, which may be nil.
func (r *Rung) Resolver() *Resolver { return r.resolver }

// Equal reports rung equality, defined solely by text.
func (r *Rung) Equal(other *Rung) bool {
	return other != nil && r.text == other.text
}

func (r *Rung) String() string { return r.text }

// Warnings returns parse warnings from the last text change, such as
// degenerate branches that were healed away.
func (r *Rung) Warnings() []string { return r.warnings }

// Instructions returns the instructions in textual order.
func (r *Rung) Instructions() []*Instruction { return r.instructions }

// InstructionCount returns the number of instructions.
func (r *Rung) InstructionCount() int { return len(r.instructions) }

// InstructionAt returns the i'th instruction, or nil out of range.
func (r *Rung) InstructionAt(i int) *Instruction {
	if i < 0 || i >= len(r.instructions) {
		return nil
	}
	return r.instructions[i]
}

// InputInstructions returns instructions whose opcode classifies as
// always-input. Memoized until the next text change.
func (r *Rung) InputInstructions() []*Instruction {
	if r.inputInstrs == nil {
		r.inputInstrs = r.filterByRole(RoleInput)
	}
	return r.inputInstrs
}

// OutputInstructions returns instructions whose opcode classifies as
// output-capable.
func (r *Rung) OutputInstructions() []*Instruction {
	if r.outputInstrs == nil {
		r.outputInstrs = r.filterByRole(RoleOutput)
	}
	return r.outputInstrs
}

func (r *Rung) filterByRole(role Role) []*Instruction {
	out := []*Instruction{}
	for _, in := range r.instructions {
		if in.Role() == role {
			out = append(out, in)
		}
	}
	return out
}

// Sequence returns the ordered sequence of instructions and branch
// markers. The slice is owned by the rung; treat it as read-only.
func (r *Rung) Sequence() []*SequenceElement { return r.sequence }

// ElementAt returns the sequence element at the given position.
func (r *Rung) ElementAt(position int) (*SequenceElement, error) {
	if position < 0 || position >= len(r.sequence) {
		return nil, fmt.Errorf("%w: sequence position %d", ErrOutOfRange, position)
	}
	return r.sequence[position], nil
}

// Branches returns the branch table keyed by branch id.
func (r *Rung) Branches() map[string]*Branch { return r.branches }

// BranchIDs returns branch ids in creation order.
func (r *Rung) BranchIDs() []string { return r.branchOrder }

// BranchCount returns the number of branches, counting "next" arms.
func (r *Rung) BranchCount() int { return len(r.branches) }

// HasBranches reports whether the rung contains any branch.
func (r *Rung) HasBranches() bool { return len(r.branches) > 0 }

// ---------------------------------------------------------------------------
// Queries over the token stream
// ---------------------------------------------------------------------------

// tokens re-tokenizes the current text. The token list is the working
// representation for every mutation.
func (r *Rung) tokens() []Token { return Tokenize(r.text) }

// InstructionPositions returns the token indices at which the exact
// instruction text appears.
func (r *Rung) InstructionPositions(text string) []int {
	var out []int
	for i, tok := range r.tokens() {
		if tok.Kind == TokenInstruction && tok.Text == text {
			out = append(out, i)
		}
	}
	return out
}

// HasInstruction reports whether the exact instruction text appears.
func (r *Rung) HasInstruction(text string) bool {
	return len(r.InstructionPositions(text)) > 0
}

// findInstructionIndex returns the token index of the given occurrence
// (0-based) of the exact instruction text.
func (r *Rung) findInstructionIndex(text string, occurrence int) (int, error) {
	matches := r.InstructionPositions(text)
	if len(matches) == 0 {
		return 0, fmt.Errorf("%w: %q", ErrNoInstruction, text)
	}
	if occurrence < 0 || occurrence >= len(matches) {
		return 0, fmt.Errorf("%w: occurrence %d of %q (have %d)", ErrNoInstruction, occurrence, text, len(matches))
	}
	return matches[occurrence], nil
}

// MatchingBranchEnd returns the token index of the ']' closing the
// branch that starts at the given token index.
func (r *Rung) MatchingBranchEnd(start int) (int, error) {
	tokens := r.tokens()
	if start < 0 || start >= len(tokens) || tokens[start].Kind != TokenBranchStart {
		return 0, fmt.Errorf("%w: token %d is not a branch start", ErrOutOfRange, start)
	}
	depth := 1
	for i := start + 1; i < len(tokens); i++ {
		switch tokens[i].Kind {
		case TokenBranchStart:
			depth++
		case TokenBranchEnd:
			depth--
			if depth == 0 {
				return i, nil
			}
		}
	}
	return 0, &StructureError{Position: start, Reason: "branch start has no matching end"}
}

// BranchNestingLevel returns the bracket depth at the given token index;
// 0 means the main rail.
func (r *Rung) BranchNestingLevel(position int) int {
	level := 0
	for i, tok := range r.tokens() {
		switch tok.Kind {
		case TokenBranchStart:
			level++
		case TokenBranchEnd:
			level--
		}
		if i == position {
			return level
		}
	}
	return 0
}

// BranchInternalNestingLevel returns how many additional arm separators
// appear inside the branch starting at the given token index.
func (r *Rung) BranchInternalNestingLevel(branchPos int) (int, error) {
	end, err := r.MatchingBranchEnd(branchPos)
	if err != nil {
		return 0, err
	}
	tokens := r.tokens()
	open, count, level := 0, 0, 0
	for _, tok := range tokens[branchPos+1 : end] {
		switch tok.Kind {
		case TokenBranchStart:
			open++
		case TokenBranchNext:
			if open > 0 {
				count++
				if count > level {
					level = count
				}
			}
		case TokenBranchEnd:
			open--
		}
	}
	return level, nil
}

// MaxBranchDepth returns the maximum bracket nesting depth; 0 means no
// branches.
func (r *Rung) MaxBranchDepth() int {
	depth, max := 0, 0
	for _, tok := range r.tokens() {
		switch tok.Kind {
		case TokenBranchStart:
			depth++
			if depth > max {
				max = depth
			}
		case TokenBranchEnd:
			depth--
		}
	}
	return max
}

// ValidateStructure reports whether bracket nesting is balanced: the
// open count never goes negative and ends at zero.
func (r *Rung) ValidateStructure() bool {
	depth := 0
	for _, tok := range r.tokens() {
		switch tok.Kind {
		case TokenBranchStart:
			depth++
		case TokenBranchEnd:
			depth--
			if depth < 0 {
				return false
			}
		}
	}
	return depth == 0
}

// MainLineInstructions returns instructions on the main rail, outside
// every branch.
func (r *Rung) MainLineInstructions() []*Instruction {
	out := []*Instruction{}
	for _, el := range r.sequence {
		if el.Kind == ElementInstruction && el.BranchID == "" && el.RootBranchID == "" {
			out = append(out, el.Instruction)
		}
	}
	return out
}

// BranchInstructions returns the instructions whose sequence position
// lies inside the given branch (nested content included).
func (r *Rung) BranchInstructions(branchID string) ([]*Instruction, error) {
	br, ok := r.branches[branchID]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownBranch, branchID)
	}
	end := br.EndPosition
	if end < 0 {
		end = len(r.sequence)
	}
	out := []*Instruction{}
	for _, el := range r.sequence {
		if el.Kind == ElementInstruction && el.Position > br.StartPosition && el.Position < end {
			out = append(out, el.Instruction)
		}
	}
	return out, nil
}

// InstructionSummary maps opcode to occurrence count.
func (r *Rung) InstructionSummary() map[string]int {
	out := make(map[string]int)
	for _, in := range r.instructions {
		out[in.Opcode()]++
	}
	return out
}

// FilterInstructions returns instructions matching the given opcode
// (exact, "" matches all) and operand substring ("" matches all).
func (r *Rung) FilterInstructions(opcode, operandSubstr string) []*Instruction {
	out := []*Instruction{}
	for _, in := range r.instructions {
		if opcode != "" && in.Opcode() != opcode {
			continue
		}
		if operandSubstr != "" {
			found := false
			for _, op := range in.Operands() {
				if strings.Contains(op.Text(), operandSubstr) {
					found = true
					break
				}
			}
			if !found {
				continue
			}
		}
		out = append(out, in)
	}
	return out
}

// ---------------------------------------------------------------------------
// Mutation API
// ---------------------------------------------------------------------------

// AddInstruction inserts instruction text at the given token position. A
// negative position, or one past the end, appends. The text must parse
// as OPCODE(args).
func (r *Rung) AddInstruction(text string, position int) error {
	if _, _, err := parseInstructionText(text); err != nil {
		return err
	}
	tokens := r.tokens()
	tok := Token{Kind: TokenInstruction, Text: text}
	if position < 0 || position >= len(tokens) {
		tokens = append(tokens, tok)
	} else {
		tokens = append(tokens[:position], append([]Token{tok}, tokens[position:]...)...)
	}
	return r.SetText(JoinTokens(tokens))
}

// AppendInstruction adds instruction text at the end of the rung.
func (r *Rung) AppendInstruction(text string) error {
	return r.AddInstruction(text, -1)
}

// RemoveInstructionAt removes the instruction token at the given index.
func (r *Rung) RemoveInstructionAt(index int) error {
	tokens := r.tokens()
	if index < 0 || index >= len(tokens) {
		return fmt.Errorf("%w: token index %d", ErrOutOfRange, index)
	}
	if tokens[index].Kind != TokenInstruction {
		return fmt.Errorf("%w: token %d is %s", ErrNoInstruction, index, tokens[index].Kind)
	}
	tokens = append(tokens[:index], tokens[index+1:]...)
	return r.SetText(JoinTokens(tokens))
}

// RemoveInstruction removes the given occurrence (0-based) of the exact
// instruction text.
func (r *Rung) RemoveInstruction(text string, occurrence int) error {
	index, err := r.findInstructionIndex(text, occurrence)
	if err != nil {
		return err
	}
	return r.RemoveInstructionAt(index)
}

// MoveInstructionAt moves the instruction token at oldIndex to newPos.
func (r *Rung) MoveInstructionAt(oldIndex, newPos int) error {
	tokens := r.tokens()
	if oldIndex < 0 || oldIndex >= len(tokens) {
		return fmt.Errorf("%w: token index %d", ErrOutOfRange, oldIndex)
	}
	if newPos < 0 || newPos >= len(tokens) {
		return fmt.Errorf("%w: new position %d", ErrOutOfRange, newPos)
	}
	if tokens[oldIndex].Kind != TokenInstruction {
		return fmt.Errorf("%w: token %d is %s", ErrNoInstruction, oldIndex, tokens[oldIndex].Kind)
	}
	if oldIndex == newPos {
		return nil
	}
	moved := tokens[oldIndex]
	tokens = append(tokens[:oldIndex], tokens[oldIndex+1:]...)
	tokens = append(tokens[:newPos], append([]Token{moved}, tokens[newPos:]...)...)
	return r.SetText(JoinTokens(tokens))
}

// MoveInstruction moves the given occurrence of the exact instruction
// text to newPos.
func (r *Rung) MoveInstruction(text string, occurrence, newPos int) error {
	index, err := r.findInstructionIndex(text, occurrence)
	if err != nil {
		return err
	}
	return r.MoveInstructionAt(index, newPos)
}

// ReplaceInstructionAt replaces the instruction token at the given index
// with new instruction text.
func (r *Rung) ReplaceInstructionAt(index int, newText string) error {
	if _, _, err := parseInstructionText(newText); err != nil {
		return err
	}
	tokens := r.tokens()
	if index < 0 || index >= len(tokens) {
		return fmt.Errorf("%w: token index %d", ErrOutOfRange, index)
	}
	if tokens[index].Kind != TokenInstruction {
		return fmt.Errorf("%w: token %d is %s", ErrNoInstruction, index, tokens[index].Kind)
	}
	tokens[index] = Token{Kind: TokenInstruction, Text: newText}
	return r.SetText(JoinTokens(tokens))
}

// ReplaceInstruction replaces the given occurrence of the exact old
// instruction text.
func (r *Rung) ReplaceInstruction(oldText string, occurrence int, newText string) error {
	index, err := r.findInstructionIndex(oldText, occurrence)
	if err != nil {
		return err
	}
	return r.ReplaceInstructionAt(index, newText)
}

// insertBranchTokens wraps tokens[start:end) as the first arm of a new
// branch, with armTexts as the second arm. end == len(tokens) closes the
// branch after the last token.
func insertBranchTokens(tokens []Token, start, end int, armTexts []string) ([]Token, error) {
	if start < 0 || end < 0 {
		return nil, fmt.Errorf("%w: branch positions %d..%d", ErrOutOfRange, start, end)
	}
	if start > len(tokens) || end > len(tokens) {
		return nil, fmt.Errorf("%w: branch positions %d..%d beyond %d tokens", ErrOutOfRange, start, end, len(tokens))
	}
	if start > end {
		return nil, fmt.Errorf("%w: branch start %d after end %d", ErrOutOfRange, start, end)
	}

	out := make([]Token, 0, len(tokens)+3+len(armTexts))
	writeEnd := func() {
		out = append(out, Token{Kind: TokenBranchNext, Text: ","})
		for _, t := range armTexts {
			out = append(out, Token{Kind: TokenInstruction, Text: t})
		}
		out = append(out, Token{Kind: TokenBranchEnd, Text: "]"})
	}

	for i, tok := range tokens {
		if i == start {
			out = append(out, Token{Kind: TokenBranchStart, Text: "["})
		}
		if i == end {
			writeEnd()
		}
		out = append(out, tok)
	}
	if start == len(tokens) {
		out = append(out, Token{Kind: TokenBranchStart, Text: "["})
	}
	if end == len(tokens) {
		writeEnd()
	}
	return out, nil
}

// InsertBranch wraps the token range [start, end) in a new branch with
// one empty parallel arm, and returns the new branch's id.
func (r *Rung) InsertBranch(start, end int) (string, error) {
	return r.insertBranch(start, end, nil)
}

func (r *Rung) insertBranch(start, end int, armTexts []string) (string, error) {
	tokens, err := insertBranchTokens(r.tokens(), start, end, armTexts)
	if err != nil {
		return "", err
	}
	if err := r.SetText(JoinTokens(tokens)); err != nil {
		return "", err
	}
	el, err := r.ElementAt(start)
	if err != nil {
		return "", err
	}
	return el.BranchID, nil
}

// InsertBranchLevel adds an empty parallel arm to the branch whose start
// (or arm separator) sits at the given token position.
func (r *Rung) InsertBranchLevel(branchPos int) error {
	tokens := r.tokens()
	if branchPos < 0 || branchPos >= len(tokens) {
		return fmt.Errorf("%w: token index %d", ErrOutOfRange, branchPos)
	}
	k := tokens[branchPos].Kind
	if k != TokenBranchStart && k != TokenBranchNext {
		return fmt.Errorf("%w: token %d is %s, want branch start or separator", ErrOutOfRange, branchPos, k)
	}

	// Find the next top-level arm separator or close after branchPos.
	i := branchPos + 1
	nested := 0
	for ; i < len(tokens); i++ {
		switch tokens[i].Kind {
		case TokenBranchStart:
			nested++
		case TokenBranchEnd:
			if nested <= 0 {
				goto found
			}
			nested--
		case TokenBranchNext:
			if nested <= 0 {
				goto found
			}
		}
	}
	return &StructureError{Position: branchPos, Reason: "no arm separator or branch end after position"}

found:
	tokens = append(tokens[:i], append([]Token{{Kind: TokenBranchNext, Text: ","}}, tokens[i:]...)...)
	return r.SetText(JoinTokens(tokens))
}

// RemoveBranch deletes a branch and everything inside it.
func (r *Rung) RemoveBranch(branchID string) error {
	br, ok := r.branches[branchID]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownBranch, branchID)
	}
	if br.StartPosition < 0 || br.EndPosition < 0 {
		return fmt.Errorf("%w: %q has no resolved span", ErrUnknownBranch, branchID)
	}
	tokens := r.tokens()
	if br.EndPosition >= len(tokens) {
		return fmt.Errorf("%w: branch span %d..%d beyond %d tokens", ErrOutOfRange, br.StartPosition, br.EndPosition, len(tokens))
	}
	tokens = append(tokens[:br.StartPosition], tokens[br.EndPosition+1:]...)
	return r.SetText(JoinTokens(tokens))
}

// MoveBranch removes a branch and re-inserts its instructions (flattened
// into the new branch's parallel arm) at a new token range.
func (r *Rung) MoveBranch(branchID string, newStart, newEnd int) error {
	br, ok := r.branches[branchID]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownBranch, branchID)
	}

	tokens := r.tokens()
	var armTexts []string
	for i := br.StartPosition + 1; i < br.EndPosition && i < len(tokens); i++ {
		if tokens[i].Kind == TokenInstruction {
			armTexts = append(armTexts, tokens[i].Text)
		}
	}

	if err := r.RemoveBranch(branchID); err != nil {
		return err
	}
	_, err := r.insertBranch(newStart, newEnd, armTexts)
	return err
}

// WrapInBranch wraps the instruction tokens in [start, end) into the
// parallel arm of a new branch at start, and returns the branch id.
func (r *Rung) WrapInBranch(start, end int) (string, error) {
	tokens := r.tokens()
	if start < 0 || end < 0 || start > end || end > len(tokens) {
		return "", fmt.Errorf("%w: wrap range %d..%d over %d tokens", ErrOutOfRange, start, end, len(tokens))
	}
	var wrapped []string
	for _, tok := range tokens[start:end] {
		if tok.Kind != TokenInstruction {
			return "", fmt.Errorf("%w: wrap range %d..%d crosses branch structure", ErrOutOfRange, start, end)
		}
		wrapped = append(wrapped, tok.Text)
	}
	remaining := append(append([]Token{}, tokens[:start]...), tokens[end:]...)
	out, err := insertBranchTokens(remaining, start, start, wrapped)
	if err != nil {
		return "", err
	}
	if err := r.SetText(JoinTokens(out)); err != nil {
		return "", err
	}
	el, err := r.ElementAt(start)
	if err != nil {
		return "", err
	}
	return el.BranchID, nil
}
