package logix

import "fmt"

// ---------------------------------------------------------------------------
// Sequence + branch table
// ---------------------------------------------------------------------------

// ElementKind is the tag of a SequenceElement.
type ElementKind int

const (
	ElementInstruction ElementKind = iota
	ElementBranchStart
	ElementBranchNext
	ElementBranchEnd
)

var elementKindNames = map[ElementKind]string{
	ElementInstruction: "instruction",
	ElementBranchStart: "branch_start",
	ElementBranchNext:  "branch_next",
	ElementBranchEnd:   "branch_end",
}

func (k ElementKind) String() string {
	if name, ok := elementKindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("ElementKind(%d)", int(k))
}

// SequenceElement is one entry in the rung's ordered sequence: an
// instruction, or a branch-structure marker. Elements are fully owned by
// the rung and rebuilt wholesale on every text change.
type SequenceElement struct {
	Kind        ElementKind
	Instruction *Instruction // set only for ElementInstruction
	BranchID    string       // active branch (or the branch being opened/closed)
	RootBranchID string      // enclosing bracket's branch, if any
	BranchLevel int          // arm index within the enclosing bracket; 0 = first arm
	Position    int          // sequence-local ordinal (== token index)
}

// Branch describes one bracket (or one "next" arm) in the rung.
type Branch struct {
	ID            string
	StartPosition int
	EndPosition   int
	RootBranchID  string    // parent bracket, "" for a top-level branch
	Nested        []*Branch // ordered sibling arms introduced by ','
}

// sequenceResult carries everything one builder pass produces.
type sequenceResult struct {
	sequence []*SequenceElement
	branches map[string]*Branch
	order    []string // branch ids in creation order
}

// healRequest asks the caller to drop the two bracket tokens of a
// degenerate (zero-arm) branch and re-parse the reduced token list.
type healRequest struct {
	startToken int
	endToken   int
}

// buildSequence walks the token stream and produces the sequence and
// branch table. It returns a non-nil healRequest when it finds a
// degenerate branch; the caller removes the two tokens and restarts,
// which terminates because every restart strictly shrinks the token
// count by two.
func buildSequence(rungNumber int, tokens []Token, instrs []*Instruction) (*sequenceResult, *healRequest, error) {
	res := &sequenceResult{branches: make(map[string]*Branch)}

	var (
		stack        []*Branch
		rootBranchID string
		branchID     string
		branchLevel  int
		levelHistory []int
		rootHistory  []string
		counter      int
		instrIndex   int
	)

	newBranchID := func() string {
		id := fmt.Sprintf("rung_%d_branch_%d", rungNumber, counter)
		counter++
		return id
	}

	for position, tok := range tokens {
		switch tok.Kind {
		case TokenBranchStart:
			id := newBranchID()
			levelHistory = append(levelHistory, branchLevel)
			branchLevel = 0

			br := &Branch{
				ID:            id,
				StartPosition: position,
				EndPosition:   -1,
				RootBranchID:  rootBranchID,
			}
			stack = append(stack, br)
			res.branches[id] = br
			res.order = append(res.order, id)
			res.sequence = append(res.sequence, &SequenceElement{
				Kind:         ElementBranchStart,
				BranchID:     id,
				RootBranchID: rootBranchID,
				BranchLevel:  branchLevel,
				Position:     position,
			})

			// The new branch becomes the root for everything inside it.
			rootHistory = append(rootHistory, rootBranchID)
			rootBranchID = id
			branchID = id

		case TokenBranchNext:
			if len(stack) == 0 {
				return nil, nil, &StructureError{Position: position, Reason: "branch separator outside any open branch"}
			}
			parent := stack[len(stack)-1]
			branchLevel++
			branchID = fmt.Sprintf("%s:%d", parent.ID, branchLevel)

			if branchLevel > 1 {
				// The previous arm ends just before this separator.
				parent.Nested[len(parent.Nested)-1].EndPosition = position - 1
			}

			arm := &Branch{
				ID:            branchID,
				StartPosition: position,
				EndPosition:   -1,
				RootBranchID:  parent.ID,
			}
			parent.Nested = append(parent.Nested, arm)
			res.branches[branchID] = arm
			res.order = append(res.order, branchID)
			res.sequence = append(res.sequence, &SequenceElement{
				Kind:         ElementBranchNext,
				BranchID:     branchID,
				RootBranchID: rootBranchID,
				BranchLevel:  branchLevel,
				Position:     position,
			})

		case TokenBranchEnd:
			if len(stack) == 0 {
				return nil, nil, &StructureError{Position: position, Reason: "unmatched branch close"}
			}
			br := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			br.EndPosition = position

			if len(br.Nested) == 0 {
				// Degenerate single-arm branch: both bracket tokens are
				// dropped and the parse restarts on the reduced text.
				return nil, &healRequest{startToken: br.StartPosition, endToken: position}, nil
			}
			br.Nested[len(br.Nested)-1].EndPosition = position - 1

			if n := len(rootHistory); n > 0 {
				rootBranchID = rootHistory[n-1]
				rootHistory = rootHistory[:n-1]
			} else {
				rootBranchID = ""
			}
			branchID = br.RootBranchID
			if n := len(levelHistory); n > 0 {
				branchLevel = levelHistory[n-1]
				levelHistory = levelHistory[:n-1]
			} else {
				branchLevel = 0
			}

			res.sequence = append(res.sequence, &SequenceElement{
				Kind:         ElementBranchEnd,
				BranchID:     br.ID,
				RootBranchID: br.RootBranchID,
				BranchLevel:  branchLevel,
				Position:     position,
			})

		case TokenInstruction:
			instr := matchInstruction(tok.Text, instrIndex, instrs)
			if instr == nil {
				return nil, nil, &StructureError{Position: position, Reason: fmt.Sprintf("instruction %q has no parsed counterpart", tok.Text)}
			}
			res.sequence = append(res.sequence, &SequenceElement{
				Kind:         ElementInstruction,
				Instruction:  instr,
				BranchID:     branchID,
				RootBranchID: rootBranchID,
				BranchLevel:  branchLevel,
				Position:     position,
			})
			instrIndex++
		}
	}

	if len(stack) > 0 {
		return nil, nil, &StructureError{Position: len(tokens), Reason: "branch left open at end of rung"}
	}

	return res, nil, nil
}

// matchInstruction pairs a token with its pre-extracted Instruction: the
// one at the running index when the text agrees, else the first exact
// text match, else the positional index as a defensive fallback for
// duplicate instruction text.
func matchInstruction(text string, index int, instrs []*Instruction) *Instruction {
	if index < len(instrs) && instrs[index].Text() == text {
		return instrs[index]
	}
	for _, in := range instrs {
		if in.Text() == text {
			return in
		}
	}
	if index >= 0 && index < len(instrs) {
		return instrs[index]
	}
	return nil
}
