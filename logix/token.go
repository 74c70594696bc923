package logix

import "fmt"

// ---------------------------------------------------------------------------
// Tokens for rung text
// ---------------------------------------------------------------------------

// TokenKind distinguishes instruction spans from branch-structure markers.
type TokenKind int

const (
	// TokenInstruction is a complete OPCODE(...) span with balanced
	// parentheses.
	TokenInstruction TokenKind = iota

	// TokenBranchStart is a '[' outside every instruction span.
	TokenBranchStart

	// TokenBranchNext is a ',' outside every instruction span.
	TokenBranchNext

	// TokenBranchEnd is a ']' outside every instruction span.
	TokenBranchEnd
)

var tokenKindNames = map[TokenKind]string{
	TokenInstruction: "INSTRUCTION",
	TokenBranchStart: "[",
	TokenBranchNext:  ",",
	TokenBranchEnd:   "]",
}

func (k TokenKind) String() string {
	if name, ok := tokenKindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("Token(%d)", int(k))
}

// Token is one element of a tokenized rung: an instruction span or a
// single branch-structure character.
type Token struct {
	Kind TokenKind
	Text string
}

func (t Token) String() string {
	if t.Kind == TokenInstruction {
		return fmt.Sprintf("INSTRUCTION(%q)", t.Text)
	}
	return t.Kind.String()
}

// JoinTokens concatenates token texts back into rung text, without the
// trailing semicolon. For any token list produced by Tokenize this
// reproduces the instruction content of the input exactly.
func JoinTokens(tokens []Token) string {
	var b []byte
	for _, t := range tokens {
		b = append(b, t.Text...)
	}
	return string(b)
}
