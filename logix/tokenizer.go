package logix

import (
	"regexp"
	"strings"
)

// ---------------------------------------------------------------------------
// Tokenizer: rung text -> instruction spans + branch markers
// ---------------------------------------------------------------------------
//
// Rung text is a flat string like "XIC(A)[XIO(B),XIC(C)]OTE(D);". The
// brackets and commas outside instruction parentheses are branch syntax;
// the same characters inside an instruction (array subscripts such as
// Tag[0], or multi-operand argument lists) are operand content. The
// tokenizer therefore finds exact instruction spans first, then walks the
// text and only treats a bracket or comma as structural when it falls
// outside every span.

var instStartRE = regexp.MustCompile(`[A-Za-z0-9_]+\(`)

// span is a half-open byte range [start, end) in the source text.
type span struct {
	start, end int
}

// instructionSpans locates every complete OPCODE(...) span in text. A
// candidate start inside an already accepted span is skipped; a span
// whose parentheses never close is dropped (lenient by design: malformed
// trailing text must not take the whole rung down).
func instructionSpans(text string) []span {
	var spans []span
	last := -1
	for _, loc := range instStartRE.FindAllStringIndex(text, -1) {
		if loc[0] < last {
			continue
		}
		depth := 1
		pos := loc[1] // just past the opening parenthesis
		for pos < len(text) && depth > 0 {
			switch text[pos] {
			case '(':
				depth++
			case ')':
				depth--
			}
			pos++
		}
		if depth == 0 {
			spans = append(spans, span{loc[0], pos})
			last = pos
		}
	}
	return spans
}

// ExtractInstructions returns every complete instruction span in text, in
// order of appearance.
func ExtractInstructions(text string) []string {
	spans := instructionSpans(text)
	out := make([]string, 0, len(spans))
	for _, s := range spans {
		out = append(out, text[s.start:s.end])
	}
	return out
}

// Tokenize splits rung text into instruction tokens and branch-structure
// tokens. Free text between structural markers is re-scanned for the
// instructions it contains; anything else (whitespace, the trailing
// semicolon, stray characters) is discarded.
func Tokenize(text string) []Token {
	spans := instructionSpans(text)

	inside := func(i int) bool {
		for _, s := range spans {
			if s.start <= i && i < s.end {
				return true
			}
		}
		return false
	}

	var tokens []Token
	var segment strings.Builder

	flush := func() {
		if strings.TrimSpace(segment.String()) != "" {
			for _, instr := range ExtractInstructions(segment.String()) {
				tokens = append(tokens, Token{Kind: TokenInstruction, Text: instr})
			}
		}
		segment.Reset()
	}

	for i := 0; i < len(text); i++ {
		c := text[i]
		switch c {
		case '[', ']', ',':
			if inside(i) {
				segment.WriteByte(c)
				continue
			}
			flush()
			switch c {
			case '[':
				tokens = append(tokens, Token{Kind: TokenBranchStart, Text: "["})
			case ']':
				tokens = append(tokens, Token{Kind: TokenBranchEnd, Text: "]"})
			case ',':
				tokens = append(tokens, Token{Kind: TokenBranchNext, Text: ","})
			}
		default:
			segment.WriteByte(c)
		}
	}
	flush()

	return tokens
}
