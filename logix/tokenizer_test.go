package logix

import (
	"reflect"
	"testing"
)

func TestExtractInstructions(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []string
	}{
		{
			name: "simple pair",
			text: "XIC(Tag1)OTE(Tag2);",
			want: []string{"XIC(Tag1)", "OTE(Tag2)"},
		},
		{
			name: "array subscript stays inside span",
			text: "XIC(Arr[0])MOV(Arr[1],Dest);",
			want: []string{"XIC(Arr[0])", "MOV(Arr[1],Dest)"},
		},
		{
			name: "nested parentheses in expression operand",
			text: "CPT(Dest,(A+B)/C);",
			want: []string{"CPT(Dest,(A+B)/C)"},
		},
		{
			name: "unclosed span dropped",
			text: "XIC(Tag1)OTE(Tag2",
			want: []string{"XIC(Tag1)"},
		},
		{
			name: "empty",
			text: ";",
			want: []string{},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ExtractInstructions(tt.text)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("ExtractInstructions(%q) = %v, want %v", tt.text, got, tt.want)
			}
		})
	}
}

func TestTokenize(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []Token
	}{
		{
			name: "flat rung",
			text: "XIC(A)OTE(B);",
			want: []Token{
				{TokenInstruction, "XIC(A)"},
				{TokenInstruction, "OTE(B)"},
			},
		},
		{
			name: "single branch",
			text: "XIC(A)[XIO(B),XIC(C)]OTE(D);",
			want: []Token{
				{TokenInstruction, "XIC(A)"},
				{TokenBranchStart, "["},
				{TokenInstruction, "XIO(B)"},
				{TokenBranchNext, ","},
				{TokenInstruction, "XIC(C)"},
				{TokenBranchEnd, "]"},
				{TokenInstruction, "OTE(D)"},
			},
		},
		{
			name: "subscript brackets are not branch syntax",
			text: "XIC(Arr[0])OTE(B);",
			want: []Token{
				{TokenInstruction, "XIC(Arr[0])"},
				{TokenInstruction, "OTE(B)"},
			},
		},
		{
			name: "operand comma is not an arm separator",
			text: "MOV(Src,Dest);",
			want: []Token{
				{TokenInstruction, "MOV(Src,Dest)"},
			},
		},
		{
			name: "nested branches",
			text: "[XIC(A)[XIC(B),XIC(C)],XIC(D)];",
			want: []Token{
				{TokenBranchStart, "["},
				{TokenInstruction, "XIC(A)"},
				{TokenBranchStart, "["},
				{TokenInstruction, "XIC(B)"},
				{TokenBranchNext, ","},
				{TokenInstruction, "XIC(C)"},
				{TokenBranchEnd, "]"},
				{TokenBranchNext, ","},
				{TokenInstruction, "XIC(D)"},
				{TokenBranchEnd, "]"},
			},
		},
		{
			name: "whitespace between instructions",
			text: "XIC(A)  OTE(B) ;",
			want: []Token{
				{TokenInstruction, "XIC(A)"},
				{TokenInstruction, "OTE(B)"},
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Tokenize(tt.text)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Tokenize(%q) = %v, want %v", tt.text, got, tt.want)
			}
		})
	}
}

func TestJoinTokensRoundTrip(t *testing.T) {
	texts := []string{
		"XIC(A)OTE(B)",
		"XIC(A)[XIO(B),XIC(C)]OTE(D)",
		"[XIC(Arr[0])[XIC(B),XIC(C)],MOV(S,D)]",
	}
	for _, text := range texts {
		if got := JoinTokens(Tokenize(text + ";")); got != text {
			t.Errorf("JoinTokens(Tokenize(%q)) = %q", text, got)
		}
	}
}
