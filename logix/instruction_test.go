package logix

import (
	"errors"
	"reflect"
	"testing"
)

func TestParseInstructionText(t *testing.T) {
	tests := []struct {
		name       string
		text       string
		wantOpcode string
		wantArgs   []string
		wantErr    bool
	}{
		{
			name:       "single operand",
			text:       "XIC(Tag1)",
			wantOpcode: "XIC",
			wantArgs:   []string{"Tag1"},
		},
		{
			name:       "two operands",
			text:       "MOV(Src,Dest)",
			wantOpcode: "MOV",
			wantArgs:   []string{"Src", "Dest"},
		},
		{
			name:       "subscript comma is not a split point",
			text:       "COP(Arr[0],Dest,10)",
			wantOpcode: "COP",
			wantArgs:   []string{"Arr[0]", "Dest", "10"},
		},
		{
			name:       "nested parentheses in expression",
			text:       "CPT(Dest,(A+B)/(C-D))",
			wantOpcode: "CPT",
			wantArgs:   []string{"Dest", "(A+B)/(C-D)"},
		},
		{
			name:       "no operands",
			text:       "NOP()",
			wantOpcode: "NOP",
			wantArgs:   nil,
		},
		{
			name:       "empty operand slots skipped",
			text:       "JSR(Sub,0,,)",
			wantOpcode: "JSR",
			wantArgs:   []string{"Sub", "0"},
		},
		{name: "unbalanced", text: "MOV(Src,Dest", wantErr: true},
		{name: "trailing garbage", text: "MOV(Src,Dest)x", wantErr: true},
		{name: "no opcode", text: "(Src,Dest)", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opcode, args, err := parseInstructionText(tt.text)
			if tt.wantErr {
				if !errors.Is(err, ErrBadInstruction) {
					t.Fatalf("parseInstructionText(%q) err = %v, want ErrBadInstruction", tt.text, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("parseInstructionText(%q): %v", tt.text, err)
			}
			if opcode != tt.wantOpcode {
				t.Errorf("opcode = %q, want %q", opcode, tt.wantOpcode)
			}
			if !reflect.DeepEqual(args, tt.wantArgs) {
				t.Errorf("args = %v, want %v", args, tt.wantArgs)
			}
		})
	}
}

func TestInstructionRebuiltTexts(t *testing.T) {
	local := fakeTable{
		"AliasTag": {name: "AliasTag", scope: ScopeProgram, aliasFor: "BaseTag.Member"},
	}
	global := fakeTable{
		"BaseTag": {name: "BaseTag", scope: ScopeController},
	}
	r := mustRung(t, "MOV(AliasTag.Sub,BaseTag);", &Resolver{
		Local:     local,
		Global:    global,
		Container: "MainProgram",
	})

	in := r.InstructionAt(0)
	if in == nil {
		t.Fatal("no instruction parsed")
	}
	if got, want := in.AliasedText(), "MOV(BaseTag.Member.Sub,BaseTag)"; got != want {
		t.Errorf("AliasedText() = %q, want %q", got, want)
	}
	if got, want := in.QualifiedText(), "MOV(BaseTag.Member.Sub,BaseTag)"; got != want {
		t.Errorf("QualifiedText() = %q, want %q", got, want)
	}
}

func TestInstructionRoleWithAOI(t *testing.T) {
	r := mustRung(t, "XIC(A)MyValve(V1)OTE(B);", &Resolver{
		AOIs: map[string]bool{"MyValve": true},
	})
	roles := make([]Role, 0, 3)
	for _, in := range r.Instructions() {
		roles = append(roles, in.Role())
	}
	want := []Role{RoleInput, RoleOutput, RoleOutput}
	if !reflect.DeepEqual(roles, want) {
		t.Errorf("roles = %v, want %v", roles, want)
	}
	if !r.InstructionAt(1).IsAOI() {
		t.Error("IsAOI() = false for registered AOI")
	}
}
