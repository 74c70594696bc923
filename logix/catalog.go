package logix

// ---------------------------------------------------------------------------
// Instruction catalog: opcode -> classification rules
// ---------------------------------------------------------------------------
//
// The catalog is a fixed contract consumed by validators and diagnostic
// reports. The output table maps each opcode to the position of its output
// operand; -1 means the final operand, whatever the arity.

// Role classifies an instruction or a single operand position.
type Role int

const (
	RoleUnknown Role = iota
	RoleInput
	RoleOutput
	RoleJSR
)

var roleNames = map[Role]string{
	RoleUnknown: "unknown",
	RoleInput:   "input",
	RoleOutput:  "output",
	RoleJSR:     "jsr",
}

func (r Role) String() string {
	if name, ok := roleNames[r]; ok {
		return name
	}
	return "unknown"
}

// OpcodeJSR is the subroutine-call opcode, classified as its own category.
const OpcodeJSR = "JSR"

// inputOpcodes are always-input instructions: every operand is examined,
// never written.
var inputOpcodes = map[string]bool{
	"XIC": true,
	"XIO": true,
}

// outputOperandIndex maps output instructions to the index of the operand
// they write. -1 selects the last operand.
var outputOperandIndex = map[string]int{
	"OTE":  -1,
	"OTU":  -1,
	"OTL":  -1,
	"TON":  0,
	"TOF":  0,
	"RTO":  0,
	"CTU":  0,
	"CTD":  0,
	"RES":  -1,
	"MSG":  -1,
	"GSV":  -1,
	"ONS":  -1,
	"OSR":  -1,
	"OSF":  -1,
	"IOT":  -1,
	"CPT":  0,
	"ADD":  -1,
	"SUB":  -1,
	"MUL":  -1,
	"DIV":  -1,
	"MOD":  -1,
	"SQR":  -1,
	"NEG":  -1,
	"ABS":  -1,
	"MOV":  -1,
	"MVM":  -1,
	"AND":  -1,
	"OR":   -1,
	"XOR":  -1,
	"NOT":  -1,
	"SWPB": -1,
	"CLR":  -1,
	"BTD":  2,
	"FAL":  4,
	"COP":  1,
	"FLL":  1,
	"AVE":  2,
	"SIZE": -1,
	"CPS":  1,
}

// OpcodeRole classifies an opcode without regard to operand position:
// always-input, output-capable, subroutine call, or unknown.
func OpcodeRole(opcode string) Role {
	switch {
	case opcode == OpcodeJSR:
		return RoleJSR
	case inputOpcodes[opcode]:
		return RoleInput
	default:
		if _, ok := outputOperandIndex[opcode]; ok {
			return RoleOutput
		}
		return RoleUnknown
	}
}

// ClassifyOperand classifies one operand position of an instruction.
// isAOI reports whether the opcode names a caller-supplied custom
// instruction (Add-On Instruction); those operands classify uniformly as
// Output, a documented simplification since the true per-parameter
// direction is unknown to this component. Classification never fails and
// is deterministic for a given (opcode, position, count) triple.
func ClassifyOperand(opcode string, position, count int, isAOI bool) Role {
	if opcode == OpcodeJSR {
		return RoleJSR
	}
	if inputOpcodes[opcode] {
		return RoleInput
	}
	if idx, ok := outputOperandIndex[opcode]; ok {
		if position == idx || (idx == -1 && position == count-1) {
			return RoleOutput
		}
		return RoleInput
	}
	if isAOI {
		return RoleOutput
	}
	return RoleUnknown
}

// CataloguedOpcodes returns every opcode the catalog knows about, for
// report tooling. The slice is freshly allocated.
func CataloguedOpcodes() []string {
	out := make([]string, 0, len(inputOpcodes)+len(outputOperandIndex)+1)
	for op := range inputOpcodes {
		out = append(out, op)
	}
	for op := range outputOperandIndex {
		out = append(out, op)
	}
	out = append(out, OpcodeJSR)
	return out
}
