package bytecode

import "fmt"

// Opcode represents a bytecode instruction.
// The numeric values are a stable contract shared by the compiler, the VM
// and the wire encoding.
type Opcode byte

const (
	OpReturn   Opcode = 0 // Pop top of stack and halt with it as the result
	OpConstant Opcode = 1 // Push constant from pool: OpConstant <index:u8>
	OpAdd      Opcode = 2 // Pop two, push sum
	OpSubtract Opcode = 3 // Pop two, push difference (a - b where b is TOS)
	OpMultiply Opcode = 4 // Pop two, push product
	OpDivide   Opcode = 5 // Pop two, push quotient (a / b where b is TOS)
)

// OpcodeInfo provides metadata about each opcode for debugging and validation.
type OpcodeInfo struct {
	Name       string // Human-readable name
	StackPop   int    // How many values popped from stack
	StackPush  int    // How many values pushed to stack
	OperandLen int    // Number of operand bytes following the opcode
}

// opcodeInfoTable maps opcodes to their metadata.
var opcodeInfoTable = map[Opcode]OpcodeInfo{
	OpReturn:   {"RETURN", 1, 0, 0},
	OpConstant: {"CONSTANT", 0, 1, 1},
	OpAdd:      {"ADD", 2, 1, 0},
	OpSubtract: {"SUBTRACT", 2, 1, 0},
	OpMultiply: {"MULTIPLY", 2, 1, 0},
	OpDivide:   {"DIVIDE", 2, 1, 0},
}

// GetOpcodeInfo returns metadata for an opcode.
// Unknown opcodes get the name "UNKNOWN(0xNN)" and no operands.
func GetOpcodeInfo(op Opcode) OpcodeInfo {
	if info, ok := opcodeInfoTable[op]; ok {
		return info
	}
	return OpcodeInfo{Name: fmt.Sprintf("UNKNOWN(0x%02X)", byte(op))}
}

// String returns the human-readable name of an opcode.
func (op Opcode) String() string {
	return GetOpcodeInfo(op).Name
}

// Defined reports whether op is part of the instruction set.
func (op Opcode) Defined() bool {
	_, ok := opcodeInfoTable[op]
	return ok
}

// OperandLen returns the number of operand bytes for this opcode.
func (op Opcode) OperandLen() int {
	return GetOpcodeInfo(op).OperandLen
}

// InstructionLen returns the total length of an instruction (1 + operand bytes).
// OpConstant is two bytes wide; every other opcode is one.
func (op Opcode) InstructionLen() int {
	return 1 + op.OperandLen()
}

// IsArithmetic returns true for the binary arithmetic opcodes.
func (op Opcode) IsArithmetic() bool {
	return op >= OpAdd && op <= OpDivide
}

// AllOpcodes returns every defined opcode in numeric order.
func AllOpcodes() []Opcode {
	opcodes := make([]Opcode, 0, len(opcodeInfoTable))
	for op := OpReturn; op <= OpDivide; op++ {
		opcodes = append(opcodes, op)
	}
	return opcodes
}

// OpcodeCount returns the number of defined opcodes.
func OpcodeCount() int {
	return len(opcodeInfoTable)
}
