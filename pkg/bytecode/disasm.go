package bytecode

import (
	"fmt"
	"strings"
)

// Disassemble returns a human-readable bytecode listing for the chunk.
func (c *Chunk) Disassemble() string {
	return c.DisassembleWithName("")
}

// DisassembleWithName returns a human-readable bytecode listing with a name header.
func (c *Chunk) DisassembleWithName(name string) string {
	var sb strings.Builder

	if name != "" {
		sb.WriteString(fmt.Sprintf("== %s ==\n", name))
	}

	if len(c.Constants) > 0 {
		sb.WriteString("; Constants:\n")
		for i, v := range c.Constants {
			sb.WriteString(fmt.Sprintf(";   [%3d] %s\n", i, v))
		}
		sb.WriteString("\n")
	}

	sb.WriteString("; Code:\n")
	offset := 0
	for offset < len(c.Code) {
		line, instrLen := c.DisassembleInstruction(offset)
		sb.WriteString(line)
		sb.WriteString("\n")
		offset += instrLen
	}

	return sb.String()
}

// DisassembleInstruction formats the instruction at offset and returns it
// with the instruction's width, so callers can step through the code.
// Offsets past the end return width 0.
func (c *Chunk) DisassembleInstruction(offset int) (string, int) {
	if offset < 0 || offset >= len(c.Code) {
		return "<end of code>", 0
	}

	lineCol := fmt.Sprintf("%4d", c.Line(offset))
	if offset > 0 && c.Line(offset) == c.Line(offset-1) {
		lineCol = "   |"
	}

	op := Opcode(c.Code[offset])
	switch op {
	case OpConstant:
		if offset+1 >= len(c.Code) {
			return fmt.Sprintf("%04d %s %-16s <truncated>", offset, lineCol, op), 1
		}
		idx := c.Code[offset+1]
		display := "<out of range>"
		if v, ok := c.Constant(idx); ok {
			display = v.String()
		}
		return fmt.Sprintf("%04d %s %-16s %4d '%s'", offset, lineCol, op, idx, display), 2

	default:
		return fmt.Sprintf("%04d %s %s", offset, lineCol, op), 1
	}
}
