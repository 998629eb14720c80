package bytecode

import (
	"errors"
	"fmt"
)

// MaxConstants is the size of the constant pool addressable by the
// one-byte OpConstant operand.
const MaxConstants = 256

var (
	// ErrTooManyConstants is returned when a chunk's constant pool is full.
	ErrTooManyConstants = errors.New("too many constants in one chunk")

	// ErrLineTableMismatch means the code and line tables differ in length.
	ErrLineTableMismatch = errors.New("code and line tables differ in length")
)

// Chunk represents compiled bytecode for a single expression.
type Chunk struct {
	// Code section
	Code []byte // Bytecode instructions

	// Constant pool - values referenced by OpConstant
	Constants []Value

	// Lines holds the source line of each byte in Code.
	Lines []int

	sealed bool
}

// NewChunk creates a new empty chunk.
func NewChunk() *Chunk {
	return &Chunk{
		Code:      make([]byte, 0, 64),
		Constants: make([]Value, 0, 8),
		Lines:     make([]int, 0, 64),
	}
}

// Write appends one code byte and the line it came from.
func (c *Chunk) Write(b byte, line int) {
	c.mustBeOpen()
	c.Code = append(c.Code, b)
	c.Lines = append(c.Lines, line)
}

// WriteOp appends a single-byte opcode and returns its offset.
func (c *Chunk) WriteOp(op Opcode, line int) int {
	offset := len(c.Code)
	c.Write(byte(op), line)
	return offset
}

// AddConstant appends a value to the pool and returns its index.
// Values are not deduplicated: every literal gets its own slot.
func (c *Chunk) AddConstant(v Value) (byte, error) {
	c.mustBeOpen()
	if len(c.Constants) >= MaxConstants {
		return 0, ErrTooManyConstants
	}
	c.Constants = append(c.Constants, v)
	return byte(len(c.Constants) - 1), nil
}

// WriteConstant adds v to the pool and emits OpConstant referencing it.
func (c *Chunk) WriteConstant(v Value, line int) (int, error) {
	idx, err := c.AddConstant(v)
	if err != nil {
		return 0, err
	}
	offset := c.WriteOp(OpConstant, line)
	c.Write(idx, line)
	return offset, nil
}

// Constant returns the pool entry at index and whether it exists.
func (c *Chunk) Constant(index byte) (Value, bool) {
	if int(index) >= len(c.Constants) {
		return Value{}, false
	}
	return c.Constants[index], true
}

// Line returns the source line for a code offset, or 0 if out of range.
func (c *Chunk) Line(offset int) int {
	if offset < 0 || offset >= len(c.Lines) {
		return 0
	}
	return c.Lines[offset]
}

// CodeLen returns the length of the code section.
func (c *Chunk) CodeLen() int {
	return len(c.Code)
}

// ConstantCount returns the number of constants in the pool.
func (c *Chunk) ConstantCount() int {
	return len(c.Constants)
}

// Seal marks the chunk read-only. Writes after Seal panic.
func (c *Chunk) Seal() {
	c.sealed = true
}

// Sealed reports whether the chunk has been sealed.
func (c *Chunk) Sealed() bool {
	return c.sealed
}

func (c *Chunk) mustBeOpen() {
	if c.sealed {
		panic("bytecode: write to sealed chunk")
	}
}

// Validate checks the structural invariants of a chunk: lockstep code and
// line tables, a pool within MaxConstants, and an instruction stream that
// decodes to its end with every constant index in range. It does not
// require the stream to end in OpReturn.
func (c *Chunk) Validate() error {
	if len(c.Code) != len(c.Lines) {
		return fmt.Errorf("%w: %d code bytes, %d lines", ErrLineTableMismatch, len(c.Code), len(c.Lines))
	}
	if len(c.Constants) > MaxConstants {
		return fmt.Errorf("%w: %d", ErrTooManyConstants, len(c.Constants))
	}
	for i, v := range c.Constants {
		if !v.Kind().Valid() {
			return fmt.Errorf("constant %d has unknown kind %s", i, v.Kind())
		}
	}

	offset := 0
	for offset < len(c.Code) {
		op := Opcode(c.Code[offset])
		if !op.Defined() {
			return fmt.Errorf("unknown opcode 0x%02X at offset %d", byte(op), offset)
		}
		width := op.InstructionLen()
		if offset+width > len(c.Code) {
			return fmt.Errorf("truncated %s at offset %d", op, offset)
		}
		if op == OpConstant {
			if idx := c.Code[offset+1]; int(idx) >= len(c.Constants) {
				return fmt.Errorf("constant index %d out of range at offset %d", idx, offset)
			}
		}
		offset += width
	}
	return nil
}
