package vm

import (
	"errors"
	"fmt"

	"github.com/chazu/tally/pkg/bytecode"
)

var (
	// ErrStackUnderflow means an instruction popped an empty stack.
	ErrStackUnderflow = errors.New("stack underflow")

	// ErrUnknownOpcode means the code section holds a byte that is not an opcode.
	ErrUnknownOpcode = errors.New("unknown opcode")

	// ErrTruncatedInstruction means an instruction's operand runs past the end of code.
	ErrTruncatedInstruction = errors.New("truncated instruction")

	// ErrBadConstant means OpConstant referenced a slot outside the pool.
	ErrBadConstant = errors.New("constant index out of range")

	// ErrNoReturn means execution reached the end of code without OpReturn.
	ErrNoReturn = errors.New("code ended without return")

	// ErrOperandType means an arithmetic operand was not a number.
	ErrOperandType = errors.New("operands must be numbers")

	// ErrNilChunk means Run was called without a chunk.
	ErrNilChunk = errors.New("no chunk to run")
)

// RuntimeError reports a fatal condition during execution, with the code
// offset and source line of the instruction that raised it.
type RuntimeError struct {
	Offset int
	Line   int
	Op     bytecode.Opcode
	Err    error
}

func (e *RuntimeError) Error() string {
	if errors.Is(e.Err, ErrNoReturn) {
		return fmt.Sprintf("line %d: runtime error at %04d: %v", e.Line, e.Offset, e.Err)
	}
	return fmt.Sprintf("line %d: runtime error at %04d (%s): %v", e.Line, e.Offset, e.Op, e.Err)
}

func (e *RuntimeError) Unwrap() error {
	return e.Err
}
