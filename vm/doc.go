// Package vm executes compiled tally chunks.
//
// The VM is a plain operand-stack machine: it fetches one opcode at a time,
// applies the width rule from package bytecode to advance its instruction
// pointer, and halts on OpReturn with the popped value as the result.
//
// A VM is single-threaded and owns its stack. It never writes to the chunk
// it runs. Malformed code (unknown opcodes, truncated instructions, running
// off the end of the code section, popping an empty stack) ends the run
// with a *RuntimeError; floating-point division by zero is not an error.
//
// Diagnostics go through the Tracer interface. WriterTracer prints a
// disassembly line before each step and the stack after it; LogTracer
// sends the same lines to a commonlog logger.
package vm
