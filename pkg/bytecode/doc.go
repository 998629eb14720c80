// Package bytecode defines the compiled form of a tally expression: the
// value model, the opcode set and the Chunk container the compiler writes
// and the VM reads.
//
// # Encoding
//
// A chunk's code section is a flat byte stream. Every opcode occupies one
// byte. OpConstant is followed by a single operand byte holding an index
// into the constant pool; no other opcode carries operands. The numeric
// opcode values are part of the format:
//
//	OpReturn   = 0
//	OpConstant = 1
//	OpAdd      = 2
//	OpSubtract = 3
//	OpMultiply = 4
//	OpDivide   = 5
//
// Because the pool index is one byte wide a chunk holds at most
// MaxConstants values.
//
// Alongside the code section a chunk carries a line table with one entry
// per code byte, so any offset can be mapped back to its source line.
//
// # Lifecycle
//
// A chunk is built by the compiler and then sealed. Sealed chunks are
// read-only; the VM never mutates the chunk it executes. Chunks received
// over the wire (see UnmarshalChunk) arrive sealed.
package bytecode
