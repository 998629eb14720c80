package vm

import (
	"slices"

	"github.com/tliron/commonlog"

	"github.com/chazu/tally/pkg/bytecode"
)

var log = commonlog.GetLogger("tally.vm")

// ---------------------------------------------------------------------------
// VM: operand-stack interpreter for bytecode chunks
// ---------------------------------------------------------------------------

// VM executes bytecode chunks.
type VM struct {
	chunk *bytecode.Chunk  // chunk being run; never written
	ip    int              // offset of the next byte to fetch
	stack []bytecode.Value // operand stack, bottom first

	tracer Tracer
}

// Option configures a VM.
type Option func(*VM)

// WithTracer installs a diagnostics sink. A nil tracer disables tracing.
func WithTracer(t Tracer) Option {
	return func(vm *VM) { vm.tracer = t }
}

// New creates a VM.
func New(opts ...Option) *VM {
	vm := &VM{
		stack: make([]bytecode.Value, 0, 256),
	}
	for _, opt := range opts {
		opt(vm)
	}
	return vm
}

// StackDepth returns the number of values on the operand stack.
func (vm *VM) StackDepth() int {
	return len(vm.stack)
}

// Run executes chunk from offset 0 until OpReturn and returns the popped
// value. A fatal condition during execution returns a *RuntimeError; a nil
// chunk is rejected up front with the bare ErrNilChunk.
func (vm *VM) Run(chunk *bytecode.Chunk) (bytecode.Value, error) {
	if chunk == nil {
		return bytecode.Value{}, ErrNilChunk
	}
	vm.chunk = chunk
	vm.ip = 0
	vm.stack = vm.stack[:0]

	result, err := vm.run()
	if err != nil {
		log.Debugf("run failed: %v", err)
	}
	return result, err
}

// run is the main execution loop.
func (vm *VM) run() (bytecode.Value, error) {
	code := vm.chunk.Code
	for {
		offset := vm.ip
		if offset >= len(code) {
			return bytecode.Value{}, &RuntimeError{
				Offset: offset,
				Line:   vm.chunk.Line(offset - 1),
				Err:    ErrNoReturn,
			}
		}

		if vm.tracer != nil {
			vm.tracer.TraceInstruction(vm.chunk, offset)
		}

		op := bytecode.Opcode(code[vm.ip])
		vm.ip++

		switch op {
		case bytecode.OpConstant:
			if vm.ip >= len(code) {
				return bytecode.Value{}, vm.fail(offset, op, ErrTruncatedInstruction)
			}
			idx := code[vm.ip]
			vm.ip++
			v, ok := vm.chunk.Constant(idx)
			if !ok {
				return bytecode.Value{}, vm.fail(offset, op, ErrBadConstant)
			}
			vm.push(v)

		case bytecode.OpAdd, bytecode.OpSubtract, bytecode.OpMultiply, bytecode.OpDivide:
			if err := vm.arithmetic(op); err != nil {
				return bytecode.Value{}, vm.fail(offset, op, err)
			}

		case bytecode.OpReturn:
			v, err := vm.pop()
			if err != nil {
				return bytecode.Value{}, vm.fail(offset, op, err)
			}
			vm.traceStack()
			return v, nil

		default:
			return bytecode.Value{}, vm.fail(offset, op, ErrUnknownOpcode)
		}

		vm.traceStack()
	}
}

// arithmetic pops the right operand, then the left, and pushes left OP right.
func (vm *VM) arithmetic(op bytecode.Opcode) error {
	right, err := vm.pop()
	if err != nil {
		return err
	}
	left, err := vm.pop()
	if err != nil {
		return err
	}
	if !left.IsNumber() || !right.IsNumber() {
		return ErrOperandType
	}

	a, b := left.AsNumber(), right.AsNumber()
	var r float64
	switch op {
	case bytecode.OpAdd:
		r = a + b
	case bytecode.OpSubtract:
		r = a - b
	case bytecode.OpMultiply:
		r = a * b
	case bytecode.OpDivide:
		r = a / b // IEEE: x/0 is ±Inf, 0/0 is NaN
	}
	vm.push(bytecode.NumberValue(r))
	return nil
}

// Stack helpers

func (vm *VM) push(v bytecode.Value) {
	vm.stack = append(vm.stack, v)
}

func (vm *VM) pop() (bytecode.Value, error) {
	n := len(vm.stack)
	if n == 0 {
		return bytecode.Value{}, ErrStackUnderflow
	}
	v := vm.stack[n-1]
	vm.stack = vm.stack[:n-1]
	return v, nil
}

func (vm *VM) traceStack() {
	if vm.tracer != nil {
		vm.tracer.TraceStack(slices.Clone(vm.stack))
	}
}

func (vm *VM) fail(offset int, op bytecode.Opcode, err error) error {
	return &RuntimeError{
		Offset: offset,
		Line:   vm.chunk.Line(offset),
		Op:     op,
		Err:    err,
	}
}
