package vm

import (
	"bytes"
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/chazu/tally/compiler"
	"github.com/chazu/tally/pkg/bytecode"
)

// recordingTracer captures every trace call for inspection.
type recordingTracer struct {
	offsets []int
	stacks  [][]bytecode.Value
}

func (r *recordingTracer) TraceInstruction(chunk *bytecode.Chunk, offset int) {
	r.offsets = append(r.offsets, offset)
}

func (r *recordingTracer) TraceStack(stack []bytecode.Value) {
	r.stacks = append(r.stacks, stack)
}

// Helper to create a sealed chunk with raw code on line 1
func chunkWithCode(constants []float64, code ...byte) *bytecode.Chunk {
	c := bytecode.NewChunk()
	for _, n := range constants {
		c.AddConstant(bytecode.NumberValue(n))
	}
	for _, b := range code {
		c.Write(b, 1)
	}
	c.Seal()
	return c
}

func eval(t *testing.T, src string) float64 {
	t.Helper()
	chunk, err := compiler.Compile(src)
	if err != nil {
		t.Fatalf("Compile(%q) failed: %v", src, err)
	}
	v, err := New().Run(chunk)
	if err != nil {
		t.Fatalf("Run(%q) failed: %v", src, err)
	}
	return v.AsNumber()
}

// ============ End-to-end ============

func TestVMEvaluate(t *testing.T) {
	tests := []struct {
		src  string
		want float64
	}{
		{"42", 42},
		{"1 + 2 * 3", 7},
		{"10 - 3 - 2", 5},
		{"2 * 3 + 4", 10},
		{"8 / 4 / 2", 1},
		{"1.5 + 2.25", 3.75},
		{"(1 + 2) * 3", 9},
		{"-4 + 10", 6},
		{"2 * -3", -6},
		{"1 - -1", 2},
		{"100 / 8", 12.5},
	}

	for _, tt := range tests {
		if got := eval(t, tt.src); got != tt.want {
			t.Errorf("eval(%q) = %v, want %v", tt.src, got, tt.want)
		}
	}
}

func TestVMDivisionByZero(t *testing.T) {
	if got := eval(t, "1 / 0"); !math.IsInf(got, 1) {
		t.Errorf("1 / 0 = %v, want +Inf", got)
	}
	if got := eval(t, "-1 / 0"); !math.IsInf(got, -1) {
		t.Errorf("-1 / 0 = %v, want -Inf", got)
	}
	if got := eval(t, "0 / 0"); !math.IsNaN(got) {
		t.Errorf("0 / 0 = %v, want NaN", got)
	}
}

// ============ Stack discipline ============

func TestVMStackDisciplineAtReturn(t *testing.T) {
	for _, src := range []string{"42", "1 + 2 * 3", "10 - 3 - 2", "(1 + 2) * (3 + 4) / 5"} {
		chunk, err := compiler.Compile(src)
		if err != nil {
			t.Fatalf("Compile(%q) failed: %v", src, err)
		}
		rec := &recordingTracer{}
		vm := New(WithTracer(rec))
		if _, err := vm.Run(chunk); err != nil {
			t.Fatalf("Run(%q) failed: %v", src, err)
		}

		if len(rec.stacks) < 2 {
			t.Fatalf("%q: only %d stack snapshots", src, len(rec.stacks))
		}
		beforeReturn := rec.stacks[len(rec.stacks)-2]
		afterReturn := rec.stacks[len(rec.stacks)-1]
		if len(beforeReturn) != 1 {
			t.Errorf("%q: stack before return has %d values, want 1", src, len(beforeReturn))
		}
		if len(afterReturn) != 0 {
			t.Errorf("%q: stack after return has %d values, want 0", src, len(afterReturn))
		}
		if vm.StackDepth() != 0 {
			t.Errorf("%q: StackDepth() = %d after run", src, vm.StackDepth())
		}
	}
}

func TestVMTraceOffsetsFollowWidthRule(t *testing.T) {
	chunk, err := compiler.Compile("1 + 2")
	if err != nil {
		t.Fatal(err)
	}
	rec := &recordingTracer{}
	if _, err := New(WithTracer(rec)).Run(chunk); err != nil {
		t.Fatal(err)
	}
	want := []int{0, 2, 4, 5}
	if len(rec.offsets) != len(want) {
		t.Fatalf("offsets = %v, want %v", rec.offsets, want)
	}
	for i := range want {
		if rec.offsets[i] != want[i] {
			t.Errorf("offsets = %v, want %v", rec.offsets, want)
			break
		}
	}
}

func TestVMOperandOrder(t *testing.T) {
	// left OP right, where right is top of stack.
	tests := []struct {
		op   bytecode.Opcode
		want float64
	}{
		{bytecode.OpSubtract, 6},
		{bytecode.OpDivide, 4},
	}
	for _, tt := range tests {
		chunk := chunkWithCode([]float64{8, 2},
			byte(bytecode.OpConstant), 0,
			byte(bytecode.OpConstant), 1,
			byte(tt.op),
			byte(bytecode.OpReturn))
		v, err := New().Run(chunk)
		if err != nil {
			t.Fatalf("%s: %v", tt.op, err)
		}
		if v.AsNumber() != tt.want {
			t.Errorf("8 %s 2 = %v, want %v", tt.op, v.AsNumber(), tt.want)
		}
	}
}

func TestVMIsReusable(t *testing.T) {
	vm := New()
	a, _ := compiler.Compile("1 + 1")
	b, _ := compiler.Compile("2 * 5")
	if v, err := vm.Run(a); err != nil || v.AsNumber() != 2 {
		t.Fatalf("first run = %v, %v", v, err)
	}
	if v, err := vm.Run(b); err != nil || v.AsNumber() != 10 {
		t.Fatalf("second run = %v, %v", v, err)
	}
}

func TestVMDoesNotMutateChunk(t *testing.T) {
	chunk, err := compiler.Compile("3 * 4 - 1")
	if err != nil {
		t.Fatal(err)
	}
	before, _ := bytecode.MarshalChunk(chunk)
	if _, err := New().Run(chunk); err != nil {
		t.Fatal(err)
	}
	after, _ := bytecode.MarshalChunk(chunk)
	if !bytes.Equal(before, after) {
		t.Error("Run modified the chunk")
	}
}

// ============ Runtime errors ============

func TestVMRuntimeErrors(t *testing.T) {
	tests := []struct {
		name   string
		chunk  *bytecode.Chunk
		want   error
		offset int
	}{
		{
			"underflow on return",
			chunkWithCode(nil, byte(bytecode.OpReturn)),
			ErrStackUnderflow, 0,
		},
		{
			"underflow on add",
			chunkWithCode([]float64{1}, byte(bytecode.OpConstant), 0, byte(bytecode.OpAdd), byte(bytecode.OpReturn)),
			ErrStackUnderflow, 2,
		},
		{
			"unknown opcode",
			chunkWithCode([]float64{1}, byte(bytecode.OpConstant), 0, 0x7F),
			ErrUnknownOpcode, 2,
		},
		{
			"truncated constant",
			chunkWithCode([]float64{1}, byte(bytecode.OpConstant)),
			ErrTruncatedInstruction, 0,
		},
		{
			"constant out of range",
			chunkWithCode([]float64{1}, byte(bytecode.OpConstant), 5, byte(bytecode.OpReturn)),
			ErrBadConstant, 0,
		},
		{
			"no return",
			chunkWithCode([]float64{1}, byte(bytecode.OpConstant), 0),
			ErrNoReturn, 2,
		},
		{
			"empty code",
			chunkWithCode(nil),
			ErrNoReturn, 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New().Run(tt.chunk)
			if !errors.Is(err, tt.want) {
				t.Fatalf("error = %v, want %v", err, tt.want)
			}
			var rerr *RuntimeError
			if !errors.As(err, &rerr) {
				t.Fatalf("error %T is not a *RuntimeError", err)
			}
			if rerr.Offset != tt.offset {
				t.Errorf("Offset = %d, want %d", rerr.Offset, tt.offset)
			}
		})
	}
}

func TestVMRunNilChunk(t *testing.T) {
	_, err := New().Run(nil)
	if !errors.Is(err, ErrNilChunk) {
		t.Errorf("Run(nil) error = %v, want ErrNilChunk", err)
	}
	var rtErr *RuntimeError
	if errors.As(err, &rtErr) {
		t.Errorf("Run(nil) error = %#v, should not carry an offset", rtErr)
	}
}

func TestRuntimeErrorMessage(t *testing.T) {
	err := &RuntimeError{Offset: 3, Line: 2, Op: bytecode.OpAdd, Err: ErrStackUnderflow}
	if got := err.Error(); got != "line 2: runtime error at 0003 (ADD): stack underflow" {
		t.Errorf("Error() = %q", got)
	}
	end := &RuntimeError{Offset: 2, Line: 1, Err: ErrNoReturn}
	if got := end.Error(); got != "line 1: runtime error at 0002: code ended without return" {
		t.Errorf("Error() = %q", got)
	}
}

// ============ Tracers ============

func TestWriterTracer(t *testing.T) {
	chunk, err := compiler.Compile("1 + 2")
	if err != nil {
		t.Fatal(err)
	}
	var buf bytes.Buffer
	if _, err := New(WithTracer(NewWriterTracer(&buf))).Run(chunk); err != nil {
		t.Fatal(err)
	}

	out := buf.String()
	for _, want := range []string{"CONSTANT", "ADD", "RETURN", "[ 1 ][ 2 ]", "[ 3 ]"} {
		if !strings.Contains(out, want) {
			t.Errorf("trace missing %q:\n%s", want, out)
		}
	}
}

func TestFormatStack(t *testing.T) {
	got := FormatStack([]bytecode.Value{bytecode.NumberValue(1), bytecode.NumberValue(2.5)})
	if got != "[ 1 ][ 2.5 ]" {
		t.Errorf("FormatStack = %q", got)
	}
	if FormatStack(nil) != "" {
		t.Error("FormatStack(nil) should be empty")
	}
}
