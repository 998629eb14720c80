package server

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/chazu/tally/compiler"
	"github.com/chazu/tally/pkg/bytecode"
	"github.com/chazu/tally/vm"
)

func mustCompile(t *testing.T, source string) *bytecode.Chunk {
	t.Helper()
	chunk, err := compiler.Compile(source)
	if err != nil {
		t.Fatalf("Compile(%q): %v", source, err)
	}
	return chunk
}

func TestPool_Run(t *testing.T) {
	pool := NewPool(2)
	defer pool.Stop()

	got, err := pool.Run(context.Background(), mustCompile(t, "1 + 2 * 3"))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got.AsNumber() != 7 {
		t.Errorf("Run = %s, want 7", got)
	}
}

func TestPool_Concurrent(t *testing.T) {
	pool := NewPool(4)
	defer pool.Stop()

	chunk := mustCompile(t, "(1 + 2) * (3 + 4)")

	var wg sync.WaitGroup
	errs := make(chan error, 50)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got, err := pool.Run(context.Background(), chunk)
			if err != nil {
				errs <- err
				return
			}
			if got.AsNumber() != 21 {
				errs <- errors.New("wrong result " + got.String())
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Error(err)
	}
}

func TestPool_RuntimeError(t *testing.T) {
	pool := NewPool(1)
	defer pool.Stop()

	chunk := bytecode.NewChunk()
	chunk.WriteOp(bytecode.OpAdd, 1)
	chunk.WriteOp(bytecode.OpReturn, 1)

	_, err := pool.Run(context.Background(), chunk)
	if !errors.Is(err, vm.ErrStackUnderflow) {
		t.Fatalf("Run error = %v, want ErrStackUnderflow", err)
	}
}

type panicTracer struct{}

func (panicTracer) TraceInstruction(*bytecode.Chunk, int) { panic("boom") }
func (panicTracer) TraceStack([]bytecode.Value)          {}

func TestPool_RecoversPanic(t *testing.T) {
	pool := NewPool(1, vm.WithTracer(panicTracer{}))
	defer pool.Stop()

	chunk := mustCompile(t, "1")
	for i := 0; i < 2; i++ {
		_, err := pool.Run(context.Background(), chunk)
		if !errors.Is(err, ErrVMPanic) {
			t.Fatalf("run %d: error = %v, want ErrVMPanic", i, err)
		}
	}
}

func TestPool_Stopped(t *testing.T) {
	pool := NewPool(1)
	pool.Stop()
	pool.Stop()

	_, err := pool.Run(context.Background(), mustCompile(t, "1"))
	if !errors.Is(err, ErrPoolStopped) {
		t.Fatalf("Run after Stop = %v, want ErrPoolStopped", err)
	}
}

func TestNewPool_MinimumSize(t *testing.T) {
	pool := NewPool(0)
	defer pool.Stop()

	if _, err := pool.Run(context.Background(), mustCompile(t, "2")); err != nil {
		t.Fatalf("Run: %v", err)
	}
}
