package server

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/chazu/tally/pkg/bytecode"
	"github.com/chazu/tally/vm"
)

var (
	ErrPoolStopped = errors.New("vm pool stopped")
	ErrVMPanic     = errors.New("vm panic")
)

// runRequest is a chunk waiting for a pooled VM.
type runRequest struct {
	chunk *bytecode.Chunk
	done  chan runResult
}

type runResult struct {
	value bytecode.Value
	err   error
}

// Pool runs chunks on a fixed set of VMs. Each VM is owned by one
// goroutine and reused between chunks; a VM is never touched by two
// goroutines.
type Pool struct {
	requests chan runRequest
	quit     chan struct{}
	wg       sync.WaitGroup
	stopOnce sync.Once
}

// NewPool starts size worker goroutines, each with its own VM built
// from opts. A size below one is treated as one.
func NewPool(size int, opts ...vm.Option) *Pool {
	if size < 1 {
		size = 1
	}
	p := &Pool{
		requests: make(chan runRequest, 64),
		quit:     make(chan struct{}),
	}
	for i := 0; i < size; i++ {
		machine := vm.New(opts...)
		p.wg.Add(1)
		go p.loop(machine)
	}
	log.Debugf("vm pool started with %d workers", size)
	return p
}

func (p *Pool) loop(machine *vm.VM) {
	defer p.wg.Done()
	for {
		select {
		case req := <-p.requests:
			req.done <- execute(machine, req.chunk)
		case <-p.quit:
			return
		}
	}
}

// execute runs one chunk, turning a panic into an error so a bad chunk
// cannot take the worker down.
func execute(machine *vm.VM, chunk *bytecode.Chunk) (result runResult) {
	defer func() {
		if r := recover(); r != nil {
			result = runResult{err: fmt.Errorf("%w: %v", ErrVMPanic, r)}
		}
	}()
	result.value, result.err = machine.Run(chunk)
	return result
}

// Run executes chunk on the next free VM and blocks until it finishes,
// ctx is done, or the pool is stopped.
func (p *Pool) Run(ctx context.Context, chunk *bytecode.Chunk) (bytecode.Value, error) {
	req := runRequest{
		chunk: chunk,
		done:  make(chan runResult, 1),
	}
	select {
	case p.requests <- req:
	case <-ctx.Done():
		return bytecode.Value{}, ctx.Err()
	case <-p.quit:
		return bytecode.Value{}, ErrPoolStopped
	}
	select {
	case res := <-req.done:
		return res.value, res.err
	case <-ctx.Done():
		return bytecode.Value{}, ctx.Err()
	case <-p.quit:
		return bytecode.Value{}, ErrPoolStopped
	}
}

// Stop shuts down the workers and waits for them to exit. It is safe to
// call more than once.
func (p *Pool) Stop() {
	p.stopOnce.Do(func() {
		close(p.quit)
	})
	p.wg.Wait()
}
