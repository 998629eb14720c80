package server

import (
	"errors"

	"github.com/tliron/commonlog"

	"github.com/chazu/tally/compiler"
	"github.com/chazu/tally/pkg/bytecode"
	"github.com/chazu/tally/vm"
)

var log = commonlog.GetLogger("tally.server")

// Evaluate compiles source and runs the chunk on a fresh VM.
func Evaluate(source string, opts ...vm.Option) (bytecode.Value, error) {
	chunk, err := compiler.Compile(source)
	if err != nil {
		return bytecode.Value{}, err
	}
	return vm.New(opts...).Run(chunk)
}

// IsCompileError reports whether err came from scanning or parsing.
func IsCompileError(err error) bool {
	var scanErr *compiler.ScanError
	var parseErr *compiler.ParseError
	return errors.As(err, &scanErr) || errors.As(err, &parseErr)
}

// IsRuntimeError reports whether err came from executing a chunk.
func IsRuntimeError(err error) bool {
	var rtErr *vm.RuntimeError
	return errors.As(err, &rtErr)
}

// errorLine returns the source line an error points at, or 0 when the
// error carries no position.
func errorLine(err error) int {
	var scanErr *compiler.ScanError
	if errors.As(err, &scanErr) {
		return scanErr.Line
	}
	var parseErr *compiler.ParseError
	if errors.As(err, &parseErr) {
		return parseErr.Line
	}
	var rtErr *vm.RuntimeError
	if errors.As(err, &rtErr) {
		return rtErr.Line
	}
	return 0
}
