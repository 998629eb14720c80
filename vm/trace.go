package vm

import (
	"fmt"
	"io"
	"strings"

	"github.com/tliron/commonlog"

	"github.com/chazu/tally/pkg/bytecode"
)

// Tracer receives execution diagnostics. TraceInstruction is called before
// each instruction executes; TraceStack after it, with the resulting stack
// (bottom first). Implementations must not modify the chunk.
type Tracer interface {
	TraceInstruction(chunk *bytecode.Chunk, offset int)
	TraceStack(stack []bytecode.Value)
}

// FormatStack renders a stack bottom first, e.g. "[ 1 ][ 2 ]".
func FormatStack(stack []bytecode.Value) string {
	var sb strings.Builder
	for _, v := range stack {
		sb.WriteString("[ ")
		sb.WriteString(v.String())
		sb.WriteString(" ]")
	}
	return sb.String()
}

// WriterTracer prints trace lines to an io.Writer.
type WriterTracer struct {
	w io.Writer
}

// NewWriterTracer creates a tracer writing to w.
func NewWriterTracer(w io.Writer) *WriterTracer {
	return &WriterTracer{w: w}
}

func (t *WriterTracer) TraceInstruction(chunk *bytecode.Chunk, offset int) {
	text, _ := chunk.DisassembleInstruction(offset)
	fmt.Fprintln(t.w, text)
}

func (t *WriterTracer) TraceStack(stack []bytecode.Value) {
	fmt.Fprintf(t.w, "          %s\n", FormatStack(stack))
}

// LogTracer sends trace lines to a commonlog logger at debug level.
type LogTracer struct {
	log commonlog.Logger
}

// NewLogTracer creates a tracer logging through l.
func NewLogTracer(l commonlog.Logger) *LogTracer {
	return &LogTracer{log: l}
}

func (t *LogTracer) TraceInstruction(chunk *bytecode.Chunk, offset int) {
	text, _ := chunk.DisassembleInstruction(offset)
	t.log.Debugf("%s", text)
}

func (t *LogTracer) TraceStack(stack []bytecode.Value) {
	t.log.Debugf("stack: %s", FormatStack(stack))
}
