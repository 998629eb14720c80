package compiler

import "fmt"

// ScanError reports input the scanner could not classify, or a string
// literal that runs into the end of input.
type ScanError struct {
	Line    int
	Message string
}

func (e *ScanError) Error() string {
	return fmt.Sprintf("line %d: scan error: %s", e.Line, e.Message)
}

// ParseError reports a token the grammar cannot accept.
type ParseError struct {
	Line    int
	Lexeme  string // offending token text; empty at end of input
	Message string
	Err     error // underlying cause, if any
}

func (e *ParseError) Error() string {
	where := "at end"
	if e.Lexeme != "" {
		where = fmt.Sprintf("at '%s'", e.Lexeme)
	}
	return fmt.Sprintf("line %d: parse error %s: %s", e.Line, where, e.Message)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}
