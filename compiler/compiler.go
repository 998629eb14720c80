package compiler

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/tliron/commonlog"

	"github.com/chazu/tally/pkg/bytecode"
)

// ---------------------------------------------------------------------------
// Compiler: Pratt parser emitting bytecode directly into a chunk
// ---------------------------------------------------------------------------

var log = commonlog.GetLogger("tally.compiler")

type parseFn func(*Compiler)

// ParseRule binds a token kind to its prefix and infix handlers and to the
// precedence it has when used as an infix operator.
type ParseRule struct {
	prefix     parseFn
	infix      parseFn
	precedence Precedence
}

// HasPrefix reports whether the token kind can start an expression.
func (r ParseRule) HasPrefix() bool { return r.prefix != nil }

// HasInfix reports whether the token kind can continue an expression.
func (r ParseRule) HasInfix() bool { return r.infix != nil }

// Precedence returns the infix binding level.
func (r ParseRule) Precedence() Precedence { return r.precedence }

// newRuleTable builds the dispatch table. Kinds without an entry get the
// zero rule: no handlers, PrecNone.
func newRuleTable() map[TokenKind]ParseRule {
	return map[TokenKind]ParseRule{
		TokenOpenParen: {(*Compiler).grouping, nil, PrecNone},
		TokenMinus:     {(*Compiler).unary, (*Compiler).binary, PrecTerm},
		TokenPlus:      {nil, (*Compiler).binary, PrecTerm},
		TokenSlash:     {nil, (*Compiler).binary, PrecFactor},
		TokenStar:      {nil, (*Compiler).binary, PrecFactor},
		TokenNumber:    {(*Compiler).number, nil, PrecNone},
	}
}

// Compiler turns one expression into a chunk.
type Compiler struct {
	scanner  *Scanner
	current  Token
	previous Token
	rules    map[TokenKind]ParseRule
	chunk    *bytecode.Chunk
	err      error // first error; once set, compilation unwinds
}

// Compile compiles a single expression. The sentinel is appended to source
// if missing. On failure the returned chunk is nil, so a chunk built from
// invalid input can never be executed.
func Compile(source string) (*bytecode.Chunk, error) {
	return NewCompiler(source).Compile()
}

// NewCompiler creates a compiler over source.
func NewCompiler(source string) *Compiler {
	return &Compiler{
		scanner: NewScanner(WithSentinel(source)),
		rules:   newRuleTable(),
		chunk:   bytecode.NewChunk(),
	}
}

// Rule returns the dispatch entry for a token kind.
func (c *Compiler) Rule(kind TokenKind) ParseRule {
	return c.rules[kind]
}

// Compile runs the compiler: one expression, then end of input, then
// OpReturn. The finished chunk is sealed.
func (c *Compiler) Compile() (*bytecode.Chunk, error) {
	c.advance()
	c.expression()
	c.consume(TokenEOF, "expected end of expression")
	c.emitOp(bytecode.OpReturn)

	if c.err != nil {
		log.Debugf("compile failed: %v", c.err)
		return nil, c.err
	}
	c.chunk.Seal()
	log.Debugf("compiled %d bytes, %d constants", c.chunk.CodeLen(), c.chunk.ConstantCount())
	return c.chunk, nil
}

// ---------------------------------------------------------------------------
// Token handling
// ---------------------------------------------------------------------------

// advance shifts current into previous and scans the next token. An error
// token stops compilation with a ScanError.
func (c *Compiler) advance() {
	c.previous = c.current
	if c.err != nil {
		return
	}
	c.current = c.scanner.ScanToken()
	if c.current.Kind == TokenError {
		c.fail(&ScanError{Line: c.current.Line, Message: c.current.Lexeme})
	}
}

// consume advances past the current token if it has the given kind,
// otherwise it records a parse error.
func (c *Compiler) consume(kind TokenKind, msg string) {
	if c.err != nil {
		return
	}
	if c.current.Kind == kind {
		if kind != TokenEOF {
			c.advance()
		}
		return
	}
	c.errorAtCurrent(msg, nil)
}

func (c *Compiler) fail(err error) {
	if c.err == nil {
		c.err = err
	}
}

func (c *Compiler) errorAtCurrent(msg string, cause error) {
	c.errorAt(c.current, msg, cause)
}

func (c *Compiler) errorAt(tok Token, msg string, cause error) {
	lexeme := tok.Lexeme
	if tok.Kind == TokenEOF {
		lexeme = ""
	}
	c.fail(&ParseError{Line: tok.Line, Lexeme: lexeme, Message: msg, Err: cause})
}

// ---------------------------------------------------------------------------
// Expressions
// ---------------------------------------------------------------------------

// expression parses one full expression.
func (c *Compiler) expression() {
	c.parsePrecedence(PrecAssignment)
}

// parsePrecedence parses an expression whose operators bind at least as
// tightly as level.
func (c *Compiler) parsePrecedence(level Precedence) {
	c.advance()
	if c.err != nil {
		return
	}

	prefix := c.Rule(c.previous.Kind).prefix
	if prefix == nil {
		c.errorAtCurrent("expected expression", nil)
		return
	}
	prefix(c)

	for c.err == nil && level <= c.Rule(c.current.Kind).precedence {
		c.advance()
		if c.err != nil {
			return
		}
		infix := c.Rule(c.previous.Kind).infix
		if infix == nil {
			panic(fmt.Sprintf("compiler: %s has infix precedence but no infix handler", c.previous.Kind))
		}
		infix(c)
	}
}

// number emits the previous token's numeric value as a constant.
// Literals past the float64 range become +Inf, and ones below it round to 0.
func (c *Compiler) number() {
	n, err := strconv.ParseFloat(c.previous.Lexeme, 64)
	if err != nil && !errors.Is(err, strconv.ErrRange) {
		c.errorAt(c.previous, "invalid number literal", err)
		return
	}
	c.emitConstant(bytecode.NumberValue(n))
}

// binary compiles the right operand, then the operator.
func (c *Compiler) binary() {
	op := c.previous.Kind
	rule := c.Rule(op)
	c.parsePrecedence(rule.precedence.Next())
	if c.err != nil {
		return
	}

	switch op {
	case TokenMinus:
		c.emitOp(bytecode.OpSubtract)
	case TokenPlus:
		c.emitOp(bytecode.OpAdd)
	case TokenSlash:
		c.emitOp(bytecode.OpDivide)
	case TokenStar:
		c.emitOp(bytecode.OpMultiply)
	default:
		panic(fmt.Sprintf("compiler: binary called for %s", op))
	}
}

// unary compiles "-x" as "0 - x".
func (c *Compiler) unary() {
	c.emitConstant(bytecode.NumberValue(0))
	c.parsePrecedence(PrecUnary)
	if c.err != nil {
		return
	}
	c.emitOp(bytecode.OpSubtract)
}

// grouping compiles a parenthesized expression.
func (c *Compiler) grouping() {
	c.expression()
	c.consume(TokenCloseParen, "expected ')' after expression")
}

// literal is the hook for keyword literals. The scanner produces none yet.
func (c *Compiler) literal() {}

// ---------------------------------------------------------------------------
// Emission
// ---------------------------------------------------------------------------

func (c *Compiler) emitByte(b byte) {
	if c.err != nil {
		return
	}
	c.chunk.Write(b, c.previous.Line)
}

func (c *Compiler) emitOp(op bytecode.Opcode) {
	c.emitByte(byte(op))
}

func (c *Compiler) emitConstant(v bytecode.Value) {
	if c.err != nil {
		return
	}
	idx, err := c.chunk.AddConstant(v)
	if err != nil {
		c.errorAt(c.previous, "too many constants in one expression", err)
		return
	}
	c.emitOp(bytecode.OpConstant)
	c.emitByte(idx)
}
