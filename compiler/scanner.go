package compiler

import (
	"fmt"
	"iter"
	"strings"
	"unicode/utf8"
)

// ---------------------------------------------------------------------------
// Scanner: on-demand tokenizer for arithmetic expressions
// ---------------------------------------------------------------------------

// Sentinel terminates scanner input. Callers append it to the source (see
// WithSentinel); the scanner reports TokenEOF when it reaches it.
const Sentinel = '\x00'

// WithSentinel returns src terminated by Sentinel, appending it only if
// src does not already end with one.
func WithSentinel(src string) string {
	if strings.HasSuffix(src, string(Sentinel)) {
		return src
	}
	return src + string(Sentinel)
}

// Scanner produces tokens one at a time from a source string.
type Scanner struct {
	source  string
	start   int // offset where the current token began
	current int // offset of the next unread byte
	line    int // current line (1-based)
}

// NewScanner creates a scanner over source, which should end with Sentinel.
// A source without one is scanned to its physical end.
func NewScanner(source string) *Scanner {
	return &Scanner{
		source: source,
		line:   1,
	}
}

// Tokens returns the token sequence of a fresh scan over the same source,
// ending with (and including) TokenEOF. Tokens are produced lazily as the
// sequence is consumed.
func (s *Scanner) Tokens() iter.Seq[Token] {
	return func(yield func(Token) bool) {
		sc := NewScanner(s.source)
		for {
			tok := sc.ScanToken()
			if !yield(tok) || tok.Kind == TokenEOF {
				return
			}
		}
	}
}

// ScanToken returns the next token. Once the end of input is reached every
// further call returns TokenEOF.
func (s *Scanner) ScanToken() Token {
	s.skipWhitespace()
	s.start = s.current

	if s.atEnd() {
		return s.makeToken(TokenEOF)
	}

	c := s.advance()
	switch {
	case isDigit(c):
		return s.number()
	case isAlpha(c):
		return s.identifier()
	}

	switch c {
	case '+':
		return s.makeToken(TokenPlus)
	case '-':
		return s.makeToken(TokenMinus)
	case '*':
		return s.makeToken(TokenStar)
	case '/':
		return s.makeToken(TokenSlash)
	case '(':
		return s.makeToken(TokenOpenParen)
	case ')':
		return s.makeToken(TokenCloseParen)
	case '"':
		return s.scanString()
	}

	// Consume the whole rune so multi-byte input yields one error token.
	s.current = s.start
	r, size := utf8.DecodeRuneInString(s.source[s.current:])
	s.current += size
	return s.errorToken(fmt.Sprintf("unexpected character %q", r))
}

// atEnd reports whether the scanner sits on the sentinel or past the buffer.
func (s *Scanner) atEnd() bool {
	return s.current >= len(s.source) || s.source[s.current] == Sentinel
}

func (s *Scanner) advance() byte {
	c := s.source[s.current]
	s.current++
	return c
}

func (s *Scanner) peek() byte {
	if s.current >= len(s.source) {
		return Sentinel
	}
	return s.source[s.current]
}

func (s *Scanner) peekNext() byte {
	if s.current+1 >= len(s.source) {
		return Sentinel
	}
	return s.source[s.current+1]
}

// skipWhitespace skips blanks, counting newlines.
func (s *Scanner) skipWhitespace() {
	for {
		switch s.peek() {
		case ' ', '\r', '\t':
			s.current++
		case '\n':
			s.line++
			s.current++
		default:
			return
		}
	}
}

// number scans digits ('.' digits)?. A '.' is only taken when a digit
// follows it, so "1.2.3" stops after "1.2".
func (s *Scanner) number() Token {
	for isDigit(s.peek()) {
		s.current++
	}
	if s.peek() == '.' && isDigit(s.peekNext()) {
		s.current++
		for isDigit(s.peek()) {
			s.current++
		}
	}
	return s.makeToken(TokenNumber)
}

// identifier scans letters and underscores. Digits end an identifier.
func (s *Scanner) identifier() Token {
	for isAlpha(s.peek()) {
		s.current++
	}
	return s.makeToken(TokenIdentifier)
}

// scanString scans up to and including the closing quote.
func (s *Scanner) scanString() Token {
	line := s.line
	for !s.atEnd() && s.peek() != '"' {
		if s.peek() == '\n' {
			s.line++
		}
		s.current++
	}
	if s.atEnd() {
		return Token{Kind: TokenError, Lexeme: "unterminated string", Line: line}
	}
	s.current++ // closing quote
	return Token{Kind: TokenString, Lexeme: s.source[s.start:s.current], Line: line}
}

func (s *Scanner) makeToken(kind TokenKind) Token {
	return Token{
		Kind:   kind,
		Lexeme: s.source[s.start:s.current],
		Line:   s.line,
	}
}

func (s *Scanner) errorToken(msg string) Token {
	return Token{Kind: TokenError, Lexeme: msg, Line: s.line}
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}

func isAlpha(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || c == '_'
}
