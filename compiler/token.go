package compiler

import "fmt"

// ---------------------------------------------------------------------------
// Token kinds for the expression scanner
// ---------------------------------------------------------------------------

// TokenKind represents the kind of a token.
type TokenKind int

const (
	TokenPlus TokenKind = iota
	TokenMinus
	TokenSlash
	TokenStar
	TokenEOF
	TokenOpenParen
	TokenCloseParen
	TokenNumber
	TokenString
	TokenIdentifier
	TokenError
)

var tokenNames = map[TokenKind]string{
	TokenPlus:       "+",
	TokenMinus:      "-",
	TokenSlash:      "/",
	TokenStar:       "*",
	TokenEOF:        "EOF",
	TokenOpenParen:  "(",
	TokenCloseParen: ")",
	TokenNumber:     "NUMBER",
	TokenString:     "STRING",
	TokenIdentifier: "IDENTIFIER",
	TokenError:      "ERROR",
}

func (k TokenKind) String() string {
	if name, ok := tokenNames[k]; ok {
		return name
	}
	return fmt.Sprintf("Token(%d)", k)
}

// Token represents a lexical token.
//
// Lexeme is a substring of the scanned source, not a copy. For error
// tokens it holds the diagnostic message instead.
type Token struct {
	Kind   TokenKind
	Lexeme string
	Line   int
}

func (t Token) String() string {
	switch t.Kind {
	case TokenEOF:
		return "EOF"
	case TokenError:
		return fmt.Sprintf("ERROR(%s)", t.Lexeme)
	}
	if len(t.Lexeme) > 20 {
		return fmt.Sprintf("%s(%q...)", t.Kind, t.Lexeme[:20])
	}
	return fmt.Sprintf("%s(%q)", t.Kind, t.Lexeme)
}
