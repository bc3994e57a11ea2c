// Package token defines the lexical tokens of the dice-expression grammar
// ("NdM", e.g. "3d6").
package token

import (
	"fmt"

	"github.com/tangled-dice/dicejvm/internal/diceerr"
)

// Kind identifies a token variant.
type Kind int

const (
	U32 Kind = iota // an unsigned decimal literal, e.g. 3
	Dice            // the 'd' or 'D' operator
	EOF
)

// Token is a lexed unit paired with its source span.
type Token struct {
	Kind  Kind
	Value uint32 // populated only for U32
	Span  diceerr.Span
}

func New(kind Kind, span diceerr.Span) Token {
	return Token{Kind: kind, Span: span}
}

func NewU32(value uint32, span diceerr.Span) Token {
	return Token{Kind: U32, Value: value, Span: span}
}

func (t Token) String() string {
	switch t.Kind {
	case U32:
		return fmt.Sprintf("%d", t.Value)
	case Dice:
		return "D"
	case EOF:
		return "EOF"
	default:
		return "?"
	}
}
