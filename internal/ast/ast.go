// Package ast is the dice-expression abstract syntax tree: a program is at
// most one "NdM" roll statement.
package ast

import "github.com/tangled-dice/dicejvm/internal/diceerr"

type Program struct {
	Statement *Statement // nil for an empty program
}

type Statement struct {
	Expr Expression
	Span diceerr.Span
}

type ExpressionKind int

const (
	DiceExpression ExpressionKind = iota
)

// Expression is a dice roll "count D faces". This grammar has exactly one
// expression shape, so Kind is carried for symmetry with the original
// multi-variant AST rather than because Go needs it to discriminate.
type Expression struct {
	Kind  ExpressionKind
	Count uint32
	Faces uint32
	Span  diceerr.Span
}

func NewProgram() *Program { return &Program{} }

func NewStatement(expr Expression, span diceerr.Span) Statement {
	return Statement{Expr: expr, Span: span}
}

func NewDiceExpression(count, faces uint32, span diceerr.Span) Expression {
	return Expression{Kind: DiceExpression, Count: count, Faces: faces, Span: span}
}
