// Package analyzer validates a parsed dice program before codegen: a
// program must have a statement, and a roll must have a nonzero count and
// a nonzero face count.
package analyzer

import (
	"github.com/tangled-dice/dicejvm/internal/ast"
	"github.com/tangled-dice/dicejvm/internal/diceerr"
	"github.com/tangled-dice/dicejvm/internal/parser"
)

type Analyzer struct {
	program *ast.Program
}

// New parses source and returns an Analyzer ready to validate it.
func New(source string) (*Analyzer, error) {
	p, err := parser.New(source)
	if err != nil {
		return nil, err
	}
	prog, err := p.Parse()
	if err != nil {
		return nil, err
	}
	return &Analyzer{program: prog}, nil
}

// Analyze validates the program and returns it unchanged on success.
func (a *Analyzer) Analyze() (*ast.Program, error) {
	if a.program.Statement == nil {
		return nil, diceerr.NewSemanticError(diceerr.EmptyProgram)
	}
	expr := a.program.Statement.Expr
	if expr.Count == 0 {
		return nil, diceerr.NewSemanticError(diceerr.DiceCountZero)
	}
	if expr.Faces == 0 {
		return nil, diceerr.NewSemanticError(diceerr.DiceFacesZero)
	}
	return a.program, nil
}
