// Package parser is a small recursive-descent parser for the "NdM" dice
// grammar: a count, the dice operator, and a face count.
package parser

import (
	"github.com/tangled-dice/dicejvm/internal/ast"
	"github.com/tangled-dice/dicejvm/internal/diceerr"
	"github.com/tangled-dice/dicejvm/internal/lexer"
	"github.com/tangled-dice/dicejvm/internal/token"
)

// Parser consumes a pre-lexed token stream.
type Parser struct {
	tokens  []token.Token
	current int
}

// New lexes source and returns a Parser positioned at the first token.
func New(source string) (*Parser, error) {
	tokens, err := lexer.Tokenize(source)
	if err != nil {
		return nil, err
	}
	return &Parser{tokens: tokens}, nil
}

func (p *Parser) currentToken() token.Token {
	if p.current < len(p.tokens) {
		return p.tokens[p.current]
	}
	return token.New(token.EOF, diceerr.SingleSpan(diceerr.Position{Line: 1, Column: 1}))
}

func (p *Parser) isAtEnd() bool {
	return p.currentToken().Kind == token.EOF
}

func (p *Parser) advance() token.Token {
	tok := p.currentToken()
	if !p.isAtEnd() {
		p.current++
	}
	return tok
}

// Parse parses the full token stream into a Program.
func (p *Parser) Parse() (*ast.Program, error) {
	prog := ast.NewProgram()
	stmt, err := p.parseStatement()
	if err != nil {
		return nil, err
	}
	prog.Statement = &stmt

	if !p.isAtEnd() {
		return nil, diceerr.NewUnexpectedEndOfInput()
	}
	return prog, nil
}

func (p *Parser) parseStatement() (ast.Statement, error) {
	if p.currentToken().Kind != token.U32 {
		return ast.Statement{}, diceerr.NewSyntaxError(p.currentToken().Span, "expected a statement")
	}
	return p.parseExpressionStatement()
}

func (p *Parser) parseExpressionStatement() (ast.Statement, error) {
	start := p.currentToken().Span
	if p.currentToken().Kind != token.U32 {
		return ast.Statement{}, diceerr.NewUnexpectedToken(p.currentToken().Span, "u32", p.currentToken().String())
	}
	count := p.currentToken().Value
	p.advance()

	p.advance() // the dice operator; accepted unconditionally, matching the grammar's single shape

	if p.currentToken().Kind != token.U32 {
		return ast.Statement{}, diceerr.NewUnexpectedToken(p.currentToken().Span, "u32", p.currentToken().String())
	}
	faces := p.currentToken().Value
	p.advance()

	end := p.currentToken().Span
	span := diceerr.NewSpan(start.Start, end.End)
	return ast.NewStatement(ast.NewDiceExpression(count, faces, span), span), nil
}
