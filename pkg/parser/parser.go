// Package parser builds an *ast.File from SOM classfile source text using
// straightforward recursive descent over package lexer's token stream.
package parser

import (
	"fmt"
	"strconv"

	"github.com/kristofer/smogvm/pkg/ast"
	"github.com/kristofer/smogvm/pkg/lexer"
)

// Parser is a recursive-descent parser with two tokens of lookahead,
// matching the shape of expression parsing kristofer-smog already used
// (save/restore of cur/peek around keyword-message lookahead), extended
// here with the class/method grammar the source classfile format needs.
type Parser struct {
	l    *lexer.Lexer
	cur  lexer.Token
	peek lexer.Token

	errors []string
}

// New returns a Parser ready to parse a single classfile from src.
func New(src string) *Parser {
	p := &Parser{l: lexer.New(src)}
	p.next()
	p.next()
	return p
}

func (p *Parser) next() {
	p.cur = p.peek
	p.peek = p.l.Next()
}

func (p *Parser) addErrorf(format string, args ...interface{}) {
	p.errors = append(p.errors, fmt.Sprintf("line %d: %s", p.cur.Line, fmt.Sprintf(format, args...)))
}

// Errors returns every parse error accumulated so far.
func (p *Parser) Errors() []string { return p.errors }

func (p *Parser) expect(t lexer.TokenType, what string) lexer.Token {
	if p.cur.Type != t {
		p.addErrorf("expected %s, got %q", what, p.cur.Literal)
	}
	tok := p.cur
	p.next()
	return tok
}

// ParseFile parses exactly one classfile: `Name [= SuperName] ( ... )`.
func (p *Parser) ParseFile() *ast.File {
	class := p.parseClassDef()
	return &ast.File{Class: class}
}

func (p *Parser) parseClassDef() *ast.ClassDef {
	name := p.expect(lexer.IDENT, "class name").Literal
	def := &ast.ClassDef{Name: name}

	if p.cur.Type == lexer.EQUALS {
		p.next()
		def.SuperName = p.expect(lexer.IDENT, "superclass name").Literal
	}

	p.expect(lexer.LPAREN, "'('")

	def.InstanceFields = p.parseFieldList()
	def.InstanceMethods = p.parseMethodDefs()

	if p.cur.Type == lexer.SEPARATOR {
		p.next()
		def.ClassFields = p.parseFieldList()
		def.ClassMethods = p.parseMethodDefs()
	}

	p.expect(lexer.RPAREN, "')'")
	return def
}

func (p *Parser) parseFieldList() []string {
	if p.cur.Type != lexer.PIPE {
		return nil
	}
	p.next()
	var fields []string
	for p.cur.Type == lexer.IDENT {
		fields = append(fields, p.cur.Literal)
		p.next()
	}
	p.expect(lexer.PIPE, "closing '|'")
	return fields
}

func (p *Parser) parseMethodDefs() []*ast.MethodDef {
	var methods []*ast.MethodDef
	for p.cur.Type == lexer.IDENT || p.cur.Type == lexer.KEYWORD || p.cur.Type == lexer.BINARY_OP || p.cur.Type == lexer.EQUALS {
		methods = append(methods, p.parseMethodDef())
	}
	return methods
}

func (p *Parser) parseMethodDef() *ast.MethodDef {
	m := &ast.MethodDef{}

	switch p.cur.Type {
	case lexer.KEYWORD:
		m.Kind = ast.PatternKeyword
		var selector string
		for p.cur.Type == lexer.KEYWORD {
			selector += p.cur.Literal
			p.next()
			m.ArgNames = append(m.ArgNames, p.expect(lexer.IDENT, "argument name").Literal)
		}
		m.Selector = selector
	case lexer.BINARY_OP, lexer.EQUALS:
		m.Kind = ast.PatternBinary
		m.Selector = p.cur.Literal
		p.next()
		m.ArgNames = append(m.ArgNames, p.expect(lexer.IDENT, "argument name").Literal)
	default:
		m.Kind = ast.PatternUnary
		m.Selector = p.expect(lexer.IDENT, "method selector").Literal
	}

	p.expect(lexer.EQUALS, "'=' before method body")

	if p.cur.Type == lexer.PRIMITIVE {
		p.next()
		m.Primitive = true
		return m
	}

	p.expect(lexer.LPAREN, "'(' starting method body")
	m.Locals = p.parseLocalsDecl()
	m.Body = p.parseStatements(lexer.RPAREN)
	p.expect(lexer.RPAREN, "')' ending method body")
	return m
}

func (p *Parser) parseLocalsDecl() []string {
	if p.cur.Type != lexer.PIPE {
		return nil
	}
	p.next()
	var locals []string
	for p.cur.Type == lexer.IDENT {
		locals = append(locals, p.cur.Literal)
		p.next()
	}
	p.expect(lexer.PIPE, "closing '|'")
	return locals
}

func (p *Parser) parseStatements(end lexer.TokenType) []ast.Statement {
	var stmts []ast.Statement
	for p.cur.Type != end && p.cur.Type != lexer.EOF {
		stmts = append(stmts, p.parseStatement())
		if p.cur.Type == lexer.PERIOD {
			p.next()
		} else {
			break
		}
	}
	return stmts
}

func (p *Parser) parseStatement() ast.Statement {
	if p.cur.Type == lexer.CARET {
		p.next()
		expr := p.parseExpression()
		return &ast.LocalReturn{Expr: expr}
	}
	return &ast.ExpressionStatement{Expr: p.parseExpression()}
}

// parseExpression parses an assignment-or-lower expression: `ident := expr`
// or a keyword-message-or-lower expression.
func (p *Parser) parseExpression() ast.Expression {
	if p.cur.Type == lexer.IDENT && p.peek.Type == lexer.ASSIGN {
		name := p.cur.Literal
		p.next()
		p.next()
		value := p.parseExpression()
		return &ast.Assign{Name: name, Value: value}
	}
	return p.parseKeywordMessage()
}

func (p *Parser) parseKeywordMessage() ast.Expression {
	recv := p.parseBinaryMessage()
	if p.cur.Type != lexer.KEYWORD {
		return recv
	}
	var selector string
	var args []ast.Expression
	for p.cur.Type == lexer.KEYWORD {
		selector += p.cur.Literal
		p.next()
		args = append(args, p.parseBinaryMessage())
	}
	return &ast.Send{Receiver: recv, Selector: selector, Args: args}
}

func (p *Parser) parseBinaryMessage() ast.Expression {
	recv := p.parseUnaryMessage()
	for p.cur.Type == lexer.BINARY_OP || p.cur.Type == lexer.EQUALS {
		op := p.cur.Literal
		p.next()
		arg := p.parseUnaryMessage()
		recv = &ast.Send{Receiver: recv, Selector: op, Args: []ast.Expression{arg}}
	}
	return recv
}

func (p *Parser) parseUnaryMessage() ast.Expression {
	recv := p.parsePrimary()
	for p.cur.Type == lexer.IDENT {
		sel := p.cur.Literal
		p.next()
		recv = &ast.Send{Receiver: recv, Selector: sel}
	}
	return recv
}

func (p *Parser) parsePrimary() ast.Expression {
	switch p.cur.Type {
	case lexer.IDENT:
		name := p.cur.Literal
		p.next()
		switch name {
		case "self":
			return &ast.Self{}
		case "super":
			return &ast.Super{}
		case "nil", "true", "false":
			return &ast.GlobalRef{Name: name}
		default:
			return &ast.Identifier{Name: name}
		}
	case lexer.INT:
		lit := p.cur.Literal
		p.next()
		n, err := strconv.ParseInt(lit, 10, 64)
		if err != nil {
			p.addErrorf("invalid integer literal %q", lit)
		}
		return &ast.IntLiteral{Value: n}
	case lexer.FLOAT:
		lit := p.cur.Literal
		p.next()
		f, err := strconv.ParseFloat(lit, 64)
		if err != nil {
			p.addErrorf("invalid float literal %q", lit)
		}
		return &ast.DoubleLiteral{Value: f}
	case lexer.STRING:
		lit := p.cur.Literal
		p.next()
		return &ast.StringLiteral{Value: lit}
	case lexer.SYMBOL:
		lit := p.cur.Literal
		p.next()
		return &ast.SymbolLiteral{Value: lit}
	case lexer.SYMBOL_ARRAY:
		p.next()
		return p.parseArrayLiteralTail()
	case lexer.LPAREN:
		p.next()
		expr := p.parseExpression()
		p.expect(lexer.RPAREN, "')'")
		return expr
	case lexer.LBRACKET:
		return p.parseBlock()
	case lexer.CARET:
		p.addErrorf("unexpected '^' inside expression")
		p.next()
		return p.parseExpression()
	default:
		p.addErrorf("unexpected token %q", p.cur.Literal)
		p.next()
		return &ast.GlobalRef{Name: "nil"}
	}
}

func (p *Parser) parseArrayLiteralTail() ast.Expression {
	var elems []ast.Expression
	for p.cur.Type != lexer.RPAREN && p.cur.Type != lexer.EOF {
		elems = append(elems, p.parseArrayLiteralElement())
	}
	p.expect(lexer.RPAREN, "')' ending #(...)")
	return &ast.ArrayLiteral{Elements: elems}
}

// parseArrayLiteralElement parses one element of a literal array: these
// are restricted to literals, bare identifiers (treated as symbols), and
// nested literal arrays, never full message sends.
func (p *Parser) parseArrayLiteralElement() ast.Expression {
	switch p.cur.Type {
	case lexer.SYMBOL_ARRAY:
		p.next()
		return p.parseArrayLiteralTail()
	case lexer.IDENT:
		name := p.cur.Literal
		p.next()
		return &ast.SymbolLiteral{Value: name}
	default:
		return p.parsePrimary()
	}
}

func (p *Parser) parseBlock() ast.Expression {
	p.expect(lexer.LBRACKET, "'['")
	b := &ast.Block{}
	for p.cur.Type == lexer.COLON {
		p.next()
		b.ArgNames = append(b.ArgNames, p.expect(lexer.IDENT, "block argument name").Literal)
	}
	if len(b.ArgNames) > 0 {
		p.expect(lexer.PIPE, "'|' ending block argument list")
	}
	b.Locals = p.parseLocalsDecl()
	b.Body = p.parseStatements(lexer.RBRACKET)
	p.expect(lexer.RBRACKET, "']'")
	return b
}
