package syntax

import (
	"fmt"

	"github.com/roach88/rxmigrate/internal/ir"
)

const (
	_ int = iota
	LOWEST
	LOGICAL_OR  // ||
	LOGICAL_AND // &&
	EQUALS      // == !=
	LESSGREATER // < > <= >=
	SUM         // + -
	PRODUCT     // * / %
	PREFIX      // -X or !X
	CALL        // x(...), x.y, x::y
)

var precedences = map[TokenType]int{
	OR:         LOGICAL_OR,
	AND:        LOGICAL_AND,
	EQ:         EQUALS,
	NOT_EQ:     EQUALS,
	LT:         LESSGREATER,
	GT:         LESSGREATER,
	LTE:        LESSGREATER,
	GTE:        LESSGREATER,
	PLUS:       SUM,
	MINUS:      SUM,
	ASTERISK:   PRODUCT,
	SLASH:      PRODUCT,
	PERCENT:    PRODUCT,
	LPAREN:     CALL,
	DOT:        CALL,
	COLONCOLON: CALL,
}

type (
	prefixParseFn func() ir.Node
	infixParseFn  func(ir.Node) ir.Node
)

// Error is a syntax error with its location in the parsed text.
type Error struct {
	Offset int
	Line   int
	Column int
	Msg    string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%d:%d: %s", e.Line, e.Column, e.Msg)
}

// Parser is a Pratt parser over a pre-lexed token slice. Every parse
// function leaves the cursor on the first token after the construct it read.
type Parser struct {
	toks []Token
	pos  int
	err  *Error

	prefixParseFns map[TokenType]prefixParseFn
	infixParseFns  map[TokenType]infixParseFn
}

func New(input string) *Parser {
	p := &Parser{toks: Tokenize(input)}

	p.prefixParseFns = map[TokenType]prefixParseFn{
		IDENT:  p.parseIdentifier,
		SUPER:  p.parseIdentifier,
		INT:    p.parseLiteral,
		LONG:   p.parseLiteral,
		STRING: p.parseLiteral,
		CHAR:   p.parseLiteral,
		TRUE:   p.parseLiteral,
		FALSE:  p.parseLiteral,
		NULL:   p.parseLiteral,
		NOT:    p.parsePrefixExpression,
		MINUS:  p.parsePrefixExpression,
		LPAREN: p.parseParenthesized,
		NEW:    p.parseNew,
	}

	p.infixParseFns = make(map[TokenType]infixParseFn)
	for _, tt := range []TokenType{OR, AND, EQ, NOT_EQ, LT, GT, LTE, GTE, PLUS, MINUS, ASTERISK, SLASH, PERCENT} {
		p.infixParseFns[tt] = p.parseInfixExpression
	}
	p.infixParseFns[LPAREN] = p.parseCallExpression
	p.infixParseFns[DOT] = p.parseDotExpression
	p.infixParseFns[COLONCOLON] = p.parseMethodRef
	return p
}

// ParseExpr parses one complete expression.
func ParseExpr(input string) (ir.Node, error) {
	p := New(input)
	n := p.parseExpression(LOWEST)
	if p.err == nil && !p.curTokenIs(EOF) {
		p.errorf("unexpected %s after expression", p.cur().Type)
	}
	if p.err != nil {
		return nil, p.err
	}
	return n, nil
}

// ParseType parses one complete type.
func ParseType(input string) (ir.Type, error) {
	p := New(input)
	t, ok := p.parseType()
	if !ok {
		p.errorf("malformed type %q", input)
	} else if !p.curTokenIs(EOF) {
		p.errorf("unexpected %s after type", p.cur().Type)
	}
	if p.err != nil {
		return nil, p.err
	}
	return t, nil
}

// ParseTypeParam parses "T" or "T extends Bound".
func ParseTypeParam(input string) (string, ir.Type, error) {
	p := New(input)
	if !p.curTokenIs(IDENT) {
		p.errorf("expected type parameter name")
		return "", nil, p.err
	}
	name := p.cur().Literal
	p.nextToken()
	var upper ir.Type
	if p.curTokenIs(EXTENDS) {
		p.nextToken()
		t, ok := p.parseType()
		if !ok {
			p.errorf("malformed bound for type parameter %s", name)
			return "", nil, p.err
		}
		upper = t
	}
	if !p.curTokenIs(EOF) {
		p.errorf("unexpected %s after type parameter", p.cur().Type)
		return "", nil, p.err
	}
	return name, upper, nil
}

func (p *Parser) cur() Token { return p.toks[p.pos] }

func (p *Parser) peek() Token { return p.at(1) }

func (p *Parser) at(offset int) Token {
	i := p.pos + offset
	if i >= len(p.toks) {
		return p.toks[len(p.toks)-1]
	}
	return p.toks[i]
}

func (p *Parser) nextToken() {
	if p.pos < len(p.toks)-1 {
		p.pos++
	}
}

func (p *Parser) curTokenIs(t TokenType) bool { return p.cur().Type == t }

func (p *Parser) expect(t TokenType) bool {
	if p.curTokenIs(t) {
		p.nextToken()
		return true
	}
	p.errorf("expected %s, got %s", t, p.cur().Type)
	return false
}

func (p *Parser) errorf(format string, args ...any) {
	if p.err != nil {
		return
	}
	t := p.cur()
	p.err = &Error{Offset: t.Pos, Line: t.Line, Column: t.Column, Msg: fmt.Sprintf(format, args...)}
}

// span builds the span from the token at start to the last consumed token.
func (p *Parser) span(start int) ir.Span {
	end := p.toks[start].End
	if p.pos > 0 {
		end = p.toks[p.pos-1].End
	}
	return ir.Span{Start: p.toks[start].Pos, End: end}
}

func (p *Parser) parseExpression(precedence int) ir.Node {
	start := p.pos
	prefix := p.prefixParseFns[p.cur().Type]
	if prefix == nil {
		p.errorf("unexpected %s", p.cur().Type)
		return nil
	}
	left := prefix()

	for p.err == nil && precedence < precedences[p.cur().Type] {
		infix := p.infixParseFns[p.cur().Type]
		if infix == nil {
			return left
		}
		left = infix(left)
		if left != nil {
			left.Info().Pos = p.span(start)
		}
	}
	return left
}

func (p *Parser) parseIdentifier() ir.Node {
	start := p.pos
	if p.peek().Type == ARROW {
		name := p.cur().Literal
		p.nextToken()
		p.nextToken()
		return p.finishLambda(start, []ir.Param{{Name: name}})
	}
	id := &ir.Ident{Name: p.cur().Literal}
	p.nextToken()
	id.Pos = p.span(start)
	return id
}

func (p *Parser) parseLiteral() ir.Node {
	start := p.pos
	t := p.cur()
	lit := &ir.Lit{Value: t.Literal}
	switch t.Type {
	case INT:
		lit.Kind = ir.LitInt
	case LONG:
		lit.Kind = ir.LitLong
	case STRING:
		lit.Kind = ir.LitString
	case CHAR:
		lit.Kind = ir.LitChar
	case TRUE, FALSE:
		lit.Kind = ir.LitBool
	case NULL:
		lit.Kind = ir.LitNull
	}
	p.nextToken()
	lit.Pos = p.span(start)
	return lit
}

func (p *Parser) parsePrefixExpression() ir.Node {
	start := p.pos
	op := p.cur().Literal
	p.nextToken()
	x := p.parseExpression(PREFIX)
	return &ir.Unary{Meta: ir.Meta{Pos: p.span(start)}, Op: op, X: x}
}

func (p *Parser) parseInfixExpression(left ir.Node) ir.Node {
	op := p.cur()
	p.nextToken()
	right := p.parseExpression(precedences[op.Type])
	return &ir.Binary{Op: op.Literal, X: left, Y: right}
}

// parseParenthesized handles both lambda parameter lists and grouping.
func (p *Parser) parseParenthesized() ir.Node {
	start := p.pos
	if p.isLambdaParams() {
		params := p.parseLambdaParams()
		if p.err != nil {
			return nil
		}
		return p.finishLambda(start, params)
	}
	p.nextToken()
	x := p.parseExpression(LOWEST)
	p.expect(RPAREN)
	return x
}

// isLambdaParams reports whether the parenthesis at the cursor closes
// directly in front of an arrow.
func (p *Parser) isLambdaParams() bool {
	depth := 0
	for i := p.pos; i < len(p.toks); i++ {
		switch p.toks[i].Type {
		case LPAREN:
			depth++
		case RPAREN:
			depth--
			if depth == 0 {
				return i+1 < len(p.toks) && p.toks[i+1].Type == ARROW
			}
		case EOF:
			return false
		}
	}
	return false
}

func (p *Parser) parseLambdaParams() []ir.Param {
	p.expect(LPAREN)
	var params []ir.Param
	for !p.curTokenIs(RPAREN) && p.err == nil {
		if p.curTokenIs(IDENT) && (p.peek().Type == COMMA || p.peek().Type == RPAREN) {
			params = append(params, ir.Param{Name: p.cur().Literal})
			p.nextToken()
		} else {
			t, ok := p.parseType()
			if !ok || !p.curTokenIs(IDENT) {
				p.errorf("malformed lambda parameter")
				return nil
			}
			params = append(params, ir.Param{Name: p.cur().Literal, Type: t})
			p.nextToken()
		}
		if p.curTokenIs(COMMA) {
			p.nextToken()
		}
	}
	p.expect(RPAREN)
	p.expect(ARROW)
	return params
}

func (p *Parser) finishLambda(start int, params []ir.Param) ir.Node {
	var body ir.Node
	if p.curTokenIs(LBRACE) {
		body = p.parseBlock()
	} else {
		body = p.parseExpression(LOWEST)
	}
	return &ir.Lambda{Meta: ir.Meta{Pos: p.span(start)}, Params: params, Body: body}
}

func (p *Parser) parseBlock() ir.Node {
	start := p.pos
	p.expect(LBRACE)
	block := &ir.Block{}
	for !p.curTokenIs(RBRACE) && !p.curTokenIs(EOF) && p.err == nil {
		if s := p.parseStatement(); s != nil {
			block.Stmts = append(block.Stmts, s)
		}
	}
	p.expect(RBRACE)
	block.Pos = p.span(start)
	return block
}

func (p *Parser) parseStatement() ir.Node {
	start := p.pos
	switch p.cur().Type {
	case RETURN:
		p.nextToken()
		ret := &ir.Return{}
		if !p.curTokenIs(SEMICOLON) {
			ret.X = p.parseExpression(LOWEST)
		}
		p.expect(SEMICOLON)
		ret.Pos = p.span(start)
		return ret
	case THROW:
		p.nextToken()
		th := &ir.Throw{X: p.parseExpression(LOWEST)}
		p.expect(SEMICOLON)
		th.Pos = p.span(start)
		return th
	case SEMICOLON:
		p.nextToken()
		return nil
	}
	if local := p.tryLocal(start); local != nil {
		return local
	}
	x := p.parseExpression(LOWEST)
	p.expect(SEMICOLON)
	return &ir.ExprStmt{Meta: ir.Meta{Pos: p.span(start)}, X: x}
}

// tryLocal parses `Type name = value;` or rewinds and returns nil.
func (p *Parser) tryLocal(start int) ir.Node {
	if !p.curTokenIs(IDENT) {
		return nil
	}
	t, ok := p.parseType()
	if !ok || !p.curTokenIs(IDENT) || (p.peek().Type != ASSIGN && p.peek().Type != SEMICOLON) {
		p.pos = start
		return nil
	}
	local := &ir.Local{Type: t, Name: p.cur().Literal}
	p.nextToken()
	if p.curTokenIs(ASSIGN) {
		p.nextToken()
		local.Value = p.parseExpression(LOWEST)
	}
	p.expect(SEMICOLON)
	local.Pos = p.span(start)
	return local
}

func (p *Parser) parseNew() ir.Node {
	start := p.pos
	p.nextToken()
	n := &ir.New{}
	name, ok := p.parseQualifiedName()
	if !ok {
		p.errorf("expected type after new")
		return nil
	}
	named := &ir.Named{Name: name}
	if p.curTokenIs(LT) && p.peek().Type == GT {
		n.Diamond = true
		p.nextToken()
		p.nextToken()
	} else if p.curTokenIs(LT) {
		args, ok := p.parseTypeArgs()
		if !ok {
			p.errorf("malformed type arguments")
			return nil
		}
		named.Args = args
	}
	n.Type = named
	if !p.curTokenIs(LPAREN) {
		p.errorf("expected ( after new %s", name)
		return nil
	}
	n.Args = p.parseArgs()
	n.Pos = p.span(start)
	return n
}

func (p *Parser) parseArgs() []ir.Node {
	p.expect(LPAREN)
	var args []ir.Node
	for !p.curTokenIs(RPAREN) && p.err == nil {
		args = append(args, p.parseExpression(LOWEST))
		if !p.curTokenIs(COMMA) {
			break
		}
		p.nextToken()
	}
	p.expect(RPAREN)
	return args
}

func (p *Parser) parseCallExpression(fun ir.Node) ir.Node {
	return &ir.Call{Fun: fun, Args: p.parseArgs()}
}

func (p *Parser) parseDotExpression(left ir.Node) ir.Node {
	p.nextToken()
	var targs []ir.Type
	if p.curTokenIs(LT) {
		args, ok := p.parseTypeArgs()
		if !ok {
			p.errorf("malformed explicit type arguments")
			return nil
		}
		targs = args
	}
	if !p.curTokenIs(IDENT) {
		p.errorf("expected member name after '.', got %s", p.cur().Type)
		return nil
	}
	sel := &ir.Select{X: left, Sel: p.cur().Literal}
	p.nextToken()
	if targs == nil {
		return sel
	}
	if !p.curTokenIs(LPAREN) {
		p.errorf("explicit type arguments require a call")
		return nil
	}
	return &ir.Call{Fun: sel, TypeArgs: targs, Args: p.parseArgs()}
}

func (p *Parser) parseMethodRef(left ir.Node) ir.Node {
	p.nextToken()
	switch p.cur().Type {
	case IDENT, NEW:
		ref := &ir.MethodRef{X: left, Name: p.cur().Literal}
		p.nextToken()
		return ref
	}
	p.errorf("expected method name after ::")
	return nil
}

func (p *Parser) parseQualifiedName() (string, bool) {
	if !p.curTokenIs(IDENT) {
		return "", false
	}
	name := p.cur().Literal
	p.nextToken()
	for p.curTokenIs(DOT) && p.peek().Type == IDENT {
		p.nextToken()
		name += "." + p.cur().Literal
		p.nextToken()
	}
	return name, true
}

// parseType reads a type without recording errors, so callers can use it
// speculatively.
func (p *Parser) parseType() (ir.Type, bool) {
	name, ok := p.parseQualifiedName()
	if !ok {
		return nil, false
	}
	var t ir.Type = &ir.Named{Name: name}
	if p.curTokenIs(LT) {
		args, ok := p.parseTypeArgs()
		if !ok {
			return nil, false
		}
		t = &ir.Named{Name: name, Args: args}
	}
	for p.curTokenIs(LBRACKET) && p.peek().Type == RBRACKET {
		p.nextToken()
		p.nextToken()
		t = &ir.Array{Elem: t}
	}
	return t, true
}

func (p *Parser) parseTypeArgs() ([]ir.Type, bool) {
	p.nextToken() // <
	var args []ir.Type
	for {
		a, ok := p.parseTypeArg()
		if !ok {
			return nil, false
		}
		args = append(args, a)
		if p.curTokenIs(COMMA) {
			p.nextToken()
			continue
		}
		if p.curTokenIs(GT) {
			p.nextToken()
			return args, true
		}
		return nil, false
	}
}

func (p *Parser) parseTypeArg() (ir.Type, bool) {
	if !p.curTokenIs(QUESTION) {
		return p.parseType()
	}
	p.nextToken()
	kind := ir.WildAny
	switch p.cur().Type {
	case EXTENDS:
		kind = ir.WildExtends
	case SUPER:
		kind = ir.WildSuper
	default:
		return &ir.Wildcard{Kind: ir.WildAny}, true
	}
	p.nextToken()
	b, ok := p.parseType()
	if !ok {
		return nil, false
	}
	return &ir.Wildcard{Kind: kind, Bound: b}, true
}
