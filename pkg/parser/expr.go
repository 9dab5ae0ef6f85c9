package parser

import (
	"github.com/kartiknair/mycc/pkg/ast"
	"github.com/kartiknair/mycc/pkg/config"
	"github.com/kartiknair/mycc/pkg/token"
)

type associativity int

const (
	ltr associativity = iota
	rtl
)

type opInfo struct {
	precedence    int
	associativity associativity
}

const (
	assignmentPrecedence  = 1
	conditionalPrecedence = 2
)

var operatorPrecedenceMap = map[token.TokenType]opInfo{
	token.EQUAL:             {precedence: assignmentPrecedence, associativity: rtl},
	token.STAR_EQUAL:        {precedence: assignmentPrecedence, associativity: rtl},
	token.SLASH_EQUAL:       {precedence: assignmentPrecedence, associativity: rtl},
	token.PERCENT_EQUAL:     {precedence: assignmentPrecedence, associativity: rtl},
	token.PLUS_EQUAL:        {precedence: assignmentPrecedence, associativity: rtl},
	token.MINUS_EQUAL:       {precedence: assignmentPrecedence, associativity: rtl},
	token.SHIFT_LEFT_EQUAL:  {precedence: assignmentPrecedence, associativity: rtl},
	token.SHIFT_RIGHT_EQUAL: {precedence: assignmentPrecedence, associativity: rtl},
	token.AND_EQUAL:         {precedence: assignmentPrecedence, associativity: rtl},
	token.CARET_EQUAL:       {precedence: assignmentPrecedence, associativity: rtl},
	token.OR_EQUAL:          {precedence: assignmentPrecedence, associativity: rtl},

	token.QUESTION: {precedence: conditionalPrecedence, associativity: rtl},

	token.OR_OR:   {precedence: 3, associativity: ltr},
	token.AND_AND: {precedence: 4, associativity: ltr},
	token.OR:      {precedence: 5, associativity: ltr},
	token.CARET:   {precedence: 6, associativity: ltr},
	token.AND:     {precedence: 7, associativity: ltr},

	token.EQUAL_EQUAL: {precedence: 8, associativity: ltr},
	token.BANG_EQUAL:  {precedence: 8, associativity: ltr},

	token.LESSER:        {precedence: 9, associativity: ltr},
	token.GREATER:       {precedence: 9, associativity: ltr},
	token.LESSER_EQUAL:  {precedence: 9, associativity: ltr},
	token.GREATER_EQUAL: {precedence: 9, associativity: ltr},

	token.SHIFT_LEFT:  {precedence: 10, associativity: ltr},
	token.SHIFT_RIGHT: {precedence: 10, associativity: ltr},

	token.PLUS:  {precedence: 11, associativity: ltr},
	token.MINUS: {precedence: 11, associativity: ltr},

	token.STAR:    {precedence: 12, associativity: ltr},
	token.SLASH:   {precedence: 12, associativity: ltr},
	token.PERCENT: {precedence: 12, associativity: ltr},
}

// parseExpression parses a full, comma separated, expression.
func (p *Parser) parseExpression() ast.Expression {
	expr := p.parseAssignment()
	for p.check(token.COMMA) {
		comma := p.advance()
		expr = ast.NewComma(comma.Pos, expr, p.parseAssignment())
	}
	return expr
}

func (p *Parser) parseAssignment() ast.Expression {
	return p.parsePrecedenceExpression(p.parseCast(), assignmentPrecedence)
}

// parseConditional parses a constant-expression: no assignment or comma.
func (p *Parser) parseConditional() ast.Expression {
	return p.parsePrecedenceExpression(p.parseCast(), conditionalPrecedence)
}

func (p *Parser) parsePrecedenceExpression(lhs ast.Expression, minPrecedence int) ast.Expression {
	lookahead := p.peek(0)
	for {
		info, isOp := operatorPrecedenceMap[lookahead.Type]
		if !isOp || info.precedence < minPrecedence {
			break
		}
		op := p.advance()

		var middle ast.Expression
		if op.Type == token.QUESTION {
			if !p.check(token.COLON) {
				middle = p.parseExpression()
			}
			p.expect(token.COLON, "expected ':' in conditional expression")
		}

		rhs := p.parseCast()
		lookahead = p.peek(0)
		for {
			next, isNext := operatorPrecedenceMap[lookahead.Type]
			if !isNext {
				break
			}
			if next.precedence > info.precedence {
				rhs = p.parsePrecedenceExpression(rhs, info.precedence+1)
			} else if next.associativity == rtl && next.precedence == info.precedence {
				rhs = p.parsePrecedenceExpression(rhs, info.precedence)
			} else {
				break
			}
			lookahead = p.peek(0)
		}

		switch {
		case op.Type == token.QUESTION:
			lhs = ast.NewConditional(op.Pos, lhs, middle, rhs)
		case op.Type.IsAssignment():
			lhs = ast.NewAssign(op.Pos, op.Type, lhs, rhs)
		default:
			lhs = ast.NewBinary(op.Pos, op.Type, lhs, rhs)
		}
	}
	return lhs
}

func (p *Parser) parseCast() ast.Expression {
	if p.check(token.LEFT_PAREN) && p.isTypeStart(p.peek(1)) {
		lparen := p.advance()
		typ := p.parseTypeName()
		p.expect(token.RIGHT_PAREN, "expected ')' after type name")
		if p.check(token.LEFT_BRACE) {
			p.parseError(p.peek(0), "compound literals are not supported")
		}
		return ast.NewCast(lparen.Pos, typ, p.parseCast(), false)
	}
	return p.parseUnary()
}

func (p *Parser) parseUnary() ast.Expression {
	t := p.peek(0)

	switch t.Type {
	case token.PLUS_PLUS, token.MINUS_MINUS:
		p.advance()
		return ast.NewIncDec(t.Pos, p.parseUnary(), t.Type == token.PLUS_PLUS, false)
	case token.AND, token.STAR, token.PLUS, token.MINUS, token.TILDE, token.BANG:
		p.advance()
		return ast.NewUnary(t.Pos, t.Type, p.parseCast())
	case token.AND_AND:
		p.parseError(t, "taking the address of a label is not supported")
	case token.SIZEOF, token.ALIGNOF:
		p.advance()
		align := t.Type == token.ALIGNOF
		if p.check(token.LEFT_PAREN) && p.isTypeStart(p.peek(1)) {
			p.advance()
			typ := p.parseTypeName()
			p.expect(token.RIGHT_PAREN, "expected ')' after type name")
			return ast.NewSizeof(t.Pos, typ, nil, align)
		}
		return ast.NewSizeof(t.Pos, nil, p.parseUnary(), align)
	}

	return p.parsePostfix(p.parsePrimary())
}

func (p *Parser) parsePostfix(expr ast.Expression) ast.Expression {
	for {
		t := p.peek(0)
		switch t.Type {
		case token.LEFT_BRACKET:
			p.advance()
			index := p.parseExpression()
			p.expect(token.RIGHT_BRACKET, "expected ']' after index")
			// a[i] is *(a + i)
			expr = ast.NewUnary(t.Pos, token.STAR, ast.NewBinary(t.Pos, token.PLUS, expr, index))
		case token.LEFT_PAREN:
			p.advance()
			expr = ast.NewCall(t.Pos, expr, p.parseArguments())
		case token.DOT, token.ARROW:
			p.advance()
			name := p.expect(token.IDENTIFIER, "expected member name after "+t.Lexeme)
			expr = ast.NewMember(name.Pos, expr, name.Lexeme, t.Type == token.ARROW)
		case token.PLUS_PLUS, token.MINUS_MINUS:
			p.advance()
			expr = ast.NewIncDec(t.Pos, expr, t.Type == token.PLUS_PLUS, true)
		default:
			return expr
		}
	}
}

// parseArguments parses a call's arguments; the `(` is already consumed.
func (p *Parser) parseArguments() []ast.Expression {
	var args []ast.Expression
	if !p.check(token.RIGHT_PAREN) {
		for {
			args = append(args, p.parseAssignment())
			if !p.match(token.COMMA) {
				break
			}
		}
	}
	p.expect(token.RIGHT_PAREN, "expected ')' after arguments")
	return args
}

func (p *Parser) parsePrimary() ast.Expression {
	t := p.peek(0)

	switch t.Type {
	case token.INT:
		p.advance()
		lit := ast.NewIntLiteral(t.Pos, t.Int, nil)
		lit.Suffix = t.Suffix
		return lit

	case token.CHAR:
		p.advance()
		lit := ast.NewIntLiteral(t.Pos, t.Int, p.nav.Int())
		lit.Char = true
		return lit

	case token.FLOAT:
		p.advance()
		return ast.NewFloatLiteral(t.Pos, t.Float, t.Single)

	case token.STRING:
		p.advance()
		value, wide := t.Str, t.Wide
		// adjacent literals concatenate
		for p.check(token.STRING) {
			next := p.advance()
			value += next.Str
			wide = wide || next.Wide
		}
		return ast.NewStringLiteral(t.Pos, value, wide)

	case token.FUNC_NAME:
		p.advance()
		if p.fn == nil {
			p.diag.Warn(config.WarnAttr, t.Pos, "'%s' is not defined outside of function scope", t.Lexeme)
			return ast.NewStringLiteral(t.Pos, "", false)
		}
		return ast.NewStringLiteral(t.Pos, p.fn.Name, false)

	case token.IDENTIFIER:
		if b, ok := ast.LookupBuiltin(t.Lexeme, p.cfg.IsFeatureEnabled(config.FeatFreestanding)); ok && p.peek(1).Type == token.LEFT_PAREN {
			return p.parseBuiltin(b)
		}
		p.advance()
		id := ast.NewIdentifier(t, p.scope)
		id.Decl, id.Enum = p.scope.Lookup(t.Lexeme)
		return id

	case token.LEFT_PAREN:
		p.advance()
		if p.check(token.LEFT_BRACE) {
			p.parseError(p.peek(0), "statement expressions are not supported")
		}
		expr := p.parseExpression()
		p.expect(token.RIGHT_PAREN, "expected ')'")
		return expr
	}

	p.parseError(t, "expected expression before "+describe(t))
	return nil
}

// parseBuiltin parses a call to a compiler intrinsic. strlen keeps an
// ordinary call alongside for when it cannot be folded.
func (p *Parser) parseBuiltin(b ast.Builtin) ast.Expression {
	name := p.advance()
	call := ast.NewBuiltinCall(name.Pos, b, name.Lexeme)

	p.expect(token.LEFT_PAREN, "expected '(' after "+name.Lexeme)
	if !p.check(token.RIGHT_PAREN) {
		for {
			if b.TakesTypes() {
				call.Types = append(call.Types, p.parseTypeName())
			} else {
				call.Args = append(call.Args, p.parseAssignment())
			}
			if !p.match(token.COMMA) {
				break
			}
		}
	}
	p.expect(token.RIGHT_PAREN, "expected ')' after builtin arguments")

	if b == ast.BuiltinStrlen {
		callee := ast.NewIdentifier(token.Token{Lexeme: "strlen", Pos: name.Pos}, p.scope)
		callee.Decl, callee.Enum = p.scope.Lookup("strlen")
		call.Call = ast.NewCall(name.Pos, callee, call.Args)
	}
	return call
}
