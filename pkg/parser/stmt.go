package parser

import (
	"github.com/kartiknair/mycc/pkg/ast"
	"github.com/kartiknair/mycc/pkg/config"
	"github.com/kartiknair/mycc/pkg/token"
)

// parseCompound parses a `{ ... }` block. Syntax errors inside the block are
// reported and skipped statement by statement.
func (p *Parser) parseCompound(newScope bool) *ast.CompoundStatement {
	lbrace := p.expect(token.LEFT_BRACE, "expected '{'")
	block := &ast.CompoundStatement{}
	block.Pos = lbrace.Pos

	if newScope {
		p.enterScope()
		defer p.exitScope()
	}
	block.Scope = p.scope

	seenStatement := false
	for !p.check(token.RIGHT_BRACE) && !p.check(token.EOF) {
		p.recovering(func() {
			tok := p.peek(0)
			if p.isDeclStart(tok) && !(tok.Type == token.IDENTIFIER && p.peek(1).Type == token.COLON) {
				if seenStatement {
					p.diag.Warn(config.WarnMixedCode, tok.Pos, "mixed code and declarations")
				}
				spec := p.parseDeclSpecifiers(true)
				decls := p.parseDeclaration(spec, false)
				block.Decls = append(block.Decls, decls...)
				ds := &ast.DeclStatement{Decls: decls}
				ds.Pos = tok.Pos
				block.Statements = append(block.Statements, ds)
				return
			}
			block.Statements = append(block.Statements, p.parseStatement())
			seenStatement = true
		})
		if p.diag.TooMany() {
			break
		}
	}

	block.End = p.expect(token.RIGHT_BRACE, "expected '}' at end of block").Pos
	return block
}

func (p *Parser) pushBreakable(s ast.Statement) {
	p.breakables = append(p.breakables, s)
}

func (p *Parser) popBreakable() {
	p.breakables = p.breakables[:len(p.breakables)-1]
}

func (p *Parser) parseStatement() ast.Statement {
	t := p.peek(0)

	switch t.Type {
	case token.LEFT_BRACE:
		return p.parseCompound(true)

	case token.IF:
		p.advance()
		stmt := &ast.IfStatement{}
		stmt.Pos = t.Pos
		stmt.Cond = p.parseParenExpression("if")
		stmt.Then = p.parseStatement()
		if p.match(token.ELSE) {
			stmt.Else = p.parseStatement()
		}
		return stmt

	case token.WHILE:
		p.advance()
		stmt := &ast.WhileStatement{}
		stmt.Pos = t.Pos
		stmt.Cond = p.parseParenExpression("while")
		p.pushBreakable(stmt)
		stmt.Body = p.parseStatement()
		p.popBreakable()
		return stmt

	case token.DO:
		p.advance()
		stmt := &ast.DoStatement{}
		stmt.Pos = t.Pos
		p.pushBreakable(stmt)
		stmt.Body = p.parseStatement()
		p.popBreakable()
		p.expect(token.WHILE, "expected 'while' after do body")
		stmt.Cond = p.parseParenExpression("do-while")
		p.expect(token.SEMICOLON, "expected ';' after do-while")
		return stmt

	case token.FOR:
		return p.parseFor()

	case token.SWITCH:
		p.advance()
		stmt := &ast.SwitchStatement{}
		stmt.Pos = t.Pos
		stmt.Cond = p.parseParenExpression("switch")
		p.pushBreakable(stmt)
		p.switches = append(p.switches, stmt)
		stmt.Body = p.parseStatement()
		p.switches = p.switches[:len(p.switches)-1]
		p.popBreakable()
		return stmt

	case token.CASE:
		p.advance()
		stmt := &ast.CaseStatement{}
		stmt.Pos = t.Pos
		stmt.Value = p.parseConditional()
		p.expect(token.COLON, "expected ':' after case value")
		if len(p.switches) == 0 {
			p.errorf(t.Pos, "case label not within a switch statement")
		} else {
			sw := p.switches[len(p.switches)-1]
			stmt.Switch = sw
			sw.Cases = append(sw.Cases, stmt)
		}
		stmt.Body = p.parseLabelledStatement()
		return stmt

	case token.DEFAULT:
		p.advance()
		stmt := &ast.DefaultStatement{}
		stmt.Pos = t.Pos
		p.expect(token.COLON, "expected ':' after default")
		if len(p.switches) == 0 {
			p.errorf(t.Pos, "default label not within a switch statement")
		} else {
			sw := p.switches[len(p.switches)-1]
			if sw.Default != nil {
				p.errorf(t.Pos, "multiple default labels in one switch")
			}
			stmt.Switch = sw
			sw.Default = stmt
		}
		stmt.Body = p.parseLabelledStatement()
		return stmt

	case token.BREAK:
		p.advance()
		stmt := &ast.BreakStatement{}
		stmt.Pos = t.Pos
		if len(p.breakables) == 0 {
			p.errorf(t.Pos, "break statement not within loop or switch")
		} else {
			stmt.Target = p.breakables[len(p.breakables)-1]
			markBreak(stmt.Target)
		}
		p.expect(token.SEMICOLON, "expected ';' after break")
		return stmt

	case token.CONTINUE:
		p.advance()
		stmt := &ast.ContinueStatement{}
		stmt.Pos = t.Pos
		for i := len(p.breakables) - 1; i >= 0; i-- {
			if _, isSwitch := p.breakables[i].(*ast.SwitchStatement); !isSwitch {
				stmt.Target = p.breakables[i]
				break
			}
		}
		if stmt.Target == nil {
			p.errorf(t.Pos, "continue statement not within a loop")
		}
		p.expect(token.SEMICOLON, "expected ';' after continue")
		return stmt

	case token.GOTO:
		p.advance()
		name := p.expect(token.IDENTIFIER, "expected label name after goto")
		stmt := &ast.GotoStatement{Name: name.Lexeme}
		stmt.Pos = t.Pos
		stmt.Label = p.scope.FindOrNewLabel(name.Lexeme, name.Pos)
		if stmt.Label != nil {
			stmt.Label.Uses++
		}
		p.expect(token.SEMICOLON, "expected ';' after goto")
		return stmt

	case token.RETURN:
		p.advance()
		stmt := &ast.ReturnStatement{Function: p.fn}
		stmt.Pos = t.Pos
		if !p.check(token.SEMICOLON) {
			stmt.Value = p.parseExpression()
		}
		p.expect(token.SEMICOLON, "expected ';' after return")
		return stmt

	case token.SEMICOLON:
		p.advance()
		stmt := &ast.ExpressionStatement{}
		stmt.Pos = t.Pos
		return stmt

	case token.IDENTIFIER:
		if p.peek(1).Type == token.COLON {
			return p.parseLabel()
		}
	}

	stmt := &ast.ExpressionStatement{}
	stmt.Pos = t.Pos
	stmt.Expr = p.parseExpression()
	p.expect(token.SEMICOLON, "expected ';' after expression")
	return stmt
}

func markBreak(s ast.Statement) {
	switch s := s.(type) {
	case *ast.WhileStatement:
		s.HasBreak = true
	case *ast.DoStatement:
		s.HasBreak = true
	case *ast.ForStatement:
		s.HasBreak = true
	case *ast.SwitchStatement:
		s.HasBreak = true
	}
}

// parseLabelledStatement parses the statement after a label, case or
// default. A label directly before `}` labels an empty statement.
func (p *Parser) parseLabelledStatement() ast.Statement {
	if p.check(token.RIGHT_BRACE) {
		stmt := &ast.ExpressionStatement{}
		stmt.Pos = p.peek(0).Pos
		return stmt
	}
	return p.parseStatement()
}

func (p *Parser) parseLabel() ast.Statement {
	name := p.advance()
	p.advance() // the `:`

	stmt := &ast.LabelStatement{Name: name.Lexeme}
	stmt.Pos = name.Pos
	stmt.Label = p.scope.FindOrNewLabel(name.Lexeme, name.Pos)

	switch {
	case stmt.Label == nil:
		p.errorf(name.Pos, "label '%s' outside of a function", name.Lexeme)
	case stmt.Label.Complete:
		p.errorf(name.Pos, "duplicate label '%s'", name.Lexeme)
	default:
		stmt.Label.Complete = true
		stmt.Label.Pos = name.Pos
		stmt.Label.Stmt = stmt
	}

	p.parseAttributes()
	stmt.Body = p.parseLabelledStatement()
	return stmt
}

func (p *Parser) parseFor() ast.Statement {
	t := p.advance()
	stmt := &ast.ForStatement{}
	stmt.Pos = t.Pos

	p.expect(token.LEFT_PAREN, "expected '(' after for")
	stmt.Scope = p.enterScope()
	defer p.exitScope()

	if init := p.peek(0); p.isDeclStart(init) {
		spec := p.parseDeclSpecifiers(true)
		ds := &ast.DeclStatement{Decls: p.parseDeclaration(spec, false)}
		ds.Pos = init.Pos
		stmt.Init = ds
	} else {
		if !p.check(token.SEMICOLON) {
			es := &ast.ExpressionStatement{Expr: p.parseExpression()}
			es.Pos = init.Pos
			stmt.Init = es
		}
		p.expect(token.SEMICOLON, "expected ';' in for")
	}

	if !p.check(token.SEMICOLON) {
		stmt.Cond = p.parseExpression()
	}
	p.expect(token.SEMICOLON, "expected ';' in for")
	if !p.check(token.RIGHT_PAREN) {
		stmt.Post = p.parseExpression()
	}
	p.expect(token.RIGHT_PAREN, "expected ')' after for clauses")

	p.pushBreakable(stmt)
	stmt.Body = p.parseStatement()
	p.popBreakable()
	return stmt
}

func (p *Parser) parseParenExpression(what string) ast.Expression {
	p.expect(token.LEFT_PAREN, "expected '(' after "+what)
	e := p.parseExpression()
	p.expect(token.RIGHT_PAREN, "expected ')' after "+what+" condition")
	return e
}
