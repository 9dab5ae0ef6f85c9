package parser

import (
	"fmt"

	"github.com/kartiknair/mycc/pkg/ast"
	"github.com/kartiknair/mycc/pkg/config"
	"github.com/kartiknair/mycc/pkg/diag"
	"github.com/kartiknair/mycc/pkg/lexer"
	"github.com/kartiknair/mycc/pkg/token"
)

// ConstFolder evaluates the integer constant expressions the parser needs
// before a declaration is complete: array bounds, bit-field widths and
// enumerator values.
type ConstFolder interface {
	FoldInteger(e ast.Expression) (int64, bool)
}

type Parser struct {
	lex  *lexer.Lexer
	diag *diag.Reporter
	cfg  *config.Config
	nav  *ast.TypeNav
	cf   ConstFolder

	buf []token.Token

	scope      *ast.Scope
	fn         *ast.Decl
	breakables []ast.Statement
	switches   []*ast.SwitchStatement

	Unit *ast.TranslationUnit
}

type syntaxError struct {
	tok token.Token
	msg string
}

func New(unit *ast.TranslationUnit, cfg *config.Config, nav *ast.TypeNav, d *diag.Reporter, cf ConstFolder) *Parser {
	if unit.Scope == nil {
		unit.Scope = ast.NewScope(nil)
	}
	return &Parser{
		lex:   lexer.New(unit.Path, unit.Source),
		diag:  d,
		cfg:   cfg,
		nav:   nav,
		cf:    cf,
		scope: unit.Scope,
		Unit:  unit,
	}
}

func (p *Parser) parseError(tok token.Token, message string) {
	panic(&syntaxError{tok: tok, msg: message})
}

func (p *Parser) errorf(pos token.Pos, format string, args ...interface{}) {
	p.diag.Error(pos, format, args...)
}

func (p *Parser) fill(n int) {
	for len(p.buf) <= n {
		tok, err := p.lex.Next()
		if err != nil {
			le, ok := err.(*lexer.Error)
			if !ok {
				diag.ICE("lexer returned %v", err)
			}
			p.diag.Error(le.Pos, "%s", le.Msg)
			// nothing was salvaged from the bad input
			if tok.Lexeme == "" {
				continue
			}
		}
		p.buf = append(p.buf, tok)
	}
}

func (p *Parser) peek(distance int) token.Token {
	p.fill(distance)
	return p.buf[distance]
}

func (p *Parser) advance() token.Token {
	tok := p.peek(0)
	if tok.Type != token.EOF {
		p.buf = p.buf[1:]
	}
	return tok
}

func (p *Parser) check(typ token.TokenType) bool {
	return p.peek(0).Type == typ
}

func (p *Parser) match(typ token.TokenType) bool {
	if p.check(typ) {
		p.advance()
		return true
	}
	return false
}

func (p *Parser) expect(typ token.TokenType, message string) token.Token {
	if !p.check(typ) {
		p.parseError(p.peek(0), message)
	}
	return p.advance()
}

func (p *Parser) report(se *syntaxError) {
	found := se.tok.Lexeme
	if se.tok.Type == token.EOF {
		found = "end of file"
	}
	if found == "" {
		p.diag.Error(se.tok.Pos, "%s", se.msg)
		return
	}
	p.diag.Error(se.tok.Pos, "%s (got '%s')", se.msg, found)
}

// synchronize skips to the end of the current statement: past the next `;`
// at this nesting level, or up to an unmatched `}`.
func (p *Parser) synchronize() {
	depth := 0
	for {
		switch p.peek(0).Type {
		case token.EOF:
			return
		case token.SEMICOLON:
			p.advance()
			if depth == 0 {
				return
			}
		case token.LEFT_BRACE:
			depth++
			p.advance()
		case token.RIGHT_BRACE:
			if depth == 0 {
				return
			}
			depth--
			p.advance()
			if depth == 0 {
				return
			}
		default:
			p.advance()
		}
	}
}

// recovering runs parse, turning a syntax error into a diagnostic followed
// by resynchronisation. It reports whether parse completed.
func (p *Parser) recovering(parse func()) (ok bool) {
	scope, fn := p.scope, p.fn
	nb, ns := len(p.breakables), len(p.switches)

	defer func() {
		r := recover()
		if r == nil {
			return
		}
		se, isSyntax := r.(*syntaxError)
		if !isSyntax {
			panic(r)
		}
		p.report(se)
		p.scope, p.fn = scope, fn
		p.breakables, p.switches = p.breakables[:nb], p.switches[:ns]
		p.synchronize()
		ok = false
	}()

	parse()
	return true
}

// Next parses the next top-level declaration or function definition. It
// returns false at the end of input. A declaration that failed to parse is
// skipped after its diagnostic has been reported.
func (p *Parser) Next() ([]*ast.Decl, bool) {
	for {
		for p.match(token.SEMICOLON) {
		}
		if p.check(token.EOF) {
			return nil, false
		}

		var decls []*ast.Decl
		ok := p.recovering(func() {
			decls = p.parseExternalDeclaration()
		})
		if ok {
			p.Unit.Decls = append(p.Unit.Decls, decls...)
			return decls, true
		}
		if p.check(token.RIGHT_BRACE) {
			p.advance()
		}
		if p.diag.TooMany() {
			return nil, false
		}
	}
}

func (p *Parser) parseExternalDeclaration() []*ast.Decl {
	start := p.peek(0)
	spec := p.parseDeclSpecifiers(true)
	if spec.implicit {
		if start.Type != token.IDENTIFIER {
			p.parseError(start, "expected declaration")
		}
		p.diag.Warn(config.WarnImplicitInt, start.Pos, "type defaults to 'int' in declaration of '%s'", start.Lexeme)
	}
	return p.parseDeclaration(spec, true)
}

func (p *Parser) enterScope() *ast.Scope {
	p.scope = ast.NewScope(p.scope)
	return p.scope
}

func (p *Parser) exitScope() {
	p.scope = p.scope.Parent
}

// constInt folds an integer constant expression, reporting msg on failure.
func (p *Parser) constInt(e ast.Expression, msg string) (int64, bool) {
	if p.cf != nil {
		if v, ok := p.cf.FoldInteger(e); ok {
			return v, true
		}
	} else if lit, ok := e.(*ast.IntLiteral); ok {
		return int64(lit.Value), true
	}
	p.errorf(e.Position(), "%s", msg)
	return 0, false
}

func describe(tok token.Token) string {
	if tok.Lexeme != "" {
		return fmt.Sprintf("'%s'", tok.Lexeme)
	}
	return tok.Type.String()
}
