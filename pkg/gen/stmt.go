package gen

import (
	"github.com/kartiknair/mycc/pkg/ast"
	"github.com/kartiknair/mycc/pkg/diag"
	"github.com/kartiknair/mycc/pkg/gen/out"
	"github.com/kartiknair/mycc/pkg/token"
)

func (g *Generator) stmt(s ast.Statement) {
	if s == nil {
		return
	}
	c := g.c
	c.Loc(s.Position())

	switch s := s.(type) {
	case *ast.CompoundStatement:
		for _, st := range s.Statements {
			g.stmt(st)
		}

	case *ast.DeclStatement:
		for _, d := range s.Decls {
			g.local(d)
		}

	case *ast.ExpressionStatement:
		if s.Expr != nil {
			c.Consume(g.expr(s.Expr))
		}

	case *ast.IfStatement:
		g.ifStmt(s)

	case *ast.WhileStatement:
		test, body, end := c.NewBlock("while"), c.NewBlock("body"), c.NewBlock("wend")
		g.fn.breaks[s] = end
		g.fn.continues[s] = test
		c.SetBlock(test)
		g.branch(s.Cond, body, end)
		c.SetBlock(body)
		g.stmt(s.Body)
		c.Jmp(test)
		c.SetBlock(end)

	case *ast.DoStatement:
		body, test, end := c.NewBlock("do"), c.NewBlock("dtest"), c.NewBlock("dend")
		g.fn.breaks[s] = end
		g.fn.continues[s] = test
		c.SetBlock(body)
		g.stmt(s.Body)
		c.SetBlock(test)
		c.Loc(s.Cond.Position())
		g.branch(s.Cond, body, end)
		c.SetBlock(end)

	case *ast.ForStatement:
		g.stmt(s.Init)
		test, body, post, end := c.NewBlock("for"), c.NewBlock("body"), c.NewBlock("post"), c.NewBlock("fend")
		g.fn.breaks[s] = end
		g.fn.continues[s] = post
		c.SetBlock(test)
		if s.Cond != nil {
			g.branch(s.Cond, body, end)
		}
		c.SetBlock(body)
		g.stmt(s.Body)
		c.SetBlock(post)
		if s.Post != nil {
			c.Consume(g.expr(s.Post))
		}
		c.Jmp(test)
		c.SetBlock(end)

	case *ast.SwitchStatement:
		g.switchStmt(s)

	case *ast.CaseStatement:
		c.SetBlock(g.fn.cases[s])
		g.stmt(s.Body)

	case *ast.DefaultStatement:
		c.SetBlock(g.fn.cases[s])
		g.stmt(s.Body)

	case *ast.BreakStatement:
		c.Jmp(g.target(g.fn.breaks, s.Target, s.Pos))

	case *ast.ContinueStatement:
		c.Jmp(g.target(g.fn.continues, s.Target, s.Pos))

	case *ast.GotoStatement:
		b, ok := g.fn.labels[s.Label]
		if !ok {
			diag.ICEAt(s.Pos, "goto to unknown label '%s'", s.Name)
		}
		c.Jmp(b)

	case *ast.LabelStatement:
		b, ok := g.fn.labels[s.Label]
		if !ok {
			diag.ICEAt(s.Pos, "label '%s' has no block", s.Name)
		}
		c.SetBlock(b)
		g.stmt(s.Body)

	case *ast.ReturnStatement:
		var v *out.Value
		if s.Value != nil {
			v = g.expr(s.Value)
			if ast.IsVoid(g.fn.sig.Return) {
				c.Consume(v)
				v = nil
			}
		}
		c.Ret(v)

	default:
		diag.ICEAt(s.Position(), "unhandled statement %T", s)
	}
}

func (g *Generator) target(m map[ast.Statement]*out.Block, s ast.Statement, pos token.Pos) *out.Block {
	b, ok := m[s]
	if !ok {
		diag.ICEAt(pos, "jump out of no enclosing statement")
	}
	return b
}

// ifStmt drops an arm that a constant condition never takes, unless a
// jump can still reach into it.
func (g *Generator) ifStmt(s *ast.IfStatement) {
	c := g.c
	if truth, ok := g.ev.Eval(s.Cond).Truth(); ok && g.fold {
		live, dead := s.Then, s.Else
		if !truth {
			live, dead = s.Else, s.Then
		}
		if !hasEntry(dead) {
			g.stmt(live)
			return
		}
	}

	then, end := c.NewBlock("then"), c.NewBlock("endif")
	els := end
	if s.Else != nil {
		els = c.NewBlock("else")
	}
	g.branch(s.Cond, then, els)
	c.SetBlock(then)
	g.stmt(s.Then)
	if s.Else != nil {
		c.Jmp(end)
		c.SetBlock(els)
		g.stmt(s.Else)
	}
	c.SetBlock(end)
}

// hasEntry reports statements a label or case can jump into.
func hasEntry(s ast.Statement) bool {
	switch s := s.(type) {
	case nil:
		return false
	case *ast.LabelStatement, *ast.CaseStatement, *ast.DefaultStatement:
		return true
	case *ast.CompoundStatement:
		for _, st := range s.Statements {
			if hasEntry(st) {
				return true
			}
		}
	case *ast.IfStatement:
		return hasEntry(s.Then) || hasEntry(s.Else)
	case *ast.WhileStatement:
		return hasEntry(s.Body)
	case *ast.DoStatement:
		return hasEntry(s.Body)
	case *ast.ForStatement:
		return hasEntry(s.Body)
	case *ast.SwitchStatement:
		// its own cases belong to it, but labels inside still count
		return hasLabel(s.Body)
	}
	return false
}

func hasLabel(s ast.Statement) bool {
	switch s := s.(type) {
	case *ast.LabelStatement:
		return true
	case *ast.CaseStatement:
		return hasLabel(s.Body)
	case *ast.DefaultStatement:
		return hasLabel(s.Body)
	case *ast.CompoundStatement:
		for _, st := range s.Statements {
			if hasLabel(st) {
				return true
			}
		}
	case *ast.IfStatement:
		return hasLabel(s.Then) || hasLabel(s.Else)
	case *ast.WhileStatement:
		return hasLabel(s.Body)
	case *ast.DoStatement:
		return hasLabel(s.Body)
	case *ast.ForStatement:
		return hasLabel(s.Body)
	case *ast.SwitchStatement:
		return hasLabel(s.Body)
	}
	return false
}

// switchStmt tests the controlling value against each case in turn. The
// value is kept in a frame slot so every test block finds it there.
func (g *Generator) switchStmt(s *ast.SwitchStatement) {
	c := g.c
	t := s.Cond.Type()
	end := c.NewBlock("swend")
	g.fn.breaks[s] = end
	for _, cs := range s.Cases {
		g.fn.cases[cs] = c.NewBlock("case")
	}
	dflt := end
	if s.Default != nil {
		dflt = c.NewBlock("default")
		g.fn.cases[s.Default] = dflt
	}

	v := g.expr(s.Cond)
	if v.Loc == out.LocConstInt {
		target := dflt
		for _, cs := range s.Cases {
			if g.ev.Truncate(cs.Val, t) == v.Int {
				target = g.fn.cases[cs]
				break
			}
		}
		c.Consume(v)
		c.Jmp(target)
	} else {
		pt := g.nav.PointerTo(t)
		slot := c.Alloca(g.nav.Size(t), g.nav.Align(t))
		c.Store(c.FrameAddr(slot, pt), v, t)
		for _, cs := range s.Cases {
			next := c.NewBlock("next")
			x := c.Deref(c.FrameAddr(slot, pt), t)
			c.Branch(c.Cmp(out.CmpEq, x, c.Const(g.ev.Truncate(cs.Val, t), t), g.nav.Int()), g.fn.cases[cs], next)
			c.SetBlock(next)
		}
		c.Jmp(dflt)
	}

	g.stmt(s.Body)
	c.SetBlock(end)
}

// branch jumps to t when e holds and to f otherwise, short-circuiting
// logical operators into blocks.
func (g *Generator) branch(e ast.Expression, t, f *out.Block) {
	c := g.c
	if g.fold {
		if truth, ok := g.ev.Eval(e).Truth(); ok {
			if truth {
				c.Jmp(t)
			} else {
				c.Jmp(f)
			}
			return
		}
	}

	switch e := e.(type) {
	case *ast.BinaryExpression:
		switch e.Op {
		case token.AND_AND:
			mid := c.NewBlock("and")
			g.branch(e.Left, mid, f)
			c.SetBlock(mid)
			g.branch(e.Right, t, f)
			return
		case token.OR_OR:
			mid := c.NewBlock("or")
			g.branch(e.Left, t, mid)
			c.SetBlock(mid)
			g.branch(e.Right, t, f)
			return
		}
	case *ast.UnaryExpression:
		if e.Op == token.BANG {
			g.branch(e.Operand, f, t)
			return
		}
	}
	c.Branch(g.expr(e), t, f)
}
