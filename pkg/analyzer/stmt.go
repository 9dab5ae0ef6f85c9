package analyzer

import (
	"github.com/kartiknair/mycc/pkg/ast"
	"github.com/kartiknair/mycc/pkg/config"
	"github.com/kartiknair/mycc/pkg/consteval"
	"github.com/kartiknair/mycc/pkg/token"
)

func (a *Analyzer) foldStatement(s ast.Statement, fn *function) {
	if s.MarkFolded() {
		return
	}

	switch s := s.(type) {
	case *ast.CompoundStatement:
		a.foldBlock(s, fn)

	case *ast.DeclStatement:
		for _, d := range s.Decls {
			a.foldDecl(d, fn)
		}

	case *ast.ExpressionStatement:
		if s.Expr != nil {
			s.Expr = a.foldExpression(s.Expr, fn)
			a.checkDiscarded(s.Expr)
		}

	case *ast.IfStatement:
		s.Cond = a.foldCondition(s.Cond, fn, "if")
		a.foldStatement(s.Then, fn)
		if s.Else != nil {
			a.foldStatement(s.Else, fn)
		}

	case *ast.WhileStatement:
		s.Cond = a.foldCondition(s.Cond, fn, "while")
		a.foldStatement(s.Body, fn)

	case *ast.DoStatement:
		a.foldStatement(s.Body, fn)
		s.Cond = a.foldCondition(s.Cond, fn, "do-while")

	case *ast.ForStatement:
		if s.Init != nil {
			a.foldStatement(s.Init, fn)
		}
		if s.Cond != nil {
			s.Cond = a.foldCondition(s.Cond, fn, "for")
		}
		if s.Post != nil {
			s.Post = a.foldExpression(s.Post, fn)
		}
		a.foldStatement(s.Body, fn)

	case *ast.SwitchStatement:
		a.foldSwitch(s, fn)

	case *ast.CaseStatement:
		a.foldCase(s, fn)
		a.foldStatement(s.Body, fn)

	case *ast.DefaultStatement:
		a.foldStatement(s.Body, fn)

	case *ast.LabelStatement:
		a.foldStatement(s.Body, fn)

	case *ast.ReturnStatement:
		a.foldReturn(s, fn)

	case *ast.BreakStatement, *ast.ContinueStatement, *ast.GotoStatement:
	}
}

// foldBlock folds the statements of a block and reports the first
// statement no path of control reaches.
func (a *Analyzer) foldBlock(b *ast.CompoundStatement, fn *function) {
	reachable, warned := true, false
	for _, st := range b.Statements {
		if isJumpTarget(st) {
			reachable = true
		}
		if !reachable && !warned {
			if _, isDecl := st.(*ast.DeclStatement); !isDecl {
				a.warn(config.WarnDeadCode, st.Position(), "unreachable code")
				warned = true
			}
		}
		a.foldStatement(st, fn)
		if reachable && !a.Passable(st) {
			reachable = false
		}
	}
}

func isJumpTarget(s ast.Statement) bool {
	switch s.(type) {
	case *ast.LabelStatement, *ast.CaseStatement, *ast.DefaultStatement:
		return true
	}
	return false
}

// foldCondition folds a controlling expression of a selection or loop.
func (a *Analyzer) foldCondition(e ast.Expression, fn *function, what string) ast.Expression {
	if as, ok := e.(*ast.AssignExpression); ok && as.Op == token.EQUAL {
		a.warn(config.WarnTestAssign, e.Position(), "testing an assignment in %s", what)
	}
	return a.foldScalar(e, fn, what)
}

func (a *Analyzer) foldSwitch(s *ast.SwitchStatement, fn *function) {
	s.Cond = a.foldExpression(s.Cond, fn)
	if !ast.IsIntegral(s.Cond.Type()) {
		a.errorf(s.Cond.Position(), "switch quantity not an integer")
	} else {
		s.Cond = a.to(s.Cond, a.nav.Promote(s.Cond.Type()))
	}

	a.foldStatement(s.Body, fn)

	seen := map[int64]*ast.CaseStatement{}
	for _, c := range s.Cases {
		if prev, dup := seen[c.Val]; dup {
			a.errorf(c.Pos, "duplicate case value %d (previous at %s)", c.Val, prev.Pos)
			continue
		}
		seen[c.Val] = c
	}
}

func (a *Analyzer) foldCase(c *ast.CaseStatement, fn *function) {
	c.Value = a.foldExpression(c.Value, fn)
	v := a.ev.Eval(c.Value)
	if !ast.IsIntegral(c.Value.Type()) || v.Kind != consteval.Value || v.IsFloat {
		a.errorf(c.Value.Position(), "case label does not reduce to an integer constant")
		return
	}
	c.Val = v.Int
	if c.Switch != nil && ast.IsIntegral(c.Switch.Cond.Type()) {
		c.Val = a.ev.Truncate(v.Int, c.Switch.Cond.Type())
	}
}

func (a *Analyzer) foldReturn(s *ast.ReturnStatement, fn *function) {
	if fn == nil {
		return
	}
	ret := fn.sig.Return

	if s.Value == nil {
		if !ast.IsVoid(ret) {
			a.warn(config.WarnReturnType, s.Pos, "return with no value in function returning non-void")
		}
		return
	}

	s.Value = a.foldExpression(s.Value, fn)
	switch {
	case ast.IsVoid(ret):
		if !ast.IsVoid(s.Value.Type()) {
			a.warn(config.WarnReturnType, s.Pos, "return with a value in function returning void")
		}
	case ast.IsRecord(ret):
		// already reported at the definition
	default:
		s.Value = a.convert(s.Value, ret, "return")
	}
}

// checkDiscarded reports an expression statement whose value is thrown
// away without any effect.
func (a *Analyzer) checkDiscarded(e ast.Expression) {
	if call := asCall(e); call != nil {
		if d := calleeDecl(call); d != nil && d.Attr(ast.AttrWarnUnusedResult) != nil {
			a.warn(config.WarnUnusedExpr, e.Position(),
				"ignoring return value of '%s', declared with attribute warn_unused_result", d.Name)
		}
		return
	}
	if !hasSideEffects(e) {
		a.warn(config.WarnUnusedExpr, e.Position(), "unused expression (%s)", exprKind(e))
	}
}

func asCall(e ast.Expression) *ast.CallExpression {
	switch e := e.(type) {
	case *ast.CallExpression:
		return e
	case *ast.BuiltinCall:
		return e.Call
	}
	return nil
}

func hasSideEffects(e ast.Expression) bool {
	switch e := e.(type) {
	case *ast.AssignExpression, *ast.IncDecExpression, *ast.CallExpression, *ast.BuiltinCall:
		return true
	case *ast.CastExpression:
		// an explicit (void) discards on purpose
		return (!e.Implicit && ast.IsVoid(e.To)) || hasSideEffects(e.Operand)
	case *ast.CommaExpression:
		return hasSideEffects(e.Left) || hasSideEffects(e.Right)
	case *ast.ConditionalExpression:
		return (e.Then != nil && hasSideEffects(e.Then)) || hasSideEffects(e.Else)
	case *ast.BinaryExpression:
		if e.Op == token.AND_AND || e.Op == token.OR_OR {
			return hasSideEffects(e.Right)
		}
		return hasSideEffects(e.Left) || hasSideEffects(e.Right)
	case *ast.UnaryExpression:
		if e.Op == token.STAR && e.Type().Qualifiers()&ast.QualVolatile != 0 {
			return true
		}
		return hasSideEffects(e.Operand)
	case *ast.Identifier:
		return e.Type() != nil && e.Type().Qualifiers()&ast.QualVolatile != 0
	case *ast.MemberExpression:
		return hasSideEffects(e.Object)
	}
	return false
}

func exprKind(e ast.Expression) string {
	switch e := e.(type) {
	case *ast.Identifier:
		return "identifier"
	case *ast.IntLiteral, *ast.FloatLiteral:
		return "constant"
	case *ast.StringLiteral:
		return "string"
	case *ast.CastExpression:
		if e.Implicit {
			return exprKind(e.Operand)
		}
		return "cast"
	case *ast.MemberExpression:
		return "struct member"
	case *ast.SizeofExpression:
		return "sizeof"
	case *ast.ConditionalExpression:
		return "conditional"
	case *ast.CommaExpression:
		return "comma"
	case *ast.BinaryExpression:
		if e.Op.IsComparativeOperator() {
			return "comparison"
		}
	}
	return "op"
}

// Passable reports whether control can fall through past s.
func (a *Analyzer) Passable(s ast.Statement) bool {
	switch s := s.(type) {
	case *ast.CompoundStatement:
		reachable := true
		for _, st := range s.Statements {
			if isJumpTarget(st) {
				reachable = true
			}
			if reachable && !a.Passable(st) {
				reachable = false
			}
		}
		return reachable

	case *ast.ExpressionStatement:
		return s.Expr == nil || !a.terminates(s.Expr)

	case *ast.IfStatement:
		if truth, ok := a.constCond(s.Cond); ok {
			if truth {
				return a.Passable(s.Then)
			}
			return s.Else == nil || a.Passable(s.Else)
		}
		return s.Else == nil || a.Passable(s.Then) || a.Passable(s.Else)

	case *ast.WhileStatement:
		if truth, ok := a.constCond(s.Cond); ok && truth {
			return s.HasBreak
		}
		return true

	case *ast.DoStatement:
		if truth, ok := a.constCond(s.Cond); ok && truth {
			return s.HasBreak
		}
		return true

	case *ast.ForStatement:
		if s.Cond == nil {
			return s.HasBreak
		}
		if truth, ok := a.constCond(s.Cond); ok && truth {
			return s.HasBreak
		}
		return true

	case *ast.SwitchStatement:
		return s.HasBreak || s.Default == nil || a.Passable(s.Body)

	case *ast.CaseStatement:
		return a.Passable(s.Body)
	case *ast.DefaultStatement:
		return a.Passable(s.Body)
	case *ast.LabelStatement:
		return a.Passable(s.Body)

	case *ast.BreakStatement, *ast.ContinueStatement, *ast.GotoStatement, *ast.ReturnStatement:
		return false
	}
	return true
}

func (a *Analyzer) constCond(e ast.Expression) (bool, bool) {
	if e == nil || e.Type() == nil {
		return false, false
	}
	return a.ev.Eval(e).Truth()
}

// terminates reports an expression after which control never continues:
// a call to a noreturn function or a trap builtin.
func (a *Analyzer) terminates(e ast.Expression) bool {
	switch e := e.(type) {
	case *ast.CastExpression:
		return a.terminates(e.Operand)
	case *ast.CommaExpression:
		return a.terminates(e.Left) || a.terminates(e.Right)
	case *ast.CallExpression:
		d := calleeDecl(e)
		return d != nil && d.Attr(ast.AttrNoreturn) != nil
	}
	return isTerminatingBuiltin(e)
}
