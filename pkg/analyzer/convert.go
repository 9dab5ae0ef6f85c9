package analyzer

import (
	"github.com/kartiknair/mycc/pkg/ast"
	"github.com/kartiknair/mycc/pkg/config"
	"github.com/kartiknair/mycc/pkg/consteval"
	"github.com/kartiknair/mycc/pkg/token"
)

// synth finishes a node created by folding: it is typed and already folded.
func synth[E ast.Expression](e E, t ast.Type) E {
	e.SetType(t)
	e.MarkFolded()
	return e
}

func (a *Analyzer) implicitCast(e ast.Expression, to ast.Type) ast.Expression {
	return synth(ast.NewCast(e.Position(), to, e, true), to)
}

// decay converts an array or function designator to a pointer rvalue.
func (a *Analyzer) decay(e ast.Expression) ast.Expression {
	switch t := e.Type().(type) {
	case *ast.Array:
		return a.implicitCast(e, a.nav.PointerTo(t.Elem))
	case *ast.Function:
		return a.implicitCast(e, a.nav.PointerTo(t))
	}
	return e
}

func (a *Analyzer) isNullConstant(e ast.Expression) bool {
	if !ast.IsIntegral(e.Type()) && !ast.IsVoidPointer(e.Type()) {
		return false
	}
	return a.ev.Eval(e).IsZero()
}

func isLvalue(e ast.Expression) bool {
	switch e := e.(type) {
	case *ast.Identifier:
		return e.Decl != nil
	case *ast.UnaryExpression:
		return e.Op == token.STAR
	case *ast.MemberExpression, *ast.StringLiteral:
		return true
	}
	return false
}

func describeTarget(e ast.Expression) string {
	if id, ok := e.(*ast.Identifier); ok {
		return "variable '" + id.Name + "'"
	}
	return "location"
}

// checkModifiable reports a target that cannot be assigned to.
func (a *Analyzer) checkModifiable(e ast.Expression, what string) bool {
	switch {
	case isUndeclared(e):
		// already reported
	case !isLvalue(e):
		a.errorf(e.Position(), "lvalue required as %s", what)
	case ast.IsArray(e.Type()):
		a.errorf(e.Position(), "assignment to expression with array type")
	case ast.IsFunction(e.Type()):
		a.errorf(e.Position(), "assignment to function designator")
	case e.Type().Qualifiers()&ast.QualConst != 0:
		a.errorf(e.Position(), "assignment of read-only %s", describeTarget(e))
	default:
		return true
	}
	return false
}

// fits reports whether v survives conversion to t when read back with
// either signedness.
func (a *Analyzer) fits(v int64, t ast.Type) bool {
	size := a.nav.Size(t)
	if size >= 8 || !ast.IsIntegral(t) {
		return true
	}
	if p, ok := t.(*ast.Primitive); ok && p.Kind == ast.Bool {
		return true
	}
	bits := uint(size * 8)
	lo := -(int64(1) << (bits - 1))
	hi := int64(1)<<bits - 1
	return v >= lo && v <= hi
}

// convert converts a folded rvalue to type to as if by assignment. what
// names the context in diagnostics ("assignment", "return", ...).
func (a *Analyzer) convert(e ast.Expression, to ast.Type, what string) ast.Expression {
	from := e.Type()
	pos := e.Position()

	if ast.IsVoid(from) {
		if !ast.IsVoid(to) {
			a.errorf(pos, "void value not ignored as it ought to be")
		}
		return e
	}

	switch {
	case ast.IsRecord(to) || ast.IsRecord(from):
		if !ast.Equal(from, to, ast.CmpIgnoreQual) {
			a.errorf(pos, "incompatible types when %s ('%s' from '%s')", what, to, from)
		}
		return e

	case ast.IsPointer(to) && ast.IsPointer(from):
		toElem, fromElem := ast.Pointee(to), ast.Pointee(from)
		if !ast.Equal(to, from, ast.CmpIgnoreQual|ast.CmpAllowVoidPtr) {
			a.warn(config.WarnIncompatiblePtr, pos, "incompatible pointer types in %s ('%s' from '%s')", what, to, from)
		} else if lost := fromElem.Qualifiers() &^ toElem.Qualifiers(); lost != 0 {
			a.warn(config.WarnIncompatiblePtr, pos, "%s discards '%s' qualifier from pointer target type", what, lost)
		}

	case ast.IsPointer(to):
		switch {
		case ast.IsIntegral(from):
			if !a.isNullConstant(e) {
				a.warn(config.WarnIntPtrConv, pos, "%s makes pointer from integer without a cast", what)
			}
		default:
			a.errorf(pos, "incompatible types when %s ('%s' from '%s')", what, to, from)
			return e
		}

	case ast.IsPointer(from):
		switch {
		case ast.IsIntegral(to):
			if p, ok := to.(*ast.Primitive); !ok || p.Kind != ast.Bool {
				a.warn(config.WarnIntPtrConv, pos, "%s makes integer from pointer without a cast", what)
			}
		default:
			a.errorf(pos, "incompatible types when %s ('%s' from '%s')", what, to, from)
			return e
		}

	case ast.IsArithmetic(to) && ast.IsArithmetic(from):
		if ast.IsIntegral(to) && ast.IsIntegral(from) {
			if c := a.ev.Eval(e); c.Kind == consteval.Value && !a.fits(c.Int, to) {
				a.warn(config.WarnAssignMismatch, pos, "overflow in conversion from '%s' to '%s' changes value from %d to %d",
					from, to, c.Int, a.ev.Truncate(c.Int, to))
			}
		}

	default:
		a.errorf(pos, "incompatible types when %s ('%s' from '%s')", what, to, from)
		return e
	}

	if ast.Equal(from, to, ast.CmpIgnoreQual) {
		return e
	}
	return a.implicitCast(e, ast.Unqualified(to))
}

// to converts an arithmetic operand to t, without diagnostics.
func (a *Analyzer) to(e ast.Expression, t ast.Type) ast.Expression {
	if ast.Equal(e.Type(), t, ast.CmpIgnoreQual) {
		return e
	}
	return a.implicitCast(e, t)
}

// arithmetic applies the usual arithmetic conversions to both operands.
func (a *Analyzer) arithmetic(l, r ast.Expression) (ast.Expression, ast.Expression, ast.Type) {
	common := a.nav.Common(l.Type(), r.Type())
	return a.to(l, common), a.to(r, common), common
}

// signCompare applies the usual conversions to the operands of a
// comparison. A nonnegative constant compared against an unsigned operand
// is taken as unsigned; otherwise mixing signedness warns.
func (a *Analyzer) signCompare(e *ast.BinaryExpression) {
	lt, rt := a.nav.Promote(e.Left.Type()), a.nav.Promote(e.Right.Type())
	if !ast.IsIntegral(lt) || !ast.IsIntegral(rt) || ast.IsSigned(lt) == ast.IsSigned(rt) {
		return
	}

	nonneg := func(x ast.Expression) bool {
		c := a.ev.Eval(x)
		return c.Kind == consteval.Value && !c.IsFloat && c.Int >= 0
	}
	unsignedOf := func(t ast.Type) ast.Type {
		return a.nav.Prim(t.(*ast.Primitive).Kind, true)
	}

	switch {
	case ast.IsSigned(rt) && nonneg(e.Right):
		e.Right = a.to(e.Right, unsignedOf(rt))
	case ast.IsSigned(lt) && nonneg(e.Left):
		e.Left = a.to(e.Left, unsignedOf(lt))
	case !ast.IsSigned(a.nav.Common(lt, rt)):
		a.warn(config.WarnSignCompare, e.Pos, "comparison between signed and unsigned%s%s",
			identSuffix(e.Left), identSuffix(e.Right))
	}
}

func identSuffix(e ast.Expression) string {
	for {
		c, ok := e.(*ast.CastExpression)
		if !ok || !c.Implicit {
			break
		}
		e = c.Operand
	}
	if id, ok := e.(*ast.Identifier); ok {
		return " ('" + id.Name + "')"
	}
	return ""
}
