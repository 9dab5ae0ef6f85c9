package analyzer

import (
	"github.com/kartiknair/mycc/pkg/ast"
	"github.com/kartiknair/mycc/pkg/config"
	"github.com/kartiknair/mycc/pkg/consteval"
)

func (a *Analyzer) foldBuiltin(e *ast.BuiltinCall, fn *function) ast.Expression {
	for i := range e.Args {
		e.Args[i] = a.foldExpression(e.Args[i], fn)
	}

	switch e.Builtin {
	case ast.BuiltinUnreachable, ast.BuiltinTrap:
		if len(e.Args) != 0 {
			a.errorf(e.Pos, "%s takes no arguments", e.Name)
		}
		e.SetType(a.nav.Void())

	case ast.BuiltinTypesCompatible:
		if len(e.Types) != 2 {
			a.errorf(e.Pos, "need two arguments for %s", e.Name)
		}
		e.SetType(a.nav.Int())

	case ast.BuiltinConstantP:
		if len(e.Args) != 1 {
			a.errorf(e.Pos, "%s takes a single argument", e.Name)
		}
		e.SetType(a.nav.Int())

	case ast.BuiltinFrameAddress:
		e.SetType(a.nav.PointerTo(a.nav.Void()))
		if len(e.Args) != 1 {
			a.errorf(e.Pos, "%s takes a single argument", e.Name)
			return e
		}
		c := a.ev.Eval(e.Args[0])
		if !ast.IsIntegral(e.Args[0].Type()) || c.Kind != consteval.Value || c.Int < 0 {
			a.errorf(e.Pos, "%s needs a positive constant value argument", e.Name)
		}

	case ast.BuiltinExpect:
		if len(e.Args) != 2 {
			a.errorf(e.Pos, "%s takes two arguments", e.Name)
			e.SetType(a.nav.IntPtr())
			return e
		}
		if a.ev.Eval(e.Args[1]).Kind != consteval.Value {
			a.warn(config.WarnArgMismatch, e.Pos, "%s second argument isn't a constant value", e.Name)
		}
		e.SetType(e.Args[0].Type())

	case ast.BuiltinStrlen:
		e.SetType(a.nav.SizeT())
		if len(e.Args) != 1 {
			a.errorf(e.Pos, "%s takes a single argument", e.Name)
			return e
		}
		if !ast.IsPointer(e.Args[0].Type()) {
			a.warn(config.WarnIntPtrConv, e.Args[0].Position(), "passing argument 1 of '%s' makes pointer from integer without a cast", e.Name)
		}
		if a.ev.Eval(e).Kind != consteval.Value && e.Call != nil {
			// not a literal: an ordinary call to the library function
			e.Call.Args = e.Args
			a.fold(e.Call, fn)
		}
	}
	return e
}

// isTerminatingBuiltin reports builtins that do not return.
func isTerminatingBuiltin(e ast.Expression) bool {
	b, ok := e.(*ast.BuiltinCall)
	return ok && (b.Builtin == ast.BuiltinUnreachable || b.Builtin == ast.BuiltinTrap)
}
