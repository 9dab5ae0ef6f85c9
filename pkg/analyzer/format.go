package analyzer

import (
	"github.com/kartiknair/mycc/pkg/ast"
	"github.com/kartiknair/mycc/pkg/config"
	"github.com/kartiknair/mycc/pkg/consteval"
	"github.com/kartiknair/mycc/pkg/token"
)

// checkFormat checks the arguments of a call to a function declared with
// format(printf, ...) against its constant format string.
func (a *Analyzer) checkFormat(call *ast.CallExpression, d *ast.Decl, sig *ast.Function) {
	attr := d.Attr(ast.AttrFormat)
	if attr == nil || !attr.Valid || !sig.Variadic {
		return
	}

	fmtIdx, varIdx := attr.FmtIdx-1, attr.VarIdx-1
	n := len(call.Args)

	// the declaration was already diagnosed; only skip what cannot be checked
	if fmtIdx >= n || varIdx > n || (varIdx > -1 && varIdx <= fmtIdx) {
		return
	}
	a.checkFormatArg(call.Args[fmtIdx], call, varIdx)
}

func stripImplicit(e ast.Expression) ast.Expression {
	for {
		c, ok := e.(*ast.CastExpression)
		if !ok || !c.Implicit {
			return e
		}
		e = c.Operand
	}
}

func (a *Analyzer) checkFormatArg(str ast.Expression, call *ast.CallExpression, varIdx int) {
	k := a.ev.Eval(str)

	switch k.Kind {
	case consteval.None, consteval.NeedAddr:
		// printf(x ? "a" : "b", ...)
		if cond, ok := stripImplicit(str).(*ast.ConditionalExpression); ok {
			then := cond.Then
			if then == nil {
				then = cond.Cond
			}
			a.checkFormatArg(then, call, varIdx)
			a.checkFormatArg(cond.Else, call, varIdx)
			return
		}
		a.warn(config.WarnFormat, str.Position(), "format argument isn't a string constant")
		return

	case consteval.Value:
		if k.IsZero() {
			// printf(NULL, ...)
			return
		}
		a.warn(config.WarnFormat, str.Position(), "format argument isn't a string constant")
		return

	case consteval.Addr:
		a.warn(config.WarnFormat, str.Position(), "format argument isn't a string constant")
		return
	}

	fmtStr := k.Str.Value
	switch {
	case len(fmtStr) == 0:
	case k.Offset < 0 || k.Offset >= int64(len(fmtStr)):
		a.warn(config.WarnFormat, str.Position(), "undefined printf-format argument")
	default:
		a.checkFormatString(fmtStr[k.Offset:], call, varIdx)
	}
}

type printfAttr int

const (
	printfLong printfAttr = 1 << iota
)

func (a *Analyzer) checkFormatString(f string, call *ast.CallExpression, varIdx int) {
	args := call.Args
	nArg := 0
	pos := call.Pos

	arg := func() ast.Expression {
		i := varIdx + nArg
		nArg++
		if i < len(args) {
			return args[i]
		}
		return nil
	}

	i := 0
	for i < len(f) && f[i] != 0 {
		if f[i] != '%' {
			i++
			continue
		}
		i++

		if i == len(f) {
			a.warn(config.WarnFormat, pos, "incomplete format specifier")
			return
		}
		if f[i] == '%' {
			i++
			continue
		}

		// a '*' width or precision takes an argument of its own
		for {
			var attr printfAttr
			for i < len(f) && isFormatFlag(f[i]) {
				if f[i] == 'l' {
					attr |= printfLong
				}
				i++
			}
			if i == len(f) {
				a.warn(config.WarnFormat, pos, "incomplete format specifier")
				return
			}

			conv := f[i]
			i++
			if varIdx != -1 {
				e := arg()
				if e == nil {
					a.warn(config.WarnFormat, pos, "too few arguments for format (%%%c)", conv)
					return
				}
				a.checkConversion(conv, e.Type(), e.Position(), attr)
			}
			if conv != '*' {
				break
			}
		}
	}

	if varIdx != -1 && varIdx+nArg < len(args) {
		a.warn(config.WarnFormat, pos, "too many arguments for format")
	}
}

func isFormatFlag(c byte) bool {
	switch c {
	case 'l', 'h', 'L', '0', '#', '-', ' ', '+', '.':
		return true
	}
	return c >= '1' && c <= '9'
}

func isLong(t ast.Type) bool {
	p, ok := t.(*ast.Primitive)
	return ok && p.Kind == ast.Long
}

func pointsTo(t ast.Type, k ast.Kind) bool {
	if !ast.IsPointer(t) {
		return false
	}
	p, ok := ast.Pointee(t).(*ast.Primitive)
	return ok && p.Kind == k
}

// checkConversion checks one argument against the conversion character c.
func (a *Analyzer) checkConversion(c byte, t ast.Type, pos token.Pos, attr printfAttr) {
	var expected string
	allowLong := false

	switch c {
	case 's':
		if !pointsTo(t, ast.Char) {
			expected = "'char *'"
		}
	case 'p':
		if !pointsTo(t, ast.Void) {
			expected = "'void *'"
		}
	case 'n':
		if !pointsTo(t, ast.Int) {
			expected = "'int *'"
		}

	case 'x', 'X', 'u', 'o', '*', 'c', 'd', 'i':
		allowLong = true
		if !ast.IsIntegral(t) {
			expected = "integral"
		}
		if attr&printfLong != 0 && !isLong(t) {
			expected = "'long'"
		}

	case 'e', 'E', 'f', 'F', 'g', 'G', 'a', 'A':
		if !ast.IsFloating(t) {
			expected = "'double'"
		}

	default:
		a.warn(config.WarnFormat, pos, "unknown conversion character 0x%x", c)
		return
	}

	if expected == "" && !allowLong && attr&printfLong != 0 {
		expected = "'long'"
	}
	if expected != "" {
		l := ""
		if attr&printfLong != 0 {
			l = "l"
		}
		a.warn(config.WarnFormat, pos, "format %%%s%c expects %s argument (got %s)", l, c, expected, t)
	}
}
