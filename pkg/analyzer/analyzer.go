// Package analyzer folds parsed declarations: it assigns a type to every
// expression, inserts implicit conversions, rewrites a few node shapes for
// the generator and reports semantic warnings and errors.
package analyzer

import (
	"github.com/kartiknair/mycc/pkg/ast"
	"github.com/kartiknair/mycc/pkg/config"
	"github.com/kartiknair/mycc/pkg/consteval"
	"github.com/kartiknair/mycc/pkg/diag"
	"github.com/kartiknair/mycc/pkg/token"
)

type arrayIndex struct {
	index  int64
	length int64
}

type Analyzer struct {
	cfg  *config.Config
	nav  *ast.TypeNav
	diag *diag.Reporter
	ev   *consteval.Evaluator

	// pointer additions that index a sized array by a constant
	indexes map[*ast.BinaryExpression]arrayIndex
}

// function is the folding context of the function definition being
// analyzed. It is nil for file scope initialisers and constant expressions.
type function struct {
	decl *ast.Decl
	sig  *ast.Function

	// the local whose initialiser is being folded
	initialising *ast.Decl
}

func New(cfg *config.Config, nav *ast.TypeNav, d *diag.Reporter) *Analyzer {
	return &Analyzer{
		cfg:     cfg,
		nav:     nav,
		diag:    d,
		ev:      consteval.New(nav),
		indexes: map[*ast.BinaryExpression]arrayIndex{},
	}
}

// Evaluator returns the constant classifier the analyzer folds with.
func (a *Analyzer) Evaluator() *consteval.Evaluator {
	return a.ev
}

func (a *Analyzer) errorf(pos token.Pos, format string, args ...interface{}) {
	a.diag.Error(pos, format, args...)
}

func (a *Analyzer) warn(w config.Warning, pos token.Pos, format string, args ...interface{}) {
	a.diag.Warn(w, pos, format, args...)
}

func (a *Analyzer) possibleOpt(e ast.Expression, msg string) {
	a.warn(config.WarnOptPossible, e.Position(), "%s", msg)
}

// FoldInteger folds e at parse time and evaluates it as an integer
// constant expression.
func (a *Analyzer) FoldInteger(e ast.Expression) (int64, bool) {
	e = a.foldExpression(e, nil)
	if !ast.IsIntegral(e.Type()) {
		return 0, false
	}
	c := a.ev.Eval(e)
	if c.Kind != consteval.Value || c.IsFloat {
		return 0, false
	}
	return c.Int, true
}

// FoldTopLevel folds one top-level declaration group as returned by the
// parser. Folding a declaration twice is a no-op.
func (a *Analyzer) FoldTopLevel(decls []*ast.Decl) {
	for _, d := range decls {
		a.foldDecl(d, nil)
	}
}

func (a *Analyzer) foldDecl(d *ast.Decl, fn *function) {
	if d.MarkFolded() {
		return
	}

	a.checkAttributes(d, fn)

	if d.IsTypedef() {
		return
	}

	if d.IsFunction() {
		sig := d.Type.(*ast.Function)
		if ast.IsRecord(sig.Return) {
			a.errorf(d.Pos, "returning struct by value is not supported ('%s')", d.Name)
		}
		if d.Body != nil {
			a.foldFunction(d)
		}
		return
	}

	if ast.IsVoid(d.Type) {
		a.errorf(d.Pos, "variable '%s' declared void", d.Name)
		return
	}

	if d.Init != nil {
		if d.Storage == ast.StorageExtern && fn != nil {
			a.errorf(d.Pos, "'%s' has both 'extern' and initialiser", d.Name)
		}
		a.foldDeclInit(d, fn)
	}

	if !ast.IsComplete(d.Type) && d.Storage != ast.StorageExtern {
		if arr, ok := d.Type.(*ast.Array); ok && !arr.Sized {
			// a tentative `int a[];` at file scope becomes one element
			if fn == nil {
				a.warn(config.WarnExcessInit, d.Pos, "array '%s' assumed to have one element", d.Name)
				d.Type = &ast.Array{Elem: arr.Elem, Len: 1, Sized: true}
				return
			}
			a.errorf(d.Pos, "array size missing in '%s'", d.Name)
			return
		}
		a.errorf(d.Pos, "storage size of '%s' isn't known", d.Name)
	}
}

// checkAttributes validates attributes where they are attached, independent
// of any use of the declaration.
func (a *Analyzer) checkAttributes(d *ast.Decl, fn *function) {
	for _, attr := range d.Attrs {
		switch attr.Kind {
		case ast.AttrFormat:
			a.checkFormatAttr(d, attr)

		case ast.AttrNoreturn:
			if !d.IsFunction() {
				a.warn(config.WarnAttr, attr.Pos, "noreturn attribute on non-function '%s'", d.Name)
			} else if ret := d.Type.(*ast.Function).Return; !ast.IsVoid(ret) {
				a.warn(config.WarnNoreturn, attr.Pos, "function '%s' declared 'noreturn' has non-void return type", d.Name)
			}

		case ast.AttrWarnUnusedResult:
			if !d.IsFunction() || ast.IsVoid(d.Type.(*ast.Function).Return) {
				a.warn(config.WarnAttr, attr.Pos, "warn_unused_result attribute ignored on '%s'", d.Name)
			}

		case ast.AttrWeak:
			if fn != nil && !d.StaticDuration() {
				a.warn(config.WarnAttr, attr.Pos, "weak attribute ignored on local variable '%s'", d.Name)
			}

		case ast.AttrSection:
			if fn != nil && !d.StaticDuration() {
				a.errorf(attr.Pos, "section attribute cannot be specified for local variable '%s'", d.Name)
			}
		}
	}
}

func (a *Analyzer) checkFormatAttr(d *ast.Decl, attr *ast.Attribute) {
	sig, ok := d.Type.(*ast.Function)
	if !ok {
		a.warn(config.WarnAttr, attr.Pos, "format attribute on non-function '%s'", d.Name)
		return
	}
	if !sig.Variadic {
		a.warn(config.WarnAttr, attr.Pos, "variadic function required for format attribute")
		return
	}

	nargs := len(sig.Params)
	fmtIdx, varIdx := attr.FmtIdx-1, attr.VarIdx-1

	if fmtIdx < 0 || fmtIdx >= nargs {
		a.warn(config.WarnAttr, attr.Pos, "format argument out of bounds (%d >= %d)", fmtIdx, nargs)
		return
	}
	if varIdx != -1 && varIdx != nargs {
		// +1: the "..." position as a 1-based index
		a.warn(config.WarnAttr, attr.Pos, "variadic argument out of bounds (should be %d)", nargs+1)
		return
	}
	attr.Valid = true
}

func (a *Analyzer) foldFunction(d *ast.Decl) {
	fn := &function{decl: d, sig: d.Type.(*ast.Function)}

	for _, p := range d.Params {
		if p.Name == "" {
			a.errorf(p.Pos, "parameter name omitted")
		}
		if ast.IsRecord(p.Type) {
			a.errorf(p.Pos, "passing struct by value is not supported ('%s')", p.Name)
		} else if !ast.IsComplete(p.Type) {
			a.errorf(p.Pos, "parameter '%s' has incomplete type", p.Name)
		}
		p.MarkFolded()
	}

	a.foldStatement(d.Body, fn)

	passable := a.Passable(d.Body)
	if passable {
		if d.Attr(ast.AttrNoreturn) != nil {
			a.warn(config.WarnNoreturn, d.Body.End, "function '%s' declared 'noreturn' can return", d.Name)
		} else if !ast.IsVoid(fn.sig.Return) && d.Name != "main" {
			a.warn(config.WarnReturnType, d.Body.End, "control reaches end of non-void function '%s'", d.Name)
		}
	}

	for _, l := range d.Scope.Labels() {
		switch {
		case !l.Complete:
			a.errorf(l.Pos, "label '%s' used but not defined", l.Name)
		case l.Uses == 0:
			a.warn(config.WarnUnusedVar, l.Pos, "label '%s' defined but not used", l.Name)
		}
	}

	a.checkUnused(d.Scope)
}

// checkUnused reports locals of a function that are never read.
func (a *Analyzer) checkUnused(s *ast.Scope) {
	for _, d := range s.Decls {
		if d.Sym == nil || d.Sym.Kind != ast.SymLocal || d.Name == "" {
			continue
		}
		if d.IsFunction() || d.Storage == ast.StorageExtern || d.Attr(ast.AttrUnused) != nil {
			continue
		}
		if d.Sym.Reads == 0 {
			a.warn(config.WarnUnusedVar, d.Pos, "unused variable '%s'", d.Name)
		}
	}
	for _, c := range s.Children {
		a.checkUnused(c)
	}
}
