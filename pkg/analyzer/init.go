package analyzer

import (
	"github.com/kartiknair/mycc/pkg/ast"
	"github.com/kartiknair/mycc/pkg/config"
	"github.com/kartiknair/mycc/pkg/consteval"
)

// initCursor walks the items of one braced list. Items taken from it may
// fill a nested aggregate whose braces were elided.
type initCursor struct {
	items []ast.Initializer
	next  int
}

func (c *initCursor) done() bool {
	return c.next >= len(c.items)
}

func (c *initCursor) peek() ast.Initializer {
	return c.items[c.next]
}

func (c *initCursor) take() ast.Initializer {
	it := c.items[c.next]
	c.next++
	return it
}

// initContext carries what is fixed across one declaration's initialiser.
type initContext struct {
	fn     *function
	static bool
}

func (a *Analyzer) foldDeclInit(d *ast.Decl, fn *function) {
	ctx := initContext{fn: fn, static: fn == nil || d.StaticDuration()}
	if fn != nil {
		outer := fn.initialising
		fn.initialising = d
		defer func() { fn.initialising = outer }()
	}

	init, t := a.foldInitializer(d.Init, d.Type, ctx)
	d.Init = init
	if t != nil && t != d.Type {
		d.Type = t
	}
	if d.Sym != nil && !ctx.static {
		d.Sym.Writes++
	}
}

// foldInitializer folds init as the initialiser of an object of type t. It
// returns the normalised initialiser and the completed type, which differs
// from t only when t is an array of unknown size.
func (a *Analyzer) foldInitializer(init ast.Initializer, t ast.Type, ctx initContext) (ast.Initializer, ast.Type) {
	switch t.(type) {
	case *ast.Array, *ast.Record:
	default:
		return a.foldScalarInit(init, t, ctx), t
	}

	switch it := init.(type) {
	case *ast.InitList:
		if arr, ok := t.(*ast.Array); ok && len(it.Items) == 1 {
			// char s[] = {"abc"}
			if s, ok := it.Items[0].(*ast.StringLiteral); ok && a.stringFits(arr, s) {
				return a.foldStringInit(s, arr)
			}
		}
		cur := &initCursor{items: it.Items}
		list := a.fillAggregate(t, cur, ctx)
		list.Pos = it.Pos
		if !cur.done() {
			a.warn(config.WarnExcessInit, cur.peek().Position(), "excess initialiser")
		}
		return list, list.Type

	case *ast.StringLiteral:
		if arr, ok := t.(*ast.Array); ok && a.stringFits(arr, it) {
			return a.foldStringInit(it, arr)
		}

	case ast.Expression:
		if _, ok := t.(*ast.Record); ok {
			e := a.foldExpression(it, ctx.fn)
			if ctx.static {
				a.errorf(e.Position(), "initialiser element is not constant")
				return e, t
			}
			return a.convert(e, t, "initialisation"), t
		}
	}

	a.errorf(init.Position(), "invalid initialiser")
	return init, t
}

// stringFits reports whether a string literal can initialise arr.
func (a *Analyzer) stringFits(arr *ast.Array, s *ast.StringLiteral) bool {
	if s.Wide {
		p, ok := arr.Elem.(*ast.Primitive)
		return ok && a.nav.Size(p) == 4 && ast.IsIntegral(p)
	}
	return ast.IsCharType(arr.Elem)
}

func (a *Analyzer) foldStringInit(s *ast.StringLiteral, arr *ast.Array) (ast.Initializer, ast.Type) {
	n := int64(len(s.Value))
	t := arr
	switch {
	case !arr.Sized:
		t = &ast.Array{Elem: arr.Elem, Len: n + 1, Sized: true}
	case n > arr.Len:
		a.warn(config.WarnExcessInit, s.Pos, "initialiser-string for array of chars is too long")
	}
	s.MarkFolded()
	s.SetType(t)
	return s, t
}

// fillAggregate builds the normalised list for t from the cursor. An
// unsized array takes as many elements as the cursor supplies.
func (a *Analyzer) fillAggregate(t ast.Type, cur *initCursor, ctx initContext) *ast.InitList {
	list := &ast.InitList{Type: t, Normalized: true}

	switch t := t.(type) {
	case *ast.Array:
		if !t.Sized {
			for !cur.done() {
				list.Items = append(list.Items, a.fillElem(t.Elem, cur, ctx))
			}
			list.Type = &ast.Array{Elem: t.Elem, Len: int64(len(list.Items)), Sized: true}
			return list
		}
		list.Items = make([]ast.Initializer, t.Len)
		for i := int64(0); i < t.Len && !cur.done(); i++ {
			list.Items[i] = a.fillElem(t.Elem, cur, ctx)
		}

	case *ast.Record:
		fields := t.Def.Fields
		list.Items = make([]ast.Initializer, len(fields))
		for i, f := range fields {
			if cur.done() {
				break
			}
			if f.IsBitField() && f.Name == "" {
				continue
			}
			list.Items[i] = a.fillElem(f.Type, cur, ctx)
			if t.Def.Union {
				break
			}
		}
	}
	return list
}

// fillElem initialises one element or member of type t from the cursor.
func (a *Analyzer) fillElem(t ast.Type, cur *initCursor, ctx initContext) ast.Initializer {
	if l, ok := cur.peek().(*ast.InitList); ok {
		cur.take()
		init, _ := a.foldInitializer(l, t, ctx)
		return init
	}

	switch tt := t.(type) {
	case *ast.Array:
		if s, ok := cur.peek().(*ast.StringLiteral); ok && a.stringFits(tt, s) {
			cur.take()
			init, _ := a.foldStringInit(s, tt)
			return init
		}
		if !tt.Sized {
			a.errorf(cur.peek().Position(), "invalid initialiser")
			cur.take()
			return nil
		}
		return a.fillAggregate(t, cur, ctx)

	case *ast.Record:
		// a whole struct value, or its members with the braces elided
		e := a.fold(cur.peek().(ast.Expression), ctx.fn)
		cur.items[cur.next] = e
		if ast.Equal(e.Type(), t, ast.CmpIgnoreQual) {
			cur.take()
			if ctx.static {
				a.errorf(e.Position(), "initialiser element is not constant")
			}
			return e
		}
		return a.fillAggregate(t, cur, ctx)
	}

	return a.foldScalarInit(cur.take(), t, ctx)
}

func (a *Analyzer) foldScalarInit(init ast.Initializer, t ast.Type, ctx initContext) ast.Initializer {
	if l, ok := init.(*ast.InitList); ok {
		if len(l.Items) == 0 {
			a.errorf(l.Pos, "empty scalar initialiser")
			return nil
		}
		if len(l.Items) > 1 {
			a.warn(config.WarnExcessInit, l.Items[1].Position(), "excess initialiser")
		}
		return a.foldScalarInit(l.Items[0], t, ctx)
	}

	e := a.convert(a.foldExpression(init.(ast.Expression), ctx.fn), t, "initialisation")
	if ctx.static {
		switch a.ev.Eval(e).Kind {
		case consteval.Value, consteval.Addr, consteval.String:
		default:
			a.errorf(e.Position(), "initialiser element is not constant")
		}
	}
	return e
}
