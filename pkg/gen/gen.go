// Package gen lowers folded declarations to machine functions and data
// images. It walks the tree once per function, handing virtual values to
// the out layer, and leaves spelling the result to a Sink.
package gen

import (
	"fmt"

	"github.com/kartiknair/mycc/pkg/ast"
	"github.com/kartiknair/mycc/pkg/config"
	"github.com/kartiknair/mycc/pkg/consteval"
	"github.com/kartiknair/mycc/pkg/diag"
	"github.com/kartiknair/mycc/pkg/gen/out"
)

// Sink receives generated code in definition order.
type Sink interface {
	Func(fn *out.Func)
	Data(d *out.Data)
}

type Generator struct {
	cfg  *config.Config
	nav  *ast.TypeNav
	ev   *consteval.Evaluator
	sink Sink

	labels out.Labels
	fold   bool

	defined   map[*ast.Symbol]bool
	tentative []*ast.Decl
	tentDecl  map[*ast.Symbol]*ast.Decl
	statics   int

	c  *out.Ctx
	fn *function
}

// function is the lowering state of the definition being generated.
type function struct {
	decl *ast.Decl
	sig  *ast.Function

	breaks    map[ast.Statement]*out.Block
	continues map[ast.Statement]*out.Block
	cases     map[ast.Statement]*out.Block
	labels    map[*ast.Label]*out.Block
}

func New(cfg *config.Config, nav *ast.TypeNav, ev *consteval.Evaluator, sink Sink) *Generator {
	return &Generator{
		cfg:      cfg,
		nav:      nav,
		ev:       ev,
		sink:     sink,
		fold:     cfg.IsFeatureEnabled(config.FeatConstFold),
		defined:  map[*ast.Symbol]bool{},
		tentDecl: map[*ast.Symbol]*ast.Decl{},
	}
}

// Generate lowers one top-level declaration group.
func (g *Generator) Generate(decls []*ast.Decl) {
	for _, d := range decls {
		switch {
		case d.IsTypedef() || d.Sym == nil:
		case d.IsFunction():
			if d.Body != nil {
				g.function(d)
			}
		case d.Init != nil:
			g.defined[d.Sym] = true
			g.object(d, g.symName(d), !d.InternalLinkage())
		case d.Storage != ast.StorageExtern:
			if _, ok := g.tentDecl[d.Sym]; !ok {
				g.tentative = append(g.tentative, d)
			}
			g.tentDecl[d.Sym] = d
		}
	}
}

// Finish emits the tentative definitions no later declaration initialised.
func (g *Generator) Finish() {
	for _, first := range g.tentative {
		if g.defined[first.Sym] {
			continue
		}
		g.defined[first.Sym] = true
		d := g.tentDecl[first.Sym]

		t := d.Type
		if arr, ok := t.(*ast.Array); ok && !arr.Sized {
			// an array of unknown size becomes an array of one element
			t = &ast.Array{Elem: arr.Elem, Len: 1, Sized: true}
		}
		size := g.nav.Size(t)
		data := &out.Data{
			Name:   g.symName(d),
			Global: !d.InternalLinkage(),
			Weak:   d.Attr(ast.AttrWeak) != nil,
			Align:  g.nav.Align(t),
			Size:   size,
			Bytes:  make([]byte, size),
		}
		g.place(d, data)
		g.sink.Data(data)
	}
}

// symName is the assembler name of a static-duration object or function.
func (g *Generator) symName(d *ast.Decl) string {
	if d.Sym != nil && d.Sym.Label != "" {
		return d.Sym.Label
	}
	return d.Name
}

// localLabel names a block-scope static. The dot keeps it apart from every
// C identifier.
func (g *Generator) localLabel(d *ast.Decl) string {
	g.statics++
	return fmt.Sprintf("%s.%d", d.Name, g.statics)
}

func (g *Generator) function(d *ast.Decl) {
	sig := d.Type.(*ast.Function)
	f := &out.Func{
		Name:   g.symName(d),
		Global: !d.InternalLinkage(),
		Weak:   d.Attr(ast.AttrWeak) != nil,
		Pos:    d.Pos,
	}
	if a := d.Attr(ast.AttrSection); a != nil {
		f.Section = a.Section
	}
	g.defined[d.Sym] = true

	c := out.New(g.nav, &g.labels, out.Options{
		PIC:        g.cfg.IsFeatureEnabled(config.FeatPIC),
		StackAlign: g.cfg.StackAlignBytes(),
		Debug:      g.cfg.Debug,
		Verbose:    g.cfg.IsFeatureEnabled(config.FeatVerboseAsm),
	})
	g.c = c
	g.fn = &function{
		decl:      d,
		sig:       sig,
		breaks:    map[ast.Statement]*out.Block{},
		continues: map[ast.Statement]*out.Block{},
		cases:     map[ast.Statement]*out.Block{},
		labels:    map[*ast.Label]*out.Block{},
	}
	defer func() {
		g.c, g.fn = nil, nil
	}()

	c.Begin(f)
	c.Loc(d.Pos)

	types := make([]ast.Type, len(d.Params))
	slots := make([]int64, len(d.Params))
	for i, p := range d.Params {
		types[i] = p.Type
		slots[i] = c.Alloca(g.nav.Size(p.Type), g.nav.Align(p.Type))
	}
	for i, off := range c.Params(types, slots) {
		p := d.Params[i]
		if p.Sym == nil {
			continue
		}
		p.Sym.Offset = off
		p.Sym.Placed = true
	}

	if d.Scope != nil {
		for _, l := range d.Scope.Labels() {
			g.fn.labels[l] = c.NewBlock("lbl")
		}
	}

	g.stmt(d.Body)

	if !c.Terminated() && d.Name == "main" && ast.IsIntegral(sig.Return) {
		c.Loc(d.Body.End)
		c.Ret(c.Const(0, sig.Return))
	}
	g.sink.Func(c.End())
}

// local places an automatic or block-scope static object as its
// declaration is reached.
func (g *Generator) local(d *ast.Decl) {
	c := g.c
	switch {
	case d.IsTypedef() || d.IsFunction() || d.Sym == nil:
	case d.Storage == ast.StorageExtern:
	case d.StaticDuration():
		d.Sym.Label = g.localLabel(d)
		d.Sym.Placed = true
		g.object(d, d.Sym.Label, false)
	default:
		if !ast.IsComplete(d.Type) {
			diag.ICEAt(d.Pos, "local '%s' has incomplete type %s", d.Name, d.Type)
		}
		d.Sym.Offset = c.Alloca(g.nav.Size(d.Type), g.nav.Align(d.Type))
		d.Sym.Placed = true
		if d.Init != nil {
			c.Loc(d.Pos)
			g.initLocal(d.Sym.Offset, d.Init, d.Type)
		}
	}
}

// objectAddr is the address of the object or function d declares.
func (g *Generator) objectAddr(d *ast.Decl, t ast.Type) *out.Value {
	if d.IsFunction() || d.StaticDuration() {
		return g.c.Symbol(g.symName(d), d.InternalLinkage(), t)
	}
	if !d.Sym.Placed {
		diag.ICEAt(d.Pos, "'%s' used before it was placed", d.Name)
	}
	return g.c.FrameAddr(d.Sym.Offset, t)
}
