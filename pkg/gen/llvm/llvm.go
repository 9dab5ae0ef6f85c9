// Package llvmgen lowers folded declarations into an LLVM IR module. It is
// the alternate backend behind `mycc compile --emit-llvm`; constructs it
// cannot express are reported as *UnsupportedError.
package llvmgen

import (
	"fmt"
	"math"

	"github.com/kartiknair/mycc/pkg/ast"
	"github.com/kartiknair/mycc/pkg/config"
	"github.com/kartiknair/mycc/pkg/consteval"
	"github.com/kartiknair/mycc/pkg/token"
	"github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/constant"
	"github.com/llir/llvm/ir/enum"
	"github.com/llir/llvm/ir/types"
	"github.com/llir/llvm/ir/value"
)

type UnsupportedError struct {
	Pos  token.Pos
	What string
}

func (e *UnsupportedError) Error() string {
	return fmt.Sprintf("%s: %s is not supported by the LLVM backend", e.Pos, e.What)
}

func unsupported(pos token.Pos, format string, args ...interface{}) {
	panic(&UnsupportedError{Pos: pos, What: fmt.Sprintf(format, args...)})
}

type record struct {
	typ   *types.StructType
	index map[*ast.Field]int
}

type Generator struct {
	cfg  *config.Config
	nav  *ast.TypeNav
	ev   *consteval.Evaluator
	fold bool

	module    *ir.Module
	records   map[*ast.RecordDef]*record
	globals   map[*ast.Symbol]value.Value
	byName    map[string]value.Value
	defined   map[*ast.Symbol]bool
	tentative []*ast.Decl
	strings   map[*ast.StringLiteral]*ir.Global
	intrinsic map[string]*ir.Func
	n         int

	fn *function
}

type function struct {
	decl *ast.Decl
	sig  *ast.Function
	f    *ir.Func

	entry *ir.Block
	cur   *ir.Block

	locals    map[*ast.Symbol]value.Value
	breaks    map[ast.Statement]*ir.Block
	continues map[ast.Statement]*ir.Block
	cases     map[ast.Statement]*ir.Block
	labels    map[*ast.Label]*ir.Block
}

func New(cfg *config.Config, nav *ast.TypeNav, ev *consteval.Evaluator, source string) *Generator {
	m := ir.NewModule()
	m.SourceFilename = source
	m.TargetTriple = "x86_64-unknown-linux-gnu"
	return &Generator{
		cfg:       cfg,
		nav:       nav,
		ev:        ev,
		fold:      cfg.IsFeatureEnabled(config.FeatConstFold),
		module:    m,
		records:   map[*ast.RecordDef]*record{},
		globals:   map[*ast.Symbol]value.Value{},
		byName:    map[string]value.Value{},
		defined:   map[*ast.Symbol]bool{},
		strings:   map[*ast.StringLiteral]*ir.Global{},
		intrinsic: map[string]*ir.Func{},
	}
}

// Generate lowers one top-level declaration group into the module.
func (g *Generator) Generate(decls []*ast.Decl) (err error) {
	defer func() {
		if r := recover(); r != nil {
			u, ok := r.(*UnsupportedError)
			if !ok {
				panic(r)
			}
			g.fn = nil
			err = u
		}
	}()

	for _, d := range decls {
		switch {
		case d.IsTypedef() || d.Sym == nil:
		case d.IsFunction():
			g.global(d)
			if d.Body != nil {
				g.genFunction(d)
			}
		case d.Init != nil:
			g.defineObject(d)
		case d.Storage != ast.StorageExtern:
			g.global(d)
			g.tentative = append(g.tentative, d)
		default:
			g.global(d)
		}
	}
	return nil
}

// Finish zero-initialises tentative definitions and returns the module text.
func (g *Generator) Finish() string {
	for _, d := range g.tentative {
		if g.defined[d.Sym] {
			continue
		}
		g.defined[d.Sym] = true
		gl := g.global(d).(*ir.Global)
		if arr, ok := d.Type.(*ast.Array); ok && !arr.Sized {
			g.retype(gl, &ast.Array{Elem: arr.Elem, Len: 1, Sized: true})
		}
		gl.Init = constant.NewZeroInitializer(gl.ContentType)
		gl.Linkage = g.linkage(d)
	}
	// anything still without an initialiser is defined in another unit
	for _, gl := range g.module.Globals {
		if gl.Init == nil {
			gl.Linkage = enum.LinkageExternal
		}
	}
	return g.module.String()
}

func intType(size int64) *types.IntType {
	switch size {
	case 1:
		return types.I8
	case 2:
		return types.I16
	case 4:
		return types.I32
	}
	return types.I64
}

func (g *Generator) genType(t ast.Type) types.Type {
	switch t := t.(type) {
	case *ast.Primitive:
		switch t.Kind {
		case ast.Void:
			return types.Void
		case ast.Float:
			return types.Float
		case ast.Double, ast.LongDouble:
			return types.Double
		}
		return intType(g.nav.Size(t))
	case *ast.Enum:
		return types.I32
	case *ast.Pointer:
		if ast.IsVoid(t.Elem) {
			return types.I8Ptr
		}
		return types.NewPointer(g.genType(t.Elem))
	case *ast.Array:
		return types.NewArray(uint64(t.Len), g.genType(t.Elem))
	case *ast.Function:
		return g.funcType(t)
	case *ast.Record:
		return g.record(t.Def).typ
	}
	panic(fmt.Sprintf("type %s has no LLVM form", t))
}

func (g *Generator) funcType(f *ast.Function) *types.FuncType {
	params := make([]types.Type, len(f.Params))
	for i, p := range f.Params {
		params[i] = g.genType(p)
	}
	ft := types.NewFunc(g.genType(f.Return), params...)
	ft.Variadic = f.Variadic || f.NoProto
	return ft
}

// record lowers a struct to a packed LLVM struct with explicit padding, so
// member offsets are the ones the layout pass computed. Unions are a byte
// array accessed through casts.
func (g *Generator) record(def *ast.RecordDef) *record {
	r, ok := g.records[def]
	if !ok {
		st := types.NewStruct()
		st.Packed = true
		g.n++
		name := fmt.Sprintf("struct.anon.%d", g.n)
		if def.Tag != "" {
			name = fmt.Sprintf("struct.%s.%d", def.Tag, g.n)
		}
		g.module.NewTypeDef(name, st)
		r = &record{typ: st, index: map[*ast.Field]int{}}
		g.records[def] = r
		st.Opaque = true
	}
	if !r.typ.Opaque || !def.Complete {
		return r
	}

	st := r.typ
	st.Opaque = false
	if def.Union {
		st.Fields = []types.Type{types.NewArray(uint64(def.Size), types.I8)}
		return r
	}
	var off int64
	for _, f := range def.Fields {
		if f.IsBitField() {
			unsupported(f.Pos, "bit-field '%s'", f.Name)
		}
		if f.Offset > off {
			st.Fields = append(st.Fields, types.NewArray(uint64(f.Offset-off), types.I8))
		}
		r.index[f] = len(st.Fields)
		st.Fields = append(st.Fields, g.genType(f.Type))
		off = f.Offset + g.nav.Size(f.Type)
	}
	if def.Size > off {
		st.Fields = append(st.Fields, types.NewArray(uint64(def.Size-off), types.I8))
	}
	return r
}

func (g *Generator) symName(d *ast.Decl) string {
	if d.Sym.Label != "" {
		return d.Sym.Label
	}
	return d.Name
}

// global returns the module-level value of a function or static object,
// declaring it on first use.
func (g *Generator) global(d *ast.Decl) value.Value {
	if v, ok := g.globals[d.Sym]; ok {
		return v
	}
	name := g.symName(d)
	if v, ok := g.byName[name]; ok {
		g.globals[d.Sym] = v
		return v
	}

	var v value.Value
	if d.IsFunction() {
		sig := d.Type.(*ast.Function)
		params := make([]*ir.Param, len(sig.Params))
		for i, p := range sig.Params {
			params[i] = ir.NewParam("", g.genType(p))
		}
		f := g.module.NewFunc(name, g.genType(sig.Return), params...)
		f.Sig.Variadic = sig.Variadic || sig.NoProto
		v = f
	} else {
		gl := g.module.NewGlobal(name, g.genType(d.Type))
		gl.Align = ir.Align(g.nav.Align(d.Type))
		v = gl
	}
	g.globals[d.Sym] = v
	g.byName[name] = v
	return v
}

func (g *Generator) linkage(d *ast.Decl) enum.Linkage {
	switch {
	case d.InternalLinkage():
		return enum.LinkageInternal
	case d.Attr(ast.AttrWeak) != nil:
		return enum.LinkageWeak
	}
	return enum.LinkageNone
}

// retype completes the content type of a global declared with an array
// of unknown size.
func (g *Generator) retype(gl *ir.Global, t ast.Type) {
	ct := g.genType(t)
	gl.ContentType = ct
	gl.Typ = types.NewPointer(ct)
}

func (g *Generator) defineObject(d *ast.Decl) {
	gl := g.global(d).(*ir.Global)
	g.defined[d.Sym] = true
	if !gl.ContentType.Equal(g.genType(d.Type)) {
		g.retype(gl, d.Type)
	}
	gl.Init = g.constInit(d.Init, d.Type)
	gl.Linkage = g.linkage(d)
	gl.Immutable = d.Type.Qualifiers()&ast.QualConst != 0
	if a := d.Attr(ast.AttrSection); a != nil {
		gl.Section = a.Section
	}
}

func (g *Generator) stringGlobal(s *ast.StringLiteral) *ir.Global {
	if gl, ok := g.strings[s]; ok {
		return gl
	}
	var init constant.Constant
	if s.Wide {
		elems := make([]constant.Constant, len(s.Value)+1)
		for i := range elems {
			var c int64
			if i < len(s.Value) {
				c = int64(s.Value[i])
			}
			elems[i] = constant.NewInt(types.I32, c)
		}
		init = constant.NewArray(types.NewArray(uint64(len(elems)), types.I32), elems...)
	} else {
		init = constant.NewCharArrayFromString(s.Value + "\x00")
	}
	g.n++
	gl := g.module.NewGlobalDef(fmt.Sprintf(".str.%d", g.n), init)
	gl.Linkage = enum.LinkagePrivate
	gl.Immutable = true
	g.strings[s] = gl
	return gl
}

func zero(t types.Type) constant.Constant {
	switch t := t.(type) {
	case *types.IntType:
		return constant.NewInt(t, 0)
	case *types.FloatType:
		return constant.NewFloat(t, 0)
	case *types.PointerType:
		return constant.NewNull(t)
	}
	return constant.NewZeroInitializer(t)
}

// addrConst is base plus a byte offset, as a constant of type t.
func addrConst(base constant.Constant, off int64, t types.Type) constant.Constant {
	p := constant.Constant(constant.NewBitCast(base, types.I8Ptr))
	if off != 0 {
		p = constant.NewGetElementPtr(types.I8, p, constant.NewInt(types.I64, off))
	}
	if it, ok := t.(*types.IntType); ok {
		return constant.NewPtrToInt(p, it)
	}
	if t.Equal(types.I8Ptr) {
		return p
	}
	return constant.NewBitCast(p, t)
}

// scalarConst turns a classified constant into an LLVM constant of type t,
// or nil when it has no constant form.
func (g *Generator) scalarConst(cv consteval.Const, t ast.Type) constant.Constant {
	lt := g.genType(t)
	switch cv.Kind {
	case consteval.Value:
		switch lt := lt.(type) {
		case *types.FloatType:
			f := cv.Float
			if !cv.IsFloat {
				f = float64(cv.Int)
			}
			return constant.NewFloat(lt, f)
		case *types.IntType:
			v := cv.Int
			if cv.IsFloat {
				v = int64(cv.Float)
			}
			return constant.NewInt(lt, g.ev.Truncate(v, t))
		case *types.PointerType:
			if cv.Int == 0 && !cv.IsFloat {
				return constant.NewNull(lt)
			}
			return constant.NewIntToPtr(constant.NewInt(types.I64, cv.Int), lt)
		}
	case consteval.Addr:
		return addrConst(g.global(cv.Decl).(constant.Constant), cv.Offset, lt)
	case consteval.String:
		return addrConst(g.stringGlobal(cv.Str), cv.Offset, lt)
	}
	return nil
}

func (g *Generator) constInit(init ast.Initializer, t ast.Type) constant.Constant {
	lt := g.genType(t)
	switch init := init.(type) {
	case nil:
		return zero(lt)

	case *ast.InitList:
		switch tt := t.(type) {
		case *ast.Array:
			elems := make([]constant.Constant, tt.Len)
			for i := range elems {
				var item ast.Initializer
				if i < len(init.Items) {
					item = init.Items[i]
				}
				elems[i] = g.constInit(item, tt.Elem)
			}
			return constant.NewArray(lt.(*types.ArrayType), elems...)
		case *ast.Record:
			r := g.record(tt.Def)
			if tt.Def.Union {
				for _, item := range init.Items {
					if item != nil {
						unsupported(init.Pos, "initialised union")
					}
				}
				return zero(lt)
			}
			fields := make([]constant.Constant, len(r.typ.Fields))
			for i, ft := range r.typ.Fields {
				fields[i] = zero(ft)
			}
			for i, f := range tt.Def.Fields {
				if i < len(init.Items) && init.Items[i] != nil {
					fields[r.index[f]] = g.constInit(init.Items[i], f.Type)
				}
			}
			return constant.NewStruct(r.typ, fields...)
		}

	case *ast.StringLiteral:
		if arr, ok := t.(*ast.Array); ok {
			return g.charArray(init, arr)
		}
	}

	e, ok := init.(ast.Expression)
	if !ok {
		unsupported(init.Position(), "braced scalar initialiser")
	}
	c := g.scalarConst(g.ev.Eval(e), t)
	if c == nil {
		unsupported(e.Position(), "non-constant initialiser")
	}
	return c
}

// charArray is a literal sized to arr: cut short or padded with zeros.
func (g *Generator) charArray(s *ast.StringLiteral, arr *ast.Array) constant.Constant {
	elem := g.genType(arr.Elem).(*types.IntType)
	if elem.BitSize == 8 {
		b := make([]byte, arr.Len)
		copy(b, s.Value)
		return constant.NewCharArray(b)
	}
	elems := make([]constant.Constant, arr.Len)
	for i := range elems {
		var c int64
		if i < len(s.Value) {
			c = int64(s.Value[i])
		}
		elems[i] = constant.NewInt(elem, c)
	}
	return constant.NewArray(g.genType(arr).(*types.ArrayType), elems...)
}

// Functions.

func (g *Generator) genFunction(d *ast.Decl) {
	f := g.global(d).(*ir.Func)
	sig := d.Type.(*ast.Function)
	if len(f.Params) != len(d.Params) {
		unsupported(d.Pos, "redeclaring '%s' with a different prototype", d.Name)
	}
	f.Linkage = g.linkage(d)
	if a := d.Attr(ast.AttrSection); a != nil {
		f.Section = a.Section
	}
	g.defined[d.Sym] = true

	fn := &function{
		decl:      d,
		sig:       sig,
		f:         f,
		locals:    map[*ast.Symbol]value.Value{},
		breaks:    map[ast.Statement]*ir.Block{},
		continues: map[ast.Statement]*ir.Block{},
		cases:     map[ast.Statement]*ir.Block{},
		labels:    map[*ast.Label]*ir.Block{},
	}
	g.fn = fn
	defer func() { g.fn = nil }()

	fn.entry = f.NewBlock("entry")
	fn.cur = fn.entry

	for i, p := range d.Params {
		if p.Name != "" {
			f.Params[i].SetName(p.Name)
		}
		slot := g.alloca(p.Type)
		fn.entry.NewStore(f.Params[i], slot)
		if p.Sym != nil {
			fn.locals[p.Sym] = slot
		}
	}
	if d.Scope != nil {
		for _, l := range d.Scope.Labels() {
			fn.labels[l] = f.NewBlock("")
		}
	}

	g.genStatement(d.Body)

	// falling off the end returns zero, which is what main needs
	ret := g.genType(sig.Return)
	for _, b := range f.Blocks {
		if b.Term != nil {
			continue
		}
		if ast.IsVoid(sig.Return) {
			b.NewRet(nil)
		} else {
			b.NewRet(zero(ret))
		}
	}
}

func (g *Generator) alloca(t ast.Type) *ir.InstAlloca {
	a := g.fn.entry.NewAlloca(g.genType(t))
	a.Align = ir.Align(g.nav.Align(t))
	return a
}

// block is where the next instruction goes. Code after a terminator gets
// a fresh block nothing branches to.
func (g *Generator) block() *ir.Block {
	if g.fn.cur.Term != nil {
		g.fn.cur = g.fn.f.NewBlock("")
	}
	return g.fn.cur
}

func (g *Generator) setBlock(b *ir.Block) {
	if g.fn.cur.Term == nil {
		g.fn.cur.NewBr(b)
	}
	g.fn.cur = b
}

func (g *Generator) jump(b *ir.Block) {
	if g.fn.cur.Term == nil {
		g.fn.cur.NewBr(b)
	}
}

func (g *Generator) newBlock() *ir.Block {
	return g.fn.f.NewBlock("")
}

// Statements.

func (g *Generator) genStatement(s ast.Statement) {
	if s == nil {
		return
	}
	fn := g.fn

	switch s := s.(type) {
	case *ast.CompoundStatement:
		for _, st := range s.Statements {
			g.genStatement(st)
		}

	case *ast.DeclStatement:
		for _, d := range s.Decls {
			g.genLocal(d)
		}

	case *ast.ExpressionStatement:
		if s.Expr != nil {
			g.genExpression(s.Expr)
		}

	case *ast.IfStatement:
		if truth, ok := g.ev.Eval(s.Cond).Truth(); ok && g.fold {
			live, dead := s.Then, s.Else
			if !truth {
				live, dead = s.Else, s.Then
			}
			if !hasEntry(dead) {
				g.genStatement(live)
				return
			}
		}
		then, end := g.newBlock(), g.newBlock()
		els := end
		if s.Else != nil {
			els = g.newBlock()
		}
		g.genCond(s.Cond, then, els)
		g.setBlock(then)
		g.genStatement(s.Then)
		if s.Else != nil {
			g.jump(end)
			g.setBlock(els)
			g.genStatement(s.Else)
		}
		g.setBlock(end)

	case *ast.WhileStatement:
		test, body, end := g.newBlock(), g.newBlock(), g.newBlock()
		fn.breaks[s], fn.continues[s] = end, test
		g.setBlock(test)
		g.genCond(s.Cond, body, end)
		g.setBlock(body)
		g.genStatement(s.Body)
		g.jump(test)
		g.setBlock(end)

	case *ast.DoStatement:
		body, test, end := g.newBlock(), g.newBlock(), g.newBlock()
		fn.breaks[s], fn.continues[s] = end, test
		g.setBlock(body)
		g.genStatement(s.Body)
		g.setBlock(test)
		g.genCond(s.Cond, body, end)
		g.setBlock(end)

	case *ast.ForStatement:
		g.genStatement(s.Init)
		test, body, post, end := g.newBlock(), g.newBlock(), g.newBlock(), g.newBlock()
		fn.breaks[s], fn.continues[s] = end, post
		g.setBlock(test)
		if s.Cond != nil {
			g.genCond(s.Cond, body, end)
		}
		g.setBlock(body)
		g.genStatement(s.Body)
		g.setBlock(post)
		if s.Post != nil {
			g.genExpression(s.Post)
		}
		g.jump(test)
		g.setBlock(end)

	case *ast.SwitchStatement:
		end := g.newBlock()
		fn.breaks[s] = end
		dflt := end
		if s.Default != nil {
			dflt = g.newBlock()
			fn.cases[s.Default] = dflt
		}
		v := g.genExpression(s.Cond)
		it, ok := v.Type().(*types.IntType)
		if !ok {
			unsupported(s.Pos, "switch on %s", s.Cond.Type())
		}
		cases := make([]*ir.Case, len(s.Cases))
		for i, cs := range s.Cases {
			b := g.newBlock()
			fn.cases[cs] = b
			cases[i] = ir.NewCase(constant.NewInt(it, g.ev.Truncate(cs.Val, s.Cond.Type())), b)
		}
		g.block().NewSwitch(v, dflt, cases...)
		g.genStatement(s.Body)
		g.setBlock(end)

	case *ast.CaseStatement:
		g.setBlock(fn.cases[s])
		g.genStatement(s.Body)

	case *ast.DefaultStatement:
		g.setBlock(fn.cases[s])
		g.genStatement(s.Body)

	case *ast.BreakStatement:
		g.jump(fn.breaks[s.Target])

	case *ast.ContinueStatement:
		g.jump(fn.continues[s.Target])

	case *ast.GotoStatement:
		g.jump(fn.labels[s.Label])

	case *ast.LabelStatement:
		g.setBlock(fn.labels[s.Label])
		g.genStatement(s.Body)

	case *ast.ReturnStatement:
		var v value.Value
		if s.Value != nil {
			v = g.genExpression(s.Value)
		}
		if ast.IsVoid(fn.sig.Return) {
			v = nil
		}
		g.block().NewRet(v)

	default:
		unsupported(s.Position(), "statement %T", s)
	}
}

func hasEntry(s ast.Statement) bool {
	switch s := s.(type) {
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
		return hasEntry(s.Body)
	}
	return false
}

func (g *Generator) genLocal(d *ast.Decl) {
	switch {
	case d.IsTypedef() || d.IsFunction() || d.Sym == nil:
	case d.Storage == ast.StorageExtern:
		g.global(d)
	case d.StaticDuration():
		g.n++
		d.Sym.Label = fmt.Sprintf("%s.%s.%d", g.fn.decl.Name, d.Name, g.n)
		g.defineObject(d)
	default:
		slot := g.alloca(d.Type)
		g.fn.locals[d.Sym] = slot
		if d.Init != nil {
			g.initLocal(slot, d.Init, d.Type)
		}
	}
}

func (g *Generator) initLocal(ptr value.Value, init ast.Initializer, t ast.Type) {
	switch init := init.(type) {
	case nil:
	case *ast.InitList:
		g.block().NewStore(zero(g.genType(t)), ptr)
		g.initItems(ptr, init, t)
	case *ast.StringLiteral:
		if arr, ok := t.(*ast.Array); ok {
			g.block().NewStore(g.charArray(init, arr), ptr)
			return
		}
		g.storeValue(ptr, g.genExpression(init), t)
	case ast.Expression:
		g.storeValue(ptr, g.genExpression(init), t)
	}
}

func (g *Generator) initItems(ptr value.Value, list *ast.InitList, t ast.Type) {
	switch tt := t.(type) {
	case *ast.Array:
		at := g.genType(tt)
		for i, item := range list.Items {
			if item == nil {
				continue
			}
			elem := g.block().NewGetElementPtr(at, ptr, constant.NewInt(types.I64, 0), constant.NewInt(types.I64, int64(i)))
			g.initItem(elem, item, tt.Elem)
		}
	case *ast.Record:
		for i, item := range list.Items {
			if item == nil || i >= len(tt.Def.Fields) {
				continue
			}
			f := tt.Def.Fields[i]
			g.initItem(g.member(ptr, tt, f), item, f.Type)
		}
	}
}

func (g *Generator) initItem(ptr value.Value, item ast.Initializer, t ast.Type) {
	if list, ok := item.(*ast.InitList); ok {
		g.initItems(ptr, list, t)
		return
	}
	g.initLocal(ptr, item, t)
}

// genCond branches on e, short-circuiting logical operators.
func (g *Generator) genCond(e ast.Expression, t, f *ir.Block) {
	if g.fold {
		if truth, ok := g.ev.Eval(e).Truth(); ok {
			if truth {
				g.jump(t)
			} else {
				g.jump(f)
			}
			return
		}
	}
	switch e := e.(type) {
	case *ast.BinaryExpression:
		switch e.Op {
		case token.AND_AND:
			mid := g.newBlock()
			g.genCond(e.Left, mid, f)
			g.setBlock(mid)
			g.genCond(e.Right, t, f)
			return
		case token.OR_OR:
			mid := g.newBlock()
			g.genCond(e.Left, t, mid)
			g.setBlock(mid)
			g.genCond(e.Right, t, f)
			return
		}
	case *ast.UnaryExpression:
		if e.Op == token.BANG {
			g.genCond(e.Operand, f, t)
			return
		}
	}
	cond := g.truth(g.genExpression(e))
	g.block().NewCondBr(cond, t, f)
}

// Expressions.

// truth compares a scalar against zero.
func (g *Generator) truth(v value.Value) value.Value {
	b := g.block()
	switch t := v.Type().(type) {
	case *types.IntType:
		if t.BitSize == 1 {
			return v
		}
		return b.NewICmp(enum.IPredNE, v, constant.NewInt(t, 0))
	case *types.FloatType:
		return b.NewFCmp(enum.FPredUNE, v, constant.NewFloat(t, 0))
	case *types.PointerType:
		return b.NewICmp(enum.IPredNE, v, constant.NewNull(t))
	}
	panic(fmt.Sprintf("truth of %s", v.Type()))
}

func (g *Generator) load(ptr value.Value, t ast.Type) value.Value {
	switch t.(type) {
	case *ast.Array, *ast.Function, *ast.Record:
		return ptr
	}
	return g.block().NewLoad(g.genType(t), ptr)
}

func (g *Generator) storeValue(ptr, v value.Value, t ast.Type) {
	if ast.IsRecord(t) {
		v = g.block().NewLoad(g.genType(t), v)
	}
	g.block().NewStore(v, ptr)
}

func (g *Generator) member(ptr value.Value, rec *ast.Record, f *ast.Field) value.Value {
	if f.IsBitField() {
		unsupported(f.Pos, "bit-field '%s'", f.Name)
	}
	r := g.record(rec.Def)
	if rec.Def.Union {
		return g.block().NewBitCast(ptr, types.NewPointer(g.genType(f.Type)))
	}
	return g.block().NewGetElementPtr(r.typ, ptr, constant.NewInt(types.I32, 0), constant.NewInt(types.I32, int64(r.index[f])))
}

func (g *Generator) objectPtr(d *ast.Decl) value.Value {
	if d.IsFunction() || d.StaticDuration() {
		return g.global(d)
	}
	ptr, ok := g.fn.locals[d.Sym]
	if !ok {
		unsupported(d.Pos, "reference to '%s' before its declaration", d.Name)
	}
	return ptr
}

func (g *Generator) genLvalue(e ast.Expression) value.Value {
	switch e := e.(type) {
	case *ast.Identifier:
		if e.Decl != nil {
			return g.objectPtr(e.Decl)
		}
	case *ast.UnaryExpression:
		if e.Op == token.STAR {
			return g.genExpression(e.Operand)
		}
	case *ast.MemberExpression:
		if e.Field != nil {
			obj := g.genExpression(e.Object)
			rec := ast.Pointee(e.Object.Type()).(*ast.Record)
			return g.member(obj, rec, e.Field)
		}
	case *ast.StringLiteral:
		return g.stringGlobal(e)
	}
	unsupported(e.Position(), "assignment to %T", e)
	return nil
}

func (g *Generator) genExpression(e ast.Expression) value.Value {
	t := e.Type()
	if g.fold && ast.IsScalar(t) {
		if c := g.scalarConst(g.ev.Eval(e), t); c != nil {
			return c
		}
	}

	switch e := e.(type) {
	case *ast.IntLiteral:
		return constant.NewInt(g.genType(t).(*types.IntType), g.ev.Truncate(int64(e.Value), t))

	case *ast.FloatLiteral:
		return constant.NewFloat(g.genType(t).(*types.FloatType), e.Value)

	case *ast.StringLiteral:
		return g.stringGlobal(e)

	case *ast.Identifier:
		if e.Enum != nil {
			return constant.NewInt(types.I32, e.Enum.Value)
		}
		return g.load(g.objectPtr(e.Decl), t)

	case *ast.UnaryExpression:
		return g.genUnary(e)

	case *ast.IncDecExpression:
		ptr := g.genLvalue(e.Target)
		old := g.load(ptr, t)
		var nv value.Value
		switch {
		case ast.IsPointer(t):
			step := int64(e.Step)
			if !e.Inc {
				step = -step
			}
			nv = g.ptrAdd(old, constant.NewInt(types.I64, step), t)
		case ast.IsFloating(t):
			one := constant.NewFloat(g.genType(t).(*types.FloatType), 1)
			if e.Inc {
				nv = g.block().NewFAdd(old, one)
			} else {
				nv = g.block().NewFSub(old, one)
			}
		default:
			step := constant.NewInt(g.genType(t).(*types.IntType), e.Step)
			if e.Inc {
				nv = g.block().NewAdd(old, step)
			} else {
				nv = g.block().NewSub(old, step)
			}
			if p, ok := t.(*ast.Primitive); ok && p.Kind == ast.Bool {
				nv = g.convert(nv, g.nav.Int(), t)
			}
		}
		g.block().NewStore(nv, ptr)
		if e.Post {
			return old
		}
		return nv

	case *ast.BinaryExpression:
		return g.genBinary(e)

	case *ast.AssignExpression:
		ptr := g.genLvalue(e.Target)
		tt := e.Target.Type()
		if e.Op == token.EQUAL {
			v := g.genExpression(e.Value)
			g.storeValue(ptr, v, tt)
			return v
		}
		opType := e.OpType
		if opType == nil {
			opType = tt
		}
		old := g.convert(g.load(ptr, tt), tt, opType)
		v := g.genExpression(e.Value)
		res := g.convert(g.arith(e.Op.CompoundOperator(), old, v, opType, e.Value.Type()), opType, tt)
		g.block().NewStore(res, ptr)
		return res

	case *ast.CastExpression:
		v := g.genExpression(e.Operand)
		from := e.Operand.Type()
		switch {
		case ast.IsArray(from):
			v = g.block().NewGetElementPtr(g.genType(from), v, constant.NewInt(types.I64, 0), constant.NewInt(types.I64, 0))
			return g.bitcast(v, g.genType(t))
		case ast.IsFunction(from):
			return g.bitcast(v, g.genType(t))
		}
		return g.convert(v, from, t)

	case *ast.ConditionalExpression:
		return g.genConditional(e)

	case *ast.CallExpression:
		return g.genCall(e)

	case *ast.BuiltinCall:
		return g.genBuiltin(e)

	case *ast.CommaExpression:
		g.genExpression(e.Left)
		return g.genExpression(e.Right)

	case *ast.MemberExpression:
		return g.load(g.genLvalue(e), t)

	case *ast.SizeofExpression:
		return constant.NewInt(g.genType(t).(*types.IntType), e.Value)
	}

	unsupported(e.Position(), "expression %T", e)
	return nil
}

func (g *Generator) bitcast(v value.Value, t types.Type) value.Value {
	if v.Type().Equal(t) {
		return v
	}
	return g.block().NewBitCast(v, t)
}

// ptrAdd offsets a pointer by a byte count.
func (g *Generator) ptrAdd(p, n value.Value, t ast.Type) value.Value {
	raw := g.bitcast(p, types.I8Ptr)
	return g.bitcast(g.block().NewGetElementPtr(types.I8, raw, n), g.genType(t))
}

func (g *Generator) genUnary(e *ast.UnaryExpression) value.Value {
	t := e.Type()
	switch e.Op {
	case token.AND:
		return g.bitcast(g.genLvalue(e.Operand), g.genType(t))
	case token.STAR:
		return g.load(g.genExpression(e.Operand), t)
	case token.PLUS:
		return g.genExpression(e.Operand)
	case token.MINUS:
		v := g.genExpression(e.Operand)
		if ft, ok := v.Type().(*types.FloatType); ok {
			return g.block().NewFSub(constant.NewFloat(ft, math.Copysign(0, -1)), v)
		}
		return g.block().NewSub(zero(v.Type()), v)
	case token.TILDE:
		v := g.genExpression(e.Operand)
		return g.block().NewXor(v, constant.NewInt(v.Type().(*types.IntType), -1))
	case token.BANG:
		v := g.truth(g.genExpression(e.Operand))
		b := g.block()
		return b.NewZExt(b.NewXor(v, constant.NewInt(types.I1, 1)), g.genType(t))
	}
	unsupported(e.Pos, "operator %s", e.Op)
	return nil
}

func (g *Generator) genBinary(e *ast.BinaryExpression) value.Value {
	t := e.Type()

	switch e.Op {
	case token.AND_AND, token.OR_OR:
		slot := g.alloca(t)
		yes, no, end := g.newBlock(), g.newBlock(), g.newBlock()
		g.genCond(e, yes, no)
		g.setBlock(yes)
		g.block().NewStore(constant.NewInt(types.I32, 1), slot)
		g.jump(end)
		g.setBlock(no)
		g.block().NewStore(constant.NewInt(types.I32, 0), slot)
		g.setBlock(end)
		return g.block().NewLoad(types.I32, slot)
	}

	a := g.genExpression(e.Left)
	b := g.genExpression(e.Right)

	if e.Op.IsComparativeOperator() {
		return g.compare(e.Op, a, b, e.Left.Type(), t)
	}
	if e.PtrDiff > 0 {
		blk := g.block()
		d := blk.NewSub(blk.NewPtrToInt(a, types.I64), blk.NewPtrToInt(b, types.I64))
		if e.PtrDiff == 1 {
			return d
		}
		div := blk.NewSDiv(d, constant.NewInt(types.I64, e.PtrDiff))
		div.Exact = true
		return div
	}
	if ast.IsPointer(t) && !ast.IsPointer(e.Left.Type()) {
		a, b = b, a
	}
	return g.arith(e.Op, a, b, t, e.Right.Type())
}

var (
	signedPreds   = map[token.TokenType]enum.IPred{token.EQUAL_EQUAL: enum.IPredEQ, token.BANG_EQUAL: enum.IPredNE, token.LESSER: enum.IPredSLT, token.LESSER_EQUAL: enum.IPredSLE, token.GREATER: enum.IPredSGT, token.GREATER_EQUAL: enum.IPredSGE}
	unsignedPreds = map[token.TokenType]enum.IPred{token.EQUAL_EQUAL: enum.IPredEQ, token.BANG_EQUAL: enum.IPredNE, token.LESSER: enum.IPredULT, token.LESSER_EQUAL: enum.IPredULE, token.GREATER: enum.IPredUGT, token.GREATER_EQUAL: enum.IPredUGE}
	floatPreds    = map[token.TokenType]enum.FPred{token.EQUAL_EQUAL: enum.FPredOEQ, token.BANG_EQUAL: enum.FPredUNE, token.LESSER: enum.FPredOLT, token.LESSER_EQUAL: enum.FPredOLE, token.GREATER: enum.FPredOGT, token.GREATER_EQUAL: enum.FPredOGE}
)

func (g *Generator) compare(op token.TokenType, a, b value.Value, operand, t ast.Type) value.Value {
	blk := g.block()
	var cmp value.Value
	switch {
	case ast.IsFloating(operand):
		cmp = blk.NewFCmp(floatPreds[op], a, b)
	case ast.IsSigned(operand):
		cmp = blk.NewICmp(signedPreds[op], a, b)
	default:
		cmp = blk.NewICmp(unsignedPreds[op], a, g.bitcast(b, a.Type()))
	}
	return g.block().NewZExt(cmp, g.genType(t))
}

// arith applies a binary operator in type t. For pointer results b is a
// byte count; for shifts it has the type of the right operand.
func (g *Generator) arith(op token.TokenType, a, b value.Value, t, rt ast.Type) value.Value {
	if ast.IsPointer(t) {
		if op == token.MINUS {
			b = g.block().NewSub(zero(b.Type()), b)
		}
		return g.ptrAdd(a, b, t)
	}

	blk := g.block()
	if ast.IsFloating(t) {
		switch op {
		case token.PLUS:
			return blk.NewFAdd(a, b)
		case token.MINUS:
			return blk.NewFSub(a, b)
		case token.STAR:
			return blk.NewFMul(a, b)
		case token.SLASH:
			return blk.NewFDiv(a, b)
		}
		unsupported(token.Pos{}, "floating operator %s", op)
	}

	signed := ast.IsSigned(t)
	switch op {
	case token.PLUS:
		return blk.NewAdd(a, b)
	case token.MINUS:
		return blk.NewSub(a, b)
	case token.STAR:
		return blk.NewMul(a, b)
	case token.SLASH:
		if signed {
			return blk.NewSDiv(a, b)
		}
		return blk.NewUDiv(a, b)
	case token.PERCENT:
		if signed {
			return blk.NewSRem(a, b)
		}
		return blk.NewURem(a, b)
	case token.AND:
		return blk.NewAnd(a, b)
	case token.OR:
		return blk.NewOr(a, b)
	case token.CARET:
		return blk.NewXor(a, b)
	case token.SHIFT_LEFT:
		return g.block().NewShl(a, g.convert(b, rt, t))
	case token.SHIFT_RIGHT:
		n := g.convert(b, rt, t)
		if signed {
			return g.block().NewAShr(a, n)
		}
		return g.block().NewLShr(a, n)
	}
	unsupported(token.Pos{}, "operator %s", op)
	return nil
}

// convert is the C conversion of v from type from to type to.
func (g *Generator) convert(v value.Value, from, to ast.Type) value.Value {
	if ast.IsVoid(to) {
		return v
	}
	if !ast.IsScalar(to) || !ast.IsScalar(from) {
		return v
	}
	lt := g.genType(to)
	blk := g.block()

	if p, ok := to.(*ast.Primitive); ok && p.Kind == ast.Bool {
		return g.block().NewZExt(g.truth(v), lt)
	}

	fromFloat, toFloat := ast.IsFloating(from), ast.IsFloating(to)
	switch {
	case fromFloat && toFloat:
		fs, ts := g.nav.Size(from), g.nav.Size(to)
		switch {
		case fs < ts:
			return blk.NewFPExt(v, lt)
		case fs > ts:
			return blk.NewFPTrunc(v, lt)
		}
		return v
	case toFloat:
		if ast.IsSigned(from) {
			return blk.NewSIToFP(v, lt)
		}
		return blk.NewUIToFP(v, lt)
	case fromFloat:
		if ast.IsSigned(to) {
			return blk.NewFPToSI(v, lt)
		}
		return blk.NewFPToUI(v, lt)
	case ast.IsPointer(to) && ast.IsPointer(from):
		return g.bitcast(v, lt)
	case ast.IsPointer(to):
		return blk.NewIntToPtr(g.resize(v, ast.IsSigned(from), types.I64), lt)
	case ast.IsPointer(from):
		return blk.NewPtrToInt(v, lt)
	}
	return g.resize(v, ast.IsSigned(from), lt.(*types.IntType))
}

func (g *Generator) resize(v value.Value, signed bool, to *types.IntType) value.Value {
	from := v.Type().(*types.IntType)
	switch {
	case from.BitSize > to.BitSize:
		return g.block().NewTrunc(v, to)
	case from.BitSize == to.BitSize:
		return v
	case signed:
		return g.block().NewSExt(v, to)
	}
	return g.block().NewZExt(v, to)
}

func (g *Generator) genConditional(e *ast.ConditionalExpression) value.Value {
	t := e.Type()
	void := ast.IsVoid(t)
	st := t
	if ast.IsRecord(t) {
		st = g.nav.PointerTo(t)
	}
	var slot *ir.InstAlloca
	if !void {
		slot = g.alloca(st)
	}
	then, els, end := g.newBlock(), g.newBlock(), g.newBlock()

	if e.Then == nil {
		v := g.genExpression(e.Cond)
		if !void {
			g.block().NewStore(g.convert(v, e.Cond.Type(), t), slot)
		}
		g.block().NewCondBr(g.truth(v), end, els)
	} else {
		g.genCond(e.Cond, then, els)
		g.setBlock(then)
		v := g.genExpression(e.Then)
		if !void {
			g.block().NewStore(v, slot)
		}
		g.jump(end)
	}

	g.setBlock(els)
	v := g.genExpression(e.Else)
	if !void {
		g.block().NewStore(v, slot)
	}
	g.setBlock(end)

	if void {
		return nil
	}
	return g.block().NewLoad(g.genType(st), slot)
}

func calleeDecl(e ast.Expression) *ast.Decl {
	if cast, ok := e.(*ast.CastExpression); ok && cast.Implicit {
		e = cast.Operand
	}
	if id, ok := e.(*ast.Identifier); ok && id.Decl != nil && id.Decl.IsFunction() {
		return id.Decl
	}
	return nil
}

func (g *Generator) genCall(e *ast.CallExpression) value.Value {
	var callee value.Value
	if d := calleeDecl(e.Callee); d != nil {
		callee = g.global(d)
	} else {
		callee = g.genExpression(e.Callee)
	}
	args := make([]value.Value, len(e.Args))
	for i, a := range e.Args {
		args[i] = g.genExpression(a)
	}
	call := g.block().NewCall(callee, args...)
	if ast.IsVoid(e.Type()) {
		return nil
	}
	return call
}

func (g *Generator) intrinsicFunc(name string, ret types.Type, params ...types.Type) *ir.Func {
	if f, ok := g.intrinsic[name]; ok {
		return f
	}
	ps := make([]*ir.Param, len(params))
	for i, p := range params {
		ps[i] = ir.NewParam("", p)
	}
	f := g.module.NewFunc(name, ret, ps...)
	g.intrinsic[name] = f
	return f
}

func (g *Generator) genBuiltin(e *ast.BuiltinCall) value.Value {
	t := e.Type()
	switch e.Builtin {
	case ast.BuiltinTrap:
		g.block().NewCall(g.intrinsicFunc("llvm.trap", types.Void))
		g.block().NewUnreachable()
		return nil

	case ast.BuiltinUnreachable:
		g.block().NewUnreachable()
		return nil

	case ast.BuiltinTypesCompatible, ast.BuiltinConstantP:
		return constant.NewInt(types.I32, g.ev.Eval(e).Int)

	case ast.BuiltinFrameAddress:
		n := g.ev.Eval(e.Args[0]).Int
		f := g.intrinsicFunc("llvm.frameaddress.p0i8", types.I8Ptr, types.I32)
		return g.block().NewCall(f, constant.NewInt(types.I32, n))

	case ast.BuiltinExpect:
		v := g.genExpression(e.Args[0])
		g.genExpression(e.Args[1])
		return v

	case ast.BuiltinStrlen:
		if cv := g.ev.Eval(e); cv.Kind == consteval.Value {
			return constant.NewInt(g.genType(t).(*types.IntType), cv.Int)
		}
		if e.Call == nil {
			unsupported(e.Pos, "%s without a library fallback", e.Name)
		}
		return g.genCall(e.Call)
	}
	unsupported(e.Pos, "builtin %s", e.Name)
	return nil
}
