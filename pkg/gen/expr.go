package gen

import (
	"github.com/kartiknair/mycc/pkg/ast"
	"github.com/kartiknair/mycc/pkg/consteval"
	"github.com/kartiknair/mycc/pkg/diag"
	"github.com/kartiknair/mycc/pkg/gen/out"
	"github.com/kartiknair/mycc/pkg/token"
)

var arithOps = map[token.TokenType]out.ArithOp{
	token.PLUS:        out.OpAdd,
	token.MINUS:       out.OpSub,
	token.STAR:        out.OpMul,
	token.SLASH:       out.OpDiv,
	token.PERCENT:     out.OpMod,
	token.AND:         out.OpAnd,
	token.OR:          out.OpOr,
	token.CARET:       out.OpXor,
	token.SHIFT_LEFT:  out.OpShl,
	token.SHIFT_RIGHT: out.OpShr,
}

var cmpOps = map[token.TokenType]out.Cmp{
	token.EQUAL_EQUAL:   out.CmpEq,
	token.BANG_EQUAL:    out.CmpNe,
	token.LESSER:        out.CmpLt,
	token.LESSER_EQUAL:  out.CmpLe,
	token.GREATER:       out.CmpGt,
	token.GREATER_EQUAL: out.CmpGe,
}

// lvalue is the storage an assignable expression designates.
type lvalue struct {
	addr *out.Value
	typ  ast.Type
	// field is set for bit-fields; addr is then their storage unit.
	field *ast.Field
}

// expr generates e and returns its value retained once, or nil for void.
// Arrays, functions and records are represented by their address.
func (g *Generator) expr(e ast.Expression) *out.Value {
	if g.fold && ast.IsScalar(e.Type()) {
		if v := g.constant(e); v != nil {
			return v
		}
	}

	c := g.c
	t := e.Type()

	switch e := e.(type) {
	case *ast.IntLiteral:
		return c.Const(g.ev.Truncate(int64(e.Value), t), t)

	case *ast.FloatLiteral:
		f := e.Value
		if g.nav.Size(t) == 4 {
			f = float64(float32(f))
		}
		return c.ConstFloat(f, t)

	case *ast.StringLiteral:
		return c.Symbol(g.stringLabel(e), true, t)

	case *ast.Identifier:
		if e.Enum != nil {
			return c.Const(e.Enum.Value, t)
		}
		if e.Decl == nil {
			diag.ICEAt(e.Pos, "identifier '%s' was never resolved", e.Name)
		}
		if e.Decl.IsFunction() {
			return g.objectAddr(e.Decl, t)
		}
		return c.Deref(g.objectAddr(e.Decl, g.nav.PointerTo(t)), t)

	case *ast.UnaryExpression:
		return g.unary(e)

	case *ast.IncDecExpression:
		return g.incDec(e)

	case *ast.BinaryExpression:
		return g.binary(e)

	case *ast.AssignExpression:
		return g.assign(e)

	case *ast.CastExpression:
		v := g.expr(e.Operand)
		from := e.Operand.Type()
		if ast.IsArray(from) || ast.IsFunction(from) {
			return c.Retype(v, t)
		}
		return c.Cast(v, t)

	case *ast.ConditionalExpression:
		return g.conditional(e)

	case *ast.CallExpression:
		return g.call(e)

	case *ast.BuiltinCall:
		return g.builtin(e)

	case *ast.CommaExpression:
		c.Consume(g.expr(e.Left))
		return g.expr(e.Right)

	case *ast.MemberExpression:
		return g.load(g.lval(e))

	case *ast.SizeofExpression:
		return c.Const(e.Value, t)
	}

	diag.ICEAt(e.Position(), "unhandled expression %T", e)
	return nil
}

// constant shortcuts expressions the evaluator can fold.
func (g *Generator) constant(e ast.Expression) *out.Value {
	c := g.c
	t := e.Type()
	cv := g.ev.Eval(e)

	switch cv.Kind {
	case consteval.Value:
		switch {
		case ast.IsFloating(t) && cv.IsFloat:
			return c.ConstFloat(cv.Float, t)
		case !ast.IsFloating(t) && !cv.IsFloat:
			return c.Const(cv.Int, t)
		}
	case consteval.Addr:
		if ast.IsPointer(t) {
			return c.AddOffset(g.objectAddr(cv.Decl, t), cv.Offset, t)
		}
	case consteval.String:
		if ast.IsPointer(t) {
			return c.AddOffset(c.Symbol(g.stringLabel(cv.Str), true, t), cv.Offset, t)
		}
	}
	return nil
}

func (g *Generator) lval(e ast.Expression) lvalue {
	c := g.c
	t := e.Type()

	switch e := e.(type) {
	case *ast.Identifier:
		if e.Decl != nil {
			return lvalue{addr: g.objectAddr(e.Decl, g.nav.PointerTo(t)), typ: t}
		}
	case *ast.UnaryExpression:
		if e.Op == token.STAR {
			return lvalue{addr: g.expr(e.Operand), typ: t}
		}
	case *ast.MemberExpression:
		if e.Field == nil {
			break
		}
		base := g.expr(e.Object)
		lv := lvalue{addr: c.AddOffset(base, e.Field.Offset, g.nav.PointerTo(t)), typ: t}
		if e.Field.IsBitField() {
			lv.field = e.Field
		}
		return lv
	case *ast.StringLiteral:
		return lvalue{addr: c.Symbol(g.stringLabel(e), true, g.nav.PointerTo(t)), typ: t}
	}

	diag.ICEAt(e.Position(), "expression %T is not an lvalue", e)
	return lvalue{}
}

// load reads the object lv designates and releases its address.
func (g *Generator) load(lv lvalue) *out.Value {
	if lv.field == nil {
		return g.c.Deref(lv.addr, lv.typ)
	}
	return g.extract(g.c.Deref(lv.addr, lv.field.Type), lv.field, lv.typ)
}

// store writes v to lv. When want is set the stored value is returned.
func (g *Generator) store(lv lvalue, v *out.Value, want bool) *out.Value {
	c := g.c
	if lv.field != nil {
		return g.storeBits(lv, v, want)
	}
	if want {
		c.Retain(v)
	}
	c.Store(lv.addr, v, lv.typ)
	if want {
		return v
	}
	return nil
}

func (g *Generator) wide(signed bool) ast.Type {
	return g.nav.Prim(ast.LongLong, !signed)
}

// extract isolates a bit-field from its storage unit.
func (g *Generator) extract(unit *out.Value, f *ast.Field, t ast.Type) *out.Value {
	c := g.c
	w := int64(f.BitWidth)
	wt := g.wide(ast.IsSigned(f.Type))
	v := c.Retype(unit, wt)
	v = c.Op(out.OpShl, v, c.Const(64-int64(f.BitOff)-w, wt), wt)
	v = c.Op(out.OpShr, v, c.Const(64-w, wt), wt)
	return c.Retype(v, t)
}

func (g *Generator) storeBits(lv lvalue, v *out.Value, want bool) *out.Value {
	c := g.c
	f := lv.field
	wt := g.wide(false)
	mask := int64((uint64(1)<<uint(f.BitWidth) - 1) << uint(f.BitOff))

	c.Retain(lv.addr)
	old := c.Retype(c.Deref(lv.addr, f.Type), wt)
	old = c.Op(out.OpAnd, old, c.Const(^mask, wt), wt)

	bits := c.Cast(v, wt)
	bits = c.Op(out.OpShl, bits, c.Const(int64(f.BitOff), wt), wt)
	bits = c.Op(out.OpAnd, bits, c.Const(mask, wt), wt)

	unit := c.Op(out.OpOr, old, bits, wt)
	if want {
		c.Retain(unit)
	}
	c.Store(lv.addr, unit, f.Type)
	if !want {
		return nil
	}
	return g.extract(unit, f, lv.typ)
}

func (g *Generator) zero(t ast.Type) *out.Value {
	if ast.IsFloating(t) {
		return g.c.ConstFloat(0, t)
	}
	return g.c.Const(0, t)
}

func (g *Generator) unary(e *ast.UnaryExpression) *out.Value {
	c := g.c
	t := e.Type()

	switch e.Op {
	case token.AND:
		lv := g.lval(e.Operand)
		if lv.field != nil {
			diag.ICEAt(e.Pos, "address of bit-field")
		}
		return c.Retype(lv.addr, t)
	case token.STAR:
		return c.Deref(g.expr(e.Operand), t)
	case token.PLUS:
		return g.expr(e.Operand)
	case token.MINUS:
		return c.Neg(g.expr(e.Operand), t)
	case token.TILDE:
		return c.Not(g.expr(e.Operand), t)
	case token.BANG:
		v := g.expr(e.Operand)
		return c.Cmp(out.CmpEq, v, g.zero(v.Type), t)
	}

	diag.ICEAt(e.Pos, "unhandled unary operator %s", e.Op)
	return nil
}

func (g *Generator) incDec(e *ast.IncDecExpression) *out.Value {
	c := g.c
	t := e.Type()
	lv := g.lval(e.Target)

	c.Retain(lv.addr)
	old := g.load(lv)

	op := out.OpAdd
	if !e.Inc {
		op = out.OpSub
	}
	opType := t
	var step *out.Value
	switch {
	case ast.IsFloating(t):
		step = c.ConstFloat(1, t)
	case ast.IsPointer(t):
		step = c.Const(e.Step, g.nav.IntPtr())
	default:
		if isBool(t) {
			opType = g.nav.Int()
		}
		step = c.Const(e.Step, opType)
	}

	if e.Post {
		c.Retain(old)
	}
	nv := c.Cast(c.Op(op, c.Cast(old, opType), step, opType), t)
	if e.Post {
		g.store(lv, nv, false)
		return old
	}
	return g.store(lv, nv, true)
}

func isBool(t ast.Type) bool {
	p, ok := t.(*ast.Primitive)
	return ok && p.Kind == ast.Bool
}

func (g *Generator) binary(e *ast.BinaryExpression) *out.Value {
	c := g.c
	t := e.Type()

	if e.Op == token.AND_AND || e.Op == token.OR_OR {
		return g.logical(e)
	}
	if cmp, ok := cmpOps[e.Op]; ok {
		a := g.expr(e.Left)
		b := g.expr(e.Right)
		return c.Cmp(cmp, a, b, t)
	}

	op, ok := arithOps[e.Op]
	if !ok {
		diag.ICEAt(e.Pos, "unhandled binary operator %s", e.Op)
	}
	a := g.expr(e.Left)
	b := g.expr(e.Right)

	if e.PtrDiff > 0 {
		d := c.Op(out.OpSub, c.Retype(a, t), c.Retype(b, t), t)
		if e.PtrDiff == 1 {
			return d
		}
		return c.Op(out.OpDiv, d, c.Const(e.PtrDiff, t), t)
	}
	return c.Op(op, a, b, t)
}

// tempSlot reserves frame space for a value that is produced on more than
// one path. Records travel by address.
func (g *Generator) tempSlot(t ast.Type) (int64, ast.Type) {
	st := t
	if ast.IsRecord(t) {
		st = g.nav.PointerTo(t)
	}
	return g.c.Alloca(g.nav.Size(st), g.nav.Align(st)), st
}

func (g *Generator) fromSlot(slot int64, st, t ast.Type) *out.Value {
	v := g.c.Deref(g.c.FrameAddr(slot, g.nav.PointerTo(st)), st)
	if st != t {
		return g.c.Retype(v, t)
	}
	return v
}

func (g *Generator) toSlot(slot int64, st ast.Type, v *out.Value) {
	g.c.Store(g.c.FrameAddr(slot, g.nav.PointerTo(st)), g.c.Retype(v, st), st)
}

// logical materialises && and || as 0 or 1.
func (g *Generator) logical(e *ast.BinaryExpression) *out.Value {
	c := g.c
	t := e.Type()
	slot, st := g.tempSlot(t)
	yes, no, end := c.NewBlock("true"), c.NewBlock("false"), c.NewBlock("lend")

	g.branch(e, yes, no)
	c.SetBlock(yes)
	g.toSlot(slot, st, c.Const(1, t))
	c.Jmp(end)
	c.SetBlock(no)
	g.toSlot(slot, st, c.Const(0, t))
	c.SetBlock(end)
	return g.fromSlot(slot, st, t)
}

func (g *Generator) conditional(e *ast.ConditionalExpression) *out.Value {
	c := g.c
	t := e.Type()
	void := ast.IsVoid(t)

	var slot int64
	var st ast.Type
	if !void {
		slot, st = g.tempSlot(t)
	}
	then, els, end := c.NewBlock("cthen"), c.NewBlock("celse"), c.NewBlock("cend")

	if e.Then == nil {
		// a ?: b yields the tested value itself
		v := g.expr(e.Cond)
		if !void {
			c.Retain(v)
			g.toSlot(slot, st, c.Cast(v, t))
		}
		c.Branch(v, end, els)
	} else {
		g.branch(e.Cond, then, els)
		c.SetBlock(then)
		g.arm(e.Then, slot, st, void)
		c.Jmp(end)
	}

	c.SetBlock(els)
	g.arm(e.Else, slot, st, void)
	c.SetBlock(end)

	if void {
		return nil
	}
	return g.fromSlot(slot, st, t)
}

func (g *Generator) arm(e ast.Expression, slot int64, st ast.Type, void bool) {
	v := g.expr(e)
	if void {
		g.c.Consume(v)
		return
	}
	g.toSlot(slot, st, v)
}

// calleeDecl finds the function a call names directly.
func calleeDecl(e ast.Expression) *ast.Decl {
	if cast, ok := e.(*ast.CastExpression); ok && cast.Implicit {
		e = cast.Operand
	}
	if id, ok := e.(*ast.Identifier); ok && id.Decl != nil && id.Decl.IsFunction() {
		return id.Decl
	}
	return nil
}

func (g *Generator) call(e *ast.CallExpression) *out.Value {
	c := g.c
	sig := ast.FunctionOf(e.Callee.Type())
	if sig == nil {
		diag.ICEAt(e.Pos, "call through non-function %s", e.Callee.Type())
	}

	var callee *out.Value
	if d := calleeDecl(e.Callee); d != nil {
		callee = g.objectAddr(d, e.Callee.Type())
	} else {
		callee = g.expr(e.Callee)
	}

	args := make([]*out.Value, len(e.Args))
	for i, a := range e.Args {
		args[i] = g.expr(a)
	}
	c.Loc(e.Pos)
	return c.Call(callee, args, sig)
}

func (g *Generator) builtin(e *ast.BuiltinCall) *out.Value {
	c := g.c
	t := e.Type()

	switch e.Builtin {
	case ast.BuiltinUnreachable, ast.BuiltinTrap:
		c.Trap()
		return nil

	case ast.BuiltinTypesCompatible, ast.BuiltinConstantP:
		return c.Const(g.ev.Eval(e).Int, t)

	case ast.BuiltinFrameAddress:
		return c.FramePtr(g.ev.Eval(e.Args[0]).Int, t)

	case ast.BuiltinExpect:
		v := g.expr(e.Args[0])
		c.Consume(g.expr(e.Args[1]))
		return v

	case ast.BuiltinStrlen:
		if cv := g.ev.Eval(e); cv.Kind == consteval.Value {
			return c.Const(cv.Int, t)
		}
		if e.Call == nil {
			diag.ICEAt(e.Pos, "%s has no library fallback", e.Name)
		}
		return g.call(e.Call)
	}

	diag.ICEAt(e.Pos, "unhandled builtin %s", e.Name)
	return nil
}

func (g *Generator) assign(e *ast.AssignExpression) *out.Value {
	c := g.c
	lv := g.lval(e.Target)

	if e.Op == token.EQUAL {
		return g.store(lv, g.expr(e.Value), true)
	}

	op, ok := arithOps[e.Op.CompoundOperator()]
	if !ok {
		diag.ICEAt(e.Pos, "unhandled assignment operator %s", e.Op)
	}
	opType := e.OpType
	if opType == nil {
		opType = lv.typ
	}

	c.Retain(lv.addr)
	old := c.Cast(g.load(lv), opType)
	v := g.expr(e.Value)
	return g.store(lv, c.Cast(c.Op(op, old, v, opType), lv.typ), true)
}

// initLocal writes the initialiser of an automatic object at frame offset
// off. Aggregates are cleared first so that omitted members read as zero.
func (g *Generator) initLocal(off int64, init ast.Initializer, t ast.Type) {
	c := g.c
	switch init := init.(type) {
	case *ast.InitList:
		c.Zero(c.FrameAddr(off, g.nav.PointerTo(t)), g.nav.Size(t))
		g.initItems(off, init, t)
	case *ast.StringLiteral:
		if arr, ok := t.(*ast.Array); ok {
			g.initString(off, init, arr)
			return
		}
		c.Store(c.FrameAddr(off, g.nav.PointerTo(t)), g.expr(init), t)
	case ast.Expression:
		c.Store(c.FrameAddr(off, g.nav.PointerTo(t)), g.expr(init), t)
	}
}

func (g *Generator) initItems(off int64, list *ast.InitList, t ast.Type) {
	c := g.c
	switch tt := t.(type) {
	case *ast.Array:
		size := g.nav.Size(tt.Elem)
		for i, item := range list.Items {
			g.initItem(off+int64(i)*size, item, tt.Elem)
		}
	case *ast.Record:
		for i, item := range list.Items {
			if item == nil || i >= len(tt.Def.Fields) {
				continue
			}
			f := tt.Def.Fields[i]
			if f.IsBitField() {
				e, ok := item.(ast.Expression)
				if !ok {
					diag.ICEAt(item.Position(), "braced initialiser for bit-field '%s'", f.Name)
				}
				lv := lvalue{addr: c.FrameAddr(off+f.Offset, g.nav.PointerTo(f.Type)), typ: f.Type, field: f}
				g.store(lv, g.expr(e), false)
				continue
			}
			g.initItem(off+f.Offset, item, f.Type)
		}
	}
}

// initItem is initLocal for storage that is already zero.
func (g *Generator) initItem(off int64, item ast.Initializer, t ast.Type) {
	c := g.c
	switch item := item.(type) {
	case nil:
	case *ast.InitList:
		g.initItems(off, item, t)
	case *ast.StringLiteral:
		if arr, ok := t.(*ast.Array); ok {
			g.initString(off, item, arr)
			return
		}
		c.Store(c.FrameAddr(off, g.nav.PointerTo(t)), g.expr(item), t)
	case ast.Expression:
		if cv := g.ev.Eval(item); g.fold && cv.IsZero() && !ast.IsFloating(t) {
			return
		}
		c.Store(c.FrameAddr(off, g.nav.PointerTo(t)), g.expr(item), t)
	}
}

// initString copies a literal into a character array. The tail past the
// literal is zeroed.
func (g *Generator) initString(off int64, s *ast.StringLiteral, arr *ast.Array) {
	c := g.c
	size := g.nav.Size(arr)
	n := int64(len(stringBytes(s, g.nav.Size(arr.Elem))))
	if n > size {
		n = size
	}
	src := c.Symbol(g.stringLabel(s), true, g.nav.PointerTo(arr))
	c.Memcpy(c.FrameAddr(off, g.nav.PointerTo(arr)), src, n)
	if n < size {
		c.Zero(c.FrameAddr(off+n, g.nav.PointerTo(arr.Elem)), size-n)
	}
}
