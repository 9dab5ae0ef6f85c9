package analyzer

import (
	"fmt"

	"github.com/kartiknair/mycc/pkg/ast"
	"github.com/kartiknair/mycc/pkg/config"
	"github.com/kartiknair/mycc/pkg/consteval"
	"github.com/kartiknair/mycc/pkg/diag"
	"github.com/kartiknair/mycc/pkg/token"

	"modernc.org/mathutil"
)

// foldExpression folds e as an rvalue: arrays and functions decay.
func (a *Analyzer) foldExpression(e ast.Expression, fn *function) ast.Expression {
	return a.decay(a.fold(e, fn))
}

// foldTarget folds the operand of an assignment, increment or `&`. A
// variable named here is written rather than read; read also counts it as
// read (compound assignment, ++).
func (a *Analyzer) foldTarget(e ast.Expression, fn *function, read bool) ast.Expression {
	id, ok := e.(*ast.Identifier)
	if !ok {
		return a.fold(e, fn)
	}
	if id.MarkFolded() {
		return id
	}
	a.foldIdentifier(id, fn, read)
	if id.Decl != nil && id.Decl.Sym != nil {
		id.Decl.Sym.Writes++
	}
	return id
}

// fold folds e in place of its value, without decay.
func (a *Analyzer) fold(e ast.Expression, fn *function) ast.Expression {
	if e.MarkFolded() {
		return e
	}

	switch e := e.(type) {
	case *ast.IntLiteral:
		if e.Type() == nil {
			e.SetType(a.literalType(e))
		}
		return e

	case *ast.FloatLiteral:
		if e.Single {
			e.SetType(a.nav.Prim(ast.Float, false))
		} else {
			e.SetType(a.nav.Prim(ast.Double, false))
		}
		return e

	case *ast.StringLiteral:
		elem := ast.Type(a.nav.Char())
		if e.Wide {
			elem = a.nav.Int()
		}
		e.SetType(&ast.Array{Elem: elem, Len: int64(len(e.Value)) + 1, Sized: true})
		return e

	case *ast.Identifier:
		a.foldIdentifier(e, fn, true)
		return e

	case *ast.UnaryExpression:
		return a.foldUnary(e, fn)

	case *ast.IncDecExpression:
		return a.foldIncDec(e, fn)

	case *ast.BinaryExpression:
		return a.foldBinary(e, fn)

	case *ast.AssignExpression:
		return a.foldAssign(e, fn)

	case *ast.CastExpression:
		return a.foldCast(e, fn)

	case *ast.ConditionalExpression:
		return a.foldConditional(e, fn)

	case *ast.CallExpression:
		return a.foldCall(e, fn)

	case *ast.BuiltinCall:
		return a.foldBuiltin(e, fn)

	case *ast.CommaExpression:
		e.Left = a.foldExpression(e.Left, fn)
		e.Right = a.foldExpression(e.Right, fn)
		e.SetType(e.Right.Type())
		return e

	case *ast.MemberExpression:
		return a.foldMember(e, fn)

	case *ast.SizeofExpression:
		return a.foldSizeof(e, fn)
	}

	diag.ICEAt(e.Position(), "fold: unhandled expression %T", e)
	return e
}

// literalType picks the first type of the literal's suffix class that can
// represent its value.
func (a *Analyzer) literalType(e *ast.IntLiteral) ast.Type {
	bits := mathutil.BitLenUint64(e.Value)
	longBits := int(a.nav.WordSize * 8)

	pick := func(k ast.Kind, unsigned bool) ast.Type {
		return a.nav.Prim(k, unsigned)
	}

	switch {
	case e.Suffix&token.SuffixLongLong != 0:
		return pick(ast.LongLong, e.Suffix&token.SuffixUnsigned != 0 || bits > 63)
	case e.Suffix&token.SuffixLong != 0:
		if e.Suffix&token.SuffixUnsigned != 0 {
			if bits <= longBits {
				return pick(ast.Long, true)
			}
			return pick(ast.LongLong, true)
		}
		switch {
		case bits < longBits:
			return pick(ast.Long, false)
		case bits <= 63:
			return pick(ast.LongLong, false)
		}
		return pick(ast.LongLong, true)
	case e.Suffix&token.SuffixUnsigned != 0:
		switch {
		case bits <= 32:
			return pick(ast.Int, true)
		case bits <= longBits:
			return pick(ast.Long, true)
		}
		return pick(ast.LongLong, true)
	}

	switch {
	case bits <= 31:
		return pick(ast.Int, false)
	case bits < longBits:
		return pick(ast.Long, false)
	case bits <= 63:
		return pick(ast.LongLong, false)
	}
	return pick(ast.LongLong, true)
}

func (a *Analyzer) foldIdentifier(e *ast.Identifier, fn *function, read bool) {
	if e.Enum != nil {
		e.SetType(a.nav.Int())
		return
	}

	d := e.Decl
	if d == nil {
		a.errorf(e.Pos, "undeclared identifier \"%s\"", e.Name)
		e.SetType(a.nav.Int())
		return
	}
	if d.IsTypedef() {
		a.errorf(e.Pos, "unexpected type name '%s'", e.Name)
		e.SetType(a.nav.Int())
		e.Decl = nil
		return
	}

	e.SetType(d.Type)

	sym := d.Sym
	if sym == nil || !read {
		return
	}
	if fn != nil && sym.Kind == ast.SymLocal && !d.StaticDuration() &&
		!ast.IsAggregate(d.Type) && !ast.IsFunction(d.Type) &&
		sym.Writes == 0 && (d.Init == nil || d == fn.initialising) {
		a.warn(config.WarnReadBeforeWrite, e.Pos, "\"%s\" uninitialised on read", e.Name)
		// silence further reports
		sym.Writes = 1
	}
	sym.Reads++
}

func (a *Analyzer) foldUnary(e *ast.UnaryExpression, fn *function) ast.Expression {
	switch e.Op {
	case token.AND:
		e.Operand = a.foldTarget(e.Operand, fn, false)
		op := e.Operand
		switch {
		case ast.IsFunction(op.Type()):
		case isUndeclared(op):
		case !isLvalue(op):
			a.errorf(e.Pos, "lvalue required as unary '&' operand")
		default:
			if m, ok := op.(*ast.MemberExpression); ok && m.Field != nil && m.Field.IsBitField() {
				a.errorf(e.Pos, "cannot take address of bit-field '%s'", m.Name)
			}
			if id, ok := op.(*ast.Identifier); ok && id.Decl.Storage == ast.StorageRegister {
				a.errorf(e.Pos, "address of register variable '%s' requested", id.Name)
			}
		}
		e.SetType(a.nav.PointerTo(op.Type()))
		return e

	case token.STAR:
		e.Operand = a.foldExpression(e.Operand, fn)
		if inner, ok := e.Operand.(*ast.UnaryExpression); ok && inner.Op == token.AND {
			a.possibleOpt(e, "possible optimisation for *& expression")
		}
		pt, ok := e.Operand.Type().(*ast.Pointer)
		if !ok {
			a.errorf(e.Pos, "invalid type argument of unary '*' (have '%s')", e.Operand.Type())
			e.SetType(a.nav.Int())
			return e
		}
		if ast.IsVoid(pt.Elem) {
			a.errorf(e.Pos, "can't dereference void pointer (%s)", pt)
			e.SetType(a.nav.Int())
			return e
		}
		if ast.IsRecord(pt.Elem) && !ast.IsComplete(pt.Elem) {
			a.errorf(e.Pos, "dereferencing pointer to incomplete type (%s)", pt.Elem)
		}
		a.checkBounds(e)
		e.SetType(pt.Elem)
		return e

	case token.PLUS, token.MINUS, token.TILDE:
		e.Operand = a.foldExpression(e.Operand, fn)
		t := e.Operand.Type()
		if !ast.IsArithmetic(t) || (e.Op == token.TILDE && !ast.IsIntegral(t)) {
			a.errorf(e.Pos, "wrong type argument to unary '%s' (have '%s')", e.Op, t)
			e.SetType(a.nav.Int())
			return e
		}
		pt := a.nav.Promote(t)
		e.Operand = a.to(e.Operand, pt)
		e.SetType(pt)
		return e

	case token.BANG:
		e.Operand = a.foldScalar(e.Operand, fn, "unary '!'")
		e.SetType(a.nav.Int())
		return e
	}

	diag.ICEAt(e.Pos, "fold: unhandled unary operator %s", e.Op)
	return e
}

func isUndeclared(e ast.Expression) bool {
	id, ok := e.(*ast.Identifier)
	return ok && id.Decl == nil && id.Enum == nil
}

// foldScalar folds an operand that is tested against zero.
func (a *Analyzer) foldScalar(e ast.Expression, fn *function, what string) ast.Expression {
	e = a.foldExpression(e, fn)
	if !ast.IsScalar(e.Type()) {
		a.errorf(e.Position(), "used %s where scalar is required (%s)", e.Type(), what)
	}
	return e
}

// checkBounds warns for a dereference of a sized array at a constant index
// outside of it.
func (a *Analyzer) checkBounds(e *ast.UnaryExpression) {
	add, ok := e.Operand.(*ast.BinaryExpression)
	if !ok {
		return
	}
	idx, ok := a.indexes[add]
	if !ok {
		return
	}
	if idx.index < 0 || idx.index >= idx.length {
		a.warn(config.WarnArrayBounds, e.Pos, "index %d out of bounds of %d", idx.index, idx.length)
	}
}

// sizedArray returns the array a decayed operand designates, if sized.
func sizedArray(e ast.Expression) *ast.Array {
	c, ok := e.(*ast.CastExpression)
	if !ok || !c.Implicit {
		return nil
	}
	arr, ok := c.Operand.Type().(*ast.Array)
	if !ok || !arr.Sized {
		return nil
	}
	return arr
}

func (a *Analyzer) foldIncDec(e *ast.IncDecExpression, fn *function) ast.Expression {
	e.Target = a.foldTarget(e.Target, fn, true)
	t := e.Target.Type()
	e.SetType(ast.Unqualified(t))

	what := "decrement operand"
	if e.Inc {
		what = "increment operand"
	}
	if !a.checkModifiable(e.Target, what) {
		return e
	}

	switch {
	case ast.IsArithmetic(t):
		e.Step = 1
	case ast.IsPointer(t):
		e.Step = a.pointeeSize(e.Pos, t)
	default:
		a.errorf(e.Pos, "wrong type argument to %s (have '%s')", what, t)
	}
	return e
}

// pointeeSize is the scale of pointer arithmetic on t.
func (a *Analyzer) pointeeSize(pos token.Pos, t ast.Type) int64 {
	elem := ast.Pointee(t)
	switch {
	case ast.IsVoid(elem):
		a.warn(config.WarnVoidArith, pos, "arithmetic with void pointer")
		return 1
	case ast.IsFunction(elem):
		a.warn(config.WarnVoidArith, pos, "arithmetic on pointer to function")
		return 1
	case !ast.IsComplete(elem):
		a.errorf(pos, "arithmetic on pointer to incomplete type '%s'", elem)
		return 1
	}
	return a.nav.Size(elem)
}

// scale multiplies an integer offset by the pointee size of ptr.
func (a *Analyzer) scale(n ast.Expression, size int64) ast.Expression {
	intptr := a.nav.IntPtr()
	n = a.to(n, intptr)
	if size == 1 {
		return n
	}
	lit := synth(ast.NewIntLiteral(n.Position(), uint64(size), intptr), intptr)
	return synth(ast.NewBinary(n.Position(), token.STAR, n, lit), intptr)
}

func isIntLiteral(e ast.Expression, v uint64) bool {
	lit, ok := e.(*ast.IntLiteral)
	return ok && lit.Value == v
}

func (a *Analyzer) optimisationHints(e *ast.BinaryExpression) {
	switch e.Op {
	case token.AND_AND, token.OR_OR:
		_, lc := e.Left.(*ast.IntLiteral)
		_, rc := e.Right.(*ast.IntLiteral)
		if lc || rc {
			a.possibleOpt(e, "short circuit const")
		}
	case token.PLUS, token.MINUS:
		if isIntLiteral(e.Left, 0) || isIntLiteral(e.Right, 0) {
			a.possibleOpt(e, "zero being added or subtracted")
		}
	case token.STAR:
		if isIntLiteral(e.Left, 0) || isIntLiteral(e.Left, 1) || isIntLiteral(e.Right, 0) || isIntLiteral(e.Right, 1) {
			a.possibleOpt(e, "1 or 0 being multiplied")
		}
	case token.SLASH:
		if isIntLiteral(e.Right, 1) {
			a.possibleOpt(e, "divide by 1")
		}
	}
}

func (a *Analyzer) foldBinary(e *ast.BinaryExpression, fn *function) ast.Expression {
	if e.Op == token.AND_AND || e.Op == token.OR_OR {
		e.Left = a.foldScalar(e.Left, fn, e.Op.String())
		e.Right = a.foldScalar(e.Right, fn, e.Op.String())
		a.optimisationHints(e)
		e.SetType(a.nav.Int())
		return e
	}

	e.Left = a.foldExpression(e.Left, fn)
	e.Right = a.foldExpression(e.Right, fn)
	a.optimisationHints(e)

	lt, rt := e.Left.Type(), e.Right.Type()
	if ast.IsVoid(lt) || ast.IsVoid(rt) {
		a.errorf(e.Pos, "use of void expression")
		e.SetType(a.nav.Int())
		return e
	}

	invalid := func() ast.Expression {
		a.errorf(e.Pos, "invalid operands to binary %s (have '%s' and '%s')", e.Op, lt, rt)
		e.SetType(a.nav.Int())
		return e
	}

	switch {
	case e.Op.IsComparativeOperator():
		return a.foldComparison(e)

	case e.Op == token.PLUS && ast.IsPointer(lt) && ast.IsIntegral(rt):
		a.recordIndex(e, e.Left, e.Right, false)
		e.Right = a.scale(e.Right, a.pointeeSize(e.Pos, lt))
		e.SetType(lt)
		return e

	case e.Op == token.PLUS && ast.IsIntegral(lt) && ast.IsPointer(rt):
		// i[x] is *(i + x)
		a.recordIndex(e, e.Right, e.Left, false)
		e.Left = a.scale(e.Left, a.pointeeSize(e.Pos, rt))
		e.SetType(rt)
		return e

	case e.Op == token.MINUS && ast.IsPointer(lt) && ast.IsIntegral(rt):
		a.recordIndex(e, e.Left, e.Right, true)
		e.Right = a.scale(e.Right, a.pointeeSize(e.Pos, lt))
		e.SetType(lt)
		return e

	case e.Op == token.MINUS && ast.IsPointer(lt) && ast.IsPointer(rt):
		if !ast.Equal(ast.Pointee(lt), ast.Pointee(rt), ast.CmpIgnoreQual) {
			a.warn(config.WarnIncompatiblePtr, e.Pos, "subtraction of distinct pointer types ('%s' and '%s')", lt, rt)
		}
		e.PtrDiff = a.pointeeSize(e.Pos, lt)
		e.SetType(a.nav.IntPtr())
		return e

	case !ast.IsArithmetic(lt) || !ast.IsArithmetic(rt):
		return invalid()
	}

	switch e.Op {
	case token.PERCENT, token.SHIFT_LEFT, token.SHIFT_RIGHT, token.AND, token.OR, token.CARET:
		if !ast.IsIntegral(lt) || !ast.IsIntegral(rt) {
			if e.Op == token.SHIFT_LEFT || e.Op == token.SHIFT_RIGHT {
				a.errorf(e.Right.Position(), "invalid argument to shift")
				e.SetType(a.nav.Int())
				return e
			}
			return invalid()
		}
	}

	if e.Op == token.SLASH || e.Op == token.PERCENT {
		if ast.IsIntegral(rt) && a.ev.Eval(e.Right).IsZero() {
			a.warn(config.WarnDivZero, e.Right.Position(), "division by zero")
		}
	}

	if e.Op == token.SHIFT_LEFT || e.Op == token.SHIFT_RIGHT {
		pl := a.nav.Promote(lt)
		e.Left = a.to(e.Left, pl)
		e.Right = a.to(e.Right, a.nav.Promote(rt))
		if c := a.ev.Eval(e.Right); c.Kind == consteval.Value && (c.Int < 0 || c.Int >= a.nav.Size(pl)*8) {
			a.warn(config.WarnArgMismatch, e.Right.Position(), "shift count %d is out of range for '%s'", c.Int, pl)
		}
		e.SetType(pl)
		return e
	}

	var common ast.Type
	e.Left, e.Right, common = a.arithmetic(e.Left, e.Right)
	e.SetType(common)
	return e
}

// recordIndex remembers ptr+n when ptr is a decayed sized array and n a
// constant, for the bounds check at the dereference.
func (a *Analyzer) recordIndex(e *ast.BinaryExpression, ptr, n ast.Expression, negate bool) {
	arr := sizedArray(ptr)
	if arr == nil {
		return
	}
	c := a.ev.Eval(n)
	if c.Kind != consteval.Value || c.IsFloat {
		return
	}
	idx := c.Int
	if negate {
		idx = -idx
	}
	a.indexes[e] = arrayIndex{index: idx, length: arr.Len}
}

func (a *Analyzer) foldComparison(e *ast.BinaryExpression) ast.Expression {
	lt, rt := e.Left.Type(), e.Right.Type()
	e.SetType(a.nav.Int())

	switch {
	case ast.IsArithmetic(lt) && ast.IsArithmetic(rt):
		a.signCompare(e)
		e.Left, e.Right, _ = a.arithmetic(e.Left, e.Right)

	case ast.IsPointer(lt) && ast.IsPointer(rt):
		if !ast.Equal(lt, rt, ast.CmpIgnoreQual|ast.CmpAllowVoidPtr) {
			a.warn(config.WarnCompareMismatch, e.Pos, "comparison of distinct pointer types ('%s' and '%s')", lt, rt)
		}

	case ast.IsPointer(lt) && ast.IsIntegral(rt):
		if !a.isNullConstant(e.Right) {
			a.warn(config.WarnCompareMismatch, e.Pos, "comparison between pointer and integer")
		}
		e.Right = a.to(e.Right, lt)

	case ast.IsIntegral(lt) && ast.IsPointer(rt):
		if !a.isNullConstant(e.Left) {
			a.warn(config.WarnCompareMismatch, e.Pos, "comparison between pointer and integer")
		}
		e.Left = a.to(e.Left, rt)

	default:
		a.errorf(e.Pos, "invalid operands to binary %s (have '%s' and '%s')", e.Op, lt, rt)
	}
	return e
}

func (a *Analyzer) foldAssign(e *ast.AssignExpression, fn *function) ast.Expression {
	compound := e.Op != token.EQUAL
	e.Target = a.foldTarget(e.Target, fn, compound)
	e.Value = a.foldExpression(e.Value, fn)

	tt := e.Target.Type()
	e.SetType(ast.Unqualified(tt))
	if !a.checkModifiable(e.Target, "left operand of assignment") {
		return e
	}

	if !compound {
		e.Value = a.convert(e.Value, ast.Unqualified(tt), "assignment")
		return e
	}

	op := e.Op.CompoundOperator()
	vt := e.Value.Type()

	switch {
	case ast.IsPointer(tt) && (op == token.PLUS || op == token.MINUS) && ast.IsIntegral(vt):
		e.Value = a.scale(e.Value, a.pointeeSize(e.Pos, tt))
		e.OpType = e.Type()

	case !ast.IsArithmetic(tt) || !ast.IsArithmetic(vt):
		a.errorf(e.Pos, "invalid operands to %s (have '%s' and '%s')", e.Op, tt, vt)

	case op == token.SHIFT_LEFT || op == token.SHIFT_RIGHT:
		if !ast.IsIntegral(tt) || !ast.IsIntegral(vt) {
			a.errorf(e.Value.Position(), "invalid argument to shift")
			return e
		}
		e.OpType = a.nav.Promote(tt)
		e.Value = a.to(e.Value, a.nav.Promote(vt))

	default:
		if (op == token.PERCENT || op == token.AND || op == token.OR || op == token.CARET) &&
			(!ast.IsIntegral(tt) || !ast.IsIntegral(vt)) {
			a.errorf(e.Pos, "invalid operands to %s (have '%s' and '%s')", e.Op, tt, vt)
			return e
		}
		if (op == token.SLASH || op == token.PERCENT) && ast.IsIntegral(vt) && a.ev.Eval(e.Value).IsZero() {
			a.warn(config.WarnDivZero, e.Value.Position(), "division by zero")
		}
		e.OpType = a.nav.Common(tt, vt)
		e.Value = a.to(e.Value, e.OpType)
	}
	return e
}

func (a *Analyzer) foldCast(e *ast.CastExpression, fn *function) ast.Expression {
	e.Operand = a.foldExpression(e.Operand, fn)
	from, to := e.Operand.Type(), e.To
	e.SetType(ast.Unqualified(to))

	switch {
	case ast.IsVoid(to):
	case ast.IsVoid(from):
		a.errorf(e.Pos, "void value not ignored as it ought to be")
	case !ast.IsScalar(to):
		a.errorf(e.Pos, "conversion to non-scalar type requested ('%s')", to)
	case !ast.IsScalar(from):
		a.errorf(e.Pos, "cannot convert '%s' to '%s'", from, to)
	case (ast.IsPointer(to) && ast.IsFloating(from)) || (ast.IsFloating(to) && ast.IsPointer(from)):
		a.errorf(e.Pos, "cannot convert between pointer and floating type")
	}
	return e
}

func (a *Analyzer) foldConditional(e *ast.ConditionalExpression, fn *function) ast.Expression {
	e.Cond = a.foldScalar(e.Cond, fn, "conditional")
	if e.Then != nil {
		e.Then = a.foldExpression(e.Then, fn)
	}
	e.Else = a.foldExpression(e.Else, fn)

	then := e.Then
	if then == nil {
		then = e.Cond
	}
	tt, et := then.Type(), e.Else.Type()

	var result ast.Type
	switch {
	case ast.IsArithmetic(tt) && ast.IsArithmetic(et):
		result = a.nav.Common(tt, et)
	case ast.IsVoid(tt) && ast.IsVoid(et):
		result = tt
	case ast.IsRecord(tt) && ast.Equal(tt, et, ast.CmpIgnoreQual):
		result = ast.Unqualified(tt)
	case ast.IsPointer(tt) && ast.IsPointer(et):
		switch {
		case ast.IsVoidPointer(tt):
			result = tt
		case ast.IsVoidPointer(et):
			result = et
		default:
			if !ast.Equal(tt, et, ast.CmpIgnoreQual) {
				a.warn(config.WarnIncompatiblePtr, e.Pos, "pointer type mismatch in conditional expression")
			}
			result = tt
		}
	case ast.IsPointer(tt) && a.isNullConstant(e.Else):
		result = tt
	case ast.IsPointer(et) && a.isNullConstant(then):
		result = et
	default:
		a.errorf(e.Pos, "type mismatch in conditional expression ('%s' and '%s')", tt, et)
		e.SetType(tt)
		return e
	}

	if !ast.IsVoid(result) && !ast.IsRecord(result) {
		if e.Then != nil {
			e.Then = a.to(e.Then, result)
		}
		e.Else = a.to(e.Else, result)
	}
	e.SetType(result)
	return e
}

// implicitDecl declares an undeclared called function as `int name()`.
func (a *Analyzer) implicitDecl(id *ast.Identifier) {
	a.warn(config.WarnImplicitFunc, id.Pos, "implicit declaration of function '%s'", id.Name)

	global := id.Scope.Global()
	if d := global.LookupLocal(id.Name); d != nil {
		id.Decl = d
		return
	}
	d := &ast.Decl{
		Name:     id.Name,
		Type:     &ast.Function{NoProto: true, Return: a.nav.Int()},
		Storage:  ast.StorageExtern,
		Pos:      id.Pos,
		Implicit: true,
	}
	d.Sym = &ast.Symbol{Decl: d, Kind: ast.SymGlobal}
	d.MarkFolded()
	global.Declare(d)
	id.Decl = d
}

func (a *Analyzer) foldCall(e *ast.CallExpression, fn *function) ast.Expression {
	if id, ok := e.Callee.(*ast.Identifier); ok && id.Decl == nil && id.Enum == nil && id.Scope != nil {
		a.implicitDecl(id)
	}
	e.Callee = a.foldExpression(e.Callee, fn)

	sig := ast.FunctionOf(e.Callee.Type())
	if sig == nil {
		a.errorf(e.Pos, "called object is not a function (type '%s')", e.Callee.Type())
		for i := range e.Args {
			e.Args[i] = a.foldExpression(e.Args[i], fn)
		}
		e.SetType(a.nav.Int())
		return e
	}
	e.SetType(sig.Return)

	name := calleeName(e)
	if ast.IsRecord(sig.Return) {
		a.errorf(e.Pos, "returning struct by value is not supported ('%s')", name)
	}

	if !sig.NoProto {
		switch {
		case len(e.Args) < len(sig.Params):
			a.errorf(e.Pos, "too few arguments to function '%s'", name)
		case len(e.Args) > len(sig.Params) && !sig.Variadic:
			a.errorf(e.Pos, "too many arguments to function '%s'", name)
		}
	} else if d := calleeDecl(e); d != nil && d.Sym != nil {
		// an old-style declaration in scope, but a prototype elsewhere
		if def := d.Sym.Decl; def != nil {
			if proto, ok := def.Type.(*ast.Function); ok && !proto.NoProto && !proto.Variadic && len(proto.Params) != len(e.Args) {
				a.warn(config.WarnArgMismatch, e.Pos, "call to '%s' with %d arguments, but it takes %d",
					name, len(e.Args), len(proto.Params))
			}
		}
	}

	for i := range e.Args {
		arg := a.foldExpression(e.Args[i], fn)
		if ast.IsRecord(arg.Type()) {
			a.errorf(arg.Position(), "passing struct by value is not supported (argument %d of '%s')", i+1, name)
		}

		if i < len(sig.Params) && !sig.NoProto {
			arg = a.convert(arg, sig.Params[i], fmt.Sprintf("passing argument %d of '%s'", i+1, name))
		} else {
			arg = a.defaultPromote(arg)
		}
		e.Args[i] = arg
	}

	if d := calleeDecl(e); d != nil {
		a.checkFormat(e, d, sig)
	}
	return e
}

// defaultPromote applies the default argument promotions for variadic and
// unprototyped arguments.
func (a *Analyzer) defaultPromote(e ast.Expression) ast.Expression {
	t := e.Type()
	switch {
	case ast.IsIntegral(t):
		return a.to(e, a.nav.Promote(t))
	case ast.IsFloating(t):
		if p := t.(*ast.Primitive); p.Kind == ast.Float {
			return a.to(e, a.nav.Prim(ast.Double, false))
		}
	}
	return e
}

func calleeDecl(e *ast.CallExpression) *ast.Decl {
	callee := e.Callee
	if c, ok := callee.(*ast.CastExpression); ok && c.Implicit {
		callee = c.Operand
	}
	if id, ok := callee.(*ast.Identifier); ok {
		return id.Decl
	}
	return nil
}

func calleeName(e *ast.CallExpression) string {
	if d := calleeDecl(e); d != nil {
		return d.Name
	}
	return "<function pointer>"
}

// lookupField finds a member by name, descending into anonymous members.
// The returned field carries its offset from the start of def.
func lookupField(def *ast.RecordDef, name string) *ast.Field {
	if f := def.Field(name); f != nil {
		return f
	}
	for _, f := range def.Fields {
		if f.Name != "" {
			continue
		}
		r, ok := f.Type.(*ast.Record)
		if !ok {
			continue
		}
		if inner := lookupField(r.Def, name); inner != nil {
			nested := *inner
			nested.Offset += f.Offset
			return &nested
		}
	}
	return nil
}

// foldMember folds a member access. `a.b` is rewritten to `(&a)->b` so the
// generator only sees pointer member accesses.
func (a *Analyzer) foldMember(e *ast.MemberExpression, fn *function) ast.Expression {
	var rec *ast.Record
	var qual ast.Qualifier

	if e.Arrow {
		e.Object = a.foldExpression(e.Object, fn)
		pt, ok := e.Object.Type().(*ast.Pointer)
		if ok {
			rec, ok = pt.Elem.(*ast.Record)
		}
		if !ok {
			a.errorf(e.Pos, "'%s' is not a pointer-to-struct or union (member %s)", e.Object.Type(), e.Name)
			e.SetType(a.nav.Int())
			return e
		}
		qual = rec.Qual
	} else {
		e.Object = a.fold(e.Object, fn)
		r, ok := e.Object.Type().(*ast.Record)
		if !ok {
			a.errorf(e.Pos, "'%s' is not a struct or union (member %s)", e.Object.Type(), e.Name)
			e.SetType(a.nav.Int())
			return e
		}
		if !isLvalue(e.Object) {
			a.errorf(e.Pos, "member access on a struct rvalue is not supported (member %s)", e.Name)
		}
		rec, qual = r, r.Qual
		e.Object = synth(ast.NewUnary(e.Object.Position(), token.AND, e.Object), a.nav.PointerTo(r))
		e.Arrow = true
	}

	if !rec.Def.Complete {
		a.errorf(e.Pos, "dereferencing pointer to incomplete type (%s)", rec)
		e.SetType(a.nav.Int())
		return e
	}

	f := lookupField(rec.Def, e.Name)
	if f == nil {
		a.errorf(e.Pos, "no member named '%s' in '%s'", e.Name, rec)
		e.SetType(a.nav.Int())
		return e
	}
	e.Field = f

	t := f.Type
	if qual != 0 {
		t = t.WithQualifiers(t.Qualifiers() | qual)
	}
	e.SetType(t)
	return e
}

func (a *Analyzer) foldSizeof(e *ast.SizeofExpression, fn *function) ast.Expression {
	e.SetType(a.nav.SizeT())

	t := e.Of
	if t == nil {
		e.Operand = a.fold(e.Operand, fn)
		t = e.Operand.Type()
		if m, ok := e.Operand.(*ast.MemberExpression); ok && m.Field != nil && m.Field.IsBitField() {
			a.errorf(e.Pos, "'sizeof' applied to a bit-field")
		}
	}

	what := "sizeof"
	if e.Align {
		what = "_Alignof"
	}
	switch {
	case ast.IsFunction(t):
		a.errorf(e.Pos, "invalid application of '%s' to a function type", what)
		e.Value = 1
	case !ast.IsComplete(t) && !ast.IsVoid(t):
		a.errorf(e.Pos, "invalid application of '%s' to incomplete type '%s'", what, t)
		e.Value = 1
	case e.Align:
		e.Value = a.nav.Align(t)
	default:
		e.Value = a.nav.Size(t)
	}
	return e
}
