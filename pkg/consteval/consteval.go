// Package consteval classifies folded expressions as compile-time constants.
//
// Eval is pure: it reads the tree the analyzer produced and never changes
// it, so the analyzer (diagnostics, initialiser checks) and the generator
// (data sections, dead branches) can ask the same question at any time.
package consteval

import (
	"math"

	"github.com/kartiknair/mycc/pkg/ast"
	"github.com/kartiknair/mycc/pkg/token"
)

type Kind int

const (
	// None is not a constant.
	None Kind = iota
	// Value is a known integer or floating value.
	Value
	// Addr is the address of a static object plus a byte offset.
	Addr
	// NeedAddr is a static object whose address, not value, is constant.
	NeedAddr
	// String is a string literal plus a byte offset.
	String
)

func (k Kind) String() string {
	return [...]string{"none", "value", "address", "need-address", "string"}[k]
}

type Const struct {
	Kind Kind

	Int     int64
	Float   float64
	IsFloat bool

	// Decl or Str is the base of an Addr, NeedAddr or String constant.
	Decl   *ast.Decl
	Str    *ast.StringLiteral
	Offset int64
}

func value(v int64) Const {
	return Const{Kind: Value, Int: v}
}

func float(v float64) Const {
	return Const{Kind: Value, Float: v, IsFloat: true}
}

// IsZero reports a known integer zero, or a null pointer constant.
func (c Const) IsZero() bool {
	return c.Kind == Value && !c.IsFloat && c.Int == 0
}

// Truth reports the boolean value of a constant condition. ok is false
// when the condition is not known at compile time.
func (c Const) Truth() (truth bool, ok bool) {
	switch c.Kind {
	case Value:
		if c.IsFloat {
			return c.Float != 0, true
		}
		return c.Int != 0, true
	case Addr, String:
		// the address of an object is never null
		return true, true
	}
	return false, false
}

// Evaluator holds the target layout needed to truncate results.
type Evaluator struct {
	nav *ast.TypeNav
}

func New(nav *ast.TypeNav) *Evaluator {
	return &Evaluator{nav: nav}
}

// Truncate wraps v to the width and signedness of t.
func (ev *Evaluator) Truncate(v int64, t ast.Type) int64 {
	if ast.IsPointer(t) {
		return truncate(v, ev.nav.WordSize, false)
	}
	if !ast.IsIntegral(t) {
		return v
	}
	if p, ok := t.(*ast.Primitive); ok && p.Kind == ast.Bool {
		if v != 0 {
			return 1
		}
		return 0
	}
	return truncate(v, ev.nav.Size(t), ast.IsSigned(t))
}

func truncate(v int64, size int64, signed bool) int64 {
	if size >= 8 {
		return v
	}
	bits := uint(size * 8)
	if signed {
		return v << (64 - bits) >> (64 - bits)
	}
	return int64(uint64(v) & (1<<bits - 1))
}

func unsigned(t ast.Type) bool {
	return ast.IsPointer(t) || (ast.IsIntegral(t) && !ast.IsSigned(t))
}

// Eval classifies a folded expression.
func (ev *Evaluator) Eval(e ast.Expression) Const {
	switch e := e.(type) {
	case *ast.IntLiteral:
		return value(ev.Truncate(int64(e.Value), e.Type()))

	case *ast.FloatLiteral:
		return float(e.Value)

	case *ast.StringLiteral:
		return Const{Kind: String, Str: e}

	case *ast.SizeofExpression:
		return value(e.Value)

	case *ast.Identifier:
		return ev.identifier(e)

	case *ast.CastExpression:
		return ev.cast(e)

	case *ast.UnaryExpression:
		return ev.unary(e)

	case *ast.BinaryExpression:
		return ev.binary(e)

	case *ast.ConditionalExpression:
		cond := ev.Eval(e.Cond)
		truth, ok := cond.Truth()
		if !ok {
			return Const{}
		}
		if truth {
			if e.Then == nil {
				return cond
			}
			return ev.Eval(e.Then)
		}
		return ev.Eval(e.Else)

	case *ast.MemberExpression:
		if e.Field == nil || e.Field.IsBitField() {
			return Const{}
		}
		base := ev.Eval(e.Object)
		if base.Kind != Addr {
			return Const{}
		}
		base.Kind = NeedAddr
		base.Offset += e.Field.Offset
		return base

	case *ast.BuiltinCall:
		return ev.builtin(e)
	}

	return Const{}
}

func (ev *Evaluator) identifier(e *ast.Identifier) Const {
	if e.Enum != nil {
		return value(e.Enum.Value)
	}
	d := e.Decl
	if d == nil || !d.StaticDuration() {
		return Const{}
	}
	if d.Attr(ast.AttrWeak) != nil {
		return Const{}
	}
	return Const{Kind: NeedAddr, Decl: d}
}

func (ev *Evaluator) cast(e *ast.CastExpression) Const {
	from := e.Operand.Type()
	c := ev.Eval(e.Operand)

	// array and function designators decay to their address
	if ast.IsArray(from) || ast.IsFunction(from) {
		switch c.Kind {
		case NeedAddr:
			c.Kind = Addr
		case String:
		default:
			return Const{}
		}
		return c
	}

	if c.Kind != Value {
		if ast.IsPointer(e.To) || ev.nav.Size(e.To) >= ev.nav.WordSize {
			return c
		}
		// an address does not fit in a narrower integer
		return Const{}
	}

	switch {
	case ast.IsVoid(e.To):
		return Const{}
	case ast.IsFloating(e.To):
		if c.IsFloat {
			if p, ok := e.To.(*ast.Primitive); ok && p.Kind == ast.Float {
				return float(float64(float32(c.Float)))
			}
			return c
		}
		if unsigned(from) {
			return float(float64(uint64(c.Int)))
		}
		return float(float64(c.Int))
	case c.IsFloat:
		if unsigned(e.To) {
			return value(ev.Truncate(int64(uint64(c.Float)), e.To))
		}
		return value(ev.Truncate(int64(c.Float), e.To))
	}
	return value(ev.Truncate(c.Int, e.To))
}

func (ev *Evaluator) unary(e *ast.UnaryExpression) Const {
	c := ev.Eval(e.Operand)

	switch e.Op {
	case token.AND:
		if c.Kind == NeedAddr {
			c.Kind = Addr
			return c
		}
		return Const{}

	case token.STAR:
		switch c.Kind {
		case Addr:
			c.Kind = NeedAddr
			return c
		case String:
			// "abc"[1]
			if c.Offset >= 0 && c.Offset <= int64(len(c.Str.Value)) && !c.Str.Wide {
				var ch byte
				if c.Offset < int64(len(c.Str.Value)) {
					ch = c.Str.Value[c.Offset]
				}
				return value(ev.Truncate(int64(ch), e.Type()))
			}
		}
		return Const{}
	}

	if c.Kind != Value {
		if e.Op == token.BANG && (c.Kind == Addr || c.Kind == String) {
			return value(0)
		}
		return Const{}
	}

	switch e.Op {
	case token.PLUS:
		return c
	case token.MINUS:
		if c.IsFloat {
			return float(-c.Float)
		}
		return value(ev.Truncate(-c.Int, e.Type()))
	case token.TILDE:
		return value(ev.Truncate(^c.Int, e.Type()))
	case token.BANG:
		t, _ := c.Truth()
		if t {
			return value(0)
		}
		return value(1)
	}
	return Const{}
}

func boolValue(b bool) Const {
	if b {
		return value(1)
	}
	return value(0)
}

func (ev *Evaluator) binary(e *ast.BinaryExpression) Const {
	l := ev.Eval(e.Left)

	switch e.Op {
	case token.AND_AND, token.OR_OR:
		lt, ok := l.Truth()
		if !ok {
			return Const{}
		}
		if e.Op == token.AND_AND && !lt {
			return value(0)
		}
		if e.Op == token.OR_OR && lt {
			return value(1)
		}
		rt, ok := ev.Eval(e.Right).Truth()
		if !ok {
			return Const{}
		}
		return boolValue(rt)
	}

	r := ev.Eval(e.Right)

	if l.Kind == Value && r.Kind == Value {
		if l.IsFloat || r.IsFloat {
			return ev.floatOp(e, l, r)
		}
		return ev.intOp(e, l.Int, r.Int)
	}

	// address arithmetic; integer operands were scaled by the analyzer
	isAddr := func(c Const) bool { return c.Kind == Addr || c.Kind == String }
	switch e.Op {
	case token.PLUS:
		switch {
		case isAddr(l) && r.Kind == Value && !r.IsFloat:
			l.Offset += r.Int
			return l
		case isAddr(r) && l.Kind == Value && !l.IsFloat:
			r.Offset += l.Int
			return r
		}
	case token.MINUS:
		switch {
		case isAddr(l) && r.Kind == Value && !r.IsFloat:
			l.Offset -= r.Int
			return l
		case isAddr(l) && isAddr(r) && l.Decl == r.Decl && l.Str == r.Str:
			diff := l.Offset - r.Offset
			if e.PtrDiff > 1 {
				diff /= e.PtrDiff
			}
			return value(diff)
		}
	case token.EQUAL_EQUAL, token.BANG_EQUAL:
		// a static address against a null pointer constant
		if (isAddr(l) && r.IsZero()) || (isAddr(r) && l.IsZero()) {
			return boolValue(e.Op == token.BANG_EQUAL)
		}
	}
	return Const{}
}

func (ev *Evaluator) intOp(e *ast.BinaryExpression, a, b int64) Const {
	opType := e.Left.Type()
	u := unsigned(opType)

	var v int64
	switch e.Op {
	case token.PLUS:
		v = a + b
	case token.MINUS:
		v = a - b
		if e.PtrDiff > 1 {
			v /= e.PtrDiff
		}
	case token.STAR:
		v = a * b
	case token.SLASH, token.PERCENT:
		if b == 0 {
			return Const{}
		}
		switch {
		case u && e.Op == token.SLASH:
			v = int64(uint64(a) / uint64(b))
		case u:
			v = int64(uint64(a) % uint64(b))
		case a == math.MinInt64 && b == -1:
			return Const{}
		case e.Op == token.SLASH:
			v = a / b
		default:
			v = a % b
		}
	case token.SHIFT_LEFT:
		v = a << uint64(b)
	case token.SHIFT_RIGHT:
		if u {
			v = int64(uint64(a) >> uint64(b))
		} else {
			v = a >> uint64(b)
		}
	case token.AND:
		v = a & b
	case token.OR:
		v = a | b
	case token.CARET:
		v = a ^ b
	case token.EQUAL_EQUAL:
		return boolValue(a == b)
	case token.BANG_EQUAL:
		return boolValue(a != b)
	case token.LESSER:
		if u {
			return boolValue(uint64(a) < uint64(b))
		}
		return boolValue(a < b)
	case token.GREATER:
		if u {
			return boolValue(uint64(a) > uint64(b))
		}
		return boolValue(a > b)
	case token.LESSER_EQUAL:
		if u {
			return boolValue(uint64(a) <= uint64(b))
		}
		return boolValue(a <= b)
	case token.GREATER_EQUAL:
		if u {
			return boolValue(uint64(a) >= uint64(b))
		}
		return boolValue(a >= b)
	default:
		return Const{}
	}
	return value(ev.Truncate(v, e.Type()))
}

func (ev *Evaluator) floatOp(e *ast.BinaryExpression, l, r Const) Const {
	a, b := l.Float, r.Float
	if !l.IsFloat {
		a = float64(l.Int)
	}
	if !r.IsFloat {
		b = float64(r.Int)
	}

	switch e.Op {
	case token.PLUS:
		return float(a + b)
	case token.MINUS:
		return float(a - b)
	case token.STAR:
		return float(a * b)
	case token.SLASH:
		return float(a / b)
	case token.EQUAL_EQUAL:
		return boolValue(a == b)
	case token.BANG_EQUAL:
		return boolValue(a != b)
	case token.LESSER:
		return boolValue(a < b)
	case token.GREATER:
		return boolValue(a > b)
	case token.LESSER_EQUAL:
		return boolValue(a <= b)
	case token.GREATER_EQUAL:
		return boolValue(a >= b)
	}
	return Const{}
}

func (ev *Evaluator) builtin(e *ast.BuiltinCall) Const {
	switch e.Builtin {
	case ast.BuiltinTypesCompatible:
		if len(e.Types) != 2 {
			return Const{}
		}
		return boolValue(ast.Equal(ast.Unqualified(e.Types[0]), ast.Unqualified(e.Types[1]), ast.CmpIgnoreQual))

	case ast.BuiltinConstantP:
		if len(e.Args) != 1 {
			return Const{}
		}
		switch ev.Eval(e.Args[0]).Kind {
		case Value, Addr, String:
			return value(1)
		}
		return value(0)

	case ast.BuiltinExpect:
		if len(e.Args) != 2 {
			return Const{}
		}
		return ev.Eval(e.Args[0])

	case ast.BuiltinStrlen:
		if len(e.Args) != 1 {
			return Const{}
		}
		s := ev.Eval(e.Args[0])
		if s.Kind != String || s.Str.Wide || s.Offset < 0 || s.Offset > int64(len(s.Str.Value)) {
			return Const{}
		}
		rest := s.Str.Value[s.Offset:]
		for i := 0; i < len(rest); i++ {
			if rest[i] == 0 {
				return value(int64(i))
			}
		}
		return value(int64(len(rest)))
	}
	return Const{}
}
