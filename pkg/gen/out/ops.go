package out

import (
	"math"

	"github.com/kartiknair/mycc/pkg/ast"
	"github.com/kartiknair/mycc/pkg/diag"
)

// Registers hold integers extended to 64 bits according to the signedness
// of their type, so every integer operation can run at full width and
// only narrows its result.

type ArithOp int

const (
	OpAdd ArithOp = iota
	OpSub
	OpMul
	OpDiv
	OpMod
	OpAnd
	OpOr
	OpXor
	OpShl
	OpShr
)

var intOpcodes = [...]Opcode{
	OpAdd: IAdd,
	OpSub: ISub,
	OpMul: IMul,
	OpAnd: IAnd,
	OpOr:  IOr,
	OpXor: IXor,
}

var floatOpcodes = [...]Opcode{
	OpAdd: IAddF,
	OpSub: ISubF,
	OpMul: IMulF,
	OpDiv: IDivF,
}

func (c *Ctx) Const(v int64, t ast.Type) *Value {
	val := c.newValue(LocConstInt, t)
	val.Int = v
	return val
}

func (c *Ctx) ConstFloat(f float64, t ast.Type) *Value {
	val := c.newValue(LocConstFloat, t)
	val.Float = f
	return val
}

// Symbol is the address of a named object or function. local symbols are
// defined in this unit and never go through the global offset table.
func (c *Ctx) Symbol(name string, local bool, t ast.Type) *Value {
	v := c.newValue(LocLabel, t)
	v.Label = name
	switch {
	case !c.opts.PIC:
		v.PIC = PICNone
	case local:
		v.PIC = PICLocal
	default:
		v.PIC = PICGot
	}
	return v
}

// FrameAddr is the address of the frame slot at off.
func (c *Ctx) FrameAddr(off int64, t ast.Type) *Value {
	v := c.newValue(LocReg, t)
	v.Reg = frameBase
	v.Offset = off
	return v
}

func (c *Ctx) isFloat(v *Value) bool {
	switch v.Loc {
	case LocConstFloat:
		return true
	case LocReg:
		return v.Reg.Float
	case LocRegSpilt:
		return ast.IsFloating(v.Type)
	}
	return false
}

// FloatBits is the IEEE image of f at size 4 or 8.
func FloatBits(f float64, size int64) int64 {
	if size == 4 {
		return int64(math.Float32bits(float32(f)))
	}
	return int64(math.Float64bits(f))
}

// loadInto copies the value of v into r. v keeps its own location.
func (c *Ctx) loadInto(v *Value, r Reg) {
	switch v.Loc {
	case LocConstInt:
		if r.Float {
			diag.ICEAt(c.pos, "integer constant loaded into %s", r)
		}
		c.emit(Insn{Op: IMov, Size: 8, Src: imm(v.Int), Dst: reg(r)})

	case LocConstFloat:
		bits := FloatBits(v.Float, c.nav.Size(v.Type))
		if !r.Float {
			c.emit(Insn{Op: IMov, Size: 8, Src: imm(bits), Dst: reg(r)})
			return
		}
		tmp := c.allocReg(false)
		c.emit(Insn{Op: IMov, Size: 8, Src: imm(bits), Dst: reg(tmp)})
		c.emit(Insn{Op: IMovQ, Size: 8, Src: reg(tmp), Dst: reg(r)})

	case LocReg:
		if v.Offset != 0 || v.Reg.frameConst() {
			c.emit(Insn{Op: ILea, Size: 8, Src: mem(v.Reg, v.Offset), Dst: reg(r)})
			return
		}
		if v.Reg == r {
			return
		}
		switch {
		case v.Reg.Float && r.Float:
			c.emit(Insn{Op: IMovF, Size: 8, Src: reg(v.Reg), Dst: reg(r)})
		case v.Reg.Float != r.Float:
			c.emit(Insn{Op: IMovQ, Size: 8, Src: reg(v.Reg), Dst: reg(r)})
		default:
			c.emit(Insn{Op: IMov, Size: 8, Src: reg(v.Reg), Dst: reg(r)})
		}

	case LocRegSpilt:
		op := IMov
		if r.Float {
			op = IMovF
		}
		c.emit(Insn{Op: op, Size: 8, Src: mem(v.Reg, v.Offset), Dst: reg(r)})

	case LocLabel:
		switch v.PIC {
		case PICGot:
			c.emit(Insn{Op: IMov, Size: 8, Src: Operand{Kind: KGot, Sym: v.Label}, Dst: reg(r)})
			if v.Offset != 0 {
				c.emit(Insn{Op: ILea, Size: 8, Src: mem(r, v.Offset), Dst: reg(r)})
			}
		case PICLocal:
			c.emit(Insn{Op: ILea, Size: 8, Src: Operand{Kind: KSymMem, Sym: v.Label, Disp: v.Offset, PIC: PICLocal}, Dst: reg(r)})
		default:
			c.emit(Insn{Op: IMov, Size: 8, Src: Operand{Kind: KSym, Sym: v.Label, Disp: v.Offset}, Dst: reg(r)})
		}

	case LocFlag:
		if c.flag != v {
			diag.ICEAt(c.pos, "stale flag value %s", v)
		}
		c.materializeFlag()
		c.loadInto(v, r)
	}
}

// ToReg moves v into a register of its own and returns it.
func (c *Ctx) ToReg(v *Value) *Value {
	switch {
	case v.Loc == LocFlag:
		if c.flag != v {
			diag.ICEAt(c.pos, "stale flag value %s", v)
		}
		c.materializeFlag()
		return v
	case v.Loc == LocReg && !v.Reg.frameConst():
		if v.Offset != 0 {
			c.emit(Insn{Op: ILea, Size: 8, Src: mem(v.Reg, v.Offset), Dst: reg(v.Reg)})
			v.Offset = 0
		}
		return v
	}

	r := c.allocReg(ast.IsFloating(v.Type))
	c.pinned[r]++
	c.loadInto(v, r)
	c.pinned[r]--

	v.Loc = LocReg
	v.Reg = r
	v.Offset = 0
	c.owner[r] = v
	return v
}

// operand returns v as an integer source operand, keeping small constants
// as immediates and spilt values in memory.
func (c *Ctx) operand(v *Value) Operand {
	switch v.Loc {
	case LocConstInt:
		if fitsImm32(v.Int) {
			return imm(v.Int)
		}
	case LocRegSpilt:
		return mem(v.Reg, v.Offset)
	}
	return reg(c.ToReg(v).Reg)
}

// floatOperand is operand for floating values, which have no immediates.
func (c *Ctx) floatOperand(v *Value) Operand {
	if v.Loc == LocRegSpilt {
		return mem(v.Reg, v.Offset)
	}
	return reg(c.ToReg(v).Reg)
}

// memOperand addresses the memory addr points at.
func (c *Ctx) memOperand(addr *Value) Operand {
	switch addr.Loc {
	case LocReg:
		return mem(addr.Reg, addr.Offset)
	case LocLabel:
		if addr.PIC != PICGot {
			return Operand{Kind: KSymMem, Sym: addr.Label, Disp: addr.Offset, PIC: addr.PIC}
		}
	}
	c.ToReg(addr)
	return mem(addr.Reg, 0)
}

func withDisp(op Operand, d int64) Operand {
	op.Disp += d
	return op
}

// Retype gives v the type t without changing its bits.
func (c *Ctx) Retype(v *Value, t ast.Type) *Value {
	if v.retains == 1 {
		v.Type = t
		return v
	}
	switch {
	case v.Loc == LocConstInt, v.Loc == LocConstFloat, v.Loc == LocLabel,
		v.Loc == LocReg && v.Reg.frameConst():
		nv := c.newValue(v.Loc, t)
		nv.Int, nv.Float = v.Int, v.Float
		nv.Reg, nv.Offset = v.Reg, v.Offset
		nv.Label, nv.PIC = v.Label, v.PIC
		c.Consume(v)
		return nv
	}
	return c.reuse(v, t)
}

// AddOffset adds a constant byte offset to an address.
func (c *Ctx) AddOffset(v *Value, off int64, t ast.Type) *Value {
	if off == 0 {
		return c.Retype(v, t)
	}
	switch v.Loc {
	case LocConstInt:
		c.Consume(v)
		return c.Const(v.Int+off, t)
	case LocReg, LocLabel:
		v = c.Retype(v, t)
		v.Offset += off
		return v
	}
	return c.Op(OpAdd, v, c.Const(off, c.nav.IntPtr()), t)
}

// normalize re-extends the low bytes of a register value to the full
// register according to t.
func (c *Ctx) normalize(v *Value, t ast.Type) {
	if ast.IsFloating(t) || v.Loc != LocReg {
		return
	}
	size := c.nav.Size(t)
	if size >= 8 {
		return
	}
	op := IMovZX
	if ast.IsSigned(t) {
		op = IMovSX
	}
	c.emit(Insn{Op: op, Size: 8, SrcSize: size, Src: reg(v.Reg), Dst: reg(v.Reg)})
}

// Deref loads the object of type t at addr. Arrays, functions and records
// stay addresses.
func (c *Ctx) Deref(addr *Value, t ast.Type) *Value {
	switch t.(type) {
	case *ast.Array, *ast.Function, *ast.Record:
		return c.Retype(addr, t)
	}

	float := ast.IsFloating(t)
	src := c.memOperand(addr)

	var r Reg
	if !float && addr.retains == 1 && addr.Loc == LocReg && !addr.Reg.frameConst() {
		r = addr.Reg
	} else {
		c.lock(addr)
		r = c.allocReg(float)
		c.unlock(addr)
	}
	c.Consume(addr)

	v := c.newValue(LocReg, t)
	v.Reg = r
	c.owner[r] = v

	size := c.nav.Size(t)
	switch {
	case float:
		c.emit(Insn{Op: IMovF, Size: size, Src: src, Dst: reg(r)})
	case size >= 8:
		c.emit(Insn{Op: IMov, Size: 8, Src: src, Dst: reg(r)})
	case ast.IsSigned(t):
		c.emit(Insn{Op: IMovSX, Size: 8, SrcSize: size, Src: src, Dst: reg(r)})
	default:
		c.emit(Insn{Op: IMovZX, Size: 8, SrcSize: size, Src: src, Dst: reg(r)})
	}
	return v
}

// Store writes val, an object of type t, to addr. Records are copied from
// the address val holds.
func (c *Ctx) Store(addr, val *Value, t ast.Type) {
	if rec, ok := t.(*ast.Record); ok {
		c.Memcpy(addr, val, rec.Def.Size)
		return
	}

	size := c.nav.Size(t)
	var src Operand
	op := IMov
	switch {
	case ast.IsFloating(t):
		op = IMovF
		src = reg(c.ToReg(val).Reg)
	case val.Loc == LocConstInt && fitsImm32(val.Int):
		src = imm(val.Int)
	default:
		src = reg(c.ToReg(val).Reg)
	}

	c.lock(val)
	dst := c.memOperand(addr)
	c.unlock(val)

	c.emit(Insn{Op: op, Size: size, Src: src, Dst: dst})
	c.Consume(val)
	c.Consume(addr)
}

// Op computes a op b in type t. Both operands are consumed.
func (c *Ctx) Op(op ArithOp, a, b *Value, t ast.Type) *Value {
	c.materializeFlag()

	if ast.IsFloating(t) {
		return c.floatOp(op, a, b, t)
	}
	switch op {
	case OpDiv, OpMod:
		return c.divide(op, a, b, t)
	case OpShl, OpShr:
		return c.shift(op, a, b, t)
	}

	dst := c.reuse(a, t)
	c.lock(dst)
	src := c.operand(b)
	c.unlock(dst)

	c.emit(Insn{Op: intOpcodes[op], Size: 8, Src: src, Dst: reg(dst.Reg)})
	c.Consume(b)
	c.normalize(dst, t)
	return dst
}

func (c *Ctx) floatOp(op ArithOp, a, b *Value, t ast.Type) *Value {
	if int(op) >= len(floatOpcodes) {
		diag.ICEAt(c.pos, "invalid floating operator %d", op)
	}
	dst := c.reuse(a, t)
	c.lock(dst)
	src := c.floatOperand(b)
	c.unlock(dst)

	c.emit(Insn{Op: floatOpcodes[op], Size: c.nav.Size(t), Src: src, Dst: reg(dst.Reg)})
	c.Consume(b)
	return dst
}

// divide sign- or zero-extends the dividend into %rdx:%rax and divides.
func (c *Ctx) divide(op ArithOp, a, b *Value, t ast.Type) *Value {
	rax, rdx := Reg{Idx: RAX}, Reg{Idx: RDX}
	c.claim(rax)
	c.claim(rdx)

	c.loadInto(a, rax)
	c.Consume(a)

	var src Operand
	if b.Loc == LocRegSpilt {
		src = mem(b.Reg, b.Offset)
	} else {
		src = reg(c.ToReg(b).Reg)
	}

	if ast.IsSigned(t) {
		c.emit(Insn{Op: ICqo, Size: 8})
		c.emit(Insn{Op: IIDiv, Size: 8, Src: src})
	} else {
		c.emit(Insn{Op: IXor, Size: 4, Src: reg(rdx), Dst: reg(rdx)})
		c.emit(Insn{Op: IDiv, Size: 8, Src: src})
	}
	c.Consume(b)

	res := rax
	if op == OpMod {
		res = rdx
	}
	c.unclaim(rax, rdx)

	v := c.newValue(LocReg, t)
	v.Reg = res
	c.owner[res] = v
	c.normalize(v, t)
	return v
}

func (c *Ctx) shift(op ArithOp, a, b *Value, t ast.Type) *Value {
	code := IShl
	if op == OpShr {
		code = IShr
		if ast.IsSigned(t) {
			code = ISar
		}
	}

	if b.Loc == LocConstInt {
		dst := c.reuse(a, t)
		c.emit(Insn{Op: code, Size: 8, Src: imm(b.Int & 63), Dst: reg(dst.Reg)})
		c.Consume(b)
		c.normalize(dst, t)
		return dst
	}

	rcx := Reg{Idx: RCX}
	c.claim(rcx)
	c.loadInto(b, rcx)
	c.Consume(b)

	dst := c.reuse(a, t)
	c.emit(Insn{Op: code, Size: 8, Src: reg(rcx), Dst: reg(dst.Reg)})
	c.unclaim(rcx)
	c.normalize(dst, t)
	return dst
}

// Cmp compares a with b and leaves the result in the flags. Operands are
// consumed; the result is an int that reads as 0 or 1.
func (c *Ctx) Cmp(cmp Cmp, a, b *Value, t ast.Type) *Value {
	c.materializeFlag()

	unsigned := true
	size := int64(8)
	op := ICmp
	var src Operand

	c.ToReg(a)
	c.lock(a)
	if ast.IsFloating(a.Type) {
		op = IUcomi
		size = c.nav.Size(a.Type)
		src = c.floatOperand(b)
	} else {
		unsigned = !ast.IsSigned(a.Type)
		src = c.operand(b)
	}
	c.unlock(a)

	c.emit(Insn{Op: op, Size: size, Src: src, Dst: reg(a.Reg)})
	c.Consume(a)
	c.Consume(b)

	v := c.newValue(LocFlag, t)
	v.Cond = Cond{Cmp: cmp, Unsigned: unsigned}
	c.flag = v
	return v
}

// Neg negates a.
func (c *Ctx) Neg(a *Value, t ast.Type) *Value {
	c.materializeFlag()

	if !ast.IsFloating(t) {
		dst := c.reuse(a, t)
		c.emit(Insn{Op: INeg, Size: 8, Dst: reg(dst.Reg)})
		c.normalize(dst, t)
		return dst
	}

	// 0 - a
	r := c.allocReg(true)
	v := c.newValue(LocReg, t)
	v.Reg = r
	c.owner[r] = v
	c.emit(Insn{Op: IXorF, Size: c.nav.Size(t), Src: reg(r), Dst: reg(r)})
	c.lock(v)
	src := c.floatOperand(a)
	c.unlock(v)
	c.emit(Insn{Op: ISubF, Size: c.nav.Size(t), Src: src, Dst: reg(r)})
	c.Consume(a)
	return v
}

// Not is the bitwise complement of a.
func (c *Ctx) Not(a *Value, t ast.Type) *Value {
	dst := c.reuse(a, t)
	c.emit(Insn{Op: INot, Size: 8, Dst: reg(dst.Reg)})
	c.normalize(dst, t)
	return dst
}

func isBool(t ast.Type) bool {
	p, ok := t.(*ast.Primitive)
	return ok && p.Kind == ast.Bool
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

// Cast converts v to the type to.
func (c *Ctx) Cast(v *Value, to ast.Type) *Value {
	from := v.Type

	switch {
	case ast.IsVoid(to):
		c.Consume(v)
		return nil

	case !ast.IsScalar(to) || !ast.IsScalar(from):
		return c.Retype(v, to)

	case isBool(to):
		switch v.Loc {
		case LocConstInt:
			c.Consume(v)
			return c.Const(b2i(v.Int != 0), to)
		case LocConstFloat:
			c.Consume(v)
			return c.Const(b2i(v.Float != 0), to)
		case LocFlag:
			return c.Retype(v, to)
		}
		if ast.IsFloating(from) {
			return c.Cmp(CmpNe, v, c.ConstFloat(0, from), to)
		}
		return c.Cmp(CmpNe, v, c.Const(0, from), to)

	case ast.IsFloating(to) && ast.IsFloating(from):
		if v.Loc == LocConstFloat {
			c.Consume(v)
			f := v.Float
			if c.nav.Size(to) == 4 {
				f = float64(float32(f))
			}
			return c.ConstFloat(f, to)
		}
		if c.nav.Size(to) == c.nav.Size(from) {
			return c.Retype(v, to)
		}
		return c.convert(ICvtFF, v, to, true)

	case ast.IsFloating(to):
		if v.Loc == LocConstInt {
			c.Consume(v)
			if ast.IsSigned(from) {
				return c.ConstFloat(float64(v.Int), to)
			}
			return c.ConstFloat(float64(uint64(v.Int)), to)
		}
		return c.convert(ICvtIF, v, to, true)

	case ast.IsFloating(from):
		if v.Loc == LocConstFloat {
			c.Consume(v)
			return c.Const(truncate(int64(v.Float), c.nav.Size(to), ast.IsSigned(to)), to)
		}
		dst := c.convert(ICvtFI, v, to, false)
		c.normalize(dst, to)
		return dst
	}

	size := c.nav.Size(to)
	switch {
	case v.Loc == LocConstInt:
		c.Consume(v)
		return c.Const(truncate(v.Int, size, ast.IsSigned(to)), to)
	case v.Loc == LocFlag:
		return c.Retype(v, to)
	case size >= 8 || (size == c.nav.Size(from) && ast.IsSigned(to) == ast.IsSigned(from)):
		return c.Retype(v, to)
	}
	c.materializeFlag()
	dst := c.reuse(v, to)
	c.normalize(dst, to)
	return dst
}

func b2i(b bool) int64 {
	if b {
		return 1
	}
	return 0
}

// convert emits one conversion instruction into a fresh register of the
// class of to.
func (c *Ctx) convert(op Opcode, v *Value, to ast.Type, toFloat bool) *Value {
	c.ToReg(v)
	c.lock(v)
	r := c.allocReg(toFloat)
	c.unlock(v)

	srcSize := c.nav.Size(v.Type)
	if op == ICvtIF {
		srcSize = 8
	}
	size := int64(8)
	if toFloat {
		size = c.nav.Size(to)
	}
	c.emit(Insn{Op: op, Size: size, SrcSize: srcSize, Src: reg(v.Reg), Dst: reg(r)})
	c.Consume(v)

	dst := c.newValue(LocReg, to)
	dst.Reg = r
	c.owner[r] = dst
	return dst
}

// Call calls callee with args under the System V calling convention and
// returns the result, or nil for void.
func (c *Ctx) Call(callee *Value, args []*Value, sig *ast.Function) *Value {
	c.spillAll()

	var intArgs, floatArgs, stackArgs []*Value
	for _, a := range args {
		switch {
		case c.isFloat(a) && len(floatArgs) < FloatArgRegs:
			floatArgs = append(floatArgs, a)
		case !c.isFloat(a) && len(intArgs) < len(IntArgRegs):
			intArgs = append(intArgs, a)
		default:
			stackArgs = append(stackArgs, a)
		}
	}

	var claimed []Reg
	rsp := Reg{Idx: RSP}
	r11 := Reg{Idx: R11}

	area := int64(len(stackArgs)) * 8
	if len(stackArgs)%2 == 1 {
		c.emit(Insn{Op: ISub, Size: 8, Src: imm(8), Dst: reg(rsp)})
		area += 8
	}
	if len(stackArgs) > 0 {
		c.claim(r11)
		for i := len(stackArgs) - 1; i >= 0; i-- {
			c.loadInto(stackArgs[i], r11)
			c.emit(Insn{Op: IPush, Size: 8, Src: reg(r11)})
			c.Consume(stackArgs[i])
		}
		c.unclaim(r11)
	}

	for i, a := range intArgs {
		r := Reg{Idx: IntArgRegs[i]}
		c.claim(r)
		claimed = append(claimed, r)
		c.loadInto(a, r)
		c.Consume(a)
	}
	for i, a := range floatArgs {
		r := Reg{Idx: i, Float: true}
		c.claim(r)
		claimed = append(claimed, r)
		c.loadInto(a, r)
		c.Consume(a)
	}

	if sig.Variadic || sig.NoProto {
		rax := Reg{Idx: RAX}
		c.claim(rax)
		claimed = append(claimed, rax)
		c.emit(Insn{Op: IMov, Size: 4, Src: imm(int64(len(floatArgs))), Dst: reg(rax)})
	}

	if callee.Loc == LocLabel && callee.Offset == 0 {
		c.emit(Insn{Op: ICall, Target: callee.Label, PLT: callee.PIC == PICGot})
		c.Consume(callee)
	} else {
		c.claim(r11)
		claimed = append(claimed, r11)
		c.loadInto(callee, r11)
		c.Consume(callee)
		c.emit(Insn{Op: ICall, Src: reg(r11)})
	}

	if area > 0 {
		c.emit(Insn{Op: IAdd, Size: 8, Src: imm(area), Dst: reg(rsp)})
	}
	c.unclaim(claimed...)

	ret := sig.Return
	switch {
	case ast.IsVoid(ret):
		return nil
	case ast.IsFloating(ret):
		v := c.newValue(LocReg, ret)
		v.Reg = floatReturnReg
		c.owner[floatReturnReg] = v
		return v
	}
	v := c.newValue(LocReg, ret)
	v.Reg = returnReg
	c.owner[returnReg] = v
	c.normalize(v, ret)
	return v
}

// SetBlock makes b current. A current block without a transfer falls
// through into b.
func (c *Ctx) SetBlock(b *Block) {
	if c.cur != nil && !c.cur.terminated() {
		c.Jmp(b)
	}
	c.place(b)
}

// Jmp ends the current block with a jump to b.
func (c *Ctx) Jmp(b *Block) {
	if c.cur.terminated() {
		return
	}
	c.spillAll()
	c.cur.Term = TermJmp
	c.cur.Then = b
}

// Branch ends the current block, going to then when v is non-zero and to
// els otherwise. v is consumed.
func (c *Ctx) Branch(v *Value, then, els *Block) {
	if c.cur.terminated() {
		c.Consume(v)
		return
	}

	switch v.Loc {
	case LocConstInt:
		c.Consume(v)
		if v.Int != 0 {
			c.Jmp(then)
		} else {
			c.Jmp(els)
		}
		return
	case LocConstFloat:
		c.Consume(v)
		if v.Float != 0 {
			c.Jmp(then)
		} else {
			c.Jmp(els)
		}
		return
	}

	if c.isFloat(v) {
		v = c.Cmp(CmpNe, v, c.ConstFloat(0, v.Type), c.nav.Int())
	}

	var cond Cond
	if v.Loc == LocFlag && c.flag == v && v.retains == 1 {
		cond = v.Cond
		c.Consume(v)
	} else {
		c.materializeFlag()
		c.ToReg(v)
		c.emit(Insn{Op: ITest, Size: 8, Src: reg(v.Reg), Dst: reg(v.Reg)})
		c.Consume(v)
		cond = Cond{Cmp: CmpNe}
	}

	c.spillAll()
	c.cur.Term = TermBranch
	c.cur.Cond = cond
	c.cur.Then = then
	c.cur.Else = els
}

// Ret returns v, which may be nil, from the function.
func (c *Ctx) Ret(v *Value) {
	if v != nil {
		r := returnReg
		if c.isFloat(v) {
			r = floatReturnReg
		}
		if v.Loc != LocReg || v.Reg != r || v.Offset != 0 {
			c.claim(r)
			c.loadInto(v, r)
			c.unclaim(r)
		}
		c.Consume(v)
	}
	c.Jmp(c.Fn.Exit)
}

// Memcpy copies size bytes from the address src to the address dst.
func (c *Ctx) Memcpy(dst, src *Value, size int64) {
	d := c.memOperand(dst)
	c.lock(dst)
	s := c.memOperand(src)
	c.lock(src)
	tmp := c.allocReg(false)
	c.unlock(dst, src)

	for off := int64(0); off < size; {
		n := int64(8)
		for n > size-off {
			n /= 2
		}
		c.emit(Insn{Op: IMov, Size: n, Src: withDisp(s, off), Dst: reg(tmp)})
		c.emit(Insn{Op: IMov, Size: n, Src: reg(tmp), Dst: withDisp(d, off)})
		off += n
	}
	c.Consume(src)
	c.Consume(dst)
}

// Zero clears size bytes at the address dst.
func (c *Ctx) Zero(dst *Value, size int64) {
	d := c.memOperand(dst)
	for off := int64(0); off < size; {
		n := int64(8)
		for n > size-off {
			n /= 2
		}
		c.emit(Insn{Op: IMov, Size: n, Src: imm(0), Dst: withDisp(d, off)})
		off += n
	}
	c.Consume(dst)
}

func (c *Ctx) Trap() {
	c.emit(Insn{Op: ITrap})
}

// FramePtr walks n saved frame pointers up from the current frame.
func (c *Ctx) FramePtr(n int64, t ast.Type) *Value {
	r := c.allocReg(false)
	v := c.newValue(LocReg, t)
	v.Reg = r
	c.owner[r] = v

	c.emit(Insn{Op: IMov, Size: 8, Src: reg(frameBase), Dst: reg(r)})
	for i := int64(0); i < n; i++ {
		c.emit(Insn{Op: IMov, Size: 8, Src: mem(r, 0), Dst: reg(r)})
	}
	return v
}
