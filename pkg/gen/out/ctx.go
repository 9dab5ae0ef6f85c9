package out

import (
	"fmt"

	"github.com/kartiknair/mycc/pkg/ast"
	"github.com/kartiknair/mycc/pkg/diag"
	"github.com/kartiknair/mycc/pkg/token"
)

// Labels hands out local assembler labels unique across a translation unit.
type Labels struct {
	n int
}

func (l *Labels) New(prefix string) string {
	l.n++
	return fmt.Sprintf(".L%s%d", prefix, l.n)
}

// Options fixes the target policy a function is generated under.
type Options struct {
	PIC        bool
	StackAlign int64
	Debug      bool
	Verbose    bool
}

// Ctx generates one function. It owns every register between the values
// that live in them and the frame slots values are spilt to.
type Ctx struct {
	nav    *ast.TypeNav
	labels *Labels
	opts   Options

	Fn  *Func
	cur *Block

	owner    map[Reg]*Value
	pinned   map[Reg]int
	reserved map[Reg]bool
	flag     *Value

	frame     int64
	freeSlots []int64
	home      map[*Value]int64

	pos    token.Pos
	lastLn int
	nextID int
}

func New(nav *ast.TypeNav, labels *Labels, opts Options) *Ctx {
	if opts.StackAlign < 16 {
		opts.StackAlign = 16
	}
	return &Ctx{nav: nav, labels: labels, opts: opts}
}

// Begin starts generating fn. Its entry block becomes current.
func (c *Ctx) Begin(fn *Func) {
	c.Fn = fn
	c.owner = map[Reg]*Value{}
	c.pinned = map[Reg]int{}
	c.reserved = map[Reg]bool{}
	c.home = map[*Value]int64{}
	c.flag = nil
	c.frame = 0
	c.freeSlots = nil
	c.lastLn = 0

	fn.Exit = &Block{Label: c.labels.New("ret")}
	c.cur = nil
	c.SetBlock(c.NewBlock("entry"))
}

// End places the exit block and fixes the frame size.
func (c *Ctx) End() *Func {
	c.SetBlock(c.Fn.Exit)
	c.Fn.FrameSize = ast.AlignTo(c.frame, c.opts.StackAlign)
	return c.Fn
}

func (c *Ctx) NewBlock(hint string) *Block {
	return &Block{Label: c.labels.New(hint)}
}

// Current is the block instructions are appended to.
func (c *Ctx) Current() *Block {
	return c.cur
}

// Terminated reports whether the current block already ends in a transfer,
// so nothing can reach code appended to it.
func (c *Ctx) Terminated() bool {
	return c.cur.terminated()
}

func (c *Ctx) newValue(loc Loc, t ast.Type) *Value {
	c.nextID++
	return &Value{Loc: loc, Type: t, retains: 1, id: c.nextID}
}

// Retain records one more consumer of v.
func (c *Ctx) Retain(v *Value) *Value {
	if v.retains <= 0 {
		diag.ICEAt(c.pos, "retain of released value %s", v)
	}
	v.retains++
	return v
}

// Consume releases one reference to v. The last release frees whatever
// storage v occupies.
func (c *Ctx) Consume(v *Value) {
	if v == nil {
		return
	}
	if v.retains <= 0 {
		diag.ICEAt(c.pos, "double release of value %s", v)
	}
	v.retains--
	if v.retains > 0 {
		return
	}

	switch v.Loc {
	case LocReg:
		if !v.Reg.frameConst() && c.owner[v.Reg] == v {
			delete(c.owner, v.Reg)
		}
	case LocFlag:
		if c.flag == v {
			c.flag = nil
		}
	}
	if slot, ok := c.home[v]; ok {
		delete(c.home, v)
		c.freeSlots = append(c.freeSlots, slot)
	}
}

// reuse turns from into a value of type t when nothing else holds it, so
// its register can be overwritten in place. Otherwise it copies.
func (c *Ctx) reuse(from *Value, t ast.Type) *Value {
	if from.retains == 1 && from.Loc == LocReg && !from.Reg.frameConst() {
		if from.Offset != 0 {
			c.emit(Insn{Op: ILea, Size: 8, Src: mem(from.Reg, from.Offset), Dst: reg(from.Reg)})
			from.Offset = 0
		}
		from.Type = t
		return from
	}
	r := c.allocReg(ast.IsFloating(t))
	v := c.newValue(LocReg, t)
	v.Reg = r
	c.owner[r] = v

	c.lock(v)
	c.loadInto(from, r)
	c.unlock(v)
	c.Consume(from)
	return v
}

func (c *Ctx) scratch(float bool) []int {
	if float {
		return floatScratch
	}
	return intScratch
}

// allocReg returns a free register, spilling the oldest unpinned value
// when every register is taken.
func (c *Ctx) allocReg(float bool) Reg {
	for _, idx := range c.scratch(float) {
		r := Reg{Idx: idx, Float: float}
		if c.owner[r] == nil && !c.reserved[r] && c.pinned[r] == 0 {
			return r
		}
	}

	var victim *Value
	for _, idx := range c.scratch(float) {
		r := Reg{Idx: idx, Float: float}
		v := c.owner[r]
		if v == nil || c.reserved[r] || c.pinned[r] > 0 {
			continue
		}
		if victim == nil || v.id < victim.id {
			victim = v
		}
	}
	if victim == nil {
		diag.ICEAt(c.pos, "out of registers")
	}
	r := victim.Reg
	c.spill(victim)
	return r
}

func (c *Ctx) slot() int64 {
	if n := len(c.freeSlots); n > 0 {
		s := c.freeSlots[n-1]
		c.freeSlots = c.freeSlots[:n-1]
		return s
	}
	return c.Alloca(8, 8)
}

// spill moves a register value to its home slot in the frame.
func (c *Ctx) spill(v *Value) {
	if v.Loc != LocReg || v.Reg.frameConst() {
		return
	}
	if v.Offset != 0 {
		c.emit(Insn{Op: ILea, Size: 8, Src: mem(v.Reg, v.Offset), Dst: reg(v.Reg)})
		v.Offset = 0
	}

	home, ok := c.home[v]
	if !ok {
		home = c.slot()
		c.home[v] = home
	}
	op := IMov
	if v.Reg.Float {
		op = IMovF
	}
	c.emit(Insn{Op: op, Size: 8, Src: reg(v.Reg), Dst: mem(frameBase, home)})

	delete(c.owner, v.Reg)
	v.Loc = LocRegSpilt
	v.Reg = frameBase
	v.Offset = home
}

// spillAll leaves no value in a register or the flags, so that every
// path into a block finds live values at the same place.
func (c *Ctx) spillAll() {
	c.materializeFlag()
	for _, v := range c.liveRegs() {
		c.spill(v)
	}
}

func (c *Ctx) liveRegs() []*Value {
	var vs []*Value
	for _, idx := range intScratch {
		if v := c.owner[Reg{Idx: idx}]; v != nil {
			vs = append(vs, v)
		}
	}
	for _, idx := range floatScratch {
		if v := c.owner[Reg{Idx: idx, Float: true}]; v != nil {
			vs = append(vs, v)
		}
	}
	return vs
}

// claim takes r out of allocation, moving a value that lives there.
func (c *Ctx) claim(r Reg) {
	if v := c.owner[r]; v != nil {
		if c.pinned[r] > 0 {
			diag.ICEAt(c.pos, "claim of pinned register %s", r)
		}
		c.reserved[r] = true
		nr := c.allocReg(r.Float)
		op := IMov
		if r.Float {
			op = IMovF
		}
		c.emit(Insn{Op: op, Size: 8, Src: reg(r), Dst: reg(nr)})
		delete(c.owner, r)
		v.Reg = nr
		c.owner[nr] = v
	}
	c.reserved[r] = true
}

func (c *Ctx) unclaim(regs ...Reg) {
	for _, r := range regs {
		delete(c.reserved, r)
	}
}

// lock keeps the registers of vs from being spilt or reallocated.
func (c *Ctx) lock(vs ...*Value) {
	for _, v := range vs {
		if v != nil && v.Loc == LocReg && !v.Reg.frameConst() {
			c.pinned[v.Reg]++
		}
	}
}

func (c *Ctx) unlock(vs ...*Value) {
	for _, v := range vs {
		if v != nil && v.Loc == LocReg && !v.Reg.frameConst() {
			c.pinned[v.Reg]--
		}
	}
}

// materializeFlag moves a live comparison result out of the CPU flags
// into a register as 0 or 1.
func (c *Ctx) materializeFlag() {
	v := c.flag
	if v == nil {
		return
	}
	c.flag = nil

	r := c.allocReg(false)
	c.append(Insn{Op: ISet, Size: 1, Cond: v.Cond, Dst: reg(r)})
	c.append(Insn{Op: IMovZX, Size: 8, SrcSize: 1, Src: reg(r), Dst: reg(r)})
	v.Loc = LocReg
	v.Reg = r
	v.Offset = 0
	c.owner[r] = v
}

// emit appends i to the current block. Code after a transfer goes into a
// fresh block that nothing jumps to.
func (c *Ctx) emit(i Insn) {
	if c.cur.terminated() {
		c.place(c.NewBlock("dead"))
	}
	if c.flag != nil && i.clobbersFlags() {
		c.materializeFlag()
	}
	c.append(i)
}

func (c *Ctx) append(i Insn) {
	if i.Pos.Line == 0 {
		i.Pos = c.pos
	}
	c.cur.Insns = append(c.cur.Insns, i)
}

func (c *Ctx) place(b *Block) {
	if b.placed {
		diag.ICEAt(c.pos, "block %s placed twice", b.Label)
	}
	b.placed = true
	if b != c.Fn.Exit {
		c.Fn.Blocks = append(c.Fn.Blocks, b)
	}
	c.cur = b
}

// Alloca reserves size bytes in the frame and returns their offset from
// the frame base.
func (c *Ctx) Alloca(size, align int64) int64 {
	if align < 1 {
		align = 1
	}
	c.frame = ast.AlignTo(c.frame+size, align)
	return -c.frame
}

// Params stores the incoming arguments of a function of the given
// parameter types and returns the frame offset each one lives at. The
// caller passes slots it has already allocated; stack-passed parameters
// keep their incoming location instead.
func (c *Ctx) Params(types []ast.Type, slots []int64) []int64 {
	offsets := make([]int64, len(types))
	nInt, nFloat := 0, 0
	stack := int64(16)

	for i, t := range types {
		size := c.nav.Size(t)
		switch {
		case ast.IsFloating(t) && nFloat < FloatArgRegs:
			c.emit(Insn{Op: IMovF, Size: size, Src: reg(Reg{Idx: nFloat, Float: true}), Dst: mem(frameBase, slots[i])})
			offsets[i] = slots[i]
			nFloat++
		case !ast.IsFloating(t) && nInt < len(IntArgRegs):
			c.emit(Insn{Op: IMov, Size: size, Src: reg(Reg{Idx: IntArgRegs[nInt]}), Dst: mem(frameBase, slots[i])})
			offsets[i] = slots[i]
			nInt++
		default:
			offsets[i] = stack
			stack += 8
		}
	}
	return offsets
}

// Loc records the source position of the code that follows.
func (c *Ctx) Loc(pos token.Pos) {
	c.pos = pos
	if c.cur.terminated() {
		c.lastLn = 0
		return
	}
	if c.opts.Debug && pos.Line != 0 && pos.Line != c.lastLn {
		c.lastLn = pos.Line
		c.append(Insn{Op: ILoc, Pos: pos})
	}
}

// Comment annotates the output under verbose assembly.
func (c *Ctx) Comment(format string, args ...interface{}) {
	if c.opts.Verbose {
		c.append(Insn{Op: IComment, Text: fmt.Sprintf(format, args...)})
	}
}
