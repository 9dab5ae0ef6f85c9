// Package out is the generator's machine layer: virtual values over
// registers, frame slots, labels and CPU flags, the blocks of a function,
// and the x86-64 instructions that move values between them.
package out

import (
	"fmt"

	"github.com/kartiknair/mycc/pkg/ast"
)

// General purpose register numbers, in hardware encoding order.
const (
	RAX = iota
	RCX
	RDX
	RBX
	RSP
	RBP
	RSI
	RDI
	R8
	R9
	R10
	R11
	R12
	R13
	R14
	R15
)

type Reg struct {
	Idx   int
	Float bool
}

var (
	// every scratch register is caller-saved
	intScratch   = []int{RAX, RCX, RDX, RSI, RDI, R8, R9, R10, R11}
	floatScratch = []int{0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15}

	IntArgRegs     = []int{RDI, RSI, RDX, RCX, R8, R9}
	FloatArgRegs   = 8
	intRegNames    = [...]string{"rax", "rcx", "rdx", "rbx", "rsp", "rbp", "rsi", "rdi", "r8", "r9", "r10", "r11", "r12", "r13", "r14", "r15"}
	frameBase      = Reg{Idx: RBP}
	returnReg      = Reg{Idx: RAX}
	floatReturnReg = Reg{Idx: 0, Float: true}
)

// frameConst reports the frame and stack pointers, which are never
// allocated, freed or spilled.
func (r Reg) frameConst() bool {
	return !r.Float && (r.Idx == RBP || r.Idx == RSP)
}

func (r Reg) String() string {
	if r.Float {
		return fmt.Sprintf("xmm%d", r.Idx)
	}
	return intRegNames[r.Idx]
}

type Loc int

const (
	LocConstInt Loc = iota
	LocConstFloat
	// LocReg holds Reg+Offset.
	LocReg
	// LocRegSpilt is a value saved in memory at Offset(Reg).
	LocRegSpilt
	// LocLabel is the address Label+Offset.
	LocLabel
	// LocFlag is a comparison result still in the CPU flags.
	LocFlag
)

func (l Loc) String() string {
	return [...]string{"const-int", "const-float", "reg", "reg-spilt", "label", "flag"}[l]
}

// PIC selects how a label's address is formed.
type PIC int

const (
	PICNone PIC = iota
	// PICLocal is %rip-relative: the symbol is defined in this unit.
	PICLocal
	// PICGot loads the address from the global offset table.
	PICGot
)

type Cmp int

const (
	CmpEq Cmp = iota
	CmpNe
	CmpLt
	CmpLe
	CmpGt
	CmpGe
)

// Cond is a comparison against the flags. Unsigned comparisons (and
// floating ones, which set the flags the same way) use the below/above
// condition codes.
type Cond struct {
	Cmp      Cmp
	Unsigned bool
}

func (c Cond) Invert() Cond {
	c.Cmp = [...]Cmp{CmpNe, CmpEq, CmpGe, CmpGt, CmpLe, CmpLt}[c.Cmp]
	return c
}

// Value is a virtual value. It is owned through its retain count: every
// value starts retained once, each consumer releases it, and its register
// or flags return to the pool when the count reaches zero.
type Value struct {
	Loc  Loc
	Type ast.Type

	Int   int64
	Float float64

	Reg    Reg
	Offset int64

	Label string
	PIC   PIC

	Cond Cond

	retains int
	id      int
}

func (v *Value) Retains() int {
	return v.retains
}

func (v *Value) IsConst() bool {
	return v.Loc == LocConstInt || v.Loc == LocConstFloat
}

func (v *Value) String() string {
	switch v.Loc {
	case LocConstInt:
		return fmt.Sprintf("v%d:%d", v.id, v.Int)
	case LocConstFloat:
		return fmt.Sprintf("v%d:%g", v.id, v.Float)
	case LocReg:
		return fmt.Sprintf("v%d:%%%s%+d", v.id, v.Reg, v.Offset)
	case LocRegSpilt:
		return fmt.Sprintf("v%d:[%%%s%+d]", v.id, v.Reg, v.Offset)
	case LocLabel:
		return fmt.Sprintf("v%d:%s%+d", v.id, v.Label, v.Offset)
	}
	return fmt.Sprintf("v%d:flag(%d)", v.id, v.Cond.Cmp)
}

func fitsImm32(v int64) bool {
	return v >= -1<<31 && v < 1<<31
}
