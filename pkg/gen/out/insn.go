package out

import (
	"github.com/kartiknair/mycc/pkg/token"
)

type Opcode int

const (
	IMov Opcode = iota
	// IMovSX and IMovZX extend Src of SrcSize bytes into Dst of Size bytes.
	IMovSX
	IMovZX
	ILea
	IAdd
	ISub
	IMul
	IAnd
	IOr
	IXor
	IShl
	ISar
	IShr
	INeg
	INot
	ICmp
	ITest
	ISet
	IJmp
	IJcc
	ICall
	// ICqo sign-extends the accumulator into %rdx ahead of IIDiv.
	ICqo
	IIDiv
	IDiv
	IPush
	IPop
	ITrap

	IMovF
	// IMovQ moves raw bits between a general and an xmm register.
	IMovQ
	IAddF
	ISubF
	IMulF
	IDivF
	IXorF
	IUcomi
	ICvtIF
	ICvtFI
	ICvtFF

	IComment
	ILoc
)

type OperandKind int

const (
	KNone OperandKind = iota
	KImm
	KReg
	// KMem is Disp(Reg).
	KMem
	// KSym is the address Sym+Disp as an immediate or lea source.
	KSym
	// KSymMem is the memory at Sym+Disp.
	KSymMem
	// KGot is the GOT slot holding the address of Sym.
	KGot
)

type Operand struct {
	Kind OperandKind
	Imm  int64
	Reg  Reg
	Disp int64
	Sym  string
	PIC  PIC
}

func imm(v int64) Operand {
	return Operand{Kind: KImm, Imm: v}
}

func reg(r Reg) Operand {
	return Operand{Kind: KReg, Reg: r}
}

func mem(base Reg, disp int64) Operand {
	return Operand{Kind: KMem, Reg: base, Disp: disp}
}

// Insn is one machine instruction. Size is the operand width in bytes.
type Insn struct {
	Op      Opcode
	Size    int64
	SrcSize int64
	Src     Operand
	Dst     Operand

	// IJcc and ISet
	Cond Cond
	// IJmp, IJcc and direct ICall
	Target string
	PLT    bool

	Text string
	Pos  token.Pos
}

// clobbersFlags reports instructions that overwrite the CPU flags.
func (i *Insn) clobbersFlags() bool {
	switch i.Op {
	case IAdd, ISub, IMul, IAnd, IOr, IXor, IShl, ISar, IShr, INeg,
		ICmp, ITest, ICall, IIDiv, IDiv, IUcomi, IAddF, ISubF, IMulF, IDivF:
		return true
	}
	return false
}

type TermKind int

const (
	TermNone TermKind = iota
	TermJmp
	TermBranch
)

// Block is a run of instructions ending in at most one transfer: a jump
// to Then, or a branch to Then when Cond holds and to Else otherwise.
type Block struct {
	Label string
	Insns []Insn

	Term TermKind
	Cond Cond
	Then *Block
	Else *Block

	placed bool
}

func (b *Block) terminated() bool {
	return b.Term != TermNone
}

type Func struct {
	Name    string
	Global  bool
	Weak    bool
	Section string
	Pos     token.Pos

	// Blocks in emission order; Exit holds the epilogue and comes last.
	Blocks    []*Block
	Exit      *Block
	FrameSize int64
}

type Section int

const (
	SecText Section = iota
	SecData
	SecRoData
	SecBSS
)

// Reloc is an address stored in data: Sym+Addend in Size bytes at Offset.
type Reloc struct {
	Offset int64
	Sym    string
	Addend int64
	Size   int64
}

// Data is one object placed in a data section.
type Data struct {
	Name        string
	Global      bool
	Weak        bool
	Section     Section
	SectionName string
	Align       int64
	Size        int64

	Bytes  []byte
	Relocs []Reloc
}

// IsZero reports data that needs no bytes in the image.
func (d *Data) IsZero() bool {
	if len(d.Relocs) > 0 {
		return false
	}
	for _, b := range d.Bytes {
		if b != 0 {
			return false
		}
	}
	return true
}
