package asm

import (
	"strings"
	"testing"

	"github.com/kartiknair/mycc/pkg/config"
	"github.com/kartiknair/mycc/pkg/gen/out"
)

func assertContains(t *testing.T, text string, want ...string) {
	t.Helper()
	for _, w := range want {
		if !strings.Contains(text, w) {
			t.Errorf("missing %q in:\n%s", w, text)
		}
	}
}

func rax() out.Operand {
	return out.Operand{Kind: out.KReg, Reg: out.Reg{Idx: out.RAX}}
}

func TestFunction(t *testing.T) {
	exit := &out.Block{Label: ".Lret3"}
	body := &out.Block{Label: ".Lthen2", Term: out.TermJmp, Then: exit}
	entry := &out.Block{
		Label: ".Lentry1",
		Insns: []out.Insn{
			{Op: out.IMov, Size: 4, Src: out.Operand{Kind: out.KImm, Imm: 5}, Dst: rax()},
			{Op: out.ICmp, Size: 8, Src: out.Operand{Kind: out.KImm, Imm: 3}, Dst: rax()},
		},
		Term: out.TermBranch,
		Cond: out.Cond{Cmp: out.CmpLt},
		Then: body,
		Else: exit,
	}
	fn := &out.Func{Name: "f", Global: true, Blocks: []*out.Block{entry, body}, Exit: exit, FrameSize: 16}

	e := New(config.Default(), "test.c")
	e.Func(fn)
	text := e.String()

	assertContains(t, text,
		"\t.text\n",
		"\t.globl f\n\t.type f, @function\nf:\n\tpushq %rbp\n\tmovq %rsp, %rbp\n\tsubq $16, %rsp\n",
		"\tmovl $5, %eax\n",
		"\tcmpq $3, %rax\n",
		// the then block follows, so only the inverted branch is needed
		"\tjge .Lret3\n",
		".Lret3:\n\tleave\n\tret\n\t.size f, .-f\n",
		".note.GNU-stack",
	)
	if strings.Contains(text, "jmp .Lret3") {
		t.Errorf("fallthrough into the next block should not jump:\n%s", text)
	}
}

func TestBranchWithoutFallthrough(t *testing.T) {
	exit := &out.Block{Label: ".Lret4"}
	a := &out.Block{Label: ".La2", Term: out.TermJmp, Then: exit}
	b := &out.Block{Label: ".Lb3", Term: out.TermJmp, Then: exit}
	entry := &out.Block{Label: ".Lentry1", Term: out.TermBranch, Cond: out.Cond{Cmp: out.CmpEq}, Then: b, Else: exit}
	fn := &out.Func{Name: "g", Blocks: []*out.Block{entry, a, b}, Exit: exit}

	e := New(config.Default(), "test.c")
	e.Func(fn)
	text := e.String()

	assertContains(t, text, "\tje .Lb3\n\tjmp .Lret4\n", ".La2:\n\tjmp .Lret4\n")
	if strings.Contains(text, ".globl g") {
		t.Errorf("static function exported:\n%s", text)
	}
}

func TestInstructionSpelling(t *testing.T) {
	cfg := config.Default()
	e := New(cfg, "test.c")

	tests := []struct {
		insn out.Insn
		want string
	}{
		{out.Insn{Op: out.IMov, Size: 8, Src: out.Operand{Kind: out.KImm, Imm: 1 << 40}, Dst: rax()}, "\tmovabsq $1099511627776, %rax\n"},
		{out.Insn{Op: out.IMovSX, Size: 8, SrcSize: 4, Src: out.Operand{Kind: out.KMem, Reg: out.Reg{Idx: out.RBP}, Disp: -8}, Dst: rax()}, "\tmovslq -8(%rbp), %rax\n"},
		{out.Insn{Op: out.IMovZX, Size: 8, SrcSize: 1, Src: out.Operand{Kind: out.KReg, Reg: out.Reg{Idx: out.RSI}}, Dst: rax()}, "\tmovzbq %sil, %rax\n"},
		{out.Insn{Op: out.IMovZX, Size: 8, SrcSize: 4, Src: out.Operand{Kind: out.KReg, Reg: out.Reg{Idx: out.R8}}, Dst: rax()}, "\tmovl %r8d, %eax\n"},
		{out.Insn{Op: out.ILea, Size: 8, Src: out.Operand{Kind: out.KSymMem, Sym: "x", Disp: 8, PIC: out.PICLocal}, Dst: rax()}, "\tleaq x+8(%rip), %rax\n"},
		{out.Insn{Op: out.IMov, Size: 8, Src: out.Operand{Kind: out.KGot, Sym: "errno"}, Dst: rax()}, "\tmovq errno@GOTPCREL(%rip), %rax\n"},
		{out.Insn{Op: out.ISar, Size: 4, Src: out.Operand{Kind: out.KReg, Reg: out.Reg{Idx: out.RCX}}, Dst: rax()}, "\tsarl %cl, %eax\n"},
		{out.Insn{Op: out.ISet, Cond: out.Cond{Cmp: out.CmpLe, Unsigned: true}, Dst: rax()}, "\tsetbe %al\n"},
		{out.Insn{Op: out.ICall, Target: "puts", PLT: true}, "\tcall puts@PLT\n"},
		{out.Insn{Op: out.ICall, Src: rax()}, "\tcall *%rax\n"},
		{out.Insn{Op: out.IAddF, Size: 4, Src: out.Operand{Kind: out.KReg, Reg: out.Reg{Idx: 1, Float: true}}, Dst: out.Operand{Kind: out.KReg, Reg: out.Reg{Float: true}}}, "\taddss %xmm1, %xmm0\n"},
		{out.Insn{Op: out.ICvtFF, Size: 8, SrcSize: 4, Src: out.Operand{Kind: out.KReg, Reg: out.Reg{Float: true}}, Dst: out.Operand{Kind: out.KReg, Reg: out.Reg{Float: true}}}, "\tcvtss2sd %xmm0, %xmm0\n"},
		{out.Insn{Op: out.ITrap}, "\tud2\n"},
	}

	for _, tt := range tests {
		var b strings.Builder
		e.insn(&b, &tt.insn)
		if got := b.String(); got != tt.want {
			t.Errorf("got %q, want %q", got, tt.want)
		}
	}
}

func TestRegisterNames(t *testing.T) {
	tests := []struct {
		reg  out.Reg
		size int64
		want string
	}{
		{out.Reg{Idx: out.RAX}, 8, "%rax"},
		{out.Reg{Idx: out.RDI}, 4, "%edi"},
		{out.Reg{Idx: out.RDX}, 2, "%dx"},
		{out.Reg{Idx: out.R11}, 1, "%r11b"},
		{out.Reg{Idx: out.R9}, 8, "%r9"},
		{out.Reg{Idx: 7, Float: true}, 8, "%xmm7"},
	}
	for _, tt := range tests {
		if got := regName(tt.reg, tt.size); got != tt.want {
			t.Errorf("regName(%v, %d) = %s, want %s", tt.reg, tt.size, got, tt.want)
		}
	}
}

func TestData(t *testing.T) {
	e := New(config.Default(), "test.c")

	image := make([]byte, 16)
	image[0] = 1
	e.Data(&out.Data{
		Name:    "tbl",
		Global:  true,
		Section: out.SecData,
		Align:   8,
		Size:    16,
		Bytes:   image,
		Relocs:  []out.Reloc{{Offset: 8, Sym: "x", Addend: 4, Size: 8}},
	})
	e.Data(&out.Data{Name: "buf", Section: out.SecBSS, Align: 16, Size: 64})
	e.Data(&out.Data{Name: ".Lstr1", Section: out.SecRoData, Size: 24, Bytes: append(make([]byte, 20), 3)})

	text := e.String()
	assertContains(t, text,
		"\t.data\n\t.globl tbl\n\t.type tbl, @object\n\t.size tbl, 16\n\t.align 8\ntbl:\n\t.byte 1,0,0,0,0,0,0,0\n\t.quad x+4\n",
		"\t.bss\n\t.type buf, @object\n\t.size buf, 64\n\t.align 16\nbuf:\n\t.zero 64\n",
		"\t.section .rodata\n.Lstr1:\n\t.zero 20\n\t.byte 3,0,0,0\n",
	)
}

func TestSectionsAndNames(t *testing.T) {
	cfg := config.Default()
	if err := cfg.ApplyFlag("-fleading-underscore"); err != nil {
		t.Fatal(err)
	}
	e := New(cfg, "test.c")

	if got := e.Symbol("main"); got != "_main" {
		t.Errorf("Symbol(main) = %s", got)
	}
	if got := e.Symbol(".Lstr1"); got != ".Lstr1" {
		t.Errorf("local labels keep their spelling, got %s", got)
	}

	exit := &out.Block{Label: ".Lret1"}
	e.Func(&out.Func{Name: "init", Section: ".init.text", Exit: exit})
	e.Data(&out.Data{Name: "cfg", Section: out.SecRoData, SectionName: ".config", Size: 4, Bytes: []byte{1, 2, 3, 4}})

	assertContains(t, e.String(),
		"\t.section .init.text,\"ax\",@progbits\n\t.type _init, @function\n_init:\n",
		"\t.section .config,\"a\",@progbits\n",
		"\t.byte 1,2,3,4\n",
	)
}
