// Package asm writes generated functions and data as x86-64 assembly in
// AT&T syntax for the GNU assembler.
package asm

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/kartiknair/mycc/pkg/config"
	"github.com/kartiknair/mycc/pkg/diag"
	"github.com/kartiknair/mycc/pkg/gen/out"
)

// Emitter collects each section separately and writes them in a fixed
// order, so that functions and data can arrive interleaved.
type Emitter struct {
	cfg  *config.Config
	file string

	text   strings.Builder
	data   strings.Builder
	rodata strings.Builder
	bss    strings.Builder
	custom map[string]*strings.Builder
	order  []string
}

func New(cfg *config.Config, file string) *Emitter {
	return &Emitter{cfg: cfg, file: file, custom: map[string]*strings.Builder{}}
}

// Symbol spells a symbol name as the assembler sees it.
func (e *Emitter) Symbol(name string) string {
	if strings.HasPrefix(name, ".L") || !e.cfg.IsFeatureEnabled(config.FeatLeadingUnderscore) {
		return name
	}
	return "_" + name
}

// WriteTo writes every section collected so far.
func (e *Emitter) WriteTo(w io.Writer) (int64, error) {
	var b strings.Builder
	if e.cfg.Debug {
		fmt.Fprintf(&b, "\t.file 1 %q\n", e.file)
	}
	sections := []struct {
		directive string
		body      *strings.Builder
	}{
		{"\t.text\n", &e.text},
		{"\t.data\n", &e.data},
		{"\t.section .rodata\n", &e.rodata},
		{"\t.bss\n", &e.bss},
	}
	for _, s := range sections {
		if s.body.Len() > 0 {
			b.WriteString(s.directive)
			b.WriteString(s.body.String())
		}
	}
	for _, name := range e.order {
		b.WriteString(e.custom[name].String())
	}
	b.WriteString("\t.section .note.GNU-stack,\"\",@progbits\n")

	n, err := io.WriteString(w, b.String())
	return int64(n), err
}

func (e *Emitter) String() string {
	var b strings.Builder
	e.WriteTo(&b)
	return b.String()
}

func (e *Emitter) section(name, flags string) *strings.Builder {
	b, ok := e.custom[name]
	if !ok {
		b = &strings.Builder{}
		e.custom[name] = b
		e.order = append(e.order, name)
	}
	fmt.Fprintf(b, "\t.section %s,\"%s\",@progbits\n", name, flags)
	return b
}

func (e *Emitter) linkage(w io.Writer, name string, global, weak bool) {
	switch {
	case weak:
		fmt.Fprintf(w, "\t.weak %s\n", name)
	case global:
		fmt.Fprintf(w, "\t.globl %s\n", name)
	}
}

// Func writes one generated function.
func (e *Emitter) Func(fn *out.Func) {
	w := &e.text
	if fn.Section != "" {
		w = e.section(fn.Section, "ax")
	}
	name := e.Symbol(fn.Name)

	e.linkage(w, name, fn.Global, fn.Weak)
	fmt.Fprintf(w, "\t.type %s, @function\n", name)
	fmt.Fprintf(w, "%s:\n", name)
	fmt.Fprintf(w, "\tpushq %%rbp\n")
	fmt.Fprintf(w, "\tmovq %%rsp, %%rbp\n")
	if fn.FrameSize > 0 {
		fmt.Fprintf(w, "\tsubq $%d, %%rsp\n", fn.FrameSize)
	}

	blocks := append(append([]*out.Block{}, fn.Blocks...), fn.Exit)
	for i, b := range blocks {
		var next *out.Block
		if i+1 < len(blocks) {
			next = blocks[i+1]
		}
		fmt.Fprintf(w, "%s:\n", b.Label)
		for j := range b.Insns {
			e.insn(w, &b.Insns[j])
		}
		e.terminator(w, b, next)
	}

	fmt.Fprintf(w, "\tleave\n")
	fmt.Fprintf(w, "\tret\n")
	fmt.Fprintf(w, "\t.size %s, .-%s\n", name, name)
}

func (e *Emitter) terminator(w io.Writer, b, next *out.Block) {
	switch b.Term {
	case out.TermJmp:
		if b.Then != next {
			fmt.Fprintf(w, "\tjmp %s\n", b.Then.Label)
		}
	case out.TermBranch:
		switch {
		case b.Else == next:
			fmt.Fprintf(w, "\tj%s %s\n", condCode(b.Cond), b.Then.Label)
		case b.Then == next:
			fmt.Fprintf(w, "\tj%s %s\n", condCode(b.Cond.Invert()), b.Else.Label)
		default:
			fmt.Fprintf(w, "\tj%s %s\n", condCode(b.Cond), b.Then.Label)
			fmt.Fprintf(w, "\tjmp %s\n", b.Else.Label)
		}
	}
}

func condCode(c out.Cond) string {
	if c.Unsigned {
		return [...]string{"e", "ne", "b", "be", "a", "ae"}[c.Cmp]
	}
	return [...]string{"e", "ne", "l", "le", "g", "ge"}[c.Cmp]
}

func suffix(size int64) string {
	switch size {
	case 1:
		return "b"
	case 2:
		return "w"
	case 4:
		return "l"
	}
	return "q"
}

var (
	legacy8  = [...]string{"al", "cl", "dl", "bl", "spl", "bpl", "sil", "dil"}
	legacy16 = [...]string{"ax", "cx", "dx", "bx", "sp", "bp", "si", "di"}
)

func regName(r out.Reg, size int64) string {
	if r.Float {
		return fmt.Sprintf("%%xmm%d", r.Idx)
	}
	if r.Idx >= out.R8 {
		switch size {
		case 1:
			return fmt.Sprintf("%%r%db", r.Idx)
		case 2:
			return fmt.Sprintf("%%r%dw", r.Idx)
		case 4:
			return fmt.Sprintf("%%r%dd", r.Idx)
		}
		return fmt.Sprintf("%%r%d", r.Idx)
	}
	switch size {
	case 1:
		return "%" + legacy8[r.Idx]
	case 2:
		return "%" + legacy16[r.Idx]
	case 4:
		return "%e" + legacy16[r.Idx]
	}
	return "%r" + legacy16[r.Idx]
}

func symOffset(sym string, off int64) string {
	if off == 0 {
		return sym
	}
	return fmt.Sprintf("%s%+d", sym, off)
}

func (e *Emitter) operand(op out.Operand, size int64) string {
	switch op.Kind {
	case out.KImm:
		return fmt.Sprintf("$%d", op.Imm)
	case out.KReg:
		return regName(op.Reg, size)
	case out.KMem:
		if op.Disp == 0 {
			return fmt.Sprintf("(%s)", regName(op.Reg, 8))
		}
		return fmt.Sprintf("%d(%s)", op.Disp, regName(op.Reg, 8))
	case out.KSym:
		return "$" + symOffset(e.Symbol(op.Sym), op.Disp)
	case out.KSymMem:
		if op.PIC == out.PICLocal {
			return symOffset(e.Symbol(op.Sym), op.Disp) + "(%rip)"
		}
		return symOffset(e.Symbol(op.Sym), op.Disp)
	case out.KGot:
		return e.Symbol(op.Sym) + "@GOTPCREL(%rip)"
	}
	diag.ICE("operand kind %d has no spelling", op.Kind)
	return ""
}

var intMnemonics = map[out.Opcode]string{
	out.IAdd:  "add",
	out.ISub:  "sub",
	out.IMul:  "imul",
	out.IAnd:  "and",
	out.IOr:   "or",
	out.IXor:  "xor",
	out.ICmp:  "cmp",
	out.ITest: "test",
}

var floatMnemonics = map[out.Opcode]string{
	out.IAddF:  "add",
	out.ISubF:  "sub",
	out.IMulF:  "mul",
	out.IDivF:  "div",
	out.IUcomi: "ucomi",
}

// floatSuffix picks the scalar single or double form.
func floatSuffix(size int64) string {
	if size == 4 {
		return "ss"
	}
	return "sd"
}

func (e *Emitter) insn(w io.Writer, i *out.Insn) {
	src := func(size int64) string { return e.operand(i.Src, size) }
	dst := func(size int64) string { return e.operand(i.Dst, size) }

	switch i.Op {
	case out.IMov:
		if i.Src.Kind == out.KImm && (i.Src.Imm < -1<<31 || i.Src.Imm >= 1<<31) {
			fmt.Fprintf(w, "\tmovabsq %s, %s\n", src(8), dst(8))
			return
		}
		fmt.Fprintf(w, "\tmov%s %s, %s\n", suffix(i.Size), src(i.Size), dst(i.Size))

	case out.IMovSX:
		if i.SrcSize == 4 {
			fmt.Fprintf(w, "\tmovslq %s, %s\n", src(4), dst(8))
			return
		}
		fmt.Fprintf(w, "\tmovs%sq %s, %s\n", suffix(i.SrcSize), src(i.SrcSize), dst(8))

	case out.IMovZX:
		if i.SrcSize == 4 {
			// a 32-bit move clears the upper half
			fmt.Fprintf(w, "\tmovl %s, %s\n", src(4), dst(4))
			return
		}
		fmt.Fprintf(w, "\tmovz%sq %s, %s\n", suffix(i.SrcSize), src(i.SrcSize), dst(8))

	case out.ILea:
		fmt.Fprintf(w, "\tleaq %s, %s\n", src(8), dst(8))

	case out.IAdd, out.ISub, out.IMul, out.IAnd, out.IOr, out.IXor, out.ICmp, out.ITest:
		fmt.Fprintf(w, "\t%s%s %s, %s\n", intMnemonics[i.Op], suffix(i.Size), src(i.Size), dst(i.Size))

	case out.IShl, out.ISar, out.IShr:
		count := src(1)
		fmt.Fprintf(w, "\t%s%s %s, %s\n", [...]string{"shl", "sar", "shr"}[i.Op-out.IShl], suffix(i.Size), count, dst(i.Size))

	case out.INeg:
		fmt.Fprintf(w, "\tneg%s %s\n", suffix(i.Size), dst(i.Size))
	case out.INot:
		fmt.Fprintf(w, "\tnot%s %s\n", suffix(i.Size), dst(i.Size))

	case out.ISet:
		fmt.Fprintf(w, "\tset%s %s\n", condCode(i.Cond), dst(1))

	case out.ICqo:
		fmt.Fprintf(w, "\tcqto\n")
	case out.IIDiv:
		fmt.Fprintf(w, "\tidiv%s %s\n", suffix(i.Size), src(i.Size))
	case out.IDiv:
		fmt.Fprintf(w, "\tdiv%s %s\n", suffix(i.Size), src(i.Size))

	case out.IPush:
		fmt.Fprintf(w, "\tpushq %s\n", src(8))
	case out.IPop:
		fmt.Fprintf(w, "\tpopq %s\n", dst(8))

	case out.ITrap:
		fmt.Fprintf(w, "\tud2\n")

	case out.ICall:
		switch {
		case i.Target == "":
			fmt.Fprintf(w, "\tcall *%s\n", src(8))
		case i.PLT:
			fmt.Fprintf(w, "\tcall %s@PLT\n", e.Symbol(i.Target))
		default:
			fmt.Fprintf(w, "\tcall %s\n", e.Symbol(i.Target))
		}

	case out.IJmp:
		fmt.Fprintf(w, "\tjmp %s\n", i.Target)
	case out.IJcc:
		fmt.Fprintf(w, "\tj%s %s\n", condCode(i.Cond), i.Target)

	case out.IMovF:
		fmt.Fprintf(w, "\tmov%s %s, %s\n", floatSuffix(i.Size), src(8), dst(8))
	case out.IMovQ:
		fmt.Fprintf(w, "\tmovq %s, %s\n", src(8), dst(8))
	case out.IAddF, out.ISubF, out.IMulF, out.IDivF, out.IUcomi:
		fmt.Fprintf(w, "\t%s%s %s, %s\n", floatMnemonics[i.Op], floatSuffix(i.Size), src(8), dst(8))
	case out.IXorF:
		if i.Size == 4 {
			fmt.Fprintf(w, "\txorps %s, %s\n", src(8), dst(8))
		} else {
			fmt.Fprintf(w, "\txorpd %s, %s\n", src(8), dst(8))
		}
	case out.ICvtIF:
		fmt.Fprintf(w, "\tcvtsi2%sq %s, %s\n", floatSuffix(i.Size), src(8), dst(8))
	case out.ICvtFI:
		fmt.Fprintf(w, "\tcvtt%s2siq %s, %s\n", floatSuffix(i.SrcSize), src(8), dst(8))
	case out.ICvtFF:
		fmt.Fprintf(w, "\tcvt%s2%s %s, %s\n", floatSuffix(i.SrcSize), floatSuffix(i.Size), src(8), dst(8))

	case out.IComment:
		fmt.Fprintf(w, "\t# %s\n", i.Text)
	case out.ILoc:
		fmt.Fprintf(w, "\t.loc 1 %d %d\n", i.Pos.Line, i.Pos.Column)

	default:
		diag.ICEAt(i.Pos, "opcode %d has no spelling", i.Op)
	}
}

// Data writes one data object.
func (e *Emitter) Data(d *out.Data) {
	var w *strings.Builder
	switch {
	case d.SectionName != "":
		flags := "aw"
		if d.Section == out.SecRoData {
			flags = "a"
		}
		w = e.section(d.SectionName, flags)
	case d.Section == out.SecRoData:
		w = &e.rodata
	case d.Section == out.SecBSS:
		w = &e.bss
	default:
		w = &e.data
	}

	name := e.Symbol(d.Name)
	e.linkage(w, name, d.Global, d.Weak)
	if !strings.HasPrefix(name, ".L") {
		fmt.Fprintf(w, "\t.type %s, @object\n", name)
		fmt.Fprintf(w, "\t.size %s, %d\n", name, d.Size)
	}
	if d.Align > 1 {
		fmt.Fprintf(w, "\t.align %d\n", d.Align)
	}
	fmt.Fprintf(w, "%s:\n", name)

	if d.Section == out.SecBSS {
		fmt.Fprintf(w, "\t.zero %d\n", d.Size)
		return
	}
	e.image(w, d)
}

// image writes the initial bytes of d with its relocations in place.
func (e *Emitter) image(w io.Writer, d *out.Data) {
	relocs := append([]out.Reloc{}, d.Relocs...)
	sort.Slice(relocs, func(i, j int) bool { return relocs[i].Offset < relocs[j].Offset })

	bytes := d.Bytes
	if int64(len(bytes)) < d.Size {
		bytes = append(append([]byte{}, bytes...), make([]byte, d.Size-int64(len(bytes)))...)
	}

	off := int64(0)
	for _, r := range relocs {
		e.bytes(w, bytes[off:r.Offset])
		directive := ".quad"
		if r.Size == 4 {
			directive = ".long"
		}
		fmt.Fprintf(w, "\t%s %s\n", directive, symOffset(e.Symbol(r.Sym), r.Addend))
		off = r.Offset + r.Size
	}
	e.bytes(w, bytes[off:])
}

// bytes writes b as .byte groups with long zero runs collapsed.
func (e *Emitter) bytes(w io.Writer, b []byte) {
	var group []string
	flush := func() {
		if len(group) > 0 {
			fmt.Fprintf(w, "\t.byte %s\n", strings.Join(group, ","))
			group = group[:0]
		}
	}

	for i := 0; i < len(b); {
		zeros := 0
		for i+zeros < len(b) && b[i+zeros] == 0 {
			zeros++
		}
		if zeros >= 8 {
			flush()
			fmt.Fprintf(w, "\t.zero %d\n", zeros)
			i += zeros
			continue
		}
		group = append(group, fmt.Sprint(b[i]))
		if len(group) == 16 {
			flush()
		}
		i++
	}
	flush()
}
