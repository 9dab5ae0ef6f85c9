package ast

import (
	"modernc.org/mathutil"
)

// TypeNav hands out canonical primitive types and knows the target's
// object layout. It is populated once per compilation and then only read.
type TypeNav struct {
	WordSize int64

	prims [LongDouble + 1][2]*Primitive
}

func NewTypeNav(wordSize int) *TypeNav {
	nav := &TypeNav{WordSize: int64(wordSize)}
	for k := Void; k <= LongDouble; k++ {
		nav.prims[k][0] = &Primitive{Kind: k}
		nav.prims[k][1] = &Primitive{Kind: k, Unsigned: true}
	}
	return nav
}

func (n *TypeNav) Prim(k Kind, unsigned bool) *Primitive {
	if unsigned {
		return n.prims[k][1]
	}
	return n.prims[k][0]
}

func (n *TypeNav) Void() *Primitive { return n.Prim(Void, false) }
func (n *TypeNav) Int() *Primitive  { return n.Prim(Int, false) }
func (n *TypeNav) Char() *Primitive { return n.Prim(Char, false) }

// IntPtr is the signed integer type as wide as a pointer.
func (n *TypeNav) IntPtr() *Primitive {
	return n.Prim(Long, false)
}

// SizeT is the unsigned integer type of sizeof.
func (n *TypeNav) SizeT() *Primitive {
	return n.Prim(Long, true)
}

func (n *TypeNav) PointerTo(t Type) *Pointer {
	return &Pointer{Elem: t}
}

// Decay converts array and function types to the pointer they decay to in
// rvalue context.
func (n *TypeNav) Decay(t Type) Type {
	switch tt := t.(type) {
	case *Array:
		return &Pointer{Elem: tt.Elem}
	case *Function:
		return &Pointer{Elem: tt}
	}
	return t
}

var primSizeTab = [...]int64{
	Void:       1,
	Bool:       1,
	Char:       1,
	Short:      2,
	Int:        4,
	Long:       -1,
	LongLong:   8,
	Float:      4,
	Double:     8,
	LongDouble: 8,
}

func (n *TypeNav) Size(t Type) int64 {
	switch t := t.(type) {
	case *Primitive:
		if t.Kind == Long {
			return n.WordSize
		}
		return primSizeTab[t.Kind]
	case *Pointer:
		return n.WordSize
	case *Array:
		if !t.Sized {
			return 0
		}
		return t.Len * n.Size(t.Elem)
	case *Record:
		return t.Def.Size
	case *Enum:
		return 4
	case *Function:
		return 1
	}
	panic(t)
}

func (n *TypeNav) Align(t Type) int64 {
	switch t := t.(type) {
	case *Primitive, *Pointer, *Enum, *Function:
		return n.Size(t)
	case *Array:
		return n.Align(t.Elem)
	case *Record:
		if t.Def.Align == 0 {
			return 1
		}
		return t.Def.Align
	}
	panic(t)
}

func AlignTo(v, align int64) int64 {
	if align <= 1 {
		return v
	}
	return (v + align - 1) / align * align
}

// LayoutRecord assigns field offsets and the total size of a completed
// struct or union. Consecutive bit-fields share a storage unit of their
// declared type while they fit in it.
func (n *TypeNav) LayoutRecord(def *RecordDef) {
	var offset, align int64 = 0, 1

	var (
		unitOff  int64 = -1
		unitSize int64
		unitBits int
	)

	for _, f := range def.Fields {
		size, falign := n.Size(f.Type), n.Align(f.Type)
		align = mathutil.MaxInt64(align, falign)

		if def.Union {
			f.Offset = 0
			f.BitOff = 0
			offset = mathutil.MaxInt64(offset, size)
			continue
		}

		if !f.IsBitField() {
			unitOff = -1
			offset = AlignTo(offset, falign)
			f.Offset = offset
			offset += size
			continue
		}

		if f.BitWidth == 0 {
			unitOff = -1
			offset = AlignTo(offset, falign)
			continue
		}

		if unitOff < 0 || unitSize != size || unitBits+f.BitWidth > int(size*8) {
			unitOff = AlignTo(offset, falign)
			unitSize = size
			unitBits = 0
			offset = unitOff + size
		}
		f.Offset = unitOff
		f.BitOff = unitBits
		unitBits += f.BitWidth
	}

	def.Align = align
	def.Size = AlignTo(offset, align)
}

// IntegerRank orders integral kinds for the usual arithmetic conversions.
func IntegerRank(t Type) int {
	switch t := t.(type) {
	case *Primitive:
		return int(t.Kind)
	case *Enum:
		return int(Int)
	}
	return -1
}

// Promote applies the integer promotions.
func (n *TypeNav) Promote(t Type) Type {
	switch tt := t.(type) {
	case *Primitive:
		if tt.Kind < Int && tt.Kind != Void {
			return n.Int()
		}
		return Unqualified(t)
	case *Enum:
		return n.Int()
	}
	return Unqualified(t)
}

// Common returns the type two arithmetic operands are converted to.
func (n *TypeNav) Common(a, b Type) Type {
	if IsFloating(a) || IsFloating(b) {
		ka, kb := Int, Int
		if p, ok := a.(*Primitive); ok && IsFloating(a) {
			ka = p.Kind
		}
		if p, ok := b.(*Primitive); ok && IsFloating(b) {
			kb = p.Kind
		}
		return n.Prim(Kind(mathutil.Max(int(ka), int(kb))), false)
	}

	a, b = n.Promote(a), n.Promote(b)
	pa, pb := a.(*Primitive), b.(*Primitive)

	if pa.Kind == pb.Kind {
		return n.Prim(pa.Kind, pa.Unsigned || pb.Unsigned)
	}
	if n.Size(pa) == n.Size(pb) {
		// long vs long long on LP64: same width, the higher rank wins
		hi := pa
		if pb.Kind > pa.Kind {
			hi = pb
		}
		return n.Prim(hi.Kind, pa.Unsigned || pb.Unsigned)
	}
	if n.Size(pa) > n.Size(pb) {
		return pa
	}
	return pb
}
