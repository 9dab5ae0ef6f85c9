package gen

import (
	"encoding/binary"

	"github.com/kartiknair/mycc/pkg/ast"
	"github.com/kartiknair/mycc/pkg/config"
	"github.com/kartiknair/mycc/pkg/consteval"
	"github.com/kartiknair/mycc/pkg/diag"
	"github.com/kartiknair/mycc/pkg/gen/out"
)

// object emits the data image of a static-duration object with an
// initialiser.
func (g *Generator) object(d *ast.Decl, name string, global bool) {
	size := g.nav.Size(d.Type)
	data := &out.Data{
		Name:   name,
		Global: global,
		Weak:   d.Attr(ast.AttrWeak) != nil,
		Align:  g.nav.Align(d.Type),
		Size:   size,
		Bytes:  make([]byte, size),
	}
	g.image(data, 0, d.Init, d.Type)
	g.place(d, data)
	g.sink.Data(data)
}

// place picks the section of an object.
func (g *Generator) place(d *ast.Decl, data *out.Data) {
	if a := d.Attr(ast.AttrSection); a != nil {
		data.Section = out.SecData
		data.SectionName = a.Section
		return
	}
	readonly := d.Type.Qualifiers()&ast.QualConst != 0 && d.Type.Qualifiers()&ast.QualVolatile == 0
	switch {
	case readonly && (len(data.Relocs) == 0 || !g.cfg.IsFeatureEnabled(config.FeatPIC)):
		data.Section = out.SecRoData
	case data.IsZero():
		data.Section = out.SecBSS
	default:
		data.Section = out.SecData
	}
}

// image writes init, an initialiser of type t, into data at off.
func (g *Generator) image(data *out.Data, off int64, init ast.Initializer, t ast.Type) {
	switch init := init.(type) {
	case nil:

	case *ast.InitList:
		switch tt := t.(type) {
		case *ast.Array:
			size := g.nav.Size(tt.Elem)
			for i, item := range init.Items {
				g.image(data, off+int64(i)*size, item, tt.Elem)
			}
		case *ast.Record:
			for i, item := range init.Items {
				if item == nil || i >= len(tt.Def.Fields) {
					continue
				}
				f := tt.Def.Fields[i]
				if f.IsBitField() {
					g.imageBits(data, off+f.Offset, f, item)
					continue
				}
				g.image(data, off+f.Offset, item, f.Type)
			}
		default:
			if len(init.Items) > 0 {
				g.image(data, off, init.Items[0], t)
			}
		}

	case *ast.StringLiteral:
		if arr, ok := t.(*ast.Array); ok {
			copy(data.Bytes[off:off+g.nav.Size(arr)], stringBytes(init, g.nav.Size(arr.Elem)))
			return
		}
		g.imageScalar(data, off, init, t)

	case ast.Expression:
		g.imageScalar(data, off, init, t)
	}
}

func (g *Generator) imageScalar(data *out.Data, off int64, e ast.Expression, t ast.Type) {
	size := g.nav.Size(t)
	c := g.ev.Eval(e)

	switch c.Kind {
	case consteval.Value:
		switch {
		case ast.IsFloating(t):
			f := c.Float
			if !c.IsFloat {
				f = float64(c.Int)
			}
			putInt(data.Bytes[off:], out.FloatBits(f, size), size)
		case c.IsFloat:
			putInt(data.Bytes[off:], g.ev.Truncate(int64(c.Float), t), size)
		default:
			putInt(data.Bytes[off:], g.ev.Truncate(c.Int, t), size)
		}

	case consteval.Addr:
		data.Relocs = append(data.Relocs, out.Reloc{Offset: off, Sym: g.symName(c.Decl), Addend: c.Offset, Size: size})

	case consteval.String:
		data.Relocs = append(data.Relocs, out.Reloc{Offset: off, Sym: g.stringLabel(c.Str), Addend: c.Offset, Size: size})

	default:
		diag.ICEAt(e.Position(), "initialiser of static object is not constant")
	}
}

// imageBits merges one bit-field into the storage unit at off.
func (g *Generator) imageBits(data *out.Data, off int64, f *ast.Field, init ast.Initializer) {
	e, ok := init.(ast.Expression)
	if !ok {
		diag.ICEAt(init.Position(), "braced initialiser for bit-field '%s'", f.Name)
	}
	c := g.ev.Eval(e)
	if c.Kind != consteval.Value || c.IsFloat {
		diag.ICEAt(e.Position(), "initialiser of bit-field '%s' is not constant", f.Name)
	}

	size := g.nav.Size(f.Type)
	mask := uint64(1)<<uint(f.BitWidth) - 1
	unit := uint64(getInt(data.Bytes[off:], size))
	unit &^= mask << uint(f.BitOff)
	unit |= (uint64(c.Int) & mask) << uint(f.BitOff)
	putInt(data.Bytes[off:], int64(unit), size)
}

func putInt(b []byte, v int64, size int64) {
	switch size {
	case 1:
		b[0] = byte(v)
	case 2:
		binary.LittleEndian.PutUint16(b, uint16(v))
	case 4:
		binary.LittleEndian.PutUint32(b, uint32(v))
	default:
		binary.LittleEndian.PutUint64(b, uint64(v))
	}
}

func getInt(b []byte, size int64) int64 {
	switch size {
	case 1:
		return int64(b[0])
	case 2:
		return int64(binary.LittleEndian.Uint16(b))
	case 4:
		return int64(binary.LittleEndian.Uint32(b))
	}
	return int64(binary.LittleEndian.Uint64(b))
}

// stringBytes is the image of a string literal with its terminator, each
// character widened to elem bytes.
func stringBytes(s *ast.StringLiteral, elem int64) []byte {
	if !s.Wide {
		return append([]byte(s.Value), 0)
	}
	b := make([]byte, (int64(len(s.Value))+1)*elem)
	for i := 0; i < len(s.Value); i++ {
		putInt(b[int64(i)*elem:], int64(s.Value[i]), elem)
	}
	return b
}

// stringLabel places s in read-only data on first use.
func (g *Generator) stringLabel(s *ast.StringLiteral) string {
	if s.Label != "" {
		return s.Label
	}
	s.Label = g.labels.New("str")

	elem := int64(1)
	if s.Wide {
		elem = 4
	}
	b := stringBytes(s, elem)
	g.sink.Data(&out.Data{
		Name:    s.Label,
		Section: out.SecRoData,
		Align:   elem,
		Size:    int64(len(b)),
		Bytes:   b,
	})
	return s.Label
}
