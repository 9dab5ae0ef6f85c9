package ast

import (
	"fmt"
	"strings"

	"github.com/kartiknair/mycc/pkg/token"
)

type Qualifier int

const (
	QualConst Qualifier = 1 << iota
	QualVolatile
)

func (q Qualifier) String() string {
	var parts []string
	if q&QualConst != 0 {
		parts = append(parts, "const")
	}
	if q&QualVolatile != 0 {
		parts = append(parts, "volatile")
	}
	return strings.Join(parts, " ")
}

type Kind int

const (
	Void Kind = iota
	Bool
	Char
	Short
	Int
	Long
	LongLong
	Float
	Double
	LongDouble
)

var kindNames = [...]string{
	Void:       "void",
	Bool:       "_Bool",
	Char:       "char",
	Short:      "short",
	Int:        "int",
	Long:       "long",
	LongLong:   "long long",
	Float:      "float",
	Double:     "double",
	LongDouble: "long double",
}

type Type interface {
	isType()
	String() string
	Qualifiers() Qualifier
	// WithQualifiers copies the outermost type node with q as its qualifiers.
	WithQualifiers(q Qualifier) Type
}

type Primitive struct {
	Kind     Kind
	Unsigned bool
	Qual     Qualifier
}

type Pointer struct {
	Elem Type
	Qual Qualifier
}

type Array struct {
	Elem Type
	// LenExpr is the parsed size; Len is valid once Sized is set.
	LenExpr Expression
	Len     int64
	Sized   bool
}

type Function struct {
	Params   []Type
	Variadic bool
	// NoProto marks an old-style `f()` declaration with unchecked arguments.
	NoProto bool
	Return  Type
}

type Field struct {
	Name      string
	Type      Type
	Pos       token.Pos
	Offset    int64
	BitWidth  int
	BitOff    int
	WidthExpr Expression
}

type RecordDef struct {
	Tag      string
	Union    bool
	Fields   []*Field
	Complete bool
	Size     int64
	Align    int64
	Pos      token.Pos
}

type Record struct {
	Def  *RecordDef
	Qual Qualifier
}

type EnumMember struct {
	Name  string
	Expr  Expression
	Value int64
	Pos   token.Pos
	Def   *EnumDef
}

type EnumDef struct {
	Tag      string
	Members  []*EnumMember
	Complete bool
	Pos      token.Pos
}

type Enum struct {
	Def  *EnumDef
	Qual Qualifier
}

func (*Primitive) isType() {}
func (*Pointer) isType()   {}
func (*Array) isType()     {}
func (*Function) isType()  {}
func (*Record) isType()    {}
func (*Enum) isType()      {}

func (p *Primitive) Qualifiers() Qualifier { return p.Qual }
func (p *Pointer) Qualifiers() Qualifier   { return p.Qual }
func (a *Array) Qualifiers() Qualifier     { return a.Elem.Qualifiers() }
func (f *Function) Qualifiers() Qualifier  { return 0 }
func (r *Record) Qualifiers() Qualifier    { return r.Qual }
func (e *Enum) Qualifiers() Qualifier      { return e.Qual }

func (p *Primitive) WithQualifiers(q Qualifier) Type {
	c := *p
	c.Qual = q
	return &c
}

func (p *Pointer) WithQualifiers(q Qualifier) Type {
	c := *p
	c.Qual = q
	return &c
}

// Qualifiers on an array apply to its elements.
func (a *Array) WithQualifiers(q Qualifier) Type {
	c := *a
	c.Elem = a.Elem.WithQualifiers(q)
	return &c
}

func (f *Function) WithQualifiers(Qualifier) Type { return f }

func (r *Record) WithQualifiers(q Qualifier) Type {
	return &Record{Def: r.Def, Qual: q}
}

func (e *Enum) WithQualifiers(q Qualifier) Type {
	return &Enum{Def: e.Def, Qual: q}
}

func qualPrefix(q Qualifier) string {
	if q == 0 {
		return ""
	}
	return q.String() + " "
}

func (p *Primitive) String() string {
	name := kindNames[p.Kind]
	if p.Unsigned && p.Kind != Bool {
		name = "unsigned " + name
	}
	return qualPrefix(p.Qual) + name
}

func (p *Pointer) String() string {
	s := p.Elem.String()
	if _, ok := p.Elem.(*Function); ok {
		s = strings.Replace(s, " (", " (*)(", 1)
		return s
	}
	s += " *"
	if p.Qual != 0 {
		s += " " + p.Qual.String()
	}
	return s
}

func (a *Array) String() string {
	if !a.Sized {
		return a.Elem.String() + " []"
	}
	return fmt.Sprintf("%s [%d]", a.Elem.String(), a.Len)
}

func (f *Function) String() string {
	params := make([]string, 0, len(f.Params)+1)
	for _, p := range f.Params {
		params = append(params, p.String())
	}
	if f.Variadic {
		params = append(params, "...")
	}
	if len(params) == 0 && !f.NoProto {
		params = append(params, "void")
	}
	return fmt.Sprintf("%s (%s)", f.Return.String(), strings.Join(params, ", "))
}

func (r *Record) String() string {
	kw := "struct"
	if r.Def.Union {
		kw = "union"
	}
	tag := r.Def.Tag
	if tag == "" {
		tag = "<anon>"
	}
	return qualPrefix(r.Qual) + kw + " " + tag
}

func (e *Enum) String() string {
	tag := e.Def.Tag
	if tag == "" {
		tag = "<anon>"
	}
	return qualPrefix(e.Qual) + "enum " + tag
}

// Field returns the named member of a record, or nil.
func (d *RecordDef) Field(name string) *Field {
	for _, f := range d.Fields {
		if f.Name == name {
			return f
		}
	}
	return nil
}

func (f *Field) IsBitField() bool {
	return f.BitWidth >= 0
}

// CmpMode selects how strictly Equal compares two types.
type CmpMode int

const (
	CmpExact CmpMode = 0

	CmpIgnoreQual   CmpMode = 1
	CmpAllowSign    CmpMode = 2
	CmpAllowVoidPtr CmpMode = 4

	CmpLoose = CmpIgnoreQual | CmpAllowSign | CmpAllowVoidPtr
)

// Equal compares two types structurally. CmpExact requires qualifiers and
// signedness to match at every level.
func Equal(a, b Type, mode CmpMode) bool {
	if a == b {
		return true
	}
	if mode&CmpIgnoreQual == 0 && a.Qualifiers() != b.Qualifiers() {
		if _, isArr := a.(*Array); !isArr {
			return false
		}
	}

	switch a := a.(type) {
	case *Primitive:
		switch b := b.(type) {
		case *Primitive:
			if a.Kind != b.Kind {
				return false
			}
			return a.Unsigned == b.Unsigned || mode&CmpAllowSign != 0
		case *Enum:
			return mode&CmpAllowSign != 0 && a.Kind == Int
		}
		return false

	case *Pointer:
		b, ok := b.(*Pointer)
		if !ok {
			return false
		}
		if mode&CmpAllowVoidPtr != 0 && (IsVoid(a.Elem) || IsVoid(b.Elem)) {
			return true
		}
		return Equal(a.Elem, b.Elem, mode)

	case *Array:
		b, ok := b.(*Array)
		if !ok {
			return false
		}
		if a.Sized && b.Sized && a.Len != b.Len {
			return false
		}
		return Equal(a.Elem, b.Elem, mode)

	case *Function:
		b, ok := b.(*Function)
		if !ok {
			return false
		}
		if !Equal(a.Return, b.Return, mode) {
			return false
		}
		if a.NoProto || b.NoProto {
			return true
		}
		if a.Variadic != b.Variadic || len(a.Params) != len(b.Params) {
			return false
		}
		for i := range a.Params {
			if !Equal(a.Params[i], b.Params[i], mode|CmpIgnoreQual) {
				return false
			}
		}
		return true

	case *Record:
		b, ok := b.(*Record)
		return ok && a.Def == b.Def

	case *Enum:
		switch b := b.(type) {
		case *Enum:
			return a.Def == b.Def
		case *Primitive:
			return mode&CmpAllowSign != 0 && b.Kind == Int
		}
		return false
	}

	panic(fmt.Sprintf("Equal: unhandled type %T", a))
}

func Unqualified(t Type) Type {
	if t.Qualifiers() == 0 {
		return t
	}
	if _, ok := t.(*Array); ok {
		return t
	}
	return t.WithQualifiers(0)
}

func IsVoid(t Type) bool {
	p, ok := t.(*Primitive)
	return ok && p.Kind == Void
}

func IsIntegral(t Type) bool {
	switch t := t.(type) {
	case *Primitive:
		return t.Kind >= Bool && t.Kind <= LongLong
	case *Enum:
		return true
	}
	return false
}

func IsFloating(t Type) bool {
	p, ok := t.(*Primitive)
	return ok && p.Kind >= Float
}

func IsArithmetic(t Type) bool {
	return IsIntegral(t) || IsFloating(t)
}

func IsPointer(t Type) bool {
	_, ok := t.(*Pointer)
	return ok
}

func IsScalar(t Type) bool {
	return IsArithmetic(t) || IsPointer(t)
}

func IsArray(t Type) bool {
	_, ok := t.(*Array)
	return ok
}

func IsFunction(t Type) bool {
	_, ok := t.(*Function)
	return ok
}

func IsRecord(t Type) bool {
	_, ok := t.(*Record)
	return ok
}

func IsAggregate(t Type) bool {
	return IsArray(t) || IsRecord(t)
}

func IsVoidPointer(t Type) bool {
	p, ok := t.(*Pointer)
	return ok && IsVoid(p.Elem)
}

func IsCharType(t Type) bool {
	p, ok := t.(*Primitive)
	return ok && p.Kind == Char
}

// IsSigned reports signedness of an integral type; enums are signed.
func IsSigned(t Type) bool {
	switch t := t.(type) {
	case *Primitive:
		return !t.Unsigned && t.Kind != Bool
	case *Enum:
		return true
	}
	return false
}

// Pointee returns the element type of a pointer or array, or nil.
func Pointee(t Type) Type {
	switch t := t.(type) {
	case *Pointer:
		return t.Elem
	case *Array:
		return t.Elem
	}
	return nil
}

// FunctionOf returns the signature of a function or function pointer.
func FunctionOf(t Type) *Function {
	switch t := t.(type) {
	case *Function:
		return t
	case *Pointer:
		if f, ok := t.Elem.(*Function); ok {
			return f
		}
	}
	return nil
}

// IsComplete reports whether an object of type t has a known size.
func IsComplete(t Type) bool {
	switch t := t.(type) {
	case *Primitive:
		return t.Kind != Void
	case *Array:
		return t.Sized && IsComplete(t.Elem)
	case *Record:
		return t.Def.Complete
	case *Function:
		return false
	}
	return true
}
