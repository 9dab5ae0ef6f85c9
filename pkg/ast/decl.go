package ast

import (
	"github.com/kartiknair/mycc/pkg/token"
)

type StorageClass int

const (
	StorageNone StorageClass = iota
	StorageAuto
	StorageRegister
	StorageStatic
	StorageExtern
	StorageTypedef
)

func (s StorageClass) String() string {
	return [...]string{"", "auto", "register", "static", "extern", "typedef"}[s]
}

type AttrKind int

const (
	AttrNoreturn AttrKind = iota
	AttrFormat
	AttrUnused
	AttrWarnUnusedResult
	AttrWeak
	AttrSection
)

type Attribute struct {
	Kind AttrKind
	Pos  token.Pos

	// format(printf, FmtIdx, VarIdx); indices are 1-based.
	FmtIdx int
	VarIdx int
	Valid  bool

	Section string
}

type Decl struct {
	foldMark

	Name     string
	Type     Type
	Storage  StorageClass
	Init     Initializer
	BitWidth Expression
	Pos      token.Pos
	Attrs    []*Attribute
	Inline   bool

	// Function definitions only.
	Body   *CompoundStatement
	Params []*Decl
	Scope  *Scope

	Sym      *Symbol
	Implicit bool
	// Prev links a redeclaration to the first declaration of the name.
	Prev *Decl
}

func (d *Decl) IsFunction() bool {
	return IsFunction(d.Type)
}

func (d *Decl) IsTypedef() bool {
	return d.Storage == StorageTypedef
}

func (d *Decl) Attr(kind AttrKind) *Attribute {
	for _, a := range d.Attrs {
		if a.Kind == kind {
			return a
		}
	}
	if d.Prev != nil {
		return d.Prev.Attr(kind)
	}
	return nil
}

// StaticDuration reports whether the object lives in a data section.
func (d *Decl) StaticDuration() bool {
	if d.Sym == nil {
		return false
	}
	return d.Sym.Kind == SymGlobal || d.Storage == StorageStatic || d.Storage == StorageExtern
}

// InternalLinkage reports a name only this unit can see: a declaration of
// it was static.
func (d *Decl) InternalLinkage() bool {
	for x := d; x != nil; x = x.Prev {
		if x.Storage == StorageStatic {
			return true
		}
	}
	return d.Sym != nil && d.Sym.Decl != nil && d.Sym.Decl.Storage == StorageStatic
}

type SymbolKind int

const (
	SymGlobal SymbolKind = iota
	SymLocal
	SymParam
)

// Symbol is the storage side of a declaration. The generator fills in
// Label or Offset when it places the object.
type Symbol struct {
	Decl  *Decl
	Kind  SymbolKind
	Index int

	Reads  int
	Writes int

	Label  string
	Offset int64
	Placed bool
}

// Label is a goto target. A label is created at its first mention and
// completed once its definition is parsed.
type Label struct {
	Name     string
	Pos      token.Pos
	Complete bool
	Uses     int
	Stmt     *LabelStatement
}

// Scope is one level of the symbol table tree. Function-root scopes also own
// the labels of their function.
type Scope struct {
	Parent   *Scope
	Children []*Scope
	Decls    []*Decl
	Function *Decl

	names  map[string]*Decl
	enums  map[string]*EnumMember
	tags   map[string]Type
	labels map[string]*Label
	order  []*Label
}

func NewScope(parent *Scope) *Scope {
	s := &Scope{
		Parent: parent,
		names:  map[string]*Decl{},
		enums:  map[string]*EnumMember{},
		tags:   map[string]Type{},
	}
	if parent != nil {
		parent.Children = append(parent.Children, s)
	}
	return s
}

func (s *Scope) IsGlobal() bool {
	return s.Parent == nil
}

// Declare adds d and returns any declaration of the same name already in
// this scope.
func (s *Scope) Declare(d *Decl) *Decl {
	prev := s.names[d.Name]
	if d.Name != "" {
		s.names[d.Name] = d
	}
	s.Decls = append(s.Decls, d)
	return prev
}

func (s *Scope) DeclareEnumMember(m *EnumMember) {
	s.enums[m.Name] = m
}

// Lookup resolves an ordinary identifier to a declaration or enum member.
func (s *Scope) Lookup(name string) (*Decl, *EnumMember) {
	for sc := s; sc != nil; sc = sc.Parent {
		if d, ok := sc.names[name]; ok {
			return d, nil
		}
		if m, ok := sc.enums[name]; ok {
			return nil, m
		}
	}
	return nil, nil
}

func (s *Scope) LookupLocal(name string) *Decl {
	return s.names[name]
}

func (s *Scope) LookupTag(name string) Type {
	for sc := s; sc != nil; sc = sc.Parent {
		if t, ok := sc.tags[name]; ok {
			return t
		}
	}
	return nil
}

func (s *Scope) LookupTagLocal(name string) Type {
	return s.tags[name]
}

func (s *Scope) DeclareTag(name string, t Type) {
	s.tags[name] = t
}

func (s *Scope) Global() *Scope {
	sc := s
	for sc.Parent != nil {
		sc = sc.Parent
	}
	return sc
}

// FuncRoot returns the outermost scope of the enclosing function, or nil at
// file scope.
func (s *Scope) FuncRoot() *Scope {
	for sc := s; sc != nil; sc = sc.Parent {
		if sc.Function != nil {
			return sc
		}
	}
	return nil
}

// FindOrNewLabel returns the label called name, creating a placeholder for
// a forward reference.
func (s *Scope) FindOrNewLabel(name string, pos token.Pos) *Label {
	root := s.FuncRoot()
	if root == nil {
		return nil
	}
	if root.labels == nil {
		root.labels = map[string]*Label{}
	}
	if l, ok := root.labels[name]; ok {
		return l
	}
	l := &Label{Name: name, Pos: pos}
	root.labels[name] = l
	root.order = append(root.order, l)
	return l
}

// Labels returns the labels of a function-root scope in creation order.
func (s *Scope) Labels() []*Label {
	return s.order
}
