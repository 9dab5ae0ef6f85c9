package ast

import (
	"github.com/kartiknair/mycc/pkg/token"
)

// foldMark guards folding so each node is analyzed once.
type foldMark struct {
	folded bool
}

// MarkFolded marks the node folded and reports whether it already was.
func (m *foldMark) MarkFolded() bool {
	was := m.folded
	m.folded = true
	return was
}

type Statement interface {
	isStatement()
	Position() token.Pos
	MarkFolded() bool
}

type Expression interface {
	isExpression()
	Type() Type
	SetType(Type)
	Position() token.Pos
	MarkFolded() bool
}

// Initializer is an Expression or an *InitList.
type Initializer interface {
	Position() token.Pos
}

type stmtBase struct {
	foldMark
	Pos token.Pos
}

func (s *stmtBase) Position() token.Pos { return s.Pos }

type exprBase struct {
	foldMark
	Typ Type
	Pos token.Pos
}

func (e *exprBase) Type() Type          { return e.Typ }
func (e *exprBase) SetType(t Type)      { e.Typ = t }
func (e *exprBase) Position() token.Pos { return e.Pos }

type CompoundStatement struct {
	stmtBase
	Scope      *Scope
	Decls      []*Decl
	Statements []Statement
	End        token.Pos
}

type DeclStatement struct {
	stmtBase
	Decls []*Decl
}

type ExpressionStatement struct {
	stmtBase
	// Expr is nil for the empty statement.
	Expr Expression
}

type IfStatement struct {
	stmtBase
	Cond Expression
	Then Statement
	Else Statement
}

type WhileStatement struct {
	stmtBase
	Cond     Expression
	Body     Statement
	HasBreak bool
}

type DoStatement struct {
	stmtBase
	Body     Statement
	Cond     Expression
	HasBreak bool
}

type ForStatement struct {
	stmtBase
	Scope    *Scope
	Init     Statement
	Cond     Expression
	Post     Expression
	Body     Statement
	HasBreak bool
}

type SwitchStatement struct {
	stmtBase
	Cond     Expression
	Body     Statement
	Cases    []*CaseStatement
	Default  *DefaultStatement
	HasBreak bool
}

type CaseStatement struct {
	stmtBase
	Value  Expression
	Val    int64
	Body   Statement
	Switch *SwitchStatement
}

type DefaultStatement struct {
	stmtBase
	Body   Statement
	Switch *SwitchStatement
}

type BreakStatement struct {
	stmtBase
	// Target is the innermost loop or switch.
	Target Statement
}

type ContinueStatement struct {
	stmtBase
	Target Statement
}

type GotoStatement struct {
	stmtBase
	Name  string
	Label *Label
}

type ReturnStatement struct {
	stmtBase
	Value    Expression
	Function *Decl
}

type LabelStatement struct {
	stmtBase
	Name  string
	Label *Label
	Body  Statement
}

func (*CompoundStatement) isStatement()   {}
func (*DeclStatement) isStatement()       {}
func (*ExpressionStatement) isStatement() {}
func (*IfStatement) isStatement()         {}
func (*WhileStatement) isStatement()      {}
func (*DoStatement) isStatement()         {}
func (*ForStatement) isStatement()        {}
func (*SwitchStatement) isStatement()     {}
func (*CaseStatement) isStatement()       {}
func (*DefaultStatement) isStatement()    {}
func (*BreakStatement) isStatement()      {}
func (*ContinueStatement) isStatement()   {}
func (*GotoStatement) isStatement()       {}
func (*ReturnStatement) isStatement()     {}
func (*LabelStatement) isStatement()      {}

type IntLiteral struct {
	exprBase
	Value  uint64
	Suffix token.IntSuffix
	Char   bool
}

type FloatLiteral struct {
	exprBase
	Value  float64
	Single bool
}

type StringLiteral struct {
	exprBase
	Value string
	Wide  bool
	// Label is assigned when the literal is placed in read-only data.
	Label string
}

type Identifier struct {
	exprBase
	Name  string
	Decl  *Decl
	Enum  *EnumMember
	Scope *Scope
}

// UnaryExpression covers - + ! ~ * and &.
type UnaryExpression struct {
	exprBase
	Op      token.TokenType
	Operand Expression
}

type IncDecExpression struct {
	exprBase
	Target Expression
	Inc    bool
	Post   bool
	// Step is 1, or the pointee size for pointers.
	Step int64
}

type BinaryExpression struct {
	exprBase
	Op    token.TokenType
	Left  Expression
	Right Expression
	// PtrDiff is the pointee size when both operands are pointers.
	PtrDiff int64
}

type AssignExpression struct {
	exprBase
	// Op is token.EQUAL or a compound assignment operator.
	Op     token.TokenType
	Target Expression
	Value  Expression
	// OpType is the type a compound operation is carried out in.
	OpType Type
}

type CastExpression struct {
	exprBase
	To       Type
	Operand  Expression
	Implicit bool
}

type ConditionalExpression struct {
	exprBase
	Cond Expression
	// Then is nil for the `a ?: b` extension.
	Then Expression
	Else Expression
}

type CallExpression struct {
	exprBase
	Callee Expression
	Args   []Expression
}

type BuiltinCall struct {
	exprBase
	Builtin Builtin
	Name    string
	Args    []Expression
	Types   []Type
	// Call is the ordinary call used when a builtin cannot be folded.
	Call *CallExpression
}

type CommaExpression struct {
	exprBase
	Left  Expression
	Right Expression
}

type MemberExpression struct {
	exprBase
	Object Expression
	Name   string
	Arrow  bool
	Field  *Field
}

type SizeofExpression struct {
	exprBase
	Of      Type
	Operand Expression
	Align   bool
	Value   int64
}

func (*IntLiteral) isExpression()            {}
func (*FloatLiteral) isExpression()          {}
func (*StringLiteral) isExpression()         {}
func (*Identifier) isExpression()            {}
func (*UnaryExpression) isExpression()       {}
func (*IncDecExpression) isExpression()      {}
func (*BinaryExpression) isExpression()      {}
func (*AssignExpression) isExpression()      {}
func (*CastExpression) isExpression()        {}
func (*ConditionalExpression) isExpression() {}
func (*CallExpression) isExpression()        {}
func (*BuiltinCall) isExpression()           {}
func (*CommaExpression) isExpression()       {}
func (*MemberExpression) isExpression()      {}
func (*SizeofExpression) isExpression()      {}

// InitList is a braced initializer. After folding, Items holds one entry
// per member or element of Type, with nil for zero-filled slots.
type InitList struct {
	Pos        token.Pos
	Items      []Initializer
	Type       Type
	Normalized bool
}

func (l *InitList) Position() token.Pos { return l.Pos }

// Constructors used by the parser and by folding rewrites.

func NewIdentifier(tok token.Token, scope *Scope) *Identifier {
	e := &Identifier{Name: tok.Lexeme, Scope: scope}
	e.Pos = tok.Pos
	return e
}

func NewIntLiteral(pos token.Pos, v uint64, t Type) *IntLiteral {
	e := &IntLiteral{Value: v}
	e.Pos = pos
	e.Typ = t
	return e
}

func NewFloatLiteral(pos token.Pos, v float64, single bool) *FloatLiteral {
	e := &FloatLiteral{Value: v, Single: single}
	e.Pos = pos
	return e
}

func NewStringLiteral(pos token.Pos, v string, wide bool) *StringLiteral {
	e := &StringLiteral{Value: v, Wide: wide}
	e.Pos = pos
	return e
}

func NewUnary(pos token.Pos, op token.TokenType, operand Expression) *UnaryExpression {
	e := &UnaryExpression{Op: op, Operand: operand}
	e.Pos = pos
	return e
}

func NewBinary(pos token.Pos, op token.TokenType, l, r Expression) *BinaryExpression {
	e := &BinaryExpression{Op: op, Left: l, Right: r}
	e.Pos = pos
	return e
}

func NewIncDec(pos token.Pos, target Expression, inc, post bool) *IncDecExpression {
	e := &IncDecExpression{Target: target, Inc: inc, Post: post}
	e.Pos = pos
	return e
}

func NewAssign(pos token.Pos, op token.TokenType, target, value Expression) *AssignExpression {
	e := &AssignExpression{Op: op, Target: target, Value: value}
	e.Pos = pos
	return e
}

func NewCast(pos token.Pos, to Type, operand Expression, implicit bool) *CastExpression {
	e := &CastExpression{To: to, Operand: operand, Implicit: implicit}
	e.Pos = pos
	return e
}

func NewConditional(pos token.Pos, cond, then, els Expression) *ConditionalExpression {
	e := &ConditionalExpression{Cond: cond, Then: then, Else: els}
	e.Pos = pos
	return e
}

func NewCall(pos token.Pos, callee Expression, args []Expression) *CallExpression {
	e := &CallExpression{Callee: callee, Args: args}
	e.Pos = pos
	return e
}

func NewBuiltinCall(pos token.Pos, b Builtin, name string) *BuiltinCall {
	e := &BuiltinCall{Builtin: b, Name: name}
	e.Pos = pos
	return e
}

func NewComma(pos token.Pos, l, r Expression) *CommaExpression {
	e := &CommaExpression{Left: l, Right: r}
	e.Pos = pos
	return e
}

func NewMember(pos token.Pos, obj Expression, name string, arrow bool) *MemberExpression {
	e := &MemberExpression{Object: obj, Name: name, Arrow: arrow}
	e.Pos = pos
	return e
}

func NewSizeof(pos token.Pos, of Type, operand Expression, align bool) *SizeofExpression {
	e := &SizeofExpression{Of: of, Operand: operand, Align: align}
	e.Pos = pos
	return e
}

// TranslationUnit accumulates the top-level declarations of one file.
type TranslationUnit struct {
	Path   string
	Source string
	Scope  *Scope
	Decls  []*Decl
}
