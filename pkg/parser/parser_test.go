package parser_test

import (
	"strings"
	"testing"

	"github.com/alecthomas/repr"
	"github.com/kartiknair/mycc/pkg/analyzer"
	"github.com/kartiknair/mycc/pkg/ast"
	"github.com/kartiknair/mycc/pkg/config"
	"github.com/kartiknair/mycc/pkg/diag"
	"github.com/kartiknair/mycc/pkg/parser"
	"github.com/kartiknair/mycc/pkg/token"
)

func parse(t *testing.T, src string) ([]*ast.Decl, *diag.Reporter) {
	t.Helper()
	cfg := config.Default()
	rep := diag.NewReporter(cfg, nil)
	nav := ast.NewTypeNav(cfg.WordSize)
	an := analyzer.New(cfg, nav, rep)
	p := parser.New(&ast.TranslationUnit{Path: "test.c", Source: src}, cfg, nav, rep, an)

	var all []*ast.Decl
	for {
		decls, ok := p.Next()
		if !ok {
			return all, rep
		}
		all = append(all, decls...)
	}
}

func find(decls []*ast.Decl, name string) *ast.Decl {
	for _, d := range decls {
		if d.Name == name {
			return d
		}
	}
	return nil
}

func errorMessages(rep *diag.Reporter) []string {
	var msgs []string
	for _, d := range rep.Diagnostics {
		if d.Severity != diag.SevWarning {
			msgs = append(msgs, d.Message)
		}
	}
	return msgs
}

func hasMessage(msgs []string, sub string) bool {
	for _, m := range msgs {
		if strings.Contains(m, sub) {
			return true
		}
	}
	return false
}

func TestDeclarations(t *testing.T) {
	decls, rep := parse(t, `
int x, *p;
static char *s = "hi";
int add(int a, int b) { return a + b; }
extern double d[];
`)
	if rep.Failed() {
		t.Fatalf("unexpected errors: %v", errorMessages(rep))
	}

	x := find(decls, "x")
	if x == nil {
		t.Fatalf("x was not declared")
	}
	if !ast.Equal(x.Type, &ast.Primitive{Kind: ast.Int}, ast.CmpExact) {
		t.Errorf("x: got %s", x.Type)
	}
	if p := find(decls, "p"); p == nil || !ast.IsPointer(p.Type) {
		t.Errorf("p should be a pointer")
	}
	if s := find(decls, "s"); s == nil || s.Storage != ast.StorageStatic || s.Init == nil {
		t.Errorf("s should be a static with an initialiser")
	}

	add := find(decls, "add")
	if add == nil || add.Body == nil || len(add.Params) != 2 {
		t.Fatalf("add: expected a definition with two parameters")
	}
	if len(add.Body.Statements) != 1 {
		t.Errorf("add: got %d statements", len(add.Body.Statements))
	}

	d := find(decls, "d")
	if arr, ok := d.Type.(*ast.Array); !ok || arr.Sized {
		t.Errorf("d: got %s", d.Type)
	}
}

func TestPrecedence(t *testing.T) {
	decls, rep := parse(t, "int x = 1 + 2 * 3 << 1;")
	if rep.Failed() {
		t.Fatalf("unexpected errors: %v", errorMessages(rep))
	}
	shift, ok := decls[0].Init.(*ast.BinaryExpression)
	if !ok || shift.Op != token.SHIFT_LEFT {
		t.Fatalf("root: got %s", repr.String(decls[0].Init))
	}
	plus, ok := shift.Left.(*ast.BinaryExpression)
	if !ok || plus.Op != token.PLUS {
		t.Fatalf("left of <<: got %T", shift.Left)
	}
	if mul, ok := plus.Right.(*ast.BinaryExpression); !ok || mul.Op != token.STAR {
		t.Errorf("right of +: got %T", plus.Right)
	}
}

func TestRecordLayout(t *testing.T) {
	decls, rep := parse(t, `
struct S { char c; int i; short s; } v;
struct B { unsigned a:3; unsigned b:5; int c; } w;
union U { char c; double d; } u;
`)
	if rep.Failed() {
		t.Fatalf("unexpected errors: %v", errorMessages(rep))
	}

	s := find(decls, "v").Type.(*ast.Record).Def
	if s.Size != 12 || s.Align != 4 {
		t.Errorf("struct S: size %d align %d", s.Size, s.Align)
	}
	offsets := []int64{0, 4, 8}
	for i, f := range s.Fields {
		if f.Offset != offsets[i] {
			t.Errorf("struct S field %s: offset %d, want %d", f.Name, f.Offset, offsets[i])
		}
	}

	b := find(decls, "w").Type.(*ast.Record).Def
	if b.Size != 8 {
		t.Errorf("struct B: size %d", b.Size)
	}
	if f := b.Field("b"); f.Offset != 0 || f.BitOff != 3 || f.BitWidth != 5 {
		t.Errorf("struct B field b: %s", repr.String(f))
	}
	if f := b.Field("c"); f.Offset != 4 {
		t.Errorf("struct B field c: offset %d", f.Offset)
	}

	u := find(decls, "u").Type.(*ast.Record).Def
	if u.Size != 8 || u.Field("c").Offset != 0 {
		t.Errorf("union U: size %d", u.Size)
	}
}

func TestTypedefAndArraySize(t *testing.T) {
	decls, rep := parse(t, `
typedef unsigned long size;
size n;
int a[2 + 3];
char msg[] = "four";
`)
	if rep.Failed() {
		t.Fatalf("unexpected errors: %v", errorMessages(rep))
	}
	if n := find(decls, "n"); !ast.Equal(n.Type, &ast.Primitive{Kind: ast.Long, Unsigned: true}, ast.CmpExact) {
		t.Errorf("n: got %s", n.Type)
	}
	if a := find(decls, "a").Type.(*ast.Array); a.Len != 5 {
		t.Errorf("a: length %d", a.Len)
	}
}

func TestErrorRecovery(t *testing.T) {
	decls, rep := parse(t, `
int x = ;
int y;
int f(void) {
	int a = ;
	return 1;
}
int g(void) { return 2; }
`)
	msgs := errorMessages(rep)
	if len(msgs) != 2 {
		t.Fatalf("want two errors, got %s", repr.String(msgs))
	}
	if !hasMessage(msgs, "expected expression") {
		t.Errorf("got %s", repr.String(msgs))
	}
	for _, name := range []string{"y", "f", "g"} {
		if find(decls, name) == nil {
			t.Errorf("'%s' was not parsed after the error", name)
		}
	}
	if f := find(decls, "f"); f != nil && f.Body == nil {
		t.Errorf("f lost its body")
	}
}

func TestStatementErrors(t *testing.T) {
	tests := []struct {
		src string
		msg string
	}{
		{"void f(void) { break; }", "break statement not within loop or switch"},
		{"void f(void) { continue; }", "continue statement not within a loop"},
		{"void f(int x) { case 1: ; }", "case label not within a switch statement"},
		{"void f(int x) { switch (x) { default: ; default: ; } }", "multiple default labels"},
		{"int x; int x = 1; int x = 2;", "redefinition of 'x'"},
		{"int f(void) { return 0; } int f(void) { return 1; }", "redefinition of function 'f'"},
		{"struct S { int a; }; struct S { int b; };", "redefinition of 'struct S'"},
		{"int f(int a, int a);", "redefinition of parameter 'a'"},
		{"signed unsigned int z;", "both 'signed' and 'unsigned'"},
	}

	for _, tt := range tests {
		_, rep := parse(t, tt.src)
		if msgs := errorMessages(rep); !hasMessage(msgs, tt.msg) {
			t.Errorf("%q: want %q, got %s", tt.src, tt.msg, repr.String(msgs))
		}
	}
}

func TestCompatibleRedeclarations(t *testing.T) {
	for _, src := range []string{
		"int z; int z = 1; int z;",
		"extern int e; int e = 2; extern int e;",
		"int f(int); int f(int a) { return a; } int f(int);",
	} {
		if _, rep := parse(t, src); rep.Failed() {
			t.Errorf("%q: unexpected errors %s", src, repr.String(errorMessages(rep)))
		}
	}
}

func TestBadEscapeReportedOnce(t *testing.T) {
	_, rep := parse(t, `const char *s = "a\qb"; char c = '\q';`)
	msgs := errorMessages(rep)
	if len(msgs) != 2 || !hasMessage(msgs, "unknown escape sequence") || hasMessage(msgs, "expected expression") {
		t.Errorf("got %s", repr.String(msgs))
	}
}

func TestScopes(t *testing.T) {
	decls, rep := parse(t, `
int v;
int f(void) {
	int v = 1;
	{
		long v = 2;
		return v;
	}
}
`)
	if rep.Failed() {
		t.Fatalf("unexpected errors: %v", errorMessages(rep))
	}
	f := find(decls, "f")
	inner := f.Body.Statements[1].(*ast.CompoundStatement)
	ret := inner.Statements[1].(*ast.ReturnStatement)

	var id *ast.Identifier
	switch e := ret.Value.(type) {
	case *ast.Identifier:
		id = e
	case *ast.CastExpression:
		id, _ = e.Operand.(*ast.Identifier)
	}
	if id == nil || id.Decl == nil {
		t.Fatalf("return value: got %T", ret.Value)
	}
	if p, ok := id.Decl.Type.(*ast.Primitive); !ok || p.Kind != ast.Long {
		t.Errorf("v resolved to %s, want the inner long", id.Decl.Type)
	}
}
