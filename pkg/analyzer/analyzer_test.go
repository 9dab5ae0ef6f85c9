package analyzer_test

import (
	"strings"
	"testing"

	"github.com/alecthomas/repr"
	"github.com/kartiknair/mycc/pkg/analyzer"
	"github.com/kartiknair/mycc/pkg/ast"
	"github.com/kartiknair/mycc/pkg/config"
	"github.com/kartiknair/mycc/pkg/consteval"
	"github.com/kartiknair/mycc/pkg/diag"
	"github.com/kartiknair/mycc/pkg/parser"
)

const printfDecl = "int printf(const char *fmt, ...) __attribute__((format(printf, 1, 2)));\n"

type unit struct {
	decls []*ast.Decl
	rep   *diag.Reporter
	an    *analyzer.Analyzer
}

func fold(t *testing.T, src string, flags ...string) *unit {
	t.Helper()
	cfg := config.Default()
	for _, f := range flags {
		if err := cfg.ApplyFlag(f); err != nil {
			t.Fatal(err)
		}
	}
	rep := diag.NewReporter(cfg, nil)
	nav := ast.NewTypeNav(cfg.WordSize)
	an := analyzer.New(cfg, nav, rep)
	p := parser.New(&ast.TranslationUnit{Path: "test.c", Source: src}, cfg, nav, rep, an)

	u := &unit{rep: rep, an: an}
	for {
		decls, ok := p.Next()
		if !ok {
			return u
		}
		an.FoldTopLevel(decls)
		u.decls = append(u.decls, decls...)
	}
}

func (u *unit) messages() []string {
	msgs := make([]string, len(u.rep.Diagnostics))
	for i, d := range u.rep.Diagnostics {
		msgs[i] = d.Message
	}
	return msgs
}

func (u *unit) has(sub string) bool {
	for _, m := range u.messages() {
		if strings.Contains(m, sub) {
			return true
		}
	}
	return false
}

func (u *unit) decl(name string) *ast.Decl {
	for _, d := range u.decls {
		if d.Name == name {
			return d
		}
	}
	return nil
}

func TestDiagnostics(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want string
	}{
		{
			name: "format too few",
			src:  printfDecl + `void f(void) { printf("%d %s\n", 1); }`,
			want: "too few arguments for format (%s)",
		},
		{
			name: "format too many",
			src:  printfDecl + `void f(void) { printf("%d\n", 1, 2); }`,
			want: "too many arguments for format",
		},
		{
			name: "format in both arms of a conditional",
			src:  printfDecl + `void f(int c) { printf(c ? "%d" : "%d %d", 1); }`,
			want: "too few arguments for format (%d)",
		},
		{
			name: "format type",
			src:  printfDecl + `void f(void) { printf("%s", 1); }`,
			want: "format %s expects",
		},
		{
			name: "constant index past the end",
			src:  "int x[2]; int f(void) { return x[5]; }",
			want: "index 5 out of bounds of 2",
		},
		{
			name: "reversed index",
			src:  "int x[2]; int f(void) { return 3[x]; }",
			want: "index 3 out of bounds of 2",
		},
		{
			name: "pointer arithmetic index",
			src:  "int x[4]; int f(void) { return *(x + 4); }",
			want: "index 4 out of bounds of 4",
		},
		{
			name: "excess initialiser",
			src:  "int a[2] = {1, 2, 3};",
			want: "excess initialiser",
		},
		{
			name: "string too long",
			src:  `char s[2] = "abc";`,
			want: "initialiser-string for array of chars is too long",
		},
		{
			name: "sign compare",
			src:  "int f(int a, unsigned b) { return a < b; }",
			want: "comparison between signed and unsigned",
		},
		{
			name: "undefined label",
			src:  "void f(void) { goto out; }",
			want: "label 'out' used but not defined",
		},
		{
			name: "missing return",
			src:  "int f(int a) { if (a) return 1; }",
			want: "control reaches end of non-void function 'f'",
		},
		{
			name: "unreachable code",
			src:  "int f(void) { return 1; f(); }",
			want: "unreachable code",
		},
		{
			name: "assignment as condition",
			src:  "int f(int a) { if (a = 2) return 1; return 0; }",
			want: "testing an assignment in if",
		},
		{
			name: "duplicate case",
			src:  "int f(int a) { switch (a) { case 1: return 1; case 1: return 2; } return 0; }",
			want: "duplicate case value 1",
		},
		{
			name: "read before write",
			src:  "int f(void) { int x; return x; }",
			want: "\"x\" uninitialised on read",
		},
		{
			name: "read in its own initialiser",
			src:  "int f(void) { int a = a; return a; }",
			want: "\"a\" uninitialised on read",
		},
		{
			name: "unused expression",
			src:  "void f(int a) { a + 1; }",
			want: "unused expression",
		},
		{
			name: "implicit declaration",
			src:  "int f(void) { return g(1); }",
			want: "implicit declaration of function 'g'",
		},
		{
			name: "too few arguments",
			src:  "int g(int a, int b); int f(void) { return g(1); }",
			want: "too few arguments to function 'g'",
		},
		{
			name: "undeclared identifier",
			src:  "int f(void) { return y; }",
			want: "undeclared identifier \"y\"",
		},
		{
			name: "non-constant global initialiser",
			src:  "int a; int b = a;",
			want: "initialiser element is not constant",
		},
		{
			name: "struct by value",
			src:  "struct S { int a; }; void f(struct S s) { }",
			want: "passing struct by value is not supported",
		},
		{
			name: "division by zero",
			src:  "int f(int a) { return a / 0; }",
			want: "division by zero",
		},
		{
			name: "builtin arity",
			src:  "void f(void) { __builtin_trap(1); }",
			want: "__builtin_trap takes no arguments",
		},
		{
			name: "noreturn that returns",
			src:  "__attribute__((noreturn)) void die(void) { }",
			want: "function 'die' declared 'noreturn' can return",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			u := fold(t, tt.src)
			if !u.has(tt.want) {
				t.Errorf("want %q, got %s", tt.want, repr.String(u.messages()))
			}
		})
	}
}

func TestNoFalsePositives(t *testing.T) {
	tests := []struct {
		name string
		src  string
	}{
		{"infinite do-while is not passable", "int f(void) { do { } while (1); }"},
		{"infinite for is not passable", "int f(void) { for (;;) { } }"},
		{"noreturn call ends the path", "__attribute__((noreturn)) void die(void); int f(void) { die(); }"},
		{"trap ends the path", "int f(void) { __builtin_trap(); }"},
		{"nonnegative constant against unsigned", "int f(unsigned b) { return b < 3; }"},
		{"in-bounds index", "int x[2]; int f(void) { return x[1]; }"},
		{"main may fall off the end", "int main(void) { }"},
		{"initialised from another local", "int f(void) { int a = 1; int b = a + 1; return b; }"},
		{"format matches", printfDecl + `void f(void) { printf("%d %s %%\n", 1, "x"); }`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			u := fold(t, tt.src)
			if len(u.rep.Diagnostics) != 0 {
				t.Errorf("unexpected diagnostics %s", repr.String(u.messages()))
			}
		})
	}
}

func TestUndeclaredTargetReportedOnce(t *testing.T) {
	u := fold(t, "int f(void) { y = 1; y += 2; return 0; }")
	msgs := u.messages()
	if len(msgs) != 2 || u.has("lvalue required") {
		t.Errorf("got %s", repr.String(msgs))
	}
}

func TestLoopWithBreakIsPassable(t *testing.T) {
	u := fold(t, "int f(void) { while (1) { break; } }")
	if !u.has("control reaches end") {
		t.Errorf("got %s", repr.String(u.messages()))
	}
}

func TestFoldingIsIdempotent(t *testing.T) {
	u := fold(t, printfDecl+`int f(int a, unsigned b) { printf("%d"); return a < b; }`)
	before := len(u.rep.Diagnostics)
	if before == 0 {
		t.Fatal("expected diagnostics")
	}
	u.an.FoldTopLevel(u.decls)
	if after := len(u.rep.Diagnostics); after != before {
		t.Errorf("second fold added diagnostics: %d -> %d", before, after)
	}
}

func TestConstantFolding(t *testing.T) {
	u := fold(t, `
enum { A = 3, B, C = A * 4 };
int x = 2 * 3 + 1;
unsigned char y = 300;
int z = sizeof(long) + C;
char s[] = "four";
`)
	ev := u.an.Evaluator()

	tests := []struct {
		name string
		want int64
	}{
		{"x", 7},
		{"y", 44},
		{"z", 20},
	}
	for _, tt := range tests {
		d := u.decl(tt.name)
		c := ev.Eval(d.Init.(ast.Expression))
		if c.Kind != consteval.Value || ev.Truncate(c.Int, d.Type) != tt.want {
			t.Errorf("%s: got %s, want %d", tt.name, repr.String(c), tt.want)
		}
	}

	if arr := u.decl("s").Type.(*ast.Array); !arr.Sized || arr.Len != 5 {
		t.Errorf("s: got %s", u.decl("s").Type)
	}
	if !u.has("overflow in conversion") {
		t.Errorf("want an overflow warning, got %s", repr.String(u.messages()))
	}
}

func TestWarningToggles(t *testing.T) {
	src := "int f(int a, unsigned b) { return a < b; }"

	if u := fold(t, src, "-Wno-sign-compare"); len(u.rep.Diagnostics) != 0 {
		t.Errorf("-Wno-sign-compare: got %s", repr.String(u.messages()))
	}

	u := fold(t, src, "-Werror")
	if !u.rep.Failed() {
		t.Errorf("-Werror: warning did not fail the unit")
	}

	u = fold(t, "int f(int a) { return a + 0; }", "-Wopt-possible")
	if !u.has("zero being added or subtracted") {
		t.Errorf("-Wopt-possible: got %s", repr.String(u.messages()))
	}
}

func TestInitListNormalised(t *testing.T) {
	u := fold(t, `
struct P { int x, y; };
struct Q { struct P p; int n[2]; } q = { 1, 2, 3 };
`)
	if u.rep.Failed() {
		t.Fatalf("unexpected errors %s", repr.String(u.messages()))
	}
	list, ok := u.decl("q").Init.(*ast.InitList)
	if !ok || len(list.Items) != 2 {
		t.Fatalf("q: got %s", repr.String(u.decl("q").Init))
	}
	inner, ok := list.Items[0].(*ast.InitList)
	if !ok || len(inner.Items) != 2 {
		t.Fatalf("q.p: got %s", repr.String(list.Items[0]))
	}
	n, ok := list.Items[1].(*ast.InitList)
	if !ok || len(n.Items) != 2 || n.Items[1] != nil {
		t.Errorf("q.n: got %s", repr.String(list.Items[1]))
	}
}
