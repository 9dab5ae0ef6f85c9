package llvmgen_test

import (
	"errors"
	"strings"
	"testing"

	"github.com/kartiknair/mycc/pkg/analyzer"
	"github.com/kartiknair/mycc/pkg/ast"
	"github.com/kartiknair/mycc/pkg/config"
	"github.com/kartiknair/mycc/pkg/diag"
	llvmgen "github.com/kartiknair/mycc/pkg/gen/llvm"
	"github.com/kartiknair/mycc/pkg/parser"
)

func lower(t *testing.T, src string) (string, error) {
	t.Helper()
	cfg := config.Default()
	rep := diag.NewReporter(cfg, nil)
	nav := ast.NewTypeNav(cfg.WordSize)
	an := analyzer.New(cfg, nav, rep)
	p := parser.New(&ast.TranslationUnit{Path: "test.c", Source: src}, cfg, nav, rep, an)
	g := llvmgen.New(cfg, nav, an.Evaluator(), "test.c")

	for {
		decls, ok := p.Next()
		if !ok {
			break
		}
		an.FoldTopLevel(decls)
		if rep.Failed() {
			t.Fatalf("unexpected errors in %q", src)
		}
		if err := g.Generate(decls); err != nil {
			return "", err
		}
	}
	return g.Finish(), nil
}

func assertContains(t *testing.T, text string, want ...string) {
	t.Helper()
	for _, w := range want {
		if !strings.Contains(text, w) {
			t.Errorf("missing %q in:\n%s", w, text)
		}
	}
}

func TestFunctions(t *testing.T) {
	ir, err := lower(t, `
int sum(int *v, int n) {
	int s = 0;
	for (int i = 0; i < n; i++)
		s += v[i];
	return s;
}
unsigned pick(unsigned k) {
	switch (k) {
	case 1:
		return 10;
	default:
		return k > 4u;
	}
}
double half(double d) { return d / 2; }
`)
	if err != nil {
		t.Fatal(err)
	}
	assertContains(t, ir,
		"define i32 @sum(i32*",
		"alloca i32",
		"icmp slt i32",
		"getelementptr",
		"define i32 @pick(i32",
		"switch i32",
		"icmp ugt i32",
		"define double @half(double",
		"fdiv double",
	)
}

func TestGlobals(t *testing.T) {
	ir, err := lower(t, `
int counter = 3;
static const char *greeting = "hi";
int table[4];
extern int elsewhere;
static int hidden;
int use(void) { return elsewhere + table[1]; }
`)
	if err != nil {
		t.Fatal(err)
	}
	assertContains(t, ir,
		"@counter = global i32 3",
		`private constant [3 x i8] c"hi\00"`,
		"@greeting = internal global i8*",
		"@table = global [4 x i32] zeroinitializer",
		"@elsewhere = external global i32",
		"@hidden = internal global i32 zeroinitializer",
	)
}

func TestStructs(t *testing.T) {
	ir, err := lower(t, `
struct P { char c; int x; };
struct P origin = { 1, 2 };
int getx(struct P *p) { return p->x; }
`)
	if err != nil {
		t.Fatal(err)
	}
	// packed with explicit padding between c and x
	assertContains(t, ir, "<{ i8, [3 x i8], i32 }>", "@origin = global")
}

func TestUnsupported(t *testing.T) {
	_, err := lower(t, `
struct B { unsigned a : 3; } b;
int get(void) { return b.a; }
`)
	var u *llvmgen.UnsupportedError
	if !errors.As(err, &u) {
		t.Fatalf("want an UnsupportedError, got %v", err)
	}
	if !strings.Contains(u.Error(), "bit-field 'a'") {
		t.Errorf("got %q", u.Error())
	}
}
