package consteval_test

import (
	"fmt"
	"testing"

	"github.com/alecthomas/repr"
	"github.com/kartiknair/mycc/pkg/analyzer"
	"github.com/kartiknair/mycc/pkg/ast"
	"github.com/kartiknair/mycc/pkg/config"
	"github.com/kartiknair/mycc/pkg/consteval"
	"github.com/kartiknair/mycc/pkg/diag"
	"github.com/kartiknair/mycc/pkg/parser"
)

func foldUnit(t *testing.T, src string) (map[string]*ast.Decl, *consteval.Evaluator) {
	t.Helper()
	cfg := config.Default()
	rep := diag.NewReporter(cfg, nil)
	nav := ast.NewTypeNav(cfg.WordSize)
	an := analyzer.New(cfg, nav, rep)
	p := parser.New(&ast.TranslationUnit{Path: "test.c", Source: src}, cfg, nav, rep, an)

	decls := map[string]*ast.Decl{}
	for {
		ds, ok := p.Next()
		if !ok {
			break
		}
		an.FoldTopLevel(ds)
		for _, d := range ds {
			decls[d.Name] = d
		}
	}
	if rep.Failed() {
		t.Fatalf("unexpected errors: %s", repr.String(rep.Diagnostics))
	}
	return decls, an.Evaluator()
}

// describe renders a constant without following Decl, which links back to
// itself through its symbol.
func describe(c consteval.Const) string {
	base := ""
	switch {
	case c.Decl != nil:
		base = c.Decl.Name
	case c.Str != nil:
		base = repr.String(c.Str.Value)
	}
	return fmt.Sprintf("%s{int=%d float=%g isFloat=%v base=%s offset=%d}", c.Kind, c.Int, c.Float, c.IsFloat, base, c.Offset)
}

func TestClassification(t *testing.T) {
	decls, ev := foldUnit(t, `
int a[4];
struct S { int x; char c[8]; } s;
int v = (3 + 4) * 2 - 1;
int shifted = -16 >> 2;
unsigned wrap = -1;
int cond = 0 ? 1 : 2;
int logic = 3 && 0;
int *p = &a[2];
int *q = a + 3;
char *str = "hello" + 1;
char *member = &s.c[1];
long null = 0;
double f = 1.5 * 2;
int fromFloat = 7.9;
int typesCompat = __builtin_types_compatible_p(int, const int);
int isConst = __builtin_constant_p(v + 1);
unsigned long len = sizeof "abc";
`)

	tests := []struct {
		name string
		want consteval.Const
	}{
		{"v", consteval.Const{Kind: consteval.Value, Int: 13}},
		{"shifted", consteval.Const{Kind: consteval.Value, Int: -4}},
		{"wrap", consteval.Const{Kind: consteval.Value, Int: 0xffffffff}},
		{"cond", consteval.Const{Kind: consteval.Value, Int: 2}},
		{"logic", consteval.Const{Kind: consteval.Value, Int: 0}},
		{"p", consteval.Const{Kind: consteval.Addr, Decl: decls["a"], Offset: 8}},
		{"q", consteval.Const{Kind: consteval.Addr, Decl: decls["a"], Offset: 12}},
		{"member", consteval.Const{Kind: consteval.Addr, Decl: decls["s"], Offset: 5}},
		{"null", consteval.Const{Kind: consteval.Value, Int: 0}},
		{"f", consteval.Const{Kind: consteval.Value, Float: 3, IsFloat: true}},
		{"fromFloat", consteval.Const{Kind: consteval.Value, Int: 7}},
		{"typesCompat", consteval.Const{Kind: consteval.Value, Int: 1}},
		{"isConst", consteval.Const{Kind: consteval.Value, Int: 0}},
		{"len", consteval.Const{Kind: consteval.Value, Int: 4}},
	}

	for _, tt := range tests {
		d := decls[tt.name]
		got := ev.Eval(d.Init.(ast.Expression))
		if got.Kind == consteval.Value && !got.IsFloat {
			got.Int = ev.Truncate(got.Int, d.Type)
		}
		if got.Kind != tt.want.Kind || got.Int != tt.want.Int || got.Float != tt.want.Float ||
			got.IsFloat != tt.want.IsFloat || got.Decl != tt.want.Decl || got.Offset != tt.want.Offset {
			t.Errorf("%s: got %s, want %s", tt.name, describe(got), describe(tt.want))
		}
	}

	str := ev.Eval(decls["str"].Init.(ast.Expression))
	if str.Kind != consteval.String || str.Offset != 1 || str.Str.Value != "hello" {
		t.Errorf("str: got %s", describe(str))
	}
}

func TestNotConstant(t *testing.T) {
	decls, ev := foldUnit(t, `
int g;
int f(int x) {
	int y = x + 1;
	int z = g;
	return y + z;
}
`)
	body := decls["f"].Body
	for _, st := range body.Statements[:2] {
		d := st.(*ast.DeclStatement).Decls[0]
		if c := ev.Eval(d.Init.(ast.Expression)); c.Kind == consteval.Value || c.Kind == consteval.Addr {
			t.Errorf("%s: got %s", d.Name, describe(c))
		}
		if _, ok := ev.Eval(d.Init.(ast.Expression)).Truth(); ok {
			t.Errorf("%s: truth should be unknown", d.Name)
		}
	}
}

func TestTruth(t *testing.T) {
	tests := []struct {
		c     consteval.Const
		truth bool
		ok    bool
	}{
		{consteval.Const{Kind: consteval.Value, Int: 2}, true, true},
		{consteval.Const{Kind: consteval.Value}, false, true},
		{consteval.Const{Kind: consteval.Value, Float: 0.5, IsFloat: true}, true, true},
		{consteval.Const{Kind: consteval.Addr}, true, true},
		{consteval.Const{Kind: consteval.String}, true, true},
		{consteval.Const{Kind: consteval.NeedAddr}, false, false},
		{consteval.Const{}, false, false},
	}
	for _, tt := range tests {
		truth, ok := tt.c.Truth()
		if truth != tt.truth || ok != tt.ok {
			t.Errorf("%s: got (%v, %v)", describe(tt.c), truth, ok)
		}
	}
	if !(consteval.Const{Kind: consteval.Value}).IsZero() {
		t.Errorf("integer zero should be zero")
	}
	if (consteval.Const{Kind: consteval.Value, IsFloat: true}).IsZero() {
		t.Errorf("floating zero is not a null pointer constant")
	}
}

func TestTruncate(t *testing.T) {
	nav := ast.NewTypeNav(8)
	ev := consteval.New(nav)

	tests := []struct {
		v    int64
		t    ast.Type
		want int64
	}{
		{-1, nav.Prim(ast.Char, true), 255},
		{255, nav.Prim(ast.Char, false), -1},
		{0x100000001, nav.Int(), 1},
		{0x8000, nav.Prim(ast.Short, false), -0x8000},
		{-1, nav.Prim(ast.Int, true), 0xffffffff},
		{42, nav.Prim(ast.Bool, false), 1},
		{-5, nav.Prim(ast.Long, false), -5},
		{-1, nav.PointerTo(nav.Int()), -1},
	}
	for _, tt := range tests {
		if got := ev.Truncate(tt.v, tt.t); got != tt.want {
			t.Errorf("Truncate(%d, %s) = %d, want %d", tt.v, tt.t, got, tt.want)
		}
	}

	ev32 := consteval.New(ast.NewTypeNav(4))
	if got := ev32.Truncate(-1, nav.PointerTo(nav.Int())); got != 0xffffffff {
		t.Errorf("32-bit pointer: got %d", got)
	}
}
