package gen_test

import (
	"strings"
	"testing"

	"github.com/alecthomas/repr"
	"github.com/kartiknair/mycc/pkg/analyzer"
	"github.com/kartiknair/mycc/pkg/ast"
	"github.com/kartiknair/mycc/pkg/config"
	"github.com/kartiknair/mycc/pkg/diag"
	"github.com/kartiknair/mycc/pkg/gen"
	"github.com/kartiknair/mycc/pkg/gen/asm"
	"github.com/kartiknair/mycc/pkg/gen/out"
	"github.com/kartiknair/mycc/pkg/parser"
)

// recorder keeps everything the generator produces and forwards it to an
// assembly emitter.
type recorder struct {
	funcs []*out.Func
	data  []*out.Data
	asm   *asm.Emitter
}

func (r *recorder) Func(fn *out.Func) {
	r.funcs = append(r.funcs, fn)
	r.asm.Func(fn)
}

func (r *recorder) Data(d *out.Data) {
	r.data = append(r.data, d)
	r.asm.Data(d)
}

func (r *recorder) object(name string) *out.Data {
	for _, d := range r.data {
		if d.Name == name {
			return d
		}
	}
	return nil
}

func (r *recorder) function(name string) *out.Func {
	for _, f := range r.funcs {
		if f.Name == name {
			return f
		}
	}
	return nil
}

func generate(t *testing.T, src string, flags ...string) *recorder {
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

	rec := &recorder{asm: asm.New(cfg, "test.c")}
	g := gen.New(cfg, nav, an.Evaluator(), rec)
	for {
		decls, ok := p.Next()
		if !ok {
			break
		}
		an.FoldTopLevel(decls)
		if rep.Failed() {
			var msgs []string
			for _, d := range rep.Diagnostics {
				msgs = append(msgs, d.Message)
			}
			t.Fatalf("unexpected errors: %s", repr.String(msgs))
		}
		g.Generate(decls)
	}
	g.Finish()
	return rec
}

func assertContains(t *testing.T, text string, want ...string) {
	t.Helper()
	for _, w := range want {
		if !strings.Contains(text, w) {
			t.Errorf("missing %q in:\n%s", w, text)
		}
	}
}

func TestDataImages(t *testing.T) {
	rec := generate(t, `
int x = 5;
char s[] = "hi";
int arr[3] = {1, 2};
int *p = &arr[1];
const char *msg = "abc";
const int limit = 9;
int t;
static int hidden = 1;
`)

	tests := []struct {
		name    string
		bytes   []byte
		section out.Section
		global  bool
	}{
		{"x", []byte{5, 0, 0, 0}, out.SecData, true},
		{"s", []byte{'h', 'i', 0}, out.SecData, true},
		{"arr", []byte{1, 0, 0, 0, 2, 0, 0, 0, 0, 0, 0, 0}, out.SecData, true},
		{"limit", []byte{9, 0, 0, 0}, out.SecRoData, true},
		{"t", []byte{0, 0, 0, 0}, out.SecBSS, true},
		{"hidden", []byte{1, 0, 0, 0}, out.SecData, false},
	}
	for _, tt := range tests {
		d := rec.object(tt.name)
		if d == nil {
			t.Errorf("%s was not emitted", tt.name)
			continue
		}
		if string(d.Bytes) != string(tt.bytes) || d.Section != tt.section || d.Global != tt.global {
			t.Errorf("%s: got bytes %v section %d global %v", tt.name, d.Bytes, d.Section, d.Global)
		}
	}

	p := rec.object("p")
	if p == nil || len(p.Relocs) != 1 || p.Relocs[0] != (out.Reloc{Offset: 0, Sym: "arr", Addend: 4, Size: 8}) {
		t.Fatalf("p: got %s", repr.String(p))
	}

	msg := rec.object("msg")
	if msg == nil || len(msg.Relocs) != 1 || !strings.HasPrefix(msg.Relocs[0].Sym, ".Lstr") {
		t.Fatalf("msg: got %s", repr.String(msg))
	}
	str := rec.object(msg.Relocs[0].Sym)
	if str == nil || string(str.Bytes) != "abc\x00" || str.Section != out.SecRoData {
		t.Errorf("string literal: got %s", repr.String(str))
	}
}

func TestTentativeDefinitions(t *testing.T) {
	rec := generate(t, `
int a;
int a;
int b;
int b = 3;
extern int c;
`)
	count := 0
	for _, d := range rec.data {
		if d.Name == "a" {
			count++
		}
	}
	if count != 1 {
		t.Errorf("a emitted %d times", count)
	}
	if b := rec.object("b"); b == nil || b.Bytes[0] != 3 {
		t.Errorf("b: got %s", repr.String(b))
	}
	if rec.object("c") != nil {
		t.Errorf("extern declaration was defined")
	}
}

func TestFunctions(t *testing.T) {
	rec := generate(t, `
static int twice(int v) { return v * 2; }
int answer(void) { return 2 * 21; }
int main(void) { }
`)
	if f := rec.function("twice"); f == nil || f.Global {
		t.Errorf("twice should be a local function")
	}
	if f := rec.function("answer"); f == nil || !f.Global {
		t.Errorf("answer should be global")
	}

	text := rec.asm.String()
	assertContains(t, text,
		"\t.globl answer\n",
		"answer:\n",
		"$42",
		"main:\n",
		"\tleave\n\tret\n",
	)
	if strings.Contains(text, ".globl twice") {
		t.Errorf("static function exported")
	}
}

func TestStaticLocal(t *testing.T) {
	rec := generate(t, `
int counter(void) {
	static int n = 10;
	return ++n;
}
`)
	var found *out.Data
	for _, d := range rec.data {
		if strings.HasPrefix(d.Name, "n.") {
			found = d
		}
	}
	if found == nil || found.Global || found.Bytes[0] != 10 {
		t.Fatalf("static local: got %s", repr.String(rec.data))
	}
}

// TestControlFlow lowers every statement form. The out layer panics on
// any unbalanced value release, so reaching the end is the check.
func TestControlFlow(t *testing.T) {
	rec := generate(t, `
struct P { int x, y; };
int puts(const char *);
int sum(int *v, int n) {
	int s = 0;
	for (int i = 0; i < n; i++) {
		if (v[i] < 0)
			continue;
		if (v[i] > 100)
			break;
		s += v[i];
	}
	return s;
}
int pick(int k) {
	switch (k) {
	case 1:
		return 10;
	case 2:
	case 3:
		k *= 3;
		break;
	default:
		k = -k;
	}
	return k;
}
int walk(struct P *p, int n) {
	int t = 0;
	while (n-- > 0) {
		t += p->x > p->y ? p->x : p->y;
		p++;
	}
	do {
		t >>= 1;
	} while (t > 8 && n != 0);
	if (!t)
		goto done;
	puts("nonzero");
done:
	return t;
}
double scale(double d, float f, long l) {
	return d * f + (double)l;
}
`)
	for _, name := range []string{"sum", "pick", "walk", "scale"} {
		f := rec.function(name)
		if f == nil {
			t.Errorf("%s was not generated", name)
			continue
		}
		if f.FrameSize%16 != 0 {
			t.Errorf("%s: frame size %d is not aligned", name, f.FrameSize)
		}
	}

	assertContains(t, rec.asm.String(),
		"call puts",
		"mulsd",
		"cvtsi2sdq",
	)
}

func TestPICCalls(t *testing.T) {
	rec := generate(t, `
int ext(void);
static int mine(void) { return 1; }
int g;
int f(void) { return ext() + mine() + g; }
`, "-fpic")
	assertContains(t, rec.asm.String(),
		"call ext@PLT",
		"call mine\n",
		"g@GOTPCREL(%rip)",
	)
}

func TestSignedness(t *testing.T) {
	tests := []struct {
		name  string
		src   string
		want  []string
		any   []string
		avoid []string
	}{
		{
			name:  "pointer difference",
			src:   "long diff(int *p, int *q) { return p - q; }",
			want:  []string{"\tsubq ", "\tcqto\n\tidivq "},
			avoid: []string{"\tdivq "},
		},
		{
			name:  "signed division",
			src:   "int quo(int a, int b) { return a / b; }",
			want:  []string{"\tcqto\n\tidivq "},
			avoid: []string{"\tdivq "},
		},
		{
			name:  "unsigned division",
			src:   "unsigned quo(unsigned a, unsigned b) { return a / b; }",
			want:  []string{"\txorl %edx, %edx\n\tdivq "},
			avoid: []string{"cqto", "idiv"},
		},
		{
			name:  "signed compare",
			src:   "int lt(int a, int b) { return a < b; }",
			want:  []string{"\tsetl "},
			avoid: []string{"\tsetb "},
		},
		{
			name:  "unsigned compare",
			src:   "int lt(unsigned a, unsigned b) { return a < b; }",
			want:  []string{"\tsetb "},
			avoid: []string{"\tsetl "},
		},
		{
			name:  "signed branch",
			src:   "int f(int a, int b) { if (a < b) return 1; return 0; }",
			any:   []string{"\tjl ", "\tjge "},
			avoid: []string{"\tjb ", "\tjae "},
		},
		{
			name:  "unsigned branch",
			src:   "int f(unsigned a, unsigned b) { if (a < b) return 1; return 0; }",
			any:   []string{"\tjb ", "\tjae "},
			avoid: []string{"\tjl ", "\tjge "},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			text := generate(t, tt.src).asm.String()
			assertContains(t, text, tt.want...)
			if len(tt.any) > 0 {
				found := false
				for _, a := range tt.any {
					found = found || strings.Contains(text, a)
				}
				if !found {
					t.Errorf("none of %q in:\n%s", tt.any, text)
				}
			}
			for _, a := range tt.avoid {
				if strings.Contains(text, a) {
					t.Errorf("unexpected %q in:\n%s", a, text)
				}
			}
		})
	}
}
