package compiler

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/alecthomas/repr"
	"github.com/kartiknair/mycc/pkg/config"
)

const program = `
int printf(const char *fmt, ...);

static int square(int v) { return v * v; }

int total;

int main(void) {
	for (int i = 0; i < 4; i++)
		total += square(i);
	printf("%d\n", total);
	return 0;
}
`

func assertContains(t *testing.T, text string, want ...string) {
	t.Helper()
	for _, w := range want {
		if !strings.Contains(text, w) {
			t.Errorf("missing %q in:\n%s", w, text)
		}
	}
}

func configWith(t *testing.T, flags ...string) *config.Config {
	t.Helper()
	cfg := config.Default()
	for _, f := range flags {
		if err := cfg.ApplyFlag(f); err != nil {
			t.Fatal(err)
		}
	}
	return cfg
}

func TestCompile(t *testing.T) {
	var diags bytes.Buffer
	res, err := Compile(context.Background(), "prog.c", program, config.Default(), &diags)
	if err != nil {
		t.Fatalf("unexpected error %v\n%s", err, diags.String())
	}
	if res.Errors != 0 {
		t.Errorf("unexpected diagnostics: %s", diags.String())
	}
	assertContains(t, res.Asm,
		"\t.globl main\n",
		"main:\n",
		"square:\n",
		"call square",
		"call printf",
		"\t.bss\n",
		"total:\n",
		".note.GNU-stack",
	)
	if strings.Contains(res.Asm, ".globl square") {
		t.Errorf("static function exported")
	}
	if res.LLVM != "" {
		t.Errorf("LLVM output without asking for it")
	}
}

func TestCompileErrors(t *testing.T) {
	var diags bytes.Buffer
	res, err := Compile(context.Background(), "bad.c", "int main(void) { return y; }", config.Default(), &diags)
	if !errors.Is(err, ErrCompilationFailed) {
		t.Fatalf("want ErrCompilationFailed, got %v", err)
	}
	if res == nil || res.Errors == 0 || res.Asm != "" {
		t.Fatalf("got %s", repr.String(res))
	}
	assertContains(t, diags.String(), "bad.c:1:", "error: undeclared identifier \"y\"")
}

func TestWarningsDoNotFail(t *testing.T) {
	src := "int f(int a, unsigned b) { return a < b; }"

	res, err := Compile(context.Background(), "warn.c", src, config.Default(), nil)
	if err != nil {
		t.Fatalf("unexpected error %v", err)
	}
	if res.Warnings == 0 || res.Asm == "" {
		t.Errorf("got %d warnings", res.Warnings)
	}

	_, err = Compile(context.Background(), "warn.c", src, configWith(t, "-Werror"), nil)
	if !errors.Is(err, ErrCompilationFailed) {
		t.Errorf("-Werror: got %v", err)
	}
}

func TestTooManyErrors(t *testing.T) {
	src := `
int a(void) { return y1; }
int b(void) { return y2; }
int c(void) { return y3; }
int d(void) { return y4; }
`
	res, err := Compile(context.Background(), "many.c", src, configWith(t, "-fmax-errors=2"), nil)
	if !errors.Is(err, ErrTooManyErrors) {
		t.Fatalf("want ErrTooManyErrors, got %v", err)
	}
	if res.Errors >= 4 {
		t.Errorf("compilation continued past the limit: %d errors", res.Errors)
	}
}

func TestCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Compile(ctx, "prog.c", program, config.Default(), nil)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("want context.Canceled, got %v", err)
	}
}

func TestTargets(t *testing.T) {
	cfg := configWith(t, "-m32")

	_, err := Compile(context.Background(), "prog.c", program, cfg, nil)
	if !errors.Is(err, ErrUnsupportedTarget) {
		t.Errorf("want ErrUnsupportedTarget, got %v", err)
	}

	res, err := CompileWith(context.Background(), "prog.c", program, cfg, nil, Options{CheckOnly: true})
	if err != nil {
		t.Fatalf("check with -m32: %v", err)
	}
	if res.Asm != "" {
		t.Errorf("check produced code")
	}
}

func TestEmitLLVM(t *testing.T) {
	res, err := CompileWith(context.Background(), "prog.c", program, config.Default(), nil, Options{EmitLLVM: true})
	if err != nil {
		t.Fatalf("unexpected error %v", err)
	}
	assertContains(t, res.LLVM,
		`source_filename = "prog.c"`,
		`target triple = "x86_64-unknown-linux-gnu"`,
		"define i32 @main()",
		"define internal i32 @square(i32",
		"declare i32 @printf(i8*",
		"@total = global i32 zeroinitializer",
	)
	if res.Asm == "" {
		t.Errorf("assembly is still produced alongside LLVM IR")
	}
}

func TestShowLine(t *testing.T) {
	var diags bytes.Buffer
	_, err := Compile(context.Background(), "bad.c", "int x = ;\n", configWith(t, "-fshow-line"), &diags)
	if !errors.Is(err, ErrCompilationFailed) {
		t.Fatalf("got %v", err)
	}
	assertContains(t, diags.String(), "   1 | int x = ;\n", "     | ")
}

func TestDebugLogging(t *testing.T) {
	var logs bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&logs, &slog.HandlerOptions{Level: slog.LevelDebug}))

	_, err := CompileWith(context.Background(), "prog.c", program, config.Default(), nil, Options{Logger: logger})
	if err != nil {
		t.Fatalf("unexpected error %v", err)
	}
	assertContains(t, logs.String(),
		`"msg":"folded","decl":"square"`,
		`"msg":"generated","decl":"main"`,
		`"msg":"emitted","file":"prog.c"`,
	)
}
