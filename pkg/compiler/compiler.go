// Package compiler drives one translation unit through the pipeline. Each
// top-level declaration is parsed, folded and generated before the next
// one is read, so memory stays bounded by the largest function.
package compiler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/kartiknair/mycc/pkg/analyzer"
	"github.com/kartiknair/mycc/pkg/ast"
	"github.com/kartiknair/mycc/pkg/config"
	"github.com/kartiknair/mycc/pkg/diag"
	"github.com/kartiknair/mycc/pkg/gen"
	"github.com/kartiknair/mycc/pkg/gen/asm"
	llvmgen "github.com/kartiknair/mycc/pkg/gen/llvm"
	"github.com/kartiknair/mycc/pkg/parser"
)

var (
	ErrTooManyErrors     = errors.New("too many errors")
	ErrCompilationFailed = errors.New("compilation failed")
	ErrUnsupportedTarget = errors.New("unsupported target")
)

type Options struct {
	// CheckOnly stops after folding.
	CheckOnly bool
	// EmitLLVM also lowers the unit with the LLVM backend.
	EmitLLVM bool
	Logger   *slog.Logger
}

type Result struct {
	Asm  string
	LLVM string

	Errors      int
	Warnings    int
	Diagnostics []diag.Diagnostic
}

// Compile turns src into x86-64 assembly. Diagnostics are written to
// diagOut as they are found; it may be nil.
func Compile(ctx context.Context, name, src string, cfg *config.Config, diagOut io.Writer) (*Result, error) {
	return CompileWith(ctx, name, src, cfg, diagOut, Options{})
}

func CompileWith(ctx context.Context, name, src string, cfg *config.Config, diagOut io.Writer, opts Options) (res *Result, err error) {
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	if !opts.CheckOnly && cfg.WordSize != 8 {
		return nil, fmt.Errorf("%d-bit code generation: %w", cfg.WordSize*8, ErrUnsupportedTarget)
	}

	rep := diag.NewReporter(cfg, diagOut)
	rep.AddSource(name, src)
	nav := ast.NewTypeNav(cfg.WordSize)
	an := analyzer.New(cfg, nav, rep)
	unit := &ast.TranslationUnit{Path: name, Source: src}
	p := parser.New(unit, cfg, nav, rep, an)

	emitter := asm.New(cfg, name)
	g := gen.New(cfg, nav, an.Evaluator(), emitter)
	var lg *llvmgen.Generator
	if opts.EmitLLVM {
		lg = llvmgen.New(cfg, nav, an.Evaluator(), name)
	}

	res = &Result{}
	defer func() {
		if r := recover(); r != nil {
			ice, ok := r.(*diag.InternalError)
			if !ok {
				panic(r)
			}
			rep.Internal(ice)
			err = ice
		}
		res.Errors, res.Warnings = rep.Errors, rep.Warnings
		res.Diagnostics = rep.Diagnostics
	}()

	for {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		decls, ok := p.Next()
		if !ok {
			break
		}

		start := time.Now()
		an.FoldTopLevel(decls)
		log.Debug("folded", "decl", declName(decls), "us", time.Since(start).Microseconds())

		if rep.TooMany() {
			return res, ErrTooManyErrors
		}
		if rep.Failed() || opts.CheckOnly {
			continue
		}

		start = time.Now()
		g.Generate(decls)
		if lg != nil {
			if err := lg.Generate(decls); err != nil {
				return res, fmt.Errorf("lowering %s to LLVM IR: %w", declName(decls), err)
			}
		}
		log.Debug("generated", "decl", declName(decls), "us", time.Since(start).Microseconds())
	}

	if rep.TooMany() {
		return res, ErrTooManyErrors
	}
	if rep.Failed() {
		return res, ErrCompilationFailed
	}
	if opts.CheckOnly {
		return res, nil
	}

	start := time.Now()
	g.Finish()
	res.Asm = emitter.String()
	if lg != nil {
		res.LLVM = lg.Finish()
	}
	log.Debug("emitted", "file", name, "bytes", len(res.Asm), "us", time.Since(start).Microseconds())
	return res, nil
}

func declName(decls []*ast.Decl) string {
	for _, d := range decls {
		if d.Name != "" {
			return d.Name
		}
	}
	return "<anonymous>"
}
