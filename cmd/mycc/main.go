package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/alecthomas/repr"
	"github.com/kartiknair/mycc/pkg/compiler"
	"github.com/kartiknair/mycc/pkg/config"
	"github.com/kartiknair/mycc/pkg/diag"
	"github.com/kartiknair/mycc/pkg/lexer"
	"github.com/kartiknair/mycc/pkg/token"
	"github.com/urfave/cli/v2"
)

const usageArgs = `

Compiler options go after the source file:
    $ mycc compile foo.c -fpic -Wall -Werror
`

// parseArgs splits the positional arguments into the source file and the
// compiler options applied to a default configuration.
func parseArgs(c *cli.Context) (string, *config.Config, error) {
	cfg := config.Default()
	var filename string
	for _, arg := range c.Args().Slice() {
		if strings.HasPrefix(arg, "-") {
			if err := cfg.ApplyFlag(arg); err != nil {
				return "", nil, err
			}
			continue
		}
		if filename != "" {
			return "", nil, errors.New("\n\nToo many source files provided." + usageArgs)
		}
		filename = arg
	}
	if filename == "" {
		return "", nil, errors.New("Source file not provided.")
	}
	return filename, cfg, nil
}

func setupLogging(c *cli.Context) error {
	level := slog.LevelInfo
	if c.Bool("verbose") {
		level = slog.LevelDebug
	}
	opts := &slog.HandlerOptions{Level: level}

	var h slog.Handler
	switch c.String("log-format") {
	case "text":
		h = slog.NewTextHandler(os.Stderr, opts)
	case "json":
		h = slog.NewJSONHandler(os.Stderr, opts)
	default:
		return fmt.Errorf("unknown log format %q", c.String("log-format"))
	}
	slog.SetDefault(slog.New(h))
	return nil
}

func compile(c *cli.Context, opts compiler.Options) (*compiler.Result, error) {
	filename, cfg, err := parseArgs(c)
	if err != nil {
		return nil, err
	}
	code, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("reading source file: %w", err)
	}

	start := time.Now()
	res, err := compiler.CompileWith(c.Context, filename, string(code), cfg, os.Stderr, opts)
	slog.Debug("compiled", "file", filename, "ms", time.Since(start).Milliseconds())

	if res != nil && c.Bool("dump-diagnostics") {
		repr.Println(res.Diagnostics)
	}
	if res != nil && res.Errors > 0 {
		fmt.Fprintf(os.Stderr, "%d error(s), %d warning(s)\n", res.Errors, res.Warnings)
	}
	return res, exitError(err)
}

// exitError maps a compilation failure onto the process status: 2 for an
// internal compiler error and 1 for errors in the program.
func exitError(err error) error {
	var ice *diag.InternalError
	switch {
	case err == nil:
		return nil
	case errors.As(err, &ice):
		return cli.Exit(err, 2)
	case errors.Is(err, compiler.ErrCompilationFailed):
		return cli.Exit("", 1)
	}
	return cli.Exit(err, 1)
}

func writeOutput(path, text string) error {
	if path == "-" {
		_, err := io.WriteString(os.Stdout, text)
		return err
	}
	return os.WriteFile(path, []byte(text), 0o644)
}

func outputName(c *cli.Context, ext string) string {
	if o := c.String("output"); o != "" {
		return o
	}
	filename := c.Args().First()
	return strings.TrimSuffix(filepath.Base(filename), filepath.Ext(filename)) + ext
}

// assemble hands the generated assembly to the system compiler driver.
func assemble(asmText, exe string) error {
	cc := "cc"
	if env := os.Getenv("MYCC_CC"); env != "" {
		cc = env
	}

	cmd := exec.Command(cc, "-x", "assembler", "-o", exe, "-")
	cmd.Stdin = strings.NewReader(asmText)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	start := time.Now()
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("assembling with %s: %w", cc, err)
	}
	slog.Debug("assembled", "cc", cc, "output", exe, "ms", time.Since(start).Milliseconds())
	return nil
}

func dumpTokens(c *cli.Context) error {
	filename := c.Args().First()
	if filename == "" {
		return errors.New("Source file not provided.")
	}
	code, err := os.ReadFile(filename)
	if err != nil {
		return fmt.Errorf("reading source file: %w", err)
	}

	lex := lexer.New(filename, string(code))
	failed := false
	for {
		tok, err := lex.Next()
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			failed = true
			if tok.Lexeme == "" {
				continue
			}
		}
		repr.Println(tok)
		if tok.Type == token.EOF {
			break
		}
	}
	if failed {
		return cli.Exit("", 1)
	}
	return nil
}

func main() {
	dumpFlag := &cli.BoolFlag{
		Name:  "dump-diagnostics",
		Usage: "Print every diagnostic as a Go value after compiling.",
	}

	app := &cli.App{
		Name:      "mycc",
		Usage:     "A small C compiler for x86-64.",
		ArgsUsage: "file.c [options]",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "verbose",
				Usage: "Log pipeline timings.",
			},
			&cli.StringFlag{
				Name:  "log-format",
				Value: "text",
				Usage: "Log output format, text or json.",
			},
		},
		Before: setupLogging,
		Commands: []*cli.Command{
			{
				Name:  "compile",
				Usage: "Compiles the provided source file to assembly.",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "output",
						Aliases: []string{"o"},
						Usage:   "Output file, or - for standard output.",
					},
					&cli.BoolFlag{
						Name:  "emit-llvm",
						Usage: "Write LLVM IR instead of assembly.",
					},
					dumpFlag,
				},
				Action: func(c *cli.Context) error {
					emitLLVM := c.Bool("emit-llvm")
					res, err := compile(c, compiler.Options{EmitLLVM: emitLLVM})
					if err != nil {
						return err
					}
					if emitLLVM {
						return writeOutput(outputName(c, ".ll"), res.LLVM)
					}
					return writeOutput(outputName(c, ".s"), res.Asm)
				},
			},
			{
				Name:  "build",
				Usage: "Compiles and assembles the provided source file to an executable.",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "output",
						Aliases: []string{"o"},
						Value:   "a.out",
						Usage:   "Name of the executable.",
					},
					dumpFlag,
				},
				Action: func(c *cli.Context) error {
					res, err := compile(c, compiler.Options{})
					if err != nil {
						return err
					}
					return assemble(res.Asm, c.String("output"))
				},
			},
			{
				Name:  "check",
				Usage: "Reports diagnostics without generating code.",
				Flags: []cli.Flag{dumpFlag},
				Action: func(c *cli.Context) error {
					_, err := compile(c, compiler.Options{CheckOnly: true})
					return err
				},
			},
			{
				Name:  "tokens",
				Usage: "Prints the tokens of the provided source file.",
				Action: func(c *cli.Context) error {
					return dumpTokens(c)
				},
			},
		},
	}

	err := app.RunContext(context.Background(), os.Args)
	if err != nil {
		log.Fatal(err)
	}
}
