package diag

import (
	"fmt"
	"io"
	"strings"

	"github.com/kartiknair/mycc/pkg/config"
	"github.com/kartiknair/mycc/pkg/token"
)

type Severity int

const (
	SevWarning Severity = iota
	SevError
	SevInternal
)

func (s Severity) String() string {
	switch s {
	case SevWarning:
		return "warning"
	case SevError:
		return "error"
	}
	return "internal error"
}

type Diagnostic struct {
	Severity Severity
	Category config.Warning
	Pos      token.Pos
	Message  string
}

func (d Diagnostic) String() string {
	s := fmt.Sprintf("%s: %s: %s", d.Pos, d.Severity, d.Message)
	if d.Category != 0 {
		s += fmt.Sprintf(" [-W%s]", d.Category)
	}
	return s
}

// InternalError is raised (as a panic) when the compiler reaches a state
// that the front end should have ruled out.
type InternalError struct {
	Pos token.Pos
	Msg string
}

func (e *InternalError) Error() string {
	if e.Pos.Line == 0 {
		return "internal compiler error: " + e.Msg
	}
	return fmt.Sprintf("%s: internal compiler error: %s", e.Pos, e.Msg)
}

func ICE(format string, args ...interface{}) {
	panic(&InternalError{Msg: fmt.Sprintf(format, args...)})
}

func ICEAt(pos token.Pos, format string, args ...interface{}) {
	panic(&InternalError{Pos: pos, Msg: fmt.Sprintf(format, args...)})
}

// Reporter collects diagnostics for one translation unit. It is the only
// shared mutable state of a compilation and is written from a single
// goroutine.
type Reporter struct {
	cfg     *config.Config
	out     io.Writer
	sources map[string][]string

	Diagnostics []Diagnostic
	Errors      int
	Warnings    int
}

// NewReporter writes each diagnostic to out as it arrives; out may be nil.
func NewReporter(cfg *config.Config, out io.Writer) *Reporter {
	return &Reporter{cfg: cfg, out: out, sources: map[string][]string{}}
}

// AddSource registers file contents for caret context rendering.
func (r *Reporter) AddSource(file, source string) {
	source = strings.ReplaceAll(source, "\r\n", "\n")
	r.sources[file] = strings.Split(source, "\n")
}

func (r *Reporter) Warn(w config.Warning, pos token.Pos, format string, args ...interface{}) {
	if !r.cfg.IsWarningEnabled(w) {
		return
	}
	sev := SevWarning
	if r.cfg.Werror {
		sev = SevError
	}
	r.add(Diagnostic{Severity: sev, Category: w, Pos: pos, Message: fmt.Sprintf(format, args...)})
}

func (r *Reporter) Error(pos token.Pos, format string, args ...interface{}) {
	r.add(Diagnostic{Severity: SevError, Pos: pos, Message: fmt.Sprintf(format, args...)})
}

// Internal records an internal compiler error recovered by the caller.
func (r *Reporter) Internal(e *InternalError) {
	r.add(Diagnostic{Severity: SevInternal, Pos: e.Pos, Message: e.Msg})
}

func (r *Reporter) add(d Diagnostic) {
	r.Diagnostics = append(r.Diagnostics, d)
	if d.Severity == SevWarning {
		r.Warnings++
	} else {
		r.Errors++
	}

	if r.out == nil {
		return
	}
	fmt.Fprintln(r.out, d.String())
	if r.cfg.IsFeatureEnabled(config.FeatShowLine) {
		if ctx := r.SourceContext(d.Pos); ctx != "" {
			fmt.Fprintln(r.out, ctx)
		}
	}
}

func (r *Reporter) Failed() bool {
	return r.Errors > 0
}

// TooMany reports whether the configured error limit has been reached.
func (r *Reporter) TooMany() bool {
	return r.cfg.MaxErrors > 0 && r.Errors >= r.cfg.MaxErrors
}

// SourceContext renders the line holding pos with a caret under the column.
func (r *Reporter) SourceContext(pos token.Pos) string {
	lines, ok := r.sources[pos.File]
	if !ok || pos.Line < 1 || pos.Line > len(lines) {
		return ""
	}

	line := lines[pos.Line-1]
	col := pos.Column
	if col < 1 {
		col = 1
	}
	if col > len(line)+1 {
		col = len(line) + 1
	}

	offsetHighlight := make([]byte, col)
	for i := 0; i < col-1; i++ {
		if line[i] == '\t' {
			offsetHighlight[i] = '\t'
		} else {
			offsetHighlight[i] = ' '
		}
	}
	offsetHighlight[col-1] = '^'

	return fmt.Sprintf("%4d | %s\n     | %s", pos.Line, line, string(offsetHighlight))
}
