package config

import (
	"fmt"
	"strconv"
	"strings"
)

type Feature uint32

const (
	FeatConstFold Feature = 1 << iota
	FeatPIC
	FeatLeadingUnderscore
	FeatFreestanding
	FeatShowLine
	FeatVerboseAsm
)

var featureNames = map[string]Feature{
	"const-fold":         FeatConstFold,
	"pic":                FeatPIC,
	"leading-underscore": FeatLeadingUnderscore,
	"freestanding":       FeatFreestanding,
	"show-line":          FeatShowLine,
	"verbose-asm":        FeatVerboseAsm,
}

// Warning is a bit in the set of toggle-able diagnostic categories. The zero
// value is not a category; hard errors carry it.
type Warning uint64

const (
	WarnArgMismatch Warning = 1 << iota
	WarnAssignMismatch
	WarnCompareMismatch
	WarnReturnType
	WarnSignCompare
	WarnImplicitFunc
	WarnImplicitInt
	WarnVoidArith
	WarnOptPossible
	WarnUnusedExpr
	WarnTestAssign
	WarnReadBeforeWrite
	WarnUnusedVar
	WarnDeadCode
	WarnFormat
	WarnArrayBounds
	WarnExcessInit
	WarnAttr
	WarnDivZero
	WarnNoreturn
	WarnIncompatiblePtr
	WarnIntPtrConv
	WarnMixedCode

	warnEnd
)

var warningNames = [...]struct {
	name string
	w    Warning
}{
	{"arg-mismatch", WarnArgMismatch},
	{"assign-mismatch", WarnAssignMismatch},
	{"compare-mismatch", WarnCompareMismatch},
	{"return-type", WarnReturnType},
	{"sign-compare", WarnSignCompare},
	{"implicit-func", WarnImplicitFunc},
	{"implicit-int", WarnImplicitInt},
	{"void-arith", WarnVoidArith},
	{"opt-possible", WarnOptPossible},
	{"unused-expr", WarnUnusedExpr},
	{"test-assign", WarnTestAssign},
	{"uninitialised", WarnReadBeforeWrite},
	{"unused-var", WarnUnusedVar},
	{"dead-code", WarnDeadCode},
	{"format", WarnFormat},
	{"array-bounds", WarnArrayBounds},
	{"excess-init", WarnExcessInit},
	{"attr", WarnAttr},
	{"div-zero", WarnDivZero},
	{"noreturn", WarnNoreturn},
	{"incompatible-ptr", WarnIncompatiblePtr},
	{"int-ptr-conv", WarnIntPtrConv},
	{"mixed-code", WarnMixedCode},
}

const (
	WarnAll   = warnEnd - 1
	WarnExtra = WarnOptPossible | WarnMixedCode | WarnUnusedVar

	defaultWarnings = WarnAll &^ WarnExtra
)

func (w Warning) String() string {
	for _, n := range warningNames {
		if n.w == w {
			return n.name
		}
	}
	return ""
}

// ParseWarning looks up a category by its -W spelling.
func ParseWarning(name string) (Warning, bool) {
	for _, n := range warningNames {
		if n.name == name {
			return n.w, true
		}
	}
	return 0, false
}

// Config holds every knob the compiler core reads. It is built before a
// translation unit starts and must not change while it is compiled.
type Config struct {
	// WordSize is the pointer width in bytes, 4 or 8.
	WordSize int
	// StackAlign is log2 of the required stack alignment.
	StackAlign int
	Debug      bool
	MaxErrors  int
	Werror     bool

	Features Feature
	Warnings Warning
}

func Default() *Config {
	return &Config{
		WordSize:   8,
		StackAlign: 4,
		MaxErrors:  16,
		Features:   FeatConstFold,
		Warnings:   defaultWarnings,
	}
}

func (c *Config) IsFeatureEnabled(f Feature) bool {
	return c.Features&f != 0
}

func (c *Config) IsWarningEnabled(w Warning) bool {
	return c.Warnings&w != 0
}

// StackAlignBytes returns the stack alignment in bytes.
func (c *Config) StackAlignBytes() int64 {
	return int64(1) << uint(c.StackAlign)
}

// ApplyFlag parses a single -f, -W or -m option into the configuration.
func (c *Config) ApplyFlag(flag string) error {
	switch {
	case flag == "-g":
		c.Debug = true
	case flag == "-m32":
		c.WordSize = 4
	case flag == "-m64":
		c.WordSize = 8
	case strings.HasPrefix(flag, "-mstack-align="):
		n, err := strconv.Atoi(strings.TrimPrefix(flag, "-mstack-align="))
		if err != nil || n < 2 || n > 12 {
			return fmt.Errorf("invalid stack alignment %q", flag)
		}
		c.StackAlign = n
	case strings.HasPrefix(flag, "-fmax-errors="):
		n, err := strconv.Atoi(strings.TrimPrefix(flag, "-fmax-errors="))
		if err != nil || n < 0 {
			return fmt.Errorf("invalid error limit %q", flag)
		}
		c.MaxErrors = n
	case flag == "-fpic" || flag == "-fPIC":
		c.Features |= FeatPIC
	case strings.HasPrefix(flag, "-f"):
		name, on := strings.TrimPrefix(flag, "-f"), true
		if strings.HasPrefix(name, "no-") {
			name, on = strings.TrimPrefix(name, "no-"), false
		}
		f, ok := featureNames[name]
		if !ok {
			return fmt.Errorf("unknown feature flag %q", flag)
		}
		if on {
			c.Features |= f
		} else {
			c.Features &^= f
		}
	case flag == "-Wall":
		c.Warnings |= defaultWarnings
	case flag == "-Wextra":
		c.Warnings |= WarnAll
	case flag == "-Werror":
		c.Werror = true
	case flag == "-w":
		c.Warnings = 0
	case strings.HasPrefix(flag, "-W"):
		name, on := strings.TrimPrefix(flag, "-W"), true
		if strings.HasPrefix(name, "no-") {
			name, on = strings.TrimPrefix(name, "no-"), false
		}
		w, ok := ParseWarning(name)
		if !ok {
			return fmt.Errorf("unknown warning %q", flag)
		}
		if on {
			c.Warnings |= w
		} else {
			c.Warnings &^= w
		}
	default:
		return fmt.Errorf("unrecognised option %q", flag)
	}
	return nil
}
