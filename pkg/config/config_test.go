package config

import (
	"testing"
)

func TestDefaults(t *testing.T) {
	cfg := Default()
	if cfg.WordSize != 8 || cfg.StackAlignBytes() != 16 {
		t.Errorf("word size %d, stack alignment %d", cfg.WordSize, cfg.StackAlignBytes())
	}
	if !cfg.IsFeatureEnabled(FeatConstFold) || cfg.IsFeatureEnabled(FeatPIC) {
		t.Errorf("features %b", cfg.Features)
	}
	if !cfg.IsWarningEnabled(WarnSignCompare) || cfg.IsWarningEnabled(WarnOptPossible) {
		t.Errorf("warnings %b", cfg.Warnings)
	}
}

func TestApplyFlag(t *testing.T) {
	tests := []struct {
		flag  string
		check func(*Config) bool
	}{
		{"-g", func(c *Config) bool { return c.Debug }},
		{"-m32", func(c *Config) bool { return c.WordSize == 4 }},
		{"-mstack-align=5", func(c *Config) bool { return c.StackAlignBytes() == 32 }},
		{"-fmax-errors=3", func(c *Config) bool { return c.MaxErrors == 3 }},
		{"-fPIC", func(c *Config) bool { return c.IsFeatureEnabled(FeatPIC) }},
		{"-fno-const-fold", func(c *Config) bool { return !c.IsFeatureEnabled(FeatConstFold) }},
		{"-fshow-line", func(c *Config) bool { return c.IsFeatureEnabled(FeatShowLine) }},
		{"-Werror", func(c *Config) bool { return c.Werror }},
		{"-w", func(c *Config) bool { return c.Warnings == 0 }},
		{"-Wextra", func(c *Config) bool { return c.IsWarningEnabled(WarnOptPossible) }},
		{"-Wno-format", func(c *Config) bool { return !c.IsWarningEnabled(WarnFormat) }},
		{"-Wuninitialised", func(c *Config) bool { return c.IsWarningEnabled(WarnReadBeforeWrite) }},
	}

	for _, tt := range tests {
		cfg := Default()
		if err := cfg.ApplyFlag(tt.flag); err != nil {
			t.Errorf("%s: %v", tt.flag, err)
			continue
		}
		if !tt.check(cfg) {
			t.Errorf("%s was not applied", tt.flag)
		}
	}
}

func TestBadFlags(t *testing.T) {
	for _, flag := range []string{"-fno-such-thing", "-Wbogus", "-mstack-align=1", "-fmax-errors=x", "-O2", "--help"} {
		if err := Default().ApplyFlag(flag); err == nil {
			t.Errorf("%s: expected an error", flag)
		}
	}
}

func TestWarningNames(t *testing.T) {
	for _, n := range warningNames {
		w, ok := ParseWarning(n.name)
		if !ok || w != n.w || w.String() != n.name {
			t.Errorf("%s does not round-trip", n.name)
		}
	}
	if len(warningNames) != 0 && WarnAll != warningNames[len(warningNames)-1].w<<1-1 {
		t.Errorf("WarnAll does not cover every category")
	}
}
