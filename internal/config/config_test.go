package config_test

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"

	"github.com/vaadforum/vaad/internal/config"
)

func TestEnvOverridesAndFlags(t *testing.T) {
	t.Setenv("VAAD_BACKEND", "http://backend:3000/")
	t.Setenv("VAAD_PORT", "9000")
	t.Setenv("VAAD_SANITIZE", "true")
	t.Setenv("VAAD_TIMEOUT", "3s")
	t.Setenv("VAAD_RENDER_TIMEOUT", "40ms")
	t.Setenv("VAAD_PAGE_SIZE", "not-a-number")

	cfg := config.Default()
	config.ApplyEnvOverrides(&cfg)

	if cfg.BackendURL != "http://backend:3000/" || cfg.Port != 9000 || !cfg.Sanitize {
		t.Fatalf("env overrides not applied: %+v", cfg)
	}
	if cfg.RequestTimeout != 3*time.Second {
		t.Fatalf("expected 3s timeout, got %s", cfg.RequestTimeout)
	}
	if cfg.RenderTimeout != 40*time.Millisecond {
		t.Fatalf("expected 40ms render timeout, got %s", cfg.RenderTimeout)
	}
	if cfg.PageSize != 10 {
		t.Fatalf("invalid env value should be ignored, got %d", cfg.PageSize)
	}

	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	config.RegisterFlags(fs, &cfg)
	if err := fs.Parse([]string{"--port", "8081", "--highlight", "monokai", "--pages", "docs", "--render-timeout", "1s"}); err != nil {
		t.Fatalf("parse flags: %v", err)
	}
	if err := config.Finalize(&cfg); err != nil {
		t.Fatalf("Finalize: %v", err)
	}

	if cfg.Port != 8081 || cfg.HighlightStyle != "monokai" {
		t.Fatalf("flags not applied: %+v", cfg)
	}
	if cfg.RenderTimeout != time.Second {
		t.Fatalf("expected --render-timeout to win over env, got %s", cfg.RenderTimeout)
	}
	if cfg.BackendURL != "http://backend:3000" {
		t.Fatalf("expected trailing slash trimmed, got %q", cfg.BackendURL)
	}
	if !filepath.IsAbs(cfg.PagesDir) {
		t.Fatalf("expected absolute pages dir, got %q", cfg.PagesDir)
	}
}

func TestFinalizeRejectsInvalid(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		mutate func(*config.Config)
	}{
		{"backend scheme", func(c *config.Config) { c.BackendURL = "ftp://x" }},
		{"backend empty", func(c *config.Config) { c.BackendURL = "" }},
		{"port", func(c *config.Config) { c.Port = 70000 }},
		{"page size", func(c *config.Config) { c.PageSize = 0 }},
		{"timeout", func(c *config.Config) { c.RequestTimeout = 0 }},
		{"render timeout", func(c *config.Config) { c.RenderTimeout = -time.Second }},
		{"highlight style", func(c *config.Config) { c.HighlightStyle = "no-such-style" }},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			cfg := config.Default()
			tc.mutate(&cfg)
			if err := config.Finalize(&cfg); err == nil {
				t.Fatalf("expected error for %s", tc.name)
			}
		})
	}
}

func TestProfileURL(t *testing.T) {
	t.Parallel()
	cfg := config.Default()
	if got := cfg.ProfileURL()("alice"); got != "/profile/alice" {
		t.Fatalf("unexpected profile URL %q", got)
	}
}
