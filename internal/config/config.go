// Package config manages application configuration from environment variables and flags.
package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/alecthomas/chroma/v2/styles"
	"github.com/spf13/pflag"
)

const envPrefix = "VAAD_"

// Config holds runtime configuration for the forum server.
type Config struct {
	BackendURL     string
	PagesDir       string
	AssetsDir      string
	HighlightStyle string
	ProfileURLBase string
	Port           int
	PageSize       int
	RequestTimeout time.Duration
	RenderTimeout  time.Duration
	Sanitize       bool
	SecureCookies  bool
	Verbose        bool
}

// Default returns ready-to-use defaults prior to env/flag overrides.
func Default() Config {
	return Config{
		BackendURL:     "http://localhost:3000",
		PagesDir:       "pages",
		Port:           8080,
		PageSize:       10,
		RequestTimeout: 10 * time.Second,
		RenderTimeout:  250 * time.Millisecond,
		ProfileURLBase: "/profile/",
	}
}

// RegisterFlags attaches configuration flags to the provided FlagSet.
func RegisterFlags(fs *pflag.FlagSet, cfg *Config) {
	fs.StringVarP(&cfg.BackendURL, "backend", "b", cfg.BackendURL, "base URL of the REST backend")
	fs.StringVar(&cfg.PagesDir, "pages", cfg.PagesDir, "directory containing site pages (markdown)")
	fs.StringVar(&cfg.AssetsDir, "assets", cfg.AssetsDir, "serve static assets from this directory instead of the embedded copy")
	fs.IntVarP(&cfg.Port, "port", "p", cfg.Port, "port to bind the HTTP server (0 = auto-assign)")
	fs.IntVar(&cfg.PageSize, "page-size", cfg.PageSize, "forums listed per page")
	fs.DurationVar(&cfg.RequestTimeout, "timeout", cfg.RequestTimeout, "timeout for backend requests")
	fs.DurationVar(&cfg.RenderTimeout, "render-timeout", cfg.RenderTimeout, "bound on each markup pattern match (0 disables)")
	fs.StringVar(&cfg.HighlightStyle, "highlight", cfg.HighlightStyle, "chroma style for fenced code in posts (empty disables)")
	fs.BoolVar(&cfg.Sanitize, "sanitize", cfg.Sanitize, "sanitize rendered posts with a UGC policy")
	fs.StringVar(&cfg.ProfileURLBase, "profile-url", cfg.ProfileURLBase, "prefix for mention links; the username is appended")
	fs.BoolVar(&cfg.SecureCookies, "secure-cookies", cfg.SecureCookies, "mark session cookies Secure (serve over TLS)")
	fs.BoolVarP(&cfg.Verbose, "verbose", "v", cfg.Verbose, "enable verbose logging (HTTP requests)")
}

// ApplyEnvOverrides reads supported environment variables and overrides cfg in place.
func ApplyEnvOverrides(cfg *Config) {
	applyStringEnv("BACKEND", func(v string) { cfg.BackendURL = v })
	applyStringEnv("PAGES", func(v string) { cfg.PagesDir = v })
	applyStringEnv("ASSETS", func(v string) { cfg.AssetsDir = v })
	applyIntEnv("PORT", func(v int) { cfg.Port = v })
	applyIntEnv("PAGE_SIZE", func(v int) { cfg.PageSize = v })
	applyDurationEnv("TIMEOUT", func(v time.Duration) { cfg.RequestTimeout = v })
	applyDurationEnv("RENDER_TIMEOUT", func(v time.Duration) { cfg.RenderTimeout = v })
	applyStringEnv("HIGHLIGHT", func(v string) { cfg.HighlightStyle = v })
	applyBoolEnv("SANITIZE", func(v bool) { cfg.Sanitize = v })
	applyStringEnv("PROFILE_URL", func(v string) { cfg.ProfileURLBase = v })
	applyBoolEnv("SECURE_COOKIES", func(v bool) { cfg.SecureCookies = v })
	applyBoolEnv("VERBOSE", func(v bool) { cfg.Verbose = v })
}

func applyStringEnv(key string, apply func(string)) {
	if raw, ok := lookupNonEmpty(key); ok {
		apply(raw)
	}
}

func applyIntEnv(key string, apply func(int)) {
	if raw, ok := lookupNonEmpty(key); ok {
		if value, err := strconv.Atoi(raw); err == nil {
			apply(value)
		}
	}
}

func applyBoolEnv(key string, apply func(bool)) {
	if raw, ok := lookupNonEmpty(key); ok {
		if value, err := strconv.ParseBool(raw); err == nil {
			apply(value)
		}
	}
}

func applyDurationEnv(key string, apply func(time.Duration)) {
	if raw, ok := lookupNonEmpty(key); ok {
		if value, err := time.ParseDuration(raw); err == nil {
			apply(value)
		}
	}
}

func lookupNonEmpty(key string) (string, bool) {
	raw, ok := os.LookupEnv(envPrefix + key)
	if !ok {
		return "", false
	}
	value := strings.TrimSpace(raw)
	if value == "" {
		return "", false
	}
	return value, true
}

// Finalize validates values and normalizes paths.
func Finalize(cfg *Config) error {
	backend, err := url.Parse(strings.TrimSpace(cfg.BackendURL))
	if err != nil || (backend.Scheme != "http" && backend.Scheme != "https") || backend.Host == "" {
		return fmt.Errorf("invalid backend URL: %q", cfg.BackendURL)
	}
	cfg.BackendURL = strings.TrimRight(backend.String(), "/")

	if cfg.Port < 0 || cfg.Port > 65535 {
		return fmt.Errorf("invalid port: %d", cfg.Port)
	}
	if cfg.PageSize < 1 {
		return fmt.Errorf("invalid page size: %d", cfg.PageSize)
	}
	if cfg.RequestTimeout <= 0 {
		return fmt.Errorf("invalid request timeout: %s", cfg.RequestTimeout)
	}
	if cfg.RenderTimeout < 0 {
		return fmt.Errorf("invalid render timeout: %s", cfg.RenderTimeout)
	}
	if cfg.HighlightStyle != "" {
		if _, ok := styles.Registry[cfg.HighlightStyle]; !ok {
			return fmt.Errorf("unknown highlight style: %q", cfg.HighlightStyle)
		}
	}
	if cfg.ProfileURLBase == "" {
		cfg.ProfileURLBase = "/profile/"
	}

	if cfg.PagesDir == "" {
		cfg.PagesDir = "pages"
	}
	pages, err := filepath.Abs(cfg.PagesDir)
	if err != nil {
		return fmt.Errorf("resolve pages directory: %w", err)
	}
	cfg.PagesDir = pages

	if cfg.AssetsDir != "" {
		assets, err := filepath.Abs(cfg.AssetsDir)
		if err != nil {
			return fmt.Errorf("resolve assets directory: %w", err)
		}
		cfg.AssetsDir = assets
	}

	return nil
}

// ProfileURL returns the mention link builder for cfg.
func (c Config) ProfileURL() func(string) string {
	base := c.ProfileURLBase
	return func(username string) string {
		return base + url.PathEscape(username)
	}
}
