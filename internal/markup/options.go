package markup

import (
	"log/slog"
	"time"

	"github.com/microcosm-cc/bluemonday"
)

// Option configures a Renderer.
type Option func(*Renderer)

// WithProfileURL sets the href builder for {{username}} mentions.
func WithProfileURL(fn func(username string) string) Option {
	return func(r *Renderer) {
		if fn != nil {
			r.profileURL = fn
		}
	}
}

// WithHighlighting enables chroma highlighting for fenced blocks whose first
// line names a known language, using CSS classes of the given style.
func WithHighlighting(style string) Option {
	return func(r *Renderer) {
		r.highlight = style
	}
}

// WithSanitizer runs the rendered fragment through policy. This changes the
// output contract: raw HTML in user text and unsafe colour values are
// stripped. See SanitizePolicy.
func WithSanitizer(policy *bluemonday.Policy) Option {
	return func(r *Renderer) {
		r.sanitizer = policy
	}
}

// WithMatchTimeout bounds the time any single pattern may spend matching. A
// pass that times out leaves its input unchanged.
func WithMatchTimeout(d time.Duration) Option {
	return func(r *Renderer) {
		r.timeout = d
	}
}

// WithLogger sets the logger used to report degraded passes.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Renderer) {
		if logger != nil {
			r.logger = logger
		}
	}
}
