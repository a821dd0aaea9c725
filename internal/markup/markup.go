// Package markup renders forum post markup into an HTML fragment.
//
// Rendering is a fixed, ordered list of text rewrite passes. Later passes see
// the output of earlier ones, so the order is part of the contract: code is
// extracted before anything can match inside it, block rules run before
// inline rules, and newlines become <br/> only after every line-anchored rule
// has had its turn.
//
// User text is not entity-encoded. Angle brackets, quotes and ampersands pass
// through untouched and the colour span copies its colour token verbatim into
// a style attribute. Callers that cannot trust their authors should enable
// WithSanitizer.
package markup

import (
	"log/slog"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"
)

// DefaultProfileURL is the mention link target used when no WithProfileURL
// option is given.
func DefaultProfileURL(username string) string {
	return "profile.html?username=" + username
}

// Renderer converts raw post content to HTML. A Renderer is immutable after
// New and safe for concurrent use.
type Renderer struct {
	logger     *slog.Logger
	sanitizer  *bluemonday.Policy
	profileURL func(string) string
	highlight  string
	timeout    time.Duration
	passes     []pass
}

// New builds a Renderer. With no options the output is exactly the plain
// pipeline: no highlighting, no sanitizing, default profile links.
func New(opts ...Option) *Renderer {
	r := &Renderer{
		logger:     slog.Default(),
		profileURL: DefaultProfileURL,
	}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = r.logger.With("component", "markup")
	r.passes = r.buildPasses()
	return r
}

var std = New()

// Render converts raw with the default Renderer.
func Render(raw string) string {
	return std.Render(raw)
}

// Render converts raw post content into an HTML fragment. Empty input yields
// an empty string; every other input yields some HTML, however malformed the
// markup is.
func (r *Renderer) Render(raw string) string {
	if raw == "" {
		return ""
	}

	st := newState(raw)
	out := raw
	for _, p := range r.passes {
		out = p.apply(st, out)
	}

	if r.sanitizer != nil {
		out = r.sanitizer.Sanitize(out)
	}
	return out
}

// Passes returns the pass names in execution order.
func (r *Renderer) Passes() []string {
	names := make([]string, len(r.passes))
	for i, p := range r.passes {
		names[i] = p.name
	}
	return names
}

// state is the per-call scratch space: the placeholder sentinel and the
// stash of finished code fragments.
type state struct {
	sentinel rune
	protect  *strings.Replacer
	restore  *strings.Replacer
	stash    []string
}

func newState(raw string) *state {
	sentinel := pickSentinel(raw)
	protect, restore := escapeReplacers(sentinel)
	return &state{sentinel: sentinel, protect: protect, restore: restore}
}

// hide stores a finished fragment and returns the placeholder standing in for it.
func (s *state) hide(fragment string) string {
	tok := stashToken(s.sentinel, len(s.stash))
	s.stash = append(s.stash, fragment)
	return tok
}

func (s *state) unhide(in string) string {
	if len(s.stash) == 0 {
		return in
	}
	pairs := make([]string, 0, 2*len(s.stash))
	for i, frag := range s.stash {
		pairs = append(pairs, stashToken(s.sentinel, i), frag)
	}
	return strings.NewReplacer(pairs...).Replace(in)
}
