// Package renderer turns post markup and site pages into HTML, with caching.
package renderer

import (
	"bytes"
	"cmp"
	"context"
	"fmt"
	"html/template"
	"log/slog"
	"path"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/alecthomas/chroma/v2/formatters/html"
	"github.com/yuin/goldmark"
	highlighting "github.com/yuin/goldmark-highlighting/v2"
	goldmarkmeta "github.com/yuin/goldmark-meta"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
	htmlrenderer "github.com/yuin/goldmark/renderer/html"
	"github.com/yuin/goldmark/text"
	"github.com/yuin/goldmark/util"
	"github.com/zeebo/blake3"
	"go.abhg.dev/goldmark/anchor"

	"github.com/vaadforum/vaad/internal/markup"
)

// maxPostEntries bounds the post cache; it is cleared wholesale when full.
const maxPostEntries = 4096

// Metadata captures optional front matter of a site page.
type Metadata struct {
	Raw         map[string]any
	Title       string
	Description string
	Tags        []string
}

// IsZero reports whether the metadata carries any meaningful values.
func (m Metadata) IsZero() bool {
	if m.Title != "" || m.Description != "" || len(m.Tags) > 0 {
		return false
	}
	return len(m.Raw) == 0
}

// Document is a rendered site page.
//
//nolint:govet // field order optimized for readability, not memory
type Document struct {
	HTML     string
	Metadata Metadata
	Modified time.Time
	Raw      string
}

// Options configures the rendering service.
type Options struct {
	// HighlightStyle is a chroma style name. Empty disables highlighting of
	// fenced post code; site pages always highlight.
	HighlightStyle string
	// Sanitize runs post output through markup.SanitizePolicy.
	Sanitize bool
	// ProfileURL builds mention links. Nil keeps markup.DefaultProfileURL.
	ProfileURL func(string) string
	// MatchTimeout bounds each markup pattern match. Zero means no bound.
	MatchTimeout time.Duration
}

// Stats reports post cache effectiveness.
type Stats struct {
	Hits    uint64
	Misses  uint64
	Entries int64
}

type pageEntry struct {
	modTime time.Time
	doc     Document
}

type cacheKey string

// Service renders post markup and Markdown site pages.
// Posts are memoised by the BLAKE3 hash of their content; pages are cached by
// path and modification time.
type Service struct {
	md          goldmark.Markdown
	posts       *markup.Renderer
	logger      *slog.Logger
	pageCache   sync.Map // map[cacheKey]pageEntry
	postCache   sync.Map // map[[32]byte]template.HTML
	postEntries atomic.Int64
	hits        atomic.Uint64
	misses      atomic.Uint64
}

var pagePathKey = parser.NewContextKey()

// linkTransformer rewrites relative .md links between site pages to /pages/ routes.
type linkTransformer struct{}

func (t *linkTransformer) Transform(node *ast.Document, _ text.Reader, pc parser.Context) {
	currentPath := ""
	if v := pc.Get(pagePathKey); v != nil {
		if str, ok := v.(string); ok {
			currentPath = str
		}
	}
	currentDir := path.Dir(currentPath)

	_ = ast.Walk(node, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		if link, ok := n.(*ast.Link); ok {
			link.Destination = []byte(pageLink(string(link.Destination), currentDir))
		}
		return ast.WalkContinue, nil
	})
}

func pageLink(dest, currentDir string) string {
	if dest == "" || strings.HasPrefix(dest, "#") || strings.Contains(dest, "://") || strings.HasPrefix(dest, "/") {
		return dest
	}
	name, fragment, _ := strings.Cut(dest, "#")
	if !strings.HasSuffix(name, ".md") {
		return dest
	}
	if currentDir != "" && currentDir != "." {
		name = path.Join(currentDir, name)
	}
	out := "/pages/" + strings.TrimSuffix(path.Clean(name), ".md")
	if fragment != "" {
		out += "#" + fragment
	}
	return out
}

// NewService constructs the rendering service.
// Site pages get GitHub-flavored Markdown, YAML front matter, chroma
// highlighting, heading anchors and raw HTML (pages are operator-authored).
// Posts go through the markup pipeline configured by opts.
//
// If logger is nil, the default slog logger is used.
func NewService(logger *slog.Logger, opts Options) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "renderer")

	highlight := highlighting.NewHighlighting(
		highlighting.WithStyle(cmp.Or(opts.HighlightStyle, DefaultStyle)),
		highlighting.WithFormatOptions(
			html.WithLineNumbers(false),
			html.WithClasses(true),
		),
	)

	md := goldmark.New(
		goldmark.WithExtensions(
			extension.GFM,
			goldmarkmeta.Meta,
			highlight,
			&anchor.Extender{
				Position: anchor.After,
			},
		),
		goldmark.WithParserOptions(
			parser.WithAutoHeadingID(),
			parser.WithAttribute(),
			parser.WithASTTransformers(
				util.Prioritized(&linkTransformer{}, 100),
			),
		),
		goldmark.WithRendererOptions(
			htmlrenderer.WithUnsafe(),
			htmlrenderer.WithXHTML(),
		),
	)

	markupOpts := []markup.Option{markup.WithLogger(logger)}
	if opts.HighlightStyle != "" {
		markupOpts = append(markupOpts, markup.WithHighlighting(opts.HighlightStyle))
	}
	if opts.Sanitize {
		markupOpts = append(markupOpts, markup.WithSanitizer(markup.SanitizePolicy()))
	}
	if opts.ProfileURL != nil {
		markupOpts = append(markupOpts, markup.WithProfileURL(opts.ProfileURL))
	}
	if opts.MatchTimeout > 0 {
		markupOpts = append(markupOpts, markup.WithMatchTimeout(opts.MatchTimeout))
	}

	return &Service{
		md:     md,
		posts:  markup.New(markupOpts...),
		logger: logger,
	}
}

// RenderPost converts post content to HTML, reusing earlier renders of
// identical content.
func (s *Service) RenderPost(_ context.Context, content string) template.HTML {
	if content == "" {
		return ""
	}

	key := blake3.Sum256([]byte(content))
	if cached, ok := s.postCache.Load(key); ok {
		if out, ok := cached.(template.HTML); ok {
			s.hits.Add(1)
			return out
		}
	}
	s.misses.Add(1)

	out := template.HTML(s.posts.Render(content)) //nolint:gosec // markup output is the post body by contract

	if s.postEntries.Add(1) > maxPostEntries {
		s.postCache.Range(func(k, _ any) bool {
			s.postCache.Delete(k)
			return true
		})
		s.postEntries.Store(1)
		s.logger.Debug("post cache cleared", slog.Int("limit", maxPostEntries))
	}
	s.postCache.Store(key, out)
	return out
}

// RenderPage converts a Markdown site page, caching by path and modification time.
func (s *Service) RenderPage(_ context.Context, path string, modTime time.Time, content []byte) (Document, error) {
	key := cacheKey(path)

	if entry, ok := s.pageCache.Load(key); ok {
		if cached, ok := entry.(pageEntry); ok {
			if !cached.modTime.IsZero() && modTime.Equal(cached.modTime) {
				return cached.doc, nil
			}
		}
	}

	parserCtx := parser.NewContext()
	parserCtx.Set(pagePathKey, path)
	buf := bytes.NewBuffer(nil)

	if err := s.md.Convert(content, buf, parser.WithContext(parserCtx)); err != nil {
		return Document{}, fmt.Errorf("render page: %w", err)
	}

	doc := Document{
		HTML:     buf.String(),
		Metadata: extractMetadata(parserCtx),
		Modified: modTime,
		Raw:      string(content),
	}

	s.pageCache.Store(key, pageEntry{modTime: modTime, doc: doc})
	return doc, nil
}

// Invalidate drops the cached page for path.
func (s *Service) Invalidate(path string) {
	s.pageCache.Delete(cacheKey(path))
}

// Stats returns post cache counters.
func (s *Service) Stats() Stats {
	return Stats{
		Hits:    s.hits.Load(),
		Misses:  s.misses.Load(),
		Entries: s.postEntries.Load(),
	}
}

func extractMetadata(ctx parser.Context) Metadata {
	raw := goldmarkmeta.Get(ctx)
	var meta Metadata
	if raw == nil {
		return meta
	}

	meta.Raw = make(map[string]any)
	for k, v := range raw {
		meta.Raw[k] = v
		switch k {
		case "title":
			if str, ok := toString(v); ok {
				meta.Title = str
			}
		case "description", "summary":
			if str, ok := toString(v); ok {
				meta.Description = str
			}
		case "tags", "keywords":
			meta.Tags = toStringSlice(v)
		}
	}

	if len(meta.Raw) == 0 {
		meta.Raw = nil
	}
	return meta
}

func toString(v any) (string, bool) {
	switch val := v.(type) {
	case string:
		return val, true
	case fmt.Stringer:
		return val.String(), true
	default:
		return "", false
	}
}

func toStringSlice(v any) []string {
	switch vv := v.(type) {
	case []any:
		out := make([]string, 0, len(vv))
		for _, item := range vv {
			if str, ok := toString(item); ok {
				out = append(out, str)
			}
		}
		return out
	case []string:
		return append([]string(nil), vv...)
	default:
		if str, ok := toString(v); ok {
			return []string{str}
		}
		return nil
	}
}
