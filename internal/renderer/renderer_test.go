package renderer_test

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/vaadforum/vaad/internal/renderer"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestRenderPageWithMetadata(t *testing.T) {
	t.Parallel()
	svc := renderer.NewService(quietLogger(), renderer.Options{})

	content := []byte("---\n" +
		"title: Forum Rules\n" +
		"description: Be nice\n" +
		"tags:\n" +
		"  - rules\n" +
		"  - meta\n" +
		"---\n\n" +
		"# Rules\n\n" +
		"See the [formatting guide](formatting.md#emoji) and [home](https://example.com).\n\n" +
		"```go\n" +
		"package main\n" +
		"```\n")

	modTime := time.Unix(1_000, 0)
	doc, err := svc.RenderPage(context.Background(), "rules.md", modTime, content)
	if err != nil {
		t.Fatalf("RenderPage returned error: %v", err)
	}

	if doc.Metadata.Title != "Forum Rules" {
		t.Fatalf("expected title 'Forum Rules', got %q", doc.Metadata.Title)
	}
	if doc.Metadata.Description != "Be nice" {
		t.Fatalf("unexpected description: %q", doc.Metadata.Description)
	}
	if len(doc.Metadata.Tags) != 2 || doc.Metadata.Tags[0] != "rules" || doc.Metadata.Tags[1] != "meta" {
		t.Fatalf("unexpected tags: %#v", doc.Metadata.Tags)
	}

	html := doc.HTML
	if !strings.Contains(html, `href="/pages/formatting#emoji"`) {
		t.Fatalf("expected relative page link to be rewritten, got %s", html)
	}
	if !strings.Contains(html, `href="https://example.com"`) {
		t.Fatalf("expected absolute link untouched, got %s", html)
	}
	if !strings.Contains(html, `class="chroma"`) {
		t.Fatalf("expected chroma highlighter output, got %s", html)
	}
	if !strings.Contains(html, `id="rules"`) {
		t.Fatalf("expected heading id, got %s", html)
	}
	if !doc.Modified.Equal(modTime) {
		t.Fatalf("expected modified timestamp to match, got %v", doc.Modified)
	}
}

func TestRenderPageCaching(t *testing.T) {
	t.Parallel()
	svc := renderer.NewService(quietLogger(), renderer.Options{})

	ctx := context.Background()
	path := "about.md"
	modTime := time.Unix(2_000, 0)

	doc1, err := svc.RenderPage(ctx, path, modTime, []byte("# First"))
	if err != nil {
		t.Fatalf("first render: %v", err)
	}

	doc2, err := svc.RenderPage(ctx, path, modTime, []byte("# Second"))
	if err != nil {
		t.Fatalf("second render: %v", err)
	}
	if doc2.HTML != doc1.HTML {
		t.Fatalf("expected cached HTML, got different output")
	}

	doc3, err := svc.RenderPage(ctx, path, modTime.Add(time.Second), []byte("# Second"))
	if err != nil {
		t.Fatalf("third render: %v", err)
	}
	if !strings.Contains(doc3.HTML, "Second") {
		t.Fatalf("expected new HTML to include updated content, got %s", doc3.HTML)
	}

	svc.Invalidate(path)
	doc4, err := svc.RenderPage(ctx, path, modTime, []byte("# Third"))
	if err != nil {
		t.Fatalf("fourth render: %v", err)
	}
	if !strings.Contains(doc4.HTML, "Third") {
		t.Fatalf("expected invalidated page to re-render, got %s", doc4.HTML)
	}
}

func TestRenderPostCachesByContent(t *testing.T) {
	t.Parallel()
	svc := renderer.NewService(quietLogger(), renderer.Options{})
	ctx := context.Background()

	first := svc.RenderPost(ctx, "Hello **world**")
	if first != "Hello <b>world</b>" {
		t.Fatalf("unexpected post HTML: %q", first)
	}
	second := svc.RenderPost(ctx, "Hello **world**")
	if second != first {
		t.Fatalf("expected identical render, got %q", second)
	}

	stats := svc.Stats()
	if stats.Hits != 1 || stats.Misses != 1 || stats.Entries != 1 {
		t.Fatalf("unexpected stats: %+v", stats)
	}

	if got := svc.RenderPost(ctx, ""); got != "" {
		t.Fatalf("expected empty render, got %q", got)
	}
	if svc.Stats() != stats {
		t.Fatalf("empty content should not touch the cache: %+v", svc.Stats())
	}
}

func TestRenderPostOptions(t *testing.T) {
	t.Parallel()
	svc := renderer.NewService(quietLogger(), renderer.Options{
		Sanitize:   true,
		ProfileURL: func(u string) string { return "/profile/" + u },
	})
	ctx := context.Background()

	got := string(svc.RenderPost(ctx, "{{alice}} <script>alert(1)</script>"))
	if !strings.Contains(got, `<a href="/profile/alice"`) {
		t.Fatalf("expected custom profile link, got %q", got)
	}
	if strings.Contains(got, "<script") {
		t.Fatalf("expected sanitizer to strip script, got %q", got)
	}
}

func TestRenderPostMatchTimeout(t *testing.T) {
	t.Parallel()
	svc := renderer.NewService(quietLogger(), renderer.Options{MatchTimeout: 50 * time.Millisecond})
	ctx := context.Background()

	if got := string(svc.RenderPost(ctx, "*bold*")); got != "<b>bold</b>" {
		t.Fatalf("expected bold markup under a match timeout, got %q", got)
	}

	in := strings.Repeat("[[http://a\t\t\t\t", 1400)
	done := make(chan string, 1)
	go func() { done <- string(svc.RenderPost(ctx, in)) }()
	select {
	case got := <-done:
		if got == "" {
			t.Fatal("expected output for unterminated links")
		}
	case <-time.After(5 * time.Second):
		t.Fatal("render of unterminated links did not finish")
	}
}

func TestRenderPostSanitizedHighlighting(t *testing.T) {
	t.Parallel()
	svc := renderer.NewService(quietLogger(), renderer.Options{HighlightStyle: "github-dark", Sanitize: true})

	got := string(svc.RenderPost(context.Background(), "```go\nx := 1\ny := 2\n```"))
	if !strings.Contains(got, `class="line"`) {
		t.Fatalf("expected per-line spans to survive sanitizing, got %q", got)
	}
	if !strings.Contains(got, `class="chroma"`) {
		t.Fatalf("expected chroma block, got %q", got)
	}
}

func TestRenderPostConcurrent(t *testing.T) {
	t.Parallel()
	svc := renderer.NewService(quietLogger(), renderer.Options{HighlightStyle: "github-dark"})
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if got := svc.RenderPost(ctx, "||spoiler||"); got != `<span class="spoiler">spoiler</span>` {
				t.Errorf("unexpected render %q", got)
			}
		}()
	}
	wg.Wait()
}

func TestWriteStyleSheet(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	if err := renderer.WriteStyleSheet(&buf, ""); err != nil {
		t.Fatalf("default stylesheet: %v", err)
	}
	if !strings.Contains(buf.String(), ".chroma") {
		t.Fatalf("expected chroma classes, got %q", buf.String())
	}

	if err := renderer.WriteStyleSheet(&buf, "no-such-style"); err == nil {
		t.Fatalf("expected error for unknown style")
	}
}
