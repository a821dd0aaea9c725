package main

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/vaadforum/vaad/internal/config"
)

func testOptions() options {
	return options{title: "Vaad", cfg: config.Default()}
}

func TestRenderPost(t *testing.T) {
	t.Parallel()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	var out bytes.Buffer
	err := render(context.Background(), logger, testOptions(), strings.NewReader("**hi** {{bob}}"), &out)
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	want := `<b>hi</b> <a href="/profile/bob">@bob</a>` + "\n"
	if out.String() != want {
		t.Fatalf("got %q, want %q", out.String(), want)
	}
}

func TestRenderStandalonePage(t *testing.T) {
	t.Parallel()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	opts := testOptions()
	opts.page = true
	opts.standalone = true
	opts.input = "faq.md"

	var out bytes.Buffer
	in := strings.NewReader("---\ntitle: FAQ\n---\n# Questions\n\n```go\nfunc main() {}\n```\n")
	if err := render(context.Background(), logger, opts, in, &out); err != nil {
		t.Fatalf("render: %v", err)
	}

	html := out.String()
	for _, want := range []string{"<title>FAQ</title>", `class="site-page"`, ".spoiler", ".chroma", "Questions"} {
		if !strings.Contains(html, want) {
			t.Fatalf("expected %q in standalone output:\n%s", want, html)
		}
	}
}

func TestRenderSanitized(t *testing.T) {
	t.Parallel()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	opts := testOptions()
	opts.cfg.Sanitize = true

	var out bytes.Buffer
	if err := render(context.Background(), logger, opts, strings.NewReader("<script>x</script>**ok**"), &out); err != nil {
		t.Fatalf("render: %v", err)
	}
	if strings.Contains(out.String(), "<script") {
		t.Fatalf("script survived sanitizing: %q", out.String())
	}
}
