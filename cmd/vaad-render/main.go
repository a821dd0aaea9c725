// Package main provides a command line renderer for post markup and site pages.
//
//	vaad-render -i post.txt > post.html
//	echo '**hi** {{bob}}' | vaad-render --standalone --highlight monokai
package main

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/pflag"

	"github.com/vaadforum/vaad/internal/buildinfo"
	"github.com/vaadforum/vaad/internal/config"
	"github.com/vaadforum/vaad/internal/renderer"
	"github.com/vaadforum/vaad/static"
)

type options struct {
	input      string
	page       bool
	standalone bool
	title      string
	cfg        config.Config
}

func main() {
	cfg := config.Default()
	config.ApplyEnvOverrides(&cfg)
	opts := options{cfg: cfg}

	flags := pflag.NewFlagSet("vaad-render", pflag.ExitOnError)
	flags.StringVarP(&opts.input, "input", "i", "", "file to render (default stdin)")
	flags.BoolVar(&opts.page, "page", false, "treat input as a Markdown site page instead of post markup")
	flags.BoolVar(&opts.standalone, "standalone", false, "wrap output in an HTML document with inline styles")
	flags.StringVar(&opts.title, "title", "Vaad", "document title for --standalone")
	flags.StringVar(&opts.cfg.HighlightStyle, "highlight", opts.cfg.HighlightStyle, "chroma style for fenced code (empty disables in posts)")
	flags.BoolVar(&opts.cfg.Sanitize, "sanitize", opts.cfg.Sanitize, "sanitize post output")
	flags.DurationVar(&opts.cfg.RenderTimeout, "render-timeout", opts.cfg.RenderTimeout, "bound on each markup pattern match (0 disables)")
	flags.StringVar(&opts.cfg.ProfileURLBase, "profile-url", opts.cfg.ProfileURLBase, "URL prefix for mention links")
	verbose := flags.BoolP("verbose", "v", false, "log rendering details to stderr")
	versionFlag := flags.Bool("version", false, "Print version information and exit")

	if err := flags.Parse(os.Args[1:]); err != nil {
		slog.Error("flag parsing failed", slog.Any("err", err))
		os.Exit(1)
	}
	if *versionFlag {
		fmt.Println(buildinfo.Summary())
		return
	}

	level := slog.LevelWarn
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	in := io.Reader(os.Stdin)
	if opts.input != "" && opts.input != "-" {
		f, err := os.Open(opts.input)
		if err != nil {
			logger.Error("open input", slog.Any("err", err))
			os.Exit(1)
		}
		defer f.Close()
		in = f
	}

	if err := render(context.Background(), logger, opts, in, os.Stdout); err != nil {
		logger.Error("render failed", slog.Any("err", err))
		os.Exit(1) //nolint:gocritic // exitAfterDefer: input file is read-only
	}
}

var documentTmpl = template.Must(template.New("doc").Parse(`<!doctype html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>{{.Title}}</title>
<style>
{{.ForumCSS}}
{{.HighlightCSS}}
</style>
</head>
<body>
<main><article class="{{.Class}}">{{.Body}}</article></main>
</body>
</html>
`))

func render(ctx context.Context, logger *slog.Logger, opts options, in io.Reader, out io.Writer) error {
	content, err := io.ReadAll(in)
	if err != nil {
		return fmt.Errorf("read input: %w", err)
	}

	svc := renderer.NewService(logger, renderer.Options{
		HighlightStyle: opts.cfg.HighlightStyle,
		Sanitize:       opts.cfg.Sanitize,
		ProfileURL:     opts.cfg.ProfileURL(),
		MatchTimeout:   opts.cfg.RenderTimeout,
	})

	var body template.HTML
	class := "post-body"
	if opts.page {
		name := filepath.Base(opts.input)
		doc, err := svc.RenderPage(ctx, name, time.Now(), content)
		if err != nil {
			return err
		}
		body = template.HTML(doc.HTML) //nolint:gosec // page HTML is the rendered input
		class = "site-page"
		if doc.Metadata.Title != "" && opts.title == "Vaad" {
			opts.title = doc.Metadata.Title
		}
	} else {
		body = svc.RenderPost(ctx, string(content))
	}

	if !opts.standalone {
		_, err := io.WriteString(out, string(body)+"\n")
		return err
	}

	forumCSS, err := static.ReadFile("css/forum.css")
	if err != nil {
		return fmt.Errorf("load stylesheet: %w", err)
	}
	var highlightCSS bytes.Buffer
	if err := renderer.WriteStyleSheet(&highlightCSS, opts.cfg.HighlightStyle); err != nil {
		return err
	}

	return documentTmpl.Execute(out, struct {
		Title        string
		ForumCSS     template.CSS
		HighlightCSS template.CSS
		Class        string
		Body         template.HTML
	}{
		Title:        opts.title,
		ForumCSS:     template.CSS(forumCSS),              //nolint:gosec // embedded asset
		HighlightCSS: template.CSS(highlightCSS.String()), //nolint:gosec // generated by chroma
		Class:        class,
		Body:         body,
	})
}
