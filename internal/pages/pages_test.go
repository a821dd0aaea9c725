package pages_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/vaadforum/vaad/internal/events"
	"github.com/vaadforum/vaad/internal/pages"
	"github.com/vaadforum/vaad/internal/renderer"
)

func newService(t *testing.T, dir string, broker *events.Broker) *pages.Service {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc, err := pages.NewService(context.Background(), dir, renderer.NewService(logger, renderer.Options{}), broker, logger)
	if err != nil {
		t.Fatalf("NewService failed: %v", err)
	}
	t.Cleanup(func() { _ = svc.Close() })
	return svc
}

func writePage(t *testing.T, dir, name, body string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
}

func TestListAndPage(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	writePage(t, dir, "rules.md", "---\ntitle: House Rules\n---\n\n# Rules\n\nBe kind.\n")
	writePage(t, dir, "formatting-guide.md", "# Formatting\n")
	writePage(t, dir, "notes.txt", "ignored")

	svc := newService(t, dir, nil)
	ctx := context.Background()

	list, err := svc.List(ctx)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("expected 2 pages, got %#v", list)
	}
	if list[0].Name != "formatting-guide" || list[0].Title != "Formatting Guide" {
		t.Fatalf("unexpected first summary: %#v", list[0])
	}
	if list[1].Name != "rules" || list[1].Title != "House Rules" {
		t.Fatalf("unexpected second summary: %#v", list[1])
	}

	doc, err := svc.Page(ctx, "rules")
	if err != nil {
		t.Fatalf("Page failed: %v", err)
	}
	if !strings.Contains(doc.HTML, "Be kind.") {
		t.Fatalf("unexpected HTML: %s", doc.HTML)
	}
}

func TestPageRejectsTraversalAndMissing(t *testing.T) {
	t.Parallel()
	svc := newService(t, t.TempDir(), nil)
	ctx := context.Background()

	for _, name := range []string{"", "../secret", "a/b", ".hidden"} {
		if _, err := svc.Page(ctx, name); !errors.Is(err, pages.ErrInvalidName) {
			t.Fatalf("expected ErrInvalidName for %q, got %v", name, err)
		}
	}
	if _, err := svc.Page(ctx, "missing"); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected not-exist error, got %v", err)
	}
}

func TestNewServiceRequiresDirectory(t *testing.T) {
	t.Parallel()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	_, err := pages.NewService(context.Background(), filepath.Join(t.TempDir(), "nope"), renderer.NewService(logger, renderer.Options{}), nil, logger)
	if err == nil {
		t.Fatalf("expected error for missing directory")
	}
}

func TestWatcherPublishesPageEvents(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	writePage(t, dir, "about.md", "# About\n")

	broker := events.NewBroker(16)
	t.Cleanup(broker.Close)
	svc := newService(t, dir, broker)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	ch := broker.Subscribe(ctx)

	if _, err := svc.Page(ctx, "about"); err != nil {
		t.Fatalf("Page failed: %v", err)
	}

	// Give the watcher time to attach.
	time.Sleep(200 * time.Millisecond)
	writePage(t, dir, "about.md", "# About us\n")
	waitFor(t, ch, events.TypePageUpdated, "about")

	doc, err := svc.Page(ctx, "about")
	if err != nil {
		t.Fatalf("Page after update failed: %v", err)
	}
	if !strings.Contains(doc.HTML, "About us") {
		t.Fatalf("expected re-rendered page, got %s", doc.HTML)
	}

	if err := os.Remove(filepath.Join(dir, "about.md")); err != nil {
		t.Fatalf("remove: %v", err)
	}
	waitFor(t, ch, events.TypePageDeleted, "about")
}

func waitFor(t *testing.T, ch <-chan events.Event, typ, path string) {
	t.Helper()
	timeout := time.After(2 * time.Second)
	for {
		select {
		case evt := <-ch:
			if evt.Type == typ && evt.Path == path {
				return
			}
		case <-timeout:
			t.Fatalf("timed out waiting for %s event on %s", typ, path)
		}
	}
}
