// Package pages serves the forum's static site pages (rules, formatting help,
// about) from a directory of Markdown files and reports changes to them.
package pages

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/vaadforum/vaad/internal/events"
	"github.com/vaadforum/vaad/internal/renderer"
)

// ErrInvalidName is returned for page names that are empty or leave the root.
var ErrInvalidName = errors.New("invalid page name")

// Summary lists a page for navigation.
type Summary struct {
	Name     string    `json:"name"`
	Title    string    `json:"title"`
	Modified time.Time `json:"modified"`
}

// Service reads, renders and watches site pages.
type Service struct {
	ctx      context.Context
	cancel   context.CancelFunc
	logger   *slog.Logger
	watcher  *fsnotify.Watcher
	renderer *renderer.Service
	broker   *events.Broker
	root     string
}

// NewService starts watching root. broker may be nil when no one listens for changes.
func NewService(parentCtx context.Context, root string, rendererSvc *renderer.Service, broker *events.Broker, logger *slog.Logger) (*Service, error) {
	if root == "" {
		return nil, errors.New("pages directory must be provided")
	}
	if rendererSvc == nil {
		return nil, errors.New("renderer service must be provided")
	}
	if logger == nil {
		logger = slog.Default()
	}

	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve pages root: %w", err)
	}
	info, err := os.Stat(absRoot)
	if err != nil {
		return nil, fmt.Errorf("stat pages root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("pages root %s is not a directory", absRoot)
	}

	ctx, cancel := context.WithCancel(parentCtx)
	svc := &Service{
		ctx:      ctx,
		cancel:   cancel,
		logger:   logger.With("component", "pages"),
		renderer: rendererSvc,
		broker:   broker,
		root:     absRoot,
	}

	if err := svc.startWatcher(); err != nil {
		cancel()
		return nil, err
	}
	return svc, nil
}

// Close stops the watcher.
func (s *Service) Close() error {
	s.cancel()
	if s.watcher != nil {
		return s.watcher.Close()
	}
	return nil
}

// List returns the available pages sorted by name.
func (s *Service) List(ctx context.Context) ([]Summary, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		return nil, fmt.Errorf("read pages: %w", err)
	}

	out := make([]Summary, 0, len(entries))
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if entry.IsDir() || strings.HasPrefix(entry.Name(), ".") || !isMarkdownPath(entry.Name()) {
			continue
		}
		name := strings.TrimSuffix(entry.Name(), ".md")
		doc, err := s.Page(ctx, name)
		if err != nil {
			s.logger.Warn("skipping unreadable page", slog.String("page", name), slog.Any("err", err))
			continue
		}
		title := doc.Metadata.Title
		if title == "" {
			title = titleFromName(name)
		}
		out = append(out, Summary{Name: name, Title: title, Modified: doc.Modified})
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// Page loads and renders the page called name. Missing pages wrap os.ErrNotExist.
func (s *Service) Page(ctx context.Context, name string) (renderer.Document, error) {
	if err := ctx.Err(); err != nil {
		return renderer.Document{}, err
	}

	rel, abs, err := s.resolve(name)
	if err != nil {
		return renderer.Document{}, err
	}

	info, err := os.Stat(abs)
	if err != nil {
		return renderer.Document{}, fmt.Errorf("page %s: %w", rel, err)
	}
	if info.IsDir() {
		return renderer.Document{}, fmt.Errorf("page %s is a directory: %w", rel, os.ErrNotExist)
	}

	content, err := os.ReadFile(abs) //nolint:gosec // abs is validated against root directory
	if err != nil {
		return renderer.Document{}, fmt.Errorf("read page: %w", err)
	}

	return s.renderer.RenderPage(ctx, rel, info.ModTime(), content)
}

func (s *Service) resolve(name string) (string, string, error) {
	clean := strings.TrimSpace(name)
	if clean == "" || strings.ContainsAny(clean, `/\`) || strings.HasPrefix(clean, ".") {
		return "", "", fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	if !strings.HasSuffix(clean, ".md") {
		clean += ".md"
	}
	abs := filepath.Join(s.root, clean)
	if filepath.Dir(abs) != s.root {
		return "", "", fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return clean, abs, nil
}

func (s *Service) startWatcher() error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	if err := watcher.Add(s.root); err != nil {
		_ = watcher.Close()
		return fmt.Errorf("watch pages root: %w", err)
	}
	s.watcher = watcher

	go s.runWatcher()
	return nil
}

func (s *Service) runWatcher() {
	for {
		select {
		case event, ok := <-s.watcher.Events:
			if !ok {
				return
			}
			s.handleEvent(event)
		case err, ok := <-s.watcher.Errors:
			if !ok {
				return
			}
			s.logger.Error("watcher error", slog.Any("err", err))
		case <-s.ctx.Done():
			return
		}
	}
}

func (s *Service) handleEvent(event fsnotify.Event) {
	if event.Name == "" || !isMarkdownPath(event.Name) {
		return
	}
	op := event.Op
	if op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
		return
	}

	rel := filepath.Base(event.Name)
	s.logger.Debug("fsnotify event", slog.String("path", rel), slog.String("op", op.String()))
	s.renderer.Invalidate(rel)

	if s.broker == nil {
		return
	}
	s.broker.Publish(events.Event{
		Type:      classifyEvent(event.Name, op),
		Path:      strings.TrimSuffix(rel, ".md"),
		Timestamp: time.Now(),
	})
}

func classifyEvent(path string, op fsnotify.Op) string {
	if op&(fsnotify.Remove|fsnotify.Rename) != 0 {
		if _, err := os.Stat(path); err == nil {
			return events.TypePageUpdated
		}
		return events.TypePageDeleted
	}
	return events.TypePageUpdated
}

func titleFromName(name string) string {
	words := strings.FieldsFunc(name, func(r rune) bool { return r == '-' || r == '_' })
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}

func isMarkdownPath(path string) bool {
	return strings.HasSuffix(strings.ToLower(path), ".md")
}
