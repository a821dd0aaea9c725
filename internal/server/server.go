// Package server provides the HTTP front end of the forum: HTML views, the
// JSON API used by the browser script, and a server-sent event stream.
package server

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/vaadforum/vaad/internal/config"
	"github.com/vaadforum/vaad/internal/events"
	"github.com/vaadforum/vaad/internal/pages"
	"github.com/vaadforum/vaad/internal/renderer"
	"github.com/vaadforum/vaad/internal/session"
	"github.com/vaadforum/vaad/internal/store"
	"github.com/vaadforum/vaad/static"
)

// Deps are the services the server is built on. Pages may be nil when the
// site has no pages directory.
type Deps struct {
	Store    *store.Client
	Sessions *session.Manager
	Renderer *renderer.Service
	Pages    *pages.Service
	Broker   *events.Broker
}

// Server wraps the HTTP server and the services behind it.
type Server struct { //nolint:govet // field order favors logical grouping over padding optimizations
	mux        *http.ServeMux
	httpServer *http.Server
	logger     *slog.Logger
	store      *store.Client
	sessions   *session.Manager
	renderer   *renderer.Service
	pages      *pages.Service
	broker     *events.Broker
	templates  *templateRenderer
	cfg        config.Config
	now        func() time.Time
}

// New constructs a Server and registers its routes. Call Start to serve.
func New(cfg config.Config, logger *slog.Logger, deps Deps) (*Server, error) {
	if deps.Store == nil || deps.Sessions == nil || deps.Renderer == nil {
		return nil, errors.New("store, sessions and renderer are required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	broker := deps.Broker
	if broker == nil {
		broker = events.NewBroker(0)
	}

	tmpl, err := newTemplateRenderer()
	if err != nil {
		return nil, fmt.Errorf("load templates: %w", err)
	}

	s := &Server{
		cfg:       cfg,
		mux:       http.NewServeMux(),
		logger:    logger.With("component", "http"),
		store:     deps.Store,
		sessions:  deps.Sessions,
		renderer:  deps.Renderer,
		pages:     deps.Pages,
		broker:    broker,
		templates: tmpl,
		now:       time.Now,
	}
	s.registerRoutes()
	return s, nil
}

func (s *Server) registerRoutes() {
	staticHandler := http.StripPrefix("/static/", http.FileServer(s.resolveStaticFS()))
	s.mux.Handle("GET /static/{path...}", staticHandler)
	s.mux.Handle("HEAD /static/{path...}", staticHandler)

	s.mux.HandleFunc("GET /healthz", s.handleHealth)
	s.mux.HandleFunc("GET /highlight.css", s.handleHighlightCSS)
	s.mux.HandleFunc("GET /{$}", s.handleHome)
	s.mux.HandleFunc("GET /forum/{id}", s.handleForum)
	s.mux.HandleFunc("GET /thread/{id}", s.handleThread)
	s.mux.HandleFunc("GET /profile/{username}", s.handleProfile)
	s.mux.HandleFunc("GET /me/activity", s.handleActivity)
	s.mux.HandleFunc("GET /pages/{name}", s.handleSitePage)
	s.mux.HandleFunc("GET /events", s.handleEvents)

	s.mux.HandleFunc("POST /api/render", s.handleRender)
	s.mux.HandleFunc("GET /api/pages", s.handleListPages)
	s.mux.HandleFunc("GET /api/search", s.handleSearch)
	s.mux.HandleFunc("GET /api/users/suggest", s.handleSuggestUsers)
	s.mux.HandleFunc("POST /api/threads", s.handleCreateThread)
	s.mux.HandleFunc("POST /api/threads/{id}/posts", s.handleCreatePost)
	s.mux.HandleFunc("POST /api/posts/{id}/delete", s.handleDeletePost)
	s.mux.HandleFunc("POST /api/posts/{id}/undo", s.handleUndoDelete)
	s.mux.HandleFunc("POST /api/login", s.handleLogin)
	s.mux.HandleFunc("POST /api/signup", s.handleSignup)
	s.mux.HandleFunc("POST /api/logout", s.handleLogout)
	s.mux.HandleFunc("PATCH /api/profile", s.handleUpdateProfile)
	s.mux.HandleFunc("POST /api/password", s.handleResetPassword)
}

func (s *Server) resolveStaticFS() http.FileSystem {
	dir := strings.TrimSpace(s.cfg.AssetsDir)
	if dir != "" {
		info, err := os.Stat(dir)
		if err == nil && info.IsDir() {
			s.logger.Debug("serving assets from filesystem", slog.String("dir", dir))
			return http.Dir(dir)
		}
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			s.logger.Warn("assets dir check failed", slog.String("dir", dir), slog.Any("err", err))
		}
	}
	s.logger.Debug("serving embedded assets")
	return static.HTTP()
}

// Handler returns the routes wrapped in the middleware chain.
func (s *Server) Handler() http.Handler {
	return chain(s.mux,
		recoveryMiddleware(s.logger),
		sameOriginMiddleware,
		gzipMiddleware,
		loggingMiddleware(s.logger, s.cfg.Verbose),
	)
}

// Start serves until ctx is canceled or the listener fails. Port 0 picks a
// free port on the loopback interface.
func (s *Server) Start(ctx context.Context) error {
	addr := fmt.Sprintf(":%d", s.cfg.Port)
	if s.cfg.Port == 0 {
		addr = "127.0.0.1:0"
	}
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", addr, err)
	}
	tcpAddr, ok := listener.Addr().(*net.TCPAddr)
	if !ok {
		_ = listener.Close()
		return fmt.Errorf("unexpected listener address type")
	}
	serverURL := fmt.Sprintf("http://localhost:%d", tcpAddr.Port)

	s.httpServer = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		if _, err := fmt.Fprintf(os.Stdout, "Vaad listening on %s\n", serverURL); err != nil {
			s.logger.Warn("failed to announce server address", slog.String("url", serverURL), slog.Any("err", err))
		}
		errCh <- s.httpServer.Serve(listener)
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.Shutdown(shutdownCtx); err != nil {
			s.logger.ErrorContext(ctx, "graceful shutdown failed", slog.Any("err", err))
			return err
		}
		return ctx.Err()
	case err := <-errCh:
		if err == nil || errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func (s *Server) handleHighlightCSS(w http.ResponseWriter, r *http.Request) {
	var buf bytes.Buffer
	if err := renderer.WriteStyleSheet(&buf, s.cfg.HighlightStyle); err != nil {
		s.logger.ErrorContext(r.Context(), "highlight stylesheet failed", slog.Any("err", err))
		http.Error(w, "stylesheet unavailable", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/css; charset=utf-8")
	w.Header().Set("Cache-Control", "public, max-age=3600")
	_, _ = buf.WriteTo(w)
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	ch := s.broker.Subscribe(ctx)

	if _, err := w.Write([]byte(": ready\n\n")); err != nil {
		return
	}
	flusher.Flush()

	for {
		select {
		case <-ctx.Done():
			return
		case evt, ok := <-ch:
			if !ok {
				return
			}
			payload, err := encodeJSON(evt)
			if err != nil {
				s.logger.WarnContext(ctx, "encode sse event failed", slog.Any("err", err))
				continue
			}
			if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", evt.Type, payload); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

func (s *Server) publish(evt events.Event) {
	if evt.Timestamp.IsZero() {
		evt.Timestamp = s.now()
	}
	s.broker.Publish(evt)
}
