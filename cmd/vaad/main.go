// Package main provides the forum server entrypoint.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/vaadforum/vaad/internal/buildinfo"
	"github.com/vaadforum/vaad/internal/config"
	"github.com/vaadforum/vaad/internal/events"
	"github.com/vaadforum/vaad/internal/pages"
	"github.com/vaadforum/vaad/internal/renderer"
	"github.com/vaadforum/vaad/internal/server"
	"github.com/vaadforum/vaad/internal/session"
	"github.com/vaadforum/vaad/internal/store"
)

func main() {
	cfg := config.Default()
	config.ApplyEnvOverrides(&cfg)

	flags := pflag.NewFlagSet("vaad", pflag.ExitOnError)
	config.RegisterFlags(flags, &cfg)
	versionFlag := flags.Bool("version", false, "Print version information and exit")
	if err := flags.Parse(os.Args[1:]); err != nil {
		slog.Error("parse flags", slog.Any("err", err))
		os.Exit(1)
	}
	if *versionFlag {
		fmt.Println(buildinfo.Summary())
		os.Exit(0)
	}
	if err := config.Finalize(&cfg); err != nil {
		slog.Error("invalid configuration", slog.Any("err", err))
		os.Exit(1)
	}

	logLevel := slog.LevelWarn
	if cfg.Verbose {
		logLevel = slog.LevelInfo
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
	logger = logger.With("app", "vaad")
	slog.SetDefault(logger)
	logger.Info("starting vaad",
		slog.String("version", buildinfo.Summary()),
		slog.String("backend", cfg.BackendURL),
	)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, cfg, logger); err != nil {
		if errors.Is(err, context.Canceled) {
			logger.Info("shutdown complete")
			return
		}
		cancel()
		logger.Error("server error", slog.Any("err", err))
		//nolint:gocritic // exitAfterDefer: cancel() explicitly called before os.Exit
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	broker := events.NewBroker(0)
	defer broker.Close()

	rendererSvc := renderer.NewService(logger, renderer.Options{
		HighlightStyle: cfg.HighlightStyle,
		Sanitize:       cfg.Sanitize,
		ProfileURL:     cfg.ProfileURL(),
		MatchTimeout:   cfg.RenderTimeout,
	})

	backend, err := store.New(cfg.BackendURL, store.Options{
		HTTPClient: &http.Client{Timeout: cfg.RequestTimeout},
		Logger:     logger,
		PageSize:   cfg.PageSize,
	})
	if err != nil {
		return fmt.Errorf("backend client: %w", err)
	}

	var pagesSvc *pages.Service
	if info, err := os.Stat(cfg.PagesDir); err == nil && info.IsDir() {
		pagesSvc, err = pages.NewService(ctx, cfg.PagesDir, rendererSvc, broker, logger)
		if err != nil {
			return fmt.Errorf("site pages: %w", err)
		}
		defer func() {
			if err := pagesSvc.Close(); err != nil {
				logger.Error("close pages service", slog.Any("err", err))
			}
		}()
	} else {
		logger.Info("site pages disabled", slog.String("dir", cfg.PagesDir))
	}

	sessions := session.NewManager(backend, logger, session.Options{
		SecureCookies: cfg.SecureCookies,
	})

	srv, err := server.New(cfg, logger, server.Deps{
		Store:    backend,
		Sessions: sessions,
		Renderer: rendererSvc,
		Pages:    pagesSvc,
		Broker:   broker,
	})
	if err != nil {
		return fmt.Errorf("server init: %w", err)
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, stop := context.WithTimeout(context.Background(), 5*time.Second)
		defer stop()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("shutdown error", slog.Any("err", err))
		}
	}()

	return srv.Start(ctx)
}
