// Package internal provides the main application initialization and runtime logic.
package internal

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"github.com/starford/shikibuild/internal/api"
	"github.com/starford/shikibuild/internal/apperr"
	"github.com/starford/shikibuild/internal/build"
	"github.com/starford/shikibuild/internal/buildservice"
	"github.com/starford/shikibuild/internal/cache"
	"github.com/starford/shikibuild/internal/highlight"
	"github.com/starford/shikibuild/internal/history"
	"github.com/starford/shikibuild/internal/maintenance"
	"github.com/starford/shikibuild/internal/mcpserver"
	"github.com/starford/shikibuild/internal/metrics"
	"github.com/starford/shikibuild/internal/sse"
	"github.com/starford/shikibuild/internal/watch"
)

// Version is reported by the CLI and the MCP server.
const Version = "0.1.0"

// newApplication applies opts. Without WithLogger a JSON logger writing to
// logTo at the configured level is used.
func newApplication(opts []Option, logTo io.Writer) (*application, error) {
	app := &application{}
	for _, opt := range opts {
		opt(app)
	}
	if app.config == nil {
		return nil, fmt.Errorf("config is required")
	}
	if app.logger == nil {
		app.logger = slog.New(slog.NewJSONHandler(logTo, &slog.HandlerOptions{
			Level: app.config.App.LogLevel,
		}))
	}
	if app.highlighter == nil {
		app.highlighter = highlight.NewChroma()
	}
	if app.out == nil {
		app.out = os.Stdout
	}
	return app, nil
}

// service builds the build service and opens the history database when
// enabled. The returned func closes what was opened.
func (app *application) service(extra ...buildservice.Option) (*buildservice.Service, func(), error) {
	cfg := app.config
	if err := cfg.Validate(); err != nil {
		return nil, nil, fmt.Errorf("%w: %w", apperr.ErrInvalidConfig, err)
	}

	opts := []buildservice.Option{buildservice.WithLogger(app.logger)}
	closeFn := func() {}
	if cfg.History.Enabled {
		path := cfg.History.DBPath(cfg.Build.CacheDir)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, nil, fmt.Errorf("create history dir: %w", err)
		}
		db, err := history.Open(path)
		if err != nil {
			return nil, nil, fmt.Errorf("init history: %w", err)
		}
		opts = append(opts, buildservice.WithHistory(db))
		closeFn = func() {
			if err := db.Close(); err != nil {
				app.logger.Warn("history close failed", slog.String("error", err.Error()))
			}
		}
	}
	opts = append(opts, extra...)
	return buildservice.New(cfg.Build, cfg.CodeHighlight.Shiki, app.highlighter, opts...), closeFn, nil
}

// Run performs one build and prints the summary table.
func Run(ctx context.Context, opts ...Option) (*build.Report, error) {
	app, err := newApplication(opts, os.Stdout)
	if err != nil {
		return nil, err
	}
	cfg := app.config
	logger := app.logger

	logger.Info("Configuration loaded",
		slog.String("content_dir", cfg.Build.ContentDir),
		slog.String("output_dir", cfg.Build.OutputDir),
		slog.String("cache_dir", cfg.Build.CacheDir),
		slog.Bool("incremental", cfg.Build.Incremental),
		slog.Bool("parallel", cfg.Build.Parallel),
		slog.String("engine", cfg.CodeHighlight.Engine),
		slog.String("log_level", cfg.App.LogLevel.String()))

	svc, closeFn, err := app.service()
	if err != nil {
		return nil, err
	}
	defer closeFn()

	if cfg.CodeHighlight.Engine != EngineShiki {
		logger.Warn("code_highlight.engine is not shiki; pages will not use the generated markup",
			slog.String("engine", cfg.CodeHighlight.Engine))
	}

	report, err := svc.Trigger(ctx)
	if err != nil {
		return nil, err
	}
	report.WriteSummary(app.out)
	return report, nil
}

// Serve runs the HTTP API with an initial build and, when configured, a
// content watcher that triggers incremental rebuilds.
func Serve(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts, os.Stdout)
	if err != nil {
		return err
	}
	cfg := app.config
	logger := app.logger

	broker := sse.NewBroker(2 * time.Second)
	defer broker.Close()

	reg := prometheus.NewRegistry()
	recorder := metrics.NewPrometheusRecorder(reg)

	svc, closeFn, err := app.service(
		buildservice.WithPublisher(broker),
		buildservice.WithRecorder(recorder),
	)
	if err != nil {
		return err
	}
	defer closeFn()

	apiRouter := api.NewRouter(svc, cfg.Serve.Auth.AuthEnabled(), cfg.Serve.Auth.Token, broker)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// Health check endpoints (unauthenticated).
	r.Get("/health/live", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Get("/health/ready", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if _, err := svc.Latest(); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"status":"building"}`))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Handle("/metrics", metrics.HTTPHandler(reg))

	r.Mount("/api", apiRouter)

	httpServer := &http.Server{
		Addr:              cfg.Serve.Address(),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	if cfg.Serve.PruneInterval > 0 {
		sched, err := app.pruneScheduler()
		if err != nil {
			return err
		}
		sched.Start()
		defer func() {
			if err := sched.Stop(); err != nil {
				logger.Warn("maintenance scheduler stop failed", slog.String("error", err.Error()))
			}
		}()
	}

	g, gCtx := errgroup.WithContext(ctx)

	// Initial build; a failure leaves the server up with no latest report.
	g.Go(func() error {
		if _, err := svc.Trigger(gCtx); err != nil {
			logger.Warn("initial build failed", slog.String("error", err.Error()))
		}
		return nil
	})

	if cfg.Serve.Watch {
		g.Go(func() error {
			return watch.Watch(gCtx, cfg.Build.ContentDir, logger, func(paths []string) {
				broker.PublishContentChange(paths)
				if _, err := svc.Request(gCtx); err != nil {
					if errors.Is(err, apperr.ErrBuildInProgress) {
						logger.Debug("rebuild queued behind running build", slog.Int("changed", len(paths)))
						return
					}
					logger.Warn("rebuild failed", slog.String("error", err.Error()))
				}
			})
		})
	}

	g.Go(func() error {
		logger.Info("Starting HTTP server", slog.String("address", cfg.Serve.Address()))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	// Handle shutdown signals.
	g.Go(func() error {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(quit)

		select {
		case sig := <-quit:
			logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
		case <-gCtx.Done():
			logger.Info("Context cancelled, initiating shutdown")
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", slog.String("error", err.Error()))
		}
		return context.Canceled
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}

// pruneScheduler schedules expiry of on-disk cache entries.
func (app *application) pruneScheduler() (*maintenance.Scheduler, error) {
	cfg := app.config
	c, err := cache.Open(cfg.Build.CacheDir,
		cache.WithMaxAge(cfg.Build.CacheMaxAge),
		cache.WithLogger(app.logger),
	)
	if err != nil {
		return nil, err
	}
	sched, err := maintenance.NewScheduler(app.logger)
	if err != nil {
		return nil, err
	}
	if _, err := sched.SchedulePrune(cfg.Serve.PruneInterval, c); err != nil {
		return nil, err
	}
	return sched, nil
}

// ServeMCP runs the MCP server on stdio. Logs go to stderr so stdout stays
// reserved for the protocol.
func ServeMCP(_ context.Context, opts ...Option) error {
	app, err := newApplication(opts, os.Stderr)
	if err != nil {
		return err
	}

	svc, closeFn, err := app.service()
	if err != nil {
		return err
	}
	defer closeFn()

	return mcpserver.New(svc, Version).ServeStdio()
}
