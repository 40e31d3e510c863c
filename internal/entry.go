// Package internal provides the main application initialization and runtime logic.
package internal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/treggify/mindweaver/internal/api"
	"github.com/treggify/mindweaver/internal/index"
	"github.com/treggify/mindweaver/internal/llm"
	"github.com/treggify/mindweaver/internal/mcpserver"
	"github.com/treggify/mindweaver/internal/progress"
	"github.com/treggify/mindweaver/internal/ratelimit"
	"github.com/treggify/mindweaver/internal/storage"
	"github.com/treggify/mindweaver/internal/weave"
)

// components holds the wired application core shared by every run mode.
type components struct {
	store  storage.Provider
	db     *index.DB
	engine *weave.Engine
	logger *slog.Logger
}

func newLogger(cfg *Config) *slog.Logger {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.App.LogLevel,
	}))
	slog.SetDefault(logger)
	return logger
}

// buildComponents opens the vault and the metadata cache, syncs the cache,
// and assembles the discovery engine.
func buildComponents(cfg *Config, logger *slog.Logger) (*components, error) {
	if err := os.MkdirAll(cfg.Vault.Path, 0o755); err != nil {
		return nil, fmt.Errorf("create vault dir: %w", err)
	}

	store, err := storage.NewFS(cfg.Vault.Path)
	if err != nil {
		return nil, fmt.Errorf("init storage: %w", err)
	}

	db, err := index.Open(cfg.SQLite.Path)
	if err != nil {
		return nil, fmt.Errorf("init index: %w", err)
	}

	if err := index.Sync(db, store, logger); err != nil {
		logger.Warn("initial sync failed", slog.String("error", err.Error()))
	}

	completer, err := llm.New(cfg.Provider.Profile())
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("init provider: %w", err)
	}

	limiter := ratelimit.New(cfg.Limiter.MinInterval(), cfg.Limiter.PerMinuteCap)

	engine := weave.New(store, db, completer, limiter, cfg.Provider.Profile(), weave.Options{
		Strength:            cfg.Connections.Strength,
		Format:              cfg.Connections.Format,
		ShowHeader:          cfg.Connections.ShowHeader,
		HeaderLevel:         cfg.Connections.HeaderLevel,
		HeaderText:          cfg.Connections.HeaderText,
		SpecialInstructions: cfg.Connections.SpecialInstructions,
		ExcludedFolders:     cfg.Vault.ExcludedFolders,
		CustomTags:          cfg.Tags.Custom,
		CustomTagsOnly:      cfg.Tags.CustomOnly,
		ConceptsTTL:         cfg.Concepts.TTL(),
	}, logger)

	return &components{store: store, db: db, engine: engine, logger: logger}, nil
}

// Run starts the HTTP server with the given options and blocks until
// shutdown.
func Run(ctx context.Context, opts ...Option) error {
	app := &application{}
	for _, opt := range opts {
		opt(app)
	}
	if app.config == nil {
		return fmt.Errorf("config is required")
	}
	cfg := app.config

	logger := newLogger(cfg)
	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("vault_path", cfg.Vault.Path),
		slog.String("sqlite_path", cfg.SQLite.Path),
		slog.String("provider", cfg.Provider.Kind),
		slog.String("log_level", cfg.App.LogLevel.String()))

	c, err := buildComponents(cfg, logger)
	if err != nil {
		return err
	}
	defer c.db.Close()

	// SSE broker; pipeline status streams to connected clients.
	broker := progress.NewBroker(250 * time.Millisecond)
	defer broker.Close()
	c.engine.SetNotifier(&progress.Notifier{Broker: broker, Logger: logger})

	apiRouter := api.NewRouter(c.engine, c.db, cfg.Auth.AuthEnabled(), cfg.Auth.Token, broker)

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
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Mount("/api", apiRouter)

	httpServer := &http.Server{
		Addr:    cfg.App.HTTP.Address(),
		Handler: r,
	}

	logger.Info("Server starting...", slog.String("http_address", cfg.App.HTTP.Address()))

	g, gCtx := errgroup.WithContext(ctx)

	// Keep the metadata cache in step with the vault.
	g.Go(func() error {
		return index.Watch(gCtx, c.db, c.store, cfg.Vault.Path, logger, func(kind, path string) {
			broker.Publish(progress.Event{
				Type: "note." + kind,
				Data: map[string]string{"path": path},
			})
		})
	})

	g.Go(func() error {
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

		select {
		case sig := <-quit:
			logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
		case <-gCtx.Done():
			logger.Info("Context cancelled, initiating shutdown")
		}

		logger.Info("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", slog.String("error", err.Error()))
		}

		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}

// RunConnect discovers connections for one note and prints the resulting
// section. With apply set the section is also appended to the note.
func RunConnect(ctx context.Context, path string, apply bool, opts ...Option) error {
	app := &application{out: os.Stdout}
	for _, opt := range opts {
		opt(app)
	}
	if app.config == nil {
		return fmt.Errorf("config is required")
	}

	logger := newLogger(app.config)
	c, err := buildComponents(app.config, logger)
	if err != nil {
		return err
	}
	defer c.db.Close()

	section, err := c.engine.Connect(ctx, path, apply)
	if err != nil {
		return err
	}
	if section != "" {
		fmt.Fprint(app.out, section)
	}
	return nil
}

// RunTags suggests vocabulary tags for one note and prints them.
func RunTags(ctx context.Context, path string, opts ...Option) error {
	app := &application{out: os.Stdout}
	for _, opt := range opts {
		opt(app)
	}
	if app.config == nil {
		return fmt.Errorf("config is required")
	}

	logger := newLogger(app.config)
	c, err := buildComponents(app.config, logger)
	if err != nil {
		return err
	}
	defer c.db.Close()

	tags, err := c.engine.WeaveTagsForNote(ctx, path)
	if err != nil {
		return err
	}
	if len(tags) > 0 {
		fmt.Fprintln(app.out, strings.Join(tags, " "))
	}
	return nil
}

// RunReindex rebuilds the concepts index.
func RunReindex(ctx context.Context, opts ...Option) error {
	app := &application{}
	for _, opt := range opts {
		opt(app)
	}
	if app.config == nil {
		return fmt.Errorf("config is required")
	}

	logger := newLogger(app.config)
	c, err := buildComponents(app.config, logger)
	if err != nil {
		return err
	}
	defer c.db.Close()

	return c.engine.ReindexConcepts(ctx)
}

// RunMCP serves the MCP tools over stdio until the client disconnects.
// Logs go to stderr so stdout stays clean for the protocol stream.
func RunMCP(ctx context.Context, opts ...Option) error {
	app := &application{}
	for _, opt := range opts {
		opt(app)
	}
	if app.config == nil {
		return fmt.Errorf("config is required")
	}
	cfg := app.config

	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: cfg.App.LogLevel,
	}))
	slog.SetDefault(logger)

	c, err := buildComponents(cfg, logger)
	if err != nil {
		return err
	}
	defer c.db.Close()

	srv := mcpserver.New(c.store, c.db, c.engine)
	return srv.ServeStdio()
}
