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
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/vheim/othala/internal/api"
	"github.com/vheim/othala/internal/assistant"
	"github.com/vheim/othala/internal/index"
	"github.com/vheim/othala/internal/mcpserver"
	"github.com/vheim/othala/internal/sse"
	"github.com/vheim/othala/internal/storage"
	"github.com/vheim/othala/internal/workspace"
)

// Run starts the HTTP server with the given options and blocks until
// shutdown.
func Run(ctx context.Context, opts ...Option) error {
	app, logger, err := bootstrap(opts)
	if err != nil {
		return err
	}
	cfg := app.config

	store, db, svc, err := buildWorkspace(cfg, logger)
	if err != nil {
		return err
	}
	defer db.Close()

	// SSE broker.
	broker := sse.NewBroker(2 * time.Second)
	defer broker.Close()

	// Assistant wiring.
	send := app.send
	if send == nil {
		send = assistant.NewOllamaTransport(cfg.Assistant.BaseURL, cfg.Assistant.Model).Send
	}
	assistantHandler := api.NewAssistantHandler(svc, assistant.NewStateCache(), send, api.AssistantConfig{
		Provider:     cfg.Assistant.Provider,
		Model:        cfg.Assistant.Model,
		SystemPrompt: cfg.Assistant.SystemPrompt,
		AuthToken:    cfg.Assistant.AuthToken,
	})

	apiRouter := api.NewRouter(svc, cfg.Auth.AuthEnabled(), cfg.Auth.Token, assistantHandler, broker)

	// Build chi router.
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

	// Mount API routes under /api.
	r.Mount("/api", apiRouter)

	httpServer := &http.Server{
		Addr:    cfg.App.HTTP.Address(),
		Handler: r,
	}

	logger.Info("Server starting...", slog.String("http_address", cfg.App.HTTP.Address()))

	g, gCtx := errgroup.WithContext(ctx)

	// Start file watcher with SSE callback.
	g.Go(func() error {
		index.Watch(gCtx, db, store, cfg.Workspace.Path, logger, func(kind, collection, id string) {
			broker.PublishEntityEvent(kind, collection, id)
		})
		return nil
	})

	// Start HTTP server.
	g.Go(func() error {
		logger.Info("Starting HTTP server", slog.String("address", cfg.App.HTTP.Address()))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	// Handle shutdown signals.
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

// RunMCP serves the workspace tools over MCP stdio and blocks until the
// client disconnects.
func RunMCP(_ context.Context, opts ...Option) error {
	app, logger, err := bootstrap(opts)
	if err != nil {
		return err
	}
	cfg := app.config

	_, db, svc, err := buildWorkspace(cfg, logger)
	if err != nil {
		return err
	}
	defer db.Close()

	send := app.send
	if send == nil {
		send = assistant.NewOllamaTransport(cfg.Assistant.BaseURL, cfg.Assistant.Model).Send
	}

	srv := mcpserver.New(svc, mcpserver.AssistantOptions{
		Provider:     cfg.Assistant.Provider,
		Model:        cfg.Assistant.Model,
		SystemPrompt: cfg.Assistant.SystemPrompt,
		Send:         send,
	})

	logger.Info("MCP server starting on stdio")
	return srv.ServeStdio()
}

func bootstrap(opts []Option) (*application, *slog.Logger, error) {
	app := &application{}
	for _, opt := range opts {
		opt(app)
	}
	if app.config == nil {
		return nil, nil, fmt.Errorf("config is required")
	}
	cfg := app.config

	// Initialize structured JSON logger.
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: cfg.App.LogLevel,
	}))
	slog.SetDefault(logger)

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("workspace_path", cfg.Workspace.Path),
		slog.String("sqlite_path", cfg.SQLite.Path),
		slog.String("assistant_model", cfg.Assistant.Model),
		slog.String("log_level", cfg.App.LogLevel.String()))

	return app, logger, nil
}

// buildWorkspace creates the storage provider, opens the index, runs the
// initial sync, and wires the workspace service.
func buildWorkspace(cfg *Config, logger *slog.Logger) (storage.Provider, *index.DB, *workspace.Service, error) {
	if err := os.MkdirAll(cfg.Workspace.Path, 0o755); err != nil {
		return nil, nil, nil, fmt.Errorf("create workspace dir: %w", err)
	}

	store, err := storage.NewFS(cfg.Workspace.Path)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("init storage: %w", err)
	}

	db, err := index.Open(cfg.SQLite.Path)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("init index: %w", err)
	}

	if err := index.Sync(db, store, logger); err != nil {
		logger.Warn("initial sync failed", slog.String("error", err.Error()))
	}

	return store, db, workspace.NewService(store, db, logger), nil
}
