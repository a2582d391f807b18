// Package main is the entrypoint for the Combine control-plane API server.
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

	"github.com/tulibraries/combine/internal/api"
	"github.com/tulibraries/combine/internal/api/handler"
	mw "github.com/tulibraries/combine/internal/api/middleware"
	"github.com/tulibraries/combine/internal/cache"
	"github.com/tulibraries/combine/internal/cleanup"
	"github.com/tulibraries/combine/internal/config"
	"github.com/tulibraries/combine/internal/jobs"
	"github.com/tulibraries/combine/internal/lineage"
	"github.com/tulibraries/combine/internal/livy"
	"github.com/tulibraries/combine/internal/search"
	"github.com/tulibraries/combine/internal/session"
	"github.com/tulibraries/combine/internal/store"
)

const shutdownTimeout = 30 * time.Second

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if err := run(logger); err != nil {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}

func run(logger *slog.Logger) error {
	// 1. Load config — fail fast on invalid config
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	slog.Info("config loaded", "env", cfg.Server.Env, "livy", cfg.Livy.BaseURL())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 2. Connect to database
	pool, err := store.Connect(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer pool.Close()
	slog.Info("database connected")

	// 3. Run migrations
	if err := store.RunMigrations(cfg.Database.URL, "migrations"); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	slog.Info("database migrations applied")

	// 4. Create Redis cache
	redisCache, err := cache.NewRedisCache(cfg.Redis.URL)
	if err != nil {
		return fmt.Errorf("create redis cache: %w", err)
	}
	defer redisCache.Close()

	if err := redisCache.Ping(ctx); err != nil {
		return fmt.Errorf("ping redis: %w", err)
	}
	slog.Info("redis connected")

	// 5. Create store and remote-service clients
	pgStore := store.NewPostgresStore(pool)
	livyClient := livy.NewHTTPClient(cfg.Livy.BaseURL(), cfg.Livy.Timeout)
	searchClient := search.NewHTTPClient(cfg.Search.URL, cfg.Search.Timeout)

	// 6. Wire the control plane
	sessions := session.NewManager(pgStore, livyClient, redisCache, cfg.Livy, logger)
	registry := jobs.NewRegistry(pgStore)
	runner := jobs.NewRunner(pgStore, registry, sessions, livyClient, redisCache, cfg.Storage, cfg.Analysis, logger)
	resolver := lineage.NewResolver(pgStore)
	coordinator := cleanup.NewCoordinator(pgStore, livyClient, searchClient, cfg.Storage, logger)

	// 7. Build router with dependencies
	auth := mw.NewAuth(pgStore)
	rateLimit := mw.NewRateLimit(redisCache, 60)

	deps := api.Dependencies{
		Auth:      auth,
		RateLimit: rateLimit,

		HealthHandler: handler.NewHealthHandler(pgStore, redisCache),

		CreateSessionHandler:    handler.NewCreateSessionHandler(sessions),
		GetActiveSessionHandler: handler.NewGetActiveSessionHandler(sessions),
		StopSessionHandler:      handler.NewStopSessionHandler(sessions),

		CreateJobHandler: handler.NewCreateJobHandler(runner),
		StartJobHandler:  handler.NewStartJobHandler(runner),
		GetJobHandler:    handler.NewGetJobHandler(pgStore, runner, redisCache),
		ListJobsHandler:  handler.NewListJobsHandler(pgStore),
		JobErrorsHandler: handler.NewJobErrorsHandler(runner),
		DeleteJobHandler: handler.NewDeleteJobHandler(coordinator),

		ListRecordsHandler:      handler.NewListRecordsHandler(pgStore),
		RecordLineageHandler:    handler.NewRecordLineageHandler(pgStore, resolver),
		JobIndexFailuresHandler: handler.NewJobIndexFailuresHandler(pgStore),
		PublishedRecordHandler:  handler.NewPublishedRecordHandler(pgStore),

		CreateKeyHandler: handler.NewCreateKeyHandler(pgStore),
		ListKeysHandler:  handler.NewListKeysHandler(pgStore),
		RevokeKeyHandler: handler.NewRevokeKeyHandler(pgStore),
	}

	router := api.NewRouter(deps)

	// 8. Start HTTP server
	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in background
	errCh := make(chan error, 1)
	go func() {
		slog.Info("server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	// Wait for shutdown signal or server error
	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
		slog.Info("shutdown signal received, draining connections...")
	}

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	slog.Info("server stopped gracefully")
	return nil
}
