// Package main is the entrypoint for the MemeNem API server.
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

	"github.com/memenem/memenem/internal/api"
	"github.com/memenem/memenem/internal/api/handler"
	mw "github.com/memenem/memenem/internal/api/middleware"
	"github.com/memenem/memenem/internal/api/response"
	"github.com/memenem/memenem/internal/cache"
	"github.com/memenem/memenem/internal/config"
	"github.com/memenem/memenem/internal/generate"
	"github.com/memenem/memenem/internal/generator"
	"github.com/memenem/memenem/internal/pacer"
	"github.com/memenem/memenem/internal/rank"
	"github.com/memenem/memenem/internal/sources"
	"github.com/memenem/memenem/internal/store"
)

const shutdownTimeout = 30 * time.Second

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if err := run(); err != nil {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// 1. Load config, fail fast on invalid config
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	slog.Info("config loaded", "caption_provider", cfg.Generator.Provider, "env", cfg.Server.Env)

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

	// 4. Create Redis status cache
	redisCache, err := cache.NewRedisCache(cfg.Redis.URL)
	if err != nil {
		return fmt.Errorf("create redis cache: %w", err)
	}
	defer redisCache.Close()

	if err := redisCache.Ping(ctx); err != nil {
		return fmt.Errorf("ping redis: %w", err)
	}
	slog.Info("redis connected")

	// 5. Create caption provider
	captionGen, err := generate.NewCaptionGenerator(ctx, cfg.Generator)
	if err != nil {
		return fmt.Errorf("create caption provider: %w", err)
	}
	slog.Info("caption provider initialized", "provider", captionGen.Name())

	// 6. Assemble the generation pipeline
	pgStore := store.NewPostgresStore(pool)
	cacheStore := cache.NewStore(pgStore, cfg.Cache)
	predictor := &generator.SafePredictor{Inner: generator.NewHeuristicPredictor()}

	templateSources := []sources.Source{
		sources.NewImgflipClient(cfg.Sources.ImgflipBaseURL, cfg.Sources.Timeout),
		sources.NewRedditClient(cfg.Sources.RedditBaseURL, cfg.Sources.RedditUserAgent, cfg.Sources.Timeout),
	}

	svc := generate.NewService(
		pgStore,
		cacheStore,
		redisCache,
		captionGen,
		predictor,
		pacer.New(cfg.Batch.MinCallInterval),
		rank.New(),
		templateSources,
		cfg.Batch,
		cfg.Generator.GenerationTimeout,
	)

	// 7. Background maintenance: cache sweep + finished-job retention
	go maintenanceLoop(ctx, cacheStore, pgStore, cfg.Cache.SweepInterval, cfg.Batch.JobRetention)

	// 8. Build router with dependencies
	auth := mw.NewAuth(pgStore)
	rateLimit := mw.NewRateLimit(redisCache, 60)

	deps := api.Dependencies{
		Auth:      auth,
		RateLimit: rateLimit,

		HealthHandler: healthHandler(pgStore, redisCache),

		GenerateHandler:  handler.NewGenerateHandler(svc),
		PollJobHandler:   handler.NewPollJobHandler(pgStore, cacheStore),
		ListJobsHandler:  handler.NewListJobsHandler(pgStore),
		CancelJobHandler: handler.NewCancelJobHandler(svc),

		ListTemplatesHandler: handler.NewListTemplatesHandler(cacheStore),
		CacheStatsHandler:    handler.NewCacheStatsHandler(cacheStore),
		CacheCleanupHandler:  handler.NewCacheCleanupHandler(cacheStore),

		CreateKeyHandler: handler.NewCreateKeyHandler(pgStore),
		ListKeysHandler:  handler.NewListKeysHandler(pgStore),
		RevokeKeyHandler: handler.NewRevokeKeyHandler(pgStore),
	}

	router := api.NewRouter(deps)

	// 9. Start HTTP server
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

// maintenanceLoop periodically sweeps expired cache entries and deletes
// finished jobs older than the retention window.
func maintenanceLoop(ctx context.Context, ca *cache.Store, st store.Store, interval, retention time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			counts, err := ca.Sweep(ctx)
			if err != nil {
				slog.Error("cache sweep failed", "error", err)
			} else {
				slog.Info("cache sweep finished", "deleted", counts)
			}

			cutoff := time.Now().UTC().Add(-retention)
			n, err := st.DeleteFinishedJobsBefore(ctx, cutoff)
			if err != nil {
				slog.Error("job retention cleanup failed", "error", err)
			} else if n > 0 {
				slog.Info("finished jobs deleted", "count", n)
			}
		}
	}
}

// healthHandler checks database and cache connectivity.
func healthHandler(s store.Store, c cache.StatusCache) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		checks := map[string]string{
			"database": "ok",
			"cache":    "ok",
		}

		if err := s.Ping(r.Context()); err != nil {
			checks["database"] = "degraded"
		}
		if err := c.Ping(r.Context()); err != nil {
			checks["cache"] = "degraded"
		}

		degraded := checks["database"] != "ok" || checks["cache"] != "ok"
		if degraded {
			response.Error(w, http.StatusServiceUnavailable, "DEGRADED",
				"One or more services degraded", checks)
			return
		}

		response.JSON(w, map[string]any{
			"status":   "ok",
			"services": checks,
		})
	}
}
