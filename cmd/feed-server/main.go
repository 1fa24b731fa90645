// cmd/feed-server/main.go
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"chorehero-feed/internal/api"
	"chorehero-feed/internal/api/handler"
	"chorehero-feed/internal/common/config"
	"chorehero-feed/internal/common/database"
	"chorehero-feed/internal/common/logger"
	"chorehero-feed/internal/common/observability"
	"chorehero-feed/internal/feed/preferences"
	"chorehero-feed/internal/feed/ranker"
	"chorehero-feed/internal/feed/store"
)

// retryWithBackoff attempts to execute a function with exponential backoff
func retryWithBackoff(operation func() error, maxRetries int, initialDelay time.Duration, log *zap.Logger, operationName string) error {
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}

		if i < maxRetries-1 {
			log.Warn(fmt.Sprintf("%s failed, retrying...", operationName),
				zap.Error(err),
				zap.Int("attempt", i+1),
				zap.Int("maxRetries", maxRetries),
				zap.Duration("nextRetryIn", delay),
			)
			time.Sleep(delay)
			delay *= 2 // Exponential backoff
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load failed: %v\n", err)
		os.Exit(1)
	}

	zapLog := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	defer zapLog.Sync()
	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("Starting feed server...",
		zap.String("environment", cfg.App.Environment),
		zap.Int("port", cfg.Server.Port),
	)

	obs := observability.New("feed-server")
	defer obs.Shutdown()

	ctx := context.Background()

	// --- Init PostgreSQL with retry ---
	var pg *database.PostgresClient
	err = retryWithBackoff(func() error {
		var err error
		pg, err = database.NewPostgres(cfg.Database.Postgres)
		if err != nil {
			return err
		}
		return pg.Ping(ctx)
	}, 15, 2*time.Second, zapLog, "PostgreSQL connection")
	if err != nil {
		zapLog.Fatal("postgres failed after retries", zap.Error(err))
	}
	defer pg.Close()
	zapLog.Info("PostgreSQL connected successfully")

	// --- Init Redis with retry ---
	// Redis only backs the preference cache; the feed degrades without it,
	// so a failed connection is a warning, not a fatal.
	var rdb *database.RedisClient
	err = retryWithBackoff(func() error {
		var err error
		rdb, err = database.NewRedis(cfg.Database.Redis)
		if err != nil {
			return err
		}
		return rdb.Ping(ctx)
	}, 5, 2*time.Second, zapLog, "Redis connection")
	if err != nil {
		zapLog.Warn("redis unavailable, serving without preference cache", zap.Error(err))
		rdb = nil
	} else {
		defer rdb.Close()
		zapLog.Info("Redis connected successfully")
	}

	// --- Wire the ranking engine ---
	feedStore := store.New(pg.GetDB(), log)

	prefsConfig := preferences.LoadConfig()
	prefsConfig.CacheTTL = time.Duration(cfg.Feed.PrefsCacheTTL) * time.Second
	var prefsBuilder *preferences.Builder
	if rdb != nil {
		prefsBuilder = preferences.NewBuilder(prefsConfig, feedStore, rdb.GetClient(), log)
	} else {
		prefsBuilder = preferences.NewBuilder(prefsConfig, feedStore, nil, log)
	}

	feedRanker := ranker.New(ranker.ConfigFromApp(cfg.Feed), feedStore, prefsBuilder, obs, log)

	// --- HTTP surface ---
	var redisPinger handler.Pinger
	if rdb != nil {
		redisPinger = rdb
	}
	router := api.NewRouter(api.RouterConfig{
		FeedHandler:    handler.NewFeedHandler(feedRanker, log),
		HealthHandler:  handler.NewHealthHandler(pg, redisPinger),
		AllowedOrigins: cfg.Server.AllowedOrigins,
	})

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router,
	}

	go func() {
		zapLog.Info("HTTP server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zapLog.Fatal("http server failed", zap.Error(err))
		}
	}()

	// --- Graceful shutdown ---
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	zapLog.Info("Shutting down feed server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("server shutdown failed", zap.Error(err))
	}
	zapLog.Info("Feed server stopped")
}
