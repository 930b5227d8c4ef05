package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/hansenliang/k-answers-slack-bot-sub001/internal/api"
	"github.com/hansenliang/k-answers-slack-bot-sub001/internal/config"
	"github.com/hansenliang/k-answers-slack-bot-sub001/internal/dedup"
	"github.com/hansenliang/k-answers-slack-bot-sub001/internal/engine"
	"github.com/hansenliang/k-answers-slack-bot-sub001/internal/handlers"
	"github.com/hansenliang/k-answers-slack-bot-sub001/internal/metrics"
	"github.com/hansenliang/k-answers-slack-bot-sub001/internal/slackdelivery"
	"github.com/hansenliang/k-answers-slack-bot-sub001/internal/store"
	"github.com/hansenliang/k-answers-slack-bot-sub001/internal/worker"
)

func main() {
	// Load configuration
	cfg := config.Load()

	// Initialize logger
	var logger zerolog.Logger
	if cfg.IsDevelopment() {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}).
			With().
			Timestamp().
			Logger()
	} else {
		logger = zerolog.New(os.Stdout).
			With().
			Timestamp().
			Logger()
	}

	ctx := context.Background()

	// Initialize the Redis queue store
	if cfg.RedisURL == "" {
		cfg.RedisURL = "redis://localhost:6379"
	}
	queue, err := store.NewRedisStore(ctx, cfg.RedisURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("redis connection failed")
	}
	defer queue.Close()
	logger.Info().Msg("connected to Redis")

	// Initialize the optional delivery archive
	var archive store.Archive
	if cfg.DatabaseURL != "" {
		if strings.HasPrefix(cfg.DatabaseURL, "postgres://") || strings.HasPrefix(cfg.DatabaseURL, "postgresql://") {
			pg, err := store.NewPostgresArchive(ctx, cfg.DatabaseURL)
			if err != nil {
				logger.Fatal().Err(err).Msg("postgres connection failed")
			}
			defer pg.Close()
			archive = pg
			logger.Info().Msg("connected to PostgreSQL archive")
		} else {
			lite, err := store.NewSQLiteArchive(ctx, cfg.DatabaseURL)
			if err != nil {
				logger.Fatal().Err(err).Msg("sqlite open failed")
			}
			defer lite.Close()
			archive = lite
			logger.Info().Str("path", cfg.DatabaseURL).Msg("opened SQLite archive")
		}
	}

	// The guard lives in Redis so deduplication holds across instances
	guard := dedup.NewRedisGuard(queue.Client(), cfg.DedupTTL)

	// Delivery client with throttle-aware retry
	delivery := slackdelivery.New(cfg.SlackBotToken, logger)
	delivery.SetRetryPolicy(cfg.DeliveryRetryDelay, cfg.DeliveryMaxAttempts)

	// Answer engine client
	eng := engine.NewHTTPEngine(cfg.EngineURL)

	dispatcher := worker.New(guard, eng, delivery, archive, logger, worker.Config{
		StreamingEnabled: cfg.StreamingEnabled,
		UpdateInterval:   cfg.UpdateInterval,
		FlushWindow:      cfg.FlushWindow,
	})

	h := handlers.NewHandler(queue, archive, dispatcher, logger)
	router := api.NewRouter(logger, h, cfg.AdminSecret)

	// Export queue depths while the server runs
	depthCtx, stopDepths := context.WithCancel(ctx)
	defer stopDepths()
	go pollQueueDepths(depthCtx, queue, logger)

	// Create server
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 120 * time.Second, // dispatches wait on generation
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		logger.Info().
			Str("port", cfg.Port).
			Str("env", cfg.Env).
			Bool("streaming", cfg.StreamingEnabled).
			Msg("starting k-answers worker server")

		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server failed to start")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server...")

	// Graceful shutdown with 30 second timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Fatal().Err(err).Msg("server forced to shutdown")
	}

	logger.Info().Msg("server stopped")
}

// pollQueueDepths refreshes the queue depth gauges every 15 seconds.
func pollQueueDepths(ctx context.Context, queue *store.RedisStore, logger zerolog.Logger) {
	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			waiting, processing, dead, err := queue.Depths(ctx)
			if err != nil {
				logger.Warn().Err(err).Msg("queue depth poll failed")
				continue
			}
			metrics.QueueDepth.WithLabelValues("waiting").Set(float64(waiting))
			metrics.QueueDepth.WithLabelValues("processing").Set(float64(processing))
			metrics.QueueDepth.WithLabelValues("dead").Set(float64(dead))
		case <-ctx.Done():
			return
		}
	}
}
