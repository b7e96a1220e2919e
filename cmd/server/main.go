package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"skillshare-backend/internal/config"
	"skillshare-backend/internal/database"
	"skillshare-backend/internal/handlers"
	"skillshare-backend/internal/logging"
	"skillshare-backend/internal/middleware"
	"skillshare-backend/internal/repository"
	"skillshare-backend/internal/router"
	"skillshare-backend/internal/services"
	"skillshare-backend/internal/worker"
	"skillshare-backend/migrations"
)

func main() {
	// ──── Step 1: Load Environment Variables ────
	cfg := config.Load()

	// ──── Step 2: Configure Logging ────
	if _, err := logging.Init(cfg); err != nil {
		slog.Warn("log_file_unavailable", "path", cfg.LogFile, "error", err)
	}
	slog.Info("starting", "service", "skillshare-help-chat", "env", cfg.Env, "provider", cfg.LLMProvider, "model", cfg.UpstreamModel())

	// ──── Step 3: Initialize PostgreSQL Connection Pool ────
	pool, err := database.NewPostgresPool(context.Background(), cfg.DatabaseURL, cfg.DatabaseMaxConns)
	if err != nil {
		fatal("postgres_connect_failed", err)
	}
	defer pool.Close()
	slog.Info("postgres_connected")

	// ──── Step 4: Run Database Migrations ────
	if err := database.RunMigrations(context.Background(), pool, migrations.FS); err != nil {
		fatal("migrations_failed", err)
	}

	// ──── Step 5: Initialize Redis Client ────
	redisClient, err := database.NewRedisClient(cfg.RedisURL)
	if err != nil {
		fatal("redis_connect_failed", err)
	}
	defer redisClient.Close()
	slog.Info("redis_connected")

	// ──── Step 6: Initialize Upstream LLM ────
	var upstream services.ChatUpstream
	switch cfg.LLMProvider {
	case config.ProviderGemini:
		gemini, err := services.NewGeminiUpstream(context.Background(), cfg.GeminiAPIKey, cfg.GeminiModel)
		if err != nil {
			fatal("gemini_init_failed", err)
		}
		defer gemini.Close()
		upstream = gemini
	default:
		gateway, err := services.NewGatewayUpstream(cfg.LLMGatewayURL, cfg.LLMGatewayAPIKey, cfg.LLMModel, nil)
		if err != nil {
			fatal("gateway_init_failed", err)
		}
		upstream = gateway
	}
	gated := services.NewGate(upstream, cfg.LLMConcurrentRequests, cfg.ChatStreamIdleTimeout)
	slog.Info("upstream_ready", "provider", gated.Name(), "model", gated.Model(), "concurrent", cfg.LLMConcurrentRequests)

	// ──── Initialize Repositories & Services ────
	transcriptRepo := repository.NewTranscriptRepo(pool)
	transcriptQueue := services.NewTranscriptQueue(redisClient)
	jwtAuth := middleware.NewJWTAuth(cfg.JWTSecret)

	var limiter middleware.Limiter
	switch cfg.RateLimitBackend {
	case "memory":
		memLimiter := middleware.NewRateLimiter(cfg.RateLimitPerMinute, time.Minute)
		defer memLimiter.Stop()
		limiter = memLimiter
	default:
		limiter = middleware.NewRedisRateLimiter(redisClient, "ratelimit:help-chatbot", cfg.RateLimitPerMinute, time.Minute)
	}

	// ──── Initialize Handlers ────
	chatHandler := handlers.NewChatHandler(gated, transcriptQueue, transcriptRepo, cfg.ChatStreamIdleTimeout)

	// ──── Step 7: Start Transcript Workers ────
	workerPool := worker.NewPool(redisClient, transcriptRepo, cfg.TranscriptWorkers)
	workerPool.Start()

	pruner := services.NewTranscriptPruner(transcriptRepo, cfg.TranscriptRetentionDays)
	pruner.Start()

	// ──── Step 8: Start HTTP Server ────
	r := router.New(jwtAuth, limiter, chatHandler, cfg.AllowedOrigin)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Port),
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	shutdownDone := make(chan struct{})
	go func() {
		defer close(shutdownDone)
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		slog.Info("shutting_down")
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			slog.Error("server_shutdown_failed", "error", err)
		}

		pruner.Stop()
		workerPool.Stop()
	}()

	slog.Info("server_ready", "addr", server.Addr, "endpoint", "/api/v1/help-chatbot")

	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		fatal("server_error", err)
	}
	<-shutdownDone
}

func fatal(msg string, err error) {
	slog.Error(msg, "error", err)
	os.Exit(1)
}
