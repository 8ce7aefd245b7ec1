// File: cmd/app/main.go
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"arcana-reading-server/internal/config"
	"arcana-reading-server/internal/domain/ports/adapter"
	aiAdapters "arcana-reading-server/internal/infra/adapters/ai"
	"arcana-reading-server/internal/infra/adapters/insight"
	"arcana-reading-server/internal/infra/gateway"
	"arcana-reading-server/internal/infra/logging"
	"arcana-reading-server/internal/infra/metrics"
	red "arcana-reading-server/internal/infra/redis"
	"arcana-reading-server/internal/infra/sched"
	"arcana-reading-server/internal/infra/store"
	"arcana-reading-server/internal/infra/web"
	"arcana-reading-server/internal/usecase"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ---- CLI flags ----
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	devMode := flag.Bool("dev", false, "enable developer mode (noop AI, console logs)")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, *devMode)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger := logging.New(cfg.Log, cfg.Runtime.Dev)
	if cfg.Runtime.Dev {
		logger.Info().Msg("[DEV MODE] Enabled")
	}
	metrics.MustRegister()

	// ---- Redis (optional; only the interaction rate limiter needs it) ----
	var limiter gateway.Limiter
	if cfg.Redis.URL != "" {
		redisClient, err := red.NewClient(ctx, &cfg.Redis)
		if err != nil {
			log.Fatalf("redis: %v", err)
		}
		defer redisClient.Close()
		limiter = red.NewRateLimiter(redisClient)
	} else {
		logger.Warn().Msg("redis.url not set; interaction rate limiting disabled")
	}

	// ---- AI Adapter (OpenAI -> Gemini -> noop in dev) ----
	var ai adapter.InterpreterAdapter
	switch {
	case cfg.AI.OpenAIKey != "":
		ai, err = aiAdapters.NewOpenAIAdapter(cfg.AI.OpenAIKey, cfg.AI.DefaultModel, cfg.AI.OpenAIBaseURL)
		if err != nil {
			log.Fatalf("openai adapter: %v", err)
		}
		logger.Info().Str("model", cfg.AI.DefaultModel).Msg("AI adapter: OpenAI")
	case cfg.AI.GeminiKey != "":
		ai, err = aiAdapters.NewGeminiAdapter(ctx, cfg.AI.GeminiKey, cfg.AI.GeminiURL, cfg.AI.DefaultModel, cfg.AI.MaxOutputTokens)
		if err != nil {
			log.Fatalf("gemini adapter: %v", err)
		}
		logger.Info().Str("model", cfg.AI.DefaultModel).Msg("AI adapter: Gemini")
	case cfg.Runtime.Dev:
		ai = aiAdapters.NewNoopAdapter()
		logger.Info().Msg("AI adapter: noop (dev)")
	default:
		log.Fatalf("no AI provider configured: set ai.openai_key or ai.gemini_key in %s", *cfgPath)
	}

	// ---- Store, gateway, orchestrator ----
	jobs := store.NewMemoryJobRepo()
	analyzer := insight.NewAnalyzer(logger)
	gw := gateway.New(analyzer, limiter, cfg.Gateway.EventRateLimit, cfg.Gateway.EventRateWindow, logger)
	readings := usecase.NewReadingUseCase(jobs, ai, gw, cfg.Pipeline, logger)
	gw.Bind(readings)

	// ---- Sweep worker ----
	sweeper := sched.NewSweepWorker(cfg.Store.SweepInterval, cfg.Store.Retention, jobs, logger)
	go func() { _ = sweeper.Run(ctx) }()

	// ---- HTTP server ----
	srv := web.NewServer(readings, gw, cfg.Gateway.SendBuffer, logger)
	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: srv.Router(),
	}
	go func() {
		logger.Info().Str("addr", server.Addr).Msg("http listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error().Err(err).Msg("http server error")
		}
	}()

	// ---- Graceful shutdown ----
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	<-sigc
	logger.Info().Msg("shutdown requested")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	_ = server.Shutdown(shutdownCtx)
}
