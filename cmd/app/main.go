// File: cmd/app/main.go
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"reel-compare/internal/config"
	"reel-compare/internal/domain/ports/adapter"
	"reel-compare/internal/domain/ports/repository"
	aiAdapters "reel-compare/internal/infra/adapters/ai"
	mediaAdapters "reel-compare/internal/infra/adapters/media"
	"reel-compare/internal/infra/api"
	"reel-compare/internal/infra/logging"
	"reel-compare/internal/infra/metrics"
	"reel-compare/internal/infra/repo/memory"
	"reel-compare/internal/infra/repo/redisjob"
	"reel-compare/internal/pipeline"
	"reel-compare/internal/retry"
	"reel-compare/internal/transcribe"
)

var (
	version = "dev"
	commit  = "none"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	_ = godotenv.Load()

	// ---- CLI flags ----
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	devMode := flag.Bool("dev", false, "enable developer mode (console logs, relaxed validation)")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, *devMode)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger := logging.New(cfg.Log, *devMode)
	metrics.MustRegister()
	metrics.SetBuildInfo(version, commit)

	// ---- Media cache and toolchain ----
	cache, err := mediaAdapters.NewCache(cfg.Cache.Dir)
	if err != nil {
		log.Fatalf("cache: %v", err)
	}
	rotation := retry.NewRotation(cfg.Media.AltEndpoints)
	toolchain := mediaAdapters.NewToolchain(cfg.Media, rotation, cache, logger)

	// ---- Job store ----
	var repo repository.JobRepository
	if cfg.Storage.Backend == "redis" {
		client, err := redisjob.NewClient(ctx, &cfg.Storage.Redis)
		if err != nil {
			log.Fatalf("redis: %v", err)
		}
		defer client.Close()
		repo = redisjob.NewJobRepo(client, cfg.Storage.Redis.TTL)
		logger.Info().Msg("job store: redis")
	} else {
		repo = memory.NewJobRepo()
		logger.Info().Msg("job store: memory")
	}

	// ---- Inference provider ----
	provider, err := aiAdapters.NewGeminiProvider(ctx, cfg.AI.GeminiKey, cfg.AI.GeminiURL,
		cfg.AI.Model, cfg.AI.MaxOutputTokens, cfg.AI.UploadPollInterval, logger)
	if err != nil {
		log.Fatalf("gemini provider: %v", err)
	}

	var analyzer adapter.VideoAnalyzer
	if cfg.Compare.Mode == "delegate" {
		analyzer, err = aiAdapters.NewAnalyzerClient(cfg.Compare.AnalyzerBaseURL)
		if err != nil {
			log.Fatalf("analyzer client: %v", err)
		}
		logger.Info().Str("base", cfg.Compare.AnalyzerBaseURL).Msg("compare mode: delegate")
	}

	var fab adapter.FABProvider
	if cfg.Compare.FABBaseURL != "" {
		fab, err = aiAdapters.NewFABClient(cfg.Compare.FABBaseURL)
		if err != nil {
			log.Fatalf("fab client: %v", err)
		}
	}

	// ---- Transcription pool ----
	var pool *transcribe.Pool
	if cfg.Transcribe.Enabled {
		stt := transcribe.NewWhisperCLI(cfg.Transcribe.WhisperPath)
		pool = transcribe.NewPool(cfg.Transcribe, toolchain, stt, cache, logger)
		pool.Start(ctx)
		defer pool.Stop()
		logger.Info().Int("workers", cfg.Transcribe.Workers).Msg("transcription pool started")
	}

	// ---- Pipeline and API ----
	orch := pipeline.NewOrchestrator(repo, toolchain, provider, analyzer, fab, pool, cache, cfg, logger)
	server := api.NewServer(repo, orch, cfg, logger)

	go func() {
		if err := server.Run(ctx); err != nil {
			logger.Error().Err(err).Msg("http server stopped")
			cancel()
		}
	}()

	// ---- Graceful shutdown ----
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sigc:
		logger.Info().Msg("shutdown requested")
	case <-ctx.Done():
	}
	cancel()
}
