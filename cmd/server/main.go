package main

import (
	"context"
	"log"
	"time"

	"go.uber.org/zap"

	"github.com/david/bid-finder/internal/ai"
	"github.com/david/bid-finder/internal/api"
	"github.com/david/bid-finder/internal/config"
	"github.com/david/bid-finder/internal/db"
	"github.com/david/bid-finder/internal/filter"
	"github.com/david/bid-finder/internal/ingest"
	"github.com/david/bid-finder/internal/logger"
	"github.com/david/bid-finder/internal/rescore"
	"github.com/david/bid-finder/internal/scoring"
	"github.com/david/bid-finder/internal/sources"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	zl, err := logger.New(cfg.LogJSON, cfg.LogDebug)
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer zl.Sync()

	ctx := context.Background()
	pool, err := db.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		zl.Fatal("failed to connect to database", zap.Error(err))
	}
	defer pool.Close()

	if err := db.ApplyMigrations(ctx, pool, zl); err != nil {
		zl.Fatal("migration failed", zap.Error(err))
	}

	store := db.NewStore(pool)

	registry, err := sources.LoadRegistry("")
	if err != nil {
		zl.Fatal("failed to load source registry", zap.Error(err))
	}
	providers := registry.BuildProviders(cfg.SAMAPIKey, time.Duration(cfg.SAMInterRequestDelay)*time.Second, zl)

	llm := ai.NewOllamaClient(cfg.LLMBaseURL, cfg.LLMModel, cfg.LLMEmbedModel, cfg.LLMTemperature, cfg.LLMMaxTokens)
	evaluator := ai.NewEvaluator(llm, store, zl)
	scorer := scoring.NewScorer(store, zl)
	flt := filter.New(cfg.FilterMinDaysToDeadline, cfg.FilterValueFlexibility)
	freshness := ingest.NewFreshness(store, time.Duration(cfg.FreshnessTTLMinutes)*time.Minute)
	coordinator := ingest.NewCoordinator(store, providers, freshness, scorer, flt, evaluator, zl)
	rescoreSvc := rescore.New(store, evaluator, scorer, cfg.RescoreMaxPerBatch, zl)

	srv := api.NewServer(store, coordinator, scorer, flt, evaluator, rescoreSvc, zl)

	zl.Info("server starting", zap.String("port", cfg.Port), zap.Int("providers", len(providers)))
	if err := srv.Echo.Start(":" + cfg.Port); err != nil {
		zl.Fatal("server stopped", zap.Error(err))
	}
}
