package main

import (
	"context"
	"flag"
	"fmt"
	"log"

	"github.com/google/uuid"

	"github.com/david/bid-finder/internal/ai"
	"github.com/david/bid-finder/internal/config"
	"github.com/david/bid-finder/internal/db"
	"github.com/david/bid-finder/internal/logger"
	"github.com/david/bid-finder/internal/rescore"
	"github.com/david/bid-finder/internal/scoring"
)

func main() {
	company := flag.String("company", "", "Company UUID to rescore")
	flag.Parse()

	companyID, err := uuid.Parse(*company)
	if err != nil {
		log.Fatal("Please provide a company UUID using -company")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}
	zl, err := logger.New(cfg.LogJSON, cfg.LogDebug)
	if err != nil {
		log.Fatal(err)
	}
	defer zl.Sync()

	ctx := context.Background()
	pool, err := db.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatal(err)
	}
	defer pool.Close()

	store := db.NewStore(pool)
	llm := ai.NewOllamaClient(cfg.LLMBaseURL, cfg.LLMModel, cfg.LLMEmbedModel, cfg.LLMTemperature, cfg.LLMMaxTokens)
	evaluator := ai.NewEvaluator(llm, store, zl)
	scorer := scoring.NewScorer(store, zl)
	svc := rescore.New(store, evaluator, scorer, cfg.RescoreMaxPerBatch, zl)

	report, err := svc.RescoreAll(ctx, companyID)
	if err != nil {
		log.Fatalf("Rescore failed: %v", err)
	}
	fmt.Printf("Rescored %d of %d stale evaluations (%d errors)\n", report.Rescored, report.Total, report.Errors)
}
