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
)

// Backfills embeddings for opportunities that were stored without one.
func main() {
	limit := flag.Int("limit", 200, "Maximum rows to embed in one pass")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	ctx := context.Background()
	pool, err := db.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatal(err)
	}
	defer pool.Close()

	store := db.NewStore(pool)
	llm := ai.NewOllamaClient(cfg.LLMBaseURL, cfg.LLMModel, cfg.LLMEmbedModel, cfg.LLMTemperature, cfg.LLMMaxTokens)

	rows, err := pool.Query(ctx, `
		SELECT id FROM opportunities
		WHERE embedding IS NULL AND NOT is_placeholder AND status = 'active'
		ORDER BY created_at DESC LIMIT $1
	`, *limit)
	if err != nil {
		log.Fatal(err)
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			log.Fatal(err)
		}
		ids = append(ids, id)
	}
	rows.Close()

	embedded, failed := 0, 0
	for _, id := range ids {
		opp, err := store.GetOpportunity(ctx, id)
		if err != nil {
			failed++
			continue
		}
		vec, err := llm.GenerateEmbedding(ctx, ai.EmbeddingText(opp))
		if err != nil {
			log.Printf("embedding %s failed: %v", opp.DedupKey(), err)
			failed++
			continue
		}
		if err := store.SetEmbedding(ctx, id, vec); err != nil {
			log.Printf("storing embedding for %s failed: %v", opp.DedupKey(), err)
			failed++
			continue
		}
		embedded++
	}

	fmt.Printf("Embedded %d opportunities (%d failures)\n", embedded, failed)
}
