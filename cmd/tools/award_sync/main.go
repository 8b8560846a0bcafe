package main

import (
	"context"
	"flag"
	"fmt"
	"log"

	"github.com/google/uuid"

	"github.com/david/bid-finder/internal/config"
	"github.com/david/bid-finder/internal/db"
	"github.com/david/bid-finder/internal/logger"
	"github.com/david/bid-finder/internal/sources"
)

// Refreshes a company's award history from USASpending so the scorer's
// award_history and agency_familiarity bonuses have data to count.
func main() {
	company := flag.String("company", "", "Company UUID to sync awards for")
	limit := flag.Int("limit", 100, "Maximum awards to fetch per sync")
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
	co, err := store.GetCompany(ctx, companyID)
	if err != nil {
		log.Fatalf("Loading company: %v", err)
	}
	if co.UEI == "" {
		log.Fatal("Company has no UEI; nothing to match awards against")
	}

	provider := sources.NewUSASpendingProvider(zl)
	awards, err := provider.FetchAwards(ctx, co.NAICSCodes, *limit)
	if err != nil {
		log.Fatalf("Fetching awards: %v", err)
	}

	// The feed returns every vendor in the NAICS codes; keep only ours.
	ours := awards[:0]
	for _, a := range awards {
		if a.VendorUEI == co.UEI {
			ours = append(ours, a)
		}
	}

	if err := store.DeleteAwardsByVendor(ctx, co.UEI); err != nil {
		log.Fatalf("Clearing prior awards: %v", err)
	}
	if err := store.InsertAwards(ctx, ours); err != nil {
		log.Fatalf("Storing awards: %v", err)
	}

	fmt.Printf("Synced %d awards for %s (of %d fetched)\n", len(ours), co.Name, len(awards))
}
