package ingest

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/david/bid-finder/internal/db"
	"github.com/david/bid-finder/internal/filter"
	"github.com/david/bid-finder/internal/models"
	"github.com/david/bid-finder/internal/sources"
)

// lookbackWindow bounds the posted-date range requested from providers.
const lookbackWindow = 30 * 24 * time.Hour

// Store is the slice of the database layer the coordinator drives.
type Store interface {
	FreshnessStore
	GetCompany(ctx context.Context, id uuid.UUID) (models.Company, error)
	UpsertOpportunity(ctx context.Context, o models.Opportunity) (uuid.UUID, db.UpsertOutcome, error)
	ListActiveByNAICS(ctx context.Context, naicsCodes []string, limit int) ([]models.Opportunity, error)
	ExpireStale(ctx context.Context, now time.Time) (int64, error)
	CreateRun(ctx context.Context, companyID uuid.UUID, naicsCodes []string) (models.DiscoveryRun, error)
	FinishRun(ctx context.Context, r models.DiscoveryRun) error
}

// Scorer writes the match-score vector for a pair.
type Scorer interface {
	Rescore(ctx context.Context, company models.Company, opp models.Opportunity) (models.MatchScore, error)
}

// Evaluator runs the LLM evaluation for a pair that passed the filter.
type Evaluator interface {
	Evaluate(ctx context.Context, company models.Company, opp models.Opportunity) (models.Evaluation, bool, error)
}

// Coordinator orchestrates one discovery run: freshness check, provider
// fetches, dedup, upsert, then scoring, filtering and evaluation for the
// requesting company.
type Coordinator struct {
	store     Store
	providers []sources.Provider
	freshness *Freshness
	scorer    Scorer
	filter    *filter.Filter
	evaluator Evaluator
	log       *zap.Logger
	now       func() time.Time
}

func NewCoordinator(store Store, providers []sources.Provider, freshness *Freshness, scorer Scorer, flt *filter.Filter, evaluator Evaluator, log *zap.Logger) *Coordinator {
	return &Coordinator{
		store:     store,
		providers: providers,
		freshness: freshness,
		scorer:    scorer,
		filter:    flt,
		evaluator: evaluator,
		log:       log,
		now:       time.Now,
	}
}

// Ingest runs discovery for the company. force bypasses the freshness check.
// Replaying with unchanged upstream data converges: counters may differ but
// stored state is identical.
func (c *Coordinator) Ingest(ctx context.Context, companyID uuid.UUID, force bool) (models.DiscoveryRun, error) {
	company, err := c.store.GetCompany(ctx, companyID)
	if err != nil {
		return models.DiscoveryRun{}, err
	}

	run, err := c.store.CreateRun(ctx, companyID, company.NAICSCodes)
	if err != nil {
		return models.DiscoveryRun{}, err
	}

	now := c.now()
	from := now.Add(-lookbackWindow)
	run.DateFrom = &from
	run.DateTo = &now

	if n, err := c.store.ExpireStale(ctx, now); err != nil {
		c.log.Warn("expiry pass failed", zap.Error(err))
	} else if n > 0 {
		c.log.Info("expired opportunities", zap.Int64("count", n))
	}

	var firstTransient error
	collected, providerErrors := c.fetchAll(ctx, company, force, &run, &firstTransient)

	stored := c.upsertAll(ctx, collected, &run)

	c.pipeline(ctx, company, &run)

	// Run status reflects provider health only; evaluation fallbacks are
	// counted in the error envelope but do not degrade the run.
	switch {
	case providerErrors == 0:
		run.Status = models.RunCompleted
	case stored > 0:
		run.Status = models.RunPartial
	default:
		run.Status = models.RunFailed
	}

	if err := c.store.FinishRun(ctx, run); err != nil {
		return run, err
	}

	c.log.Info("discovery run finished",
		zap.String("run", run.ID.String()),
		zap.String("status", run.Status),
		zap.Int("found", run.Found),
		zap.Int("new", run.New),
		zap.Int("updated", run.Updated),
		zap.Int("evaluations", run.EvaluationsCreated),
		zap.Int("errors", run.ErrorCount))

	// A failed run with no stored data and no cache surfaces the source
	// failure instead of an empty success.
	if run.Status == models.RunFailed && firstTransient != nil {
		return run, firstTransient
	}
	return run, nil
}

// fetchAll walks the providers, honoring freshness, and returns normalized
// opportunities deduplicated by (source, source_id), first occurrence wins.
func (c *Coordinator) fetchAll(ctx context.Context, company models.Company, force bool, run *models.DiscoveryRun, firstTransient *error) ([]models.Opportunity, int) {
	params := sources.FetchParams{
		NAICSCodes: company.NAICSCodes,
		PostedFrom: *run.DateFrom,
		PostedTo:   *run.DateTo,
	}

	seen := map[string]bool{}
	var collected []models.Opportunity
	providerErrors := 0

	for _, p := range c.providers {
		source := p.SourceName()

		if !force {
			fresh, err := c.freshness.IsFresh(ctx, source, company.NAICSCodes)
			if err != nil {
				c.log.Warn("freshness check failed", zap.String("source", source), zap.Error(err))
			} else if fresh {
				c.log.Debug("source fresh, skipping fetch", zap.String("source", source))
				continue
			}
		}

		run.APICalls += apiCallsFor(source, len(company.NAICSCodes))
		records, err := p.Fetch(ctx, params)
		if err != nil {
			providerErrors++
			run.ErrorCount++
			run.Errors = append(run.Errors, fmt.Sprintf("%s: %v", source, err))
			if *firstTransient == nil && !sources.IsPermanent(err) {
				*firstTransient = err
			}
			c.log.Warn("provider fetch failed",
				zap.String("source", source),
				zap.Int("partial_records", len(records)),
				zap.Error(err))
			// Records fetched before the failure (a 429 mid-batch) are kept.
		}

		for _, rec := range records {
			opp := p.Normalize(rec)
			key := opp.DedupKey()
			if seen[key] {
				continue
			}
			seen[key] = true
			collected = append(collected, opp)
		}
	}

	run.Found = len(collected)
	return collected, providerErrors
}

// apiCallsFor accounts for SAM.gov issuing one request per NAICS code.
func apiCallsFor(source string, naicsCount int) int {
	if source == sources.SourceSAM && naicsCount > 0 {
		return naicsCount
	}
	return 1
}

func (c *Coordinator) upsertAll(ctx context.Context, opps []models.Opportunity, run *models.DiscoveryRun) int {
	stored := 0
	for _, opp := range opps {
		if err := opp.Validate(); err != nil {
			run.ErrorCount++
			run.Errors = append(run.Errors, fmt.Sprintf("invalid record %s: %v", opp.DedupKey(), err))
			continue
		}
		_, outcome, err := c.store.UpsertOpportunity(ctx, opp)
		if err != nil {
			run.ErrorCount++
			run.Errors = append(run.Errors, fmt.Sprintf("upsert %s: %v", opp.DedupKey(), err))
			continue
		}
		stored++
		switch outcome {
		case db.OutcomeNew:
			run.New++
		case db.OutcomeUpdated:
			run.Updated++
		case db.OutcomeUnchanged:
			run.Unchanged++
		}
	}
	return stored
}

// pipeline scores, filters and evaluates the stored active opportunities for
// the requesting company. Evaluation failures degrade inside the evaluator;
// they are counted here but never abort the run.
func (c *Coordinator) pipeline(ctx context.Context, company models.Company, run *models.DiscoveryRun) {
	opps, err := c.store.ListActiveByNAICS(ctx, company.NAICSCodes, 0)
	if err != nil {
		run.ErrorCount++
		run.Errors = append(run.Errors, fmt.Sprintf("pipeline listing: %v", err))
		return
	}

	for _, opp := range opps {
		if _, err := c.scorer.Rescore(ctx, company, opp); err != nil {
			c.log.Warn("scoring failed", zap.String("opportunity", opp.DedupKey()), zap.Error(err))
		}

		if opp.Status != models.StatusActive || opp.IsForecast {
			continue
		}
		if r := c.filter.Check(company, opp); !r.Passed {
			c.log.Debug("filtered out",
				zap.String("opportunity", opp.DedupKey()),
				zap.String("filter", r.Filter),
				zap.String("reason", r.Reason))
			continue
		}

		_, fellBack, err := c.evaluator.Evaluate(ctx, company, opp)
		if err != nil {
			run.ErrorCount++
			run.Errors = append(run.Errors, fmt.Sprintf("evaluate %s: %v", opp.DedupKey(), err))
			continue
		}
		run.EvaluationsCreated++
		if fellBack {
			run.ErrorCount++
			run.Errors = append(run.Errors, fmt.Sprintf("evaluate %s: fell back to fixed evaluation", opp.DedupKey()))
		}
	}
}
