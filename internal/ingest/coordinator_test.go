package ingest

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/david/bid-finder/internal/db"
	"github.com/david/bid-finder/internal/filter"
	"github.com/david/bid-finder/internal/models"
	"github.com/david/bid-finder/internal/sources"
)

type fakeStore struct {
	company   models.Company
	freshest  *time.Time
	opps      map[string]models.Opportunity // keyed by DedupKey
	outcomes  map[string]db.UpsertOutcome
	finished  *models.DiscoveryRun
	listCalls int
	listLimit int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		company:  models.Company{ID: uuid.New(), NAICSCodes: []string{"541512"}, ProfileVersion: 1},
		opps:     map[string]models.Opportunity{},
		outcomes: map[string]db.UpsertOutcome{},
	}
}

func (f *fakeStore) FreshestUpdatedAt(ctx context.Context, source string, naicsCodes []string) (*time.Time, error) {
	return f.freshest, nil
}

func (f *fakeStore) GetCompany(ctx context.Context, id uuid.UUID) (models.Company, error) {
	return f.company, nil
}

func (f *fakeStore) UpsertOpportunity(ctx context.Context, o models.Opportunity) (uuid.UUID, db.UpsertOutcome, error) {
	key := o.DedupKey()
	outcome := db.OutcomeNew
	if _, exists := f.opps[key]; exists {
		outcome = db.OutcomeUnchanged
	}
	if forced, ok := f.outcomes[key]; ok {
		outcome = forced
	}
	o.ID = uuid.New()
	f.opps[key] = o
	return o.ID, outcome, nil
}

func (f *fakeStore) ListActiveByNAICS(ctx context.Context, naicsCodes []string, limit int) ([]models.Opportunity, error) {
	f.listCalls++
	f.listLimit = limit
	var out []models.Opportunity
	for _, o := range f.opps {
		if o.Status == models.StatusActive && !o.IsPlaceholder {
			out = append(out, o)
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeStore) ExpireStale(ctx context.Context, now time.Time) (int64, error) {
	return 0, nil
}

func (f *fakeStore) CreateRun(ctx context.Context, companyID uuid.UUID, naicsCodes []string) (models.DiscoveryRun, error) {
	return models.DiscoveryRun{ID: uuid.New(), CompanyID: companyID, Status: models.RunRunning, NAICSCodes: naicsCodes}, nil
}

func (f *fakeStore) FinishRun(ctx context.Context, r models.DiscoveryRun) error {
	f.finished = &r
	return nil
}

type fakeProvider struct {
	name    string
	records []sources.RawRecord
	err     error
	fetches int
}

func (p *fakeProvider) SourceName() string { return p.name }

func (p *fakeProvider) Fetch(ctx context.Context, params sources.FetchParams) ([]sources.RawRecord, error) {
	p.fetches++
	return p.records, p.err
}

func (p *fakeProvider) Normalize(rec sources.RawRecord) models.Opportunity {
	deadline := time.Now().Add(20 * 24 * time.Hour)
	return models.Opportunity{
		Source:           rec.Source,
		SourceID:         rec.Payload["id"].(string),
		Title:            "T",
		NAICSCode:        "541512",
		Status:           models.StatusActive,
		ResponseDeadline: &deadline,
	}
}

func rec(source, id string) sources.RawRecord {
	return sources.RawRecord{Source: source, Payload: map[string]interface{}{"id": id}}
}

type countingScorer struct{ calls int }

func (s *countingScorer) Rescore(ctx context.Context, company models.Company, opp models.Opportunity) (models.MatchScore, error) {
	s.calls++
	return models.MatchScore{}, nil
}

type countingEvaluator struct {
	calls    int
	fellBack bool
}

func (e *countingEvaluator) Evaluate(ctx context.Context, company models.Company, opp models.Opportunity) (models.Evaluation, bool, error) {
	e.calls++
	return models.Evaluation{ID: uuid.New()}, e.fellBack, nil
}

func testCoordinator(store *fakeStore, providers []sources.Provider, ev Evaluator) (*Coordinator, *countingScorer) {
	scorer := &countingScorer{}
	c := NewCoordinator(store, providers, NewFreshness(store, 15*time.Minute), scorer,
		filter.New(7, 10.0), ev, zap.NewNop())
	return c, scorer
}

func TestIngestHappyPath(t *testing.T) {
	store := newFakeStore()
	p := &fakeProvider{name: sources.SourceSAM, records: []sources.RawRecord{
		rec(sources.SourceSAM, "a"), rec(sources.SourceSAM, "b"),
	}}
	ev := &countingEvaluator{}
	c, scorer := testCoordinator(store, []sources.Provider{p}, ev)

	run, err := c.Ingest(context.Background(), store.company.ID, false)
	if err != nil {
		t.Fatalf("Ingest error: %v", err)
	}
	if run.Status != models.RunCompleted {
		t.Errorf("status = %s, want completed", run.Status)
	}
	if run.Found != 2 || run.New != 2 {
		t.Errorf("counters: found=%d new=%d, want 2/2", run.Found, run.New)
	}
	if scorer.calls != 2 {
		t.Errorf("scorer calls = %d, want 2", scorer.calls)
	}
	if ev.calls != 2 || run.EvaluationsCreated != 2 {
		t.Errorf("evaluations = %d (created %d), want 2", ev.calls, run.EvaluationsCreated)
	}
	if store.finished == nil || store.finished.Status != models.RunCompleted {
		t.Error("run row not closed")
	}
}

func TestIngestSkipsFreshSource(t *testing.T) {
	store := newFakeStore()
	recent := time.Now().Add(-time.Minute)
	store.freshest = &recent

	p := &fakeProvider{name: sources.SourceSAM, records: []sources.RawRecord{rec(sources.SourceSAM, "a")}}
	c, _ := testCoordinator(store, []sources.Provider{p}, &countingEvaluator{})

	run, err := c.Ingest(context.Background(), store.company.ID, false)
	if err != nil {
		t.Fatalf("Ingest error: %v", err)
	}
	if p.fetches != 0 {
		t.Errorf("fresh source must not be fetched, got %d fetches", p.fetches)
	}
	if run.New != 0 {
		t.Errorf("warm cache replay must store nothing new, got %d", run.New)
	}

	// force bypasses the check.
	if _, err := c.Ingest(context.Background(), store.company.ID, true); err != nil {
		t.Fatalf("forced Ingest error: %v", err)
	}
	if p.fetches != 1 {
		t.Errorf("force must fetch, got %d fetches", p.fetches)
	}
}

func TestIngestDedupFirstWins(t *testing.T) {
	store := newFakeStore()
	p := &fakeProvider{name: sources.SourceSAM, records: []sources.RawRecord{
		rec(sources.SourceSAM, "dup"), rec(sources.SourceSAM, "dup"), rec(sources.SourceSAM, "other"),
	}}
	c, _ := testCoordinator(store, []sources.Provider{p}, &countingEvaluator{})

	run, err := c.Ingest(context.Background(), store.company.ID, false)
	if err != nil {
		t.Fatalf("Ingest error: %v", err)
	}
	if run.Found != 2 {
		t.Errorf("found = %d, want 2 after dedup", run.Found)
	}
}

func TestIngestPartialOnProviderFailure(t *testing.T) {
	store := newFakeStore()
	good := &fakeProvider{name: sources.SourceSAM, records: []sources.RawRecord{rec(sources.SourceSAM, "a")}}
	bad := &fakeProvider{name: sources.SourceDCOCP, err: &sources.TransientSourceError{Source: sources.SourceDCOCP, Status: 502}}
	c, _ := testCoordinator(store, []sources.Provider{good, bad}, &countingEvaluator{})

	run, err := c.Ingest(context.Background(), store.company.ID, false)
	if err != nil {
		t.Fatalf("partial run must not surface the error, got %v", err)
	}
	if run.Status != models.RunPartial {
		t.Errorf("status = %s, want partial", run.Status)
	}
	if run.ErrorCount != 1 || len(run.Errors) != 1 {
		t.Errorf("error envelope: count=%d errors=%v", run.ErrorCount, run.Errors)
	}
}

func TestIngestFailedSurfacesTransient(t *testing.T) {
	store := newFakeStore()
	bad := &fakeProvider{name: sources.SourceSAM, err: &sources.TransientSourceError{Source: sources.SourceSAM, Status: 503}}
	c, _ := testCoordinator(store, []sources.Provider{bad}, &countingEvaluator{})

	run, err := c.Ingest(context.Background(), store.company.ID, false)
	if run.Status != models.RunFailed {
		t.Errorf("status = %s, want failed", run.Status)
	}
	if err == nil {
		t.Error("empty failed run must surface the source error, not empty success")
	}
}

func TestIngestKeepsPartialRecordsOnRateLimit(t *testing.T) {
	store := newFakeStore()
	p := &fakeProvider{
		name:    sources.SourceSAM,
		records: []sources.RawRecord{rec(sources.SourceSAM, "kept")},
		err:     &sources.RateLimitedError{Source: sources.SourceSAM},
	}
	c, _ := testCoordinator(store, []sources.Provider{p}, &countingEvaluator{})

	run, _ := c.Ingest(context.Background(), store.company.ID, false)
	if run.Found != 1 || run.New != 1 {
		t.Errorf("records before the 429 must be stored: found=%d new=%d", run.Found, run.New)
	}
	if run.Status != models.RunPartial {
		t.Errorf("status = %s, want partial", run.Status)
	}
}

func TestIngestFallbackCountedButCompleted(t *testing.T) {
	store := newFakeStore()
	p := &fakeProvider{name: sources.SourceSAM, records: []sources.RawRecord{rec(sources.SourceSAM, "a")}}
	ev := &countingEvaluator{fellBack: true}
	c, _ := testCoordinator(store, []sources.Provider{p}, ev)

	run, err := c.Ingest(context.Background(), store.company.ID, false)
	if err != nil {
		t.Fatalf("Ingest error: %v", err)
	}
	if run.Status != models.RunCompleted {
		t.Errorf("fallback evaluations must not degrade the run, status = %s", run.Status)
	}
	if run.ErrorCount != 1 {
		t.Errorf("fallback must be counted, got %d", run.ErrorCount)
	}
	if run.EvaluationsCreated != 1 {
		t.Errorf("fallback evaluation is still persisted, created = %d", run.EvaluationsCreated)
	}
}

func TestIngestPipelineCoversWholeActiveSet(t *testing.T) {
	store := newFakeStore()
	var records []sources.RawRecord
	for i := 0; i < 150; i++ {
		records = append(records, rec(sources.SourceSAM, fmt.Sprintf("n-%d", i)))
	}
	p := &fakeProvider{name: sources.SourceSAM, records: records}
	ev := &countingEvaluator{}
	c, scorer := testCoordinator(store, []sources.Provider{p}, ev)

	run, err := c.Ingest(context.Background(), store.company.ID, false)
	if err != nil {
		t.Fatalf("Ingest error: %v", err)
	}
	if store.listLimit != 0 {
		t.Errorf("pipeline listing must be uncapped, requested limit %d", store.listLimit)
	}
	if scorer.calls != 150 {
		t.Errorf("scorer calls = %d, want every active match scored", scorer.calls)
	}
	if run.EvaluationsCreated != 150 {
		t.Errorf("evaluations created = %d, want 150", run.EvaluationsCreated)
	}
}

func TestFreshnessDerivedView(t *testing.T) {
	store := newFakeStore()
	f := NewFreshness(store, 15*time.Minute)
	ctx := context.Background()

	// Never ingested: not fresh.
	fresh, err := f.IsFresh(ctx, sources.SourceSAM, []string{"541512"})
	if err != nil || fresh {
		t.Errorf("empty source must not be fresh (fresh=%v err=%v)", fresh, err)
	}

	recent := time.Now().Add(-5 * time.Minute)
	store.freshest = &recent
	if fresh, _ = f.IsFresh(ctx, sources.SourceSAM, []string{"541512"}); !fresh {
		t.Error("5 minutes old should be fresh at 15m TTL")
	}

	old := time.Now().Add(-20 * time.Minute)
	store.freshest = &old
	if fresh, _ = f.IsFresh(ctx, sources.SourceSAM, []string{"541512"}); fresh {
		t.Error("20 minutes old should be stale at 15m TTL")
	}
}
