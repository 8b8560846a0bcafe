package ingest

import (
	"context"
	"time"
)

// FreshnessStore reads the derived freshness view over the opportunity table.
type FreshnessStore interface {
	FreshestUpdatedAt(ctx context.Context, source string, naicsCodes []string) (*time.Time, error)
}

// Freshness decides whether a source needs a live fetch. There is no
// separate cache store; the fingerprint is (source, unordered NAICS set) and
// the answer derives from max(updated_at) over matching opportunities, so
// any upsert invalidates automatically.
type Freshness struct {
	store FreshnessStore
	ttl   time.Duration
	now   func() time.Time
}

func NewFreshness(store FreshnessStore, ttl time.Duration) *Freshness {
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	return &Freshness{store: store, ttl: ttl, now: time.Now}
}

// IsFresh reports whether stored records for the fingerprint are within the
// TTL. A source that has never been ingested is never fresh.
func (f *Freshness) IsFresh(ctx context.Context, source string, naicsCodes []string) (bool, error) {
	ts, err := f.store.FreshestUpdatedAt(ctx, source, naicsCodes)
	if err != nil {
		return false, err
	}
	if ts == nil {
		return false, nil
	}
	return f.now().Sub(*ts) < f.ttl, nil
}
