package sources

import (
	"context"
	"time"

	"github.com/david/bid-finder/internal/models"
)

// Source tags. These appear in the opportunity (source, source_id) dedup key
// and in the scorer's credibility table.
const (
	SourceSAM           = "sam.gov"
	SourceUSASpending   = "usaspending"
	SourceDCOCP         = "dc_ocp"
	SourceDCIndependent = "dc_independent"
	SourceForecast      = "procurement_forecast"
)

// MunicipalSources lists the sources subject to the municipal deadline floor.
var MunicipalSources = map[string]bool{
	SourceDCOCP:         true,
	SourceDCIndependent: true,
}

// FetchParams narrows a provider fetch. SAM.gov fans out to one request per
// NAICS code; other providers ignore fields they cannot filter on upstream.
type FetchParams struct {
	NAICSCodes []string
	PostedFrom time.Time
	PostedTo   time.Time
	Limit      int
}

// RawRecord is the untrusted payload from a source, preserved verbatim in
// raw_data for replay.
type RawRecord struct {
	Source  string
	Payload map[string]interface{}
}

// Provider is the capability set every source adapter implements. Fetch may
// fail with the taxonomy in errors.go; Normalize is total and never fails —
// unparseable fields become zero values.
type Provider interface {
	SourceName() string
	Fetch(ctx context.Context, params FetchParams) ([]RawRecord, error)
	Normalize(raw RawRecord) models.Opportunity
}

// AwardProvider feeds the read-only past-award store consumed by the
// scorer's bonus signals.
type AwardProvider interface {
	SourceName() string
	FetchAwards(ctx context.Context, naicsCodes []string, limit int) ([]models.Award, error)
}

func str(m map[string]interface{}, key string) string {
	if v, ok := m[key].(string); ok {
		return v
	}
	return ""
}

func num(m map[string]interface{}, key string) (float64, bool) {
	switch v := m[key].(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	case string:
		return ParseAmount(v)
	}
	return 0, false
}

func nested(m map[string]interface{}, key string) map[string]interface{} {
	if v, ok := m[key].(map[string]interface{}); ok {
		return v
	}
	return nil
}
