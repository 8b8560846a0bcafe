package filter

import (
	"testing"
	"time"

	"github.com/david/bid-finder/internal/models"
)

func sp(s string) *string   { return &s }
func fp(v float64) *float64 { return &v }

func testFilter(now time.Time) *Filter {
	f := New(7, 10.0)
	f.now = func() time.Time { return now }
	return f
}

func baseCompany() models.Company {
	return models.Company{
		NAICSCodes:            []string{"541512"},
		ContractValueMin:      fp(100_000),
		ContractValueMax:      fp(1_000_000),
		GeographicPreferences: []string{"VA", "DC"},
	}
}

func baseOpportunity(now time.Time) models.Opportunity {
	deadline := now.Add(20 * 24 * time.Hour)
	return models.Opportunity{
		Source:             "sam.gov",
		NAICSCode:          "541512",
		ResponseDeadline:   &deadline,
		EstimatedValueHigh: fp(500_000),
		PlaceState:         "VA",
		Status:             models.StatusActive,
	}
}

func TestCheckPasses(t *testing.T) {
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	r := testFilter(now).Check(baseCompany(), baseOpportunity(now))
	if !r.Passed {
		t.Fatalf("expected pass, rejected by %s: %s", r.Filter, r.Reason)
	}
}

func TestCheckRejections(t *testing.T) {
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		company func(*models.Company)
		opp     func(*models.Opportunity)
		want    string
	}{
		{
			"set-aside without cert",
			func(c *models.Company) { c.SetAsides = nil },
			func(o *models.Opportunity) { o.SetAsideType = sp("8(a)") },
			FilterSetAside,
		},
		{
			"deadline passed",
			nil,
			func(o *models.Opportunity) {
				past := now.Add(-24 * time.Hour)
				o.ResponseDeadline = &past
			},
			FilterDeadline,
		},
		{
			"deadline too close",
			nil,
			func(o *models.Opportunity) {
				soon := now.Add(3 * 24 * time.Hour)
				o.ResponseDeadline = &soon
			},
			FilterDeadline,
		},
		{
			"naics mismatch",
			nil,
			func(o *models.Opportunity) { o.NAICSCode = "236220" },
			FilterNAICS,
		},
		{
			"value far outside range",
			nil,
			func(o *models.Opportunity) { o.EstimatedValueHigh = fp(50_000_000) },
			FilterValue,
		},
		{
			"state not preferred",
			nil,
			func(o *models.Opportunity) { o.PlaceState = "CA" },
			FilterGeography,
		},
		{
			"already evaluated",
			nil,
			func(o *models.Opportunity) { o.EvaluationStatus = models.EvalEvaluated },
			FilterEvaluated,
		},
		{
			"forecast",
			nil,
			func(o *models.Opportunity) { o.IsForecast = true },
			FilterForecast,
		},
		{
			"municipal short fuse",
			nil,
			func(o *models.Opportunity) {
				o.Source = "dc_ocp"
				soon := now.Add(24 * time.Hour)
				o.ResponseDeadline = &soon
			},
			FilterMunicipal,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			company := baseCompany()
			if tt.company != nil {
				tt.company(&company)
			}
			opp := baseOpportunity(now)
			if tt.opp != nil {
				tt.opp(&opp)
			}
			r := testFilter(now).Check(company, opp)
			if r.Passed {
				t.Fatal("expected rejection")
			}
			if r.Filter != tt.want {
				t.Errorf("rejected by %s, want %s (reason: %s)", r.Filter, tt.want, r.Reason)
			}
			if r.Reason == "" {
				t.Error("rejection must carry a reason")
			}
		})
	}
}

func TestValueFlexibility(t *testing.T) {
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	f := testFilter(now)

	// 10x flexibility stretches 100k-1M to 10k-10M.
	opp := baseOpportunity(now)
	opp.EstimatedValueHigh = fp(9_000_000)
	if r := f.Check(baseCompany(), opp); !r.Passed {
		t.Errorf("9M should pass with 10x flexibility, rejected: %s", r.Reason)
	}

	opp.EstimatedValueHigh = fp(11_000_000)
	if r := f.Check(baseCompany(), opp); r.Passed || r.Filter != FilterValue {
		t.Errorf("11M should fail the value filter, got %+v", r)
	}
}

func TestMissingDataPasses(t *testing.T) {
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	f := testFilter(now)

	// Absent deadline, value and state are not grounds for rejection; the
	// scorer expresses the uncertainty instead.
	opp := models.Opportunity{Source: "sam.gov", NAICSCode: "541512", Status: models.StatusActive}
	if r := f.Check(baseCompany(), opp); !r.Passed {
		t.Errorf("missing data must pass, rejected by %s", r.Filter)
	}
}

func TestShortCircuitOrder(t *testing.T) {
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	f := testFilter(now)

	// Fails NAICS and geography both; NAICS is checked first.
	opp := baseOpportunity(now)
	opp.NAICSCode = "236220"
	opp.PlaceState = "CA"
	r := f.Check(baseCompany(), opp)
	if r.Filter != FilterNAICS {
		t.Errorf("expected first failing filter naics, got %s", r.Filter)
	}
}

func TestCheckBatchStats(t *testing.T) {
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	f := testFilter(now)
	company := baseCompany()

	good := baseOpportunity(now)
	badNAICS := baseOpportunity(now)
	badNAICS.NAICSCode = "236220"
	forecast := baseOpportunity(now)
	forecast.IsForecast = true

	passed, stats := f.CheckBatch(company, []models.Opportunity{good, badNAICS, forecast})
	if len(passed) != 1 {
		t.Fatalf("expected 1 survivor, got %d", len(passed))
	}
	if stats.Considered != 3 || stats.Passed != 1 {
		t.Errorf("bad counters: %+v", stats)
	}
	if stats.Rejected[FilterNAICS] != 1 || stats.Rejected[FilterForecast] != 1 {
		t.Errorf("bad rejection counts: %v", stats.Rejected)
	}
}
