package scoring

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/david/bid-finder/internal/db"
	"github.com/david/bid-finder/internal/models"
)

type fakeScoreStore struct {
	cached       *models.MatchScore
	upserts      int
	naicsAwards  int
	agencyAwards int
}

func (f *fakeScoreStore) GetMatchScore(ctx context.Context, companyID, opportunityID uuid.UUID) (models.MatchScore, error) {
	if f.cached != nil {
		return *f.cached, nil
	}
	return models.MatchScore{}, db.ErrNotFound
}

func (f *fakeScoreStore) UpsertMatchScore(ctx context.Context, m models.MatchScore) (models.MatchScore, error) {
	f.upserts++
	f.cached = &m
	return m, nil
}

func (f *fakeScoreStore) CountAwardsByNAICS(ctx context.Context, vendorUEI string, naicsCodes []string) (int, error) {
	return f.naicsAwards, nil
}

func (f *fakeScoreStore) CountAwardsByAgency(ctx context.Context, vendorUEI, agency string) (int, error) {
	return f.agencyAwards, nil
}

func testScorer(store *fakeScoreStore, now time.Time) *Scorer {
	s := NewScorer(store, zap.NewNop())
	s.now = func() time.Time { return now }
	return s
}

func fp(v float64) *float64 { return &v }

func TestComputeBaseVector(t *testing.T) {
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	deadline := now.Add(20 * 24 * time.Hour)

	company := models.Company{
		ID:                    uuid.New(),
		NAICSCodes:            []string{"541512"},
		ContractValueMin:      fp(100_000),
		ContractValueMax:      fp(1_000_000),
		GeographicPreferences: []string{"VA"},
	}
	opp := models.Opportunity{
		ID:                 uuid.New(),
		Source:             "sam.gov",
		NAICSCode:          "541512",
		PlaceState:         "VA",
		ResponseDeadline:   &deadline,
		EstimatedValueHigh: fp(500_000),
	}

	s := testScorer(&fakeScoreStore{}, now)
	m := s.Compute(context.Background(), company, opp)

	if m.NAICSScore != 100 {
		t.Errorf("naics = %v, want 100", m.NAICSScore)
	}
	if m.CertScore != 75 {
		t.Errorf("cert = %v, want 75 for no set-aside", m.CertScore)
	}
	if m.SizeScore != 100 {
		t.Errorf("size = %v, want 100", m.SizeScore)
	}
	if m.GeoScore != 100 {
		t.Errorf("geo = %v, want 100", m.GeoScore)
	}
	if m.DeadlineScore != 75 {
		t.Errorf("deadline = %v, want 75 for 20 days out", m.DeadlineScore)
	}

	// Weighted base 91.25, plus the sam.gov credibility bonus 100*0.05.
	if m.FitScore != 96.25 {
		t.Errorf("fit = %v, want 96.25", m.FitScore)
	}
}

func TestScoreNAICS(t *testing.T) {
	tests := []struct {
		name    string
		company []string
		opp     string
		want    float64
	}{
		{"exact", []string{"541512"}, "541512", 100},
		{"four digit prefix", []string{"541511"}, "541512", 75},
		{"sector only", []string{"541511"}, "549999", 50},
		{"no overlap", []string{"236220"}, "541512", 25},
		{"company empty", nil, "541512", 50},
		{"opportunity empty", []string{"541512"}, "", 50},
		{"best of several", []string{"236220", "541512"}, "541512", 100},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := scoreNAICS(tt.company, tt.opp); got != tt.want {
				t.Errorf("scoreNAICS = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestScoreCert(t *testing.T) {
	sp := func(s string) *string { return &s }
	tests := []struct {
		name     string
		setAside *string
		certs    []string
		want     float64
	}{
		{"no set-aside", nil, nil, 75},
		{"blank set-aside", sp(""), nil, 75},
		{"held cert", sp("8(a)"), []string{"8(a)"}, 100},
		{"edwosb satisfies wosb", sp("WOSB"), []string{"EDWOSB"}, 100},
		{"sdvosb satisfies vosb", sp("VOSB"), []string{"SDVOSB"}, 100},
		{"missing cert", sp("8(a)"), []string{"WOSB"}, 25},
		{"small business open", sp("Small Business"), nil, 100},
		{"unknown vocabulary", sp("Very Special"), nil, 75},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := models.Company{SetAsides: tt.certs}
			if got := scoreCert(c, tt.setAside); got != tt.want {
				t.Errorf("scoreCert = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestScoreSize(t *testing.T) {
	company := models.Company{ContractValueMin: fp(100_000), ContractValueMax: fp(1_000_000)}
	tests := []struct {
		name  string
		value *float64
		want  float64
	}{
		{"in range", fp(500_000), 100},
		{"within 2x above", fp(1_500_000), 75},
		{"within 2x below", fp(60_000), 75},
		{"within 5x", fp(4_000_000), 50},
		{"far out", fp(50_000_000), 25},
		{"missing value", nil, 75},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opp := models.Opportunity{EstimatedValueHigh: tt.value}
			if got := scoreSize(company, opp); got != tt.want {
				t.Errorf("scoreSize = %v, want %v", got, tt.want)
			}
		})
	}

	t.Run("company range missing", func(t *testing.T) {
		got := scoreSize(models.Company{}, models.Opportunity{EstimatedValueHigh: fp(500_000)})
		if got != 75 {
			t.Errorf("scoreSize = %v, want 75", got)
		}
	})
}

func TestScoreGeo(t *testing.T) {
	tests := []struct {
		name  string
		prefs []string
		state string
		want  float64
	}{
		{"explicit match", []string{"VA"}, "VA", 100},
		{"nationwide wildcard", []string{models.Nationwide}, "TX", 100},
		{"neighboring state", []string{"VA"}, "MD", 75},
		{"far away", []string{"VA"}, "CA", 50},
		{"no preferences", nil, "VA", 75},
		{"no state", []string{"VA"}, "", 75},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := models.Company{GeographicPreferences: tt.prefs}
			if got := scoreGeo(c, tt.state); got != tt.want {
				t.Errorf("scoreGeo = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestScoreDeadline(t *testing.T) {
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	tests := []struct {
		name string
		days int
		want float64
	}{
		{"past", -1, 0},
		{"this week", 3, 25},
		{"next week", 10, 50},
		{"this month", 20, 75},
		{"sweet spot low", 30, 100},
		{"sweet spot high", 60, 100},
		{"distant", 90, 90},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			deadline := now.Add(time.Duration(tt.days) * 24 * time.Hour)
			opp := models.Opportunity{ResponseDeadline: &deadline}
			if got := scoreDeadline(opp, now); got != tt.want {
				t.Errorf("scoreDeadline = %v, want %v", got, tt.want)
			}
		})
	}

	t.Run("no deadline", func(t *testing.T) {
		if got := scoreDeadline(models.Opportunity{}, now); got != 50 {
			t.Errorf("scoreDeadline = %v, want 50", got)
		}
	})
}

func TestAwardBonuses(t *testing.T) {
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	store := &fakeScoreStore{naicsAwards: 5, agencyAwards: 2}
	s := testScorer(store, now)

	company := models.Company{ID: uuid.New(), UEI: "ABC123DEF456", NAICSCodes: []string{"541512"}}
	opp := models.Opportunity{
		ID:        uuid.New(),
		Source:    "dc_ocp",
		NAICSCode: "541512",
		Agency:    "Department of General Services",
	}

	m := s.Compute(context.Background(), company, opp)

	// naics 100*0.30 + cert 75*0.25 + size 75*0.20 + geo 75*0.15 + deadline 50*0.10
	base := 30.0 + 18.75 + 15.0 + 11.25 + 5.0
	// award history saturates at 100*0.10; agency 2 awards -> 40*0.10; dc_ocp 80*0.05.
	want := models.Truncate2(base + 10 + 4 + 4)
	if m.FitScore != want {
		t.Errorf("fit = %v, want %v", m.FitScore, want)
	}
}

func TestFitCappedAt100(t *testing.T) {
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	deadline := now.Add(35 * 24 * time.Hour)
	store := &fakeScoreStore{naicsAwards: 9, agencyAwards: 9}
	s := testScorer(store, now)

	company := models.Company{
		ID:                    uuid.New(),
		UEI:                   "ABC123DEF456",
		NAICSCodes:            []string{"541512"},
		SetAsides:             []string{"8(a)"},
		ContractValueMin:      fp(100_000),
		ContractValueMax:      fp(1_000_000),
		GeographicPreferences: []string{models.Nationwide},
	}
	sa := "8(a)"
	opp := models.Opportunity{
		ID:                 uuid.New(),
		Source:             "sam.gov",
		NAICSCode:          "541512",
		SetAsideType:       &sa,
		PlaceState:         "TX",
		ResponseDeadline:   &deadline,
		EstimatedValueHigh: fp(500_000),
		Agency:             "GSA",
	}

	m := s.Compute(context.Background(), company, opp)
	if m.FitScore != 100 {
		t.Errorf("fit = %v, want capped 100", m.FitScore)
	}
}

func TestPlaceholderScoresZero(t *testing.T) {
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	s := testScorer(&fakeScoreStore{}, now)

	opp := models.Opportunity{ID: uuid.New(), Source: "dc_ocp", IsPlaceholder: true}
	m := s.Compute(context.Background(), models.Company{ID: uuid.New()}, opp)
	if m.FitScore != 0 || m.NAICSScore != 0 {
		t.Errorf("placeholder must be unfit, got fit=%v", m.FitScore)
	}
}

func TestScorePrefersCache(t *testing.T) {
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	cached := models.MatchScore{FitScore: 42}
	store := &fakeScoreStore{cached: &cached}
	s := testScorer(store, now)

	m, err := s.Score(context.Background(), models.Company{ID: uuid.New()}, models.Opportunity{ID: uuid.New()})
	if err != nil {
		t.Fatalf("Score error: %v", err)
	}
	if m.FitScore != 42 {
		t.Errorf("expected cached row, got fit=%v", m.FitScore)
	}
	if store.upserts != 0 {
		t.Errorf("cache hit must not write, got %d upserts", store.upserts)
	}
}

func TestScoreWritesThroughOnMiss(t *testing.T) {
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	store := &fakeScoreStore{}
	s := testScorer(store, now)

	_, err := s.Score(context.Background(), models.Company{ID: uuid.New()}, models.Opportunity{ID: uuid.New()})
	if err != nil {
		t.Fatalf("Score error: %v", err)
	}
	if store.upserts != 1 {
		t.Errorf("expected one write-through, got %d", store.upserts)
	}
}
