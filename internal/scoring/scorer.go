package scoring

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/david/bid-finder/internal/db"
	"github.com/david/bid-finder/internal/models"
)

// Dimension weights. The weighted base sums to 100 before bonuses.
const (
	weightNAICS    = 0.30
	weightCert     = 0.25
	weightSize     = 0.20
	weightGeo      = 0.15
	weightDeadline = 0.10
)

// sourceCredibility feeds the source_weight bonus.
var sourceCredibility = map[string]float64{
	"sam.gov":              100,
	"dc_ocp":               80,
	"dc_independent":       75,
	"procurement_forecast": 30,
}

const defaultCredibility = 50

// ScoreStore is the slice of the store the scorer needs for write-through
// caching and award bonus signals.
type ScoreStore interface {
	GetMatchScore(ctx context.Context, companyID, opportunityID uuid.UUID) (models.MatchScore, error)
	UpsertMatchScore(ctx context.Context, m models.MatchScore) (models.MatchScore, error)
	CountAwardsByNAICS(ctx context.Context, vendorUEI string, naicsCodes []string) (int, error)
	CountAwardsByAgency(ctx context.Context, vendorUEI, agency string) (int, error)
}

type Scorer struct {
	store ScoreStore
	log   *zap.Logger
	now   func() time.Time
}

func NewScorer(store ScoreStore, log *zap.Logger) *Scorer {
	return &Scorer{store: store, log: log, now: time.Now}
}

// Score returns the cached match score when one exists, otherwise computes
// the vector, writes it through, and returns the persisted row.
func (s *Scorer) Score(ctx context.Context, company models.Company, opp models.Opportunity) (models.MatchScore, error) {
	cached, err := s.store.GetMatchScore(ctx, company.ID, opp.ID)
	if err == nil {
		return cached, nil
	}
	if !errors.Is(err, db.ErrNotFound) {
		return models.MatchScore{}, err
	}
	return s.Rescore(ctx, company, opp)
}

// Rescore always recomputes and overwrites the cached row.
func (s *Scorer) Rescore(ctx context.Context, company models.Company, opp models.Opportunity) (models.MatchScore, error) {
	m := s.Compute(ctx, company, opp)
	saved, err := s.store.UpsertMatchScore(ctx, m)
	if err != nil {
		return models.MatchScore{}, err
	}
	return saved, nil
}

// Compute builds the score vector deterministically. Award lookups are the
// only I/O; a lookup failure drops the bonus rather than failing the score.
func (s *Scorer) Compute(ctx context.Context, company models.Company, opp models.Opportunity) models.MatchScore {
	m := models.MatchScore{
		CompanyID:     company.ID,
		OpportunityID: opp.ID,
		ComputedAt:    s.now(),
	}

	// Placeholders carry no usable fields beyond a link.
	if opp.IsPlaceholder {
		return m
	}

	m.NAICSScore = scoreNAICS(company.NAICSCodes, opp.NAICSCode)
	m.CertScore = scoreCert(company, opp.SetAsideType)
	m.SizeScore = scoreSize(company, opp)
	m.GeoScore = scoreGeo(company, opp.PlaceState)
	m.DeadlineScore = scoreDeadline(opp, s.now())

	fit := m.NAICSScore*weightNAICS +
		m.CertScore*weightCert +
		m.SizeScore*weightSize +
		m.GeoScore*weightGeo +
		m.DeadlineScore*weightDeadline

	fit += s.bonus(ctx, company, opp)

	m.FitScore = models.Truncate2(models.ClampScore(fit))
	return m
}

func (s *Scorer) bonus(ctx context.Context, company models.Company, opp models.Opportunity) float64 {
	if company.UEI == "" {
		return sourceWeight(opp.Source) * 0.05
	}

	var total float64
	if opp.NAICSCode != "" {
		n, err := s.store.CountAwardsByNAICS(ctx, company.UEI, []string{opp.NAICSCode})
		if err != nil {
			s.log.Warn("award history lookup failed", zap.Error(err))
		} else {
			total += awardSignal(n) * 0.10
		}
	}
	if opp.Agency != "" {
		n, err := s.store.CountAwardsByAgency(ctx, company.UEI, opp.Agency)
		if err != nil {
			s.log.Warn("agency familiarity lookup failed", zap.Error(err))
		} else {
			total += awardSignal(n) * 0.10
		}
	}
	total += sourceWeight(opp.Source) * 0.05
	return total
}

// awardSignal maps a past-award count to a 0-100 signal. Five or more prior
// awards saturate the signal.
func awardSignal(count int) float64 {
	if count <= 0 {
		return 0
	}
	if count >= 5 {
		return 100
	}
	return float64(count) * 20
}

func sourceWeight(source string) float64 {
	if w, ok := sourceCredibility[source]; ok {
		return w
	}
	return defaultCredibility
}

func scoreNAICS(companyCodes []string, oppCode string) float64 {
	if len(companyCodes) == 0 || oppCode == "" {
		return 50
	}
	best := 25.0
	for _, code := range companyCodes {
		switch {
		case code == oppCode:
			return 100
		case len(code) >= 4 && len(oppCode) >= 4 && code[:4] == oppCode[:4]:
			if best < 75 {
				best = 75
			}
		case len(code) >= 2 && len(oppCode) >= 2 && code[:2] == oppCode[:2]:
			if best < 50 {
				best = 50
			}
		}
	}
	return best
}

func scoreCert(company models.Company, setAside *string) float64 {
	if setAside == nil || strings.TrimSpace(*setAside) == "" {
		return 75
	}
	required, known := models.RequiredCerts[*setAside]
	if !known {
		// Unknown set-aside vocabulary scores like an open competition.
		return 75
	}
	// "Small Business" maps to an empty requirement set: open to any small
	// business.
	if len(required) == 0 {
		return 100
	}
	if company.HasAnyCert(required) {
		return 100
	}
	return 25
}

func scoreSize(company models.Company, opp models.Opportunity) float64 {
	value := opportunityValue(opp)
	if value == nil || company.ContractValueMin == nil || company.ContractValueMax == nil {
		return 75
	}
	v, lo, hi := *value, *company.ContractValueMin, *company.ContractValueMax
	switch {
	case v >= lo && v <= hi:
		return 100
	case v >= lo/2 && v <= hi*2:
		return 75
	case v >= lo/5 && v <= hi*5:
		return 50
	default:
		return 25
	}
}

// opportunityValue picks the representative dollar figure: the high estimate
// when present, otherwise the low.
func opportunityValue(opp models.Opportunity) *float64 {
	if opp.EstimatedValueHigh != nil {
		return opp.EstimatedValueHigh
	}
	return opp.EstimatedValueLow
}

func scoreGeo(company models.Company, state string) float64 {
	if state == "" || len(company.GeographicPreferences) == 0 {
		return 75
	}
	if company.CoversState(state) {
		return 100
	}
	if bordersPreference(state, company.GeographicPreferences) {
		return 75
	}
	return 50
}

func scoreDeadline(opp models.Opportunity, now time.Time) float64 {
	days, ok := opp.DaysToDeadline(now)
	if !ok {
		// Forecasts and scraped rows often lack a deadline; score neutral.
		return 50
	}
	switch {
	case days < 0:
		return 0
	case days < 7:
		return 25
	case days < 14:
		return 50
	case days < 30:
		return 75
	case days <= 60:
		return 100
	default:
		return 90
	}
}
