package models

import (
	"time"

	"github.com/google/uuid"
)

// Recommendation values.
const (
	RecommendBid      = "BID"
	RecommendNoBid    = "NO_BID"
	RecommendResearch = "RESEARCH"
)

// Evaluation is the per-(opportunity, company) LLM assessment. The pair is
// unique; a re-evaluation overwrites the existing row.
type Evaluation struct {
	ID                         uuid.UUID              `json:"id"`
	OpportunityID              uuid.UUID              `json:"opportunity_id"`
	CompanyID                  uuid.UUID              `json:"company_id"`
	FitScore                   int                    `json:"fit_score"`
	WinProbability             int                    `json:"win_probability"`
	Confidence                 int                    `json:"confidence"`
	Recommendation             string                 `json:"recommendation"`
	Reasoning                  string                 `json:"reasoning"`
	ExecutiveSummary           string                 `json:"executive_summary"`
	Strengths                  []string               `json:"strengths"`
	Weaknesses                 []string               `json:"weaknesses"`
	EstimatedProfit            float64                `json:"estimated_profit"`
	ProfitMarginPercentage     float64                `json:"profit_margin_percentage"`
	CostBreakdown              map[string]interface{} `json:"cost_breakdown,omitempty"`
	ProfileVersionAtEvaluation int                    `json:"profile_version_at_evaluation"`
	EvaluatedAt                time.Time              `json:"evaluated_at"`
}

// Stale reports whether the evaluation predates the company's current
// profile version. Legacy rows carry version 0 and are stale for any
// company at version >= 1.
func (e Evaluation) Stale(currentVersion int) bool {
	return e.ProfileVersionAtEvaluation < currentVersion
}

// MatchScore is the cached rule-based fit vector for a (company, opportunity)
// pair. All six fields are 0-100 with two decimals.
type MatchScore struct {
	ID            uuid.UUID `json:"id"`
	CompanyID     uuid.UUID `json:"company_id"`
	OpportunityID uuid.UUID `json:"opportunity_id"`
	FitScore      float64   `json:"fit_score"`
	NAICSScore    float64   `json:"naics_score"`
	CertScore     float64   `json:"cert_score"`
	SizeScore     float64   `json:"size_score"`
	GeoScore      float64   `json:"geo_score"`
	DeadlineScore float64   `json:"deadline_score"`
	ComputedAt    time.Time `json:"computed_at"`
}

// Award is a past contract record, read-only for the pipeline. Used by the
// scorer's bonus signals.
type Award struct {
	ID             uuid.UUID  `json:"id"`
	AwardingAgency string     `json:"awarding_agency"`
	NAICSCode      string     `json:"naics_code"`
	VendorUEI      string     `json:"vendor_uei"`
	VendorName     string     `json:"vendor_name"`
	Amount         float64    `json:"amount"`
	AwardDate      *time.Time `json:"award_date"`
	Description    string     `json:"description"`
}
