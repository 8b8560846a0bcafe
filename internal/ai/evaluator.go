package ai

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/david/bid-finder/internal/models"
)

// EvalStore is the slice of the store the evaluator persists through.
type EvalStore interface {
	UpsertEvaluation(ctx context.Context, e models.Evaluation) (models.Evaluation, error)
	SetGenericEvaluation(ctx context.Context, id uuid.UUID, eval map[string]interface{}) error
}

type Evaluator struct {
	llm   Generator
	store EvalStore
	log   *zap.Logger
}

func NewEvaluator(llm Generator, store EvalStore, log *zap.Logger) *Evaluator {
	return &Evaluator{llm: llm, store: store, log: log}
}

// evaluationPayload is the JSON contract the prompt demands. Numeric fields
// are pointers so a missing field is distinguishable from zero.
type evaluationPayload struct {
	FitScore               *int                   `json:"fit_score"`
	WinProbability         *int                   `json:"win_probability"`
	Confidence             *int                   `json:"confidence"`
	Recommendation         string                 `json:"recommendation"`
	Reasoning              string                 `json:"reasoning"`
	ExecutiveSummary       string                 `json:"executive_summary"`
	Strengths              []string               `json:"strengths"`
	Weaknesses             []string               `json:"weaknesses"`
	EstimatedProfit        float64                `json:"estimated_profit"`
	ProfitMarginPercentage float64                `json:"profit_margin_percentage"`
	CostBreakdown          map[string]interface{} `json:"cost_breakdown"`
}

// Evaluate runs the LLM against the (company, opportunity) pair and persists
// the result. The profile version is stamped from the company row the caller
// read at the start of the operation, so an evaluation racing a profile edit
// is recognized as stale on the next staleness query. LLM transport and parse
// failures degrade to the fixed fallback evaluation; the returned boolean
// reports whether that happened.
func (e *Evaluator) Evaluate(ctx context.Context, company models.Company, opp models.Opportunity) (models.Evaluation, bool, error) {
	eval, fellBack := e.run(ctx, company, opp)
	eval.OpportunityID = opp.ID
	eval.CompanyID = company.ID
	eval.ProfileVersionAtEvaluation = company.ProfileVersion

	saved, err := e.store.UpsertEvaluation(ctx, eval)
	if err != nil {
		return models.Evaluation{}, fellBack, err
	}
	return saved, fellBack, nil
}

func (e *Evaluator) run(ctx context.Context, company models.Company, opp models.Opportunity) (models.Evaluation, bool) {
	resp, err := e.llm.GenerateCompletion(ctx, evaluationPrompt(company, opp), true)
	if err != nil {
		e.log.Warn("llm call failed, using fallback evaluation",
			zap.String("opportunity", opp.DedupKey()), zap.Error(err))
		return fallbackEvaluation(), true
	}

	var payload evaluationPayload
	if err := decodeStrict(resp, &payload); err != nil {
		e.log.Warn("llm reply unparseable, using fallback evaluation",
			zap.String("opportunity", opp.DedupKey()), zap.Error(err))
		return fallbackEvaluation(), true
	}
	if payload.FitScore == nil || payload.WinProbability == nil || payload.Confidence == nil {
		e.log.Warn("llm reply missing required scores, using fallback evaluation",
			zap.String("opportunity", opp.DedupKey()))
		return fallbackEvaluation(), true
	}

	fit := models.ClampScoreInt(*payload.FitScore)
	win := models.ClampScoreInt(*payload.WinProbability)

	eval := models.Evaluation{
		FitScore:               fit,
		WinProbability:         win,
		Confidence:             models.ClampScoreInt(*payload.Confidence),
		Recommendation:         enforceRecommendation(fit, win, missingRequiredCert(company, opp)),
		Reasoning:              payload.Reasoning,
		ExecutiveSummary:       payload.ExecutiveSummary,
		Strengths:              payload.Strengths,
		Weaknesses:             payload.Weaknesses,
		EstimatedProfit:        payload.EstimatedProfit,
		ProfitMarginPercentage: payload.ProfitMarginPercentage,
		CostBreakdown:          payload.CostBreakdown,
	}
	if eval.Strengths == nil {
		eval.Strengths = []string{}
	}
	if eval.Weaknesses == nil {
		eval.Weaknesses = []string{}
	}
	return eval, false
}

// enforceRecommendation applies the recommendation rule regardless of what
// the model claimed. NO_BID wins over BID when a required certification is
// absent.
func enforceRecommendation(fit, win int, missingCert bool) string {
	if fit < 50 || missingCert {
		return models.RecommendNoBid
	}
	if fit >= 70 && win >= 40 {
		return models.RecommendBid
	}
	return models.RecommendResearch
}

// missingRequiredCert reports whether the opportunity's set-aside demands a
// certification the company does not hold.
func missingRequiredCert(company models.Company, opp models.Opportunity) bool {
	if opp.SetAsideType == nil {
		return false
	}
	required, known := models.RequiredCerts[*opp.SetAsideType]
	if !known || len(required) == 0 {
		return false
	}
	return !company.HasAnyCert(required)
}

func fallbackEvaluation() models.Evaluation {
	return models.Evaluation{
		FitScore:       50,
		WinProbability: 50,
		Confidence:     50,
		Recommendation: models.RecommendResearch,
		Reasoning:      "Automatic evaluation failed; manual review required.",
		Strengths:      []string{"Automatic evaluation failed"},
		Weaknesses:     []string{"Automatic evaluation failed"},
	}
}

// genericPayload is the company-agnostic triage result stored on the
// opportunity row.
type genericPayload struct {
	Quality     *int     `json:"quality"`
	Complexity  *int     `json:"complexity"`
	RiskFactors []string `json:"risk_factors"`
}

// EvaluateGeneric produces the company-agnostic triage and stores it on the
// opportunity, flipping evaluation_status to evaluated.
func (e *Evaluator) EvaluateGeneric(ctx context.Context, opp models.Opportunity) (map[string]interface{}, error) {
	resp, err := e.llm.GenerateCompletion(ctx, genericPrompt(opp), true)
	if err != nil {
		return nil, err
	}

	var payload genericPayload
	if err := decodeStrict(resp, &payload); err != nil {
		return nil, err
	}
	if payload.Quality == nil || payload.Complexity == nil {
		return nil, &LLMParseError{Reason: "missing quality or complexity"}
	}

	result := map[string]interface{}{
		"quality":      models.ClampScoreInt(*payload.Quality),
		"complexity":   models.ClampScoreInt(*payload.Complexity),
		"risk_factors": payload.RiskFactors,
	}
	if err := e.store.SetGenericEvaluation(ctx, opp.ID, result); err != nil {
		return nil, err
	}
	return result, nil
}
