package ai

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/david/bid-finder/internal/models"
)

type fakeLLM struct {
	reply string
	err   error
}

func (f *fakeLLM) GenerateCompletion(ctx context.Context, prompt string, jsonMode bool) (string, error) {
	return f.reply, f.err
}

type fakeEvalStore struct {
	saved   *models.Evaluation
	generic map[string]interface{}
}

func (f *fakeEvalStore) UpsertEvaluation(ctx context.Context, e models.Evaluation) (models.Evaluation, error) {
	e.ID = uuid.New()
	f.saved = &e
	return e, nil
}

func (f *fakeEvalStore) SetGenericEvaluation(ctx context.Context, id uuid.UUID, eval map[string]interface{}) error {
	f.generic = eval
	return nil
}

const goodReply = `{
	"fit_score": 85,
	"win_probability": 60,
	"confidence": 70,
	"recommendation": "RESEARCH",
	"reasoning": "Strong technical match.",
	"executive_summary": "Good fit.",
	"strengths": ["NAICS match"],
	"weaknesses": ["No incumbent knowledge"],
	"estimated_profit": 120000,
	"profit_margin_percentage": 12.5,
	"cost_breakdown": {"tasks": [{"name": "Staffing", "cost": 700000}], "total": 700000}
}`

func testPair() (models.Company, models.Opportunity) {
	company := models.Company{ID: uuid.New(), Name: "Acme Federal", NAICSCodes: []string{"541512"}, ProfileVersion: 3}
	opp := models.Opportunity{ID: uuid.New(), Source: "sam.gov", SourceID: "n-1", Title: "IT Support"}
	return company, opp
}

func TestEvaluateHappyPath(t *testing.T) {
	store := &fakeEvalStore{}
	ev := NewEvaluator(&fakeLLM{reply: goodReply}, store, zap.NewNop())
	company, opp := testPair()

	eval, fellBack, err := ev.Evaluate(context.Background(), company, opp)
	if err != nil {
		t.Fatalf("Evaluate error: %v", err)
	}
	if fellBack {
		t.Error("valid reply must not fall back")
	}
	if eval.FitScore != 85 || eval.WinProbability != 60 {
		t.Errorf("scores not carried: %+v", eval)
	}
	// fit 85 and win 60 clear the BID thresholds; the model's RESEARCH claim
	// is overridden.
	if eval.Recommendation != models.RecommendBid {
		t.Errorf("recommendation = %s, want BID", eval.Recommendation)
	}
	if eval.ProfileVersionAtEvaluation != 3 {
		t.Errorf("profile version stamp = %d, want 3", eval.ProfileVersionAtEvaluation)
	}
	if store.saved == nil {
		t.Fatal("evaluation not persisted")
	}
}

func TestEvaluateFallbackOnGarbage(t *testing.T) {
	store := &fakeEvalStore{}
	ev := NewEvaluator(&fakeLLM{reply: "not json"}, store, zap.NewNop())
	company, opp := testPair()

	eval, fellBack, err := ev.Evaluate(context.Background(), company, opp)
	if err != nil {
		t.Fatalf("Evaluate error: %v", err)
	}
	if !fellBack {
		t.Error("expected fallback")
	}
	if eval.FitScore != 50 || eval.WinProbability != 50 || eval.Confidence != 50 {
		t.Errorf("fallback scores wrong: %+v", eval)
	}
	if eval.Recommendation != models.RecommendResearch {
		t.Errorf("fallback recommendation = %s, want RESEARCH", eval.Recommendation)
	}
	if len(eval.Strengths) != 1 || eval.Strengths[0] != "Automatic evaluation failed" {
		t.Errorf("fallback strengths wrong: %v", eval.Strengths)
	}
	if store.saved == nil {
		t.Error("fallback must still be persisted")
	}
}

func TestEvaluateFallbackOnTransport(t *testing.T) {
	ev := NewEvaluator(&fakeLLM{err: errors.New("connection refused")}, &fakeEvalStore{}, zap.NewNop())
	company, opp := testPair()

	eval, fellBack, err := ev.Evaluate(context.Background(), company, opp)
	if err != nil {
		t.Fatalf("Evaluate error: %v", err)
	}
	if !fellBack || eval.FitScore != 50 {
		t.Errorf("transport failure must degrade to fallback, got %+v", eval)
	}
}

func TestEvaluateFallbackOnMissingScores(t *testing.T) {
	ev := NewEvaluator(&fakeLLM{reply: `{"recommendation": "BID"}`}, &fakeEvalStore{}, zap.NewNop())
	company, opp := testPair()

	_, fellBack, err := ev.Evaluate(context.Background(), company, opp)
	if err != nil {
		t.Fatalf("Evaluate error: %v", err)
	}
	if !fellBack {
		t.Error("missing numeric fields must fall back")
	}
}

func TestEvaluateParsesFencedJSON(t *testing.T) {
	reply := "Here is my analysis:\n```json\n" + goodReply + "\n```"
	ev := NewEvaluator(&fakeLLM{reply: reply}, &fakeEvalStore{}, zap.NewNop())
	company, opp := testPair()

	eval, fellBack, err := ev.Evaluate(context.Background(), company, opp)
	if err != nil {
		t.Fatalf("Evaluate error: %v", err)
	}
	if fellBack {
		t.Error("fenced JSON should parse")
	}
	if eval.FitScore != 85 {
		t.Errorf("fit = %d, want 85", eval.FitScore)
	}
}

func TestEnforceRecommendation(t *testing.T) {
	tests := []struct {
		name        string
		fit, win    int
		missingCert bool
		want        string
	}{
		{"strong bid", 80, 50, false, models.RecommendBid},
		{"bid threshold exact", 70, 40, false, models.RecommendBid},
		{"low win probability", 80, 30, false, models.RecommendResearch},
		{"mid fit", 60, 90, false, models.RecommendResearch},
		{"low fit", 40, 90, false, models.RecommendNoBid},
		{"missing cert overrides fit", 90, 90, true, models.RecommendNoBid},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := enforceRecommendation(tt.fit, tt.win, tt.missingCert); got != tt.want {
				t.Errorf("enforceRecommendation(%d, %d, %v) = %s, want %s",
					tt.fit, tt.win, tt.missingCert, got, tt.want)
			}
		})
	}
}

func TestMissingRequiredCert(t *testing.T) {
	sp := func(s string) *string { return &s }
	tests := []struct {
		name     string
		setAside *string
		certs    []string
		want     bool
	}{
		{"no set-aside", nil, nil, false},
		{"open small business", sp("Small Business"), nil, false},
		{"unknown vocabulary", sp("Mystery"), nil, false},
		{"cert held", sp("8(a)"), []string{"8(a)"}, false},
		{"cert absent", sp("8(a)"), []string{"WOSB"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := models.Company{SetAsides: tt.certs}
			o := models.Opportunity{SetAsideType: tt.setAside}
			if got := missingRequiredCert(c, o); got != tt.want {
				t.Errorf("missingRequiredCert = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestExtractFirstJSONObject(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
		ok   bool
	}{
		{"bare object", `{"a":1}`, `{"a":1}`, true},
		{"prose around", `sure! {"a":1} hope that helps`, `{"a":1}`, true},
		{"nested", `{"a":{"b":2}}`, `{"a":{"b":2}}`, true},
		{"brace in string", `{"a":"}"}`, `{"a":"}"}`, true},
		{"unbalanced", `{"a":1`, "", false},
		{"no object", `nothing here`, "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := extractFirstJSONObject(tt.in)
			if ok != tt.ok || got != tt.want {
				t.Errorf("extractFirstJSONObject(%q) = (%q, %v), want (%q, %v)", tt.in, got, ok, tt.want, tt.ok)
			}
		})
	}
}

func TestEvaluateGeneric(t *testing.T) {
	store := &fakeEvalStore{}
	ev := NewEvaluator(&fakeLLM{reply: `{"quality": 70, "complexity": 40, "risk_factors": ["tight timeline"]}`}, store, zap.NewNop())
	_, opp := testPair()

	result, err := ev.EvaluateGeneric(context.Background(), opp)
	if err != nil {
		t.Fatalf("EvaluateGeneric error: %v", err)
	}
	if result["quality"] != 70 {
		t.Errorf("quality = %v, want 70", result["quality"])
	}
	if store.generic == nil {
		t.Error("generic evaluation not persisted")
	}
}

func TestEvaluateGenericParseError(t *testing.T) {
	ev := NewEvaluator(&fakeLLM{reply: "no"}, &fakeEvalStore{}, zap.NewNop())
	_, opp := testPair()

	_, err := ev.EvaluateGeneric(context.Background(), opp)
	var pe *LLMParseError
	if !errors.As(err, &pe) {
		t.Errorf("expected LLMParseError, got %v", err)
	}
}
