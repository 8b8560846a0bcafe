package sources

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/david/bid-finder/internal/models"
	"go.uber.org/zap"
)

// USASpendingProvider pulls past contract awards for the scorer's bonus
// signals. It never produces opportunities.
type USASpendingProvider struct {
	Client  *http.Client
	BaseURL string
	Log     *zap.Logger
}

func NewUSASpendingProvider(log *zap.Logger) *USASpendingProvider {
	return &USASpendingProvider{
		Client:  &http.Client{Timeout: 30 * time.Second},
		BaseURL: "https://api.usaspending.gov/api/v2/search/spending_by_award/",
		Log:     log,
	}
}

func (p *USASpendingProvider) SourceName() string { return SourceUSASpending }

type usaSpendingRequest struct {
	Filters usaSpendingFilters `json:"filters"`
	Fields  []string           `json:"fields"`
	Limit   int                `json:"limit"`
}

type usaSpendingFilters struct {
	NAICSCodes     []string `json:"naics_codes,omitempty"`
	AwardTypeCodes []string `json:"award_type_codes"`
}

type usaSpendingResponse struct {
	Results []map[string]interface{} `json:"results"`
}

// FetchAwards queries contract awards (type A-D) matching any of the NAICS
// codes.
func (p *USASpendingProvider) FetchAwards(ctx context.Context, naicsCodes []string, limit int) ([]models.Award, error) {
	if limit <= 0 {
		limit = 100
	}
	body := usaSpendingRequest{
		Filters: usaSpendingFilters{
			NAICSCodes:     naicsCodes,
			AwardTypeCodes: []string{"A", "B", "C", "D"},
		},
		Fields: []string{
			"Award ID", "Recipient Name", "recipient_id", "Awarding Agency",
			"Award Amount", "Start Date", "naics_code", "Description",
		},
		Limit: limit,
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.BaseURL, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.Client.Do(req)
	if err != nil {
		return nil, classifyNetErr(SourceUSASpending, err)
	}
	defer resp.Body.Close()

	if err := classifyStatus(SourceUSASpending, resp.StatusCode); err != nil {
		return nil, err
	}

	var parsed usaSpendingResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, &TransientSourceError{Source: SourceUSASpending, Err: err}
	}

	awards := make([]models.Award, 0, len(parsed.Results))
	for _, r := range parsed.Results {
		a := models.Award{
			AwardingAgency: str(r, "Awarding Agency"),
			NAICSCode:      str(r, "naics_code"),
			VendorUEI:      str(r, "recipient_id"),
			VendorName:     str(r, "Recipient Name"),
			Description:    str(r, "Description"),
		}
		if v, ok := num(r, "Award Amount"); ok {
			a.Amount = v
		}
		a.AwardDate = ParseDate(str(r, "Start Date"))
		awards = append(awards, a)
	}

	p.Log.Debug("usaspending awards fetched", zap.Int("count", len(awards)))
	return awards, nil
}
