package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/david/bid-finder/internal/models"
	"go.uber.org/zap"
)

// ForecastProvider reads agency procurement forecast feeds. Forecasts are
// future intent, not solicitations: they land with is_forecast=true and
// never flow into the scorer.
type ForecastProvider struct {
	Client  *http.Client
	FeedURL string
	Log     *zap.Logger
}

func NewForecastProvider(feedURL string, log *zap.Logger) *ForecastProvider {
	return &ForecastProvider{
		Client:  &http.Client{Timeout: 30 * time.Second},
		FeedURL: feedURL,
		Log:     log,
	}
}

func (p *ForecastProvider) SourceName() string { return SourceForecast }

type forecastFeed struct {
	Results []map[string]interface{} `json:"results"`
}

func (p *ForecastProvider) Fetch(ctx context.Context, params FetchParams) ([]RawRecord, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.FeedURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := p.Client.Do(req)
	if err != nil {
		return nil, classifyNetErr(SourceForecast, err)
	}
	defer resp.Body.Close()

	if err := classifyStatus(SourceForecast, resp.StatusCode); err != nil {
		return nil, err
	}

	var feed forecastFeed
	if err := json.NewDecoder(resp.Body).Decode(&feed); err != nil {
		return nil, &TransientSourceError{Source: SourceForecast, Err: err}
	}

	wanted := make(map[string]bool, len(params.NAICSCodes))
	for _, code := range params.NAICSCodes {
		wanted[code] = true
	}

	records := make([]RawRecord, 0, len(feed.Results))
	for _, item := range feed.Results {
		if len(wanted) > 0 && !wanted[str(item, "naics_code")] {
			continue
		}
		records = append(records, RawRecord{Source: SourceForecast, Payload: item})
	}

	p.Log.Debug("forecast feed fetched", zap.Int("records", len(records)))
	return records, nil
}

func (p *ForecastProvider) Normalize(raw RawRecord) models.Opportunity {
	m := raw.Payload
	opp := models.Opportunity{
		Source:      SourceForecast,
		SourceID:    str(m, "forecast_id"),
		Title:       str(m, "title"),
		Description: str(m, "description"),
		Agency:      str(m, "agency"),
		NAICSCode:   str(m, "naics_code"),
		PlaceCity:   str(m, "place_city"),
		PlaceState:  TruncState(str(m, "place_state")),
		PlaceZip:    str(m, "place_zip"),
		Status:      models.StatusActive,
		IsForecast:  true,
		SourceURL:   str(m, "url"),
		RawData:     m,
	}
	if opp.SourceID == "" {
		opp.SourceID = str(m, "id")
	}
	if sa := str(m, "set_aside"); sa != "" {
		opp.SetAsideType = &sa
	}
	opp.PostedDate = ParseDate(str(m, "posted_date"))
	opp.ResponseDeadline = ParseDeadline(str(m, "anticipated_solicitation_date"))
	if v, ok := num(m, "estimated_value_low"); ok {
		opp.EstimatedValueLow = &v
	}
	if v, ok := num(m, "estimated_value_high"); ok {
		opp.EstimatedValueHigh = &v
	}
	return opp
}
