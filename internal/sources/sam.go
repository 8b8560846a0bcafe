package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/david/bid-finder/internal/models"
	"go.uber.org/zap"
)

// SAMProvider queries the SAM.gov opportunities v2 search API. The upstream
// does not accept OR-of-NAICS, so Fetch issues one request per code with a
// deliberate inter-request delay. A single 429 halts the batch: SAM.gov rate
// limits are daily quotas and hammering after one only compounds the damage.
type SAMProvider struct {
	Client    *http.Client
	BaseURL   string
	APIKey    string
	Delay     time.Duration
	PageLimit int
	Log       *zap.Logger
}

func NewSAMProvider(apiKey string, delay time.Duration, log *zap.Logger) *SAMProvider {
	if delay < time.Second {
		delay = time.Second
	}
	return &SAMProvider{
		Client:    &http.Client{Timeout: 30 * time.Second},
		BaseURL:   "https://api.sam.gov/opportunities/v2/search",
		APIKey:    apiKey,
		Delay:     delay,
		PageLimit: 100,
		Log:       log,
	}
}

func (p *SAMProvider) SourceName() string { return SourceSAM }

type samSearchResponse struct {
	TotalRecords      int                      `json:"totalRecords"`
	OpportunitiesData []map[string]interface{} `json:"opportunitiesData"`
}

// Fetch issues one search request per NAICS code. Records fetched before a
// 429 are returned alongside the RateLimitedError so the coordinator can
// still store them.
func (p *SAMProvider) Fetch(ctx context.Context, params FetchParams) ([]RawRecord, error) {
	if p.APIKey == "" {
		return nil, &PermanentSourceError{Source: SourceSAM, Status: http.StatusUnauthorized}
	}

	var records []RawRecord
	for i, naics := range params.NAICSCodes {
		if i > 0 {
			select {
			case <-ctx.Done():
				return records, ctx.Err()
			case <-time.After(p.Delay):
			}
		}

		page, err := p.fetchNAICS(ctx, naics, params)
		if err != nil {
			if IsRateLimited(err) {
				p.Log.Warn("sam.gov rate limited, halting batch",
					zap.String("naics", naics), zap.Int("fetched", len(records)))
				return records, err
			}
			return records, err
		}
		records = append(records, page...)
	}
	return records, nil
}

func (p *SAMProvider) fetchNAICS(ctx context.Context, naics string, params FetchParams) ([]RawRecord, error) {
	q := url.Values{}
	q.Set("ncode", naics)
	q.Set("limit", fmt.Sprintf("%d", p.PageLimit))
	q.Set("ptype", "o,k") // solicitations and combined synopsis
	if !params.PostedFrom.IsZero() {
		q.Set("postedFrom", params.PostedFrom.Format("01/02/2006"))
	}
	if !params.PostedTo.IsZero() {
		q.Set("postedTo", params.PostedTo.Format("01/02/2006"))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.BaseURL+"?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("X-Api-Key", p.APIKey)
	req.Header.Set("Accept", "application/json")

	p.Log.Debug("sam.gov search", zap.String("naics", naics))

	resp, err := p.Client.Do(req)
	if err != nil {
		return nil, classifyNetErr(SourceSAM, err)
	}
	defer resp.Body.Close()

	if err := classifyStatus(SourceSAM, resp.StatusCode); err != nil {
		return nil, err
	}

	var parsed samSearchResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, &TransientSourceError{Source: SourceSAM, Err: err}
	}

	records := make([]RawRecord, 0, len(parsed.OpportunitiesData))
	for _, item := range parsed.OpportunitiesData {
		records = append(records, RawRecord{Source: SourceSAM, Payload: item})
	}
	return records, nil
}

// Normalize maps a SAM.gov notice to the canonical opportunity. Total:
// malformed fields degrade to zero values, never an error.
func (p *SAMProvider) Normalize(raw RawRecord) models.Opportunity {
	m := raw.Payload
	opp := models.Opportunity{
		Source:      SourceSAM,
		SourceID:    str(m, "noticeId"),
		Title:       str(m, "title"),
		Description: str(m, "description"),
		Agency:      str(m, "fullParentPathName"),
		NAICSCode:   str(m, "naicsCode"),
		Status:      models.StatusActive,
		SourceURL:   str(m, "uiLink"),
		RawData:     m,
	}

	if sa := str(m, "typeOfSetAsideDescription"); sa != "" {
		opp.SetAsideType = &sa
	} else if sa := str(m, "typeOfSetAside"); sa != "" {
		opp.SetAsideType = &sa
	}

	if pop := nested(m, "placeOfPerformance"); pop != nil {
		if city := nested(pop, "city"); city != nil {
			opp.PlaceCity = str(city, "name")
		}
		if state := nested(pop, "state"); state != nil {
			opp.PlaceState = TruncState(str(state, "code"))
		}
		opp.PlaceZip = str(pop, "zip")
	}

	opp.PostedDate = ParseDate(str(m, "postedDate"))
	opp.ResponseDeadline = ParseDeadline(str(m, "responseDeadLine"))

	if award := nested(m, "award"); award != nil {
		if v, ok := num(award, "amount"); ok {
			opp.EstimatedValueHigh = &v
		}
	}

	if contacts, ok := m["pointOfContact"].([]interface{}); ok && len(contacts) > 0 {
		if c, ok := contacts[0].(map[string]interface{}); ok {
			opp.ContactName = str(c, "fullName")
			opp.ContactEmail = str(c, "email")
			opp.ContactPhone = str(c, "phone")
		}
	}

	if active := str(m, "active"); active == "No" {
		opp.Status = models.StatusExpired
	}
	if t := str(m, "type"); t == "Award Notice" {
		opp.Status = models.StatusAwarded
	}

	return opp
}
