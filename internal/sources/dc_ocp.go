package sources

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/david/bid-finder/internal/models"
	"go.uber.org/zap"
)

// DCOCPProvider scrapes the DC Office of Contracting and Procurement
// solicitation listing. The site sits behind a browser-verification edge:
// a plain HTTP client is frequently served an interstitial instead of the
// listing. When that happens the provider degrades to a single placeholder
// record whose only purpose is to preserve the link; the scorer treats
// placeholders as unfit.
type DCOCPProvider struct {
	Client     *http.Client
	ListingURL string
	Log        *zap.Logger
}

func NewDCOCPProvider(log *zap.Logger) *DCOCPProvider {
	return &DCOCPProvider{
		Client:     &http.Client{Timeout: 30 * time.Second},
		ListingURL: "https://contracts.ocp.dc.gov/solicitations/search",
		Log:        log,
	}
}

func (p *DCOCPProvider) SourceName() string { return SourceDCOCP }

var edgeBlockMarkers = []string{
	"cf-browser-verification",
	"Checking your browser",
	"Just a moment",
	"challenge-platform",
}

func looksBlocked(html string) bool {
	for _, marker := range edgeBlockMarkers {
		if strings.Contains(html, marker) {
			return true
		}
	}
	return false
}

func (p *DCOCPProvider) Fetch(ctx context.Context, params FetchParams) ([]RawRecord, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.ListingURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36")
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := p.Client.Do(req)
	if err != nil {
		return nil, classifyNetErr(SourceDCOCP, err)
	}
	defer resp.Body.Close()

	// The edge answers 403/503 to non-browser clients. That is a degraded
	// mode, not a failure: preserve the link as a placeholder.
	if resp.StatusCode == http.StatusForbidden || resp.StatusCode == http.StatusServiceUnavailable {
		p.Log.Warn("dc ocp edge blocked, emitting placeholder", zap.Int("status", resp.StatusCode))
		return []RawRecord{p.placeholder()}, nil
	}
	if err := classifyStatus(SourceDCOCP, resp.StatusCode); err != nil {
		return nil, err
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, &TransientSourceError{Source: SourceDCOCP, Err: err}
	}

	if html, _ := doc.Html(); looksBlocked(html) {
		p.Log.Warn("dc ocp interstitial detected, emitting placeholder")
		return []RawRecord{p.placeholder()}, nil
	}

	var records []RawRecord
	doc.Find("table.solicitations tbody tr, .solicitation-row").Each(func(_ int, row *goquery.Selection) {
		link := row.Find("a").First()
		href, _ := link.Attr("href")
		if href == "" {
			return
		}
		payload := map[string]interface{}{
			"solicitation_id": strings.TrimSpace(row.Find(".solicitation-number, td:nth-child(1)").First().Text()),
			"title":           strings.TrimSpace(link.Text()),
			"url":             absoluteURL(p.ListingURL, href),
			"agency":          strings.TrimSpace(row.Find(".agency, td:nth-child(3)").First().Text()),
			"naics":           strings.TrimSpace(row.Find(".naics, td:nth-child(4)").First().Text()),
			"set_aside":       strings.TrimSpace(row.Find(".set-aside, td:nth-child(5)").First().Text()),
			"close_date":      strings.TrimSpace(row.Find(".close-date, td:nth-child(6)").First().Text()),
		}
		records = append(records, RawRecord{Source: SourceDCOCP, Payload: payload})
	})

	p.Log.Debug("dc ocp listing parsed", zap.Int("rows", len(records)))
	return records, nil
}

func (p *DCOCPProvider) placeholder() RawRecord {
	return RawRecord{
		Source: SourceDCOCP,
		Payload: map[string]interface{}{
			"solicitation_id": "dc-ocp-listing",
			"title":           "DC OCP solicitations (browser required)",
			"url":             p.ListingURL,
			"placeholder":     true,
		},
	}
}

func (p *DCOCPProvider) Normalize(raw RawRecord) models.Opportunity {
	m := raw.Payload
	opp := models.Opportunity{
		Source:     SourceDCOCP,
		SourceID:   str(m, "solicitation_id"),
		Title:      str(m, "title"),
		Agency:     str(m, "agency"),
		NAICSCode:  str(m, "naics"),
		PlaceCity:  "Washington",
		PlaceState: "DC",
		Status:     models.StatusActive,
		SourceURL:  str(m, "url"),
		RawData:    m,
	}
	if placeholder, ok := m["placeholder"].(bool); ok && placeholder {
		opp.IsPlaceholder = true
	}
	if sa := str(m, "set_aside"); sa != "" {
		opp.SetAsideType = &sa
	}
	opp.ResponseDeadline = ParseDeadline(str(m, "close_date"))
	return opp
}

func absoluteURL(base, href string) string {
	if strings.HasPrefix(href, "http://") || strings.HasPrefix(href, "https://") {
		return href
	}
	idx := strings.Index(base, "://")
	if idx < 0 {
		return href
	}
	root := base
	if slash := strings.Index(base[idx+3:], "/"); slash >= 0 {
		root = base[:idx+3+slash]
	}
	if !strings.HasPrefix(href, "/") {
		href = "/" + href
	}
	return root + href
}
