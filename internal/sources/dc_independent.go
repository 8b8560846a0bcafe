package sources

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/david/bid-finder/internal/models"
	"github.com/gocolly/colly/v2"
	"github.com/microcosm-cc/bluemonday"
	"go.uber.org/zap"
)

// DCIndependentProvider crawls the procurement pages of DC independent
// agencies (WMATA, DC Water, DCHA and similar), which publish solicitations
// as plain HTML listings without an API. Descriptions are sanitized before
// they ever reach storage. When a listing links a solicitation PDF, the
// deadline extractor has a look at it.
type DCIndependentProvider struct {
	Seeds       []string
	Delay       time.Duration
	MaxPages    int
	PDFDeadline *PDFDeadlineExtractor
	Log         *zap.Logger

	policy *bluemonday.Policy
}

func NewDCIndependentProvider(seeds []string, log *zap.Logger) *DCIndependentProvider {
	return &DCIndependentProvider{
		Seeds:       seeds,
		Delay:       time.Second,
		MaxPages:    50,
		PDFDeadline: NewPDFDeadlineExtractor(),
		Log:         log,
		policy:      bluemonday.StrictPolicy(),
	}
}

func (p *DCIndependentProvider) SourceName() string { return SourceDCIndependent }

func (p *DCIndependentProvider) Fetch(ctx context.Context, params FetchParams) ([]RawRecord, error) {
	var (
		mu      sync.Mutex
		records []RawRecord
		lastErr error
	)

	c := colly.NewCollector(
		colly.UserAgent("Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"),
		colly.MaxDepth(1),
		colly.AllowURLRevisit(),
	)
	c.Limit(&colly.LimitRule{
		DomainGlob:  "*",
		Parallelism: 1,
		Delay:       p.Delay,
	})
	c.SetRequestTimeout(30 * time.Second)

	c.OnHTML("table.solicitations tr, .procurement-listing .item, li.solicitation", func(e *colly.HTMLElement) {
		link := e.ChildAttr("a", "href")
		title := strings.TrimSpace(e.ChildText("a"))
		if link == "" || title == "" {
			return
		}
		payload := map[string]interface{}{
			"id":          e.ChildText(".number"),
			"title":       title,
			"url":         e.Request.AbsoluteURL(link),
			"agency":      strings.TrimSpace(e.ChildText(".agency")),
			"description": e.ChildText(".description"),
			"naics":       strings.TrimSpace(e.ChildText(".naics")),
			"close_date":  strings.TrimSpace(e.ChildText(".due-date, .close-date")),
			"page":        e.Request.URL.String(),
		}
		if pdf := e.ChildAttr("a[href$='.pdf']", "href"); pdf != "" {
			payload["pdf_url"] = e.Request.AbsoluteURL(pdf)
		}
		mu.Lock()
		records = append(records, RawRecord{Source: SourceDCIndependent, Payload: payload})
		mu.Unlock()
	})

	c.OnError(func(r *colly.Response, err error) {
		mu.Lock()
		defer mu.Unlock()
		if r != nil && r.StatusCode > 0 {
			lastErr = classifyStatus(SourceDCIndependent, r.StatusCode)
		} else {
			lastErr = classifyNetErr(SourceDCIndependent, err)
		}
	})

	for _, seed := range p.Seeds {
		if ctx.Err() != nil {
			return records, ctx.Err()
		}
		if err := c.Visit(seed); err != nil {
			p.Log.Warn("dc independent seed failed", zap.String("seed", seed), zap.Error(err))
		}
	}
	c.Wait()

	if len(records) == 0 && lastErr != nil {
		return nil, lastErr
	}

	// Best-effort PDF deadline enrichment for rows whose listing had no date.
	for i := range records {
		payload := records[i].Payload
		if str(payload, "close_date") != "" {
			continue
		}
		pdfURL := str(payload, "pdf_url")
		if pdfURL == "" {
			continue
		}
		if deadline := p.PDFDeadline.Extract(ctx, pdfURL); deadline != nil {
			payload["close_date"] = deadline.Format(time.RFC3339)
		}
	}

	p.Log.Debug("dc independent crawl complete", zap.Int("records", len(records)))
	return records, nil
}

func (p *DCIndependentProvider) Normalize(raw RawRecord) models.Opportunity {
	m := raw.Payload
	sourceID := str(m, "id")
	if sourceID == "" {
		sourceID = str(m, "url")
	}
	opp := models.Opportunity{
		Source:      SourceDCIndependent,
		SourceID:    sourceID,
		Title:       str(m, "title"),
		Description: p.policy.Sanitize(str(m, "description")),
		Agency:      str(m, "agency"),
		NAICSCode:   str(m, "naics"),
		PlaceCity:   "Washington",
		PlaceState:  "DC",
		Status:      models.StatusActive,
		SourceURL:   str(m, "url"),
		RawData:     m,
	}
	opp.ResponseDeadline = ParseDeadline(str(m, "close_date"))
	return opp
}
