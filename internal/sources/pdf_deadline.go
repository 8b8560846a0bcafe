package sources

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	rpdf "rsc.io/pdf"
)

var pdfDateRegexes = []*regexp.Regexp{
	regexp.MustCompile(`\b\d{1,2}/\d{1,2}/20\d{2}\b`),
	regexp.MustCompile(`\b20\d{2}-\d{2}-\d{2}\b`),
	regexp.MustCompile(`(?i)\b(January|February|March|April|May|June|July|August|September|October|November|December)\s+\d{1,2},?\s+20\d{2}\b`),
}

var pdfMonthFormats = []string{"January 2, 2006", "January 2 2006"}

// PDFDeadlineExtractor pulls candidate due dates out of linked solicitation
// PDFs. Municipal agencies often publish the deadline only inside the PDF.
type PDFDeadlineExtractor struct {
	Client      *http.Client
	MaxPDFBytes int64
}

func NewPDFDeadlineExtractor() *PDFDeadlineExtractor {
	return &PDFDeadlineExtractor{
		Client:      &http.Client{Timeout: 30 * time.Second},
		MaxPDFBytes: 10 << 20,
	}
}

// Extract fetches the PDF and returns the latest future date found near a
// deadline hint, or nil. Failures are silent: PDF enrichment is best-effort.
func (x *PDFDeadlineExtractor) Extract(ctx context.Context, pdfURL string) *time.Time {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pdfURL, nil)
	if err != nil {
		return nil
	}
	resp, err := x.Client.Do(req)
	if err != nil {
		return nil
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil
	}

	content, err := io.ReadAll(io.LimitReader(resp.Body, x.MaxPDFBytes))
	if err != nil {
		return nil
	}

	text, err := extractPDFText(content)
	if err != nil {
		return nil
	}
	return FindDeadlineInText(text, time.Now().UTC())
}

func extractPDFText(content []byte) (text string, err error) {
	// rsc.io/pdf panics on malformed files.
	defer func() {
		if recovered := recover(); recovered != nil {
			err = fmt.Errorf("pdf parser panic: %v", recovered)
			text = ""
		}
	}()

	reader, err := rpdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return "", err
	}

	var builder strings.Builder
	for pageIndex := 1; pageIndex <= reader.NumPage(); pageIndex++ {
		page := reader.Page(pageIndex)
		if page.V.IsNull() {
			continue
		}
		for _, fragment := range page.Content().Text {
			builder.WriteString(fragment.S)
			builder.WriteString(" ")
		}
		builder.WriteString("\n")
	}
	return builder.String(), nil
}

// FindDeadlineInText scans text for date tokens and returns the earliest one
// after now, the usual reading of "responses due by".
func FindDeadlineInText(text string, now time.Time) *time.Time {
	var best *time.Time
	for _, expr := range pdfDateRegexes {
		for _, token := range expr.FindAllString(text, -1) {
			parsed := parsePDFToken(token)
			if parsed == nil || !parsed.After(now) {
				continue
			}
			if best == nil || parsed.Before(*best) {
				best = parsed
			}
		}
	}
	return best
}

func parsePDFToken(token string) *time.Time {
	if t := ParseDeadline(token); t != nil {
		return t
	}
	for _, format := range pdfMonthFormats {
		if t, err := time.Parse(format, token); err == nil {
			eod := time.Date(t.Year(), t.Month(), t.Day(), 23, 59, 59, 0, time.UTC)
			return &eod
		}
	}
	return nil
}
