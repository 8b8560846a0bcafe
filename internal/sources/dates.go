package sources

import (
	"strconv"
	"strings"
	"time"
)

// dateFormats are tried in order. Anything unparseable becomes nil: normalize
// is total and never rejects a record over a bad date.
var dateFormats = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02",
	"01/02/2006",
	"1/2/2006",
}

// ParseDate parses ISO-8601, MM/DD/YYYY, and YYYY-MM-DD. Returns nil for
// empty or unrecognized input.
func ParseDate(s string) *time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	for _, format := range dateFormats {
		if t, err := time.Parse(format, s); err == nil {
			t = t.UTC()
			return &t
		}
	}
	return nil
}

// ParseDeadline parses like ParseDate but pushes date-only values to the end
// of the day, matching how agencies treat response deadlines.
func ParseDeadline(s string) *time.Time {
	t := ParseDate(s)
	if t == nil {
		return nil
	}
	if t.Hour() == 0 && t.Minute() == 0 && t.Second() == 0 {
		eod := time.Date(t.Year(), t.Month(), t.Day(), 23, 59, 59, 0, time.UTC)
		return &eod
	}
	return t
}

// TruncState normalizes a state value to its first two characters, uppercased.
func TruncState(s string) string {
	s = strings.ToUpper(strings.TrimSpace(s))
	if len(s) > 2 {
		return s[:2]
	}
	return s
}

// ParseAmount parses dollar strings like "$1,500,000.00" or "250000".
func ParseAmount(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	s = strings.ReplaceAll(s, "$", "")
	s = strings.ReplaceAll(s, ",", "")
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}
