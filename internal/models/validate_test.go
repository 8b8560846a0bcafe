package models

import (
	"errors"
	"testing"
	"time"
)

func f64(v float64) *float64 { return &v }

func TestCompanyValidate(t *testing.T) {
	base := func() Company {
		return Company{
			Name:       "Acme Federal LLC",
			UEI:        "ABC123DEF456",
			NAICSCodes: []string{"541512"},
		}
	}

	tests := []struct {
		name      string
		mutate    func(*Company)
		wantField string
	}{
		{"valid", func(c *Company) {}, ""},
		{"empty name", func(c *Company) { c.Name = " " }, "name"},
		{"short uei", func(c *Company) { c.UEI = "ABC123" }, "uei"},
		{"empty uei allowed", func(c *Company) { c.UEI = "" }, ""},
		{"bad naics length", func(c *Company) { c.NAICSCodes = []string{"5415"} }, "naics_codes"},
		{"bad naics chars", func(c *Company) { c.NAICSCodes = []string{"54151a"} }, "naics_codes"},
		{"duplicate naics", func(c *Company) { c.NAICSCodes = []string{"541512", "541512"} }, "naics_codes"},
		{"negative min", func(c *Company) { c.ContractValueMin = f64(-1) }, "contract_value_min"},
		{"min above max", func(c *Company) {
			c.ContractValueMin = f64(100)
			c.ContractValueMax = f64(50)
		}, "contract_value_min"},
		{"min only", func(c *Company) { c.ContractValueMin = f64(100) }, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := base()
			tt.mutate(&c)
			err := c.Validate()
			if tt.wantField == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("expected ValidationError, got %v", err)
			}
			if verr.Field != tt.wantField {
				t.Errorf("expected field %q, got %q", tt.wantField, verr.Field)
			}
		})
	}
}

func TestClampAndTruncate(t *testing.T) {
	if got := ClampScore(-3); got != 0 {
		t.Errorf("ClampScore(-3) = %v", got)
	}
	if got := ClampScore(101); got != 100 {
		t.Errorf("ClampScore(101) = %v", got)
	}
	if got := ClampScore(55.5); got != 55.5 {
		t.Errorf("ClampScore(55.5) = %v", got)
	}
	if got := Truncate2(91.259); got != 91.25 {
		t.Errorf("Truncate2(91.259) = %v", got)
	}
	if got := Truncate2(18.75); got != 18.75 {
		t.Errorf("Truncate2(18.75) = %v", got)
	}
}

func TestCompanyCoversState(t *testing.T) {
	c := Company{GeographicPreferences: []string{"VA", "MD"}}
	if !c.CoversState("VA") {
		t.Error("expected VA covered")
	}
	if c.CoversState("TX") {
		t.Error("expected TX not covered")
	}
	c.GeographicPreferences = []string{Nationwide}
	if !c.CoversState("TX") {
		t.Error("expected Nationwide to cover TX")
	}
}

func TestEvaluationStale(t *testing.T) {
	e := Evaluation{ProfileVersionAtEvaluation: 0}
	if !e.Stale(1) {
		t.Error("legacy version 0 must be stale at company version 1")
	}
	e.ProfileVersionAtEvaluation = 2
	if e.Stale(2) {
		t.Error("matching versions must not be stale")
	}
	if !e.Stale(3) {
		t.Error("older version must be stale")
	}
}

func TestDaysToDeadline(t *testing.T) {
	now := time.Now()
	o := Opportunity{}
	if _, ok := o.DaysToDeadline(now); ok {
		t.Error("expected no deadline")
	}
	d := now.Add(20 * 24 * time.Hour)
	o.ResponseDeadline = &d
	if days, ok := o.DaysToDeadline(now); !ok || days != 20 {
		t.Errorf("expected 20 days, got %d ok=%v", days, ok)
	}
	past := now.Add(-36 * time.Hour)
	o.ResponseDeadline = &past
	if days, _ := o.DaysToDeadline(now); days >= 0 {
		t.Errorf("expected negative days, got %d", days)
	}
}
