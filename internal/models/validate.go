package models

import (
	"fmt"
	"math"
	"strings"
)

const maxCapabilitiesLen = 5000

// ValidationError names the offending field so callers can surface a precise
// rejection. Never persisted.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed on %s: %s", e.Field, e.Reason)
}

func invalid(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

// ValidNAICS reports whether s is a 6-digit numeric NAICS code.
func ValidNAICS(s string) bool {
	if len(s) != 6 {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// Validate checks the company's scoring-relevant constraints.
func (c *Company) Validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return invalid("name", "must not be empty")
	}
	if c.UEI != "" && len(c.UEI) != 12 {
		return invalid("uei", "must be 12 characters")
	}
	seen := make(map[string]bool, len(c.NAICSCodes))
	for _, code := range c.NAICSCodes {
		if !ValidNAICS(code) {
			return invalid("naics_codes", fmt.Sprintf("%q is not a 6-digit code", code))
		}
		if seen[code] {
			return invalid("naics_codes", fmt.Sprintf("duplicate code %q", code))
		}
		seen[code] = true
	}
	if len(c.Capabilities) > maxCapabilitiesLen {
		return invalid("capabilities", fmt.Sprintf("exceeds %d characters", maxCapabilitiesLen))
	}
	if c.ContractValueMin != nil && *c.ContractValueMin < 0 {
		return invalid("contract_value_min", "must be non-negative")
	}
	if c.ContractValueMax != nil && *c.ContractValueMax < 0 {
		return invalid("contract_value_max", "must be non-negative")
	}
	if c.ContractValueMin != nil && c.ContractValueMax != nil && *c.ContractValueMin > *c.ContractValueMax {
		return invalid("contract_value_min", "must not exceed contract_value_max")
	}
	return nil
}

var opportunityStatuses = map[string]bool{
	StatusActive:    true,
	StatusExpired:   true,
	StatusAwarded:   true,
	StatusCancelled: true,
}

// Validate checks the minimal integrity rules for an opportunity. Normalize
// is total, so this only guards what the upsert path cannot tolerate.
func (o *Opportunity) Validate() error {
	if o.Source == "" {
		return invalid("source", "must not be empty")
	}
	if o.SourceID == "" {
		return invalid("source_id", "must not be empty")
	}
	if o.Status != "" && !opportunityStatuses[o.Status] {
		return invalid("status", fmt.Sprintf("unknown status %q", o.Status))
	}
	return nil
}

// ClampScore pins a score to [0, 100].
func ClampScore(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

// ClampScoreInt pins an integer score to [0, 100].
func ClampScoreInt(v int) int {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

// Truncate2 truncates a value to two decimal places, the precision stored
// on match-score rows.
func Truncate2(v float64) float64 {
	return math.Trunc(v*100) / 100
}
