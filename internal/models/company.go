package models

import (
	"time"

	"github.com/google/uuid"
)

// Certification tags recognized by the scorer and filter. Unknown tags are
// stored as-is but never participate in scoring.
var KnownSetAsides = []string{
	"8(a)", "WOSB", "EDWOSB", "SDVOSB", "VOSB", "HUBZone", "Small Business",
}

// RequiredCerts maps an opportunity's set-aside type to the certifications
// that satisfy it. "Small Business" is open to any small business.
var RequiredCerts = map[string][]string{
	"8(a)":           {"8(a)"},
	"WOSB":           {"WOSB", "EDWOSB"},
	"SDVOSB":         {"SDVOSB"},
	"VOSB":           {"VOSB", "SDVOSB"},
	"HUBZone":        {"HUBZone"},
	"Small Business": {},
}

// Nationwide is the reserved geographic wildcard.
const Nationwide = "Nationwide"

type Company struct {
	ID                    uuid.UUID  `json:"id"`
	Name                  string     `json:"name"`
	LegalStructure        string     `json:"legal_structure"`
	AddressLine           string     `json:"address_line"`
	City                  string     `json:"city"`
	State                 string     `json:"state"`
	Zip                   string     `json:"zip"`
	UEI                   string     `json:"uei"`
	NAICSCodes            []string   `json:"naics_codes"`
	SetAsides             []string   `json:"set_asides"`
	Capabilities          string     `json:"capabilities"`
	ContractValueMin      *float64   `json:"contract_value_min"`
	ContractValueMax      *float64   `json:"contract_value_max"`
	GeographicPreferences []string   `json:"geographic_preferences"`
	ProfileVersion        int        `json:"profile_version"`
	CreatedAt             time.Time  `json:"created_at"`
	UpdatedAt             time.Time  `json:"updated_at"`
}

// HasCert reports whether the company holds the given certification tag.
func (c Company) HasCert(tag string) bool {
	for _, s := range c.SetAsides {
		if s == tag {
			return true
		}
	}
	return false
}

// HasAnyCert reports whether the company holds at least one of the tags.
func (c Company) HasAnyCert(tags []string) bool {
	for _, t := range tags {
		if c.HasCert(t) {
			return true
		}
	}
	return false
}

// CoversState reports whether the company's geographic preferences include
// the state, either explicitly or via the Nationwide wildcard.
func (c Company) CoversState(state string) bool {
	for _, p := range c.GeographicPreferences {
		if p == Nationwide || p == state {
			return true
		}
	}
	return false
}
