package filter

import (
	"fmt"
	"time"

	"github.com/david/bid-finder/internal/models"
	"github.com/david/bid-finder/internal/sources"
)

// Filter names, reported on rejection and counted in batch stats.
const (
	FilterNAICS     = "naics"
	FilterDeadline  = "deadline"
	FilterValue     = "value_range"
	FilterSetAside  = "set_aside"
	FilterGeography = "geography"
	FilterEvaluated = "already_evaluated"
	FilterForecast  = "forecast"
	FilterMunicipal = "municipal_deadline"
)

// Result is a pass/fail decision with the failing filter and a reason.
type Result struct {
	Passed bool   `json:"passed"`
	Filter string `json:"filter,omitempty"`
	Reason string `json:"reason,omitempty"`
}

// Stats counts rejections per filter across a batch.
type Stats struct {
	Considered int            `json:"considered"`
	Passed     int            `json:"passed"`
	Rejected   map[string]int `json:"rejected"`
}

type Filter struct {
	// MinDaysToDeadline is the floor for federal opportunities. Municipal
	// sources use a fixed two-day floor regardless.
	MinDaysToDeadline int
	// ValueFlexibility widens the company's declared range by this multiplier
	// on both ends before rejecting on value.
	ValueFlexibility float64

	now func() time.Time
}

func New(minDays int, flexibility float64) *Filter {
	if minDays <= 0 {
		minDays = 7
	}
	if flexibility <= 0 {
		flexibility = 10.0
	}
	return &Filter{MinDaysToDeadline: minDays, ValueFlexibility: flexibility, now: time.Now}
}

// Check runs the structural filters in order and short-circuits on the first
// failure: automatic rejections, then NAICS, deadline, value range, set-aside
// certification, geography.
func (f *Filter) Check(company models.Company, opp models.Opportunity) Result {
	now := f.now()

	if opp.EvaluationStatus == models.EvalEvaluated {
		return reject(FilterEvaluated, "opportunity already evaluated")
	}
	if opp.IsForecast {
		return reject(FilterForecast, "forecasts are pipeline visibility only")
	}
	if sources.MunicipalSources[opp.Source] {
		if days, ok := opp.DaysToDeadline(now); ok && days < 2 {
			return reject(FilterMunicipal, "municipal deadline under two days")
		}
	}

	if r := f.checkNAICS(company, opp); !r.Passed {
		return r
	}
	if r := f.checkDeadline(opp, now); !r.Passed {
		return r
	}
	if r := f.checkValue(company, opp); !r.Passed {
		return r
	}
	if r := f.checkSetAside(company, opp); !r.Passed {
		return r
	}
	if r := f.checkGeography(company, opp); !r.Passed {
		return r
	}
	return Result{Passed: true}
}

// CheckBatch filters a slice, returning the survivors and per-filter
// rejection counts.
func (f *Filter) CheckBatch(company models.Company, opps []models.Opportunity) ([]models.Opportunity, Stats) {
	stats := Stats{Considered: len(opps), Rejected: map[string]int{}}
	var passed []models.Opportunity
	for _, opp := range opps {
		r := f.Check(company, opp)
		if r.Passed {
			passed = append(passed, opp)
			stats.Passed++
			continue
		}
		stats.Rejected[r.Filter]++
	}
	return passed, stats
}

func (f *Filter) checkNAICS(company models.Company, opp models.Opportunity) Result {
	if opp.NAICSCode == "" || len(company.NAICSCodes) == 0 {
		// Nothing to compare; let the scorer express the uncertainty.
		return Result{Passed: true}
	}
	for _, code := range company.NAICSCodes {
		if code == opp.NAICSCode {
			return Result{Passed: true}
		}
		if len(code) >= 4 && len(opp.NAICSCode) >= 4 && code[:4] == opp.NAICSCode[:4] {
			return Result{Passed: true}
		}
	}
	return reject(FilterNAICS, fmt.Sprintf("no NAICS overlap with %s", opp.NAICSCode))
}

func (f *Filter) checkDeadline(opp models.Opportunity, now time.Time) Result {
	days, ok := opp.DaysToDeadline(now)
	if !ok {
		return Result{Passed: true}
	}
	if days < 0 {
		return reject(FilterDeadline, "response deadline has passed")
	}
	if days < f.MinDaysToDeadline {
		return reject(FilterDeadline, fmt.Sprintf("only %d days to deadline", days))
	}
	return Result{Passed: true}
}

func (f *Filter) checkValue(company models.Company, opp models.Opportunity) Result {
	var value *float64
	if opp.EstimatedValueHigh != nil {
		value = opp.EstimatedValueHigh
	} else {
		value = opp.EstimatedValueLow
	}
	if value == nil || company.ContractValueMin == nil || company.ContractValueMax == nil {
		return Result{Passed: true}
	}
	lo := *company.ContractValueMin / f.ValueFlexibility
	hi := *company.ContractValueMax * f.ValueFlexibility
	if *value < lo || *value > hi {
		return reject(FilterValue, fmt.Sprintf("value %.0f outside flexible range %.0f-%.0f", *value, lo, hi))
	}
	return Result{Passed: true}
}

func (f *Filter) checkSetAside(company models.Company, opp models.Opportunity) Result {
	if opp.SetAsideType == nil || *opp.SetAsideType == "" {
		return Result{Passed: true}
	}
	required, known := models.RequiredCerts[*opp.SetAsideType]
	if !known || len(required) == 0 {
		return Result{Passed: true}
	}
	if company.HasAnyCert(required) {
		return Result{Passed: true}
	}
	return reject(FilterSetAside, fmt.Sprintf("missing certification for %s set-aside", *opp.SetAsideType))
}

func (f *Filter) checkGeography(company models.Company, opp models.Opportunity) Result {
	if opp.PlaceState == "" || len(company.GeographicPreferences) == 0 {
		return Result{Passed: true}
	}
	if company.CoversState(opp.PlaceState) {
		return Result{Passed: true}
	}
	return reject(FilterGeography, fmt.Sprintf("%s outside geographic preferences", opp.PlaceState))
}

func reject(filter, reason string) Result {
	return Result{Filter: filter, Reason: reason}
}
