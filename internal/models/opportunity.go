package models

import (
	"time"

	"github.com/google/uuid"
)

// Opportunity statuses.
const (
	StatusActive    = "active"
	StatusExpired   = "expired"
	StatusAwarded   = "awarded"
	StatusCancelled = "cancelled"
)

// States for the company-agnostic evaluation tracked on the opportunity row.
const (
	EvalPending   = "pending"
	EvalEvaluated = "evaluated"
	EvalSkipped   = "skipped"
)

type Opportunity struct {
	ID                 uuid.UUID              `json:"id"`
	Source             string                 `json:"source"`
	SourceID           string                 `json:"source_id"`
	Title              string                 `json:"title"`
	Description        string                 `json:"description"`
	Agency             string                 `json:"agency"`
	NAICSCode          string                 `json:"naics_code"`
	SetAsideType       *string                `json:"set_aside_type"`
	PlaceCity          string                 `json:"place_city"`
	PlaceState         string                 `json:"place_state"` // 2-char code
	PlaceZip           string                 `json:"place_zip"`
	PostedDate         *time.Time             `json:"posted_date"`
	ResponseDeadline   *time.Time             `json:"response_deadline"`
	EstimatedValueLow  *float64               `json:"estimated_value_low"`
	EstimatedValueHigh *float64               `json:"estimated_value_high"`
	ContactName        string                 `json:"contact_name"`
	ContactEmail       string                 `json:"contact_email"`
	ContactPhone       string                 `json:"contact_phone"`
	Status             string                 `json:"status"`
	IsForecast         bool                   `json:"is_forecast"`
	IsPlaceholder      bool                   `json:"is_placeholder"`
	SourceURL          string                 `json:"source_url"`
	EvaluationStatus   string                 `json:"evaluation_status"`
	GenericEvaluation  map[string]interface{} `json:"generic_evaluation,omitempty"`
	RawData            map[string]interface{} `json:"raw_data,omitempty"`
	Embedding          []float32              `json:"-"`
	CreatedAt          time.Time              `json:"created_at"`
	UpdatedAt          time.Time              `json:"updated_at"`
}

// DedupKey identifies an opportunity across refreshes of the same source.
func (o Opportunity) DedupKey() string {
	return o.Source + "|" + o.SourceID
}

// Expired reports whether the response deadline has passed.
func (o Opportunity) Expired(now time.Time) bool {
	return o.ResponseDeadline != nil && o.ResponseDeadline.Before(now)
}

// DaysToDeadline returns the whole days remaining, negative when past.
// The boolean is false when no deadline is known.
func (o Opportunity) DaysToDeadline(now time.Time) (int, bool) {
	if o.ResponseDeadline == nil {
		return 0, false
	}
	return int(o.ResponseDeadline.Sub(now).Hours() / 24), true
}
