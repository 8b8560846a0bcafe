package models

import (
	"time"

	"github.com/google/uuid"
)

// DiscoveryRun statuses.
const (
	RunRunning   = "running"
	RunCompleted = "completed"
	RunPartial   = "partial"
	RunFailed    = "failed"
)

// DiscoveryRun is the audit record for one ingestion.
type DiscoveryRun struct {
	ID                 uuid.UUID  `json:"id"`
	CompanyID          uuid.UUID  `json:"company_id"`
	Status             string     `json:"status"`
	NAICSCodes         []string   `json:"naics_codes"`
	DateFrom           *time.Time `json:"date_from"`
	DateTo             *time.Time `json:"date_to"`
	APICalls           int        `json:"api_calls"`
	Found              int        `json:"found"`
	New                int        `json:"new"`
	Updated            int        `json:"updated"`
	Unchanged          int        `json:"unchanged"`
	EvaluationsCreated int        `json:"evaluations_created"`
	ErrorCount         int        `json:"error_count"`
	Errors             []string   `json:"errors,omitempty"`
	StartedAt          time.Time  `json:"started_at"`
	CompletedAt        *time.Time `json:"completed_at"`
}
