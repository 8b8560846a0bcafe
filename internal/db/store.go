package db

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/david/bid-finder/internal/models"
)

// ErrNotFound is returned by lookups that match no row.
var ErrNotFound = errors.New("not found")

type Store struct {
	pool *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// UpsertOutcome classifies what an upsert did to the row.
type UpsertOutcome string

const (
	OutcomeNew       UpsertOutcome = "new"
	OutcomeUpdated   UpsertOutcome = "updated"
	OutcomeUnchanged UpsertOutcome = "unchanged"
)

const oppCols = `id, source, source_id, title, description, agency, naics_code,
	set_aside_type, place_city, place_state, place_zip, posted_date, response_deadline,
	estimated_value_low, estimated_value_high, contact_name, contact_email, contact_phone,
	status, is_forecast, is_placeholder, source_url, evaluation_status,
	generic_evaluation, raw_data, created_at, updated_at`

// prefixCols qualifies each column in a comma-separated list with a table
// alias, for queries that join.
func prefixCols(prefix, cols string) string {
	parts := strings.Split(cols, ",")
	for i, p := range parts {
		parts[i] = prefix + strings.TrimSpace(p)
	}
	return strings.Join(parts, ", ")
}

func scanOpportunity(scan func(dest ...interface{}) error) (models.Opportunity, error) {
	var o models.Opportunity
	err := scan(
		&o.ID, &o.Source, &o.SourceID, &o.Title, &o.Description, &o.Agency, &o.NAICSCode,
		&o.SetAsideType, &o.PlaceCity, &o.PlaceState, &o.PlaceZip, &o.PostedDate, &o.ResponseDeadline,
		&o.EstimatedValueLow, &o.EstimatedValueHigh, &o.ContactName, &o.ContactEmail, &o.ContactPhone,
		&o.Status, &o.IsForecast, &o.IsPlaceholder, &o.SourceURL, &o.EvaluationStatus,
		&o.GenericEvaluation, &o.RawData, &o.CreatedAt, &o.UpdatedAt,
	)
	return o, err
}

// oppChangeCols are the normalized fields whose change makes a refresh count
// as an update. Every column written by the upsert (except the bookkeeping
// ones) must be listed here, or a refresh touching only that field is
// silently skipped.
var oppChangeCols = []string{
	"title", "description", "agency", "naics_code", "set_aside_type",
	"place_city", "place_state", "place_zip", "posted_date", "response_deadline",
	"estimated_value_low", "estimated_value_high",
	"contact_name", "contact_email", "contact_phone",
	"status", "is_forecast", "is_placeholder", "source_url",
}

func changeTuple(prefix string) string {
	parts := make([]string, len(oppChangeCols))
	for i, c := range oppChangeCols {
		parts[i] = prefix + c
	}
	return "(" + strings.Join(parts, ", ") + ")"
}

func upsertOpportunitySQL() string {
	return `
		INSERT INTO opportunities (
			source, source_id, title, description, agency, naics_code,
			set_aside_type, place_city, place_state, place_zip, posted_date, response_deadline,
			estimated_value_low, estimated_value_high, contact_name, contact_email, contact_phone,
			status, is_forecast, is_placeholder, source_url, raw_data, embedding
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,$22,$23)
		ON CONFLICT (source, source_id) DO UPDATE SET
			title = EXCLUDED.title,
			description = EXCLUDED.description,
			agency = EXCLUDED.agency,
			naics_code = EXCLUDED.naics_code,
			set_aside_type = EXCLUDED.set_aside_type,
			place_city = EXCLUDED.place_city,
			place_state = EXCLUDED.place_state,
			place_zip = EXCLUDED.place_zip,
			posted_date = EXCLUDED.posted_date,
			response_deadline = EXCLUDED.response_deadline,
			estimated_value_low = EXCLUDED.estimated_value_low,
			estimated_value_high = EXCLUDED.estimated_value_high,
			contact_name = EXCLUDED.contact_name,
			contact_email = EXCLUDED.contact_email,
			contact_phone = EXCLUDED.contact_phone,
			status = EXCLUDED.status,
			is_forecast = EXCLUDED.is_forecast,
			is_placeholder = EXCLUDED.is_placeholder,
			source_url = EXCLUDED.source_url,
			raw_data = EXCLUDED.raw_data,
			embedding = COALESCE(EXCLUDED.embedding, opportunities.embedding),
			updated_at = NOW()
		WHERE (NOT EXCLUDED.is_placeholder OR opportunities.is_placeholder)
		  AND ` + changeTuple("opportunities.") + `
		      IS DISTINCT FROM
		      ` + changeTuple("EXCLUDED.") + `
		RETURNING id, (xmax = 0)
	`
}

// UpsertOpportunity inserts the opportunity or refreshes the existing row
// keyed by (source, source_id). The outcome distinguishes a brand new row,
// a changed row, and a no-op refresh. A placeholder record never overwrites
// a row that already carries real data.
func (s *Store) UpsertOpportunity(ctx context.Context, o models.Opportunity) (uuid.UUID, UpsertOutcome, error) {
	var embedding interface{}
	if len(o.Embedding) > 0 {
		embedding = pgvector.NewVector(o.Embedding)
	}

	var id uuid.UUID
	var inserted bool
	err := s.pool.QueryRow(ctx, upsertOpportunitySQL(),
		o.Source, o.SourceID, o.Title, o.Description, o.Agency, o.NAICSCode,
		o.SetAsideType, o.PlaceCity, o.PlaceState, o.PlaceZip, o.PostedDate, o.ResponseDeadline,
		o.EstimatedValueLow, o.EstimatedValueHigh, o.ContactName, o.ContactEmail, o.ContactPhone,
		o.Status, o.IsForecast, o.IsPlaceholder, o.SourceURL, o.RawData, embedding,
	).Scan(&id, &inserted)

	if errors.Is(err, pgx.ErrNoRows) {
		// The conflict target matched but nothing changed (or a placeholder
		// tried to overwrite real data). Look up the existing id.
		err = s.pool.QueryRow(ctx,
			"SELECT id FROM opportunities WHERE source = $1 AND source_id = $2",
			o.Source, o.SourceID,
		).Scan(&id)
		if err != nil {
			return uuid.Nil, "", fmt.Errorf("failed to resolve unchanged opportunity: %w", err)
		}
		return id, OutcomeUnchanged, nil
	}
	if err != nil {
		return uuid.Nil, "", fmt.Errorf("failed to upsert opportunity %s: %w", o.DedupKey(), err)
	}
	if inserted {
		return id, OutcomeNew, nil
	}
	return id, OutcomeUpdated, nil
}

func (s *Store) GetOpportunity(ctx context.Context, id uuid.UUID) (models.Opportunity, error) {
	row := s.pool.QueryRow(ctx, "SELECT "+oppCols+" FROM opportunities WHERE id = $1", id)
	o, err := scanOpportunity(row.Scan)
	if errors.Is(err, pgx.ErrNoRows) {
		return o, ErrNotFound
	}
	if err != nil {
		return o, fmt.Errorf("failed to get opportunity: %w", err)
	}
	return o, nil
}

func listActiveByNAICSSQL(limit int) string {
	query := `
		SELECT ` + oppCols + ` FROM opportunities
		WHERE status = 'active' AND NOT is_placeholder AND naics_code = ANY($1)
		ORDER BY posted_date DESC NULLS LAST`
	if limit > 0 {
		query += " LIMIT $2"
	}
	return query
}

// ListActiveByNAICS returns active, non-placeholder opportunities matching any
// of the company's NAICS codes, newest first, capped at limit (0 means no
// cap). The ingestion pipeline passes 0: every active match must be scored.
func (s *Store) ListActiveByNAICS(ctx context.Context, naicsCodes []string, limit int) ([]models.Opportunity, error) {
	args := []interface{}{naicsCodes}
	if limit > 0 {
		args = append(args, limit)
	}
	rows, err := s.pool.Query(ctx, listActiveByNAICSSQL(limit), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list opportunities: %w", err)
	}
	defer rows.Close()

	var out []models.Opportunity
	for rows.Next() {
		o, err := scanOpportunity(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("failed to scan opportunity: %w", err)
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

// FreshestUpdatedAt returns the most recent updated_at among the source's
// rows matching the NAICS set, or nil when nothing matches. An empty set
// matches every row from the source.
func (s *Store) FreshestUpdatedAt(ctx context.Context, source string, naicsCodes []string) (*time.Time, error) {
	var ts *time.Time
	err := s.pool.QueryRow(ctx, `
		SELECT MAX(updated_at) FROM opportunities
		WHERE source = $1 AND (cardinality($2::text[]) = 0 OR naics_code = ANY($2))
	`, source, naicsCodes).Scan(&ts)
	if err != nil {
		return nil, fmt.Errorf("failed to read freshness for %s: %w", source, err)
	}
	return ts, nil
}

// ExpireStale flips active opportunities whose deadline has passed to expired.
func (s *Store) ExpireStale(ctx context.Context, now time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx, `
		UPDATE opportunities SET status = 'expired', updated_at = NOW()
		WHERE status = 'active' AND response_deadline IS NOT NULL AND response_deadline < $1
	`, now)
	if err != nil {
		return 0, fmt.Errorf("failed to expire opportunities: %w", err)
	}
	return tag.RowsAffected(), nil
}

// SetGenericEvaluation stores the company-agnostic triage result and marks the
// opportunity evaluated.
func (s *Store) SetGenericEvaluation(ctx context.Context, id uuid.UUID, eval map[string]interface{}) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE opportunities SET generic_evaluation = $2, evaluation_status = $3, updated_at = NOW()
		WHERE id = $1
	`, id, eval, models.EvalEvaluated)
	if err != nil {
		return fmt.Errorf("failed to store generic evaluation: %w", err)
	}
	return nil
}

func (s *Store) SetEvaluationStatus(ctx context.Context, id uuid.UUID, status string) error {
	_, err := s.pool.Exec(ctx,
		"UPDATE opportunities SET evaluation_status = $2, updated_at = NOW() WHERE id = $1",
		id, status)
	if err != nil {
		return fmt.Errorf("failed to set evaluation status: %w", err)
	}
	return nil
}

func (s *Store) SetEmbedding(ctx context.Context, id uuid.UUID, embedding []float32) error {
	_, err := s.pool.Exec(ctx,
		"UPDATE opportunities SET embedding = $2 WHERE id = $1",
		id, pgvector.NewVector(embedding))
	if err != nil {
		return fmt.Errorf("failed to set embedding: %w", err)
	}
	return nil
}
