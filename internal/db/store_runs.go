package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/david/bid-finder/internal/models"
)

const runCols = `id, company_id, status, naics_codes, date_from, date_to,
	api_calls, found, new, updated, unchanged, evaluations_created,
	error_count, errors, started_at, completed_at`

func scanRun(scan func(dest ...interface{}) error) (models.DiscoveryRun, error) {
	var r models.DiscoveryRun
	err := scan(
		&r.ID, &r.CompanyID, &r.Status, &r.NAICSCodes, &r.DateFrom, &r.DateTo,
		&r.APICalls, &r.Found, &r.New, &r.Updated, &r.Unchanged, &r.EvaluationsCreated,
		&r.ErrorCount, &r.Errors, &r.StartedAt, &r.CompletedAt,
	)
	return r, err
}

// CreateRun opens a discovery run in the running state.
func (s *Store) CreateRun(ctx context.Context, companyID uuid.UUID, naicsCodes []string) (models.DiscoveryRun, error) {
	row := s.pool.QueryRow(ctx, `
		INSERT INTO discovery_runs (company_id, status, naics_codes)
		VALUES ($1, $2, $3)
		RETURNING `+runCols,
		companyID, models.RunRunning, naicsCodes)
	r, err := scanRun(row.Scan)
	if err != nil {
		return r, fmt.Errorf("failed to create discovery run: %w", err)
	}
	return r, nil
}

// FinishRun writes the final counters, error envelope and terminal status.
func (s *Store) FinishRun(ctx context.Context, r models.DiscoveryRun) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE discovery_runs SET
			status = $2, date_from = $3, date_to = $4,
			api_calls = $5, found = $6, new = $7, updated = $8, unchanged = $9,
			evaluations_created = $10, error_count = $11, errors = $12,
			completed_at = NOW()
		WHERE id = $1
	`, r.ID, r.Status, r.DateFrom, r.DateTo,
		r.APICalls, r.Found, r.New, r.Updated, r.Unchanged,
		r.EvaluationsCreated, r.ErrorCount, r.Errors)
	if err != nil {
		return fmt.Errorf("failed to finish discovery run: %w", err)
	}
	return nil
}

func (s *Store) GetRun(ctx context.Context, id uuid.UUID) (models.DiscoveryRun, error) {
	row := s.pool.QueryRow(ctx, "SELECT "+runCols+" FROM discovery_runs WHERE id = $1", id)
	r, err := scanRun(row.Scan)
	if errors.Is(err, pgx.ErrNoRows) {
		return r, ErrNotFound
	}
	if err != nil {
		return r, fmt.Errorf("failed to get discovery run: %w", err)
	}
	return r, nil
}

// ListRuns returns the most recent runs, newest first.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]models.DiscoveryRun, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.pool.Query(ctx,
		"SELECT "+runCols+" FROM discovery_runs ORDER BY started_at DESC LIMIT $1", limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list discovery runs: %w", err)
	}
	defer rows.Close()

	var out []models.DiscoveryRun
	for rows.Next() {
		r, err := scanRun(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("failed to scan discovery run: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
