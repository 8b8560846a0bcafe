package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/david/bid-finder/internal/models"
)

const scoreCols = `id, company_id, opportunity_id, fit_score, naics_score, cert_score,
	size_score, geo_score, deadline_score, computed_at`

func scanMatchScore(scan func(dest ...interface{}) error) (models.MatchScore, error) {
	var m models.MatchScore
	err := scan(
		&m.ID, &m.CompanyID, &m.OpportunityID, &m.FitScore, &m.NAICSScore, &m.CertScore,
		&m.SizeScore, &m.GeoScore, &m.DeadlineScore, &m.ComputedAt,
	)
	return m, err
}

// UpsertMatchScore idempotently overwrites the cached score vector for the
// (company, opportunity) pair.
func (s *Store) UpsertMatchScore(ctx context.Context, m models.MatchScore) (models.MatchScore, error) {
	row := s.pool.QueryRow(ctx, `
		INSERT INTO match_scores (
			company_id, opportunity_id, fit_score, naics_score, cert_score,
			size_score, geo_score, deadline_score
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		ON CONFLICT (company_id, opportunity_id) DO UPDATE SET
			fit_score = EXCLUDED.fit_score,
			naics_score = EXCLUDED.naics_score,
			cert_score = EXCLUDED.cert_score,
			size_score = EXCLUDED.size_score,
			geo_score = EXCLUDED.geo_score,
			deadline_score = EXCLUDED.deadline_score,
			computed_at = NOW()
		RETURNING `+scoreCols,
		m.CompanyID, m.OpportunityID, m.FitScore, m.NAICSScore, m.CertScore,
		m.SizeScore, m.GeoScore, m.DeadlineScore,
	)
	saved, err := scanMatchScore(row.Scan)
	if err != nil {
		return saved, fmt.Errorf("failed to upsert match score: %w", err)
	}
	return saved, nil
}

func (s *Store) GetMatchScore(ctx context.Context, companyID, opportunityID uuid.UUID) (models.MatchScore, error) {
	row := s.pool.QueryRow(ctx,
		"SELECT "+scoreCols+" FROM match_scores WHERE company_id = $1 AND opportunity_id = $2",
		companyID, opportunityID)
	m, err := scanMatchScore(row.Scan)
	if errors.Is(err, pgx.ErrNoRows) {
		return m, ErrNotFound
	}
	if err != nil {
		return m, fmt.Errorf("failed to get match score: %w", err)
	}
	return m, nil
}
