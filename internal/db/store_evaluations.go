package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/david/bid-finder/internal/models"
)

const evalCols = `id, opportunity_id, company_id, fit_score, win_probability, confidence,
	recommendation, reasoning, executive_summary, strengths, weaknesses,
	estimated_profit, profit_margin_percentage, cost_breakdown,
	profile_version_at_evaluation, evaluated_at`

func scanEvaluation(scan func(dest ...interface{}) error) (models.Evaluation, error) {
	var e models.Evaluation
	err := scan(
		&e.ID, &e.OpportunityID, &e.CompanyID, &e.FitScore, &e.WinProbability, &e.Confidence,
		&e.Recommendation, &e.Reasoning, &e.ExecutiveSummary, &e.Strengths, &e.Weaknesses,
		&e.EstimatedProfit, &e.ProfitMarginPercentage, &e.CostBreakdown,
		&e.ProfileVersionAtEvaluation, &e.EvaluatedAt,
	)
	return e, err
}

// UpsertEvaluation writes the evaluation for its (opportunity, company) pair,
// overwriting any previous row. The returned row carries the persisted id and
// evaluated_at.
func (s *Store) UpsertEvaluation(ctx context.Context, e models.Evaluation) (models.Evaluation, error) {
	row := s.pool.QueryRow(ctx, `
		INSERT INTO evaluations (
			opportunity_id, company_id, fit_score, win_probability, confidence,
			recommendation, reasoning, executive_summary, strengths, weaknesses,
			estimated_profit, profit_margin_percentage, cost_breakdown,
			profile_version_at_evaluation
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)
		ON CONFLICT (opportunity_id, company_id) DO UPDATE SET
			fit_score = EXCLUDED.fit_score,
			win_probability = EXCLUDED.win_probability,
			confidence = EXCLUDED.confidence,
			recommendation = EXCLUDED.recommendation,
			reasoning = EXCLUDED.reasoning,
			executive_summary = EXCLUDED.executive_summary,
			strengths = EXCLUDED.strengths,
			weaknesses = EXCLUDED.weaknesses,
			estimated_profit = EXCLUDED.estimated_profit,
			profit_margin_percentage = EXCLUDED.profit_margin_percentage,
			cost_breakdown = EXCLUDED.cost_breakdown,
			profile_version_at_evaluation = EXCLUDED.profile_version_at_evaluation,
			evaluated_at = NOW()
		RETURNING `+evalCols,
		e.OpportunityID, e.CompanyID, e.FitScore, e.WinProbability, e.Confidence,
		e.Recommendation, e.Reasoning, e.ExecutiveSummary, e.Strengths, e.Weaknesses,
		e.EstimatedProfit, e.ProfitMarginPercentage, e.CostBreakdown,
		e.ProfileVersionAtEvaluation,
	)
	saved, err := scanEvaluation(row.Scan)
	if err != nil {
		return saved, fmt.Errorf("failed to upsert evaluation: %w", err)
	}
	return saved, nil
}

func (s *Store) GetEvaluation(ctx context.Context, opportunityID, companyID uuid.UUID) (models.Evaluation, error) {
	row := s.pool.QueryRow(ctx,
		"SELECT "+evalCols+" FROM evaluations WHERE opportunity_id = $1 AND company_id = $2",
		opportunityID, companyID)
	e, err := scanEvaluation(row.Scan)
	if errors.Is(err, pgx.ErrNoRows) {
		return e, ErrNotFound
	}
	if err != nil {
		return e, fmt.Errorf("failed to get evaluation: %w", err)
	}
	return e, nil
}

func (s *Store) GetEvaluationByID(ctx context.Context, id uuid.UUID) (models.Evaluation, error) {
	row := s.pool.QueryRow(ctx, "SELECT "+evalCols+" FROM evaluations WHERE id = $1", id)
	e, err := scanEvaluation(row.Scan)
	if errors.Is(err, pgx.ErrNoRows) {
		return e, ErrNotFound
	}
	if err != nil {
		return e, fmt.Errorf("failed to get evaluation: %w", err)
	}
	return e, nil
}

// StaleEvaluationCount counts evaluations written against an older profile
// version than the company currently carries. Staleness is derived at read
// time; nothing is flagged in storage.
func (s *Store) StaleEvaluationCount(ctx context.Context, companyID uuid.UUID) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM evaluations e
		JOIN companies c ON c.id = e.company_id
		WHERE e.company_id = $1 AND e.profile_version_at_evaluation < c.profile_version
	`, companyID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count stale evaluations: %w", err)
	}
	return n, nil
}

// ListStaleEvaluations returns stale evaluations for the company, oldest
// first, capped at limit (0 means no cap).
func (s *Store) ListStaleEvaluations(ctx context.Context, companyID uuid.UUID, limit int) ([]models.Evaluation, error) {
	query := `
		SELECT ` + prefixCols("e.", evalCols) + ` FROM evaluations e
		JOIN companies c ON c.id = e.company_id
		WHERE e.company_id = $1 AND e.profile_version_at_evaluation < c.profile_version
		ORDER BY e.evaluated_at ASC`
	args := []interface{}{companyID}
	if limit > 0 {
		query += " LIMIT $2"
		args = append(args, limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list stale evaluations: %w", err)
	}
	defer rows.Close()

	var out []models.Evaluation
	for rows.Next() {
		e, err := scanEvaluation(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("failed to scan evaluation: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
