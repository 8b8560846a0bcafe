package rescore

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/david/bid-finder/internal/models"
)

// Store is the slice of the database layer the protocol reads and writes.
type Store interface {
	GetCompany(ctx context.Context, id uuid.UUID) (models.Company, error)
	GetOpportunity(ctx context.Context, id uuid.UUID) (models.Opportunity, error)
	GetEvaluationByID(ctx context.Context, id uuid.UUID) (models.Evaluation, error)
	StaleEvaluationCount(ctx context.Context, companyID uuid.UUID) (int, error)
	ListStaleEvaluations(ctx context.Context, companyID uuid.UUID, limit int) ([]models.Evaluation, error)
	IncrementProfileVersion(ctx context.Context, id uuid.UUID) (int, error)
}

// Evaluator re-runs the LLM evaluation for a pair.
type Evaluator interface {
	Evaluate(ctx context.Context, company models.Company, opp models.Opportunity) (models.Evaluation, bool, error)
}

// Scorer recomputes the cached match-score vector.
type Scorer interface {
	Rescore(ctx context.Context, company models.Company, opp models.Opportunity) (models.MatchScore, error)
}

// Report summarizes a bulk refresh.
type Report struct {
	Rescored int `json:"rescored"`
	Errors   int `json:"errors"`
	Total    int `json:"total"`
}

type Service struct {
	store       Store
	evaluator   Evaluator
	scorer      Scorer
	maxPerBatch int
	log         *zap.Logger
}

// New builds the service. maxPerBatch of zero means no cap on bulk refreshes.
func New(store Store, evaluator Evaluator, scorer Scorer, maxPerBatch int, log *zap.Logger) *Service {
	return &Service{store: store, evaluator: evaluator, scorer: scorer, maxPerBatch: maxPerBatch, log: log}
}

// StaleCount reports how many of the company's evaluations predate its
// current profile version.
func (s *Service) StaleCount(ctx context.Context, companyID uuid.UUID) (int, error) {
	return s.store.StaleEvaluationCount(ctx, companyID)
}

// IncrementProfileVersion bumps the company's version, invalidating every
// existing evaluation at once. Callers that edit scoring-relevant profile
// fields out of band go through here.
func (s *Service) IncrementProfileVersion(ctx context.Context, companyID uuid.UUID) (int, error) {
	return s.store.IncrementProfileVersion(ctx, companyID)
}

// RefreshEvaluation re-runs the evaluation against the company's current
// profile. The match-score vector is recomputed alongside so the cached
// score reflects the same profile the evaluation was stamped with.
func (s *Service) RefreshEvaluation(ctx context.Context, evaluationID uuid.UUID) (models.Evaluation, error) {
	eval, err := s.store.GetEvaluationByID(ctx, evaluationID)
	if err != nil {
		return models.Evaluation{}, err
	}
	company, err := s.store.GetCompany(ctx, eval.CompanyID)
	if err != nil {
		return models.Evaluation{}, err
	}
	opp, err := s.store.GetOpportunity(ctx, eval.OpportunityID)
	if err != nil {
		return models.Evaluation{}, err
	}

	if _, err := s.scorer.Rescore(ctx, company, opp); err != nil {
		s.log.Warn("match score refresh failed", zap.String("evaluation", evaluationID.String()), zap.Error(err))
	}

	refreshed, _, err := s.evaluator.Evaluate(ctx, company, opp)
	if err != nil {
		return models.Evaluation{}, err
	}
	return refreshed, nil
}

// RescoreAll refreshes the company's stale evaluations, oldest first. A
// failing refresh is counted and skipped; it never aborts the batch.
func (s *Service) RescoreAll(ctx context.Context, companyID uuid.UUID) (Report, error) {
	total, err := s.store.StaleEvaluationCount(ctx, companyID)
	if err != nil {
		return Report{}, err
	}
	report := Report{Total: total}

	stale, err := s.store.ListStaleEvaluations(ctx, companyID, s.maxPerBatch)
	if err != nil {
		return report, err
	}

	for _, eval := range stale {
		if _, err := s.RefreshEvaluation(ctx, eval.ID); err != nil {
			report.Errors++
			s.log.Warn("refresh failed",
				zap.String("evaluation", eval.ID.String()), zap.Error(err))
			continue
		}
		report.Rescored++
	}

	s.log.Info("bulk rescore finished",
		zap.String("company", companyID.String()),
		zap.Int("rescored", report.Rescored),
		zap.Int("errors", report.Errors),
		zap.Int("total", report.Total))
	return report, nil
}
