package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"github.com/david/bid-finder/internal/db"
	"github.com/david/bid-finder/internal/filter"
	"github.com/david/bid-finder/internal/ingest"
	"github.com/david/bid-finder/internal/models"
	"github.com/david/bid-finder/internal/rescore"
	"github.com/david/bid-finder/internal/scoring"
	"github.com/david/bid-finder/internal/sources"
)

type Server struct {
	Echo        *echo.Echo
	Store       *db.Store
	Coordinator *ingest.Coordinator
	Scorer      *scoring.Scorer
	Filter      *filter.Filter
	Evaluator   Evaluator
	Rescore     *rescore.Service
	Log         *zap.Logger
}

// Evaluator mirrors the coordinator's evaluation contract for direct calls.
type Evaluator interface {
	Evaluate(ctx context.Context, company models.Company, opp models.Opportunity) (models.Evaluation, bool, error)
}

func NewServer(store *db.Store, coordinator *ingest.Coordinator, scorer *scoring.Scorer, flt *filter.Filter, evaluator Evaluator, rescoreSvc *rescore.Service, log *zap.Logger) *Server {
	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())

	s := &Server{
		Echo:        e,
		Store:       store,
		Coordinator: coordinator,
		Scorer:      scorer,
		Filter:      flt,
		Evaluator:   evaluator,
		Rescore:     rescoreSvc,
		Log:         log,
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.Echo.GET("/health", s.handleHealth)

	v1 := s.Echo.Group("/api/v1")
	v1.POST("/companies", s.handleCreateCompany)
	v1.GET("/companies/:id", s.handleGetCompany)
	v1.PUT("/companies/:id", s.handleUpdateCompany)
	v1.POST("/companies/:id/ingest", s.handleIngest)
	v1.GET("/companies/:id/stale-count", s.handleStaleCount)
	v1.POST("/companies/:id/rescore", s.handleRescoreAll)
	v1.GET("/companies/:company_id/opportunities/:id/score", s.handleScore)
	v1.POST("/companies/:company_id/opportunities/:id/evaluate", s.handleEvaluate)
	v1.POST("/evaluations/:id/refresh", s.handleRefreshEvaluation)
	v1.GET("/opportunities/:id", s.handleGetOpportunity)
	v1.GET("/runs", s.handleListRuns)
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

// httpError maps internal errors to status codes: validation 400, missing
// rows 404, unavailable sources 503.
func httpError(err error) error {
	var ve *models.ValidationError
	if errors.As(err, &ve) {
		return echo.NewHTTPError(http.StatusBadRequest, ve.Error())
	}
	if errors.Is(err, db.ErrNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, "not found")
	}
	var te *sources.TransientSourceError
	if errors.As(err, &te) || sources.IsRateLimited(err) {
		return echo.NewHTTPError(http.StatusServiceUnavailable, err.Error())
	}
	return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
}

func parseID(c echo.Context, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusBadRequest, "invalid "+name)
	}
	return id, nil
}
