package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/david/bid-finder/internal/db"
	"github.com/david/bid-finder/internal/models"
)

func (s *Server) handleCreateCompany(c echo.Context) error {
	var company models.Company
	if err := c.Bind(&company); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}
	if err := company.Validate(); err != nil {
		return httpError(err)
	}
	created, err := s.Store.CreateCompany(c.Request().Context(), company)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, created)
}

func (s *Server) handleGetCompany(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	company, err := s.Store.GetCompany(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, company)
}

// handleUpdateCompany persists profile edits. The store bumps
// profile_version only when a scoring-relevant field changed, which is what
// marks existing evaluations stale.
func (s *Server) handleUpdateCompany(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	var company models.Company
	if err := c.Bind(&company); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}
	company.ID = id
	if err := company.Validate(); err != nil {
		return httpError(err)
	}
	updated, err := s.Store.UpdateCompany(c.Request().Context(), company)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, updated)
}

func (s *Server) handleIngest(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	force, _ := strconv.ParseBool(c.QueryParam("force"))

	run, err := s.Coordinator.Ingest(c.Request().Context(), id, force)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return httpError(err)
		}
		// The run row exists even on failure; return both.
		s.Log.Warn("ingest failed", zap.String("company", id.String()), zap.Error(err))
		return c.JSON(http.StatusServiceUnavailable, map[string]interface{}{
			"run":   run,
			"error": err.Error(),
		})
	}
	return c.JSON(http.StatusOK, run)
}

func (s *Server) handleScore(c echo.Context) error {
	companyID, err := parseID(c, "company_id")
	if err != nil {
		return err
	}
	oppID, err := parseID(c, "id")
	if err != nil {
		return err
	}

	ctx := c.Request().Context()
	company, err := s.Store.GetCompany(ctx, companyID)
	if err != nil {
		return httpError(err)
	}
	opp, err := s.Store.GetOpportunity(ctx, oppID)
	if err != nil {
		return httpError(err)
	}

	score, err := s.Scorer.Score(ctx, company, opp)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, score)
}

// handleEvaluate returns the existing evaluation when one exists, otherwise
// runs the filter and, for survivors, the LLM. A filter rejection is a
// successful response carrying the rejection, not an error.
func (s *Server) handleEvaluate(c echo.Context) error {
	companyID, err := parseID(c, "company_id")
	if err != nil {
		return err
	}
	oppID, err := parseID(c, "id")
	if err != nil {
		return err
	}

	ctx := c.Request().Context()
	existing, err := s.Store.GetEvaluation(ctx, oppID, companyID)
	if err == nil {
		return c.JSON(http.StatusOK, existing)
	}
	if !errors.Is(err, db.ErrNotFound) {
		return httpError(err)
	}

	company, err := s.Store.GetCompany(ctx, companyID)
	if err != nil {
		return httpError(err)
	}
	opp, err := s.Store.GetOpportunity(ctx, oppID)
	if err != nil {
		return httpError(err)
	}

	if r := s.Filter.Check(company, opp); !r.Passed {
		return c.JSON(http.StatusOK, map[string]interface{}{
			"filtered": true,
			"filter":   r.Filter,
			"reason":   r.Reason,
		})
	}

	eval, _, err := s.Evaluator.Evaluate(ctx, company, opp)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, eval)
}

func (s *Server) handleStaleCount(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	n, err := s.Rescore.StaleCount(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, map[string]int{"stale_count": n})
}

func (s *Server) handleRefreshEvaluation(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	eval, err := s.Rescore.RefreshEvaluation(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, eval)
}

func (s *Server) handleRescoreAll(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	report, err := s.Rescore.RescoreAll(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, report)
}

func (s *Server) handleGetOpportunity(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	opp, err := s.Store.GetOpportunity(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, opp)
}

func (s *Server) handleListRuns(c echo.Context) error {
	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	runs, err := s.Store.ListRuns(c.Request().Context(), limit)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"runs": runs, "count": len(runs)})
}
