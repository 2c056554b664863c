package v1

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/Art-of-X/sparkworks/internal/service"
)

// StartRun starts a new run for a project. The pipeline runs detached; the
// response carries only the run id.
// POST /v1/projects/:project_id/runs
func (h *Handler) StartRun(c echo.Context) error {
	run, err := h.service.StartRun(c.Request().Context(), c.Param("project_id"), userID(c))
	if err != nil {
		switch {
		case errors.Is(err, service.ErrProjectNotFound):
			return c.JSON(http.StatusNotFound, map[string]string{"error": "project not found"})
		case errors.Is(err, service.ErrNoTaskOrSparks):
			return c.JSON(http.StatusUnprocessableEntity, map[string]string{"error": "project has no task or no sparks"})
		case errors.Is(err, service.ErrQuotaExceeded):
			return c.JSON(http.StatusTooManyRequests, map[string]string{"error": "run quota exceeded"})
		default:
			return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
		}
	}
	return c.JSON(http.StatusCreated, map[string]string{
		"run_id": run.RunID,
	})
}

// CancelRun cancels the most recent running run of a project.
// POST /v1/projects/:project_id/runs/cancel
func (h *Handler) CancelRun(c echo.Context) error {
	run, err := h.service.CancelRun(c.Request().Context(), c.Param("project_id"), userID(c))
	if err != nil {
		switch {
		case errors.Is(err, service.ErrProjectNotFound):
			return c.JSON(http.StatusNotFound, map[string]string{"error": "project not found"})
		case errors.Is(err, service.ErrNoActiveRun):
			return c.JSON(http.StatusNotFound, map[string]string{"error": "no active run"})
		default:
			return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
		}
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"ok":     true,
		"run_id": run.RunID,
	})
}

// GetActiveRun returns the most recent running run, or nulls if none.
// GET /v1/projects/:project_id/runs/active
func (h *Handler) GetActiveRun(c echo.Context) error {
	run, err := h.service.GetActiveRun(c.Request().Context(), c.Param("project_id"), userID(c))
	if err != nil {
		if errors.Is(err, service.ErrProjectNotFound) {
			return c.JSON(http.StatusNotFound, map[string]string{"error": "project not found"})
		}
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
	if run == nil {
		return c.JSON(http.StatusOK, map[string]interface{}{
			"run_id": nil,
			"status": nil,
		})
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"run_id": run.RunID,
		"status": run.Status,
	})
}

// GetRunEvents retrieves events for a run.
// GET /v1/runs/:run_id/events
func (h *Handler) GetRunEvents(c echo.Context) error {
	runID := c.Param("run_id")
	limit := 100
	if l := c.QueryParam("limit"); l != "" {
		if val, err := strconv.Atoi(l); err == nil {
			limit = val
		}
	}
	afterSeq := int64(0)
	if a := c.QueryParam("after_seq"); a != "" {
		if val, err := strconv.ParseInt(a, 10, 64); err == nil {
			afterSeq = val
		}
	}

	ctx := c.Request().Context()
	run, err := h.service.GetRun(ctx, runID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
	if run == nil {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "run not found"})
	}

	events, err := h.service.TailRunEvents(ctx, runID, afterSeq, limit)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"events": events,
	})
}
