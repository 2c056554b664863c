package v1

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/Art-of-X/sparkworks/internal/domain"
	"github.com/Art-of-X/sparkworks/internal/service"
)

// CreateProject creates a project.
// POST /v1/projects
func (h *Handler) CreateProject(c echo.Context) error {
	var req struct {
		Task string `json:"task"`
	}
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}

	project, err := h.service.CreateProject(c.Request().Context(), userID(c), req.Task)
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}
	return c.JSON(http.StatusCreated, project)
}

// AttachSpark attaches a spark to a project.
// POST /v1/projects/:project_id/sparks
func (h *Handler) AttachSpark(c echo.Context) error {
	var req struct {
		Name           string   `json:"name"`
		SystemPrompt   string   `json:"system_prompt"`
		MethodTags     []string `json:"method_tags"`
		CompetencyTags []string `json:"competency_tags"`
	}
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}

	spark, err := h.service.AttachSpark(c.Request().Context(), c.Param("project_id"), userID(c), domain.Spark{
		Name:           req.Name,
		SystemPrompt:   req.SystemPrompt,
		MethodTags:     req.MethodTags,
		CompetencyTags: req.CompetencyTags,
	})
	if err != nil {
		if errors.Is(err, service.ErrProjectNotFound) {
			return c.JSON(http.StatusNotFound, map[string]string{"error": "project not found"})
		}
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}
	return c.JSON(http.StatusCreated, spark)
}

// AddContextItem stores an owner-supplied context item.
// POST /v1/projects/:project_id/context
func (h *Handler) AddContextItem(c echo.Context) error {
	var req struct {
		Kind string `json:"kind"`
		Text string `json:"text"`
	}
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}

	item, err := h.service.AddContextItem(c.Request().Context(), c.Param("project_id"), userID(c), req.Kind, req.Text)
	if err != nil {
		if errors.Is(err, service.ErrProjectNotFound) {
			return c.JSON(http.StatusNotFound, map[string]string{"error": "project not found"})
		}
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}
	return c.JSON(http.StatusCreated, item)
}

// ListOutputs lists the outputs of a project.
// GET /v1/projects/:project_id/outputs
func (h *Handler) ListOutputs(c echo.Context) error {
	outputs, err := h.service.ListOutputs(c.Request().Context(), c.Param("project_id"), userID(c))
	if err != nil {
		if errors.Is(err, service.ErrProjectNotFound) {
			return c.JSON(http.StatusNotFound, map[string]string{"error": "project not found"})
		}
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"outputs": outputs,
	})
}
