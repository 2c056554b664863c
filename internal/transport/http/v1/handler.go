// Package v1 provides the v1 HTTP handlers for the orchestrator.
package v1

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/Art-of-X/sparkworks/internal/service"
)

// Handler handles HTTP requests.
type Handler struct {
	service *service.Service
}

// NewHandler creates a new handler.
func NewHandler(service *service.Service) *Handler {
	return &Handler{
		service: service,
	}
}

// RegisterRoutes registers the v1 routes with the echo server.
func (h *Handler) RegisterRoutes(e *echo.Echo) {
	// Project fixtures
	e.POST("/v1/projects", h.CreateProject)
	e.POST("/v1/projects/:project_id/sparks", h.AttachSpark)
	e.POST("/v1/projects/:project_id/context", h.AddContextItem)
	e.GET("/v1/projects/:project_id/outputs", h.ListOutputs)

	// Run lifecycle
	e.POST("/v1/projects/:project_id/runs", h.StartRun)
	e.POST("/v1/projects/:project_id/runs/cancel", h.CancelRun)
	e.GET("/v1/projects/:project_id/runs/active", h.GetActiveRun)

	// Event log
	e.GET("/v1/runs/:run_id/events", h.GetRunEvents)
	e.GET("/v1/projects/:project_id/runs/:run_id/stream", h.StreamRun)

	e.GET("/health", h.Health)
}

// Health returns health status.
func (h *Handler) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status":  "healthy",
		"version": "0.1.0",
	})
}

// userID resolves the caller identity. Authentication is an external
// collaborator; the gateway in front of this service sets the header.
func userID(c echo.Context) string {
	if uid := c.Request().Header.Get("X-User-ID"); uid != "" {
		return uid
	}
	return c.QueryParam("user_id")
}
