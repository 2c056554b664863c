package v1

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/Art-of-X/sparkworks/internal/domain"
)

// StreamRun streams a run's event log via SSE until the run reaches a
// terminal status, then emits a final run:status event and closes.
// GET /v1/projects/:project_id/runs/:run_id/stream
//
// A fresh stream always starts at seq 0; a reconnecting client re-receives
// the full history. No replay cursor is provided.
func (h *Handler) StreamRun(c echo.Context) error {
	ctx := c.Request().Context()
	projectID := c.Param("project_id")
	runID := c.Param("run_id")

	run, err := h.service.GetRun(ctx, runID)
	if err != nil {
		log.Printf("ERROR: failed to get run: %v", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to get run"})
	}
	if run == nil || run.ProjectID != projectID || run.UserID != userID(c) {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "run not found"})
	}

	// Set SSE headers
	c.Response().Header().Set("Content-Type", "text/event-stream")
	c.Response().Header().Set("Cache-Control", "no-cache")
	c.Response().Header().Set("Connection", "keep-alive")
	c.Response().Header().Set("X-Accel-Buffering", "no")
	c.Response().WriteHeader(http.StatusOK)
	if flusher, ok := c.Response().Writer.(http.Flusher); ok {
		flusher.Flush()
	}

	afterSeq := int64(0)
	ticker := time.NewTicker(h.service.StreamPollInterval())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			// Client disconnected
			return nil

		case <-ticker.C:
			afterSeq, err = h.forwardEvents(c, runID, afterSeq)
			if err != nil {
				return err
			}

			current, err := h.service.GetRun(ctx, runID)
			if err != nil {
				log.Printf("ERROR: failed to re-read run %s: %v", runID, err)
				continue
			}
			if current == nil {
				return nil
			}
			if current.Status.IsTerminal() {
				// Drain anything appended between the last tail and the
				// status transition, then close with a final status event.
				// The tail is paged, so keep forwarding until it is empty.
				for {
					next, err := h.forwardEvents(c, runID, afterSeq)
					if err != nil {
						return err
					}
					if next == afterSeq {
						break
					}
					afterSeq = next
				}
				return h.sendSSEEvent(c, domain.RunEvent{
					RunID: runID,
					Seq:   afterSeq,
					Type:  domain.EventTypeRunStatus,
					Payload: mustMarshal(domain.RunStatusPayload{
						Status: current.Status,
					}),
				})
			}
		}
	}
}

func (h *Handler) forwardEvents(c echo.Context, runID string, afterSeq int64) (int64, error) {
	events, err := h.service.TailRunEvents(c.Request().Context(), runID, afterSeq, 100)
	if err != nil {
		log.Printf("ERROR: failed to tail events for run %s: %v", runID, err)
		return afterSeq, nil
	}
	for _, event := range events {
		if err := h.sendSSEEvent(c, event); err != nil {
			log.Printf("ERROR: failed to send SSE event: %v", err)
			return afterSeq, err
		}
		afterSeq = event.Seq
	}
	return afterSeq, nil
}

// sendSSEEvent sends a single event in SSE format.
func (h *Handler) sendSSEEvent(c echo.Context, event domain.RunEvent) error {
	data, err := json.Marshal(map[string]interface{}{
		"run_id":  event.RunID,
		"seq":     event.Seq,
		"type":    event.Type,
		"payload": json.RawMessage(event.Payload),
	})
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	if _, err := fmt.Fprintf(c.Response().Writer, "event: %s\n", event.Type); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(c.Response().Writer, "data: %s\n\n", data); err != nil {
		return err
	}

	if flusher, ok := c.Response().Writer.(http.Flusher); ok {
		flusher.Flush()
	}
	return nil
}

func mustMarshal(v interface{}) json.RawMessage {
	data, err := json.Marshal(v)
	if err != nil {
		return json.RawMessage(`{}`)
	}
	return data
}
