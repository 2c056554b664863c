package v1

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/Art-of-X/sparkworks/internal/domain"
	"github.com/Art-of-X/sparkworks/internal/store"
)

func seedFinishedRun(t *testing.T, st *store.SQLiteStore, runID string, userID string) {
	t.Helper()
	ctx := context.Background()
	if err := st.CreateRun(ctx, &domain.Run{RunID: runID, ProjectID: "p1", UserID: userID, Status: domain.RunStatusFinished, CreatedAt: time.Now()}); err != nil {
		t.Fatalf("CreateRun failed: %v", err)
	}
}

func appendEvent(t *testing.T, st *store.SQLiteStore, runID string, eventType domain.EventType, payload string) {
	t.Helper()
	if _, err := st.AppendEvent(context.Background(), runID, eventType, []byte(payload)); err != nil {
		t.Fatalf("AppendEvent failed: %v", err)
	}
}

// A stream over an already-terminal run forwards the full history in order
// and closes with a single synthetic run:status event.
func TestStreamRunForwardsHistoryAndTerminates(t *testing.T) {
	h, st := newTestHandler(t)
	seedProject(t, st, true)
	seedFinishedRun(t, st, "r1", "u1")
	appendEvent(t, st, "r1", domain.EventTypeRunStarted, `{"projectId":"p1"}`)
	appendEvent(t, st, "r1", domain.EventTypeOutputsSaved, `{"count":1}`)
	appendEvent(t, st, "r1", domain.EventTypeRunFinished, `{}`)

	rec := doRequest(t, h.StreamRun, http.MethodGet, "/v1/projects/p1/runs/r1/stream", nil, map[string]string{"project_id": "p1", "run_id": "r1"})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))

	body := rec.Body.String()
	started := strings.Index(body, "event: run:started")
	saved := strings.Index(body, "event: outputs:saved")
	finished := strings.Index(body, "event: run:finished")
	status := strings.Index(body, "event: run:status")
	assert.True(t, started >= 0 && saved > started && finished > saved && status > finished,
		"events out of order in stream body:\n%s", body)
	assert.Equal(t, 1, strings.Count(body, "event: run:status"))

	// The final data frame carries the terminal status.
	lines := strings.Split(strings.TrimSpace(body), "\n")
	var last struct {
		Payload domain.RunStatusPayload `json:"payload"`
	}
	if err := json.Unmarshal([]byte(strings.TrimPrefix(lines[len(lines)-1], "data: ")), &last); err != nil {
		t.Fatalf("decode final frame: %v", err)
	}
	assert.Equal(t, domain.RunStatusFinished, last.Payload.Status)
}

// The terminal drain pages through the tail, so a backlog larger than one
// tail page still reaches the client before the stream closes.
func TestStreamRunDrainsLongBacklog(t *testing.T) {
	h, st := newTestHandler(t)
	seedProject(t, st, true)
	seedFinishedRun(t, st, "r1", "u1")
	const backlog = 105
	for i := 0; i < backlog; i++ {
		appendEvent(t, st, "r1", domain.EventTypeAgentStarted, `{}`)
	}

	rec := doRequest(t, h.StreamRun, http.MethodGet, "/v1/projects/p1/runs/r1/stream", nil, map[string]string{"project_id": "p1", "run_id": "r1"})
	assert.Equal(t, http.StatusOK, rec.Code)

	body := rec.Body.String()
	assert.Equal(t, backlog, strings.Count(body, "event: agent:started"))
	assert.True(t, strings.Index(body, "event: run:status") > strings.LastIndex(body, "event: agent:started"))
}

func TestStreamRunUnknownRun(t *testing.T) {
	h, st := newTestHandler(t)
	seedProject(t, st, true)

	rec := doRequest(t, h.StreamRun, http.MethodGet, "/v1/projects/p1/runs/nope/stream", nil, map[string]string{"project_id": "p1", "run_id": "nope"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestStreamRunWrongOwner(t *testing.T) {
	h, st := newTestHandler(t)
	seedProject(t, st, true)
	seedFinishedRun(t, st, "r1", "u2")

	rec := doRequest(t, h.StreamRun, http.MethodGet, "/v1/projects/p1/runs/r1/stream", nil, map[string]string{"project_id": "p1", "run_id": "r1"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
