package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/Art-of-X/sparkworks/internal/domain"
)

var (
	// ErrProjectNotFound means the project does not exist or is owned by
	// someone else.
	ErrProjectNotFound = errors.New("project not found")
	// ErrNoTaskOrSparks means the project has no task text or no attached
	// sparks.
	ErrNoTaskOrSparks = errors.New("project has no task or no sparks")
	// ErrQuotaExceeded means the project's historical run count exceeds the
	// plan limit.
	ErrQuotaExceeded = errors.New("run quota exceeded")
	// ErrNoActiveRun means no run with status=running exists for the project.
	ErrNoActiveRun = errors.New("no active run")
)

const cancelSummary = "Run cancelled by user"

// StartRun validates the project, checks the run quota, creates a Run row
// and schedules the pipeline as a detached task. It returns immediately; the
// pipeline never reports back through this call.
func (s *Service) StartRun(ctx context.Context, projectID, userID string) (*domain.Run, error) {
	project, err := s.store.GetProject(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to get project: %w", err)
	}
	if project == nil || project.UserID != userID {
		return nil, ErrProjectNotFound
	}

	sparks, err := s.store.ListSparks(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to list sparks: %w", err)
	}
	if project.Task == "" || len(sparks) == 0 {
		return nil, ErrNoTaskOrSparks
	}

	count, err := s.store.CountRuns(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to count runs: %w", err)
	}
	decision, err := s.policy.Evaluate(ctx, map[string]interface{}{
		"run_count": count,
		"run_limit": s.config.RunLimit,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to evaluate run policy: %w", err)
	}
	if decision == "deny" {
		return nil, ErrQuotaExceeded
	}

	run := &domain.Run{
		RunID:     "run_" + uuid.New().String()[:8],
		ProjectID: projectID,
		UserID:    userID,
		Status:    domain.RunStatusRunning,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.store.CreateRun(ctx, run); err != nil {
		return nil, fmt.Errorf("failed to create run: %w", err)
	}

	go s.runPipeline(run.RunID, project, sparks)

	return run, nil
}

// CancelRun sets the most recent running run of the project to cancelled.
// In-flight generation calls are not interrupted; the pipeline observes the
// status at its next checkpoint.
func (s *Service) CancelRun(ctx context.Context, projectID, userID string) (*domain.Run, error) {
	project, err := s.store.GetProject(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to get project: %w", err)
	}
	if project == nil || project.UserID != userID {
		return nil, ErrProjectNotFound
	}

	run, err := s.store.LatestRunningRun(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to find active run: %w", err)
	}
	if run == nil {
		return nil, ErrNoActiveRun
	}

	now := time.Now().UTC()
	if err := s.store.FinishRun(ctx, run.RunID, domain.RunStatusCancelled, cancelSummary, now); err != nil {
		return nil, fmt.Errorf("failed to cancel run: %w", err)
	}
	log.Printf("INFO: run %s cancelled by user %s", run.RunID, userID)

	run.Status = domain.RunStatusCancelled
	run.Summary = cancelSummary
	run.FinishedAt = &now
	return run, nil
}

// GetActiveRun returns the most recent running run for the project, or nil.
func (s *Service) GetActiveRun(ctx context.Context, projectID, userID string) (*domain.Run, error) {
	project, err := s.store.GetProject(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to get project: %w", err)
	}
	if project == nil || project.UserID != userID {
		return nil, ErrProjectNotFound
	}
	run, err := s.store.LatestRunningRun(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to find active run: %w", err)
	}
	return run, nil
}

// GetRun retrieves a run by ID.
func (s *Service) GetRun(ctx context.Context, runID string) (*domain.Run, error) {
	run, err := s.store.GetRun(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}
	return run, nil
}

// TailRunEvents returns events with seq > afterSeq in ascending order.
func (s *Service) TailRunEvents(ctx context.Context, runID string, afterSeq int64, limit int) ([]domain.RunEvent, error) {
	events, err := s.store.TailEvents(ctx, runID, afterSeq, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to tail events: %w", err)
	}
	return events, nil
}
