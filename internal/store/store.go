// Package store defines the persistence interface for the orchestrator.
package store

import (
	"context"
	"time"

	"github.com/Art-of-X/sparkworks/internal/domain"
)

// Store is the persistence interface for projects, sparks, runs, run events
// and outputs.
type Store interface {
	// Projects
	CreateProject(ctx context.Context, project *domain.Project) error
	GetProject(ctx context.Context, projectID string) (*domain.Project, error)
	UpdateProjectTask(ctx context.Context, projectID, task string) error
	DeleteProject(ctx context.Context, projectID string) error

	// Sparks
	CreateSpark(ctx context.Context, spark *domain.Spark) error
	ListSparks(ctx context.Context, projectID string) ([]domain.Spark, error)

	// Context items
	CreateContextItem(ctx context.Context, item *domain.ContextItem) error
	ListContextItems(ctx context.Context, projectID string) ([]domain.ContextItem, error)

	// Runs
	CreateRun(ctx context.Context, run *domain.Run) error
	GetRun(ctx context.Context, runID string) (*domain.Run, error)
	CountRuns(ctx context.Context, projectID string) (int, error)
	LatestRunningRun(ctx context.Context, projectID string) (*domain.Run, error)
	FinishRun(ctx context.Context, runID string, status domain.RunStatus, summary string, finishedAt time.Time) error

	// Run events (append-only; seq assigned by the store, gapless per run)
	AppendEvent(ctx context.Context, runID string, eventType domain.EventType, payload []byte) (*domain.RunEvent, error)
	TailEvents(ctx context.Context, runID string, afterSeq int64, limit int) ([]domain.RunEvent, error)

	// Outputs
	CreateOutput(ctx context.Context, output *domain.Output) error
	SetOutputCover(ctx context.Context, outputID, coverSVG string) error
	ListOutputs(ctx context.Context, projectID string) ([]domain.Output, error)
	ListRunOutputs(ctx context.Context, runID string) ([]domain.Output, error)

	Close() error
}
