package domain

import (
	"encoding/json"
	"time"
)

// Project is a creative project owned by a user. Its task is the free-text
// brief every attached spark works against.
type Project struct {
	ProjectID string    `json:"project_id"`
	UserID    string    `json:"user_id"`
	Task      string    `json:"task"`
	CreatedAt time.Time `json:"created_at"`
}

// Spark is a configured AI persona: a base system prompt plus the method and
// competency tags accreted from its training interactions. Read-only to the
// pipeline.
type Spark struct {
	SparkID        string    `json:"spark_id"`
	ProjectID      string    `json:"project_id"`
	Name           string    `json:"name"`
	SystemPrompt   string    `json:"system_prompt"`
	MethodTags     []string  `json:"method_tags,omitempty"`
	CompetencyTags []string  `json:"competency_tags,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

// ContextItem is owner-supplied context for a project (already reduced to
// text by the external content-analysis tools).
type ContextItem struct {
	ItemID    string    `json:"item_id"`
	ProjectID string    `json:"project_id"`
	Kind      string    `json:"kind"` // link, file, text
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
}

// Run represents a single execution of the orchestration pipeline.
type Run struct {
	RunID      string     `json:"run_id"`
	ProjectID  string     `json:"project_id"`
	UserID     string     `json:"user_id"`
	Status     RunStatus  `json:"status"`
	Summary    string     `json:"summary,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

// RunEvent is one immutable entry in a run's append-only progress log.
// Seq is assigned by the store, strictly increasing and gapless per run.
type RunEvent struct {
	RunID     string          `json:"run_id"`
	Seq       int64           `json:"seq"`
	Type      EventType       `json:"type"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

// Output is a persisted artifact selected during voting. SparkID is the
// spark that originally proposed it, not an evaluator.
type Output struct {
	OutputID  string    `json:"output_id"`
	ProjectID string    `json:"project_id"`
	SparkID   string    `json:"spark_id"`
	RunID     string    `json:"run_id"`
	Title     string    `json:"title"`
	Text      string    `json:"text"`
	CoverSVG  string    `json:"cover_svg,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Proposal is one candidate solution produced by a spark during ideation,
// retaining attribution across evaluation and voting.
type Proposal struct {
	SparkID   string `json:"spark_id"`
	SparkName string `json:"spark_name"`
	Text      string `json:"text"`
}
