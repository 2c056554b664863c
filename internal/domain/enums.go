// Package domain defines the core domain models for the spark run orchestrator.
package domain

// RunStatus represents the status of a run.
type RunStatus string

const (
	RunStatusRunning   RunStatus = "running"
	RunStatusFinished  RunStatus = "finished"
	RunStatusError     RunStatus = "error"
	RunStatusCancelled RunStatus = "cancelled"
)

// IsTerminal reports whether a run in this status accepts no further writes.
func (s RunStatus) IsTerminal() bool {
	switch s {
	case RunStatusFinished, RunStatusError, RunStatusCancelled:
		return true
	}
	return false
}

// EventType represents the type of a run event.
type EventType string

const (
	EventTypeRunStarted EventType = "run:started"
	EventTypeRunStatus  EventType = "run:status"

	// Phase 1 - ideation
	EventTypePhaseIdeation EventType = "phase:ideation"
	EventTypeAgentStarted  EventType = "agent:started"
	EventTypeAgentResult   EventType = "agent:result"
	EventTypeAgentError    EventType = "agent:error"
	EventTypeAgentFinished EventType = "agent:finished"

	// Single-spark shortcut
	EventTypePhaseSingleAgent    EventType = "phase:single_agent"
	EventTypeSingleAgentSelected EventType = "single_agent:selected"

	// Phase 2 - evaluation
	EventTypePhaseEvaluation      EventType = "phase:evaluation"
	EventTypeAgentEvaluated       EventType = "agent:evaluated"
	EventTypeAgentEvaluationError EventType = "agent:evaluation_error"

	// Phase 3 - voting
	EventTypePhaseVoting  EventType = "phase:voting"
	EventTypeVotingResult EventType = "voting:result"

	// Phase 4 - output materialization
	EventTypePhaseOutputs  EventType = "phase:outputs"
	EventTypeOutputCreated EventType = "output:created"
	EventTypeOutputsError  EventType = "outputs:error"
	EventTypeOutputsSaved  EventType = "outputs:saved"
	EventTypeRunFinished   EventType = "run:finished"
)
