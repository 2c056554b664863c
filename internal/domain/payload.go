package domain

// Event payload shapes. One struct per event type where the payload carries
// more than a message string.

// RunStartedPayload is the payload for run:started.
type RunStartedPayload struct {
	ProjectID string `json:"projectId"`
	Task      string `json:"task"`
}

// PhasePayload is the payload for phase:* announcements.
type PhasePayload struct {
	Message string `json:"message"`
}

// AgentPayload is the payload for agent:started and agent:finished.
type AgentPayload struct {
	SparkID string `json:"sparkId"`
	Name    string `json:"name"`
}

// AgentResultPayload is the payload for agent:result.
type AgentResultPayload struct {
	SparkID string `json:"sparkId"`
	Name    string `json:"name"`
	Text    string `json:"text"`
}

// AgentErrorPayload is the payload for agent:error and agent:evaluation_error.
type AgentErrorPayload struct {
	SparkID string `json:"sparkId"`
	Name    string `json:"name"`
	Error   string `json:"error"`
}

// SelectedPayload is the payload for single_agent:selected.
type SelectedPayload struct {
	Message   string   `json:"message"`
	Proposals []string `json:"proposals"`
}

// AgentEvaluatedPayload is the payload for agent:evaluated.
type AgentEvaluatedPayload struct {
	SparkID   string   `json:"sparkId"`
	Name      string   `json:"name"`
	Votes     []string `json:"votes"`
	Reasoning string   `json:"reasoning"`
}

// VotingResultPayload is the payload for voting:result.
type VotingResultPayload struct {
	TopProposals []string       `json:"topProposals"`
	VoteCounts   map[string]int `json:"voteCounts"`
}

// OutputCreatedPayload is the payload for output:created.
type OutputCreatedPayload struct {
	OutputID  string `json:"id"`
	Text      string `json:"text"`
	Title     string `json:"title"`
	SparkID   string `json:"sparkId"`
	SparkName string `json:"sparkName"`
}

// OutputsErrorPayload is the payload for outputs:error.
type OutputsErrorPayload struct {
	Error string `json:"error"`
}

// OutputsSavedPayload is the payload for outputs:saved.
type OutputsSavedPayload struct {
	Count int `json:"count"`
}

// RunStatusPayload is the payload for the final run:status stream event.
type RunStatusPayload struct {
	Status RunStatus `json:"status"`
}
