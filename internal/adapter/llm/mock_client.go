package llm

import (
	"context"
	"fmt"
	"strings"
)

// MockClient is a deterministic Generator for local runs without a live
// generation key. Responses are keyed on recognizable phrases in the user
// message so a full pipeline run exercises every phase.
type MockClient struct{}

// NewMockClient creates a new mock generation client.
func NewMockClient() *MockClient {
	return &MockClient{}
}

var _ Generator = (*MockClient)(nil)

// Complete returns a canned response shaped for the requesting phase.
func (m *MockClient) Complete(ctx context.Context, req Request) (string, error) {
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	default:
	}

	user := strings.ToLower(req.User)
	switch {
	case strings.Contains(user, "top 3"):
		return "Top 3: 1, 2, 3\nReasoning: These proposals balance ambition with feasibility.", nil
	case strings.Contains(user, "title"):
		return "A Study In Mock Output", nil
	case strings.Contains(user, "svg"):
		return `<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 100 100"><polygon points="10,90 50,10 90,90" fill="#3b6ea5"/></svg>`, nil
	default:
		return fmt.Sprintf("1. A first mock proposal for: %.40s\n2. A second mock proposal\n3. A third mock proposal", req.User), nil
	}
}
