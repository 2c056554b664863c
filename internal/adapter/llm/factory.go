package llm

import (
	"log"
	"os"
	"time"
)

const (
	// EnvMode is the environment variable name for mode selection.
	EnvMode = "SPARKWORKS_MODE"
	// ModeMock indicates the mock generator should be used.
	ModeMock = "MOCK"
)

// NewGenerator creates a Generator based on the SPARKWORKS_MODE environment
// variable. If SPARKWORKS_MODE=MOCK, returns a MockClient; otherwise returns
// a real Client.
func NewGenerator(baseURL, apiKey, model string, timeout time.Duration) Generator {
	if os.Getenv(EnvMode) == ModeMock {
		log.Println("SPARKWORKS_MODE=MOCK detected, using mock generation client")
		return NewMockClient()
	}
	return NewClient(baseURL, apiKey, model, timeout)
}
