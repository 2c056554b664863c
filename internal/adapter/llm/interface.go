// Package llm provides an abstraction for the text generation service.
package llm

import "context"

// Request is a single completion request. MaxTokens > 0 constrains the
// response; used for single-field calls like title generation.
type Request struct {
	System    string
	User      string
	MaxTokens int
}

// Generator defines the interface for text generation operations.
type Generator interface {
	// Complete sends a system/user message pair and returns the assistant text.
	Complete(ctx context.Context, req Request) (string, error)
}

// Ensure Client implements Generator interface.
var _ Generator = (*Client)(nil)
