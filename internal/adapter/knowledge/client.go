// Package knowledge provides a client for the similarity-search service that
// returns ranked context chunks for a spark and query.
package knowledge

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Chunk is one ranked piece of retrieved context.
type Chunk struct {
	Text  string  `json:"text"`
	Score float64 `json:"score"`
}

// Retriever defines the interface for knowledge retrieval.
type Retriever interface {
	// Search returns up to k chunks relevant to the query, ranked best first.
	Search(ctx context.Context, sparkName, query string, k int) ([]Chunk, error)
}

// Client calls the knowledge retrieval service over HTTP.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a new knowledge retrieval client. An empty baseURL
// disables retrieval; Search then returns no chunks.
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

var _ Retriever = (*Client)(nil)

type searchRequest struct {
	Persona string `json:"persona"`
	Query   string `json:"query"`
	TopK    int    `json:"top_k"`
}

type searchResponse struct {
	Chunks []Chunk `json:"chunks"`
}

// Search performs a similarity search keyed by spark name.
func (c *Client) Search(ctx context.Context, sparkName, query string, k int) ([]Chunk, error) {
	if c.baseURL == "" {
		return nil, nil
	}

	body, err := json.Marshal(searchRequest{Persona: sparkName, Query: query, TopK: k})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/search", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("knowledge API error [%d]: %s", resp.StatusCode, string(respBody))
	}

	var result searchResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}
	return result.Chunks, nil
}
