// Package service implements the run lifecycle and the orchestration
// pipeline.
package service

import (
	"time"

	"github.com/Art-of-X/sparkworks/internal/adapter/knowledge"
	"github.com/Art-of-X/sparkworks/internal/adapter/llm"
	"github.com/Art-of-X/sparkworks/internal/config"
	"github.com/Art-of-X/sparkworks/internal/prompt"
	"github.com/Art-of-X/sparkworks/internal/store"
	"github.com/Art-of-X/sparkworks/policy"
)

type Service struct {
	store     store.Store
	generator llm.Generator
	retriever knowledge.Retriever
	policy    *policy.Engine
	prompts   *prompt.Builder
	config    *config.Config
}

func New(store store.Store, generator llm.Generator, retriever knowledge.Retriever, policyEngine *policy.Engine, prompts *prompt.Builder, cfg *config.Config) *Service {
	return &Service{
		store:     store,
		generator: generator,
		retriever: retriever,
		policy:    policyEngine,
		prompts:   prompts,
		config:    cfg,
	}
}

// StreamPollInterval is how often the SSE stream polls the event log.
func (s *Service) StreamPollInterval() time.Duration {
	if s.config.StreamPollInterval <= 0 {
		return time.Second
	}
	return s.config.StreamPollInterval
}
