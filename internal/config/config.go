// Package config provides configuration for the orchestrator.
package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds the orchestrator configuration.
type Config struct {
	// Server settings
	HTTPPort int

	// Database
	DatabaseURL string

	// Generation service (OpenAI-compatible)
	GenerationURL     string
	GenerationAPIKey  string
	GenerationModel   string
	GenerationTimeout time.Duration

	// Knowledge retrieval service
	KnowledgeURL     string
	KnowledgeTimeout time.Duration
	KnowledgeTopK    int

	// Streaming
	StreamPollInterval time.Duration

	// Plan limits
	RunLimit int

	// Shared reference data
	TaxonomyPath string

	// Logging
	LogLevel string
}

// Load loads configuration from environment variables.
func Load() *Config {
	cfg := &Config{
		HTTPPort:           getEnvInt("HTTP_PORT", 8080),
		DatabaseURL:        getEnv("DATABASE_URL", "file:sparkworks.db?cache=shared&mode=rwc"),
		GenerationURL:      getEnv("GENERATION_URL", "http://localhost:4000"),
		GenerationAPIKey:   getEnv("GENERATION_API_KEY", ""),
		GenerationModel:    getEnv("GENERATION_MODEL", "gpt-4o-mini"),
		GenerationTimeout:  time.Duration(getEnvInt("GENERATION_TIMEOUT_MS", 120000)) * time.Millisecond,
		KnowledgeURL:       getEnv("KNOWLEDGE_URL", ""),
		KnowledgeTimeout:   time.Duration(getEnvInt("KNOWLEDGE_TIMEOUT_MS", 10000)) * time.Millisecond,
		KnowledgeTopK:      getEnvInt("KNOWLEDGE_TOP_K", 5),
		StreamPollInterval: time.Duration(getEnvInt("STREAM_POLL_MS", 1000)) * time.Millisecond,
		RunLimit:           getEnvInt("RUN_LIMIT", 50),
		TaxonomyPath:       getEnv("TAXONOMY_PATH", ""),
		LogLevel:           getEnv("LOG_LEVEL", "info"),
	}
	return cfg
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if intVal, err := strconv.Atoi(val); err == nil {
			return intVal
		}
	}
	return defaultVal
}
