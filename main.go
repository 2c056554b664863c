package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Art-of-X/sparkworks/internal/adapter/knowledge"
	"github.com/Art-of-X/sparkworks/internal/adapter/llm"
	"github.com/Art-of-X/sparkworks/internal/config"
	"github.com/Art-of-X/sparkworks/internal/prompt"
	"github.com/Art-of-X/sparkworks/internal/service"
	"github.com/Art-of-X/sparkworks/internal/store"
	handler "github.com/Art-of-X/sparkworks/internal/transport/http"
	"github.com/Art-of-X/sparkworks/policy"
)

func main() {
	// Load configuration
	cfg := config.Load()

	log.Printf("Starting orchestrator...")
	log.Printf("HTTP Port: %d", cfg.HTTPPort)
	log.Printf("Database: %s", cfg.DatabaseURL)
	log.Printf("Generation URL: %s", cfg.GenerationURL)

	// Shared reference data, loaded once and passed by reference
	taxonomy, err := config.LoadTaxonomy(cfg.TaxonomyPath)
	if err != nil {
		log.Fatalf("Failed to load taxonomy: %v", err)
	}

	// Initialize store
	db, err := store.NewSQLiteStore(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to initialize store: %v", err)
	}
	defer db.Close()

	// Initialize external service clients
	generator := llm.NewGenerator(cfg.GenerationURL, cfg.GenerationAPIKey, cfg.GenerationModel, cfg.GenerationTimeout)
	retriever := knowledge.NewClient(cfg.KnowledgeURL, cfg.KnowledgeTimeout)

	// Initialize run quota policy engine
	ctx := context.Background()
	policyEngine, err := policy.NewEngine(ctx, policy.DefaultPolicy)
	if err != nil {
		log.Fatalf("Failed to initialize policy engine: %v", err)
	}

	// Initialize service
	svc := service.New(db, generator, retriever, policyEngine, prompt.NewBuilder(taxonomy), cfg)

	// Create HTTP server
	e := handler.NewServer(svc)

	go func() {
		addr := fmt.Sprintf(":%d", cfg.HTTPPort)
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()
	log.Printf("API started on port %d", cfg.HTTPPort)

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down orchestrator...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Printf("Failed to shutdown server gracefully: %v", err)
	}

	log.Println("Orchestrator stopped")
}
