package main

import (
	"context"
	"fmt"
	"os"

	"iso-risk-agent-be/internal/config"
	"iso-risk-agent-be/internal/repository/implementation"
	"iso-risk-agent-be/pkg/agent/guidance"
	"iso-risk-agent-be/pkg/database"
	"iso-risk-agent-be/pkg/embedding"

	"github.com/fatih/color"
)

// Embeds the Annex A catalog into the pgvector index. Safe to re-run.
func main() {
	cfg := config.Load()
	ctx := context.Background()

	catalog, err := guidance.Load()
	if err != nil {
		color.Red("Catalog: %v", err)
		os.Exit(1)
	}

	db, err := database.NewGormDBFromDSN(cfg.Database.Connection, false)
	if err != nil {
		color.Red("Database: %v", err)
		os.Exit(1)
	}

	embedder, err := embedding.NewEmbeddingProvider(embedding.Settings{
		Provider:      cfg.Ai.EmbeddingProvider,
		Model:         cfg.Ai.EmbeddingModel,
		OpenAIKey:     cfg.Keys.OpenAI,
		OpenAIBaseURL: cfg.Ai.OpenAIBaseURL,
		OllamaBaseURL: cfg.Ai.OllamaBaseURL,
	})
	if err != nil {
		color.Red("Embedding provider: %v", err)
		os.Exit(1)
	}

	color.Cyan("Seeding %d guidance controls with %s/%s", len(catalog.Controls()), cfg.Ai.EmbeddingProvider, cfg.Ai.EmbeddingModel)
	indexed, err := guidance.Index(ctx, catalog, embedder, implementation.NewPgVectorIndex(db), cfg.Agent.EmbeddingTimeout,
		func(c guidance.Control, err error) {
			if err != nil {
				color.Red("  ✗ %s %s: %v", c.Reference, c.Title, err)
				return
			}
			fmt.Printf("  %s %s %s\n", color.GreenString("✓"), c.Reference, c.Title)
		})

	if err != nil {
		color.Yellow("Indexed %d/%d controls, first error: %v", indexed, len(catalog.Controls()), err)
		os.Exit(1)
	}
	color.Green("Indexed %d controls", indexed)
}
