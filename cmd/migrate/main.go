package main

import (
	"context"
	"log"
	"time"

	"iso-risk-agent-be/internal/config"
	"iso-risk-agent-be/internal/model"
	"iso-risk-agent-be/internal/repository/implementation"
	"iso-risk-agent-be/pkg/database"
)

func main() {
	cfg := config.Load()
	if cfg.Database.Connection == "" {
		log.Fatal("Error: DB_CONNECTION_STRING is not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	// 1. Postgres: vector index and activity feed
	db, err := database.NewGormDBFromDSN(cfg.Database.Connection, true)
	if err != nil {
		log.Fatal("Error: Failed to connect to database:", err)
	}

	log.Println("Step 1: Setting up Extensions...")
	if err := database.EnableVectorExtension(db); err != nil {
		log.Fatalf("Error: pgvector extension: %v", err)
	}

	log.Printf("Step 2: Migrating vector index (dimension %d)...", cfg.Ai.EmbeddingDimension)
	if err := implementation.MigrateVectorIndex(db, cfg.Ai.EmbeddingDimension); err != nil {
		log.Fatalf("Error: vector index migration failed: %v", err)
	}
	if err := db.AutoMigrate(&model.Activity{}); err != nil {
		log.Fatalf("Error: AutoMigrate failed: %v", err)
	}

	// 2. MongoDB indexes
	log.Println("Step 3: Creating document store indexes...")
	mongoDB, err := database.NewMongoDB(ctx, cfg.Database.MongoURI, cfg.Database.MongoDatabase)
	if err != nil {
		log.Fatalf("Error: %v", err)
	}
	defer mongoDB.Close(context.Background())
	if err := mongoDB.Initialize(ctx); err != nil {
		log.Fatalf("Error: %v", err)
	}

	// 3. Neo4j constraints
	log.Println("Step 4: Applying graph constraints...")
	driver, err := database.NewNeo4jDriver(ctx, database.Neo4jConfig{
		URI:      cfg.Database.Neo4jURI,
		Username: cfg.Database.Neo4jUser,
		Password: cfg.Database.Neo4jPassword,
	})
	if err != nil {
		log.Fatalf("Error: %v", err)
	}
	defer driver.Close(context.Background())
	if err := database.EnsureGraphConstraints(ctx, driver, cfg.Database.Neo4jDatabase); err != nil {
		log.Fatalf("Error: %v", err)
	}

	log.Println("✅ Success: stores migrated.")
}
