package database

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

type Neo4jConfig struct {
	URI      string
	Username string
	Password string
}

// NewNeo4jDriver connects with exponential backoff, 5 attempts starting at 100ms.
func NewNeo4jDriver(ctx context.Context, cfg Neo4jConfig) (neo4j.DriverWithContext, error) {
	auth := neo4j.BasicAuth(cfg.Username, cfg.Password, "")
	configure := func(c *neo4j.Config) {
		c.MaxConnectionPoolSize = 50
		c.ConnectionAcquisitionTimeout = 30 * time.Second
		c.MaxTransactionRetryTime = 15 * time.Second
	}

	var lastErr error
	delay := 100 * time.Millisecond
	for attempt := 0; attempt < 5; attempt++ {
		driver, err := neo4j.NewDriverWithContext(cfg.URI, auth, configure)
		if err == nil {
			if err = driver.VerifyConnectivity(ctx); err == nil {
				log.Printf("✅ Connected to Neo4j at %s", cfg.URI)
				return driver, nil
			}
			_ = driver.Close(ctx)
		}
		lastErr = err

		select {
		case <-time.After(delay):
			delay *= 2
		case <-ctx.Done():
			return nil, fmt.Errorf("neo4j connection cancelled: %w", ctx.Err())
		}
	}

	return nil, fmt.Errorf("failed to connect to neo4j after 5 attempts: %w", lastErr)
}

// EnsureGraphConstraints makes node ids unique so MERGE never forks a node.
func EnsureGraphConstraints(ctx context.Context, driver neo4j.DriverWithContext, dbName string) error {
	statements := []string{
		"CREATE CONSTRAINT user_id IF NOT EXISTS FOR (u:User) REQUIRE u.id IS UNIQUE",
		"CREATE CONSTRAINT risk_id IF NOT EXISTS FOR (r:Risk) REQUIRE r.id IS UNIQUE",
		"CREATE CONSTRAINT control_id IF NOT EXISTS FOR (c:Control) REQUIRE c.id IS UNIQUE",
	}
	for _, stmt := range statements {
		if _, err := neo4j.ExecuteQuery(ctx, driver, stmt, nil,
			neo4j.EagerResultTransformer, neo4j.ExecuteQueryWithDatabase(dbName)); err != nil {
			return fmt.Errorf("apply constraint %q: %w", stmt, err)
		}
	}
	return nil
}
