package bootstrap

import (
	"context"
	"fmt"
	"log"
	"path/filepath"

	"iso-risk-agent-be/internal/config"
	"iso-risk-agent-be/internal/controller"
	"iso-risk-agent-be/internal/pkg/logger"
	"iso-risk-agent-be/internal/repository/contract"
	"iso-risk-agent-be/internal/repository/implementation"
	"iso-risk-agent-be/internal/repository/memory"
	"iso-risk-agent-be/internal/service"
	"iso-risk-agent-be/internal/websocket"
	"iso-risk-agent-be/pkg/agent/commit"
	"iso-risk-agent-be/pkg/agent/generation"
	"iso-risk-agent-be/pkg/agent/guidance"
	"iso-risk-agent-be/pkg/agent/intent"
	"iso-risk-agent-be/pkg/agent/response"
	"iso-risk-agent-be/pkg/agent/retrieval"
	"iso-risk-agent-be/pkg/agent/workflow"
	"iso-risk-agent-be/pkg/database"
	"iso-risk-agent-be/pkg/embedding"
	"iso-risk-agent-be/pkg/events"
	"iso-risk-agent-be/pkg/llm/factory"

	pktNats "iso-risk-agent-be/pkg/nats"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/redis/go-redis/v9"
)

type Container struct {
	// Controllers
	AgentController    controller.IAgentController
	RiskController     controller.IRiskController
	ControlController  controller.IControlController
	SearchController   controller.ISearchController
	GraphController    controller.IGraphController
	ActivityController controller.IActivityController

	// Background Services (Exposed for main.go to run)
	ConsumerService service.IConsumerService
	ActivityService service.IActivityService
	EventSource     service.EventSource

	Logger logger.ILogger

	closers []func(context.Context) error
}

// stores groups the four backends every agent component talks to.
type stores struct {
	docs     contract.DocumentStore
	graph    contract.GraphStore
	vectors  contract.VectorIndex
	activity contract.ActivityLog
	sessions contract.SessionStore
	// set when sessions live in redis; the activity hub fans out over it too
	rdb redis.UniversalClient
}

func NewContainer(ctx context.Context, cfg *config.Config) (*Container, error) {
	// 1. Core Facades
	sysLogger := logger.NewZapLogger(cfg.App.LogFilePath, cfg.App.Environment == "production")
	c := &Container{Logger: sysLogger}

	catalog, err := guidance.Load()
	if err != nil {
		return nil, fmt.Errorf("load guidance catalog: %w", err)
	}

	// 2. Providers
	embeddingProvider, err := embedding.NewEmbeddingProvider(embedding.Settings{
		Provider:      cfg.Ai.EmbeddingProvider,
		Model:         cfg.Ai.EmbeddingModel,
		OpenAIKey:     cfg.Keys.OpenAI,
		OpenAIBaseURL: cfg.Ai.OpenAIBaseURL,
		OllamaBaseURL: cfg.Ai.OllamaBaseURL,
	})
	if err != nil {
		return nil, fmt.Errorf("embedding provider: %w", err)
	}
	log.Printf("[INFO] Using Embedding Provider: %s (%s)", cfg.Ai.EmbeddingProvider, cfg.Ai.EmbeddingModel)

	llmProvider, err := factory.NewLLMProvider(factory.Settings{
		Provider:      cfg.Ai.LLMProvider,
		Model:         cfg.Ai.LLMModel,
		OllamaBaseURL: cfg.Ai.OllamaBaseURL,
		OpenAIKey:     cfg.Keys.OpenAI,
		OpenAIBaseURL: cfg.Ai.OpenAIBaseURL,
	})
	if err != nil {
		return nil, fmt.Errorf("llm provider: %w", err)
	}
	log.Printf("[INFO] Using LLM Provider: %s (%s)", cfg.Ai.LLMProvider, cfg.Ai.LLMModel)

	// 3. Stores
	st, err := c.openStores(ctx, cfg)
	if err != nil {
		c.Close(ctx)
		return nil, err
	}
	if cfg.App.StoreBackend != "external" {
		// the in-memory index starts empty; guidance search needs the catalog in it
		go func() {
			n, err := guidance.Index(context.Background(), catalog, embeddingProvider, st.vectors, cfg.Agent.EmbeddingTimeout, nil)
			if err != nil {
				sysLogger.Warn("Bootstrap", "Guidance indexing incomplete", map[string]interface{}{"indexed": n, "error": err.Error()})
				return
			}
			sysLogger.Info("Bootstrap", "Guidance indexed", map[string]interface{}{"indexed": n})
		}()
	}

	// 4. Event Bus
	pubSub := gochannel.NewGoChannel(gochannel.Config{}, watermill.NewStdLogger(false, false))
	c.closers = append(c.closers, func(context.Context) error { return pubSub.Close() })

	// WebSocket Hub
	hub := websocket.NewHub(st.rdb, sysLogger)
	go hub.Run(ctx)

	activityService := service.NewActivityService(st.activity, hub, sysLogger)
	var publisher events.Publisher = events.PublisherFunc(activityService.Record)

	natsPub, err := pktNats.NewPublisher(ctx, cfg.App.NatsURL)
	if err != nil {
		log.Printf("[WARN] Failed to connect to NATS Publisher: %v. Activity is recorded in-process", err)
	} else {
		natsSub, err := pktNats.NewSubscriber(cfg.App.NatsURL, sysLogger)
		if err != nil {
			log.Printf("[WARN] Failed to connect to NATS Subscriber: %v. Activity is recorded in-process", err)
			natsPub.Close()
		} else {
			publisher = natsPub
			c.EventSource = natsSub
			c.closers = append(c.closers,
				func(context.Context) error { natsPub.Close(); return nil },
				func(context.Context) error { natsSub.Close(); return nil },
			)
		}
	}

	// 5. Agent
	classifier := intent.NewClassifier(llmProvider, catalog, sysLogger)
	fusion := retrieval.NewFusion(st.docs, st.graph, st.vectors, embeddingProvider, catalog, sysLogger, retrieval.Settings{
		Threshold:        cfg.Agent.RelevanceThreshold,
		CandidateLimit:   cfg.Agent.CandidateLimit,
		OverFetchFactor:  cfg.Agent.OverFetchFactor,
		GuidanceLimit:    cfg.Agent.GuidanceLimit,
		EmbeddingTimeout: cfg.Agent.EmbeddingTimeout,
		StoreTimeout:     cfg.Agent.StoreTimeout,
	})
	generator := generation.NewGenerator(llmProvider, st.docs, catalog, sysLogger, generation.Settings{
		MaxRisksPerRun: cfg.Agent.MaxRisksPerRun,
		LLMTimeout:     cfg.Agent.LLMTimeout,
	})
	coordinator := commit.NewCoordinator(st.docs, st.graph, st.vectors, embeddingProvider, publisher, sysLogger, commit.Settings{
		StoreTimeout:     cfg.Agent.StoreTimeout,
		EmbeddingTimeout: cfg.Agent.EmbeddingTimeout,
	})
	synthesizer := response.NewSynthesizer(llmProvider, sysLogger, cfg.Agent.LLMTimeout)

	engine := workflow.NewEngine(workflow.Dependencies{
		Classifier: classifier,
		Retriever:  fusion,
		Generator:  generator,
		Committer:  coordinator,
		Writer:     synthesizer,
		Sessions:   st.sessions,
		Docs:       st.docs,
		Vectors:    st.vectors,
		Embedder:   embeddingProvider,
		Logger:     sysLogger,
	}, workflow.Settings{
		MaxSteps:         cfg.Agent.MaxSteps,
		EmbeddingTimeout: cfg.Agent.EmbeddingTimeout,
		StoreTimeout:     cfg.Agent.StoreTimeout,
	})

	// 6. Services
	agentService := service.NewAgentService(engine, fusion, sysLogger)
	riskService := service.NewRiskService(st.docs, st.graph, st.vectors, pubSub, cfg.App.RiskIndexTopic, publisher, sysLogger)
	controlService := service.NewControlService(st.docs, st.graph, st.vectors, sysLogger)
	graphService := service.NewGraphService(st.graph)
	consumerService := service.NewConsumerService(
		pubSub,
		cfg.App.RiskIndexTopic,
		st.docs,
		st.graph,
		st.vectors,
		embeddingProvider,
		logger.NewIsolatedLogger(filepath.Join(filepath.Dir(cfg.App.LogFilePath), "indexer.log")),
		cfg.Agent.EmbeddingTimeout,
	)

	// 7. Controllers
	c.AgentController = controller.NewAgentController(agentService)
	c.RiskController = controller.NewRiskController(riskService)
	c.ControlController = controller.NewControlController(controlService)
	c.SearchController = controller.NewSearchController(agentService)
	c.GraphController = controller.NewGraphController(graphService)
	c.ActivityController = controller.NewActivityController(activityService, hub)
	c.ConsumerService = consumerService
	c.ActivityService = activityService

	return c, nil
}

func (c *Container) openStores(ctx context.Context, cfg *config.Config) (*stores, error) {
	st := &stores{}

	switch cfg.App.StoreBackend {
	case "external":
		mongoDB, err := database.NewMongoDB(ctx, cfg.Database.MongoURI, cfg.Database.MongoDatabase)
		if err != nil {
			return nil, err
		}
		c.closers = append(c.closers, mongoDB.Close)

		driver, err := database.NewNeo4jDriver(ctx, database.Neo4jConfig{
			URI:      cfg.Database.Neo4jURI,
			Username: cfg.Database.Neo4jUser,
			Password: cfg.Database.Neo4jPassword,
		})
		if err != nil {
			return nil, err
		}
		c.closers = append(c.closers, driver.Close)

		gormDB, err := database.NewGormDBFromDSN(cfg.Database.Connection, cfg.App.Environment != "production")
		if err != nil {
			return nil, fmt.Errorf("unable to connect to GORM DB: %w", err)
		}
		c.closers = append(c.closers, func(context.Context) error {
			sqlDB, err := gormDB.DB()
			if err != nil {
				return err
			}
			return sqlDB.Close()
		})

		st.docs = implementation.NewMongoDocumentStore(mongoDB)
		st.graph = implementation.NewNeo4jGraphStore(driver, cfg.Database.Neo4jDatabase)
		st.vectors = implementation.NewPgVectorIndex(gormDB)
		st.activity = implementation.NewActivityRepository(gormDB)
	default:
		st.docs = memory.NewDocumentStore()
		st.graph = memory.NewGraphStore()
		st.vectors = memory.NewVectorIndex()
		st.activity = memory.NewActivityLog()
	}

	switch cfg.Agent.SessionBackend {
	case "redis":
		rdb, err := database.NewRedisClient(ctx, cfg.App.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("redis session store: %w", err)
		}
		c.closers = append(c.closers, func(context.Context) error { return rdb.Close() })
		st.sessions = implementation.NewRedisSessionStore(rdb, cfg.Agent.SessionTTL, cfg.Agent.LockTTL)
		st.rdb = rdb
	default:
		st.sessions = memory.NewSessionRepository(cfg.Agent.SessionTTL, cfg.Agent.LockTTL)
	}

	c.Logger.Info("Bootstrap", "Stores ready", map[string]interface{}{
		"store_backend":   cfg.App.StoreBackend,
		"session_backend": cfg.Agent.SessionBackend,
	})
	return st, nil
}

// Close releases connections in reverse order of opening.
func (c *Container) Close(ctx context.Context) {
	for i := len(c.closers) - 1; i >= 0; i-- {
		if err := c.closers[i](ctx); err != nil {
			log.Printf("[WARN] Shutdown: %v", err)
		}
	}
	c.closers = nil
}
