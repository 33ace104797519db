package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	App      AppConfig
	Database DatabaseConfig
	Keys     APIKeys
	Ai       AIConfig
	Agent    AgentConfig
}

type AppConfig struct {
	Port               string
	Environment        string
	LogFilePath        string
	CorsAllowedOrigins string
	NatsURL            string
	RedisURL           string
	RiskIndexTopic     string
	StoreBackend       string // "memory" or "external"
}

type DatabaseConfig struct {
	Connection    string // postgres DSN, vector index
	MongoURI      string
	MongoDatabase string
	Neo4jURI      string
	Neo4jUser     string
	Neo4jPassword string
	Neo4jDatabase string
}

type APIKeys struct {
	OpenAI    string
	JwtSecret string
}

type AIConfig struct {
	EmbeddingProvider  string // "openai" or "ollama"
	EmbeddingModel     string
	EmbeddingDimension int
	OllamaBaseURL      string
	OpenAIBaseURL      string
	LLMProvider        string // "openai" or "ollama"
	LLMModel           string
}

// AgentConfig holds the retrieval and workflow policy.
type AgentConfig struct {
	RelevanceThreshold float64
	OverFetchFactor    int
	CandidateLimit     int
	GuidanceLimit      int
	MaxRisksPerRun     int
	MaxSteps           int
	SessionBackend     string // "memory" or "redis"
	SessionTTL         time.Duration
	LockTTL            time.Duration
	EmbeddingTimeout   time.Duration
	LLMTimeout         time.Duration
	StoreTimeout       time.Duration
}

func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("Note: .env file not found, usage system environment")
	}

	cfg := &Config{
		App: AppConfig{
			Port:               getEnv("APP_PORT", "8000"),
			Environment:        getEnv("GO_ENV", "development"),
			LogFilePath:        getEnv("LOG_FILE_PATH", "logs/agent.log"),
			CorsAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:5173"),
			NatsURL:            getEnv("NATS_URL", "nats://localhost:4222"),
			RedisURL:           getEnv("REDIS_URL", "redis://localhost:6379"),
			RiskIndexTopic:     getEnv("RISK_INDEX_TOPIC_NAME", "INDEX_RISK"),
			StoreBackend:       getEnv("STORE_BACKEND", "memory"),
		},
		Database: DatabaseConfig{
			Connection:    getEnv("DB_CONNECTION_STRING", ""),
			MongoURI:      getEnv("MONGODB_URL", "mongodb://localhost:27017"),
			MongoDatabase: getEnv("MONGODB_DATABASE", "isoriskagent"),
			Neo4jURI:      getEnv("NEO4J_URI", "bolt://localhost:7687"),
			Neo4jUser:     getEnv("NEO4J_USER", "neo4j"),
			Neo4jPassword: getEnv("NEO4J_PASSWORD", ""),
			Neo4jDatabase: getEnv("NEO4J_DATABASE", "neo4j"),
		},
		Keys: APIKeys{
			OpenAI:    getEnv("OPENAI_API_KEY", ""),
			JwtSecret: getEnv("JWT_SECRET", ""),
		},
		Ai: AIConfig{
			EmbeddingProvider:  getEnv("EMBEDDING_PROVIDER", "openai"),
			EmbeddingModel:     getEnv("EMBEDDING_MODEL", "text-embedding-ada-002"),
			EmbeddingDimension: getEnvAsInt("EMBEDDING_DIMENSION", 1536),
			OllamaBaseURL:      getEnv("OLLAMA_BASE_URL", "http://localhost:11434"),
			OpenAIBaseURL:      getEnv("OPENAI_BASE_URL", ""),
			LLMProvider:        getEnv("LLM_PROVIDER", "openai"),
			LLMModel:           getEnv("LLM_MODEL", "gpt-4"),
		},
		Agent: AgentConfig{
			RelevanceThreshold: getEnvAsFloat("AGENT_RELEVANCE_THRESHOLD", 0.8),
			OverFetchFactor:    getEnvAsInt("AGENT_OVERFETCH_FACTOR", 3),
			CandidateLimit:     getEnvAsInt("AGENT_CANDIDATE_LIMIT", 15),
			GuidanceLimit:      getEnvAsInt("AGENT_GUIDANCE_LIMIT", 5),
			MaxRisksPerRun:     getEnvAsInt("AGENT_MAX_RISKS_PER_RUN", 3),
			MaxSteps:           getEnvAsInt("AGENT_MAX_STEPS", 10),
			SessionBackend:     getEnv("AGENT_SESSION_BACKEND", "memory"),
			SessionTTL:         getEnvAsDuration("AGENT_SESSION_TTL", 30*time.Minute),
			LockTTL:            getEnvAsDuration("AGENT_SESSION_LOCK_TTL", 2*time.Minute),
			EmbeddingTimeout:   getEnvAsDuration("AGENT_EMBEDDING_TIMEOUT", 15*time.Second),
			LLMTimeout:         getEnvAsDuration("AGENT_LLM_TIMEOUT", 60*time.Second),
			StoreTimeout:       getEnvAsDuration("AGENT_STORE_TIMEOUT", 10*time.Second),
		},
	}
	if budget := cfg.Agent.ResumeBudget(); cfg.Agent.LockTTL < budget {
		log.Printf("[WARN] AGENT_SESSION_LOCK_TTL %s is shorter than a worst-case resume, using %s", cfg.Agent.LockTTL, budget)
		cfg.Agent.LockTTL = budget
	}
	return cfg
}

// candidatesPerRisk mirrors generation.MaxCandidates.
const candidatesPerRisk = 5

// ResumeBudget is the longest a resume can take when every downstream call
// runs to its timeout. The session lock must outlive it.
func (a AgentConfig) ResumeBudget() time.Duration {
	risks := a.MaxRisksPerRun
	if risks < 1 {
		risks = 3
	}
	controls := time.Duration(risks * candidatesPerRisk)

	graph := time.Duration(risks)*a.StoreTimeout + controls*a.StoreTimeout
	vectors := controls * (a.EmbeddingTimeout + a.StoreTimeout)
	fanOut := graph
	if vectors > fanOut {
		fanOut = vectors
	}
	return a.StoreTimeout + fanOut + a.EmbeddingTimeout + a.StoreTimeout + a.LLMTimeout
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	strValue := getEnv(key, "")
	if value, err := strconv.Atoi(strValue); err == nil {
		return value
	}
	return fallback
}

func getEnvAsFloat(key string, fallback float64) float64 {
	strValue := getEnv(key, "")
	if value, err := strconv.ParseFloat(strValue, 64); err == nil {
		return value
	}
	return fallback
}

// getEnvAsDuration accepts Go duration strings ("30m", "15s").
func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	strValue := getEnv(key, "")
	if value, err := time.ParseDuration(strValue); err == nil {
		return value
	}
	return fallback
}
