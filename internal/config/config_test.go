package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()

	assert.Equal(t, 0.8, cfg.Agent.RelevanceThreshold)
	assert.Equal(t, 3, cfg.Agent.OverFetchFactor)
	assert.Equal(t, 15, cfg.Agent.CandidateLimit)
	assert.Equal(t, 30*time.Minute, cfg.Agent.SessionTTL)
	assert.Equal(t, "isoriskagent", cfg.Database.MongoDatabase)
	assert.Equal(t, "memory", cfg.App.StoreBackend)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("AGENT_RELEVANCE_THRESHOLD", "0.65")
	t.Setenv("AGENT_CANDIDATE_LIMIT", "25")
	t.Setenv("AGENT_SESSION_TTL", "5m")
	t.Setenv("AGENT_SESSION_BACKEND", "redis")
	t.Setenv("STORE_BACKEND", "external")

	cfg := Load()

	assert.Equal(t, 0.65, cfg.Agent.RelevanceThreshold)
	assert.Equal(t, 25, cfg.Agent.CandidateLimit)
	assert.Equal(t, 5*time.Minute, cfg.Agent.SessionTTL)
	assert.Equal(t, "redis", cfg.Agent.SessionBackend)
	assert.Equal(t, "external", cfg.App.StoreBackend)
}

func TestMalformedValuesFallBack(t *testing.T) {
	tests := []struct {
		name string
		key  string
		val  string
	}{
		{"float", "AGENT_RELEVANCE_THRESHOLD", "high"},
		{"int", "AGENT_CANDIDATE_LIMIT", "many"},
		{"duration", "AGENT_SESSION_TTL", "forever"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.val)
			cfg := Load()
			assert.Equal(t, 0.8, cfg.Agent.RelevanceThreshold)
			assert.Equal(t, 15, cfg.Agent.CandidateLimit)
			assert.Equal(t, 30*time.Minute, cfg.Agent.SessionTTL)
		})
	}
}

func TestLockOutlivesWorstCaseResume(t *testing.T) {
	cfg := Load()
	// 3 risks x 5 candidates: 10s + 15*(15s+10s) + 15s + 10s + 60s
	assert.Equal(t, 470*time.Second, cfg.Agent.ResumeBudget())
	assert.Equal(t, cfg.Agent.ResumeBudget(), cfg.Agent.LockTTL)

	t.Setenv("AGENT_SESSION_LOCK_TTL", "1h")
	assert.Equal(t, time.Hour, Load().Agent.LockTTL)

	t.Setenv("AGENT_SESSION_LOCK_TTL", "30s")
	t.Setenv("AGENT_MAX_RISKS_PER_RUN", "1")
	cfg = Load()
	assert.Equal(t, 10*time.Second+5*25*time.Second+25*time.Second+60*time.Second, cfg.Agent.LockTTL)
}
