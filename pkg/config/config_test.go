package config

import (
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	viper.Reset()

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "badger", cfg.Database.Driver)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.InDelta(t, 0.8, cfg.Retrieval.SimThreshold, 1e-6)
	assert.Equal(t, 1, cfg.Retrieval.TopKKeywords)
	assert.Equal(t, 1, cfg.Retrieval.MaxDepth)
	assert.True(t, cfg.Retrieval.EmbedMode)
	assert.False(t, cfg.Retrieval.RejectWhileRebuild)
	assert.Equal(t, 60, cfg.Retrieval.EmbedTimeoutSeconds)
	assert.Equal(t, 600, cfg.Ingest.ChunkSize)
	assert.Equal(t, 150, cfg.Ingest.ChunkOverlap)
	assert.True(t, cfg.CircuitBreaker.Enabled)
}

func TestEnvOverrides(t *testing.T) {
	viper.Reset()
	t.Setenv("NEO4J_URI", "neo4j://example:7687")
	t.Setenv("SIM_THRESHOLD", "0.65")
	t.Setenv("MAX_DEPTH", "3")
	t.Setenv("SERVER_PORT", "9090")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "neo4j://example:7687", cfg.Database.URI)
	assert.InDelta(t, 0.65, cfg.Retrieval.SimThreshold, 1e-6)
	assert.Equal(t, 3, cfg.Retrieval.MaxDepth)
	assert.Equal(t, 9090, cfg.Server.Port)
}

func TestAPIKeyFallback(t *testing.T) {
	viper.Reset()
	t.Setenv("OPENAI_API_KEY", "sk-test")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "sk-test", cfg.Matcher.APIKey)
	assert.Equal(t, "sk-test", cfg.Embedding.APIKey)
}
