package app

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rodneygagnon/qckstrt/internal/config"
	"github.com/rodneygagnon/qckstrt/internal/events"
)

func localConfig(t *testing.T) *config.Config {
	t.Helper()
	t.Setenv("DOCUMENT_STORE", "badger")
	t.Setenv("BADGER_IN_MEMORY", "true")
	t.Setenv("VECTORDB_PROVIDER", "memory")
	t.Setenv("EMBEDDING_PROVIDER", "ollama")
	t.Setenv("LLM_PROVIDER", "ollama")
	t.Setenv("EXTRACTION_PROVIDERS", "file,url")
	t.Setenv("EVENTS_DISPATCH", "inline")
	t.Setenv("REDIS_ADDR", "127.0.0.1:1")

	cfg, err := config.Load()
	require.NoError(t, err)
	return cfg
}

func TestNewLocal(t *testing.T) {
	a, err := New(context.Background(), localConfig(t))
	require.NoError(t, err)

	assert.NotNil(t, a.Documents)
	assert.NotNil(t, a.Pipeline)
	assert.NotNil(t, a.Orchestrator)
	assert.IsType(t, &events.InlineDispatcher{}, a.Dispatcher)
	assert.False(t, a.Verifier.Enabled())
	require.Contains(t, a.Checks, "badger")
	assert.NotContains(t, a.Checks, "redis")
	assert.NoError(t, a.Checks["badger"](context.Background()))

	require.NoError(t, a.Close())
}

func TestNewQueueNeedsRedis(t *testing.T) {
	cfg := localConfig(t)
	cfg.Events.Dispatch = "queue"

	_, err := New(context.Background(), cfg)
	assert.ErrorContains(t, err, "requires redis")
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	cfg := localConfig(t)
	cfg.Pipeline.ChunkOverlap = cfg.Pipeline.ChunkSize

	_, err := New(context.Background(), cfg)
	assert.ErrorContains(t, err, "ChunkOverlap")
}

func TestNewLoggerLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&buf, "warn")
	logger.Info("hidden")
	logger.Warn("shown")

	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "shown")
}
