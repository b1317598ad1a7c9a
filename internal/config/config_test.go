package config

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewAppConfig_Defaults(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("TUSKMEM_RUNTIME_PATH", "")

	cfg := NewAppConfig(context.Background())

	assert.Equal(t, filepath.Join(home, ".tuskmem"), cfg.GetRuntimePath())
	assert.Equal(t, filepath.Join(home, ".tuskmem", "conversations.db"), cfg.GetDatabasePath())
	assert.Equal(t, filepath.Join(home, ".tuskmem", "vectors"), cfg.GetVectorPath())
	assert.Equal(t, 10*time.Second, cfg.IndexInterval)
	assert.True(t, cfg.EnableIndexer)
}

func TestNewAppConfig_AbsoluteRuntimePath(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("TUSKMEM_RUNTIME_PATH", dir)
	t.Setenv("TUSKMEM_INDEX_INTERVAL", "1m")

	cfg := NewAppConfig(context.Background())

	assert.Equal(t, dir, cfg.GetRuntimePath())
	assert.Equal(t, time.Minute, cfg.IndexInterval)
	assert.Equal(t, filepath.Join(dir, ".env"), cfg.GetEnvPath())
}

func TestNewMemoryConfig_MatchesDefaults(t *testing.T) {
	cfg := NewMemoryConfig(context.Background())
	require.NotNil(t, cfg)
	assert.Equal(t, DefaultMemoryConfig(), *cfg)
}

func TestNewMemoryConfig_Overrides(t *testing.T) {
	t.Setenv("TUSKMEM_MIN_SCORE", "0.9")
	t.Setenv("TUSKMEM_WRITE_WORKERS", "8")

	cfg := NewMemoryConfig(context.Background())

	assert.InDelta(t, 0.9, cfg.MinScore, 1e-9)
	assert.Equal(t, 8, cfg.Workers)
}

func TestNewEmbeddingConfig(t *testing.T) {
	t.Setenv("TUSKMEM_EMBEDDING_PROVIDER", EmbeddingProviderHash)
	t.Setenv("TUSKMEM_EMBEDDING_DIMENSIONS", "384")

	cfg := NewEmbeddingConfig(context.Background())

	assert.Equal(t, EmbeddingProviderHash, cfg.Provider)
	assert.Equal(t, 384, cfg.Dimensions)
	assert.Equal(t, 3, cfg.Attempts)
	assert.Equal(t, 15*time.Second, cfg.Timeout)
}

func TestNewVectorConfig(t *testing.T) {
	cfg := NewVectorConfig(context.Background())
	assert.Equal(t, VectorBackendChromem, cfg.Backend)
	assert.True(t, cfg.Persist)
}
