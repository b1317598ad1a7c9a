package config

import (
	"context"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/rs/zerolog/log"
)

const (
	EmbeddingProviderOpenAI = "openai"
	EmbeddingProviderHash   = "hash"
)

type EmbeddingConfig struct {
	Provider   string        `env:"TUSKMEM_EMBEDDING_PROVIDER" envDefault:"openai"`
	BaseURL    string        `env:"TUSKMEM_EMBEDDING_URL" envDefault:"https://api.openai.com"`
	APIKey     string        `env:"TUSKMEM_EMBEDDING_API_KEY"`
	Model      string        `env:"TUSKMEM_EMBEDDING_MODEL" envDefault:"text-embedding-3-small"`
	Dimensions int           `env:"TUSKMEM_EMBEDDING_DIMENSIONS" envDefault:"1536"`
	Timeout    time.Duration `env:"TUSKMEM_EMBEDDING_TIMEOUT" envDefault:"15s"`
	Attempts   int           `env:"TUSKMEM_EMBEDDING_ATTEMPTS" envDefault:"3"`

	// MaxInputTokens clips input before embedding. 0 disables clipping.
	MaxInputTokens int `env:"TUSKMEM_EMBEDDING_MAX_INPUT_TOKENS" envDefault:"0"`
	// CacheSize is the number of cached vectors. 0 disables the cache.
	CacheSize int64 `env:"TUSKMEM_EMBEDDING_CACHE_SIZE" envDefault:"10000"`
}

func NewEmbeddingConfig(ctx context.Context) *EmbeddingConfig {
	cfg := &EmbeddingConfig{}
	if err := env.Parse(cfg); err != nil {
		log.Ctx(ctx).Fatal().Err(err).Msg("failed to parse embedding config")
	}
	return cfg
}
