package config

import (
	"context"

	"github.com/caarlos0/env/v11"
	"github.com/rs/zerolog/log"
)

type MemoryConfig struct {
	MinScore float64 `env:"TUSKMEM_MIN_SCORE" envDefault:"0.7"`
	TopK     int     `env:"TUSKMEM_TOP_K" envDefault:"5"`
	Workers  int     `env:"TUSKMEM_WRITE_WORKERS" envDefault:"4"`
	// RetrievalWidth multiplies topK when over-fetching memories for assembly.
	RetrievalWidth    int `env:"TUSKMEM_RETRIEVAL_WIDTH" envDefault:"3"`
	MaxContextTokens  int `env:"TUSKMEM_MAX_CONTEXT_TOKENS" envDefault:"0"`
	ContextWindowSize int `env:"TUSKMEM_CONTEXT_WINDOW_SIZE" envDefault:"20"`
}

func DefaultMemoryConfig() MemoryConfig {
	return MemoryConfig{
		MinScore:          0.7,
		TopK:              5,
		Workers:           4,
		RetrievalWidth:    3,
		ContextWindowSize: 20,
	}
}

func NewMemoryConfig(ctx context.Context) *MemoryConfig {
	cfg := &MemoryConfig{}
	if err := env.Parse(cfg); err != nil {
		log.Ctx(ctx).Fatal().Err(err).Msg("failed to parse memory config")
	}
	return cfg
}
