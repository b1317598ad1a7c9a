package config

import (
	"context"

	"github.com/caarlos0/env/v11"
	"github.com/rs/zerolog/log"
)

const (
	VectorBackendChromem  = "chromem"
	VectorBackendPgvector = "pgvector"
)

type VectorConfig struct {
	Backend     string `env:"TUSKMEM_VECTOR_BACKEND" envDefault:"chromem"`
	DatabaseURL string `env:"TUSKMEM_DATABASE_URL"`
	// Persist keeps chromem collections on disk under the runtime path.
	Persist  bool `env:"TUSKMEM_VECTOR_PERSIST" envDefault:"true"`
	Compress bool `env:"TUSKMEM_VECTOR_COMPRESS" envDefault:"false"`
}

func NewVectorConfig(ctx context.Context) *VectorConfig {
	cfg := &VectorConfig{}
	if err := env.Parse(cfg); err != nil {
		log.Ctx(ctx).Fatal().Err(err).Msg("failed to parse vector store config")
	}
	return cfg
}
