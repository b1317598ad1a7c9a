package config

import (
	"context"
	"path/filepath"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/sandevgo/tuskmem/pkg/log"
)

type AppConfig struct {
	RuntimePath      string        `env:"TUSKMEM_RUNTIME_PATH" envDefault:".tuskmem"`
	HTTPAddr         string        `env:"TUSKMEM_HTTP_ADDR" envDefault:":8088"`
	MetricsNamespace string        `env:"TUSKMEM_METRICS_NAMESPACE" envDefault:"tuskmem"`
	ShutdownTimeout  time.Duration `env:"TUSKMEM_SHUTDOWN_TIMEOUT" envDefault:"10s"`

	// Indexer
	EnableIndexer  bool          `env:"TUSKMEM_ENABLE_INDEXER" envDefault:"true"`
	IndexInterval  time.Duration `env:"TUSKMEM_INDEX_INTERVAL" envDefault:"10s"`
	IndexBatchSize int           `env:"TUSKMEM_INDEX_BATCH_SIZE" envDefault:"20"`
}

func NewAppConfig(ctx context.Context) *AppConfig {
	c := &AppConfig{}
	if err := env.Parse(c); err != nil {
		log.FromCtx(ctx).Fatal().Err(err).Msg("failed to parse App config")
	}
	c.RuntimePath = resolveRuntimePath(c.RuntimePath)
	return c
}

func (c AppConfig) GetRuntimePath() string {
	return c.RuntimePath
}

func (c AppConfig) GetDatabasePath() string {
	return filepath.Join(c.RuntimePath, "conversations.db")
}

func (c AppConfig) GetVectorPath() string {
	return filepath.Join(c.RuntimePath, "vectors")
}

func (c AppConfig) GetEnvPath() string {
	return filepath.Join(c.RuntimePath, ".env")
}
