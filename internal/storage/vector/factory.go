package vector

import (
	"context"
	"fmt"

	"github.com/sandevgo/tuskmem/internal/config"
	"github.com/sandevgo/tuskmem/pkg/log"
)

// NewStoreFromConfig opens the configured backend. path is the chromem
// persistence directory and is ignored for pgvector.
func NewStoreFromConfig(ctx context.Context, cfg *config.VectorConfig, path string, dims int) (*Store, error) {
	var (
		backend Backend
		err     error
	)

	switch cfg.Backend {
	case config.VectorBackendChromem:
		if !cfg.Persist {
			path = ""
		}
		backend, err = NewChromemBackend(path, cfg.Compress)
	case config.VectorBackendPgvector:
		if cfg.DatabaseURL == "" {
			return nil, fmt.Errorf("pgvector backend requires TUSKMEM_DATABASE_URL")
		}
		backend, err = NewPgvectorBackend(ctx, cfg.DatabaseURL, dims)
	default:
		return nil, fmt.Errorf("unknown vector backend: %s", cfg.Backend)
	}
	if err != nil {
		return nil, err
	}

	log.FromCtx(ctx).Debug().
		Str("backend", cfg.Backend).
		Str("path", path).
		Msg("vector store ready")
	return NewStore(backend), nil
}
