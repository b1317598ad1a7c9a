package rag

import (
	"context"
	"fmt"
	"net/http"

	"github.com/sandevgo/tuskmem/internal/config"
	"github.com/sandevgo/tuskmem/internal/core"
	"github.com/sandevgo/tuskmem/internal/observability"
	"github.com/sandevgo/tuskmem/pkg/log"
	"github.com/sandevgo/tuskmem/pkg/retry"
)

func NewProvider(cfg *config.EmbeddingConfig) (core.EmbeddingProvider, error) {
	switch cfg.Provider {
	case config.EmbeddingProviderOpenAI:
		return NewOpenAIProvider(cfg.BaseURL, cfg.APIKey, cfg.Model, &http.Client{}), nil
	case config.EmbeddingProviderHash:
		return NewHashProvider(cfg.Dimensions), nil
	default:
		return nil, fmt.Errorf("unknown embedding provider: %s", cfg.Provider)
	}
}

// NewClientFromConfig wires the provider, retry policy, cache and clipping.
// The returned cleanup releases the cache.
func NewClientFromConfig(ctx context.Context, cfg *config.EmbeddingConfig, metrics *observability.Metrics) (*Client, func() error, error) {
	logger := log.FromCtx(ctx)

	provider, err := NewProvider(cfg)
	if err != nil {
		return nil, nil, err
	}

	attempts := cfg.Attempts
	if attempts <= 0 {
		attempts = DefaultAttempts
	}
	opts := []Option{
		WithRetrier(retry.NewRetrier(retry.NewAttemptsConfig(attempts, IsRetryable))),
		WithTimeout(cfg.Timeout),
	}

	var cache *Cache
	if cfg.CacheSize > 0 {
		cache, err = NewCache(cfg.CacheSize, metrics)
		if err != nil {
			return nil, nil, err
		}
		opts = append(opts, WithCache(cache))
	}

	if cfg.MaxInputTokens > 0 {
		tok, err := DefaultTokenizer()
		if err != nil {
			logger.Warn().Err(err).Msg("tokenizer unavailable, embedding input will not be clipped")
		} else {
			opts = append(opts, WithClipping(tok, cfg.MaxInputTokens))
		}
	}

	client, err := NewClient(provider, cfg.Dimensions, opts...)
	if err != nil {
		return nil, nil, err
	}

	logger.Debug().
		Str("provider", cfg.Provider).
		Str("model", cfg.Model).
		Int("dims", cfg.Dimensions).
		Msg("embedding client ready")
	return client, cache.Close, nil
}
