package rag

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/sandevgo/tuskmem/internal/core"
	"github.com/sandevgo/tuskmem/pkg/log"
	"github.com/sandevgo/tuskmem/pkg/retry"
)

const DefaultAttempts = 3

// Client validates input, retries transient provider failures and guarantees
// every returned vector has the configured dimensionality.
type Client struct {
	provider  core.EmbeddingProvider
	dims      int
	timeout   time.Duration
	retrier   *retry.Retrier
	cache     *Cache
	tokenizer *Tokenizer
	maxTokens int
}

type Option func(*Client)

func WithCache(cache *Cache) Option {
	return func(c *Client) { c.cache = cache }
}

// WithClipping clips every input to maxTokens tokens before it is embedded.
func WithClipping(tokenizer *Tokenizer, maxTokens int) Option {
	return func(c *Client) {
		c.tokenizer = tokenizer
		c.maxTokens = maxTokens
	}
}

func WithRetrier(r *retry.Retrier) Option {
	return func(c *Client) { c.retrier = r }
}

// WithTimeout bounds each provider attempt.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.timeout = d }
}

func NewClient(provider core.EmbeddingProvider, dims int, opts ...Option) (*Client, error) {
	if provider == nil {
		return nil, errors.New("embedding provider is nil")
	}
	if dims <= 0 {
		return nil, fmt.Errorf("embedding dimensions must be positive, got %d", dims)
	}

	c := &Client{
		provider: provider,
		dims:     dims,
		retrier:  retry.NewRetrier(retry.NewAttemptsConfig(DefaultAttempts, IsRetryable)),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// IsRetryable reports whether an embedding failure is worth another attempt.
func IsRetryable(err error) bool {
	return errors.Is(err, core.ErrProviderUnavailable) && !errors.Is(err, context.Canceled)
}

func (c *Client) Dimensions() int {
	return c.dims
}

func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := c.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// EmbedBatch returns one vector per input in input order.
func (c *Client) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, core.InvalidInput("empty embedding batch")
	}
	for i, t := range texts {
		if strings.TrimSpace(t) == "" {
			return nil, core.InvalidInput("text %d is empty", i)
		}
	}

	out := make([][]float32, len(texts))
	var (
		missing []int
		inputs  []string
	)
	for i, t := range texts {
		input := c.clip(t)
		if vec, ok := c.cache.Get(input); ok {
			out[i] = vec
			continue
		}
		missing = append(missing, i)
		inputs = append(inputs, input)
	}
	if len(missing) == 0 {
		return out, nil
	}

	raw, err := c.call(ctx, inputs)
	if err != nil {
		log.FromCtx(ctx).Warn().Err(err).Int("inputs", len(inputs)).Msg("embedding request failed")
		return nil, err
	}

	for j, i := range missing {
		vec := Project(raw[j], c.dims)
		c.cache.Set(inputs[j], vec)
		out[i] = vec
	}
	return out, nil
}

func (c *Client) call(ctx context.Context, inputs []string) ([][]float32, error) {
	var raw [][]float32
	err := c.retrier.Do(ctx, func() error {
		callCtx := ctx
		if c.timeout > 0 {
			var cancel context.CancelFunc
			callCtx, cancel = context.WithTimeout(ctx, c.timeout)
			defer cancel()
		}

		vecs, err := c.provider.EmbedTexts(callCtx, inputs)
		if err != nil {
			if errors.Is(err, core.ErrProviderUnavailable) || errors.Is(err, core.ErrInvalidInput) {
				return err
			}
			return fmt.Errorf("%w: %w", core.ErrProviderUnavailable, err)
		}
		if len(vecs) != len(inputs) {
			return fmt.Errorf("%w: provider returned %d vectors for %d inputs",
				core.ErrProviderUnavailable, len(vecs), len(inputs))
		}
		raw = vecs
		return nil
	})
	if err == nil {
		return raw, nil
	}
	if errors.Is(err, core.ErrInvalidInput) || errors.Is(err, core.ErrProviderUnavailable) {
		return nil, fmt.Errorf("embed: %w", err)
	}
	// context errors surfaced by the retrier between attempts
	return nil, fmt.Errorf("embed: %w: %w", core.ErrProviderUnavailable, err)
}

func (c *Client) clip(text string) string {
	if c.tokenizer == nil || c.maxTokens <= 0 {
		return text
	}
	return c.tokenizer.Clip(text, c.maxTokens)
}

// Project maps a provider vector onto dims components: longer vectors are
// truncated, shorter ones are zero-padded, and the result is L2-normalized.
// The mapping is lossy but deterministic.
func Project(vec []float32, dims int) []float32 {
	out := make([]float32, dims)
	copy(out, vec)
	Normalize(out)
	return out
}

// Normalize scales v to unit length in place. Zero vectors are left untouched.
func Normalize(v []float32) {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		return
	}
	norm := float32(math.Sqrt(sum))
	for i := range v {
		v[i] /= norm
	}
}
