package rag

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sandevgo/tuskmem/internal/core"
	"github.com/sandevgo/tuskmem/pkg/retry"
)

// mockProvider is a test double for core.EmbeddingProvider.
type mockProvider struct {
	mu        sync.Mutex
	embedFunc func(ctx context.Context, texts []string) ([][]float32, error)
	calls     [][]string
}

func (m *mockProvider) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	m.mu.Lock()
	m.calls = append(m.calls, append([]string(nil), texts...))
	m.mu.Unlock()
	if m.embedFunc != nil {
		return m.embedFunc(ctx, texts)
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{float32(i + 1), 0, 0}
	}
	return out, nil
}

func (m *mockProvider) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

func fastRetrier() *retry.Retrier {
	cfg := retry.NewAttemptsConfig(DefaultAttempts, IsRetryable)
	cfg.InitialDelay = time.Millisecond
	cfg.MaxDelay = 2 * time.Millisecond
	cfg.Jitter = time.Millisecond
	return retry.NewRetrier(cfg)
}

func norm(v []float32) float64 {
	var s float64
	for _, x := range v {
		s += float64(x) * float64(x)
	}
	return math.Sqrt(s)
}

func TestNewClient_Validation(t *testing.T) {
	_, err := NewClient(nil, 3)
	require.Error(t, err)

	_, err = NewClient(&mockProvider{}, 0)
	require.Error(t, err)
}

func TestClient_EmbedRejectsEmptyInput(t *testing.T) {
	p := &mockProvider{}
	c, err := NewClient(p, 3)
	require.NoError(t, err)

	for _, text := range []string{"", "   ", "\n\t"} {
		_, err := c.Embed(context.Background(), text)
		require.ErrorIs(t, err, core.ErrInvalidInput)
	}

	_, err = c.EmbedBatch(context.Background(), nil)
	require.ErrorIs(t, err, core.ErrInvalidInput)

	_, err = c.EmbedBatch(context.Background(), []string{"ok", " "})
	require.ErrorIs(t, err, core.ErrInvalidInput)

	assert.Equal(t, 0, p.callCount(), "invalid input must not reach the provider")
}

func TestClient_EmbedBatchPreservesOrder(t *testing.T) {
	p := &mockProvider{}
	c, err := NewClient(p, 3)
	require.NoError(t, err)

	vecs, err := c.EmbedBatch(context.Background(), []string{"a", "b", "c"})
	require.NoError(t, err)
	require.Len(t, vecs, 3)
	for _, v := range vecs {
		assert.Len(t, v, 3)
		assert.InDelta(t, 1.0, norm(v), 1e-6)
	}
	assert.Equal(t, 1, p.callCount())
}

func TestClient_ProjectsDimensions(t *testing.T) {
	tests := []struct {
		name string
		raw  []float32
		want []float32
	}{
		{name: "truncates longer vectors", raw: []float32{3, 4, 12, 7}, want: []float32{0.6, 0.8}},
		{name: "pads shorter vectors", raw: []float32{2}, want: []float32{1, 0}},
		{name: "keeps exact length", raw: []float32{0, 5}, want: []float32{0, 1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := &mockProvider{embedFunc: func(ctx context.Context, texts []string) ([][]float32, error) {
				return [][]float32{tt.raw}, nil
			}}
			c, err := NewClient(p, 2)
			require.NoError(t, err)

			got, err := c.Embed(context.Background(), "text")
			require.NoError(t, err)
			require.Len(t, got, 2)
			assert.InDelta(t, tt.want[0], got[0], 1e-6)
			assert.InDelta(t, tt.want[1], got[1], 1e-6)
		})
	}
}

func TestProject_IsDeterministicAndDoesNotAlias(t *testing.T) {
	raw := []float32{1, 2, 3, 4}
	a := Project(raw, 3)
	b := Project(raw, 3)
	assert.Equal(t, a, b)
	assert.Equal(t, []float32{1, 2, 3, 4}, raw)
}

func TestClient_RetriesTransientFailures(t *testing.T) {
	attempts := 0
	p := &mockProvider{embedFunc: func(ctx context.Context, texts []string) ([][]float32, error) {
		attempts++
		if attempts < 3 {
			return nil, core.ErrProviderUnavailable
		}
		return [][]float32{{1, 0}}, nil
	}}
	c, err := NewClient(p, 2, WithRetrier(fastRetrier()))
	require.NoError(t, err)

	_, err = c.Embed(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
}

func TestClient_GivesUpAfterThreeAttempts(t *testing.T) {
	p := &mockProvider{embedFunc: func(ctx context.Context, texts []string) ([][]float32, error) {
		return nil, errors.New("connection refused")
	}}
	c, err := NewClient(p, 2, WithRetrier(fastRetrier()))
	require.NoError(t, err)

	_, err = c.Embed(context.Background(), "hello")
	require.ErrorIs(t, err, core.ErrProviderUnavailable)
	assert.Equal(t, 3, p.callCount())
}

func TestClient_PermanentFailureIsNotRetried(t *testing.T) {
	p := &mockProvider{embedFunc: func(ctx context.Context, texts []string) ([][]float32, error) {
		return nil, retry.Permanent(core.ErrProviderUnavailable)
	}}
	c, err := NewClient(p, 2, WithRetrier(fastRetrier()))
	require.NoError(t, err)

	_, err = c.Embed(context.Background(), "hello")
	require.ErrorIs(t, err, core.ErrProviderUnavailable)
	assert.Equal(t, 1, p.callCount())
}

func TestClient_VectorCountMismatch(t *testing.T) {
	p := &mockProvider{embedFunc: func(ctx context.Context, texts []string) ([][]float32, error) {
		return [][]float32{{1}}, nil
	}}
	c, err := NewClient(p, 2, WithRetrier(fastRetrier()))
	require.NoError(t, err)

	_, err = c.EmbedBatch(context.Background(), []string{"a", "b"})
	require.ErrorIs(t, err, core.ErrProviderUnavailable)
}

func TestClient_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	p := &mockProvider{embedFunc: func(ctx context.Context, texts []string) ([][]float32, error) {
		return nil, ctx.Err()
	}}
	c, err := NewClient(p, 2, WithRetrier(fastRetrier()))
	require.NoError(t, err)

	_, err = c.Embed(ctx, "hello")
	require.ErrorIs(t, err, core.ErrProviderUnavailable)
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, p.callCount())
}

func TestClient_TimeoutPerAttempt(t *testing.T) {
	p := &mockProvider{embedFunc: func(ctx context.Context, texts []string) ([][]float32, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}}
	c, err := NewClient(p, 2, WithRetrier(fastRetrier()), WithTimeout(5*time.Millisecond))
	require.NoError(t, err)

	_, err = c.Embed(context.Background(), "slow")
	require.ErrorIs(t, err, core.ErrProviderUnavailable)
	assert.Equal(t, 3, p.callCount())
}

func TestClient_UsesCache(t *testing.T) {
	cache, err := NewCache(100, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = cache.Close() })

	p := &mockProvider{}
	c, err := NewClient(p, 3, WithCache(cache))
	require.NoError(t, err)

	first, err := c.Embed(context.Background(), "cached text")
	require.NoError(t, err)
	cache.Wait()

	second, err := c.Embed(context.Background(), "cached text")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, p.callCount())

	// mixed batch only sends the miss
	_, err = c.EmbedBatch(context.Background(), []string{"cached text", "fresh"})
	require.NoError(t, err)
	require.Equal(t, 2, p.callCount())
	assert.Equal(t, []string{"fresh"}, p.calls[1])
}
