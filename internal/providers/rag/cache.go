package rag

import (
	"fmt"

	"github.com/dgraph-io/ristretto"

	"github.com/sandevgo/tuskmem/internal/observability"
)

// Cache keeps recently computed vectors keyed by the exact embedded input.
// A nil *Cache is valid and never hits.
type Cache struct {
	c       *ristretto.Cache
	metrics *observability.Metrics
}

func NewCache(size int64, metrics *observability.Metrics) (*Cache, error) {
	if size <= 0 {
		return nil, fmt.Errorf("cache size must be positive, got %d", size)
	}
	c, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: size * 10,
		MaxCost:     size,
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("create embedding cache: %w", err)
	}
	return &Cache{c: c, metrics: metrics}, nil
}

func (c *Cache) Get(text string) ([]float32, bool) {
	if c == nil {
		return nil, false
	}
	v, ok := c.c.Get(text)
	c.count(ok)
	if !ok {
		return nil, false
	}
	vec := v.([]float32)
	out := make([]float32, len(vec))
	copy(out, vec)
	return out, true
}

func (c *Cache) Set(text string, vec []float32) {
	if c == nil {
		return
	}
	stored := make([]float32, len(vec))
	copy(stored, vec)
	c.c.Set(text, stored, 1)
}

// Wait blocks until buffered writes are visible to Get.
func (c *Cache) Wait() {
	if c != nil {
		c.c.Wait()
	}
}

func (c *Cache) Close() error {
	if c != nil {
		c.c.Close()
	}
	return nil
}

func (c *Cache) count(hit bool) {
	if c.metrics == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	c.metrics.EmbeddingCache.WithLabelValues(result).Inc()
}
