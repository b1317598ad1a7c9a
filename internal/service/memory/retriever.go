package memory

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/sandevgo/tuskmem/internal/core"
	"github.com/sandevgo/tuskmem/internal/observability"
	"github.com/sandevgo/tuskmem/pkg/log"
)

const DefaultMinScore = 0.7

// Retriever finds past turns similar to a query. Downstream failures never
// escape: the result degrades to empty and the degradation is logged and counted.
type Retriever struct {
	embedder core.Embedder
	store    core.VectorStore
	metrics  *observability.Metrics
}

func NewRetriever(embedder core.Embedder, store core.VectorStore, metrics *observability.Metrics) *Retriever {
	return &Retriever{
		embedder: embedder,
		store:    store,
		metrics:  metrics,
	}
}

// Retrieve returns at most req.TopK results with score >= req.MinScore,
// best first, most recent first on equal scores. Only ErrInvalidInput is
// returned as an error.
func (r *Retriever) Retrieve(ctx context.Context, req core.RetrieveRequest) ([]core.MemorySearchResult, error) {
	results, _, err := r.retrieve(ctx, req)
	return results, err
}

// retrieve also reports whether the result was degraded by a downstream failure.
func (r *Retriever) retrieve(ctx context.Context, req core.RetrieveRequest) ([]core.MemorySearchResult, bool, error) {
	switch {
	case strings.TrimSpace(req.Query) == "":
		return nil, false, core.InvalidInput("query is empty")
	case req.UserID == "":
		return nil, false, core.InvalidInput("user id is required")
	case req.TopK <= 0:
		return nil, false, core.InvalidInput("topK must be positive, got %d", req.TopK)
	case req.MinScore < 0 || req.MinScore > 1:
		return nil, false, core.InvalidInput("minScore must be within [0,1], got %v", req.MinScore)
	}

	start := time.Now()
	logger := log.FromCtx(ctx).With().Str("component", "memory_retriever").Logger()

	vec, err := r.embedder.Embed(ctx, req.Query)
	if err != nil {
		if errors.Is(err, core.ErrInvalidInput) {
			return nil, false, err
		}
		return r.degrade(ctx, observability.StageEmbed, err), true, nil
	}

	filter := core.Filter{UserID: req.UserID, ConversationID: req.ConversationID}
	candidates, err := r.store.Query(ctx, vec, filter, req.TopK)
	if err != nil {
		if errors.Is(err, core.ErrInvalidInput) {
			return nil, false, err
		}
		return r.degrade(ctx, observability.StageQuery, err), true, nil
	}

	results := make([]core.MemorySearchResult, 0, len(candidates))
	for _, c := range candidates {
		if c.Score < req.MinScore {
			continue
		}
		results = append(results, c)
	}
	core.SortSearchResults(results)
	if len(results) > req.TopK {
		results = results[:req.TopK]
	}

	if r.metrics != nil {
		r.metrics.ObserveRetrieval(time.Since(start), len(results))
	}
	logger.Debug().
		Int("candidates", len(candidates)).
		Int("results", len(results)).
		Float64("min_score", req.MinScore).
		Msg("memory retrieved")
	return results, false, nil
}

func (r *Retriever) degrade(ctx context.Context, stage string, err error) []core.MemorySearchResult {
	if ctx.Err() != nil {
		stage = observability.StageCancelled
	}
	if r.metrics != nil {
		r.metrics.Degraded(stage)
	}
	log.FromCtx(ctx).Warn().
		Err(err).
		Str("component", "memory_retriever").
		Str("stage", stage).
		Msg("memory retrieval degraded")
	return []core.MemorySearchResult{}
}
