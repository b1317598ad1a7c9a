package memory

import (
	"context"
	"fmt"

	"github.com/sandevgo/tuskmem/internal/config"
	"github.com/sandevgo/tuskmem/internal/core"
	"github.com/sandevgo/tuskmem/internal/observability"
	"github.com/sandevgo/tuskmem/pkg/log"
)

// Memory is the engine facade: the write path, the read path and purges.
type Memory struct {
	cfg       config.MemoryConfig
	store     core.VectorStore
	convLog   core.ConversationLog
	metrics   *observability.Metrics
	writer    *Writer
	retriever *Retriever
	assembler *Assembler
}

var _ core.Memory = (*Memory)(nil)

func NewMemory(
	cfg config.MemoryConfig,
	embedder core.Embedder,
	store core.VectorStore,
	convLog core.ConversationLog,
	counter core.TokenCounter,
	metrics *observability.Metrics,
) *Memory {
	retriever := NewRetriever(embedder, store, metrics)
	return &Memory{
		cfg:       cfg,
		store:     store,
		convLog:   convLog,
		metrics:   metrics,
		writer:    NewWriter(embedder, store, cfg.Workers, metrics),
		retriever: retriever,
		assembler: NewAssembler(retriever,
			WithRetrievalWidth(cfg.RetrievalWidth),
			WithMinScore(cfg.MinScore),
			WithTokenBudget(counter, cfg.MaxContextTokens),
		),
	}
}

func (s *Memory) StoreConversationMemory(ctx context.Context, conversationID, userID string, turns []core.Turn) error {
	return s.writer.StoreConversationMemory(ctx, conversationID, userID, turns)
}

// Retrieve searches the user's memory. A zero MinScore selects the configured floor.
func (s *Memory) Retrieve(ctx context.Context, req core.RetrieveRequest) ([]core.MemorySearchResult, error) {
	if req.MinScore == 0 {
		req.MinScore = s.cfg.MinScore
	}
	return s.retriever.Retrieve(ctx, req)
}

func (s *Memory) AssembleContext(ctx context.Context, req core.AssembleRequest) (*core.AssembledContext, error) {
	return s.assembler.AssembleContext(ctx, req)
}

// ConversationContext assembles context for the next response from the
// conversation log's most recent turns.
func (s *Memory) ConversationContext(ctx context.Context, conversationID, userID, query string, topK int) (*core.AssembledContext, error) {
	if s.convLog == nil {
		return nil, fmt.Errorf("conversation log is not configured")
	}
	if conversationID == "" {
		return nil, core.InvalidInput("conversation id is required")
	}

	window := s.cfg.ContextWindowSize
	if window <= 0 {
		window = topK
	}
	recent, err := s.convLog.RecentTurns(ctx, conversationID, window)
	if err != nil {
		return nil, fmt.Errorf("failed to load recent turns: %w", err)
	}

	return s.assembler.AssembleContext(ctx, core.AssembleRequest{
		ConversationID: conversationID,
		UserID:         userID,
		Query:          query,
		RecentTurns:    recent,
		TopK:           topK,
	})
}

func (s *Memory) DeleteConversationMemory(ctx context.Context, conversationID string) error {
	if conversationID == "" {
		return core.InvalidInput("conversation id is required")
	}
	return s.purge(ctx, "conversation", core.Filter{ConversationID: conversationID})
}

func (s *Memory) DeleteUserMemory(ctx context.Context, userID string) error {
	if userID == "" {
		return core.InvalidInput("user id is required")
	}
	return s.purge(ctx, "user", core.Filter{UserID: userID})
}

func (s *Memory) purge(ctx context.Context, scope string, filter core.Filter) error {
	if err := s.store.DeleteByFilter(ctx, filter); err != nil {
		return fmt.Errorf("purge %s memory: %w", scope, err)
	}
	if s.metrics != nil {
		s.metrics.RecordsPurged.WithLabelValues(scope).Inc()
	}
	log.FromCtx(ctx).Info().
		Str("scope", scope).
		Str("conversation_id", filter.ConversationID).
		Str("user_id", filter.UserID).
		Msg("memory purged")
	return nil
}

// Count reports the number of stored memory records.
func (s *Memory) Count(ctx context.Context) (int, error) {
	return s.store.Count(ctx)
}
