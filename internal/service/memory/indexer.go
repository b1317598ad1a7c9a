package memory

import (
	"context"
	"time"

	"github.com/sandevgo/tuskmem/internal/core"
	"github.com/sandevgo/tuskmem/internal/observability"
	"github.com/sandevgo/tuskmem/pkg/log"
)

const (
	IndexerBatchSize    = 20
	IndexerPollInterval = 10 * time.Second
)

type conversationStore interface {
	StoreConversationMemory(ctx context.Context, conversationID, userID string, turns []core.Turn) error
}

// Indexer makes logged conversations searchable. Each tick it writes every
// conversation that has turns past its checkpoint and advances the checkpoint
// only when the whole conversation was stored.
type Indexer struct {
	convLog     core.ConversationLog
	checkpoints core.IndexCheckpoints
	memory      conversationStore
	metrics     *observability.Metrics
	interval    time.Duration
	batchSize   int
}

func NewIndexer(
	convLog core.ConversationLog,
	checkpoints core.IndexCheckpoints,
	memory conversationStore,
	metrics *observability.Metrics,
	interval time.Duration,
	batchSize int,
) *Indexer {
	if interval <= 0 {
		interval = IndexerPollInterval
	}
	if batchSize <= 0 {
		batchSize = IndexerBatchSize
	}
	return &Indexer{
		convLog:     convLog,
		checkpoints: checkpoints,
		memory:      memory,
		metrics:     metrics,
		interval:    interval,
		batchSize:   batchSize,
	}
}

func (w *Indexer) Start(ctx context.Context) error {
	logger := log.FromCtx(ctx).With().Str("component", "indexer").Logger()
	logger.Info().Dur("interval", w.interval).Msg("starting memory indexer")

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info().Msg("shutting down memory indexer")
			return nil
		case <-ticker.C:
			if _, err := w.RunOnce(ctx); err != nil {
				logger.Error().Err(err).Msg("indexing batch failed")
			}
		}
	}
}

func (w *Indexer) Shutdown(ctx context.Context) error {
	return nil
}

// RunOnce indexes one batch of pending conversations and returns how many
// were fully stored.
func (w *Indexer) RunOnce(ctx context.Context) (int, error) {
	logger := log.FromCtx(ctx)

	pending, err := w.checkpoints.PendingConversations(ctx, w.batchSize)
	if err != nil {
		return 0, err
	}

	done := 0
	for _, p := range pending {
		if ctx.Err() != nil {
			return done, ctx.Err()
		}
		if err := w.IndexConversation(ctx, p.ConversationID, p.UserID); err != nil {
			logger.Warn().
				Err(err).
				Str("conversation_id", p.ConversationID).
				Msg("failed to index conversation")
			continue
		}
		if w.metrics != nil {
			w.metrics.IndexedTurns.Add(float64(p.TurnCount - p.IndexedTurns))
		}
		done++
	}
	return done, nil
}

// IndexConversation stores the whole conversation and moves its checkpoint.
func (w *Indexer) IndexConversation(ctx context.Context, conversationID, userID string) error {
	turns, err := w.convLog.ListTurns(ctx, conversationID)
	if err != nil {
		return err
	}
	if len(turns) == 0 {
		return nil
	}
	if userID == "" {
		userID = turns[0].UserID
	}

	if err := w.memory.StoreConversationMemory(ctx, conversationID, userID, turns); err != nil {
		return err
	}
	return w.checkpoints.SetIndexed(ctx, conversationID, len(turns))
}
