package memory

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/sandevgo/tuskmem/internal/core"
	"github.com/sandevgo/tuskmem/internal/observability"
	"github.com/sandevgo/tuskmem/pkg/log"
)

const DefaultWorkers = 4

// recordNamespace seeds name-based record ids.
var recordNamespace = uuid.MustParse("6f1c4f1e-9a3b-4c8e-b0a5-2d7e5c3f8a11")

// RecordID derives the memory record id of the turn at index in a conversation.
func RecordID(conversationID string, index int) string {
	return uuid.NewSHA1(recordNamespace, []byte(conversationID+":"+strconv.Itoa(index))).String()
}

// Writer embeds conversation turns and upserts them as memory records.
type Writer struct {
	embedder core.Embedder
	store    core.VectorStore
	workers  int
	metrics  *observability.Metrics
}

func NewWriter(embedder core.Embedder, store core.VectorStore, workers int, metrics *observability.Metrics) *Writer {
	if workers <= 0 {
		workers = DefaultWorkers
	}
	return &Writer{
		embedder: embedder,
		store:    store,
		workers:  workers,
		metrics:  metrics,
	}
}

// StoreConversationMemory writes one record per turn, keyed by the turn's
// Index in the conversation, so a later batch of the same conversation adds
// records instead of replacing earlier ones. Turns are processed by a bounded
// pool and a failing turn does not stop the others; failures come back as a
// *core.PartialWriteError listing turn indices. A cancelled ctx is returned as is.
func (w *Writer) StoreConversationMemory(ctx context.Context, conversationID, userID string, turns []core.Turn) error {
	if conversationID == "" || userID == "" {
		return core.InvalidInput("conversation and user ids are required")
	}
	if len(turns) == 0 {
		return nil
	}

	count := 0
	seen := make(map[int]int, len(turns))
	for i, t := range turns {
		if prev, ok := seen[t.Index]; ok {
			return core.InvalidInput("turns %d and %d share conversation index %d", prev, i, t.Index)
		}
		seen[t.Index] = i
		count = max(count, t.Index+1)
	}

	logger := log.FromCtx(ctx).With().
		Str("component", "memory_writer").
		Str("conversation_id", conversationID).
		Logger()

	var (
		mu       sync.Mutex
		failures = make(map[int]error)
		written  int
	)
	fail := func(i int, stage string, err error) {
		mu.Lock()
		failures[i] = err
		mu.Unlock()
		w.countFailure(stage)
		logger.Warn().Err(err).Int("turn_index", i).Str("stage", stage).Msg("failed to store turn")
	}

	g := &errgroup.Group{}
	g.SetLimit(w.workers)

	for _, turn := range turns {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}
			stage, err := w.storeTurn(ctx, conversationID, userID, count, turn)
			if err != nil {
				fail(turn.Index, stage, err)
				return nil
			}
			mu.Lock()
			written++
			mu.Unlock()
			return nil
		})
	}
	// failures are collected per turn, the group only bounds concurrency
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		w.countFailure(observability.StageCancelled)
		logger.Error().Err(err).Int("written", written).Int("turns", len(turns)).Msg("memory write cancelled")
		return fmt.Errorf("store conversation memory: %w", err)
	}

	if w.metrics != nil {
		w.metrics.RecordsWritten.Add(float64(written))
	}

	if len(failures) > 0 {
		return core.NewPartialWriteError(len(turns), failures)
	}

	logger.Debug().Int("turns", len(turns)).Msg("conversation memory stored")
	return nil
}

func (w *Writer) storeTurn(ctx context.Context, conversationID, userID string, count int, turn core.Turn) (string, error) {
	index := turn.Index
	switch {
	case index < 0:
		return observability.StageEmbed, core.InvalidInput("turn index %d is negative", index)
	case turn.Timestamp.IsZero():
		return observability.StageEmbed, core.InvalidInput("turn %d has no timestamp", index)
	case strings.TrimSpace(turn.Content) == "":
		return observability.StageEmbed, core.InvalidInput("turn %d has no content", index)
	case !turn.Role.Valid():
		return observability.StageEmbed, core.InvalidInput("turn %d has unknown role %q", index, turn.Role)
	case turn.ConversationID != "" && turn.ConversationID != conversationID:
		return observability.StageEmbed, core.InvalidInput("turn %d belongs to conversation %s", index, turn.ConversationID)
	}

	texts := []string{turn.Content}
	vec, err := w.embedder.Embed(ctx, turn.Content)
	if err != nil {
		return observability.StageEmbed, err
	}

	record := core.MemoryRecord{
		ID:      RecordID(conversationID, index),
		Vector:  vec,
		Content: turn.Content,
		Metadata: core.RecordMetadata{
			ConversationID: conversationID,
			UserID:         userID,
			Role:           turn.Role,
			Timestamp:      turn.Timestamp,
			Topics:         ClassifyTopics(texts),
			Tone:           ClassifyTone(texts),
			TurnIndex:      index,
			TurnCount:      count,
		},
	}
	if err := w.store.Upsert(ctx, record); err != nil {
		return observability.StageUpsert, err
	}
	return "", nil
}

func (w *Writer) countFailure(stage string) {
	if w.metrics != nil {
		w.metrics.WriteFailures.WithLabelValues(stage).Inc()
	}
}

// IsPartialWrite extracts the failed turn indices from err.
func IsPartialWrite(err error) ([]int, bool) {
	var pw *core.PartialWriteError
	if errors.As(err, &pw) {
		return pw.Failed, true
	}
	return nil, false
}
