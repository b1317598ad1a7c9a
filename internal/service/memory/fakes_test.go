package memory

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sandevgo/tuskmem/internal/core"
)

type fakeEmbedder struct {
	err    error
	failOn map[string]error
	delay  time.Duration

	calls    atomic.Int32
	inflight atomic.Int32
	peak     atomic.Int32
}

func (f *fakeEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	f.calls.Add(1)
	n := f.inflight.Add(1)
	defer f.inflight.Add(-1)
	for {
		p := f.peak.Load()
		if n <= p || f.peak.CompareAndSwap(p, n) {
			break
		}
	}

	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err, ok := f.failOn[text]; ok {
		return nil, err
	}
	if f.err != nil {
		return nil, f.err
	}
	return []float32{1, 0}, nil
}

func (f *fakeEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v, err := f.Embed(ctx, t)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func (f *fakeEmbedder) Dimensions() int { return 2 }

// fakeStore records writes and answers queries with scripted results.
type fakeStore struct {
	mu         sync.Mutex
	records    map[string]core.MemoryRecord
	results    []core.MemorySearchResult
	failUpsert map[string]error
	queryErr   error
	deleteErr  error

	lastFilter core.Filter
	lastTopK   int
	deleted    []core.Filter
}

func newFakeStore() *fakeStore {
	return &fakeStore{records: map[string]core.MemoryRecord{}}
}

func (s *fakeStore) Upsert(_ context.Context, r core.MemoryRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err, ok := s.failUpsert[r.Content]; ok {
		return err
	}
	s.records[r.ID] = r
	return nil
}

func (s *fakeStore) Query(_ context.Context, _ []float32, filter core.Filter, topK int) ([]core.MemorySearchResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastFilter = filter
	s.lastTopK = topK
	if s.queryErr != nil {
		return nil, s.queryErr
	}

	out := make([]core.MemorySearchResult, 0, len(s.results))
	for _, r := range s.results {
		if filter.ConversationID != "" && r.ConversationID != filter.ConversationID {
			continue
		}
		out = append(out, r)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	if len(out) > topK {
		out = out[:topK]
	}
	return out, nil
}

func (s *fakeStore) DeleteByFilter(_ context.Context, f core.Filter) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.deleteErr != nil {
		return s.deleteErr
	}
	s.deleted = append(s.deleted, f)
	return nil
}

func (s *fakeStore) Count(context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records), nil
}

func (s *fakeStore) Close() error { return nil }

type fakeLog struct {
	turns map[string][]core.Turn
}

func (l *fakeLog) AppendTurn(_ context.Context, t core.Turn) (core.Turn, error) {
	l.turns[t.ConversationID] = append(l.turns[t.ConversationID], t)
	return t, nil
}

func (l *fakeLog) ListTurns(_ context.Context, conversationID string) ([]core.Turn, error) {
	return l.turns[conversationID], nil
}

func (l *fakeLog) RecentTurns(_ context.Context, conversationID string, limit int) ([]core.Turn, error) {
	turns := l.turns[conversationID]
	if len(turns) > limit {
		turns = turns[len(turns)-limit:]
	}
	return turns, nil
}

var t0 = time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)

func turnAt(conv string, role core.Role, content string, offset time.Duration) core.Turn {
	return core.Turn{
		ID:             content,
		ConversationID: conv,
		UserID:         "u1",
		Role:           role,
		Content:        content,
		Timestamp:      t0.Add(offset),
	}
}

// indexed numbers turns by their position, as the conversation log does.
func indexed(turns ...core.Turn) []core.Turn {
	for i := range turns {
		turns[i].Index = i
	}
	return turns
}

func hit(id, conv, content string, score float64, ts time.Time) core.MemorySearchResult {
	return core.MemorySearchResult{
		ID:             id,
		Content:        content,
		Role:           core.RoleUser,
		ConversationID: conv,
		Timestamp:      ts,
		Score:          score,
		Metadata:       core.RecordMetadata{ConversationID: conv, UserID: "u1", Role: core.RoleUser, Timestamp: ts},
	}
}
