package vector

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sandevgo/tuskmem/internal/core"
)

type stubBackend struct {
	results []core.MemorySearchResult
	err     error
	deleted []core.Filter
}

func (s *stubBackend) Upsert(context.Context, core.MemoryRecord) error { return s.err }

func (s *stubBackend) Query(context.Context, []float32, core.Filter, int) ([]core.MemorySearchResult, error) {
	return s.results, s.err
}

func (s *stubBackend) DeleteByFilter(_ context.Context, f core.Filter) error {
	s.deleted = append(s.deleted, f)
	return s.err
}

func (s *stubBackend) Count(context.Context) (int, error) { return len(s.results), s.err }
func (s *stubBackend) Close() error                       { return nil }

func result(id, user string, score float64, ts time.Time) core.MemorySearchResult {
	return core.MemorySearchResult{
		ID:        id,
		Score:     score,
		Timestamp: ts,
		Metadata:  core.RecordMetadata{UserID: user, Timestamp: ts},
	}
}

func TestStore_QueryValidation(t *testing.T) {
	s := NewStore(&stubBackend{})
	ctx := context.Background()

	_, err := s.Query(ctx, []float32{1}, core.Filter{UserID: "u"}, 0)
	require.ErrorIs(t, err, core.ErrInvalidInput)

	_, err = s.Query(ctx, nil, core.Filter{UserID: "u"}, 3)
	require.ErrorIs(t, err, core.ErrInvalidInput)

	_, err = s.Query(ctx, []float32{1}, core.Filter{ConversationID: "c"}, 3)
	require.ErrorIs(t, err, core.ErrInvalidInput)
}

func TestStore_QueryNormalizesResults(t *testing.T) {
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	backend := &stubBackend{results: []core.MemorySearchResult{
		result("low", "u", 0.5, base),
		result("old-tie", "u", 0.8, base),
		result("over", "u", 1.2, base),
		result("new-tie", "u", 0.8, base.Add(time.Hour)),
		result("other-user", "x", 0.99, base),
		result("negative", "u", -0.3, base),
	}}
	s := NewStore(backend)

	got, err := s.Query(context.Background(), []float32{1}, core.Filter{UserID: "u"}, 4)
	require.NoError(t, err)
	require.Len(t, got, 4)

	ids := []string{got[0].ID, got[1].ID, got[2].ID, got[3].ID}
	assert.Equal(t, []string{"over", "new-tie", "old-tie", "low"}, ids)
	assert.Equal(t, 1.0, got[0].Score)
}

func TestStore_BackendFailure(t *testing.T) {
	s := NewStore(&stubBackend{err: errors.New("connection reset")})
	ctx := context.Background()

	_, err := s.Query(ctx, []float32{1}, core.Filter{UserID: "u"}, 3)
	require.ErrorIs(t, err, core.ErrProviderUnavailable)

	err = s.Upsert(ctx, core.MemoryRecord{
		ID:       "r",
		Vector:   []float32{1},
		Metadata: core.RecordMetadata{UserID: "u", ConversationID: "c"},
	})
	require.ErrorIs(t, err, core.ErrProviderUnavailable)

	_, err = s.Count(ctx)
	require.ErrorIs(t, err, core.ErrProviderUnavailable)
}

func TestStore_UpsertValidation(t *testing.T) {
	s := NewStore(&stubBackend{})
	ctx := context.Background()

	tests := []struct {
		name   string
		record core.MemoryRecord
	}{
		{name: "missing id", record: core.MemoryRecord{Vector: []float32{1}, Metadata: core.RecordMetadata{UserID: "u", ConversationID: "c"}}},
		{name: "missing vector", record: core.MemoryRecord{ID: "r", Metadata: core.RecordMetadata{UserID: "u", ConversationID: "c"}}},
		{name: "missing scope", record: core.MemoryRecord{ID: "r", Vector: []float32{1}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.ErrorIs(t, s.Upsert(ctx, tt.record), core.ErrInvalidInput)
		})
	}
}

func TestStore_DeleteRequiresScope(t *testing.T) {
	backend := &stubBackend{}
	s := NewStore(backend)

	err := s.DeleteByFilter(context.Background(), core.Filter{Since: time.Now()})
	require.ErrorIs(t, err, core.ErrInvalidInput)
	assert.Empty(t, backend.deleted)

	require.NoError(t, s.DeleteByFilter(context.Background(), core.Filter{UserID: "u"}))
	assert.Len(t, backend.deleted, 1)
}

func TestClampScore(t *testing.T) {
	assert.Equal(t, 0.0, ClampScore(-0.2))
	assert.Equal(t, 0.4, ClampScore(0.4))
	assert.Equal(t, 1.0, ClampScore(1.0001))
}
