package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sandevgo/tuskmem/internal/config"
	"github.com/sandevgo/tuskmem/internal/core"
	"github.com/sandevgo/tuskmem/internal/observability"
	"github.com/sandevgo/tuskmem/internal/providers/rag"
	"github.com/sandevgo/tuskmem/internal/storage/vector"
)

func TestMemory_EndToEndWithEmbeddedStore(t *testing.T) {
	ctx := context.Background()

	client, err := rag.NewClient(rag.NewHashProvider(128), 128)
	require.NoError(t, err)
	backend, err := vector.NewChromemBackend("", false)
	require.NoError(t, err)
	store := vector.NewStore(backend)

	m := NewMemory(config.DefaultMemoryConfig(), client, store, nil, nil, observability.NewMetrics("test"))

	past := indexed(
		turnAt("D", core.RoleUser, "Faith without works is dead", 0),
		turnAt("D", core.RoleAssistant, "James teaches that faith shows itself in works", time.Second),
	)
	require.NoError(t, m.StoreConversationMemory(ctx, "D", "u1", past))
	require.NoError(t, m.StoreConversationMemory(ctx, "D", "u1", past))

	n, err := m.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	got, err := m.Retrieve(ctx, core.RetrieveRequest{
		Query: "faith without works is dead", UserID: "u1", TopK: 5, MinScore: 0.9,
	})
	require.NoError(t, err)
	require.NotEmpty(t, got)
	assert.Equal(t, "Faith without works is dead", got[0].Content)
	assert.Equal(t, "D", got[0].ConversationID)

	other, err := m.Retrieve(ctx, core.RetrieveRequest{
		Query: "faith without works is dead", UserID: "someone-else", TopK: 5, MinScore: 0.1,
	})
	require.NoError(t, err)
	assert.Empty(t, other)

	require.NoError(t, m.DeleteConversationMemory(ctx, "D"))
	n, err = m.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestMemory_BatchesOfOneConversationAccumulate(t *testing.T) {
	ctx := context.Background()

	client, err := rag.NewClient(rag.NewHashProvider(64), 64)
	require.NoError(t, err)
	backend, err := vector.NewChromemBackend("", false)
	require.NoError(t, err)
	m := NewMemory(config.DefaultMemoryConfig(), client, vector.NewStore(backend), nil, nil, nil)

	turns := indexed(
		turnAt("C", core.RoleUser, "What is grace?", 0),
		turnAt("C", core.RoleAssistant, "Grace is unmerited favor", time.Second),
		turnAt("C", core.RoleUser, "How does that relate to faith?", 2*time.Second),
		turnAt("C", core.RoleAssistant, "Faith receives grace", 3*time.Second),
	)
	require.NoError(t, m.StoreConversationMemory(ctx, "C", "u1", turns[:2]))
	require.NoError(t, m.StoreConversationMemory(ctx, "C", "u1", turns[2:]))

	n, err := m.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, n)

	// rewriting the second batch stays idempotent
	require.NoError(t, m.StoreConversationMemory(ctx, "C", "u1", turns[2:]))
	n, err = m.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, n)
}

func TestMemory_RetrieveDefaultsMinScore(t *testing.T) {
	store := newFakeStore()
	store.results = []core.MemorySearchResult{
		hit("a", "c2", "a", 0.72, t0),
		hit("b", "c3", "b", 0.6, t0),
	}
	m := NewMemory(config.DefaultMemoryConfig(), &fakeEmbedder{}, store, nil, nil, nil)

	got, err := m.Retrieve(context.Background(), core.RetrieveRequest{Query: "q", UserID: "u1", TopK: 5})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "a", got[0].ID)
}

func TestMemory_ConversationContext(t *testing.T) {
	convLog := &fakeLog{turns: map[string][]core.Turn{}}
	for _, tr := range graceTurns() {
		_, err := convLog.AppendTurn(context.Background(), tr)
		require.NoError(t, err)
	}

	cfg := config.DefaultMemoryConfig()
	cfg.ContextWindowSize = 2
	store := newFakeStore()
	store.results = []core.MemorySearchResult{hit("d1", "D", "Faith without works is dead", 0.82, t0)}
	m := NewMemory(cfg, &fakeEmbedder{}, store, convLog, nil, nil)

	got, err := m.ConversationContext(context.Background(), "C", "u1", "How does that relate to faith?", 5)
	require.NoError(t, err)
	require.Len(t, got.Entries, 3)
	assert.Equal(t, "Grace is...", got.Entries[0].Content)
	assert.Equal(t, "How does that relate to faith?", got.Entries[1].Content)
	assert.Equal(t, "D", got.Entries[2].ConversationID)

	_, err = m.ConversationContext(context.Background(), "", "u1", "q", 5)
	require.ErrorIs(t, err, core.ErrInvalidInput)
}

func TestMemory_Purge(t *testing.T) {
	store := newFakeStore()
	metrics := observability.NewMetrics("test")
	m := NewMemory(config.DefaultMemoryConfig(), &fakeEmbedder{}, store, nil, nil, metrics)
	ctx := context.Background()

	require.NoError(t, m.DeleteConversationMemory(ctx, "c1"))
	require.NoError(t, m.DeleteUserMemory(ctx, "u1"))
	assert.Equal(t, []core.Filter{{ConversationID: "c1"}, {UserID: "u1"}}, store.deleted)
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.RecordsPurged.WithLabelValues("user")))

	require.ErrorIs(t, m.DeleteConversationMemory(ctx, ""), core.ErrInvalidInput)
	require.ErrorIs(t, m.DeleteUserMemory(ctx, ""), core.ErrInvalidInput)

	store.deleteErr = errors.Join(core.ErrProviderUnavailable, errors.New("timeout"))
	require.ErrorIs(t, m.DeleteUserMemory(ctx, "u1"), core.ErrProviderUnavailable)
}
