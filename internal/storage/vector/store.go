package vector

import (
	"context"
	"errors"
	"fmt"

	"github.com/sandevgo/tuskmem/internal/core"
)

// Backend is a concrete vector database. Implementations return raw
// similarities and may over-return; Store normalizes the result.
type Backend interface {
	Upsert(ctx context.Context, record core.MemoryRecord) error
	Query(ctx context.Context, vector []float32, filter core.Filter, topK int) ([]core.MemorySearchResult, error)
	DeleteByFilter(ctx context.Context, filter core.Filter) error
	Count(ctx context.Context) (int, error)
	Close() error
}

// Store is the vector store client used by the memory service.
// It validates calls, maps backend failures to core.ErrProviderUnavailable
// and guarantees ordered, bounded results with scores in [0,1].
type Store struct {
	backend Backend
}

var _ core.VectorStore = (*Store)(nil)

func NewStore(backend Backend) *Store {
	return &Store{backend: backend}
}

func (s *Store) Upsert(ctx context.Context, record core.MemoryRecord) error {
	switch {
	case record.ID == "":
		return core.InvalidInput("record id is empty")
	case len(record.Vector) == 0:
		return core.InvalidInput("record %s has no vector", record.ID)
	case record.Metadata.UserID == "" || record.Metadata.ConversationID == "":
		return core.InvalidInput("record %s is missing its user or conversation scope", record.ID)
	}

	if err := s.backend.Upsert(ctx, record); err != nil {
		return unavailable("upsert", err)
	}
	return nil
}

func (s *Store) Query(ctx context.Context, vector []float32, filter core.Filter, topK int) ([]core.MemorySearchResult, error) {
	switch {
	case topK <= 0:
		return nil, core.InvalidInput("topK must be positive, got %d", topK)
	case len(vector) == 0:
		return nil, core.InvalidInput("query vector is empty")
	case filter.UserID == "":
		return nil, core.InvalidInput("query requires a user scope")
	}

	results, err := s.backend.Query(ctx, vector, filter, topK)
	if err != nil {
		return nil, unavailable("query", err)
	}

	out := results[:0]
	for _, r := range results {
		if !filter.Matches(r.Metadata) {
			continue
		}
		r.Score = ClampScore(r.Score)
		out = append(out, r)
	}
	core.SortSearchResults(out)
	if len(out) > topK {
		out = out[:topK]
	}
	return out, nil
}

// DeleteByFilter removes every record matching filter. An unscoped filter is
// rejected so a purge can never wipe the whole store.
func (s *Store) DeleteByFilter(ctx context.Context, filter core.Filter) error {
	if filter.UserID == "" && filter.ConversationID == "" {
		return core.InvalidInput("delete requires a user or conversation scope")
	}
	if err := s.backend.DeleteByFilter(ctx, filter); err != nil {
		return unavailable("delete", err)
	}
	return nil
}

func (s *Store) Count(ctx context.Context) (int, error) {
	n, err := s.backend.Count(ctx)
	if err != nil {
		return 0, unavailable("count", err)
	}
	return n, nil
}

func (s *Store) Close() error {
	return s.backend.Close()
}

func ClampScore(s float64) float64 {
	switch {
	case s < 0:
		return 0
	case s > 1:
		return 1
	default:
		return s
	}
}

func unavailable(op string, err error) error {
	if errors.Is(err, core.ErrInvalidInput) || errors.Is(err, core.ErrProviderUnavailable) {
		return fmt.Errorf("vector %s: %w", op, err)
	}
	return fmt.Errorf("vector %s: %w: %w", op, core.ErrProviderUnavailable, err)
}
