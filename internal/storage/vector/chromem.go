package vector

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/philippgille/chromem-go"

	"github.com/sandevgo/tuskmem/internal/core"
)

const collectionName = "memories"

// metadata keys stored on every chromem document
const (
	keyConversationID = "conversation_id"
	keyUserID         = "user_id"
	keyRole           = "role"
	keyTimestamp      = "timestamp"
	keyTopics         = "topics"
	keyTone           = "tone"
	keyTurnIndex      = "turn_index"
	keyTurnCount      = "turn_count"
)

// ChromemBackend keeps all records in a single chromem-go collection.
// Equality filters run inside chromem; timestamp ranges are applied after.
type ChromemBackend struct {
	db         *chromem.DB
	collection *chromem.Collection
}

// NewChromemBackend opens an embedded store. An empty path keeps everything in memory.
func NewChromemBackend(path string, compress bool) (*ChromemBackend, error) {
	db := chromem.NewDB()
	if path != "" {
		var err error
		db, err = chromem.NewPersistentDB(path, compress)
		if err != nil {
			return nil, fmt.Errorf("open chromem db at %s: %w", path, err)
		}
	}

	// vectors are always supplied, so no embedding func is configured
	col, err := db.GetOrCreateCollection(collectionName, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("get or create collection: %w", err)
	}

	return &ChromemBackend{db: db, collection: col}, nil
}

func (b *ChromemBackend) Upsert(ctx context.Context, record core.MemoryRecord) error {
	doc := chromem.Document{
		ID:        record.ID,
		Content:   record.Content,
		Embedding: record.Vector,
		Metadata:  encodeMetadata(record.Metadata),
	}
	// AddDocument replaces an existing document with the same id.
	if err := b.collection.AddDocument(ctx, doc); err != nil {
		return fmt.Errorf("add document: %w", err)
	}
	return nil
}

func (b *ChromemBackend) Query(ctx context.Context, vector []float32, filter core.Filter, topK int) ([]core.MemorySearchResult, error) {
	count := b.collection.Count()
	if count == 0 {
		return nil, nil
	}

	n := topK
	if !filter.Since.IsZero() || !filter.Until.IsZero() {
		// range filters are applied after the similarity search
		n = count
	}
	if n > count {
		n = count
	}

	where := whereClause(filter)
	docs, err := queryShrinking(n, b.collection.Count, func(n int) ([]chromem.Result, error) {
		return b.collection.QueryEmbedding(ctx, vector, n, where, nil)
	})
	if err != nil {
		return nil, fmt.Errorf("query embedding: %w", err)
	}

	results := make([]core.MemorySearchResult, 0, len(docs))
	for _, d := range docs {
		md := decodeMetadata(d.Metadata)
		if !filter.Matches(md) {
			continue
		}
		results = append(results, core.MemorySearchResult{
			ID:             d.ID,
			Content:        d.Content,
			Role:           md.Role,
			ConversationID: md.ConversationID,
			Timestamp:      md.Timestamp,
			Score:          float64(d.Similarity),
			Metadata:       md,
		})
	}
	return results, nil
}

func (b *ChromemBackend) DeleteByFilter(ctx context.Context, filter core.Filter) error {
	if !filter.Since.IsZero() || !filter.Until.IsZero() {
		return core.InvalidInput("chromem backend deletes by user or conversation only")
	}
	if err := b.collection.Delete(ctx, whereClause(filter), nil); err != nil {
		return fmt.Errorf("delete documents: %w", err)
	}
	return nil
}

func (b *ChromemBackend) Count(_ context.Context) (int, error) {
	return b.collection.Count(), nil
}

// Close is a no-op: persistent chromem writes every document on insert.
func (b *ChromemBackend) Close() error {
	return nil
}

func whereClause(filter core.Filter) map[string]string {
	where := map[string]string{}
	if filter.UserID != "" {
		where[keyUserID] = filter.UserID
	}
	if filter.ConversationID != "" {
		where[keyConversationID] = filter.ConversationID
	}
	if len(where) == 0 {
		return nil
	}
	return where
}

func encodeMetadata(md core.RecordMetadata) map[string]string {
	return map[string]string{
		keyConversationID: md.ConversationID,
		keyUserID:         md.UserID,
		keyRole:           string(md.Role),
		keyTimestamp:      md.Timestamp.UTC().Format(time.RFC3339Nano),
		keyTopics:         strings.Join(md.Topics, ","),
		keyTone:           string(md.Tone),
		keyTurnIndex:      strconv.Itoa(md.TurnIndex),
		keyTurnCount:      strconv.Itoa(md.TurnCount),
	}
}

func decodeMetadata(m map[string]string) core.RecordMetadata {
	md := core.RecordMetadata{
		ConversationID: m[keyConversationID],
		UserID:         m[keyUserID],
		Role:           core.Role(m[keyRole]),
		Tone:           core.Tone(m[keyTone]),
	}
	md.Timestamp, _ = time.Parse(time.RFC3339Nano, m[keyTimestamp])
	if t := m[keyTopics]; t != "" {
		md.Topics = strings.Split(t, ",")
	}
	md.TurnIndex, _ = strconv.Atoi(m[keyTurnIndex])
	md.TurnCount, _ = strconv.Atoi(m[keyTurnCount])
	return md
}

// queryShrinking runs query with n results. chromem rejects n above the
// collection size, so when a concurrent delete shrank the collection the
// query is retried once with the new size.
func queryShrinking(n int, count func() int, query func(n int) ([]chromem.Result, error)) ([]chromem.Result, error) {
	docs, err := query(n)
	if err == nil {
		return docs, nil
	}
	current := count()
	if current >= n {
		return nil, err
	}
	if current == 0 {
		return nil, nil
	}
	return query(current)
}
