package core

import (
	"context"
	"sort"
	"time"
)

// RecordMetadata is the searchable metadata stored next to a memory vector.
type RecordMetadata struct {
	ConversationID string    `json:"conversation_id"`
	UserID         string    `json:"user_id"`
	Role           Role      `json:"role"`
	Timestamp      time.Time `json:"timestamp"`
	Topics         []string  `json:"topics"`
	Tone           Tone      `json:"tone"`
	TurnIndex      int       `json:"turn_index"`
	TurnCount      int       `json:"turn_count"`
}

// MemoryRecord is the persisted form of a Turn. ID is derived from the
// conversation id and turn index, so rewriting the same turn overwrites it.
type MemoryRecord struct {
	ID       string
	Vector   []float32
	Content  string
	Metadata RecordMetadata
}

// MemorySearchResult is a retrieved record with its similarity score in [0,1].
type MemorySearchResult struct {
	ID             string         `json:"id"`
	Content        string         `json:"content"`
	Role           Role           `json:"role"`
	ConversationID string         `json:"conversation_id"`
	Timestamp      time.Time      `json:"timestamp"`
	Score          float64        `json:"score"`
	Metadata       RecordMetadata `json:"metadata"`
}

// SortSearchResults orders by score descending, most recent first on ties.
func SortSearchResults(results []MemorySearchResult) {
	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].Timestamp.After(results[j].Timestamp)
	})
}

// Filter scopes vector store queries and deletes. Zero fields are ignored.
type Filter struct {
	UserID         string
	ConversationID string
	Since          time.Time
	Until          time.Time
}

// Matches reports whether metadata satisfies the filter.
func (f Filter) Matches(md RecordMetadata) bool {
	if f.UserID != "" && md.UserID != f.UserID {
		return false
	}
	if f.ConversationID != "" && md.ConversationID != f.ConversationID {
		return false
	}
	if !f.Since.IsZero() && md.Timestamp.Before(f.Since) {
		return false
	}
	if !f.Until.IsZero() && md.Timestamp.After(f.Until) {
		return false
	}
	return true
}

// ContextEntry is one item of an assembled context window.
type ContextEntry struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversation_id"`
	Content        string    `json:"content"`
	Role           Role      `json:"role"`
	Timestamp      time.Time `json:"timestamp"`
	Relevance      float64   `json:"relevance"`
	Live           bool      `json:"live"`
}

// AssembledContext is the ranked, deduplicated and bounded context handed to
// the response generator.
type AssembledContext struct {
	Entries  []ContextEntry `json:"entries"`
	Topics   []string       `json:"topics"`
	Tone     Tone           `json:"tone"`
	Degraded bool           `json:"degraded"`
}

type Memory interface {
	StoreConversationMemory(ctx context.Context, conversationID, userID string, turns []Turn) error
	Retrieve(ctx context.Context, req RetrieveRequest) ([]MemorySearchResult, error)
	AssembleContext(ctx context.Context, req AssembleRequest) (*AssembledContext, error)
	DeleteConversationMemory(ctx context.Context, conversationID string) error
	DeleteUserMemory(ctx context.Context, userID string) error
}

// RetrieveRequest searches a user's memory. An empty ConversationID searches
// across all of the user's conversations.
type RetrieveRequest struct {
	Query          string  `json:"query"`
	UserID         string  `json:"user_id"`
	ConversationID string  `json:"conversation_id,omitempty"`
	TopK           int     `json:"top_k"`
	MinScore       float64 `json:"min_score"`
}

type AssembleRequest struct {
	ConversationID string `json:"conversation_id"`
	UserID         string `json:"user_id"`
	Query          string `json:"query"`
	RecentTurns    []Turn `json:"recent_turns"`
	TopK           int    `json:"top_k"`
}
