package core

import (
	"context"
	"time"
)

type VectorStore interface {
	Upsert(ctx context.Context, record MemoryRecord) error
	Query(ctx context.Context, vector []float32, filter Filter, topK int) ([]MemorySearchResult, error)
	DeleteByFilter(ctx context.Context, filter Filter) error
	Count(ctx context.Context) (int, error)
	Close() error
}

// ConversationLog is the append-only turn record, ordered per conversation.
type ConversationLog interface {
	AppendTurn(ctx context.Context, turn Turn) (Turn, error)
	ListTurns(ctx context.Context, conversationID string) ([]Turn, error)
	RecentTurns(ctx context.Context, conversationID string, limit int) ([]Turn, error)
}

// PendingConversation is a conversation with turns beyond its index checkpoint.
type PendingConversation struct {
	ConversationID string
	UserID         string
	TurnCount      int
	IndexedTurns   int
	LastTurnAt     time.Time
}

type IndexCheckpoints interface {
	PendingConversations(ctx context.Context, limit int) ([]PendingConversation, error)
	SetIndexed(ctx context.Context, conversationID string, turns int) error
}
