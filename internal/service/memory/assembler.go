package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/sandevgo/tuskmem/internal/core"
	"github.com/sandevgo/tuskmem/pkg/log"
)

const (
	// LiveRelevance is the relevance of turns from the active conversation.
	LiveRelevance = 1.0
	// DefaultRetrievalWidth multiplies topK when over-fetching memories.
	DefaultRetrievalWidth = 3
)

// Assembler merges the live conversation with retrieved memories into a
// ranked, deduplicated and bounded context.
type Assembler struct {
	retriever *Retriever
	width     int
	minScore  float64
	counter   core.TokenCounter
	maxTokens int
}

type AssemblerOption func(*Assembler)

// WithTokenBudget keeps ranked entries only while their running token count
// stays within maxTokens.
func WithTokenBudget(counter core.TokenCounter, maxTokens int) AssemblerOption {
	return func(a *Assembler) {
		a.counter = counter
		a.maxTokens = maxTokens
	}
}

func WithRetrievalWidth(width int) AssemblerOption {
	return func(a *Assembler) {
		if width > 0 {
			a.width = width
		}
	}
}

func WithMinScore(score float64) AssemblerOption {
	return func(a *Assembler) { a.minScore = score }
}

func NewAssembler(retriever *Retriever, opts ...AssemblerOption) *Assembler {
	a := &Assembler{
		retriever: retriever,
		width:     DefaultRetrievalWidth,
		minScore:  DefaultMinScore,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// AssembleContext builds the context for the next response. Live turns rank
// at relevance 1.0 and are returned in conversation order; a retrieved memory
// from another conversation outranks a live turn only with a strictly greater
// relevance.
// Retrieval failures degrade to the live turns alone.
func (a *Assembler) AssembleContext(ctx context.Context, req core.AssembleRequest) (*core.AssembledContext, error) {
	switch {
	case req.ConversationID == "" || req.UserID == "":
		return nil, core.InvalidInput("conversation and user ids are required")
	case req.TopK <= 0:
		return nil, core.InvalidInput("topK must be positive, got %d", req.TopK)
	case strings.TrimSpace(req.Query) == "":
		return nil, core.InvalidInput("query is empty")
	}

	entries := make([]core.ContextEntry, 0, len(req.RecentTurns))
	for i, t := range req.RecentTurns {
		// timestamps are part of the dedup key
		if t.Timestamp.IsZero() {
			return nil, core.InvalidInput("recent turn %d has no timestamp", i)
		}
		convID := t.ConversationID
		if convID == "" {
			convID = req.ConversationID
		}
		entries = append(entries, core.ContextEntry{
			ID:             t.ID,
			ConversationID: convID,
			Content:        t.Content,
			Role:           t.Role,
			Timestamp:      t.Timestamp,
			Relevance:      LiveRelevance,
			Live:           true,
		})
	}

	results, degraded, err := a.retriever.retrieve(ctx, core.RetrieveRequest{
		Query:    req.Query,
		UserID:   req.UserID,
		TopK:     req.TopK * a.width,
		MinScore: a.minScore,
	})
	if err != nil {
		return nil, fmt.Errorf("assemble context: %w", err)
	}

	for _, r := range results {
		// the live thread already represents its own conversation
		if r.ConversationID == req.ConversationID {
			continue
		}
		entries = append(entries, core.ContextEntry{
			ID:             r.ID,
			ConversationID: r.ConversationID,
			Content:        r.Content,
			Role:           r.Role,
			Timestamp:      r.Timestamp,
			Relevance:      r.Score,
		})
	}

	rankEntries(entries)
	entries = dedupEntries(entries)
	if len(entries) > req.TopK {
		entries = entries[:req.TopK]
	}
	entries = a.fitBudget(entries)
	chronologicalLive(entries)

	texts := make([]string, len(entries))
	for i, e := range entries {
		texts[i] = e.Content
	}

	log.FromCtx(ctx).Debug().
		Str("component", "context_assembler").
		Str("conversation_id", req.ConversationID).
		Int("live", len(req.RecentTurns)).
		Int("retrieved", len(results)).
		Int("entries", len(entries)).
		Bool("degraded", degraded).
		Msg("context assembled")

	return &core.AssembledContext{
		Entries:  entries,
		Topics:   ClassifyTopics(texts),
		Tone:     ClassifyTone(texts),
		Degraded: degraded,
	}, nil
}

// rankEntries sorts by relevance descending. On equal relevance live turns
// come first, then the most recent entry wins.
func rankEntries(entries []core.ContextEntry) {
	sort.SliceStable(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if a.Relevance != b.Relevance {
			return a.Relevance > b.Relevance
		}
		if a.Live != b.Live {
			return a.Live
		}
		return a.Timestamp.After(b.Timestamp)
	})
}

// chronologicalLive puts the leading run of live turns back in conversation
// order. Ranking put them newest first so that truncation drops the oldest.
func chronologicalLive(entries []core.ContextEntry) {
	n := 0
	for n < len(entries) && entries[n].Live {
		n++
	}
	sort.SliceStable(entries[:n], func(i, j int) bool {
		return entries[i].Timestamp.Before(entries[j].Timestamp)
	})
}

type entryKey struct {
	conversationID string
	timestamp      int64
	role           core.Role
}

// dedupEntries drops every entry whose (conversation, timestamp, role) was
// already seen earlier in the ranked sequence.
func dedupEntries(entries []core.ContextEntry) []core.ContextEntry {
	seen := make(map[entryKey]struct{}, len(entries))
	out := entries[:0]
	for _, e := range entries {
		k := entryKey{conversationID: e.ConversationID, timestamp: e.Timestamp.UnixNano(), role: e.Role}
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, e)
	}
	return out
}

func (a *Assembler) fitBudget(entries []core.ContextEntry) []core.ContextEntry {
	if a.counter == nil || a.maxTokens <= 0 {
		return entries
	}
	used := 0
	for i, e := range entries {
		used += a.counter.Count(e.Content)
		if used > a.maxTokens {
			return entries[:i]
		}
	}
	return entries
}
