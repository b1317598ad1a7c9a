package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/sandevgo/tuskmem/internal/core"
	"github.com/sandevgo/tuskmem/pkg/log"
)

// TurnsRepo is the append-only conversation log and the indexer's checkpoint table.
type TurnsRepo struct {
	db *sql.DB
}

var (
	_ core.ConversationLog  = (*TurnsRepo)(nil)
	_ core.IndexCheckpoints = (*TurnsRepo)(nil)
)

func NewTurnsRepo(db *sql.DB) *TurnsRepo {
	return &TurnsRepo{db: db}
}

// AppendTurn stores turn at the end of its conversation and returns it with
// the assigned id and timestamp. Timestamps never go backwards within a
// conversation: an earlier one is raised to the previous turn's time.
func (r *TurnsRepo) AppendTurn(ctx context.Context, turn core.Turn) (core.Turn, error) {
	switch {
	case turn.ConversationID == "" || turn.UserID == "":
		return core.Turn{}, core.InvalidInput("turn needs a conversation and a user")
	case !turn.Role.Valid():
		return core.Turn{}, core.InvalidInput("unknown role %q", turn.Role)
	case strings.TrimSpace(turn.Content) == "":
		return core.Turn{}, core.InvalidInput("turn content is empty")
	}
	if turn.ID == "" {
		turn.ID = uuid.NewString()
	}
	if turn.Timestamp.IsZero() {
		turn.Timestamp = time.Now()
	}
	turn.Timestamp = turn.Timestamp.UTC()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return core.Turn{}, err
	}
	defer tx.Rollback()

	var (
		owner     sql.NullString
		lastIndex sql.NullInt64
		lastAt    sql.NullInt64
	)
	err = tx.QueryRowContext(ctx,
		`SELECT user_id, turn_index, created_at FROM turns
		 WHERE conversation_id = ? ORDER BY turn_index DESC LIMIT 1`,
		turn.ConversationID,
	).Scan(&owner, &lastIndex, &lastAt)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return core.Turn{}, fmt.Errorf("failed to read conversation tail: %w", err)
	}

	if owner.Valid && owner.String != turn.UserID {
		return core.Turn{}, core.InvalidInput("conversation %s belongs to another user", turn.ConversationID)
	}

	index := 0
	if lastIndex.Valid {
		index = int(lastIndex.Int64) + 1
	}
	if lastAt.Valid {
		if prev := time.Unix(0, lastAt.Int64).UTC(); turn.Timestamp.Before(prev) {
			turn.Timestamp = prev
		}
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO turns (conversation_id, turn_index, id, user_id, role, content, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		turn.ConversationID, index, turn.ID, turn.UserID, string(turn.Role), turn.Content, turn.Timestamp.UnixNano(),
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return core.Turn{}, core.InvalidInput("turn %s already exists in conversation %s", turn.ID, turn.ConversationID)
		}
		return core.Turn{}, fmt.Errorf("failed to insert turn: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return core.Turn{}, err
	}

	turn.Index = index
	log.FromCtx(ctx).Debug().
		Str("conversation_id", turn.ConversationID).
		Int("turn_index", index).
		Msg("turn appended")
	return turn, nil
}

// ListTurns returns the whole conversation in chronological order.
func (r *TurnsRepo) ListTurns(ctx context.Context, conversationID string) ([]core.Turn, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, turn_index, conversation_id, user_id, role, content, created_at
		 FROM turns WHERE conversation_id = ? ORDER BY turn_index ASC`,
		conversationID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query turns: %w", err)
	}
	return scanTurns(rows)
}

// RecentTurns returns the last limit turns, oldest first.
func (r *TurnsRepo) RecentTurns(ctx context.Context, conversationID string, limit int) ([]core.Turn, error) {
	if limit <= 0 {
		return nil, core.InvalidInput("limit must be positive, got %d", limit)
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT id, turn_index, conversation_id, user_id, role, content, created_at
		 FROM turns WHERE conversation_id = ? ORDER BY turn_index DESC LIMIT ?`,
		conversationID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query recent turns: %w", err)
	}

	turns, err := scanTurns(rows)
	if err != nil {
		return nil, err
	}

	// newest first from the query, callers expect chronological order
	for i, j := 0, len(turns)-1; i < j; i, j = i+1, j-1 {
		turns[i], turns[j] = turns[j], turns[i]
	}
	return turns, nil
}

// PendingConversations lists conversations whose turn count is ahead of
// their index checkpoint, least recently active first.
func (r *TurnsRepo) PendingConversations(ctx context.Context, limit int) ([]core.PendingConversation, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT t.conversation_id, MIN(t.user_id), COUNT(*), COALESCE(s.indexed_turns, 0), MAX(t.created_at)
		 FROM turns t
		 LEFT JOIN index_state s ON s.conversation_id = t.conversation_id
		 GROUP BY t.conversation_id
		 HAVING COUNT(*) > COALESCE(s.indexed_turns, 0)
		 ORDER BY MAX(t.created_at) ASC
		 LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query pending conversations: %w", err)
	}
	defer rows.Close()

	var pending []core.PendingConversation
	for rows.Next() {
		var (
			p    core.PendingConversation
			last int64
		)
		if err := rows.Scan(&p.ConversationID, &p.UserID, &p.TurnCount, &p.IndexedTurns, &last); err != nil {
			return nil, fmt.Errorf("failed to scan pending conversation: %w", err)
		}
		p.LastTurnAt = time.Unix(0, last).UTC()
		pending = append(pending, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return pending, nil
}

func (r *TurnsRepo) SetIndexed(ctx context.Context, conversationID string, turns int) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO index_state (conversation_id, indexed_turns, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(conversation_id) DO UPDATE SET
			indexed_turns = excluded.indexed_turns,
			updated_at = excluded.updated_at`,
		conversationID, turns, time.Now().UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("failed to update index checkpoint: %w", err)
	}
	return nil
}

func scanTurns(rows *sql.Rows) ([]core.Turn, error) {
	defer rows.Close()

	var turns []core.Turn
	for rows.Next() {
		var (
			t    core.Turn
			role string
			at   int64
		)
		if err := rows.Scan(&t.ID, &t.Index, &t.ConversationID, &t.UserID, &role, &t.Content, &at); err != nil {
			return nil, fmt.Errorf("failed to scan turn: %w", err)
		}
		t.Role = core.Role(role)
		t.Timestamp = time.Unix(0, at).UTC()
		turns = append(turns, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return turns, nil
}
