package vector

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sandevgo/tuskmem/internal/core"
)

// PgvectorBackend stores records in PostgreSQL with the pgvector extension
// and ranks them by cosine distance.
type PgvectorBackend struct {
	pool *pgxpool.Pool
}

func NewPgvectorBackend(ctx context.Context, databaseURL string, dims int) (*PgvectorBackend, error) {
	if dims <= 0 {
		return nil, fmt.Errorf("pgvector needs positive dimensions, got %d", dims)
	}

	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}

	if err := initSchema(ctx, pool, dims); err != nil {
		pool.Close()
		return nil, err
	}

	return &PgvectorBackend{pool: pool}, nil
}

func initSchema(ctx context.Context, pool *pgxpool.Pool, dims int) error {
	stmts := []string{
		`CREATE EXTENSION IF NOT EXISTS vector;`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS memory_records (
			id TEXT PRIMARY KEY,
			conversation_id TEXT NOT NULL,
			user_id TEXT NOT NULL,
			role TEXT NOT NULL,
			content TEXT NOT NULL,
			topics TEXT[] NOT NULL DEFAULT '{}',
			tone TEXT NOT NULL,
			turn_index INTEGER NOT NULL,
			turn_count INTEGER NOT NULL,
			embedding vector(%d) NOT NULL,
			created_at TIMESTAMPTZ NOT NULL
		);`, dims),
		`CREATE INDEX IF NOT EXISTS idx_memory_records_user_created ON memory_records (user_id, created_at);`,
		`CREATE INDEX IF NOT EXISTS idx_memory_records_conversation ON memory_records (conversation_id);`,
	}

	for _, stmt := range stmts {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("init schema failed on %q: %w", stmt, err)
		}
	}
	return nil
}

func (b *PgvectorBackend) Upsert(ctx context.Context, record core.MemoryRecord) error {
	md := record.Metadata
	topics := md.Topics
	if topics == nil {
		topics = []string{}
	}

	_, err := b.pool.Exec(ctx,
		`INSERT INTO memory_records
			(id, conversation_id, user_id, role, content, topics, tone, turn_index, turn_count, embedding, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10::vector, $11)
		 ON CONFLICT (id) DO UPDATE SET
			conversation_id = EXCLUDED.conversation_id,
			user_id = EXCLUDED.user_id,
			role = EXCLUDED.role,
			content = EXCLUDED.content,
			topics = EXCLUDED.topics,
			tone = EXCLUDED.tone,
			turn_index = EXCLUDED.turn_index,
			turn_count = EXCLUDED.turn_count,
			embedding = EXCLUDED.embedding,
			created_at = EXCLUDED.created_at`,
		record.ID,
		md.ConversationID,
		md.UserID,
		string(md.Role),
		record.Content,
		topics,
		string(md.Tone),
		md.TurnIndex,
		md.TurnCount,
		vectorLiteral(record.Vector),
		md.Timestamp.UTC(),
	)
	if err != nil {
		return fmt.Errorf("upsert memory record: %w", err)
	}
	return nil
}

func (b *PgvectorBackend) Query(ctx context.Context, vector []float32, filter core.Filter, topK int) ([]core.MemorySearchResult, error) {
	where, args := whereSQL(filter, 2)
	args = append([]any{vectorLiteral(vector)}, args...)
	args = append(args, topK)

	query := fmt.Sprintf(
		`SELECT id, conversation_id, user_id, role, content, topics, tone, turn_index, turn_count, created_at,
			1 - (embedding <=> $1::vector) AS score
		 FROM memory_records%s
		 ORDER BY embedding <=> $1::vector, created_at DESC
		 LIMIT $%d`, where, len(args))

	rows, err := b.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query memory records: %w", err)
	}
	defer rows.Close()

	results := make([]core.MemorySearchResult, 0, topK)
	for rows.Next() {
		var (
			r          core.MemorySearchResult
			md         core.RecordMetadata
			role, tone string
		)
		if err := rows.Scan(&r.ID, &md.ConversationID, &md.UserID, &role, &r.Content, &md.Topics,
			&tone, &md.TurnIndex, &md.TurnCount, &md.Timestamp, &r.Score); err != nil {
			return nil, fmt.Errorf("scan memory record: %w", err)
		}
		md.Role = core.Role(role)
		md.Tone = core.Tone(tone)
		r.Role = md.Role
		r.ConversationID = md.ConversationID
		r.Timestamp = md.Timestamp
		r.Metadata = md
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate memory records: %w", err)
	}
	return results, nil
}

func (b *PgvectorBackend) DeleteByFilter(ctx context.Context, filter core.Filter) error {
	where, args := whereSQL(filter, 1)
	if where == "" {
		return core.InvalidInput("delete requires a filter")
	}
	if _, err := b.pool.Exec(ctx, "DELETE FROM memory_records"+where, args...); err != nil {
		return fmt.Errorf("delete memory records: %w", err)
	}
	return nil
}

func (b *PgvectorBackend) Count(ctx context.Context) (int, error) {
	var n int
	if err := b.pool.QueryRow(ctx, `SELECT count(*) FROM memory_records`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count memory records: %w", err)
	}
	return n, nil
}

func (b *PgvectorBackend) Close() error {
	b.pool.Close()
	return nil
}

// whereSQL renders filter as a WHERE clause with positional parameters
// starting at $first.
func whereSQL(filter core.Filter, first int) (string, []any) {
	var (
		conds []string
		args  []any
	)
	add := func(cond string, arg any) {
		args = append(args, arg)
		conds = append(conds, fmt.Sprintf(cond, first+len(args)-1))
	}

	if filter.UserID != "" {
		add("user_id = $%d", filter.UserID)
	}
	if filter.ConversationID != "" {
		add("conversation_id = $%d", filter.ConversationID)
	}
	if !filter.Since.IsZero() {
		add("created_at >= $%d", filter.Since.UTC())
	}
	if !filter.Until.IsZero() {
		add("created_at <= $%d", filter.Until.UTC())
	}

	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

// vectorLiteral formats v in the pgvector text representation, e.g. [1,0.5,-2].
func vectorLiteral(v []float32) string {
	var sb strings.Builder
	sb.WriteByte('[')
	for i, x := range v {
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(strconv.FormatFloat(float64(x), 'f', -1, 32))
	}
	sb.WriteByte(']')
	return sb.String()
}
