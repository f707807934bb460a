package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"pythagorean/internal/models"

	"github.com/jackc/pgx/v5"
)

type ConversationRepo struct {
	db *DB
}

func NewConversationRepo(db *DB) *ConversationRepo {
	return &ConversationRepo{db: db}
}

// AppendTurns locks the conversation row so concurrent appends get distinct
// turn indexes.
func (r *ConversationRepo) AppendTurns(ctx context.Context, conversationID, linkID string, turns ...models.Turn) error {
	tx, err := r.db.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx append turns: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	created := time.Now().UTC()
	if len(turns) > 0 && !turns[0].Timestamp.IsZero() {
		created = turns[0].Timestamp
	}
	_, err = tx.Exec(ctx, `
INSERT INTO conversations (conversation_id, link_id, created_at)
VALUES ($1, $2, $3)
ON CONFLICT (conversation_id) DO NOTHING`, conversationID, linkID, created)
	if err != nil {
		return fmt.Errorf("upsert conversation: %w", err)
	}
	if _, err := tx.Exec(ctx, `SELECT 1 FROM conversations WHERE conversation_id=$1 FOR UPDATE`, conversationID); err != nil {
		return fmt.Errorf("lock conversation: %w", err)
	}
	var next int
	err = tx.QueryRow(ctx, `SELECT COALESCE(MAX(turn_index)+1, 0) FROM conversation_turns WHERE conversation_id=$1`, conversationID).Scan(&next)
	if err != nil {
		return fmt.Errorf("next turn index: %w", err)
	}
	for i, t := range turns {
		sources := t.Sources
		if sources == nil {
			sources = []string{}
		}
		_, err := tx.Exec(ctx, `
INSERT INTO conversation_turns (conversation_id, turn_index, role, content, sources, created_at)
VALUES ($1, $2, $3, $4, $5, $6)`,
			conversationID, next+i, t.Role, t.Content, sources, t.Timestamp,
		)
		if err != nil {
			return fmt.Errorf("insert turn %d: %w", next+i, err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit turns tx: %w", err)
	}
	return nil
}

func (r *ConversationRepo) GetConversation(ctx context.Context, id string) (models.Conversation, error) {
	c := models.Conversation{ID: id}
	err := r.db.Pool.QueryRow(ctx, `SELECT link_id, created_at FROM conversations WHERE conversation_id=$1`, id).
		Scan(&c.LinkID, &c.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.Conversation{}, notFound("conversation", id)
	}
	if err != nil {
		return models.Conversation{}, fmt.Errorf("get conversation: %w", err)
	}
	turns, err := r.turns(ctx, []string{id})
	if err != nil {
		return models.Conversation{}, err
	}
	c.Turns = turns[id]
	if c.Turns == nil {
		c.Turns = []models.Turn{}
	}
	return c, nil
}

func (r *ConversationRepo) ListConversations(ctx context.Context, linkID string) ([]models.Conversation, error) {
	rows, err := r.db.Pool.Query(ctx, `
SELECT conversation_id, created_at
FROM conversations
WHERE link_id=$1
ORDER BY created_at DESC, conversation_id ASC`, linkID)
	if err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}
	defer rows.Close()

	out := make([]models.Conversation, 0)
	ids := make([]string, 0)
	for rows.Next() {
		c := models.Conversation{LinkID: linkID}
		if err := rows.Scan(&c.ID, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan conversation: %w", err)
		}
		out = append(out, c)
		ids = append(ids, c.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate conversations: %w", err)
	}
	if len(ids) == 0 {
		return out, nil
	}
	turns, err := r.turns(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range out {
		out[i].Turns = turns[out[i].ID]
		if out[i].Turns == nil {
			out[i].Turns = []models.Turn{}
		}
	}
	return out, nil
}

func (r *ConversationRepo) turns(ctx context.Context, ids []string) (map[string][]models.Turn, error) {
	rows, err := r.db.Pool.Query(ctx, `
SELECT conversation_id, role, content, sources, created_at
FROM conversation_turns
WHERE conversation_id = ANY($1)
ORDER BY conversation_id, turn_index ASC`, ids)
	if err != nil {
		return nil, fmt.Errorf("list turns: %w", err)
	}
	defer rows.Close()
	out := make(map[string][]models.Turn, len(ids))
	for rows.Next() {
		var (
			id string
			t  models.Turn
		)
		if err := rows.Scan(&id, &t.Role, &t.Content, &t.Sources, &t.Timestamp); err != nil {
			return nil, fmt.Errorf("scan turn: %w", err)
		}
		if len(t.Sources) == 0 {
			t.Sources = nil
		}
		out[id] = append(out[id], t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate turns: %w", err)
	}
	return out, nil
}

func (r *ConversationRepo) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.db.Pool.QueryRow(ctx, `SELECT COUNT(*) FROM conversations`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count conversations: %w", err)
	}
	return n, nil
}
