package storage

import (
	"context"
	"fmt"

	"pythagorean/internal/models"
)

type FeedbackRepo struct {
	db *DB
}

func NewFeedbackRepo(db *DB) *FeedbackRepo {
	return &FeedbackRepo{db: db}
}

func (r *FeedbackRepo) AddReaction(ctx context.Context, conversationID string, index int, reaction string) (map[string]int, error) {
	_, err := r.db.Pool.Exec(ctx, `
INSERT INTO message_reactions (conversation_id, message_index, reaction, count)
VALUES ($1, $2, $3, 1)
ON CONFLICT (conversation_id, message_index, reaction)
DO UPDATE SET count = message_reactions.count + 1`, conversationID, index, reaction)
	if pgCode(err) == pgForeignKeyViolation {
		return nil, notFound("conversation", conversationID)
	}
	if err != nil {
		return nil, fmt.Errorf("insert reaction: %w", err)
	}
	return r.Reactions(ctx, conversationID, index)
}

func (r *FeedbackRepo) Reactions(ctx context.Context, conversationID string, index int) (map[string]int, error) {
	rows, err := r.db.Pool.Query(ctx, `
SELECT reaction, count
FROM message_reactions
WHERE conversation_id=$1 AND message_index=$2`, conversationID, index)
	if err != nil {
		return nil, fmt.Errorf("list reactions: %w", err)
	}
	defer rows.Close()
	out := map[string]int{}
	for rows.Next() {
		var (
			reaction string
			count    int
		)
		if err := rows.Scan(&reaction, &count); err != nil {
			return nil, fmt.Errorf("scan reaction: %w", err)
		}
		out[reaction] = count
	}
	return out, rows.Err()
}

func (r *FeedbackRepo) AddComment(ctx context.Context, conversationID string, index int, c models.Comment) (int, error) {
	_, err := r.db.Pool.Exec(ctx, `
INSERT INTO message_comments (comment_id, conversation_id, message_index, text, user_name, created_at)
VALUES ($1, $2, $3, $4, $5, $6)`,
		c.ID, conversationID, index, c.Text, c.UserName, c.Timestamp)
	if pgCode(err) == pgForeignKeyViolation {
		return 0, notFound("conversation", conversationID)
	}
	if err != nil {
		return 0, fmt.Errorf("insert comment: %w", err)
	}
	var total int
	err = r.db.Pool.QueryRow(ctx, `SELECT COUNT(*) FROM message_comments WHERE conversation_id=$1 AND message_index=$2`, conversationID, index).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("count comments: %w", err)
	}
	return total, nil
}

func (r *FeedbackRepo) Comments(ctx context.Context, conversationID string, index int) ([]models.Comment, error) {
	rows, err := r.db.Pool.Query(ctx, `
SELECT comment_id, text, user_name, created_at
FROM message_comments
WHERE conversation_id=$1 AND message_index=$2
ORDER BY created_at ASC, comment_id ASC`, conversationID, index)
	if err != nil {
		return nil, fmt.Errorf("list comments: %w", err)
	}
	defer rows.Close()
	out := make([]models.Comment, 0)
	for rows.Next() {
		var c models.Comment
		if err := rows.Scan(&c.ID, &c.Text, &c.UserName, &c.Timestamp); err != nil {
			return nil, fmt.Errorf("scan comment: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate comments: %w", err)
	}
	return out, nil
}
