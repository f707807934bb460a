package vector

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"pythagorean/internal/models"
	"pythagorean/internal/util"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Pool is the subset of *pgxpool.Pool the postgres backend needs.
type Pool interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PGBackend stores chunk embeddings in pgvector columns. Replace runs in one
// transaction, and the upsert on index_documents serializes writers of the
// same document.
type PGBackend struct {
	pool Pool
}

func NewPGBackend(pool Pool) *PGBackend {
	return &PGBackend{pool: pool}
}

func (b *PGBackend) Replace(ctx context.Context, documentID string, chunks []models.Chunk) error {
	dim := 0
	if len(chunks) > 0 {
		dim = len(chunks[0].Embedding)
	}
	tx, err := b.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx replace index: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	_, err = tx.Exec(ctx, `
INSERT INTO index_documents (document_id, chunk_count, dimension)
VALUES ($1, $2, $3)
ON CONFLICT (document_id)
DO UPDATE SET
  chunk_count = EXCLUDED.chunk_count,
  dimension = EXCLUDED.dimension,
  updated_at = NOW()`, documentID, len(chunks), dim)
	if err != nil {
		return fmt.Errorf("upsert index document: %w", err)
	}
	if _, err := tx.Exec(ctx, `DELETE FROM index_chunks WHERE document_id=$1`, documentID); err != nil {
		return fmt.Errorf("clear index chunks: %w", err)
	}
	for _, c := range chunks {
		_, err := tx.Exec(ctx, `
INSERT INTO index_chunks (document_id, chunk_index, text, embedding)
VALUES ($1, $2, $3, $4::vector)`,
			documentID, c.Position, c.Text, ToLiteral(c.Embedding),
		)
		if err != nil {
			return fmt.Errorf("insert chunk %d: %w", c.Position, err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit index tx: %w", err)
	}
	return nil
}

func (b *PGBackend) Search(ctx context.Context, documentID string, vec []float32, k int) ([]models.SearchResult, error) {
	var count int
	err := b.pool.QueryRow(ctx, `SELECT chunk_count FROM index_documents WHERE document_id=$1`, documentID).Scan(&count)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("document %s: %w", documentID, util.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("lookup index document: %w", err)
	}
	if count == 0 {
		return []models.SearchResult{}, nil
	}

	rows, err := b.pool.Query(ctx, `
SELECT chunk_index,
       text,
       1 - (embedding <=> $2::vector) AS score
FROM index_chunks
WHERE document_id = $1
ORDER BY embedding <=> $2::vector
LIMIT $3`, documentID, ToLiteral(vec), k)
	if err != nil {
		return nil, fmt.Errorf("query vector search: %w", err)
	}
	defer rows.Close()

	results := make([]models.SearchResult, 0, k)
	for rows.Next() {
		r := models.SearchResult{DocumentID: documentID}
		if err := rows.Scan(&r.Position, &r.Text, &r.Score); err != nil {
			return nil, fmt.Errorf("scan chunk result: %w", err)
		}
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate search rows: %w", err)
	}
	return results, nil
}

func (b *PGBackend) Delete(ctx context.Context, documentID string) error {
	tag, err := b.pool.Exec(ctx, `DELETE FROM index_documents WHERE document_id=$1`, documentID)
	if err != nil {
		return fmt.Errorf("delete index document: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("document %s: %w", documentID, util.ErrNotFound)
	}
	return nil
}

// ToLiteral renders v in pgvector's text input format.
func ToLiteral(v []float32) string {
	parts := make([]string, 0, len(v))
	for _, x := range v {
		parts = append(parts, strconv.FormatFloat(float64(x), 'g', -1, 32))
	}
	return "[" + strings.Join(parts, ",") + "]"
}
