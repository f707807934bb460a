package storage

import (
	"context"
	"errors"
	"fmt"

	"pythagorean/internal/models"

	"github.com/jackc/pgx/v5"
)

type DocumentRepo struct {
	db *DB
}

func NewDocumentRepo(db *DB) *DocumentRepo {
	return &DocumentRepo{db: db}
}

const documentColumns = `document_id, filename, file_type, chunk_count, COALESCE(collection_id,''),
       status, COALESCE(fail_reason,''), dimension, metric, created_at`

func scanDocument(row pgx.Row) (models.Document, error) {
	var d models.Document
	err := row.Scan(&d.ID, &d.Filename, &d.FileType, &d.ChunkCount, &d.CollectionID,
		&d.Status, &d.FailReason, &d.Dimension, &d.Metric, &d.CreatedAt)
	return d, err
}

func (r *DocumentRepo) UpsertDocument(ctx context.Context, d models.Document) error {
	_, err := r.db.Pool.Exec(ctx, `
INSERT INTO documents (document_id, filename, file_type, chunk_count, collection_id, status, fail_reason, dimension, metric, created_at)
VALUES ($1, $2, $3, $4, NULLIF($5,''), $6, NULLIF($7,''), $8, $9, $10)
ON CONFLICT (document_id)
DO UPDATE SET
  filename = EXCLUDED.filename,
  file_type = EXCLUDED.file_type,
  chunk_count = EXCLUDED.chunk_count,
  collection_id = EXCLUDED.collection_id,
  status = EXCLUDED.status,
  fail_reason = EXCLUDED.fail_reason,
  dimension = EXCLUDED.dimension,
  metric = EXCLUDED.metric,
  updated_at = NOW()`,
		d.ID, d.Filename, d.FileType, d.ChunkCount, d.CollectionID, d.Status, d.FailReason, d.Dimension, d.Metric, d.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert document: %w", err)
	}
	return nil
}

func (r *DocumentRepo) UpdateStatus(ctx context.Context, id string, u StatusUpdate) error {
	tag, err := r.db.Pool.Exec(ctx, `
UPDATE documents
SET status=$2, fail_reason=NULLIF($3,''), file_type=COALESCE(NULLIF($4,''), file_type),
    chunk_count=$5, dimension=$6, metric=$7, updated_at=NOW()
WHERE document_id=$1`, id, u.Status, u.FailReason, u.FileType, u.ChunkCount, u.Dimension, u.Metric)
	if err != nil {
		return fmt.Errorf("update document status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return notFound("document", id)
	}
	return nil
}

func (r *DocumentRepo) GetDocument(ctx context.Context, id string) (models.Document, error) {
	d, err := scanDocument(r.db.Pool.QueryRow(ctx, `SELECT `+documentColumns+` FROM documents WHERE document_id=$1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return models.Document{}, notFound("document", id)
	}
	if err != nil {
		return models.Document{}, fmt.Errorf("get document by id: %w", err)
	}
	return d, nil
}

// DeleteDocument removes the record and its collection membership in one transaction.
func (r *DocumentRepo) DeleteDocument(ctx context.Context, id string) error {
	tx, err := r.db.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx delete document: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()
	tag, err := tx.Exec(ctx, `DELETE FROM documents WHERE document_id=$1`, id)
	if err != nil {
		return fmt.Errorf("delete document: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return notFound("document", id)
	}
	if _, err := tx.Exec(ctx, `DELETE FROM collection_documents WHERE document_id=$1`, id); err != nil {
		return fmt.Errorf("delete collection membership: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit delete document tx: %w", err)
	}
	return nil
}

func (r *DocumentRepo) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.db.Pool.QueryRow(ctx, `SELECT COUNT(*) FROM documents`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count documents: %w", err)
	}
	return n, nil
}
