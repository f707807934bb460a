package storage

import (
	"context"
	"errors"
	"fmt"

	"pythagorean/internal/models"
	"pythagorean/internal/util"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
)

func pgCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}

type CollectionRepo struct {
	db *DB
}

func NewCollectionRepo(db *DB) *CollectionRepo {
	return &CollectionRepo{db: db}
}

func (r *CollectionRepo) CreateCollection(ctx context.Context, c models.Collection) error {
	_, err := r.db.Pool.Exec(ctx, `INSERT INTO collections (collection_id, created_at) VALUES ($1, $2)`, c.ID, c.CreatedAt)
	if pgCode(err) == pgUniqueViolation {
		return util.Errorf(util.KindInvalidArgument, "collection %s already exists", c.ID)
	}
	if err != nil {
		return fmt.Errorf("insert collection: %w", err)
	}
	return nil
}

func (r *CollectionRepo) GetCollection(ctx context.Context, id string) (models.Collection, error) {
	c := models.Collection{ID: id, DocumentIDs: []string{}}
	err := r.db.Pool.QueryRow(ctx, `SELECT created_at FROM collections WHERE collection_id=$1`, id).Scan(&c.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.Collection{}, notFound("collection", id)
	}
	if err != nil {
		return models.Collection{}, fmt.Errorf("get collection: %w", err)
	}

	rows, err := r.db.Pool.Query(ctx, `
SELECT document_id
FROM collection_documents
WHERE collection_id=$1
ORDER BY position ASC`, id)
	if err != nil {
		return models.Collection{}, fmt.Errorf("list collection documents: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var docID string
		if err := rows.Scan(&docID); err != nil {
			return models.Collection{}, fmt.Errorf("scan collection document: %w", err)
		}
		c.DocumentIDs = append(c.DocumentIDs, docID)
	}
	if err := rows.Err(); err != nil {
		return models.Collection{}, fmt.Errorf("iterate collection documents: %w", err)
	}
	return c, nil
}

func (r *CollectionRepo) AddDocument(ctx context.Context, collectionID, documentID string) error {
	_, err := r.db.Pool.Exec(ctx, `
INSERT INTO collection_documents (collection_id, document_id)
VALUES ($1, $2)
ON CONFLICT (collection_id, document_id) DO NOTHING`, collectionID, documentID)
	if pgCode(err) == pgForeignKeyViolation {
		return notFound("collection", collectionID)
	}
	if err != nil {
		return fmt.Errorf("add collection document: %w", err)
	}
	return nil
}

func (r *CollectionRepo) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.db.Pool.QueryRow(ctx, `SELECT COUNT(*) FROM collections`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count collections: %w", err)
	}
	return n, nil
}
