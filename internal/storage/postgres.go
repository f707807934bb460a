package storage

import (
	"context"

	"pythagorean/internal/models"
)

// PostgresStore implements Store on top of the pgx repositories.
type PostgresStore struct {
	db            *DB
	documents     *DocumentRepo
	collections   *CollectionRepo
	conversations *ConversationRepo
	feedback      *FeedbackRepo
}

var _ Store = (*PostgresStore)(nil)

func NewPostgresStore(db *DB) *PostgresStore {
	return &PostgresStore{
		db:            db,
		documents:     NewDocumentRepo(db),
		collections:   NewCollectionRepo(db),
		conversations: NewConversationRepo(db),
		feedback:      NewFeedbackRepo(db),
	}
}

func (s *PostgresStore) Close() { s.db.Close() }

func (s *PostgresStore) PutDocument(ctx context.Context, doc models.Document) error {
	return s.documents.UpsertDocument(ctx, doc)
}

func (s *PostgresStore) GetDocument(ctx context.Context, id string) (models.Document, error) {
	return s.documents.GetDocument(ctx, id)
}

func (s *PostgresStore) UpdateDocumentStatus(ctx context.Context, id string, u StatusUpdate) error {
	return s.documents.UpdateStatus(ctx, id, u)
}

func (s *PostgresStore) DeleteDocument(ctx context.Context, id string) error {
	return s.documents.DeleteDocument(ctx, id)
}

func (s *PostgresStore) CountDocuments(ctx context.Context) (int, error) {
	return s.documents.Count(ctx)
}

func (s *PostgresStore) CreateCollection(ctx context.Context, c models.Collection) error {
	return s.collections.CreateCollection(ctx, c)
}

func (s *PostgresStore) GetCollection(ctx context.Context, id string) (models.Collection, error) {
	return s.collections.GetCollection(ctx, id)
}

func (s *PostgresStore) AddToCollection(ctx context.Context, collectionID, documentID string) error {
	return s.collections.AddDocument(ctx, collectionID, documentID)
}

func (s *PostgresStore) CountCollections(ctx context.Context) (int, error) {
	return s.collections.Count(ctx)
}

func (s *PostgresStore) AppendTurns(ctx context.Context, conversationID, linkID string, turns ...models.Turn) error {
	return s.conversations.AppendTurns(ctx, conversationID, linkID, turns...)
}

func (s *PostgresStore) GetConversation(ctx context.Context, id string) (models.Conversation, error) {
	return s.conversations.GetConversation(ctx, id)
}

func (s *PostgresStore) ListConversations(ctx context.Context, linkID string) ([]models.Conversation, error) {
	return s.conversations.ListConversations(ctx, linkID)
}

func (s *PostgresStore) CountConversations(ctx context.Context) (int, error) {
	return s.conversations.Count(ctx)
}

func (s *PostgresStore) AddReaction(ctx context.Context, conversationID string, index int, reaction string) (map[string]int, error) {
	return s.feedback.AddReaction(ctx, conversationID, index, reaction)
}

func (s *PostgresStore) Reactions(ctx context.Context, conversationID string, index int) (map[string]int, error) {
	return s.feedback.Reactions(ctx, conversationID, index)
}

func (s *PostgresStore) AddComment(ctx context.Context, conversationID string, index int, c models.Comment) (int, error) {
	return s.feedback.AddComment(ctx, conversationID, index, c)
}

func (s *PostgresStore) Comments(ctx context.Context, conversationID string, index int) ([]models.Comment, error) {
	return s.feedback.Comments(ctx, conversationID, index)
}
