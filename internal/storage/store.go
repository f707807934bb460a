package storage

import (
	"context"

	"pythagorean/internal/models"
)

// Lookups of unknown ids fail with util.ErrNotFound in every implementation.

type DocumentStore interface {
	PutDocument(ctx context.Context, doc models.Document) error
	GetDocument(ctx context.Context, id string) (models.Document, error)
	UpdateDocumentStatus(ctx context.Context, id string, u StatusUpdate) error
	DeleteDocument(ctx context.Context, id string) error
	CountDocuments(ctx context.Context) (int, error)
}

type StatusUpdate struct {
	Status     string
	FailReason string
	FileType   string
	ChunkCount int
	Dimension  int
	Metric     string
}

type CollectionStore interface {
	CreateCollection(ctx context.Context, c models.Collection) error
	GetCollection(ctx context.Context, id string) (models.Collection, error)
	AddToCollection(ctx context.Context, collectionID, documentID string) error
	CountCollections(ctx context.Context) (int, error)
}

// ConversationStore keeps append-only turn logs.
type ConversationStore interface {
	// AppendTurns creates the conversation on first use.
	AppendTurns(ctx context.Context, conversationID, linkID string, turns ...models.Turn) error
	GetConversation(ctx context.Context, id string) (models.Conversation, error)
	// ListConversations returns the conversations of a link, newest first.
	ListConversations(ctx context.Context, linkID string) ([]models.Conversation, error)
	CountConversations(ctx context.Context) (int, error)
}

// FeedbackStore holds reactions and comments keyed by conversation and turn index.
// Adding to an unknown conversation fails with util.ErrNotFound.
type FeedbackStore interface {
	AddReaction(ctx context.Context, conversationID string, index int, reaction string) (map[string]int, error)
	Reactions(ctx context.Context, conversationID string, index int) (map[string]int, error)
	AddComment(ctx context.Context, conversationID string, index int, c models.Comment) (int, error)
	Comments(ctx context.Context, conversationID string, index int) ([]models.Comment, error)
}

type Store interface {
	DocumentStore
	CollectionStore
	ConversationStore
	FeedbackStore
	Close()
}
