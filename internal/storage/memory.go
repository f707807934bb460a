package storage

import (
	"cmp"
	"context"
	"fmt"
	"maps"
	"slices"
	"sync"
	"time"

	"pythagorean/internal/models"
	"pythagorean/internal/util"
)

type feedbackKey struct {
	conversationID string
	index          int
}

// MemoryStore keeps everything in process maps. Returned values are copies.
type MemoryStore struct {
	mu            sync.RWMutex
	documents     map[string]models.Document
	collections   map[string]models.Collection
	conversations map[string]models.Conversation
	reactions     map[feedbackKey]map[string]int
	comments      map[feedbackKey][]models.Comment
}

var _ Store = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		documents:     map[string]models.Document{},
		collections:   map[string]models.Collection{},
		conversations: map[string]models.Conversation{},
		reactions:     map[feedbackKey]map[string]int{},
		comments:      map[feedbackKey][]models.Comment{},
	}
}

func (s *MemoryStore) Close() {}

func notFound(what, id string) error {
	return fmt.Errorf("%s %s: %w", what, id, util.ErrNotFound)
}

func (s *MemoryStore) PutDocument(_ context.Context, doc models.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.documents[doc.ID] = doc
	return nil
}

func (s *MemoryStore) GetDocument(_ context.Context, id string) (models.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.documents[id]
	if !ok {
		return models.Document{}, notFound("document", id)
	}
	return doc, nil
}

func (s *MemoryStore) UpdateDocumentStatus(_ context.Context, id string, u StatusUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.documents[id]
	if !ok {
		return notFound("document", id)
	}
	doc.Status = u.Status
	doc.FailReason = u.FailReason
	doc.FileType = cmp.Or(u.FileType, doc.FileType)
	doc.ChunkCount = u.ChunkCount
	doc.Dimension = u.Dimension
	doc.Metric = u.Metric
	s.documents[id] = doc
	return nil
}

func (s *MemoryStore) DeleteDocument(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.documents[id]
	if !ok {
		return notFound("document", id)
	}
	delete(s.documents, id)
	if c, ok := s.collections[doc.CollectionID]; ok {
		c.DocumentIDs = slices.DeleteFunc(slices.Clone(c.DocumentIDs), func(d string) bool { return d == id })
		s.collections[c.ID] = c
	}
	return nil
}

func (s *MemoryStore) CountDocuments(context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.documents), nil
}

func (s *MemoryStore) CreateCollection(_ context.Context, c models.Collection) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.collections[c.ID]; ok {
		return util.Errorf(util.KindInvalidArgument, "collection %s already exists", c.ID)
	}
	c.DocumentIDs = slices.Clone(c.DocumentIDs)
	s.collections[c.ID] = c
	return nil
}

func (s *MemoryStore) GetCollection(_ context.Context, id string) (models.Collection, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.collections[id]
	if !ok {
		return models.Collection{}, notFound("collection", id)
	}
	c.DocumentIDs = slices.Clone(c.DocumentIDs)
	if c.DocumentIDs == nil {
		c.DocumentIDs = []string{}
	}
	return c, nil
}

func (s *MemoryStore) AddToCollection(_ context.Context, collectionID, documentID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.collections[collectionID]
	if !ok {
		return notFound("collection", collectionID)
	}
	if !slices.Contains(c.DocumentIDs, documentID) {
		c.DocumentIDs = append(slices.Clone(c.DocumentIDs), documentID)
	}
	s.collections[collectionID] = c
	return nil
}

func (s *MemoryStore) CountCollections(context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.collections), nil
}

func (s *MemoryStore) AppendTurns(_ context.Context, conversationID, linkID string, turns ...models.Turn) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	conv, ok := s.conversations[conversationID]
	if !ok {
		created := time.Now().UTC()
		if len(turns) > 0 && !turns[0].Timestamp.IsZero() {
			created = turns[0].Timestamp
		}
		conv = models.Conversation{ID: conversationID, LinkID: linkID, CreatedAt: created}
	}
	conv.Turns = append(slices.Clone(conv.Turns), turns...)
	s.conversations[conversationID] = conv
	return nil
}

func copyConversation(c models.Conversation) models.Conversation {
	c.Turns = slices.Clone(c.Turns)
	if c.Turns == nil {
		c.Turns = []models.Turn{}
	}
	return c
}

func (s *MemoryStore) GetConversation(_ context.Context, id string) (models.Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.conversations[id]
	if !ok {
		return models.Conversation{}, notFound("conversation", id)
	}
	return copyConversation(c), nil
}

func (s *MemoryStore) ListConversations(_ context.Context, linkID string) ([]models.Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Conversation, 0)
	for _, c := range s.conversations {
		if c.LinkID == linkID {
			out = append(out, copyConversation(c))
		}
	}
	slices.SortFunc(out, func(a, b models.Conversation) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return out, nil
}

func (s *MemoryStore) CountConversations(context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.conversations), nil
}

func (s *MemoryStore) AddReaction(_ context.Context, conversationID string, index int, reaction string) (map[string]int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.conversations[conversationID]; !ok {
		return nil, notFound("conversation", conversationID)
	}
	key := feedbackKey{conversationID, index}
	counts, ok := s.reactions[key]
	if !ok {
		counts = map[string]int{}
		s.reactions[key] = counts
	}
	counts[reaction]++
	return maps.Clone(counts), nil
}

func (s *MemoryStore) Reactions(_ context.Context, conversationID string, index int) (map[string]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	counts := maps.Clone(s.reactions[feedbackKey{conversationID, index}])
	if counts == nil {
		counts = map[string]int{}
	}
	return counts, nil
}

func (s *MemoryStore) AddComment(_ context.Context, conversationID string, index int, c models.Comment) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.conversations[conversationID]; !ok {
		return 0, notFound("conversation", conversationID)
	}
	key := feedbackKey{conversationID, index}
	s.comments[key] = append(s.comments[key], c)
	return len(s.comments[key]), nil
}

func (s *MemoryStore) Comments(_ context.Context, conversationID string, index int) ([]models.Comment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := slices.Clone(s.comments[feedbackKey{conversationID, index}])
	if out == nil {
		out = []models.Comment{}
	}
	return out, nil
}
