package models

import "time"

const (
	StatusPending = "pending"
	StatusReady   = "ready"
	StatusFailed  = "failed"

	RoleUser      = "user"
	RoleAssistant = "assistant"
)

type Document struct {
	ID           string    `json:"link_id"`
	Filename     string    `json:"filename"`
	FileType     string    `json:"file_type"`
	ChunkCount   int       `json:"chunks_created"`
	CollectionID string    `json:"collection_id,omitempty"`
	Status       string    `json:"status"`
	FailReason   string    `json:"fail_reason,omitempty"`
	Dimension    int       `json:"embedding_dimensions,omitempty"`
	Metric       string    `json:"metric,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

type Collection struct {
	ID          string    `json:"id"`
	DocumentIDs []string  `json:"documents"`
	CreatedAt   time.Time `json:"created_at"`
}

type Chunk struct {
	DocumentID string    `json:"doc_id"`
	Position   int       `json:"chunk_index"`
	Text       string    `json:"text"`
	Embedding  []float32 `json:"-"`
}

type SearchResult struct {
	Text       string  `json:"text"`
	DocumentID string  `json:"doc_id"`
	Position   int     `json:"chunk_index"`
	Score      float64 `json:"similarity_score"`
}

type Turn struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Sources   []string  `json:"sources,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

type Conversation struct {
	ID        string    `json:"conversation_id"`
	LinkID    string    `json:"link_id"`
	Turns     []Turn    `json:"messages"`
	CreatedAt time.Time `json:"created_at"`
}

type Comment struct {
	ID        string    `json:"id"`
	Text      string    `json:"text"`
	UserName  string    `json:"user_name"`
	Timestamp time.Time `json:"timestamp"`
}
