package activities

type ExtractTextInput struct {
	DocumentID string `json:"document_id"`
	Path       string `json:"path"`
}

type ExtractTextOutput struct {
	Text     string `json:"text"`
	FileType string `json:"file_type"`
}

type ChunkTextInput struct {
	DocumentID string `json:"document_id"`
	Text       string `json:"text"`
}

type ChunkTextOutput struct {
	Chunks []string `json:"chunks"`
}

type IndexChunksInput struct {
	DocumentID string   `json:"document_id"`
	Chunks     []string `json:"chunks"`
}

type IndexChunksOutput struct {
	ChunksCreated     int    `json:"chunks_created"`
	Dimension         int    `json:"embedding_dimensions"`
	Metric            string `json:"metric"`
	FirstChunkPreview string `json:"first_chunk_preview"`
}

type UpdateDocumentStatusInput struct {
	DocumentID string `json:"document_id"`
	Status     string `json:"status"`
	FailReason string `json:"fail_reason,omitempty"`
	FileType   string `json:"file_type,omitempty"`
	ChunkCount int    `json:"chunk_count"`
	Dimension  int    `json:"dimension"`
	Metric     string `json:"metric,omitempty"`
}

type AddToCollectionInput struct {
	CollectionID string `json:"collection_id"`
	DocumentID   string `json:"document_id"`
}

type RemoveUploadInput struct {
	Path string `json:"path"`
}
