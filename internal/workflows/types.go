package workflows

type DocumentIngestInput struct {
	DocumentID   string `json:"document_id"`
	CollectionID string `json:"collection_id,omitempty"`
	Filename     string `json:"filename"`
	Path         string `json:"path"`
}

// DocumentStatus is what the GetDocumentStatus query returns while the
// workflow runs.
type DocumentStatus struct {
	DocumentID    string            `json:"document_id"`
	CurrentStep   string            `json:"current_step"`
	Status        string            `json:"status"`
	FailReason    string            `json:"fail_reason,omitempty"`
	FileType      string            `json:"file_type,omitempty"`
	ChunksCreated int               `json:"chunks_created"`
	Steps         map[string]string `json:"steps"`
}
