package api

import (
	"context"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"pythagorean/internal/models"
	"pythagorean/internal/util"
	"pythagorean/internal/workflows"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const uploadReadyMessage = "File processed and ready for questions!"

func newLinkID() string { return uuid.NewString()[:8] }

func (s *Server) handleCollectionCreate(w http.ResponseWriter, r *http.Request) {
	c := models.Collection{ID: newLinkID(), DocumentIDs: []string{}, CreatedAt: time.Now().UTC()}
	if err := s.store.CreateCollection(r.Context(), c); err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"collection_id": c.ID, "message": "Collection created"})
}

func (s *Server) handleGetCollection(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	c, err := s.store.GetCollection(ctx, r.PathValue("collection_id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	docs := make([]models.Document, 0, len(c.DocumentIDs))
	for _, id := range c.DocumentIDs {
		doc, err := s.store.GetDocument(ctx, id)
		if errors.Is(err, util.ErrNotFound) {
			continue
		}
		if err != nil {
			s.fail(w, r, err)
			return
		}
		docs = append(docs, doc)
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"id":             c.ID,
		"document_count": len(docs),
		"documents":      docs,
		"created_at":     c.CreatedAt,
	})
}

// handleUpload stores the file under a fresh link id and indexes it, either
// in the request or through the ingest workflow when a dispatcher is set.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if s.cfg.MaxUpload > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUpload)
	}
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			s.fail(w, r, err)
			return
		}
		s.fail(w, r, util.Errorf(util.KindInvalidArgument, "parse multipart: %w", err))
		return
	}
	src, fh, err := r.FormFile("file")
	if err != nil {
		s.fail(w, r, badRequest("file is required"))
		return
	}
	defer src.Close()

	filename := filepath.Base(fh.Filename)
	if !s.pipeline.Supported(filename) {
		s.fail(w, r, util.ErrUnsupportedType)
		return
	}
	collectionID := r.URL.Query().Get("collection_id")
	if collectionID != "" {
		if _, err := s.store.GetCollection(ctx, collectionID); err != nil {
			s.fail(w, r, err)
			return
		}
	}

	docID := newLinkID()
	path, err := util.SaveFile(filepath.Join(s.cfg.DataRoot, "uploads"), docID, filename, src)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	doc := models.Document{
		ID:           docID,
		Filename:     filename,
		CollectionID: collectionID,
		Status:       models.StatusPending,
		CreatedAt:    time.Now().UTC(),
	}
	if s.dispatcher != nil {
		s.uploadAsync(w, r, doc, path)
		return
	}
	s.uploadInline(w, r, doc, path)
}

func (s *Server) uploadInline(w http.ResponseWriter, r *http.Request, doc models.Document, path string) {
	ctx := r.Context()
	defer func() {
		if err := os.Remove(path); err != nil {
			s.log.Warn("remove upload", zap.String("path", path), zap.Error(err))
		}
	}()
	res, err := s.pipeline.Run(ctx, doc.ID, path)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	doc.Status = models.StatusReady
	doc.FileType = res.FileType
	doc.ChunkCount = res.Report.ChunksCreated
	doc.Dimension = res.Report.Dimension
	doc.Metric = res.Report.Metric
	if err := s.store.PutDocument(ctx, doc); err != nil {
		s.dropIndex(ctx, doc.ID)
		s.fail(w, r, err)
		return
	}
	if doc.CollectionID != "" {
		if err := s.store.AddToCollection(ctx, doc.CollectionID, doc.ID); err != nil {
			s.dropIndex(ctx, doc.ID)
			if derr := s.store.DeleteDocument(context.WithoutCancel(ctx), doc.ID); derr != nil {
				s.log.Warn("drop document record", zap.String("document_id", doc.ID), zap.Error(derr))
			}
			s.fail(w, r, err)
			return
		}
	}
	writeJSON(w, http.StatusOK, s.uploadResponse(doc, uploadReadyMessage))
}

// dropIndex removes a namespace whose document record could not be stored.
func (s *Server) dropIndex(ctx context.Context, documentID string) {
	err := s.index.Remove(context.WithoutCancel(ctx), documentID)
	if err != nil && !errors.Is(err, util.ErrNotFound) {
		s.log.Warn("drop orphaned index", zap.String("document_id", documentID), zap.Error(err))
	}
}

func (s *Server) uploadAsync(w http.ResponseWriter, r *http.Request, doc models.Document, path string) {
	ctx := r.Context()
	if err := s.store.PutDocument(ctx, doc); err != nil {
		_ = os.Remove(path)
		s.fail(w, r, err)
		return
	}
	wfID, err := s.dispatcher.Dispatch(ctx, workflows.DocumentIngestInput{
		DocumentID:   doc.ID,
		CollectionID: doc.CollectionID,
		Filename:     doc.Filename,
		Path:         path,
	})
	if err != nil {
		_ = s.store.UpdateDocumentStatus(ctx, doc.ID, storageFailed(err))
		_ = os.Remove(path)
		s.fail(w, r, util.Wrap(util.KindUpstream, "dispatch ingest", err))
		return
	}
	s.log.Info("upload dispatched", zap.String("document_id", doc.ID), zap.String("workflow_id", wfID))
	out := s.uploadResponse(doc, "File received and queued for processing.")
	out["status"] = doc.Status
	out["workflow_id"] = wfID
	writeJSON(w, http.StatusAccepted, out)
}

func (s *Server) uploadResponse(doc models.Document, message string) map[string]any {
	target := doc.ID
	if doc.CollectionID != "" {
		target = doc.CollectionID
	}
	var collectionID any
	if doc.CollectionID != "" {
		collectionID = doc.CollectionID
	}
	return map[string]any{
		"link_id":        doc.ID,
		"collection_id":  collectionID,
		"filename":       doc.Filename,
		"file_type":      doc.FileType,
		"chunks_created": doc.ChunkCount,
		"shareable_url":  shareURL(s.cfg.PublicURL, "chat", target),
		"message":        message,
	}
}

type documentView struct {
	models.Document
	Progress *workflows.DocumentStatus `json:"progress,omitempty"`
}

func (s *Server) handleGetDocument(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	doc, err := s.store.GetDocument(ctx, r.PathValue("link_id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	view := documentView{Document: doc}
	if q, ok := s.dispatcher.(statusQuerier); ok && doc.Status == models.StatusPending {
		if st, err := q.Status(ctx, doc.ID); err == nil {
			view.Progress = &st
		} else {
			s.log.Debug("ingest status unavailable", zap.String("document_id", doc.ID), zap.Error(err))
		}
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) handleDeleteDocument(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := r.PathValue("link_id")
	if _, err := s.store.GetDocument(ctx, id); err != nil {
		s.fail(w, r, err)
		return
	}
	// documents that never finished indexing have nothing to remove
	if err := s.index.Remove(ctx, id); err != nil && !errors.Is(err, util.ErrNotFound) {
		s.fail(w, r, err)
		return
	}
	if err := s.store.DeleteDocument(ctx, id); err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"link_id": id, "message": "Document deleted"})
}
