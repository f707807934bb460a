// Package api serves the document QA HTTP surface.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"pythagorean/internal/config"
	"pythagorean/internal/ingest"
	"pythagorean/internal/logger"
	"pythagorean/internal/models"
	"pythagorean/internal/rag"
	"pythagorean/internal/storage"
	"pythagorean/internal/util"
	"pythagorean/internal/workflows"

	"go.uber.org/zap"
)

type Pipeline interface {
	Supported(name string) bool
	Run(ctx context.Context, documentID, path string) (ingest.Result, error)
}

type Index interface {
	Query(ctx context.Context, documentID, question string, k int) ([]models.SearchResult, error)
	Remove(ctx context.Context, documentID string) error
}

type Answerer interface {
	Answer(ctx context.Context, documentIDs []string, question string, history []models.Turn) (rag.Answer, error)
}

// Dispatcher hands uploads to the worker. A nil Dispatcher means uploads are
// indexed inside the request.
type Dispatcher interface {
	Dispatch(ctx context.Context, in workflows.DocumentIngestInput) (string, error)
}

// statusQuerier is implemented by dispatchers that can report ingest progress.
type statusQuerier interface {
	Status(ctx context.Context, documentID string) (workflows.DocumentStatus, error)
}

type Deps struct {
	Config     config.Config
	Store      storage.Store
	Pipeline   Pipeline
	Index      Index
	RAG        Answerer
	Dispatcher Dispatcher
	Log        *zap.Logger
}

type Server struct {
	cfg        config.Config
	store      storage.Store
	pipeline   Pipeline
	index      Index
	rag        Answerer
	dispatcher Dispatcher
	log        *zap.Logger
}

func NewServer(d Deps) *Server {
	return &Server{
		cfg:        d.Config,
		store:      d.Store,
		pipeline:   d.Pipeline,
		index:      d.Index,
		rag:        d.RAG,
		dispatcher: d.Dispatcher,
		log:        logger.OrNop(d.Log),
	}
}

func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.handleRoot)
	mux.HandleFunc("GET /health", s.handleHealth)

	mux.HandleFunc("POST /collection/create", s.handleCollectionCreate)
	mux.HandleFunc("GET /collection/{collection_id}", s.handleGetCollection)
	mux.HandleFunc("POST /upload", s.handleUpload)
	mux.HandleFunc("GET /document/{link_id}", s.handleGetDocument)
	mux.HandleFunc("DELETE /document/{link_id}", s.handleDeleteDocument)
	mux.HandleFunc("GET /document/{link_id}/activity", s.handleActivity)

	mux.HandleFunc("POST /search", s.handleSearch)
	mux.HandleFunc("POST /query", s.handleQuery)

	mux.HandleFunc("POST /reaction/add", s.handleAddReaction)
	mux.HandleFunc("GET /reaction/{conversation_id}/{message_index}", s.handleGetReactions)
	mux.HandleFunc("POST /comment/add", s.handleAddComment)
	mux.HandleFunc("GET /comment/{conversation_id}/{message_index}", s.handleGetComments)
	mux.HandleFunc("GET /conversation/{conversation_id}", s.handleGetConversation)
	mux.HandleFunc("GET /conversation/{conversation_id}/share", s.handleShareConversation)
	return withCORS(mux)
}

func (s *Server) handleRoot(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"message": "Pythagorean API is running!"})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	docs, err := s.store.CountDocuments(ctx)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	cols, err := s.store.CountCollections(ctx)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	convs, err := s.store.CountConversations(ctx)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":              "healthy",
		"documents_count":     docs,
		"collections_count":   cols,
		"conversations_count": convs,
	})
}

func decodeJSON(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return util.Errorf(util.KindInvalidArgument, "invalid json: %w", err)
	}
	return nil
}

func badRequest(msg string) error {
	return util.Errorf(util.KindInvalidArgument, "%s", msg)
}

// statusFor maps an error kind onto the HTTP status returned to the caller.
func statusFor(err error) int {
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		return http.StatusRequestEntityTooLarge
	}
	switch util.KindOf(err) {
	case util.KindNotFound:
		return http.StatusNotFound
	case util.KindInvalidArgument:
		return http.StatusBadRequest
	case util.KindUpstream:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	code := statusFor(err)
	fields := []zap.Field{
		zap.String("method", r.Method),
		zap.String("path", r.URL.Path),
		zap.Int("status", code),
		zap.Error(err),
	}
	if code >= 500 {
		s.log.Error("request failed", fields...)
	} else {
		s.log.Info("request rejected", fields...)
	}
	writeErr(w, code, err)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeErr(w http.ResponseWriter, code int, err error) {
	apiErr := toAPIError(code, err)
	writeJSON(w, code, map[string]any{
		"error": map[string]any{
			"code":    apiErr.Code,
			"message": apiErr.Message,
		},
	})
}

type apiError struct {
	Code    string
	Message string
}

func toAPIError(status int, err error) apiError {
	msg := "Request failed."
	code := "PY-API-4000"
	raw := ""
	if err != nil {
		raw = strings.ToLower(err.Error())
	}

	switch {
	case status >= 500:
		switch {
		case util.KindOf(err) == util.KindUpstream:
			return apiError{
				Code:    "PY-API-5020",
				Message: "Upstream provider unavailable. Retry shortly.",
			}
		case util.KindOf(err) == util.KindExtraction:
			return apiError{
				Code:    "PY-EXT-5001",
				Message: "Could not extract text from the uploaded file.",
			}
		case strings.Contains(raw, "relation") && strings.Contains(raw, "does not exist"):
			return apiError{
				Code:    "PY-DB-5001",
				Message: "Database schema is not initialized. Run migrations and retry.",
			}
		case strings.Contains(raw, "connect"), strings.Contains(raw, "dial tcp"), strings.Contains(raw, "connection refused"):
			return apiError{
				Code:    "PY-DB-5002",
				Message: "Database connection is unavailable. Check local services and retry.",
			}
		default:
			return apiError{
				Code:    "PY-API-5000",
				Message: "Internal server error. Please retry or check service logs.",
			}
		}
	case status == http.StatusBadRequest:
		code = "PY-API-4001"
		msg = "Invalid request. Check inputs and retry."
	case status == http.StatusNotFound:
		code = "PY-API-4004"
		msg = "Requested resource was not found."
	case status == http.StatusRequestEntityTooLarge:
		code = "PY-API-4013"
		msg = "Uploaded file is too large."
	}

	// For 4xx, keep user-safe validation context only.
	if status >= 400 && status < 500 && err != nil {
		switch {
		case errors.Is(err, util.ErrUnsupportedType):
			msg = "Unsupported file type. Upload PDF, DOCX, XLSX, TXT or MD."
		case errors.Is(err, util.ErrEmptyCollection):
			msg = "Collection is empty."
		case strings.Contains(raw, "link_id and question are required"):
			msg = "Both link_id and question are required."
		case strings.Contains(raw, "file is required"):
			msg = "No file was provided."
		case strings.Contains(raw, "invalid json"):
			msg = "Malformed JSON request body."
		case strings.Contains(raw, "message_index"):
			msg = "message_index must be a non-negative integer."
		case strings.Contains(raw, "reaction is required"):
			msg = "Reaction is required."
		case strings.Contains(raw, "comment_text is required"):
			msg = "Comment text is required."
		case status == http.StatusNotFound:
			switch {
			case strings.Contains(raw, "conversation"):
				msg = "Conversation not found."
			case strings.Contains(raw, "collection"):
				msg = "Collection not found."
			case strings.Contains(raw, "document"):
				msg = "Document not found."
			}
		}
	}

	return apiError{Code: code, Message: msg}
}

func withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		w.Header().Set("Access-Control-Allow-Methods", "GET,POST,DELETE,OPTIONS")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func shareURL(base, kind, id string) string {
	return fmt.Sprintf("%s/%s/%s", base, kind, id)
}

func storageFailed(err error) storage.StatusUpdate {
	return storage.StatusUpdate{Status: models.StatusFailed, FailReason: err.Error()}
}
