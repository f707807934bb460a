package api

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"pythagorean/internal/models"
	"pythagorean/internal/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type searchRequest struct {
	LinkID   string `json:"link_id"`
	Question string `json:"question"`
}

type historyTurn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type queryRequest struct {
	LinkID              string        `json:"link_id"`
	Question            string        `json:"question"`
	ConversationHistory []historyTurn `json:"conversation_history"`
	ConversationID      string        `json:"conversation_id"`
}

type searchHit struct {
	Text     string         `json:"text"`
	Metadata searchMetadata `json:"metadata"`
	Score    float64        `json:"similarity_score"`
}

type searchMetadata struct {
	ChunkIndex int    `json:"chunk_index"`
	DocID      string `json:"doc_id"`
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req searchRequest
	if err := decodeJSON(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	req.LinkID = strings.TrimSpace(req.LinkID)
	if req.LinkID == "" || strings.TrimSpace(req.Question) == "" {
		s.fail(w, r, badRequest("link_id and question are required"))
		return
	}
	if _, err := s.store.GetDocument(ctx, req.LinkID); err != nil {
		s.fail(w, r, err)
		return
	}
	results, err := s.index.Query(ctx, req.LinkID, req.Question, s.cfg.SearchTopK)
	if errors.Is(err, util.ErrNotFound) {
		// known document whose ingest has not produced an index
		results, err = nil, nil
	}
	if err != nil {
		s.fail(w, r, err)
		return
	}
	hits := make([]searchHit, 0, len(results))
	for _, res := range results {
		hits = append(hits, searchHit{
			Text:     res.Text,
			Metadata: searchMetadata{ChunkIndex: res.Position, DocID: res.DocumentID},
			Score:    res.Score,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"link_id":  req.LinkID,
		"question": req.Question,
		"results":  hits,
	})
}

// queryTarget resolves a link id to the documents it covers. Collections take
// precedence over documents with the same id.
type queryTarget struct {
	kind        string
	documentIDs []string
}

func (s *Server) resolveTarget(ctx context.Context, linkID string) (queryTarget, error) {
	c, err := s.store.GetCollection(ctx, linkID)
	if err == nil {
		return queryTarget{kind: "collection", documentIDs: c.DocumentIDs}, nil
	}
	if !errors.Is(err, util.ErrNotFound) {
		return queryTarget{}, err
	}
	if _, err := s.store.GetDocument(ctx, linkID); err != nil {
		return queryTarget{}, err
	}
	return queryTarget{kind: "document", documentIDs: []string{linkID}}, nil
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req queryRequest
	if err := decodeJSON(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	req.LinkID = strings.TrimSpace(req.LinkID)
	if req.LinkID == "" || strings.TrimSpace(req.Question) == "" {
		s.fail(w, r, badRequest("link_id and question are required"))
		return
	}
	target, err := s.resolveTarget(ctx, req.LinkID)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	conversationID := req.ConversationID
	if conversationID == "" {
		conversationID = uuid.NewString()[:12]
	}
	history, err := s.history(ctx, req)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	ans, err := s.rag.Answer(ctx, target.documentIDs, req.Question, history)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	asked := time.Now().UTC()
	if err := s.store.AppendTurns(ctx, conversationID, req.LinkID,
		models.Turn{Role: models.RoleUser, Content: req.Question, Timestamp: asked},
		models.Turn{Role: models.RoleAssistant, Content: ans.Text, Sources: ans.Sources, Timestamp: time.Now().UTC()},
	); err != nil {
		s.fail(w, r, err)
		return
	}
	s.log.Debug("query answered",
		zap.String("link_id", req.LinkID),
		zap.String("type", target.kind),
		zap.String("conversation_id", conversationID),
		zap.Int("sources", len(ans.Sources)),
	)

	out := map[string]any{
		"answer":          ans.Text,
		"sources":         ans.Sources,
		"link_id":         req.LinkID,
		"type":            target.kind,
		"conversation_id": conversationID,
	}
	if target.kind == "collection" {
		out["document_count"] = len(target.documentIDs)
	}
	writeJSON(w, http.StatusOK, out)
}

// history prefers the turns sent with the request and falls back to the
// stored conversation when only its id is given.
func (s *Server) history(ctx context.Context, req queryRequest) ([]models.Turn, error) {
	if len(req.ConversationHistory) > 0 {
		turns := make([]models.Turn, 0, len(req.ConversationHistory))
		for _, h := range req.ConversationHistory {
			turns = append(turns, models.Turn{Role: h.Role, Content: h.Content})
		}
		return turns, nil
	}
	if req.ConversationID == "" {
		return nil, nil
	}
	conv, err := s.store.GetConversation(ctx, req.ConversationID)
	if errors.Is(err, util.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return conv.Turns, nil
}
