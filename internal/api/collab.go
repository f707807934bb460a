package api

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"pythagorean/internal/models"
	"pythagorean/internal/util"

	"github.com/google/uuid"
)

type reactionRequest struct {
	ConversationID string `json:"conversation_id"`
	MessageIndex   int    `json:"message_index"`
	Reaction       string `json:"reaction"`
}

type commentRequest struct {
	ConversationID string `json:"conversation_id"`
	MessageIndex   int    `json:"message_index"`
	CommentText    string `json:"comment_text"`
	UserName       string `json:"user_name"`
}

// enrichedTurn is a stored turn with its position and feedback attached.
type enrichedTurn struct {
	models.Turn
	Index     int              `json:"index"`
	Reactions map[string]int   `json:"reactions"`
	Comments  []models.Comment `json:"comments"`
}

func messageIndex(r *http.Request) (int, error) {
	n, err := strconv.Atoi(r.PathValue("message_index"))
	if err != nil || n < 0 {
		return 0, badRequest("message_index must be a non-negative integer")
	}
	return n, nil
}

func (s *Server) handleAddReaction(w http.ResponseWriter, r *http.Request) {
	var req reactionRequest
	if err := decodeJSON(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	switch {
	case req.MessageIndex < 0:
		s.fail(w, r, badRequest("message_index must be a non-negative integer"))
		return
	case strings.TrimSpace(req.Reaction) == "":
		s.fail(w, r, badRequest("reaction is required"))
		return
	}
	counts, err := s.store.AddReaction(r.Context(), req.ConversationID, req.MessageIndex, req.Reaction)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"conversation_id": req.ConversationID,
		"message_index":   req.MessageIndex,
		"reactions":       counts,
	})
}

func (s *Server) handleGetReactions(w http.ResponseWriter, r *http.Request) {
	idx, err := messageIndex(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	id := r.PathValue("conversation_id")
	counts, err := s.store.Reactions(r.Context(), id, idx)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"conversation_id": id, "message_index": idx, "reactions": counts})
}

func (s *Server) handleAddComment(w http.ResponseWriter, r *http.Request) {
	var req commentRequest
	if err := decodeJSON(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	switch {
	case req.MessageIndex < 0:
		s.fail(w, r, badRequest("message_index must be a non-negative integer"))
		return
	case strings.TrimSpace(req.CommentText) == "":
		s.fail(w, r, badRequest("comment_text is required"))
		return
	}
	c := models.Comment{
		ID:        uuid.NewString()[:8],
		Text:      req.CommentText,
		UserName:  strings.TrimSpace(req.UserName),
		Timestamp: time.Now().UTC(),
	}
	if c.UserName == "" {
		c.UserName = "Anonymous"
	}
	total, err := s.store.AddComment(r.Context(), req.ConversationID, req.MessageIndex, c)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"conversation_id": req.ConversationID,
		"message_index":   req.MessageIndex,
		"comment":         c,
		"total_comments":  total,
	})
}

func (s *Server) handleGetComments(w http.ResponseWriter, r *http.Request) {
	idx, err := messageIndex(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	id := r.PathValue("conversation_id")
	comments, err := s.store.Comments(r.Context(), id, idx)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"conversation_id": id, "message_index": idx, "comments": comments})
}

func (s *Server) enrich(ctx context.Context, conv models.Conversation) ([]enrichedTurn, error) {
	out := make([]enrichedTurn, 0, len(conv.Turns))
	for i, t := range conv.Turns {
		reactions, err := s.store.Reactions(ctx, conv.ID, i)
		if err != nil {
			return nil, err
		}
		comments, err := s.store.Comments(ctx, conv.ID, i)
		if err != nil {
			return nil, err
		}
		out = append(out, enrichedTurn{Turn: t, Index: i, Reactions: reactions, Comments: comments})
	}
	return out, nil
}

func (s *Server) handleGetConversation(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	conv, err := s.store.GetConversation(ctx, r.PathValue("conversation_id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	messages, err := s.enrich(ctx, conv)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"conversation_id": conv.ID,
		"link_id":         conv.LinkID,
		"created_at":      conv.CreatedAt,
		"messages":        messages,
	})
}

func (s *Server) handleShareConversation(w http.ResponseWriter, r *http.Request) {
	conv, err := s.store.GetConversation(r.Context(), r.PathValue("conversation_id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"conversation_id": conv.ID,
		"shareable_url":   shareURL(s.cfg.PublicURL, "conversation", conv.ID),
		"message":         "Share this link to let others view this conversation",
	})
}

// handleActivity lists every conversation held against a document or
// collection, newest first, with feedback totals.
func (s *Server) handleActivity(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	linkID := r.PathValue("link_id")
	if _, err := s.resolveTarget(ctx, linkID); err != nil {
		if util.KindOf(err) == util.KindNotFound {
			err = util.Errorf(util.KindNotFound, "document or collection %s not found", linkID)
		}
		s.fail(w, r, err)
		return
	}
	convs, err := s.store.ListConversations(ctx, linkID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	type conversationActivity struct {
		ConversationID string         `json:"conversation_id"`
		CreatedAt      time.Time      `json:"created_at"`
		Messages       []enrichedTurn `json:"messages"`
		MessageCount   int            `json:"message_count"`
	}
	out := make([]conversationActivity, 0, len(convs))
	totalReactions, totalComments := 0, 0
	for _, c := range convs {
		messages, err := s.enrich(ctx, c)
		if err != nil {
			s.fail(w, r, err)
			return
		}
		for _, m := range messages {
			for _, n := range m.Reactions {
				totalReactions += n
			}
			totalComments += len(m.Comments)
		}
		out = append(out, conversationActivity{
			ConversationID: c.ID,
			CreatedAt:      c.CreatedAt,
			Messages:       messages,
			MessageCount:   len(c.Turns),
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"link_id":             linkID,
		"total_conversations": len(out),
		"total_reactions":     totalReactions,
		"total_comments":      totalComments,
		"conversations":       out,
	})
}
