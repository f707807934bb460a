// Package rag answers questions from retrieved document chunks.
package rag

import (
	"context"
	"fmt"
	"strings"
	"time"

	"pythagorean/internal/models"
	"pythagorean/internal/providers"
	"pythagorean/internal/util"

	"go.uber.org/zap"
)

const (
	FallbackAnswer = "I couldn't find any relevant information in the document to answer your question."

	DefaultTopK       = 5
	HistoryWindow     = 5
	MaxSources        = 3
	SourceSnippetSize = 200
)

const systemPrompt = `You are a helpful AI assistant that answers questions based on the provided document context.

Rules:
- Answer ONLY based on the context provided
- If the context doesn't contain the answer, say so clearly
- Cite your sources (e.g., "According to Source 1...")
- Be concise but complete
- If you're not sure, say so`

// Retriever is satisfied by *retrieval.Retriever.
type Retriever interface {
	Retrieve(ctx context.Context, documentIDs []string, question string, k int) ([]models.SearchResult, error)
}

type Options struct {
	TopK      int
	MaxTokens int
	Timeout   time.Duration
}

type Answer struct {
	Text    string   `json:"answer"`
	Sources []string `json:"sources"`
}

type Orchestrator struct {
	retriever Retriever
	llm       providers.LLMProvider
	opts      Options
	log       *zap.Logger
}

func New(retriever Retriever, llm providers.LLMProvider, opts Options, log *zap.Logger) *Orchestrator {
	if opts.TopK <= 0 {
		opts.TopK = DefaultTopK
	}
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = 1024
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 60 * time.Second
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Orchestrator{retriever: retriever, llm: llm, opts: opts, log: log}
}

// Answer retrieves context for question and asks the language model to answer
// from it. With nothing retrieved it returns FallbackAnswer without calling the model.
func (o *Orchestrator) Answer(ctx context.Context, documentIDs []string, question string, history []models.Turn) (Answer, error) {
	chunks, err := o.retriever.Retrieve(ctx, documentIDs, question, o.opts.TopK)
	if err != nil {
		return Answer{}, fmt.Errorf("retrieve: %w", err)
	}
	if len(chunks) == 0 {
		return Answer{Text: FallbackAnswer, Sources: []string{}}, nil
	}

	req := providers.GenerateRequest{
		Operation: "answer",
		System:    systemPrompt,
		Messages:  BuildMessages(history, chunks, question),
		MaxTokens: o.opts.MaxTokens,
	}
	cctx, cancel := context.WithTimeout(ctx, o.opts.Timeout)
	defer cancel()
	start := time.Now()
	resp, info, err := o.llm.Generate(cctx, req)
	if err != nil {
		return Answer{}, util.Wrap(util.KindUpstream, "complete", err)
	}
	o.log.Info("answer generated",
		zap.String("provider", info.Name),
		zap.String("model", info.Model),
		zap.Int("chunks", len(chunks)),
		zap.Duration("latency", time.Since(start)),
	)
	return Answer{Text: resp.Text, Sources: Sources(chunks)}, nil
}

// ContextBlock numbers chunks from 1 in the order given.
func ContextBlock(chunks []models.SearchResult) string {
	parts := make([]string, len(chunks))
	for i, c := range chunks {
		parts[i] = fmt.Sprintf("[Source %d]:\n%s", i+1, c.Text)
	}
	return strings.Join(parts, "\n\n")
}

func UserMessage(chunks []models.SearchResult, question string) string {
	return "DOCUMENT CONTEXT:\n" + ContextBlock(chunks) +
		"\n\nUSER QUESTION: " + question +
		"\n\nPlease answer the question based only on the context above."
}

// BuildMessages keeps the last HistoryWindow turns, role and content only, and
// appends the grounded question.
func BuildMessages(history []models.Turn, chunks []models.SearchResult, question string) []providers.Message {
	if len(history) > HistoryWindow {
		history = history[len(history)-HistoryWindow:]
	}
	msgs := make([]providers.Message, 0, len(history)+1)
	for _, t := range history {
		role := providers.RoleUser
		if t.Role == models.RoleAssistant {
			role = providers.RoleAssistant
		}
		msgs = append(msgs, providers.Message{Role: role, Content: t.Content})
	}
	return append(msgs, providers.Message{Role: providers.RoleUser, Content: UserMessage(chunks, question)})
}

func Sources(chunks []models.SearchResult) []string {
	n := min(len(chunks), MaxSources)
	out := make([]string, n)
	for i := range n {
		out[i] = util.Snippet(chunks[i].Text, SourceSnippetSize)
	}
	return out
}
