// Package vector maintains one similarity index namespace per document and
// answers nearest-chunk queries against it.
package vector

import (
	"cmp"
	"context"
	"fmt"
	"math"
	"slices"
	"strings"
	"sync"

	"pythagorean/internal/models"
	"pythagorean/internal/providers"
	"pythagorean/internal/util"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const MetricCosine = "cosine"

// Backend stores embedded chunks per document. Replace must swap a document's
// namespace atomically: concurrent Search calls see the old chunks or the new
// ones, never a mix. Search and Delete fail with util.ErrNotFound for unknown
// documents. Scores are raw cosine similarities.
type Backend interface {
	Replace(ctx context.Context, documentID string, chunks []models.Chunk) error
	Search(ctx context.Context, documentID string, vec []float32, k int) ([]models.SearchResult, error)
	Delete(ctx context.Context, documentID string) error
}

type Options struct {
	// Dimension pins the embedding length. Zero pins it to the first vector seen.
	Dimension   int
	BatchSize   int
	Concurrency int
}

// Report describes a finished Index call.
type Report struct {
	ChunksCreated     int    `json:"chunks_created"`
	Dimension         int    `json:"embedding_dimensions"`
	Metric            string `json:"metric"`
	FirstChunkPreview string `json:"first_chunk_preview,omitempty"`
}

type Engine struct {
	backend  Backend
	embedder providers.EmbeddingProvider
	opts     Options
	log      *zap.Logger

	mu  sync.Mutex
	dim int
}

func NewEngine(backend Backend, embedder providers.EmbeddingProvider, opts Options, log *zap.Logger) *Engine {
	if opts.BatchSize <= 0 {
		opts.BatchSize = 32
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 4
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Engine{backend: backend, embedder: embedder, opts: opts, log: log, dim: opts.Dimension}
}

// Dimension returns the pinned embedding length, or zero before anything was embedded.
func (e *Engine) Dimension() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.dim
}

// Index embeds chunks in batches and replaces the document's namespace with
// them. Zero chunks leave an empty namespace that answers queries with no results.
func (e *Engine) Index(ctx context.Context, documentID string, chunks []string) (Report, error) {
	if strings.TrimSpace(documentID) == "" {
		return Report{}, util.Errorf(util.KindInvalidArgument, "document id is required")
	}
	vectors, err := e.embedAll(ctx, chunks)
	if err != nil {
		return Report{}, err
	}
	records := make([]models.Chunk, len(chunks))
	for i, text := range chunks {
		records[i] = models.Chunk{DocumentID: documentID, Position: i, Text: text, Embedding: vectors[i]}
	}
	if err := e.backend.Replace(ctx, documentID, records); err != nil {
		return Report{}, fmt.Errorf("store index for %s: %w", documentID, err)
	}

	rep := Report{ChunksCreated: len(chunks), Dimension: e.Dimension(), Metric: MetricCosine}
	if len(chunks) > 0 {
		rep.FirstChunkPreview = util.Preview(chunks[0], 200)
	}
	e.log.Info("document indexed",
		zap.String("document_id", documentID),
		zap.Int("chunks", rep.ChunksCreated),
		zap.Int("dimension", rep.Dimension),
	)
	return rep, nil
}

func (e *Engine) embedAll(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.opts.Concurrency)
	for start := 0; start < len(texts); start += e.opts.BatchSize {
		end := min(start+e.opts.BatchSize, len(texts))
		g.Go(func() error {
			vecs, _, err := e.embedder.Embed(gctx, providers.EmbedRequest{
				Operation: "index",
				Inputs:    texts[start:end],
				Dimension: e.opts.Dimension,
			})
			if err != nil {
				return util.Wrap(util.KindUpstream, "embed chunks", err)
			}
			if len(vecs) != end-start {
				return util.Errorf(util.KindUpstream, "embed chunks: got %d vectors for %d inputs", len(vecs), end-start)
			}
			for i, v := range vecs {
				if err := e.checkDimension(v); err != nil {
					return err
				}
				out[start+i] = v
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func (e *Engine) checkDimension(v []float32) error {
	if len(v) == 0 {
		return util.Errorf(util.KindUpstream, "embedding provider returned an empty vector")
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.dim == 0 {
		e.dim = len(v)
		return nil
	}
	if len(v) != e.dim {
		return util.Errorf(util.KindUpstream, "embedding dimension %d does not match index dimension %d", len(v), e.dim)
	}
	return nil
}

// EmbedQuery embeds a single question so it can be reused across documents.
func (e *Engine) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vecs, _, err := e.embedder.Embed(ctx, providers.EmbedRequest{
		Operation: "query",
		Inputs:    []string{text},
		Dimension: e.opts.Dimension,
	})
	if err != nil {
		return nil, util.Wrap(util.KindUpstream, "embed query", err)
	}
	if len(vecs) != 1 {
		return nil, util.Errorf(util.KindUpstream, "embed query: got %d vectors", len(vecs))
	}
	if err := e.checkDimension(vecs[0]); err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// Query returns up to k chunks of the document, best similarity first.
func (e *Engine) Query(ctx context.Context, documentID, question string, k int) ([]models.SearchResult, error) {
	if k <= 0 {
		return nil, util.Errorf(util.KindInvalidArgument, "k must be positive, got %d", k)
	}
	vec, err := e.EmbedQuery(ctx, question)
	if err != nil {
		return nil, err
	}
	return e.QueryVector(ctx, documentID, vec, k)
}

func (e *Engine) QueryVector(ctx context.Context, documentID string, vec []float32, k int) ([]models.SearchResult, error) {
	if k <= 0 {
		return nil, util.Errorf(util.KindInvalidArgument, "k must be positive, got %d", k)
	}
	results, err := e.backend.Search(ctx, documentID, vec, k)
	if err != nil {
		return nil, err
	}
	for i := range results {
		results[i].Score = ClampScore(results[i].Score)
	}
	SortResults(results)
	if len(results) > k {
		results = results[:k]
	}
	return results, nil
}

// Remove drops the document's whole namespace.
func (e *Engine) Remove(ctx context.Context, documentID string) error {
	return e.backend.Delete(ctx, documentID)
}

// ClampScore maps s into [0,1]. NaN, from a zero vector, scores 0.
func ClampScore(s float64) float64 {
	switch {
	case math.IsNaN(s), s < 0:
		return 0
	case s > 1:
		return 1
	default:
		return s
	}
}

// SortResults orders by score descending, then document and position so
// equal scores stay deterministic.
func SortResults(results []models.SearchResult) {
	slices.SortStableFunc(results, func(a, b models.SearchResult) int {
		if c := cmp.Compare(b.Score, a.Score); c != 0 {
			return c
		}
		if c := cmp.Compare(a.DocumentID, b.DocumentID); c != 0 {
			return c
		}
		return cmp.Compare(a.Position, b.Position)
	})
}
