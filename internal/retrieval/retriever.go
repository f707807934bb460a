// Package retrieval finds the chunks most relevant to a question across one
// document or a whole collection.
package retrieval

import (
	"context"
	"errors"

	"pythagorean/internal/models"
	"pythagorean/internal/util"
	"pythagorean/internal/vector"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Index is the part of vector.Engine the retriever queries.
type Index interface {
	Query(ctx context.Context, documentID, question string, k int) ([]models.SearchResult, error)
	QueryVector(ctx context.Context, documentID string, vec []float32, k int) ([]models.SearchResult, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

type Options struct {
	// TopN caps merged collection results.
	TopN        int
	Concurrency int
}

type Retriever struct {
	index Index
	opts  Options
	log   *zap.Logger
}

func New(index Index, opts Options, log *zap.Logger) *Retriever {
	if opts.TopN <= 0 {
		opts.TopN = 5
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 8
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Retriever{index: index, opts: opts, log: log}
}

// Retrieve returns up to k results for one document, or up to TopN merged
// results for several. Documents without an index contribute nothing.
func (r *Retriever) Retrieve(ctx context.Context, documentIDs []string, question string, k int) ([]models.SearchResult, error) {
	switch len(documentIDs) {
	case 0:
		return nil, util.ErrEmptyCollection
	case 1:
		return r.single(ctx, documentIDs[0], question, k)
	default:
		return r.collection(ctx, documentIDs, question, k)
	}
}

func (r *Retriever) single(ctx context.Context, documentID, question string, k int) ([]models.SearchResult, error) {
	res, err := r.index.Query(ctx, documentID, question, k)
	if errors.Is(err, util.ErrNotFound) {
		r.log.Info("document has no index", zap.String("document_id", documentID))
		return []models.SearchResult{}, nil
	}
	if err != nil {
		return nil, err
	}
	return res, nil
}

func (r *Retriever) collection(ctx context.Context, documentIDs []string, question string, k int) ([]models.SearchResult, error) {
	if k <= 0 {
		return nil, util.Errorf(util.KindInvalidArgument, "k must be positive, got %d", k)
	}
	vec, err := r.index.EmbedQuery(ctx, question)
	if err != nil {
		return nil, err
	}

	perDoc := make([][]models.SearchResult, len(documentIDs))
	var g errgroup.Group
	g.SetLimit(r.opts.Concurrency)
	for i, id := range documentIDs {
		g.Go(func() error {
			res, err := r.index.QueryVector(ctx, id, vec, k)
			if err != nil {
				r.log.Warn("skipping document in collection query",
					zap.String("document_id", id),
					zap.String("kind", string(util.KindOf(err))),
					zap.Error(err),
				)
				return nil
			}
			perDoc[i] = res
			return nil
		})
	}
	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	merged := make([]models.SearchResult, 0, len(documentIDs)*k)
	for _, res := range perDoc {
		merged = append(merged, res...)
	}
	vector.SortResults(merged)
	if len(merged) > r.opts.TopN {
		merged = merged[:r.opts.TopN]
	}
	return merged, nil
}
