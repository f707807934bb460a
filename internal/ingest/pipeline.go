// Package ingest runs extract, chunk and index for one uploaded file.
package ingest

import (
	"context"
	"fmt"

	"pythagorean/internal/extract"
	"pythagorean/internal/util"
	"pythagorean/internal/vector"

	"go.uber.org/zap"
)

type Indexer interface {
	Index(ctx context.Context, documentID string, chunks []string) (vector.Report, error)
}

type Extractor interface {
	Supported(name string) bool
	Extract(path string) (extract.Result, error)
}

type Options struct {
	ChunkSize    int
	ChunkOverlap int
}

type Result struct {
	FileType string
	Report   vector.Report
}

type Pipeline struct {
	extractor Extractor
	indexer   Indexer
	opts      Options
	log       *zap.Logger
}

func New(extractor Extractor, indexer Indexer, opts Options, log *zap.Logger) *Pipeline {
	if opts.ChunkSize <= 0 {
		opts.ChunkSize = util.DefaultChunkSize
		opts.ChunkOverlap = util.DefaultChunkOverlap
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Pipeline{extractor: extractor, indexer: indexer, opts: opts, log: log}
}

// Supported reports whether a file with this name can be extracted.
func (p *Pipeline) Supported(name string) bool {
	return p.extractor.Supported(name)
}

// Extract returns the plain text of the file at path.
func (p *Pipeline) Extract(path string) (extract.Result, error) {
	return p.extractor.Extract(path)
}

func (p *Pipeline) Chunk(text string) ([]string, error) {
	return util.ChunkText(text, p.opts.ChunkSize, p.opts.ChunkOverlap)
}

// Run indexes the file under documentID. The index only changes once every
// chunk has been embedded.
func (p *Pipeline) Run(ctx context.Context, documentID, path string) (Result, error) {
	res, err := p.Extract(path)
	if err != nil {
		return Result{}, err
	}
	chunks, err := p.Chunk(res.Text)
	if err != nil {
		return Result{}, err
	}
	rep, err := p.indexer.Index(ctx, documentID, chunks)
	if err != nil {
		return Result{}, fmt.Errorf("index %s: %w", documentID, err)
	}
	p.log.Info("upload indexed",
		zap.String("document_id", documentID),
		zap.String("file_type", res.FileType),
		zap.Int("text_runes", len([]rune(res.Text))),
		zap.Int("chunks", rep.ChunksCreated),
		zap.String("first_chunk", rep.FirstChunkPreview),
	)
	return Result{FileType: res.FileType, Report: rep}, nil
}
