package activities

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"pythagorean/internal/ingest"
	"pythagorean/internal/logger"
	"pythagorean/internal/storage"
	"pythagorean/internal/util"

	"go.temporal.io/sdk/temporal"
	"go.uber.org/zap"
)

type Activities struct {
	pipeline *ingest.Pipeline
	indexer  ingest.Indexer
	store    storage.Store
	log      *zap.Logger
}

// New wires the activities to the pipeline used for extraction and chunking
// and to the index it writes into.
func New(pipeline *ingest.Pipeline, indexer ingest.Indexer, store storage.Store, log *zap.Logger) *Activities {
	log = logger.OrNop(log)
	return &Activities{pipeline: pipeline, indexer: indexer, store: store, log: log}
}

// nonRetryable marks errors that a retry cannot fix so the workflow fails fast.
func nonRetryable(err error) error {
	if err == nil {
		return nil
	}
	switch kind := util.KindOf(err); kind {
	case util.KindInvalidArgument, util.KindExtraction, util.KindNotFound:
		return temporal.NewNonRetryableApplicationError(err.Error(), string(kind), nil)
	}
	return err
}

func (a *Activities) ExtractTextActivity(ctx context.Context, in ExtractTextInput) (ExtractTextOutput, error) {
	_ = ctx
	res, err := a.pipeline.Extract(in.Path)
	if err != nil {
		return ExtractTextOutput{}, nonRetryable(err)
	}
	return ExtractTextOutput{Text: res.Text, FileType: res.FileType}, nil
}

func (a *Activities) ChunkTextActivity(ctx context.Context, in ChunkTextInput) (ChunkTextOutput, error) {
	_ = ctx
	chunks, err := a.pipeline.Chunk(in.Text)
	if err != nil {
		return ChunkTextOutput{}, nonRetryable(err)
	}
	return ChunkTextOutput{Chunks: chunks}, nil
}

// IndexChunksActivity embeds and stores every chunk. Provider failures stay
// retryable; the index keeps the previous generation until a run succeeds.
func (a *Activities) IndexChunksActivity(ctx context.Context, in IndexChunksInput) (IndexChunksOutput, error) {
	rep, err := a.indexer.Index(ctx, in.DocumentID, in.Chunks)
	if err != nil {
		return IndexChunksOutput{}, nonRetryable(fmt.Errorf("index %s: %w", in.DocumentID, err))
	}
	a.log.Info("upload indexed",
		zap.String("document_id", in.DocumentID),
		zap.Int("chunks", rep.ChunksCreated),
		zap.Int("dimension", rep.Dimension),
		zap.String("first_chunk", rep.FirstChunkPreview),
	)
	return IndexChunksOutput{
		ChunksCreated:     rep.ChunksCreated,
		Dimension:         rep.Dimension,
		Metric:            rep.Metric,
		FirstChunkPreview: rep.FirstChunkPreview,
	}, nil
}

func (a *Activities) UpdateDocumentStatusActivity(ctx context.Context, in UpdateDocumentStatusInput) error {
	return nonRetryable(a.store.UpdateDocumentStatus(ctx, in.DocumentID, storage.StatusUpdate{
		Status:     in.Status,
		FailReason: in.FailReason,
		FileType:   in.FileType,
		ChunkCount: in.ChunkCount,
		Dimension:  in.Dimension,
		Metric:     in.Metric,
	}))
}

func (a *Activities) AddToCollectionActivity(ctx context.Context, in AddToCollectionInput) error {
	return nonRetryable(a.store.AddToCollection(ctx, in.CollectionID, in.DocumentID))
}

// RemoveUploadActivity deletes the uploaded file once it is no longer needed.
// A file that is already gone is not an error.
func (a *Activities) RemoveUploadActivity(ctx context.Context, in RemoveUploadInput) error {
	_ = ctx
	if err := os.Remove(in.Path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove upload: %w", err)
	}
	return nil
}
