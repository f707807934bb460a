package workflows

import (
	"errors"
	"time"

	"pythagorean/internal/activities"
	"pythagorean/internal/models"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"
)

const QueryGetDocumentStatus = "GetDocumentStatus"

const (
	stepProcessing = "processing"
	stepDone       = "done"
	stepFailed     = "failed"
)

// WorkflowID is the id under which the ingest of a document runs.
func WorkflowID(documentID string) string {
	return "ingest-" + documentID
}

// DocumentIngestWorkflow extracts, chunks and indexes one uploaded file, then
// records the outcome on the document. A failing step ends the workflow with
// status "failed" and the reason stored on the document; the workflow itself
// only errors when the query handler cannot be installed.
func DocumentIngestWorkflow(ctx workflow.Context, input DocumentIngestInput) (string, error) {
	status := DocumentStatus{
		DocumentID:  input.DocumentID,
		CurrentStep: "init",
		Status:      stepProcessing,
		Steps:       map[string]string{},
	}
	if err := workflow.SetQueryHandler(ctx, QueryGetDocumentStatus, func() (DocumentStatus, error) {
		return status, nil
	}); err != nil {
		return "", err
	}

	ao := workflow.ActivityOptions{
		StartToCloseTimeout: 5 * time.Minute,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:    2 * time.Second,
			BackoffCoefficient: 2,
			MaximumInterval:    30 * time.Second,
			MaximumAttempts:    3,
		},
	}
	ctx = workflow.WithActivityOptions(ctx, ao)

	run := func(step, activityName string, in, out any) error {
		status.CurrentStep = step
		status.Steps[step] = stepProcessing
		if err := workflow.ExecuteActivity(ctx, activityName, in).Get(ctx, out); err != nil {
			status.Steps[step] = stepFailed
			return err
		}
		status.Steps[step] = stepDone
		return nil
	}
	fail := func(err error) (string, error) {
		status.Status = models.StatusFailed
		status.FailReason = failReason(err)
		workflow.GetLogger(ctx).Warn("document ingest failed",
			"document_id", input.DocumentID, "step", status.CurrentStep, "reason", status.FailReason)
		_ = workflow.ExecuteActivity(ctx, "UpdateDocumentStatusActivity", activities.UpdateDocumentStatusInput{
			DocumentID: input.DocumentID,
			Status:     models.StatusFailed,
			FailReason: status.FailReason,
			FileType:   status.FileType,
		}).Get(ctx, nil)
		removeUpload(ctx, input.Path)
		return status.Status, nil
	}

	var textOut activities.ExtractTextOutput
	if err := run("extract_text", "ExtractTextActivity", activities.ExtractTextInput{DocumentID: input.DocumentID, Path: input.Path}, &textOut); err != nil {
		return fail(err)
	}
	status.FileType = textOut.FileType

	var chunkOut activities.ChunkTextOutput
	if err := run("chunk_text", "ChunkTextActivity", activities.ChunkTextInput{DocumentID: input.DocumentID, Text: textOut.Text}, &chunkOut); err != nil {
		return fail(err)
	}

	var indexOut activities.IndexChunksOutput
	if err := run("index_chunks", "IndexChunksActivity", activities.IndexChunksInput{DocumentID: input.DocumentID, Chunks: chunkOut.Chunks}, &indexOut); err != nil {
		return fail(err)
	}
	status.ChunksCreated = indexOut.ChunksCreated

	if input.CollectionID != "" {
		if err := run("add_to_collection", "AddToCollectionActivity", activities.AddToCollectionInput{CollectionID: input.CollectionID, DocumentID: input.DocumentID}, nil); err != nil {
			return fail(err)
		}
	}

	if err := run("mark_ready", "UpdateDocumentStatusActivity", activities.UpdateDocumentStatusInput{
		DocumentID: input.DocumentID,
		Status:     models.StatusReady,
		FileType:   textOut.FileType,
		ChunkCount: indexOut.ChunksCreated,
		Dimension:  indexOut.Dimension,
		Metric:     indexOut.Metric,
	}, nil); err != nil {
		return fail(err)
	}

	removeUpload(ctx, input.Path)
	status.CurrentStep = stepDone
	status.Status = models.StatusReady
	return status.Status, nil
}

// removeUpload is best effort; a leftover file does not change the outcome.
func removeUpload(ctx workflow.Context, path string) {
	if path == "" {
		return
	}
	ctx = workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: 30 * time.Second,
		RetryPolicy:         &temporal.RetryPolicy{MaximumAttempts: 1},
	})
	_ = workflow.ExecuteActivity(ctx, "RemoveUploadActivity", activities.RemoveUploadInput{Path: path}).Get(ctx, nil)
}

func failReason(err error) string {
	var appErr *temporal.ApplicationError
	if errors.As(err, &appErr) {
		return appErr.Error()
	}
	return err.Error()
}
