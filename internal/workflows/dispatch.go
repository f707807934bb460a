package workflows

import (
	"context"
	"fmt"

	enumspb "go.temporal.io/api/enums/v1"
	tclient "go.temporal.io/sdk/client"
)

// Dispatcher starts ingest workflows on a task queue served by cmd/worker.
type Dispatcher struct {
	client    tclient.Client
	taskQueue string
}

func NewDispatcher(c tclient.Client, taskQueue string) *Dispatcher {
	return &Dispatcher{client: c, taskQueue: taskQueue}
}

// Dispatch returns the workflow id. Starting a second ingest for a document
// that is still being indexed fails.
func (d *Dispatcher) Dispatch(ctx context.Context, in DocumentIngestInput) (string, error) {
	we, err := d.client.ExecuteWorkflow(ctx, tclient.StartWorkflowOptions{
		ID:                                       WorkflowID(in.DocumentID),
		TaskQueue:                                d.taskQueue,
		WorkflowIDReusePolicy:                    enumspb.WORKFLOW_ID_REUSE_POLICY_ALLOW_DUPLICATE_FAILED_ONLY,
		WorkflowExecutionErrorWhenAlreadyStarted: true,
	}, DocumentIngestWorkflow, in)
	if err != nil {
		return "", fmt.Errorf("start ingest %s: %w", in.DocumentID, err)
	}
	return we.GetID(), nil
}

// Status queries a running or recently closed ingest.
func (d *Dispatcher) Status(ctx context.Context, documentID string) (DocumentStatus, error) {
	resp, err := d.client.QueryWorkflow(ctx, WorkflowID(documentID), "", QueryGetDocumentStatus)
	if err != nil {
		return DocumentStatus{}, fmt.Errorf("query ingest %s: %w", documentID, err)
	}
	var st DocumentStatus
	if err := resp.Get(&st); err != nil {
		return DocumentStatus{}, fmt.Errorf("decode ingest status: %w", err)
	}
	return st, nil
}
