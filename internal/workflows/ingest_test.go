package workflows

import (
	"context"
	"errors"
	"testing"

	"pythagorean/internal/activities"
	"pythagorean/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/testsuite"
)

func registerActivityName[T any](env *testsuite.TestWorkflowEnvironment, name string, fn T) {
	env.RegisterActivityWithOptions(fn, activity.RegisterOptions{Name: name})
}

func newIngestEnv(t *testing.T) *testsuite.TestWorkflowEnvironment {
	t.Helper()
	var ts testsuite.WorkflowTestSuite
	env := ts.NewTestWorkflowEnvironment()
	env.RegisterWorkflow(DocumentIngestWorkflow)
	registerActivityName(env, "ExtractTextActivity", func(context.Context, activities.ExtractTextInput) (activities.ExtractTextOutput, error) {
		return activities.ExtractTextOutput{}, nil
	})
	registerActivityName(env, "ChunkTextActivity", func(context.Context, activities.ChunkTextInput) (activities.ChunkTextOutput, error) {
		return activities.ChunkTextOutput{}, nil
	})
	registerActivityName(env, "IndexChunksActivity", func(context.Context, activities.IndexChunksInput) (activities.IndexChunksOutput, error) {
		return activities.IndexChunksOutput{}, nil
	})
	registerActivityName(env, "UpdateDocumentStatusActivity", func(context.Context, activities.UpdateDocumentStatusInput) error { return nil })
	registerActivityName(env, "AddToCollectionActivity", func(context.Context, activities.AddToCollectionInput) error { return nil })
	registerActivityName(env, "RemoveUploadActivity", func(context.Context, activities.RemoveUploadInput) error { return nil })
	return env
}

func TestDocumentIngestWorkflowSuccess(t *testing.T) {
	env := newIngestEnv(t)
	in := DocumentIngestInput{DocumentID: "doc1", CollectionID: "col1", Filename: "paris.txt", Path: "/tmp/doc1_paris.txt"}

	env.OnActivity("ExtractTextActivity", mock.Anything, activities.ExtractTextInput{DocumentID: "doc1", Path: in.Path}).
		Return(activities.ExtractTextOutput{Text: "Paris is the capital of France.", FileType: "text"}, nil)
	env.OnActivity("ChunkTextActivity", mock.Anything, activities.ChunkTextInput{DocumentID: "doc1", Text: "Paris is the capital of France."}).
		Return(activities.ChunkTextOutput{Chunks: []string{"Paris is the capital of France."}}, nil)
	env.OnActivity("IndexChunksActivity", mock.Anything, mock.Anything).
		Return(activities.IndexChunksOutput{ChunksCreated: 1, Dimension: 384, Metric: "cosine"}, nil)
	env.OnActivity("AddToCollectionActivity", mock.Anything, activities.AddToCollectionInput{CollectionID: "col1", DocumentID: "doc1"}).
		Return(nil).Once()
	env.OnActivity("UpdateDocumentStatusActivity", mock.Anything, activities.UpdateDocumentStatusInput{
		DocumentID: "doc1", Status: models.StatusReady, FileType: "text", ChunkCount: 1, Dimension: 384, Metric: "cosine",
	}).Return(nil).Once()
	env.OnActivity("RemoveUploadActivity", mock.Anything, activities.RemoveUploadInput{Path: in.Path}).Return(nil).Once()

	env.ExecuteWorkflow(DocumentIngestWorkflow, in)
	require.True(t, env.IsWorkflowCompleted())
	require.NoError(t, env.GetWorkflowError())

	var out string
	require.NoError(t, env.GetWorkflowResult(&out))
	assert.Equal(t, models.StatusReady, out)

	res, err := env.QueryWorkflow(QueryGetDocumentStatus)
	require.NoError(t, err)
	var st DocumentStatus
	require.NoError(t, res.Get(&st))
	assert.Equal(t, 1, st.ChunksCreated)
	assert.Equal(t, stepDone, st.Steps["index_chunks"])
	assert.Equal(t, stepDone, st.Steps["add_to_collection"])
	env.AssertExpectations(t)
}

func TestDocumentIngestWorkflowSkipsCollectionWithoutID(t *testing.T) {
	env := newIngestEnv(t)
	env.OnActivity("ExtractTextActivity", mock.Anything, mock.Anything).Return(activities.ExtractTextOutput{Text: "body", FileType: "text"}, nil)
	env.OnActivity("ChunkTextActivity", mock.Anything, mock.Anything).Return(activities.ChunkTextOutput{}, nil)
	env.OnActivity("IndexChunksActivity", mock.Anything, mock.Anything).Return(activities.IndexChunksOutput{Metric: "cosine"}, nil)
	env.OnActivity("UpdateDocumentStatusActivity", mock.Anything, mock.Anything).Return(nil)
	env.OnActivity("RemoveUploadActivity", mock.Anything, mock.Anything).Return(nil)

	env.ExecuteWorkflow(DocumentIngestWorkflow, DocumentIngestInput{DocumentID: "doc2", Path: "/tmp/doc2"})
	require.True(t, env.IsWorkflowCompleted())
	require.NoError(t, env.GetWorkflowError())

	res, err := env.QueryWorkflow(QueryGetDocumentStatus)
	require.NoError(t, err)
	var st DocumentStatus
	require.NoError(t, res.Get(&st))
	_, ran := st.Steps["add_to_collection"]
	assert.False(t, ran)
}

func TestDocumentIngestWorkflowExtractionFailsGracefully(t *testing.T) {
	env := newIngestEnv(t)
	env.OnActivity("ExtractTextActivity", mock.Anything, mock.Anything).
		Return(activities.ExtractTextOutput{}, temporal.NewNonRetryableApplicationError("extract .pdf: malformed xref", "extraction", nil)).Once()

	var failed activities.UpdateDocumentStatusInput
	env.OnActivity("UpdateDocumentStatusActivity", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) { failed = args.Get(1).(activities.UpdateDocumentStatusInput) }).
		Return(nil).Once()
	env.OnActivity("RemoveUploadActivity", mock.Anything, mock.Anything).Return(nil).Once()

	env.ExecuteWorkflow(DocumentIngestWorkflow, DocumentIngestInput{DocumentID: "doc3", Path: "/tmp/doc3.pdf"})
	require.True(t, env.IsWorkflowCompleted())
	require.NoError(t, env.GetWorkflowError())

	var out string
	require.NoError(t, env.GetWorkflowResult(&out))
	assert.Equal(t, models.StatusFailed, out)
	assert.Equal(t, "doc3", failed.DocumentID)
	assert.Equal(t, models.StatusFailed, failed.Status)
	assert.Contains(t, failed.FailReason, "malformed xref")
	env.AssertExpectations(t)
}

func TestDocumentIngestWorkflowRetriesIndexing(t *testing.T) {
	env := newIngestEnv(t)
	env.OnActivity("ExtractTextActivity", mock.Anything, mock.Anything).Return(activities.ExtractTextOutput{Text: "body", FileType: "text"}, nil)
	env.OnActivity("ChunkTextActivity", mock.Anything, mock.Anything).Return(activities.ChunkTextOutput{Chunks: []string{"body"}}, nil)
	env.OnActivity("IndexChunksActivity", mock.Anything, mock.Anything).
		Return(activities.IndexChunksOutput{}, errors.New("embed chunks: 503 from provider")).Once()
	env.OnActivity("IndexChunksActivity", mock.Anything, mock.Anything).
		Return(activities.IndexChunksOutput{ChunksCreated: 1, Dimension: 8, Metric: "cosine"}, nil).Once()
	env.OnActivity("UpdateDocumentStatusActivity", mock.Anything, mock.Anything).Return(nil)
	env.OnActivity("RemoveUploadActivity", mock.Anything, mock.Anything).Return(nil)

	env.ExecuteWorkflow(DocumentIngestWorkflow, DocumentIngestInput{DocumentID: "doc4", Path: "/tmp/doc4"})
	require.True(t, env.IsWorkflowCompleted())
	require.NoError(t, env.GetWorkflowError())

	var out string
	require.NoError(t, env.GetWorkflowResult(&out))
	assert.Equal(t, models.StatusReady, out)
}

func TestWorkflowID(t *testing.T) {
	assert.Equal(t, "ingest-abc", WorkflowID("abc"))
}
