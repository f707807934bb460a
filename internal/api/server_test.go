package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"pythagorean/internal/config"
	"pythagorean/internal/extract"
	"pythagorean/internal/ingest"
	"pythagorean/internal/models"
	"pythagorean/internal/providers"
	"pythagorean/internal/rag"
	"pythagorean/internal/retrieval"
	"pythagorean/internal/storage"
	"pythagorean/internal/util"
	"pythagorean/internal/vector"
	"pythagorean/internal/workflows"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const parisText = "Paris is the capital of France and sits on the river Seine. " +
	"It is known for the Eiffel Tower, the Louvre museum and its cafes along wide boulevards."

const tidesText = "Ocean tides rise and fall twice a day because the moon pulls on the water. " +
	"Spring tides happen when the sun and moon line up and the pull is strongest."

type stubDispatcher struct {
	got    []workflows.DocumentIngestInput
	err    error
	status workflows.DocumentStatus
}

func (d *stubDispatcher) Dispatch(_ context.Context, in workflows.DocumentIngestInput) (string, error) {
	d.got = append(d.got, in)
	if d.err != nil {
		return "", d.err
	}
	return workflows.WorkflowID(in.DocumentID), nil
}

func (d *stubDispatcher) Status(_ context.Context, documentID string) (workflows.DocumentStatus, error) {
	st := d.status
	st.DocumentID = documentID
	return st, nil
}

type testServer struct {
	*httptest.Server
	store   storage.Store
	backend *vector.ChromemBackend
}

func newTestServer(t *testing.T, dispatcher Dispatcher) *testServer {
	t.Helper()
	return newTestServerWithStore(t, dispatcher, storage.NewMemoryStore())
}

func newTestServerWithStore(t *testing.T, dispatcher Dispatcher, store storage.Store) *testServer {
	t.Helper()
	cfg := config.Config{
		PublicURL:  "http://localhost:3000",
		DataRoot:   t.TempDir(),
		MaxUpload:  1 << 20,
		SearchTopK: 3,
	}
	backend := vector.NewChromemBackend(nil)
	engine := vector.NewEngine(backend, providers.NewMockProvider(64), vector.Options{}, nil)
	orch := rag.New(retrieval.New(engine, retrieval.Options{}, nil), providers.NewMockProvider(64), rag.Options{}, nil)
	deps := Deps{
		Config:   cfg,
		Store:    store,
		Pipeline: ingest.New(extract.New(), engine, ingest.Options{}, nil),
		Index:    engine,
		RAG:      orch,
	}
	if dispatcher != nil {
		deps.Dispatcher = dispatcher
	}
	srv := httptest.NewServer(NewServer(deps).Routes())
	t.Cleanup(srv.Close)
	return &testServer{Server: srv, store: store, backend: backend}
}

func (ts *testServer) upload(t *testing.T, query, filename, body string) (int, map[string]any) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if filename != "" {
		fw, err := mw.CreateFormFile("file", filename)
		require.NoError(t, err)
		_, err = io.WriteString(fw, body)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())
	resp, err := http.Post(ts.URL+"/upload"+query, mw.FormDataContentType(), &buf)
	require.NoError(t, err)
	return decode(t, resp)
}

func (ts *testServer) postJSON(t *testing.T, path string, v any) (int, map[string]any) {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	resp, err := http.Post(ts.URL+path, "application/json", bytes.NewReader(b))
	require.NoError(t, err)
	return decode(t, resp)
}

func (ts *testServer) get(t *testing.T, path string) (int, map[string]any) {
	t.Helper()
	resp, err := http.Get(ts.URL + path)
	require.NoError(t, err)
	return decode(t, resp)
}

func decode(t *testing.T, resp *http.Response) (int, map[string]any) {
	t.Helper()
	defer resp.Body.Close()
	var out map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return resp.StatusCode, out
}

func errorCode(body map[string]any) string {
	e, _ := body["error"].(map[string]any)
	code, _ := e["code"].(string)
	return code
}

func TestRootAndHealth(t *testing.T) {
	ts := newTestServer(t, nil)
	code, body := ts.get(t, "/")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "Pythagorean API is running!", body["message"])

	code, body = ts.get(t, "/health")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "healthy", body["status"])
	assert.EqualValues(t, 0, body["documents_count"])
}

func TestDocumentLifecycle(t *testing.T) {
	ts := newTestServer(t, nil)

	code, up := ts.upload(t, "", "paris.txt", parisText)
	require.Equal(t, http.StatusOK, code, up)
	linkID := up["link_id"].(string)
	assert.Len(t, linkID, 8)
	assert.Equal(t, "text", up["file_type"])
	assert.EqualValues(t, 1, up["chunks_created"])
	assert.Nil(t, up["collection_id"])
	assert.Equal(t, "http://localhost:3000/chat/"+linkID, up["shareable_url"])
	assert.Equal(t, "File processed and ready for questions!", up["message"])

	code, doc := ts.get(t, "/document/"+linkID)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, models.StatusReady, doc["status"])
	assert.Equal(t, "paris.txt", doc["filename"])

	code, search := ts.postJSON(t, "/search", map[string]any{"link_id": linkID, "question": "What is the capital of France?"})
	require.Equal(t, http.StatusOK, code)
	results := search["results"].([]any)
	require.Len(t, results, 1)
	first := results[0].(map[string]any)
	assert.Contains(t, first["text"], "Paris")
	assert.Equal(t, map[string]any{"chunk_index": float64(0), "doc_id": linkID}, first["metadata"])
	assert.Greater(t, first["similarity_score"].(float64), 0.0)

	code, ans := ts.postJSON(t, "/query", map[string]any{"link_id": linkID, "question": "What is the capital of France?"})
	require.Equal(t, http.StatusOK, code, ans)
	assert.Equal(t, "Mock answer grounded in 1 source(s). See [Source 1].", ans["answer"])
	assert.Equal(t, "document", ans["type"])
	assert.NotContains(t, ans, "document_count")
	sources := ans["sources"].([]any)
	require.Len(t, sources, 1)
	assert.True(t, strings.HasPrefix(sources[0].(string), "Paris is the capital"))
	convID := ans["conversation_id"].(string)
	assert.Len(t, convID, 12)

	code, _ = ts.postJSON(t, "/query", map[string]any{"link_id": linkID, "question": "And its river?", "conversation_id": convID})
	require.Equal(t, http.StatusOK, code)

	code, conv := ts.get(t, "/conversation/"+convID)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, linkID, conv["link_id"])
	messages := conv["messages"].([]any)
	require.Len(t, messages, 4)
	second := messages[1].(map[string]any)
	assert.Equal(t, models.RoleAssistant, second["role"])
	assert.EqualValues(t, 1, second["index"])
	assert.Equal(t, map[string]any{}, second["reactions"])

	code, del := ts.delete(t, "/document/"+linkID)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, linkID, del["link_id"])
	code, missing := ts.get(t, "/document/"+linkID)
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, "PY-API-4004", errorCode(missing))
}

func (ts *testServer) delete(t *testing.T, path string) (int, map[string]any) {
	t.Helper()
	req, err := http.NewRequest(http.MethodDelete, ts.URL+path, nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return decode(t, resp)
}

func TestFeedbackAndActivity(t *testing.T) {
	ts := newTestServer(t, nil)
	_, up := ts.upload(t, "", "tides.md", tidesText)
	linkID := up["link_id"].(string)
	_, ans := ts.postJSON(t, "/query", map[string]any{"link_id": linkID, "question": "Why are there tides?"})
	convID := ans["conversation_id"].(string)

	code, body := ts.postJSON(t, "/reaction/add", map[string]any{"conversation_id": convID, "message_index": 1, "reaction": "👍"})
	require.Equal(t, http.StatusOK, code)
	code, body = ts.postJSON(t, "/reaction/add", map[string]any{"conversation_id": convID, "message_index": 1, "reaction": "👍"})
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, map[string]any{"👍": float64(2)}, body["reactions"])

	code, body = ts.get(t, "/reaction/"+convID+"/1")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, map[string]any{"👍": float64(2)}, body["reactions"])

	code, body = ts.postJSON(t, "/comment/add", map[string]any{"conversation_id": convID, "message_index": 1, "comment_text": "helpful"})
	require.Equal(t, http.StatusOK, code)
	comment := body["comment"].(map[string]any)
	assert.Equal(t, "Anonymous", comment["user_name"])
	assert.Len(t, comment["id"], 8)
	assert.EqualValues(t, 1, body["total_comments"])

	code, body = ts.get(t, "/comment/"+convID+"/1")
	require.Equal(t, http.StatusOK, code)
	assert.Len(t, body["comments"], 1)

	code, body = ts.get(t, "/conversation/"+convID+"/share")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "http://localhost:3000/conversation/"+convID, body["shareable_url"])

	code, body = ts.get(t, "/document/"+linkID+"/activity")
	require.Equal(t, http.StatusOK, code)
	assert.EqualValues(t, 1, body["total_conversations"])
	assert.EqualValues(t, 2, body["total_reactions"])
	assert.EqualValues(t, 1, body["total_comments"])
	convs := body["conversations"].([]any)
	assert.EqualValues(t, 2, convs[0].(map[string]any)["message_count"])

	code, body = ts.postJSON(t, "/reaction/add", map[string]any{"conversation_id": "nope", "message_index": 0, "reaction": "👍"})
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, "Conversation not found.", body["error"].(map[string]any)["message"])

	code, _ = ts.get(t, "/reaction/"+convID+"/x")
	assert.Equal(t, http.StatusBadRequest, code)
	code, _ = ts.get(t, "/document/unknown/activity")
	assert.Equal(t, http.StatusNotFound, code)
}

func TestCollections(t *testing.T) {
	ts := newTestServer(t, nil)
	code, body := ts.postJSON(t, "/collection/create", map[string]any{})
	require.Equal(t, http.StatusOK, code)
	colID := body["collection_id"].(string)

	code, body = ts.postJSON(t, "/query", map[string]any{"link_id": colID, "question": "anything?"})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "Collection is empty.", body["error"].(map[string]any)["message"])

	code, up := ts.upload(t, "?collection_id="+colID, "paris.txt", parisText)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, colID, up["collection_id"])
	assert.Equal(t, "http://localhost:3000/chat/"+colID, up["shareable_url"])
	code, _ = ts.upload(t, "?collection_id="+colID, "tides.txt", tidesText)
	require.Equal(t, http.StatusOK, code)

	code, body = ts.get(t, "/collection/"+colID)
	require.Equal(t, http.StatusOK, code)
	assert.EqualValues(t, 2, body["document_count"])

	code, ans := ts.postJSON(t, "/query", map[string]any{"link_id": colID, "question": "When are spring tides strongest?"})
	require.Equal(t, http.StatusOK, code, ans)
	assert.Equal(t, "collection", ans["type"])
	assert.EqualValues(t, 2, ans["document_count"])
	assert.Equal(t, "Mock answer grounded in 2 source(s). See [Source 1].", ans["answer"])

	code, _ = ts.upload(t, "?collection_id=missing", "paris.txt", parisText)
	assert.Equal(t, http.StatusNotFound, code)
	code, _ = ts.get(t, "/collection/missing")
	assert.Equal(t, http.StatusNotFound, code)
}

func TestUploadRejections(t *testing.T) {
	ts := newTestServer(t, nil)
	code, body := ts.upload(t, "", "deck.pptx", "slides")
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "PY-API-4001", errorCode(body))

	code, body = ts.upload(t, "", "", "")
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "No file was provided.", body["error"].(map[string]any)["message"])

	code, body = ts.upload(t, "", "broken.pdf", "not a pdf")
	assert.Equal(t, http.StatusInternalServerError, code)
	assert.Equal(t, "PY-EXT-5001", errorCode(body))

	code, body = ts.get(t, "/health")
	require.Equal(t, http.StatusOK, code)
	assert.EqualValues(t, 0, body["documents_count"])
}

func TestQueryValidation(t *testing.T) {
	ts := newTestServer(t, nil)
	code, _ := ts.postJSON(t, "/query", map[string]any{"link_id": "x"})
	assert.Equal(t, http.StatusBadRequest, code)
	code, _ = ts.postJSON(t, "/query", map[string]any{"link_id": "unknown", "question": "q"})
	assert.Equal(t, http.StatusNotFound, code)
	code, _ = ts.postJSON(t, "/search", map[string]any{"link_id": "unknown", "question": "q"})
	assert.Equal(t, http.StatusNotFound, code)

	resp, err := http.Post(ts.URL+"/query", "application/json", strings.NewReader("{"))
	require.NoError(t, err)
	code, body := decode(t, resp)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "Malformed JSON request body.", body["error"].(map[string]any)["message"])
}

func TestAsyncUpload(t *testing.T) {
	d := &stubDispatcher{status: workflows.DocumentStatus{CurrentStep: "index_chunks", Status: "processing"}}
	ts := newTestServer(t, d)

	code, up := ts.upload(t, "", "paris.txt", parisText)
	require.Equal(t, http.StatusAccepted, code, up)
	assert.Equal(t, models.StatusPending, up["status"])
	linkID := up["link_id"].(string)
	assert.Equal(t, "ingest-"+linkID, up["workflow_id"])

	require.Len(t, d.got, 1)
	_, err := os.Stat(d.got[0].Path)
	require.NoError(t, err)
	assert.Equal(t, "paris.txt", d.got[0].Filename)

	code, doc := ts.get(t, "/document/"+linkID)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, models.StatusPending, doc["status"])
	progress := doc["progress"].(map[string]any)
	assert.Equal(t, "index_chunks", progress["current_step"])

	code, search := ts.postJSON(t, "/search", map[string]any{"link_id": linkID, "question": "capital"})
	require.Equal(t, http.StatusOK, code)
	assert.Empty(t, search["results"])

	code, ans := ts.postJSON(t, "/query", map[string]any{"link_id": linkID, "question": "capital"})
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, rag.FallbackAnswer, ans["answer"])
}

func TestAsyncUploadDispatchFailure(t *testing.T) {
	d := &stubDispatcher{err: errors.New("temporal unavailable")}
	ts := newTestServer(t, d)

	code, body := ts.upload(t, "", "paris.txt", parisText)
	assert.Equal(t, http.StatusBadGateway, code)
	assert.Equal(t, "PY-API-5020", errorCode(body))

	require.Len(t, d.got, 1)
	doc, err := ts.store.GetDocument(context.Background(), d.got[0].DocumentID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusFailed, doc.Status)
	_, err = os.Stat(d.got[0].Path)
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

// flakyStore fails document writes or collection membership on demand.
type flakyStore struct {
	*storage.MemoryStore
	putErr error
	addErr error
}

func (s *flakyStore) PutDocument(ctx context.Context, doc models.Document) error {
	if s.putErr != nil {
		return s.putErr
	}
	return s.MemoryStore.PutDocument(ctx, doc)
}

func (s *flakyStore) AddToCollection(ctx context.Context, collectionID, documentID string) error {
	if s.addErr != nil {
		return s.addErr
	}
	return s.MemoryStore.AddToCollection(ctx, collectionID, documentID)
}

func TestInlineUploadStoreFailureDropsIndex(t *testing.T) {
	t.Run("document record", func(t *testing.T) {
		store := &flakyStore{MemoryStore: storage.NewMemoryStore(), putErr: errors.New("db down")}
		ts := newTestServerWithStore(t, nil, store)

		code, _ := ts.upload(t, "", "paris.txt", parisText)
		assert.Equal(t, http.StatusInternalServerError, code)
		assert.Empty(t, ts.backend.Documents())
	})

	t.Run("collection membership", func(t *testing.T) {
		store := &flakyStore{MemoryStore: storage.NewMemoryStore()}
		ts := newTestServerWithStore(t, nil, store)
		code, created := ts.postJSON(t, "/collection/create", map[string]any{})
		require.Equal(t, http.StatusOK, code)
		cid := created["collection_id"].(string)

		store.addErr = errors.New("db down")
		code, _ = ts.upload(t, "?collection_id="+cid, "paris.txt", parisText)
		assert.Equal(t, http.StatusInternalServerError, code)
		assert.Empty(t, ts.backend.Documents())
		n, err := store.CountDocuments(context.Background())
		require.NoError(t, err)
		assert.Equal(t, 0, n)
	})
}

func TestStatusFor(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{util.Errorf(util.KindNotFound, "document x"), http.StatusNotFound},
		{util.ErrUnsupportedType, http.StatusBadRequest},
		{util.ErrEmptyCollection, http.StatusBadRequest},
		{util.Wrap(util.KindUpstream, "complete", errors.New("boom")), http.StatusBadGateway},
		{util.Wrap(util.KindExtraction, "extract .pdf", errors.New("bad xref")), http.StatusInternalServerError},
		{errors.New("plain"), http.StatusInternalServerError},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, statusFor(c.err), c.err.Error())
	}
}

func TestToAPIErrorDatabaseHints(t *testing.T) {
	got := toAPIError(http.StatusInternalServerError, errors.New(`relation "documents" does not exist`))
	assert.Equal(t, "PY-DB-5001", got.Code)
	got = toAPIError(http.StatusInternalServerError, errors.New("dial tcp 127.0.0.1:5432: connection refused"))
	assert.Equal(t, "PY-DB-5002", got.Code)
}
