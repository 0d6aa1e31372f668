package server

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"sort"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nabobery/Neurality-Take-Home-Assignment/internal/api/handlers"
	"github.com/nabobery/Neurality-Take-Home-Assignment/internal/domain"
	"github.com/nabobery/Neurality-Take-Home-Assignment/internal/index"
	"github.com/nabobery/Neurality-Take-Home-Assignment/internal/pagination"
	"github.com/nabobery/Neurality-Take-Home-Assignment/internal/service"
	"github.com/nabobery/Neurality-Take-Home-Assignment/internal/testutil"
)

// memoryDocumentRepo is an in-memory service.DocumentRepositoryInterface for
// exercising the full HTTP surface without Postgres.
type memoryDocumentRepo struct {
	mu   sync.Mutex
	docs map[string]*domain.Document
}

func newMemoryDocumentRepo() *memoryDocumentRepo {
	return &memoryDocumentRepo{docs: make(map[string]*domain.Document)}
}

func (r *memoryDocumentRepo) Create(_ context.Context, d *domain.Document) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	clone := *d
	r.docs[d.ID] = &clone
	return nil
}

func (r *memoryDocumentRepo) GetByID(_ context.Context, id string) (*domain.Document, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.docs[id]
	if !ok {
		return nil, domain.ErrDocumentNotFound
	}
	clone := *d
	return &clone, nil
}

func (r *memoryDocumentRepo) ListWithCursor(_ context.Context, _ *pagination.Cursor, limit int) (*service.DocumentPageResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var items []*domain.Document
	for _, d := range r.docs {
		clone := *d
		items = append(items, &clone)
	}
	sort.Slice(items, func(i, j int) bool { return items[i].CreatedAt.After(items[j].CreatedAt) })
	hasMore := len(items) > limit
	if hasMore {
		items = items[:limit]
	}
	return &service.DocumentPageResult{Items: items, HasMore: hasMore}, nil
}

func (r *memoryDocumentRepo) UpdateStatus(_ context.Context, d *domain.Document) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	clone := *d
	r.docs[d.ID] = &clone
	return nil
}

func (r *memoryDocumentRepo) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.docs[id]; !ok {
		return domain.ErrDocumentNotFound
	}
	delete(r.docs, id)
	return nil
}

func newTestServer(t *testing.T) (http.Handler, *testutil.FakeBackend) {
	t.Helper()

	backend := testutil.NewFakeBackend(64)
	idx := index.NewMemoryIndex(64)
	repo := newMemoryDocumentRepo()

	chunker, err := service.NewChunker(service.DefaultChunkConfig())
	require.NoError(t, err)

	pipeline := service.NewIngestionPipelineWithReporter(chunker, backend, idx, repo)
	docSvc := service.NewDocumentService(repo, nil, nil, pipeline)
	retriever := service.NewRetriever(backend, idx, service.DefaultRetrieverConfig())
	composer := service.NewComposer(backend, service.DefaultComposerConfig())
	qaSvc := service.NewQAService(retriever, composer)
	searchSvc := service.NewSearchService(backend, idx)

	router := NewRouter(RouterConfig{
		DocumentHandler: handlers.NewDocumentHandler(docSvc),
		QAHandler:       handlers.NewQAHandler(qaSvc, searchSvc),
	})
	return router, backend
}

func uploadDocument(t *testing.T, router http.Handler, filename, content string) string {
	t.Helper()

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = part.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, "/documents", &buf)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())

	var resp struct {
		Data handlers.DocumentResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp.Data.ID
}

func TestRouterHealth(t *testing.T) {
	router, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "ok")
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestRouterUploadThenAsk(t *testing.T) {
	router, backend := newTestServer(t)
	backend.GenerateText = "Paris is the capital of France. [1]"

	docID := uploadDocument(t, router, "geo.txt", "paris is the capital of france")

	// Synchronous ingestion: the document is queryable right away.
	req := httptest.NewRequest(http.MethodGet, "/documents/"+docID, nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"indexed"`)

	body, _ := json.Marshal(handlers.AskRequest{Question: "what is the capital of france"})
	req = httptest.NewRequest(http.MethodPost, "/ask", bytes.NewReader(body))
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Data handlers.AskResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "Paris is the capital of France. [1]", resp.Data.Answer)
	require.NotEmpty(t, resp.Data.Sources)
	assert.Equal(t, docID, resp.Data.Sources[0].DocumentID)
}

func TestRouterSearch(t *testing.T) {
	router, _ := newTestServer(t)
	uploadDocument(t, router, "geo.txt", "paris is the capital of france")

	body, _ := json.Marshal(handlers.SearchRequest{Query: "capital of france", Mode: "semantic"})
	req := httptest.NewRequest(http.MethodPost, "/search", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Data handlers.SearchResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.Data.Results)
	assert.Contains(t, resp.Data.Results[0].Content, "capital of france")
}

func TestRouterListAndDelete(t *testing.T) {
	router, _ := newTestServer(t)
	docID := uploadDocument(t, router, "a.txt", "first document content")
	uploadDocument(t, router, "b.txt", "second document content")

	req := httptest.NewRequest(http.MethodGet, "/documents?limit=10", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var listResp struct {
		Data handlers.ListDocumentsResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &listResp))
	assert.Len(t, listResp.Data.Items, 2)

	req = httptest.NewRequest(http.MethodDelete, "/documents/"+docID, nil)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	// Deleted document's chunks no longer surface in search.
	body, _ := json.Marshal(handlers.SearchRequest{Query: "first document content", Mode: "semantic"})
	req = httptest.NewRequest(http.MethodPost, "/search", bytes.NewReader(body))
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var searchResp struct {
		Data handlers.SearchResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &searchResp))
	for _, result := range searchResp.Data.Results {
		assert.NotEqual(t, docID, result.DocumentID)
	}
}

func TestRouterRejectsOversizedBody(t *testing.T) {
	router, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/ask", bytes.NewReader(make([]byte, 128)))
	req.ContentLength = 21 * 1024 * 1024
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}
