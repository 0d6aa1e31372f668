//go:build e2e

package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/nabobery/Neurality-Take-Home-Assignment/internal/api/handlers"
	"github.com/nabobery/Neurality-Take-Home-Assignment/internal/index"
	"github.com/nabobery/Neurality-Take-Home-Assignment/internal/jobs"
	"github.com/nabobery/Neurality-Take-Home-Assignment/internal/repository"
	"github.com/nabobery/Neurality-Take-Home-Assignment/internal/server"
	"github.com/nabobery/Neurality-Take-Home-Assignment/internal/service"
	"github.com/nabobery/Neurality-Take-Home-Assignment/internal/storage"
	"github.com/nabobery/Neurality-Take-Home-Assignment/internal/testutil"
)

// embeddingDim matches the vector column width in the schema.
const embeddingDim = 1536

// TestEnv holds the full stack: real Postgres and S3 containers, the
// background ingest worker, and an HTTP server, with only the LLM backend
// faked.
type TestEnv struct {
	Ctx       context.Context
	Pool      *pgxpool.Pool
	Backend   *testutil.FakeBackend
	S3        *storage.S3Client
	ServerURL string
	Client    *http.Client
}

// SetupEnv starts containers, runs migrations, and serves the API with the
// asynchronous ingestion worker polling every 100ms.
func SetupEnv(t *testing.T) *TestEnv {
	t.Helper()
	ctx := context.Background()

	pgC := testutil.NewPostgresContainer(ctx, t)
	t.Cleanup(func() { _ = pgC.Terminate(ctx) })

	s3C := testutil.NewRustFSContainer(ctx, t)
	t.Cleanup(func() { _ = s3C.Terminate(ctx) })

	pool := testutil.NewTestPool(ctx, t, pgC, "../../migrations")
	t.Cleanup(pool.Close)

	s3Client, err := storage.NewS3Client(ctx, storage.S3ClientConfig{
		Endpoint:        s3C.Endpoint(),
		Region:          "us-east-1",
		AccessKeyID:     "rustfsadmin",
		SecretAccessKey: "rustfsadmin",
		Bucket:          "test-documents",
		UsePathStyle:    true,
	})
	if err != nil {
		t.Fatalf("failed to create S3 client: %v", err)
	}
	if err := s3Client.EnsureBucket(ctx); err != nil {
		t.Fatalf("failed to create bucket: %v", err)
	}

	backend := testutil.NewFakeBackend(embeddingDim)
	idx := index.NewPgIndex(pool, embeddingDim)
	docRepo := repository.NewDocumentRepository(pool)
	jobRepo := repository.NewIngestJobRepository(pool)

	chunker, err := service.NewChunker(service.DefaultChunkConfig())
	if err != nil {
		t.Fatalf("failed to create chunker: %v", err)
	}

	pipeline := service.NewIngestionPipelineWithReporter(chunker, backend, idx, docRepo)

	processor := jobs.NewIngestWorker(jobRepo, docRepo, pipeline)
	worker := jobs.NewWorker(processor, 100*time.Millisecond)
	go worker.Start(ctx)
	t.Cleanup(worker.Stop)

	docSvc := service.NewDocumentService(docRepo, jobRepo, s3Client, pipeline)
	retriever := service.NewRetriever(backend, idx, service.DefaultRetrieverConfig())
	composer := service.NewComposer(backend, service.DefaultComposerConfig())
	qaSvc := service.NewQAService(retriever, composer)
	searchSvc := service.NewSearchService(backend, idx)

	router := server.NewRouter(server.RouterConfig{
		DocumentHandler: handlers.NewDocumentHandler(docSvc),
		QAHandler:       handlers.NewQAHandler(qaSvc, searchSvc),
	})

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)

	return &TestEnv{
		Ctx:       ctx,
		Pool:      pool,
		Backend:   backend,
		S3:        s3Client,
		ServerURL: srv.URL,
		Client:    srv.Client(),
	}
}

// UploadDocument posts content as a multipart file and returns the created
// document, which starts out pending.
func (env *TestEnv) UploadDocument(t *testing.T, filename, content string) handlers.DocumentResponse {
	t.Helper()

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("file", filename)
	if err != nil {
		t.Fatalf("failed to create form file: %v", err)
	}
	if _, err := part.Write([]byte(content)); err != nil {
		t.Fatalf("failed to write form file: %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("failed to close multipart writer: %v", err)
	}

	req, err := http.NewRequest(http.MethodPost, env.ServerURL+"/documents", &buf)
	if err != nil {
		t.Fatalf("failed to create upload request: %v", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := env.Client.Do(req)
	if err != nil {
		t.Fatalf("upload request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusAccepted {
		body, _ := io.ReadAll(resp.Body)
		t.Fatalf("upload returned %d: %s", resp.StatusCode, body)
	}

	var envelope struct {
		Data handlers.DocumentResponse `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		t.Fatalf("failed to decode upload response: %v", err)
	}
	return envelope.Data
}

// GetDocument fetches a document by ID, returning the HTTP status code.
func (env *TestEnv) GetDocument(t *testing.T, id string) (handlers.DocumentResponse, int) {
	t.Helper()

	resp, err := env.Client.Get(env.ServerURL + "/documents/" + id)
	if err != nil {
		t.Fatalf("get request failed: %v", err)
	}
	defer resp.Body.Close()

	var envelope struct {
		Data handlers.DocumentResponse `json:"data"`
	}
	if resp.StatusCode == http.StatusOK {
		if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
			t.Fatalf("failed to decode document response: %v", err)
		}
	}
	return envelope.Data, resp.StatusCode
}

// WaitForStatus polls the document until it reaches one of the wanted
// statuses, failing on timeout. The ingest worker runs on a 100ms tick, so a
// few seconds is plenty even with retries.
func (env *TestEnv) WaitForStatus(t *testing.T, id string, wanted ...string) handlers.DocumentResponse {
	t.Helper()

	deadline := time.Now().Add(20 * time.Second)
	for {
		doc, code := env.GetDocument(t, id)
		if code == http.StatusOK {
			for _, status := range wanted {
				if doc.Status == status {
					return doc
				}
			}
		}
		if time.Now().After(deadline) {
			t.Fatalf("document %s never reached %v (last status: %q)", id, wanted, doc.Status)
		}
		time.Sleep(100 * time.Millisecond)
	}
}

// PostJSON posts a JSON payload and decodes the {data} envelope into out.
func (env *TestEnv) PostJSON(t *testing.T, path string, payload, out interface{}) int {
	t.Helper()

	body, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("failed to marshal payload: %v", err)
	}

	resp, err := env.Client.Post(env.ServerURL+path, "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("post request failed: %v", err)
	}
	defer resp.Body.Close()

	if out != nil && resp.StatusCode < 300 {
		var envelope struct {
			Data json.RawMessage `json:"data"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
			t.Fatalf("failed to decode response: %v", err)
		}
		if err := json.Unmarshal(envelope.Data, out); err != nil {
			t.Fatalf("failed to decode data payload: %v", err)
		}
	}
	return resp.StatusCode
}

// DeleteDocument issues a DELETE and returns the status code.
func (env *TestEnv) DeleteDocument(t *testing.T, id string) int {
	t.Helper()

	req, err := http.NewRequest(http.MethodDelete, env.ServerURL+"/documents/"+id, nil)
	if err != nil {
		t.Fatalf("failed to create delete request: %v", err)
	}
	resp, err := env.Client.Do(req)
	if err != nil {
		t.Fatalf("delete request failed: %v", err)
	}
	resp.Body.Close()
	return resp.StatusCode
}

// ChunkRowCount counts index entries for a document straight from the table.
func (env *TestEnv) ChunkRowCount(t *testing.T, documentID string) int {
	t.Helper()

	var count int
	err := env.Pool.QueryRow(env.Ctx,
		`SELECT count(*) FROM chunks WHERE document_id = $1`, documentID).Scan(&count)
	if err != nil {
		t.Fatalf("failed to count chunks: %v", err)
	}
	return count
}

// WaitForJobStatus polls the ingest job for a document until it reaches the
// wanted terminal status. The document itself flips to failed between
// retries, so tests asserting on the retry budget wait on the job instead.
func (env *TestEnv) WaitForJobStatus(t *testing.T, documentID, wanted string) {
	t.Helper()

	deadline := time.Now().Add(20 * time.Second)
	for {
		var status string
		err := env.Pool.QueryRow(env.Ctx,
			`SELECT status FROM ingest_jobs WHERE document_id = $1`, documentID).Scan(&status)
		if err == nil && status == wanted {
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("job for document %s never reached %q (last: %q, err: %v)", documentID, wanted, status, err)
		}
		time.Sleep(100 * time.Millisecond)
	}
}

// jsonDecode decodes a response body, surfacing non-2xx statuses as errors.
func jsonDecode(resp *http.Response, out interface{}) error {
	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, body)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// repeatText builds a document body long enough to span multiple chunks.
func repeatText(sentence string, n int) string {
	var buf bytes.Buffer
	for i := 0; i < n; i++ {
		fmt.Fprintf(&buf, "%s (paragraph %d). ", sentence, i+1)
	}
	return buf.String()
}
