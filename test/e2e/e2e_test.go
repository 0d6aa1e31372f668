//go:build e2e

package e2e

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/nabobery/Neurality-Take-Home-Assignment/internal/api/handlers"
)

// TestDocumentLifecycle walks a document through upload, background
// ingestion, question answering, search, and deletion against real Postgres
// and S3 containers.
func TestDocumentLifecycle(t *testing.T) {
	env := SetupEnv(t)
	env.Backend.GenerateText = "Revenue grew twelve percent, driven by subscriptions. [1]"

	content := repeatText("quarterly revenue grew twelve percent driven by subscription renewals", 40)
	doc := env.UploadDocument(t, "q3-report.txt", content)

	if doc.Status != "pending" {
		t.Fatalf("uploaded document should start pending, got %q", doc.Status)
	}

	indexed := env.WaitForStatus(t, doc.ID, "indexed")
	if indexed.ChunkCount < 2 {
		t.Fatalf("expected a multi-chunk document, got %d chunks", indexed.ChunkCount)
	}
	if got := env.ChunkRowCount(t, doc.ID); got != indexed.ChunkCount {
		t.Fatalf("chunk_count %d disagrees with table rows %d", indexed.ChunkCount, got)
	}

	// Raw bytes are retained under a per-document key.
	meta, err := env.S3.HeadObject(env.Ctx, fmt.Sprintf("documents/%s/q3-report.txt", doc.ID))
	if err != nil {
		t.Fatalf("raw document not retained in object storage: %v", err)
	}
	if meta.ContentLength != int64(len(content)) {
		t.Fatalf("retained object has %d bytes, want %d", meta.ContentLength, len(content))
	}

	var askResp handlers.AskResponse
	code := env.PostJSON(t, "/ask", handlers.AskRequest{Question: "what drove revenue growth?"}, &askResp)
	if code != http.StatusOK {
		t.Fatalf("ask returned %d", code)
	}
	if askResp.Answer != env.Backend.GenerateText {
		t.Fatalf("unexpected answer: %q", askResp.Answer)
	}
	if len(askResp.Sources) == 0 {
		t.Fatal("answer carries no sources")
	}
	if askResp.Sources[0].DocumentID != doc.ID {
		t.Fatalf("source cites document %s, want %s", askResp.Sources[0].DocumentID, doc.ID)
	}

	for _, mode := range []string{"semantic", "lexical", "hybrid"} {
		var searchResp handlers.SearchResponse
		code := env.PostJSON(t, "/search", handlers.SearchRequest{
			Query: "quarterly revenue subscription renewals",
			Mode:  mode,
		}, &searchResp)
		if code != http.StatusOK {
			t.Fatalf("%s search returned %d", mode, code)
		}
		if len(searchResp.Results) == 0 {
			t.Fatalf("%s search found nothing", mode)
		}
	}

	if code := env.DeleteDocument(t, doc.ID); code != http.StatusNoContent {
		t.Fatalf("delete returned %d", code)
	}
	if _, code := env.GetDocument(t, doc.ID); code != http.StatusNotFound {
		t.Fatalf("deleted document still readable (status %d)", code)
	}
	if got := env.ChunkRowCount(t, doc.ID); got != 0 {
		t.Fatalf("%d chunks survived deletion", got)
	}
	if _, err := env.S3.HeadObject(env.Ctx, fmt.Sprintf("documents/%s/q3-report.txt", doc.ID)); err == nil {
		t.Fatal("raw document survived deletion")
	}
}

// TestIngestionFailureExhaustsRetries drives the worker through its retry
// budget against a failing embedding backend and verifies nothing leaks into
// the index.
func TestIngestionFailureExhaustsRetries(t *testing.T) {
	env := SetupEnv(t)
	env.Backend.EmbedErr = errors.New("backend down")

	doc := env.UploadDocument(t, "doomed.txt", repeatText("this document will not make it", 20))

	env.WaitForJobStatus(t, doc.ID, "failed")
	failed, code := env.GetDocument(t, doc.ID)
	if code != http.StatusOK {
		t.Fatalf("get returned %d", code)
	}
	if failed.Status != "failed" {
		t.Fatalf("document status %q, want failed", failed.Status)
	}
	if failed.FailReason == "" {
		t.Fatal("failed document carries no fail_reason")
	}
	if got := env.ChunkRowCount(t, doc.ID); got != 0 {
		t.Fatalf("failed ingestion left %d chunks behind", got)
	}

	var retries int32
	err := env.Pool.QueryRow(env.Ctx,
		`SELECT retries FROM ingest_jobs WHERE document_id = $1`, doc.ID).Scan(&retries)
	if err != nil {
		t.Fatalf("failed to read job retries: %v", err)
	}
	if retries != 3 {
		t.Fatalf("job retried %d times, want 3", retries)
	}
}

// TestListPagination uploads several documents and walks the cursor pages.
func TestListPagination(t *testing.T) {
	env := SetupEnv(t)

	const total = 5
	for i := 0; i < total; i++ {
		doc := env.UploadDocument(t, fmt.Sprintf("doc-%d.txt", i), fmt.Sprintf("document number %d content", i))
		env.WaitForStatus(t, doc.ID, "indexed")
	}

	seen := make(map[string]bool)
	cursor := ""
	pages := 0
	for {
		url := env.ServerURL + "/documents?limit=2"
		if cursor != "" {
			url += "&cursor=" + cursor
		}
		resp, err := env.Client.Get(url)
		if err != nil {
			t.Fatalf("list request failed: %v", err)
		}
		var envelope struct {
			Data handlers.ListDocumentsResponse `json:"data"`
		}
		decodeErr := jsonDecode(resp, &envelope)
		resp.Body.Close()
		if decodeErr != nil {
			t.Fatalf("failed to decode list response: %v", decodeErr)
		}

		for _, item := range envelope.Data.Items {
			if seen[item.ID] {
				t.Fatalf("document %s appeared on two pages", item.ID)
			}
			seen[item.ID] = true
		}
		pages++

		if !envelope.Data.HasMore {
			break
		}
		cursor = envelope.Data.Cursor
		if pages > total {
			t.Fatal("pagination never terminated")
		}
	}

	if len(seen) != total {
		t.Fatalf("pagination yielded %d documents, want %d", len(seen), total)
	}
}

// TestAskScopedToDocument filters answers to a single document.
func TestAskScopedToDocument(t *testing.T) {
	env := SetupEnv(t)
	env.Backend.GenerateText = "Only from the scoped document. [1]"

	docA := env.UploadDocument(t, "a.txt", repeatText("alpha facts about production incidents", 10))
	docB := env.UploadDocument(t, "b.txt", repeatText("beta facts about marketing campaigns", 10))
	env.WaitForStatus(t, docA.ID, "indexed")
	env.WaitForStatus(t, docB.ID, "indexed")

	var askResp handlers.AskResponse
	code := env.PostJSON(t, "/ask", handlers.AskRequest{
		Question:    "what happened?",
		DocumentIDs: []string{docB.ID},
	}, &askResp)
	if code != http.StatusOK {
		t.Fatalf("ask returned %d", code)
	}
	for _, src := range askResp.Sources {
		if src.DocumentID != docB.ID {
			t.Fatalf("scoped ask cited document %s", src.DocumentID)
		}
	}
}
