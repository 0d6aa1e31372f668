package domain

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDocument(t *testing.T) {
	now := time.Now().UTC()
	doc := NewDocument("doc-1", "report.pdf", now)

	assert.Equal(t, "doc-1", doc.ID)
	assert.Equal(t, "report.pdf", doc.Filename)
	assert.Equal(t, IngestionStatusPending, doc.Status)
	assert.Equal(t, now, doc.CreatedAt)
	assert.False(t, doc.Queryable())
}

func TestDocumentTransition(t *testing.T) {
	tests := []struct {
		name    string
		from    IngestionStatus
		to      IngestionStatus
		wantErr bool
	}{
		{name: "pending to chunked", from: IngestionStatusPending, to: IngestionStatusChunked},
		{name: "chunked to indexed", from: IngestionStatusChunked, to: IngestionStatusIndexed},
		{name: "pending to failed", from: IngestionStatusPending, to: IngestionStatusFailed},
		{name: "chunked to failed", from: IngestionStatusChunked, to: IngestionStatusFailed},
		{name: "pending to indexed skips chunked", from: IngestionStatusPending, to: IngestionStatusIndexed, wantErr: true},
		{name: "indexed is terminal", from: IngestionStatusIndexed, to: IngestionStatusFailed, wantErr: true},
		{name: "failed is terminal", from: IngestionStatusFailed, to: IngestionStatusPending, wantErr: true},
		{name: "unknown status rejected", from: IngestionStatusPending, to: IngestionStatus("archived"), wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := NewDocument("doc-1", "a.txt", time.Now().UTC())
			doc.Status = tt.from

			err := doc.Transition(tt.to, time.Now().UTC())
			if tt.wantErr {
				assert.Error(t, err)
				assert.Equal(t, tt.from, doc.Status)
			} else {
				require.NoError(t, err)
				assert.Equal(t, tt.to, doc.Status)
			}
		})
	}
}

func TestDocumentFail(t *testing.T) {
	doc := NewDocument("doc-1", "a.txt", time.Now().UTC())
	cause := errors.New("embedding backend unreachable")

	require.NoError(t, doc.Fail(cause, time.Now().UTC()))

	assert.Equal(t, IngestionStatusFailed, doc.Status)
	assert.Equal(t, "embedding backend unreachable", doc.FailReason)
	assert.False(t, doc.Queryable())
}

func TestDocumentQueryable(t *testing.T) {
	doc := NewDocument("doc-1", "a.txt", time.Now().UTC())
	require.NoError(t, doc.Transition(IngestionStatusChunked, time.Now().UTC()))
	assert.False(t, doc.Queryable())

	require.NoError(t, doc.Transition(IngestionStatusIndexed, time.Now().UTC()))
	assert.True(t, doc.Queryable())
}

func TestValidateDocument(t *testing.T) {
	now := time.Now().UTC()

	tests := []struct {
		name    string
		doc     *Document
		wantErr string
	}{
		{name: "valid", doc: NewDocument("doc-1", "a.txt", now)},
		{name: "nil", doc: nil, wantErr: "cannot be nil"},
		{name: "missing id", doc: &Document{Filename: "a.txt", Status: IngestionStatusPending}, wantErr: "ID is required"},
		{name: "missing filename", doc: &Document{ID: "doc-1", Status: IngestionStatusPending}, wantErr: "Filename is required"},
		{name: "bad status", doc: &Document{ID: "doc-1", Filename: "a.txt", Status: "bogus"}, wantErr: "Status is invalid"},
		{name: "negative chunk count", doc: &Document{ID: "doc-1", Filename: "a.txt", Status: IngestionStatusIndexed, ChunkCount: -1}, wantErr: "cannot be negative"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateDocument(tt.doc)
			if tt.wantErr == "" {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
			}
		})
	}
}

func TestValidateIndexEntry(t *testing.T) {
	entry := &IndexEntry{
		ChunkRef: ChunkRef{
			ChunkID:    "chunk-1",
			DocumentID: "doc-1",
		},
		Embedding: []float32{0.1, 0.2, 0.3},
	}

	assert.NoError(t, ValidateIndexEntry(entry, 3))
	assert.NoError(t, ValidateIndexEntry(entry, 0))

	err := ValidateIndexEntry(entry, 4)
	require.Error(t, err)
	assert.Equal(t, ErrCodeIndexConsistency, ErrorCode(err))
}

func TestErrorCodeAndRetryable(t *testing.T) {
	assert.Equal(t, ErrCodeValidation, ErrorCode(ErrEmptyQuery))
	assert.Equal(t, ErrCodeInternalError, ErrorCode(errors.New("plain")))

	backendErr := NewEmbeddingBackendError(errors.New("429 rate limited"))
	assert.True(t, IsRetryable(backendErr))
	assert.True(t, IsRetryable(NewGenerationBackendError(errors.New("timeout"))))
	assert.False(t, IsRetryable(ErrDimensionMismatch))
	assert.False(t, IsRetryable(ErrEmptyQuery))

	wrapped := NewIngestionFailedError("doc-1", backendErr)
	assert.Equal(t, ErrCodeIngestionFailed, ErrorCode(wrapped))
	assert.ErrorIs(t, wrapped, backendErr)
}

func TestValidateIngestJob(t *testing.T) {
	now := time.Now().UTC()
	job := NewIngestJob("job-1", "doc-1", "some text", now)
	assert.NoError(t, ValidateIngestJob(job))

	job.Status = "bogus"
	assert.Error(t, ValidateIngestJob(job))

	assert.Error(t, ValidateIngestJob(nil))
	assert.Error(t, ValidateIngestJob(&IngestJob{ID: "job-1", Status: IngestJobStatusPending}))
}
