package service

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nabobery/Neurality-Take-Home-Assignment/internal/domain"
	"github.com/nabobery/Neurality-Take-Home-Assignment/internal/index"
	"github.com/nabobery/Neurality-Take-Home-Assignment/internal/telemetry"
)

// UUIDGenerator defines interface for UUID generation (for testing)
type UUIDGenerator interface {
	NewString() string
}

// DefaultUUIDGenerator is the default UUID generator using google/uuid
type DefaultUUIDGenerator struct{}

// NewString generates a new UUID string
func (g *DefaultUUIDGenerator) NewString() string {
	return uuid.NewString()
}

// StatusReporter receives document status transitions so the web layer can
// persist and display them. Reporting failures are logged, never fatal to
// the pipeline.
type StatusReporter interface {
	UpdateStatus(ctx context.Context, doc *domain.Document) error
}

// IngestionPipeline orchestrates chunking, embedding, and indexing for a
// document. A document becomes queryable only after every chunk has an
// index entry; on any failure the pipeline deletes whatever was written and
// marks the document failed, so partial indexing is never visible.
type IngestionPipeline struct {
	chunker  *Chunker
	embedder EmbeddingClient
	idx      index.Index
	reporter StatusReporter // optional
	uuidGen  UUIDGenerator

	// docLocks serializes upsert/delete per document ID. Ingestion of
	// unrelated documents proceeds concurrently.
	mu       sync.Mutex
	docLocks map[string]*sync.Mutex
}

// NewIngestionPipeline creates a new IngestionPipeline instance
func NewIngestionPipeline(chunker *Chunker, embedder EmbeddingClient, idx index.Index) *IngestionPipeline {
	return &IngestionPipeline{
		chunker:  chunker,
		embedder: embedder,
		idx:      idx,
		uuidGen:  &DefaultUUIDGenerator{},
		docLocks: make(map[string]*sync.Mutex),
	}
}

// NewIngestionPipelineWithReporter creates a pipeline that reports status
// transitions to the given reporter
func NewIngestionPipelineWithReporter(chunker *Chunker, embedder EmbeddingClient, idx index.Index, reporter StatusReporter) *IngestionPipeline {
	p := NewIngestionPipeline(chunker, embedder, idx)
	p.reporter = reporter
	return p
}

// WithUUIDGenerator overrides the UUID generator (for testing)
func (p *IngestionPipeline) WithUUIDGenerator(gen UUIDGenerator) *IngestionPipeline {
	p.uuidGen = gen
	return p
}

// Ingest runs the document through chunk -> embed -> index, mutating its
// status in place: pending -> chunked -> indexed, or -> failed from any
// state on error. The returned error for a failed ingestion is always an
// INGESTION_FAILED domain error carrying the underlying cause.
func (p *IngestionPipeline) Ingest(ctx context.Context, doc *domain.Document, rawText string) error {
	ctx, span := telemetry.StartSpan(ctx, "IngestionPipeline.Ingest", telemetry.SpanAttributes{
		DocumentID: doc.ID,
		Operation:  "ingest",
	})
	defer span.End()

	if err := domain.ValidateDocument(doc); err != nil {
		return domain.NewDomainErrorWithCause(domain.ErrCodeValidation, "invalid document", err)
	}
	if doc.Status != domain.IngestionStatusPending {
		return domain.NewDomainError(domain.ErrCodeInvalidOperation,
			"document is not pending ingestion: "+string(doc.Status))
	}

	unlock := p.lockDocument(doc.ID)
	defer unlock()

	chunks := p.chunker.Chunk(doc.ID, rawText)
	if len(chunks) == 0 {
		return p.fail(ctx, span, doc,
			domain.NewDomainError(domain.ErrCodeValidation, "document has no extractable text"))
	}

	if err := p.transition(ctx, doc, domain.IngestionStatusChunked); err != nil {
		return p.fail(ctx, span, doc, err)
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}

	vectors, err := p.embedder.Embed(ctx, texts)
	if err != nil {
		// No entries were written; nothing to compensate.
		return p.fail(ctx, span, doc, err)
	}

	entries := make([]domain.IndexEntry, len(chunks))
	for i, c := range chunks {
		entries[i] = domain.IndexEntry{
			ChunkRef: domain.ChunkRef{
				ChunkID:    p.uuidGen.NewString(),
				DocumentID: doc.ID,
				Filename:   doc.Filename,
				Ordinal:    c.Ordinal,
				Start:      c.Start,
				End:        c.End,
				Content:    c.Text,
			},
			Embedding: vectors[i],
		}
	}

	if err := p.idx.Upsert(ctx, entries); err != nil {
		p.compensate(ctx, doc.ID)
		return p.fail(ctx, span, doc, err)
	}

	// A cancelled caller must not leave entries visible.
	if err := ctx.Err(); err != nil {
		p.compensate(ctx, doc.ID)
		return p.fail(ctx, span, doc, err)
	}

	doc.ChunkCount = len(chunks)
	if err := p.transition(ctx, doc, domain.IngestionStatusIndexed); err != nil {
		p.compensate(ctx, doc.ID)
		return p.fail(ctx, span, doc, err)
	}

	return nil
}

// Remove deletes every index entry belonging to the document, serialized
// against any in-flight ingestion of the same document.
func (p *IngestionPipeline) Remove(ctx context.Context, documentID string) error {
	unlock := p.lockDocument(documentID)
	defer unlock()
	return p.idx.Delete(ctx, documentID)
}

func (p *IngestionPipeline) lockDocument(documentID string) func() {
	p.mu.Lock()
	lock, ok := p.docLocks[documentID]
	if !ok {
		lock = &sync.Mutex{}
		p.docLocks[documentID] = lock
	}
	p.mu.Unlock()

	lock.Lock()
	return lock.Unlock
}

// compensate removes any entries already visible for the document. Runs
// detached from the caller's context so rollback survives cancellation.
func (p *IngestionPipeline) compensate(ctx context.Context, documentID string) {
	cleanupCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
	defer cancel()
	if err := p.idx.Delete(cleanupCtx, documentID); err != nil {
		log.Printf("compensating delete failed for document %s: %v", documentID, err)
	}
}

func (p *IngestionPipeline) transition(ctx context.Context, doc *domain.Document, to domain.IngestionStatus) error {
	if err := doc.Transition(to, time.Now().UTC()); err != nil {
		return err
	}
	p.report(ctx, doc)
	return nil
}

// fail marks the document failed, reports the transition, and wraps the
// cause as a terminal ingestion error.
func (p *IngestionPipeline) fail(ctx context.Context, span *telemetry.Span, doc *domain.Document, cause error) error {
	if err := doc.Fail(cause, time.Now().UTC()); err != nil {
		log.Printf("failed to mark document %s as failed: %v", doc.ID, err)
	}
	p.report(ctx, doc)

	wrapped := domain.NewIngestionFailedError(doc.ID, cause)
	span.SetError(wrapped)
	return wrapped
}

func (p *IngestionPipeline) report(ctx context.Context, doc *domain.Document) {
	if p.reporter == nil {
		return
	}
	reportCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	if err := p.reporter.UpdateStatus(reportCtx, doc); err != nil {
		log.Printf("failed to report status %s for document %s: %v", doc.Status, doc.ID, err)
	}
}
