package service

import (
	"context"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/nabobery/Neurality-Take-Home-Assignment/internal/domain"
	"github.com/nabobery/Neurality-Take-Home-Assignment/internal/pagination"
	"github.com/nabobery/Neurality-Take-Home-Assignment/internal/telemetry"
)

// DocumentRepositoryInterface defines the repository interface for document
// metadata persistence
type DocumentRepositoryInterface interface {
	Create(ctx context.Context, d *domain.Document) error
	GetByID(ctx context.Context, id string) (*domain.Document, error)
	ListWithCursor(ctx context.Context, cursor *pagination.Cursor, limit int) (*DocumentPageResult, error)
	UpdateStatus(ctx context.Context, d *domain.Document) error
	Delete(ctx context.Context, id string) error
}

// IngestJobRepositoryInterface defines the repository interface for ingestion
// job persistence
type IngestJobRepositoryInterface interface {
	Create(ctx context.Context, job *domain.IngestJob) error
}

// StorageClientInterface defines the interface for retaining raw document bytes
type StorageClientInterface interface {
	PutObject(ctx context.Context, key string, body []byte, contentType string) error
	DeleteObject(ctx context.Context, key string) error
}

// DocumentPageResult is one page of documents
type DocumentPageResult struct {
	Items   []*domain.Document
	HasMore bool
}

// DocumentService handles document submission and lifecycle queries. The
// format-specific text extraction happens before submission; this service
// receives already-extracted text.
type DocumentService struct {
	repo     DocumentRepositoryInterface
	jobRepo  IngestJobRepositoryInterface // nil means ingest synchronously
	storage  StorageClientInterface       // nil means raw bytes are not retained
	pipeline *IngestionPipeline
	uuidGen  UUIDGenerator
}

// NewDocumentService creates a new DocumentService instance
func NewDocumentService(
	repo DocumentRepositoryInterface,
	jobRepo IngestJobRepositoryInterface,
	storage StorageClientInterface,
	pipeline *IngestionPipeline,
) *DocumentService {
	return &DocumentService{
		repo:     repo,
		jobRepo:  jobRepo,
		storage:  storage,
		pipeline: pipeline,
		uuidGen:  &DefaultUUIDGenerator{},
	}
}

// WithUUIDGenerator overrides the UUID generator (for testing)
func (s *DocumentService) WithUUIDGenerator(gen UUIDGenerator) *DocumentService {
	s.uuidGen = gen
	return s
}

// SubmitInput represents a document submission
type SubmitInput struct {
	Filename    string
	RawBytes    []byte
	ContentType string
	Text        string // extracted text
}

// Submit registers a new document, retains its raw bytes when storage is
// configured, and either enqueues an ingestion job or runs the pipeline
// inline. Returns the document with its current status; async submissions
// come back pending.
func (s *DocumentService) Submit(ctx context.Context, input SubmitInput) (*domain.Document, error) {
	ctx, span := telemetry.StartSpan(ctx, "DocumentService.Submit", telemetry.SpanAttributes{
		Operation: "submit",
	})
	defer span.End()

	if strings.TrimSpace(input.Filename) == "" {
		return nil, domain.NewDomainError(domain.ErrCodeValidation, "filename is required")
	}

	now := time.Now().UTC()
	doc := domain.NewDocument(s.uuidGen.NewString(), path.Base(input.Filename), now)

	if s.storage != nil && len(input.RawBytes) > 0 {
		key := fmt.Sprintf("documents/%s/%s", doc.ID, doc.Filename)
		if err := s.storage.PutObject(ctx, key, input.RawBytes, input.ContentType); err != nil {
			return nil, domain.NewDomainErrorWithCause(domain.ErrCodeInternalError, "failed to store raw document", err)
		}
		doc.StorageKey = key
	}

	if err := s.repo.Create(ctx, doc); err != nil {
		return nil, err
	}

	if s.jobRepo != nil {
		job := domain.NewIngestJob(s.uuidGen.NewString(), doc.ID, input.Text, now)
		if err := s.jobRepo.Create(ctx, job); err != nil {
			return nil, err
		}
		return doc, nil
	}

	// Synchronous mode: the ingestion outcome (indexed or failed) is
	// reflected on the returned document; the failure itself surfaces as
	// the document's status and cause, not as a submission error.
	if err := s.pipeline.Ingest(ctx, doc, input.Text); err != nil {
		telemetry.CaptureError(ctx, err)
	}
	return doc, nil
}

// Get returns a document by ID
func (s *DocumentService) Get(ctx context.Context, id string) (*domain.Document, error) {
	return s.repo.GetByID(ctx, id)
}

// ListInput represents a document listing request
type ListInput struct {
	Cursor string
	Limit  int
}

// ListOutput is one page of documents with the cursor for the next page
type ListOutput struct {
	Items   []*domain.Document
	Cursor  string
	HasMore bool
}

// List returns documents ordered by creation time, newest first
func (s *DocumentService) List(ctx context.Context, input ListInput) (*ListOutput, error) {
	cursor, err := pagination.DecodeCursor(input.Cursor)
	if err != nil {
		return nil, domain.NewDomainErrorWithCause(domain.ErrCodeValidation, "invalid cursor", err)
	}

	limit := pagination.ClampLimit(input.Limit)
	page, err := s.repo.ListWithCursor(ctx, cursor, limit)
	if err != nil {
		return nil, err
	}

	out := &ListOutput{Items: page.Items, HasMore: page.HasMore}
	if page.HasMore {
		out.Cursor = pagination.CreateNextCursor(page.Items, limit,
			func(d *domain.Document) string { return d.ID },
			func(d *domain.Document) time.Time { return d.CreatedAt })
	}
	return out, nil
}

// Delete removes a document's index entries, its raw bytes, and its
// metadata record
func (s *DocumentService) Delete(ctx context.Context, id string) error {
	doc, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}

	if err := s.pipeline.Remove(ctx, doc.ID); err != nil {
		return err
	}

	if s.storage != nil && doc.StorageKey != "" {
		if err := s.storage.DeleteObject(ctx, doc.StorageKey); err != nil {
			return domain.NewDomainErrorWithCause(domain.ErrCodeInternalError, "failed to delete raw document", err)
		}
	}

	return s.repo.Delete(ctx, doc.ID)
}
