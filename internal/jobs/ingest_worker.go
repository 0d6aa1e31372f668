package jobs

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/nabobery/Neurality-Take-Home-Assignment/internal/domain"
)

const (
	// MaxRetries is the maximum number of attempts for a failed job
	MaxRetries = 3
)

// IngestJobRepository defines the interface for ingestion job persistence
type IngestJobRepository interface {
	// GetPendingJobs retrieves and claims pending ingestion jobs
	GetPendingJobs(ctx context.Context) ([]*domain.IngestJob, error)

	// UpdateJobStatus updates the status of an ingestion job
	UpdateJobStatus(ctx context.Context, jobID string, status domain.IngestJobStatus, errMsg string) error

	// IncrementRetries increments the retry count for a job
	IncrementRetries(ctx context.Context, jobID string) error
}

// DocumentStore loads and persists the document a job refers to
type DocumentStore interface {
	GetByID(ctx context.Context, id string) (*domain.Document, error)
	UpdateStatus(ctx context.Context, d *domain.Document) error
}

// Ingestor runs a document through the ingestion pipeline
type Ingestor interface {
	Ingest(ctx context.Context, doc *domain.Document, rawText string) error
}

// IngestWorker processes ingestion jobs: each job carries the extracted text
// for one document, and a retried job re-runs the whole pipeline.
type IngestWorker struct {
	repo     IngestJobRepository
	docs     DocumentStore
	ingestor Ingestor
}

// NewIngestWorker creates a new IngestWorker instance
func NewIngestWorker(repo IngestJobRepository, docs DocumentStore, ingestor Ingestor) *IngestWorker {
	return &IngestWorker{
		repo:     repo,
		docs:     docs,
		ingestor: ingestor,
	}
}

// ProcessJobs implements the JobProcessor interface
func (w *IngestWorker) ProcessJobs(ctx context.Context) error {
	jobs, err := w.repo.GetPendingJobs(ctx)
	if err != nil {
		return fmt.Errorf("failed to fetch pending jobs: %w", err)
	}

	if len(jobs) == 0 {
		return nil
	}

	log.Printf("Processing %d pending ingestion jobs", len(jobs))

	for _, job := range jobs {
		if err := w.processJob(ctx, job); err != nil {
			log.Printf("Error processing job %s: %v", job.ID, err)
		}
	}

	return nil
}

func (w *IngestWorker) processJob(ctx context.Context, job *domain.IngestJob) error {
	log.Printf("Processing job %s for document %s", job.ID, job.DocumentID)

	doc, err := w.docs.GetByID(ctx, job.DocumentID)
	if errors.Is(err, domain.ErrDocumentNotFound) {
		// The document was deleted while the job was queued. Retrying
		// cannot help.
		errMsg := fmt.Sprintf("document %s no longer exists", job.DocumentID)
		if err := w.repo.UpdateJobStatus(ctx, job.ID, domain.IngestJobStatusFailed, errMsg); err != nil {
			return fmt.Errorf("failed to update job status to failed: %w", err)
		}
		return nil
	}
	if err != nil {
		return w.handleJobFailure(ctx, job, err)
	}

	// A retried job re-runs the pipeline from the top, so a document left
	// failed by the previous attempt goes back to pending first.
	if doc.Status != domain.IngestionStatusPending {
		doc.Status = domain.IngestionStatusPending
		doc.FailReason = ""
		doc.UpdatedAt = time.Now().UTC()
		if err := w.docs.UpdateStatus(ctx, doc); err != nil {
			return w.handleJobFailure(ctx, job, err)
		}
	}

	if err := w.ingestor.Ingest(ctx, doc, job.Text); err != nil {
		return w.handleJobFailure(ctx, job, err)
	}

	if err := w.repo.UpdateJobStatus(ctx, job.ID, domain.IngestJobStatusCompleted, ""); err != nil {
		return fmt.Errorf("failed to update job status to completed: %w", err)
	}

	log.Printf("Job %s completed successfully", job.ID)
	return nil
}

// handleJobFailure handles a failed job with retry logic
func (w *IngestWorker) handleJobFailure(ctx context.Context, job *domain.IngestJob, jobErr error) error {
	log.Printf("Job %s failed: %v", job.ID, jobErr)

	if err := w.repo.IncrementRetries(ctx, job.ID); err != nil {
		return fmt.Errorf("failed to increment retries: %w", err)
	}

	if job.Retries+1 >= MaxRetries {
		log.Printf("Job %s exceeded max retries (%d), marking as failed", job.ID, MaxRetries)
		errMsg := fmt.Sprintf("max retries exceeded: %v", jobErr)
		if err := w.repo.UpdateJobStatus(ctx, job.ID, domain.IngestJobStatusFailed, errMsg); err != nil {
			return fmt.Errorf("failed to update job status to failed: %w", err)
		}
		return nil
	}

	log.Printf("Job %s will be retried (attempt %d/%d)", job.ID, job.Retries+1, MaxRetries)
	errMsg := fmt.Sprintf("retry %d: %v", job.Retries+1, jobErr)
	if err := w.repo.UpdateJobStatus(ctx, job.ID, domain.IngestJobStatusPending, errMsg); err != nil {
		return fmt.Errorf("failed to reset job status to pending: %w", err)
	}

	return nil
}
