package jobs

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/nabobery/Neurality-Take-Home-Assignment/internal/domain"
)

// MockJobProcessor is a mock implementation of JobProcessor
type MockJobProcessor struct {
	mock.Mock
}

func (m *MockJobProcessor) ProcessJobs(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

// MockIngestJobRepository is a mock implementation of IngestJobRepository
type MockIngestJobRepository struct {
	mock.Mock
}

func (m *MockIngestJobRepository) GetPendingJobs(ctx context.Context) ([]*domain.IngestJob, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.IngestJob), args.Error(1)
}

func (m *MockIngestJobRepository) UpdateJobStatus(ctx context.Context, jobID string, status domain.IngestJobStatus, errMsg string) error {
	args := m.Called(ctx, jobID, status, errMsg)
	return args.Error(0)
}

func (m *MockIngestJobRepository) IncrementRetries(ctx context.Context, jobID string) error {
	args := m.Called(ctx, jobID)
	return args.Error(0)
}

// MockDocumentStore is a mock implementation of DocumentStore
type MockDocumentStore struct {
	mock.Mock
}

func (m *MockDocumentStore) GetByID(ctx context.Context, id string) (*domain.Document, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Document), args.Error(1)
}

func (m *MockDocumentStore) UpdateStatus(ctx context.Context, d *domain.Document) error {
	args := m.Called(ctx, d)
	return args.Error(0)
}

// MockIngestor is a mock implementation of Ingestor
type MockIngestor struct {
	mock.Mock
}

func (m *MockIngestor) Ingest(ctx context.Context, doc *domain.Document, rawText string) error {
	args := m.Called(ctx, doc, rawText)
	return args.Error(0)
}

// TestWorker_StartStop tests the worker start and stop functionality
func TestWorker_StartStop(t *testing.T) {
	mockProcessor := new(MockJobProcessor)
	mockProcessor.On("ProcessJobs", mock.Anything).Return(nil)

	worker := NewWorker(mockProcessor, 100*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		worker.Start(ctx)
	}()

	// Let it run for a bit
	time.Sleep(250 * time.Millisecond)

	worker.Stop()
	wg.Wait()

	mockProcessor.AssertCalled(t, "ProcessJobs", mock.Anything)
}

// TestWorker_ContextCancellation tests worker stops on context cancellation
func TestWorker_ContextCancellation(t *testing.T) {
	mockProcessor := new(MockJobProcessor)
	mockProcessor.On("ProcessJobs", mock.Anything).Return(nil)

	worker := NewWorker(mockProcessor, 100*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		worker.Start(ctx)
	}()

	time.Sleep(150 * time.Millisecond)

	cancel()
	wg.Wait()

	mockProcessor.AssertCalled(t, "ProcessJobs", mock.Anything)
}

// TestIngestWorker_ProcessJobs_NoPendingJobs tests when there are no pending jobs
func TestIngestWorker_ProcessJobs_NoPendingJobs(t *testing.T) {
	mockRepo := new(MockIngestJobRepository)
	mockDocs := new(MockDocumentStore)
	mockIngestor := new(MockIngestor)

	mockRepo.On("GetPendingJobs", mock.Anything).Return([]*domain.IngestJob{}, nil)

	worker := NewIngestWorker(mockRepo, mockDocs, mockIngestor)
	err := worker.ProcessJobs(context.Background())

	assert.NoError(t, err)
	mockRepo.AssertExpectations(t)
	mockIngestor.AssertNotCalled(t, "Ingest", mock.Anything, mock.Anything, mock.Anything)
}

// TestIngestWorker_ProcessJobs_Success tests successful job processing
func TestIngestWorker_ProcessJobs_Success(t *testing.T) {
	mockRepo := new(MockIngestJobRepository)
	mockDocs := new(MockDocumentStore)
	mockIngestor := new(MockIngestor)

	doc := domain.NewDocument("doc-1", "a.txt", time.Now())
	job := domain.NewIngestJob("job-1", "doc-1", "extracted text", time.Now())

	mockRepo.On("GetPendingJobs", mock.Anything).Return([]*domain.IngestJob{job}, nil)
	mockDocs.On("GetByID", mock.Anything, "doc-1").Return(doc, nil)
	mockIngestor.On("Ingest", mock.Anything, doc, "extracted text").Return(nil)
	mockRepo.On("UpdateJobStatus", mock.Anything, "job-1", domain.IngestJobStatusCompleted, "").Return(nil)

	worker := NewIngestWorker(mockRepo, mockDocs, mockIngestor)
	err := worker.ProcessJobs(context.Background())

	assert.NoError(t, err)
	mockRepo.AssertExpectations(t)
	mockDocs.AssertExpectations(t)
	mockIngestor.AssertExpectations(t)
	// The document was already pending, so no reset write happened.
	mockDocs.AssertNotCalled(t, "UpdateStatus", mock.Anything, mock.Anything)
}

// TestIngestWorker_ProcessJobs_ResetsFailedDocument tests that a retried job
// puts a failed document back to pending before re-running the pipeline
func TestIngestWorker_ProcessJobs_ResetsFailedDocument(t *testing.T) {
	mockRepo := new(MockIngestJobRepository)
	mockDocs := new(MockDocumentStore)
	mockIngestor := new(MockIngestor)

	doc := domain.NewDocument("doc-1", "a.txt", time.Now())
	doc.Status = domain.IngestionStatusFailed
	doc.FailReason = "previous attempt failed"
	job := domain.NewIngestJob("job-1", "doc-1", "extracted text", time.Now())
	job.Retries = 1

	mockRepo.On("GetPendingJobs", mock.Anything).Return([]*domain.IngestJob{job}, nil)
	mockDocs.On("GetByID", mock.Anything, "doc-1").Return(doc, nil)
	mockDocs.On("UpdateStatus", mock.Anything, mock.MatchedBy(func(d *domain.Document) bool {
		return d.Status == domain.IngestionStatusPending && d.FailReason == ""
	})).Return(nil)
	mockIngestor.On("Ingest", mock.Anything, doc, "extracted text").Return(nil)
	mockRepo.On("UpdateJobStatus", mock.Anything, "job-1", domain.IngestJobStatusCompleted, "").Return(nil)

	worker := NewIngestWorker(mockRepo, mockDocs, mockIngestor)
	err := worker.ProcessJobs(context.Background())

	assert.NoError(t, err)
	mockDocs.AssertExpectations(t)
	mockIngestor.AssertExpectations(t)
}

// TestIngestWorker_ProcessJobs_FailureWithRetry tests job failure with retry
func TestIngestWorker_ProcessJobs_FailureWithRetry(t *testing.T) {
	mockRepo := new(MockIngestJobRepository)
	mockDocs := new(MockDocumentStore)
	mockIngestor := new(MockIngestor)

	doc := domain.NewDocument("doc-1", "a.txt", time.Now())
	job := domain.NewIngestJob("job-1", "doc-1", "extracted text", time.Now())

	mockRepo.On("GetPendingJobs", mock.Anything).Return([]*domain.IngestJob{job}, nil)
	mockDocs.On("GetByID", mock.Anything, "doc-1").Return(doc, nil)
	mockIngestor.On("Ingest", mock.Anything, doc, "extracted text").Return(errors.New("embedding backend down"))
	mockRepo.On("IncrementRetries", mock.Anything, "job-1").Return(nil)
	mockRepo.On("UpdateJobStatus", mock.Anything, "job-1", domain.IngestJobStatusPending, mock.MatchedBy(func(msg string) bool {
		return msg != ""
	})).Return(nil)

	worker := NewIngestWorker(mockRepo, mockDocs, mockIngestor)
	err := worker.ProcessJobs(context.Background())

	assert.NoError(t, err)
	mockRepo.AssertExpectations(t)
	mockIngestor.AssertExpectations(t)
}

// TestIngestWorker_ProcessJobs_MaxRetriesExceeded tests job failure after max retries
func TestIngestWorker_ProcessJobs_MaxRetriesExceeded(t *testing.T) {
	mockRepo := new(MockIngestJobRepository)
	mockDocs := new(MockDocumentStore)
	mockIngestor := new(MockIngestor)

	doc := domain.NewDocument("doc-1", "a.txt", time.Now())
	job := domain.NewIngestJob("job-1", "doc-1", "extracted text", time.Now())
	job.Retries = 2 // already retried twice

	mockRepo.On("GetPendingJobs", mock.Anything).Return([]*domain.IngestJob{job}, nil)
	mockDocs.On("GetByID", mock.Anything, "doc-1").Return(doc, nil)
	mockIngestor.On("Ingest", mock.Anything, doc, "extracted text").Return(errors.New("embedding backend down"))
	mockRepo.On("IncrementRetries", mock.Anything, "job-1").Return(nil)
	mockRepo.On("UpdateJobStatus", mock.Anything, "job-1", domain.IngestJobStatusFailed, mock.MatchedBy(func(msg string) bool {
		return msg != ""
	})).Return(nil)

	worker := NewIngestWorker(mockRepo, mockDocs, mockIngestor)
	err := worker.ProcessJobs(context.Background())

	assert.NoError(t, err)
	mockRepo.AssertExpectations(t)
	mockIngestor.AssertExpectations(t)
}

// TestIngestWorker_ProcessJobs_DocumentDeleted tests that a job whose
// document disappeared fails permanently without retries
func TestIngestWorker_ProcessJobs_DocumentDeleted(t *testing.T) {
	mockRepo := new(MockIngestJobRepository)
	mockDocs := new(MockDocumentStore)
	mockIngestor := new(MockIngestor)

	job := domain.NewIngestJob("job-1", "doc-gone", "text", time.Now())

	mockRepo.On("GetPendingJobs", mock.Anything).Return([]*domain.IngestJob{job}, nil)
	mockDocs.On("GetByID", mock.Anything, "doc-gone").Return(nil, domain.ErrDocumentNotFound)
	mockRepo.On("UpdateJobStatus", mock.Anything, "job-1", domain.IngestJobStatusFailed, mock.MatchedBy(func(msg string) bool {
		return msg != ""
	})).Return(nil)

	worker := NewIngestWorker(mockRepo, mockDocs, mockIngestor)
	err := worker.ProcessJobs(context.Background())

	assert.NoError(t, err)
	mockRepo.AssertExpectations(t)
	mockRepo.AssertNotCalled(t, "IncrementRetries", mock.Anything, mock.Anything)
	mockIngestor.AssertNotCalled(t, "Ingest", mock.Anything, mock.Anything, mock.Anything)
}

// TestIngestWorker_ProcessJobs_RepositoryError tests repository error handling
func TestIngestWorker_ProcessJobs_RepositoryError(t *testing.T) {
	mockRepo := new(MockIngestJobRepository)

	mockRepo.On("GetPendingJobs", mock.Anything).Return(nil, errors.New("database error"))

	worker := NewIngestWorker(mockRepo, new(MockDocumentStore), new(MockIngestor))
	err := worker.ProcessJobs(context.Background())

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "failed to fetch pending jobs")
	mockRepo.AssertExpectations(t)
}
