package domain

import (
	"fmt"
	"time"
)

// IngestionStatus represents the lifecycle state of an ingested document
type IngestionStatus string

const (
	IngestionStatusPending IngestionStatus = "pending"
	IngestionStatusChunked IngestionStatus = "chunked"
	IngestionStatusIndexed IngestionStatus = "indexed"
	IngestionStatusFailed  IngestionStatus = "failed"
)

// Document represents an uploaded document tracked through ingestion.
// Once the status reaches indexed or failed the document is immutable.
type Document struct {
	ID         string
	Filename   string
	StorageKey string // object key for the retained raw bytes, empty when not stored
	Status     IngestionStatus
	FailReason string
	ChunkCount int
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// NewDocument creates a new Document in the pending state
func NewDocument(id, filename string, createdAt time.Time) *Document {
	return &Document{
		ID:        id,
		Filename:  filename,
		Status:    IngestionStatusPending,
		CreatedAt: createdAt,
		UpdatedAt: createdAt,
	}
}

// allowedTransitions encodes the ingestion state machine:
// pending -> chunked -> indexed, with failed reachable from any
// non-terminal state.
var allowedTransitions = map[IngestionStatus][]IngestionStatus{
	IngestionStatusPending: {IngestionStatusChunked, IngestionStatusFailed},
	IngestionStatusChunked: {IngestionStatusIndexed, IngestionStatusFailed},
	IngestionStatusIndexed: {},
	IngestionStatusFailed:  {},
}

// Transition moves the document to the given status, enforcing the state
// machine. Terminal states (indexed, failed) reject all transitions.
func (d *Document) Transition(to IngestionStatus, at time.Time) error {
	if !isValidIngestionStatus(to) {
		return ErrInvalidIngestionStatus
	}
	for _, next := range allowedTransitions[d.Status] {
		if next == to {
			d.Status = to
			d.UpdatedAt = at
			return nil
		}
	}
	return NewDomainError(ErrCodeInvalidOperation,
		fmt.Sprintf("invalid status transition: %s -> %s", d.Status, to))
}

// Fail transitions the document to failed and records the cause
func (d *Document) Fail(cause error, at time.Time) error {
	if err := d.Transition(IngestionStatusFailed, at); err != nil {
		return err
	}
	if cause != nil {
		d.FailReason = cause.Error()
	}
	return nil
}

// Queryable reports whether the document's chunks may appear in search results
func (d *Document) Queryable() bool {
	return d.Status == IngestionStatusIndexed
}

// ValidateDocument validates a Document instance
func ValidateDocument(d *Document) error {
	if d == nil {
		return fmt.Errorf("document cannot be nil")
	}

	if d.ID == "" {
		return fmt.Errorf("document ID is required")
	}

	if d.Filename == "" {
		return fmt.Errorf("document Filename is required")
	}

	if !isValidIngestionStatus(d.Status) {
		return fmt.Errorf("document Status is invalid: %s", d.Status)
	}

	if d.ChunkCount < 0 {
		return fmt.Errorf("document ChunkCount cannot be negative")
	}

	return nil
}

// isValidIngestionStatus checks if an IngestionStatus is valid
func isValidIngestionStatus(s IngestionStatus) bool {
	switch s {
	case IngestionStatusPending, IngestionStatusChunked,
		IngestionStatusIndexed, IngestionStatusFailed:
		return true
	}
	return false
}
