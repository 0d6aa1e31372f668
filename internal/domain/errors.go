package domain

import (
	"errors"
	"fmt"
)

// DomainError represents a domain-specific error
type DomainError struct {
	Code    string
	Message string
	Err     error
}

// Error implements the error interface
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *DomainError) Unwrap() error {
	return e.Err
}

// NewDomainError creates a new DomainError
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Err:     nil,
	}
}

// NewDomainErrorWithCause creates a new DomainError with an underlying cause
func NewDomainErrorWithCause(code, message string, err error) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// Common domain error codes
const (
	ErrCodeValidation        = "VALIDATION_ERROR"
	ErrCodeNotFound          = "NOT_FOUND"
	ErrCodeEmbeddingBackend  = "EMBEDDING_BACKEND_ERROR"
	ErrCodeGenerationBackend = "GENERATION_BACKEND_ERROR"
	ErrCodeIndexConsistency  = "INDEX_CONSISTENCY_ERROR"
	ErrCodeIngestionFailed   = "INGESTION_FAILED"
	ErrCodeInvalidOperation  = "INVALID_OPERATION"
	ErrCodeInternalError     = "INTERNAL_ERROR"
)

// Validation errors
var (
	ErrInvalidChunkConfig     = NewDomainError(ErrCodeValidation, "chunk overlap must be smaller than chunk size")
	ErrEmptyInputText         = NewDomainError(ErrCodeValidation, "input text cannot be empty")
	ErrInputTooLong           = NewDomainError(ErrCodeValidation, "input text exceeds backend maximum length")
	ErrEmptyQuery             = NewDomainError(ErrCodeValidation, "query cannot be empty")
	ErrInvalidTopK            = NewDomainError(ErrCodeValidation, "top_k must be greater than 0")
	ErrInvalidIngestionStatus = NewDomainError(ErrCodeValidation, "invalid ingestion status")
	ErrNoFileProvided         = NewDomainError(ErrCodeValidation, "no file provided")
)

// Not found errors
var (
	ErrDocumentNotFound = NewDomainError(ErrCodeNotFound, "document not found")
	ErrJobNotFound      = NewDomainError(ErrCodeNotFound, "ingestion job not found")
)

// Consistency errors
var (
	ErrDimensionMismatch = NewDomainError(ErrCodeIndexConsistency, "vector dimension does not match index dimension")
)

// NewEmbeddingBackendError wraps a transient embedding backend failure
func NewEmbeddingBackendError(err error) *DomainError {
	return NewDomainErrorWithCause(ErrCodeEmbeddingBackend, "embedding backend call failed", err)
}

// NewGenerationBackendError wraps a transient generation backend failure
func NewGenerationBackendError(err error) *DomainError {
	return NewDomainErrorWithCause(ErrCodeGenerationBackend, "generation backend call failed", err)
}

// NewIngestionFailedError wraps the terminal failure of a document ingestion,
// carrying the underlying cause.
func NewIngestionFailedError(documentID string, err error) *DomainError {
	return NewDomainErrorWithCause(ErrCodeIngestionFailed,
		fmt.Sprintf("ingestion failed for document %s", documentID), err)
}

// ErrorCode extracts the domain error code from err, or ErrCodeInternalError
// when err is not a DomainError.
func ErrorCode(err error) string {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Code
	}
	return ErrCodeInternalError
}

// IsRetryable reports whether the caller may retry the failed unit of work.
// Only transient backend failures are retryable; validation and consistency
// errors are not.
func IsRetryable(err error) bool {
	switch ErrorCode(err) {
	case ErrCodeEmbeddingBackend, ErrCodeGenerationBackend:
		return true
	}
	return false
}
