// Package index provides vector index implementations for chunk embeddings:
// an exact in-memory store and a pgvector-backed Postgres store behind the
// same interface.
package index

import (
	"context"

	"github.com/nabobery/Neurality-Take-Home-Assignment/internal/domain"
)

// SearchFilter restricts search to entries belonging to the given documents.
// A nil filter or empty DocumentIDs matches everything.
type SearchFilter struct {
	DocumentIDs []string
}

// Matches reports whether an entry for documentID passes the filter
func (f *SearchFilter) Matches(documentID string) bool {
	if f == nil || len(f.DocumentIDs) == 0 {
		return true
	}
	for _, id := range f.DocumentIDs {
		if id == documentID {
			return true
		}
	}
	return false
}

// Index stores chunk embeddings and answers similarity queries.
//
// Upsert is batch-atomic: a dimension mismatch anywhere in the batch rejects
// the whole batch. Search returns at most topK results in descending cosine
// similarity, ties broken by insertion order. Delete removes every entry
// belonging to a document and is the compensating action when ingestion
// fails partway.
type Index interface {
	Upsert(ctx context.Context, entries []domain.IndexEntry) error
	Search(ctx context.Context, vector []float32, topK int, filter *SearchFilter) ([]domain.ScoredChunk, error)
	SearchLexical(ctx context.Context, query string, limit int, filter *SearchFilter) ([]domain.ScoredChunk, error)
	Delete(ctx context.Context, documentID string) error
	Dimensions() int
}
