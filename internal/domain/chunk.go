package domain

import "fmt"

// Chunk is a contiguous slice of a document's extracted text, the unit of
// retrieval. Start and End are rune offsets into the extracted text; chunks
// are never mutated after creation.
type Chunk struct {
	ID         string
	DocumentID string
	Ordinal    int
	Start      int
	End        int
	Text       string
}

// ChunkRef carries the metadata of an indexed chunk without its vector.
// It is what retrieval results and answer citations point at.
type ChunkRef struct {
	ChunkID    string
	DocumentID string
	Filename   string
	Ordinal    int
	Start      int
	End        int
	Content    string
}

// IndexEntry pairs a chunk's metadata with its embedding vector for storage
// in a vector index.
type IndexEntry struct {
	ChunkRef
	Embedding []float32
}

// ScoredChunk is a retrieved chunk together with its similarity score.
type ScoredChunk struct {
	ChunkRef
	Score float32
}

// RetrievalResult is an ordered set of scored chunks, descending by score,
// produced per query. Transient.
type RetrievalResult struct {
	Chunks []ScoredChunk
}

// Empty reports whether the retrieval produced no supporting passages
func (r *RetrievalResult) Empty() bool {
	return r == nil || len(r.Chunks) == 0
}

// Answer is a generated response plus the ordered chunk metadata it was
// grounded on. Transient.
type Answer struct {
	Text    string
	Sources []ChunkRef
}

// ValidateIndexEntry validates an IndexEntry against the given index dimension
func ValidateIndexEntry(e *IndexEntry, dimensions int) error {
	if e == nil {
		return fmt.Errorf("index entry cannot be nil")
	}

	if e.ChunkID == "" {
		return fmt.Errorf("index entry ChunkID is required")
	}

	if e.DocumentID == "" {
		return fmt.Errorf("index entry DocumentID is required")
	}

	if len(e.Embedding) == 0 {
		return fmt.Errorf("index entry Embedding is required")
	}

	if dimensions > 0 && len(e.Embedding) != dimensions {
		return NewDomainError(ErrCodeIndexConsistency,
			fmt.Sprintf("index entry dimension %d does not match index dimension %d", len(e.Embedding), dimensions))
	}

	return nil
}
