package index

import (
	"context"
	"math"
	"sort"
	"sync"

	"github.com/nabobery/Neurality-Take-Home-Assignment/internal/domain"
)

// MemoryIndex is the exact brute-force reference index: a linear scan scored
// with cosine similarity and partially sorted to top-k. Safe for concurrent
// use; searches proceed while writes for unrelated documents run.
type MemoryIndex struct {
	mu         sync.RWMutex
	dimensions int
	entries    []domain.IndexEntry
	byChunkID  map[string]int // chunk ID -> position in entries
}

// NewMemoryIndex creates an empty in-memory index with the given dimension
func NewMemoryIndex(dimensions int) *MemoryIndex {
	return &MemoryIndex{
		dimensions: dimensions,
		byChunkID:  make(map[string]int),
	}
}

// Dimensions returns the configured vector dimension
func (m *MemoryIndex) Dimensions() int {
	return m.dimensions
}

// Len returns the number of stored entries
func (m *MemoryIndex) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

// Upsert inserts or replaces entries as one batch. The whole batch is
// validated before any entry is applied, so a dimension mismatch leaves the
// index untouched.
func (m *MemoryIndex) Upsert(ctx context.Context, entries []domain.IndexEntry) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	for i := range entries {
		if err := domain.ValidateIndexEntry(&entries[i], m.dimensions); err != nil {
			return err
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	for _, e := range entries {
		if pos, ok := m.byChunkID[e.ChunkID]; ok {
			m.entries[pos] = e
			continue
		}
		m.byChunkID[e.ChunkID] = len(m.entries)
		m.entries = append(m.entries, e)
	}

	return nil
}

// Search scores every eligible entry against the query vector and returns
// the top-k by descending cosine similarity. Returns all eligible entries
// when fewer than topK are stored.
func (m *MemoryIndex) Search(ctx context.Context, vector []float32, topK int, filter *SearchFilter) ([]domain.ScoredChunk, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if topK <= 0 {
		return nil, domain.ErrInvalidTopK
	}
	if len(vector) != m.dimensions {
		return nil, domain.ErrDimensionMismatch
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	scored := make([]domain.ScoredChunk, 0, len(m.entries))
	for _, e := range m.entries {
		if !filter.Matches(e.DocumentID) {
			continue
		}
		scored = append(scored, domain.ScoredChunk{
			ChunkRef: e.ChunkRef,
			Score:    cosineSimilarity(vector, e.Embedding),
		})
	}

	// Stable sort keeps insertion order on score ties, making search
	// deterministic for identical inputs.
	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Score > scored[j].Score
	})

	if len(scored) > topK {
		scored = scored[:topK]
	}
	return scored, nil
}

// SearchLexical ranks eligible entries against the query with BM25
func (m *MemoryIndex) SearchLexical(ctx context.Context, query string, limit int, filter *SearchFilter) ([]domain.ScoredChunk, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if limit <= 0 {
		return nil, domain.ErrInvalidTopK
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	eligible := make([]domain.ChunkRef, 0, len(m.entries))
	for _, e := range m.entries {
		if filter.Matches(e.DocumentID) {
			eligible = append(eligible, e.ChunkRef)
		}
	}

	return scoreBM25(query, eligible, limit), nil
}

// Delete removes all entries belonging to a document
func (m *MemoryIndex) Delete(ctx context.Context, documentID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	kept := m.entries[:0]
	for _, e := range m.entries {
		if e.DocumentID != documentID {
			kept = append(kept, e)
		}
	}
	m.entries = kept

	m.byChunkID = make(map[string]int, len(m.entries))
	for i, e := range m.entries {
		m.byChunkID[e.ChunkID] = i
	}

	return nil
}

// cosineSimilarity computes the cosine of the angle between two equal-length
// vectors. Zero vectors score 0.
func cosineSimilarity(a, b []float32) float32 {
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(normA) * math.Sqrt(normB)))
}
