package index

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nabobery/Neurality-Take-Home-Assignment/internal/domain"
)

func entry(chunkID, docID string, embedding []float32) domain.IndexEntry {
	return domain.IndexEntry{
		ChunkRef: domain.ChunkRef{
			ChunkID:    chunkID,
			DocumentID: docID,
			Filename:   "test.txt",
			Content:    "content of " + chunkID,
		},
		Embedding: embedding,
	}
}

func TestMemoryIndexRoundTrip(t *testing.T) {
	idx := NewMemoryIndex(3)
	ctx := context.Background()

	require.NoError(t, idx.Upsert(ctx, []domain.IndexEntry{
		entry("chunk-1", "doc-1", []float32{1, 0, 0}),
		entry("chunk-2", "doc-1", []float32{0, 1, 0}),
		entry("chunk-3", "doc-2", []float32{0, 0, 1}),
	}))

	results, err := idx.Search(ctx, []float32{0, 1, 0}, 3, nil)
	require.NoError(t, err)
	require.Len(t, results, 3)

	// The entry's own vector comes back first with cosine self-similarity 1.
	assert.Equal(t, "chunk-2", results[0].ChunkID)
	assert.InDelta(t, 1.0, float64(results[0].Score), 1e-6)
	assert.Greater(t, results[0].Score, results[1].Score)
}

func TestMemoryIndexTopKBounds(t *testing.T) {
	idx := NewMemoryIndex(2)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		require.NoError(t, idx.Upsert(ctx, []domain.IndexEntry{
			entry(fmt.Sprintf("chunk-%d", i), "doc-1", []float32{float32(i + 1), 1}),
		}))
	}

	results, err := idx.Search(ctx, []float32{1, 0}, 3, nil)
	require.NoError(t, err)
	assert.Len(t, results, 3)

	// Descending score order.
	for i := 1; i < len(results); i++ {
		assert.GreaterOrEqual(t, results[i-1].Score, results[i].Score)
	}

	// Fewer eligible entries than top-k returns all of them.
	results, err = idx.Search(ctx, []float32{1, 0}, 50, nil)
	require.NoError(t, err)
	assert.Len(t, results, 5)

	_, err = idx.Search(ctx, []float32{1, 0}, 0, nil)
	assert.ErrorIs(t, err, domain.ErrInvalidTopK)
}

func TestMemoryIndexStableTieBreak(t *testing.T) {
	idx := NewMemoryIndex(2)
	ctx := context.Background()

	// All three vectors are identical, so scores tie exactly and insertion
	// order must decide.
	require.NoError(t, idx.Upsert(ctx, []domain.IndexEntry{
		entry("chunk-a", "doc-1", []float32{1, 1}),
		entry("chunk-b", "doc-1", []float32{1, 1}),
		entry("chunk-c", "doc-1", []float32{1, 1}),
	}))

	for i := 0; i < 3; i++ {
		results, err := idx.Search(ctx, []float32{1, 1}, 3, nil)
		require.NoError(t, err)
		require.Len(t, results, 3)
		assert.Equal(t, "chunk-a", results[0].ChunkID)
		assert.Equal(t, "chunk-b", results[1].ChunkID)
		assert.Equal(t, "chunk-c", results[2].ChunkID)
	}
}

func TestMemoryIndexRejectsMixedDimensionBatch(t *testing.T) {
	idx := NewMemoryIndex(3)
	ctx := context.Background()

	batch := []domain.IndexEntry{
		entry("chunk-1", "doc-1", []float32{1, 0, 0}),
		entry("chunk-2", "doc-1", []float32{0, 1, 0}),
		entry("chunk-3", "doc-1", []float32{0, 0, 1}),
		entry("chunk-4", "doc-1", []float32{1, 1}), // wrong dimension
		entry("chunk-5", "doc-1", []float32{1, 1, 1}),
	}

	err := idx.Upsert(ctx, batch)
	require.Error(t, err)
	assert.Equal(t, domain.ErrCodeIndexConsistency, domain.ErrorCode(err))

	// Nothing from the batch was persisted.
	assert.Equal(t, 0, idx.Len())
}

func TestMemoryIndexUpsertReplaces(t *testing.T) {
	idx := NewMemoryIndex(2)
	ctx := context.Background()

	require.NoError(t, idx.Upsert(ctx, []domain.IndexEntry{
		entry("chunk-1", "doc-1", []float32{1, 0}),
	}))
	require.NoError(t, idx.Upsert(ctx, []domain.IndexEntry{
		entry("chunk-1", "doc-1", []float32{0, 1}),
	}))

	assert.Equal(t, 1, idx.Len())

	results, err := idx.Search(ctx, []float32{0, 1}, 1, nil)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.InDelta(t, 1.0, float64(results[0].Score), 1e-6)
}

func TestMemoryIndexDelete(t *testing.T) {
	idx := NewMemoryIndex(2)
	ctx := context.Background()

	require.NoError(t, idx.Upsert(ctx, []domain.IndexEntry{
		entry("chunk-1", "doc-1", []float32{1, 0}),
		entry("chunk-2", "doc-2", []float32{0, 1}),
		entry("chunk-3", "doc-1", []float32{1, 1}),
	}))

	require.NoError(t, idx.Delete(ctx, "doc-1"))

	results, err := idx.Search(ctx, []float32{1, 0}, 10, nil)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "chunk-2", results[0].ChunkID)

	// Upsert after delete still works with a rebuilt position map.
	require.NoError(t, idx.Upsert(ctx, []domain.IndexEntry{
		entry("chunk-2", "doc-2", []float32{1, 0}),
	}))
	assert.Equal(t, 1, idx.Len())
}

func TestMemoryIndexDocumentFilter(t *testing.T) {
	idx := NewMemoryIndex(2)
	ctx := context.Background()

	require.NoError(t, idx.Upsert(ctx, []domain.IndexEntry{
		entry("chunk-1", "doc-1", []float32{1, 0}),
		entry("chunk-2", "doc-2", []float32{1, 0}),
	}))

	results, err := idx.Search(ctx, []float32{1, 0}, 10, &SearchFilter{DocumentIDs: []string{"doc-2"}})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "chunk-2", results[0].ChunkID)

	// Filter matching nothing yields an empty result, not an error.
	results, err = idx.Search(ctx, []float32{1, 0}, 10, &SearchFilter{DocumentIDs: []string{"doc-9"}})
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestMemoryIndexSearchDimensionMismatch(t *testing.T) {
	idx := NewMemoryIndex(3)
	_, err := idx.Search(context.Background(), []float32{1, 0}, 1, nil)
	assert.ErrorIs(t, err, domain.ErrDimensionMismatch)
}

func TestMemoryIndexCancelledContext(t *testing.T) {
	idx := NewMemoryIndex(2)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := idx.Upsert(ctx, []domain.IndexEntry{entry("chunk-1", "doc-1", []float32{1, 0})})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, idx.Len())
}

func TestMemoryIndexSearchLexical(t *testing.T) {
	idx := NewMemoryIndex(2)
	ctx := context.Background()

	entries := []domain.IndexEntry{
		entry("chunk-1", "doc-1", []float32{1, 0}),
		entry("chunk-2", "doc-1", []float32{0, 1}),
		entry("chunk-3", "doc-2", []float32{1, 1}),
	}
	entries[0].Content = "the Eiffel Tower stands in Paris"
	entries[1].Content = "croissants are a French pastry"
	entries[2].Content = "the Colosseum stands in Rome"

	require.NoError(t, idx.Upsert(ctx, entries))

	results, err := idx.SearchLexical(ctx, "Paris Eiffel", 10, nil)
	require.NoError(t, err)
	require.NotEmpty(t, results)
	assert.Equal(t, "chunk-1", results[0].ChunkID)

	// No term overlap yields an empty result.
	results, err = idx.SearchLexical(ctx, "quantum chromodynamics", 10, nil)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestCosineSimilarity(t *testing.T) {
	assert.InDelta(t, 1.0, float64(cosineSimilarity([]float32{1, 2, 3}, []float32{2, 4, 6})), 1e-6)
	assert.InDelta(t, 0.0, float64(cosineSimilarity([]float32{1, 0}, []float32{0, 1})), 1e-6)
	assert.InDelta(t, -1.0, float64(cosineSimilarity([]float32{1, 0}, []float32{-1, 0})), 1e-6)
	assert.Equal(t, float32(0), cosineSimilarity([]float32{0, 0}, []float32{1, 1}))
}
