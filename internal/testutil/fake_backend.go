package testutil

import (
	"context"
	"hash/fnv"
	"math"
	"sync"

	"github.com/nabobery/Neurality-Take-Home-Assignment/internal/domain"
	"github.com/nabobery/Neurality-Take-Home-Assignment/internal/index"
)

// FakeBackend is a deterministic embed/generate backend for tests. Vectors
// are normalized bag-of-words hashes, so identical texts embed identically
// and texts sharing words score higher cosine similarity than unrelated
// ones. Generation echoes a canned answer and records every prompt.
type FakeBackend struct {
	Dim int

	// EmbedErr and GenerateErr, when set, fail the respective call.
	EmbedErr    error
	GenerateErr error

	// GenerateText is returned by Generate when set.
	GenerateText string

	mu            sync.Mutex
	embedCalls    int
	embeddedTexts []string
	prompts       []string
}

// NewFakeBackend creates a fake backend with the given vector dimension
func NewFakeBackend(dim int) *FakeBackend {
	return &FakeBackend{Dim: dim}
}

// Dimensions returns the fixed vector dimension
func (f *FakeBackend) Dimensions() int {
	return f.Dim
}

// Embed returns one deterministic vector per text, preserving order
func (f *FakeBackend) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	f.mu.Lock()
	f.embedCalls++
	f.embeddedTexts = append(f.embeddedTexts, texts...)
	f.mu.Unlock()

	if f.EmbedErr != nil {
		return nil, domain.NewEmbeddingBackendError(f.EmbedErr)
	}

	vectors := make([][]float32, len(texts))
	for i, text := range texts {
		if text == "" {
			return nil, domain.ErrEmptyInputText
		}
		vectors[i] = f.vectorFor(text)
	}
	return vectors, nil
}

// Generate returns the canned answer, recording the prompt
func (f *FakeBackend) Generate(ctx context.Context, prompt string) (string, error) {
	f.mu.Lock()
	f.prompts = append(f.prompts, prompt)
	f.mu.Unlock()

	if f.GenerateErr != nil {
		return "", domain.NewGenerationBackendError(f.GenerateErr)
	}
	if f.GenerateText != "" {
		return f.GenerateText, nil
	}
	return "generated answer", nil
}

// EmbedCalls returns how many Embed calls were made
func (f *FakeBackend) EmbedCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.embedCalls
}

// EmbeddedTexts returns every text passed to Embed, in order
func (f *FakeBackend) EmbeddedTexts() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.embeddedTexts))
	copy(out, f.embeddedTexts)
	return out
}

// Prompts returns every prompt passed to Generate, in order
func (f *FakeBackend) Prompts() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.prompts))
	copy(out, f.prompts)
	return out
}

// vectorFor hashes each word into a bucket and normalizes the result
func (f *FakeBackend) vectorFor(text string) []float32 {
	v := make([]float32, f.Dim)
	word := make([]rune, 0, 16)

	flush := func() {
		if len(word) == 0 {
			return
		}
		h := fnv.New32a()
		h.Write([]byte(string(word)))
		v[int(h.Sum32())%f.Dim]++
		word = word[:0]
	}

	for _, r := range text {
		if r == ' ' || r == '\n' || r == '\t' || r == '.' || r == ',' {
			flush()
			continue
		}
		word = append(word, r)
	}
	flush()

	var norm float64
	for _, x := range v {
		norm += float64(x) * float64(x)
	}
	if norm == 0 {
		v[0] = 1
		return v
	}
	scale := float32(1 / math.Sqrt(norm))
	for i := range v {
		v[i] *= scale
	}
	return v
}

// MemoryReporter records document status transitions in order (for testing
// the pipeline's outbound reporting).
type MemoryReporter struct {
	mu       sync.Mutex
	Statuses []domain.IngestionStatus
	Err      error
}

// UpdateStatus implements service.StatusReporter
func (r *MemoryReporter) UpdateStatus(ctx context.Context, doc *domain.Document) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return r.Err
	}
	r.Statuses = append(r.Statuses, doc.Status)
	return nil
}

// FailingIndex wraps an index and fails Upsert after delegating writes, for
// exercising compensating deletes.
type FailingIndex struct {
	index.Index
	UpsertErr      error
	UpsertDelegate bool // when true, apply the upsert before failing
}

// Upsert optionally applies the batch, then returns the configured error
func (f *FailingIndex) Upsert(ctx context.Context, entries []domain.IndexEntry) error {
	if f.UpsertDelegate {
		if err := f.Index.Upsert(ctx, entries); err != nil {
			return err
		}
	}
	if f.UpsertErr != nil {
		return f.UpsertErr
	}
	return nil
}
