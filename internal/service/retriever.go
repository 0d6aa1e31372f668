package service

import (
	"context"
	"log"
	"strings"

	"github.com/nabobery/Neurality-Take-Home-Assignment/internal/domain"
	"github.com/nabobery/Neurality-Take-Home-Assignment/internal/index"
	"github.com/nabobery/Neurality-Take-Home-Assignment/internal/telemetry"
)

// EmbeddingClient defines the interface for generating embeddings
type EmbeddingClient interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	Dimensions() int
}

// GenerationClient defines the interface for text generation
type GenerationClient interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// RetrieverConfig controls retrieval behavior
type RetrieverConfig struct {
	// DefaultTopK is used when the caller does not request a top-k.
	DefaultTopK int
	// HyDE enables hypothetical document expansion of the query before
	// embedding. Falls back to the plain query on generation failure.
	HyDE bool
}

// DefaultRetrieverConfig matches the original product defaults
func DefaultRetrieverConfig() RetrieverConfig {
	return RetrieverConfig{DefaultTopK: 5}
}

// Retriever turns a natural-language query into a ranked set of supporting
// passages by embedding the query and searching the vector index.
type Retriever struct {
	embedder EmbeddingClient
	idx      index.Index
	gen      GenerationClient // used only for HyDE expansion, may be nil
	cfg      RetrieverConfig
}

// NewRetriever creates a new Retriever instance
func NewRetriever(embedder EmbeddingClient, idx index.Index, cfg RetrieverConfig) *Retriever {
	if cfg.DefaultTopK <= 0 {
		cfg.DefaultTopK = DefaultRetrieverConfig().DefaultTopK
	}
	return &Retriever{embedder: embedder, idx: idx, cfg: cfg}
}

// NewRetrieverWithHyDE creates a Retriever that expands queries via the
// generation client before embedding
func NewRetrieverWithHyDE(embedder EmbeddingClient, idx index.Index, gen GenerationClient, cfg RetrieverConfig) *Retriever {
	r := NewRetriever(embedder, idx, cfg)
	r.gen = gen
	return r
}

// Retrieve embeds the query and returns the topK most similar indexed
// chunks, optionally restricted to documentFilter. An empty index or a
// filter matching nothing yields an empty result, not an error; embedding
// and index failures propagate unchanged.
func (r *Retriever) Retrieve(ctx context.Context, query string, topK int, documentFilter []string) (*domain.RetrievalResult, error) {
	ctx, span := telemetry.StartSpan(ctx, "Retriever.Retrieve", telemetry.SpanAttributes{
		Operation: "retrieve",
	})
	defer span.End()

	query = strings.TrimSpace(query)
	if query == "" {
		return nil, domain.ErrEmptyQuery
	}
	if topK <= 0 {
		topK = r.cfg.DefaultTopK
	}

	embedText := query
	if r.cfg.HyDE && r.gen != nil {
		embedText = r.expandQuery(ctx, query)
	}

	vectors, err := r.embedder.Embed(ctx, []string{embedText})
	if err != nil {
		span.SetError(err)
		return nil, err
	}

	scored, err := r.idx.Search(ctx, vectors[0], topK, newSearchFilter(documentFilter))
	if err != nil {
		span.SetError(err)
		return nil, err
	}

	return &domain.RetrievalResult{Chunks: scored}, nil
}

// expandQuery generates a hypothetical answer document and embeds it
// alongside the query, which often lands closer to relevant passages than
// the bare question.
func (r *Retriever) expandQuery(ctx context.Context, query string) string {
	prompt := "Generate a hypothetical document that is highly relevant to the following query: " + query
	expansion, err := r.gen.Generate(ctx, prompt)
	if err != nil {
		log.Printf("hyde expansion failed, falling back to plain query: %v", err)
		return query
	}
	expansion = strings.TrimSpace(expansion)
	if expansion == "" {
		return query
	}
	return query + "\n" + expansion
}

func newSearchFilter(documentIDs []string) *index.SearchFilter {
	if len(documentIDs) == 0 {
		return nil
	}
	return &index.SearchFilter{DocumentIDs: documentIDs}
}
