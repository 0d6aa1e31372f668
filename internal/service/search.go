package service

import (
	"context"
	"sort"
	"strings"

	"github.com/nabobery/Neurality-Take-Home-Assignment/internal/domain"
	"github.com/nabobery/Neurality-Take-Home-Assignment/internal/index"
	"github.com/nabobery/Neurality-Take-Home-Assignment/internal/telemetry"
)

// SearchMode selects how passages are ranked
type SearchMode string

const (
	SearchModeSemantic SearchMode = "semantic"
	SearchModeLexical  SearchMode = "lexical"
	SearchModeHybrid   SearchMode = "hybrid"
)

const (
	defaultCandidateMultiplier = 4
	defaultMinCandidates       = 20
	defaultMaxCandidates       = 200

	rrfK           = 60
	semanticWeight = 1.0
	lexicalWeight  = 0.85
)

func normalizeSearchMode(mode SearchMode) SearchMode {
	switch strings.ToLower(strings.TrimSpace(string(mode))) {
	case string(SearchModeSemantic):
		return SearchModeSemantic
	case string(SearchModeLexical):
		return SearchModeLexical
	default:
		return SearchModeHybrid
	}
}

// SearchInput represents a passage search request
type SearchInput struct {
	Query       string
	Limit       int
	Mode        SearchMode
	DocumentIDs []string
}

// SearchService exposes raw passage search over the index: semantic,
// lexical, or the two fused with Reciprocal Rank Fusion.
type SearchService struct {
	embedder EmbeddingClient
	idx      index.Index
}

// NewSearchService creates a new SearchService instance
func NewSearchService(embedder EmbeddingClient, idx index.Index) *SearchService {
	return &SearchService{embedder: embedder, idx: idx}
}

// Search ranks indexed passages against the query in the requested mode
func (s *SearchService) Search(ctx context.Context, input SearchInput) (*domain.RetrievalResult, error) {
	ctx, span := telemetry.StartSpan(ctx, "SearchService.Search", telemetry.SpanAttributes{
		Operation: "search",
	})
	defer span.End()

	query := strings.TrimSpace(input.Query)
	if query == "" {
		return nil, domain.ErrEmptyQuery
	}

	limit := input.Limit
	if limit <= 0 {
		limit = DefaultRetrieverConfig().DefaultTopK
	}

	candidateLimit := limit * defaultCandidateMultiplier
	if candidateLimit < defaultMinCandidates {
		candidateLimit = defaultMinCandidates
	}
	if candidateLimit > defaultMaxCandidates {
		candidateLimit = defaultMaxCandidates
	}

	mode := normalizeSearchMode(input.Mode)
	filter := newSearchFilter(input.DocumentIDs)

	var semantic, lexical []domain.ScoredChunk
	var err error

	if mode != SearchModeLexical {
		vectors, embedErr := s.embedder.Embed(ctx, []string{query})
		if embedErr != nil {
			span.SetError(embedErr)
			return nil, embedErr
		}
		semantic, err = s.idx.Search(ctx, vectors[0], candidateLimit, filter)
		if err != nil {
			span.SetError(err)
			return nil, err
		}
	}

	if mode != SearchModeSemantic {
		lexical, err = s.idx.SearchLexical(ctx, query, candidateLimit, filter)
		if err != nil {
			span.SetError(err)
			return nil, err
		}
	}

	var ranked []domain.ScoredChunk
	switch mode {
	case SearchModeSemantic:
		ranked = semantic
	case SearchModeLexical:
		ranked = lexical
	default:
		ranked = fuseRRF(semantic, lexical)
	}

	if len(ranked) > limit {
		ranked = ranked[:limit]
	}
	return &domain.RetrievalResult{Chunks: ranked}, nil
}

// fuseRRF combines two rankings with weighted Reciprocal Rank Fusion:
// score = sum of weight / (k + rank) over the lists a chunk appears in.
// Ties keep semantic-list order.
func fuseRRF(semantic, lexical []domain.ScoredChunk) []domain.ScoredChunk {
	type fused struct {
		chunk domain.ScoredChunk
		score float64
		seen  int
	}

	byID := make(map[string]*fused, len(semantic)+len(lexical))
	order := make([]string, 0, len(semantic)+len(lexical))

	add := func(results []domain.ScoredChunk, weight float64) {
		for rank, c := range results {
			f, ok := byID[c.ChunkID]
			if !ok {
				f = &fused{chunk: c, seen: len(order)}
				byID[c.ChunkID] = f
				order = append(order, c.ChunkID)
			}
			f.score += weight / float64(rrfK+rank+1)
		}
	}
	add(semantic, semanticWeight)
	add(lexical, lexicalWeight)

	merged := make([]*fused, 0, len(order))
	for _, id := range order {
		merged = append(merged, byID[id])
	}
	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].score > merged[j].score
	})

	out := make([]domain.ScoredChunk, len(merged))
	for i, f := range merged {
		out[i] = f.chunk
		out[i].Score = float32(f.score)
	}
	return out
}
