package index

import (
	"math"
	"sort"
	"strings"
	"unicode"

	"github.com/nabobery/Neurality-Take-Home-Assignment/internal/domain"
)

// BM25 parameters, standard Okapi defaults.
const (
	bm25K1 = 1.2
	bm25B  = 0.75
)

// tokenize lowercases and splits on non-alphanumeric runes
func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// scoreBM25 ranks chunks against the query with Okapi BM25 and returns the
// top results by descending score, insertion order on ties. Chunks scoring
// zero are omitted.
func scoreBM25(query string, chunks []domain.ChunkRef, limit int) []domain.ScoredChunk {
	queryTerms := tokenize(query)
	if len(queryTerms) == 0 || len(chunks) == 0 {
		return []domain.ScoredChunk{}
	}

	termFreqs := make([]map[string]int, len(chunks))
	docLens := make([]int, len(chunks))
	totalLen := 0
	docFreq := make(map[string]int)

	for i, c := range chunks {
		tokens := tokenize(c.Content)
		tf := make(map[string]int, len(tokens))
		for _, tok := range tokens {
			tf[tok]++
		}
		termFreqs[i] = tf
		docLens[i] = len(tokens)
		totalLen += len(tokens)
		for tok := range tf {
			docFreq[tok]++
		}
	}

	avgLen := float64(totalLen) / float64(len(chunks))
	if avgLen == 0 {
		return []domain.ScoredChunk{}
	}

	n := float64(len(chunks))
	scored := make([]domain.ScoredChunk, 0, len(chunks))
	for i, c := range chunks {
		var score float64
		for _, term := range queryTerms {
			tf := float64(termFreqs[i][term])
			if tf == 0 {
				continue
			}
			df := float64(docFreq[term])
			idf := math.Log(1 + (n-df+0.5)/(df+0.5))
			norm := tf * (bm25K1 + 1) / (tf + bm25K1*(1-bm25B+bm25B*float64(docLens[i])/avgLen))
			score += idf * norm
		}
		if score > 0 {
			scored = append(scored, domain.ScoredChunk{ChunkRef: c, Score: float32(score)})
		}
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Score > scored[j].Score
	})

	if len(scored) > limit {
		scored = scored[:limit]
	}
	return scored
}
