package service

import (
	"unicode"

	"github.com/nabobery/Neurality-Take-Home-Assignment/internal/domain"
)

// ChunkConfig controls how document text is split into passages.
type ChunkConfig struct {
	// ChunkSize is the target chunk length in runes.
	ChunkSize int
	// ChunkOverlap is how many runes each chunk shares with its predecessor.
	// Must be smaller than ChunkSize.
	ChunkOverlap int
	// Lookback bounds the backscan for a clean break point near the end of
	// a chunk before falling back to a hard cut.
	Lookback int
}

// DefaultChunkConfig matches the original product defaults.
func DefaultChunkConfig() ChunkConfig {
	return ChunkConfig{
		ChunkSize:    1000,
		ChunkOverlap: 200,
		Lookback:     100,
	}
}

// Validate rejects configurations the chunker cannot make progress with
func (c ChunkConfig) Validate() error {
	if c.ChunkSize <= 0 {
		return domain.NewDomainError(domain.ErrCodeValidation, "chunk size must be greater than 0")
	}
	if c.ChunkOverlap < 0 || c.ChunkOverlap >= c.ChunkSize {
		return domain.ErrInvalidChunkConfig
	}
	if c.Lookback < 0 {
		return domain.NewDomainError(domain.ErrCodeValidation, "chunk lookback cannot be negative")
	}
	return nil
}

// Chunker splits extracted document text into overlapping passages.
type Chunker struct {
	cfg ChunkConfig
}

// NewChunker creates a Chunker, rejecting invalid configuration before any
// processing starts.
func NewChunker(cfg ChunkConfig) (*Chunker, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Chunker{cfg: cfg}, nil
}

// Chunk slides a window of ChunkSize over the text, advancing by
// ChunkSize-ChunkOverlap and snapping each cut to the nearest preceding
// sentence or whitespace boundary within the lookback window. Chunks carry
// rune offsets into the original text and are never trimmed, so their
// concatenation (accounting for overlap) reconstructs the input exactly.
//
// Empty text yields an empty slice; text no longer than ChunkSize yields a
// single chunk covering the whole text.
func (c *Chunker) Chunk(documentID, text string) []domain.Chunk {
	if text == "" {
		return []domain.Chunk{}
	}

	runes := []rune(text)
	if len(runes) <= c.cfg.ChunkSize {
		return []domain.Chunk{{
			DocumentID: documentID,
			Ordinal:    0,
			Start:      0,
			End:        len(runes),
			Text:       text,
		}}
	}

	chunks := make([]domain.Chunk, 0, len(runes)/(c.cfg.ChunkSize-c.cfg.ChunkOverlap)+1)
	start := 0
	for start < len(runes) {
		end := start + c.cfg.ChunkSize
		if end > len(runes) {
			end = len(runes)
		}

		if end < len(runes) {
			end = c.snapBoundary(runes, start, end)
		}

		chunks = append(chunks, domain.Chunk{
			DocumentID: documentID,
			Ordinal:    len(chunks),
			Start:      start,
			End:        end,
			Text:       string(runes[start:end]),
		})

		if end >= len(runes) {
			break
		}
		start = end - c.cfg.ChunkOverlap
	}

	return chunks
}

// snapBoundary backscans from end for a clean break point: first a sentence
// boundary, then any whitespace, bounded by the lookback window and a floor
// that keeps the next window advancing. Hard cut when no boundary is found.
func (c *Chunker) snapBoundary(runes []rune, start, end int) int {
	low := end - c.cfg.Lookback
	if floor := start + c.cfg.ChunkOverlap + 1; low < floor {
		low = floor
	}
	if low >= end {
		return end
	}

	for i := end; i > low; i-- {
		if isSentenceBoundary(runes[i-1]) {
			return i
		}
	}
	for i := end; i > low; i-- {
		if unicode.IsSpace(runes[i-1]) {
			return i
		}
	}
	return end
}

func isSentenceBoundary(r rune) bool {
	switch r {
	case '.', '!', '?', '\n':
		return true
	}
	return false
}
