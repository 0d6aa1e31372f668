package service

import (
	"context"
	"fmt"
	"strings"
	"unicode"

	"github.com/nabobery/Neurality-Take-Home-Assignment/internal/domain"
	"github.com/nabobery/Neurality-Take-Home-Assignment/internal/telemetry"
)

const (
	// answerInstruction pins the model to the retrieved passages. Missing
	// context is answered in natural language, never as an error.
	answerInstruction = "Answer the question using only the context passages below. " +
		"Each passage is tagged with a citation marker. If the passages do not " +
		"contain the information needed, state clearly that the provided context " +
		"is insufficient to answer instead of guessing."

	noContextNote = "No relevant context passages were found in the knowledge base."

	// truncationLookback bounds the backscan for a clean boundary when the
	// sole remaining passage must be cut to fit the budget.
	truncationLookback = 200
)

// ComposerConfig controls prompt assembly
type ComposerConfig struct {
	// MaxContextChars is the budget for concatenated passages, a character
	// proxy for the generation backend's context limit.
	MaxContextChars int
}

// DefaultComposerConfig provides a budget comfortably inside common model
// context windows
func DefaultComposerConfig() ComposerConfig {
	return ComposerConfig{MaxContextChars: 12000}
}

// Composer builds a grounded prompt from retrieved passages and a question,
// invokes the generation backend once, and returns a cited answer.
type Composer struct {
	gen GenerationClient
	cfg ComposerConfig
}

// NewComposer creates a new Composer instance
func NewComposer(gen GenerationClient, cfg ComposerConfig) *Composer {
	if cfg.MaxContextChars <= 0 {
		cfg.MaxContextChars = DefaultComposerConfig().MaxContextChars
	}
	return &Composer{gen: gen, cfg: cfg}
}

// Answer composes the prompt and generates a grounded answer. Passages over
// the context budget are dropped from the lowest-scored end; the top-scored
// passage is always retained, truncated on a clean boundary as a last
// resort. Sources lists the passages that made it into the prompt, in rank
// order.
func (c *Composer) Answer(ctx context.Context, query string, retrieval *domain.RetrievalResult) (*domain.Answer, error) {
	ctx, span := telemetry.StartSpan(ctx, "Composer.Answer", telemetry.SpanAttributes{
		Operation: "answer",
	})
	defer span.End()

	query = strings.TrimSpace(query)
	if query == "" {
		return nil, domain.ErrEmptyQuery
	}

	passages := c.fitBudget(retrieval)
	prompt := buildPrompt(query, passages)

	text, err := c.gen.Generate(ctx, prompt)
	if err != nil {
		span.SetError(err)
		return nil, err
	}

	sources := make([]domain.ChunkRef, len(passages))
	for i, p := range passages {
		sources[i] = p.ChunkRef
	}

	return &domain.Answer{
		Text:    strings.TrimSpace(text),
		Sources: sources,
	}, nil
}

// fitBudget trims the ranked passages to the context budget, dropping from
// the lowest-scored end first.
func (c *Composer) fitBudget(retrieval *domain.RetrievalResult) []domain.ScoredChunk {
	if retrieval.Empty() {
		return nil
	}

	passages := make([]domain.ScoredChunk, len(retrieval.Chunks))
	copy(passages, retrieval.Chunks)

	total := 0
	for _, p := range passages {
		total += len([]rune(p.Content))
	}
	for len(passages) > 1 && total > c.cfg.MaxContextChars {
		last := passages[len(passages)-1]
		total -= len([]rune(last.Content))
		passages = passages[:len(passages)-1]
	}

	// The top passage alone may still exceed the budget; truncating it on a
	// clean boundary is the last resort.
	if len(passages) == 1 && len([]rune(passages[0].Content)) > c.cfg.MaxContextChars {
		passages[0].Content = truncateAtBoundary(passages[0].Content, c.cfg.MaxContextChars)
	}

	return passages
}

// buildPrompt assembles instruction, tagged passages, and question
func buildPrompt(query string, passages []domain.ScoredChunk) string {
	var b strings.Builder
	b.WriteString(answerInstruction)
	b.WriteString("\n\nContext passages:\n")

	if len(passages) == 0 {
		b.WriteString(noContextNote)
		b.WriteString("\n")
	}
	for i, p := range passages {
		fmt.Fprintf(&b, "[%d] (%s, chunk %d) %s\n\n", i+1, p.Filename, p.Ordinal, p.Content)
	}

	b.WriteString("\nQuestion:\n")
	b.WriteString(query)
	b.WriteString("\n\nAnswer:")
	return b.String()
}

// truncateAtBoundary cuts text to at most limit runes, snapping to the
// nearest preceding sentence or whitespace boundary within the lookback
// window, hard cut otherwise.
func truncateAtBoundary(text string, limit int) string {
	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}

	low := limit - truncationLookback
	if low < 0 {
		low = 0
	}

	for i := limit; i > low; i-- {
		if isSentenceBoundary(runes[i-1]) {
			return string(runes[:i])
		}
	}
	for i := limit; i > low; i-- {
		if unicode.IsSpace(runes[i-1]) {
			return string(runes[:i])
		}
	}
	return string(runes[:limit])
}
