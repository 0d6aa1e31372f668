package service

import (
	"context"

	"github.com/nabobery/Neurality-Take-Home-Assignment/internal/domain"
	"github.com/nabobery/Neurality-Take-Home-Assignment/internal/telemetry"
)

// QAService answers natural-language questions over indexed documents by
// chaining retrieval and answer composition.
type QAService struct {
	retriever *Retriever
	composer  *Composer
}

// NewQAService creates a new QAService instance
func NewQAService(retriever *Retriever, composer *Composer) *QAService {
	return &QAService{retriever: retriever, composer: composer}
}

// Ask retrieves the topK passages most relevant to the question (optionally
// restricted to documentFilter) and generates a grounded, cited answer.
// When nothing relevant is indexed the model is instructed to state that
// the context is insufficient; that text comes back as a normal Answer.
func (s *QAService) Ask(ctx context.Context, question string, topK int, documentFilter []string) (*domain.Answer, error) {
	ctx, span := telemetry.StartSpan(ctx, "QAService.Ask", telemetry.SpanAttributes{
		Operation: "ask",
	})
	defer span.End()

	retrieval, err := s.retriever.Retrieve(ctx, question, topK, documentFilter)
	if err != nil {
		span.SetError(err)
		return nil, err
	}

	answer, err := s.composer.Answer(ctx, question, retrieval)
	if err != nil {
		span.SetError(err)
		return nil, err
	}

	return answer, nil
}
