package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/nabobery/Neurality-Take-Home-Assignment/internal/api"
	"github.com/nabobery/Neurality-Take-Home-Assignment/internal/domain"
	"github.com/nabobery/Neurality-Take-Home-Assignment/internal/service"
)

type QAService interface {
	Ask(ctx context.Context, question string, topK int, documentFilter []string) (*domain.Answer, error)
}

type SearchService interface {
	Search(ctx context.Context, input service.SearchInput) (*domain.RetrievalResult, error)
}

type QAHandler struct {
	qa     QAService
	search SearchService
}

func NewQAHandler(qa QAService, search SearchService) *QAHandler {
	return &QAHandler{qa: qa, search: search}
}

type AskRequest struct {
	Question    string   `json:"question"`
	TopK        int      `json:"top_k,omitempty"`
	DocumentIDs []string `json:"document_ids,omitempty"`
}

type SourceResponse struct {
	ChunkID    string `json:"chunk_id"`
	DocumentID string `json:"document_id"`
	Filename   string `json:"filename"`
	Ordinal    int    `json:"ordinal"`
	Content    string `json:"content"`
}

type AskResponse struct {
	Answer  string           `json:"answer"`
	Sources []SourceResponse `json:"sources"`
}

func sourceToResponse(ref domain.ChunkRef) SourceResponse {
	return SourceResponse{
		ChunkID:    ref.ChunkID,
		DocumentID: ref.DocumentID,
		Filename:   ref.Filename,
		Ordinal:    ref.Ordinal,
		Content:    ref.Content,
	}
}

func (h *QAHandler) Ask(w http.ResponseWriter, r *http.Request) {
	var req AskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.TopK < 0 {
		api.HandleError(w, domain.ErrInvalidTopK)
		return
	}

	answer, err := h.qa.Ask(r.Context(), req.Question, req.TopK, req.DocumentIDs)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	resp := AskResponse{
		Answer:  answer.Text,
		Sources: make([]SourceResponse, len(answer.Sources)),
	}
	for i, src := range answer.Sources {
		resp.Sources[i] = sourceToResponse(src)
	}

	api.Success(w, http.StatusOK, resp)
}

type SearchRequest struct {
	Query       string   `json:"query"`
	Limit       int      `json:"limit,omitempty"`
	Mode        string   `json:"mode,omitempty"`
	DocumentIDs []string `json:"document_ids,omitempty"`
}

type SearchResultResponse struct {
	SourceResponse
	Score float32 `json:"score"`
}

type SearchResponse struct {
	Results []SearchResultResponse `json:"results"`
}

func (h *QAHandler) Search(w http.ResponseWriter, r *http.Request) {
	var req SearchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	result, err := h.search.Search(r.Context(), service.SearchInput{
		Query:       req.Query,
		Limit:       req.Limit,
		Mode:        service.SearchMode(req.Mode),
		DocumentIDs: req.DocumentIDs,
	})
	if err != nil {
		api.HandleError(w, err)
		return
	}

	resp := SearchResponse{Results: make([]SearchResultResponse, len(result.Chunks))}
	for i, c := range result.Chunks {
		resp.Results[i] = SearchResultResponse{
			SourceResponse: sourceToResponse(c.ChunkRef),
			Score:          c.Score,
		}
	}

	api.Success(w, http.StatusOK, resp)
}
