package handlers

import (
	"context"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/nabobery/Neurality-Take-Home-Assignment/internal/api"
	"github.com/nabobery/Neurality-Take-Home-Assignment/internal/domain"
	"github.com/nabobery/Neurality-Take-Home-Assignment/internal/extract"
	"github.com/nabobery/Neurality-Take-Home-Assignment/internal/service"
)

// maxUploadMemory caps the multipart form's in-memory buffer; the rest
// spills to temp files.
const maxUploadMemory = 8 << 20

type DocumentService interface {
	Submit(ctx context.Context, input service.SubmitInput) (*domain.Document, error)
	Get(ctx context.Context, id string) (*domain.Document, error)
	List(ctx context.Context, input service.ListInput) (*service.ListOutput, error)
	Delete(ctx context.Context, id string) error
}

type DocumentHandler struct {
	svc DocumentService
}

func NewDocumentHandler(svc DocumentService) *DocumentHandler {
	return &DocumentHandler{svc: svc}
}

type DocumentResponse struct {
	ID         string `json:"id"`
	Filename   string `json:"filename"`
	Status     string `json:"status"`
	FailReason string `json:"fail_reason,omitempty"`
	ChunkCount int    `json:"chunk_count"`
	CreatedAt  string `json:"created_at"`
	UpdatedAt  string `json:"updated_at"`
}

func documentToResponse(d *domain.Document) *DocumentResponse {
	return &DocumentResponse{
		ID:         d.ID,
		Filename:   d.Filename,
		Status:     string(d.Status),
		FailReason: d.FailReason,
		ChunkCount: d.ChunkCount,
		CreatedAt:  d.CreatedAt.Format("2006-01-02T15:04:05Z"),
		UpdatedAt:  d.UpdatedAt.Format("2006-01-02T15:04:05Z"),
	}
}

type ListDocumentsResponse struct {
	Items   []*DocumentResponse `json:"items"`
	Cursor  string              `json:"cursor,omitempty"`
	HasMore bool                `json:"has_more"`
}

// Upload accepts a multipart form with a "file" field, extracts its text,
// and submits it for ingestion. Returns 202: ingestion completes in the
// background and the document's status reports progress.
func (h *DocumentHandler) Upload(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadMemory); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid multipart form")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		api.HandleError(w, domain.ErrNoFileProvided)
		return
	}
	defer file.Close()

	raw, err := io.ReadAll(file)
	if err != nil {
		api.Error(w, http.StatusBadRequest, "failed to read uploaded file")
		return
	}

	contentType := header.Header.Get("Content-Type")
	text, err := extract.Extract(header.Filename, contentType, raw)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	doc, err := h.svc.Submit(r.Context(), service.SubmitInput{
		Filename:    header.Filename,
		RawBytes:    raw,
		ContentType: contentType,
		Text:        text,
	})
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusAccepted, documentToResponse(doc))
}

func (h *DocumentHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		api.Error(w, http.StatusBadRequest, "id is required")
		return
	}

	doc, err := h.svc.Get(r.Context(), id)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, documentToResponse(doc))
}

func (h *DocumentHandler) List(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed <= 0 {
			api.Error(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = parsed
	}

	out, err := h.svc.List(r.Context(), service.ListInput{
		Cursor: r.URL.Query().Get("cursor"),
		Limit:  limit,
	})
	if err != nil {
		api.HandleError(w, err)
		return
	}

	resp := &ListDocumentsResponse{
		Items:   make([]*DocumentResponse, len(out.Items)),
		Cursor:  out.Cursor,
		HasMore: out.HasMore,
	}
	for i, d := range out.Items {
		resp.Items[i] = documentToResponse(d)
	}

	api.Success(w, http.StatusOK, resp)
}

func (h *DocumentHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		api.Error(w, http.StatusBadRequest, "id is required")
		return
	}

	if err := h.svc.Delete(r.Context(), id); err != nil {
		api.HandleError(w, err)
		return
	}

	api.JSON(w, http.StatusNoContent, nil)
}
