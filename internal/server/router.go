package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/nabobery/Neurality-Take-Home-Assignment/internal/api"
	"github.com/nabobery/Neurality-Take-Home-Assignment/internal/api/handlers"
	"github.com/nabobery/Neurality-Take-Home-Assignment/internal/api/middleware"
)

type RouterConfig struct {
	DocumentHandler *handlers.DocumentHandler
	QAHandler       *handlers.QAHandler
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	// Uploads carry whole documents, so the cap is well above the usual
	// JSON request size.
	const maxBodyBytes int64 = 20 * 1024 * 1024

	r.Use(middleware.RequestID)
	r.Use(middleware.SentryMiddleware)
	r.Use(middleware.AccessLog)
	r.Use(middleware.MaxBodyBytes(maxBodyBytes))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		api.Success(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/documents", func(r chi.Router) {
		r.Post("/", cfg.DocumentHandler.Upload)
		r.Get("/", cfg.DocumentHandler.List)
		r.Get("/{id}", cfg.DocumentHandler.Get)
		r.Delete("/{id}", cfg.DocumentHandler.Delete)
	})

	r.Post("/ask", cfg.QAHandler.Ask)
	r.Post("/search", cfg.QAHandler.Search)

	return r
}
