package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/starford/aozoraconv/internal/bookservice"
)

// NewRouter creates a chi router with all API routes mounted.
// authEnabled controls whether Bearer token auth is enforced.
// sseHandler, if non-nil, is mounted at GET /events inside the auth group.
func NewRouter(svc *bookservice.Service, authEnabled bool, token string, sseHandler http.Handler) chi.Router {
	h := NewHandler(svc)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(authEnabled, token))

	r.Get("/books", h.ListBooks)
	r.Get("/books/{id}", h.GetBook)
	r.Get("/books/{id}/content", h.GetContent)
	r.Get("/books/{id}/text", h.GetText)
	r.Get("/books/{id}/warnings", h.GetWarnings)
	r.Get("/books/{id}/figures/{name}", h.GetFigure)

	r.Get("/failures", h.ListFailures)
	r.Get("/search", h.Search)

	if sseHandler != nil {
		r.Get("/events", sseHandler.ServeHTTP)
	}

	return r
}
