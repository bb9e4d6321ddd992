package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/starford/aozoraconv/internal/apperr"
	"github.com/starford/aozoraconv/internal/bookservice"
	"github.com/starford/aozoraconv/internal/corpus"
)

// Handler holds API route handlers.
type Handler struct {
	svc *bookservice.Service
}

// NewHandler creates a new Handler.
func NewHandler(svc *bookservice.Service) *Handler {
	return &Handler{svc: svc}
}

// fail maps a service error to a response. Lookups of unknown books are 404,
// everything else is logged and reported as 500.
func fail(w http.ResponseWriter, op, id string, err error) {
	if errors.Is(err, apperr.ErrNotFound) {
		writeJSON(w, http.StatusNotFound, errorBody("not found"))
		return
	}
	slog.Error(op+" failed", slog.String("book_id", id), slog.String("error", err.Error()))
	writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
}

// ListBooks handles GET /api/books.
//
//	@Summary		List converted books with optional pagination and author filter
//	@Tags			books
//	@Produce		json
//	@Param			limit	query		int		false	"Page size"
//	@Param			offset	query		int		false	"Page offset"
//	@Param			author	query		string	false	"Filter by author id"
//	@Success		200		{object}	BookListResponse
//	@Security		BearerAuth
//	@Router			/books [get]
func (h *Handler) ListBooks(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	offset, _ := strconv.Atoi(q.Get("offset"))
	if offset < 0 {
		offset = 0
	}

	items, total, err := h.svc.ListBooks(r.Context(), limit, offset, q.Get("author"))
	if err != nil {
		fail(w, "list books", "", err)
		return
	}
	writeJSON(w, http.StatusOK, BookListResponse{Books: items, Total: total})
}

// GetBook handles GET /api/books/{id}.
//
//	@Summary		Get the catalog record of a book
//	@Tags			books
//	@Produce		json
//	@Param			id	path		string	true	"Book id"
//	@Success		200	{object}	BookDetail
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/books/{id} [get]
func (h *Handler) GetBook(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	book, err := h.svc.GetBook(r.Context(), id)
	if err != nil {
		fail(w, "get book", id, err)
		return
	}
	writeJSON(w, http.StatusOK, book)
}

// GetContent handles GET /api/books/{id}/content.
//
//	@Summary		Get the converted segment tree of a book
//	@Tags			books
//	@Produce		json
//	@Param			id	path		string	true	"Book id"
//	@Success		200	{object}	BookContent
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/books/{id}/content [get]
func (h *Handler) GetContent(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	content, err := h.svc.Content(r.Context(), id)
	if err != nil {
		fail(w, "get content", id, err)
		return
	}
	writeJSON(w, http.StatusOK, content)
}

// GetText handles GET /api/books/{id}/text.
//
//	@Summary		Get the plain reading text of a book
//	@Tags			books
//	@Produce		json
//	@Param			id	path		string	true	"Book id"
//	@Success		200	{object}	TextResponse
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/books/{id}/text [get]
func (h *Handler) GetText(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	text, err := h.svc.Text(r.Context(), id)
	if err != nil {
		fail(w, "get text", id, err)
		return
	}
	writeJSON(w, http.StatusOK, TextResponse{ID: id, Text: text})
}

// GetWarnings handles GET /api/books/{id}/warnings.
//
//	@Summary		List the parser warnings of a book
//	@Tags			books
//	@Produce		json
//	@Param			id	path		string	true	"Book id"
//	@Success		200	{object}	WarningListResponse
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/books/{id}/warnings [get]
func (h *Handler) GetWarnings(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	ws, err := h.svc.Warnings(r.Context(), id)
	if err != nil {
		fail(w, "get warnings", id, err)
		return
	}
	writeJSON(w, http.StatusOK, WarningListResponse{Warnings: ws})
}

// GetFigure handles GET /api/books/{id}/figures/{name}.
//
//	@Summary		Get a figure image from a book's archive
//	@Tags			books
//	@Produce		image/png
//	@Param			id		path	string	true	"Book id"
//	@Param			name	path	string	true	"Figure file name"
//	@Success		200
//	@Failure		400	{object}	errResponse
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/books/{id}/figures/{name} [get]
func (h *Handler) GetFigure(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	name := chi.URLParam(r, "name")
	data, err := h.svc.Figure(r.Context(), id, name)
	if err != nil {
		if errors.Is(err, corpus.ErrBadName) {
			writeJSON(w, http.StatusBadRequest, errorBody("invalid figure name"))
			return
		}
		fail(w, "get figure", id, err)
		return
	}
	w.Header().Set("Content-Type", http.DetectContentType(data))
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// ListFailures handles GET /api/failures.
//
//	@Summary		List books whose last conversion failed
//	@Tags			books
//	@Produce		json
//	@Success		200	{object}	FailureListResponse
//	@Security		BearerAuth
//	@Router			/failures [get]
func (h *Handler) ListFailures(w http.ResponseWriter, r *http.Request) {
	fs, err := h.svc.Failures(r.Context())
	if err != nil {
		fail(w, "list failures", "", err)
		return
	}
	writeJSON(w, http.StatusOK, FailureListResponse{Failures: fs})
}

// Search handles GET /api/search.
//
//	@Summary		Full-text search over titles, authors and body text
//	@Tags			search
//	@Produce		json
//	@Param			q		query		string	true	"Search query"
//	@Param			limit	query		int		false	"Max results"
//	@Success		200		{object}	SearchResponse
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/search [get]
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	if q == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("query parameter 'q' is required"))
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	hits, err := h.svc.Search(r.Context(), q, limit)
	if err != nil {
		slog.Error("search failed", slog.String("query", q), slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	results := make([]SearchResult, len(hits))
	for i, hit := range hits {
		results[i] = SearchResult(hit)
	}
	writeJSON(w, http.StatusOK, SearchResponse{Results: results})
}
