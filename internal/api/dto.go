package api

import (
	"github.com/starford/aozoraconv/internal/bookservice"
	"github.com/starford/aozoraconv/internal/export"
)

// BookListItem is a lightweight item in a list response (aliased from the domain layer).
type BookListItem = bookservice.BookListItem

// BookDetail is the full book response type (aliased from the domain layer).
type BookDetail = bookservice.BookDetail

// BookContent is the converted segment tree of a book.
type BookContent = export.Content

// BookListResponse wraps paginated book listings.
type BookListResponse struct {
	Books []BookListItem `json:"books" validate:"required"`
	Total int            `json:"total" example:"42" validate:"required"`
}

// WarningListResponse wraps the parser warnings of one book.
type WarningListResponse struct {
	Warnings []bookservice.Warning `json:"warnings" validate:"required"`
}

// FailureListResponse wraps the books whose last conversion failed.
type FailureListResponse struct {
	Failures []bookservice.Failure `json:"failures" validate:"required"`
}

// TextResponse carries the plain reading text of a book.
type TextResponse struct {
	ID   string `json:"id" example:"000127" validate:"required"`
	Text string `json:"text" validate:"required"`
}

// SearchResult is a single search hit in the API response.
type SearchResult struct {
	ID      string `json:"id" example:"000127" validate:"required"`
	Title   string `json:"title" example:"羅生門" validate:"required"`
	Authors string `json:"authors" example:"芥川 竜之介" validate:"required"`
	Snippet string `json:"snippet" example:"...下人が雨やみを待っていた..." validate:"required"`
}

// SearchResponse wraps search results.
type SearchResponse struct {
	Results []SearchResult `json:"results" validate:"required"`
}
