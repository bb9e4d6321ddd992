// Package apperr defines the error taxonomy shared by the conversion
// pipeline and its HTTP and MCP surfaces.
package apperr

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound = errors.New("not found")
	// ErrIO marks a document whose raw resource could not be read.
	ErrIO = errors.New("io failure")
	// ErrEncoding marks a document whose bytes did not decode cleanly.
	ErrEncoding = errors.New("encoding failure")
)

// DocumentError is a failure scoped to a single document. The batch records
// it and moves on.
type DocumentError struct {
	BookID string
	Err    error
}

func (e *DocumentError) Error() string {
	return fmt.Sprintf("book %s: %v", e.BookID, e.Err)
}

func (e *DocumentError) Unwrap() error {
	return e.Err
}

// IO wraps err as an IoFailure of the given book.
func IO(bookID string, err error) error {
	return &DocumentError{BookID: bookID, Err: fmt.Errorf("%w: %w", ErrIO, err)}
}

// Encoding wraps err as an EncodingFailure of the given book.
func Encoding(bookID string, err error) error {
	return &DocumentError{BookID: bookID, Err: fmt.Errorf("%w: %w", ErrEncoding, err)}
}

// Kind names the failure class of err for reports: "io", "encoding" or
// "internal".
func Kind(err error) string {
	switch {
	case errors.Is(err, ErrIO):
		return "io"
	case errors.Is(err, ErrEncoding):
		return "encoding"
	}
	return "internal"
}
