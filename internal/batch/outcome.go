package batch

import (
	"log/slog"

	"github.com/starford/aozoraconv/internal/apperr"
)

// Status is the result class of one document.
type Status int

const (
	StatusConverted Status = iota
	StatusConvertedWithWarnings
	StatusSkipped
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusConvertedWithWarnings:
		return "converted_with_warnings"
	case StatusSkipped:
		return "skipped"
	case StatusFailed:
		return "failed"
	}
	return "converted"
}

// Outcome reports what happened to one document.
type Outcome struct {
	BookID   string
	Title    string
	Status   Status
	Warnings int
	Err      error
}

// Summary totals a run. Outcomes are in completion order.
type Summary struct {
	Converted    int
	WithWarnings int
	Skipped      int
	Failed       int
	// Cancelled counts documents never dispatched because the context ended.
	Cancelled int
	Outcomes  []Outcome
}

func (s *Summary) add(o Outcome) {
	switch o.Status {
	case StatusConverted:
		s.Converted++
	case StatusConvertedWithWarnings:
		s.WithWarnings++
	case StatusSkipped:
		s.Skipped++
	case StatusFailed:
		s.Failed++
	}
	s.Outcomes = append(s.Outcomes, o)
}

// FailuresByKind counts failed documents per error class.
func (s *Summary) FailuresByKind() map[string]int {
	out := make(map[string]int)
	for _, o := range s.Outcomes {
		if o.Status == StatusFailed {
			out[apperr.Kind(o.Err)]++
		}
	}
	return out
}

// Log writes the totals and one line per failure.
func (s *Summary) Log(logger *slog.Logger) {
	for _, o := range s.Outcomes {
		if o.Status != StatusFailed {
			continue
		}
		logger.Warn("document failed",
			slog.String("book_id", o.BookID),
			slog.String("title", o.Title),
			slog.String("kind", apperr.Kind(o.Err)),
			slog.String("error", o.Err.Error()))
	}
	logger.Info("batch finished",
		slog.Int("converted", s.Converted),
		slog.Int("converted_with_warnings", s.WithWarnings),
		slog.Int("skipped", s.Skipped),
		slog.Int("failed", s.Failed),
		slog.Int("cancelled", s.Cancelled))
}
