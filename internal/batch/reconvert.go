package batch

import (
	"context"
	"log/slog"

	"github.com/starford/aozoraconv/internal/models"
	"github.com/starford/aozoraconv/internal/registry"
)

// Reconverter maps archive paths reported by Watch back to works and
// converts them again.
type Reconverter struct {
	driver   *Driver
	byPath   map[string][]models.Book
	onRemove func(models.Book)
	logger   *slog.Logger
}

// NewReconverter indexes books by archive path. onRemove, if non-nil, is
// called for each work whose archive disappeared.
func NewReconverter(d *Driver, books []models.Book, onRemove func(models.Book)) *Reconverter {
	byPath := make(map[string][]models.Book, len(books))
	for _, b := range books {
		if p, ok := registry.ArchivePath(b.TextURL); ok {
			byPath[p] = append(byPath[p], b)
		}
	}
	return &Reconverter{driver: d, byPath: byPath, onRemove: onRemove, logger: d.logger}
}

// Handle is a ChangeFunc.
func (r *Reconverter) Handle(ctx context.Context, changed, removed []string) {
	var books []models.Book
	for _, p := range changed {
		matched, ok := r.byPath[p]
		if !ok {
			r.logger.Debug("reconvert: archive not in registry", slog.String("path", p))
			continue
		}
		books = append(books, matched...)
	}
	if len(books) > 0 {
		s := r.driver.Run(ctx, books)
		s.Log(r.logger)
	}

	if r.onRemove == nil {
		return
	}
	for _, p := range removed {
		for _, b := range r.byPath[p] {
			r.onRemove(b)
		}
	}
}
