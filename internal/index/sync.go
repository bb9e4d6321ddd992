package index

import (
	"log/slog"
)

// Prune brings the catalog in line with the current set of eligible books:
// entries whose id is not in keep are deleted. It returns the removed ids.
func Prune(db Catalog, keep map[string]struct{}, logger *slog.Logger) ([]string, error) {
	checksums, err := db.AllChecksums()
	if err != nil {
		return nil, err
	}

	var removed []string
	for id := range checksums {
		if _, ok := keep[id]; ok {
			continue
		}
		if err := db.DeleteBook(id); err != nil {
			logger.Warn("prune: delete failed", slog.String("book_id", id), slog.String("error", err.Error()))
			continue
		}
		logger.Debug("prune: removed stale", slog.String("book_id", id))
		removed = append(removed, id)
	}
	return removed, nil
}
