//go:build sqlite_fts5

package index

import (
	"database/sql"
	"fmt"
)

// The trigram tokenizer matches Japanese text, which has no word breaks,
// on any substring of three or more characters.
func initFTS(conn *sql.DB) error {
	_, err := conn.Exec(`
		CREATE VIRTUAL TABLE IF NOT EXISTS books_fts USING fts5(
			id UNINDEXED,
			title,
			authors,
			body,
			tokenize = 'trigram'
		);
	`)
	return err
}

func ftsUpsert(tx *sql.Tx, id, title, authors, body string) error {
	_, _ = tx.Exec(`DELETE FROM books_fts WHERE id = ?`, id)
	_, err := tx.Exec(`INSERT INTO books_fts (id, title, authors, body) VALUES (?, ?, ?, ?)`,
		id, title, authors, body)
	if err != nil {
		return fmt.Errorf("index: upsert fts: %w", err)
	}
	return nil
}

func ftsDelete(tx *sql.Tx, id string) {
	_, _ = tx.Exec(`DELETE FROM books_fts WHERE id = ?`, id)
}

// Search performs an FTS5 full-text search and returns matching results with snippets.
func (db *DB) Search(query string, limit int) ([]SearchResult, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := db.conn.Query(`
		SELECT id,
		       title,
		       authors,
		       snippet(books_fts, 3, '<b>', '</b>', '...', 32)
		FROM books_fts
		WHERE books_fts MATCH ?
		ORDER BY rank
		LIMIT ?
	`, quoteFTS(query), limit)
	if err != nil {
		return nil, fmt.Errorf("index: search: %w", err)
	}
	defer rows.Close()

	var out []SearchResult
	for rows.Next() {
		var r SearchResult
		if err := rows.Scan(&r.ID, &r.Title, &r.Authors, &r.Snippet); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
