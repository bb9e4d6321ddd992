package index

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/starford/aozoraconv/internal/apperr"
	"github.com/starford/aozoraconv/internal/models"
)

// BookRow represents a row in the books table.
type BookRow struct {
	ID           string
	Title        string
	TitleKana    string
	Subtitle     string
	Authors      []string
	Checksum     string
	WarningCount int
	Book         models.Book
	ConvertedAt  time.Time
}

// WarningRow is one stored parser warning.
type WarningRow struct {
	Kind    string
	Section string
	Line    int
	Detail  string
}

// FailureRow records the last failed conversion of a book.
type FailureRow struct {
	BookID   string
	Kind     string
	Message  string
	FailedAt time.Time
}

// SearchResult represents one search hit.
type SearchResult struct {
	ID      string
	Title   string
	Authors string
	Snippet string
}

// UpsertAuthors inserts or replaces persons from the registry.
func (db *DB) UpsertAuthors(authors []models.Author) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // best-effort on failure path

	stmt, err := tx.Prepare(`
		INSERT INTO authors (id, name, name_kana, copyright)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name      = excluded.name,
			name_kana = excluded.name_kana,
			copyright = excluded.copyright
	`)
	if err != nil {
		return fmt.Errorf("index: prepare author upsert: %w", err)
	}
	defer stmt.Close()
	for _, a := range authors {
		kana := strings.TrimSpace(a.LastNameKana + " " + a.FirstNameKana)
		if _, err := stmt.Exec(a.ID, a.FullName(), kana, a.Copyright); err != nil {
			return fmt.Errorf("index: upsert author %s: %w", a.ID, err)
		}
	}
	return tx.Commit()
}

// UpsertDocument replaces a book, its FTS entry, contributors and warnings
// within a transaction, and clears any recorded failure.
func (db *DB) UpsertDocument(doc *models.Document) error {
	b := doc.Book
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // best-effort on failure path

	names, err := authorNames(tx, b.AuthorIDs())
	if err != nil {
		return err
	}
	meta, err := json.Marshal(b)
	if err != nil {
		return fmt.Errorf("index: marshal book: %w", err)
	}
	body := doc.Text()
	joined := strings.Join(names, "、")

	_, err = tx.Exec(`
		INSERT INTO books (id, title, title_kana, subtitle, authors, checksum, warning_count, meta, body, converted_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title         = excluded.title,
			title_kana    = excluded.title_kana,
			subtitle      = excluded.subtitle,
			authors       = excluded.authors,
			checksum      = excluded.checksum,
			warning_count = excluded.warning_count,
			meta          = excluded.meta,
			body          = excluded.body,
			converted_at  = excluded.converted_at
	`, b.ID, b.Title, b.TitleKana, b.Subtitle, joined, doc.Checksum, len(doc.Warnings), string(meta), body, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("index: upsert book: %w", err)
	}

	// FTS upsert (no-op when FTS5 tag is absent).
	if err := ftsUpsert(tx, b.ID, b.Title, joined, body); err != nil {
		return err
	}

	if _, err := tx.Exec(`DELETE FROM book_authors WHERE book_id = ?`, b.ID); err != nil {
		return fmt.Errorf("index: clear contributors: %w", err)
	}
	if len(b.Contributors) > 0 {
		stmt, err := tx.Prepare(`INSERT OR IGNORE INTO book_authors (book_id, author_id, role) VALUES (?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("index: prepare contributor insert: %w", err)
		}
		defer stmt.Close()
		for _, c := range b.Contributors {
			if _, err := stmt.Exec(b.ID, c.AuthorID, c.Role); err != nil {
				return fmt.Errorf("index: insert contributor: %w", err)
			}
		}
	}

	if _, err := tx.Exec(`DELETE FROM warnings WHERE book_id = ?`, b.ID); err != nil {
		return fmt.Errorf("index: clear warnings: %w", err)
	}
	if len(doc.Warnings) > 0 {
		stmt, err := tx.Prepare(`INSERT INTO warnings (book_id, kind, section, line, detail) VALUES (?, ?, ?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("index: prepare warning insert: %w", err)
		}
		defer stmt.Close()
		for _, w := range doc.Warnings {
			if _, err := stmt.Exec(b.ID, w.Kind.String(), string(w.Section), w.Line, w.Detail); err != nil {
				return fmt.Errorf("index: insert warning: %w", err)
			}
		}
	}

	if _, err := tx.Exec(`DELETE FROM failures WHERE book_id = ?`, b.ID); err != nil {
		return fmt.Errorf("index: clear failure: %w", err)
	}
	return tx.Commit()
}

func authorNames(tx *sql.Tx, ids []string) ([]string, error) {
	names := make([]string, 0, len(ids))
	for _, id := range ids {
		var name string
		err := tx.QueryRow(`SELECT name FROM authors WHERE id = ?`, id).Scan(&name)
		switch {
		case errors.Is(err, sql.ErrNoRows):
			continue
		case err != nil:
			return nil, fmt.Errorf("index: author name: %w", err)
		}
		names = append(names, name)
	}
	return names, nil
}

// RecordFailure stores the latest failure of a book. The last good
// conversion, if any, stays in place.
func (db *DB) RecordFailure(bookID, kind, message string) error {
	_, err := db.conn.Exec(`
		INSERT INTO failures (book_id, kind, message, failed_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(book_id) DO UPDATE SET
			kind      = excluded.kind,
			message   = excluded.message,
			failed_at = excluded.failed_at
	`, bookID, kind, message, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("index: record failure: %w", err)
	}
	return nil
}

// DeleteBook removes a book, its FTS entry, contributors and warnings.
func (db *DB) DeleteBook(id string) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	ftsDelete(tx, id)
	_, _ = tx.Exec(`DELETE FROM warnings WHERE book_id = ?`, id)
	_, _ = tx.Exec(`DELETE FROM book_authors WHERE book_id = ?`, id)
	_, _ = tx.Exec(`DELETE FROM failures WHERE book_id = ?`, id)
	_, _ = tx.Exec(`DELETE FROM books WHERE id = ?`, id)

	return tx.Commit()
}

// GetChecksum returns the stored checksum for a book, or empty string if not found.
func (db *DB) GetChecksum(id string) (string, error) {
	var cs string
	err := db.conn.QueryRow(`SELECT checksum FROM books WHERE id = ?`, id).Scan(&cs)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("index: checksum: %w", err)
	}
	return cs, nil
}

// AllChecksums returns id → checksum for every catalogued book.
func (db *DB) AllChecksums() (map[string]string, error) {
	rows, err := db.conn.Query(`SELECT id, checksum FROM books`)
	if err != nil {
		return nil, fmt.Errorf("index: all checksums: %w", err)
	}
	defer rows.Close()
	out := make(map[string]string)
	for rows.Next() {
		var id, cs string
		if err := rows.Scan(&id, &cs); err != nil {
			return nil, err
		}
		out[id] = cs
	}
	return out, rows.Err()
}

const bookColumns = `id, title, title_kana, subtitle, authors, checksum, warning_count, meta, converted_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanBook(s scanner) (*BookRow, error) {
	var (
		r       BookRow
		authors string
		meta    string
	)
	if err := s.Scan(&r.ID, &r.Title, &r.TitleKana, &r.Subtitle, &authors, &r.Checksum, &r.WarningCount, &meta, &r.ConvertedAt); err != nil {
		return nil, err
	}
	if authors != "" {
		r.Authors = strings.Split(authors, "、")
	}
	if err := json.Unmarshal([]byte(meta), &r.Book); err != nil {
		return nil, fmt.Errorf("index: decode meta of %s: %w", r.ID, err)
	}
	return &r, nil
}

// GetBook returns one catalogued book or apperr.ErrNotFound.
func (db *DB) GetBook(id string) (*BookRow, error) {
	r, err := scanBook(db.conn.QueryRow(`SELECT `+bookColumns+` FROM books WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("index: get book: %w", err)
	}
	return r, nil
}

// ListBooks returns a page of books ordered by kana title, and the total
// count. A non-empty authorID restricts the list to that person's works.
func (db *DB) ListBooks(limit, offset int, authorID string) ([]BookRow, int, error) {
	if limit <= 0 {
		limit = 50
	}
	where, args := "", []any{}
	if authorID != "" {
		where = ` WHERE id IN (SELECT book_id FROM book_authors WHERE author_id = ?)`
		args = append(args, authorID)
	}

	var total int
	if err := db.conn.QueryRow(`SELECT count(*) FROM books`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("index: count books: %w", err)
	}

	rows, err := db.conn.Query(`SELECT `+bookColumns+` FROM books`+where+` ORDER BY title_kana, id LIMIT ? OFFSET ?`,
		append(args, limit, offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("index: list books: %w", err)
	}
	defer rows.Close()

	var out []BookRow
	for rows.Next() {
		r, err := scanBook(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, *r)
	}
	return out, total, rows.Err()
}

// Warnings returns the stored warnings of a book in source order.
func (db *DB) Warnings(id string) ([]WarningRow, error) {
	rows, err := db.conn.Query(`SELECT kind, section, line, detail FROM warnings WHERE book_id = ? ORDER BY rowid`, id)
	if err != nil {
		return nil, fmt.Errorf("index: warnings: %w", err)
	}
	defer rows.Close()

	var out []WarningRow
	for rows.Next() {
		var w WarningRow
		if err := rows.Scan(&w.Kind, &w.Section, &w.Line, &w.Detail); err != nil {
			return nil, err
		}
		out = append(out, w)
	}
	return out, rows.Err()
}

// Failures returns every recorded failure, most recent first.
func (db *DB) Failures() ([]FailureRow, error) {
	rows, err := db.conn.Query(`SELECT book_id, kind, message, failed_at FROM failures ORDER BY failed_at DESC, book_id`)
	if err != nil {
		return nil, fmt.Errorf("index: failures: %w", err)
	}
	defer rows.Close()

	var out []FailureRow
	for rows.Next() {
		var f FailureRow
		if err := rows.Scan(&f.BookID, &f.Kind, &f.Message, &f.FailedAt); err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

// Text returns the reading text of a book's body.
func (db *DB) Text(id string) (string, error) {
	var body string
	err := db.conn.QueryRow(`SELECT body FROM books WHERE id = ?`, id).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return "", apperr.ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("index: text: %w", err)
	}
	return body, nil
}
