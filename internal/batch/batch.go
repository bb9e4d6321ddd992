// Package batch drives conversion of many documents: each eligible work is
// read, decoded and parsed on a bounded worker pool, and the results are
// handed to the serializer and the catalog by a single collector.
package batch

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"runtime"
	"runtime/debug"

	"golang.org/x/sync/errgroup"

	"github.com/starford/aozoraconv/internal/apperr"
	"github.com/starford/aozoraconv/internal/charmap"
	"github.com/starford/aozoraconv/internal/checksum"
	"github.com/starford/aozoraconv/internal/corpus"
	"github.com/starford/aozoraconv/internal/models"
	"github.com/starford/aozoraconv/internal/parser"
)

// Source supplies raw archives and their decoded text.
type Source interface {
	Archive(book models.Book) (*corpus.Archive, error)
	Text(book models.Book, a *corpus.Archive) (string, error)
}

// Writer persists converted documents.
type Writer interface {
	WriteDocument(doc *models.Document) error
}

// Catalog records conversions. It is optional.
type Catalog interface {
	GetChecksum(id string) (string, error)
	UpsertDocument(doc *models.Document) error
	RecordFailure(bookID, kind, message string) error
}

// Driver converts documents. It is safe to call Run again after it
// returns; concurrent Runs must not share a Catalog that cannot take
// concurrent writes.
type Driver struct {
	tables      *charmap.Tables
	source      Source
	writer      Writer
	catalog     Catalog
	workers     int
	force       bool
	fingerprint string
	logger      *slog.Logger
	observers   []func(Outcome)
}

// Option configures a Driver.
type Option func(*Driver)

// WithCatalog enables checksum skipping and catalog updates.
func WithCatalog(c Catalog) Option {
	return func(d *Driver) { d.catalog = c }
}

// WithWorkers bounds the number of documents parsed at once. Zero or less
// means one per CPU.
func WithWorkers(n int) Option {
	return func(d *Driver) { d.workers = n }
}

// WithForce reconverts documents whose archive is unchanged.
func WithForce(force bool) Option {
	return func(d *Driver) { d.force = force }
}

// WithFingerprint mixes a fingerprint of the mapping tables into each
// document checksum, so changing the tables invalidates earlier output.
func WithFingerprint(fp string) Option {
	return func(d *Driver) { d.fingerprint = fp }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(d *Driver) { d.logger = l }
}

// WithObserver registers a function called with every outcome, from the
// collector goroutine.
func WithObserver(fn func(Outcome)) Option {
	return func(d *Driver) { d.observers = append(d.observers, fn) }
}

// New creates a Driver. A nil tables value uses the built-in tables.
func New(tables *charmap.Tables, source Source, writer Writer, opts ...Option) *Driver {
	if tables == nil {
		tables = charmap.New()
	}
	d := &Driver{
		tables: tables,
		source: source,
		writer: writer,
		logger: slog.New(slog.NewJSONHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.workers <= 0 {
		d.workers = runtime.GOMAXPROCS(0)
	}
	return d
}

type result struct {
	outcome Outcome
	doc     *models.Document
}

// Run converts books and returns the totals. A failing document never
// stops the batch. When ctx ends, no further documents are dispatched and
// those already in flight finish.
func (d *Driver) Run(ctx context.Context, books []models.Book) Summary {
	results := make(chan result, d.workers)
	done := make(chan Summary, 1)

	go func() {
		var s Summary
		for r := range results {
			o := d.store(r)
			s.add(o)
			for _, fn := range d.observers {
				fn(o)
			}
		}
		done <- s
	}()

	var g errgroup.Group
	g.SetLimit(d.workers)
	dispatched := 0
	for _, b := range books {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			results <- d.process(b)
			return nil
		})
		dispatched++
	}
	_ = g.Wait()
	close(results)

	s := <-done
	s.Cancelled = len(books) - dispatched
	return s
}

// Convert processes a single book synchronously.
func (d *Driver) Convert(book models.Book) Outcome {
	o := d.store(d.process(book))
	for _, fn := range d.observers {
		fn(o)
	}
	return o
}

// process runs on a worker. It reads, decodes and parses one document and
// never panics.
func (d *Driver) process(book models.Book) (r result) {
	r.outcome = Outcome{BookID: book.ID, Title: book.Title}
	defer func() {
		if p := recover(); p != nil {
			d.logger.Error("parse panicked",
				slog.String("book_id", book.ID),
				slog.Any("panic", p),
				slog.String("stack", string(debug.Stack())))
			r.doc = nil
			r.outcome.Status = StatusFailed
			r.outcome.Err = &apperr.DocumentError{BookID: book.ID, Err: fmt.Errorf("panic: %v", p)}
		}
	}()

	archive, err := d.source.Archive(book)
	if err != nil {
		r.outcome.Status, r.outcome.Err = StatusFailed, err
		return r
	}
	sum := archive.Checksum
	if d.fingerprint != "" {
		sum = checksum.Combine(archive.Checksum, d.fingerprint)
	}

	if d.catalog != nil && !d.force {
		prev, err := d.catalog.GetChecksum(book.ID)
		if err != nil {
			d.logger.Warn("checksum lookup failed", slog.String("book_id", book.ID), slog.String("error", err.Error()))
		} else if prev == sum {
			r.outcome.Status = StatusSkipped
			return r
		}
	}

	text, err := d.source.Text(book, archive)
	if err != nil {
		r.outcome.Status, r.outcome.Err = StatusFailed, err
		return r
	}

	parsed := parser.ParseBook(d.tables, text)
	r.doc = &models.Document{
		Book:     book,
		Header:   parsed.Header,
		Body:     parsed.Body,
		Colophon: parsed.Colophon,
		Warnings: parsed.Warnings,
		Checksum: sum,
	}
	r.outcome.Warnings = len(parsed.Warnings)
	if len(parsed.Warnings) > 0 {
		r.outcome.Status = StatusConvertedWithWarnings
	} else {
		r.outcome.Status = StatusConverted
	}
	return r
}

// store runs on the collector, so writes to the output tree and the
// catalog are serialized.
func (d *Driver) store(r result) Outcome {
	o := r.outcome
	if r.doc != nil {
		if err := d.writer.WriteDocument(r.doc); err != nil {
			o.Status, o.Err = StatusFailed, apperr.IO(o.BookID, err)
		} else if d.catalog != nil {
			if err := d.catalog.UpsertDocument(r.doc); err != nil {
				o.Status, o.Err = StatusFailed, apperr.IO(o.BookID, err)
			}
		}
	}

	switch o.Status {
	case StatusFailed:
		if d.catalog != nil {
			if err := d.catalog.RecordFailure(o.BookID, apperr.Kind(o.Err), o.Err.Error()); err != nil {
				d.logger.Warn("record failure failed", slog.String("book_id", o.BookID), slog.String("error", err.Error()))
			}
		}
		d.logger.Debug("document failed", slog.String("book_id", o.BookID), slog.String("error", o.Err.Error()))
	case StatusSkipped:
		d.logger.Debug("document unchanged", slog.String("book_id", o.BookID))
	default:
		d.logger.Debug("document converted",
			slog.String("book_id", o.BookID),
			slog.String("status", o.Status.String()),
			slog.Int("warnings", o.Warnings))
	}
	return o
}
