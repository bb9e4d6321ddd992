// Package internal provides the main application initialization and runtime logic.
package internal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/starford/aozoraconv/internal/api"
	"github.com/starford/aozoraconv/internal/batch"
	"github.com/starford/aozoraconv/internal/bookservice"
	"github.com/starford/aozoraconv/internal/charmap"
	"github.com/starford/aozoraconv/internal/checksum"
	"github.com/starford/aozoraconv/internal/corpus"
	"github.com/starford/aozoraconv/internal/export"
	"github.com/starford/aozoraconv/internal/index"
	"github.com/starford/aozoraconv/internal/mcpserver"
	"github.com/starford/aozoraconv/internal/models"
	"github.com/starford/aozoraconv/internal/registry"
	"github.com/starford/aozoraconv/internal/sse"
	"github.com/starford/aozoraconv/internal/storage"
)

// builtinFingerprint identifies the built-in tables when no table file is
// configured.
const builtinFingerprint = "builtin"

// env holds everything a command needs once setup succeeded.
type env struct {
	cfg         *Config
	logger      *slog.Logger
	tables      *charmap.Tables
	fingerprint string
	corpus      *storage.FS
	source      *corpus.Source
	writer      *export.Writer
	db          *index.DB
}

// setup builds the logger, stores, tables and catalog. Any error here is a
// setup failure and ends the process with a non-zero status.
func setup(opts []Option) (*env, *application, error) {
	app := &application{version: "dev", logOutput: os.Stdout}
	for _, opt := range opts {
		opt(app)
	}
	if app.config == nil {
		return nil, nil, fmt.Errorf("config is required")
	}
	cfg := app.config

	// Initialize structured JSON logger.
	logger := slog.New(slog.NewJSONHandler(app.logOutput, &slog.HandlerOptions{
		Level: cfg.App.LogLevel,
	}))
	slog.SetDefault(logger)

	logger.Info("Configuration loaded",
		slog.String("corpus_root", cfg.Corpus.Root),
		slog.String("output_path", cfg.Output.Path),
		slog.String("sqlite_path", cfg.SQLite.Path),
		slog.String("tables_path", cfg.Tables.Path),
		slog.Int("workers", cfg.Batch.Workers),
		slog.String("log_level", cfg.App.LogLevel.String()))

	tables, err := charmap.Load(cfg.Tables.Path)
	if err != nil {
		return nil, nil, fmt.Errorf("load tables: %w", err)
	}
	fingerprint := builtinFingerprint
	if cfg.Tables.Path != "" {
		data, err := os.ReadFile(cfg.Tables.Path)
		if err != nil {
			return nil, nil, fmt.Errorf("read tables: %w", err)
		}
		fingerprint = checksum.Sum(data)
	}

	corpusStore, err := storage.NewFS(cfg.Corpus.Root)
	if err != nil {
		return nil, nil, fmt.Errorf("init corpus storage: %w", err)
	}

	// Ensure output directories exist.
	if err := os.MkdirAll(cfg.Output.Path, 0o755); err != nil {
		return nil, nil, fmt.Errorf("create output dir: %w", err)
	}
	outStore, err := storage.NewFS(cfg.Output.Path)
	if err != nil {
		return nil, nil, fmt.Errorf("init output storage: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(cfg.SQLite.Path), 0o755); err != nil {
		return nil, nil, fmt.Errorf("create sqlite dir: %w", err)
	}

	db, err := index.Open(cfg.SQLite.Path)
	if err != nil {
		return nil, nil, fmt.Errorf("init index: %w", err)
	}

	return &env{
		cfg:         cfg,
		logger:      logger,
		tables:      tables,
		fingerprint: fingerprint,
		corpus:      corpusStore,
		source:      corpus.New(corpusStore),
		writer:      export.NewWriter(outStore),
		db:          db,
	}, app, nil
}

// prepare reads the registry, writes the catalog listings and drops books
// that are no longer eligible. It returns the books to convert.
func (e *env) prepare() ([]models.Book, error) {
	data, err := e.corpus.Read(e.cfg.Corpus.Registry)
	if err != nil {
		return nil, fmt.Errorf("read registry: %w", err)
	}
	list, err := registry.OpenBytes(data)
	if err != nil {
		return nil, err
	}

	books, excluded := list.Eligible()
	attrs := []any{slog.Int("listed", len(list.Books)), slog.Int("eligible", len(books))}
	for reason, n := range excluded {
		attrs = append(attrs, slog.Int("excluded_"+string(reason), n))
	}
	e.logger.Info("registry loaded", attrs...)

	authors := referencedAuthors(list, books)
	if err := e.writer.WriteCatalog(books, authors); err != nil {
		return nil, err
	}
	if err := e.db.UpsertAuthors(authors); err != nil {
		return nil, err
	}

	keep := make(map[string]struct{}, len(books))
	for _, b := range books {
		keep[b.ID] = struct{}{}
	}
	removed, err := index.Prune(e.db, keep, e.logger)
	if err != nil {
		return nil, err
	}
	for _, id := range removed {
		if err := e.writer.DeleteDocument(id); err != nil {
			e.logger.Warn("remove stale output failed", slog.String("book_id", id), slog.String("error", err.Error()))
		}
	}
	if len(removed) > 0 {
		e.logger.Info("pruned stale books", slog.Int("count", len(removed)))
	}
	return books, nil
}

func referencedAuthors(list *registry.List, books []models.Book) []models.Author {
	seen := make(map[string]struct{})
	for _, b := range books {
		for _, c := range b.Contributors {
			seen[c.AuthorID] = struct{}{}
		}
	}
	out := make([]models.Author, 0, len(seen))
	for _, a := range list.Authors {
		if _, ok := seen[a.ID]; ok {
			out = append(out, a)
		}
	}
	return out
}

func (e *env) driver(observers ...func(batch.Outcome)) *batch.Driver {
	opts := []batch.Option{
		batch.WithCatalog(e.db),
		batch.WithWorkers(e.cfg.Batch.Workers),
		batch.WithForce(e.cfg.Batch.Force),
		batch.WithFingerprint(e.fingerprint),
		batch.WithLogger(e.logger),
	}
	for _, fn := range observers {
		opts = append(opts, batch.WithObserver(fn))
	}
	return batch.New(e.tables, e.source, e.writer, opts...)
}

// Run converts every eligible book once. Document failures are logged and
// counted but do not make Run fail.
func Run(ctx context.Context, opts ...Option) error {
	e, _, err := setup(opts)
	if err != nil {
		return err
	}
	defer e.db.Close()

	books, err := e.prepare()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	start := time.Now()
	summary := e.driver().Run(ctx, books)
	summary.Log(e.logger)
	e.logger.Info("conversion finished",
		slog.Duration("elapsed", time.Since(start)),
		slog.Any("failures_by_kind", summary.FailuresByKind()))
	return nil
}

// Serve converts the corpus, then keeps the catalog current by watching the
// corpus tree, and serves the HTTP API with conversion events over SSE.
func Serve(ctx context.Context, opts ...Option) error {
	e, _, err := setup(opts)
	if err != nil {
		return err
	}
	defer e.db.Close()
	cfg, logger := e.cfg, e.logger

	books, err := e.prepare()
	if err != nil {
		return err
	}

	// SSE broker.
	broker := sse.NewBroker(2 * time.Second)
	defer broker.Close()

	d := e.driver(func(o batch.Outcome) {
		switch o.Status {
		case batch.StatusConverted, batch.StatusConvertedWithWarnings:
			broker.PublishBookEvent(sse.BookConverted, sse.BookEvent{ID: o.BookID, Title: o.Title, Warnings: o.Warnings})
		case batch.StatusFailed:
			broker.PublishBookEvent(sse.BookFailed, sse.BookEvent{ID: o.BookID, Title: o.Title, Error: o.Err.Error()})
		}
	})
	reconverter := batch.NewReconverter(d, books, func(b models.Book) {
		if err := e.db.DeleteBook(b.ID); err != nil {
			logger.Warn("remove book failed", slog.String("book_id", b.ID), slog.String("error", err.Error()))
			return
		}
		if err := e.writer.DeleteDocument(b.ID); err != nil {
			logger.Warn("remove output failed", slog.String("book_id", b.ID), slog.String("error", err.Error()))
		}
		broker.PublishBookEvent(sse.BookRemoved, sse.BookEvent{ID: b.ID, Title: b.Title})
	})

	// Build API service and router.
	svc := bookservice.NewService(e.db, e.writer, e.source)
	apiRouter := api.NewRouter(svc, cfg.Auth.AuthEnabled(), cfg.Auth.Token, broker)

	var ready atomic.Bool

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// Health check endpoints (unauthenticated). Ready turns true once the
	// initial conversion finished.
	r.Get("/health/live", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Get("/health/ready", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if !ready.Load() {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"status":"converting"}`))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Mount("/api", apiRouter)

	httpServer := &http.Server{
		Addr:              cfg.App.HTTP.Address(),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gCtx := errgroup.WithContext(ctx)

	// Initial conversion.
	g.Go(func() error {
		summary := d.Run(gCtx, books)
		summary.Log(logger)
		ready.Store(true)
		return nil
	})

	// Corpus watcher.
	g.Go(func() error {
		if err := batch.Watch(gCtx, e.corpus, logger, reconverter.Handle); err != nil {
			return fmt.Errorf("watcher: %w", err)
		}
		return nil
	})

	// Start HTTP server.
	g.Go(func() error {
		logger.Info("Starting HTTP server", slog.String("address", cfg.App.HTTP.Address()))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	// Handle shutdown signals.
	g.Go(func() error {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(quit)

		select {
		case sig := <-quit:
			logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
		case <-gCtx.Done():
			logger.Info("Context cancelled, initiating shutdown")
		}

		logger.Info("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", slog.String("error", err.Error()))
		}

		return errShutdown
	})

	if err := g.Wait(); err != nil && !errors.Is(err, errShutdown) {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}

// errShutdown cancels the group context so the converter and watcher stop
// together with the HTTP server.
var errShutdown = errors.New("shutdown")

// ServeMCP serves the catalog to MCP clients on stdin/stdout. It reads what
// earlier runs converted and does not convert anything itself.
func ServeMCP(_ context.Context, opts ...Option) error {
	e, app, err := setup(append([]Option{WithLogOutput(os.Stderr)}, opts...))
	if err != nil {
		return err
	}
	defer e.db.Close()

	svc := bookservice.NewService(e.db, e.writer, e.source)
	e.logger.Info("Starting MCP server on stdio")
	return mcpserver.New(svc, app.version).ServeStdio()
}
