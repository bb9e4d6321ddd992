package batch

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/starford/aozoraconv/internal/models"
)

// Tree is the file tree a watcher observes. *storage.FS implements it.
type Tree interface {
	Root() string
	Rel(abs string) (string, error)
	List(dir, ext string) ([]models.FileInfo, error)
}

// ChangeFunc receives the archives (slash-separated, relative to the
// watched root) created or modified, and those removed, since the last call.
type ChangeFunc func(ctx context.Context, changed, removed []string)

// debounce is how long the watcher waits for a burst of events to settle.
const debounce = 200 * time.Millisecond

// Watch starts an fsnotify watcher on the tree root and reports .zip
// archive changes to fn until ctx is cancelled. Events are collected and
// delivered once no new event arrived for the debounce interval, so an
// archive rewritten in several steps is converted once.
//
// New directories created at runtime are automatically added to the watch
// list, and archives already inside them are reported as changed.
func Watch(ctx context.Context, tree Tree, logger *slog.Logger, fn ChangeFunc) error {
	root := tree.Root()
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	if err := addDirsRecursive(w, root); err != nil {
		return err
	}

	logger.Info("watcher: started", slog.String("root", root))

	changed := make(map[string]struct{})
	removed := make(map[string]struct{})

	var timer *time.Timer
	var timerCh <-chan time.Time
	schedule := func() {
		if timer == nil {
			timer = time.NewTimer(debounce)
			timerCh = timer.C
		} else {
			timer.Reset(debounce)
		}
	}
	rel := func(abs string) (string, bool) {
		r, err := tree.Rel(abs)
		return r, err == nil
	}

	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			logger.Info("watcher: stopped")
			return nil

		case <-timerCh:
			if len(changed) == 0 && len(removed) == 0 {
				continue
			}
			fn(ctx, keys(changed), keys(removed))
			changed = make(map[string]struct{})
			removed = make(map[string]struct{})

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}

			absPath := ev.Name

			if ev.Op&fsnotify.Create != 0 {
				if info, statErr := os.Stat(absPath); statErr == nil && info.IsDir() {
					if addErr := addDirsRecursive(w, absPath); addErr != nil {
						logger.Warn("watcher: add new dir failed",
							slog.String("path", absPath),
							slog.String("error", addErr.Error()))
					} else {
						logger.Debug("watcher: watching new dir", slog.String("path", absPath))
					}
					for _, r := range archivesUnder(tree, absPath, logger) {
						changed[r] = struct{}{}
						delete(removed, r)
					}
					schedule()
					continue
				}
			}

			if !isArchive(absPath) {
				continue
			}
			r, ok := rel(absPath)
			if !ok {
				continue
			}

			switch {
			case ev.Op&(fsnotify.Create|fsnotify.Write) != 0:
				changed[r] = struct{}{}
				delete(removed, r)
			case ev.Op&(fsnotify.Remove|fsnotify.Rename) != 0:
				// fsnotify fires Rename on the old path only; a new path
				// inside the tree arrives as its own Create.
				removed[r] = struct{}{}
				delete(changed, r)
			default:
				continue
			}
			logger.Debug("watcher: event", slog.String("path", r), slog.String("op", ev.Op.String()))
			schedule()

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Error("watcher: error", slog.String("error", watchErr.Error()))
		}
	}
}

func isArchive(path string) bool {
	return strings.HasSuffix(strings.ToLower(path), ".zip")
}

func keys(m map[string]struct{}) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}

// archivesUnder lists the archives already present in a newly created
// directory, relative to the tree root.
func archivesUnder(tree Tree, dir string, logger *slog.Logger) []string {
	rel, err := tree.Rel(dir)
	if err != nil {
		return nil
	}
	files, err := tree.List(rel, ".zip")
	if err != nil {
		logger.Warn("watcher: list new dir failed", slog.String("path", rel), slog.String("error", err.Error()))
		return nil
	}
	out := make([]string, 0, len(files))
	for _, f := range files {
		out = append(out, f.Path)
	}
	return out
}

// addDirsRecursive adds root and all its subdirectories to the watcher.
func addDirsRecursive(w *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return w.Add(path)
		}
		return nil
	})
}
