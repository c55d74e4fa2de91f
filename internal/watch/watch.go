// Package watch reports changed source files of watched directories and files.
package watch

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/CZERTAINLY/Sniffer/internal/walk"

	"github.com/fsnotify/fsnotify"
)

const DefaultDebounce = 500 * time.Millisecond

// Watcher collects changes and hands them over once no change came
// for the debounce period.
type Watcher struct {
	fsnotify *fsnotify.Watcher
	filter   walk.Filter
	debounce time.Duration
	// directories walked recursively
	roots []string
	// files named directly
	files map[string]bool
}

// New starts watching paths. Directories are watched recursively except walk.SkipDirs.
func New(filter walk.Filter, debounce time.Duration, paths ...string) (*Watcher, error) {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating watcher: %w", err)
	}
	w := &Watcher{
		fsnotify: fw,
		filter:   filter,
		debounce: debounce,
		files:    make(map[string]bool),
	}
	for _, path := range paths {
		if err := w.add(path); err != nil {
			_ = fw.Close()
			return nil, err
		}
	}
	return w, nil
}

func (w *Watcher) add(path string) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	info, err := os.Stat(abs)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		w.files[abs] = true
		return w.fsnotify.Add(filepath.Dir(abs))
	}
	w.roots = append(w.roots, abs)
	return filepath.WalkDir(abs, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if path != abs && skipDir(d.Name()) {
			return filepath.SkipDir
		}
		if err := w.fsnotify.Add(path); err != nil {
			return fmt.Errorf("watching %s: %w", path, err)
		}
		return nil
	})
}

// Run calls onChange with sorted paths of changed files until ctx is done.
// onChange runs on the watcher goroutine, changes arriving meanwhile are
// delivered by the next call.
func (w *Watcher) Run(ctx context.Context, onChange func(ctx context.Context, paths []string)) error {
	slog.InfoContext(ctx, "watching", "roots", w.roots, "files", len(w.files), "debounce", w.debounce)

	pending := make(map[string]struct{})
	timer := time.NewTimer(w.debounce)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-w.fsnotify.Events:
			if !ok {
				return nil
			}
			if w.handle(ctx, event) {
				pending[event.Name] = struct{}{}
				timer.Reset(w.debounce)
			}

		case err, ok := <-w.fsnotify.Errors:
			if !ok {
				return nil
			}
			slog.WarnContext(ctx, "watcher error", "error", err)

		case <-timer.C:
			if len(pending) == 0 {
				continue
			}
			paths := make([]string, 0, len(pending))
			for p := range pending {
				// dropped if removed meanwhile
				if info, err := os.Stat(p); err == nil && info.Mode().IsRegular() {
					paths = append(paths, p)
				}
			}
			clear(pending)
			if len(paths) == 0 {
				continue
			}
			slices.Sort(paths)
			slog.DebugContext(ctx, "processing file changes", "count", len(paths))
			onChange(ctx, paths)
		}
	}
}

// handle reports if the event is a change of a watched file. Newly created
// directories under a root are watched.
func (w *Watcher) handle(ctx context.Context, event fsnotify.Event) bool {
	if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
		return false
	}
	name := filepath.Base(event.Name)
	if strings.HasPrefix(name, ".") || strings.HasSuffix(name, "~") ||
		strings.HasSuffix(name, ".swp") || strings.HasSuffix(name, ".tmp") {
		return false
	}

	if event.Has(fsnotify.Create) {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if w.root(event.Name) != "" && !skipDir(name) {
				if err := w.fsnotify.Add(event.Name); err != nil {
					slog.WarnContext(ctx, "can't watch new directory", "path", event.Name, "error", err)
				} else {
					slog.DebugContext(ctx, "watching new directory", "path", event.Name)
				}
			}
			return false
		}
	}

	if w.files[event.Name] {
		return w.filter.Match(filepath.Base(event.Name), true)
	}
	root := w.root(event.Name)
	if root == "" {
		return false
	}
	rel, err := filepath.Rel(root, event.Name)
	if err != nil {
		return false
	}
	return w.filter.Match(filepath.ToSlash(rel), false)
}

// root returns the watched directory containing path
func (w *Watcher) root(path string) string {
	for _, r := range w.roots {
		if path == r || strings.HasPrefix(path, r+string(filepath.Separator)) {
			return r
		}
	}
	return ""
}

func (w *Watcher) Close() error {
	return w.fsnotify.Close()
}

func skipDir(name string) bool {
	return walk.SkipDirs[name] || (len(name) > 1 && name[0] == '.')
}
