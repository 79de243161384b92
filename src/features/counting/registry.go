package counting

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"

	"wordwatch/src/features/config"
)

// ErrNotWatched is returned by Update for paths outside the configured set.
var ErrNotWatched = errors.New("path is not a watched file")

// FileCount is one watched file's presentation view.
type FileCount struct {
	Path    string `json:"path"`
	Display string `json:"display"`
	Count   int    `json:"count"`
}

// Snapshot is an immutable view of all counts plus the aggregate, in
// configuration order.
type Snapshot struct {
	Files []FileCount `json:"files"`
	Total int         `json:"total"`
}

type fileEntry struct {
	display string
	count   int
}

// Registry owns the watched-file set and its counts. The key set is fixed
// after Init; counts are mutated only through Update.
type Registry struct {
	mu    sync.RWMutex
	files map[string]*fileEntry
	order []string
}

func NewRegistry() *Registry {
	return &Registry{files: make(map[string]*fileEntry)}
}

// Init resolves each configured file to an absolute path and records its
// initial count. Any failure is returned as-is: a file the user explicitly
// configured must be countable at start.
func (r *Registry) Init(ctx context.Context, specs []config.WatchFile, counter Counter) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	displays := make(map[string]bool, len(specs))
	for _, spec := range specs {
		abs, err := filepath.Abs(spec.Path)
		if err != nil {
			return fmt.Errorf("failed to resolve path %s: %w", spec.Path, err)
		}
		if _, dup := r.files[abs]; dup {
			return fmt.Errorf("duplicate watched file: %s", abs)
		}
		// Display labels key the per-file metrics series, so they must be
		// unique too.
		if displays[spec.Display] {
			return fmt.Errorf("duplicate display label: %s", spec.Display)
		}
		displays[spec.Display] = true
		count, err := counter.Count(ctx, abs)
		if err != nil {
			return fmt.Errorf("initial count failed for %s: %w", abs, err)
		}
		r.files[abs] = &fileEntry{display: spec.Display, count: count}
		r.order = append(r.order, abs)
		slog.Info("Registered watched file", "path", abs, "display", spec.Display, "count", count)
	}
	return nil
}

// Directories returns the distinct parent directories of all registered
// files, the set the filesystem bridge must observe.
func (r *Registry) Directories() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	seen := make(map[string]bool)
	var dirs []string
	for _, path := range r.order {
		dir := filepath.Dir(path)
		if !seen[dir] {
			seen[dir] = true
			dirs = append(dirs, dir)
		}
	}
	return dirs
}

// Len returns the number of watched files.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.files)
}

// IsWatched reports whether path is an exact key of the watched set.
func (r *Registry) IsWatched(path string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.files[path]
	return ok
}

// Display returns the display label for a watched path.
func (r *Registry) Display(path string) string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if e, ok := r.files[path]; ok {
		return e.display
	}
	return path
}

// Update atomically replaces the stored count for path and returns the
// previous value. Unregistered paths are a logged no-op.
func (r *Registry) Update(path string, count int) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.files[path]
	if !ok {
		slog.Warn("Update for unregistered path ignored", "path", path)
		return 0, ErrNotWatched
	}
	old := e.count
	e.count = count
	return old, nil
}

// Snapshot returns the current counts and aggregate in configuration order.
func (r *Registry) Snapshot() Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()

	snap := Snapshot{Files: make([]FileCount, 0, len(r.order))}
	for _, path := range r.order {
		e := r.files[path]
		snap.Files = append(snap.Files, FileCount{Path: path, Display: e.display, Count: e.count})
		snap.Total += e.count
	}
	return snap
}
