package watcher

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"wordwatch/src/features/counting"
)

// Bridge subscribes to filesystem notifications for the registry's parent
// directories and forwards qualifying modifications into the engine's
// bounded queue. It never blocks on the queue: the OS delivery path must
// stay live even when the engine is saturated.
type Bridge struct {
	watcher  *fsnotify.Watcher
	registry *counting.Registry
	events   chan<- counting.ChangeEvent
	dirty    *counting.DirtySet
	metrics  *counting.Metrics
	running  bool
	stopChan chan struct{}
}

// NewBridge creates a new filesystem bridge feeding events. dirty is shared
// with the engine: the bridge marks a file when it enqueues a trigger and
// skips files already marked, so each watched file has at most one trigger
// in the queue and a burst on one file cannot evict another file's trigger.
func NewBridge(reg *counting.Registry, events chan<- counting.ChangeEvent, dirty *counting.DirtySet, metrics *counting.Metrics) (*Bridge, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	return &Bridge{
		watcher:  watcher,
		registry: reg,
		events:   events,
		dirty:    dirty,
		metrics:  metrics,
		stopChan: make(chan struct{}),
	}, nil
}

// Start subscribes to every distinct watched directory and begins the event
// loop. A directory that cannot be observed is an error: its files would
// silently never update.
func (b *Bridge) Start(ctx context.Context) error {
	dirs := b.registry.Directories()
	for _, dir := range dirs {
		if err := b.watcher.Add(dir); err != nil {
			return fmt.Errorf("failed to watch directory %s: %w", dir, err)
		}
		slog.Info("Watching directory", "dir", dir)
	}

	b.running = true
	go b.watchLoop(ctx)

	slog.Info("File watcher started", "directories", len(dirs))
	return nil
}

// Stop stops the bridge and closes the underlying watcher.
func (b *Bridge) Stop() {
	if !b.running {
		b.watcher.Close()
		return
	}
	slog.Info("Stopping file watcher")
	b.running = false
	close(b.stopChan)
	b.watcher.Close()
}

// watchLoop processes file system events
func (b *Bridge) watchLoop(ctx context.Context) {
	for {
		select {
		case event, ok := <-b.watcher.Events:
			if !ok {
				return
			}
			b.handleEvent(event)

		case err, ok := <-b.watcher.Errors:
			if !ok {
				return
			}
			slog.Error("File watcher error", "error", err)

		case <-b.stopChan:
			return

		case <-ctx.Done():
			return
		}
	}
}

// handleEvent filters one raw notification and enqueues a ChangeEvent if it
// is a content modification of an exactly-registered path.
func (b *Bridge) handleEvent(event fsnotify.Event) {
	// Creation, deletion, rename and chmod are not content modifications.
	if event.Op&fsnotify.Write == 0 {
		b.metrics.Events.WithLabelValues("ignored_op").Inc()
		return
	}

	path := filepath.Clean(event.Name)
	if !b.registry.IsWatched(path) {
		// Unrelated file sharing a watched directory.
		b.metrics.Events.WithLabelValues("ignored_path").Inc()
		return
	}

	if !b.dirty.MarkIfClean(path) {
		// A trigger for this file is already queued; the new one is a
		// duplicate and can be shed without losing which files are stale.
		b.metrics.Events.WithLabelValues("deduped").Inc()
		slog.Debug("Deduplicated change event, trigger already queued", "path", path)
		return
	}

	select {
	case b.events <- counting.ChangeEvent{Path: path, Timestamp: time.Now()}:
		b.metrics.Events.WithLabelValues("forwarded").Inc()
		slog.Debug("Forwarded change event", "path", path)
	default:
		// With one queued trigger per file and a queue at least the size of
		// the watch set this branch is unreachable. Unmark so the file's
		// next modification can still enqueue.
		b.dirty.Clear(path)
		b.metrics.Events.WithLabelValues("dropped").Inc()
		slog.Warn("Event queue full, dropping change event", "path", path)
	}
}
