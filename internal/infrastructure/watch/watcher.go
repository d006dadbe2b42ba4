// Package watch implements Component E: a debounced filesystem watcher that
// turns write events under the configured roots into ingest calls, assigning
// provenance by which root a path falls under (spec §4.E).
package watch

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/tagwalker/tagwalker/internal/domain/ingest"
	"github.com/tagwalker/tagwalker/internal/infrastructure/monitoring/logging"
	"github.com/tagwalker/tagwalker/pkg/errors"
)

// IngestFunc is the seam into the ingest application service; the watcher
// never knows about persistence, only that a changed path needs ingesting.
type IngestFunc func(ctx context.Context, raw []byte, path string, provenance ingest.Provenance, modTime time.Time) error

// Config holds the watcher's roots, debounce window, and provenance
// classification directories, mirroring config.WatcherConfig.
type Config struct {
	Roots            []string
	DebounceInterval time.Duration
	InboxDir         string
	ExternalDir      string
	MaxPendingEvents int
}

func (c Config) withDefaults() Config {
	if c.DebounceInterval <= 0 {
		c.DebounceInterval = 2 * time.Second
	}
	if c.MaxPendingEvents <= 0 {
		c.MaxPendingEvents = 4096
	}
	return c
}

// Watcher wraps fsnotify with per-path debouncing: a burst of writes to the
// same file within DebounceInterval collapses into a single ingest call,
// avoiding partial-write reads from editors that save in multiple passes.
type Watcher struct {
	cfg    Config
	fs     *fsnotify.Watcher
	ingest IngestFunc
	logger logging.Logger

	mu      sync.Mutex
	timers  map[string]*time.Timer
	pending int
}

// New constructs a Watcher. Call Start to begin watching; Close releases the
// underlying fsnotify handle.
func New(cfg Config, ingestFn IngestFunc, logger logging.Logger) (*Watcher, error) {
	cfg = cfg.withDefaults()
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeWatchSetupFailed, "failed to create fsnotify watcher")
	}
	for _, root := range cfg.Roots {
		if err := addRecursive(fsw, root); err != nil {
			fsw.Close()
			return nil, errors.Wrap(err, errors.CodeWatchSetupFailed, "failed to watch root "+root)
		}
	}
	return &Watcher{cfg: cfg, fs: fsw, ingest: ingestFn, logger: logger, timers: make(map[string]*time.Timer)}, nil
}

func addRecursive(fsw *fsnotify.Watcher, root string) error {
	return filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return fsw.Add(path)
		}
		return nil
	})
}

// Run blocks, dispatching fsnotify events until ctx is cancelled.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.fs.Close()
	for {
		select {
		case <-ctx.Done():
			w.drain()
			return ctx.Err()
		case event, ok := <-w.fs.Events:
			if !ok {
				return nil
			}
			w.handleEvent(ctx, event)
		case err, ok := <-w.fs.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("watcher error", logging.Err(err))
		}
	}
}

func (w *Watcher) handleEvent(ctx context.Context, event fsnotify.Event) {
	if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
		return
	}
	info, err := os.Stat(event.Name)
	if err != nil || info.IsDir() {
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if t, ok := w.timers[event.Name]; ok {
		t.Stop()
	} else {
		if w.pending >= w.cfg.MaxPendingEvents {
			w.logger.Warn("watcher pending-event ceiling reached, dropping event",
				logging.String("path", event.Name))
			return
		}
		w.pending++
	}
	path := event.Name
	w.timers[path] = time.AfterFunc(w.cfg.DebounceInterval, func() {
		w.fire(ctx, path)
	})
}

func (w *Watcher) fire(ctx context.Context, path string) {
	w.mu.Lock()
	delete(w.timers, path)
	w.pending--
	w.mu.Unlock()

	raw, err := os.ReadFile(path)
	if err != nil {
		w.logger.Warn("failed to read changed file", logging.String("path", path), logging.Err(err))
		return
	}
	info, err := os.Stat(path)
	if err != nil {
		return
	}

	provenance, err := w.classify(path)
	if err != nil {
		w.logger.Warn("unresolved provenance, skipping ingest", logging.String("path", path))
		return
	}

	if err := w.ingest(ctx, raw, path, provenance, info.ModTime()); err != nil {
		w.logger.Error("watcher ingest failed", logging.String("path", path), logging.Err(err))
	}
}

// classify assigns Provenance by which configured root a path falls under:
// InboxDir is internal, ExternalDir is external, and anything else resolves
// to errors.CodeProvenanceUnresolved (spec §4.E.2).
func (w *Watcher) classify(path string) (ingest.Provenance, error) {
	clean := filepath.Clean(path)
	if w.cfg.InboxDir != "" && strings.HasPrefix(clean, filepath.Clean(w.cfg.InboxDir)) {
		return ingest.ProvenanceInternal, nil
	}
	if w.cfg.ExternalDir != "" && strings.HasPrefix(clean, filepath.Clean(w.cfg.ExternalDir)) {
		return ingest.ProvenanceExternal, nil
	}
	return "", errors.New(errors.CodeProvenanceUnresolved, "path does not fall under any configured provenance root")
}

func (w *Watcher) drain() {
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, t := range w.timers {
		t.Stop()
	}
	w.timers = make(map[string]*time.Timer)
	w.pending = 0
}

// Close releases the underlying fsnotify watch handles.
func (w *Watcher) Close() error {
	return w.fs.Close()
}
