// Package watcher observes an image tree for changes and emits
// coalesced event batches. The watch command reacts to a batch by
// running a fresh synchronization sweep, so events carry only enough
// detail for logging and coalescing.
package watcher

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/clipgrep/clipgrep/internal/scanner"
)

// Operation is the kind of filesystem change observed.
type Operation int

const (
	OpCreate Operation = iota
	OpModify
	OpDelete
	OpRename
)

func (op Operation) String() string {
	switch op {
	case OpCreate:
		return "CREATE"
	case OpModify:
		return "MODIFY"
	case OpDelete:
		return "DELETE"
	case OpRename:
		return "RENAME"
	default:
		return "UNKNOWN"
	}
}

// FileEvent is one observed change to an image file.
type FileEvent struct {
	// Path is the absolute file path.
	Path string

	// Operation is the observed change kind after coalescing.
	Operation Operation

	// Timestamp is when the event was first observed.
	Timestamp time.Time
}

// Options configures a Watcher.
type Options struct {
	// DebounceWindow is how long to wait for follow-up events before
	// emitting a batch. Default 500ms.
	DebounceWindow time.Duration

	// EventBufferSize is the batch channel capacity. Default 16.
	EventBufferSize int
}

// WithDefaults fills zero values.
func (o Options) WithDefaults() Options {
	if o.DebounceWindow == 0 {
		o.DebounceWindow = 500 * time.Millisecond
	}
	if o.EventBufferSize == 0 {
		o.EventBufferSize = 16
	}
	return o
}

// Watcher watches an image tree recursively via fsnotify. Events for
// files the scanner would not index are dropped at the source, so a
// busy non-image workload in the same tree never triggers sweeps.
type Watcher struct {
	fsw       *fsnotify.Watcher
	filter    *scanner.Scanner
	debouncer *Debouncer
	errs      chan error
	stopCh    chan struct{}
	root      string
	opts      Options
	mu        sync.Mutex
	stopped   bool
}

// New creates a Watcher filtering through the given scanner rules.
func New(filter *scanner.Scanner, opts Options) (*Watcher, error) {
	opts = opts.WithDefaults()
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create filesystem watcher: %w", err)
	}
	return &Watcher{
		fsw:       fsw,
		filter:    filter,
		debouncer: NewDebouncer(opts.DebounceWindow, opts.EventBufferSize),
		errs:      make(chan error, 10),
		stopCh:    make(chan struct{}),
		opts:      opts,
	}, nil
}

// Start watches root and blocks until ctx is cancelled or Stop is
// called. Event batches arrive on Events while Start runs.
func (w *Watcher) Start(ctx context.Context, root string) error {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return fmt.Errorf("resolve watch root: %w", err)
	}
	w.root = absRoot

	if err := w.addRecursive(absRoot); err != nil {
		return fmt.Errorf("register watch directories: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			_ = w.Stop()
			return ctx.Err()
		case <-w.stopCh:
			return nil
		case event, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			w.handle(event)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			w.emitError(err)
		}
	}
}

// Events returns the channel of debounced event batches.
func (w *Watcher) Events() <-chan []FileEvent {
	return w.debouncer.Output()
}

// Errors returns the channel of non-fatal watcher errors.
func (w *Watcher) Errors() <-chan error {
	return w.errs
}

// Stop stops the watcher. Safe to call multiple times.
func (w *Watcher) Stop() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.stopped {
		return nil
	}
	w.stopped = true
	close(w.stopCh)
	w.debouncer.Stop()
	close(w.errs)
	return w.fsw.Close()
}

// addRecursive registers root and every non-excluded directory below
// it. Directories created later are registered by handle.
func (w *Watcher) addRecursive(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && w.filter.Excluded(path) {
			return filepath.SkipDir
		}
		if err := w.fsw.Add(path); err != nil {
			slog.Warn("cannot watch directory",
				slog.String("path", path), slog.String("error", err.Error()))
		}
		return nil
	})
}

// handle converts an fsnotify event into a FileEvent, applying the
// scanner filters and tracking new directories.
func (w *Watcher) handle(event fsnotify.Event) {
	if w.filter.Excluded(event.Name) {
		return
	}

	if event.Op.Has(fsnotify.Create) {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if err := w.addRecursive(event.Name); err != nil {
				w.emitError(err)
			}
			return
		}
	}

	if !w.filter.Matches(event.Name) {
		return
	}

	op := OpModify
	switch {
	case event.Op.Has(fsnotify.Create):
		op = OpCreate
	case event.Op.Has(fsnotify.Remove):
		op = OpDelete
	case event.Op.Has(fsnotify.Rename):
		op = OpRename
	case event.Op.Has(fsnotify.Write):
		op = OpModify
	case event.Op.Has(fsnotify.Chmod):
		return
	}

	w.debouncer.Add(FileEvent{
		Path:      event.Name,
		Operation: op,
		Timestamp: time.Now(),
	})
}

// emitError forwards a non-fatal error without blocking. The stopped
// check is under the same mutex Stop closes the channel under, so a
// late error from the event loop cannot hit a closed channel.
func (w *Watcher) emitError(err error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.stopped {
		return
	}
	select {
	case w.errs <- err:
	default:
		slog.Warn("watcher error channel full, dropping error",
			slog.String("error", err.Error()))
	}
}
