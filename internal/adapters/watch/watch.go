// Package watch reloads pipeline outputs when they change on disk.
package watch

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/okian/argonauts/pkg/logger"
	"github.com/okian/argonauts/pkg/metrics"
)

const defaultDebounce = 250 * time.Millisecond

// ErrNoFiles is returned when no file names are given to watch.
var ErrNoFiles = errors.New("no files to watch")

// Reloader re-reads whatever the watched files back.
type Reloader interface {
	Reload(ctx context.Context) error
}

// Watcher observes a directory and calls a Reloader once a burst of changes
// to the named files has settled.
type Watcher struct {
	dir      string
	files    map[string]struct{}
	reloader Reloader
	name     string
	debounce time.Duration

	fs *fsnotify.Watcher

	// Shutdown control
	shutdown chan struct{}
	once     sync.Once
	done     chan struct{}

	logger logger.Logger
}

// New creates a watcher for files (base names) inside dir.
func New(dir string, files []string, reloader Reloader, opts ...Option) (*Watcher, error) {
	if len(files) == 0 {
		return nil, ErrNoFiles
	}
	w := &Watcher{
		dir:      dir,
		files:    make(map[string]struct{}, len(files)),
		reloader: reloader,
		name:     "watch",
		debounce: defaultDebounce,
		shutdown: make(chan struct{}),
		done:     make(chan struct{}),
	}
	for _, f := range files {
		w.files[filepath.Base(f)] = struct{}{}
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.logger == nil {
		w.logger = logger.Get().Named(w.name)
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	// Files are replaced by rename, so the directory is watched, not the files.
	if err := fw.Add(dir); err != nil {
		_ = fw.Close()
		return nil, fmt.Errorf("watch %s: %w", dir, err)
	}
	w.fs = fw
	return w, nil
}

// Run processes filesystem events until ctx is canceled or Shutdown is called.
func (w *Watcher) Run(ctx context.Context) {
	defer close(w.done)
	defer func() {
		if err := w.fs.Close(); err != nil {
			w.logger.Warn(ctx, "closing watcher", logger.Error(err))
		}
	}()

	w.logger.Info(ctx, "watching outputs", logger.String("dir", w.dir), logger.Int("files", len(w.files)))

	var (
		timer   *time.Timer
		settled <-chan time.Time
	)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.shutdown:
			return
		case event, ok := <-w.fs.Events:
			if !ok {
				return
			}
			if !w.relevant(event) {
				continue
			}
			w.logger.Debug(ctx, "output changed", logger.String("file", event.Name), logger.String("op", event.Op.String()))
			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				timer.Reset(w.debounce)
			}
			settled = timer.C
		case err, ok := <-w.fs.Errors:
			if !ok {
				return
			}
			metrics.RecordError("watch", "fsnotify")
			w.logger.Error(ctx, "watcher error", logger.Error(err))
		case <-settled:
			settled = nil
			w.reload(ctx)
		}
	}
}

func (w *Watcher) relevant(event fsnotify.Event) bool {
	if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) &&
		!event.Has(fsnotify.Rename) && !event.Has(fsnotify.Remove) {
		return false
	}
	_, ok := w.files[filepath.Base(event.Name)]
	return ok
}

func (w *Watcher) reload(ctx context.Context) {
	start := time.Now()
	if err := w.reloader.Reload(ctx); err != nil {
		metrics.RecordError("watch", "reload")
		w.logger.Error(ctx, "reload failed", logger.Error(err))
		return
	}
	metrics.RecordReportReload()
	w.logger.Info(ctx, "outputs reloaded", logger.Duration("took", time.Since(start)))
}

// Shutdown stops the watcher and waits for Run to return.
func (w *Watcher) Shutdown(ctx context.Context) error {
	w.once.Do(func() { close(w.shutdown) })

	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		w.logger.Warn(ctx, "shutdown timed out")
		return fmt.Errorf("shutdown timed out: %w", ctx.Err())
	}
}
