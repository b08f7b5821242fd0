package watch

import (
	"time"

	"github.com/okian/argonauts/pkg/logger"
)

// Option applies a configuration option to the Watcher.
type Option func(*Watcher)

// WithName sets the watcher name used in logs.
func WithName(name string) Option {
	return func(w *Watcher) {
		if name != "" {
			w.name = name
		}
	}
}

// WithLogger sets a custom logger for the watcher.
func WithLogger(l logger.Logger) Option {
	return func(w *Watcher) {
		if l != nil {
			w.logger = l
		}
	}
}

// WithDebounce sets how long the watcher waits for writes to settle.
func WithDebounce(d time.Duration) Option {
	return func(w *Watcher) {
		if d > 0 {
			w.debounce = d
		}
	}
}
