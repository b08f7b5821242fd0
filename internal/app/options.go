package service

import (
	"time"

	"github.com/okian/argonauts/internal/adapters/repository"
	"github.com/okian/argonauts/pkg/logger"
)

// Option applies a configuration option to the Pipeline.
type Option func(*Pipeline)

// WithLogger sets a custom logger for the pipeline.
func WithLogger(l logger.Logger) Option {
	return func(p *Pipeline) {
		if l != nil {
			p.logger = l
		}
	}
}

// WithHistory records every completed report in store.
func WithHistory(store repository.Store) Option {
	return func(p *Pipeline) {
		p.history = store
	}
}

// WithClock sets the time source for manifests and reports.
func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) {
		if now != nil {
			p.now = now
		}
	}
}
