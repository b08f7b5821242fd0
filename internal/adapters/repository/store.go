// Package repository defines the run history store interface and errors.
package repository

import (
	"context"
	"time"
)

// Run is one recorded pipeline execution.
type Run struct {
	RunID        string
	StartedAt    time.Time
	Duration     time.Duration
	TotalASVs    int
	ClusterCount int
	NoiseCount   int
	// ReportJSON is the serialized report of the run.
	ReportJSON []byte
}

// Store provides read/write access to the run history.
type Store interface {
	// Record inserts a run, replacing any earlier row with the same id.
	Record(ctx context.Context, run Run) error

	// Get returns one run. Returns ErrNotFound if the id is unknown.
	Get(ctx context.Context, runID string) (Run, error)

	// List returns the latest runs, newest first.
	List(ctx context.Context, limit int) ([]Run, error)

	// Count returns the number of recorded runs.
	Count(ctx context.Context) (int, error)

	Close() error
}
