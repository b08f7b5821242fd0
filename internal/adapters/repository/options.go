package repository

import "time"

// Option applies a configuration option to the SQLiteStore.
type Option func(*SQLiteStore)

// WithBusyTimeout sets how long writers wait on a locked database.
func WithBusyTimeout(d time.Duration) Option {
	return func(s *SQLiteStore) {
		if d > 0 {
			s.busyTimeout = d
		}
	}
}

// WithMaxList caps the rows a single List call may return.
func WithMaxList(n int) Option {
	return func(s *SQLiteStore) {
		if n > 0 {
			s.maxList = n
		}
	}
}
