package storage

import "errors"

var (
	// ErrMalformed is returned when a handoff file does not have the expected shape.
	ErrMalformed = errors.New("malformed handoff file")
	// ErrMissing is returned when a stage's input file does not exist.
	ErrMissing = errors.New("handoff file missing")
)
