package repository

import "errors"

// Sentinel kinds for run history errors.
var (
	ErrNotFound     = errors.New("run not found")
	ErrInvalidLimit = errors.New("invalid run history limit")
)
