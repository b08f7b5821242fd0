package clustering

import "errors"

var (
	// ErrInvalidParams is returned for non-positive eps or min samples.
	ErrInvalidParams = errors.New("invalid clustering parameters")
	// ErrTooFewPoints is returned when a linkage needs more points than given.
	ErrTooFewPoints = errors.New("not enough points")
)
