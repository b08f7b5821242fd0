package features

import "errors"

var (
	// ErrNotFitted is returned by Transform before Fit.
	ErrNotFitted = errors.New("vectorizer is not fitted")
	// ErrEmptyVocabulary is returned when no document yields an n-gram.
	ErrEmptyVocabulary = errors.New("empty vocabulary")
	// ErrInvalidRange is returned for an n-gram range with min < 1 or max < min.
	ErrInvalidRange = errors.New("invalid n-gram range")
)
