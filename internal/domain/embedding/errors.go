package embedding

import "errors"

// ErrInvalidInput is returned when the data cannot be embedded with the configured options.
var ErrInvalidInput = errors.New("invalid t-SNE input")

// ErrUnknownMethod is returned for a method other than barnes_hut or exact.
var ErrUnknownMethod = errors.New("unknown t-SNE method")
