package generator

import "errors"

// ErrInvalidOptions is returned when the generator cannot honour its options.
var ErrInvalidOptions = errors.New("invalid generator options")

// ErrInvalidSequence is returned by Validate.
var ErrInvalidSequence = errors.New("invalid sequence")
