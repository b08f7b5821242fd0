package config

import (
	"errors"
)

// Sentinel error kinds for this package; match with errors.Is.
var (
	// ErrInvalidConfig marks values no pipeline stage can run with.
	ErrInvalidConfig = errors.New("invalid config")
	// ErrLoadConfig marks failures reading the file or environment layers.
	ErrLoadConfig = errors.New("load config failed")
)
