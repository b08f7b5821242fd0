package api

import "errors"

// Sentinel kinds for API errors. Dependencies return them so handlers can
// pick a status code without inspecting messages.
var (
	ErrBadRequest      = errors.New("bad request")
	ErrNotReady        = errors.New("outputs not produced yet")
	ErrNotFound        = errors.New("not found")
	ErrHistoryDisabled = errors.New("run history disabled")
)
