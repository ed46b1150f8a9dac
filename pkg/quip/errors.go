package quip

import "github.com/crimson-sun/quip/internal/model"

// Errors returned by prediction calls. Match them with errors.Is.
var (
	ErrNotReady            = model.ErrNotReady
	ErrDimensionMismatch   = model.ErrDimensionMismatch
	ErrMalformedBatchInput = model.ErrMalformedBatchInput
)
