package model

import "errors"

var (
	// ErrNotReady is returned when a prediction is requested from a
	// component whose artifacts have not been loaded.
	ErrNotReady = errors.New("model artifacts not loaded")

	// ErrDimensionMismatch is returned when a feature vector does not have
	// the dimension the classifier was trained with.
	ErrDimensionMismatch = errors.New("feature dimension mismatch")

	// ErrMalformedBatchInput is returned when a batch table lacks the text
	// column or holds a non-string value in it.
	ErrMalformedBatchInput = errors.New("malformed batch input")
)
