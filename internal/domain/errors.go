package domain

import "errors"

var (
	// ErrConfig reports invalid parameters or mismatched components.
	ErrConfig = errors.New("configuration error")
	// ErrDimensionMismatch reports a vector whose length differs from the index dimension.
	ErrDimensionMismatch = errors.New("dimension mismatch")
	// ErrNotFound reports a missing document directory or persisted index.
	ErrNotFound = errors.New("not found")
	// ErrCorruptIndex reports persisted index data that failed an integrity check.
	ErrCorruptIndex = errors.New("corrupt index")
	// ErrEmptyCorpus reports that no documents or chunks were available to index.
	ErrEmptyCorpus = errors.New("empty corpus")
)
