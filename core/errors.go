package core

import "errors"

// Domain validation errors
var (
	// ErrInvalidID indicates an identifier could not be parsed.
	ErrInvalidID = errors.New("invalid id")

	// ErrInvalidJobSpec indicates a job specification failed validation.
	ErrInvalidJobSpec = errors.New("invalid job spec")

	// ErrInvalidRunID indicates a run id is not in canonical form.
	ErrInvalidRunID = errors.New("invalid run id")

	// ErrEmptyDataSource indicates a job spec names no data source.
	ErrEmptyDataSource = errors.New("data source required")

	// ErrInvalidConcurrency indicates a concurrency level below 1.
	ErrInvalidConcurrency = errors.New("concurrency must be at least 1")
)
