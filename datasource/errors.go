package datasource

import "errors"

var (
	// ErrUnknownSource indicates a data source name absent from the
	// registry.
	ErrUnknownSource = errors.New("unknown data source")

	// ErrDuplicateSource indicates a data source name registered twice.
	ErrDuplicateSource = errors.New("data source already registered")

	// ErrBadConfig indicates a malformed data source configuration.
	ErrBadConfig = errors.New("bad data source configuration")

	// ErrInvalidMaxAttempts indicates a non-positive retry budget.
	ErrInvalidMaxAttempts = errors.New("max attempts must be positive")
)
