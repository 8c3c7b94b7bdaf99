package pipeline

import "errors"

var (
	// ErrUnknownStage indicates a stage name absent from the registry.
	ErrUnknownStage = errors.New("unknown stage")

	// ErrDuplicateStage indicates a stage name registered twice.
	ErrDuplicateStage = errors.New("stage already registered")

	// ErrBadConfig indicates a malformed stage configuration.
	ErrBadConfig = errors.New("bad stage configuration")

	// ErrBadRef indicates a destination outside the graph's node table.
	ErrBadRef = errors.New("invalid stage reference")
)
