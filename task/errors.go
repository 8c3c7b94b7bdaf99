package task

import "errors"

var (
	// ErrUnknownRun indicates a run id with no queue entry and no
	// stored result.
	ErrUnknownRun = errors.New("unknown run id")

	// ErrRunActive indicates an operation that needs a finished run
	// was given one still waiting or running.
	ErrRunActive = errors.New("run is still active")

	// ErrUnknownJob indicates a CallTask referencing a job id absent
	// from the job store.
	ErrUnknownJob = errors.New("unknown job id")

	// ErrBadOverride indicates a CallTask override path that does not
	// resolve inside the target specification.
	ErrBadOverride = errors.New("bad override path")
)
