package core

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// RunID identifies one enqueued run of a job. It embeds the job id, the
// job name, and the enqueue timestamp, and doubles as the result lookup
// key: "<jobid-hex>/<name>_<unix-seconds>".
type RunID string

// NewRunID builds a run id for a job enqueued at the given time.
// A zero job id is replaced with a random component so two ad-hoc runs
// of unnamed jobs never collide.
func NewRunID(jobID ID, name string, enqueued time.Time) RunID {
	if jobID == 0 {
		jobID = IDFromContent(uuid.NewString())
	}
	if name == "" {
		name = "task"
	}
	name = strings.NewReplacer("/", "-", "_", "-").Replace(name)
	return RunID(fmt.Sprintf("%s/%s_%d", jobID, name, enqueued.Unix()))
}

// JobID returns the embedded job id.
func (r RunID) JobID() (ID, error) {
	head, _, ok := strings.Cut(string(r), "/")
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrInvalidRunID, r)
	}
	return ParseID(head)
}

// Name returns the embedded job name.
func (r RunID) Name() string {
	_, rest, ok := strings.Cut(string(r), "/")
	if !ok {
		return ""
	}
	name, _, _ := strings.Cut(rest, "_")
	return name
}

// EnqueuedAt returns the embedded enqueue timestamp, or the zero time.
func (r RunID) EnqueuedAt() time.Time {
	i := strings.LastIndexByte(string(r), '_')
	if i < 0 {
		return time.Time{}
	}
	secs, err := strconv.ParseInt(string(r)[i+1:], 10, 64)
	if err != nil {
		return time.Time{}
	}
	return time.Unix(secs, 0).UTC()
}
