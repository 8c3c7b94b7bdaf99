package task

import (
	"time"

	"github.com/parchmint/corpora/core"
)

// FileExtKey is the reserved key of a map-valued result carrying a
// file extension hint for binary aggregate payloads.
const FileExtKey = "__file_ext__"

// Failure is a structured fatal task outcome.
type Failure struct {
	Message string `json:"message"`
	Trace   string `json:"trace,omitempty"`
}

// Result is the immutable outcome of one task run: either a value
// (a record list or a single aggregate) or a failure, never both.
type Result struct {
	Value      any
	Failure    *Failure
	FinishedAt time.Time
}

// Viewable reports whether the result carries something worth
// presenting: any value, or a failure to display.
func (r *Result) Viewable() bool {
	return r != nil && (r.Failure != nil || r.Value != nil)
}

// Records returns the result as a record list when it is one.
func (r *Result) Records() ([]*core.Record, bool) {
	recs, ok := r.Value.([]*core.Record)
	return recs, ok
}

// FileExt returns the file extension hint of a map-valued result, or
// the empty string.
func (r *Result) FileExt() string {
	m, ok := r.Value.(map[string]any)
	if !ok {
		return ""
	}
	ext, _ := m[FileExtKey].(string)
	return ext
}

// Window returns an offset/limit slice of a list-valued result. A
// non-list value is returned whole; a limit of 0 means no bound.
func (r *Result) Window(offset, limit int) any {
	switch list := r.Value.(type) {
	case []*core.Record:
		return Paginate(list, offset, limit)
	case []any:
		return Paginate(list, offset, limit)
	}
	return r.Value
}

// Paginate clamps an offset/limit window onto a slice.
func Paginate[T any](list []T, offset, limit int) []T {
	if offset < 0 {
		offset = 0
	}
	if offset >= len(list) {
		return nil
	}
	end := len(list)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	return list[offset:end]
}
