package query

import "errors"

var (
	// ErrSyntax indicates a malformed query expression.
	ErrSyntax = errors.New("query syntax error")

	// ErrUnknownFunction indicates a call to an unregistered extension function.
	ErrUnknownFunction = errors.New("unknown query function")

	// ErrBadArgument indicates an extension function argument of the wrong
	// shape or type.
	ErrBadArgument = errors.New("bad function argument")

	// ErrUnknownPlugin indicates a plugin marker naming no registered handler.
	ErrUnknownPlugin = errors.New("unknown plugin handler")

	// ErrBadSortKey indicates a malformed sort expression.
	ErrBadSortKey = errors.New("bad sort key")

	// ErrCountFailed indicates a count that hit a store error; the
	// numeric surface reports it as the CountError sentinel.
	ErrCountFailed = errors.New("count failed")
)

// CountError is the sentinel returned by Compiled.Count when any
// per-collection count fails. It is distinguishable from an empty
// result, which counts as 0.
const CountError = -1
