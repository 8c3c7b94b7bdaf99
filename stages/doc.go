// Package stages provides the builtin record-transformation stages:
// field and tag mutation, filtering, limiting, accumulation into a
// task result, and persistence back to the record store.
//
// All stages are safe for concurrent Flow calls; stages that keep
// state across records guard it with a mutex.
package stages
