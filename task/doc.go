// Package task executes job specifications: it builds a data source
// and a stage graph from the registries, advances records through the
// graph on a bounded worker pool, and serializes whole-task execution
// through a single-consumer FIFO queue.
package task
