// Package store defines the persistence abstraction for content
// records, job specifications and term aliases.
//
// The interfaces here decouple the rest of the system from the
// concrete backend. The badger subpackage provides the default
// implementation; tests and embedders may supply their own.
//
// All public constructors in backend packages return these interfaces
// rather than concrete types, so backends stay swappable and
// consumers can substitute mocks without modification.
package store
