package store

import (
	"context"
	"iter"

	"github.com/parchmint/corpora/core"
	"github.com/parchmint/corpora/query"
)

// RecordStore manages content records grouped into named collections
// and executes compiled op lists over them.
// Implementations must be safe for concurrent use.
type RecordStore interface {
	// AddRecords inserts records into a collection. Records with ID=0
	// get sequence-generated IDs. Returns the records with IDs set.
	AddRecords(ctx context.Context, collection string, records ...*core.Record) ([]*core.Record, error)

	// UpdateRecords overwrites existing records.
	// Returns ErrNotFound if any record does not exist.
	UpdateRecords(ctx context.Context, collection string, records ...*core.Record) error

	// DeleteRecords removes records by ID. Missing IDs are ignored.
	DeleteRecords(ctx context.Context, collection string, ids ...core.ID) error

	// GetRecord retrieves a single record.
	// Returns ErrNotFound if the record does not exist.
	GetRecord(ctx context.Context, collection string, id core.ID) (*core.Record, error)

	// Aggregate runs an op list over a collection, yielding results
	// lazily. An empty collection name targets the default collection.
	Aggregate(ctx context.Context, collection string, ops []query.Op) iter.Seq2[*core.Record, error]

	// Count returns the number of records the op list selects,
	// ignoring paging ops.
	Count(ctx context.Context, collection string, ops []query.Op) (int64, error)

	// Collections lists collection names that hold at least one record.
	Collections(ctx context.Context) ([]string, error)

	// Close releases backend resources.
	Close() error
}

// JobStore persists job specifications between runs.
type JobStore interface {
	// PutJob stores a job. A zero job ID is assigned from the spec
	// name's content hash.
	PutJob(ctx context.Context, job *core.Job) (*core.Job, error)

	// GetJob retrieves a job by ID. Returns ErrNotFound if missing.
	GetJob(ctx context.Context, id core.ID) (*core.Job, error)

	// ListJobs returns all stored jobs, ordered by ID.
	ListJobs(ctx context.Context) ([]*core.Job, error)

	// DeleteJob removes a job. Missing IDs are ignored.
	DeleteJob(ctx context.Context, id core.ID) error

	// TouchLastRun records the time a job last started.
	TouchLastRun(ctx context.Context, id core.ID) error
}

// TermStore persists tag alias sets used to expand query terms.
type TermStore interface {
	// PutTerm stores a term and its aliases.
	PutTerm(ctx context.Context, term string, aliases ...string) error

	// Resolve returns the term and all aliases of any alias set the
	// given word belongs to, or nil when the word is unknown.
	Resolve(ctx context.Context, term string) ([]string, error)
}

// Resolver adapts a TermStore to the query compiler's resolver hook.
// Lookup failures resolve to nil rather than failing the parse.
func Resolver(ctx context.Context, ts TermStore) query.TermResolver {
	return func(term string) []string {
		expanded, err := ts.Resolve(ctx, term)
		if err != nil {
			return nil
		}
		return expanded
	}
}

var _ query.Store = (RecordStore)(nil)
