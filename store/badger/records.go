package badger

import (
	"bytes"
	"context"
	"iter"
	"sync"

	"github.com/dgraph-io/badger/v4"

	"github.com/parchmint/corpora/core"
	"github.com/parchmint/corpora/query"
	"github.com/parchmint/corpora/store"
)

// RecordStore implements store.RecordStore for BadgerDB.
type RecordStore struct {
	backend *Backend

	mu   sync.Mutex
	seqs map[string]*badger.Sequence
}

var _ store.RecordStore = (*RecordStore)(nil)

// NewRecordStore creates a record store on the given backend.
func NewRecordStore(backend *Backend) (store.RecordStore, error) {
	return &RecordStore{
		backend: backend,
		seqs:    map[string]*badger.Sequence{},
	}, nil
}

// Close releases the ID sequences. The backend is closed separately.
func (r *RecordStore) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	var firstErr error
	for _, seq := range r.seqs {
		if err := seq.Release(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	r.seqs = map[string]*badger.Sequence{}
	return firstErr
}

func (r *RecordStore) sequence(collection string) (*badger.Sequence, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if seq, ok := r.seqs[collection]; ok {
		return seq, nil
	}
	seq, err := r.backend.GetSequence(makeSequenceKey(collection))
	if err != nil {
		return nil, err
	}
	r.seqs[collection] = seq
	return seq, nil
}

// AddRecords inserts records, assigning sequence IDs where missing.
func (r *RecordStore) AddRecords(ctx context.Context, collection string, records ...*core.Record) ([]*core.Record, error) {
	coll, ok := collectionName(collection)
	if !ok {
		return nil, store.ErrInvalidCollection
	}
	seq, err := r.sequence(coll)
	if err != nil {
		return nil, err
	}
	err = r.backend.WithTx(func(tx *badger.Txn) error {
		for _, rec := range records {
			if rec.ID == 0 {
				next, err := seq.Next()
				if err != nil {
					return err
				}
				// Sequences can return 0 on first call; skip it.
				if next == 0 {
					next, err = seq.Next()
					if err != nil {
						return err
					}
				}
				rec.ID = core.ID(next)
			}
			value, err := store.MarshalRecord(rec)
			if err != nil {
				return err
			}
			if err := tx.Set(makeRecordKey(coll, rec.ID), value); err != nil {
				return err
			}
		}
		return tx.Commit()
	}, true)
	if err != nil {
		return nil, err
	}
	return records, nil
}

// UpdateRecords overwrites existing records.
func (r *RecordStore) UpdateRecords(ctx context.Context, collection string, records ...*core.Record) error {
	coll, ok := collectionName(collection)
	if !ok {
		return store.ErrInvalidCollection
	}
	return r.backend.WithTx(func(tx *badger.Txn) error {
		for _, rec := range records {
			key := makeRecordKey(coll, rec.ID)
			if _, err := tx.Get(key); err == badger.ErrKeyNotFound {
				return store.ErrNotFound
			} else if err != nil {
				return err
			}
			value, err := store.MarshalRecord(rec)
			if err != nil {
				return err
			}
			if err := tx.Set(key, value); err != nil {
				return err
			}
		}
		return tx.Commit()
	}, true)
}

// DeleteRecords removes records by ID. Missing IDs are ignored.
func (r *RecordStore) DeleteRecords(ctx context.Context, collection string, ids ...core.ID) error {
	coll, ok := collectionName(collection)
	if !ok {
		return store.ErrInvalidCollection
	}
	return r.backend.WithTx(func(tx *badger.Txn) error {
		for _, id := range ids {
			if err := tx.Delete(makeRecordKey(coll, id)); err != nil {
				return err
			}
		}
		return tx.Commit()
	}, true)
}

// GetRecord retrieves a single record.
func (r *RecordStore) GetRecord(ctx context.Context, collection string, id core.ID) (*core.Record, error) {
	coll, ok := collectionName(collection)
	if !ok {
		return nil, store.ErrInvalidCollection
	}
	var rec *core.Record
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		item, err := tx.Get(makeRecordKey(coll, id))
		if err == badger.ErrKeyNotFound {
			return store.ErrNotFound
		} else if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			rec, err = store.UnmarshalRecord(val)
			return err
		})
	}, false)
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// Aggregate runs an op list over a collection. The scan applies the
// leading match during iteration; the remaining ops run in memory.
func (r *RecordStore) Aggregate(ctx context.Context, collection string, ops []query.Op) iter.Seq2[*core.Record, error] {
	return func(yield func(*core.Record, error) bool) {
		out, err := r.run(ctx, collection, ops)
		if err != nil {
			yield(nil, err)
			return
		}
		for _, rec := range out {
			if !yield(rec, nil) {
				return
			}
		}
	}
}

// Count returns the number of records the op list selects.
func (r *RecordStore) Count(ctx context.Context, collection string, ops []query.Op) (int64, error) {
	stripped := make([]query.Op, 0, len(ops))
	for _, op := range ops {
		switch op.(type) {
		case query.Skip, query.Limit, query.Sample, query.Sort:
			continue
		}
		stripped = append(stripped, op)
	}
	out, err := r.run(ctx, collection, stripped)
	if err != nil {
		return 0, err
	}
	return int64(len(out)), nil
}

func (r *RecordStore) run(ctx context.Context, collection string, ops []query.Op) ([]*core.Record, error) {
	coll, ok := collectionName(collection)
	if !ok {
		return nil, store.ErrInvalidCollection
	}

	// A leading match filters during the scan so only survivors are
	// materialized.
	var scanCond query.Condition = query.MatchAll{}
	rest := ops
	if len(ops) > 0 {
		if m, ok := ops[0].(query.Match); ok {
			scanCond = m.Cond
			rest = ops[1:]
		}
	}

	recs, err := r.scan(ctx, coll, scanCond)
	if err != nil {
		return nil, err
	}
	return applyOps(recs, rest)
}

func (r *RecordStore) scan(ctx context.Context, coll string, cond query.Condition) ([]*core.Record, error) {
	var recs []*core.Record
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = makeCollectionPrefix(coll)
		it := tx.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			var rec *core.Record
			err := it.Item().Value(func(val []byte) error {
				var err error
				rec, err = store.UnmarshalRecord(val)
				return err
			})
			if err != nil {
				return err
			}
			if cond.Matches(rec) {
				recs = append(recs, rec)
			}
		}
		return nil
	}, false)
	if err != nil {
		return nil, err
	}
	return recs, nil
}

// Collections lists collection names that hold at least one record.
func (r *RecordStore) Collections(ctx context.Context) ([]string, error) {
	var names []string
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = []byte(recordPrefix + ":")
		it := tx.NewIterator(opts)
		defer it.Close()

		var last []byte
		for it.Rewind(); it.Valid(); it.Next() {
			key := it.Item().Key()
			rest := key[len(recordPrefix)+1:]
			idx := bytes.IndexByte(rest, ':')
			if idx < 0 {
				continue
			}
			name := rest[:idx]
			if bytes.Equal(name, last) {
				continue
			}
			last = append(last[:0], name...)
			names = append(names, string(name))
		}
		return nil
	}, false)
	if err != nil {
		return nil, err
	}
	return names, nil
}
