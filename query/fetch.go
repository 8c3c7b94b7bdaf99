package query

import (
	"context"
	"iter"

	"github.com/parchmint/corpora/core"
)

// Store is the aggregation surface a compiled query runs against.
type Store interface {
	// Aggregate runs an op list over the named collection and yields
	// the resulting records lazily.
	Aggregate(ctx context.Context, collection string, ops []Op) iter.Seq2[*core.Record, error]

	// Count returns the number of records the op list selects in the
	// named collection, ignoring paging.
	Count(ctx context.Context, collection string, ops []Op) (int64, error)
}

// PluginHandler replaces the default fetch path for queries carrying a
// plugin marker.
type PluginHandler func(ctx context.Context, st Store, cq *Compiled, args []string) iter.Seq2[*core.Record, error]

// Fetch yields results across all collections in order. A positive
// skip spans collection boundaries: collections whose full count fits
// under the remaining skip are dropped entirely. When a handler was
// routed, it takes over fetching.
func (cq *Compiled) Fetch(ctx context.Context, st Store) iter.Seq2[*core.Record, error] {
	if cq.Handler != nil {
		return cq.Handler(ctx, st, cq, cq.HandlerArgs)
	}
	return cq.fetchAll(ctx, st)
}

func (cq *Compiled) fetchAll(ctx context.Context, st Store) iter.Seq2[*core.Record, error] {
	return func(yield func(*core.Record, error) bool) {
		skips, err := cq.collectionSkips(ctx, st)
		if err != nil {
			yield(nil, err)
			return
		}
		for _, coll := range cq.Collections {
			skip, ok := skips[coll]
			if ok && skip < 0 {
				continue
			}
			for rec, err := range cq.fetchCollection(ctx, st, coll, skip) {
				if !yield(rec, err) {
					return
				}
				if err != nil {
					return
				}
			}
		}
	}
}

// collectionSkips distributes the global skip over the collection
// list. A value of -1 marks a collection skipped whole.
func (cq *Compiled) collectionSkips(ctx context.Context, st Store) (map[string]int64, error) {
	skips := map[string]int64{}
	if cq.Skip <= 0 {
		return skips, nil
	}
	remaining := cq.Skip
	for _, coll := range cq.Collections {
		count, err := st.Count(ctx, coll, cq.Ops)
		if err != nil {
			return nil, err
		}
		if count <= remaining {
			remaining -= count
			skips[coll] = -1
			continue
		}
		skips[coll] = remaining
		break
	}
	return skips, nil
}

// fetchCollection assembles the final op list for one collection and
// runs it.
func (cq *Compiled) fetchCollection(ctx context.Context, st Store, coll string, skip int64) iter.Seq2[*core.Record, error] {
	ops := make([]Op, len(cq.Ops), len(cq.Ops)+3)
	copy(ops, cq.Ops)

	limit := cq.Limit
	switch {
	case cq.Random:
		// Sampling replaces paging.
		ops = append(ops, Sample{Size: limit})
		limit = 0
		skip = 0
	case len(cq.Sort) == 0 || isIDAsc(cq.Sort):
		if !hasSort(ops) {
			ops = append(ops, Sort{Keys: []SortKey{
				{Field: core.FieldDate, Desc: true},
				{Field: "_id"},
			}})
		}
	default:
		ops = append(ops, Sort{Keys: cq.Sort})
	}
	if skip > 0 {
		ops = append(ops, Skip{N: skip})
	}
	if limit > 0 {
		ops = append(ops, Limit{N: limit})
	}
	return st.Aggregate(ctx, coll, ops)
}

func isIDAsc(keys []SortKey) bool {
	return len(keys) == 1 && keys[0].Field == "_id" && !keys[0].Desc
}

// Count sums the selected record counts across collections. It
// returns CountError when any collection fails, matching callers that
// treat the count as advisory.
func (cq *Compiled) Count(ctx context.Context, st Store) int64 {
	var total int64
	for _, coll := range cq.Collections {
		n, err := st.Count(ctx, coll, cq.Ops)
		if err != nil {
			cq.log.Warn("count failed", "collection", coll, "error", err)
			return CountError
		}
		total += n
	}
	return total
}
