package badger

import (
	"fmt"
	"math/rand/v2"
	"slices"
	"strings"
	"time"

	"github.com/parchmint/corpora/core"
	"github.com/parchmint/corpora/query"
)

// applyOps evaluates an op list over materialized records. Ops run in
// order, each consuming the previous result.
func applyOps(recs []*core.Record, ops []query.Op) ([]*core.Record, error) {
	var err error
	for _, op := range ops {
		switch o := op.(type) {
		case query.Match:
			recs = filterRecords(recs, o.Cond)
		case query.Sort:
			sortRecords(recs, o.Keys)
		case query.Skip:
			if o.N >= int64(len(recs)) {
				recs = nil
			} else {
				recs = recs[o.N:]
			}
		case query.Limit:
			if o.N > 0 && o.N < int64(len(recs)) {
				recs = recs[:o.N]
			}
		case query.Sample:
			recs = sampleRecords(recs, o.Size)
		case query.GroupBy:
			recs, err = groupRecords(recs, o)
			if err != nil {
				return nil, err
			}
		case query.AssignGroup:
			assignGroups(recs, o)
		case query.FoldGroups:
			recs = foldGroups(recs, o)
		default:
			return nil, fmt.Errorf("unsupported aggregation op %s", op)
		}
	}
	return recs, nil
}

func filterRecords(recs []*core.Record, cond query.Condition) []*core.Record {
	out := recs[:0:0]
	for _, rec := range recs {
		if cond.Matches(rec) {
			out = append(out, rec)
		}
	}
	return out
}

func sortRecords(recs []*core.Record, keys []query.SortKey) {
	slices.SortStableFunc(recs, func(a, b *core.Record) int {
		for _, k := range keys {
			c := compareValues(sortValue(a, k.Field), sortValue(b, k.Field))
			if c == 0 {
				continue
			}
			if k.Desc {
				return -c
			}
			return c
		}
		return 0
	})
}

func sortValue(rec *core.Record, field string) any {
	if field == "_id" || field == "id" {
		return uint64(rec.ID)
	}
	return rec.Get(field)
}

// compareValues orders mixed scalar values: nil first, then numbers,
// times and strings.
func compareValues(a, b any) int {
	if a == nil || b == nil {
		switch {
		case a == nil && b == nil:
			return 0
		case a == nil:
			return -1
		default:
			return 1
		}
	}
	if af, aok := toFloat(a); aok {
		if bf, bok := toFloat(b); bok {
			switch {
			case af < bf:
				return -1
			case af > bf:
				return 1
			default:
				return 0
			}
		}
	}
	if at, aok := a.(time.Time); aok {
		if bt, bok := b.(time.Time); bok {
			return at.Compare(bt)
		}
	}
	return strings.Compare(fmt.Sprint(a), fmt.Sprint(b))
}

func toFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case int:
		return float64(x), true
	case int64:
		return float64(x), true
	case uint64:
		return float64(x), true
	case float64:
		return x, true
	case float32:
		return float64(x), true
	case core.ID:
		return float64(x), true
	}
	return 0, false
}

func sampleRecords(recs []*core.Record, size int64) []*core.Record {
	if size <= 0 || size >= int64(len(recs)) {
		return recs
	}
	out := slices.Clone(recs)
	rand.Shuffle(len(out), func(i, j int) { out[i], out[j] = out[j], out[i] })
	return out[:size]
}

// groupRecords implements the groupby op: one output record per
// distinct key tuple, carrying the first member's fields plus the
// aggregate results and the group key.
func groupRecords(recs []*core.Record, op query.GroupBy) ([]*core.Record, error) {
	type group struct {
		rep     *core.Record
		members []*core.Record
	}
	var order []string
	groups := map[string]*group{}

	for _, rec := range recs {
		parts := make([]string, len(op.Keys))
		for i, key := range op.Keys {
			parts[i] = fmt.Sprint(sortValue(rec, key))
		}
		key := strings.Join(parts, "\x00")
		g, ok := groups[key]
		if !ok {
			g = &group{rep: rec.Clone()}
			g.rep.Set(core.FieldGroup, strings.Join(parts, "|"))
			if len(op.Keys) > 0 {
				g.rep.Set("group_field", op.Keys[0])
			}
			groups[key] = g
			order = append(order, key)
		}
		g.members = append(g.members, rec)
	}

	out := make([]*core.Record, 0, len(order))
	for _, key := range order {
		g := groups[key]
		for _, agg := range op.Aggs {
			v, err := aggregateMembers(g.members, agg)
			if err != nil {
				return nil, err
			}
			g.rep.Set(agg.Name, v)
		}
		out = append(out, g.rep)
	}
	return out, nil
}

func aggregateMembers(members []*core.Record, agg query.Agg) (any, error) {
	switch agg.Fn {
	case query.AggCount:
		return int64(len(members)), nil
	case query.AggFirst:
		for _, m := range members {
			if v := m.Get(agg.Field); v != nil {
				return v, nil
			}
		}
		return nil, nil
	case query.AggMax, query.AggMin:
		var best any
		for _, m := range members {
			v := m.Get(agg.Field)
			if v == nil {
				continue
			}
			if best == nil {
				best = v
				continue
			}
			c := compareValues(v, best)
			if (agg.Fn == query.AggMax && c > 0) || (agg.Fn == query.AggMin && c < 0) {
				best = v
			}
		}
		return best, nil
	case query.AggSum:
		var sum float64
		for _, m := range members {
			if f, ok := toFloat(m.Get(agg.Field)); ok {
				sum += f
			}
		}
		return sum, nil
	case query.AggSumLen:
		var sum int64
		for _, m := range members {
			sum += int64(listLen(m.Get(agg.Field)))
		}
		return sum, nil
	case query.AggPush:
		var out []any
		for _, m := range members {
			if v := m.Get(agg.Field); v != nil {
				out = append(out, v)
			}
		}
		return out, nil
	case query.AggSet:
		var out []any
		seen := map[string]bool{}
		for _, m := range members {
			v := m.Get(agg.Field)
			if v == nil {
				continue
			}
			k := fmt.Sprint(v)
			if !seen[k] {
				seen[k] = true
				out = append(out, v)
			}
		}
		return out, nil
	}
	return nil, fmt.Errorf("unsupported aggregate %q", agg.Fn)
}

func listLen(v any) int {
	switch x := v.(type) {
	case []any:
		return len(x)
	case []core.ID:
		return len(x)
	case []string:
		return len(x)
	}
	return 0
}

// assignGroups stamps each record's group key per the selected mode.
func assignGroups(recs []*core.Record, op query.AssignGroup) {
	for _, rec := range recs {
		var gid string
		switch op.Mode {
		case query.GroupByTag:
			gid = groupTag(rec)
		case query.GroupBySource:
			gid = rec.SourceLocator()
		case query.GroupByField:
			if v := rec.Get(op.Field); v != nil {
				gid = fmt.Sprint(v)
			}
		}
		if gid == "" {
			gid = "id=" + rec.ID.String()
		}
		rec.Set(core.FieldGroup, gid)
	}
}

// groupTag picks the smallest tag carrying the group prefix.
func groupTag(rec *core.Record) string {
	var best string
	for _, tag := range rec.Tags() {
		if !strings.HasPrefix(tag, core.GroupTagPrefix) {
			continue
		}
		if best == "" || tag < best {
			best = tag
		}
	}
	return best
}

// foldGroups collapses records sharing a group key into one
// representative: items are set-unioned, item counts summed, and an
// optional synthetic sorting field carries the group's min or max of
// the requested field. Groups keyed by a group tag replace the tag
// list with that tag.
func foldGroups(recs []*core.Record, op query.FoldGroups) []*core.Record {
	type group struct {
		rep   *core.Record
		items []core.ID
		seen  map[core.ID]bool
		count int64
		best  any
	}
	var order []string
	groups := map[string]*group{}

	for _, rec := range recs {
		gid, _ := rec.Get(core.FieldGroup).(string)
		if gid == "" {
			gid = "id=" + rec.ID.String()
		}
		g, ok := groups[gid]
		if !ok {
			g = &group{rep: rec.Clone(), seen: map[core.ID]bool{}}
			groups[gid] = g
			order = append(order, gid)
		}
		for _, item := range rec.Items() {
			if !g.seen[item] {
				g.seen[item] = true
				g.items = append(g.items, item)
			}
		}
		g.count += int64(len(rec.Items()))
		if op.SortField != "" {
			v := sortValue(rec, op.SortField)
			if v != nil {
				if g.best == nil {
					g.best = v
				} else if c := compareValues(v, g.best); (op.SortDesc && c > 0) || (!op.SortDesc && c < 0) {
					g.best = v
				}
			}
		}
	}

	out := make([]*core.Record, 0, len(order))
	for _, gid := range order {
		g := groups[gid]
		g.rep.Set(core.FieldItems, g.items)
		g.rep.Set("count", g.count)
		if op.SortField != "" {
			g.rep.Set("sorting_field", g.best)
		}
		if strings.HasPrefix(gid, core.GroupTagPrefix) {
			g.rep.SetTags([]string{gid})
		}
		out = append(out, g.rep)
	}
	return out
}
