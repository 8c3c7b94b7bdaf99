package query

import (
	"fmt"
	"strings"

	"github.com/parchmint/corpora/core"
)

// Op is one aggregation operation in a compiled query. Ops are executed
// in order by the record store against one collection.
type Op interface {
	fmt.Stringer
	isOp()
}

// Match filters records by a condition.
type Match struct {
	Cond Condition
}

// Sort orders records by one or more keys.
type Sort struct {
	Keys []SortKey
}

// SortKey is one component of a sort order.
type SortKey struct {
	Field string
	Desc  bool
}

// Skip drops the first N records.
type Skip struct {
	N int64
}

// Limit truncates the stream after N records.
type Limit struct {
	N int64
}

// Sample replaces the stream with a bounded random sample.
type Sample struct {
	Size int64
}

// GroupBy groups records by one or more key fields, restores each
// group's original record shape from its first member, and overlays the
// requested aggregates. The group key is also exposed as group_id and
// the first key field name as group_field.
type GroupBy struct {
	Keys []string
	Aggs []Agg
}

// Agg is one aggregate computed per group and written to Name.
type Agg struct {
	Name  string
	Fn    AggFn
	Field string
}

// AggFn enumerates the aggregate functions understood by the store.
type AggFn string

const (
	AggFirst  AggFn = "first"
	AggMax    AggFn = "max"
	AggMin    AggFn = "min"
	AggSum    AggFn = "sum"
	AggPush   AggFn = "push"
	AggSet    AggFn = "set"    // push with set-union (dedup) semantics
	AggCount  AggFn = "count"  // number of records in the group
	AggSumLen AggFn = "sumlen" // sum of element counts of a list field
)

// GroupKeyMode selects how AssignGroup derives each record's group key.
type GroupKeyMode string

const (
	// GroupByTag keys on the smallest reserved-prefixed tag, falling back
	// to an id synthesized from the record's own identifier.
	GroupByTag GroupKeyMode = "tag"
	// GroupBySource keys on the normalized origin locator.
	GroupBySource GroupKeyMode = "source"
	// GroupByField keys on an arbitrary field path.
	GroupByField GroupKeyMode = "field"
)

// AssignGroup tags each record with its group key in group_id.
type AssignGroup struct {
	Mode  GroupKeyMode
	Field string // for GroupByField
}

// FoldGroups collapses records sharing a group key: sub-item lists are
// folded with set-union semantics, a per-group item count is computed,
// and when SortField is set a synthetic per-group min/max sorting_field
// is projected so later sorting never touches a field that only exists
// per element. A group whose key is a reserved-prefixed tag has its tag
// list collapsed to that single tag.
type FoldGroups struct {
	SortField string
	SortDesc  bool
}

// From overrides the collection list. It is stripped during assembly and
// never reaches the store.
type From struct {
	Collection string
}

// Plugin reroutes fetching to a named handler. It is stripped during
// assembly and never reaches the store.
type Plugin struct {
	Marker string // "name/arg1/arg2"
}

// Raw overrides the raw/object-return flag. It is stripped during
// assembly and never reaches the store.
type Raw struct {
	Raw bool
}

func (Match) isOp()       {}
func (Sort) isOp()        {}
func (Skip) isOp()        {}
func (Limit) isOp()       {}
func (Sample) isOp()      {}
func (GroupBy) isOp()     {}
func (AssignGroup) isOp() {}
func (FoldGroups) isOp()  {}
func (From) isOp()        {}
func (Plugin) isOp()      {}
func (Raw) isOp()         {}

func (m Match) String() string { return "match(" + m.Cond.String() + ")" }

func (s Sort) String() string {
	parts := make([]string, len(s.Keys))
	for i, k := range s.Keys {
		parts[i] = k.String()
	}
	return "sort(" + strings.Join(parts, ",") + ")"
}

func (k SortKey) String() string {
	if k.Desc {
		return "-" + k.Field
	}
	return k.Field
}

func (s Skip) String() string   { return fmt.Sprintf("skip(%d)", s.N) }
func (l Limit) String() string  { return fmt.Sprintf("limit(%d)", l.N) }
func (s Sample) String() string { return fmt.Sprintf("sample(%d)", s.Size) }

func (g GroupBy) String() string {
	parts := make([]string, 0, len(g.Keys)+len(g.Aggs))
	for _, k := range g.Keys {
		parts = append(parts, "$"+k)
	}
	for _, a := range g.Aggs {
		parts = append(parts, fmt.Sprintf("%s=%s($%s)", a.Name, a.Fn, a.Field))
	}
	return "groupby(" + strings.Join(parts, ",") + ")"
}

func (a AssignGroup) String() string {
	if a.Mode == GroupByField {
		return fmt.Sprintf("assigngroup(%s,%s)", a.Mode, a.Field)
	}
	return fmt.Sprintf("assigngroup(%s)", a.Mode)
}

func (f FoldGroups) String() string {
	if f.SortField == "" {
		return "foldgroups()"
	}
	return "foldgroups(" + SortKey{Field: f.SortField, Desc: f.SortDesc}.String() + ")"
}

func (f From) String() string   { return "from(" + f.Collection + ")" }
func (p Plugin) String() string { return "plugin(" + p.Marker + ")" }
func (r Raw) String() string    { return fmt.Sprintf("raw(%v)", r.Raw) }

// OpsString renders ops in a stable textual form, used for query hashes.
func OpsString(ops []Op) string {
	parts := make([]string, len(ops))
	for i, op := range ops {
		parts[i] = op.String()
	}
	return strings.Join(parts, "=>")
}

// HashOps returns a stable content hash of a compiled op list.
func HashOps(ops []Op) string {
	return core.IDFromContent(OpsString(ops)).String()
}

// hasSort reports whether any op in the list orders records.
func hasSort(ops []Op) bool {
	for _, op := range ops {
		if _, ok := op.(Sort); ok {
			return true
		}
	}
	return false
}
