package query

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/parchmint/corpora/core"
)

// Grouping modes accepted by Request.Groups. Any other non-empty value
// is treated as a field name to group on.
const (
	GroupsNone   = "none"
	GroupsGroup  = "group"
	GroupsSource = "source"
)

// Request describes a search to compile. Query is either a keyword
// list or an expression; Filters are extra expressions conjoined with
// the query's first match.
type Request struct {
	Query       string
	Filters     []string
	Collections []string
	Limit       int64
	Skip        int64
	Sort        string
	Raw         bool
	Groups      string
}

// Compiled is an executable query: an op list plus paging and routing
// decisions resolved from the request and its inline markers.
type Compiled struct {
	Ops         []Op
	Collections []string
	Limit       int64
	Skip        int64
	Sort        []SortKey
	Random      bool
	Raw         bool
	Handler     PluginHandler
	HandlerArgs []string

	log *slog.Logger
}

// Compiler turns request strings into op lists. The zero value is not
// usable; construct with NewCompiler.
type Compiler struct {
	terms   TermResolver
	plugins map[string]PluginHandler
	log     *slog.Logger
}

// CompilerOption configures a Compiler.
type CompilerOption func(*Compiler)

// WithTermResolver installs a resolver used by term() calls and by
// keyword-mode tokens to expand tag aliases.
func WithTermResolver(r TermResolver) CompilerOption {
	return func(c *Compiler) { c.terms = r }
}

// WithPluginHandler registers a handler that a trailing plugin marker
// can route fetching to.
func WithPluginHandler(name string, h PluginHandler) CompilerOption {
	return func(c *Compiler) { c.plugins[name] = h }
}

// WithLogger sets the logger used by the compiler and the queries it
// produces.
func WithLogger(log *slog.Logger) CompilerOption {
	return func(c *Compiler) { c.log = log }
}

func NewCompiler(opts ...CompilerOption) *Compiler {
	c := &Compiler{
		plugins: map[string]PluginHandler{},
		log:     slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Compile parses the request and assembles the full op list, applying
// extra filters, inline markers and the grouping fragment.
func (c *Compiler) Compile(req Request) (*Compiled, error) {
	ops, err := c.parseMain(req.Query)
	if err != nil {
		return nil, err
	}

	ops, err = c.mergeFilters(ops, req.Filters)
	if err != nil {
		return nil, err
	}

	cq := &Compiled{
		Ops:         ops,
		Collections: req.Collections,
		Limit:       req.Limit,
		Skip:        req.Skip,
		log:         c.log,
	}
	if err := c.routePlugin(cq); err != nil {
		return nil, err
	}
	c.takeCollection(cq)
	c.takeRaw(cq, req.Raw)

	sort := req.Sort
	if sort == "id" {
		sort = ""
	}
	sort, err = c.applyGrouping(cq, req.Groups, sort)
	if err != nil {
		return nil, err
	}

	if sort == "random" {
		cq.Random = true
	} else if sort != "" {
		keys, err := ParseSortKeys(sort)
		if err != nil {
			return nil, err
		}
		cq.Sort = keys
	}

	c.log.Debug("query compiled",
		"ops", len(cq.Ops), "collections", len(cq.Collections), "sort", sort)
	return cq, nil
}

// parseMain parses the leading query string, which may be keyword mode
// or expression mode.
func (c *Compiler) parseMain(q string) ([]Op, error) {
	q = strings.TrimSpace(q)
	if q == "" {
		return nil, nil
	}
	if !IsExpression(q) {
		cond := keywordCondition(q, c.terms)
		if _, all := cond.(MatchAll); all {
			return nil, nil
		}
		return []Op{Match{Cond: cond}}, nil
	}
	return parseQuery(strings.TrimPrefix(q, "?"), c.terms)
}

// mergeFilters conjoins extra filter expressions with the op list: a
// leading match absorbs them, otherwise a new match is appended.
func (c *Compiler) mergeFilters(ops []Op, filters []string) ([]Op, error) {
	var conds []Condition
	for _, f := range filters {
		if strings.TrimSpace(f) == "" {
			continue
		}
		cond, err := ParseCondition(f, c.terms)
		if err != nil {
			return nil, err
		}
		conds = append(conds, cond)
	}
	if len(conds) == 0 {
		return ops, nil
	}
	extra := conds[0]
	for _, c := range conds[1:] {
		extra = MergeAnd(extra, c)
	}

	if len(ops) == 0 {
		return []Op{Match{Cond: extra}}, nil
	}
	if first, ok := ops[0].(Match); ok {
		merged := make([]Op, len(ops))
		copy(merged, ops)
		merged[0] = Match{Cond: MergeAnd(first.Cond, extra)}
		return merged, nil
	}
	return append(ops, Match{Cond: extra}), nil
}

// routePlugin pops a trailing plugin marker and resolves its handler.
// The marker is "name/arg/arg...".
func (c *Compiler) routePlugin(cq *Compiled) error {
	if len(cq.Ops) == 0 {
		return nil
	}
	pl, ok := cq.Ops[len(cq.Ops)-1].(Plugin)
	if !ok {
		return nil
	}
	cq.Ops = cq.Ops[:len(cq.Ops)-1]
	parts := strings.Split(pl.Marker, "/")
	h, ok := c.plugins[parts[0]]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownPlugin, parts[0])
	}
	cq.Handler = h
	cq.HandlerArgs = parts[1:]
	return nil
}

// takeCollection pops a leading from() op into the collection list.
func (c *Compiler) takeCollection(cq *Compiled) {
	if len(cq.Ops) == 0 {
		return
	}
	if from, ok := cq.Ops[0].(From); ok {
		cq.Collections = []string{from.Collection}
		cq.Ops = cq.Ops[1:]
	}
}

// takeRaw pops a trailing raw() op into the raw passthrough field.
func (c *Compiler) takeRaw(cq *Compiled, raw bool) {
	cq.Raw = raw
	if len(cq.Ops) == 0 {
		return
	}
	if r, ok := cq.Ops[len(cq.Ops)-1].(Raw); ok {
		cq.Raw = r.Raw
		cq.Ops = cq.Ops[:len(cq.Ops)-1]
	}
}

// applyGrouping appends the grouping fragment and returns the sort
// spec, defaulted per mode when the request did not pick one.
func (c *Compiler) applyGrouping(cq *Compiled, groups, sort string) (string, error) {
	switch groups {
	case "", GroupsNone:
		return sort, nil
	case GroupsGroup:
		cq.Ops = append(cq.Ops, AssignGroup{Mode: GroupByTag})
		if sort == "" {
			sort = "group_id,-" + core.FieldDate
		}
	case GroupsSource:
		cq.Ops = append(cq.Ops, AssignGroup{Mode: GroupBySource})
		if sort == "" {
			sort = core.FieldSource
		}
	default:
		cq.Ops = append(cq.Ops, AssignGroup{Mode: GroupByField, Field: groups})
		if sort == "" {
			sort = "-" + core.FieldGroup
		}
	}

	fold := FoldGroups{}
	if !strings.Contains(sort, ".") && !strings.Contains(sort, ",") {
		field := strings.TrimPrefix(sort, "-")
		if field == "id" {
			field = "_id"
		}
		fold.SortField = field
		fold.SortDesc = strings.HasPrefix(sort, "-")
		sort = "sorting_field"
		if fold.SortDesc {
			sort = "-sorting_field"
		}
	}
	cq.Ops = append(cq.Ops, fold)
	return sort, nil
}

// Hash is a stable identifier of the compiled query, usable as a
// cache key.
func (cq *Compiled) Hash() core.ID {
	var b strings.Builder
	b.WriteString(OpsString(cq.Ops))
	b.WriteString("|")
	b.WriteString(strings.Join(cq.Collections, ";"))
	b.WriteString("|")
	b.WriteString(SortKeysString(cq.Sort))
	fmt.Fprintf(&b, "|%d|%d|%v|%v", cq.Limit, cq.Skip, cq.Random, cq.Raw)
	return core.IDFromContent(b.String())
}
