package datasource

import (
	"context"
	"fmt"
	"iter"

	"github.com/parchmint/corpora/core"
	"github.com/parchmint/corpora/pipeline"
	"github.com/parchmint/corpora/query"
)

// DBQuery streams records matching a compiled search against the
// record store.
type DBQuery struct {
	compiled *query.Compiled
	store    query.Store
}

// NewDBQuery compiles the configured query. Collection defaults to
// the store's default collection when none is given.
func NewDBQuery(cfg pipeline.Config, env Env) (DataSource, error) {
	if env.Compiler == nil || env.Records == nil {
		return nil, fmt.Errorf("%w: dbquery needs a record store and compiler", ErrBadConfig)
	}
	req := query.Request{
		Query:       cfg.String("query", ""),
		Filters:     cfg.Strings("filters"),
		Collections: cfg.Strings("collections"),
		Limit:       int64(cfg.Int("limit", 0)),
		Skip:        int64(cfg.Int("skip", 0)),
		Sort:        cfg.String("sort", ""),
		Raw:         cfg.Bool("raw", false),
		Groups:      cfg.String("groups", query.GroupsNone),
	}
	if len(req.Collections) == 0 {
		req.Collections = []string{""}
	}
	compiled, err := env.Compiler.Compile(req)
	if err != nil {
		return nil, err
	}
	return &DBQuery{compiled: compiled, store: env.Records}, nil
}

func (d *DBQuery) Fetch(ctx context.Context) iter.Seq2[*core.Record, error] {
	return d.compiled.Fetch(ctx, d.store)
}

// Count evaluates the query's total without paging.
func (d *DBQuery) Count(ctx context.Context) int64 {
	return d.compiled.Count(ctx, d.store)
}
