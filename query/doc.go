// Package query compiles the record query language into an ordered list
// of aggregation operations executed by a record store.
//
// Two input modes are supported and selected heuristically:
//
//   - Keyword mode: a plain string with no reserved punctuation is
//     tokenized, lower-cased and de-duplicated, and compiled to an OR of
//     tag equalities. An all-whitespace query compiles to match-all.
//   - Expression mode: selected by a leading "?" sigil or by the presence
//     of reserved punctuation. Expressions combine field comparisons
//     (=, !=, >, >=, <, <=, % for substring match) with & or "," (and),
//     | (or) and ~ (not), plus extension functions that lower to
//     aggregation operations: sort, limit, skip, sample, groupby, begin,
//     term, id, date, from, raw and plugin. Multiple stages are chained
//     with "=>".
//
// The compiled form is an []Op understood by any store implementing the
// Store interface; conditions double as per-record predicates used by
// flow-control stages.
package query
