// Package pipeline implements the record-processing graph: stages
// connected into a mutable directed graph, built from named stage
// specifications through a registry.
//
// A graph is a node table addressed by integer Ref handles. Nodes are
// chain-linked in declaration order by default; flow-control stages
// re-link destinations to express branching and looping. Records
// travel as Tokens, which carry stage-scoped scratch variables that
// never touch the record's own fields.
package pipeline
