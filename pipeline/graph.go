package pipeline

import (
	"context"
	"fmt"
	"log/slog"
)

// Ref is a handle to a node in a graph's node table.
type Ref int

// Terminal is the destination of records leaving the graph.
const Terminal Ref = -1

// Frame is the position context a stage receives on each call: its
// own ref and its linked successor.
type Frame struct {
	Self Ref
	Next Ref
	Log  *slog.Logger
}

// Emit pairs a token with its destination ref.
type Emit struct {
	Tok *Token
	To  Ref
}

// Stage is a unit of per-record transformation. Flow may emit zero or
// more tokens, each with an explicit destination.
type Stage interface {
	Flow(ctx context.Context, tok *Token, fr Frame) ([]Emit, error)
}

// Summarizer is implemented by stages with an end-of-stream
// finalization step. Summaries run in node-table order after all
// records have drained.
type Summarizer interface {
	Summarize(ctx context.Context) (any, error)
}

// Linker is implemented by stages that re-link graph destinations
// once the full chain is known: loop tails back to themselves, branch
// tails onto their successor.
type Linker interface {
	Link(g *Graph, self Ref)
}

type node struct {
	name  string
	stage Stage
	next  Ref
}

// Graph is a node table of stages. Nodes default to chain links in
// insertion order; flow-control stages rewire them during Link.
type Graph struct {
	nodes []node
	head  Ref
	log   *slog.Logger
}

// GraphOption configures a Graph.
type GraphOption func(*Graph)

// WithLogger sets the logger handed to stages through their Frame.
func WithLogger(log *slog.Logger) GraphOption {
	return func(g *Graph) { g.log = log }
}

func NewGraph(opts ...GraphOption) *Graph {
	g := &Graph{head: Terminal, log: slog.Default()}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Head returns the entry ref, or Terminal for an empty graph.
func (g *Graph) Head() Ref { return g.head }

// Len returns the number of nodes.
func (g *Graph) Len() int { return len(g.nodes) }

// Name returns a node's stage name.
func (g *Graph) Name(ref Ref) string {
	if !g.valid(ref) {
		return ""
	}
	return g.nodes[ref].name
}

// Stage returns the stage at ref.
func (g *Graph) Stage(ref Ref) (Stage, error) {
	if !g.valid(ref) {
		return nil, fmt.Errorf("%w: %d", ErrBadRef, ref)
	}
	return g.nodes[ref].stage, nil
}

// Next returns the linked successor of ref.
func (g *Graph) Next(ref Ref) Ref {
	if !g.valid(ref) {
		return Terminal
	}
	return g.nodes[ref].next
}

// SetNext rewires a node's successor.
func (g *Graph) SetNext(ref, next Ref) {
	if g.valid(ref) {
		g.nodes[ref].next = next
	}
}

// Frame builds the call frame for a node.
func (g *Graph) Frame(ref Ref) Frame {
	return Frame{Self: ref, Next: g.Next(ref), Log: g.log.With("stage", g.Name(ref))}
}

// Summarize runs finalization over all summarizing stages in
// node-table order, returning the last non-nil summary.
func (g *Graph) Summarize(ctx context.Context) (any, error) {
	var result any
	for ref := range g.nodes {
		s, ok := g.nodes[ref].stage.(Summarizer)
		if !ok {
			continue
		}
		v, err := s.Summarize(ctx)
		if err != nil {
			return nil, fmt.Errorf("summarize %s: %w", g.nodes[ref].name, err)
		}
		if v != nil {
			result = v
		}
	}
	return result, nil
}

func (g *Graph) valid(ref Ref) bool {
	return ref >= 0 && int(ref) < len(g.nodes)
}

// reserve appends an empty node and returns its ref; the stage is
// bound later so constructors can reference their own ref.
func (g *Graph) reserve(name string) Ref {
	g.nodes = append(g.nodes, node{name: name, next: Terminal})
	return Ref(len(g.nodes) - 1)
}

func (g *Graph) bind(ref Ref, s Stage) {
	g.nodes[ref].stage = s
}

// link runs the re-link pass over all linker stages.
func (g *Graph) link() {
	for ref := range g.nodes {
		if l, ok := g.nodes[ref].stage.(Linker); ok {
			l.Link(g, Ref(ref))
		}
	}
}
