package pipeline

import (
	"context"

	"github.com/parchmint/corpora/query"
)

const timesVar = "times"

// RepeatWhile routes each record through a sub-pipeline repeatedly,
// either a fixed number of times or while a condition holds. The
// iteration counter lives in token scratch, keyed by this stage's
// ref, so concurrent loops and record fields are never touched.
type RepeatWhile struct {
	times   int
	cond    query.Condition
	subHead Ref
	subTail Ref
}

// NewRepeatWhile builds the stage from config keys "pipeline",
// "times" and "cond".
func NewRepeatWhile(b *Builder, self Ref, cfg Config) (Stage, error) {
	st := &RepeatWhile{times: cfg.Int("times", 1)}

	if expr := cfg.String("cond", ""); expr != "" {
		cond, err := query.ParseCondition(expr, nil)
		if err != nil {
			return nil, err
		}
		st.cond = cond
	}

	specs, err := cfg.Specs("pipeline")
	if err != nil {
		return nil, err
	}
	st.subHead, st.subTail, err = b.Chain(specs)
	if err != nil {
		return nil, err
	}
	return st, nil
}

// Link rewires the sub-pipeline's tail back to this stage so each
// pass re-evaluates the loop condition.
func (st *RepeatWhile) Link(g *Graph, self Ref) {
	if st.subTail != Terminal {
		g.SetNext(st.subTail, self)
	}
}

func (st *RepeatWhile) Flow(ctx context.Context, tok *Token, fr Frame) ([]Emit, error) {
	n := 0
	if v, ok := tok.Var(fr.Self, timesVar); ok {
		n = v.(int)
	}

	again := n < st.times
	if st.cond != nil {
		again = st.cond.Matches(tok.Record)
	}
	tok.SetVar(fr.Self, timesVar, n+1)

	if again && st.subHead != Terminal {
		return []Emit{{Tok: tok, To: st.subHead}}, nil
	}
	tok.ClearVar(fr.Self, timesVar)
	return []Emit{{Tok: tok, To: fr.Next}}, nil
}

// Condition routes each record into one of two sub-pipelines based on
// a per-record predicate. Either branch may be empty, in which case
// the record continues to the stage's successor.
type Condition struct {
	cond      query.Condition
	trueHead  Ref
	trueTail  Ref
	falseHead Ref
	falseTail Ref
}

// NewCondition builds the stage from config keys "cond", "iftrue" and
// "iffalse".
func NewCondition(b *Builder, self Ref, cfg Config) (Stage, error) {
	cond, err := query.ParseCondition(cfg.String("cond", ""), nil)
	if err != nil {
		return nil, err
	}
	st := &Condition{cond: cond}

	trueSpecs, err := cfg.Specs("iftrue")
	if err != nil {
		return nil, err
	}
	st.trueHead, st.trueTail, err = b.Chain(trueSpecs)
	if err != nil {
		return nil, err
	}

	falseSpecs, err := cfg.Specs("iffalse")
	if err != nil {
		return nil, err
	}
	st.falseHead, st.falseTail, err = b.Chain(falseSpecs)
	if err != nil {
		return nil, err
	}
	return st, nil
}

// Link joins both branch tails to this stage's successor.
func (st *Condition) Link(g *Graph, self Ref) {
	next := g.Next(self)
	if st.trueTail != Terminal {
		g.SetNext(st.trueTail, next)
	}
	if st.falseTail != Terminal {
		g.SetNext(st.falseTail, next)
	}
}

func (st *Condition) Flow(ctx context.Context, tok *Token, fr Frame) ([]Emit, error) {
	head := st.trueHead
	if !st.cond.Matches(tok.Record) {
		head = st.falseHead
	}
	if head == Terminal {
		head = fr.Next
	}
	return []Emit{{Tok: tok, To: head}}, nil
}

// RegisterFlowStages adds the flow-control stages to a registry.
func RegisterFlowStages(reg *Registry) {
	reg.MustRegister("RepeatWhile", Factory{
		Params: []string{"pipeline", "times", "cond"},
		New:    NewRepeatWhile,
	})
	reg.MustRegister("Condition", Factory{
		Params: []string{"cond", "iftrue", "iffalse"},
		New:    NewCondition,
	})
}
