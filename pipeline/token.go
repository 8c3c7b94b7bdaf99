package pipeline

import "github.com/parchmint/corpora/core"

// Token carries one record through the graph together with
// stage-scoped scratch variables. Variables are keyed by the owning
// stage's ref so two instances of the same stage type never collide,
// and they are never serialized with the record.
type Token struct {
	Record *core.Record
	vars   map[varKey]any
}

type varKey struct {
	stage Ref
	name  string
}

// NewToken wraps a record for graph traversal.
func NewToken(rec *core.Record) *Token {
	return &Token{Record: rec}
}

// Var reads a scratch variable owned by the given stage.
func (t *Token) Var(stage Ref, name string) (any, bool) {
	v, ok := t.vars[varKey{stage, name}]
	return v, ok
}

// SetVar writes a scratch variable owned by the given stage.
func (t *Token) SetVar(stage Ref, name string, v any) {
	if t.vars == nil {
		t.vars = map[varKey]any{}
	}
	t.vars[varKey{stage, name}] = v
}

// ClearVar removes a scratch variable, typically when its owning
// construct exits.
func (t *Token) ClearVar(stage Ref, name string) {
	delete(t.vars, varKey{stage, name})
}

// Fork derives a token for an additional emitted record. Scratch
// variables are copied so loop state stays independent per branch.
func (t *Token) Fork(rec *core.Record) *Token {
	nt := &Token{Record: rec}
	if len(t.vars) > 0 {
		nt.vars = make(map[varKey]any, len(t.vars))
		for k, v := range t.vars {
			nt.vars[k] = v
		}
	}
	return nt
}
