package pipeline

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parchmint/corpora/core"
)

// tagOnce appends a marker tag to every record it sees.
type tagOnce struct {
	tag string
}

func (s *tagOnce) Flow(ctx context.Context, tok *Token, fr Frame) ([]Emit, error) {
	tok.Record.SetTags(append(tok.Record.Tags(), s.tag))
	return []Emit{{Tok: tok, To: fr.Next}}, nil
}

func testRegistry() *Registry {
	reg := NewRegistry()
	RegisterFlowStages(reg)
	reg.MustRegister("Tag", Factory{
		Params: []string{"tag"},
		New: func(b *Builder, self Ref, cfg Config) (Stage, error) {
			return &tagOnce{tag: cfg.String("tag", "x")}, nil
		},
	})
	return reg
}

// drive pushes one record through the graph to fixed point and
// returns the emitted records.
func drive(t *testing.T, g *Graph, rec *core.Record) []*core.Record {
	t.Helper()
	ctx := context.Background()
	type pending struct {
		tok *Token
		at  Ref
	}
	queue := []pending{{NewToken(rec), g.Head()}}
	var out []*core.Record
	for len(queue) > 0 {
		p := queue[0]
		queue = queue[1:]
		if p.at == Terminal {
			out = append(out, p.tok.Record)
			continue
		}
		stage, err := g.Stage(p.at)
		require.NoError(t, err)
		emits, err := stage.Flow(ctx, p.tok, g.Frame(p.at))
		require.NoError(t, err)
		for _, e := range emits {
			queue = append(queue, pending{e.Tok, e.To})
		}
	}
	return out
}

func TestChainLinksInOrder(t *testing.T) {
	g, err := Build(testRegistry(), []core.StageSpec{
		{Name: "Tag", Config: map[string]any{"tag": "a"}},
		{Name: "Tag", Config: map[string]any{"tag": "b"}},
	})
	require.NoError(t, err)
	require.Equal(t, 2, g.Len())

	out := drive(t, g, core.NewRecord(1))
	require.Len(t, out, 1)
	assert.Equal(t, []string{"a", "b"}, out[0].Tags())
}

func TestBuildUnknownStage(t *testing.T) {
	_, err := Build(testRegistry(), []core.StageSpec{{Name: "Nope"}})
	assert.ErrorIs(t, err, ErrUnknownStage)
}

func TestRepeatWhileTimes(t *testing.T) {
	g, err := Build(testRegistry(), []core.StageSpec{
		{Name: "RepeatWhile", Config: map[string]any{
			"times": 3,
			"pipeline": []any{
				map[string]any{"name": "Tag", "config": map[string]any{"tag": "loop"}},
			},
		}},
		{Name: "Tag", Config: map[string]any{"tag": "after"}},
	})
	require.NoError(t, err)

	out := drive(t, g, core.NewRecord(1))
	require.Len(t, out, 1)
	// The sub-pipeline ran exactly three times before continuing.
	assert.Equal(t, []string{"loop", "loop", "loop", "after"}, out[0].Tags())
	// No loop bookkeeping leaked into the record's fields.
	for key := range out[0].Fields {
		assert.NotContains(t, key, "times")
	}
}

func TestRepeatWhileCondition(t *testing.T) {
	reg := testRegistry()
	reg.MustRegister("Bump", Factory{
		Params: []string{},
		New: func(b *Builder, self Ref, cfg Config) (Stage, error) {
			return stageFunc(func(ctx context.Context, tok *Token, fr Frame) ([]Emit, error) {
				n, _ := tok.Record.Get("n").(int64)
				tok.Record.Set("n", n+1)
				return []Emit{{Tok: tok, To: fr.Next}}, nil
			}), nil
		},
	})
	g, err := Build(reg, []core.StageSpec{
		{Name: "RepeatWhile", Config: map[string]any{
			"cond": "n<5",
			"pipeline": []any{
				map[string]any{"name": "Bump", "config": map[string]any{}},
			},
		}},
	})
	require.NoError(t, err)

	rec := core.NewRecord(1)
	rec.Set("n", int64(0))
	out := drive(t, g, rec)
	require.Len(t, out, 1)
	assert.Equal(t, int64(5), out[0].Get("n"))
}

type stageFunc func(ctx context.Context, tok *Token, fr Frame) ([]Emit, error)

func (f stageFunc) Flow(ctx context.Context, tok *Token, fr Frame) ([]Emit, error) {
	return f(ctx, tok, fr)
}

func TestConditionBranching(t *testing.T) {
	specs := []core.StageSpec{
		{Name: "Condition", Config: map[string]any{
			"cond": "kind=a",
			"iftrue": []any{
				map[string]any{"name": "Tag", "config": map[string]any{"tag": "yes"}},
			},
			"iffalse": []any{
				map[string]any{"name": "Tag", "config": map[string]any{"tag": "no"}},
			},
		}},
		{Name: "Tag", Config: map[string]any{"tag": "joined"}},
	}

	g, err := Build(testRegistry(), specs)
	require.NoError(t, err)

	recA := core.NewRecord(1)
	recA.Set("kind", "a")
	out := drive(t, g, recA)
	require.Len(t, out, 1)
	assert.Equal(t, []string{"yes", "joined"}, out[0].Tags())

	recB := core.NewRecord(2)
	recB.Set("kind", "b")
	out = drive(t, g, recB)
	require.Len(t, out, 1)
	assert.Equal(t, []string{"no", "joined"}, out[0].Tags())
}

func TestConditionEmptyBranchFallsThrough(t *testing.T) {
	g, err := Build(testRegistry(), []core.StageSpec{
		{Name: "Condition", Config: map[string]any{"cond": "kind=a"}},
		{Name: "Tag", Config: map[string]any{"tag": "next"}},
	})
	require.NoError(t, err)

	rec := core.NewRecord(1)
	rec.Set("kind", "z")
	out := drive(t, g, rec)
	require.Len(t, out, 1)
	assert.Equal(t, []string{"next"}, out[0].Tags())
}

func TestTokenVarsIndependentPerFork(t *testing.T) {
	tok := NewToken(core.NewRecord(1))
	tok.SetVar(0, "times", 2)

	fork := tok.Fork(core.NewRecord(2))
	fork.SetVar(0, "times", 9)

	v, ok := tok.Var(0, "times")
	require.True(t, ok)
	assert.Equal(t, 2, v)
}
