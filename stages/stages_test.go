package stages

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parchmint/corpora/core"
	"github.com/parchmint/corpora/pipeline"
	storebadger "github.com/parchmint/corpora/store/badger"
)

func buildGraph(t *testing.T, specs []core.StageSpec) *pipeline.Graph {
	t.Helper()
	records, _, _, backend, err := storebadger.NewMemoryStores()
	require.NoError(t, err)
	t.Cleanup(func() {
		records.Close()
		backend.Close()
	})
	reg := pipeline.NewRegistry()
	Register(reg, records)
	g, err := pipeline.Build(reg, specs)
	require.NoError(t, err)
	return g
}

// run drives records through the graph sequentially and returns the
// ones that reached the end.
func run(t *testing.T, g *pipeline.Graph, recs ...*core.Record) []*core.Record {
	t.Helper()
	ctx := context.Background()
	var out []*core.Record
	for _, rec := range recs {
		type pending struct {
			tok *pipeline.Token
			at  pipeline.Ref
		}
		queue := []pending{{pipeline.NewToken(rec), g.Head()}}
		for len(queue) > 0 {
			p := queue[0]
			queue = queue[1:]
			if p.at == pipeline.Terminal {
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
	}
	return out
}

func rec(id core.ID, tags ...string) *core.Record {
	r := core.NewRecord(id)
	r.SetTags(tags)
	return r
}

func TestFilterRecords(t *testing.T) {
	g := buildGraph(t, []core.StageSpec{
		{Name: "FilterRecords", Config: map[string]any{"cond": "tags=keep"}},
	})
	out := run(t, g, rec(1, "keep"), rec(2, "drop"), rec(3, "keep"))
	require.Len(t, out, 2)
	assert.Equal(t, core.ID(1), out[0].ID)
	assert.Equal(t, core.ID(3), out[1].ID)
}

func TestLimitRecords(t *testing.T) {
	g := buildGraph(t, []core.StageSpec{
		{Name: "LimitRecords", Config: map[string]any{"limit": 2}},
	})
	out := run(t, g, rec(1), rec(2), rec(3))
	assert.Len(t, out, 2)
}

func TestSetAndRemoveField(t *testing.T) {
	g := buildGraph(t, []core.StageSpec{
		{Name: "SetField", Config: map[string]any{"field": "lang", "value": "en"}},
		{Name: "RemoveField", Config: map[string]any{"field": "draft"}},
	})
	r := rec(1)
	r.Set("draft", true)
	out := run(t, g, r)
	require.Len(t, out, 1)
	assert.Equal(t, "en", out[0].Get("lang"))
	assert.False(t, out[0].Has("draft"))
}

func TestAddRemoveTags(t *testing.T) {
	g := buildGraph(t, []core.StageSpec{
		{Name: "AddTags", Config: map[string]any{"tags": "new,dup"}},
		{Name: "RemoveTags", Config: map[string]any{"tags": []any{"old"}}},
	})
	out := run(t, g, rec(1, "old", "dup"))
	require.Len(t, out, 1)
	assert.Equal(t, []string{"dup", "new"}, out[0].Tags())
}

func TestFieldsToText(t *testing.T) {
	g := buildGraph(t, []core.StageSpec{
		{Name: "FieldsToText", Config: map[string]any{
			"fields":    "title,author",
			"separator": " / ",
		}},
	})
	r := rec(1)
	r.Set("title", "Bridges")
	r.Set("author", "doe")
	out := run(t, g, r)
	require.Len(t, out, 1)
	assert.Equal(t, "Bridges / doe", out[0].Get(core.FieldContent))
}

func TestAccumulateSummary(t *testing.T) {
	g := buildGraph(t, []core.StageSpec{{Name: "Accumulate"}})
	run(t, g, rec(1), rec(2))

	summary, err := g.Summarize(context.Background())
	require.NoError(t, err)
	recs, ok := summary.([]*core.Record)
	require.True(t, ok)
	assert.Len(t, recs, 2)
}

func TestSaveRecords(t *testing.T) {
	records, _, _, backend, err := storebadger.NewMemoryStores()
	require.NoError(t, err)
	t.Cleanup(func() {
		records.Close()
		backend.Close()
	})
	reg := pipeline.NewRegistry()
	Register(reg, records)
	g, err := pipeline.Build(reg, []core.StageSpec{
		{Name: "SaveRecords", Config: map[string]any{"collection": "out"}},
	})
	require.NoError(t, err)

	r := core.NewRecord(0)
	r.Set(core.FieldContent, "fresh")
	out := run(t, g, r)
	require.Len(t, out, 1)
	require.NotZero(t, out[0].ID)

	got, err := records.GetRecord(context.Background(), "out", out[0].ID)
	require.NoError(t, err)
	assert.Equal(t, "fresh", got.Get(core.FieldContent))

	summary, err := g.Summarize(context.Background())
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"saved": int64(1)}, summary)
}

func TestBadConfigRejectedAtBuild(t *testing.T) {
	records, _, _, backend, err := storebadger.NewMemoryStores()
	require.NoError(t, err)
	t.Cleanup(func() {
		records.Close()
		backend.Close()
	})
	reg := pipeline.NewRegistry()
	Register(reg, records)

	_, err = pipeline.Build(reg, []core.StageSpec{{Name: "SetField"}})
	assert.ErrorIs(t, err, pipeline.ErrBadConfig)
}
