package corpora

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parchmint/corpora/core"
	"github.com/parchmint/corpora/query"
)

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	e, err := NewEngine("", WithInMemory())
	require.NoError(t, err)
	t.Cleanup(func() { e.Close() })
	return e
}

func seedEngine(t *testing.T, e *Engine, tags ...string) {
	t.Helper()
	ctx := context.Background()
	for _, tag := range tags {
		rec := core.NewRecord(0)
		rec.SetTags([]string{tag})
		_, err := e.Records().AddRecords(ctx, "", rec)
		require.NoError(t, err)
	}
}

func TestEngineSearchAndCount(t *testing.T) {
	e := newTestEngine(t)
	seedEngine(t, e, "alpha", "beta", "alpha")

	recs, err := e.Search(context.Background(), query.Request{Query: "alpha"})
	require.NoError(t, err)
	assert.Len(t, recs, 2)

	n, err := e.Count(context.Background(), query.Request{Query: ""})
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
}

func TestEngineSubmitAndFetchResult(t *testing.T) {
	e := newTestEngine(t)
	seedEngine(t, e, "alpha", "beta")

	run, err := e.Submit(core.JobSpec{
		Name:             "collect",
		DataSource:       "dbquery",
		DataSourceConfig: map[string]any{"query": "alpha"},
		Pipeline: []core.StageSpec{
			{Name: "Accumulate"},
		},
	})
	require.NoError(t, err)
	e.Queue().Wait()

	res, err := e.Queue().Result(run)
	require.NoError(t, err)
	require.Nil(t, res.Failure)
	recs, ok := res.Records()
	require.True(t, ok)
	assert.Len(t, recs, 1)
}

func TestEngineSubmitStoredJob(t *testing.T) {
	e := newTestEngine(t)
	seedEngine(t, e, "alpha")

	ctx := context.Background()
	job, err := e.Jobs().PutJob(ctx, &core.Job{Spec: core.JobSpec{
		Name:       "stored",
		DataSource: "dbquery",
		Pipeline: []core.StageSpec{
			{Name: "Accumulate"},
		},
	}})
	require.NoError(t, err)

	run, err := e.SubmitJob(ctx, job.ID)
	require.NoError(t, err)
	e.Queue().Wait()

	res, err := e.Queue().Result(run)
	require.NoError(t, err)
	require.Nil(t, res.Failure)

	// The stored job's last-run timestamp was stamped on start.
	stamped, err := e.Jobs().GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.False(t, stamped.LastRun.IsZero())
}

func TestEngineTermExpansion(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	require.NoError(t, e.Terms().PutTerm(ctx, "cat", "feline", "kitty"))

	rec := core.NewRecord(0)
	rec.SetTags([]string{"kitty"})
	_, err := e.Records().AddRecords(ctx, "", rec)
	require.NoError(t, err)

	recs, err := e.Search(ctx, query.Request{Query: "term('cat')"})
	require.NoError(t, err)
	assert.Len(t, recs, 1)
}

func TestEngineSubmitRejectsBadSpec(t *testing.T) {
	e := newTestEngine(t)
	_, err := e.Submit(core.JobSpec{Name: "broken", DataSource: "nope"})
	assert.Error(t, err)
}
