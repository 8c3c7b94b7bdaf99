package task

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parchmint/corpora/core"
)

func storeJob(t *testing.T, r *Runner, spec core.JobSpec) *core.Job {
	t.Helper()
	job, err := r.jobs.PutJob(context.Background(), &core.Job{Spec: spec})
	require.NoError(t, err)
	return job
}

func TestCallTaskSplice(t *testing.T) {
	r, _, _ := newTestRunner(t)
	callee := storeJob(t, r, core.JobSpec{
		Name:       "tagger",
		DataSource: "static",
		Pipeline: []core.StageSpec{
			{Name: "AddTags", Config: map[string]any{"tags": "called"}},
		},
	})

	res := runSpec(t, r, core.JobSpec{
		Name:             "caller",
		DataSource:       "static",
		DataSourceConfig: map[string]any{"count": 2},
		Pipeline: []core.StageSpec{
			{Name: "CallTask", Config: map[string]any{
				"id":            callee.ID.String(),
				"pipeline_only": true,
			}},
		},
		Concurrency: 1,
	})
	require.Nil(t, res.Failure)
	recs, ok := res.Records()
	require.True(t, ok)
	require.Len(t, recs, 2)
	for _, rec := range recs {
		assert.Equal(t, []string{"called"}, rec.Tags())
	}
}

func TestCallTaskSpliceContinuesToNext(t *testing.T) {
	r, _, _ := newTestRunner(t)
	callee := storeJob(t, r, core.JobSpec{
		Name:       "inner",
		DataSource: "static",
		Pipeline: []core.StageSpec{
			{Name: "AddTags", Config: map[string]any{"tags": "inner"}},
		},
	})

	// A stage after the splice still sees every record.
	res := runSpec(t, r, core.JobSpec{
		Name:             "outer",
		DataSource:       "static",
		DataSourceConfig: map[string]any{"count": 3},
		Pipeline: []core.StageSpec{
			{Name: "CallTask", Config: map[string]any{
				"id":            callee.ID.String(),
				"pipeline_only": true,
			}},
			{Name: "AddTags", Config: map[string]any{"tags": "outer"}},
		},
		Concurrency: 1,
	})
	require.Nil(t, res.Failure)
	recs, ok := res.Records()
	require.True(t, ok)
	require.Len(t, recs, 3)
	for _, rec := range recs {
		assert.ElementsMatch(t, []string{"inner", "outer"}, rec.Tags())
	}
}

func TestCallTaskIndependentRun(t *testing.T) {
	r, records, _ := newTestRunner(t)
	for range 3 {
		rec := core.NewRecord(0)
		rec.SetTags([]string{"seeded"})
		_, err := records.AddRecords(context.Background(), "", rec)
		require.NoError(t, err)
	}
	callee := storeJob(t, r, core.JobSpec{
		Name:       "collector",
		DataSource: "dbquery",
		Pipeline: []core.StageSpec{
			{Name: "Accumulate"},
		},
	})

	res := runSpec(t, r, core.JobSpec{
		Name:             "caller",
		DataSource:       "static",
		DataSourceConfig: map[string]any{"count": 1},
		Pipeline: []core.StageSpec{
			{Name: "CallTask", Config: map[string]any{"id": callee.ID.String()}},
		},
		Concurrency: 1,
	})
	require.Nil(t, res.Failure)
	recs, ok := res.Records()
	require.True(t, ok)
	assert.Len(t, recs, 3)
}

func TestCallTaskParamsOverride(t *testing.T) {
	r, _, _ := newTestRunner(t)
	callee := storeJob(t, r, core.JobSpec{
		Name:       "tagger",
		DataSource: "static",
		Pipeline: []core.StageSpec{
			{Name: "AddTags", Config: map[string]any{"tags": "original"}},
		},
	})

	res := runSpec(t, r, core.JobSpec{
		Name:             "caller",
		DataSource:       "static",
		DataSourceConfig: map[string]any{"count": 1},
		Pipeline: []core.StageSpec{
			{Name: "CallTask", Config: map[string]any{
				"id":            callee.ID.String(),
				"pipeline_only": true,
				"params": map[string]any{
					"pipeline.0.tags": "overridden",
				},
			}},
		},
		Concurrency: 1,
	})
	require.Nil(t, res.Failure)
	recs, ok := res.Records()
	require.True(t, ok)
	require.Len(t, recs, 1)
	assert.Equal(t, []string{"overridden"}, recs[0].Tags())
}

func TestCallTaskUnknownJob(t *testing.T) {
	r, _, _ := newTestRunner(t)
	_, err := r.Build(core.JobSpec{
		Name:             "caller",
		DataSource:       "static",
		DataSourceConfig: map[string]any{"count": 1},
		Pipeline: []core.StageSpec{
			{Name: "CallTask", Config: map[string]any{"id": "00000000000000aa"}},
		},
	})
	assert.ErrorIs(t, err, ErrUnknownJob)
}

func TestOverrideSpec(t *testing.T) {
	base := core.JobSpec{
		Name:             "base",
		DataSource:       "static",
		DataSourceConfig: map[string]any{"count": 1},
		Pipeline: []core.StageSpec{
			{Name: "AddTags", Config: map[string]any{"tags": "a", "nested": []any{map[string]any{"k": 1}}}},
		},
	}

	spec := cloneSpec(base)
	require.NoError(t, overrideSpec(&spec, "datasource_config.count", 9))
	require.NoError(t, overrideSpec(&spec, "pipeline.0.tags", "b"))
	require.NoError(t, overrideSpec(&spec, "pipeline.0.nested.0.k", 2))
	require.NoError(t, overrideSpec(&spec, "concurrency", 5))
	assert.Equal(t, 9, spec.DataSourceConfig["count"])
	assert.Equal(t, "b", spec.Pipeline[0].Config["tags"])
	assert.Equal(t, 5, spec.Concurrency)

	// The original is untouched.
	assert.Equal(t, 1, base.DataSourceConfig["count"])
	assert.Equal(t, "a", base.Pipeline[0].Config["tags"])
	assert.Equal(t, 1, base.Pipeline[0].Config["nested"].([]any)[0].(map[string]any)["k"])

	assert.ErrorIs(t, overrideSpec(&spec, "pipeline.9.tags", "x"), ErrBadOverride)
	assert.ErrorIs(t, overrideSpec(&spec, "nonsense.path", "x"), ErrBadOverride)
	assert.ErrorIs(t, overrideSpec(&spec, "pipeline.0.nested.5", "x"), ErrBadOverride)
}
