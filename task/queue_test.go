package task

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parchmint/corpora/core"
)

func buildTask(t *testing.T, r *Runner, spec core.JobSpec) *Task {
	t.Helper()
	task, err := r.Build(spec)
	require.NoError(t, err)
	return task
}

func TestQueueRunsTasksInOrder(t *testing.T) {
	r, _, _ := newTestRunner(t)
	q := NewQueue(WithQueueLogger(testLogger()))

	first := q.Enqueue(buildTask(t, r, core.JobSpec{
		Name:             "first",
		DataSource:       "static",
		DataSourceConfig: map[string]any{"count": 2},
	}))
	second := q.Enqueue(buildTask(t, r, core.JobSpec{
		Name:             "second",
		DataSource:       "static",
		DataSourceConfig: map[string]any{"count": 1},
	}))
	q.Wait()

	res, err := q.Result(first)
	require.NoError(t, err)
	recs, _ := res.Records()
	assert.Len(t, recs, 2)

	res, err = q.Result(second)
	require.NoError(t, err)
	recs, _ = res.Records()
	assert.Len(t, recs, 1)

	st := q.Status()
	assert.Empty(t, st.Running)
	assert.Zero(t, st.Waiting)
	assert.Len(t, st.Finished, 2)
}

func TestQueueSurvivesTaskFailure(t *testing.T) {
	r, _, _ := newTestRunner(t)
	q := NewQueue(WithQueueLogger(testLogger()))

	bad := q.Enqueue(buildTask(t, r, core.JobSpec{
		Name:             "bad",
		DataSource:       "static",
		DataSourceConfig: map[string]any{"count": 1},
		Pipeline: []core.StageSpec{
			{Name: "ExplodeOn", Config: map[string]any{"field": "n", "value": 1}},
		},
	}))
	good := q.Enqueue(buildTask(t, r, core.JobSpec{
		Name:             "good",
		DataSource:       "static",
		DataSourceConfig: map[string]any{"count": 1},
	}))
	q.Wait()

	res, err := q.Result(bad)
	require.NoError(t, err)
	require.NotNil(t, res.Failure)

	res, err = q.Result(good)
	require.NoError(t, err)
	assert.Nil(t, res.Failure)
}

func TestQueueRemove(t *testing.T) {
	r, _, _ := newTestRunner(t)
	q := NewQueue(WithQueueLogger(testLogger()))

	run := q.Enqueue(buildTask(t, r, core.JobSpec{
		Name:             "done",
		DataSource:       "static",
		DataSourceConfig: map[string]any{"count": 1},
	}))
	q.Wait()

	require.NoError(t, q.Remove(run))
	_, err := q.Result(run)
	assert.ErrorIs(t, err, ErrUnknownRun)
	assert.ErrorIs(t, q.Remove(run), ErrUnknownRun)
}

func TestQueueRemoveWaiting(t *testing.T) {
	q := NewQueue(WithQueueLogger(testLogger()))
	// Manipulate the queue directly so the entry stays waiting.
	q.mu.Lock()
	run := core.NewRunID(0, "stuck", time.Now())
	q.waiting = append(q.waiting, queued{run: run})
	q.mu.Unlock()

	assert.Equal(t, 1, q.Status().Waiting)
	require.NoError(t, q.Remove(run))
	assert.Zero(t, q.Status().Waiting)
}

func TestQueueResultPending(t *testing.T) {
	q := NewQueue(WithQueueLogger(testLogger()))
	q.mu.Lock()
	run := core.NewRunID(0, "pending", time.Now())
	q.waiting = append(q.waiting, queued{run: run})
	q.mu.Unlock()

	_, err := q.Result(run)
	assert.ErrorIs(t, err, ErrRunActive)
}

func TestQueueStatusFinishedEntries(t *testing.T) {
	r, _, _ := newTestRunner(t)
	q := NewQueue(WithQueueLogger(testLogger()))

	run := q.Enqueue(buildTask(t, r, core.JobSpec{
		Name:             "listed",
		DataSource:       "static",
		DataSourceConfig: map[string]any{"count": 1},
	}))
	q.Wait()

	st := q.Status()
	require.Len(t, st.Finished, 1)
	entry := st.Finished[0]
	assert.Equal(t, run, entry.ID)
	assert.Equal(t, "listed", entry.Name)
	assert.True(t, entry.Viewable)
	assert.False(t, entry.LastRun.IsZero())
}
