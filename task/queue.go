package task

import (
	"context"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/parchmint/corpora/core"
	"github.com/parchmint/corpora/store"
)

// Queue serializes task execution: a FIFO of enqueued tasks drained
// by one background worker, so at most one task runs at a time
// process-wide. The worker starts lazily on the first enqueue and
// exits when the queue drains. Finished results stay in memory until
// removed.
type Queue struct {
	jobs store.JobStore
	log  *slog.Logger

	mu      sync.Mutex
	waiting []queued
	running core.RunID
	results map[core.RunID]*Result
	active  bool
	idle    sync.WaitGroup
}

type queued struct {
	run  core.RunID
	task *Task
}

// QueueOption configures a Queue.
type QueueOption func(*Queue)

// WithQueueLogger sets the queue's logger. Default is slog.Default().
func WithQueueLogger(log *slog.Logger) QueueOption {
	return func(q *Queue) {
		if log != nil {
			q.log = log
		}
	}
}

// WithQueueJobStore lets the queue stamp last-run times onto stored
// jobs as they start.
func WithQueueJobStore(jobs store.JobStore) QueueOption {
	return func(q *Queue) { q.jobs = jobs }
}

func NewQueue(opts ...QueueOption) *Queue {
	q := &Queue{log: slog.Default(), results: map[core.RunID]*Result{}}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

// Enqueue appends a task and returns its run id, starting the worker
// if none is draining the queue.
func (q *Queue) Enqueue(task *Task) core.RunID {
	run := core.NewRunID(task.jobID, task.name, time.Now())

	q.mu.Lock()
	q.waiting = append(q.waiting, queued{run: run, task: task})
	if !q.active {
		q.active = true
		q.idle.Add(1)
		go q.work()
	}
	q.mu.Unlock()

	q.log.Info("task enqueued", "run", run)
	return run
}

func (q *Queue) work() {
	defer q.idle.Done()
	for {
		q.mu.Lock()
		if len(q.waiting) == 0 {
			q.active = false
			q.mu.Unlock()
			return
		}
		next := q.waiting[0]
		q.waiting = q.waiting[1:]
		q.running = next.run
		q.mu.Unlock()

		q.touchLastRun(next.task.jobID)
		q.log.Info("task started", "run", next.run)

		res := next.task.Run(context.Background())
		res.FinishedAt = time.Now()

		q.mu.Lock()
		q.results[next.run] = res
		q.running = ""
		q.mu.Unlock()

		if res.Failure != nil {
			q.log.Warn("task failed", "run", next.run, "error", res.Failure.Message)
		} else {
			q.log.Info("task finished", "run", next.run)
		}
	}
}

func (q *Queue) touchLastRun(jobID core.ID) {
	if q.jobs == nil || jobID == 0 {
		return
	}
	if err := q.jobs.TouchLastRun(context.Background(), jobID); err != nil {
		q.log.Debug("could not stamp last run", "job", jobID, "error", err)
	}
}

// Result returns a finished run's result. An enqueued or running run
// reports ErrRunActive.
func (q *Queue) Result(run core.RunID) (*Result, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if res, ok := q.results[run]; ok {
		return res, nil
	}
	if q.pendingLocked(run) {
		return nil, ErrRunActive
	}
	return nil, ErrUnknownRun
}

// Remove cancels a waiting run or discards a finished result. The
// running task cannot be interrupted.
func (q *Queue) Remove(run core.RunID) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.running == run {
		return ErrRunActive
	}
	for i, w := range q.waiting {
		if w.run == run {
			q.waiting = slices.Delete(q.waiting, i, i+1)
			return nil
		}
	}
	if _, ok := q.results[run]; ok {
		delete(q.results, run)
		return nil
	}
	return ErrUnknownRun
}

// FinishedRun is one entry of the queue's status listing.
type FinishedRun struct {
	ID       core.RunID `json:"id"`
	Name     string     `json:"name"`
	Viewable bool       `json:"viewable"`
	LastRun  time.Time  `json:"last_run"`
	FileExt  string     `json:"file_ext,omitempty"`
}

// Status is a snapshot of the queue's state.
type Status struct {
	Running  core.RunID    `json:"running,omitempty"`
	Waiting  int           `json:"waiting"`
	Finished []FinishedRun `json:"finished"`
}

// Status reports the running run, the waiting count, and all finished
// runs ordered most recent first.
func (q *Queue) Status() Status {
	q.mu.Lock()
	defer q.mu.Unlock()

	st := Status{Running: q.running, Waiting: len(q.waiting)}
	for run, res := range q.results {
		st.Finished = append(st.Finished, FinishedRun{
			ID:       run,
			Name:     run.Name(),
			Viewable: res.Viewable(),
			LastRun:  res.FinishedAt,
			FileExt:  res.FileExt(),
		})
	}
	slices.SortFunc(st.Finished, func(a, b FinishedRun) int {
		return b.LastRun.Compare(a.LastRun)
	})
	return st
}

// Wait blocks until the worker drains the queue. Intended for
// shutdown and tests.
func (q *Queue) Wait() {
	q.idle.Wait()
}

func (q *Queue) pendingLocked(run core.RunID) bool {
	if q.running == run {
		return true
	}
	for _, w := range q.waiting {
		if w.run == run {
			return true
		}
	}
	return false
}
