package task

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"

	"github.com/panjf2000/ants/v2"

	"github.com/parchmint/corpora/core"
	"github.com/parchmint/corpora/datasource"
	"github.com/parchmint/corpora/pipeline"
)

// Task is one executable unit: a data source feeding a stage graph
// under a concurrency and failure policy. Build tasks through a
// Runner; run them directly or through a Queue.
type Task struct {
	name        string
	jobID       core.ID
	source      datasource.DataSource
	graph       *pipeline.Graph
	concurrency int
	resumeNext  bool
	log         *slog.Logger
}

// Name returns the task's display name.
func (t *Task) Name() string { return t.name }

// Run drains the data source through the graph and produces the task
// result. Up to the configured concurrency of records advance through
// the graph at once. A per-record error is dropped under resume_next,
// otherwise it aborts the run and becomes the failure result; panics
// inside stages are captured the same way with their stack.
func (t *Task) Run(ctx context.Context) *Result {
	pool, err := ants.NewPool(t.concurrency)
	if err != nil {
		return &Result{Failure: newFailure(err, nil)}
	}
	defer pool.Release()

	var (
		wg    sync.WaitGroup
		mu    sync.Mutex
		done  []*core.Record
		fatal *Failure
	)
	abort := func(f *Failure) {
		mu.Lock()
		if fatal == nil {
			fatal = f
		}
		mu.Unlock()
	}
	aborted := func() bool {
		mu.Lock()
		defer mu.Unlock()
		return fatal != nil
	}

	for rec, err := range t.source.Fetch(ctx) {
		if aborted() {
			break
		}
		if err != nil {
			if t.resumeNext {
				t.log.Warn("dropping failed fetch", "error", err)
				continue
			}
			abort(newFailure(err, nil))
			break
		}
		rec := rec
		wg.Add(1)
		submitErr := pool.Submit(func() {
			defer wg.Done()
			out, err := t.advance(ctx, rec)
			if err != nil {
				if t.resumeNext {
					t.log.Warn("dropping failed record", "record", rec.ID, "error", err)
					return
				}
				abort(toFailure(err))
				return
			}
			mu.Lock()
			done = append(done, out...)
			mu.Unlock()
		})
		if submitErr != nil {
			wg.Done()
			abort(newFailure(submitErr, nil))
			break
		}
	}
	wg.Wait()

	if fatal != nil {
		return &Result{Failure: fatal}
	}

	// Finalization errors are always fatal, even under resume_next.
	summary, err := t.graph.Summarize(ctx)
	if err != nil {
		return &Result{Failure: newFailure(err, nil)}
	}
	if summary != nil {
		return &Result{Value: summary}
	}
	return &Result{Value: done}
}

// advance pushes one record through the graph to a fixed point,
// returning the records that reached the terminal.
func (t *Task) advance(ctx context.Context, rec *core.Record) (out []*core.Record, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &panicError{value: r, stack: debug.Stack()}
		}
	}()

	pending := []pipeline.Emit{{Tok: pipeline.NewToken(rec), To: t.graph.Head()}}
	for len(pending) > 0 {
		e := pending[0]
		pending = pending[1:]

		if e.To == pipeline.Terminal {
			out = append(out, e.Tok.Record)
			continue
		}
		stage, err := t.graph.Stage(e.To)
		if err != nil {
			return nil, err
		}
		emits, err := stage.Flow(ctx, e.Tok, t.graph.Frame(e.To))
		if err != nil {
			return nil, fmt.Errorf("stage %s: %w", t.graph.Name(e.To), err)
		}
		pending = append(pending, emits...)
	}
	return out, nil
}

type panicError struct {
	value any
	stack []byte
}

func (p *panicError) Error() string {
	return fmt.Sprintf("stage panic: %v", p.value)
}

func newFailure(err error, stack []byte) *Failure {
	f := &Failure{Message: err.Error()}
	if stack != nil {
		f.Trace = string(stack)
	}
	return f
}

func toFailure(err error) *Failure {
	var pe *panicError
	if errors.As(err, &pe) {
		return newFailure(pe, pe.stack)
	}
	return newFailure(err, nil)
}
