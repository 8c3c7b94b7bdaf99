package corpora

import (
	"context"
	"log/slog"

	"github.com/parchmint/corpora/core"
	"github.com/parchmint/corpora/datasource"
	"github.com/parchmint/corpora/pipeline"
	"github.com/parchmint/corpora/query"
	"github.com/parchmint/corpora/stages"
	"github.com/parchmint/corpora/store"
	"github.com/parchmint/corpora/store/badger"
	"github.com/parchmint/corpora/task"
)

// Engine wires the storage backend, the query compiler, the stage and
// data source registries and the job queue into one handle. It is the
// embedding entry point: open an engine, submit job specs, query
// records, close.
type Engine struct {
	backend *badger.Backend
	records store.RecordStore
	jobs    store.JobStore
	terms   store.TermStore

	compiler *query.Compiler
	stages   *pipeline.Registry
	sources  *datasource.Registry
	runner   *task.Runner
	queue    *task.Queue

	logger *slog.Logger
}

// EngineOption configures an Engine.
type EngineOption func(*engineOptions)

type engineOptions struct {
	inMemory bool
	logger   *slog.Logger
	plugins  map[string]query.PluginHandler
}

// WithInMemory opens the storage backend without a data directory.
func WithInMemory() EngineOption {
	return func(o *engineOptions) { o.inMemory = true }
}

// WithLogger sets the engine's logger. Default is slog.Default().
func WithLogger(logger *slog.Logger) EngineOption {
	return func(o *engineOptions) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithPlugin routes queries carrying the named plugin marker to a
// handler instead of the record store.
func WithPlugin(name string, h query.PluginHandler) EngineOption {
	return func(o *engineOptions) {
		if o.plugins == nil {
			o.plugins = map[string]query.PluginHandler{}
		}
		o.plugins[name] = h
	}
}

// NewEngine opens the backend at filePath and assembles the full
// processing surface on top of it.
func NewEngine(filePath string, opts ...EngineOption) (*Engine, error) {
	options := &engineOptions{logger: slog.Default()}
	for _, opt := range opts {
		opt(options)
	}

	backend, err := badger.OpenBackend(filePath, options.inMemory)
	if err != nil {
		return nil, err
	}

	records, err := badger.NewRecordStore(backend)
	if err != nil {
		backend.Close()
		return nil, err
	}

	jobs, err := badger.NewJobStore(backend)
	if err != nil {
		records.Close()
		backend.Close()
		return nil, err
	}

	terms, err := badger.NewTermStore(backend)
	if err != nil {
		records.Close()
		backend.Close()
		return nil, err
	}

	compilerOpts := []query.CompilerOption{
		query.WithTermResolver(store.Resolver(context.Background(), terms)),
		query.WithLogger(options.logger),
	}
	for name, h := range options.plugins {
		compilerOpts = append(compilerOpts, query.WithPluginHandler(name, h))
	}
	compiler := query.NewCompiler(compilerOpts...)

	stageReg := pipeline.NewRegistry()
	stages.Register(stageReg, records)
	pipeline.RegisterFlowStages(stageReg)

	sources := datasource.NewRegistry()
	datasource.Register(sources)

	env := datasource.Env{Records: records, Compiler: compiler, Log: options.logger}
	runner := task.NewRunner(stageReg, sources, env,
		task.WithJobStore(jobs),
		task.WithLogger(options.logger),
	)
	task.RegisterBuiltins(runner)

	queue := task.NewQueue(
		task.WithQueueJobStore(jobs),
		task.WithQueueLogger(options.logger),
	)

	return &Engine{
		backend:  backend,
		records:  records,
		jobs:     jobs,
		terms:    terms,
		compiler: compiler,
		stages:   stageReg,
		sources:  sources,
		runner:   runner,
		queue:    queue,
		logger:   options.logger,
	}, nil
}

// Close drains the queue and releases storage resources.
func (e *Engine) Close() error {
	e.queue.Wait()
	if err := e.records.Close(); err != nil {
		e.logger.Error("error closing record store", "err", err)
		return err
	}
	if err := e.backend.Close(); err != nil {
		e.logger.Error("error closing backend storage", "err", err)
		return err
	}
	return nil
}

// Search compiles a query request and collects the matching records.
func (e *Engine) Search(ctx context.Context, req query.Request) ([]*core.Record, error) {
	cq, err := e.compile(req)
	if err != nil {
		return nil, err
	}
	var out []*core.Record
	for rec, err := range cq.Fetch(ctx, e.records) {
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

// Count compiles a query request and sums matches across its
// collections, ignoring paging.
func (e *Engine) Count(ctx context.Context, req query.Request) (int64, error) {
	cq, err := e.compile(req)
	if err != nil {
		return 0, err
	}
	n := cq.Count(ctx, e.records)
	if n == query.CountError {
		return 0, query.ErrCountFailed
	}
	return n, nil
}

func (e *Engine) compile(req query.Request) (*query.Compiled, error) {
	if len(req.Collections) == 0 {
		req.Collections = []string{""}
	}
	return e.compiler.Compile(req)
}

// Submit builds a task from a spec and enqueues it.
func (e *Engine) Submit(spec core.JobSpec) (core.RunID, error) {
	t, err := e.runner.Build(spec)
	if err != nil {
		return "", err
	}
	return e.queue.Enqueue(t), nil
}

// SubmitJob enqueues a stored job by id.
func (e *Engine) SubmitJob(ctx context.Context, id core.ID) (core.RunID, error) {
	job, err := e.jobs.GetJob(ctx, id)
	if err != nil {
		return "", err
	}
	t, err := e.runner.BuildJob(job)
	if err != nil {
		return "", err
	}
	return e.queue.Enqueue(t), nil
}

// Records returns the record store.
func (e *Engine) Records() store.RecordStore { return e.records }

// Jobs returns the job store.
func (e *Engine) Jobs() store.JobStore { return e.jobs }

// Terms returns the term alias store.
func (e *Engine) Terms() store.TermStore { return e.terms }

// Compiler returns the query compiler.
func (e *Engine) Compiler() *query.Compiler { return e.compiler }

// Stages returns the stage registry.
func (e *Engine) Stages() *pipeline.Registry { return e.stages }

// Sources returns the data source registry.
func (e *Engine) Sources() *datasource.Registry { return e.sources }

// Runner returns the task runner.
func (e *Engine) Runner() *task.Runner { return e.runner }

// Queue returns the job queue.
func (e *Engine) Queue() *task.Queue { return e.queue }
