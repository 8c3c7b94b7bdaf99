package task

import (
	"fmt"
	"log/slog"

	"github.com/parchmint/corpora/core"
	"github.com/parchmint/corpora/datasource"
	"github.com/parchmint/corpora/pipeline"
	"github.com/parchmint/corpora/store"
)

// Runner turns job specifications into executable tasks. It owns the
// stage and data source registries and the collaborators injected
// into them.
type Runner struct {
	stages  *pipeline.Registry
	sources *datasource.Registry
	env     datasource.Env
	jobs    store.JobStore
	log     *slog.Logger
}

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithJobStore enables stored-job lookups for CallTask.
func WithJobStore(jobs store.JobStore) RunnerOption {
	return func(r *Runner) { r.jobs = jobs }
}

// WithLogger sets the runner's logger. Default is slog.Default().
func WithLogger(log *slog.Logger) RunnerOption {
	return func(r *Runner) {
		if log != nil {
			r.log = log
		}
	}
}

// NewRunner wires a runner over the given registries. The data source
// environment is handed to every data source built through it.
func NewRunner(stages *pipeline.Registry, sources *datasource.Registry, env datasource.Env, opts ...RunnerOption) *Runner {
	r := &Runner{stages: stages, sources: sources, env: env, log: slog.Default()}
	for _, opt := range opts {
		opt(r)
	}
	if r.env.Log == nil {
		r.env.Log = r.log
	}
	return r
}

// Normalize validates a spec and drops configuration keys the target
// implementations do not declare, along with null-valued keys.
// Unknown stage names are dropped; an unknown data source name is
// kept and rejected at build time.
func (r *Runner) Normalize(spec core.JobSpec) (core.JobSpec, error) {
	if err := core.ValidateJobSpec(&spec); err != nil {
		return core.JobSpec{}, err
	}
	spec.DataSourceConfig = r.sources.Normalize(spec.DataSource, spec.DataSourceConfig)
	spec.Pipeline = r.stages.Normalize(spec.Pipeline)
	if spec.Concurrency == 0 {
		spec.Concurrency = core.DefaultConcurrency
	}
	return spec, nil
}

// Build assembles an executable task from a spec. All specification
// errors surface here, before any record is processed.
func (r *Runner) Build(spec core.JobSpec) (*Task, error) {
	return r.build(spec, 0)
}

func (r *Runner) build(spec core.JobSpec, jobID core.ID) (*Task, error) {
	spec, err := r.Normalize(spec)
	if err != nil {
		return nil, err
	}
	source, err := r.sources.Build(spec.DataSource, spec.DataSourceConfig, r.env)
	if err != nil {
		return nil, err
	}
	graph, err := pipeline.Build(r.stages, spec.Pipeline, pipeline.WithLogger(r.log))
	if err != nil {
		return nil, fmt.Errorf("job %s: %w", spec.Name, err)
	}
	return &Task{
		name:        spec.Name,
		jobID:       jobID,
		source:      source,
		graph:       graph,
		concurrency: spec.Concurrency,
		resumeNext:  spec.ResumeNext,
		log:         r.log.With("job", spec.Name),
	}, nil
}

// BuildJob assembles a task from a stored job, stamping its id into
// the run identity.
func (r *Runner) BuildJob(job *core.Job) (*Task, error) {
	return r.build(job.Spec, job.ID)
}
