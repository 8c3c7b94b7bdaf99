package task

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/parchmint/corpora/core"
	"github.com/parchmint/corpora/pipeline"
	"github.com/parchmint/corpora/store"
)

// CallTask reuses another stored job inside the current pipeline. In
// pipeline_only mode the callee's stage chain is spliced into this
// graph and records flow through it record by record. Otherwise
// records pass through untouched and the callee runs once as an
// independent task at finalization, contributing its result.
type CallTask struct {
	splice  bool
	subHead pipeline.Ref
	subTail pipeline.Ref

	runner *Runner
	spec   core.JobSpec
}

func (r *Runner) newCallTask(b *pipeline.Builder, self pipeline.Ref, cfg pipeline.Config) (pipeline.Stage, error) {
	if r.jobs == nil {
		return nil, fmt.Errorf("%w: no job store configured", ErrUnknownJob)
	}
	idStr := cfg.String("id", "")
	if idStr == "" {
		return nil, fmt.Errorf("%w: id is required", pipeline.ErrBadConfig)
	}
	id, err := core.ParseID(idStr)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", pipeline.ErrBadConfig, idStr)
	}
	job, err := r.jobs.GetJob(context.Background(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrUnknownJob, idStr)
		}
		return nil, err
	}

	spec := cloneSpec(job.Spec)
	if params, ok := cfg["params"].(map[string]any); ok {
		for path, v := range params {
			if err := overrideSpec(&spec, path, v); err != nil {
				return nil, fmt.Errorf("%w: %s", err, path)
			}
		}
	}

	st := &CallTask{}
	if cfg.Bool("pipeline_only", false) {
		st.splice = true
		st.subHead, st.subTail, err = b.Chain(r.stages.Normalize(spec.Pipeline))
		if err != nil {
			return nil, err
		}
		return st, nil
	}
	st.runner = r
	st.spec = spec
	return st, nil
}

// Link joins a spliced sub-chain's tail onto this stage's successor.
func (st *CallTask) Link(g *pipeline.Graph, self pipeline.Ref) {
	if st.splice && st.subTail != pipeline.Terminal {
		g.SetNext(st.subTail, g.Next(self))
	}
}

func (st *CallTask) Flow(ctx context.Context, tok *pipeline.Token, fr pipeline.Frame) ([]pipeline.Emit, error) {
	if st.splice && st.subHead != pipeline.Terminal {
		return []pipeline.Emit{{Tok: tok, To: st.subHead}}, nil
	}
	return []pipeline.Emit{{Tok: tok, To: fr.Next}}, nil
}

// Summarize runs the callee as an independent task and contributes
// its result. A spliced call has nothing to finalize here.
func (st *CallTask) Summarize(ctx context.Context) (any, error) {
	if st.splice {
		return nil, nil
	}
	sub, err := st.runner.Build(st.spec)
	if err != nil {
		return nil, err
	}
	res := sub.Run(ctx)
	if res.Failure != nil {
		return nil, fmt.Errorf("job %s: %s", st.spec.Name, res.Failure.Message)
	}
	return res.Value, nil
}

// RegisterBuiltins adds task-aware stages to the runner's stage
// registry.
func RegisterBuiltins(r *Runner) {
	r.stages.MustRegister("CallTask", pipeline.Factory{
		Params: []string{"id", "params", "pipeline_only"},
		New:    r.newCallTask,
	})
}

// overrideSpec sets one value inside a job spec by dotted path.
// Numeric segments index into lists: "pipeline.0.tags" rewrites the
// "tags" config key of the first stage.
func overrideSpec(spec *core.JobSpec, path string, value any) error {
	head, rest, _ := strings.Cut(path, ".")
	switch head {
	case "name":
		if rest != "" {
			return ErrBadOverride
		}
		spec.Name = fmt.Sprint(value)
	case "datasource":
		if rest != "" {
			return ErrBadOverride
		}
		spec.DataSource = fmt.Sprint(value)
	case "concurrency":
		if rest != "" {
			return ErrBadOverride
		}
		spec.Concurrency = pipeline.Config{"v": value}.Int("v", spec.Concurrency)
	case "resume_next":
		if rest != "" {
			return ErrBadOverride
		}
		spec.ResumeNext = pipeline.Config{"v": value}.Bool("v", spec.ResumeNext)
	case "datasource_config":
		if rest == "" {
			m, ok := value.(map[string]any)
			if !ok {
				return ErrBadOverride
			}
			spec.DataSourceConfig = m
			return nil
		}
		if spec.DataSourceConfig == nil {
			spec.DataSourceConfig = map[string]any{}
		}
		return setPath(spec.DataSourceConfig, strings.Split(rest, "."), value)
	case "pipeline":
		if rest == "" {
			return ErrBadOverride
		}
		segs := strings.Split(rest, ".")
		idx, err := strconv.Atoi(segs[0])
		if err != nil || idx < 0 || idx >= len(spec.Pipeline) {
			return ErrBadOverride
		}
		if len(segs) == 1 {
			return ErrBadOverride
		}
		stage := &spec.Pipeline[idx]
		if stage.Config == nil {
			stage.Config = map[string]any{}
		}
		return setPath(stage.Config, segs[1:], value)
	default:
		return ErrBadOverride
	}
	return nil
}

// setPath walks nested maps and lists to the final segment and sets
// the value there. The last map segment may be absent; everything
// else on the path must already exist.
func setPath(root map[string]any, segs []string, value any) error {
	var cur any = root
	for i, seg := range segs {
		last := i == len(segs)-1
		switch c := cur.(type) {
		case map[string]any:
			if last {
				c[seg] = value
				return nil
			}
			next, ok := c[seg]
			if !ok {
				return ErrBadOverride
			}
			cur = next
		case []any:
			idx, err := strconv.Atoi(seg)
			if err != nil || idx < 0 || idx >= len(c) {
				return ErrBadOverride
			}
			if last {
				c[idx] = value
				return nil
			}
			cur = c[idx]
		default:
			return ErrBadOverride
		}
	}
	return ErrBadOverride
}

func cloneSpec(s core.JobSpec) core.JobSpec {
	out := s
	if s.DataSourceConfig != nil {
		out.DataSourceConfig = cloneAny(s.DataSourceConfig).(map[string]any)
	}
	out.Pipeline = make([]core.StageSpec, len(s.Pipeline))
	for i, st := range s.Pipeline {
		out.Pipeline[i] = core.StageSpec{Name: st.Name}
		if st.Config != nil {
			out.Pipeline[i].Config = cloneAny(st.Config).(map[string]any)
		}
	}
	return out
}

func cloneAny(v any) any {
	switch c := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(c))
		for k, item := range c {
			out[k] = cloneAny(item)
		}
		return out
	case []any:
		out := make([]any, len(c))
		for i, item := range c {
			out[i] = cloneAny(item)
		}
		return out
	case []core.StageSpec:
		out := make([]any, len(c))
		for i, st := range c {
			m := map[string]any{"name": st.Name}
			if st.Config != nil {
				m["config"] = cloneAny(st.Config)
			}
			out[i] = m
		}
		return out
	default:
		return v
	}
}
