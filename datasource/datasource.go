package datasource

import (
	"context"
	"fmt"
	"iter"
	"log/slog"
	"slices"

	"github.com/parchmint/corpora/core"
	"github.com/parchmint/corpora/pipeline"
	"github.com/parchmint/corpora/query"
	"github.com/parchmint/corpora/store"
)

// DataSource produces the record stream a task feeds through its
// pipeline. Fetch yields lazily; errors surface in the sequence.
type DataSource interface {
	Fetch(ctx context.Context) iter.Seq2[*core.Record, error]
}

// Env carries the collaborators data sources may depend on.
type Env struct {
	Records  store.RecordStore
	Compiler *query.Compiler
	Log      *slog.Logger
}

// Factory builds a data source from its configuration. Params
// declares accepted config keys for normalization.
type Factory struct {
	Params []string
	New    func(cfg pipeline.Config, env Env) (DataSource, error)
}

// Registry maps data source names to factories. Populated once at
// startup, read-only afterwards.
type Registry struct {
	factories map[string]Factory
}

func NewRegistry() *Registry {
	return &Registry{factories: map[string]Factory{}}
}

// Register adds a factory under a unique name.
func (r *Registry) Register(name string, f Factory) error {
	if _, ok := r.factories[name]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateSource, name)
	}
	r.factories[name] = f
	return nil
}

// MustRegister registers or panics; for startup wiring.
func (r *Registry) MustRegister(name string, f Factory) {
	if err := r.Register(name, f); err != nil {
		panic(err)
	}
}

// Lookup finds a factory by name.
func (r *Registry) Lookup(name string) (Factory, bool) {
	f, ok := r.factories[name]
	return f, ok
}

// Names lists registered source names, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Normalize drops config keys the named factory does not declare and
// keys with null values. Unknown source names pass through untouched;
// the build step rejects them with a proper error.
func (r *Registry) Normalize(name string, cfg map[string]any) map[string]any {
	f, ok := r.factories[name]
	if !ok || cfg == nil {
		return cfg
	}
	out := map[string]any{}
	for k, v := range cfg {
		if v == nil || !slices.Contains(f.Params, k) {
			continue
		}
		out[k] = v
	}
	return out
}

// Build constructs the named data source.
func (r *Registry) Build(name string, cfg map[string]any, env Env) (DataSource, error) {
	f, ok := r.factories[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownSource, name)
	}
	if env.Log == nil {
		env.Log = slog.Default()
	}
	ds, err := f.New(pipeline.Config(cfg), env)
	if err != nil {
		return nil, fmt.Errorf("data source %s: %w", name, err)
	}
	return ds, nil
}

// Register adds the builtin data sources to a registry.
func Register(reg *Registry) {
	reg.MustRegister("dbquery", Factory{
		Params: []string{"query", "collections", "limit", "skip", "sort", "raw", "groups", "filters"},
		New:    NewDBQuery,
	})
	reg.MustRegister("fileimport", Factory{
		Params: []string{"files", "tags"},
		New:    NewFileImport,
	})
	reg.MustRegister("webimport", Factory{
		Params: []string{"urls", "attempts", "delay", "tags"},
		New:    NewWebImport,
	})
}
