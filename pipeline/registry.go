package pipeline

import (
	"fmt"
	"log/slog"
	"slices"

	"github.com/parchmint/corpora/core"
)

// Factory builds a stage from its configuration. Params declares the
// accepted config keys; normalization silently drops anything else.
type Factory struct {
	Params []string
	New    func(b *Builder, self Ref, cfg Config) (Stage, error)
}

// Registry maps stage names to factories. It is populated once at
// startup and read-only afterwards.
type Registry struct {
	factories map[string]Factory
}

func NewRegistry() *Registry {
	return &Registry{factories: map[string]Factory{}}
}

// Register adds a factory under a unique name.
func (r *Registry) Register(name string, f Factory) error {
	if _, ok := r.factories[name]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateStage, name)
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

// Lookup finds a factory by stage name.
func (r *Registry) Lookup(name string) (Factory, bool) {
	f, ok := r.factories[name]
	return f, ok
}

// Names lists registered stage names, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Normalize rewrites stage specs against the registry: stages with
// unknown names are dropped, as are config keys the factory does not
// declare and keys with null values. Nested sub-pipelines are
// normalized recursively.
func (r *Registry) Normalize(specs []core.StageSpec) []core.StageSpec {
	out := make([]core.StageSpec, 0, len(specs))
	for _, spec := range specs {
		f, ok := r.factories[spec.Name]
		if !ok {
			slog.Warn("dropping unknown stage", "stage", spec.Name)
			continue
		}
		norm := core.StageSpec{Name: spec.Name}
		if len(spec.Config) > 0 {
			norm.Config = map[string]any{}
			for k, v := range spec.Config {
				if v == nil || !slices.Contains(f.Params, k) {
					continue
				}
				if nested, err := core.StageSpecsFromAny(v); err == nil && nested != nil {
					nested = r.Normalize(nested)
					list := make([]any, len(nested))
					for i, ns := range nested {
						list[i] = map[string]any{"name": ns.Name, "config": ns.Config}
					}
					norm.Config[k] = list
					continue
				}
				norm.Config[k] = v
			}
		}
		out = append(out, norm)
	}
	return out
}

// Builder assembles graphs from stage specs through a registry.
type Builder struct {
	g   *Graph
	reg *Registry
}

// NewBuilder creates a builder over a fresh graph.
func NewBuilder(reg *Registry, opts ...GraphOption) *Builder {
	return &Builder{g: NewGraph(opts...), reg: reg}
}

// Graph returns the graph under construction.
func (b *Builder) Graph() *Graph { return b.g }

// Chain appends a chain of stages and links them in order. Returns
// Terminal refs for an empty spec list. The tail's successor stays
// Terminal until the caller rewires it.
func (b *Builder) Chain(specs []core.StageSpec) (head, tail Ref, err error) {
	head, tail = Terminal, Terminal
	for _, spec := range specs {
		f, ok := b.reg.Lookup(spec.Name)
		if !ok {
			return Terminal, Terminal, fmt.Errorf("%w: %s", ErrUnknownStage, spec.Name)
		}
		ref := b.g.reserve(spec.Name)
		stage, err := f.New(b, ref, Config(spec.Config))
		if err != nil {
			return Terminal, Terminal, fmt.Errorf("stage %s: %w", spec.Name, err)
		}
		b.g.bind(ref, stage)
		if head == Terminal {
			head = ref
		}
		if tail != Terminal {
			b.g.SetNext(tail, ref)
		}
		tail = ref
	}
	return head, tail, nil
}

// Build assembles the top-level graph: chain, entry point, re-link
// pass.
func Build(reg *Registry, specs []core.StageSpec, opts ...GraphOption) (*Graph, error) {
	b := NewBuilder(reg, opts...)
	head, _, err := b.Chain(specs)
	if err != nil {
		return nil, err
	}
	b.g.head = head
	b.g.link()
	return b.g, nil
}
