package stages

import (
	"context"
	"sync"

	"github.com/parchmint/corpora/core"
	"github.com/parchmint/corpora/pipeline"
)

// Accumulate collects every record that reaches it and returns the
// collected list as its summary. Placing it last in a pipeline turns
// the record stream into the task result.
type Accumulate struct {
	mu   sync.Mutex
	recs []*core.Record
}

func NewAccumulate(b *pipeline.Builder, self pipeline.Ref, cfg pipeline.Config) (pipeline.Stage, error) {
	return &Accumulate{}, nil
}

func (s *Accumulate) Flow(ctx context.Context, tok *pipeline.Token, fr pipeline.Frame) ([]pipeline.Emit, error) {
	s.mu.Lock()
	s.recs = append(s.recs, tok.Record)
	s.mu.Unlock()
	return []pipeline.Emit{{Tok: tok, To: fr.Next}}, nil
}

func (s *Accumulate) Summarize(ctx context.Context) (any, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.recs, nil
}
