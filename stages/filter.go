package stages

import (
	"context"
	"sync"

	"github.com/parchmint/corpora/pipeline"
	"github.com/parchmint/corpora/query"
)

// FilterRecords drops records that do not match a condition
// expression.
type FilterRecords struct {
	cond query.Condition
}

func NewFilterRecords(b *pipeline.Builder, self pipeline.Ref, cfg pipeline.Config) (pipeline.Stage, error) {
	cond, err := query.ParseCondition(cfg.String("cond", ""), nil)
	if err != nil {
		return nil, err
	}
	return &FilterRecords{cond: cond}, nil
}

func (s *FilterRecords) Flow(ctx context.Context, tok *pipeline.Token, fr pipeline.Frame) ([]pipeline.Emit, error) {
	if !s.cond.Matches(tok.Record) {
		return nil, nil
	}
	return []pipeline.Emit{{Tok: tok, To: fr.Next}}, nil
}

// LimitRecords passes the first N records through and drops the rest.
type LimitRecords struct {
	limit int

	mu   sync.Mutex
	seen int
}

func NewLimitRecords(b *pipeline.Builder, self pipeline.Ref, cfg pipeline.Config) (pipeline.Stage, error) {
	limit := cfg.Int("limit", 0)
	if limit <= 0 {
		return nil, pipeline.ErrBadConfig
	}
	return &LimitRecords{limit: limit}, nil
}

func (s *LimitRecords) Flow(ctx context.Context, tok *pipeline.Token, fr pipeline.Frame) ([]pipeline.Emit, error) {
	s.mu.Lock()
	pass := s.seen < s.limit
	if pass {
		s.seen++
	}
	s.mu.Unlock()
	if !pass {
		return nil, nil
	}
	return []pipeline.Emit{{Tok: tok, To: fr.Next}}, nil
}
