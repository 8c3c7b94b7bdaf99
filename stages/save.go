package stages

import (
	"context"
	"errors"
	"sync"

	"github.com/parchmint/corpora/pipeline"
	"github.com/parchmint/corpora/store"
)

// SaveRecords writes each record back to the record store, inserting
// or overwriting by ID. Its summary reports how many records were
// written.
type SaveRecords struct {
	records    store.RecordStore
	collection string

	mu    sync.Mutex
	saved int64
}

func NewSaveRecords(records store.RecordStore) func(*pipeline.Builder, pipeline.Ref, pipeline.Config) (pipeline.Stage, error) {
	return func(b *pipeline.Builder, self pipeline.Ref, cfg pipeline.Config) (pipeline.Stage, error) {
		return &SaveRecords{
			records:    records,
			collection: cfg.String("collection", ""),
		}, nil
	}
}

func (s *SaveRecords) Flow(ctx context.Context, tok *pipeline.Token, fr pipeline.Frame) ([]pipeline.Emit, error) {
	rec := tok.Record
	if rec.ID == 0 {
		if _, err := s.records.AddRecords(ctx, s.collection, rec); err != nil {
			return nil, err
		}
	} else {
		err := s.records.UpdateRecords(ctx, s.collection, rec)
		if errors.Is(err, store.ErrNotFound) {
			_, err = s.records.AddRecords(ctx, s.collection, rec)
		}
		if err != nil {
			return nil, err
		}
	}
	s.mu.Lock()
	s.saved++
	s.mu.Unlock()
	return []pipeline.Emit{{Tok: tok, To: fr.Next}}, nil
}

func (s *SaveRecords) Summarize(ctx context.Context) (any, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return map[string]any{"saved": s.saved}, nil
}
