package stages

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/parchmint/corpora/core"
	"github.com/parchmint/corpora/pipeline"
)

// SetField writes a literal value into a field on every record.
type SetField struct {
	field string
	value any
}

func NewSetField(b *pipeline.Builder, self pipeline.Ref, cfg pipeline.Config) (pipeline.Stage, error) {
	field := cfg.String("field", "")
	if field == "" {
		return nil, pipeline.ErrBadConfig
	}
	return &SetField{field: field, value: cfg["value"]}, nil
}

func (s *SetField) Flow(ctx context.Context, tok *pipeline.Token, fr pipeline.Frame) ([]pipeline.Emit, error) {
	tok.Record.Set(s.field, s.value)
	return []pipeline.Emit{{Tok: tok, To: fr.Next}}, nil
}

// RemoveField deletes a field from every record.
type RemoveField struct {
	field string
}

func NewRemoveField(b *pipeline.Builder, self pipeline.Ref, cfg pipeline.Config) (pipeline.Stage, error) {
	field := cfg.String("field", "")
	if field == "" {
		return nil, pipeline.ErrBadConfig
	}
	return &RemoveField{field: field}, nil
}

func (s *RemoveField) Flow(ctx context.Context, tok *pipeline.Token, fr pipeline.Frame) ([]pipeline.Emit, error) {
	tok.Record.Delete(s.field)
	return []pipeline.Emit{{Tok: tok, To: fr.Next}}, nil
}

// AddTags appends tags to every record, skipping ones already set.
type AddTags struct {
	tags []string
}

func NewAddTags(b *pipeline.Builder, self pipeline.Ref, cfg pipeline.Config) (pipeline.Stage, error) {
	tags := cfg.Strings("tags")
	if len(tags) == 0 {
		return nil, pipeline.ErrBadConfig
	}
	return &AddTags{tags: tags}, nil
}

func (s *AddTags) Flow(ctx context.Context, tok *pipeline.Token, fr pipeline.Frame) ([]pipeline.Emit, error) {
	tags := tok.Record.Tags()
	for _, tag := range s.tags {
		if !slices.Contains(tags, tag) {
			tags = append(tags, tag)
		}
	}
	tok.Record.SetTags(tags)
	return []pipeline.Emit{{Tok: tok, To: fr.Next}}, nil
}

// RemoveTags strips tags from every record.
type RemoveTags struct {
	tags []string
}

func NewRemoveTags(b *pipeline.Builder, self pipeline.Ref, cfg pipeline.Config) (pipeline.Stage, error) {
	tags := cfg.Strings("tags")
	if len(tags) == 0 {
		return nil, pipeline.ErrBadConfig
	}
	return &RemoveTags{tags: tags}, nil
}

func (s *RemoveTags) Flow(ctx context.Context, tok *pipeline.Token, fr pipeline.Frame) ([]pipeline.Emit, error) {
	var kept []string
	for _, tag := range tok.Record.Tags() {
		if !slices.Contains(s.tags, tag) {
			kept = append(kept, tag)
		}
	}
	tok.Record.SetTags(kept)
	return []pipeline.Emit{{Tok: tok, To: fr.Next}}, nil
}

// FieldsToText renders selected field values into a single text
// field, joined by a separator. The default target is the content
// field.
type FieldsToText struct {
	fields []string
	target string
	sep    string
}

func NewFieldsToText(b *pipeline.Builder, self pipeline.Ref, cfg pipeline.Config) (pipeline.Stage, error) {
	fields := cfg.Strings("fields")
	if len(fields) == 0 {
		return nil, pipeline.ErrBadConfig
	}
	return &FieldsToText{
		fields: fields,
		target: cfg.String("target", core.FieldContent),
		sep:    cfg.String("separator", "\n"),
	}, nil
}

func (s *FieldsToText) Flow(ctx context.Context, tok *pipeline.Token, fr pipeline.Frame) ([]pipeline.Emit, error) {
	parts := make([]string, 0, len(s.fields))
	for _, f := range s.fields {
		if v := tok.Record.Get(f); v != nil {
			parts = append(parts, stringify(v))
		}
	}
	tok.Record.Set(s.target, strings.Join(parts, s.sep))
	return []pipeline.Emit{{Tok: tok, To: fr.Next}}, nil
}

func stringify(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case []string:
		return strings.Join(x, " ")
	case []any:
		parts := make([]string, 0, len(x))
		for _, item := range x {
			parts = append(parts, stringify(item))
		}
		return strings.Join(parts, " ")
	}
	return fmt.Sprint(v)
}
