package core

import (
	"encoding/binary"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-crypt/x/blake2b"
)

// ID is a unique identifier for domain entities.
// It is generated using content-based hashing or database sequences.
type ID uint64

// IDFromContent generates a deterministic ID from text content using BLAKE2b hashing.
// This ensures that identical content produces identical IDs.
func IDFromContent(text string) ID {
	h, _ := blake2b.New(8, nil) // 8 bytes = 64 bits
	h.Write([]byte(text))
	sum := h.Sum(nil)
	return ID(binary.LittleEndian.Uint64(sum))
}

// IDFromTime generates an ID whose numeric order follows the given time.
// Used when a query literal names a point in time rather than an entity.
func IDFromTime(t time.Time) ID {
	return ID(uint64(t.UnixMicro()) << 12)
}

// ParseID parses an ID from its decimal or 16-digit hexadecimal form.
func ParseID(s string) (ID, error) {
	if len(s) == 16 {
		if v, err := strconv.ParseUint(s, 16, 64); err == nil {
			return ID(v), nil
		}
	}
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidID, s)
	}
	return ID(v), nil
}

// String returns the canonical 16-digit hexadecimal form.
func (id ID) String() string {
	return fmt.Sprintf("%016x", uint64(id))
}

// Well-known record fields. Records are schemaless; these are the
// fields the engine itself reads or writes.
const (
	FieldTags    = "tags"    // []string, default query target
	FieldDate    = "date"    // time.Time, recency ordering
	FieldContent = "content" // string
	FieldAuthor  = "author"  // string
	FieldItems   = "items"   // []ID, attached sub-items
	FieldSource  = "source"  // map[string]any with "url" / "file"
	FieldGroup   = "group_id"
)

// GroupTagPrefix marks a tag as a group designator. The smallest such
// tag on a record becomes its group key under tag grouping.
const GroupTagPrefix = "*"

// Record is one unit of content flowing through a pipeline: a mutable,
// schemaless field bag with a fixed identity. Records are created by a
// data source or a prior stage, owned by the executing pipeline while in
// flight, and persisted only by an explicit stage action.
type Record struct {
	ID     ID
	Fields map[string]any
}

// NewRecord creates an empty record with the given ID.
// An ID of 0 means the store assigns one on insert.
func NewRecord(id ID) *Record {
	return &Record{ID: id, Fields: map[string]any{}}
}

// Get returns the value at a dotted field path ("source.url"), or nil.
// The path "id" resolves to the record's identity.
func (r *Record) Get(path string) any {
	if path == "id" || path == "_id" {
		return r.ID
	}
	var cur any = r.Fields
	for path != "" {
		head := path
		if i := strings.IndexByte(path, '.'); i >= 0 {
			head, path = path[:i], path[i+1:]
		} else {
			path = ""
		}
		m, ok := cur.(map[string]any)
		if !ok {
			return nil
		}
		cur, ok = m[head]
		if !ok {
			return nil
		}
	}
	return cur
}

// Set assigns the value at a dotted field path, creating intermediate
// maps as needed.
func (r *Record) Set(path string, value any) {
	if r.Fields == nil {
		r.Fields = map[string]any{}
	}
	m := r.Fields
	for {
		i := strings.IndexByte(path, '.')
		if i < 0 {
			m[path] = value
			return
		}
		head := path[:i]
		next, ok := m[head].(map[string]any)
		if !ok {
			next = map[string]any{}
			m[head] = next
		}
		m, path = next, path[i+1:]
	}
}

// Delete removes a top-level field.
func (r *Record) Delete(field string) {
	delete(r.Fields, field)
}

// Has reports whether a field path resolves to a value.
func (r *Record) Has(path string) bool {
	return r.Get(path) != nil
}

// Tags returns the record's tag list, or nil.
func (r *Record) Tags() []string {
	switch v := r.Fields[FieldTags].(type) {
	case []string:
		return v
	case []any:
		tags := make([]string, 0, len(v))
		for _, t := range v {
			if s, ok := t.(string); ok {
				tags = append(tags, s)
			}
		}
		return tags
	}
	return nil
}

// SetTags replaces the record's tag list.
func (r *Record) SetTags(tags []string) {
	r.Set(FieldTags, tags)
}

// Date returns the record's content date, or the zero time.
func (r *Record) Date() time.Time {
	switch v := r.Fields[FieldDate].(type) {
	case time.Time:
		return v
	case string:
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			return t
		}
	}
	return time.Time{}
}

// Items returns the IDs of attached sub-items, or nil.
func (r *Record) Items() []ID {
	switch v := r.Fields[FieldItems].(type) {
	case []ID:
		return v
	case []any:
		ids := make([]ID, 0, len(v))
		for _, it := range v {
			switch x := it.(type) {
			case ID:
				ids = append(ids, x)
			case uint64:
				ids = append(ids, ID(x))
			case float64:
				ids = append(ids, ID(x))
			}
		}
		return ids
	}
	return nil
}

// SourceLocator returns the record's normalized origin locator:
// source.url if present, else source.file, else "".
func (r *Record) SourceLocator() string {
	if u, ok := r.Get("source.url").(string); ok && u != "" {
		return u
	}
	if f, ok := r.Get("source.file").(string); ok && f != "" {
		return f
	}
	return ""
}

// Clone returns a deep copy of the record. Stages that fan one record
// out to multiple destinations must clone so no record's state is shared.
func (r *Record) Clone() *Record {
	return &Record{ID: r.ID, Fields: cloneMap(r.Fields)}
}

func cloneMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		switch x := v.(type) {
		case map[string]any:
			out[k] = cloneMap(x)
		case []string:
			out[k] = append([]string(nil), x...)
		case []ID:
			out[k] = append([]ID(nil), x...)
		case []any:
			out[k] = append([]any(nil), x...)
		default:
			out[k] = v
		}
	}
	return out
}

// StageSpec names a stage implementation and its configuration.
type StageSpec struct {
	Name   string         `json:"name" yaml:"name"`
	Config map[string]any `json:"config,omitempty" yaml:"config,omitempty"`
}

// JobSpec is an immutable descriptor of one unit of pipeline work:
// a data source, an ordered stage list, and execution policy.
type JobSpec struct {
	Name             string         `json:"name" yaml:"name"`
	DataSource       string         `json:"datasource" yaml:"datasource"`
	DataSourceConfig map[string]any `json:"datasource_config,omitempty" yaml:"datasource_config,omitempty"`
	Pipeline         []StageSpec    `json:"pipeline" yaml:"pipeline"`
	Concurrency      int            `json:"concurrency" yaml:"concurrency"`
	ResumeNext       bool           `json:"resume_next" yaml:"resume_next"`
}

// DefaultConcurrency is the record-level parallelism used when a job
// spec does not set one.
const DefaultConcurrency = 3

// Job is a stored job specification.
type Job struct {
	ID      ID        `json:"id" yaml:"id"`
	Spec    JobSpec   `json:"spec" yaml:"spec"`
	LastRun time.Time `json:"last_run" yaml:"last_run"`
}

// StageSpecsFromAny converts a decoded config value (a list of
// name/config maps) into stage specs. Used for nested pipelines held
// inside a flow-control stage's configuration.
func StageSpecsFromAny(v any) ([]StageSpec, error) {
	if v == nil {
		return nil, nil
	}
	list, ok := v.([]any)
	if !ok {
		if specs, ok := v.([]StageSpec); ok {
			return specs, nil
		}
		return nil, fmt.Errorf("%w: pipeline must be a list", ErrInvalidJobSpec)
	}
	specs := make([]StageSpec, 0, len(list))
	for _, item := range list {
		m, ok := item.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("%w: pipeline entry must be a map", ErrInvalidJobSpec)
		}
		name, _ := m["name"].(string)
		if name == "" {
			return nil, fmt.Errorf("%w: pipeline entry missing name", ErrInvalidJobSpec)
		}
		cfg, _ := m["config"].(map[string]any)
		specs = append(specs, StageSpec{Name: name, Config: cfg})
	}
	return specs, nil
}
