package store

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/parchmint/corpora/core"
)

// Records carry open-ended field bags, so they are stored in a
// self-describing encoding. Dates and item references are normalized
// to stable wire shapes so round-trips preserve their Go types.

// MarshalRecord encodes a record, inlining the ID under "_id".
func MarshalRecord(rec *core.Record) ([]byte, error) {
	doc := make(map[string]any, len(rec.Fields)+1)
	doc["_id"] = rec.ID.String()
	for k, v := range rec.Fields {
		doc[k] = encodeValue(v)
	}
	data, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSerializationFailed, err)
	}
	return data, nil
}

// UnmarshalRecord decodes a record, restoring the ID, date and item
// reference types.
func UnmarshalRecord(data []byte) (*core.Record, error) {
	var doc map[string]any
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSerializationFailed, err)
	}
	rec := core.NewRecord(0)
	if raw, ok := doc["_id"].(string); ok {
		id, err := core.ParseID(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrSerializationFailed, err)
		}
		rec.ID = id
		delete(doc, "_id")
	}
	for k, v := range doc {
		rec.Fields[k] = decodeValue(k, v)
	}
	return rec, nil
}

// MarshalJob encodes a job specification.
func MarshalJob(job *core.Job) ([]byte, error) {
	data, err := json.Marshal(job)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSerializationFailed, err)
	}
	return data, nil
}

// UnmarshalJob decodes a job specification.
func UnmarshalJob(data []byte) (*core.Job, error) {
	var job core.Job
	if err := json.Unmarshal(data, &job); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSerializationFailed, err)
	}
	return &job, nil
}

func encodeValue(v any) any {
	switch x := v.(type) {
	case time.Time:
		return x.UTC().Format(time.RFC3339Nano)
	case core.ID:
		return x.String()
	case []core.ID:
		out := make([]any, len(x))
		for i, id := range x {
			out[i] = id.String()
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(x))
		for k, vv := range x {
			out[k] = encodeValue(vv)
		}
		return out
	case []any:
		out := make([]any, len(x))
		for i, vv := range x {
			out[i] = encodeValue(vv)
		}
		return out
	}
	return v
}

func decodeValue(key string, v any) any {
	switch key {
	case core.FieldDate:
		if s, ok := v.(string); ok {
			if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
				return t
			}
		}
	case core.FieldItems:
		if list, ok := v.([]any); ok {
			ids := make([]core.ID, 0, len(list))
			for _, item := range list {
				s, ok := item.(string)
				if !ok {
					return v
				}
				id, err := core.ParseID(s)
				if err != nil {
					return v
				}
				ids = append(ids, id)
			}
			return ids
		}
	}
	if nested, ok := v.(map[string]any); ok {
		out := make(map[string]any, len(nested))
		for k, vv := range nested {
			out[k] = decodeValue(k, vv)
		}
		return out
	}
	return v
}
