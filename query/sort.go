package query

import (
	"fmt"
	"strings"
)

// ParseSortKeys parses a comma-separated sort spec such as
// "-date,id". A leading "-" marks a descending key. "id" and "_id"
// map to the record identifier.
func ParseSortKeys(spec string) ([]SortKey, error) {
	var keys []SortKey
	for _, part := range strings.Split(spec, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		desc := strings.HasPrefix(part, "-")
		field := strings.TrimPrefix(part, "-")
		if field == "" {
			return nil, fmt.Errorf("%w: %q", ErrBadSortKey, spec)
		}
		keys = append(keys, SortKey{Field: sortField(field), Desc: desc})
	}
	return keys, nil
}

// sortField maps the "id" alias onto the stored identifier key.
func sortField(f string) string {
	if f == "id" {
		return "_id"
	}
	return f
}

// SortKeysString renders keys back to the comma form.
func SortKeysString(keys []SortKey) string {
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		if k.Desc {
			parts = append(parts, "-"+k.Field)
		} else {
			parts = append(parts, k.Field)
		}
	}
	return strings.Join(parts, ",")
}
