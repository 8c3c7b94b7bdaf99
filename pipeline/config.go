package pipeline

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/parchmint/corpora/core"
)

// Config is a stage's untyped configuration map with typed accessors.
type Config map[string]any

// String reads a string key, with a default.
func (c Config) String(key, def string) string {
	if v, ok := c[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
		return fmt.Sprint(v)
	}
	return def
}

// Int reads an integer key, accepting the numeric shapes YAML and
// JSON decoders produce.
func (c Config) Int(key string, def int) int {
	switch v := c[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	case string:
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

// Bool reads a boolean key.
func (c Config) Bool(key string, def bool) bool {
	switch v := c[key].(type) {
	case bool:
		return v
	case string:
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}

// Strings reads a list key given as a slice or a comma-separated
// string.
func (c Config) Strings(key string) []string {
	switch v := c[key].(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			out = append(out, fmt.Sprint(item))
		}
		return out
	case string:
		if v == "" {
			return nil
		}
		parts := strings.Split(v, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, p)
			}
		}
		return out
	}
	return nil
}

// Specs reads a nested sub-pipeline key.
func (c Config) Specs(key string) ([]core.StageSpec, error) {
	v, ok := c[key]
	if !ok || v == nil {
		return nil, nil
	}
	specs, err := core.StageSpecsFromAny(v)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrBadConfig, key, err)
	}
	return specs, nil
}
