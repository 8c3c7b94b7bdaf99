package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parchmint/corpora/core"
)

func TestRegisterDuplicate(t *testing.T) {
	reg := testRegistry()
	err := reg.Register("Tag", Factory{})
	assert.ErrorIs(t, err, ErrDuplicateStage)
}

func TestNormalizeDropsUnknownAndNull(t *testing.T) {
	reg := testRegistry()
	specs := []core.StageSpec{
		{Name: "Tag", Config: map[string]any{
			"tag":   "a",
			"bogus": 1,   // not a declared param
			"pipe":  nil, // null value
		}},
		{Name: "NoSuchStage", Config: map[string]any{"x": 1}},
	}

	norm := reg.Normalize(specs)
	require.Len(t, norm, 1)
	assert.Equal(t, "Tag", norm[0].Name)
	assert.Equal(t, map[string]any{"tag": "a"}, norm[0].Config)
}

func TestNormalizeRecursesIntoSubPipelines(t *testing.T) {
	reg := testRegistry()
	specs := []core.StageSpec{
		{Name: "RepeatWhile", Config: map[string]any{
			"times": 2,
			"pipeline": []any{
				map[string]any{"name": "Tag", "config": map[string]any{"tag": "a", "junk": true}},
				map[string]any{"name": "Gone", "config": map[string]any{}},
			},
		}},
	}

	norm := reg.Normalize(specs)
	require.Len(t, norm, 1)
	sub, err := core.StageSpecsFromAny(norm[0].Config["pipeline"])
	require.NoError(t, err)
	require.Len(t, sub, 1)
	assert.Equal(t, "Tag", sub[0].Name)
	assert.Equal(t, map[string]any{"tag": "a"}, sub[0].Config)
}

func TestConfigAccessors(t *testing.T) {
	cfg := Config{
		"s":    "hello",
		"n":    float64(7),
		"b":    "true",
		"list": "a, b,c",
	}
	assert.Equal(t, "hello", cfg.String("s", ""))
	assert.Equal(t, "dflt", cfg.String("missing", "dflt"))
	assert.Equal(t, 7, cfg.Int("n", 0))
	assert.Equal(t, 3, cfg.Int("missing", 3))
	assert.True(t, cfg.Bool("b", false))
	assert.Equal(t, []string{"a", "b", "c"}, cfg.Strings("list"))
	assert.Nil(t, cfg.Strings("missing"))
}
