package core

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIDFromContent(t *testing.T) {
	t.Run("deterministic", func(t *testing.T) {
		assert.Equal(t, IDFromContent("hello"), IDFromContent("hello"))
	})

	t.Run("distinct content distinct ids", func(t *testing.T) {
		assert.NotEqual(t, IDFromContent("hello"), IDFromContent("world"))
	})
}

func TestParseID(t *testing.T) {
	id := IDFromContent("roundtrip")
	parsed, err := ParseID(id.String())
	require.NoError(t, err)
	assert.Equal(t, id, parsed)

	parsed, err = ParseID("42")
	require.NoError(t, err)
	assert.Equal(t, ID(42), parsed)

	_, err = ParseID("not-an-id")
	assert.ErrorIs(t, err, ErrInvalidID)
}

func TestIDFromTime_Ordered(t *testing.T) {
	earlier := IDFromTime(time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC))
	later := IDFromTime(time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC))
	assert.Less(t, uint64(earlier), uint64(later))
}

func TestRecordFieldPaths(t *testing.T) {
	rec := NewRecord(7)
	rec.Set("source.url", "https://example.org/a")
	rec.Set(FieldContent, "body")

	assert.Equal(t, "https://example.org/a", rec.Get("source.url"))
	assert.Equal(t, "body", rec.Get(FieldContent))
	assert.Equal(t, ID(7), rec.Get("id"))
	assert.Nil(t, rec.Get("source.file"))
	assert.Nil(t, rec.Get("missing.deeply.nested"))

	rec.Delete(FieldContent)
	assert.False(t, rec.Has(FieldContent))
}

func TestRecordSourceLocator(t *testing.T) {
	rec := NewRecord(0)
	assert.Empty(t, rec.SourceLocator())

	rec.Set("source.file", "archive.zip")
	assert.Equal(t, "archive.zip", rec.SourceLocator())

	// url wins over file
	rec.Set("source.url", "https://example.org")
	assert.Equal(t, "https://example.org", rec.SourceLocator())
}

func TestRecordClone_Independent(t *testing.T) {
	rec := NewRecord(1)
	rec.SetTags([]string{"a", "b"})
	rec.Set("source.url", "u")

	dup := rec.Clone()
	dup.SetTags([]string{"changed"})
	dup.Set("source.url", "v")

	assert.Equal(t, []string{"a", "b"}, rec.Tags())
	assert.Equal(t, "u", rec.Get("source.url"))
}

func TestRecordItems_Normalizes(t *testing.T) {
	rec := NewRecord(0)
	rec.Set(FieldItems, []any{ID(1), float64(2), uint64(3)})
	assert.Equal(t, []ID{1, 2, 3}, rec.Items())
}

func TestStageSpecsFromAny(t *testing.T) {
	specs, err := StageSpecsFromAny([]any{
		map[string]any{"name": "Accumulate"},
		map[string]any{"name": "SetField", "config": map[string]any{"field": "lang", "value": "en"}},
	})
	require.NoError(t, err)
	require.Len(t, specs, 2)
	assert.Equal(t, "Accumulate", specs[0].Name)
	assert.Equal(t, "en", specs[1].Config["value"])

	_, err = StageSpecsFromAny([]any{map[string]any{"config": map[string]any{}}})
	assert.ErrorIs(t, err, ErrInvalidJobSpec)

	_, err = StageSpecsFromAny("nope")
	assert.ErrorIs(t, err, ErrInvalidJobSpec)
}
