package store

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parchmint/corpora/core"
)

func TestRecordCodecRestoresTypes(t *testing.T) {
	date := time.Date(2024, 3, 14, 9, 26, 53, 0, time.UTC)
	rec := core.NewRecord(42)
	rec.Set(core.FieldContent, "golden gate bridge at dusk")
	rec.Set(core.FieldDate, date)
	rec.SetTags([]string{"bridge", "*sf"})
	rec.Set(core.FieldItems, []core.ID{7, 9})
	rec.Set(core.FieldSource, map[string]any{"url": "https://example.com/a"})

	data, err := MarshalRecord(rec)
	require.NoError(t, err)

	got, err := UnmarshalRecord(data)
	require.NoError(t, err)
	assert.Equal(t, core.ID(42), got.ID)
	assert.Equal(t, "golden gate bridge at dusk", got.Get(core.FieldContent))
	assert.Equal(t, date, got.Get(core.FieldDate))
	assert.Equal(t, []string{"bridge", "*sf"}, got.Tags())
	assert.Equal(t, []core.ID{7, 9}, got.Items())
	assert.Equal(t, "https://example.com/a", got.SourceLocator())
}

func TestRecordCodecBadData(t *testing.T) {
	_, err := UnmarshalRecord([]byte("not json"))
	assert.ErrorIs(t, err, ErrSerializationFailed)

	_, err = UnmarshalRecord([]byte(`{"_id":"zz"}`))
	assert.ErrorIs(t, err, ErrSerializationFailed)
}

func TestJobCodec(t *testing.T) {
	job := &core.Job{
		ID: 7,
		Spec: core.JobSpec{
			Name:       "nightly import",
			DataSource: "dbquery",
			Pipeline: []core.StageSpec{
				{Name: "AddTags", Config: map[string]any{"tags": "imported"}},
			},
			Concurrency: 2,
		},
	}
	data, err := MarshalJob(job)
	require.NoError(t, err)
	got, err := UnmarshalJob(data)
	require.NoError(t, err)
	assert.Equal(t, job.ID, got.ID)
	assert.Equal(t, job.Spec.Name, got.Spec.Name)
	require.Len(t, got.Spec.Pipeline, 1)
	assert.Equal(t, "AddTags", got.Spec.Pipeline[0].Name)
}
