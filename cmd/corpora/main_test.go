package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQuickSpecPlainQuery(t *testing.T) {
	spec := quickSpec("tags=alpha")
	assert.Equal(t, "dbquery", spec.DataSource)
	assert.Equal(t, map[string]any{"query": "tags=alpha"}, spec.DataSourceConfig)
	require.Len(t, spec.Pipeline, 1)
	assert.Equal(t, "Accumulate", spec.Pipeline[0].Name)
}

func TestQuickSpecDataSourceForm(t *testing.T) {
	spec := quickSpec("datasource=webimport; urls=http://example.com; tags=web")
	assert.Equal(t, "webimport", spec.DataSource)
	assert.Equal(t, map[string]any{
		"urls": "http://example.com",
		"tags": "web",
	}, spec.DataSourceConfig)
}

func TestLoadSpec(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "job.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
name: ingest
datasource: fileimport
datasource_config:
  files: /tmp/data
pipeline:
  - name: AddTags
    config:
      tags: imported
  - name: SaveRecords
concurrency: 2
resume_next: true
`), 0o644))

	spec, err := loadSpec(path)
	require.NoError(t, err)
	assert.Equal(t, "ingest", spec.Name)
	assert.Equal(t, "fileimport", spec.DataSource)
	assert.Equal(t, map[string]any{"files": "/tmp/data"}, spec.DataSourceConfig)
	require.Len(t, spec.Pipeline, 2)
	assert.Equal(t, "AddTags", spec.Pipeline[0].Name)
	assert.Equal(t, map[string]any{"tags": "imported"}, spec.Pipeline[0].Config)
	assert.Equal(t, 2, spec.Concurrency)
	assert.True(t, spec.ResumeNext)
}

func TestLoadSpecDefaultsNameFromPath(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nightly.yaml")
	require.NoError(t, os.WriteFile(path, []byte("datasource: dbquery\n"), 0o644))

	spec, err := loadSpec(path)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "nightly"), spec.Name)
}

func TestLoadSpecMissingFile(t *testing.T) {
	_, err := loadSpec(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}
