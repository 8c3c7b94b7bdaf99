package datasource

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parchmint/corpora/core"
	"github.com/parchmint/corpora/pipeline"
)

func buildWebImport(t *testing.T, cfg pipeline.Config) DataSource {
	t.Helper()
	ds, err := NewWebImport(cfg, Env{Log: testLogger()})
	require.NoError(t, err)
	return ds
}

func TestWebImportFetchPage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<a href="/next">next</a> <a href="https://example.com/x">x</a> <a href="mailto:a@b">m</a>`))
	}))
	defer srv.Close()

	ds := buildWebImport(t, pipeline.Config{"urls": srv.URL, "tags": "web", "delay": 1})
	recs := drain(t, ds)
	require.Len(t, recs, 1)

	rec := recs[0]
	assert.Equal(t, srv.URL, rec.Get("source.url"))
	assert.Equal(t, []string{"web"}, rec.Tags())
	assert.Contains(t, rec.Get(core.FieldContent), "next")

	links, ok := rec.Get("links").([]string)
	require.True(t, ok)
	assert.Equal(t, []string{srv.URL + "/next", "https://example.com/x"}, links)
}

func TestWebImportRetriesThenSucceeds(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Write([]byte("eventually"))
	}))
	defer srv.Close()

	ds := buildWebImport(t, pipeline.Config{"urls": srv.URL, "attempts": 3, "delay": 1})
	recs := drain(t, ds)
	require.Len(t, recs, 1)
	assert.Equal(t, "eventually", recs[0].Get(core.FieldContent))
	assert.Equal(t, int32(3), calls.Load())
}

func TestWebImportAttemptsExhausted(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	ds := buildWebImport(t, pipeline.Config{"urls": srv.URL, "attempts": 2, "delay": 1})

	var fetchErr error
	for _, err := range ds.Fetch(context.Background()) {
		if err != nil {
			fetchErr = err
		}
	}
	require.Error(t, fetchErr)
	assert.Contains(t, fetchErr.Error(), "status 503")
}

func TestWebImportBadConfig(t *testing.T) {
	_, err := NewWebImport(pipeline.Config{}, Env{})
	assert.ErrorIs(t, err, ErrBadConfig)

	_, err = NewWebImport(pipeline.Config{"urls": "http://x", "attempts": -1}, Env{})
	assert.ErrorIs(t, err, ErrInvalidMaxAttempts)
}

func TestRetryWithBackoff(t *testing.T) {
	t.Run("invalid attempts", func(t *testing.T) {
		err := retryWithBackoff(context.Background(), testLogger(), func() error { return nil }, 0, time.Millisecond)
		assert.ErrorIs(t, err, ErrInvalidMaxAttempts)
	})

	t.Run("context cancelled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		err := retryWithBackoff(ctx, testLogger(), func() error { return errors.New("boom") }, 3, time.Millisecond)
		assert.ErrorIs(t, err, context.Canceled)
	})

	t.Run("last error returned", func(t *testing.T) {
		boom := errors.New("boom")
		var n int
		err := retryWithBackoff(context.Background(), testLogger(), func() error { n++; return boom }, 3, time.Millisecond)
		assert.ErrorIs(t, err, boom)
		assert.Equal(t, 3, n)
	})
}
