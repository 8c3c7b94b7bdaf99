package task

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/parchmint/corpora/core"
)

func TestResultWindow(t *testing.T) {
	recs := []*core.Record{
		core.NewRecord(1), core.NewRecord(2), core.NewRecord(3), core.NewRecord(4),
	}
	res := &Result{Value: recs}

	window := res.Window(1, 2).([]*core.Record)
	assert.Equal(t, recs[1:3], window)

	assert.Equal(t, recs, res.Window(0, 0))
	assert.Empty(t, res.Window(10, 5))
	assert.Equal(t, recs[3:], res.Window(3, 100))
}

func TestResultWindowAggregateValue(t *testing.T) {
	res := &Result{Value: map[string]any{"saved": int64(7)}}
	assert.Equal(t, res.Value, res.Window(0, 10))
}

func TestResultFileExt(t *testing.T) {
	res := &Result{Value: map[string]any{FileExtKey: "zip", "data": []byte{1}}}
	assert.Equal(t, "zip", res.FileExt())

	assert.Empty(t, (&Result{Value: "text"}).FileExt())
}

func TestResultViewable(t *testing.T) {
	assert.False(t, (&Result{}).Viewable())
	assert.True(t, (&Result{Value: 1}).Viewable())
	assert.True(t, (&Result{Failure: &Failure{Message: "x"}}).Viewable())
}
