package report

import (
	"bytes"
	"testing"
	"time"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTimings(t *testing.T) {
	var r Result
	r.Timings([]time.Duration{4 * time.Millisecond, time.Millisecond, 3 * time.Millisecond, 2 * time.Millisecond}, 5_000_000)
	assert.Equal(t, 4, r.Runs)
	assert.Equal(t, time.Millisecond, r.Min)
	assert.Equal(t, 2500*time.Microsecond, r.Median)
	assert.Equal(t, 2500*time.Microsecond, r.Mean)
	assert.InDelta(t, 2000.0, r.MBPerSec, 1e-9)

	var odd Result
	odd.Timings([]time.Duration{3, 1, 2}, 0)
	assert.Equal(t, time.Duration(2), odd.Median)
	assert.Zero(t, odd.MBPerSec)
}

func TestSessionRoundTrip(t *testing.T) {
	s, err := NewSession(t.TempDir(), "sbench")
	require.NoError(t, err)

	require.NoError(t, s.Add(Result{Stencil: "hdiff", Platform: "host", Strategy: "scalar", Precision: "float64", Status: StatusPass}))
	require.NoError(t, s.Add(Result{Stencil: "vadv", Platform: "device", Strategy: "tiled", Precision: "float32", Status: StatusFail, Error: "kernel execution failed"}))

	loaded, err := Load(s.Path())
	require.NoError(t, err)
	require.Len(t, loaded, 2)
	assert.Equal(t, "hdiff/host/scalar/float64", loaded[0].Name())
	assert.False(t, loaded[0].Timestamp.IsZero())
	assert.Equal(t, s.Results()[1].Error, loaded[1].Error)
}

func TestSummary(t *testing.T) {
	color.NoColor = true
	var buf bytes.Buffer
	Summary(&buf, []Result{
		{Stencil: "copy", Platform: "host", Strategy: "scalar", Precision: "float64", Status: StatusPass, Median: time.Millisecond},
		{Stencil: "vadv", Platform: "manycore", Strategy: "vectorized", Precision: "float64", Status: StatusFail, Verification: "FAIL: 3/10 values differ"},
	})
	out := buf.String()
	assert.Contains(t, out, "PASS copy/host/scalar/float64")
	assert.Contains(t, out, "FAIL vadv/manycore/vectorized/float64")
	assert.Contains(t, out, "3/10 values differ")
	assert.Contains(t, out, "Total: 2 | Passed: 1 | Failed: 1")
}
