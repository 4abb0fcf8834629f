package main

import (
	"bytes"
	"testing"
	"time"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LynnColeArt/sbench/internal/report"
)

func result(stencil string, median time.Duration, status string) report.Result {
	return report.Result{Stencil: stencil, Platform: "host", Strategy: "scalar", Precision: "float64", Median: median, Status: status}
}

func TestCompareResults(t *testing.T) {
	baseline := []report.Result{
		result("hdiff", 10*time.Millisecond, report.StatusPass),
		result("vadv", 10*time.Millisecond, report.StatusPass),
		result("copy", 10*time.Millisecond, report.StatusPass),
		result("avgi", 10*time.Millisecond, report.StatusPass),
		result("lapij", 10*time.Millisecond, report.StatusPass),
		result("sumk", 10*time.Millisecond, report.StatusPass),
	}
	failed := result("avgi", 10*time.Millisecond, report.StatusFail)
	failed.Verification = "FAIL: 3/10 values differ"
	current := []report.Result{
		result("hdiff", 20*time.Millisecond, report.StatusPass),
		result("hdiff", 10*time.Millisecond, report.StatusPass),
		result("vadv", 15*time.Millisecond, report.StatusPass),
		result("copy", 5*time.Millisecond, report.StatusPass),
		failed,
		result("lapij", 0, report.StatusPass),
	}

	got := compareResults(baseline, current, 1.1)
	require.Len(t, got, 6)

	want := []struct {
		name, status string
	}{
		{"hdiff/host/scalar/float64", StatusPass},
		{"vadv/host/scalar/float64", StatusSlower},
		{"copy/host/scalar/float64", StatusFaster},
		{"avgi/host/scalar/float64", StatusFail},
		{"lapij/host/scalar/float64", StatusPass},
		{"sumk/host/scalar/float64", StatusFail},
	}
	for i, w := range want {
		assert.Equal(t, w.name, got[i].Name)
		assert.Equal(t, w.status, got[i].Status, got[i].Message)
	}
	assert.InDelta(t, 1.0, got[0].SpeedupFactor, 1e-12)
	assert.Equal(t, "FAIL: 3/10 values differ", got[3].Message)
	assert.Equal(t, "configuration missing in current results", got[5].Message)
}

func TestPrintSummary(t *testing.T) {
	color.NoColor = true
	var buf bytes.Buffer
	printSummary(&buf, []ComparisonResult{
		{Name: "hdiff/host/scalar/float64", Status: StatusPass, SpeedupFactor: 1},
		{Name: "vadv/host/scalar/float64", Status: StatusSlower, SpeedupFactor: 0.5},
	})
	assert.Contains(t, buf.String(), "Total: 2 | Passed: 1 | Failed: 0 | Slower: 1 | Faster: 0")
	assert.Contains(t, buf.String(), "0.50x")
}
