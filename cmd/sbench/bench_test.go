package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/LynnColeArt/sbench"
	"github.com/LynnColeArt/sbench/config"
	"github.com/LynnColeArt/sbench/internal/report"
)

func smallArgs(overrides map[string]string) *config.Args {
	args := config.New()
	for k, v := range map[string]string{
		"isize":       "12",
		"jsize":       "10",
		"ksize":       "4",
		"halo":        "2",
		"alignment":   "1",
		"memory":      "host",
		"workers":     "2",
		"runs":        "2",
		"flush-size":  "65536",
		"i-blocksize": "8",
		"j-blocksize": "4",
	} {
		args.Set(k, v)
	}
	for k, v := range overrides {
		args.Set(k, v)
	}
	return args
}

func TestExecute(t *testing.T) {
	tests := []struct {
		name      string
		overrides map[string]string
		strategy  string
	}{
		{"hdiff/host", map[string]string{"stencil": "hdiff"}, "scalar"},
		{"hdiff/device", map[string]string{"stencil": "hdiff", "platform": "device", "precision": "float32"}, "tiled"},
		{"vadv/manycore", map[string]string{"stencil": "vadv", "platform": "manycore"}, "vectorized"},
		{"vadv/host/shifted", map[string]string{"stencil": "vadv", "ishift": "-1", "jshift": "1", "strategy": "scalar"}, "scalar"},
		{"lapij/device", map[string]string{"stencil": "lapij", "platform": "device"}, "tiled"},
		{"avgk/host/float32", map[string]string{"stencil": "avgk", "precision": "float32", "strategy": "vectorized"}, "vectorized"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := execute(smallArgs(tt.overrides), "run-1", zaptest.NewLogger(t))
			require.NoError(t, err)
			assert.Equal(t, report.StatusPass, result.Status, result.Verification)
			assert.True(t, result.Verified)
			assert.Equal(t, tt.strategy, result.Strategy)
			assert.Equal(t, "run-1", result.RunID)
			assert.Equal(t, [3]int{12, 10, 4}, result.Domain)
			assert.Equal(t, 2, result.Runs)
		})
	}
}

func TestExecuteWithoutVerification(t *testing.T) {
	result, err := execute(smallArgs(map[string]string{"stencil": "copy", "verify": "false"}), "", zaptest.NewLogger(t))
	require.NoError(t, err)
	assert.Equal(t, report.StatusPass, result.Status)
	assert.False(t, result.Verified)
}

func TestExecuteErrors(t *testing.T) {
	tests := []struct {
		name      string
		overrides map[string]string
	}{
		{"unknown stencil", map[string]string{"stencil": "fft"}},
		{"unknown precision", map[string]string{"precision": "float16"}},
		{"unknown platform", map[string]string{"platform": "tpu"}},
		{"no runs", map[string]string{"runs": "0"}},
		{"malformed size", map[string]string{"isize": "twelve"}},
		{"shift beyond halo", map[string]string{"stencil": "vadv", "ishift": "3"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := execute(smallArgs(tt.overrides), "", zaptest.NewLogger(t))
			require.Error(t, err)
			assert.True(t, sbench.IsConfigurationError(err), "%v", err)
			assert.Equal(t, report.StatusFail, result.Status)
			assert.Equal(t, err.Error(), result.Error)
		})
	}
}

func TestStencils(t *testing.T) {
	names := stencils()
	assert.Equal(t, []string{"hdiff", "vadv"}, names[:2])
	assert.Contains(t, names, "lapij")
}
