package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LynnColeArt/sbench"
)

func TestDefaults(t *testing.T) {
	a := New()
	ib, err := a.Int("i-blocksize")
	require.NoError(t, err)
	assert.Equal(t, sbench.DefaultIBlockSize, ib)

	p, err := a.String("platform")
	require.NoError(t, err)
	assert.Equal(t, "host", p)

	v, err := a.Bool("verify")
	require.NoError(t, err)
	assert.True(t, v)

	assert.Contains(t, a.Keys(), "tile-index-limit")
}

func TestLoadYAML(t *testing.T) {
	a := New()
	require.NoError(t, a.LoadYAML([]byte(`
isize: 64
i-blocksize: 16
platform: device
strict: true
`)))
	n, err := a.Int("isize")
	require.NoError(t, err)
	assert.Equal(t, 64, n)
	s, err := a.Bool("strict")
	require.NoError(t, err)
	assert.True(t, s)

	err = a.LoadYAML([]byte("halo: [1, 2]"))
	assert.True(t, sbench.IsConfigurationError(err))

	err = a.LoadYAML([]byte("isize: [unterminated"))
	assert.True(t, sbench.IsConfigurationError(err))
}

func TestApplyEnv(t *testing.T) {
	a := New()
	require.NoError(t, a.ApplyEnv([]string{
		"HOME=/root",
		"SBENCH_J_BLOCKSIZE=4",
		"SBENCH_TILE_INDEX_LIMIT=64",
	}))
	jb, err := a.Int("j-blocksize")
	require.NoError(t, err)
	assert.Equal(t, 4, jb)
	lim, err := a.Int("tile-index-limit")
	require.NoError(t, err)
	assert.Equal(t, 64, lim)

	assert.Error(t, a.ApplyEnv([]string{"SBENCH_"}))
}

func TestTypedGetterErrors(t *testing.T) {
	a := New()
	a.Set("isize", "many")
	_, err := a.Int("isize")
	assert.True(t, sbench.IsConfigurationError(err))

	_, err = a.Int("nonexistent")
	assert.True(t, sbench.IsConfigurationError(err))

	a.Set("verify", "perhaps")
	_, err = a.Bool("verify")
	assert.True(t, sbench.IsConfigurationError(err))
}

func TestLoadPrecedence(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bench.yaml")
	require.NoError(t, os.WriteFile(path, []byte("isize: 48\njsize: 40\n"), 0o644))

	t.Setenv("SBENCH_JSIZE", "24")
	a, err := Load(path)
	require.NoError(t, err)

	i, err := a.Int("isize")
	require.NoError(t, err)
	assert.Equal(t, 48, i)
	j, err := a.Int("jsize")
	require.NoError(t, err)
	assert.Equal(t, 24, j, "environment overrides the file")

	_, err = Load(filepath.Join(dir, "missing.yaml"))
	assert.True(t, sbench.IsConfigurationError(err))
}
