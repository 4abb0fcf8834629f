package hdiff

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/LynnColeArt/sbench"
	"github.com/LynnColeArt/sbench/platform"
	"github.com/LynnColeArt/sbench/stencil"
	"github.com/LynnColeArt/sbench/storage"
	"github.com/LynnColeArt/sbench/verify"
)

type backend struct {
	name     string
	kind     platform.Kind
	strategy stencil.Strategy
}

var backends = []backend{
	{"host/scalar", platform.KindHost, stencil.Scalar},
	{"host/vectorized", platform.KindHost, stencil.VectorizedColumn},
	{"manycore/vectorized", platform.KindManyCore, stencil.VectorizedColumn},
	{"device/tiled", platform.KindDevice, stencil.TiledSharedMemory},
}

func newPlatform(t *testing.T, kind platform.Kind, log *zap.Logger, props platform.DeviceProps) platform.Platform {
	t.Helper()
	p, err := platform.New(platform.Options{Kind: kind, Workers: 3, Memory: "host", FlushSize: 1 << 16, Device: props, Logger: log})
	require.NoError(t, err)
	t.Cleanup(func() { p.Close() })
	return p
}

func newVariant[T storage.Float](t *testing.T, p platform.Platform, cfg stencil.Config) *Variant[T] {
	t.Helper()
	v, err := New[T](p, cfg, nil)
	require.NoError(t, err)
	t.Cleanup(func() { v.Close() })
	return v
}

func testConfig(s stencil.Strategy) stencil.Config {
	cfg := stencil.DefaultConfig()
	cfg.ISize, cfg.JSize, cfg.KSize = 37, 23, 5
	cfg.IBlockSize, cfg.JBlockSize = 8, 4
	cfg.Strategy = s
	return cfg
}

func runOnce(t *testing.T, v stencil.Variant) {
	t.Helper()
	require.NoError(t, v.Prerun())
	require.NoError(t, v.Run())
	require.NoError(t, v.Postrun())
}

func TestMatchesReference(t *testing.T) {
	for _, b := range backends {
		t.Run(b.name, func(t *testing.T) {
			v := newVariant[float64](t, newPlatform(t, b.kind, nil, platform.DeviceProps{}), testConfig(b.strategy))
			runOnce(t, v)
			want := verify.HorizontalDiffusion(v.In(), v.Coeff())
			res := verify.Compare(v.Out(), want, verify.ToleranceFor[float64]())
			assert.True(t, res.OK(), res.String())
		})
	}
}

func TestMatchesReferenceFloat32(t *testing.T) {
	cfg := testConfig(stencil.StrategyAuto)
	cfg.Alignment = 8
	v := newVariant[float32](t, newPlatform(t, platform.KindDevice, nil, platform.DeviceProps{}), cfg)
	runOnce(t, v)
	res := verify.Compare(v.Out(), verify.HorizontalDiffusion(v.In(), v.Coeff()), verify.ToleranceFor[float32]())
	assert.True(t, res.OK(), res.String())
}

func TestRunIsIdempotent(t *testing.T) {
	for _, b := range backends {
		t.Run(b.name, func(t *testing.T) {
			v := newVariant[float64](t, newPlatform(t, b.kind, nil, platform.DeviceProps{}), testConfig(b.strategy))
			runOnce(t, v)
			first := verify.Interior(v.Out())
			runOnce(t, v)
			assert.Equal(t, first, verify.Interior(v.Out()))
		})
	}
}

func TestStrategiesAgreeBitwise(t *testing.T) {
	var outs []*storage.Buffer[float64]
	for _, b := range backends {
		v := newVariant[float64](t, newPlatform(t, b.kind, nil, platform.DeviceProps{}), testConfig(b.strategy))
		runOnce(t, v)
		outs = append(outs, v.Out())
	}
	for n := 1; n < len(outs); n++ {
		assert.True(t, verify.Identical(outs[0], outs[n]), "%s differs from %s", backends[n].name, backends[0].name)
	}
}

func TestConstantFieldWithoutDiffusion(t *testing.T) {
	for _, b := range backends {
		t.Run(b.name, func(t *testing.T) {
			cfg := stencil.DefaultConfig()
			cfg.ISize, cfg.JSize, cfg.KSize = 4, 4, 4
			cfg.Strategy = b.strategy
			v := newVariant[float64](t, newPlatform(t, b.kind, nil, platform.DeviceProps{}), cfg)
			v.In().Fill(1)
			v.Coeff().Fill(0)
			runOnce(t, v)
			stencil.ForEach(v.Info(), false, func(i, j, k int) {
				assert.Equal(t, 1.0, v.Out().At(i, j, k), "(%d,%d,%d)", i, j, k)
			})
		})
	}
}

func TestLimitedFluxNeverPointsUpGradient(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	for n := 0; n < 10000; n++ {
		lapHere, lapNext := rng.NormFloat64(), rng.NormFloat64()
		inHere, inNext := rng.NormFloat64(), rng.NormFloat64()
		f := limitedFlux(lapHere, lapNext, inHere, inNext)
		if f != 0 {
			assert.Equal(t, lapNext-lapHere, f)
			assert.LessOrEqual(t, f*(inNext-inHere), 0.0)
		}
	}

	tests := []struct {
		name                              string
		lapHere, lapNext, inHere, inNext float64
		want                              float64
	}{
		{"down gradient kept", 1, 0, 0, 1, -1},
		{"up gradient zeroed", 0, 1, 0, 1, 0},
		{"flat input kept", 0, 2, 3, 3, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, limitedFlux(tt.lapHere, tt.lapNext, tt.inHere, tt.inNext))
		})
	}
}

func TestTileClamp(t *testing.T) {
	tests := []struct {
		name   string
		props  platform.DeviceProps
		ib, jb int
		wantI  int
		wantJ  int
		warned bool
	}{
		{"one by one", platform.DeviceProps{}, 1, 1, 32, 8, true},
		{"fits", platform.DeviceProps{}, 16, 6, 16, 6, false},
		{"index limit", platform.DeviceProps{TileIndexLimit: 4}, 16, 4, 32, 8, true},
		{"shared memory", platform.DeviceProps{SharedMemPerBlock: 10000}, 64, 8, 32, 8, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			core, logs := observer.New(zapcore.WarnLevel)
			log := zap.New(core)
			p := newPlatform(t, platform.KindDevice, log, tt.props)

			cfg := testConfig(stencil.TiledSharedMemory)
			cfg.IBlockSize, cfg.JBlockSize = tt.ib, tt.jb
			v, err := New[float64](p, cfg, log)
			require.NoError(t, err)
			defer v.Close()

			i, j := v.BlockSize()
			assert.Equal(t, [2]int{tt.wantI, tt.wantJ}, [2]int{i, j})
			assert.Equal(t, tt.warned, logs.FilterMessageSnippet("reset device block size").Len() > 0)

			runOnce(t, v)
			res := verify.Compare(v.Out(), verify.HorizontalDiffusion(v.In(), v.Coeff()), verify.ToleranceFor[float64]())
			assert.True(t, res.OK(), res.String())
		})
	}
}

func TestHaloRequirement(t *testing.T) {
	cfg := testConfig(stencil.Scalar)
	cfg.Halo = 1
	_, err := New[float64](newPlatform(t, platform.KindHost, nil, platform.DeviceProps{}), cfg, nil)
	assert.True(t, sbench.IsConfigurationError(err))
}

func TestDevicePrerunConfiguresBanks(t *testing.T) {
	p := newPlatform(t, platform.KindDevice, nil, platform.DeviceProps{})
	d := p.(*platform.Device)

	v32 := newVariant[float32](t, p, testConfig(stencil.TiledSharedMemory))
	require.NoError(t, v32.Prerun())
	assert.Equal(t, 4, d.SharedMemBankSize())

	v64 := newVariant[float64](t, p, testConfig(stencil.TiledSharedMemory))
	require.NoError(t, v64.Prerun())
	assert.Equal(t, 8, d.SharedMemBankSize())
}

func TestRunRequiresPrerun(t *testing.T) {
	v := newVariant[float64](t, newPlatform(t, platform.KindHost, nil, platform.DeviceProps{}), testConfig(stencil.Scalar))
	assert.True(t, sbench.IsUsageError(v.Run()))
	require.NoError(t, v.Close())
	assert.True(t, sbench.IsUsageError(v.Prerun()))
}
