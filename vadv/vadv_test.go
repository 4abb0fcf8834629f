package vadv

import (
	"math"
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

func newPlatform(t *testing.T, kind platform.Kind, opts platform.Options) platform.Platform {
	t.Helper()
	opts.Kind = kind
	opts.Workers = 3
	opts.Memory = "host"
	opts.FlushSize = 1 << 16
	p, err := platform.New(opts)
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
	cfg.ISize, cfg.JSize, cfg.KSize = 13, 7, 9
	cfg.IBlockSize, cfg.JBlockSize = 4, 4
	cfg.Strategy = s
	return cfg
}

func runOnce(t *testing.T, v stencil.Variant) {
	t.Helper()
	require.NoError(t, v.Prerun())
	require.NoError(t, v.Run())
	require.NoError(t, v.Postrun())
}

func inputs[T storage.Float](v *Variant[T]) verify.AdvectionInputs[T] {
	wcon, ustage, upos, utens, utensstage := v.Inputs()
	is, js := v.Shift()
	return verify.AdvectionInputs[T]{Wcon: wcon, Ustage: ustage, Upos: upos, Utens: utens, Utensstage: utensstage, IShift: is, JShift: js}
}

func TestMatchesDenseSolve(t *testing.T) {
	for _, b := range backends {
		for _, shift := range [][2]int{{1, 0}, {0, 1}, {-1, -1}} {
			t.Run(b.name, func(t *testing.T) {
				cfg := testConfig(b.strategy)
				cfg.IShift, cfg.JShift = shift[0], shift[1]
				v := newVariant[float64](t, newPlatform(t, b.kind, platform.Options{}), cfg)
				runOnce(t, v)

				want, err := verify.VerticalAdvection(inputs(v))
				require.NoError(t, err)
				res := verify.Compare(v.Out(), want, verify.ToleranceFor[float64]())
				assert.True(t, res.OK(), "shift %v: %s", shift, res)
			})
		}
	}
}

func TestMatchesDenseSolveFloat32(t *testing.T) {
	cfg := testConfig(stencil.StrategyAuto)
	cfg.Alignment = 16
	v := newVariant[float32](t, newPlatform(t, platform.KindManyCore, platform.Options{}), cfg)
	runOnce(t, v)

	want, err := verify.VerticalAdvection(inputs(v))
	require.NoError(t, err)
	res := verify.Compare(v.Out(), want, verify.ToleranceFor[float32]())
	assert.True(t, res.OK(), res.String())
}

func TestStrategiesAgreeBitwise(t *testing.T) {
	var outs []*storage.Buffer[float64]
	for _, b := range backends {
		v := newVariant[float64](t, newPlatform(t, b.kind, platform.Options{}), testConfig(b.strategy))
		runOnce(t, v)
		outs = append(outs, v.Out())
	}
	for n := 1; n < len(outs); n++ {
		assert.True(t, verify.Identical(outs[0], outs[n]), "%s differs from %s", backends[n].name, backends[0].name)
	}
}

func TestRunIsIdempotent(t *testing.T) {
	for _, b := range backends {
		t.Run(b.name, func(t *testing.T) {
			v := newVariant[float64](t, newPlatform(t, b.kind, platform.Options{}), testConfig(b.strategy))
			runOnce(t, v)
			first := verify.Interior(v.Out())
			runOnce(t, v)
			assert.Equal(t, first, verify.Interior(v.Out()))
		})
	}
}

func TestDegenerateAdvection(t *testing.T) {
	for _, b := range backends {
		t.Run(b.name, func(t *testing.T) {
			v := newVariant[float64](t, newPlatform(t, b.kind, platform.Options{}), testConfig(b.strategy))
			v.Buffer(Wcon).Fill(0)
			v.Buffer(Utens).Fill(0)
			v.Buffer(Utensstage).Fill(0)
			runOnce(t, v)
			assert.LessOrEqual(t, verify.MaxAbs(v.Out()), 1e-15)
		})
	}
}

func TestSmallestColumn(t *testing.T) {
	cfg := testConfig(stencil.Scalar)
	cfg.KSize = 2
	v := newVariant[float64](t, newPlatform(t, platform.KindHost, platform.Options{}), cfg)
	runOnce(t, v)
	want, err := verify.VerticalAdvection(inputs(v))
	require.NoError(t, err)
	assert.True(t, verify.Compare(v.Out(), want, verify.ToleranceFor[float64]()).OK())
}

func TestConfigurationErrors(t *testing.T) {
	host := newPlatform(t, platform.KindHost, platform.Options{})

	cfg := testConfig(stencil.Scalar)
	cfg.KSize = 1
	_, err := New[float64](host, cfg, nil)
	assert.True(t, sbench.IsConfigurationError(err))

	cfg = testConfig(stencil.Scalar)
	cfg.IShift = 3
	_, err = New[float64](host, cfg, nil)
	assert.True(t, sbench.IsConfigurationError(err))
}

func TestManyCoreCacheConflicts(t *testing.T) {
	// 508 points plus a halo of 2 on each side make a j stride of 4096 bytes.
	conflicting := testConfig(stencil.VectorizedColumn)
	conflicting.ISize, conflicting.JSize, conflicting.KSize = 508, 2, 2

	core, logs := observer.New(zapcore.WarnLevel)
	p := newPlatform(t, platform.KindManyCore, platform.Options{Logger: zap.New(core)})
	newVariant[float64](t, p, conflicting)
	conflicts := logs.FilterMessage("possible cache conflicts")
	require.Greater(t, conflicts.Len(), 0)
	assert.Equal(t, "j-stride offsets", conflicts.All()[0].ContextMap()["stride"])

	core, logs = observer.New(zapcore.WarnLevel)
	p = newPlatform(t, platform.KindManyCore, platform.Options{Logger: zap.New(core)})
	newVariant[float64](t, p, testConfig(stencil.VectorizedColumn))
	assert.Equal(t, 0, logs.Len())

	strict := newPlatform(t, platform.KindManyCore, platform.Options{Strict: true})
	_, err := New[float64](strict, conflicting, nil)
	assert.True(t, sbench.IsCacheConflict(err))
}

func TestColumnRecurrence(t *testing.T) {
	// Direct check of one column against the closed-form two-level solve.
	const ks = 1
	c := &columns[float64]{
		ccol:    make([]float64, 2),
		dcol:    make([]float64, 2),
		datacol: make([]float64, 2),
		wcon:    []float64{0.1, 0.2, 0, 0},
		ustage:  []float64{1, 2},
		upos:    []float64{3, 4},
		utens:   []float64{0.5, 0.25},
		ut:      []float64{0, 0},
		out:     make([]float64, 2),
		ks:      ks,
		shift:   2,
		ksize:   2,
	}
	c.solve(0)

	gcv := 0.25 * (c.wcon[3] + c.wcon[1])
	gav := -0.25 * (c.wcon[3] + c.wcon[1])
	a, b0, b1, cc := gav*0.5, dtrStage-gcv*0.5, dtrStage-gav*0.5, gcv*0.5
	d0 := dtrStage*3 + 0.5 - gcv*0.5*(2-1)
	d1 := dtrStage*4 + 0.25 - gav*0.5*(1-2)
	det := b0*b1 - cc*a
	x0 := (d0*b1 - cc*d1) / det
	x1 := (b0*d1 - a*d0) / det

	assert.InDelta(t, x0, c.datacol[0], 1e-12)
	assert.InDelta(t, x1, c.datacol[1], 1e-12)
	assert.InDelta(t, dtrStage*(x1-4), c.out[1], 1e-12)
	assert.False(t, math.IsNaN(c.out[0]))
}
