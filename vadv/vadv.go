// Package vadv implements implicit vertical advection: a tridiagonal
// system per (i, j) column along k, solved with the Thomas algorithm.
package vadv

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/LynnColeArt/sbench"
	"github.com/LynnColeArt/sbench/platform"
	"github.com/LynnColeArt/sbench/stencil"
	"github.com/LynnColeArt/sbench/storage"
)

// Name is the stencil name used in configuration.
const Name = "vadv"

// Buffer names. UtensstageOut receives the result; every other field
// except the solver scratch (Ccol, Dcol, Datacol) is input only.
const (
	Ccol          = "ccol"
	Dcol          = "dcol"
	Datacol       = "datacol"
	Wcon          = "wcon"
	Ustage        = "ustage"
	Upos          = "upos"
	Utens         = "utens"
	Utensstage    = "utensstage"
	UtensstageOut = "utensstage_out"
)

var bufferNames = []string{Ccol, Dcol, Datacol, Wcon, Ustage, Upos, Utens, Utensstage, UtensstageOut}

// Variant is vertical advection bound to a platform and strategy.
type Variant[T storage.Float] struct {
	*stencil.Base[T]

	ishift, jshift int
	ib, jb         int
	device         *platform.Device
}

// New builds an advection variant and fills its inputs from cfg.Seed. On
// platforms that track cache sets, strides of one and two steps along each
// axis are checked for conflicts.
func New[T storage.Float](p platform.Platform, cfg stencil.Config, log *zap.Logger) (*Variant[T], error) {
	if cfg.KSize < 2 {
		return nil, sbench.NewConfigurationError("vadv.New", fmt.Sprintf("ksize %d is smaller than 2", cfg.KSize))
	}
	if cfg.Layout.Masked(storage.AxisK) {
		return nil, sbench.NewConfigurationError("vadv.New", fmt.Sprintf("layout %s masks the vertical axis", cfg.Layout))
	}
	if abs(cfg.IShift) > cfg.Halo || abs(cfg.JShift) > cfg.Halo {
		return nil, sbench.NewConfigurationError("vadv.New",
			fmt.Sprintf("shift (%d, %d) exceeds halo %d", cfg.IShift, cfg.JShift, cfg.Halo))
	}
	base, err := stencil.NewBase[T](Name, p, cfg, log, bufferNames...)
	if err != nil {
		return nil, err
	}
	v := &Variant[T]{Base: base, ishift: cfg.IShift, jshift: cfg.JShift}
	if err := v.CheckStrideConflicts(); err != nil {
		v.Close()
		return nil, err
	}
	v.ib, v.jb = p.LimitBlocksize(cfg.IBlockSize, cfg.JBlockSize)
	if v.Strategy() == stencil.TiledSharedMemory {
		v.device = p.(*platform.Device)
	}
	v.Initialize(cfg.Seed)
	return v, nil
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}

// Initialize fills the inputs with random values and clears the solver
// scratch and the output. wcon is kept within ±0.1 so the systems stay
// diagonally dominant.
func (v *Variant[T]) Initialize(seed int64) {
	for n, name := range []string{Wcon, Ustage, Upos, Utens, Utensstage} {
		stencil.FillRandom(v.Buffer(name), seed+int64(n))
	}
	w := v.Buffer(Wcon).Raw()
	for i := range w {
		w[i] = (w[i] - 0.5) / 5
	}
	for _, name := range []string{Ccol, Dcol, Datacol, UtensstageOut} {
		v.Buffer(name).Fill(0)
	}
}

// Shift returns the direction of the upwind neighbour.
func (v *Variant[T]) Shift() (int, int) { return v.ishift, v.jshift }

// Inputs returns the fields the solver reads.
func (v *Variant[T]) Inputs() (wcon, ustage, upos, utens, utensstage *storage.Buffer[T]) {
	return v.Buffer(Wcon), v.Buffer(Ustage), v.Buffer(Upos), v.Buffer(Utens), v.Buffer(Utensstage)
}

// Out returns the updated stage tendency.
func (v *Variant[T]) Out() *storage.Buffer[T] { return v.Buffer(UtensstageOut) }

// Prerun flushes the caches where the platform supports it and moves the
// fields to the device otherwise.
func (v *Variant[T]) Prerun() error {
	if err := v.Base.Prerun(); err != nil {
		return err
	}
	if v.device == nil {
		return v.Platform().FlushCache()
	}
	for _, name := range v.Buffers() {
		if err := v.device.Prefetch(v.Buffer(name).Bytes()); err != nil {
			return sbench.NewPlatformError("vadv.Prerun", "prefetch of "+name+" failed", err)
		}
	}
	return v.device.Synchronize()
}

func (v *Variant[T]) columns() *columns[T] {
	return &columns[T]{
		ccol:    v.Buffer(Ccol).Raw(),
		dcol:    v.Buffer(Dcol).Raw(),
		datacol: v.Buffer(Datacol).Raw(),
		wcon:    v.Buffer(Wcon).Raw(),
		ustage:  v.Buffer(Ustage).Raw(),
		upos:    v.Buffer(Upos).Raw(),
		utens:   v.Buffer(Utens).Raw(),
		ut:      v.Buffer(Utensstage).Raw(),
		out:     v.Buffer(UtensstageOut).Raw(),
		ks:      v.KStride(),
		shift:   v.ishift*v.IStride() + v.jshift*v.JStride(),
		ksize:   v.KSize(),
	}
}

// Run solves every column.
func (v *Variant[T]) Run() error {
	if err := v.BeginRun(); err != nil {
		return err
	}
	c := v.columns()
	switch v.Strategy() {
	case stencil.TiledSharedMemory:
		return v.runDevice(c)
	case stencil.VectorizedColumn:
		return v.runRows(c)
	default:
		for j := 0; j < v.JSize(); j++ {
			for i := 0; i < v.ISize(); i++ {
				c.solve(v.Index(i, j, 0))
			}
		}
		return nil
	}
}

// runRows hands out j rows to the workers. Within a row the columns are
// processed in chunks a few vector registers wide, level by level, so the
// inner loop runs along i.
func (v *Variant[T]) runRows(c *columns[T]) error {
	lanes := v.Platform().VectorLanes(v.BytesPerElement())
	chunk := (v.ib + lanes - 1) / lanes * lanes
	isize, ksize, is, ks := v.ISize(), v.KSize(), v.IStride(), v.KStride()
	return platform.ParallelFor(v.Platform().Workers(), v.JSize(), func(lo, hi int) {
		for j := lo; j < hi; j++ {
			for i0 := 0; i0 < isize; i0 += chunk {
				n := min(chunk, isize-i0)
				row := v.Index(i0, j, 0)
				for k := 0; k < ksize; k++ {
					p := row + k*ks
					for i := 0; i < n; i++ {
						c.forward(p+i*is, k)
					}
				}
				for k := ksize - 1; k >= 0; k-- {
					p := row + k*ks
					for i := 0; i < n; i++ {
						c.backward(p+i*is, k)
					}
				}
			}
		}
	})
}

// runDevice launches one worker per column.
func (v *Variant[T]) runDevice(c *columns[T]) error {
	isize, jsize := v.ISize(), v.JSize()
	k := platform.Kernel{
		Name: "vadv",
		Phases: []platform.Phase{func(tid platform.ThreadID, _ []byte) {
			i, j := tid.GlobalX(), tid.GlobalY()
			if i < isize && j < jsize {
				c.solve(v.Index(i, j, 0))
			}
		}},
	}
	grid := platform.Dim3{X: (isize + v.ib - 1) / v.ib, Y: (jsize + v.jb - 1) / v.jb, Z: 1}
	block := platform.Dim3{X: v.ib, Y: v.jb, Z: 1}
	if err := v.device.Launch(k, grid, block); err != nil {
		return err
	}
	return v.device.Synchronize()
}
