// Package hdiff implements the fourth-order horizontal diffusion stencil
// with monotonic flux limiting.
//
// For every point of a level:
//
//	lap = 4·in − (in[i+1] + in[i−1] + in[j+1] + in[j−1])
//	flx = lap[i+1] − lap, zeroed when flx·(in[i+1] − in) > 0
//	fly = lap[j+1] − lap, zeroed when fly·(in[j+1] − in) > 0
//	out = in − coeff·(flx − flx[i−1] + fly − fly[j−1])
//
// The three passes consume halos of two, one and zero cells.
package hdiff

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/LynnColeArt/sbench"
	"github.com/LynnColeArt/sbench/platform"
	"github.com/LynnColeArt/sbench/stencil"
	"github.com/LynnColeArt/sbench/storage"
)

// Name is the stencil name used in configuration.
const Name = "hdiff"

// Buffer names.
const (
	In    = "in"
	Coeff = "coeff"
	Out   = "out"
)

// HaloRequired is the number of halo cells the passes consume along i and j.
const HaloRequired = 2

// Variant is horizontal diffusion bound to a platform and strategy.
type Variant[T storage.Float] struct {
	*stencil.Base[T]
	in, coeff, out *storage.Buffer[T]

	ib, jb int
	device *platform.Device
}

// New builds a diffusion variant and fills its inputs from cfg.Seed.
func New[T storage.Float](p platform.Platform, cfg stencil.Config, log *zap.Logger) (*Variant[T], error) {
	if cfg.Halo < HaloRequired {
		return nil, sbench.NewConfigurationError("hdiff.New", fmt.Sprintf("halo %d is smaller than %d", cfg.Halo, HaloRequired))
	}
	if cfg.Layout.Masked(storage.AxisI) || cfg.Layout.Masked(storage.AxisJ) {
		return nil, sbench.NewConfigurationError("hdiff.New", fmt.Sprintf("layout %s masks a horizontal axis", cfg.Layout))
	}
	base, err := stencil.NewBase[T](Name, p, cfg, log, In, Coeff, Out)
	if err != nil {
		return nil, err
	}
	v := &Variant[T]{
		Base:  base,
		in:    base.Buffer(In),
		coeff: base.Buffer(Coeff),
		out:   base.Buffer(Out),
	}

	v.ib, v.jb = p.LimitBlocksize(cfg.IBlockSize, cfg.JBlockSize)
	if v.Strategy() == stencil.TiledSharedMemory {
		v.device = p.(*platform.Device)
		v.ib, v.jb = clampTile(v.device, cfg.IBlockSize, cfg.JBlockSize, v.BytesPerElement(), v.Logger())
	}
	v.Logger().Debug("block size", zap.Int("i", v.ib), zap.Int("j", v.jb))

	v.Initialize(cfg.Seed)
	return v, nil
}

// Initialize sets the input to a smooth field, the coefficient to random
// values in [0, 0.1) and the output to zero.
func (v *Variant[T]) Initialize(seed int64) {
	stencil.FillSmooth(v.in, 3, 1.25)
	stencil.FillRandom(v.coeff, seed)
	for i, c := range v.coeff.Raw() {
		v.coeff.Raw()[i] = T(c / 10)
	}
	v.out.Fill(0)
}

// In returns the input field.
func (v *Variant[T]) In() *storage.Buffer[T] { return v.in }

// Coeff returns the diffusion coefficient.
func (v *Variant[T]) Coeff() *storage.Buffer[T] { return v.coeff }

// Out returns the result field.
func (v *Variant[T]) Out() *storage.Buffer[T] { return v.out }

// BlockSize returns the tile shape in use after platform limits.
func (v *Variant[T]) BlockSize() (int, int) { return v.ib, v.jb }

// Prerun readies the platform: on the device the buffers are prefetched and
// the shared memory bank width set to the element size, elsewhere the
// caches are flushed.
func (v *Variant[T]) Prerun() error {
	if err := v.Base.Prerun(); err != nil {
		return err
	}
	if v.device == nil {
		return v.Platform().FlushCache()
	}
	for _, b := range []*storage.Buffer[T]{v.in, v.coeff, v.out} {
		if err := v.device.Prefetch(b.Bytes()); err != nil {
			return sbench.NewPlatformError("hdiff.Prerun", "prefetch of "+b.Name()+" failed", err)
		}
	}
	if err := v.device.Synchronize(); err != nil {
		return err
	}
	return v.device.SetSharedMemBankSize(v.BytesPerElement())
}

// Run computes out from in and coeff.
func (v *Variant[T]) Run() error {
	if err := v.BeginRun(); err != nil {
		return err
	}
	switch v.Strategy() {
	case stencil.TiledSharedMemory:
		return v.runTiled()
	case stencil.VectorizedColumn:
		return v.runColumns()
	default:
		v.runScalar()
		return nil
	}
}

// runScalar treats each level as one tile.
func (v *Variant[T]) runScalar() {
	s := newScratch[T](v.ISize(), v.JSize())
	in, coeff, out := v.in.Raw(), v.coeff.Raw(), v.out.Raw()
	for k := 0; k < v.KSize(); k++ {
		tile(s, v.Info(), in, coeff, out, 0, 0, v.ISize(), v.JSize(), k)
	}
}

// runColumns distributes (level, tile row) pairs over the workers. Each
// worker walks the tiles of its row with a scratch sized to one tile.
func (v *Variant[T]) runColumns() error {
	isize, jsize := v.ISize(), v.JSize()
	ib, jb := v.ib, v.jb
	rows := (jsize + jb - 1) / jb
	in, coeff, out := v.in.Raw(), v.coeff.Raw(), v.out.Raw()
	info := v.Info()
	return platform.ParallelFor(v.Platform().Workers(), v.KSize()*rows, func(lo, hi int) {
		s := newScratch[T](ib, jb)
		for item := lo; item < hi; item++ {
			k, j0 := item/rows, (item%rows)*jb
			nj := min(jb, jsize-j0)
			for i0 := 0; i0 < isize; i0 += ib {
				tile(s, info, in, coeff, out, i0, j0, min(ib, isize-i0), nj, k)
			}
		}
	})
}

func (v *Variant[T]) runTiled() error {
	k, grid, block := tiledKernel(v.Info(), v.in.Raw(), v.coeff.Raw(), v.out.Raw(), v.ib, v.jb)
	if err := v.device.Launch(k, grid, block); err != nil {
		return err
	}
	return v.device.Synchronize()
}
