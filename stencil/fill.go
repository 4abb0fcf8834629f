package stencil

import (
	"math"
	"math/rand"

	"github.com/LynnColeArt/sbench/storage"
)

// Extent returns the per-axis coordinate range of a layout, lower bound
// inclusive and upper bound exclusive. With halo set the halo cells are
// included.
func Extent(info *storage.Info, halo bool) (lo, hi [3]int) {
	dims := info.LogicalDims()
	h := info.Halo()
	for axis := 0; axis < storage.NDims; axis++ {
		hi[axis] = dims[axis]
		if info.Layout().Masked(axis) {
			lo[axis], hi[axis] = 0, 1
			continue
		}
		if halo {
			lo[axis] = -h.Lower[axis]
			hi[axis] += h.Upper[axis]
		}
	}
	return lo, hi
}

// ForEach calls fn for every point of the layout, k outermost.
func ForEach(info *storage.Info, halo bool, fn func(i, j, k int)) {
	lo, hi := Extent(info, halo)
	for k := lo[2]; k < hi[2]; k++ {
		for j := lo[1]; j < hi[1]; j++ {
			for i := lo[0]; i < hi[0]; i++ {
				fn(i, j, k)
			}
		}
	}
}

// FillRandom sets every point, halo included, to a value in [0, 1) drawn
// from a generator seeded with seed. Equal seeds give equal buffers.
func FillRandom[T storage.Float](b *storage.Buffer[T], seed int64) {
	rng := rand.New(rand.NewSource(seed))
	data := b.Raw()
	ForEach(b.Info(), true, func(i, j, k int) {
		data[b.Index(i, j, k)] = T(rng.Float64())
	})
}

// FillSmooth sets every point, halo included, to a smooth periodic field
// offset + scale·f(x, y, z) with f in (0, 1) and x, y, z the coordinates
// normalised by the domain size.
func FillSmooth[T storage.Float](b *storage.Buffer[T], offset, scale float64) {
	dims := b.Info().LogicalDims()
	data := b.Raw()
	norm := func(n, size int) float64 {
		if size <= 0 {
			return 0
		}
		return float64(n) / float64(size)
	}
	ForEach(b.Info(), true, func(i, j, k int) {
		x, y, z := norm(i, dims[0]), norm(j, dims[1]), norm(k, dims[2])
		phase := math.Pi * (x + 1.5*y + 0.5*z)
		f := (2 + math.Cos(phase) + math.Sin(2*phase)) / 4
		data[b.Index(i, j, k)] = T(offset + scale*f)
	})
}
