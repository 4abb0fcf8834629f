package hdiff

import "github.com/LynnColeArt/sbench/storage"

// The point functions below are the only place the diffusion arithmetic is
// written down. Every strategy calls them, and explicit conversions keep the
// compiler from fusing a multiply into a neighbouring add, so all strategies
// produce the same bits.

// laplacian is the five-point Laplacian of in at p.
func laplacian[T storage.Float](in []T, p, is, js int) T {
	return T(4*in[p]) - (in[p+is] + in[p-is] + in[p+js] + in[p-js])
}

// limitedFlux is the flux between two neighbouring Laplacians, or zero when
// it would point up the gradient of the input field.
func limitedFlux[T storage.Float](lapHere, lapNext, inHere, inNext T) T {
	f := lapNext - lapHere
	if T(f*(inNext-inHere)) > 0 {
		return 0
	}
	return f
}

// update applies the flux divergence at one point.
func update[T storage.Float](in, coeff, flxHere, flxPrev, flyHere, flyPrev T) T {
	return in - T(coeff*(flxHere-flxPrev+flyHere-flyPrev))
}

// scratch holds the three intermediate fields of one tile with a one-cell
// ring around it. Element (i, j) of the tile is at (i+1) + (j+1)*width.
type scratch[T storage.Float] struct {
	width         int
	lap, flx, fly []T
}

func newScratch[T storage.Float](ni, nj int) *scratch[T] {
	n := (ni + 2) * (nj + 2)
	return &scratch[T]{
		width: ni + 2,
		lap:   make([]T, n),
		flx:   make([]T, n),
		fly:   make([]T, n),
	}
}

// tile computes out over the ni×nj points starting at (i0, j0) on level k.
// s must have been sized for at least ni columns.
func tile[T storage.Float](s *scratch[T], info *storage.Info, in, coeff, out []T, i0, j0, ni, nj, k int) {
	is, js := info.Stride(storage.AxisI), info.Stride(storage.AxisJ)
	w := s.width
	lap, flx, fly := s.lap, s.flx, s.fly

	for j := -1; j <= nj; j++ {
		p := info.Index(i0-1, j0+j, k)
		c := (j + 1) * w
		for i := -1; i <= ni; i++ {
			lap[c] = laplacian(in, p, is, js)
			p += is
			c++
		}
	}

	for j := 0; j < nj; j++ {
		p := info.Index(i0-1, j0+j, k)
		c := (j + 1) * w
		for i := -1; i < ni; i++ {
			flx[c] = limitedFlux(lap[c], lap[c+1], in[p], in[p+is])
			p += is
			c++
		}
	}

	for j := -1; j < nj; j++ {
		p := info.Index(i0, j0+j, k)
		c := 1 + (j+1)*w
		for i := 0; i < ni; i++ {
			fly[c] = limitedFlux(lap[c], lap[c+w], in[p], in[p+js])
			p += is
			c++
		}
	}

	for j := 0; j < nj; j++ {
		p := info.Index(i0, j0+j, k)
		c := 1 + (j+1)*w
		for i := 0; i < ni; i++ {
			out[p] = update(in[p], coeff[p], flx[c], flx[c-1], fly[c], fly[c-w])
			p += is
			c++
		}
	}
}
