package verify

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/LynnColeArt/sbench"
	"github.com/LynnColeArt/sbench/storage"
)

// HorizontalDiffusion evaluates the diffusion formulas point by point in
// float64, without intermediate fields. The result has one value per
// logical point, i fastest.
func HorizontalDiffusion[T storage.Float](in, coeff *storage.Buffer[T]) []float64 {
	dims := in.Info().LogicalDims()
	at := func(i, j, k int) float64 { return float64(in.At(i, j, k)) }
	lap := func(i, j, k int) float64 {
		return 4*at(i, j, k) - (at(i+1, j, k) + at(i-1, j, k) + at(i, j+1, k) + at(i, j-1, k))
	}
	flx := func(i, j, k int) float64 {
		f := lap(i+1, j, k) - lap(i, j, k)
		if f*(at(i+1, j, k)-at(i, j, k)) > 0 {
			return 0
		}
		return f
	}
	fly := func(i, j, k int) float64 {
		f := lap(i, j+1, k) - lap(i, j, k)
		if f*(at(i, j+1, k)-at(i, j, k)) > 0 {
			return 0
		}
		return f
	}

	out := make([]float64, 0, dims[0]*dims[1]*dims[2])
	for k := 0; k < dims[2]; k++ {
		for j := 0; j < dims[1]; j++ {
			for i := 0; i < dims[0]; i++ {
				div := flx(i, j, k) - flx(i-1, j, k) + fly(i, j, k) - fly(i, j-1, k)
				out = append(out, at(i, j, k)-float64(coeff.At(i, j, k))*div)
			}
		}
	}
	return out
}

// Advection constants of the implicit vertical solver.
const (
	DtrStage = 3.0 / 20.0
	BetaV    = 0.0
	BetM     = 0.5 * (1.0 - BetaV)
	BetP     = 0.5 * (1.0 + BetaV)
)

// AdvectionInputs are the fields the vertical solver reads.
type AdvectionInputs[T storage.Float] struct {
	Wcon, Ustage, Upos, Utens, Utensstage *storage.Buffer[T]
	IShift, JShift                        int
}

// ColumnSystem returns the tridiagonal system of column (i, j): sub-, main
// and super-diagonal and right-hand side.
func ColumnSystem[T storage.Float](in AdvectionInputs[T], i, j int) (a, b, c, d []float64) {
	ksize := in.Wcon.Info().LogicalDims()[storage.AxisK]
	a = make([]float64, ksize)
	b = make([]float64, ksize)
	c = make([]float64, ksize)
	d = make([]float64, ksize)
	w := func(di, dj, k int) float64 { return float64(in.Wcon.At(i+di, j+dj, k)) }
	us := func(k int) float64 { return float64(in.Ustage.At(i, j, k)) }

	for k := 0; k < ksize; k++ {
		var gav, gcv float64
		if k > 0 {
			gav = -0.25 * (w(in.IShift, in.JShift, k) + w(0, 0, k))
		}
		if k < ksize-1 {
			gcv = 0.25 * (w(in.IShift, in.JShift, k+1) + w(0, 0, k+1))
		}
		a[k] = gav * BetP
		c[k] = gcv * BetP
		b[k] = DtrStage - a[k] - c[k]

		var corr float64
		if k > 0 {
			corr -= gav * BetM * (us(k-1) - us(k))
		}
		if k < ksize-1 {
			corr -= gcv * BetM * (us(k+1) - us(k))
		}
		d[k] = DtrStage*float64(in.Upos.At(i, j, k)) + float64(in.Utens.At(i, j, k)) +
			float64(in.Utensstage.At(i, j, k)) + corr
	}
	return a, b, c, d
}

// SolveTridiagonal solves the system with a dense LU factorisation.
func SolveTridiagonal(a, b, c, d []float64) ([]float64, error) {
	n := len(b)
	m := mat.NewDense(n, n, nil)
	for k := 0; k < n; k++ {
		m.Set(k, k, b[k])
		if k > 0 {
			m.Set(k, k-1, a[k])
		}
		if k < n-1 {
			m.Set(k, k+1, c[k])
		}
	}
	var x mat.VecDense
	if err := x.SolveVec(m, mat.NewVecDense(n, append([]float64(nil), d...))); err != nil {
		return nil, fmt.Errorf("dense column solve: %w", err)
	}
	return x.RawVector().Data, nil
}

// VerticalAdvection solves every column densely and returns the updated
// stage tendency dtr_stage·(x − upos), one value per logical point, i
// fastest.
func VerticalAdvection[T storage.Float](in AdvectionInputs[T]) ([]float64, error) {
	dims := in.Wcon.Info().LogicalDims()
	isize, jsize, ksize := dims[0], dims[1], dims[2]
	if ksize < 2 {
		return nil, sbench.NewConfigurationError("verify.VerticalAdvection", fmt.Sprintf("ksize %d is smaller than 2", ksize))
	}
	out := make([]float64, isize*jsize*ksize)
	for j := 0; j < jsize; j++ {
		for i := 0; i < isize; i++ {
			x, err := SolveTridiagonal(ColumnSystem(in, i, j))
			if err != nil {
				return nil, fmt.Errorf("column (%d, %d): %w", i, j, err)
			}
			for k := 0; k < ksize; k++ {
				out[i+isize*(j+jsize*k)] = DtrStage * (x[k] - float64(in.Upos.At(i, j, k)))
			}
		}
	}
	return out, nil
}

// basicOffsets lists, per one-dimensional kernel, the neighbours whose sum
// it produces.
var basicOffsets = map[string][][3]int{
	"copy":  {{0, 0, 0}},
	"copyi": {{1, 0, 0}},
	"copyj": {{0, 1, 0}},
	"copyk": {{0, 0, 1}},
	"avgi":  {{-1, 0, 0}, {1, 0, 0}},
	"avgj":  {{0, -1, 0}, {0, 1, 0}},
	"avgk":  {{0, 0, -1}, {0, 0, 1}},
	"sumi":  {{0, 0, 0}, {1, 0, 0}},
	"sumj":  {{0, 0, 0}, {0, 1, 0}},
	"sumk":  {{0, 0, 0}, {0, 0, 1}},
	"lapij": {{0, 0, 0}, {-1, 0, 0}, {1, 0, 0}, {0, -1, 0}, {0, 1, 0}},
}

// Basic evaluates a one-dimensional kernel at every logical point of src.
func Basic[T storage.Float](name string, src *storage.Buffer[T]) ([]float64, error) {
	offsets, ok := basicOffsets[name]
	if !ok {
		return nil, sbench.NewConfigurationError("verify.Basic", fmt.Sprintf("unknown kernel %q", name))
	}
	dims := src.Info().LogicalDims()
	out := make([]float64, 0, dims[0]*dims[1]*dims[2])
	for k := 0; k < dims[2]; k++ {
		for j := 0; j < dims[1]; j++ {
			for i := 0; i < dims[0]; i++ {
				var sum float64
				for _, o := range offsets {
					sum += float64(src.At(i+o[0], j+o[1], k+o[2]))
				}
				out = append(out, sum)
			}
		}
	}
	return out, nil
}
