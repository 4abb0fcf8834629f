// Package verify checks stencil output against straightforward float64
// reference implementations, with tolerance-based floating-point
// comparison.
package verify

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/LynnColeArt/sbench/storage"
)

// Tolerance defines tolerance parameters for floating-point comparison
type Tolerance struct {
	// AbsTol is the absolute tolerance for values near zero
	AbsTol float64

	// RelTol is the relative tolerance as a fraction of the larger value
	RelTol float64

	// ULPTol is the maximum allowed difference in units in the last place
	// of the element type
	ULPTol uint64
}

// DefaultTolerance returns the tolerance for an element size in bytes.
func DefaultTolerance(elemSize int) Tolerance {
	if elemSize == 4 {
		return Tolerance{AbsTol: 1e-5, RelTol: 1e-4, ULPTol: 64}
	}
	return Tolerance{AbsTol: 1e-12, RelTol: 1e-10, ULPTol: 64}
}

// ToleranceFor returns the default tolerance of T.
func ToleranceFor[T storage.Float]() Tolerance {
	return DefaultTolerance(storage.ElementSize[T]())
}

// Exact accepts bitwise-equal values only.
func Exact() Tolerance { return Tolerance{} }

// NearEqual checks if a value of element size elemSize matches want.
func NearEqual(got, want float64, elemSize int, tol Tolerance) bool {
	if math.IsNaN(got) || math.IsNaN(want) {
		return math.IsNaN(got) && math.IsNaN(want)
	}
	if got == want {
		return true
	}
	diff := math.Abs(got - want)
	if diff <= tol.AbsTol {
		return true
	}
	if diff <= math.Max(math.Abs(got), math.Abs(want))*tol.RelTol {
		return true
	}
	return tol.ULPTol > 0 && ULPDiff(got, want, elemSize) <= tol.ULPTol
}

// ULPDiff computes the distance in units in the last place between two
// values rounded to an element size of 4 or 8 bytes.
func ULPDiff(a, b float64, elemSize int) uint64 {
	if elemSize == 4 {
		ab, bb := math.Float32bits(float32(a)), math.Float32bits(float32(b))
		if (ab^bb)&0x80000000 != 0 {
			return math.MaxUint64
		}
		if ab > bb {
			return uint64(ab - bb)
		}
		return uint64(bb - ab)
	}
	ab, bb := math.Float64bits(a), math.Float64bits(b)
	if (ab^bb)&(1<<63) != 0 {
		return math.MaxUint64
	}
	if ab > bb {
		return ab - bb
	}
	return bb - ab
}

// Result summarises a comparison.
type Result struct {
	MaxAbsError float64
	MaxRelError float64
	MaxULPError uint64
	NumErrors   int
	TotalItems  int
	FirstError  [3]int // logical position of the first mismatch
}

// OK reports whether every value matched.
func (r Result) OK() bool { return r.NumErrors == 0 }

// String formats the result for display
func (r Result) String() string {
	if r.NumErrors == 0 {
		return fmt.Sprintf("PASS: %d values match within tolerance", r.TotalItems)
	}
	rate := float64(r.NumErrors) / float64(r.TotalItems) * 100
	return fmt.Sprintf("FAIL: %d/%d values differ (%.2f%%), first at %v, max abs %.3e, max rel %.3e, max ulp %d",
		r.NumErrors, r.TotalItems, rate, r.FirstError, r.MaxAbsError, r.MaxRelError, r.MaxULPError)
}

// Compare checks the logical interior of got against want, which holds one
// value per logical point with i fastest.
func Compare[T storage.Float](got *storage.Buffer[T], want []float64, tol Tolerance) Result {
	dims := got.Info().LogicalDims()
	esize := storage.ElementSize[T]()
	res := Result{TotalItems: len(want)}
	if len(want) != dims[0]*dims[1]*dims[2] {
		res.NumErrors = len(want)
		return res
	}

	actual := Interior(got)
	var diffs []float64
	for n := range want {
		g, w := actual[n], want[n]
		if NearEqual(g, w, esize, tol) {
			continue
		}
		if res.NumErrors == 0 {
			res.FirstError = [3]int{n % dims[0], (n / dims[0]) % dims[1], n / (dims[0] * dims[1])}
		}
		res.NumErrors++
		diffs = append(diffs, math.Abs(g-w))
		if w != 0 {
			res.MaxRelError = math.Max(res.MaxRelError, math.Abs(g-w)/math.Abs(w))
		}
		if u := ULPDiff(g, w, esize); u > res.MaxULPError {
			res.MaxULPError = u
		}
	}
	if len(diffs) > 0 {
		res.MaxAbsError = floats.Max(diffs)
	}
	return res
}

// Interior copies the logical points of b into a float64 slice, i fastest.
func Interior[T storage.Float](b *storage.Buffer[T]) []float64 {
	dims := b.Info().LogicalDims()
	out := make([]float64, 0, dims[0]*dims[1]*dims[2])
	for k := 0; k < dims[2]; k++ {
		for j := 0; j < dims[1]; j++ {
			for i := 0; i < dims[0]; i++ {
				out = append(out, float64(b.At(i, j, k)))
			}
		}
	}
	return out
}

// Identical reports whether two buffers hold the same bits at every logical
// point.
func Identical[T storage.Float](a, b *storage.Buffer[T]) bool {
	x, y := Interior(a), Interior(b)
	if len(x) != len(y) {
		return false
	}
	for n := range x {
		if math.Float64bits(x[n]) != math.Float64bits(y[n]) {
			return false
		}
	}
	return true
}

// MaxAbs returns the largest absolute value of the logical points of b.
func MaxAbs[T storage.Float](b *storage.Buffer[T]) float64 {
	v := Interior(b)
	if len(v) == 0 {
		return 0
	}
	return floats.Norm(v, math.Inf(1))
}
