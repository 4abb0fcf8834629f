// Package basic implements the one-dimensional bandwidth kernels: copies,
// shifted copies, averages, sums and a horizontal Laplacian, each applied
// elementwise over the linear index range of the domain.
package basic

import (
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/LynnColeArt/sbench"
	"github.com/LynnColeArt/sbench/platform"
	"github.com/LynnColeArt/sbench/stencil"
	"github.com/LynnColeArt/sbench/storage"
)

// Buffer names.
const (
	Src = "src"
	Dst = "dst"
)

// blockThreads is the device block width for the elementwise kernels.
const blockThreads = 256

// strides are the three neighbour offsets available to a kernel.
type strides struct{ i, j, k int }

// kernel computes dst[p] from src around p.
type kernel[T storage.Float] func(dst, src []T, p int, s strides)

func kernels[T storage.Float]() map[string]kernel[T] {
	return map[string]kernel[T]{
		"copy":  func(dst, src []T, p int, _ strides) { dst[p] = src[p] },
		"copyi": func(dst, src []T, p int, s strides) { dst[p] = src[p+s.i] },
		"copyj": func(dst, src []T, p int, s strides) { dst[p] = src[p+s.j] },
		"copyk": func(dst, src []T, p int, s strides) { dst[p] = src[p+s.k] },
		"avgi":  func(dst, src []T, p int, s strides) { dst[p] = src[p-s.i] + src[p+s.i] },
		"avgj":  func(dst, src []T, p int, s strides) { dst[p] = src[p-s.j] + src[p+s.j] },
		"avgk":  func(dst, src []T, p int, s strides) { dst[p] = src[p-s.k] + src[p+s.k] },
		"sumi":  func(dst, src []T, p int, s strides) { dst[p] = src[p] + src[p+s.i] },
		"sumj":  func(dst, src []T, p int, s strides) { dst[p] = src[p] + src[p+s.j] },
		"sumk":  func(dst, src []T, p int, s strides) { dst[p] = src[p] + src[p+s.k] },
		"lapij": func(dst, src []T, p int, s strides) {
			dst[p] = src[p] + src[p-s.i] + src[p+s.i] + src[p-s.j] + src[p+s.j]
		},
	}
}

// Names returns the kernel names in sorted order.
func Names() []string {
	var names []string
	for n := range kernels[float64]() {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Has reports whether name is a basic kernel.
func Has(name string) bool {
	_, ok := kernels[float64]()[name]
	return ok
}

// Variant runs one elementwise kernel.
type Variant[T storage.Float] struct {
	*stencil.Base[T]
	src, dst *storage.Buffer[T]
	fn       kernel[T]
	device   *platform.Device
}

// New builds the kernel called name. Every kernel reads at most one cell
// past the domain on each axis, so a halo of at least one is required.
func New[T storage.Float](name string, p platform.Platform, cfg stencil.Config, log *zap.Logger) (*Variant[T], error) {
	fn, ok := kernels[T]()[name]
	if !ok {
		return nil, sbench.NewConfigurationError("basic.New", fmt.Sprintf("unknown kernel %q", name))
	}
	if cfg.Halo < 1 {
		return nil, sbench.NewConfigurationError("basic.New", fmt.Sprintf("%s needs a halo of at least 1, got %d", name, cfg.Halo))
	}
	base, err := stencil.NewBase[T](name, p, cfg, log, Src, Dst)
	if err != nil {
		return nil, err
	}
	v := &Variant[T]{Base: base, src: base.Buffer(Src), dst: base.Buffer(Dst), fn: fn}
	if v.Strategy() == stencil.TiledSharedMemory {
		v.device = p.(*platform.Device)
	}
	v.Initialize(cfg.Seed)
	return v, nil
}

// Initialize fills src with random values and clears dst.
func (v *Variant[T]) Initialize(seed int64) {
	stencil.FillRandom(v.src, seed)
	v.dst.Fill(0)
}

// Src returns the input field.
func (v *Variant[T]) Src() *storage.Buffer[T] { return v.src }

// Dst returns the output field.
func (v *Variant[T]) Dst() *storage.Buffer[T] { return v.dst }

// span returns the linear index range [first, last] covering the domain.
// Halo and padding cells between the rows are part of the range.
func (v *Variant[T]) span() (int, int) {
	return v.ZeroOffset(), v.Index(v.ISize()-1, v.JSize()-1, v.KSize()-1)
}

// Prerun flushes the caches where the platform supports it.
func (v *Variant[T]) Prerun() error {
	if err := v.Base.Prerun(); err != nil {
		return err
	}
	return v.Platform().FlushCache()
}

// Run applies the kernel to every index of the span.
func (v *Variant[T]) Run() error {
	if err := v.BeginRun(); err != nil {
		return err
	}
	first, last := v.span()
	n := last - first + 1
	src, dst := v.src.Raw(), v.dst.Raw()
	s := strides{v.IStride(), v.JStride(), v.KStride()}

	switch v.Strategy() {
	case stencil.TiledSharedMemory:
		k := platform.Kernel{
			Name: v.Name(),
			Phases: []platform.Phase{func(tid platform.ThreadID, _ []byte) {
				if x := tid.GlobalX(); x < n {
					v.fn(dst, src, first+x, s)
				}
			}},
		}
		grid := platform.Dim3{X: (n + blockThreads - 1) / blockThreads, Y: 1, Z: 1}
		if err := v.device.Launch(k, grid, platform.Dim3{X: blockThreads, Y: 1, Z: 1}); err != nil {
			return err
		}
		return v.device.Synchronize()
	case stencil.VectorizedColumn:
		return platform.ParallelFor(v.Platform().Workers(), n, func(lo, hi int) {
			for p := first + lo; p < first+hi; p++ {
				v.fn(dst, src, p, s)
			}
		})
	default:
		for p := first; p <= last; p++ {
			v.fn(dst, src, p, s)
		}
		return nil
	}
}
