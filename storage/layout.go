package storage

import (
	"fmt"
	"strings"

	"github.com/LynnColeArt/sbench"
)

// NDims is the number of logical axes of every storage.
const NDims = 3

// Logical axes
const (
	AxisI = iota
	AxisJ
	AxisK
)

// Layout maps each logical axis (i, j, k) to a storage rank. The axis with
// the highest rank varies fastest in memory; -1 masks an axis so it is not
// stored at all (stride 0).
type Layout [NDims]int

// Common layouts
var (
	// LayoutIContiguous stores i with unit stride, then j, then k.
	LayoutIContiguous = Layout{2, 1, 0}
	// LayoutKContiguous stores k with unit stride, then j, then i.
	LayoutKContiguous = Layout{0, 1, 2}
	// LayoutJContiguous stores j with unit stride, then i, then k.
	LayoutJContiguous = Layout{1, 2, 0}
)

// ParseLayout reads a layout from the axis names ordered fastest first,
// e.g. "ijk" is LayoutIContiguous and "kji" is LayoutKContiguous.
func ParseLayout(s string) (Layout, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if len(s) != NDims {
		return Layout{}, sbench.NewConfigurationError("ParseLayout", fmt.Sprintf("layout %q must name all three axes", s))
	}
	l := Layout{-2, -2, -2}
	for pos, c := range s {
		axis := strings.IndexRune("ijk", c)
		if axis < 0 || l[axis] != -2 {
			return Layout{}, sbench.NewConfigurationError("ParseLayout", fmt.Sprintf("invalid layout %q", s))
		}
		l[axis] = NDims - 1 - pos
	}
	return l, nil
}

// String returns the axis names ordered fastest first; masked axes are omitted.
func (l Layout) String() string {
	var b strings.Builder
	for rank := NDims - 1; rank >= 0; rank-- {
		for axis, r := range l {
			if r == rank {
				b.WriteByte("ijk"[axis])
			}
		}
	}
	return b.String()
}

// Masked reports whether the axis is not stored.
func (l Layout) Masked(axis int) bool { return l[axis] < 0 }

// fastest returns the axis with the highest rank.
func (l Layout) fastest() int {
	best := -1
	for axis, r := range l {
		if r >= 0 && (best < 0 || r > l[best]) {
			best = axis
		}
	}
	return best
}

func (l Layout) validate() error {
	n := 0
	seen := [NDims]bool{}
	for _, r := range l {
		if r < -1 || r >= NDims {
			return sbench.NewConfigurationError("Layout", fmt.Sprintf("rank %d out of range in %v", r, [NDims]int(l)))
		}
		if r >= 0 {
			if seen[r] {
				return sbench.NewConfigurationError("Layout", fmt.Sprintf("duplicate rank %d in %v", r, [NDims]int(l)))
			}
			seen[r] = true
			n++
		}
	}
	if n == 0 {
		return sbench.NewConfigurationError("Layout", "all axes masked")
	}
	for r := 0; r < n; r++ {
		if !seen[r] {
			return sbench.NewConfigurationError("Layout", fmt.Sprintf("ranks of %v are not contiguous", [NDims]int(l)))
		}
	}
	return nil
}

// Halo is the number of extra cells below and above the logical domain on
// each axis.
type Halo struct {
	Lower [NDims]int
	Upper [NDims]int
}

// UniformHalo returns a halo of h cells on both sides of every axis.
func UniformHalo(h int) Halo {
	return Halo{Lower: [NDims]int{h, h, h}, Upper: [NDims]int{h, h, h}}
}

// SymmetricHalo returns per-axis halos that are equal below and above.
func SymmetricHalo(hi, hj, hk int) Halo {
	return Halo{Lower: [NDims]int{hi, hj, hk}, Upper: [NDims]int{hi, hj, hk}}
}

// Info describes how a logical i×j×k domain is laid out in linear memory.
// It is immutable once computed.
type Info struct {
	logical [NDims]int
	layout  Layout
	halo    Halo
	align   Alignment

	dims             [NDims]int
	strides          [NDims]int
	unalignedDims    [NDims]int
	unalignedStrides [NDims]int

	initialOffset int
	zeroOffset    int
	size          int
}

// Compute derives the storage description of a logical domain.
//
// The halo is added to every stored axis. With an Aligned variant the
// fastest axis is then rounded up to a multiple of M and enough padding is
// placed in front of the data that logical (0,0,0) lands on an aligned
// element. The pre-padding dims and strides are kept for callers that need
// the true extent.
func Compute(dims [NDims]int, layout Layout, halo Halo, align Alignment) (*Info, error) {
	if align == nil {
		align = Unaligned{}
	}
	if a, ok := align.(Aligned); ok && a.m <= 1 {
		return nil, fmt.Errorf("Compute: %w", sbench.ErrInvalidAlignment)
	}
	if err := layout.validate(); err != nil {
		return nil, err
	}

	info := &Info{logical: dims, layout: layout, halo: halo, align: align}
	for axis := 0; axis < NDims; axis++ {
		if dims[axis] < 0 {
			return nil, sbench.NewConfigurationError("Compute", fmt.Sprintf("negative size %d on axis %d", dims[axis], axis))
		}
		if layout.Masked(axis) {
			info.dims[axis] = 1
			info.unalignedDims[axis] = 1
			continue
		}
		lo, up := halo.Lower[axis], halo.Upper[axis]
		if lo < 0 || up < 0 {
			return nil, sbench.NewConfigurationError("Compute", fmt.Sprintf("negative halo (%d,%d) on axis %d", lo, up, axis))
		}
		ext := dims[axis] + lo + up
		if ext <= 0 {
			return nil, sbench.NewConfigurationError("Compute", fmt.Sprintf("empty extent on axis %d", axis))
		}
		info.dims[axis] = ext
		info.unalignedDims[axis] = ext
	}

	fast := layout.fastest()
	info.dims[fast] = align.alignDim(info.unalignedDims[fast])
	info.initialOffset = align.initialOffset(halo.Lower[fast])

	info.strides = cumulativeStrides(layout, info.dims)
	info.unalignedStrides = cumulativeStrides(layout, info.unalignedDims)

	info.size = info.initialOffset
	n := 1
	for axis := 0; axis < NDims; axis++ {
		if !layout.Masked(axis) {
			n *= info.dims[axis]
		}
	}
	info.size += n

	info.zeroOffset = info.initialOffset
	for axis := 0; axis < NDims; axis++ {
		info.zeroOffset += halo.Lower[axis] * info.strides[axis]
	}
	return info, nil
}

// cumulativeStrides walks the axes from the highest rank down.
func cumulativeStrides(layout Layout, dims [NDims]int) [NDims]int {
	var strides [NDims]int
	s := 1
	for rank := NDims - 1; rank >= 0; rank-- {
		for axis, r := range layout {
			if r == rank {
				strides[axis] = s
				s *= dims[axis]
			}
		}
	}
	return strides
}

// LogicalDims returns the visible domain size.
func (s *Info) LogicalDims() [NDims]int { return s.logical }

// Dims returns the allocated extent per axis, halo and padding included.
func (s *Info) Dims() [NDims]int { return s.dims }

// Strides returns the aligned strides per axis.
func (s *Info) Strides() [NDims]int { return s.strides }

// Stride returns the aligned stride of one axis.
func (s *Info) Stride(axis int) int { return s.strides[axis] }

// UnalignedDim returns the extent of an axis before alignment padding.
func (s *Info) UnalignedDim(axis int) int { return s.unalignedDims[axis] }

// UnalignedStride returns the stride of an axis computed from unpadded extents.
func (s *Info) UnalignedStride(axis int) int { return s.unalignedStrides[axis] }

// InitialOffset is the number of padding elements in front of the data.
// It is zero for Unaligned storages.
func (s *Info) InitialOffset() int { return s.initialOffset }

// ZeroOffset is the linear index of logical (0,0,0).
func (s *Info) ZeroOffset() int { return s.zeroOffset }

// Size is the number of elements to allocate.
func (s *Info) Size() int { return s.size }

// Length is the number of logical (non-halo) points.
func (s *Info) Length() int {
	n := 1
	for axis := 0; axis < NDims; axis++ {
		if !s.layout.Masked(axis) {
			n *= s.logical[axis]
		}
	}
	return n
}

// Halo returns the halo the storage was computed with.
func (s *Info) Halo() Halo { return s.halo }

// Layout returns the axis permutation.
func (s *Info) Layout() Layout { return s.layout }

// Alignment returns the alignment variant.
func (s *Info) Alignment() Alignment { return s.align }

// Index returns the linear index of logical point (i, j, k). Negative
// coordinates down to -halo address the halo.
func (s *Info) Index(i, j, k int) int {
	return s.zeroOffset + i*s.strides[AxisI] + j*s.strides[AxisJ] + k*s.strides[AxisK]
}

// String summarises the storage for logs.
func (s *Info) String() string {
	return fmt.Sprintf("dims=%v strides=%v layout=%s align=%d offset=%d size=%d",
		s.dims, s.strides, s.layout, s.align.Value(), s.initialOffset, s.size)
}
