package storage

import (
	"fmt"

	"github.com/LynnColeArt/sbench"
)

// Alignment selects how the fastest varying axis is padded. It is a sealed
// variant: Unaligned (M=1) and Aligned (M>1) are the only implementations.
// The choice is made once when an Info is computed; kernels only ever read
// the resulting strides.
type Alignment interface {
	// Value is M, the alignment in elements.
	Value() int

	// initialOffset returns the number of padding elements placed in front
	// of the data for the given lower halo of the fastest axis.
	initialOffset(lowerHalo int) int

	// alignDim rounds the halo-inclusive fastest extent.
	alignDim(n int) int

	sealed()
}

// Unaligned is the zero-cost M=1 specialization.
type Unaligned struct{}

// Value returns 1.
func (Unaligned) Value() int { return 1 }

func (Unaligned) initialOffset(int) int { return 0 }
func (Unaligned) alignDim(n int) int    { return n }
func (Unaligned) sealed()               {}

// Aligned pads the fastest axis to a multiple of M elements.
type Aligned struct {
	m int
}

// NewAligned returns the M>1 variant. M of one or less is reserved for
// Unaligned and is rejected.
func NewAligned(m int) (Aligned, error) {
	if m <= 1 {
		return Aligned{}, fmt.Errorf("NewAligned(%d): %w", m, sbench.ErrInvalidAlignment)
	}
	return Aligned{m: m}, nil
}

// Value returns M.
func (a Aligned) Value() int { return a.m }

func (a Aligned) initialOffset(lowerHalo int) int {
	return roundUp(lowerHalo, a.m) - lowerHalo
}

func (a Aligned) alignDim(n int) int { return roundUp(n, a.m) }
func (Aligned) sealed()              {}

// AlignmentOf picks the variant for m elements.
func AlignmentOf(m int) (Alignment, error) {
	switch {
	case m < 1:
		return nil, sbench.NewConfigurationError("Alignment", fmt.Sprintf("alignment must be positive, got %d", m))
	case m == 1:
		return Unaligned{}, nil
	default:
		return NewAligned(m)
	}
}

func roundUp(n, m int) int {
	return (n + m - 1) / m * m
}
