package storage

import (
	"testing"
	"unsafe"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func allocators() []Allocator {
	return []Allocator{NewHostAllocator(), NewSharedAllocator(false), NewSharedAllocator(true)}
}

func TestBufferOriginIsAligned(t *testing.T) {
	for _, alloc := range allocators() {
		for _, m := range []int{1, 4, 8, 16, 32} {
			info, err := Compute([3]int{13, 7, 3}, LayoutIContiguous, UniformHalo(2), mustAlign(t, m))
			require.NoError(t, err)

			b64, err := NewBuffer[float64]("in", alloc, info)
			require.NoError(t, err)
			assert.True(t, IsAligned(unsafe.Pointer(&b64.Raw()[b64.Origin()]), m*8), "%s float64 M=%d", alloc.Name(), m)
			assert.Len(t, b64.Raw(), info.Size())
			require.NoError(t, b64.Release())

			b32, err := NewBuffer[float32]("in", alloc, info)
			require.NoError(t, err)
			assert.True(t, IsAligned(unsafe.Pointer(&b32.Raw()[b32.Origin()]), m*4), "%s float32 M=%d", alloc.Name(), m)
			require.NoError(t, b32.Release())
		}
	}
}

func TestBufferAccess(t *testing.T) {
	info, err := Compute([3]int{4, 4, 4}, LayoutIContiguous, UniformHalo(1), Unaligned{})
	require.NoError(t, err)
	b, err := NewBuffer[float64]("coeff", NewHostAllocator(), info)
	require.NoError(t, err)
	defer b.Release()

	b.Fill(0.5)
	b.Set(-1, 0, 3, 2)
	assert.Equal(t, 2.0, b.At(-1, 0, 3))
	assert.Equal(t, 0.5, b.At(3, 3, 3))
	assert.Equal(t, b.Raw()[b.Index(-1, 0, 3)], 2.0)
	assert.Equal(t, "coeff", b.Name())

	other, err := NewBuffer[float64]("copy", NewHostAllocator(), info)
	require.NoError(t, err)
	require.NoError(t, other.CopyFrom(b))
	assert.Equal(t, b.Raw(), other.Raw())
}

func TestHostAllocatorStats(t *testing.T) {
	h := NewHostAllocator()
	a, err := h.Allocate(1000, 64)
	require.NoError(t, err)
	b, err := h.Allocate(500, 64)
	require.NoError(t, err)

	live, peak := h.Stats()
	assert.Equal(t, int64(1500), live)
	assert.Equal(t, int64(1500), peak)

	require.NoError(t, h.Release(a))
	live, peak = h.Stats()
	assert.Equal(t, int64(500), live)
	assert.Equal(t, int64(1500), peak)

	require.NoError(t, h.Release(b))
	assert.Error(t, h.Release(b), "double release must be reported")

	_, err = h.Allocate(0, 64)
	assert.Error(t, err)
}

func TestSharedAllocatorPrefetch(t *testing.T) {
	s := NewSharedAllocator(false)
	b, err := s.Allocate(1<<20, 128)
	require.NoError(t, err)
	assert.True(t, IsAligned(unsafe.Pointer(&b[0]), 128))
	require.NoError(t, s.Prefetch(b))
	b[len(b)-1] = 7
	require.NoError(t, s.Release(b))
}

func TestPinnedAllocator(t *testing.T) {
	p := NewPinnedAllocator()
	b, err := p.Allocate(4096, 64)
	if err != nil {
		t.Skipf("page locking unavailable: %v", err)
	}
	b[0] = 1
	require.NoError(t, p.Release(b))
}
