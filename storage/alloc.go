package storage

import (
	"fmt"
	"sync"
	"unsafe"

	"github.com/LynnColeArt/sbench"
)

// Allocator hands out raw memory for buffers. The only contract the stencil
// code relies on is that the returned region is contiguous, starts at an
// address aligned to the requested boundary and is exactly size bytes long.
type Allocator interface {
	Name() string
	Allocate(size, align int) ([]byte, error)
	Release(b []byte) error
}

// Prefetcher is implemented by allocators whose memory can be migrated or
// paged in ahead of use.
type Prefetcher interface {
	Prefetch(b []byte) error
}

// HostAllocator allocates plain Go heap memory. It tracks live and peak
// bytes so the harness can report the footprint of a variant.
type HostAllocator struct {
	mu        sync.Mutex
	live      map[uintptr]int
	totalLive int64
	peak      int64
}

// NewHostAllocator creates a heap allocator.
func NewHostAllocator() *HostAllocator {
	return &HostAllocator{live: make(map[uintptr]int)}
}

// Name returns "host".
func (h *HostAllocator) Name() string { return "host" }

// Allocate over-allocates by align bytes and returns the aligned window.
func (h *HostAllocator) Allocate(size, align int) ([]byte, error) {
	if size <= 0 {
		return nil, sbench.NewConfigurationError("Allocate", fmt.Sprintf("size must be positive, got %d", size))
	}
	if align < 1 {
		align = 1
	}
	raw := make([]byte, size+align-1)
	b := alignWindow(raw, size, align)

	h.mu.Lock()
	defer h.mu.Unlock()
	h.live[uintptr(unsafe.Pointer(&b[0]))] = size
	h.totalLive += int64(size)
	if h.totalLive > h.peak {
		h.peak = h.totalLive
	}
	return b, nil
}

// Release forgets the allocation; the garbage collector reclaims it.
func (h *HostAllocator) Release(b []byte) error {
	if len(b) == 0 {
		return nil
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	p := uintptr(unsafe.Pointer(&b[0]))
	size, ok := h.live[p]
	if !ok {
		return sbench.NewPlatformError("Release", "pointer not owned by host allocator", nil)
	}
	delete(h.live, p)
	h.totalLive -= int64(size)
	return nil
}

// Stats returns live and peak allocated bytes.
func (h *HostAllocator) Stats() (live, peak int64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.totalLive, h.peak
}

// alignWindow returns the size-byte window of raw starting at the first
// address that is a multiple of align. raw must hold size+align-1 bytes.
func alignWindow(raw []byte, size, align int) []byte {
	addr := uintptr(unsafe.Pointer(&raw[0]))
	off := int((uintptr(align) - addr%uintptr(align)) % uintptr(align))
	return raw[off : off+size : off+size]
}

// IsAligned reports whether the address of p is a multiple of align bytes.
func IsAligned(p unsafe.Pointer, align int) bool {
	return uintptr(p)%uintptr(align) == 0
}
