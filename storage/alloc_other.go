//go:build !linux
// +build !linux

package storage

// PinnedAllocator falls back to heap memory where page locking is not wired.
type PinnedAllocator struct {
	HostAllocator
}

// NewPinnedAllocator creates a heap-backed stand-in.
func NewPinnedAllocator() *PinnedAllocator {
	return &PinnedAllocator{HostAllocator: HostAllocator{live: make(map[uintptr]int)}}
}

// Name returns "pinned".
func (p *PinnedAllocator) Name() string { return "pinned" }

// SharedAllocator falls back to heap memory; Prefetch touches every page.
type SharedAllocator struct {
	HostAllocator
}

// NewSharedAllocator creates a heap-backed stand-in.
func NewSharedAllocator(bool) *SharedAllocator {
	return &SharedAllocator{HostAllocator: HostAllocator{live: make(map[uintptr]int)}}
}

// Name returns "shared".
func (s *SharedAllocator) Name() string { return "shared" }

// Prefetch reads one byte per page.
func (s *SharedAllocator) Prefetch(b []byte) error {
	var sink byte
	for i := 0; i < len(b); i += 4096 {
		sink ^= b[i]
	}
	_ = sink
	return nil
}
