//go:build linux
// +build linux

package storage

import (
	"errors"
	"sync"
	"unsafe"

	"golang.org/x/sys/unix"

	"github.com/LynnColeArt/sbench"
)

// mappings remembers the full mmap region behind every window handed out,
// keyed by the window's first byte.
type mappings struct {
	mu      sync.Mutex
	regions map[uintptr][]byte
}

func (m *mappings) mmap(size, align, flags int) ([]byte, []byte, error) {
	if size <= 0 {
		return nil, nil, sbench.NewConfigurationError("Allocate", "size must be positive")
	}
	if align < 1 {
		align = 1
	}
	region, err := unix.Mmap(-1, 0, size+align-1, unix.PROT_READ|unix.PROT_WRITE, flags)
	if err != nil {
		return nil, nil, sbench.NewPlatformError("Allocate", "mmap failed", err)
	}
	b := alignWindow(region, size, align)
	m.mu.Lock()
	if m.regions == nil {
		m.regions = make(map[uintptr][]byte)
	}
	m.regions[uintptr(unsafe.Pointer(&b[0]))] = region
	m.mu.Unlock()
	return b, region, nil
}

func (m *mappings) region(b []byte) ([]byte, bool) {
	if len(b) == 0 {
		return nil, false
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.regions[uintptr(unsafe.Pointer(&b[0]))]
	return r, ok
}

func (m *mappings) unmap(b []byte) ([]byte, error) {
	if len(b) == 0 {
		return nil, nil
	}
	m.mu.Lock()
	key := uintptr(unsafe.Pointer(&b[0]))
	region, ok := m.regions[key]
	delete(m.regions, key)
	m.mu.Unlock()
	if !ok {
		return nil, sbench.NewPlatformError("Release", "pointer not owned by allocator", nil)
	}
	if err := unix.Munmap(region); err != nil {
		return region, sbench.NewPlatformError("Release", "munmap failed", err)
	}
	return region, nil
}

// PinnedAllocator returns page-locked host memory, the host side of an
// accelerator transfer that never gets swapped out.
type PinnedAllocator struct {
	m mappings
}

// NewPinnedAllocator creates a page-locked allocator.
func NewPinnedAllocator() *PinnedAllocator { return &PinnedAllocator{} }

// Name returns "pinned".
func (p *PinnedAllocator) Name() string { return "pinned" }

// Allocate maps anonymous memory and locks it. Locking fails when
// RLIMIT_MEMLOCK is too small; the mapping is then released again.
func (p *PinnedAllocator) Allocate(size, align int) ([]byte, error) {
	b, region, err := p.m.mmap(size, align, unix.MAP_ANON|unix.MAP_PRIVATE)
	if err != nil {
		return nil, err
	}
	if err := unix.Mlock(region); err != nil {
		_, _ = p.m.unmap(b)
		return nil, sbench.NewPlatformError("Allocate", "mlock failed", err)
	}
	return b, nil
}

// Release unlocks and unmaps the allocation.
func (p *PinnedAllocator) Release(b []byte) error {
	region, ok := p.m.region(b)
	if ok {
		_ = unix.Munlock(region)
	}
	_, err := p.m.unmap(b)
	return err
}

// SharedAllocator returns memory visible to both the host and the
// accelerator. Pages are populated lazily, so Prefetch is what moves them
// close to the compute before a run.
type SharedAllocator struct {
	m         mappings
	hugePages bool
}

// NewSharedAllocator creates a shared allocator. With hugePages set the
// kernel is asked to back the mappings with transparent huge pages.
func NewSharedAllocator(hugePages bool) *SharedAllocator {
	return &SharedAllocator{hugePages: hugePages}
}

// Name returns "shared".
func (s *SharedAllocator) Name() string { return "shared" }

// Allocate maps shared anonymous memory.
func (s *SharedAllocator) Allocate(size, align int) ([]byte, error) {
	b, region, err := s.m.mmap(size, align, unix.MAP_ANON|unix.MAP_SHARED)
	if err != nil {
		return nil, err
	}
	if s.hugePages {
		// Not every kernel has THP for shared mappings; the hint is optional.
		if err := unix.Madvise(region, unix.MADV_HUGEPAGE); err != nil && !errors.Is(err, unix.EINVAL) {
			_, _ = s.m.unmap(b)
			return nil, sbench.NewPlatformError("Allocate", "madvise(MADV_HUGEPAGE) failed", err)
		}
	}
	return b, nil
}

// Release unmaps the allocation.
func (s *SharedAllocator) Release(b []byte) error {
	_, err := s.m.unmap(b)
	return err
}

// Prefetch asks the kernel to page the whole mapping in.
func (s *SharedAllocator) Prefetch(b []byte) error {
	region, ok := s.m.region(b)
	if !ok {
		return sbench.NewPlatformError("Prefetch", "pointer not owned by shared allocator", nil)
	}
	if err := unix.Madvise(region, unix.MADV_WILLNEED); err != nil {
		return sbench.NewPlatformError("Prefetch", "madvise(MADV_WILLNEED) failed", err)
	}
	return nil
}
