// Package platform describes the execution backends a stencil variant can
// run on and the capabilities the kernels consult: memory allocation,
// block-size limits, cache-conflict diagnostics and cache flushing.
package platform

import (
	"fmt"
	"runtime"
	"strings"

	"go.uber.org/zap"

	"github.com/LynnColeArt/sbench"
	"github.com/LynnColeArt/sbench/storage"
)

// Kind identifies a backend family.
type Kind int

const (
	// KindHost is a plain CPU.
	KindHost Kind = iota
	// KindManyCore is a many-core CPU with cache-set aware checks.
	KindManyCore
	// KindDevice is the emulated accelerator.
	KindDevice
)

// String returns the configuration name of the kind.
func (k Kind) String() string {
	switch k {
	case KindHost:
		return "host"
	case KindManyCore:
		return "manycore"
	case KindDevice:
		return "device"
	default:
		return "unknown"
	}
}

// ParseKind reads a platform name.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "host", "x86", "cpu":
		return KindHost, nil
	case "manycore", "knl":
		return KindManyCore, nil
	case "device", "cuda", "gpu":
		return KindDevice, nil
	default:
		return 0, sbench.NewConfigurationError("ParseKind", fmt.Sprintf("unknown platform %q", s))
	}
}

// Platform is the capability set every backend offers to the kernels.
type Platform interface {
	Name() string
	Kind() Kind
	Allocator() storage.Allocator
	Workers() int
	VectorLanes(elemSize int) int

	// LimitBlocksize adjusts a requested tile shape to hardware limits.
	LimitBlocksize(i, j int) (int, int)

	// CheckCacheConflicts reports strides that alias in the cache. Conflicts
	// are logged; an error is returned only when the platform is strict.
	CheckCacheConflicts(label string, byteStride int) error

	// FlushCache evicts benchmark data before a run. No-op where it does
	// not apply.
	FlushCache() error

	Close() error
}

// Options configures New.
type Options struct {
	Kind    Kind
	Memory  string // "host", "pinned", "shared" or empty for the backend default
	Workers int    // 0 means runtime.NumCPU()

	CacheModulus int  // bytes; many-core only
	FlushSize    int  // bytes; many-core only
	Strict       bool // cache conflicts abort

	Device DeviceProps
	Logger *zap.Logger
}

// New builds the platform described by opts.
func New(opts Options) (Platform, error) {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Workers <= 0 {
		opts.Workers = runtime.NumCPU()
	}
	switch opts.Kind {
	case KindHost:
		alloc, err := newAllocator(opts.Memory, "host")
		if err != nil {
			return nil, err
		}
		return NewHost(alloc, opts.Workers, opts.Logger), nil
	case KindManyCore:
		alloc, err := newAllocator(opts.Memory, "hugepage")
		if err != nil {
			return nil, err
		}
		return NewManyCore(alloc, ManyCoreConfig{
			Workers:      opts.Workers,
			CacheModulus: opts.CacheModulus,
			FlushSize:    opts.FlushSize,
			Strict:       opts.Strict,
		}, opts.Logger), nil
	case KindDevice:
		alloc, err := newAllocator(opts.Memory, "shared")
		if err != nil {
			return nil, err
		}
		return NewDevice(alloc, opts.Device, opts.Workers, opts.Logger), nil
	default:
		return nil, sbench.NewConfigurationError("platform.New", fmt.Sprintf("unknown kind %d", opts.Kind))
	}
}

func newAllocator(memory, fallback string) (storage.Allocator, error) {
	if memory == "" {
		memory = fallback
	}
	switch memory {
	case "host":
		return storage.NewHostAllocator(), nil
	case "pinned":
		return storage.NewPinnedAllocator(), nil
	case "shared":
		return storage.NewSharedAllocator(false), nil
	case "hugepage":
		return storage.NewSharedAllocator(true), nil
	default:
		return nil, sbench.NewConfigurationError("platform.New", fmt.Sprintf("unknown memory kind %q", memory))
	}
}

// base carries the fields every backend shares.
type base struct {
	name    string
	kind    Kind
	alloc   storage.Allocator
	workers int
	log     *zap.Logger
}

func (b *base) Name() string                 { return b.name }
func (b *base) Kind() Kind                   { return b.kind }
func (b *base) Allocator() storage.Allocator { return b.alloc }
func (b *base) Workers() int                 { return b.workers }

func (b *base) VectorLanes(elemSize int) int {
	return cpuFeatures.Lanes(elemSize)
}

// Host is a plain CPU backend. It has no block-size limits, never reports
// cache conflicts and does not flush.
type Host struct {
	base
}

// NewHost creates a host backend.
func NewHost(alloc storage.Allocator, workers int, log *zap.Logger) *Host {
	if log == nil {
		log = zap.NewNop()
	}
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	return &Host{base{name: "host", kind: KindHost, alloc: alloc, workers: workers, log: log}}
}

// LimitBlocksize returns the shape unchanged.
func (h *Host) LimitBlocksize(i, j int) (int, int) { return i, j }

// CheckCacheConflicts never reports a conflict.
func (h *Host) CheckCacheConflicts(string, int) error { return nil }

// FlushCache is a no-op.
func (h *Host) FlushCache() error { return nil }

// Close releases nothing.
func (h *Host) Close() error { return nil }
