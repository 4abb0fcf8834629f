package platform

import (
	"fmt"
	"runtime"

	"go.uber.org/zap"

	"github.com/LynnColeArt/sbench"
	"github.com/LynnColeArt/sbench/storage"
)

// ManyCoreConfig tunes the many-core backend.
type ManyCoreConfig struct {
	Workers      int
	CacheModulus int  // set-aliasing period in bytes
	FlushSize    int  // bytes touched by FlushCache
	Strict       bool // a cache conflict is an error instead of a warning
}

// ManyCore is a CPU backend with many cores and small, low-associativity
// caches. Strides that are multiples of the cache modulus map every access
// of a loop onto the same sets, so variants check their strides once at
// construction.
type ManyCore struct {
	base
	cfg   ManyCoreConfig
	flush []byte
}

// NewManyCore creates a many-core backend.
func NewManyCore(alloc storage.Allocator, cfg ManyCoreConfig, log *zap.Logger) *ManyCore {
	if log == nil {
		log = zap.NewNop()
	}
	if cfg.Workers <= 0 {
		cfg.Workers = runtime.NumCPU()
	}
	if cfg.CacheModulus <= 0 {
		cfg.CacheModulus = sbench.DefaultCacheModulus
	}
	if cfg.FlushSize <= 0 {
		cfg.FlushSize = sbench.DefaultFlushSize
	}
	return &ManyCore{
		base: base{name: "manycore", kind: KindManyCore, alloc: alloc, workers: cfg.Workers, log: log},
		cfg:  cfg,
	}
}

// LimitBlocksize returns the shape unchanged; CPU tiles have no thread limit.
func (m *ManyCore) LimitBlocksize(i, j int) (int, int) { return i, j }

// CheckCacheConflicts warns when byteStride is a non-zero multiple of the
// cache modulus.
func (m *ManyCore) CheckCacheConflicts(label string, byteStride int) error {
	if byteStride <= 0 || byteStride%m.cfg.CacheModulus != 0 {
		return nil
	}
	m.log.Warn("possible cache conflicts",
		zap.String("stride", label),
		zap.Int("byte_stride", byteStride),
		zap.Int("cache_modulus", m.cfg.CacheModulus))
	if m.cfg.Strict {
		return sbench.NewCacheConflictError("CheckCacheConflicts",
			fmt.Sprintf("%s: %d bytes is a multiple of %d", label, byteStride, m.cfg.CacheModulus))
	}
	return nil
}

// FlushCache writes every cache line of a buffer larger than the last level
// cache, twice with different patterns, from all workers.
func (m *ManyCore) FlushCache() error {
	if m.flush == nil {
		m.flush = make([]byte, m.cfg.FlushSize)
	}
	data := m.flush
	lines := len(data) / sbench.CacheLineSize
	for pass := 1; pass <= 2; pass++ {
		mul := 2*pass + 1
		err := ParallelFor(m.workers, lines, func(lo, hi int) {
			for l := lo; l < hi; l++ {
				off := l * sbench.CacheLineSize
				data[off] = byte((off * mul) % 256)
			}
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// Close drops the flush buffer.
func (m *ManyCore) Close() error {
	m.flush = nil
	return nil
}
