// Package stencil provides the machinery shared by every benchmark
// variant: named buffers on a common layout, stride accessors, the
// Setup → Prerun → Run → Postrun → Teardown lifecycle and strategy
// selection.
package stencil

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/LynnColeArt/sbench"
	"github.com/LynnColeArt/sbench/platform"
	"github.com/LynnColeArt/sbench/storage"
)

// Variant is one stencil bound to a platform and a strategy.
type Variant interface {
	Name() string
	Prerun() error
	// Run executes the kernel once. It reads only input buffers, so
	// repeated runs on unchanged input produce identical output.
	Run() error
	Postrun() error
	Close() error
}

// State is a lifecycle position.
type State int

const (
	StateSetup State = iota
	StatePrerun
	StateRun
	StatePostrun
	StateTeardown
)

func (s State) String() string {
	switch s {
	case StateSetup:
		return "setup"
	case StatePrerun:
		return "prerun"
	case StateRun:
		return "run"
	case StatePostrun:
		return "postrun"
	case StateTeardown:
		return "teardown"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// allowed lists the states each transition may start from.
var allowed = map[State][]State{
	StatePrerun:  {StateSetup, StatePrerun, StatePostrun},
	StateRun:     {StatePrerun, StateRun},
	StatePostrun: {StateRun},
}

// Base owns the buffers of a variant and tracks its lifecycle. Concrete
// variants embed it and call its Prerun, BeginRun and Postrun before doing
// their own work.
type Base[T storage.Float] struct {
	name     string
	cfg      Config
	strategy Strategy
	platform platform.Platform
	info     *storage.Info
	buffers  map[string]*storage.Buffer[T]
	order    []string
	state    State
	log      *zap.Logger
}

// NewBase allocates one buffer per name on the platform allocator, all
// sharing the layout computed from cfg.
func NewBase[T storage.Float](name string, p platform.Platform, cfg Config, log *zap.Logger, buffers ...string) (*Base[T], error) {
	if log == nil {
		log = zap.NewNop()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	strategy, err := cfg.Strategy.Resolve(p)
	if err != nil {
		return nil, err
	}
	info, err := cfg.StorageInfo()
	if err != nil {
		return nil, err
	}
	b := &Base[T]{
		name:     name,
		cfg:      cfg,
		strategy: strategy,
		platform: p,
		info:     info,
		buffers:  make(map[string]*storage.Buffer[T], len(buffers)),
		log:      log.With(zap.String("variant", name), zap.String("strategy", strategy.String())),
	}
	for _, n := range buffers {
		if _, dup := b.buffers[n]; dup {
			b.release()
			return nil, sbench.NewConfigurationError("NewBase", fmt.Sprintf("duplicate buffer %q", n))
		}
		buf, err := storage.NewBuffer[T](n, p.Allocator(), info)
		if err != nil {
			b.release()
			return nil, sbench.NewPlatformError("NewBase", "buffer allocation failed", err)
		}
		b.buffers[n] = buf
		b.order = append(b.order, n)
	}
	b.log.Debug("storage computed", zap.Stringer("info", info), zap.Int("buffers", len(buffers)))
	return b, nil
}

// Name returns the variant name.
func (b *Base[T]) Name() string { return b.name }

// Config returns the configuration the variant was built from.
func (b *Base[T]) Config() Config { return b.cfg }

// Strategy returns the resolved strategy.
func (b *Base[T]) Strategy() Strategy { return b.strategy }

// Platform returns the backend.
func (b *Base[T]) Platform() platform.Platform { return b.platform }

// Logger returns the variant logger.
func (b *Base[T]) Logger() *zap.Logger { return b.log }

// Info returns the layout shared by all buffers.
func (b *Base[T]) Info() *storage.Info { return b.info }

// State returns the lifecycle position.
func (b *Base[T]) State() State { return b.state }

// Buffer returns a buffer by name, or nil.
func (b *Base[T]) Buffer(name string) *storage.Buffer[T] { return b.buffers[name] }

// Buffers returns the buffer names in allocation order.
func (b *Base[T]) Buffers() []string { return append([]string(nil), b.order...) }

func (b *Base[T]) ISize() int { return b.cfg.ISize }
func (b *Base[T]) JSize() int { return b.cfg.JSize }
func (b *Base[T]) KSize() int { return b.cfg.KSize }

func (b *Base[T]) IStride() int { return b.info.Stride(storage.AxisI) }
func (b *Base[T]) JStride() int { return b.info.Stride(storage.AxisJ) }
func (b *Base[T]) KStride() int { return b.info.Stride(storage.AxisK) }

// Strides returns the (i, j, k) stride triple.
func (b *Base[T]) Strides() [3]int { return b.info.Strides() }

// Index returns the linear index of logical (i, j, k) in every buffer.
func (b *Base[T]) Index(i, j, k int) int { return b.info.Index(i, j, k) }

// ZeroOffset is the linear index of logical (0,0,0).
func (b *Base[T]) ZeroOffset() int { return b.info.ZeroOffset() }

// StorageSize is the number of elements allocated per buffer.
func (b *Base[T]) StorageSize() int { return b.info.Size() }

// Size is the number of logical points.
func (b *Base[T]) Size() int { return b.info.Length() }

// BytesPerElement returns sizeof(T).
func (b *Base[T]) BytesPerElement() int { return storage.ElementSize[T]() }

func (b *Base[T]) transition(to State) error {
	if b.state == StateTeardown {
		return fmt.Errorf("%s: %s after teardown: %w", b.name, to, sbench.ErrLifecycle)
	}
	for _, from := range allowed[to] {
		if b.state == from {
			b.state = to
			return nil
		}
	}
	return fmt.Errorf("%s: %s in state %s: %w", b.name, to, b.state, sbench.ErrLifecycle)
}

// Prerun marks the variant ready to run.
func (b *Base[T]) Prerun() error { return b.transition(StatePrerun) }

// BeginRun checks that Prerun happened before the kernel executes.
func (b *Base[T]) BeginRun() error { return b.transition(StateRun) }

// Postrun closes a measured run.
func (b *Base[T]) Postrun() error { return b.transition(StatePostrun) }

// Close releases every buffer. Further lifecycle calls fail.
func (b *Base[T]) Close() error {
	if b.state == StateTeardown {
		return nil
	}
	b.state = StateTeardown
	return b.release()
}

func (b *Base[T]) release() error {
	var first error
	for _, n := range b.order {
		if err := b.buffers[n].Release(); err != nil && first == nil {
			first = sbench.NewPlatformError("Close", "releasing "+n, err)
		}
	}
	return first
}

// CheckStrideConflicts asks the platform about the byte distance of one and
// two steps along each axis.
func (b *Base[T]) CheckStrideConflicts() error {
	esize := b.BytesPerElement()
	labels := [3]string{"i", "j", "k"}
	for _, mul := range []int{1, 2} {
		for axis, s := range b.Strides() {
			label := labels[axis] + "-stride offsets"
			if mul > 1 {
				label = fmt.Sprintf("%d * %s", mul, label)
			}
			if err := b.platform.CheckCacheConflicts(label, mul*s*esize); err != nil {
				return err
			}
		}
	}
	return nil
}
