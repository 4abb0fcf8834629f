package platform

import (
	"fmt"
	"runtime"
	"sync"
	"unsafe"

	"go.uber.org/zap"

	"github.com/LynnColeArt/sbench"
	"github.com/LynnColeArt/sbench/storage"
)

// Dim3 represents 3D dimensions for grid and block configurations.
type Dim3 struct {
	X, Y, Z int
}

// Size returns the total number of elements
func (d Dim3) Size() int {
	return d.X * d.Y * d.Z
}

// ThreadID identifies a worker's position within the launch: the block it
// belongs to and its position inside that block.
type ThreadID struct {
	BlockIdx  Dim3 // Block index within the grid
	ThreadIdx Dim3 // Thread index within the block
	BlockDim  Dim3 // Dimensions of the block
	GridDim   Dim3 // Dimensions of the grid
}

// GlobalX returns the global X index
func (tid ThreadID) GlobalX() int {
	return tid.BlockIdx.X*tid.BlockDim.X + tid.ThreadIdx.X
}

// GlobalY returns the global Y index
func (tid ThreadID) GlobalY() int {
	return tid.BlockIdx.Y*tid.BlockDim.Y + tid.ThreadIdx.Y
}

// Phase is the code one worker runs between two block barriers. shared is
// the block's scratch memory, common to every worker of the block.
type Phase func(tid ThreadID, shared []byte)

// Kernel is a sequence of phases. Every worker of a block finishes phase n
// before any worker starts phase n+1, which is what a barrier between the
// phases guarantees on real hardware. All workers run every phase, so a
// worker with nothing to write in a phase must simply return early.
type Kernel struct {
	Name        string
	Phases      []Phase
	SharedBytes int
}

// DeviceProps are the hardware limits of the emulated accelerator.
type DeviceProps struct {
	MaxThreadsPerBlock int
	MaxBlockDim        Dim3
	SharedMemPerBlock  int

	// TileIndexLimit is the widest halo column a tiled kernel may index
	// from one warp.
	TileIndexLimit int
}

// DefaultDeviceProps returns limits of a current CUDA device.
func DefaultDeviceProps() DeviceProps {
	return DeviceProps{
		MaxThreadsPerBlock: sbench.MaxThreadsPerBlock,
		MaxBlockDim:        Dim3{X: sbench.MaxBlockDimX, Y: sbench.MaxBlockDimY, Z: 64},
		SharedMemPerBlock:  sbench.SharedMemPerBlock,
		TileIndexLimit:     sbench.TileIndexLimit,
	}
}

func (p DeviceProps) withDefaults() DeviceProps {
	d := DefaultDeviceProps()
	if p.MaxThreadsPerBlock > 0 {
		d.MaxThreadsPerBlock = p.MaxThreadsPerBlock
	}
	if p.MaxBlockDim.X > 0 {
		d.MaxBlockDim.X = p.MaxBlockDim.X
	}
	if p.MaxBlockDim.Y > 0 {
		d.MaxBlockDim.Y = p.MaxBlockDim.Y
	}
	if p.MaxBlockDim.Z > 0 {
		d.MaxBlockDim.Z = p.MaxBlockDim.Z
	}
	if p.SharedMemPerBlock > 0 {
		d.SharedMemPerBlock = p.SharedMemPerBlock
	}
	if p.TileIndexLimit > 0 {
		d.TileIndexLimit = p.TileIndexLimit
	}
	return d
}

// Device is an accelerator emulated on the host. Launches are queued on a
// stream; blocks are distributed over a pool of goroutines, and the workers
// of a block run phase by phase on the goroutine that owns the block.
type Device struct {
	base
	props    DeviceProps
	stream   *stream
	bankSize int

	mu       sync.Mutex
	lastErr  error
	launches int
}

// NewDevice creates an emulated accelerator.
func NewDevice(alloc storage.Allocator, props DeviceProps, workers int, log *zap.Logger) *Device {
	if log == nil {
		log = zap.NewNop()
	}
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	return &Device{
		base:     base{name: "device", kind: KindDevice, alloc: alloc, workers: workers, log: log},
		props:    props.withDefaults(),
		stream:   newStream(),
		bankSize: 4,
	}
}

// Props returns the device limits.
func (d *Device) Props() DeviceProps { return d.props }

// LimitBlocksize clamps each dimension to the per-dimension maximum and
// halves the larger one until the block fits the thread limit.
func (d *Device) LimitBlocksize(i, j int) (int, int) {
	ri, rj := i, j
	if i > d.props.MaxBlockDim.X {
		i = d.props.MaxBlockDim.X
	}
	if j > d.props.MaxBlockDim.Y {
		j = d.props.MaxBlockDim.Y
	}
	for i*j > d.props.MaxThreadsPerBlock {
		if i >= j {
			i /= 2
		} else {
			j /= 2
		}
	}
	if i != ri || j != rj {
		d.log.Warn("block size limited by device",
			zap.Int("requested_i", ri), zap.Int("requested_j", rj),
			zap.Int("i", i), zap.Int("j", j))
	}
	return i, j
}

// CheckCacheConflicts never reports a conflict; device memory is not
// set-associative from the kernels' point of view.
func (d *Device) CheckCacheConflicts(string, int) error { return nil }

// FlushCache is a no-op on the device.
func (d *Device) FlushCache() error { return nil }

// Prefetch migrates an allocation towards the device ahead of a launch.
func (d *Device) Prefetch(b []byte) error {
	if p, ok := d.alloc.(storage.Prefetcher); ok {
		return p.Prefetch(b)
	}
	return nil
}

// SetSharedMemBankSize selects the shared memory bank width in bytes.
func (d *Device) SetSharedMemBankSize(bytes int) error {
	if bytes != 4 && bytes != 8 {
		return sbench.NewPlatformError("SetSharedMemBankSize", fmt.Sprintf("unsupported bank size %d", bytes), nil)
	}
	d.bankSize = bytes
	return nil
}

// SharedMemBankSize returns the configured bank width in bytes.
func (d *Device) SharedMemBankSize() int { return d.bankSize }

// Launches returns how many kernels have been launched.
func (d *Device) Launches() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.launches
}

// Launch queues k over grid blocks of block workers. It returns
// immediately; errors raised while the kernel runs are reported by
// Synchronize.
func (d *Device) Launch(k Kernel, grid, block Dim3) error {
	if block.Size() <= 0 || block.Size() > d.props.MaxThreadsPerBlock {
		return sbench.NewPlatformError("Launch", fmt.Sprintf("%s: invalid block %v", k.Name, block), nil)
	}
	if block.X > d.props.MaxBlockDim.X || block.Y > d.props.MaxBlockDim.Y || block.Z > d.props.MaxBlockDim.Z {
		return sbench.NewPlatformError("Launch", fmt.Sprintf("%s: block %v exceeds %v", k.Name, block, d.props.MaxBlockDim), nil)
	}
	if k.SharedBytes > d.props.SharedMemPerBlock {
		return sbench.NewPlatformError("Launch", fmt.Sprintf("%s: %d bytes of shared memory requested, %d available",
			k.Name, k.SharedBytes, d.props.SharedMemPerBlock), nil)
	}
	d.mu.Lock()
	d.launches++
	d.mu.Unlock()

	gridSize := grid.Size()
	if gridSize <= 0 {
		d.stream.submit(func() {})
		return nil
	}
	d.stream.submit(func() {
		if err := d.run(k, grid, block); err != nil {
			d.mu.Lock()
			if d.lastErr == nil {
				d.lastErr = err
			}
			d.mu.Unlock()
		}
	})
	return nil
}

// run executes every block of a launch. Each goroutine owns a contiguous
// range of blocks and one shared memory area that it reuses across them.
func (d *Device) run(k Kernel, grid, block Dim3) error {
	gridSize := grid.Size()
	blockSize := block.Size()
	return ParallelFor(d.workers, gridSize, func(lo, hi int) {
		var shared []byte
		if k.SharedBytes > 0 {
			shared = make([]byte, k.SharedBytes+sbench.CacheLineSize)
			off := int(uintptr(sbench.CacheLineSize)-uintptr(unsafe.Pointer(&shared[0]))%sbench.CacheLineSize) % sbench.CacheLineSize
			shared = shared[off : off+k.SharedBytes]
		}
		tid := ThreadID{BlockDim: block, GridDim: grid}
		for b := lo; b < hi; b++ {
			tid.BlockIdx = linearTo3D(b, grid)
			for _, phase := range k.Phases {
				for t := 0; t < blockSize; t++ {
					tid.ThreadIdx = linearTo3D(t, block)
					phase(tid, shared)
				}
			}
		}
	})
}

// Synchronize waits for all queued launches and returns the first error
// any of them raised since the previous Synchronize.
func (d *Device) Synchronize() error {
	d.stream.synchronize()
	d.mu.Lock()
	defer d.mu.Unlock()
	err := d.lastErr
	d.lastErr = nil
	if err != nil {
		return sbench.NewPlatformError("Synchronize", "kernel execution failed", err)
	}
	return nil
}

// Close drains the stream.
func (d *Device) Close() error {
	err := d.Synchronize()
	d.stream.close()
	return err
}

// SharedSlice views n elements of type T at byte offset off of a shared
// memory area.
func SharedSlice[T storage.Float](shared []byte, off, n int) []T {
	var zero T
	size := int(unsafe.Sizeof(zero))
	if n == 0 {
		return nil
	}
	b := shared[off : off+n*size]
	return unsafe.Slice((*T)(unsafe.Pointer(&b[0])), n)
}
