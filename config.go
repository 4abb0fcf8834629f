// Package sbench configuration constants
package sbench

// Cache parameters (in bytes)
const (
	// CacheLineSize is the coherence granule on every supported host
	CacheLineSize = 64

	// L3CacheSize is the shared cache size assumed when no flush size is configured
	L3CacheSize = 32 * 1024 * 1024

	// DefaultFlushSize touches twice the assumed L3 to evict benchmark data
	DefaultFlushSize = 2 * L3CacheSize

	// DefaultCacheModulus is the set-aliasing period checked on many-core hosts.
	// Strides that are multiples of it hit the same L1 sets.
	DefaultCacheModulus = 4096
)

// Accelerator limits (CUDA compute capability 3.x through 8.x)
const (
	// MaxThreadsPerBlock bounds iblocksize * jblocksize on the device path
	MaxThreadsPerBlock = 1024

	// MaxBlockDimX and MaxBlockDimY bound each block dimension
	MaxBlockDimX = 1024
	MaxBlockDimY = 1024

	// SharedMemPerBlock is the per-block scratch budget
	SharedMemPerBlock = 48 * 1024

	// TileIndexLimit is the widest halo column the tiled diffusion kernel
	// can index from a single warp (one shared memory bank row).
	TileIndexLimit = 32

	// Fallback tile shape for the tiled diffusion kernel
	DefaultIBlockSize = 32
	DefaultJBlockSize = 8
)

// Domain defaults used by the harness
const (
	DefaultISize     = 128
	DefaultJSize     = 128
	DefaultKSize     = 80
	DefaultHalo      = 2
	DefaultAlignment = 1
	DefaultRuns      = 20
)
