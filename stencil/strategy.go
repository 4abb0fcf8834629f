package stencil

import (
	"fmt"
	"strings"

	"github.com/LynnColeArt/sbench"
	"github.com/LynnColeArt/sbench/platform"
)

// Strategy selects how a kernel walks the domain.
type Strategy int

const (
	// StrategyAuto picks the default strategy of the platform.
	StrategyAuto Strategy = iota
	// Scalar visits points one at a time on the calling goroutine.
	Scalar
	// VectorizedColumn splits rows or tiles over a fork-join pool with a
	// vector-width inner loop.
	VectorizedColumn
	// TiledSharedMemory launches blocks of cooperating workers on the device.
	TiledSharedMemory
)

// String returns the configuration name of the strategy.
func (s Strategy) String() string {
	switch s {
	case StrategyAuto:
		return "auto"
	case Scalar:
		return "scalar"
	case VectorizedColumn:
		return "vectorized"
	case TiledSharedMemory:
		return "tiled"
	default:
		return fmt.Sprintf("Strategy(%d)", int(s))
	}
}

// ParseStrategy reads a strategy name.
func ParseStrategy(s string) (Strategy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "auto":
		return StrategyAuto, nil
	case "scalar", "naive":
		return Scalar, nil
	case "vectorized", "vector", "column":
		return VectorizedColumn, nil
	case "tiled", "shared", "tiled-shared":
		return TiledSharedMemory, nil
	default:
		return 0, sbench.NewConfigurationError("ParseStrategy", fmt.Sprintf("unknown strategy %q", s))
	}
}

// DefaultStrategy pairs each platform kind with its native strategy.
func DefaultStrategy(p platform.Platform) Strategy {
	switch p.Kind() {
	case platform.KindManyCore:
		return VectorizedColumn
	case platform.KindDevice:
		return TiledSharedMemory
	default:
		return Scalar
	}
}

// Resolve replaces StrategyAuto with the platform default and checks that
// the device strategy runs on a device.
func (s Strategy) Resolve(p platform.Platform) (Strategy, error) {
	if s == StrategyAuto {
		return DefaultStrategy(p), nil
	}
	if s == TiledSharedMemory {
		if _, ok := p.(*platform.Device); !ok {
			return 0, sbench.NewConfigurationError("Strategy", fmt.Sprintf("%s strategy requires the device platform, got %s", s, p.Name()))
		}
	}
	if s < Scalar || s > TiledSharedMemory {
		return 0, sbench.NewConfigurationError("Strategy", fmt.Sprintf("unknown strategy %d", int(s)))
	}
	return s, nil
}
