package platform

import (
	"strings"

	"golang.org/x/sys/cpu"
)

// CPUFeatures tracks available CPU instruction set extensions
type CPUFeatures struct {
	HasSSE4    bool
	HasAVX     bool
	HasAVX2    bool
	HasFMA     bool
	HasAVX512F bool // Foundation
	HasNEON    bool
}

// Global CPU feature detection
var cpuFeatures CPUFeatures

func init() {
	detectCPUFeatures()
}

// detectCPUFeatures populates the global cpuFeatures struct
func detectCPUFeatures() {
	cpuFeatures = CPUFeatures{
		HasSSE4:    cpu.X86.HasSSE41 || cpu.X86.HasSSE42,
		HasAVX:     cpu.X86.HasAVX,
		HasAVX2:    cpu.X86.HasAVX2,
		HasFMA:     cpu.X86.HasFMA,
		HasAVX512F: cpu.X86.HasAVX512F,
		HasNEON:    cpu.ARM64.HasASIMD,
	}
}

// Features returns the detected features.
func Features() CPUFeatures {
	return cpuFeatures
}

// VectorBytes returns the widest SIMD register width in bytes.
func (f CPUFeatures) VectorBytes() int {
	switch {
	case f.HasAVX512F:
		return 64
	case f.HasAVX2, f.HasAVX:
		return 32
	case f.HasSSE4, f.HasNEON:
		return 16
	default:
		return 0
	}
}

// Lanes returns how many elements of elemSize bytes fit one vector
// register; at least 1.
func (f CPUFeatures) Lanes(elemSize int) int {
	if elemSize <= 0 {
		return 1
	}
	if n := f.VectorBytes() / elemSize; n > 1 {
		return n
	}
	return 1
}

// String returns a string describing available CPU features
func (f CPUFeatures) String() string {
	var features []string
	if f.HasSSE4 {
		features = append(features, "SSE4")
	}
	if f.HasAVX {
		features = append(features, "AVX")
	}
	if f.HasAVX2 {
		features = append(features, "AVX2")
	}
	if f.HasFMA {
		features = append(features, "FMA")
	}
	if f.HasAVX512F {
		features = append(features, "AVX512F")
	}
	if f.HasNEON {
		features = append(features, "NEON")
	}
	if len(features) == 0 {
		return "No SIMD extensions detected"
	}
	return "CPU features: " + strings.Join(features, ", ")
}
