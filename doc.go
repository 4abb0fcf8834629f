// Copyright ©2024 The GUDA Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package sbench benchmarks structured-grid stencils on several execution
// backends: plain host loops, row-parallel many-core loops and a CUDA-style
// grid/block launch engine emulated on the CPU.
//
// The module is organised leaf first:
//   - storage: aligned, halo-aware layouts and the buffers built from them
//   - platform: host, many-core and emulated accelerator backends
//   - stencil: the variant lifecycle shared by every kernel
//   - hdiff, vadv, basic: the kernels themselves
//   - config, verify: the arguments map and the float64 references
//
// The root package only carries the error kinds and hardware constants that
// every other package agrees on.
package sbench
