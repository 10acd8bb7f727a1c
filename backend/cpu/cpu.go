// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package cpu

import (
	internalcpu "github.com/born-ml/weightfusion/internal/backend/cpu"
	"github.com/born-ml/weightfusion/internal/parallel"
	"github.com/born-ml/weightfusion/internal/tensor"
)

// Backend represents the CPU backend implementation.
//
// Matrix multiplication goes through gonum's BLAS; element-wise loops are
// split across the machine's physical cores when tensors are large enough.
type Backend = internalcpu.CPUBackend

// Compile-time check that Backend implements tensor.Backend.
var _ tensor.Backend = (*Backend)(nil)

// New creates a new CPU backend sized to the host.
//
// Example:
//
//	import (
//	    "github.com/born-ml/weightfusion/backend/cpu"
//	    "github.com/born-ml/weightfusion/fusion"
//	)
//
//	func main() {
//	    ctl := fusion.NewController(cpu.New(), fusion.DefaultConfig())
//	    defer ctl.Close()
//	}
func New() *Backend {
	return internalcpu.New()
}

// NewSequential creates a CPU backend that never spawns goroutines for
// element-wise work.
func NewSequential() *Backend {
	return internalcpu.New(internalcpu.WithParallel(parallel.Sequential()))
}
