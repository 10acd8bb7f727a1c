// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package cpu provides the pure Go CPU backend every network computes on.
//
// # Overview
//
// This package implements a CPU backend with:
//   - Pure Go implementation (no CGO)
//   - gonum BLAS matrix multiplication (float32 and float64)
//   - NumPy-compatible broadcasting for element-wise ops
//   - Worker count taken from the physical core count
//
// # Basic Usage
//
//	backend := cpu.New()
//	session := fusion.NewSession(backend, fusion.DefaultConfig())
//	defer session.Close()
//
// # Thread Safety
//
// The CPU backend is safe for concurrent use. Each tensor operation
// is isolated and does not share mutable state, so several sessions may
// share one backend.
package cpu
