// Package cpu implements the CPU backend with gonum BLAS matrix multiplication.
package cpu

import (
	"fmt"

	"github.com/born-ml/weightfusion/internal/parallel"
	"github.com/born-ml/weightfusion/internal/tensor"
)

// CPUBackend implements tensor operations on CPU.
type CPUBackend struct {
	device   tensor.Device
	parallel parallel.Config
}

// Option configures a CPUBackend.
type Option func(*CPUBackend)

// WithParallel overrides the element-wise parallelism settings.
func WithParallel(cfg parallel.Config) Option {
	return func(b *CPUBackend) {
		b.parallel = cfg
	}
}

// New creates a new CPU backend.
func New(opts ...Option) *CPUBackend {
	b := &CPUBackend{
		device:   tensor.CPU,
		parallel: parallel.DefaultConfig(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Name returns the backend name.
func (cpu *CPUBackend) Name() string {
	return "CPU"
}

// Device returns the compute device.
func (cpu *CPUBackend) Device() tensor.Device {
	return cpu.device
}

// Add performs element-wise addition with NumPy-style broadcasting.
func (cpu *CPUBackend) Add(a, b *tensor.RawTensor) *tensor.RawTensor {
	return cpu.binary("add", a, b, func(x, y float64) float64 { return x + y })
}

// Sub performs element-wise subtraction with broadcasting.
func (cpu *CPUBackend) Sub(a, b *tensor.RawTensor) *tensor.RawTensor {
	return cpu.binary("sub", a, b, func(x, y float64) float64 { return x - y })
}

// Mul performs element-wise multiplication with broadcasting.
func (cpu *CPUBackend) Mul(a, b *tensor.RawTensor) *tensor.RawTensor {
	return cpu.binary("mul", a, b, func(x, y float64) float64 { return x * y })
}

// binary dispatches an element-wise operation on the operands' dtype.
// When both operands share a shape and a is the buffer's sole owner, a is
// updated in place and returned.
func (cpu *CPUBackend) binary(op string, a, b *tensor.RawTensor, f func(x, y float64) float64) *tensor.RawTensor {
	if a.DType() != b.DType() {
		panic(fmt.Sprintf("%s: dtype mismatch %s vs %s", op, a.DType(), b.DType()))
	}

	outShape, needsBroadcast, err := tensor.BroadcastShapes(a.Shape(), b.Shape())
	if err != nil {
		panic(fmt.Sprintf("%s: %v", op, err))
	}

	result := a
	if needsBroadcast || !a.IsUnique() {
		result, err = tensor.NewRaw(outShape, a.DType(), cpu.device)
		if err != nil {
			panic(fmt.Sprintf("%s: failed to create result tensor: %v", op, err))
		}
	}

	switch a.DType() {
	case tensor.Float32:
		applyBinary(result.AsFloat32(), a.AsFloat32(), b.AsFloat32(),
			outShape, a.Shape(), b.Shape(), needsBroadcast, f, cpu.parallel)
	case tensor.Float64:
		applyBinary(result.AsFloat64(), a.AsFloat64(), b.AsFloat64(),
			outShape, a.Shape(), b.Shape(), needsBroadcast, f, cpu.parallel)
	default:
		panic(fmt.Sprintf("%s: unsupported dtype %s", op, a.DType()))
	}

	return result
}
