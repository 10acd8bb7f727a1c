package cpu

import (
	"fmt"
	"math"

	"github.com/born-ml/weightfusion/internal/tensor"
)

// ReLU applies max(0, x) element-wise.
func (cpu *CPUBackend) ReLU(x *tensor.RawTensor) *tensor.RawTensor {
	result, err := tensor.NewRaw(x.Shape(), x.DType(), cpu.device)
	if err != nil {
		panic(fmt.Sprintf("relu: %v", err))
	}

	relu := func(v float64) float64 { return math.Max(0, v) }

	switch x.DType() {
	case tensor.Float32:
		applyUnary(result.AsFloat32(), x.AsFloat32(), relu, cpu.parallel)
	case tensor.Float64:
		applyUnary(result.AsFloat64(), x.AsFloat64(), relu, cpu.parallel)
	default:
		panic(fmt.Sprintf("relu: unsupported dtype %s", x.DType()))
	}

	return result
}

// Mean reduces all elements to their arithmetic mean, shape [1].
// Accumulation is done in float64.
func (cpu *CPUBackend) Mean(x *tensor.RawTensor) *tensor.RawTensor {
	result, err := tensor.NewRaw(tensor.Shape{1}, x.DType(), cpu.device)
	if err != nil {
		panic(fmt.Sprintf("mean: %v", err))
	}

	n := float64(x.NumElements())
	switch x.DType() {
	case tensor.Float32:
		var sum float64
		for _, v := range x.AsFloat32() {
			sum += float64(v)
		}
		result.AsFloat32()[0] = float32(sum / n)
	case tensor.Float64:
		var sum float64
		for _, v := range x.AsFloat64() {
			sum += v
		}
		result.AsFloat64()[0] = sum / n
	default:
		panic(fmt.Sprintf("mean: unsupported dtype %s", x.DType()))
	}

	return result
}
