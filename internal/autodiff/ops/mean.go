package ops

import (
	"fmt"

	"github.com/born-ml/weightfusion/internal/tensor"
)

// MeanOp represents a full reduction to the arithmetic mean: output = sum(x) / n.
//
// Every input element receives outputGrad / n.
type MeanOp struct {
	input  *tensor.RawTensor
	output *tensor.RawTensor
}

// NewMeanOp creates a new MeanOp.
func NewMeanOp(input, output *tensor.RawTensor) *MeanOp {
	return &MeanOp{
		input:  input,
		output: output,
	}
}

// Backward spreads the scalar output gradient over the input shape.
func (op *MeanOp) Backward(outputGrad *tensor.RawTensor, _ tensor.Backend) []*tensor.RawTensor {
	grad, err := tensor.NewRaw(op.input.Shape(), op.input.DType(), op.input.Device())
	if err != nil {
		panic(fmt.Sprintf("mean: failed to create gradient: %v", err))
	}

	n := float64(op.input.NumElements())
	switch grad.DType() {
	case tensor.Float32:
		fill(grad.AsFloat32(), outputGrad.AsFloat32()[0]/float32(n))
	case tensor.Float64:
		fill(grad.AsFloat64(), outputGrad.AsFloat64()[0]/n)
	default:
		panic(fmt.Sprintf("mean: unsupported dtype %s", grad.DType()))
	}

	return []*tensor.RawTensor{grad}
}

// Inputs returns the input tensor [x].
func (op *MeanOp) Inputs() []*tensor.RawTensor {
	return []*tensor.RawTensor{op.input}
}

// Output returns the scalar mean.
func (op *MeanOp) Output() *tensor.RawTensor {
	return op.output
}

func fill[T tensor.DType](dst []T, v T) {
	for i := range dst {
		dst[i] = v
	}
}
