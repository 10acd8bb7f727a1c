package ops

import (
	"fmt"

	"github.com/born-ml/weightfusion/internal/tensor"
)

// ReLUOp represents a rectified linear unit: output = max(0, x).
// The gradient passes where x > 0 and is zero elsewhere.
type ReLUOp struct {
	input  *tensor.RawTensor
	output *tensor.RawTensor
}

// NewReLUOp creates a new ReLUOp.
func NewReLUOp(input, output *tensor.RawTensor) *ReLUOp {
	return &ReLUOp{
		input:  input,
		output: output,
	}
}

// Backward computes outputGrad * 1[x > 0].
func (op *ReLUOp) Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	return []*tensor.RawTensor{backend.Mul(outputGrad, positiveMask(op.input))}
}

// Inputs returns the input tensor [x].
func (op *ReLUOp) Inputs() []*tensor.RawTensor {
	return []*tensor.RawTensor{op.input}
}

// Output returns the output tensor max(0, x).
func (op *ReLUOp) Output() *tensor.RawTensor {
	return op.output
}

func positiveMask(input *tensor.RawTensor) *tensor.RawTensor {
	mask, err := tensor.NewRaw(input.Shape(), input.DType(), input.Device())
	if err != nil {
		panic(fmt.Sprintf("relu: failed to create mask: %v", err))
	}

	switch input.DType() {
	case tensor.Float32:
		fillMask(mask.AsFloat32(), input.AsFloat32())
	case tensor.Float64:
		fillMask(mask.AsFloat64(), input.AsFloat64())
	default:
		panic(fmt.Sprintf("relu: unsupported dtype %s", input.DType()))
	}
	return mask
}

func fillMask[T tensor.DType](mask, input []T) {
	for i, v := range input {
		if v > 0 {
			mask[i] = 1
		}
	}
}
