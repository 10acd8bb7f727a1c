package ops

import (
	"fmt"

	"github.com/born-ml/weightfusion/internal/tensor"
)

// reduceBroadcast reduces a gradient tensor to match the target shape.
// This is necessary when broadcasting was used in the forward pass.
//
// Example:
//
//	Forward: x[4,16] + bias[1,16] -> y[4,16]  (bias broadcast along dim 0)
//	Backward: grad_y[4,16] -> grad_bias[1,16] (sum along dim 0)
//
// When the shapes already match the gradient is returned as a clone sharing
// the buffer, so later in-place updates cannot alias it.
func reduceBroadcast(grad *tensor.RawTensor, target tensor.Shape) *tensor.RawTensor {
	if grad.Shape().Equal(target) {
		return grad.Clone()
	}

	result, err := tensor.NewRaw(target, grad.DType(), grad.Device())
	if err != nil {
		panic(fmt.Sprintf("reduceBroadcast: failed to create result: %v", err))
	}

	switch grad.DType() {
	case tensor.Float32:
		sumInto(result.AsFloat32(), grad.AsFloat32(), grad.Shape(), target)
	case tensor.Float64:
		sumInto(result.AsFloat64(), grad.AsFloat64(), grad.Shape(), target)
	default:
		panic(fmt.Sprintf("reduceBroadcast: unsupported dtype %s", grad.DType()))
	}
	return result
}

// sumInto accumulates every element of src into the dst position it was
// broadcast from. Shapes are aligned from the right.
func sumInto[T tensor.DType](dst, src []T, srcShape, dstShape tensor.Shape) {
	srcStrides := srcShape.ComputeStrides()
	dstOwn := dstShape.ComputeStrides()
	offset := len(srcShape) - len(dstShape)

	dstStrides := make([]int, len(srcShape))
	for d := range srcShape {
		k := d - offset
		if k < 0 || dstShape[k] == 1 {
			continue
		}
		dstStrides[d] = dstOwn[k]
	}

	for i, v := range src {
		idx := 0
		rem := i
		for d := range srcShape {
			coord := rem / srcStrides[d]
			rem %= srcStrides[d]
			idx += coord * dstStrides[d]
		}
		dst[idx] += v
	}
}

// negated returns a fresh tensor holding -t.
func negated(t *tensor.RawTensor) *tensor.RawTensor {
	out := t.Copy()
	switch out.DType() {
	case tensor.Float32:
		flipSign(out.AsFloat32())
	case tensor.Float64:
		flipSign(out.AsFloat64())
	default:
		panic(fmt.Sprintf("negate: unsupported dtype %s", t.DType()))
	}
	return out
}

func flipSign[T tensor.DType](data []T) {
	for i := range data {
		data[i] = -data[i]
	}
}
