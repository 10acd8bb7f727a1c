// Package optim implements the optimizers that update nn parameters from
// tape gradients.
package optim

import (
	"github.com/born-ml/weightfusion/internal/nn"
	"github.com/born-ml/weightfusion/internal/tensor"
)

// Optimizer updates parameters using a gradient map produced by autodiff.Backward.
type Optimizer interface {
	// Step applies one update to every parameter that has a gradient.
	Step(grads map[*tensor.RawTensor]*tensor.RawTensor)

	// ZeroGrad clears parameter gradients.
	ZeroGrad()

	// GetLR returns the current learning rate.
	GetLR() float32

	// Release frees optimizer state.
	Release()
}

func getGradient[B tensor.Backend](param *nn.Parameter[B], grads map[*tensor.RawTensor]*tensor.RawTensor) *tensor.RawTensor {
	if param == nil {
		return nil
	}
	return grads[param.Tensor().Raw()]
}
