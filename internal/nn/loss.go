package nn

import (
	"github.com/born-ml/weightfusion/internal/tensor"
)

// MSELoss computes Mean Squared Error loss: mean((predictions - targets)²).
//
// Every step goes through the backend, so an autodiff backend records the
// whole loss and gradients reach the predictions.
//
// Example:
//
//	mse := nn.NewMSELoss[Backend]()
//	loss := mse.Forward(model.Forward(input), targets)
type MSELoss[B tensor.Backend] struct{}

// NewMSELoss creates a new MSE loss function.
func NewMSELoss[B tensor.Backend]() *MSELoss[B] {
	return &MSELoss[B]{}
}

// Forward returns the loss as a tensor of shape [1].
func (m *MSELoss[B]) Forward(predictions, targets *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	if !predictions.Shape().Equal(targets.Shape()) {
		panic("MSELoss: predictions and targets must have the same shape")
	}

	diff := predictions.Sub(targets)
	return diff.Mul(diff).Mean()
}
