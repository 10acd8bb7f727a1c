package nn

import (
	"github.com/born-ml/weightfusion/internal/tensor"
)

// ReLU is a Rectified Linear Unit activation module: f(x) = max(0, x).
//
// Example:
//
//	relu := nn.NewReLU[Backend]()
//	output := relu.Forward(input)
type ReLU[B tensor.Backend] struct{}

// NewReLU creates a new ReLU activation module.
func NewReLU[B tensor.Backend]() *ReLU[B] {
	return &ReLU[B]{}
}

// Forward applies ReLU activation.
func (r *ReLU[B]) Forward(input *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	return input.ReLU()
}

// Parameters returns nil; ReLU has no trainable parameters.
func (r *ReLU[B]) Parameters() []*Parameter[B] {
	return nil
}
