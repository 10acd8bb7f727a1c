// Package nn implements the neural network building blocks used by the
// regressors:
//   - Module interface: Forward plus trainable Parameters
//   - Parameter: a named tensor with its latest gradient
//   - Linear: fully connected layer with Xavier initialisation
//   - ReLU activation
//   - Sequential container
//   - MSELoss built from tape-recorded operations
package nn

import (
	"github.com/born-ml/weightfusion/internal/tensor"
)

// Module is the base interface for all neural network components.
//
//	model := nn.NewSequential[Backend](
//	    nn.NewLinear(2, 16, backend),
//	    nn.NewReLU[Backend](),
//	    nn.NewLinear(16, 1, backend),
//	)
type Module[B tensor.Backend] interface {
	// Forward computes the output of the module given an input tensor.
	// Linear expects [batch_size, in_features].
	Forward(input *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B]

	// Parameters returns the trainable parameters in a stable order.
	Parameters() []*Parameter[B]
}
