package nn

import (
	"github.com/born-ml/weightfusion/internal/tensor"
)

// Parameter is a trainable tensor owned by a module.
type Parameter[B tensor.Backend] struct {
	name   string
	tensor *tensor.Tensor[float32, B]
	grad   *tensor.Tensor[float32, B] // nil until the first backward pass
}

// NewParameter creates a new parameter.
func NewParameter[B tensor.Backend](name string, t *tensor.Tensor[float32, B]) *Parameter[B] {
	return &Parameter[B]{
		name:   name,
		tensor: t,
	}
}

// Name returns the parameter name ("weight" or "bias").
func (p *Parameter[B]) Name() string {
	return p.name
}

// Tensor returns the parameter tensor.
func (p *Parameter[B]) Tensor() *tensor.Tensor[float32, B] {
	return p.tensor
}

// Grad returns the gradient tensor (nil if not computed yet).
func (p *Parameter[B]) Grad() *tensor.Tensor[float32, B] {
	return p.grad
}

// SetGrad sets the gradient tensor.
func (p *Parameter[B]) SetGrad(grad *tensor.Tensor[float32, B]) {
	p.grad = grad
}

// ZeroGrad clears the gradient.
func (p *Parameter[B]) ZeroGrad() {
	p.grad = nil
}

// Release frees the parameter storage and drops its gradient.
// Calling Release more than once is a no-op.
func (p *Parameter[B]) Release() {
	if p.tensor != nil {
		p.tensor.Release()
	}
	p.grad = nil
}
