// Package ops defines the differentiable operations recorded on a gradient tape.
//
// Each operation keeps references to its inputs and output from the forward
// pass and knows how to map an output gradient back onto its inputs:
//   - AddOp, SubOp: gradient flows through unchanged (negated for b in Sub)
//   - MulOp: d(a*b)/da = b, d(a*b)/db = a
//   - MatMulOp: d(A@B)/dA = grad@B^T, d(A@B)/dB = A^T@grad
//   - ReLUOp: gradient masked where the input was not positive
//   - MeanOp: gradient spread evenly over every input element
//   - ReshapeOp, TransposeOp: gradient mapped back to the input layout
//
// Broadcast operands receive gradients summed over the broadcast dimensions.
package ops

import "github.com/born-ml/weightfusion/internal/tensor"

// Operation represents a differentiable operation in the computation graph.
type Operation interface {
	// Backward computes gradients for inputs given the output gradient.
	// The result is aligned with Inputs().
	Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor

	// Inputs returns the input tensors for this operation.
	Inputs() []*tensor.RawTensor

	// Output returns the output tensor produced by this operation.
	Output() *tensor.RawTensor
}
