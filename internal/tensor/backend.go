package tensor

// Backend defines the interface that compute backends implement.
// Backends handle the actual computation for tensor operations.
//
// Implementations:
//   - cpu.CPUBackend: pure Go, matmul through gonum BLAS
//   - autodiff.AutodiffBackend: decorator recording operations for gradients
type Backend interface {
	// Element-wise binary operations with broadcasting
	Add(a, b *RawTensor) *RawTensor
	Sub(a, b *RawTensor) *RawTensor
	Mul(a, b *RawTensor) *RawTensor

	// MatMul multiplies 2D tensors: (M, K) @ (K, N) -> (M, N).
	MatMul(a, b *RawTensor) *RawTensor

	// Shape operations
	Reshape(t *RawTensor, newShape Shape) *RawTensor
	Transpose(t *RawTensor, axes ...int) *RawTensor

	// ReLU applies max(0, x) element-wise.
	ReLU(x *RawTensor) *RawTensor

	// Mean reduces all elements to a single-element tensor of shape [1].
	Mean(x *RawTensor) *RawTensor

	// Metadata
	Name() string
	Device() Device
}
