package cpu

import (
	"github.com/born-ml/weightfusion/internal/parallel"
	"github.com/born-ml/weightfusion/internal/tensor"
)

type float interface {
	~float32 | ~float64
}

// applyBinary writes f(a, b) into dst, mapping each output index back to
// the (possibly broadcast) operand positions.
func applyBinary[T float](
	dst, a, b []T,
	outShape, aShape, bShape tensor.Shape,
	needsBroadcast bool,
	f func(x, y float64) float64,
	cfg parallel.Config,
) {
	if !needsBroadcast {
		parallel.For(len(dst), func(i int) {
			dst[i] = T(f(float64(a[i]), float64(b[i])))
		}, cfg)
		return
	}

	aStrides := broadcastStrides(aShape, outShape)
	bStrides := broadcastStrides(bShape, outShape)
	outStrides := outShape.ComputeStrides()

	parallel.For(len(dst), func(i int) {
		aIdx, bIdx := 0, 0
		rem := i
		for d := range outShape {
			coord := rem / outStrides[d]
			rem %= outStrides[d]
			aIdx += coord * aStrides[d]
			bIdx += coord * bStrides[d]
		}
		dst[i] = T(f(float64(a[aIdx]), float64(b[bIdx])))
	}, cfg)
}

// broadcastStrides returns strides of shape aligned to outShape, with 0 for
// every dimension that is broadcast.
func broadcastStrides(shape, outShape tensor.Shape) []int {
	strides := make([]int, len(outShape))
	own := shape.ComputeStrides()
	offset := len(outShape) - len(shape)
	for d := range outShape {
		src := d - offset
		if src < 0 || shape[src] == 1 {
			continue
		}
		strides[d] = own[src]
	}
	return strides
}

func applyUnary[T float](dst, src []T, f func(x float64) float64, cfg parallel.Config) {
	parallel.For(len(dst), func(i int) {
		dst[i] = T(f(float64(src[i])))
	}, cfg)
}
