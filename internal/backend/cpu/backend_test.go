package cpu

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/weightfusion/internal/parallel"
	"github.com/born-ml/weightfusion/internal/tensor"
)

func newRaw32(t *testing.T, shape tensor.Shape, data ...float32) *tensor.RawTensor {
	t.Helper()
	raw, err := tensor.NewRaw(shape, tensor.Float32, tensor.CPU)
	require.NoError(t, err)
	copy(raw.AsFloat32(), data)
	return raw
}

func TestCPUBackend_New(t *testing.T) {
	backend := New()
	require.NotNil(t, backend)
	assert.Equal(t, "CPU", backend.Name())
	assert.Equal(t, tensor.CPU, backend.Device())
}

func TestCPUBackend_Add(t *testing.T) {
	backend := New()

	t.Run("SameShape", func(t *testing.T) {
		a := newRaw32(t, tensor.Shape{2, 3}, 1, 2, 3, 4, 5, 6)
		b := newRaw32(t, tensor.Shape{2, 3}, 10, 11, 12, 13, 14, 15)

		result := backend.Add(a, b)

		assert.InDeltaSlice(t, []float32{11, 13, 15, 17, 19, 21}, result.AsFloat32(), 1e-6)
	})

	t.Run("BiasRow", func(t *testing.T) {
		a := newRaw32(t, tensor.Shape{2, 3}, 1, 2, 3, 4, 5, 6)
		bias := newRaw32(t, tensor.Shape{1, 3}, 10, 20, 30)

		result := backend.Add(a, bias)

		assert.Equal(t, tensor.Shape{2, 3}, result.Shape())
		assert.InDeltaSlice(t, []float32{11, 22, 33, 14, 25, 36}, result.AsFloat32(), 1e-6)
	})

	t.Run("InplaceWhenUnique", func(t *testing.T) {
		a := newRaw32(t, tensor.Shape{3}, 1, 2, 3)
		b := newRaw32(t, tensor.Shape{3}, 10, 20, 30)

		result := backend.Add(a, b)

		assert.Same(t, a, result)
		assert.InDeltaSlice(t, []float32{11, 22, 33}, a.AsFloat32(), 1e-6)
	})

	t.Run("SharedInputUntouched", func(t *testing.T) {
		a := newRaw32(t, tensor.Shape{3}, 1, 2, 3)
		b := newRaw32(t, tensor.Shape{3}, 10, 20, 30)
		restore := a.ForceNonUnique()
		defer restore()

		result := backend.Add(a, b)

		assert.NotSame(t, a, result)
		assert.InDeltaSlice(t, []float32{1, 2, 3}, a.AsFloat32(), 1e-6)
	})

	t.Run("Incompatible", func(t *testing.T) {
		a := newRaw32(t, tensor.Shape{2, 3})
		b := newRaw32(t, tensor.Shape{2, 2})
		assert.Panics(t, func() { backend.Add(a, b) })
	})
}

func TestCPUBackend_SubMul(t *testing.T) {
	backend := New()

	a := newRaw32(t, tensor.Shape{2, 2}, 5, 6, 7, 8)
	b := newRaw32(t, tensor.Shape{2, 2}, 1, 2, 3, 4)
	defer a.ForceNonUnique()()

	assert.InDeltaSlice(t, []float32{4, 4, 4, 4}, backend.Sub(a, b).AsFloat32(), 1e-6)
	assert.InDeltaSlice(t, []float32{5, 12, 21, 32}, backend.Mul(a, b).AsFloat32(), 1e-6)
}

func TestCPUBackend_Float64(t *testing.T) {
	backend := New()

	a, err := tensor.NewRaw(tensor.Shape{2}, tensor.Float64, tensor.CPU)
	require.NoError(t, err)
	b, err := tensor.NewRaw(tensor.Shape{2}, tensor.Float64, tensor.CPU)
	require.NoError(t, err)
	copy(a.AsFloat64(), []float64{1.5, -2})
	copy(b.AsFloat64(), []float64{0.5, 4})

	assert.InDeltaSlice(t, []float64{-0.75, -8}, backend.Mul(a, b).AsFloat64(), 1e-12)
}

func TestCPUBackend_MatMul(t *testing.T) {
	backend := New()

	// (2,3) @ (3,2)
	a := newRaw32(t, tensor.Shape{2, 3}, 1, 2, 3, 4, 5, 6)
	b := newRaw32(t, tensor.Shape{3, 2}, 7, 8, 9, 10, 11, 12)

	result := backend.MatMul(a, b)

	require.Equal(t, tensor.Shape{2, 2}, result.Shape())
	want := naiveMatMul(a.AsFloat32(), b.AsFloat32(), 2, 3, 2)
	assert.InDeltaSlice(t, want, result.AsFloat32(), 1e-5)
	assert.InDeltaSlice(t, []float32{58, 64, 139, 154}, result.AsFloat32(), 1e-5)

	t.Run("ShapeMismatch", func(t *testing.T) {
		assert.Panics(t, func() { backend.MatMul(a, a) })
	})
}

func naiveMatMul(a, b []float32, m, k, n int) []float32 {
	out := make([]float32, m*n)
	for i := 0; i < m; i++ {
		for j := 0; j < n; j++ {
			var sum float32
			for p := 0; p < k; p++ {
				sum += a[i*k+p] * b[p*n+j]
			}
			out[i*n+j] = sum
		}
	}
	return out
}

func TestCPUBackend_Transpose(t *testing.T) {
	backend := New()
	a := newRaw32(t, tensor.Shape{2, 3}, 1, 2, 3, 4, 5, 6)

	result := backend.Transpose(a)

	assert.Equal(t, tensor.Shape{3, 2}, result.Shape())
	assert.InDeltaSlice(t, []float32{1, 4, 2, 5, 3, 6}, result.AsFloat32(), 1e-6)

	assert.Panics(t, func() { backend.Transpose(a, 0, 0) })
}

func TestCPUBackend_Reshape(t *testing.T) {
	backend := New()
	a := newRaw32(t, tensor.Shape{2, 3}, 1, 2, 3, 4, 5, 6)

	result := backend.Reshape(a, tensor.Shape{3, 2})

	assert.Equal(t, tensor.Shape{3, 2}, result.Shape())
	assert.Equal(t, a.AsFloat32(), result.AsFloat32())
	assert.True(t, result.IsUnique())

	assert.Panics(t, func() { backend.Reshape(a, tensor.Shape{4}) })
}

func TestCPUBackend_ReLUMean(t *testing.T) {
	backend := New()
	x := newRaw32(t, tensor.Shape{4}, -2, -0.5, 0.5, 3)

	relu := backend.ReLU(x)
	assert.InDeltaSlice(t, []float32{0, 0, 0.5, 3}, relu.AsFloat32(), 1e-6)

	mean := backend.Mean(x)
	assert.Equal(t, tensor.Shape{1}, mean.Shape())
	assert.InDelta(t, 0.25, mean.AsFloat32()[0], 1e-6)
}

func TestCPUBackend_ParallelMatchesSequential(t *testing.T) {
	forced := New(WithParallel(parallel.Config{Enabled: true, NumWorkers: 4, MinChunkSize: 1}))
	seq := New(WithParallel(parallel.Sequential()))

	data := make([]float32, 64)
	for i := range data {
		data[i] = float32(i%7) - 3
	}
	bias := newRaw32(t, tensor.Shape{1, 8}, 1, 2, 3, 4, 5, 6, 7, 8)

	x1 := newRaw32(t, tensor.Shape{8, 8}, data...)
	x2 := newRaw32(t, tensor.Shape{8, 8}, data...)

	assert.Equal(t, seq.Add(x2, bias).AsFloat32(), forced.Add(x1, bias).AsFloat32())
}
