package fusion

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/weightfusion/internal/backend/cpu"
	"github.com/born-ml/weightfusion/internal/dataset"
	"github.com/born-ml/weightfusion/internal/network"
)

func seeded(compute *cpu.CPUBackend, seed int64) *network.Network {
	return network.New(compute, network.WithRand(rand.New(rand.NewSource(seed))))
}

func TestFuse_AveragesEveryPosition(t *testing.T) {
	compute := cpu.New()
	a, b := seeded(compute, 1), seeded(compute, 2)

	c, err := Fuse(a, b)
	require.NoError(t, err)
	defer c.Release()

	pa, pb, pc := a.Parameters(), b.Parameters(), c.Parameters()
	require.Len(t, pc, len(pa))
	for i := range pc {
		da, db, dc := pa[i].Tensor().Data(), pb[i].Tensor().Data(), pc[i].Tensor().Data()
		require.Len(t, dc, len(da))
		for j := range dc {
			assert.InDelta(t, (da[j]+db[j])/2, dc[j], 1e-6, "param %d position %d", i, j)
		}
	}
}

func TestFuse_DoesNotMutateInputs(t *testing.T) {
	compute := cpu.New()
	a, b := seeded(compute, 1), seeded(compute, 2)
	beforeA, err := a.Snapshot()
	require.NoError(t, err)
	beforeB, err := b.Snapshot()
	require.NoError(t, err)

	c, err := Fuse(a, b)
	require.NoError(t, err)
	c.Release()

	afterA, err := a.Snapshot()
	require.NoError(t, err)
	afterB, err := b.Snapshot()
	require.NoError(t, err)
	assert.Equal(t, beforeA, afterA)
	assert.Equal(t, beforeB, afterB)
}

func TestFuse_SelfIsIdentity(t *testing.T) {
	a := seeded(cpu.New(), 9)

	c, err := Fuse(a, a)
	require.NoError(t, err)

	sa, err := a.Snapshot()
	require.NoError(t, err)
	sc, err := c.Snapshot()
	require.NoError(t, err)
	assert.Equal(t, sa, sc)
}

func TestFuse_Released(t *testing.T) {
	compute := cpu.New()
	a, b := seeded(compute, 1), seeded(compute, 2)
	b.Release()

	_, err := Fuse(a, b)

	assert.ErrorIs(t, err, network.ErrReleased)
}

func TestFuseSnapshots(t *testing.T) {
	a := &network.Snapshot{Layers: []network.LayerParams{
		{In: 2, Out: 1, Weights: []float32{1, 3}, Bias: []float32{-1}},
	}}
	b := &network.Snapshot{Layers: []network.LayerParams{
		{In: 2, Out: 1, Weights: []float32{3, -3}, Bias: []float32{1}},
	}}

	c, err := FuseSnapshots(a, b)
	require.NoError(t, err)

	assert.InDeltaSlice(t, []float32{2, 0}, c.Layers[0].Weights, 1e-6)
	assert.InDeltaSlice(t, []float32{0}, c.Layers[0].Bias, 1e-6)
	// inputs untouched
	assert.Equal(t, []float32{1, 3}, a.Layers[0].Weights)
}

func TestFuseSnapshots_ShapeMismatch(t *testing.T) {
	a := &network.Snapshot{Layers: []network.LayerParams{
		{In: 2, Out: 1, Weights: []float32{1, 3}, Bias: []float32{-1}},
	}}
	b := &network.Snapshot{Layers: []network.LayerParams{
		{In: 1, Out: 2, Weights: []float32{1, 3}, Bias: []float32{0, 0}},
	}}

	_, err := FuseSnapshots(a, b)
	assert.ErrorIs(t, err, ErrShapeMismatch)

	_, err = FuseSnapshots(a, &network.Snapshot{})
	assert.ErrorIs(t, err, ErrShapeMismatch)
}

func TestFuse_MatchesFuseSnapshots(t *testing.T) {
	compute := cpu.New()
	a, b := seeded(compute, 3), seeded(compute, 4)
	c, err := Fuse(a, b)
	require.NoError(t, err)

	sa, _ := a.Snapshot()
	sb, _ := b.Snapshot()
	want, err := FuseSnapshots(sa, sb)
	require.NoError(t, err)
	got, err := c.Snapshot()
	require.NoError(t, err)

	for k := range want.Layers {
		assert.InDeltaSlice(t, want.Layers[k].Weights, got.Layers[k].Weights, 1e-6)
		assert.InDeltaSlice(t, want.Layers[k].Bias, got.Layers[k].Bias, 1e-6)
	}
}

func TestEvaluate(t *testing.T) {
	net := seeded(cpu.New(), 6)
	ds := dataset.Generate(dataset.Division)

	stats, err := Evaluate(net, ds, network.DefaultTolerance)

	require.NoError(t, err)
	assert.GreaterOrEqual(t, stats.Accuracy, 0.0)
	assert.LessOrEqual(t, stats.Accuracy, 1.0)
	assert.GreaterOrEqual(t, stats.Loss, 0.0)

	net.Release()
	_, err = Evaluate(net, ds, network.DefaultTolerance)
	assert.ErrorIs(t, err, network.ErrReleased)
}
