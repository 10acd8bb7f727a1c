// Package fusion averages the parameters of two identically shaped networks
// and scores the result.
package fusion

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/blas/blas32"

	"github.com/born-ml/weightfusion/internal/dataset"
	"github.com/born-ml/weightfusion/internal/network"
)

// ErrShapeMismatch is returned when two networks do not share an architecture.
var ErrShapeMismatch = errors.New("shape mismatch")

// Fuse returns a new network whose every parameter is (a + b) / 2.
//
// Neither input is modified. The result has a fresh optimizer and is owned
// by the caller, who must Release it.
func Fuse(a, b *network.Network) (*network.Network, error) {
	pa, pb := a.Parameters(), b.Parameters()
	if len(pa) != len(pb) {
		return nil, fmt.Errorf("fuse: %d vs %d parameters: %w", len(pa), len(pb), ErrShapeMismatch)
	}
	for i := range pa {
		sa, sb := pa[i].Tensor().Shape(), pb[i].Tensor().Shape()
		if !sa.Equal(sb) {
			return nil, fmt.Errorf("fuse: parameter %d (%s) %v vs %v: %w", i, pa[i].Name(), sa, sb, ErrShapeMismatch)
		}
	}
	if a.Released() || b.Released() {
		return nil, fmt.Errorf("fuse: %w", network.ErrReleased)
	}

	fused := network.New(a.Compute(), network.WithLearningRate(a.LearningRate()))
	for i, dst := range fused.Parameters() {
		average(dst.Tensor().Data(), pa[i].Tensor().Data(), pb[i].Tensor().Data())
	}
	return fused, nil
}

// FuseSnapshots averages two parameter snapshots position by position.
func FuseSnapshots(a, b *network.Snapshot) (*network.Snapshot, error) {
	if len(a.Layers) != len(b.Layers) {
		return nil, fmt.Errorf("fuse snapshots: %d vs %d layers: %w", len(a.Layers), len(b.Layers), ErrShapeMismatch)
	}

	out := &network.Snapshot{Layers: make([]network.LayerParams, len(a.Layers))}
	for k := range a.Layers {
		la, lb := a.Layers[k], b.Layers[k]
		if la.In != lb.In || la.Out != lb.Out ||
			len(la.Weights) != len(lb.Weights) || len(la.Bias) != len(lb.Bias) {
			return nil, fmt.Errorf("fuse snapshots: layer %d %dx%d vs %dx%d: %w",
				k, la.In, la.Out, lb.In, lb.Out, ErrShapeMismatch)
		}

		lc := network.LayerParams{
			In:      la.In,
			Out:     la.Out,
			Weights: make([]float32, len(la.Weights)),
			Bias:    make([]float32, len(la.Bias)),
		}
		average(lc.Weights, la.Weights, lb.Weights)
		average(lc.Bias, la.Bias, lb.Bias)
		out.Layers[k] = lc
	}
	return out, nil
}

// average writes (a + b) / 2 into dst with level-1 BLAS: dst = a; dst += b; dst *= 0.5.
func average(dst, a, b []float32) {
	n := len(dst)
	vd := blas32.Vector{N: n, Inc: 1, Data: dst}
	copy(dst, a)
	blas32.Axpy(1, blas32.Vector{N: n, Inc: 1, Data: b}, vd)
	blas32.Scal(0.5, vd)
}

// Stats is the score of a network on a dataset.
type Stats struct {
	Loss     float64 // mean squared error
	Accuracy float64 // tolerance accuracy in [0, 1]
}

// Evaluate uploads ds, predicts every record with net and scores the predictions.
func Evaluate(net *network.Network, ds *dataset.Dataset, tolerance float64) (Stats, error) {
	x, y, err := dataset.Tensors(ds, net.Backend())
	if err != nil {
		return Stats{}, err
	}
	defer x.Release()
	defer y.Release()

	return Score(net, x, y, tolerance)
}

// Score predicts x with net and compares against the target column y.
func Score(net *network.Network, x, y network.Tensor, tolerance float64) (Stats, error) {
	pred, err := net.Predict(x)
	if err != nil {
		return Stats{}, fmt.Errorf("evaluate: %w", err)
	}
	targets := y.Data()

	var s Stats
	if s.Loss, err = network.MeanSquaredError(pred, targets); err != nil {
		return Stats{}, fmt.Errorf("evaluate: %w", err)
	}
	if s.Accuracy, err = network.ToleranceAccuracy(pred, targets, tolerance); err != nil {
		return Stats{}, fmt.Errorf("evaluate: %w", err)
	}
	return s, nil
}
