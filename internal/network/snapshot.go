package network

import (
	"fmt"

	"github.com/born-ml/weightfusion/internal/nn"
)

// LayerParams holds one dense layer's parameters.
//
// Weights is row-major [In, Out]: the weight from source node i to target
// node j is Weights[i*Out+j].
type LayerParams struct {
	In      int
	Out     int
	Weights []float32
	Bias    []float32
}

// Weight returns the weight from source i to target j.
func (l LayerParams) Weight(i, j int) float32 {
	return l.Weights[i*l.Out+j]
}

// Snapshot is an immutable copy of a network's parameters. It shares no
// memory with the network it was taken from and must not be modified.
type Snapshot struct {
	Layers []LayerParams
}

func newSnapshot(layers []*nn.Linear[Backend]) *Snapshot {
	snap := &Snapshot{Layers: make([]LayerParams, len(layers))}
	for k, layer := range layers {
		in, out := layer.InFeatures(), layer.OutFeatures()
		stored := layer.Weight().Tensor().Data() // [out, in]

		weights := make([]float32, in*out)
		for j := 0; j < out; j++ {
			for i := 0; i < in; i++ {
				weights[i*out+j] = stored[j*in+i]
			}
		}

		snap.Layers[k] = LayerParams{
			In:      in,
			Out:     out,
			Weights: weights,
			Bias:    append([]float32(nil), layer.Bias().Tensor().Data()...),
		}
	}
	return snap
}

// NodeCounts returns the node count of every column, input first.
func (s *Snapshot) NodeCounts() []int {
	if len(s.Layers) == 0 {
		return nil
	}
	counts := []int{s.Layers[0].In}
	for _, l := range s.Layers {
		counts = append(counts, l.Out)
	}
	return counts
}

// Flat returns the parameter set (W1, b1, W2, b2, ...) with weights in
// [In, Out] order.
func (s *Snapshot) Flat() [][]float32 {
	flat := make([][]float32, 0, 2*len(s.Layers))
	for _, l := range s.Layers {
		flat = append(flat, l.Weights, l.Bias)
	}
	return flat
}

// Validate checks that consecutive layers connect and every slice has the
// size its dimensions imply.
func (s *Snapshot) Validate() error {
	if len(s.Layers) == 0 {
		return fmt.Errorf("snapshot has no layers")
	}
	for k, l := range s.Layers {
		if l.In <= 0 || l.Out <= 0 {
			return fmt.Errorf("layer %d: invalid dimensions %dx%d", k, l.In, l.Out)
		}
		if len(l.Weights) != l.In*l.Out {
			return fmt.Errorf("layer %d: %d weights for %dx%d", k, len(l.Weights), l.In, l.Out)
		}
		if len(l.Bias) != l.Out {
			return fmt.Errorf("layer %d: %d biases for %d outputs", k, len(l.Bias), l.Out)
		}
		if k > 0 && s.Layers[k-1].Out != l.In {
			return fmt.Errorf("layer %d: input %d does not match previous output %d", k, l.In, s.Layers[k-1].Out)
		}
	}
	return nil
}
