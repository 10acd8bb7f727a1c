package visualizer

import (
	"cmp"
	"math"
	"slices"

	"github.com/born-ml/weightfusion/internal/network"
)

// Edge is one drawn connection between adjacent columns.
type Edge struct {
	From   int     // source node index
	To     int     // target node index
	Weight float32 // signed weight
	// Visual is the normalised strength in [0,1] used for opacity and width.
	Visual float64
}

// Magnitude returns |Weight|.
func (e Edge) Magnitude() float64 {
	return math.Abs(float64(e.Weight))
}

// Negative reports whether the edge is drawn in the warning colour.
func (e Edge) Negative() bool {
	return e.Weight < 0
}

// EdgeBudget returns how many edges a layer of src×tgt connections shows:
// the top 30%, but never fewer than the smaller column.
func EdgeBudget(src, tgt int) int {
	total := src * tgt
	return max(int(math.Ceil(0.3*float64(total))), min(src, tgt))
}

// SelectEdges ranks a layer's connections by magnitude and returns the ones
// worth drawing, strongest first.
//
// At most EdgeBudget edges are taken. Selection stops early at the first
// edge weaker than half the magnitude of the budget-th ranked edge, so a
// sharp drop-off leaves the long tail of near-zero edges undrawn.
func SelectEdges(layer network.LayerParams) []Edge {
	ranked := make([]Edge, 0, layer.In*layer.Out)
	for i := 0; i < layer.In; i++ {
		for j := 0; j < layer.Out; j++ {
			w := layer.Weight(i, j)
			ranked = append(ranked, Edge{From: i, To: j, Weight: w})
		}
	}
	slices.SortStableFunc(ranked, func(a, b Edge) int {
		return cmp.Compare(b.Magnitude(), a.Magnitude())
	})

	k := EdgeBudget(layer.In, layer.Out)
	threshold := 0.0
	if k > 0 && k <= len(ranked) {
		threshold = ranked[k-1].Magnitude()
	}

	selected := make([]Edge, 0, min(k, len(ranked)))
	for _, e := range ranked {
		if len(selected) == k || e.Magnitude() < threshold/2 {
			break
		}
		e.Visual = min(e.Magnitude()/2, 1)
		selected = append(selected, e)
	}
	return selected
}
