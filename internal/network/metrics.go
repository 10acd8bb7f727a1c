package network

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
)

// DefaultTolerance is the absolute error under which a prediction counts as correct.
const DefaultTolerance = 0.5

// MeanSquaredError returns mean((pred - target)²).
func MeanSquaredError(pred, target []float32) (float64, error) {
	p, t, err := widen(pred, target)
	if err != nil {
		return 0, err
	}
	d := floats.Distance(p, t, 2)
	return d * d / float64(len(p)), nil
}

// ToleranceAccuracy returns the fraction of predictions whose absolute error
// is at most tolerance. The result is always in [0, 1].
func ToleranceAccuracy(pred, target []float32, tolerance float64) (float64, error) {
	p, t, err := widen(pred, target)
	if err != nil {
		return 0, err
	}
	floats.Sub(p, t)

	hits := 0
	for _, d := range p {
		if math.Abs(d) <= tolerance {
			hits++
		}
	}
	return float64(hits) / float64(len(p)), nil
}

func widen(pred, target []float32) ([]float64, []float64, error) {
	if len(pred) != len(target) {
		return nil, nil, fmt.Errorf("metrics: %d predictions for %d targets", len(pred), len(target))
	}
	if len(pred) == 0 {
		return nil, nil, fmt.Errorf("metrics: no records")
	}
	p := make([]float64, len(pred))
	t := make([]float64, len(target))
	for i := range pred {
		p[i] = float64(pred[i])
		t[i] = float64(target[i])
	}
	return p, t, nil
}
