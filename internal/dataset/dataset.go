// Package dataset builds the fixed arithmetic tables the regressors learn from.
package dataset

import (
	"fmt"

	"github.com/born-ml/weightfusion/internal/tensor"
)

// Kind selects which arithmetic table to generate.
type Kind int

// Supported dataset kinds.
const (
	Addition Kind = iota
	Multiplication
	Division
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case Addition:
		return "addition"
	case Multiplication:
		return "multiplication"
	case Division:
		return "division"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Features is the number of input columns of every table.
const Features = 2

// Dataset is an immutable ordered set of (a, b) → target records.
type Dataset struct {
	kind    Kind
	inputs  []float32 // row-major [n, 2]
	targets []float32 // [n, 1]
}

// Generate returns the table for kind.
//
// Addition and Multiplication cover every (a, b) with a, b in [0, 9]
// (100 records). Division covers a, b in [1, 9] (81 records) so no
// denominator is zero. Records are ordered a-major: (0,0), (0,1), ...
func Generate(kind Kind) *Dataset {
	lo, hi := 0, 9
	if kind == Division {
		lo = 1
	}

	n := (hi - lo + 1) * (hi - lo + 1)
	ds := &Dataset{
		kind:    kind,
		inputs:  make([]float32, 0, n*Features),
		targets: make([]float32, 0, n),
	}

	for a := lo; a <= hi; a++ {
		for b := lo; b <= hi; b++ {
			ds.inputs = append(ds.inputs, float32(a), float32(b))
			ds.targets = append(ds.targets, target(kind, float32(a), float32(b)))
		}
	}
	return ds
}

func target(kind Kind, a, b float32) float32 {
	switch kind {
	case Addition:
		return a + b
	case Multiplication:
		return a * b
	case Division:
		return a / b
	default:
		panic(fmt.Sprintf("dataset: unknown kind %v", kind))
	}
}

// Kind returns the dataset kind.
func (d *Dataset) Kind() Kind {
	return d.kind
}

// Len returns the number of records.
func (d *Dataset) Len() int {
	return len(d.targets)
}

// Record returns the i-th input pair and its target.
func (d *Dataset) Record(i int) (a, b, target float32) {
	return d.inputs[i*Features], d.inputs[i*Features+1], d.targets[i]
}

// Inputs returns a copy of the N×2 input table, row-major.
func (d *Dataset) Inputs() []float32 {
	return append([]float32(nil), d.inputs...)
}

// Targets returns a copy of the N×1 target column.
func (d *Dataset) Targets() []float32 {
	return append([]float32(nil), d.targets...)
}

// Tensors uploads the dataset as x [n, 2] and y [n, 1]. The caller owns both
// tensors and releases them when the run ends.
func Tensors[B tensor.Backend](d *Dataset, backend B) (x, y *tensor.Tensor[float32, B], err error) {
	x, err = tensor.FromSlice(d.Inputs(), tensor.Shape{d.Len(), Features}, backend)
	if err != nil {
		return nil, nil, fmt.Errorf("upload %s inputs: %w", d.kind, err)
	}
	y, err = tensor.FromSlice(d.Targets(), tensor.Shape{d.Len(), 1}, backend)
	if err != nil {
		x.Release()
		return nil, nil, fmt.Errorf("upload %s targets: %w", d.kind, err)
	}
	return x, y, nil
}
