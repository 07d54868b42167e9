package predictor

import (
	"fmt"
	"math"

	"github.com/chrissnell/pvforecast/internal/types"
)

// Node is one node of a regression tree.  Leaves have Left == -1 and carry one
// value per model output.  Rows with x[Feature] <= Threshold go left; a missing
// (NaN) feature follows MissingLeft.
type Node struct {
	Feature     int       `json:"feature"`
	Threshold   float64   `json:"threshold"`
	Left        int       `json:"left"`
	Right       int       `json:"right"`
	MissingLeft bool      `json:"missing_left"`
	Value       []float64 `json:"value,omitempty"`
}

// Tree is a flat array of nodes rooted at index 0.
type Tree struct {
	Nodes []Node `json:"nodes"`
}

// Forest is a multi-output tree ensemble.  Its prediction is the mean of the
// leaf values reached in every tree.
type Forest struct {
	Features []string `json:"features"`
	Outputs  []string `json:"outputs"`
	Trees    []Tree   `json:"trees"`
}

func (f *Forest) validate() error {
	if err := checkSchema(f.Features); err != nil {
		return err
	}
	if len(f.Outputs) != 2 || f.Outputs[0] != OutputDiffuse || f.Outputs[1] != OutputGlobal {
		return fmt.Errorf("%w: forest outputs %v, expected [%s %s]", types.ErrPredictionError, f.Outputs, OutputDiffuse, OutputGlobal)
	}
	if len(f.Trees) == 0 {
		return fmt.Errorf("%w: forest has no trees", types.ErrModelUnavailable)
	}
	for ti, t := range f.Trees {
		if len(t.Nodes) == 0 {
			return fmt.Errorf("%w: tree %d is empty", types.ErrModelUnavailable, ti)
		}
		for ni, n := range t.Nodes {
			if n.Left == -1 {
				if len(n.Value) != 2 {
					return fmt.Errorf("%w: tree %d leaf %d has %d values", types.ErrModelUnavailable, ti, ni, len(n.Value))
				}
				continue
			}
			// Children must come after their parent, which also rules out cycles.
			if n.Left <= ni || n.Right <= ni || n.Left >= len(t.Nodes) || n.Right >= len(t.Nodes) {
				return fmt.Errorf("%w: tree %d node %d has invalid children %d/%d", types.ErrModelUnavailable, ti, ni, n.Left, n.Right)
			}
			if n.Feature < 0 || n.Feature >= len(f.Features) {
				return fmt.Errorf("%w: tree %d node %d splits on feature %d", types.ErrModelUnavailable, ti, ni, n.Feature)
			}
		}
	}
	return nil
}

// leaf walks the tree for row x and returns the reached leaf's values.
func (t *Tree) leaf(x []float64) []float64 {
	i := 0
	for {
		n := &t.Nodes[i]
		if n.Left == -1 {
			return n.Value
		}
		v := x[n.Feature]
		switch {
		case math.IsNaN(v):
			if n.MissingLeft {
				i = n.Left
			} else {
				i = n.Right
			}
		case v <= n.Threshold:
			i = n.Left
		default:
			i = n.Right
		}
	}
}

// Predict implements Predictor.
func (f *Forest) Predict(matrix [][]float64) ([]float64, []float64, error) {
	if err := checkMatrix(matrix); err != nil {
		return nil, nil, err
	}

	diffuse := make([]float64, len(matrix))
	global := make([]float64, len(matrix))
	scale := 1 / float64(len(f.Trees))

	for i, x := range matrix {
		var d, g float64
		for ti := range f.Trees {
			v := f.Trees[ti].leaf(x)
			d += v[0]
			g += v[1]
		}
		diffuse[i] = d * scale
		global[i] = g * scale
	}
	return diffuse, global, nil
}
