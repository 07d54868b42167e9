package predictor

import (
	"fmt"

	"github.com/chrissnell/pvforecast/internal/features"
	"github.com/chrissnell/pvforecast/internal/types"
	"gonum.org/v1/gonum/mat"
)

// Linear is a multi-output linear regression: outputs = X·Coefficients + Intercept.
// Coefficients has one row per feature and one column per output.  A missing
// feature makes both outputs of its row missing.
type Linear struct {
	Features     []string    `json:"features"`
	Coefficients [][]float64 `json:"coefficients"`
	Intercept    []float64   `json:"intercept"`
}

func (l *Linear) validate() error {
	if err := checkSchema(l.Features); err != nil {
		return err
	}
	if len(l.Coefficients) != features.Width || len(l.Intercept) != 2 {
		return fmt.Errorf("%w: linear model has %d coefficient rows and %d intercepts", types.ErrModelUnavailable, len(l.Coefficients), len(l.Intercept))
	}
	for i, row := range l.Coefficients {
		if len(row) != 2 {
			return fmt.Errorf("%w: coefficient row %d has %d outputs", types.ErrModelUnavailable, i, len(row))
		}
	}
	return nil
}

// Predict implements Predictor.
func (l *Linear) Predict(matrix [][]float64) ([]float64, []float64, error) {
	if err := checkMatrix(matrix); err != nil {
		return nil, nil, err
	}
	n := len(matrix)
	if n == 0 {
		return []float64{}, []float64{}, nil
	}

	x := mat.NewDense(n, features.Width, nil)
	for i, row := range matrix {
		x.SetRow(i, row)
	}
	b := mat.NewDense(features.Width, 2, nil)
	for i, row := range l.Coefficients {
		b.SetRow(i, row)
	}

	var y mat.Dense
	y.Mul(x, b)

	diffuse := make([]float64, n)
	global := make([]float64, n)
	for i := 0; i < n; i++ {
		diffuse[i] = y.At(i, 0) + l.Intercept[0]
		global[i] = y.At(i, 1) + l.Intercept[1]
	}
	return diffuse, global, nil
}
