// Package predictor wraps the pretrained irradiance regression model.
package predictor

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/chrissnell/pvforecast/internal/features"
	"github.com/chrissnell/pvforecast/internal/types"
)

// Output column names, in the order every Predictor returns them.
const (
	OutputDiffuse = "ALLSKY_SFC_SW_DIFF"
	OutputGlobal  = "ALLSKY_SFC_SW_DWN"
)

// Predictor turns a feature matrix (one row per hour, columns in the order of
// features.Names) into diffuse and global horizontal irradiance, one pair per
// row, in input order.
type Predictor interface {
	Predict(matrix [][]float64) (diffuse, global []float64, err error)
}

// Config selects and locates the model artifact.
type Config struct {
	Type string // forest, linear or clearsky
	Path string

	// Used by the clearsky predictor only.
	Site      types.Site
	UTCOffset float64 // hours
	Year      int
}

// Load builds the configured predictor.  Artifacts are read once; the returned
// Predictor is safe to reuse for every run.
func Load(cfg Config) (Predictor, error) {
	switch strings.ToLower(cfg.Type) {
	case "", "forest":
		var f Forest
		if err := readArtifact(cfg.Path, &f); err != nil {
			return nil, err
		}
		if err := f.validate(); err != nil {
			return nil, err
		}
		return &f, nil
	case "linear":
		var l Linear
		if err := readArtifact(cfg.Path, &l); err != nil {
			return nil, err
		}
		if err := l.validate(); err != nil {
			return nil, err
		}
		return &l, nil
	case "clearsky":
		return NewClearSky(cfg.Site, cfg.UTCOffset, cfg.Year), nil
	default:
		return nil, fmt.Errorf("%w: unknown model type %q", types.ErrModelUnavailable, cfg.Type)
	}
}

func readArtifact(path string, v interface{}) error {
	if path == "" {
		return fmt.Errorf("%w: no model path configured", types.ErrModelUnavailable)
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("%w: %v", types.ErrModelUnavailable, err)
	}
	if err := json.Unmarshal(b, v); err != nil {
		return fmt.Errorf("%w: could not decode %s: %v", types.ErrModelUnavailable, path, err)
	}
	return nil
}

// checkSchema compares the feature names an artifact was trained on with the
// pipeline's feature schema.
func checkSchema(names []string) error {
	if len(names) != features.Width {
		return fmt.Errorf("%w: model expects %d features, pipeline provides %d", types.ErrPredictionError, len(names), features.Width)
	}
	for i, n := range names {
		if n != features.Names[i] {
			return fmt.Errorf("%w: feature %d is %q in the model but %q in the pipeline", types.ErrPredictionError, i, n, features.Names[i])
		}
	}
	return nil
}

// checkMatrix rejects rows whose width does not match the schema.
func checkMatrix(matrix [][]float64) error {
	for i, row := range matrix {
		if len(row) != features.Width {
			return fmt.Errorf("%w: row %d has %d features, expected %d", types.ErrPredictionError, i, len(row), features.Width)
		}
	}
	return nil
}
