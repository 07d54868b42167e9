package types

import "errors"

// Fatal error categories of a pipeline run.  They are returned wrapped, so
// callers should test for them with errors.Is.
var (
	// ErrReferenceDataMissing means a static reference table is absent or corrupt.
	ErrReferenceDataMissing = errors.New("reference data missing")

	// ErrSchemaMismatch means the weather table lacks required columns, or the
	// feature matrix does not have the shape the predictor expects.
	ErrSchemaMismatch = errors.New("schema mismatch")

	// ErrModelUnavailable means the model artifact could not be loaded.
	ErrModelUnavailable = errors.New("model unavailable")

	// ErrPredictionError means the model rejected its input.
	ErrPredictionError = errors.New("prediction error")

	// ErrInvalidConfiguration means the panel configuration was rejected before the run.
	ErrInvalidConfiguration = errors.New("invalid configuration")
)
