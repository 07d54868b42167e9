// Package pipeline turns an hourly weather forecast into an hourly electrical
// yield forecast for one PV panel.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/chrissnell/pvforecast/internal/features"
	"github.com/chrissnell/pvforecast/internal/log"
	"github.com/chrissnell/pvforecast/internal/metrics"
	"github.com/chrissnell/pvforecast/internal/predictor"
	"github.com/chrissnell/pvforecast/internal/reference"
	"github.com/chrissnell/pvforecast/internal/types"
	"github.com/chrissnell/pvforecast/pkg/solar"
	"github.com/google/uuid"
)

// Stage names, as reported to the metrics recorder.
const (
	StageMerge    = "merge"
	StageFeatures = "features"
	StagePredict  = "predict"
	StageGeometry = "geometry"
	StageYield    = "yield"
)

// Pipeline holds the read-only collaborators of a forecast run.  A Pipeline is
// safe for concurrent use; each Compute call is independent.
type Pipeline struct {
	references *reference.Cache
	predictor  predictor.Predictor
	latitude   float64
	recorder   metrics.Recorder
	now        func() time.Time
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithLatitude sets the site latitude used by the incidence formula.
func WithLatitude(latitude float64) Option {
	return func(p *Pipeline) { p.latitude = latitude }
}

// WithRecorder sends stage timings and run counters to r.
func WithRecorder(r metrics.Recorder) Option {
	return func(p *Pipeline) { p.recorder = r }
}

// WithClock overrides the clock used to timestamp runs.
func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) { p.now = now }
}

// New returns a pipeline over the given reference tables and predictor.
func New(refs *reference.Cache, pred predictor.Predictor, opts ...Option) *Pipeline {
	p := &Pipeline{
		references: refs,
		predictor:  pred,
		latitude:   types.DefaultLatitude,
		recorder:   metrics.Noop{},
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Report summarizes a completed run.
type Report struct {
	ID               uuid.UUID     `json:"id"`
	CreatedAt        time.Time     `json:"created_at"`
	Duration         time.Duration `json:"duration"`
	Rows             int           `json:"rows"`
	MissingReference int           `json:"missing_reference"`
	Clamped          int           `json:"clamped"`
}

// Run is the complete output of one Compute call.
type Run struct {
	Report
	Panel   types.PanelConfiguration `json:"panel"`
	Results []types.PowerResult      `json:"results"`
}

// Compute runs merge, feature engineering, prediction, geometry and yield over
// the whole forecast and returns one PowerResult per weather row, in input
// order.  Any fatal error aborts the run; no partial table is returned.
func (p *Pipeline) Compute(ctx context.Context, weather []types.WeatherObservation, panel types.PanelConfiguration) (*Run, error) {
	run, err := p.compute(ctx, weather, panel)
	if err != nil {
		p.recorder.RecordRun(metrics.OutcomeFailure, 0, 0, 0)
		log.Errorw("forecast run failed", "rows", len(weather), "error", err)
		return nil, err
	}
	p.recorder.RecordRun(metrics.OutcomeSuccess, run.Rows, run.Clamped, run.MissingReference)
	log.Infow("forecast run complete",
		"run_id", run.ID, "rows", run.Rows, "clamped", run.Clamped,
		"missing_reference", run.MissingReference, "duration", run.Duration)
	return run, nil
}

func (p *Pipeline) compute(ctx context.Context, weather []types.WeatherObservation, panel types.PanelConfiguration) (*Run, error) {
	if err := panel.Validate(); err != nil {
		return nil, err
	}

	start := p.now()
	run := &Run{
		Report: Report{ID: uuid.New(), CreatedAt: start.UTC(), Rows: len(weather)},
		Panel:  panel,
	}

	tables, err := p.references.Get()
	if err != nil {
		return nil, err
	}

	// Merge reference
	t := time.Now()
	rows, missing := Merge(tables, weather, panel)
	run.MissingReference = missing
	p.observe(StageMerge, t)
	if missing > 0 {
		log.Warnw("weather rows without reference data", "run_id", run.ID, "rows", missing, "keys", missingKeys(rows, 10))
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// Engineer features
	t = time.Now()
	rows, matrix := features.Engineer(rows)
	p.observe(StageFeatures, t)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// Predict irradiance
	t = time.Now()
	diffuse, global, err := p.predictor.Predict(matrix)
	if err != nil {
		if !errors.Is(err, types.ErrPredictionError) && !errors.Is(err, types.ErrModelUnavailable) {
			err = fmt.Errorf("%w: %v", types.ErrPredictionError, err)
		}
		return nil, err
	}
	if len(diffuse) != len(rows) || len(global) != len(rows) {
		return nil, fmt.Errorf("%w: model returned %d/%d predictions for %d rows", types.ErrPredictionError, len(diffuse), len(global), len(rows))
	}
	p.observe(StagePredict, t)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// Geometry and yield
	t = time.Now()
	in := geometryInput(rows, diffuse, global)
	plane, err := solar.TiltedIrradiance(p.latitude, in)
	if err != nil {
		return nil, err
	}
	p.observe(StageGeometry, t)

	t = time.Now()
	wind, ambient := weatherColumns(rows)
	yield, err := solar.ElectricalYield(solar.Panel{
		Efficiency: panel.Efficiency,
		Length:     panel.Length,
		Width:      panel.Width,
	}, plane.Hgt, wind, ambient)
	if err != nil {
		return nil, err
	}
	clamped, err := solar.ClampYield(yield.Wel, in.SinAlt)
	if err != nil {
		return nil, err
	}
	p.observe(StageYield, t)

	run.Results = assemble(rows, diffuse, global, plane, yield, clamped)
	for _, c := range clamped {
		if c {
			run.Clamped++
		}
	}
	run.Duration = p.now().Sub(start)
	return run, nil
}

func (p *Pipeline) observe(stage string, start time.Time) {
	d := time.Since(start)
	p.recorder.ObserveStage(stage, d)
	log.Debugw("pipeline stage complete", "stage", stage, "duration", d)
}

// missingKeys returns up to limit join keys of rows that found no reference data.
func missingKeys(rows []types.EnrichedRow, limit int) []types.CalendarKey {
	var keys []types.CalendarKey
	for _, r := range rows {
		if len(keys) == limit {
			break
		}
		if r.MissingReference {
			keys = append(keys, r.Key())
		}
	}
	return keys
}

func geometryInput(rows []types.EnrichedRow, diffuse, global []float64) solar.GeometryInput {
	n := len(rows)
	in := solar.GeometryInput{
		Diffuse:     diffuse,
		Global:      global,
		Tilt:        make([]float64, n),
		Azimuth:     make([]float64, n),
		HourAngle:   make([]float64, n),
		Declination: make([]float64, n),
		Albedo:      make([]float64, n),
		SinAlt:      make([]float64, n),
	}
	for i, r := range rows {
		in.Tilt[i] = r.Tilt.Float()
		in.Azimuth[i] = r.Azimuth.Float()
		in.HourAngle[i] = r.HourAngle.Float()
		in.Declination[i] = r.Declination.Float()
		in.Albedo[i] = r.Albedo.Float()
		in.SinAlt[i] = r.SinAlt.Float()
	}
	return in
}

func weatherColumns(rows []types.EnrichedRow) (wind, ambient []float64) {
	wind = make([]float64, len(rows))
	ambient = make([]float64, len(rows))
	for i, r := range rows {
		wind[i] = r.Ff.Float()
		ambient[i] = r.T.Float()
	}
	return wind, ambient
}

func assemble(rows []types.EnrichedRow, diffuse, global []float64, plane solar.PlaneIrradiance, yield solar.Yield, clamped []bool) []types.PowerResult {
	out := make([]types.PowerResult, len(rows))
	for i, r := range rows {
		out[i] = types.PowerResult{
			EnrichedRow: r,
			IrradiancePrediction: types.IrradiancePrediction{
				Diffuse: types.Value(diffuse[i]),
				Global:  types.Value(global[i]),
			},
			Direct:       types.Value(plane.Direct[i]),
			CosIncidence: types.Value(plane.CosIncidence[i]),
			Hnorm:        types.Value(plane.Hnorm[i]),
			Hbt:          types.Value(plane.Hbt[i]),
			Hdt:          types.Value(plane.Hdt[i]),
			Hrt:          types.Value(plane.Hrt[i]),
			Hgt:          types.Value(plane.Hgt[i]),
			Tmod:         types.Value(yield.Tmod[i]),
			Tyach:        types.Value(yield.Tyach[i]),
			W:            types.Value(yield.W[i]),
			Wel:          types.Value(yield.Wel[i]),
			Clamped:      clamped[i],
		}
	}
	return out
}
