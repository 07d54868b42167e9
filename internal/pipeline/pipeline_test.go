package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"math"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/chrissnell/pvforecast/internal/export"
	"github.com/chrissnell/pvforecast/internal/predictor"
	"github.com/chrissnell/pvforecast/internal/reference"
	"github.com/chrissnell/pvforecast/internal/types"
	"github.com/chrissnell/pvforecast/internal/weather"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// constantModel predicts the same irradiance for every row.
type constantModel struct {
	diffuse, global float64
	err             error
	short           bool
	calls           int
}

func (m *constantModel) Predict(matrix [][]float64) ([]float64, []float64, error) {
	m.calls++
	if m.err != nil {
		return nil, nil, m.err
	}
	n := len(matrix)
	if m.short && n > 0 {
		n--
	}
	d := make([]float64, n)
	g := make([]float64, n)
	for i := range d {
		d[i], g[i] = m.diffuse, m.global
	}
	return d, g, nil
}

type recordedRun struct {
	outcome                     string
	rows, clamped, missingJoins int
}

type fakeRecorder struct {
	mu     sync.Mutex
	stages []string
	runs   []recordedRun
}

func (f *fakeRecorder) ObserveStage(stage string, _ time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stages = append(f.stages, stage)
}

func (f *fakeRecorder) RecordRun(outcome string, rows, clamped, missingJoins int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.runs = append(f.runs, recordedRun{outcome, rows, clamped, missingJoins})
}

func ptr(v float64) *float64 { return &v }

func optimalPanel(t *testing.T) types.PanelConfiguration {
	t.Helper()
	p, err := types.NewPanelConfiguration(18, 1.92, 1.02, true, nil, nil)
	require.NoError(t, err)
	return p
}

func fixedPanel(t *testing.T, tilt, azimuth float64) types.PanelConfiguration {
	t.Helper()
	p, err := types.NewPanelConfiguration(18, 1.92, 1.02, false, ptr(azimuth), ptr(tilt))
	require.NoError(t, err)
	return p
}

var (
	irkutskOnce   sync.Once
	irkutskTables *reference.Tables
)

func irkutsk(t *testing.T) *reference.Cache {
	t.Helper()
	irkutskOnce.Do(func() {
		var err error
		irkutskTables, err = reference.Generate(reference.GenerateOptions{
			Site:      types.Site{Latitude: 52.3, Longitude: 104.3, Altitude: 450},
			UTCOffset: 8,
			Year:      2024,
			Albedo:    reference.DefaultAlbedo,
		})
		require.NoError(t, err)
	})
	return reference.NewStaticCache(irkutskTables)
}

func observation(year, month, day, hour int) types.WeatherObservation {
	return types.WeatherObservation{
		Year: year, Month: month, Day: day, Hour: hour,
		N: "0", Nh: "0", W1: "clear", T: 20, Po: 1013, Ff: 2, U: 40,
	}
}

func day(year, month, dy int) []types.WeatherObservation {
	obs := make([]types.WeatherObservation, 24)
	for h := range obs {
		obs[h] = observation(year, month, dy, h)
	}
	return obs
}

func TestComputeEndToEnd(t *testing.T) {
	site := types.Site{Latitude: 52.3, Longitude: 104.3, Altitude: 450}
	p := New(irkutsk(t), predictor.NewClearSky(site, 8, 2024))

	run, err := p.Compute(context.Background(), []types.WeatherObservation{observation(2024, 6, 21, 12)}, optimalPanel(t))
	require.NoError(t, err)
	require.Len(t, run.Results, 1)

	r := run.Results[0]
	assert.Equal(t, types.CalendarKey{Month: 6, Day: 21, Hour: 12}, r.Key())
	assert.False(t, r.MissingReference)
	assert.NotEqual(t, [16]byte{}, [16]byte(run.ID))

	for name, v := range map[string]types.Value{
		"SZA": r.SZA, "sina": r.SinAlt, "beta": r.Tilt, "y": r.Azimuth, "w": r.HourAngle,
		"diffuse": r.Diffuse, "global": r.Global, "rad_pram": r.Direct, "cos": r.CosIncidence,
		"Hnorm": r.Hnorm, "Hbt": r.Hbt, "Hdt": r.Hdt, "Hrt": r.Hrt, "Hgt": r.Hgt,
		"Tmod": r.Tmod, "Tyach": r.Tyach, "W": r.W, "Wel": r.Wel,
	} {
		assert.True(t, v.Valid(), "%s should be populated", name)
	}
	assert.GreaterOrEqual(t, r.Wel.Float(), 0.0)
	assert.Equal(t, 173, r.DayOfYear)
}

func TestComputeMatchesHandCalculation(t *testing.T) {
	tables, err := reference.NewTables(
		[]types.AstronomicalRecord{{Month: 6, Day: 21, Hour: 12, SZA: 36.87, Albedo: 0.2, DayNumber: 173, Declination: 23.45, SinAlt: 0.8}},
		[]types.HourAngleRecord{{Hour: 12, HourAngle: 0}},
	)
	require.NoError(t, err)

	p := New(reference.NewStaticCache(tables), &constantModel{diffuse: 100, global: 600})
	run, err := p.Compute(context.Background(), []types.WeatherObservation{observation(2024, 6, 21, 12)}, fixedPanel(t, 30, 0))
	require.NoError(t, err)
	require.Len(t, run.Results, 1)

	r := run.Results[0]
	assert.InDelta(t, 500.0, r.Direct.Float(), 1e-9)
	assert.InDelta(t, 0.9997985784932998, r.CosIncidence.Float(), 1e-12)
	assert.InDelta(t, 625.0, r.Hnorm.Float(), 1e-9)
	assert.InDelta(t, 624.8741115583124, r.Hbt.Float(), 1e-9)
	assert.InDelta(t, 93.30127018922194, r.Hdt.Float(), 1e-9)
	assert.InDelta(t, 8.038475772933678, r.Hrt.Float(), 1e-9)
	assert.InDelta(t, 726.213857520468, r.Hgt.Float(), 1e-9)
	assert.InDelta(t, 39.44995081044152, r.Tmod.Float(), 1e-9)
	assert.InDelta(t, 41.26548545424269, r.Tyach.Float(), 1e-9)
	assert.InDelta(t, 670.6964191204753, r.W.Float(), 1e-9)
	assert.InDelta(t, 236.428536096997, r.Wel.Float(), 1e-9)
	assert.False(t, r.Clamped)
}

func TestComputeFlatPanelAtEquinoxNoon(t *testing.T) {
	tables, err := reference.NewTables(
		[]types.AstronomicalRecord{{Month: 3, Day: 20, Hour: 12, SZA: 52.3, Albedo: 0.2, DayNumber: 80, Declination: 0, SinAlt: 0.6115}},
		[]types.HourAngleRecord{{Hour: 12, HourAngle: 0}},
	)
	require.NoError(t, err)

	p := New(reference.NewStaticCache(tables), &constantModel{diffuse: 50, global: 400})
	run, err := p.Compute(context.Background(), []types.WeatherObservation{observation(2024, 3, 20, 12)}, fixedPanel(t, 0, 0))
	require.NoError(t, err)

	assert.InDelta(t, math.Cos(52.3*math.Pi/180), run.Results[0].CosIncidence.Float(), 1e-12)
	assert.InDelta(t, 0.0, run.Results[0].Hrt.Float(), 1e-12)
	assert.InDelta(t, 50.0, run.Results[0].Hdt.Float(), 1e-12)
}

func TestComputeInvariants(t *testing.T) {
	weather := append(day(2024, 6, 21), day(2024, 12, 21)...)

	tests := []struct {
		name  string
		model *constantModel
		panel types.PanelConfiguration
	}{
		{"optimal", &constantModel{diffuse: 120, global: 700}, optimalPanel(t)},
		{"fixed south", &constantModel{diffuse: 120, global: 700}, fixedPanel(t, 35, 0)},
		{"fixed north steep", &constantModel{diffuse: 10, global: 900}, fixedPanel(t, 80, 180)},
		{"diffuse above global", &constantModel{diffuse: 300, global: 100}, fixedPanel(t, 35, 0)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := New(irkutsk(t), tt.model)
			run, err := p.Compute(context.Background(), weather, tt.panel)
			require.NoError(t, err)
			require.Len(t, run.Results, len(weather))

			for i, r := range run.Results {
				assert.Equal(t, weather[i].Key(), r.Key(), "order is preserved")

				require.True(t, r.Wel.Valid(), "row %d", i)
				assert.GreaterOrEqual(t, r.Wel.Float(), 0.0, "row %d", i)
				if r.SinAlt.Float() < 0 {
					assert.Equal(t, 0.0, r.Wel.Float(), "row %d", i)
					assert.True(t, r.Clamped)
				}
				if r.Hgt.Valid() {
					assert.InDelta(t, r.Hbt.Float()+r.Hdt.Float()+r.Hrt.Float(), r.Hgt.Float(), 1e-9)
				}

				for _, pair := range [][2]types.Value{{r.SinMonth, r.CosMonth}, {r.SinHour, r.CosHour}, {r.SinDayYear, r.CosDayYear}} {
					s, c := pair[0].Float(), pair[1].Float()
					assert.InDelta(t, 1.0, s*s+c*c, 1e-12)
				}
			}
		})
	}
}

func TestComputeOptimalIgnoresCallerOrientation(t *testing.T) {
	weather := day(2024, 6, 21)
	p := New(irkutsk(t), &constantModel{diffuse: 120, global: 700})

	plain := optimalPanel(t)
	withOrientation := plain
	withOrientation.Tilt = ptr(10)
	withOrientation.Azimuth = ptr(90)

	a, err := p.Compute(context.Background(), weather, plain)
	require.NoError(t, err)
	b, err := p.Compute(context.Background(), weather, withOrientation)
	require.NoError(t, err)

	tables, err := irkutsk(t).Get()
	require.NoError(t, err)

	for i := range weather {
		rec, ok := tables.Astronomical(weather[i].Key())
		require.True(t, ok)
		assert.Equal(t, rec.Tilt.Float(), b.Results[i].Tilt.Float())
		assert.Equal(t, rec.Azimuth.Float(), b.Results[i].Azimuth.Float())
		assert.Equal(t, a.Results[i].Wel, b.Results[i].Wel)
	}
}

func TestComputeFixedBroadcastsOrientation(t *testing.T) {
	p := New(irkutsk(t), &constantModel{diffuse: 120, global: 700})
	run, err := p.Compute(context.Background(), day(2024, 6, 21), fixedPanel(t, 35, -15))
	require.NoError(t, err)

	for _, r := range run.Results {
		assert.Equal(t, 35.0, r.Tilt.Float())
		assert.Equal(t, -15.0, r.Azimuth.Float())
	}
}

func TestComputeMissingReference(t *testing.T) {
	weather := []types.WeatherObservation{
		observation(2024, 6, 21, 12),
		observation(2024, 2, 30, 12), // no such date
		observation(2024, 6, 21, 25), // no such hour
	}
	p := New(irkutsk(t), &constantModel{diffuse: 120, global: 700})

	run, err := p.Compute(context.Background(), weather, fixedPanel(t, 35, 0))
	require.NoError(t, err)
	require.Len(t, run.Results, 3, "weather rows are never dropped")
	assert.Equal(t, 2, run.MissingReference)

	assert.False(t, run.Results[0].MissingReference)
	for _, r := range run.Results[1:] {
		assert.True(t, r.MissingReference)
		assert.False(t, r.SZA.Valid())
		assert.False(t, r.SinAlt.Valid())
		assert.False(t, r.Hgt.Valid())
		assert.False(t, r.Wel.Valid(), "missing reference data stays missing")
		assert.False(t, r.Clamped)
	}
	assert.Equal(t, 0, run.Results[1].DayOfYear)
	assert.Equal(t, 35.0, run.Results[1].Tilt.Float(), "fixed orientation is broadcast regardless")
}

func TestComputeNonNumericWeather(t *testing.T) {
	obs, err := weather.ReadCSV(strings.NewReader("YEAR,MO,DY,HR,N,Nh,W1,T,Po,Ff,U\n" +
		"2024,6,21,12,0,0,clear,n/a,1013,2,40\n" +
		"2024,6,21,1,0,0,clear,15,1013,calm,40\n"))
	require.NoError(t, err)

	p := New(irkutsk(t), &constantModel{diffuse: 120, global: 700})
	run, err := p.Compute(context.Background(), obs, optimalPanel(t))
	require.NoError(t, err)
	require.Len(t, run.Results, 2)

	noon, night := run.Results[0], run.Results[1]
	assert.False(t, noon.T.Valid())
	assert.True(t, noon.Hgt.Valid())
	assert.False(t, noon.Tmod.Valid())
	assert.False(t, noon.Wel.Valid())

	assert.False(t, night.Ff.Valid())
	assert.Equal(t, 0.0, night.Wel.Float(), "night rows read as zero even with missing inputs")

	b, err := json.Marshal(noon)
	require.NoError(t, err)
	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(b, &decoded))
	assert.Nil(t, decoded["T"])
	assert.Equal(t, 2.0, decoded["Ff"], "valid readings are numbers")

	var buf bytes.Buffer
	require.NoError(t, export.WriteCSV(&buf, run.Results))
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	header := strings.Split(lines[0], ",")
	cells := strings.Split(lines[1], ",")
	for i, col := range header {
		if col == "T" {
			assert.Equal(t, "", cells[i], "unparseable temperature is an empty cell")
		}
	}
	assert.Contains(t, header, "T")
	assert.NotContains(t, buf.String(), "n/a")
}

func TestComputeWindCoolsPanel(t *testing.T) {
	calm := observation(2024, 6, 21, 12)
	windy := calm
	windy.Ff = 10

	p := New(irkutsk(t), &constantModel{diffuse: 120, global: 700})
	run, err := p.Compute(context.Background(), []types.WeatherObservation{calm, windy}, optimalPanel(t))
	require.NoError(t, err)

	c, w := run.Results[0], run.Results[1]
	require.Greater(t, c.Hgt.Float(), 0.0)
	assert.Equal(t, c.Hgt, w.Hgt)
	assert.Less(t, w.Tmod.Float(), c.Tmod.Float())
	// A cooler cell derates less, so output does not drop.
	assert.GreaterOrEqual(t, w.Wel.Float(), c.Wel.Float())
}

func TestComputeEmptyForecast(t *testing.T) {
	p := New(irkutsk(t), &constantModel{diffuse: 120, global: 700})
	run, err := p.Compute(context.Background(), nil, optimalPanel(t))
	require.NoError(t, err)
	assert.Empty(t, run.Results)
	assert.Equal(t, 0, run.Rows)
}

func TestComputeErrors(t *testing.T) {
	badPanel := types.PanelConfiguration{Efficiency: 0.18, Length: -1, Width: 1, Optimal: true}
	missingRefs := reference.NewCache(filepath.Join(t.TempDir(), "a.csv"), filepath.Join(t.TempDir(), "h.csv"))

	tests := []struct {
		name    string
		refs    *reference.Cache
		model   *constantModel
		panel   types.PanelConfiguration
		ctx     func() context.Context
		wantErr error
		called  bool
	}{
		{
			name:    "invalid configuration",
			refs:    irkutsk(t),
			model:   &constantModel{},
			panel:   badPanel,
			wantErr: types.ErrInvalidConfiguration,
		},
		{
			name:    "reference data missing",
			refs:    missingRefs,
			model:   &constantModel{},
			panel:   optimalPanel(t),
			wantErr: types.ErrReferenceDataMissing,
		},
		{
			name:    "model rejects input",
			refs:    irkutsk(t),
			model:   &constantModel{err: errors.New("boom")},
			panel:   optimalPanel(t),
			wantErr: types.ErrPredictionError,
			called:  true,
		},
		{
			name:    "model unavailable passes through",
			refs:    irkutsk(t),
			model:   &constantModel{err: types.ErrModelUnavailable},
			panel:   optimalPanel(t),
			wantErr: types.ErrModelUnavailable,
			called:  true,
		},
		{
			name:    "model returns too few rows",
			refs:    irkutsk(t),
			model:   &constantModel{short: true},
			panel:   optimalPanel(t),
			wantErr: types.ErrPredictionError,
			called:  true,
		},
		{
			name:  "cancelled",
			refs:  irkutsk(t),
			model: &constantModel{},
			panel: optimalPanel(t),
			ctx: func() context.Context {
				ctx, cancel := context.WithCancel(context.Background())
				cancel()
				return ctx
			},
			wantErr: context.Canceled,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			if tt.ctx != nil {
				ctx = tt.ctx()
			}
			rec := &fakeRecorder{}
			p := New(tt.refs, tt.model, WithRecorder(rec))

			run, err := p.Compute(ctx, day(2024, 6, 21), tt.panel)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Nil(t, run, "no partial table on fatal error")
			assert.Equal(t, tt.called, tt.model.calls > 0)
			require.Len(t, rec.runs, 1)
			assert.Equal(t, "failure", rec.runs[0].outcome)
		})
	}
}

func TestComputeRecordsMetrics(t *testing.T) {
	rec := &fakeRecorder{}
	start := time.Date(2024, 6, 21, 4, 0, 0, 0, time.UTC)
	p := New(irkutsk(t), &constantModel{diffuse: 120, global: 700},
		WithRecorder(rec),
		WithClock(func() time.Time { return start }),
		WithLatitude(52.3))

	weather := append(day(2024, 6, 21), observation(2024, 2, 30, 0))
	run, err := p.Compute(context.Background(), weather, optimalPanel(t))
	require.NoError(t, err)

	assert.Equal(t, start, run.CreatedAt)
	assert.Equal(t, []string{StageMerge, StageFeatures, StagePredict, StageGeometry, StageYield}, rec.stages)
	require.Len(t, rec.runs, 1)
	assert.Equal(t, recordedRun{"success", 25, run.Clamped, 1}, rec.runs[0])
	assert.Greater(t, run.Clamped, 0)
}
