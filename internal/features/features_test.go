package features

import (
	"math"
	"testing"

	"github.com/chrissnell/pvforecast/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDayOfYear(t *testing.T) {
	tests := []struct {
		name             string
		year, month, day int
		expected         int
	}{
		{"new year", 2024, 1, 1, 1},
		{"summer solstice in a leap year", 2024, 6, 21, 173},
		{"summer solstice in a common year", 2023, 6, 21, 172},
		{"leap day", 2024, 2, 29, 60},
		{"last day of a leap year", 2024, 12, 31, 366},
		{"february 29th in a common year", 2023, 2, 29, 0},
		{"month 13", 2024, 13, 1, 0},
		{"day zero", 2024, 5, 0, 0},
		{"year zero", 0, 5, 1, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, DayOfYear(tt.year, tt.month, tt.day))
		})
	}
}

func TestCyclic(t *testing.T) {
	s, c := Cyclic(6, 24)
	assert.InDelta(t, 1, s, 1e-12)
	assert.InDelta(t, 0, c, 1e-12)

	s, c = Cyclic(12, 12)
	assert.InDelta(t, 0, s, 1e-12)
	assert.InDelta(t, 1, c, 1e-12)
}

func row(year, month, day, hour int) types.EnrichedRow {
	return types.EnrichedRow{
		WeatherObservation: types.WeatherObservation{
			Year: year, Month: month, Day: day, Hour: hour,
			T: 20, Po: 1013, U: 40, Ff: 2,
			N: "0", Nh: "0", W1: "3",
		},
		SZA: types.Value(37.5),
	}
}

func TestEngineerUnitCircle(t *testing.T) {
	var rows []types.EnrichedRow
	for h := 0; h < 24; h++ {
		rows = append(rows, row(2024, h%12+1, h+1, h))
	}

	out, matrix := Engineer(rows)
	require.Len(t, out, len(rows))
	require.Len(t, matrix, len(rows))

	for _, r := range out {
		assert.InDelta(t, 1, math.Pow(r.SinMonth.Float(), 2)+math.Pow(r.CosMonth.Float(), 2), 1e-12)
		assert.InDelta(t, 1, math.Pow(r.SinHour.Float(), 2)+math.Pow(r.CosHour.Float(), 2), 1e-12)
		assert.InDelta(t, 1, math.Pow(r.SinDayYear.Float(), 2)+math.Pow(r.CosDayYear.Float(), 2), 1e-12)
	}
}

func TestEngineerVectorOrder(t *testing.T) {
	_, matrix := Engineer([]types.EnrichedRow{row(2024, 6, 21, 12)})
	require.Len(t, matrix[0], Width)

	v := matrix[0]
	sinM, cosM := Cyclic(6, 12)
	assert.InDelta(t, sinM, v[0], 1e-12)
	assert.InDelta(t, cosM, v[1], 1e-12)
	assert.InDelta(t, 0, v[2], 1e-12) // sin(2π·12/24)
	assert.InDelta(t, -1, v[3], 1e-12)
	sinD, cosD := Cyclic(173, 365)
	assert.InDelta(t, sinD, v[4], 1e-12)
	assert.InDelta(t, cosD, v[5], 1e-12)
	assert.Equal(t, []float64{20, 1013, 40, 2, 37.5, 0, 3, 0}, v[6:])
}

func TestEngineerCoercesToMissing(t *testing.T) {
	r := row(2024, 6, 21, 12)
	r.T = types.Missing()
	r.Ff = types.Missing()
	r.W1 = "clear"
	r.SZA = types.Missing()

	out, matrix := Engineer([]types.EnrichedRow{r})
	require.Len(t, out, 1, "rows with bad values are kept")

	v := matrix[0]
	assert.True(t, math.IsNaN(v[6]), "T")
	assert.True(t, math.IsNaN(v[9]), "Ff")
	assert.True(t, math.IsNaN(v[10]), "SZA")
	assert.True(t, math.IsNaN(v[12]), "W1")
	assert.Equal(t, 1013.0, v[7])
}

func TestEngineerInvalidDate(t *testing.T) {
	out, matrix := Engineer([]types.EnrichedRow{row(2023, 2, 30, 10)})
	assert.Equal(t, 0, out[0].DayOfYear)
	assert.InDelta(t, 0, matrix[0][4], 1e-12)
	assert.InDelta(t, 1, matrix[0][5], 1e-12)
}

func TestEngineerDoesNotMutateInput(t *testing.T) {
	in := []types.EnrichedRow{row(2024, 6, 21, 12)}
	Engineer(in)
	assert.Equal(t, 0, in[0].DayOfYear)
}
