// Package features derives the predictor's input matrix from merged weather rows.
package features

import (
	"math"
	"time"

	"github.com/chrissnell/pvforecast/internal/types"
	"github.com/soniakeys/meeus/v3/julian"
)

// Names is the positional schema of a feature vector.  The irradiance model is
// schema-positional, so the order is part of its contract.
var Names = []string{
	"sin_month", "cos_month",
	"sin_hour", "cos_hour",
	"sin_day_year", "cos_day_year",
	"T", "Po", "U", "Ff", "SZA", "N", "W1", "Nh",
}

// Width is the length of a feature vector.
var Width = len(Names)

// Cycle periods.
const (
	monthsPerYear = 12
	hoursPerDay   = 24
	daysPerYear   = 365
)

// DayOfYear returns the ordinal day of the Gregorian date, or 0 when the date does
// not exist (month 13, February 30th and so on).
func DayOfYear(year, month, day int) int {
	if year < 1 || year > 9999 || month < 1 || month > 12 || day < 1 {
		return 0
	}
	t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	if t.Year() != year || int(t.Month()) != month || t.Day() != day {
		return 0
	}
	return julian.DayOfYearGregorian(year, month, day)
}

// Cyclic maps value on a cycle of the given period onto the unit circle.
func Cyclic(value, period float64) (sin, cos float64) {
	angle := 2 * math.Pi * value / period
	return math.Sin(angle), math.Cos(angle)
}

// Engineer fills the calendar features of every row and returns the updated rows
// along with the feature matrix, one vector per row in the order of Names.
// Descriptors that are not numeric become NaN; the rows themselves are never dropped.
func Engineer(rows []types.EnrichedRow) ([]types.EnrichedRow, [][]float64) {
	out := make([]types.EnrichedRow, len(rows))
	matrix := make([][]float64, len(rows))

	for i, r := range rows {
		r.DayOfYear = DayOfYear(r.Year, r.Month, r.Day)

		sinM, cosM := Cyclic(float64(r.Month), monthsPerYear)
		sinH, cosH := Cyclic(float64(r.Hour), hoursPerDay)
		sinD, cosD := Cyclic(float64(r.DayOfYear), daysPerYear)
		r.SinMonth, r.CosMonth = types.Value(sinM), types.Value(cosM)
		r.SinHour, r.CosHour = types.Value(sinH), types.Value(cosH)
		r.SinDayYear, r.CosDayYear = types.Value(sinD), types.Value(cosD)

		out[i] = r
		matrix[i] = Vector(r)
	}
	return out, matrix
}

// Vector builds the feature vector of a single row whose calendar features are
// already populated.
func Vector(r types.EnrichedRow) []float64 {
	return []float64{
		r.SinMonth.Float(), r.CosMonth.Float(),
		r.SinHour.Float(), r.CosHour.Float(),
		r.SinDayYear.Float(), r.CosDayYear.Float(),
		r.T.Float(),
		r.Po.Float(),
		r.U.Float(),
		r.Ff.Float(),
		r.SZA.Float(),
		r.N.Float(),
		r.W1.Float(),
		r.Nh.Float(),
	}
}
