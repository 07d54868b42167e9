// Package weather is the boundary with the forecast collaborator: it ingests
// forecast tables, decodes textual condition descriptors and assigns calendar
// dates to hour-only forecasts.
package weather

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/chrissnell/pvforecast/internal/types"
	"github.com/chrissnell/pvforecast/pkg/csvtable"
)

// Columns every forecast table must carry.
var Columns = []string{"YEAR", "MO", "DY", "HR", "N", "Nh", "W1", "T", "Po", "Ff", "U"}

// ReadCSV reads a forecast table.  Only the calendar columns must parse:
// readings that are not numbers become missing and descriptors are kept as text.
func ReadCSV(r io.Reader) ([]types.WeatherObservation, error) {
	var obs []types.WeatherObservation
	if err := csvtable.Decode(r, &obs, Columns...); err != nil {
		if errors.Is(err, csvtable.ErrMissingColumns) {
			return nil, fmt.Errorf("%w: %v", types.ErrSchemaMismatch, err)
		}
		return nil, fmt.Errorf("%w: could not read forecast: %v", types.ErrSchemaMismatch, err)
	}
	return obs, nil
}

// WriteCSV writes a forecast table in the format ReadCSV reads.
func WriteCSV(w io.Writer, obs []types.WeatherObservation) error {
	return csvtable.Encode(w, obs)
}

// AssignDates fills in YEAR, MO and DY for a forecast whose rows only carry
// hours.  The first row falls on today, or on the next day when its hour is 0.
// From the first midnight row onward, every time the hour goes backwards the
// date advances by one day.  The input is not modified.
func AssignDates(obs []types.WeatherObservation, today time.Time) []types.WeatherObservation {
	out := make([]types.WeatherObservation, len(obs))
	copy(out, obs)
	if len(out) == 0 {
		return out
	}

	date := time.Date(today.Year(), today.Month(), today.Day(), 0, 0, 0, 0, time.UTC)
	if out[0].Hour == 0 {
		date = date.AddDate(0, 0, 1)
	}

	tracking := false
	previous := out[0].Hour
	for i := range out {
		if out[i].Hour == 0 {
			tracking = true
		}
		if tracking && out[i].Hour < previous {
			date = date.AddDate(0, 0, 1)
		}
		out[i].Year = date.Year()
		out[i].Month = int(date.Month())
		out[i].Day = date.Day()
		previous = out[i].Hour
	}
	return out
}
