// Package export writes pipeline results for people: the full result table,
// the reduced projection and per-day summaries.
package export

import (
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/chrissnell/pvforecast/internal/types"
	"github.com/chrissnell/pvforecast/pkg/csvtable"
	"github.com/chrissnell/pvforecast/pkg/solar"
	"gonum.org/v1/gonum/floats"
)

// ReducedRow is the user-facing projection of a PowerResult.
type ReducedRow struct {
	Year  int         `json:"YEAR" csv:"YEAR"`
	Month int         `json:"MO" csv:"MO"`
	Day   int         `json:"DY" csv:"DY"`
	Hour  int         `json:"HR" csv:"HR"`
	Wel   types.Value `json:"Wel" csv:"Wel"`
}

// Reduce projects results onto (YEAR, MO, DY, HR, Wel).
func Reduce(results []types.PowerResult) []ReducedRow {
	out := make([]ReducedRow, len(results))
	for i, r := range results {
		out[i] = ReducedRow{Year: r.Year, Month: r.Month, Day: r.Day, Hour: r.Hour, Wel: r.Wel}
	}
	return out
}

// WriteCSV writes every PowerResult column.  Missing values are empty cells.
func WriteCSV(w io.Writer, results []types.PowerResult) error {
	if err := csvtable.Encode(w, results); err != nil {
		return fmt.Errorf("could not write results: %w", err)
	}
	return nil
}

// WriteReducedCSV writes the (YEAR, MO, DY, HR, Wel) projection.
func WriteReducedCSV(w io.Writer, results []types.PowerResult) error {
	if err := csvtable.Encode(w, Reduce(results)); err != nil {
		return fmt.Errorf("could not write results: %w", err)
	}
	return nil
}

// DailySummary aggregates one forecast day.
type DailySummary struct {
	Date         string      `json:"date" csv:"date"`
	TotalWel     float64     `json:"total_wel" csv:"total_wel"`
	PeakHour     int         `json:"peak_hour" csv:"peak_hour"`
	PeakWel      types.Value `json:"peak_wel" csv:"peak_wel"`
	Hours        int         `json:"hours" csv:"hours"`
	ClampedHours int         `json:"clamped_hours" csv:"clamped_hours"`
	MissingHours int         `json:"missing_hours" csv:"missing_hours"`
	Sunrise      string      `json:"sunrise,omitempty" csv:"sunrise"`
	Sunset       string      `json:"sunset,omitempty" csv:"sunset"`
}

type dayKey struct{ year, month, day int }

// Summarize groups results by calendar day, in date order.  Hours with a missing
// Wel are counted but not summed.  Sunrise and sunset are given in loc for the
// site and are empty during polar day or night.  PeakHour is -1 when a day has
// no usable hours.
func Summarize(results []types.PowerResult, site types.Site, loc *time.Location) []DailySummary {
	if loc == nil {
		loc = time.UTC
	}

	groups := make(map[dayKey][]types.PowerResult)
	var keys []dayKey
	for _, r := range results {
		k := dayKey{r.Year, r.Month, r.Day}
		if _, ok := groups[k]; !ok {
			keys = append(keys, k)
		}
		groups[k] = append(groups[k], r)
	}
	sort.Slice(keys, func(i, j int) bool {
		a, b := keys[i], keys[j]
		if a.year != b.year {
			return a.year < b.year
		}
		if a.month != b.month {
			return a.month < b.month
		}
		return a.day < b.day
	})

	out := make([]DailySummary, 0, len(keys))
	for _, k := range keys {
		rows := groups[k]
		date := time.Date(k.year, time.Month(k.month), k.day, 12, 0, 0, 0, loc)
		s := DailySummary{
			Date:     fmt.Sprintf("%04d-%02d-%02d", k.year, k.month, k.day),
			PeakHour: -1,
			PeakWel:  types.Missing(),
			Hours:    len(rows),
		}

		var wel []float64
		var hours []int
		for _, r := range rows {
			if r.Clamped {
				s.ClampedHours++
			}
			if !r.Wel.Valid() {
				s.MissingHours++
				continue
			}
			wel = append(wel, r.Wel.Float())
			hours = append(hours, r.Hour)
		}
		if len(wel) > 0 {
			s.TotalWel = floats.Sum(wel)
			peak := floats.MaxIdx(wel)
			s.PeakHour = hours[peak]
			s.PeakWel = types.Value(wel[peak])
		}

		if rise, set, ok := solar.SunTimes(date, site.Latitude, site.Longitude); ok {
			s.Sunrise = rise.Format("15:04")
			s.Sunset = set.Format("15:04")
		}
		out = append(out, s)
	}
	return out
}

// WriteDailyCSV writes daily summaries as a table.
func WriteDailyCSV(w io.Writer, days []DailySummary) error {
	if err := csvtable.Encode(w, days); err != nil {
		return fmt.Errorf("could not write daily summary: %w", err)
	}
	return nil
}
