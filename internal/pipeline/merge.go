package pipeline

import (
	"github.com/chrissnell/pvforecast/internal/reference"
	"github.com/chrissnell/pvforecast/internal/types"
)

// Merge left-joins the reference tables onto the weather rows.  Every weather
// row produces exactly one enriched row, in input order.  A row without a
// matching astronomical or hour-angle record keeps missing (NaN) reference
// fields and is flagged; it is never defaulted to zero.
//
// In optimal mode tilt and azimuth come from the astronomical record.  In fixed
// mode the panel's tilt and azimuth are broadcast to every row.
func Merge(tables *reference.Tables, weather []types.WeatherObservation, panel types.PanelConfiguration) ([]types.EnrichedRow, int) {
	rows := make([]types.EnrichedRow, len(weather))
	missing := 0

	for i, obs := range weather {
		r := types.EnrichedRow{
			WeatherObservation: obs,
			SZA:                types.Missing(),
			Albedo:             types.Missing(),
			DayNumber:          types.Missing(),
			Declination:        types.Missing(),
			SinAlt:             types.Missing(),
			Tilt:               types.Missing(),
			Azimuth:            types.Missing(),
			HourAngle:          types.Missing(),
		}

		astro, okAstro := tables.Astronomical(obs.Key())
		if okAstro {
			r.SZA = types.Value(astro.SZA)
			r.Albedo = types.Value(astro.Albedo)
			r.DayNumber = types.Value(astro.DayNumber)
			r.Declination = types.Value(astro.Declination)
			r.SinAlt = types.Value(astro.SinAlt)
			if panel.Optimal {
				r.Tilt = astro.Tilt
				r.Azimuth = astro.Azimuth
			}
		}
		if !panel.Optimal {
			r.Tilt = types.Value(*panel.Tilt)
			r.Azimuth = types.Value(*panel.Azimuth)
		}

		ha, okHour := tables.HourAngle(obs.Hour)
		if okHour {
			r.HourAngle = types.Value(ha.HourAngle)
		}

		if !okAstro || !okHour {
			r.MissingReference = true
			missing++
		}
		rows[i] = r
	}
	return rows, missing
}
