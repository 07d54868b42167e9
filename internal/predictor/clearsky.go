package predictor

import (
	"math"
	"time"

	"github.com/chrissnell/pvforecast/internal/types"
	"github.com/chrissnell/pvforecast/pkg/solar"
)

// ClearSky ignores the weather and returns the Ineichen-Perez clear-sky
// irradiance for each row's day and hour.  The day of year and the local clock
// hour are recovered from the row's cyclic features, so it satisfies the same
// positional contract as a trained model.
type ClearSky struct {
	site      types.Site
	utcOffset float64
	year      int
}

// NewClearSky returns a clear-sky predictor for site.  utcOffset converts the
// forecast's local clock hours to UTC.  A zero year means the current year.
func NewClearSky(site types.Site, utcOffset float64, year int) *ClearSky {
	if year == 0 {
		year = time.Now().Year()
	}
	return &ClearSky{site: site, utcOffset: utcOffset, year: year}
}

// decodeCycle inverts features.Cyclic, returning a value in [0, period).
func decodeCycle(sin, cos, period float64) float64 {
	v := math.Atan2(sin, cos) * period / (2 * math.Pi)
	if v < 0 {
		v += period
	}
	return v
}

// Predict implements Predictor.
func (c *ClearSky) Predict(matrix [][]float64) ([]float64, []float64, error) {
	if err := checkMatrix(matrix); err != nil {
		return nil, nil, err
	}

	diffuse := make([]float64, len(matrix))
	global := make([]float64, len(matrix))
	jan1 := time.Date(c.year, time.January, 1, 0, 0, 0, 0, time.UTC)

	for i, x := range matrix {
		hour := math.Round(decodeCycle(x[2], x[3], 24))
		doy := int(math.Round(decodeCycle(x[4], x[5], 365)))
		if doy == 0 {
			doy = 365
		}
		local := jan1.AddDate(0, 0, doy-1).Add(time.Duration(hour * float64(time.Hour)))
		utc := local.Add(-time.Duration(c.utcOffset * float64(time.Hour)))

		cs := solar.ClearSky(utc, c.site.Latitude, c.site.Longitude, c.site.Altitude)
		diffuse[i] = cs.Diffuse
		global[i] = cs.Global
	}
	return diffuse, global, nil
}
