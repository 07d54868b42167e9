package reference

import (
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"time"

	"github.com/chrissnell/pvforecast/internal/types"
	"github.com/chrissnell/pvforecast/pkg/csvtable"
	"github.com/chrissnell/pvforecast/pkg/solar"
)

// Default file names inside a reference data directory.
const (
	AstronomicalFile = "astronomical.csv"
	HourAngleFile    = "hour_angle.csv"
)

// DefaultAlbedo is the ground reflectance used when none is given.
const DefaultAlbedo = 0.2

// GenerateOptions describes the site and year a pair of tables is built for.
type GenerateOptions struct {
	Site      types.Site
	UTCOffset float64 // hours between the forecast's clock and UTC
	Year      int
	Albedo    float64
}

// solarOffset is the difference, in hours, between local mean solar time and
// the forecast's clock.
func (o GenerateOptions) solarOffset() float64 {
	return o.Site.Longitude/15 - o.UTCOffset
}

// Generate builds the astronomical table for every hour of every day of the
// year, and the matching hour-angle table.
//
// The optimal orientation points the panel at the sun: the tilt equals the
// zenith angle and the azimuth follows the sun.  While the sun is below the
// horizon the panel rests at the latitude tilt facing south.
func Generate(opts GenerateOptions) (*Tables, error) {
	if opts.Year < 1 {
		return nil, fmt.Errorf("%w: year %d", types.ErrInvalidConfiguration, opts.Year)
	}
	if math.Abs(opts.Site.Latitude) > 90 {
		return nil, fmt.Errorf("%w: latitude %v", types.ErrInvalidConfiguration, opts.Site.Latitude)
	}
	if opts.Albedo < 0 || opts.Albedo > 1 {
		return nil, fmt.Errorf("%w: albedo %v", types.ErrInvalidConfiguration, opts.Albedo)
	}

	offset := opts.solarOffset()

	hourAngles := make([]types.HourAngleRecord, 24)
	for hr := range hourAngles {
		hourAngles[hr] = types.HourAngleRecord{Hour: hr, HourAngle: solar.HourAngle(float64(hr), offset)}
	}

	var astronomical []types.AstronomicalRecord
	day := time.Date(opts.Year, time.January, 1, 0, 0, 0, 0, time.UTC)
	for ; day.Year() == opts.Year; day = day.AddDate(0, 0, 1) {
		doy := day.YearDay()
		decl := solar.Declination(doy)

		for _, ha := range hourAngles {
			pos := solar.SunPosition(opts.Site.Latitude, decl, ha.HourAngle)

			tilt, azimuth := opts.Site.Latitude, 0.0
			if pos.SinAltitude > 0 {
				tilt = math.Max(0, math.Min(90, pos.Zenith))
				azimuth = pos.Azimuth
			}

			astronomical = append(astronomical, types.AstronomicalRecord{
				Month:       int(day.Month()),
				Day:         day.Day(),
				Hour:        ha.Hour,
				SZA:         pos.Zenith,
				Albedo:      opts.Albedo,
				DayNumber:   float64(doy),
				Declination: decl,
				SinAlt:      pos.SinAltitude,
				Tilt:        types.Value(tilt),
				Azimuth:     types.Value(azimuth),
			})
		}
	}

	return NewTables(astronomical, hourAngles)
}

// WriteAstronomical writes the astronomical table in the loader's format.
func WriteAstronomical(w io.Writer, t *Tables) error {
	return csvtable.Encode(w, t.AstronomicalRecords())
}

// WriteHourAngles writes the hour-angle table in the loader's format.
func WriteHourAngles(w io.Writer, t *Tables) error {
	return csvtable.Encode(w, t.HourAngleRecords())
}

// WriteDir writes both tables into dir under their default file names.
func WriteDir(dir string, t *Tables) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	if err := writeFile(filepath.Join(dir, AstronomicalFile), func(w io.Writer) error { return WriteAstronomical(w, t) }); err != nil {
		return err
	}
	return writeFile(filepath.Join(dir, HourAngleFile), func(w io.Writer) error { return WriteHourAngles(w, t) })
}

func writeFile(path string, write func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := write(f); err != nil {
		f.Close()
		return fmt.Errorf("could not write %s: %w", path, err)
	}
	return f.Close()
}
