package solar

import "math"

// Declination returns the solar declination in degrees for a day of the year,
// using the sinusoidal approximation that peaks at the solstices.
func Declination(dayOfYear int) float64 {
	return 23.45 * math.Sin(degToRad(360.0/365.0*float64(dayOfYear-81)))
}

// HourAngle returns the solar hour angle in degrees for a clock hour.  offsetHours
// is the difference between local solar time and clock time, for example
// longitude/15 - utcOffset for a site observing standard time.
func HourAngle(hour, offsetHours float64) float64 {
	return 15 * (hour + offsetHours - 12)
}

// Position is the apparent position of the sun.  Azimuth is measured from
// south, positive toward west, which is the convention of IncidenceCosine.
type Position struct {
	SinAltitude float64
	Zenith      float64 // degrees
	Azimuth     float64 // degrees
}

// SunPosition computes the sun's position from latitude, declination and hour
// angle, all in degrees.
func SunPosition(latitude, declination, hourAngle float64) Position {
	lat := degToRad(latitude)
	dec := degToRad(declination)
	w := degToRad(hourAngle)

	sinAlt := math.Sin(lat)*math.Sin(dec) + math.Cos(lat)*math.Cos(dec)*math.Cos(w)
	sinAlt = math.Max(-1, math.Min(1, sinAlt))

	return Position{
		SinAltitude: sinAlt,
		Zenith:      radToDeg(math.Acos(sinAlt)),
		Azimuth:     radToDeg(math.Atan2(math.Sin(w), math.Cos(w)*math.Sin(lat)-math.Tan(dec)*math.Cos(lat))),
	}
}
