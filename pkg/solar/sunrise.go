package solar

import (
	"math"
	"time"
)

// CalculateSunriseSunset returns sunrise and sunset as minutes from midnight UTC
// for the given day-of-year of year at the specified latitude and longitude.
// Returns (-1, -1, nil) for polar day (sun never sets) or polar night (sun never rises).
func CalculateSunriseSunset(year, dayOfYear int, latitude, longitude float64) (sunriseMinutes, sunsetMinutes int, err error) {
	doy := float64(dayOfYear)
	innerAngle := (356.6 + 0.9856*doy) * (math.Pi / 180.0)
	outerAngle := (278.97 + 0.9856*doy + 1.9165*math.Sin(innerAngle)) * (math.Pi / 180.0)
	declinationRad := math.Asin(0.39785 * math.Sin(outerAngle))

	latRad := latitude * (math.Pi / 180.0)

	// At sunrise/sunset cos(H) = -tan(lat) * tan(declination)
	cosH := -math.Tan(latRad) * math.Tan(declinationRad)
	if cosH < -1.0 || cosH > 1.0 {
		return -1, -1, nil
	}

	hourAngleMinutes := math.Acos(cosH) * (180.0 / math.Pi) / 15.0 * 60.0

	refTime := time.Date(year, 1, 1, 12, 0, 0, 0, time.UTC).AddDate(0, 0, dayOfYear-1)
	solarNoonUTC := 720.0 - longitude*4.0 - equationOfTime(refTime)

	sunriseUTC := math.Mod(solarNoonUTC-hourAngleMinutes+1440, 1440)
	sunsetUTC := math.Mod(solarNoonUTC+hourAngleMinutes+1440, 1440)

	return int(math.Round(sunriseUTC)), int(math.Round(sunsetUTC)), nil
}

// SunTimes returns sunrise and sunset on the calendar day of date, in date's
// location.  ok is false during polar day or polar night.
func SunTimes(date time.Time, latitude, longitude float64) (sunrise, sunset time.Time, ok bool) {
	midnightUTC := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, time.UTC)
	rise, set, _ := CalculateSunriseSunset(date.Year(), date.YearDay(), latitude, longitude)
	if rise < 0 || set < 0 {
		return time.Time{}, time.Time{}, false
	}
	sunrise = onLocalDay(midnightUTC.Add(time.Duration(rise)*time.Minute), date)
	sunset = onLocalDay(midnightUTC.Add(time.Duration(set)*time.Minute), date)
	return sunrise, sunset, true
}

// onLocalDay moves t by a day when it lands outside the calendar date of day.
func onLocalDay(t time.Time, day time.Time) time.Time {
	loc := day.Location()
	t = t.In(loc)
	want := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, loc)
	got := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
	switch {
	case got.After(want):
		return t.AddDate(0, 0, -1)
	case got.Before(want):
		return t.AddDate(0, 0, 1)
	}
	return t
}
