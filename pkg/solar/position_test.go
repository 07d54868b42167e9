package solar

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDeclination(t *testing.T) {
	assert.InDelta(t, 0, Declination(81), 1e-9)
	assert.InDelta(t, 23.45, Declination(172), 0.1)
	assert.InDelta(t, -23.45, Declination(355), 0.1)
}

func TestHourAngle(t *testing.T) {
	assert.Equal(t, 0.0, HourAngle(12, 0))
	assert.Equal(t, -90.0, HourAngle(6, 0))
	assert.InDelta(t, -15.75, HourAngle(12, -1.05), 1e-9)
}

func TestSunPosition(t *testing.T) {
	noon := SunPosition(52.3, 0, 0)
	assert.InDelta(t, 52.3, noon.Zenith, 1e-9)
	assert.InDelta(t, 0, noon.Azimuth, 1e-9)

	morning := SunPosition(52.3, 10, -45)
	afternoon := SunPosition(52.3, 10, 45)
	assert.Less(t, morning.Azimuth, 0.0, "morning sun is east of south")
	assert.Greater(t, afternoon.Azimuth, 0.0, "afternoon sun is west of south")
	assert.InDelta(t, morning.SinAltitude, afternoon.SinAltitude, 1e-12)

	midnight := SunPosition(52.3, -20, 180)
	assert.Less(t, midnight.SinAltitude, 0.0)
}

func TestClearSky(t *testing.T) {
	// Solar noon in Irkutsk is around 05:00 UTC.
	noon := ClearSky(time.Date(2024, time.June, 21, 5, 0, 0, 0, time.UTC), 52.3, 104.3, 450)
	assert.Greater(t, noon.Global, 600.0)
	assert.Less(t, noon.Global, 1100.0)
	assert.Greater(t, noon.Diffuse, 0.0)
	assert.Less(t, noon.Diffuse, noon.Global)
	assert.InDelta(t, noon.Global, CalculateGHIIneichenPerez(time.Date(2024, time.June, 21, 5, 0, 0, 0, time.UTC), 52.3, 104.3, 450), 1e-9)

	night := ClearSky(time.Date(2024, time.June, 21, 17, 0, 0, 0, time.UTC), 52.3, 104.3, 450)
	assert.Equal(t, 0.0, night.Global)
	assert.Equal(t, 0.0, night.Diffuse)
	assert.GreaterOrEqual(t, night.Zenith, 90.0)
}
