package solar

import (
	"math"
	"time"

	"github.com/soniakeys/meeus/v3/julian"
)

// Constants
const (
	solarConstant = 1361.0 // Solar constant in W/m², the average solar energy at the top of Earth's atmosphere
)

// degToRad converts an angle from degrees to radians for trigonometric calculations
func degToRad(deg float64) float64 {
	return deg * (math.Pi / 180.0)
}

// radToDeg converts an angle from radians to degrees for human-readable output
func radToDeg(rad float64) float64 {
	return rad * (180.0 / math.Pi)
}

// fixAngle normalizes an angle to the range [0, 360) degrees
func fixAngle(angle float64) float64 {
	return angle - 360.0*math.Floor(angle/360.0)
}

// equationOfTime calculates the Equation of Time (EoT) in minutes, the difference between apparent and mean solar time
func equationOfTime(t time.Time) float64 {
	jd := julian.TimeToJD(t.UTC())
	T := (jd - 2451545.0) / 36525.0 // Julian centuries since J2000.0 (Jan 1, 2000, 12:00 TT)

	// Solar coordinates for EoT calculation
	L0 := fixAngle(280.46646 + T*(36000.76983+T*0.0003032))            // Mean longitude of the Sun (degrees)
	M := fixAngle(357.52911 + T*(35999.05029-T*0.0001537))             // Mean anomaly of the Sun (degrees)
	e := 0.016708634 - T*(0.000042037+T*0.0000001267)                  // Eccentricity of Earth's orbit
	eps0 := 23 + (26+(21.448-T*(46.815+T*(0.00059-T*0.001813)))/60)/60 // Mean obliquity of the ecliptic (degrees)

	y := math.Tan(degToRad(eps0)/2) * math.Tan(degToRad(eps0)/2)
	eqTimeMin := radToDeg(y*math.Sin(degToRad(2*L0))-
		2*e*math.Sin(degToRad(M))+
		4*e*y*math.Sin(degToRad(M))*math.Cos(degToRad(2*L0))-
		0.5*y*y*math.Sin(degToRad(4*L0))-
		1.25*e*e*math.Sin(degToRad(2*M))) * 4 // Convert to minutes (4 min/radian)

	return eqTimeMin
}

// ClearSkyIrradiance is the Ineichen-Perez clear-sky estimate for one instant.
type ClearSkyIrradiance struct {
	Global  float64 // GHI, W/m²
	Diffuse float64 // DHI, W/m²
	Direct  float64 // DNI, W/m²
	Zenith  float64 // solar zenith angle, degrees
}

// ClearSky computes the Ineichen-Perez clear-sky irradiance components at t for a
// site given in degrees and meters.  All components are zero with the sun below the horizon.
func ClearSky(t time.Time, latitude, longitude, altitude float64) ClearSkyIrradiance {
	t = t.UTC()
	N := t.YearDay()

	delta := Declination(N)

	// Hour angle from true solar time, noon = 0°
	utcMin := float64(t.Hour()*60+t.Minute()) + float64(t.Second())/60.0
	tst := utcMin + 4*longitude + equationOfTime(t)
	H := (tst / 4) - 180

	latRad := degToRad(latitude)
	deltaRad := degToRad(delta)
	cosThetaZ := math.Sin(latRad)*math.Sin(deltaRad) + math.Cos(latRad)*math.Cos(deltaRad)*math.Cos(degToRad(H))
	thetaZ := radToDeg(math.Acos(math.Max(-1, math.Min(1, cosThetaZ))))

	out := ClearSkyIrradiance{Zenith: thetaZ}
	if thetaZ >= 90.0 {
		return out
	}

	// Extraterrestrial radiation adjusted for Earth-Sun distance
	G0 := solarConstant * (1 + 0.033*math.Cos(degToRad(360.0*(float64(N)-3)/365.0)))

	TL := 2.0 // Linke turbidity factor, typical for clear skies (range: 2-6)
	// Kasten-Young air mass
	AM := 1.0 / (math.Cos(degToRad(thetaZ)) + 0.50572*math.Pow(96.07995-thetaZ, -1.6364))
	c := 0.7
	a := 0.027
	out.Direct = G0 * c * math.Exp(-a*AM*TL*math.Exp(-altitude/8000.0))
	fh := 0.1 + 0.05*math.Sin(math.Pi*float64(N-100)/365.0)
	out.Diffuse = fh * G0 * math.Sin(degToRad(thetaZ))
	out.Global = out.Direct*math.Cos(degToRad(thetaZ)) + out.Diffuse
	return out
}

// CalculateGHIIneichenPerez computes Global Horizontal Irradiance (GHI) in W/m² using the Ineichen-Perez clear-sky model
func CalculateGHIIneichenPerez(t time.Time, latitude, longitude, altitude float64) float64 {
	return ClearSky(t, latitude, longitude, altitude).Global
}
