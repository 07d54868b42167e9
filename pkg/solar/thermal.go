package solar

import (
	"fmt"
	"math"
)

// Thermal and derating constants of the empirical module model.
const (
	windCoolingA     = -3.47
	windCoolingB     = -0.075
	cellRisePerKWm2  = 2.5  // °C of cell over module temperature per 1000 W/m²
	referenceTempC   = 25.0 // STC cell temperature
	tempCoefficientP = 0.47 // % power loss per °C above reference
)

// ModuleTemperature estimates the module temperature from plane-of-array
// irradiance, wind speed and ambient temperature.
func ModuleTemperature(hgt, wind, ambient float64) float64 {
	return hgt*math.Exp(windCoolingA+windCoolingB*wind) + ambient
}

// CellTemperature estimates the cell temperature from the module temperature.
func CellTemperature(tmod, hgt float64) float64 {
	return tmod + (hgt/1000)*cellRisePerKWm2
}

// Derate applies the linear temperature derating around the 25°C reference.
func Derate(hgt, tcell float64) float64 {
	return hgt * (1 - tempCoefficientP*(tcell-referenceTempC)/100)
}

// Panel is the electrical side of a PV panel.  Efficiency is a fraction.
type Panel struct {
	Efficiency float64
	Length     float64
	Width      float64
}

// Yield holds the thermal and electrical columns, one entry per row.
type Yield struct {
	Tmod  []float64
	Tyach []float64
	W     []float64
	Wel   []float64
}

// ElectricalYield runs the thermal model and converts plane-of-array irradiance
// into electrical output for each row.  No clamping is applied here.
func ElectricalYield(p Panel, hgt, wind, ambient []float64) (Yield, error) {
	n := len(hgt)
	if len(wind) != n || len(ambient) != n {
		return Yield{}, fmt.Errorf("column lengths differ: hgt=%d wind=%d ambient=%d", n, len(wind), len(ambient))
	}

	y := Yield{
		Tmod:  make([]float64, n),
		Tyach: make([]float64, n),
		W:     make([]float64, n),
		Wel:   make([]float64, n),
	}
	area := p.Efficiency * p.Length * p.Width
	for i := 0; i < n; i++ {
		y.Tmod[i] = ModuleTemperature(hgt[i], wind[i], ambient[i])
		y.Tyach[i] = CellTemperature(y.Tmod[i], hgt[i])
		y.W[i] = Derate(hgt[i], y.Tyach[i])
		y.Wel[i] = y.W[i] * area
	}
	return y, nil
}

// ShouldClamp reports whether an hour's electrical output is physically
// meaningless and must read as zero: negative output, the sun at or below the
// horizon (sina <= 0), or an infinite output while sina is known.  A missing
// (NaN) output with a missing sina is not clamped.
func ShouldClamp(wel, sina float64) bool {
	switch {
	case wel < 0:
		return true
	case sina <= 0:
		return true
	case math.IsInf(wel, 0) && !math.IsNaN(sina):
		return true
	}
	return false
}

// ClampYield zeroes wel in place wherever ShouldClamp holds and returns a mask of
// the clamped rows.
func ClampYield(wel, sina []float64) ([]bool, error) {
	if len(wel) != len(sina) {
		return nil, fmt.Errorf("column lengths differ: wel=%d sina=%d", len(wel), len(sina))
	}
	clamped := make([]bool, len(wel))
	for i := range wel {
		if ShouldClamp(wel[i], sina[i]) {
			wel[i] = 0
			clamped[i] = true
		}
	}
	return clamped, nil
}
