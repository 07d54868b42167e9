package solar

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
)

// IncidenceCosine returns the cosine of the angle between the beam and the normal
// of a surface tilted by tilt degrees and turned by azimuth degrees (from south,
// west positive), for the given latitude, declination and hour angle in degrees.
func IncidenceCosine(latitude, tilt, azimuth, hourAngle, declination float64) float64 {
	b := degToRad(tilt)
	y := degToRad(azimuth)
	w := degToRad(hourAngle)
	d := degToRad(declination)
	l := degToRad(latitude)

	return math.Sin(b)*(math.Cos(d)*(math.Sin(l)*math.Cos(y)*math.Cos(w)+math.Sin(y)*math.Sin(w))-
		math.Sin(d)*math.Cos(l)*math.Cos(y)) +
		math.Cos(b)*(math.Cos(d)*math.Cos(l)*math.Cos(w)+math.Sin(d)*math.Sin(l))
}

// GeometryInput holds the per-row columns the geometry engine consumes.  Every
// slice must have the same length; angles are in degrees.
type GeometryInput struct {
	Diffuse     []float64
	Global      []float64
	Tilt        []float64
	Azimuth     []float64
	HourAngle   []float64
	Declination []float64
	Albedo      []float64
	SinAlt      []float64
}

// Len returns the row count, or an error if the columns disagree.
func (in GeometryInput) Len() (int, error) {
	n := len(in.Global)
	cols := map[string][]float64{
		"diffuse":     in.Diffuse,
		"tilt":        in.Tilt,
		"azimuth":     in.Azimuth,
		"hour angle":  in.HourAngle,
		"declination": in.Declination,
		"albedo":      in.Albedo,
		"sina":        in.SinAlt,
	}
	for name, col := range cols {
		if len(col) != n {
			return 0, fmt.Errorf("column %s has %d rows, expected %d", name, len(col), n)
		}
	}
	return n, nil
}

// PlaneIrradiance holds the plane-of-array decomposition, one entry per row.
type PlaneIrradiance struct {
	Direct       []float64 // global - diffuse
	CosIncidence []float64
	Hnorm        []float64 // direct normalized by sina
	Hbt          []float64 // beam on the tilted plane
	Hdt          []float64 // isotropic sky diffuse on the tilted plane
	Hrt          []float64 // ground reflected
	Hgt          []float64 // Hbt + Hdt + Hrt
}

// TiltedIrradiance converts horizontal irradiance into plane-of-array components.
// The sina division is not guarded: a zero sina yields an infinite or NaN Hnorm,
// and missing inputs (NaN) propagate to every dependent column.  Invalid values
// are left for the yield clamp.
func TiltedIrradiance(latitude float64, in GeometryInput) (PlaneIrradiance, error) {
	n, err := in.Len()
	if err != nil {
		return PlaneIrradiance{}, err
	}

	out := PlaneIrradiance{
		Direct:       make([]float64, n),
		CosIncidence: make([]float64, n),
		Hnorm:        make([]float64, n),
		Hbt:          make([]float64, n),
		Hdt:          make([]float64, n),
		Hrt:          make([]float64, n),
		Hgt:          make([]float64, n),
	}

	floats.SubTo(out.Direct, in.Global, in.Diffuse)
	for i := 0; i < n; i++ {
		out.CosIncidence[i] = IncidenceCosine(latitude, in.Tilt[i], in.Azimuth[i], in.HourAngle[i], in.Declination[i])
	}
	floats.DivTo(out.Hnorm, out.Direct, in.SinAlt)
	floats.MulTo(out.Hbt, out.Hnorm, out.CosIncidence)

	for i := 0; i < n; i++ {
		cosTilt := math.Cos(degToRad(in.Tilt[i]))
		out.Hdt[i] = in.Diffuse[i] * (1 + cosTilt) / 2
		out.Hrt[i] = in.Albedo[i] * in.Global[i] * (1 - cosTilt) / 2
	}

	floats.AddTo(out.Hgt, out.Hbt, out.Hdt)
	floats.Add(out.Hgt, out.Hrt)

	return out, nil
}
