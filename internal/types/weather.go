package types

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// Field is a raw weather descriptor as handed over by the forecast collaborator.
// Cloud and condition descriptors stay textual until the feature engineer
// coerces them, so a value such as "clear" survives for the code lookup.
type Field string

// UnmarshalJSON accepts JSON strings, numbers and null.
func (f *Field) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*f = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = Field(s)
		return nil
	}
	*f = Field(b)
	return nil
}

// Float parses the field as a number.  Anything that is not a finite number
// (including the empty string) comes back as NaN.
func (f Field) Float() float64 {
	s := strings.TrimSpace(string(f))
	if s == "" {
		return math.NaN()
	}
	s = strings.Replace(s, ",", ".", 1)
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsInf(v, 0) {
		return math.NaN()
	}
	return v
}

// Value is a float64 in which NaN marks a missing value.  It encodes as null in
// JSON and as an empty cell in CSV.
type Value float64

// Missing returns the missing marker.
func Missing() Value {
	return Value(math.NaN())
}

// Valid reports whether v holds a finite number.
func (v Value) Valid() bool {
	f := float64(v)
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

// Float returns v as a float64.
func (v Value) Float() float64 {
	return float64(v)
}

// MarshalJSON encodes missing and non-finite values as null.
func (v Value) MarshalJSON() ([]byte, error) {
	if !v.Valid() {
		return []byte("null"), nil
	}
	return []byte(strconv.FormatFloat(float64(v), 'g', -1, 64)), nil
}

// UnmarshalJSON accepts numbers, numeric strings and null.  Anything that does
// not parse as a number decodes as missing.
func (v *Value) UnmarshalJSON(b []byte) error {
	var f Field
	if err := f.UnmarshalJSON(b); err != nil {
		return err
	}
	*v = Value(f.Float())
	return nil
}

// MarshalCSV encodes missing values as an empty cell.
func (v Value) MarshalCSV() (string, error) {
	if !v.Valid() {
		return "", nil
	}
	return strconv.FormatFloat(float64(v), 'g', -1, 64), nil
}

// UnmarshalCSV decodes an empty or non-numeric cell as missing.
func (v *Value) UnmarshalCSV(s string) error {
	*v = Value(Field(s).Float())
	return nil
}

// CalendarKey is the join key shared by the weather frame and the astronomical table.
type CalendarKey struct {
	Month int
	Day   int
	Hour  int
}

// WeatherObservation is one forecast hour as delivered by the weather collaborator.
// The measured quantities are coerced as they are decoded: a value that is not a
// number becomes missing and the row is kept.
type WeatherObservation struct {
	Year  int   `json:"YEAR" csv:"YEAR"`
	Month int   `json:"MO" csv:"MO"`
	Day   int   `json:"DY" csv:"DY"`
	Hour  int   `json:"HR" csv:"HR"`
	N     Field `json:"N" csv:"N"`
	Nh    Field `json:"Nh" csv:"Nh"`
	W1    Field `json:"W1" csv:"W1"`
	T     Value `json:"T" csv:"T"`
	Po    Value `json:"Po" csv:"Po"`
	Ff    Value `json:"Ff" csv:"Ff"`
	U     Value `json:"U" csv:"U"`
}

// Key returns the reference-table join key of the observation.
func (o WeatherObservation) Key() CalendarKey {
	return CalendarKey{Month: o.Month, Day: o.Day, Hour: o.Hour}
}

// AstronomicalRecord holds the solar-geometry constants for one (month, day, hour).
// Angles are stored in degrees.
type AstronomicalRecord struct {
	Month       int     `csv:"MO"`
	Day         int     `csv:"DY"`
	Hour        int     `csv:"HR"`
	SZA         float64 `csv:"SZA"`
	Albedo      float64 `csv:"ALB"`
	DayNumber   float64 `csv:"NDAY"`
	Declination float64 `csv:"delta"`
	SinAlt      float64 `csv:"sina"`
	Tilt        Value   `csv:"beta"`
	Azimuth     Value   `csv:"y"`
}

// Key returns the join key of the record.
func (a AstronomicalRecord) Key() CalendarKey {
	return CalendarKey{Month: a.Month, Day: a.Day, Hour: a.Hour}
}

// HourAngleRecord holds the solar hour angle, in degrees, for one hour of the day.
type HourAngleRecord struct {
	Hour      int     `csv:"HR"`
	HourAngle float64 `csv:"w"`
}

// EnrichedRow is a weather observation joined with its reference data and the
// cyclic calendar features.  Reference fields are missing when the join found no
// matching row.
type EnrichedRow struct {
	WeatherObservation

	SZA         Value `json:"SZA" csv:"SZA"`
	Albedo      Value `json:"ALB" csv:"ALB"`
	DayNumber   Value `json:"NDAY" csv:"NDAY"`
	Declination Value `json:"delta" csv:"delta"`
	SinAlt      Value `json:"sina" csv:"sina"`
	Tilt        Value `json:"beta" csv:"beta"`
	Azimuth     Value `json:"y" csv:"y"`
	HourAngle   Value `json:"w" csv:"w"`

	DayOfYear  int   `json:"DayOfYear" csv:"DayOfYear"`
	SinMonth   Value `json:"sin_month" csv:"sin_month"`
	CosMonth   Value `json:"cos_month" csv:"cos_month"`
	SinHour    Value `json:"sin_hour" csv:"sin_hour"`
	CosHour    Value `json:"cos_hour" csv:"cos_hour"`
	SinDayYear Value `json:"sin_day_year" csv:"sin_day_year"`
	CosDayYear Value `json:"cos_day_year" csv:"cos_day_year"`

	MissingReference bool `json:"missing_reference" csv:"-"`
}

// IrradiancePrediction is the regression model output for one row.
type IrradiancePrediction struct {
	Diffuse Value `json:"ALLSKY_SFC_SW_DIFF" csv:"ALLSKY_SFC_SW_DIFF"`
	Global  Value `json:"ALLSKY_SFC_SW_DWN" csv:"ALLSKY_SFC_SW_DWN"`
}

// PowerResult is the final per-hour record of a pipeline run.
type PowerResult struct {
	EnrichedRow
	IrradiancePrediction

	Direct       Value `json:"rad_pram" csv:"rad_pram"`
	CosIncidence Value `json:"cos" csv:"cos"`
	Hnorm        Value `json:"Hnorm" csv:"Hnorm"`
	Hbt          Value `json:"Hbt" csv:"Hbt"`
	Hdt          Value `json:"Hdt" csv:"Hdt"`
	Hrt          Value `json:"Hrt" csv:"Hrt"`
	Hgt          Value `json:"Hgt" csv:"Hgt"`
	Tmod         Value `json:"Tmod" csv:"Tmod"`
	Tyach        Value `json:"Tyach" csv:"Tyach"`
	W            Value `json:"W" csv:"W"`
	Wel          Value `json:"Wel" csv:"Wel"`

	Clamped bool `json:"clamped" csv:"-"`
}
