package types

import (
	"fmt"
	"math"

	"github.com/hashicorp/go-multierror"
)

// DefaultLatitude is the latitude of the installation the reference tables were built for.
const DefaultLatitude = 52.3

// Site describes where the panel is installed.
type Site struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Altitude  float64 `json:"altitude"`
}

// PanelConfiguration is supplied once per pipeline invocation.  Efficiency is a
// fraction in (0,1]; Length and Width are in meters.  In fixed mode Tilt and
// Azimuth (degrees) are applied to every row.  In optimal mode they are ignored
// and the per-hour orientation of the astronomical table is used.
type PanelConfiguration struct {
	Efficiency float64  `json:"efficiency"`
	Length     float64  `json:"length"`
	Width      float64  `json:"width"`
	Optimal    bool     `json:"optimal"`
	Tilt       *float64 `json:"tilt,omitempty"`
	Azimuth    *float64 `json:"azimuth,omitempty"`
}

// NewPanelConfiguration converts the user-facing configuration surface (efficiency
// in percent) into a PanelConfiguration.
func NewPanelConfiguration(efficiencyPercent, length, width float64, optimal bool, azimuth, tilt *float64) (PanelConfiguration, error) {
	if math.IsNaN(efficiencyPercent) || efficiencyPercent <= 0 || efficiencyPercent > 100 {
		return PanelConfiguration{}, fmt.Errorf("%w: efficiency %v%% is outside (0,100]", ErrInvalidConfiguration, efficiencyPercent)
	}
	p := PanelConfiguration{
		Efficiency: efficiencyPercent / 100,
		Length:     length,
		Width:      width,
		Optimal:    optimal,
		Tilt:       tilt,
		Azimuth:    azimuth,
	}
	if err := p.Validate(); err != nil {
		return PanelConfiguration{}, err
	}
	return p, nil
}

// Area returns the panel area in square meters.
func (p PanelConfiguration) Area() float64 {
	return p.Length * p.Width
}

// Validate reports every problem with the configuration at once.
func (p PanelConfiguration) Validate() error {
	var result *multierror.Error

	if !(p.Efficiency > 0 && p.Efficiency <= 1) {
		result = multierror.Append(result, fmt.Errorf("efficiency %v is outside (0,1]", p.Efficiency))
	}
	if !(p.Length > 0) {
		result = multierror.Append(result, fmt.Errorf("length must be positive, got %v", p.Length))
	}
	if !(p.Width > 0) {
		result = multierror.Append(result, fmt.Errorf("width must be positive, got %v", p.Width))
	}
	if !p.Optimal {
		if p.Tilt == nil || math.IsNaN(*p.Tilt) {
			result = multierror.Append(result, fmt.Errorf("tilt is required in fixed orientation mode"))
		}
		if p.Azimuth == nil || math.IsNaN(*p.Azimuth) {
			result = multierror.Append(result, fmt.Errorf("azimuth is required in fixed orientation mode"))
		}
	}

	if err := result.ErrorOrNil(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfiguration, err)
	}
	return nil
}
