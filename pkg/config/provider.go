// Package config loads the pvforecast configuration from YAML or SQLite and
// applies PVFORECAST_* environment overrides.
package config

import (
	"fmt"
	"math"
	"time"

	"github.com/chrissnell/pvforecast/internal/types"
	"github.com/hashicorp/go-multierror"
)

// ConfigProvider defines the interface for configuration data sources
type ConfigProvider interface {
	// Load complete configuration
	LoadConfig() (*ConfigData, error)

	IsReadOnly() bool
	Close() error
}

// ConfigData represents the complete configuration structure
type ConfigData struct {
	Site      SiteData      `json:"site" yaml:"site"`
	Panel     PanelData     `json:"panel" yaml:"panel"`
	Reference ReferenceData `json:"reference" yaml:"reference"`
	Model     ModelData     `json:"model" yaml:"model"`
	Storage   StorageData   `json:"storage,omitempty" yaml:"storage,omitempty"`
	Server    ServerData    `json:"server,omitempty" yaml:"server,omitempty"`
}

// SiteData locates the installation.  Timezone, when set, is used for calendar
// dates; UTCOffset (hours) is used for the hour angle.
type SiteData struct {
	Latitude  float64 `json:"latitude" yaml:"latitude"`
	Longitude float64 `json:"longitude" yaml:"longitude"`
	Altitude  float64 `json:"altitude" yaml:"altitude"`
	UTCOffset float64 `json:"utc_offset" yaml:"utc_offset"`
	Timezone  string  `json:"timezone,omitempty" yaml:"timezone,omitempty"`
}

// PanelData is the user-facing panel configuration.  Efficiency is in percent.
type PanelData struct {
	Efficiency         float64  `json:"efficiency" yaml:"efficiency"`
	Length             float64  `json:"length" yaml:"length"`
	Width              float64  `json:"width" yaml:"width"`
	OptimalOrientation bool     `json:"optimal_orientation" yaml:"optimal_orientation"`
	Azimuth            *float64 `json:"azimuth,omitempty" yaml:"azimuth,omitempty"`
	Tilt               *float64 `json:"tilt,omitempty" yaml:"tilt,omitempty"`
}

// ReferenceData points at the static reference tables.
type ReferenceData struct {
	Astronomical string `json:"astronomical" yaml:"astronomical"`
	HourAngle    string `json:"hour_angle" yaml:"hour_angle"`
	Codebook     string `json:"codebook,omitempty" yaml:"codebook,omitempty"`
}

// ModelData selects the irradiance predictor.
type ModelData struct {
	Type string `json:"type" yaml:"type"`
	Path string `json:"path,omitempty" yaml:"path,omitempty"`
}

// StorageData holds the configuration for the result store.  At most one
// backend may be set.
type StorageData struct {
	SQLite      *SQLiteData      `json:"sqlite,omitempty" yaml:"sqlite,omitempty"`
	TimescaleDB *TimescaleDBData `json:"timescaledb,omitempty" yaml:"timescaledb,omitempty"`
}

type SQLiteData struct {
	Path string `json:"path" yaml:"path"`
}

type TimescaleDBData struct {
	ConnectionString string `json:"connection_string" yaml:"connection_string"`
}

// ServerData configures the REST server.
type ServerData struct {
	ListenAddr string `json:"listen_addr,omitempty" yaml:"listen_addr,omitempty"`
	Port       int    `json:"port,omitempty" yaml:"port,omitempty"`
	Cert       string `json:"cert,omitempty" yaml:"cert,omitempty"`
	Key        string `json:"key,omitempty" yaml:"key,omitempty"`
}

// Model types understood by the predictor loader.
var modelTypes = map[string]bool{"": true, "forest": true, "linear": true, "clearsky": true}

// Default returns the configuration every provider starts from.  The site
// defaults to the installation the bundled reference tables describe.
func Default() *ConfigData {
	return &ConfigData{
		Site: SiteData{
			Latitude:  types.DefaultLatitude,
			Longitude: 104.3,
			Altitude:  440,
			UTCOffset: 8,
		},
		Reference: ReferenceData{
			Astronomical: "data/astronomical.csv",
			HourAngle:    "data/hour_angle.csv",
		},
		Model:  ModelData{Type: "forest", Path: "data/model.json"},
		Server: ServerData{Port: 8080},
	}
}

// Site returns the site as the pipeline sees it.
func (s SiteData) Site() types.Site {
	return types.Site{Latitude: s.Latitude, Longitude: s.Longitude, Altitude: s.Altitude}
}

// Location returns the site's time zone: the named Timezone if set, otherwise a
// fixed zone at UTCOffset.
func (s SiteData) Location() (*time.Location, error) {
	if s.Timezone != "" {
		return time.LoadLocation(s.Timezone)
	}
	return time.FixedZone(fmt.Sprintf("UTC%+g", s.UTCOffset), int(math.Round(s.UTCOffset*3600))), nil
}

// Configuration converts the panel section into a validated PanelConfiguration.
func (p PanelData) Configuration() (types.PanelConfiguration, error) {
	return types.NewPanelConfiguration(p.Efficiency, p.Length, p.Width, p.OptimalOrientation, p.Azimuth, p.Tilt)
}

// Validate reports every problem with the configuration at once.
func (c *ConfigData) Validate() error {
	var result *multierror.Error

	if math.IsNaN(c.Site.Latitude) || math.Abs(c.Site.Latitude) > 90 {
		result = multierror.Append(result, fmt.Errorf("site latitude %v is outside [-90,90]", c.Site.Latitude))
	}
	if math.IsNaN(c.Site.Longitude) || math.Abs(c.Site.Longitude) > 180 {
		result = multierror.Append(result, fmt.Errorf("site longitude %v is outside [-180,180]", c.Site.Longitude))
	}
	if math.IsNaN(c.Site.UTCOffset) || math.Abs(c.Site.UTCOffset) > 14 {
		result = multierror.Append(result, fmt.Errorf("site utc_offset %v is outside [-14,14]", c.Site.UTCOffset))
	}
	if _, err := c.Site.Location(); err != nil {
		result = multierror.Append(result, fmt.Errorf("site timezone: %v", err))
	}

	// The panel may be left out entirely when every request brings its own.
	if c.Panel != (PanelData{}) {
		if _, err := c.Panel.Configuration(); err != nil {
			result = multierror.Append(result, fmt.Errorf("panel: %v", err))
		}
	}

	if c.Reference.Astronomical == "" {
		result = multierror.Append(result, fmt.Errorf("reference.astronomical is required"))
	}
	if c.Reference.HourAngle == "" {
		result = multierror.Append(result, fmt.Errorf("reference.hour_angle is required"))
	}

	if !modelTypes[c.Model.Type] {
		result = multierror.Append(result, fmt.Errorf("unknown model type %q", c.Model.Type))
	} else if c.Model.Type != "clearsky" && c.Model.Path == "" {
		result = multierror.Append(result, fmt.Errorf("model.path is required for model type %q", c.Model.Type))
	}

	if c.Storage.SQLite != nil && c.Storage.TimescaleDB != nil {
		result = multierror.Append(result, fmt.Errorf("only one of storage.sqlite and storage.timescaledb may be set"))
	}
	if c.Storage.SQLite != nil && c.Storage.SQLite.Path == "" {
		result = multierror.Append(result, fmt.Errorf("storage.sqlite.path is required"))
	}
	if c.Storage.TimescaleDB != nil && c.Storage.TimescaleDB.ConnectionString == "" {
		result = multierror.Append(result, fmt.Errorf("storage.timescaledb.connection_string is required"))
	}

	if c.Server.Port < 0 || c.Server.Port > 65535 {
		result = multierror.Append(result, fmt.Errorf("server port %d is out of range", c.Server.Port))
	}
	if (c.Server.Cert == "") != (c.Server.Key == "") {
		result = multierror.Append(result, fmt.Errorf("server cert and key must be set together"))
	}

	if err := result.ErrorOrNil(); err != nil {
		return fmt.Errorf("%w: %v", types.ErrInvalidConfiguration, err)
	}
	return nil
}
