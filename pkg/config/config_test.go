package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/chrissnell/pvforecast/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func float(v float64) *float64 { return &v }

func validConfig() *ConfigData {
	c := Default()
	c.Panel = PanelData{Efficiency: 18, Length: 1.92, Width: 1.02, Azimuth: float(0), Tilt: float(35)}
	return c
}

const sampleYAML = `
site:
  latitude: 52.3
  longitude: 104.3
  utc_offset: 8
panel:
  efficiency: 20
  length: 1.7
  width: 1.0
  optimal_orientation: true
reference:
  astronomical: /srv/pv/astronomical.csv
  hour_angle: /srv/pv/hour_angle.csv
  codebook: /srv/pv/codes.json
model:
  type: linear
  path: /srv/pv/linear.json
storage:
  sqlite:
    path: /var/lib/pvforecast/runs.db
server:
  port: 9090
`

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestYAMLProvider(t *testing.T) {
	p := NewYAMLProvider(writeFile(t, "config.yaml", sampleYAML))
	defer p.Close()
	assert.True(t, p.IsReadOnly())

	cfg, err := p.LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, 20.0, cfg.Panel.Efficiency)
	assert.True(t, cfg.Panel.OptimalOrientation)
	assert.Nil(t, cfg.Panel.Tilt)
	assert.Equal(t, "/srv/pv/codes.json", cfg.Reference.Codebook)
	assert.Equal(t, "linear", cfg.Model.Type)
	require.NotNil(t, cfg.Storage.SQLite)
	assert.Equal(t, "/var/lib/pvforecast/runs.db", cfg.Storage.SQLite.Path)
	assert.Nil(t, cfg.Storage.TimescaleDB)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, 440.0, cfg.Site.Altitude, "keys absent from the file keep their defaults")
	assert.NoError(t, cfg.Validate())
}

func TestYAMLProviderErrors(t *testing.T) {
	_, err := NewYAMLProvider(filepath.Join(t.TempDir(), "missing.yaml")).LoadConfig()
	assert.Error(t, err)

	_, err = NewYAMLProvider(writeFile(t, "bad.yaml", "panel:\n  efficency: 20\n")).LoadConfig()
	assert.Error(t, err, "unknown keys are rejected")
}

func TestSQLiteProviderRoundTrip(t *testing.T) {
	p, err := NewSQLiteProvider(filepath.Join(t.TempDir(), "config.db"))
	require.NoError(t, err)
	defer p.Close()
	assert.False(t, p.IsReadOnly())

	empty, err := p.LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, Default(), empty)

	want := validConfig()
	want.Site.Timezone = "Asia/Irkutsk"
	want.Storage.TimescaleDB = &TimescaleDBData{ConnectionString: "postgres://pv@localhost/pv"}
	require.NoError(t, p.SaveConfig(want))

	got, err := p.LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, want, got)

	want.Panel.Tilt = nil
	want.Panel.OptimalOrientation = true
	want.Storage.TimescaleDB = nil
	require.NoError(t, p.SaveConfig(want))

	got, err = p.LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestSQLiteProviderRejectsUnknownSetting(t *testing.T) {
	p, err := NewSQLiteProvider(":memory:")
	require.NoError(t, err)
	defer p.Close()

	_, err = p.db.Exec(`INSERT INTO settings (section, key, value) VALUES ('panel', 'colour', 'blue')`)
	require.NoError(t, err)

	_, err = p.LoadConfig()
	assert.ErrorContains(t, err, "panel.colour")
}

func TestApplyEnv(t *testing.T) {
	env := map[string]string{
		"PVFORECAST_MODEL_PATH":                             "/models/forest.json",
		"PVFORECAST_SERVER_PORT":                            "9999",
		"PVFORECAST_PANEL_TILT":                             "",
		"PVFORECAST_STORAGE_TIMESCALEDB_CONNECTION_STRING": "postgres://pv@db/pv",
	}
	lookup := func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	}

	cfg := validConfig()
	require.NoError(t, cfg.ApplyEnv(lookup))

	assert.Equal(t, "/models/forest.json", cfg.Model.Path)
	assert.Equal(t, 9999, cfg.Server.Port)
	assert.Nil(t, cfg.Panel.Tilt)
	require.NotNil(t, cfg.Storage.TimescaleDB)
	assert.Equal(t, "postgres://pv@db/pv", cfg.Storage.TimescaleDB.ConnectionString)

	env = map[string]string{"PVFORECAST_SERVER_PORT": "http", "PVFORECAST_SITE_LATITUDE": "north"}
	err := cfg.ApplyEnv(lookup)
	assert.ErrorIs(t, err, types.ErrInvalidConfiguration)
	assert.ErrorContains(t, err, "PVFORECAST_SERVER_PORT")
	assert.ErrorContains(t, err, "PVFORECAST_SITE_LATITUDE")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *ConfigData)
		wantErr string
	}{
		{"valid", func(c *ConfigData) {}, ""},
		{"optimal without orientation", func(c *ConfigData) {
			c.Panel.OptimalOrientation = true
			c.Panel.Tilt, c.Panel.Azimuth = nil, nil
		}, ""},
		{"no panel", func(c *ConfigData) { c.Panel = PanelData{} }, ""},
		{"clearsky needs no path", func(c *ConfigData) { c.Model = ModelData{Type: "clearsky"} }, ""},
		{"efficiency percent", func(c *ConfigData) { c.Panel.Efficiency = 120 }, "efficiency"},
		{"zero length", func(c *ConfigData) { c.Panel.Length = 0 }, "length"},
		{"fixed without tilt", func(c *ConfigData) { c.Panel.Tilt = nil }, "tilt"},
		{"latitude", func(c *ConfigData) { c.Site.Latitude = 91 }, "latitude"},
		{"timezone", func(c *ConfigData) { c.Site.Timezone = "Mars/Olympus" }, "timezone"},
		{"reference", func(c *ConfigData) { c.Reference.HourAngle = "" }, "hour_angle"},
		{"model type", func(c *ConfigData) { c.Model.Type = "svm" }, "svm"},
		{"model path", func(c *ConfigData) { c.Model.Path = "" }, "model.path"},
		{"two stores", func(c *ConfigData) {
			c.Storage.SQLite = &SQLiteData{Path: "a.db"}
			c.Storage.TimescaleDB = &TimescaleDBData{ConnectionString: "postgres://"}
		}, "only one"},
		{"port", func(c *ConfigData) { c.Server.Port = 70000 }, "port"},
		{"tls pair", func(c *ConfigData) { c.Server.Cert = "cert.pem" }, "cert and key"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := validConfig()
			tt.mutate(c)
			err := c.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, types.ErrInvalidConfiguration)
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestValidateReportsEverything(t *testing.T) {
	c := validConfig()
	c.Panel.Width = -1
	c.Model.Type = "svm"
	c.Server.Port = -1

	err := c.Validate()
	require.Error(t, err)
	assert.ErrorContains(t, err, "width")
	assert.ErrorContains(t, err, "svm")
	assert.ErrorContains(t, err, "port")
}

func TestLocation(t *testing.T) {
	loc, err := SiteData{UTCOffset: 8}.Location()
	require.NoError(t, err)
	_, offset := timeIn(loc)
	assert.Equal(t, 8*3600, offset)

	loc, err = SiteData{UTCOffset: 5.5}.Location()
	require.NoError(t, err)
	_, offset = timeIn(loc)
	assert.Equal(t, 5*3600+1800, offset)
}

func TestPanelConfiguration(t *testing.T) {
	p, err := validConfig().Panel.Configuration()
	require.NoError(t, err)
	assert.InDelta(t, 0.18, p.Efficiency, 1e-12)
	assert.InDelta(t, 1.92*1.02, p.Area(), 1e-12)
	assert.Equal(t, 35.0, *p.Tilt)
}

func timeIn(loc *time.Location) (string, int) {
	return time.Date(2024, 6, 21, 12, 0, 0, 0, loc).Zone()
}
