package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/chrissnell/pvforecast/internal/constants"
	"github.com/chrissnell/pvforecast/internal/types"
	"github.com/hashicorp/go-multierror"
)

// setting is one addressable configuration value.  The SQLite provider stores
// settings as (section, key, value) rows and environment overrides address
// them as PVFORECAST_<SECTION>_<KEY>.
type setting struct {
	section string
	key     string
	get     func(c *ConfigData) string
	set     func(c *ConfigData, v string) error
}

func (s setting) envName() string {
	return constants.EnvPrefix + strings.ToUpper(s.section+"_"+s.key)
}

var settings = []setting{
	floatSetting("site", "latitude", func(c *ConfigData) *float64 { return &c.Site.Latitude }),
	floatSetting("site", "longitude", func(c *ConfigData) *float64 { return &c.Site.Longitude }),
	floatSetting("site", "altitude", func(c *ConfigData) *float64 { return &c.Site.Altitude }),
	floatSetting("site", "utc_offset", func(c *ConfigData) *float64 { return &c.Site.UTCOffset }),
	stringSetting("site", "timezone", func(c *ConfigData) *string { return &c.Site.Timezone }),

	floatSetting("panel", "efficiency", func(c *ConfigData) *float64 { return &c.Panel.Efficiency }),
	floatSetting("panel", "length", func(c *ConfigData) *float64 { return &c.Panel.Length }),
	floatSetting("panel", "width", func(c *ConfigData) *float64 { return &c.Panel.Width }),
	{
		section: "panel",
		key:     "optimal_orientation",
		get:     func(c *ConfigData) string { return strconv.FormatBool(c.Panel.OptimalOrientation) },
		set: func(c *ConfigData, v string) error {
			b, err := strconv.ParseBool(v)
			if err != nil {
				return err
			}
			c.Panel.OptimalOrientation = b
			return nil
		},
	},
	optionalFloatSetting("panel", "azimuth", func(c *ConfigData) **float64 { return &c.Panel.Azimuth }),
	optionalFloatSetting("panel", "tilt", func(c *ConfigData) **float64 { return &c.Panel.Tilt }),

	stringSetting("reference", "astronomical", func(c *ConfigData) *string { return &c.Reference.Astronomical }),
	stringSetting("reference", "hour_angle", func(c *ConfigData) *string { return &c.Reference.HourAngle }),
	stringSetting("reference", "codebook", func(c *ConfigData) *string { return &c.Reference.Codebook }),

	stringSetting("model", "type", func(c *ConfigData) *string { return &c.Model.Type }),
	stringSetting("model", "path", func(c *ConfigData) *string { return &c.Model.Path }),

	{
		section: "storage",
		key:     "sqlite_path",
		get: func(c *ConfigData) string {
			if c.Storage.SQLite == nil {
				return ""
			}
			return c.Storage.SQLite.Path
		},
		set: func(c *ConfigData, v string) error {
			c.Storage.SQLite = nil
			if v != "" {
				c.Storage.SQLite = &SQLiteData{Path: v}
			}
			return nil
		},
	},
	{
		section: "storage",
		key:     "timescaledb_connection_string",
		get: func(c *ConfigData) string {
			if c.Storage.TimescaleDB == nil {
				return ""
			}
			return c.Storage.TimescaleDB.ConnectionString
		},
		set: func(c *ConfigData, v string) error {
			c.Storage.TimescaleDB = nil
			if v != "" {
				c.Storage.TimescaleDB = &TimescaleDBData{ConnectionString: v}
			}
			return nil
		},
	},

	stringSetting("server", "listen_addr", func(c *ConfigData) *string { return &c.Server.ListenAddr }),
	{
		section: "server",
		key:     "port",
		get:     func(c *ConfigData) string { return strconv.Itoa(c.Server.Port) },
		set: func(c *ConfigData, v string) error {
			n, err := strconv.Atoi(v)
			if err != nil {
				return err
			}
			c.Server.Port = n
			return nil
		},
	},
	stringSetting("server", "cert", func(c *ConfigData) *string { return &c.Server.Cert }),
	stringSetting("server", "key", func(c *ConfigData) *string { return &c.Server.Key }),
}

func stringSetting(section, key string, field func(*ConfigData) *string) setting {
	return setting{
		section: section,
		key:     key,
		get:     func(c *ConfigData) string { return *field(c) },
		set: func(c *ConfigData, v string) error {
			*field(c) = v
			return nil
		},
	}
}

func floatSetting(section, key string, field func(*ConfigData) *float64) setting {
	return setting{
		section: section,
		key:     key,
		get:     func(c *ConfigData) string { return strconv.FormatFloat(*field(c), 'g', -1, 64) },
		set: func(c *ConfigData, v string) error {
			f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
			if err != nil {
				return err
			}
			*field(c) = f
			return nil
		},
	}
}

// optionalFloatSetting maps the empty string to nil.
func optionalFloatSetting(section, key string, field func(*ConfigData) **float64) setting {
	return setting{
		section: section,
		key:     key,
		get: func(c *ConfigData) string {
			if p := *field(c); p != nil {
				return strconv.FormatFloat(*p, 'g', -1, 64)
			}
			return ""
		},
		set: func(c *ConfigData, v string) error {
			if strings.TrimSpace(v) == "" {
				*field(c) = nil
				return nil
			}
			f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
			if err != nil {
				return err
			}
			*field(c) = &f
			return nil
		},
	}
}

func lookupSetting(section, key string) (setting, bool) {
	for _, s := range settings {
		if s.section == section && s.key == key {
			return s, true
		}
	}
	return setting{}, false
}

// ApplyEnv overrides c with every PVFORECAST_* variable that lookup finds.
// Pass os.LookupEnv in production.
func (c *ConfigData) ApplyEnv(lookup func(string) (string, bool)) error {
	var result *multierror.Error
	for _, s := range settings {
		v, ok := lookup(s.envName())
		if !ok {
			continue
		}
		if err := s.set(c, v); err != nil {
			result = multierror.Append(result, fmt.Errorf("%s: %v", s.envName(), err))
		}
	}
	if err := result.ErrorOrNil(); err != nil {
		return fmt.Errorf("%w: %v", types.ErrInvalidConfiguration, err)
	}
	return nil
}

// Load reads the configuration from p, applies environment overrides and
// validates the result.
func Load(p ConfigProvider) (*ConfigData, error) {
	cfg, err := p.LoadConfig()
	if err != nil {
		return nil, err
	}
	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
