// Package constants defines application-wide constants and version information.
package constants

import "runtime"

// Version holds the application version information
const Version = "1.0-" + runtime.GOOS + "/" + runtime.GOARCH

// EnvPrefix prefixes every environment variable that overrides configuration.
const EnvPrefix = "PVFORECAST_"
