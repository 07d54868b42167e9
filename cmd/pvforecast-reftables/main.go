package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/chrissnell/pvforecast/internal/log"
	"github.com/chrissnell/pvforecast/internal/reference"
	"github.com/chrissnell/pvforecast/internal/types"
)

func main() {
	var (
		lat       = flag.Float64("lat", types.DefaultLatitude, "Site latitude in degrees, north positive")
		lon       = flag.Float64("lon", 104.3, "Site longitude in degrees, east positive")
		alt       = flag.Float64("alt", 0, "Site altitude in meters")
		utcOffset = flag.Float64("utc-offset", 8, "Offset of the forecast's clock from UTC, in hours")
		year      = flag.Int("year", time.Now().Year(), "Year the tables are computed for")
		albedo    = flag.Float64("albedo", reference.DefaultAlbedo, "Ground albedo")
		out       = flag.String("out", "data", "Output directory")
		debug     = flag.Bool("debug", false, "Turn on debugging output")
	)
	flag.Parse()

	if err := log.Init(*debug); err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	tables, err := reference.Generate(reference.GenerateOptions{
		Site:      types.Site{Latitude: *lat, Longitude: *lon, Altitude: *alt},
		UTCOffset: *utcOffset,
		Year:      *year,
		Albedo:    *albedo,
	})
	if err != nil {
		log.Errorf("Failed to generate reference tables: %v", err)
		os.Exit(1)
	}

	if err := os.MkdirAll(*out, 0o755); err != nil {
		log.Errorf("Failed to create %s: %v", *out, err)
		os.Exit(1)
	}
	if err := reference.WriteDir(*out, tables); err != nil {
		log.Errorf("Failed to write reference tables: %v", err)
		os.Exit(1)
	}

	astro, hours := tables.Len()
	log.Infow("wrote reference tables", "dir", *out, "astronomical_rows", astro, "hour_angle_rows", hours)
}
