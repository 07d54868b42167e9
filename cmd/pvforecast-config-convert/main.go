package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/chrissnell/pvforecast/pkg/config"
)

func main() {
	var (
		yamlFile   = flag.String("yaml", "", "Path to YAML configuration file (required)")
		sqliteFile = flag.String("sqlite", "", "Path to SQLite database file (required)")
		force      = flag.Bool("force", false, "Overwrite existing SQLite database")
		dryRun     = flag.Bool("dry-run", false, "Show what would be done without executing")
	)
	flag.Parse()

	if *yamlFile == "" || *sqliteFile == "" {
		fmt.Fprintf(os.Stderr, "Usage: %s -yaml <config.yaml> -sqlite <config.db>\n", os.Args[0])
		flag.PrintDefaults()
		os.Exit(1)
	}

	// Check if SQLite file already exists
	if _, err := os.Stat(*sqliteFile); err == nil && !*force {
		fmt.Fprintf(os.Stderr, "Error: SQLite file already exists: %s\n", *sqliteFile)
		fmt.Fprintf(os.Stderr, "Use -force to overwrite or choose a different filename\n")
		os.Exit(1)
	}

	fmt.Printf("Converting YAML configuration to SQLite...\n")
	fmt.Printf("  Source: %s\n", *yamlFile)
	fmt.Printf("  Target: %s\n", *sqliteFile)

	configData, err := config.NewYAMLProvider(*yamlFile).LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading YAML configuration: %v\n", err)
		os.Exit(1)
	}
	if err := configData.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	printConfigSummary(configData)
	if *dryRun {
		fmt.Println("DRY RUN complete - no database created")
		return
	}

	if *force {
		if err := os.Remove(*sqliteFile); err != nil && !os.IsNotExist(err) {
			fmt.Fprintf(os.Stderr, "Error removing existing database: %v\n", err)
			os.Exit(1)
		}
	}

	provider, err := config.NewSQLiteProvider(*sqliteFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating SQLite database: %v\n", err)
		os.Exit(1)
	}
	defer provider.Close()

	if err := provider.SaveConfig(configData); err != nil {
		fmt.Fprintf(os.Stderr, "Error writing configuration: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("Conversion complete")
}

func printConfigSummary(c *config.ConfigData) {
	fmt.Printf("  Site: lat %g, lon %g, utc offset %+g\n", c.Site.Latitude, c.Site.Longitude, c.Site.UTCOffset)
	if c.Panel != (config.PanelData{}) {
		mode := "fixed"
		if c.Panel.OptimalOrientation {
			mode = "optimal"
		}
		fmt.Printf("  Panel: %gm x %gm, %g%% efficient, %s orientation\n", c.Panel.Length, c.Panel.Width, c.Panel.Efficiency, mode)
	}
	fmt.Printf("  Model: %s %s\n", c.Model.Type, c.Model.Path)
	switch {
	case c.Storage.TimescaleDB != nil:
		fmt.Println("  Storage: timescaledb")
	case c.Storage.SQLite != nil:
		fmt.Printf("  Storage: sqlite %s\n", c.Storage.SQLite.Path)
	}
}
