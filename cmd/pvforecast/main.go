package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/chrissnell/pvforecast/internal/app"
	"github.com/chrissnell/pvforecast/internal/constants"
	"github.com/chrissnell/pvforecast/internal/export"
	"github.com/chrissnell/pvforecast/internal/log"
	"github.com/chrissnell/pvforecast/internal/pipeline"
	"github.com/chrissnell/pvforecast/internal/types"
	"github.com/chrissnell/pvforecast/internal/weather"
	"github.com/chrissnell/pvforecast/pkg/config"
	"github.com/joho/godotenv"
)

func main() {
	cfgFile := flag.String("config", "config.yaml", "Path to configuration source (YAML file or SQLite database)")
	cfgBackend := flag.String("config-backend", "yaml", "Configuration backend type: 'yaml' or 'sqlite'")
	envFile := flag.String("env", ".env", "Optional .env file with PVFORECAST_* overrides")
	weatherFile := flag.String("weather", "", "Weather forecast CSV to run once; '-' reads standard input")
	outFile := flag.String("out", "-", "Where to write the result table; '-' writes standard output")
	reduced := flag.Bool("reduced", false, "Write only YEAR,MO,DY,HR,Wel")
	daily := flag.Bool("daily", false, "Write per-day totals instead of hourly rows")
	assignDates := flag.Bool("assign-dates", false, "Derive MO/DY from the hour sequence, starting today at the site")
	store := flag.Bool("store", false, "Save the one-shot run to the configured result store")
	serve := flag.Bool("serve", false, "Run the REST server")
	debug := flag.Bool("debug", false, "Turn on debugging output")
	showVersion := flag.Bool("version", false, "Show version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("pvforecast %s\n", constants.Version)
		os.Exit(0)
	}

	// Set up logging
	if err := log.Init(*debug); err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	if err := godotenv.Load(*envFile); err != nil && !os.IsNotExist(err) {
		log.Errorf("Failed to read %s: %v", *envFile, err)
		os.Exit(1)
	}

	cfgData, err := loadConfig(*cfgFile, *cfgBackend)
	if err != nil {
		log.Errorf("Failed to load configuration: %v", err)
		os.Exit(1)
	}

	application, err := app.New(cfgData, log.GetSugaredLogger())
	if err != nil {
		log.Errorf("Failed to start: %v", err)
		os.Exit(1)
	}

	if *weatherFile != "" {
		opts := runOptions{
			weather:     *weatherFile,
			out:         *outFile,
			reduced:     *reduced,
			daily:       *daily,
			assignDates: *assignDates,
			store:       *store,
			site:        cfgData.Site.Site(),
		}
		if err := runOnce(application, opts); err != nil {
			log.Errorf("Forecast failed: %v", err)
			os.Exit(1)
		}
	}

	if *serve {
		if err := application.Run(context.Background()); err != nil {
			log.Errorf("Application error: %v", err)
			os.Exit(1)
		}
		return
	}

	if *weatherFile == "" {
		fmt.Fprintln(os.Stderr, "nothing to do: pass -weather and/or -serve")
		flag.Usage()
		os.Exit(2)
	}
}

func loadConfig(cfgFile, cfgBackend string) (*config.ConfigData, error) {
	filename, _ := filepath.Abs(cfgFile)

	var provider config.ConfigProvider
	var err error

	switch cfgBackend {
	case "yaml":
		provider = config.NewYAMLProvider(filename)
	case "sqlite":
		provider, err = config.NewSQLiteProvider(filename)
		if err != nil {
			return nil, fmt.Errorf("error creating SQLite provider: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported configuration backend: %s. Use 'yaml' or 'sqlite'", cfgBackend)
	}
	defer provider.Close()

	cfgData, err := config.Load(provider)
	if err != nil {
		return nil, fmt.Errorf("error reading configuration. Did you pass the -config flag? Run with -h for help: %w", err)
	}
	return cfgData, nil
}

type runOptions struct {
	weather     string
	out         string
	reduced     bool
	daily       bool
	assignDates bool
	store       bool
	site        types.Site
}

func runOnce(a *app.App, opts runOptions) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	in, closeIn, err := openInput(opts.weather)
	if err != nil {
		return err
	}
	obs, err := weather.ReadCSV(in)
	closeIn()
	if err != nil {
		return err
	}
	if opts.assignDates {
		obs = weather.AssignDates(obs, time.Now().In(a.Location()))
	}

	run, err := a.Forecast(ctx, obs)
	if err != nil {
		return err
	}

	if opts.store {
		if err := save(ctx, a, run); err != nil {
			return err
		}
	}

	out, closeOut, err := openOutput(opts.out)
	if err != nil {
		return err
	}
	switch {
	case opts.daily:
		err = export.WriteDailyCSV(out, export.Summarize(run.Results, opts.site, a.Location()))
	case opts.reduced:
		err = export.WriteReducedCSV(out, run.Results)
	default:
		err = export.WriteCSV(out, run.Results)
	}
	if cerr := closeOut(); err == nil {
		err = cerr
	}
	return err
}

func save(ctx context.Context, a *app.App, run *pipeline.Run) error {
	s, err := a.OpenStore(ctx)
	if err != nil {
		return err
	}
	if s == nil {
		return fmt.Errorf("%w: -store given but no storage backend is configured", types.ErrInvalidConfiguration)
	}
	defer s.Close()
	if err := s.SaveRun(ctx, run); err != nil {
		return err
	}
	log.Infow("stored forecast run", "run_id", run.ID)
	return nil
}

func openInput(path string) (io.Reader, func(), error) {
	if path == "-" {
		return os.Stdin, func() {}, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	return f, func() { f.Close() }, nil
}

func openOutput(path string) (io.Writer, func() error, error) {
	if path == "-" {
		return os.Stdout, func() error { return nil }, nil
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, nil, err
	}
	return f, f.Close, nil
}
