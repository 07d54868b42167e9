// Package app wires configuration, reference data, the predictor, the
// pipeline, storage and the REST server into one application.
package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/chrissnell/pvforecast/internal/controllers/restserver"
	"github.com/chrissnell/pvforecast/internal/log"
	"github.com/chrissnell/pvforecast/internal/managers"
	"github.com/chrissnell/pvforecast/internal/metrics"
	"github.com/chrissnell/pvforecast/internal/pipeline"
	"github.com/chrissnell/pvforecast/internal/predictor"
	"github.com/chrissnell/pvforecast/internal/reference"
	"github.com/chrissnell/pvforecast/internal/storage"
	"github.com/chrissnell/pvforecast/internal/types"
	"github.com/chrissnell/pvforecast/internal/weather"
	"github.com/chrissnell/pvforecast/pkg/config"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
)

// MetricsNamespace prefixes every exported metric.
const MetricsNamespace = "pvforecast"

// App represents the main application
type App struct {
	cfg    *config.ConfigData
	logger *zap.SugaredLogger

	references *reference.Cache
	pipeline   *pipeline.Pipeline
	panel      *types.PanelConfiguration
	location   *time.Location
	codebook   *weather.Codebook

	registry  *prometheus.Registry
	collector *metrics.Collector
}

// New builds the application from a validated configuration.  The reference
// tables are loaded here so a broken deployment fails at startup.
func New(cfg *config.ConfigData, logger *zap.SugaredLogger) (*App, error) {
	a := &App{
		cfg:      cfg,
		logger:   logger,
		registry: prometheus.NewRegistry(),
	}
	a.registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	a.collector = metrics.NewCollector(MetricsNamespace, a.registry)

	loc, err := cfg.Site.Location()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrInvalidConfiguration, err)
	}
	a.location = loc

	// The panel section is optional in server mode, where requests may carry
	// their own.
	if cfg.Panel != (config.PanelData{}) {
		p, err := cfg.Panel.Configuration()
		if err != nil {
			return nil, err
		}
		a.panel = &p
	}

	a.references = reference.NewCache(cfg.Reference.Astronomical, cfg.Reference.HourAngle)
	if _, err := a.references.Get(); err != nil {
		return nil, err
	}

	if cfg.Reference.Codebook != "" {
		if a.codebook, err = weather.LoadCodebook(cfg.Reference.Codebook); err != nil {
			return nil, err
		}
	}

	pred, err := predictor.Load(predictor.Config{
		Type:      cfg.Model.Type,
		Path:      cfg.Model.Path,
		Site:      cfg.Site.Site(),
		UTCOffset: cfg.Site.UTCOffset,
	})
	if err != nil {
		return nil, err
	}
	logger.Infow("loaded irradiance model", "type", cfg.Model.Type, "path", cfg.Model.Path)

	a.pipeline = pipeline.New(a.references, pred,
		pipeline.WithLatitude(cfg.Site.Latitude),
		pipeline.WithRecorder(a.collector),
	)
	return a, nil
}

// Location returns the site's time zone.
func (a *App) Location() *time.Location {
	return a.location
}

// Panel returns the configured panel, or an error when none is configured.
func (a *App) Panel() (types.PanelConfiguration, error) {
	if a.panel == nil {
		return types.PanelConfiguration{}, fmt.Errorf("%w: no panel configured", types.ErrInvalidConfiguration)
	}
	return *a.panel, nil
}

// Forecast translates coded descriptors and runs the pipeline against the
// configured panel.
func (a *App) Forecast(ctx context.Context, obs []types.WeatherObservation) (*pipeline.Run, error) {
	panel, err := a.Panel()
	if err != nil {
		return nil, err
	}
	if a.codebook != nil {
		obs = a.codebook.Apply(obs)
	}
	return a.pipeline.Compute(ctx, obs, panel)
}

// OpenStore opens the configured result store, or returns nil when none is configured.
func (a *App) OpenStore(ctx context.Context) (storage.Store, error) {
	return managers.OpenStore(ctx, a.cfg.Storage)
}

// NewServer builds the REST server over the application's collaborators.
// health may be nil when no store is configured.
func (a *App) NewServer(ctx context.Context, wg *sync.WaitGroup, store storage.Store, health *storage.HealthMonitor) (*restserver.Controller, error) {
	return restserver.NewController(ctx, wg, a.cfg.Server, restserver.Options{
		Forecaster:  a.pipeline,
		References:  a.references,
		Store:       store,
		StoreHealth: health,
		Panel:       a.panel,
		Site:        a.cfg.Site.Site(),
		Location:    a.location,
		Codebook:    a.codebook,
		Metrics:     a.collector,
		Gatherer:    a.registry,
	}, a.logger)
}

// Run starts the REST server and blocks until shutdown.  SIGHUP reloads the
// reference tables.
func (a *App) Run(ctx context.Context) error {
	var wg sync.WaitGroup

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	store, err := a.OpenStore(ctx)
	if err != nil {
		return err
	}
	var health *storage.HealthMonitor
	if store != nil {
		defer store.Close()
		health = storage.NewHealthMonitor(store, time.Minute, a.collector.SetStoreUp)
		health.Start(ctx, &wg)
	}
	a.logger.Infow("result store ready", "backend", managers.Backend(a.cfg.Storage))

	server, err := a.NewServer(ctx, &wg, store, health)
	if err != nil {
		return err
	}
	if err := server.StartController(); err != nil {
		return err
	}

	log.Info("application started successfully")

	// Set up signal handling
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	defer signal.Stop(sigs)

wait:
	for {
		select {
		case sig := <-sigs:
			if sig == syscall.SIGHUP {
				log.Info("SIGHUP received, reloading reference tables...")
				if _, err := a.references.Reload(); err != nil {
					log.Errorf("reload failed, keeping previous tables: %v", err)
				}
				continue
			}
			log.Info("shutdown signal received, initiating graceful shutdown...")
			break wait
		case <-ctx.Done():
			log.Info("context cancelled, shutting down...")
			break wait
		}
	}

	// Cancel context to signal all goroutines to stop
	cancel()

	// Wait for all workers to terminate
	log.Info("waiting for all workers to terminate...")
	wg.Wait()
	log.Info("shutdown complete")

	return nil
}
