// Package restserver exposes the forecast pipeline over HTTP.
package restserver

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/chrissnell/pvforecast/internal/log"
	"github.com/chrissnell/pvforecast/internal/metrics"
	"github.com/chrissnell/pvforecast/internal/pipeline"
	"github.com/chrissnell/pvforecast/internal/reference"
	"github.com/chrissnell/pvforecast/internal/storage"
	"github.com/chrissnell/pvforecast/internal/types"
	"github.com/chrissnell/pvforecast/internal/weather"
	"github.com/chrissnell/pvforecast/pkg/config"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Forecaster computes a forecast run.  *pipeline.Pipeline satisfies it.
type Forecaster interface {
	Compute(ctx context.Context, weather []types.WeatherObservation, panel types.PanelConfiguration) (*pipeline.Run, error)
}

// Options carries the collaborators of the REST server.  Forecaster is
// required; everything else is optional.
type Options struct {
	Forecaster Forecaster
	References *reference.Cache
	// Store persists runs; without one the server keeps the latest run in memory.
	Store storage.Store
	// StoreHealth, when set, answers /healthz for the store instead of a ping.
	StoreHealth *storage.HealthMonitor
	// Panel is used when a request does not carry its own.
	Panel    *types.PanelConfiguration
	Site     types.Site
	Location *time.Location
	Codebook *weather.Codebook
	Metrics  *metrics.Collector
	Gatherer prometheus.Gatherer
}

// Controller represents the REST server controller
type Controller struct {
	ctx        context.Context
	wg         *sync.WaitGroup
	restConfig config.ServerData
	Server     http.Server
	opts       Options
	logger     *zap.SugaredLogger
	handlers   *Handlers

	mu     sync.RWMutex
	latest *pipeline.Run
}

// NewController creates a new REST server controller
func NewController(ctx context.Context, wg *sync.WaitGroup, rc config.ServerData, opts Options, logger *zap.SugaredLogger) (*Controller, error) {
	if opts.Forecaster == nil {
		return nil, fmt.Errorf("REST server requires a forecaster")
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}

	// If a ListenAddr was not provided, listen on all interfaces
	if rc.ListenAddr == "" {
		logger.Info("server.listen_addr not provided; defaulting to 0.0.0.0 (all interfaces)")
		rc.ListenAddr = "0.0.0.0"
	}

	// Set default HTTP port if not specified
	if rc.Port == 0 {
		logger.Info("server.port not provided; defaulting to 8080")
		rc.Port = 8080
	}

	ctrl := &Controller{
		ctx:        ctx,
		wg:         wg,
		restConfig: rc,
		opts:       opts,
		logger:     logger,
	}
	ctrl.handlers = NewHandlers(ctrl)

	ctrl.Server.Addr = fmt.Sprintf("%v:%v", rc.ListenAddr, rc.Port)
	ctrl.Server.Handler = ctrl.Router()
	ctrl.Server.ReadHeaderTimeout = 10 * time.Second

	return ctrl, nil
}

// StartController starts the REST server
func (c *Controller) StartController() error {
	c.logger.Infof("starting REST server on %s", c.Server.Addr)
	c.wg.Add(1)

	go func() {
		defer c.wg.Done()

		var err error
		if c.restConfig.Cert != "" && c.restConfig.Key != "" {
			err = c.Server.ListenAndServeTLS(c.restConfig.Cert, c.restConfig.Key)
		} else {
			err = c.Server.ListenAndServe()
		}
		if err != http.ErrServerClosed {
			c.logger.Errorf("REST server error: %v", err)
		}
	}()

	go func() {
		<-c.ctx.Done()
		c.logger.Info("shutting down the REST server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		c.Server.Shutdown(shutdownCtx)
	}()

	return nil
}

// Router builds the HTTP router with all endpoints.
func (c *Controller) Router() *mux.Router {
	router := mux.NewRouter()
	router.Use(log.HTTPMiddleware)
	if c.opts.Metrics != nil {
		router.Use(c.metricsMiddleware)
	}

	router.HandleFunc("/forecast", c.handlers.PostForecast).Methods(http.MethodPost)
	router.HandleFunc("/forecast/latest", c.handlers.GetLatest).Methods(http.MethodGet)
	router.HandleFunc("/forecast/latest.csv", c.handlers.GetLatestCSV).Methods(http.MethodGet)
	router.HandleFunc("/forecast/latest/daily", c.handlers.GetLatestDaily).Methods(http.MethodGet)
	router.HandleFunc("/reference/reload", c.handlers.ReloadReferences).Methods(http.MethodPost)
	router.HandleFunc("/healthz", c.handlers.Healthz).Methods(http.MethodGet)

	if c.opts.Gatherer != nil {
		router.Handle("/metrics", promhttp.HandlerFor(c.opts.Gatherer, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	}

	return router
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

// metricsMiddleware records every request against its route template so
// that label cardinality stays bounded.
func (c *Controller) metricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sw, r)

		endpoint := "unmatched"
		if route := mux.CurrentRoute(r); route != nil {
			if tmpl, err := route.GetPathTemplate(); err == nil {
				endpoint = tmpl
			}
		}
		c.opts.Metrics.RecordRequest(endpoint, r.Method, strconv.Itoa(sw.status), time.Since(start))
	})
}

// remember keeps run as the latest one for store-less deployments.
func (c *Controller) remember(run *pipeline.Run) {
	c.mu.Lock()
	c.latest = run
	c.mu.Unlock()
}

func (c *Controller) latestRun(ctx context.Context) (*pipeline.Run, error) {
	if c.opts.Store != nil {
		return c.opts.Store.LatestRun(ctx)
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.latest == nil {
		return nil, storage.ErrNoRuns
	}
	return c.latest, nil
}
