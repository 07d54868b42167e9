package restserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"time"

	"github.com/chrissnell/pvforecast/internal/export"
	"github.com/chrissnell/pvforecast/internal/pipeline"
	"github.com/chrissnell/pvforecast/internal/storage"
	"github.com/chrissnell/pvforecast/internal/types"
	"github.com/chrissnell/pvforecast/internal/weather"
	"github.com/chrissnell/pvforecast/pkg/responseformat"
	"github.com/google/uuid"
)

// maxBodyBytes bounds a forecast request; a week of hourly rows is well under it.
const maxBodyBytes = 8 << 20

// storeHealthMaxAge is how old the monitor's last store check may be before
// /healthz stops trusting it.
const storeHealthMaxAge = 3 * time.Minute

// Handlers contains all HTTP handlers for the REST server
type Handlers struct {
	controller *Controller
	formatter  *responseformat.Formatter
}

// NewHandlers creates a new handlers instance
func NewHandlers(ctrl *Controller) *Handlers {
	return &Handlers{
		controller: ctrl,
		formatter:  responseformat.NewFormatter(),
	}
}

// ForecastRequest is the JSON body of POST /forecast.  Panel may be omitted
// when the server has a configured panel.
type ForecastRequest struct {
	Weather []types.WeatherObservation `json:"weather"`
	Panel   *types.PanelConfiguration  `json:"panel,omitempty"`
}

// DailyResponse is the body of GET /forecast/latest/daily.
type DailyResponse struct {
	RunID uuid.UUID             `json:"run_id"`
	Days  []export.DailySummary `json:"days"`
}

// HealthResponse is the body of GET /healthz.
type HealthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

// statusFor maps the error taxonomy onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, types.ErrInvalidConfiguration), errors.Is(err, types.ErrSchemaMismatch):
		return http.StatusBadRequest
	case errors.Is(err, storage.ErrNoRuns):
		return http.StatusNotFound
	case errors.Is(err, types.ErrReferenceDataMissing), errors.Is(err, types.ErrModelUnavailable),
		errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handlers) fail(w http.ResponseWriter, req *http.Request, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.controller.logger.Errorw("request failed", "path", req.URL.Path, "error", err)
	}
	h.formatter.WriteError(w, req, status, err)
}

// decodeForecastRequest accepts either a JSON ForecastRequest or, with a
// text/csv content type, a weather CSV to be run against the configured panel.
func (h *Handlers) decodeForecastRequest(w http.ResponseWriter, req *http.Request) (ForecastRequest, error) {
	var fr ForecastRequest
	body := http.MaxBytesReader(w, req.Body, maxBodyBytes)

	mediaType, _, _ := mime.ParseMediaType(req.Header.Get("Content-Type"))
	if mediaType == "text/csv" {
		obs, err := weather.ReadCSV(body)
		if err != nil {
			return fr, err
		}
		fr.Weather = obs
		return fr, nil
	}

	if err := json.NewDecoder(body).Decode(&fr); err != nil {
		return fr, fmt.Errorf("%w: invalid forecast request: %v", types.ErrSchemaMismatch, err)
	}
	return fr, nil
}

// PostForecast runs the pipeline over the posted weather forecast.
func (h *Handlers) PostForecast(w http.ResponseWriter, req *http.Request) {
	fr, err := h.decodeForecastRequest(w, req)
	if err != nil {
		h.fail(w, req, err)
		return
	}

	panel := fr.Panel
	if panel == nil {
		panel = h.controller.opts.Panel
	}
	if panel == nil {
		h.fail(w, req, fmt.Errorf("%w: request carries no panel and none is configured", types.ErrInvalidConfiguration))
		return
	}

	obs := fr.Weather
	if cb := h.controller.opts.Codebook; cb != nil {
		obs = cb.Apply(obs)
	}

	run, err := h.controller.opts.Forecaster.Compute(req.Context(), obs, *panel)
	if err != nil {
		h.fail(w, req, err)
		return
	}

	h.controller.remember(run)
	if store := h.controller.opts.Store; store != nil {
		if err := store.SaveRun(req.Context(), run); err != nil {
			// The run is still valid; only its persistence failed.
			h.controller.logger.Errorw("could not store forecast run", "run_id", run.ID, "error", err)
			w.Header().Set("X-Run-Stored", "false")
		}
	}

	h.writeRun(w, req, run)
}

func (h *Handlers) writeRun(w http.ResponseWriter, req *http.Request, run *pipeline.Run) {
	w.Header().Set("X-Run-ID", run.ID.String())
	if responseformat.Requested(req) == responseformat.FormatCSV {
		h.writeCSV(w, req, "forecast-"+run.ID.String()+".csv", func(out io.Writer) error {
			return export.WriteCSV(out, run.Results)
		})
		return
	}
	h.formatter.WriteResponse(w, req, http.StatusOK, run)
}

// writeCSV sends a CSV attachment, or an error response when encode fails.
func (h *Handlers) writeCSV(w http.ResponseWriter, req *http.Request, filename string, encode func(io.Writer) error) {
	if err := h.formatter.WriteCSV(w, filename, encode); err != nil {
		h.fail(w, req, fmt.Errorf("could not encode %s: %w", filename, err))
	}
}

// GetLatest returns the most recent run.
func (h *Handlers) GetLatest(w http.ResponseWriter, req *http.Request) {
	run, err := h.controller.latestRun(req.Context())
	if err != nil {
		h.fail(w, req, err)
		return
	}
	h.writeRun(w, req, run)
}

// GetLatestCSV returns the (YEAR,MO,DY,HR,Wel) projection of the most recent run.
func (h *Handlers) GetLatestCSV(w http.ResponseWriter, req *http.Request) {
	run, err := h.controller.latestRun(req.Context())
	if err != nil {
		h.fail(w, req, err)
		return
	}
	h.writeCSV(w, req, "forecast-reduced.csv", func(out io.Writer) error {
		return export.WriteReducedCSV(out, run.Results)
	})
}

// GetLatestDaily returns per-day totals of the most recent run.
func (h *Handlers) GetLatestDaily(w http.ResponseWriter, req *http.Request) {
	run, err := h.controller.latestRun(req.Context())
	if err != nil {
		h.fail(w, req, err)
		return
	}

	days := export.Summarize(run.Results, h.controller.opts.Site, h.controller.opts.Location)
	if responseformat.Requested(req) == responseformat.FormatCSV {
		h.writeCSV(w, req, "forecast-daily.csv", func(out io.Writer) error {
			return export.WriteDailyCSV(out, days)
		})
		return
	}
	h.formatter.WriteResponse(w, req, http.StatusOK, DailyResponse{RunID: run.ID, Days: days})
}

// ReloadReferences re-reads the reference tables from disk.  On failure the
// previously loaded tables stay in use.
func (h *Handlers) ReloadReferences(w http.ResponseWriter, req *http.Request) {
	refs := h.controller.opts.References
	if refs == nil {
		h.formatter.WriteError(w, req, http.StatusNotFound, errors.New("reference tables are not reloadable"))
		return
	}
	tables, err := refs.Reload()
	if err != nil {
		h.fail(w, req, err)
		return
	}
	astronomical, hourAngles := tables.Len()
	h.formatter.WriteResponse(w, req, http.StatusOK, map[string]int{
		"astronomical": astronomical,
		"hour_angle":   hourAngles,
	})
}

// Healthz reports whether the reference tables and the result store are usable.
func (h *Handlers) Healthz(w http.ResponseWriter, req *http.Request) {
	resp := HealthResponse{Status: "ok", Checks: map[string]string{}}

	if refs := h.controller.opts.References; refs != nil {
		if _, err := refs.Get(); err != nil {
			resp.Status = "unavailable"
			resp.Checks["reference"] = err.Error()
		} else {
			resp.Checks["reference"] = "ok"
		}
	}
	if store := h.controller.opts.Store; store != nil {
		if err := h.storeError(req.Context(), store); err != nil {
			resp.Status = "unavailable"
			resp.Checks["storage"] = err.Error()
		} else {
			resp.Checks["storage"] = "ok"
		}
	}

	status := http.StatusOK
	if resp.Status != "ok" {
		status = http.StatusServiceUnavailable
	}
	h.formatter.WriteResponse(w, req, status, resp)
}

// storeError reports the store's health from the monitor when one is running,
// and pings the store itself before the monitor's first check.
func (h *Handlers) storeError(ctx context.Context, store storage.Store) error {
	m := h.controller.opts.StoreHealth
	if m == nil {
		return store.Ping(ctx)
	}
	last, ok := m.Health()
	switch {
	case !ok:
		return store.Ping(ctx)
	case m.IsHealthy(storeHealthMaxAge):
		return nil
	case last.Error != "":
		return errors.New(last.Error)
	default:
		return fmt.Errorf("last store check at %s is stale", last.LastCheck.Format(time.RFC3339))
	}
}
