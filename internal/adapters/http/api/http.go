// Package api serves the read-only viewer over pipeline outputs.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/okian/argonauts/internal/adapters/repository"
	"github.com/okian/argonauts/internal/domain/model"
	"github.com/okian/argonauts/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const defaultMaxRuns = 100

// Status describes what the viewer currently holds.
type Status struct {
	ReportLoaded   bool      `json:"report_loaded"`
	ClustersLoaded bool      `json:"clusters_loaded"`
	LoadedAt       time.Time `json:"loaded_at,omitempty"`
	RunID          string    `json:"run_id,omitempty"`
	// RunsRecorded counts history rows; zero when history is disabled.
	RunsRecorded int `json:"runs_recorded,omitempty"`
}

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to the pipeline.
type Dependencies interface {
	// Status reports which outputs are loaded.
	Status(ctx context.Context) Status

	// Report returns the last loaded report, or ErrNotReady.
	Report(ctx context.Context) (*model.Report, error)

	// Clusters returns the last loaded cluster assignments, or ErrNotReady.
	Clusters(ctx context.Context) ([]model.Assignment, error)

	// PlotPath resolves a plot file name, or ErrNotFound.
	PlotPath(ctx context.Context, name string) (string, error)

	// Runs and Run read the run history, or ErrHistoryDisabled.
	Runs(ctx context.Context, limit int) ([]repository.Run, error)
	Run(ctx context.Context, runID string) (repository.Run, error)
}

// Server wires HTTP routes for the viewer.
type Server struct {
	healthHandler   *HealthHandler
	reportHandler   *ReportHandler
	clustersHandler *ClustersHandler
	plotsHandler    *PlotsHandler
	runsHandler     *RunsHandler
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, maxRuns int) *Server {
	if maxRuns < 1 {
		maxRuns = defaultMaxRuns
	}
	return &Server{
		healthHandler:   NewHealthHandler(deps),
		reportHandler:   NewReportHandler(deps),
		clustersHandler: NewClustersHandler(deps),
		plotsHandler:    NewPlotsHandler(deps),
		runsHandler:     NewRunsHandler(deps, maxRuns),
	}
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(_ context.Context, mux *http.ServeMux) {
	mux.HandleFunc("/healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.Handle("/metrics", promhttp.HandlerFor(metrics.GetRegistry(), promhttp.HandlerOpts{}))
	mux.HandleFunc("/report", MetricsMiddleware(s.reportHandler.HandleGetReport, "report"))
	mux.HandleFunc("/clusters", MetricsMiddleware(s.clustersHandler.HandleGetClusters, "clusters"))
	mux.HandleFunc("/plots/", MetricsMiddleware(s.plotsHandler.HandleGetPlot, "plots"))
	mux.HandleFunc("/runs", MetricsMiddleware(s.runsHandler.HandleListRuns, "runs"))
	mux.HandleFunc("/runs/", MetricsMiddleware(s.runsHandler.HandleGetRun, "run"))
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

// writeDependencyError maps dependency errors onto status codes.
func writeDependencyError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNotReady):
		writeError(w, http.StatusServiceUnavailable, "not_ready", err)
	case errors.Is(err, ErrNotFound), errors.Is(err, repository.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found", err)
	case errors.Is(err, ErrHistoryDisabled):
		writeError(w, http.StatusNotFound, "history_disabled", err)
	case errors.Is(err, ErrBadRequest), errors.Is(err, repository.ErrInvalidLimit):
		writeError(w, http.StatusBadRequest, "bad_request", err)
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", err)
	}
}
