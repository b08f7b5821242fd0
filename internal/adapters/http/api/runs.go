package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/okian/argonauts/internal/adapters/repository"
)

const defaultRunsLimit = 20

// RunsHandler serves the run history.
type RunsHandler struct {
	deps     Dependencies
	maxLimit int
}

// NewRunsHandler creates a new runs handler.
func NewRunsHandler(deps Dependencies, maxLimit int) *RunsHandler {
	return &RunsHandler{deps: deps, maxLimit: maxLimit}
}

type runResponse struct {
	RunID        string          `json:"run_id"`
	StartedAt    time.Time       `json:"started_at"`
	DurationMs   int64           `json:"duration_ms"`
	TotalASVs    int             `json:"total_asvs"`
	ClusterCount int             `json:"cluster_count"`
	NoiseCount   int             `json:"noise_count"`
	Report       json.RawMessage `json:"report,omitempty"`
}

func toRunResponse(run repository.Run, withReport bool) runResponse {
	resp := runResponse{
		RunID:        run.RunID,
		StartedAt:    run.StartedAt,
		DurationMs:   run.Duration.Milliseconds(),
		TotalASVs:    run.TotalASVs,
		ClusterCount: run.ClusterCount,
		NoiseCount:   run.NoiseCount,
	}
	if withReport && json.Valid(run.ReportJSON) {
		resp.Report = run.ReportJSON
	}
	return resp
}

// HandleListRuns handles GET /runs?limit=N requests.
func (h *RunsHandler) HandleListRuns(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	n := min(defaultRunsLimit, h.maxLimit)
	if raw := r.URL.Query().Get("limit"); raw != "" {
		var err error
		n, err = strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "bad_request", ErrBadRequest)
			return
		}
	}
	if n > h.maxLimit {
		writeError(w, http.StatusBadRequest, "limit_exceeded", ErrBadRequest)
		return
	}
	runs, err := h.deps.Runs(r.Context(), n)
	if err != nil {
		writeDependencyError(w, err)
		return
	}
	out := make([]runResponse, len(runs))
	for i, run := range runs {
		out[i] = toRunResponse(run, false)
	}
	writeJSON(w, http.StatusOK, out)
}

// HandleGetRun handles GET /runs/{run_id} requests.
func (h *RunsHandler) HandleGetRun(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	id := strings.TrimPrefix(r.URL.Path, "/runs/")
	if id == "" || strings.Contains(id, "/") {
		writeError(w, http.StatusBadRequest, "bad_request", ErrBadRequest)
		return
	}
	run, err := h.deps.Run(r.Context(), id)
	if err != nil {
		writeDependencyError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toRunResponse(run, true))
}
