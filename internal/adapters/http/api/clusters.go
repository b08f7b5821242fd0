package api

import (
	"net/http"
	"strconv"
)

// ClustersHandler serves cluster assignments.
type ClustersHandler struct {
	deps Dependencies
}

// NewClustersHandler creates a new clusters handler.
func NewClustersHandler(deps Dependencies) *ClustersHandler {
	return &ClustersHandler{deps: deps}
}

type clusterPoint struct {
	ASVID     string  `json:"asv_id"`
	X         float64 `json:"x"`
	Y         float64 `json:"y"`
	Label     string  `json:"original_label"`
	ClusterID int     `json:"cluster_id"`
}

// HandleGetClusters handles GET /clusters[?cluster_id=N]. The records have the
// same shape as cluster_results.json.
func (h *ClustersHandler) HandleGetClusters(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}

	filter, hasFilter := 0, false
	if raw := r.URL.Query().Get("cluster_id"); raw != "" {
		id, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "bad_request", ErrBadRequest)
			return
		}
		filter, hasFilter = id, true
	}

	assignments, err := h.deps.Clusters(r.Context())
	if err != nil {
		writeDependencyError(w, err)
		return
	}

	out := make([]clusterPoint, 0, len(assignments))
	for _, a := range assignments {
		if hasFilter && a.ClusterID != filter {
			continue
		}
		out = append(out, clusterPoint{ASVID: a.ID, X: a.X, Y: a.Y, Label: a.Label, ClusterID: a.ClusterID})
	}
	writeJSON(w, http.StatusOK, out)
}
