package api

import (
	"net/http"
	"strings"
)

// PlotsHandler serves rendered PNG plots.
type PlotsHandler struct {
	deps Dependencies
}

// NewPlotsHandler creates a new plots handler.
func NewPlotsHandler(deps Dependencies) *PlotsHandler {
	return &PlotsHandler{deps: deps}
}

// HandleGetPlot handles GET /plots/{name} requests.
func (h *PlotsHandler) HandleGetPlot(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	name := strings.TrimPrefix(r.URL.Path, "/plots/")
	if name == "" || strings.Contains(name, "/") {
		writeError(w, http.StatusBadRequest, "bad_request", ErrBadRequest)
		return
	}
	path, err := h.deps.PlotPath(r.Context(), name)
	if err != nil {
		writeDependencyError(w, err)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	http.ServeFile(w, r, path)
}
