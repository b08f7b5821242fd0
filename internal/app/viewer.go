package service

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sync"
	"time"

	"github.com/okian/argonauts/internal/adapters/http/api"
	"github.com/okian/argonauts/internal/adapters/repository"
	"github.com/okian/argonauts/internal/adapters/storage"
	"github.com/okian/argonauts/internal/domain/model"
	"github.com/okian/argonauts/pkg/logger"
)

// Viewer keeps the latest report and cluster results in memory for the HTTP
// API. Reload re-reads them; a missing file leaves the viewer not ready and a
// malformed one keeps the previous copy.
type Viewer struct {
	layout  storage.Layout
	history repository.Store

	mu       sync.RWMutex
	report   *model.Report
	clusters []model.Assignment
	loadedAt time.Time

	logger logger.Logger
}

var _ api.Dependencies = (*Viewer)(nil)

// NewViewer creates a viewer over layout. history may be nil.
func NewViewer(layout storage.Layout, history repository.Store, log logger.Logger) *Viewer {
	if log == nil {
		log = logger.Get().Named("viewer")
	}
	return &Viewer{layout: layout, history: history, logger: log}
}

// WatchedFiles lists the outputs Reload reads.
func (v *Viewer) WatchedFiles() []string {
	return []string{storage.ReportFile, storage.ClusterFile}
}

// Reload re-reads the report and cluster results. Each file is handled on its
// own: a missing file clears that copy, a malformed one keeps the previous
// copy of that file only. Errors of both files are joined.
func (v *Viewer) Reload(ctx context.Context) error {
	var errs []error

	r, reportErr := storage.ReadReport(v.layout.Path(storage.ReportFile))
	keepReport := reportErr != nil && !errors.Is(reportErr, storage.ErrMissing)
	if keepReport {
		errs = append(errs, fmt.Errorf("reload report: %w", reportErr))
	}
	clusters, clustersErr := storage.ReadAssignments(v.layout.Path(storage.ClusterFile))
	keepClusters := clustersErr != nil && !errors.Is(clustersErr, storage.ErrMissing)
	if keepClusters {
		errs = append(errs, fmt.Errorf("reload clusters: %w", clustersErr))
	}

	v.mu.Lock()
	if !keepReport {
		v.report = r
	}
	if !keepClusters {
		v.clusters = clusters
	}
	v.loadedAt = time.Now().UTC()
	r, n := v.report, len(v.clusters)
	v.mu.Unlock()

	fields := []logger.Field{logger.Bool("report", r != nil), logger.Int("clusters", n)}
	if r != nil {
		fields = append(fields, logger.String("run_id", r.RunID))
	}
	v.logger.Debug(ctx, "viewer reloaded", fields...)
	return errors.Join(errs...)
}

// Status reports what is loaded and how many runs the history holds.
func (v *Viewer) Status(ctx context.Context) api.Status {
	v.mu.RLock()
	s := api.Status{
		ReportLoaded:   v.report != nil,
		ClustersLoaded: v.clusters != nil,
		LoadedAt:       v.loadedAt,
	}
	if v.report != nil {
		s.RunID = v.report.RunID
	}
	v.mu.RUnlock()

	if v.history != nil {
		n, err := v.history.Count(ctx)
		if err != nil {
			v.logger.Warn(ctx, "counting recorded runs", logger.Error(err))
		}
		s.RunsRecorded = n
	}
	return s
}

// Report returns the loaded report.
func (v *Viewer) Report(context.Context) (*model.Report, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	if v.report == nil {
		return nil, fmt.Errorf("%w: %s", api.ErrNotReady, storage.ReportFile)
	}
	return v.report, nil
}

// Clusters returns the loaded cluster assignments.
func (v *Viewer) Clusters(context.Context) ([]model.Assignment, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	if v.clusters == nil {
		return nil, fmt.Errorf("%w: %s", api.ErrNotReady, storage.ClusterFile)
	}
	return v.clusters, nil
}

// PlotPath resolves one of the rendered plots.
func (v *Viewer) PlotPath(_ context.Context, name string) (string, error) {
	switch name {
	case storage.ClusterPlotFile, storage.DendrogramFile:
	default:
		return "", fmt.Errorf("%w: plot %s", api.ErrNotFound, name)
	}
	path := v.layout.Path(name)
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return "", fmt.Errorf("%w: plot %s", api.ErrNotFound, name)
	} else if err != nil {
		return "", fmt.Errorf("stat %s: %w", path, err)
	}
	return path, nil
}

// Runs lists recorded runs, newest first.
func (v *Viewer) Runs(ctx context.Context, limit int) ([]repository.Run, error) {
	if v.history == nil {
		return nil, api.ErrHistoryDisabled
	}
	return v.history.List(ctx, limit)
}

// Run returns one recorded run.
func (v *Viewer) Run(ctx context.Context, runID string) (repository.Run, error) {
	if v.history == nil {
		return repository.Run{}, api.ErrHistoryDisabled
	}
	return v.history.Get(ctx, runID)
}
