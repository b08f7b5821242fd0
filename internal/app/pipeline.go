// Package service runs the pipeline stages over the output directory and
// serves their results to the viewer.
package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/okian/argonauts/internal/adapters/repository"
	"github.com/okian/argonauts/internal/adapters/storage"
	"github.com/okian/argonauts/internal/config"
	"github.com/okian/argonauts/internal/domain/model"
	"github.com/okian/argonauts/pkg/logger"
	"github.com/okian/argonauts/pkg/metrics"
)

// Stage names used in logs, metrics and the run manifest.
const (
	StageGenerate = "generate"
	StageEmbed    = "embed"
	StageCluster  = "cluster"
	StageReport   = "report"
)

// Pipeline executes the four stages. Stages share nothing in memory: each one
// reads the previous stage's file from the output directory.
type Pipeline struct {
	cfg     *config.Config
	layout  storage.Layout
	history repository.Store
	now     func() time.Time
	logger  logger.Logger
}

// New constructs a Pipeline over cfg.OutputDir.
func New(cfg *config.Config, opts ...Option) *Pipeline {
	p := &Pipeline{
		cfg:    cfg,
		layout: storage.NewLayout(cfg.OutputDir),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.logger == nil {
		p.logger = logger.Get().Named("pipeline")
	}
	return p
}

// Layout returns where the pipeline reads and writes.
func (p *Pipeline) Layout() storage.Layout {
	return p.layout
}

// Run starts a fresh manifest and executes every stage in order. The first
// failing stage ends the run.
func (p *Pipeline) Run(ctx context.Context) (*model.Report, error) {
	if err := p.layout.Ensure(); err != nil {
		return nil, err
	}
	m := &storage.Manifest{RunID: uuid.NewString(), StartedAt: p.now().UTC()}
	if err := storage.WriteManifest(p.layout.Path(storage.ManifestFile), m); err != nil {
		return nil, err
	}
	p.logger.Info(ctx, "pipeline started", logger.String("run_id", m.RunID), logger.String("output_dir", p.layout.Dir))

	start := time.Now()
	for _, stage := range []func(context.Context) error{p.Generate, p.Embed, p.Cluster} {
		if err := stage(ctx); err != nil {
			return nil, err
		}
	}
	r, err := p.Report(ctx)
	if err != nil {
		return nil, err
	}
	p.logger.Info(ctx, "pipeline finished",
		logger.String("run_id", m.RunID),
		logger.Int("asvs", r.TotalASVsProcessed),
		logger.Int("clusters", r.Observed.ClusterCount),
		logger.Duration("took", time.Since(start)),
	)
	return r, nil
}

type stageFunc func(ctx context.Context, m *storage.Manifest, rec *storage.StageRecord) error

// runStage wraps fn with logging, metrics and a manifest update.
func (p *Pipeline) runStage(ctx context.Context, name string, fn stageFunc) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%s stage: %w", name, err)
	}
	if err := p.layout.Ensure(); err != nil {
		return fmt.Errorf("%s stage: %w", name, err)
	}
	manifestPath := p.layout.Path(storage.ManifestFile)
	m, err := storage.ReadManifest(manifestPath)
	if err != nil {
		return fmt.Errorf("%s stage: %w", name, err)
	}
	if m.RunID == "" {
		m.RunID = uuid.NewString()
		m.StartedAt = p.now().UTC()
	}

	log := p.logger.With(logger.String("stage", name), logger.String("run_id", m.RunID))
	log.Info(ctx, "stage started")

	start := time.Now()
	rec := storage.StageRecord{Name: name, StartedAt: p.now().UTC()}
	err = fn(ctx, m, &rec)
	rec.Duration = time.Since(start)
	ms := float64(rec.Duration.Microseconds()) / 1e3

	if err != nil {
		metrics.RecordStage(name, metrics.StatusError, ms)
		metrics.RecordError(name, "stage_failed")
		log.Error(ctx, "stage failed", logger.Error(err), logger.Duration("took", rec.Duration))
		return fmt.Errorf("%s stage: %w", name, err)
	}

	metrics.RecordStage(name, metrics.StatusOK, ms)
	metrics.UpdateStageRecords(name, rec.Records)

	m.Upsert(rec)
	if err := storage.WriteManifest(manifestPath, m); err != nil {
		return fmt.Errorf("%s stage: %w", name, err)
	}
	log.Info(ctx, "stage finished",
		logger.Int("records", rec.Records),
		logger.Any("outputs", rec.Outputs),
		logger.Duration("took", rec.Duration),
	)
	return nil
}
