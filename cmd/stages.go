package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/okian/argonauts/internal/adapters/repository"
	"github.com/okian/argonauts/internal/adapters/storage"
	app "github.com/okian/argonauts/internal/app"
	"github.com/okian/argonauts/internal/config"
	"github.com/okian/argonauts/internal/domain/model"
	"github.com/okian/argonauts/pkg/logger"
	"github.com/spf13/cobra"
)

func newRunCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run every stage in order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.withPipeline(cmd.Context(), func(ctx context.Context, p *app.Pipeline) error {
				r, err := p.Run(ctx)
				if err != nil {
					return err
				}
				printSummary(cmd.OutOrStdout(), p.Layout(), r)
				printStages(cmd.OutOrStdout(), p.Layout())
				return nil
			})
		},
	}
}

func newGenerateCmd(c *cli) *cobra.Command {
	return stageCmd(c, "generate", "Generate synthetic sequences", (*app.Pipeline).Generate)
}

func newEmbedCmd(c *cli) *cobra.Command {
	return stageCmd(c, "embed", "Project sequences to 2D with TF-IDF and t-SNE", (*app.Pipeline).Embed)
}

func newClusterCmd(c *cli) *cobra.Command {
	return stageCmd(c, "cluster", "Cluster the projection with DBSCAN and draw plots", (*app.Pipeline).Cluster)
}

func newReportCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "report",
		Short: "Synthesize the biodiversity report from cluster results",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.withPipeline(cmd.Context(), func(ctx context.Context, p *app.Pipeline) error {
				r, err := p.Report(ctx)
				if err != nil {
					return err
				}
				printSummary(cmd.OutOrStdout(), p.Layout(), r)
				return nil
			})
		},
	}
}

func stageCmd(c *cli, use, short string, stage func(*app.Pipeline, context.Context) error) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.withPipeline(cmd.Context(), func(ctx context.Context, p *app.Pipeline) error {
				return stage(p, ctx)
			})
		},
	}
}

// withPipeline builds a pipeline with the optional run history and calls fn.
func (c *cli) withPipeline(ctx context.Context, fn func(context.Context, *app.Pipeline) error) error {
	history, err := openHistory(ctx, c.cfg)
	if err != nil {
		return err
	}
	opts := []app.Option{app.WithLogger(logger.Named("pipeline"))}
	if history != nil {
		defer func() {
			if err := history.Close(); err != nil {
				logger.Get().Warn(ctx, "closing run history", logger.Error(err))
			}
		}()
		opts = append(opts, app.WithHistory(history))
	}
	return fn(ctx, app.New(c.cfg, opts...))
}

// openHistory returns nil when no history path is configured.
func openHistory(ctx context.Context, cfg *config.Config) (*repository.SQLiteStore, error) {
	if cfg.History.Path == "" {
		return nil, nil
	}
	return repository.Open(ctx, cfg.History.Path,
		repository.WithBusyTimeout(cfg.History.BusyTimeout),
		repository.WithMaxList(cfg.History.MaxList),
	)
}

func printSummary(w io.Writer, layout storage.Layout, r *model.Report) {
	fmt.Fprintf(w, "run %s: %d ASVs, %d clusters, %d unassigned (%s)\n",
		r.RunID, r.TotalASVsProcessed, r.Observed.ClusterCount, r.UnassignedReadsCount, r.Metrics.UnassignedReadsRate)
	fmt.Fprintf(w, "report: %s\n", layout.Path(storage.ReportFile))
}

// printStages lists per-stage records and timings from the run manifest.
func printStages(w io.Writer, layout storage.Layout) {
	m, err := storage.ReadManifest(layout.Path(storage.ManifestFile))
	if err != nil {
		return
	}
	for _, name := range []string{app.StageGenerate, app.StageEmbed, app.StageCluster, app.StageReport} {
		if rec, ok := m.Stage(name); ok {
			fmt.Fprintf(w, "  %-8s %6d records in %s\n", name, rec.Records, rec.Duration.Round(time.Millisecond))
		}
	}
}
