package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/okian/argonauts/internal/adapters/chart"
	"github.com/okian/argonauts/internal/adapters/repository"
	"github.com/okian/argonauts/internal/adapters/storage"
	"github.com/okian/argonauts/internal/config"
	"github.com/okian/argonauts/internal/domain/classifier"
	"github.com/okian/argonauts/internal/domain/clustering"
	"github.com/okian/argonauts/internal/domain/derep"
	"github.com/okian/argonauts/internal/domain/embedding"
	"github.com/okian/argonauts/internal/domain/features"
	"github.com/okian/argonauts/internal/domain/generator"
	"github.com/okian/argonauts/internal/domain/model"
	"github.com/okian/argonauts/internal/domain/report"
	"github.com/okian/argonauts/pkg/logger"
	"github.com/okian/argonauts/pkg/metrics"
	"gonum.org/v1/gonum/floats"
)

// Generate writes the synthetic sequences table.
func (p *Pipeline) Generate(ctx context.Context) error {
	return p.runStage(ctx, StageGenerate, func(ctx context.Context, _ *storage.Manifest, rec *storage.StageRecord) error {
		gc := p.cfg.Generator
		gen, err := generator.New(
			generator.WithSpecies(gc.KnownSpecies, gc.NovelSpecies),
			generator.WithReadsPerSpecies(gc.KnownReadsPerSpecies, gc.NovelReadsPerSpecies),
			generator.WithLength(gc.Length),
			generator.WithMutationRate(gc.MutationRate),
			generator.WithSeed(gc.Seed),
		)
		if err != nil {
			return err
		}
		seqs, err := gen.Generate(ctx)
		if err != nil {
			return err
		}

		d := derep.New(derep.WithMinAbundance(gc.MinAbundance))
		d.Add(ctx, seqs)
		summary := d.Summarize()
		uniques := d.Uniques()
		metrics.RecordSequencesGenerated(len(seqs))
		metrics.UpdateUniqueSequences(d.Size())
		p.logger.Info(ctx, "dereplicated reads",
			logger.Int64("reads", d.Reads()),
			logger.Int("unique", d.Size()),
			logger.Int("kept", len(uniques)),
			logger.Int("singletons", summary.Singletons),
			logger.Int("max_abundance", summary.MaxAbundance),
		)

		if err := storage.WriteSequences(p.layout.Path(storage.SequencesFile), seqs); err != nil {
			return err
		}
		rec.Outputs = []string{storage.SequencesFile}
		if gc.WriteFASTA {
			if err := storage.WriteFASTA(p.layout.Path(storage.FASTAFile), seqs); err != nil {
				return err
			}
			if err := storage.WriteUniquesFASTA(p.layout.Path(storage.UniquesFile), uniques); err != nil {
				return err
			}
			rec.Outputs = append(rec.Outputs, storage.FASTAFile, storage.UniquesFile)
		}

		rec.Records = len(seqs)
		rec.Parameters = map[string]any{
			"seed":               gc.Seed,
			"length":             gc.Length,
			"mutations_per_read": gen.MutationsPerRead(),
			"dereplication":      summary,
			"min_abundance":      gc.MinAbundance,
			"uniques_kept":       len(uniques),
		}
		return nil
	})
}

// Embed projects the sequences to 2D with TF-IDF and t-SNE.
func (p *Pipeline) Embed(ctx context.Context) error {
	return p.runStage(ctx, StageEmbed, func(ctx context.Context, _ *storage.Manifest, rec *storage.StageRecord) error {
		seqs, err := storage.ReadSequences(p.layout.Path(storage.SequencesFile))
		if err != nil {
			return err
		}
		docs := make([]string, len(seqs))
		for i, s := range seqs {
			docs[i] = s.Sequence
		}

		fc := p.cfg.Features
		vec, err := features.NewVectorizer(
			features.WithNGramRange(fc.NGramMin, fc.NGramMax),
			features.WithLowercase(fc.Lowercase),
		)
		if err != nil {
			return err
		}
		x, err := vec.FitTransform(docs)
		if err != nil {
			return err
		}
		p.logger.Debug(ctx, "vectorized sequences", logger.Int("rows", len(docs)), logger.Int("terms", len(vec.Vocabulary())))

		ec := p.cfg.Embedding
		tsne := embedding.New(
			embedding.WithMethod(ec.Method),
			embedding.WithPerplexity(ec.Perplexity),
			embedding.WithEarlyExaggeration(ec.EarlyExaggeration),
			embedding.WithLearningRate(ec.LearningRate),
			embedding.WithIterations(ec.Iterations),
			embedding.WithAngle(ec.Angle),
			embedding.WithSeed(ec.Seed),
			embedding.WithWorkers(ec.Workers),
			embedding.WithLogger(p.logger.Named("tsne")),
		)
		y, res, err := tsne.FitTransform(ctx, x)
		if err != nil {
			return err
		}
		metrics.UpdateEmbeddingKL(res.KL)
		metrics.RecordEmbeddingIterations(res.Iterations)

		coords := make([]model.Coordinate, len(seqs))
		for i, s := range seqs {
			coords[i] = model.Coordinate{ID: s.ID, X: y.At(i, 0), Y: y.At(i, 1), Label: s.Label}
		}
		if err := storage.WriteCoordinates(p.layout.Path(storage.LatentFile), coords); err != nil {
			return err
		}

		rec.Records = len(coords)
		rec.Outputs = []string{storage.LatentFile}
		rec.Parameters = map[string]any{
			"method":        res.Method,
			"perplexity":    ec.Perplexity,
			"terms":         len(vec.Vocabulary()),
			"idf_max":       floats.Max(vec.IDF()),
			"iterations":    res.Iterations,
			"kl_divergence": res.KL,
		}
		return nil
	})
}

// Cluster labels the 2D points with DBSCAN and renders the plots.
func (p *Pipeline) Cluster(ctx context.Context) error {
	return p.runStage(ctx, StageCluster, func(ctx context.Context, _ *storage.Manifest, rec *storage.StageRecord) error {
		coords, err := storage.ReadCoordinates(p.layout.Path(storage.LatentFile))
		if err != nil {
			return err
		}

		cc := p.cfg.Clustering
		db, err := clustering.NewDBSCAN(
			clustering.WithEps(cc.Eps),
			clustering.WithMinSamples(cc.MinSamples),
			clustering.WithWorkers(cc.Workers),
		)
		if err != nil {
			return err
		}
		assignments, summary, err := db.Assign(ctx, coords)
		if err != nil {
			return err
		}
		metrics.UpdateClusters(summary.Clusters, summary.Noise)
		p.logger.Info(ctx, "clustered points",
			logger.Int("clusters", summary.Clusters),
			logger.Int("noise", summary.Noise),
			logger.Int("core", summary.Core),
		)

		if err := storage.WriteAssignments(p.layout.Path(storage.ClusterFile), assignments); err != nil {
			return err
		}
		rec.Records = len(assignments)
		rec.Outputs = []string{storage.ClusterFile}
		rec.Parameters = map[string]any{
			"eps":         cc.Eps,
			"min_samples": cc.MinSamples,
			"clusters":    summary.Clusters,
			"noise":       summary.Noise,
		}

		if cc.Plots {
			plot, err := chart.Scatter(assignments)
			if err != nil {
				return err
			}
			if err := chart.Save(plot, chart.DefaultScatterOptions(), p.layout.Path(storage.ClusterPlotFile)); err != nil {
				return err
			}
			rec.Outputs = append(rec.Outputs, storage.ClusterPlotFile)
		}

		if cc.Dendrogram {
			drawn, err := p.dendrogram(ctx, assignments)
			if err != nil {
				return err
			}
			if drawn > 0 {
				rec.Outputs = append(rec.Outputs, storage.DendrogramFile)
				rec.Parameters["dendrogram_points"] = drawn
			}
		}
		return nil
	})
}

// dendrogram renders Ward linkage over non-noise points and returns how many
// leaves it drew. Fewer than two points draw nothing.
func (p *Pipeline) dendrogram(ctx context.Context, assignments []model.Assignment) (int, error) {
	members := make([]model.Assignment, 0, len(assignments))
	for _, a := range assignments {
		if !a.IsNoise() {
			members = append(members, a)
		}
	}
	if len(members) < 2 {
		p.logger.Info(ctx, "not enough clustered points for a dendrogram", logger.Int("points", len(members)))
		return 0, nil
	}

	cc := p.cfg.Clustering
	idx := clustering.Sample(len(members), cc.DendrogramMaxPoints, cc.Seed)
	if len(idx) < len(members) {
		p.logger.Info(ctx, "sampling points for the dendrogram",
			logger.Int("points", len(members)),
			logger.Int("sampled", len(idx)),
		)
	}
	leaves := make([]model.Assignment, len(idx))
	points := make([][2]float64, len(idx))
	for i, j := range idx {
		leaves[i] = members[j]
		points[i] = [2]float64{members[j].X, members[j].Y}
	}

	merges, err := clustering.Ward(ctx, points)
	if err != nil {
		return 0, err
	}
	plot, err := chart.Dendrogram(merges, len(points), chart.ClusterLabels(leaves))
	if err != nil {
		return 0, err
	}
	if err := chart.Save(plot, chart.DefaultDendrogramOptions(), p.layout.Path(storage.DendrogramFile)); err != nil {
		return 0, err
	}
	return len(points), nil
}

// Report synthesizes the biodiversity report and records the run in history.
func (p *Pipeline) Report(ctx context.Context) (*model.Report, error) {
	var out *model.Report
	err := p.runStage(ctx, StageReport, func(ctx context.Context, m *storage.Manifest, rec *storage.StageRecord) error {
		assignments, err := storage.ReadAssignments(p.layout.Path(storage.ClusterFile))
		if err != nil {
			return err
		}

		rc := p.cfg.Report
		cls := classifier.NewLookupClassifier(
			classifier.WithTaxa(taxa(rc.Taxa)),
			classifier.WithSeed(rc.Seed),
		)
		syn := report.NewSynthesizer(cls, report.WithRunID(m.RunID), report.WithClock(p.now))
		r, err := syn.Synthesize(ctx, assignments)
		if err != nil {
			return err
		}
		if err := storage.WriteReport(p.layout.Path(storage.ReportFile), r); err != nil {
			return err
		}

		if p.history != nil {
			if err := p.record(ctx, m, r); err != nil {
				return err
			}
		}

		rec.Records = len(r.TaxonomicProfile)
		rec.Outputs = []string{storage.ReportFile}
		rec.Parameters = map[string]any{
			"total_asvs":       r.TotalASVsProcessed,
			"known":            r.KnownSpeciesCount,
			"novel":            r.NovelTaxaCount,
			"unassigned":       r.UnassignedReadsCount,
			"observed_shannon": r.Observed.ShannonIndex,
		}
		out = r
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (p *Pipeline) record(ctx context.Context, m *storage.Manifest, r *model.Report) error {
	raw, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	started := m.StartedAt
	if started.IsZero() {
		started = r.GeneratedAt
	}
	return p.history.Record(ctx, repository.Run{
		RunID:        r.RunID,
		StartedAt:    started,
		Duration:     r.GeneratedAt.Sub(started).Round(time.Millisecond),
		TotalASVs:    r.TotalASVsProcessed,
		ClusterCount: r.Observed.ClusterCount,
		NoiseCount:   r.UnassignedReadsCount,
		ReportJSON:   raw,
	})
}

func taxa(in []config.Taxon) []classifier.Taxon {
	out := make([]classifier.Taxon, len(in))
	for i, t := range in {
		out[i] = classifier.Taxon{ClusterID: t.ClusterID, Name: t.Name, Status: t.Status}
	}
	return out
}
