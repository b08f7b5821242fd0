package service_test

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/okian/argonauts/internal/adapters/repository"
	"github.com/okian/argonauts/internal/adapters/storage"
	service "github.com/okian/argonauts/internal/app"
	"github.com/okian/argonauts/internal/config"
	"github.com/okian/argonauts/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	if err := logger.Init(logger.WithWriter(io.Discard)); err != nil {
		panic(err)
	}
}

// smallConfig shrinks the reference run to 40 reads.
func smallConfig(dir string) *config.Config {
	cfg := config.New()
	cfg.OutputDir = dir
	cfg.Generator.KnownSpecies = 3
	cfg.Generator.NovelSpecies = 2
	cfg.Generator.KnownReadsPerSpecies = 10
	cfg.Generator.NovelReadsPerSpecies = 5
	cfg.Generator.Length = 60
	cfg.Generator.MutationRate = 0.05
	cfg.Generator.WriteFASTA = true
	cfg.Embedding.Perplexity = 5
	cfg.Embedding.Iterations = 300
	cfg.Embedding.Workers = 2
	cfg.Clustering.Eps = 5
	cfg.Clustering.MinSamples = 3
	return cfg
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func TestPipelineRun(t *testing.T) {
	Convey("Given a small pipeline with run history", t, func() {
		ctx := context.Background()
		dir := t.TempDir()
		cfg := smallConfig(dir)
		history, err := repository.Open(ctx, filepath.Join(dir, "history.db"))
		So(err, ShouldBeNil)
		defer history.Close()

		clock := func() time.Time { return time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC) }
		p := service.New(cfg, service.WithHistory(history), service.WithClock(clock))

		Convey("When running every stage", func() {
			r, err := p.Run(ctx)
			So(err, ShouldBeNil)

			layout := p.Layout()
			assignments, err := storage.ReadAssignments(layout.Path(storage.ClusterFile))
			So(err, ShouldBeNil)

			Convey("Then every handoff file is written", func() {
				for _, name := range []string{
					storage.SequencesFile, storage.FASTAFile, storage.UniquesFile, storage.LatentFile,
					storage.ClusterFile, storage.ClusterPlotFile, storage.ReportFile, storage.ManifestFile,
				} {
					So(exists(layout.Path(name)), ShouldBeTrue)
				}
			})

			Convey("Then the report covers every read and only clusters that exist", func() {
				So(r.TotalASVsProcessed, ShouldEqual, 40)
				So(assignments, ShouldHaveLength, 40)
				present := map[int]int{}
				for _, a := range assignments {
					present[a.ClusterID]++
				}
				total := 0
				for _, row := range r.TaxonomicProfile {
					So(present[row.ClusterID], ShouldEqual, row.ReadCount)
					total += row.ReadCount
				}
				So(total, ShouldEqual, 40)
				So(r.GeneratedAt.Equal(clock()), ShouldBeTrue)
			})

			Convey("Then the manifest lists the stages under the report's run id", func() {
				m, err := storage.ReadManifest(layout.Path(storage.ManifestFile))
				So(err, ShouldBeNil)
				So(m.RunID, ShouldEqual, r.RunID)
				So(m.Stages, ShouldHaveLength, 4)
				names := []string{}
				for _, s := range m.Stages {
					names = append(names, s.Name)
				}
				So(names, ShouldResemble, []string{service.StageGenerate, service.StageEmbed, service.StageCluster, service.StageReport})
				gen, ok := m.Stage(service.StageGenerate)
				So(ok, ShouldBeTrue)
				So(gen.Records, ShouldEqual, 40)
			})

			Convey("Then the run is in the history", func() {
				run, err := history.Get(ctx, r.RunID)
				So(err, ShouldBeNil)
				So(run.TotalASVs, ShouldEqual, 40)
				So(run.NoiseCount, ShouldEqual, r.UnassignedReadsCount)
				So(string(run.ReportJSON), ShouldContainSubstring, r.RunID)
			})

			Convey("Then running again starts a new run id", func() {
				again, err := p.Run(ctx)
				So(err, ShouldBeNil)
				So(again.RunID, ShouldNotEqual, r.RunID)
				n, err := history.Count(ctx)
				So(err, ShouldBeNil)
				So(n, ShouldEqual, 2)
			})
		})
	})
}

func TestGenerateDereplication(t *testing.T) {
	Convey("Given unmutated reads and a minimum abundance", t, func() {
		ctx := context.Background()
		cfg := smallConfig(t.TempDir())
		cfg.Generator.MutationRate = 0
		cfg.Generator.MinAbundance = 6
		p := service.New(cfg)

		Convey("When generating", func() {
			So(p.Generate(ctx), ShouldBeNil)
			layout := p.Layout()

			Convey("Then only groups seen often enough reach the uniques FASTA", func() {
				raw, err := os.ReadFile(layout.Path(storage.UniquesFile))
				So(err, ShouldBeNil)
				headers := []string{}
				for _, line := range strings.Split(string(raw), "\n") {
					if strings.HasPrefix(line, ">") {
						headers = append(headers, line)
					}
				}
				So(headers, ShouldHaveLength, 3)
				for _, h := range headers {
					So(h, ShouldEndWith, ";size=10")
				}
			})

			Convey("Then the manifest records the dereplication", func() {
				m, err := storage.ReadManifest(layout.Path(storage.ManifestFile))
				So(err, ShouldBeNil)
				gen, ok := m.Stage(service.StageGenerate)
				So(ok, ShouldBeTrue)
				So(gen.Parameters["uniques_kept"], ShouldEqual, 3)
				So(gen.Outputs, ShouldContain, storage.UniquesFile)
			})
		})
	})
}

func TestPipelineStages(t *testing.T) {
	Convey("Given an empty output directory", t, func() {
		ctx := context.Background()
		cfg := smallConfig(t.TempDir())
		p := service.New(cfg)

		Convey("When a stage runs before its input exists", func() {
			err := p.Embed(ctx)

			Convey("Then it reports the missing handoff file", func() {
				So(errors.Is(err, storage.ErrMissing), ShouldBeTrue)
				So(err.Error(), ShouldContainSubstring, service.StageEmbed)
			})
		})

		Convey("When stages run one at a time", func() {
			So(p.Generate(ctx), ShouldBeNil)
			So(p.Embed(ctx), ShouldBeNil)

			coords, err := storage.ReadCoordinates(p.Layout().Path(storage.LatentFile))
			So(err, ShouldBeNil)
			seqs, err := storage.ReadSequences(p.Layout().Path(storage.SequencesFile))
			So(err, ShouldBeNil)

			Convey("Then each stage consumes the previous file", func() {
				So(coords, ShouldHaveLength, len(seqs))
				for i := range coords {
					So(coords[i].ID, ShouldEqual, seqs[i].ID)
					So(coords[i].Label, ShouldEqual, seqs[i].Label)
				}
			})

			Convey("Then the manifest keeps one run id across stages", func() {
				So(p.Cluster(ctx), ShouldBeNil)
				r, err := p.Report(ctx)
				So(err, ShouldBeNil)
				m, err := storage.ReadManifest(p.Layout().Path(storage.ManifestFile))
				So(err, ShouldBeNil)
				So(m.RunID, ShouldEqual, r.RunID)
				So(m.Stages, ShouldHaveLength, 4)
			})
		})

		Convey("When the context is already canceled", func() {
			canceled, cancel := context.WithCancel(ctx)
			cancel()
			err := p.Generate(canceled)

			Convey("Then the stage does not run", func() {
				So(errors.Is(err, context.Canceled), ShouldBeTrue)
				So(exists(p.Layout().Path(storage.SequencesFile)), ShouldBeFalse)
			})
		})

		Convey("When the dendrogram is disabled", func() {
			cfg.Clustering.Dendrogram = false
			cfg.Clustering.Plots = false
			_, err := p.Run(ctx)

			Convey("Then no plots are written", func() {
				So(err, ShouldBeNil)
				So(exists(p.Layout().Path(storage.ClusterPlotFile)), ShouldBeFalse)
				So(exists(p.Layout().Path(storage.DendrogramFile)), ShouldBeFalse)
			})
		})
	})
}
