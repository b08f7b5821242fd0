package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/okian/argonauts/internal/adapters/repository"
	"github.com/okian/argonauts/internal/adapters/storage"
	app "github.com/okian/argonauts/internal/app"
	"github.com/okian/argonauts/pkg/logger"
	"github.com/smartystreets/goconvey/convey"
)

const smallConfig = `
generator:
  known_species: 2
  novel_species: 1
  known_reads_per_species: 10
  novel_reads_per_species: 6
  length: 40
  mutation_rate: 0.05
embedding:
  perplexity: 5
  iterations: 260
  workers: 2
clustering:
  eps: 5
  min_samples: 3
  plots: false
`

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	root := newRootCmd(&cli{logOut: io.Discard})
	root.SetOut(&out)
	root.SetErr(io.Discard)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func writeConfig(t *testing.T, dir, body string) string {
	t.Helper()
	path := filepath.Join(dir, "argonauts.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestCommands(t *testing.T) {
	convey.Convey("Given a small configuration file", t, func() {
		dir := t.TempDir()
		out := filepath.Join(dir, "out")
		cfgPath := writeConfig(t, dir, smallConfig+"history:\n  path: "+filepath.Join(dir, "runs.db")+"\n")

		convey.Convey("When running the whole pipeline", func() {
			stdout, err := execute(t, "run", "--config", cfgPath, "--output-dir", out, "--log-level", "debug")

			convey.Convey("Then it writes the report and prints a summary", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(stdout, convey.ShouldContainSubstring, "26 ASVs")
				convey.So(stdout, convey.ShouldContainSubstring, "embed")
				convey.So(stdout, convey.ShouldContainSubstring, "26 records in")
				convey.So(stdout, convey.ShouldContainSubstring, filepath.Join(out, storage.ReportFile))
				r, err := storage.ReadReport(filepath.Join(out, storage.ReportFile))
				convey.So(err, convey.ShouldBeNil)
				convey.So(r.TotalASVsProcessed, convey.ShouldEqual, 26)
			})

			convey.Convey("Then the run is recorded in the history", func() {
				store, err := repository.Open(context.Background(), filepath.Join(dir, "runs.db"))
				convey.So(err, convey.ShouldBeNil)
				defer store.Close()
				n, err := store.Count(context.Background())
				convey.So(err, convey.ShouldBeNil)
				convey.So(n, convey.ShouldEqual, 1)
			})
		})

		convey.Convey("When running stages one by one", func() {
			for _, stage := range []string{"generate", "embed", "cluster"} {
				_, err := execute(t, stage, "--config", cfgPath, "--output-dir", out)
				convey.So(err, convey.ShouldBeNil)
			}
			stdout, err := execute(t, "report", "--config", cfgPath, "--output-dir", out)

			convey.Convey("Then the report stage finds every input", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(stdout, convey.ShouldStartWith, "run ")
			})
		})

		convey.Convey("When a stage runs without its input", func() {
			_, err := execute(t, "cluster", "--config", cfgPath, "--output-dir", out)

			convey.Convey("Then the command fails", func() {
				convey.So(err, convey.ShouldNotBeNil)
				convey.So(err.Error(), convey.ShouldContainSubstring, "cluster stage")
			})
		})

		convey.Convey("When the configuration is invalid", func() {
			bad := writeConfig(t, t.TempDir(), "clustering:\n  eps: -1\n")
			_, err := execute(t, "generate", "--config", bad, "--output-dir", out)

			convey.Convey("Then nothing runs", func() {
				convey.So(err, convey.ShouldNotBeNil)
				_, statErr := os.Stat(filepath.Join(out, storage.SequencesFile))
				convey.So(os.IsNotExist(statErr), convey.ShouldBeTrue)
			})
		})

		convey.Convey("When an unknown command is given", func() {
			_, err := execute(t, "train")

			convey.Convey("Then it is rejected", func() {
				convey.So(err, convey.ShouldNotBeNil)
				convey.So(strings.Contains(err.Error(), "unknown command"), convey.ShouldBeTrue)
			})
		})
	})
}

func TestServeHandler(t *testing.T) {
	convey.Convey("Given the viewer handler over a finished run", t, func() {
		dir := t.TempDir()
		cfgPath := writeConfig(t, dir, smallConfig)
		_, err := execute(t, "run", "--config", cfgPath, "--output-dir", dir)
		convey.So(err, convey.ShouldBeNil)

		viewer := app.NewViewer(storage.NewLayout(dir), nil, logger.Get())
		convey.So(viewer.Reload(context.Background()), convey.ShouldBeNil)
		handler := newHandler(context.Background(), viewer, 10)

		convey.Convey("When requesting the report", func() {
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/report", nil))

			convey.Convey("Then it matches the file on disk", func() {
				convey.So(w.Code, convey.ShouldEqual, http.StatusOK)
				var body map[string]any
				convey.So(json.Unmarshal(w.Body.Bytes(), &body), convey.ShouldBeNil)
				onDisk, err := storage.ReadReport(filepath.Join(dir, storage.ReportFile))
				convey.So(err, convey.ShouldBeNil)
				convey.So(body["run_id"], convey.ShouldEqual, onDisk.RunID)
			})
		})

		convey.Convey("When requesting health and metrics", func() {
			health := httptest.NewRecorder()
			handler.ServeHTTP(health, httptest.NewRequest(http.MethodGet, "/healthz", nil))
			metrics := httptest.NewRecorder()
			handler.ServeHTTP(metrics, httptest.NewRequest(http.MethodGet, "/metrics", nil))

			convey.Convey("Then both answer", func() {
				convey.So(health.Code, convey.ShouldEqual, http.StatusOK)
				convey.So(health.Body.String(), convey.ShouldContainSubstring, `"report_loaded":true`)
				convey.So(metrics.Body.String(), convey.ShouldContainSubstring, "argonauts_pipeline_stage_runs_total")
			})
		})

		convey.Convey("When requesting the API description", func() {
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/openapi.yaml", nil))

			convey.Convey("Then the viewer routes are documented", func() {
				convey.So(w.Code, convey.ShouldEqual, http.StatusOK)
				convey.So(w.Body.String(), convey.ShouldContainSubstring, "/runs/{run_id}:")
			})
		})
	})
}
