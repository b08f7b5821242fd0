package repository_test

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/okian/argonauts/internal/adapters/repository"
	. "github.com/smartystreets/goconvey/convey"
)

func TestSQLiteStore(t *testing.T) {
	Convey("Given a fresh history database", t, func() {
		ctx := context.Background()
		path := filepath.Join(t.TempDir(), "history", "runs.db")
		store, err := repository.Open(ctx, path, repository.WithMaxList(10))
		So(err, ShouldBeNil)
		defer store.Close()

		base := time.Date(2026, 10, 19, 8, 0, 0, 0, time.UTC)

		Convey("When nothing was recorded", func() {
			n, err := store.Count(ctx)

			Convey("Then it is empty", func() {
				So(err, ShouldBeNil)
				So(n, ShouldEqual, 0)
				runs, err := store.List(ctx, 5)
				So(err, ShouldBeNil)
				So(runs, ShouldBeEmpty)
			})
		})

		Convey("When recording a run", func() {
			run := repository.Run{
				RunID:        "run-a",
				StartedAt:    base,
				Duration:     1500 * time.Millisecond,
				TotalASVs:    40000,
				ClusterCount: 480,
				NoiseCount:   120,
				ReportJSON:   []byte(`{"total_asvs_processed":40000}`),
			}
			So(store.Record(ctx, run), ShouldBeNil)

			Convey("Then Get returns it", func() {
				got, err := store.Get(ctx, "run-a")
				So(err, ShouldBeNil)
				So(got, ShouldResemble, run)
			})

			Convey("Then recording the same id replaces it", func() {
				run.ClusterCount = 3
				So(store.Record(ctx, run), ShouldBeNil)
				n, err := store.Count(ctx)
				So(err, ShouldBeNil)
				So(n, ShouldEqual, 1)
				got, err := store.Get(ctx, "run-a")
				So(err, ShouldBeNil)
				So(got.ClusterCount, ShouldEqual, 3)
			})
		})

		Convey("When several runs are recorded", func() {
			for i := 0; i < 4; i++ {
				So(store.Record(ctx, repository.Run{RunID: fmt.Sprintf("run-%d", i), StartedAt: base.Add(time.Duration(i) * time.Minute)}), ShouldBeNil)
			}

			Convey("Then List returns the newest first up to the limit", func() {
				runs, err := store.List(ctx, 2)
				So(err, ShouldBeNil)
				So(runs, ShouldHaveLength, 2)
				So(runs[0].RunID, ShouldEqual, "run-3")
				So(runs[1].RunID, ShouldEqual, "run-2")
			})
		})

		Convey("When the id is unknown", func() {
			_, err := store.Get(ctx, "missing")

			Convey("Then it is not found", func() {
				So(errors.Is(err, repository.ErrNotFound), ShouldBeTrue)
			})
		})

		Convey("When the limit is out of range", func() {
			_, errZero := store.List(ctx, 0)
			_, errBig := store.List(ctx, 11)

			Convey("Then it is rejected", func() {
				So(errors.Is(errZero, repository.ErrInvalidLimit), ShouldBeTrue)
				So(errors.Is(errBig, repository.ErrInvalidLimit), ShouldBeTrue)
			})
		})
	})

	Convey("Given a database that is reopened", t, func() {
		ctx := context.Background()
		path := filepath.Join(t.TempDir(), "runs.db")
		first, err := repository.Open(ctx, path)
		So(err, ShouldBeNil)
		So(first.Record(ctx, repository.Run{RunID: "kept", StartedAt: time.Unix(0, 0)}), ShouldBeNil)
		So(first.Close(), ShouldBeNil)

		Convey("Then earlier runs are still there", func() {
			second, err := repository.Open(ctx, path)
			So(err, ShouldBeNil)
			defer second.Close()
			n, err := second.Count(ctx)
			So(err, ShouldBeNil)
			So(n, ShouldEqual, 1)
		})
	})
}
