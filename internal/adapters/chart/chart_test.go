package chart_test

import (
	"bytes"
	"context"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/okian/argonauts/internal/adapters/chart"
	"github.com/okian/argonauts/internal/domain/clustering"
	"github.com/okian/argonauts/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

func TestScatter(t *testing.T) {
	Convey("Given assignments with noise", t, func() {
		as := []model.Assignment{
			{Coordinate: model.Coordinate{X: 0, Y: 0}, ClusterID: 0},
			{Coordinate: model.Coordinate{X: 1, Y: 1}, ClusterID: 1},
			{Coordinate: model.Coordinate{X: 5, Y: 5}, ClusterID: -1},
		}

		Convey("When plotting and saving", func() {
			p, err := chart.Scatter(as)
			So(err, ShouldBeNil)
			path := filepath.Join(t.TempDir(), "cluster_plot.png")
			So(chart.Save(p, chart.Options{Width: 200, Height: 150}, path), ShouldBeNil)

			Convey("Then a decodable PNG is written", func() {
				raw, err := os.ReadFile(path)
				So(err, ShouldBeNil)
				_, err = png.Decode(bytes.NewReader(raw))
				So(err, ShouldBeNil)
			})
		})
	})
}

func TestDendrogram(t *testing.T) {
	Convey("Given a linkage", t, func() {
		points := [][2]float64{{0, 0}, {1, 0}, {10, 0}, {11, 0}}
		merges, err := clustering.Ward(context.Background(), points)
		So(err, ShouldBeNil)
		as := make([]model.Assignment, len(points))
		for i := range as {
			as[i].ClusterID = i / 2
		}

		Convey("When plotting with labels", func() {
			p, err := chart.Dendrogram(merges, len(points), chart.ClusterLabels(as))
			So(err, ShouldBeNil)
			path := filepath.Join(t.TempDir(), "dendrogram.png")

			Convey("Then it renders", func() {
				So(chart.Save(p, chart.DefaultDendrogramOptions(), path), ShouldBeNil)
				info, err := os.Stat(path)
				So(err, ShouldBeNil)
				So(info.Size(), ShouldBeGreaterThan, 0)
			})
		})

		Convey("When the merge count does not match", func() {
			_, err := chart.Dendrogram(merges[:1], len(points), nil)

			Convey("Then it fails", func() {
				So(err, ShouldNotBeNil)
			})
		})
	})

	Convey("Given assignments", t, func() {
		labels := chart.ClusterLabels([]model.Assignment{{ClusterID: 3}, {ClusterID: -1}})

		Convey("Then labels are their cluster ids", func() {
			So(labels, ShouldResemble, []string{"3", "-1"})
		})
	})
}
