package model_test

import (
	"encoding/json"
	"testing"

	model "github.com/okian/argonauts/internal/domain/model"
	"github.com/smartystreets/goconvey/convey"
)

func TestAssignment(t *testing.T) {
	convey.Convey("Given assignments", t, func() {
		convey.Convey("When the cluster id is the noise id", func() {
			a := model.Assignment{ClusterID: model.NoiseCluster}

			convey.Convey("Then it is noise", func() {
				convey.So(a.IsNoise(), convey.ShouldBeTrue)
			})
		})

		convey.Convey("When the cluster id is zero", func() {
			a := model.Assignment{Coordinate: model.Coordinate{ID: "a", X: 1, Y: 2}, ClusterID: 0}

			convey.Convey("Then it is a cluster member with promoted coordinate fields", func() {
				convey.So(a.IsNoise(), convey.ShouldBeFalse)
				convey.So(a.X, convey.ShouldEqual, 1.0)
				convey.So(a.ID, convey.ShouldEqual, "a")
			})
		})
	})
}

func TestReportJSON(t *testing.T) {
	convey.Convey("Given a report with a null confidence", t, func() {
		conf := 0.91
		r := model.Report{
			TotalASVsProcessed: 2,
			TaxonomicProfile: []model.ProfileEntry{
				{ClusterID: 0, Name: "Bathynomus giganteus", Status: model.StatusKnown, ReadCount: 1, Confidence: &conf},
				{ClusterID: 1, Name: "Novel Taxa 1", Status: model.StatusNovel, ReadCount: 1},
			},
		}

		convey.Convey("When it is encoded", func() {
			raw, err := json.Marshal(r)
			convey.So(err, convey.ShouldBeNil)

			var decoded map[string]any
			convey.So(json.Unmarshal(raw, &decoded), convey.ShouldBeNil)

			convey.Convey("Then keys follow the report format", func() {
				convey.So(decoded, convey.ShouldContainKey, "total_asvs_processed")
				convey.So(decoded, convey.ShouldContainKey, "unassigned_reads_count")
				convey.So(decoded, convey.ShouldContainKey, "metrics")
				profile := decoded["taxonomic_profile"].([]any)
				convey.So(profile[0].(map[string]any)["confidence"], convey.ShouldEqual, 0.91)
				convey.So(profile[1].(map[string]any)["confidence"], convey.ShouldBeNil)
			})
		})
	})
}
