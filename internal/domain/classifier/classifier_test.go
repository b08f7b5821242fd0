package classifier_test

import (
	"context"
	"errors"
	"testing"

	"github.com/okian/argonauts/internal/domain/classifier"
	"github.com/okian/argonauts/internal/domain/model"
	"github.com/smartystreets/goconvey/convey"
)

func TestLookupClassifier(t *testing.T) {
	convey.Convey("Given the default classifier", t, func() {
		ctx := context.Background()
		c := classifier.NewLookupClassifier()

		convey.Convey("When classifying a known cluster", func() {
			res, err := c.Classify(ctx, 0)

			convey.Convey("Then it gets a name and a confidence in range", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(res.Name, convey.ShouldEqual, "Bathynomus giganteus")
				convey.So(res.Status, convey.ShouldEqual, model.StatusKnown)
				convey.So(res.Confidence, convey.ShouldNotBeNil)
				convey.So(*res.Confidence, convey.ShouldBeBetweenOrEqual, 0.8, 0.99)
				convey.So(*res.Confidence, convey.ShouldEqual, classifier.Round2(*res.Confidence))
				convey.So(res.Lineage, convey.ShouldEqual, "Full classification: ...")
			})
		})

		convey.Convey("When classifying a novel cluster", func() {
			res, err := c.Classify(ctx, 1)

			convey.Convey("Then it has no confidence and a closest phylum", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(res.Status, convey.ShouldEqual, model.StatusNovel)
				convey.So(res.Confidence, convey.ShouldBeNil)
				convey.So(res.Lineage, convey.ShouldBeIn, "Closest known: Phylum Chordata", "Closest known: Phylum Arthropoda")
			})
		})

		convey.Convey("When classifying noise", func() {
			res, err := c.Classify(ctx, model.NoiseCluster)

			convey.Convey("Then it is tagged Noise", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(res.Name, convey.ShouldEqual, "Noise")
				convey.So(res.Status, convey.ShouldEqual, model.StatusNoise)
				convey.So(res.Confidence, convey.ShouldBeNil)
			})
		})

		convey.Convey("When classifying an unmapped cluster", func() {
			res, err := c.Classify(ctx, 17)

			convey.Convey("Then it is an unknown taxon", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(res.Name, convey.ShouldEqual, "Unknown Taxa 17")
				convey.So(res.Status, convey.ShouldEqual, model.StatusUnknown)
				convey.So(res.Confidence, convey.ShouldBeNil)
			})
		})

		convey.Convey("When the context is cancelled", func() {
			cctx, cancel := context.WithCancel(ctx)
			cancel()
			_, err := c.Classify(cctx, 0)

			convey.Convey("Then it fails", func() {
				convey.So(errors.Is(err, context.Canceled), convey.ShouldBeTrue)
			})
		})
	})

	convey.Convey("Given a custom table and seed", t, func() {
		opts := []classifier.Option{
			classifier.WithTaxa([]classifier.Taxon{{ClusterID: 4, Name: "Known Species Alpha", Status: model.StatusNovel}}),
			classifier.WithSeed(9),
		}
		a := classifier.NewLookupClassifier(opts...)
		b := classifier.NewLookupClassifier(opts...)

		convey.Convey("Then status comes from the table, not the name", func() {
			name, status := a.Lookup(4)
			convey.So(name, convey.ShouldEqual, "Known Species Alpha")
			convey.So(status, convey.ShouldEqual, model.StatusNovel)
		})

		convey.Convey("Then defaults are replaced", func() {
			_, status := a.Lookup(0)
			convey.So(status, convey.ShouldEqual, model.StatusUnknown)
		})

		convey.Convey("Then the same seed draws the same values", func() {
			convey.So(a.Uniform(1.5, 3.5), convey.ShouldEqual, b.Uniform(1.5, 3.5))
		})
	})
}

func TestRound2(t *testing.T) {
	convey.Convey("Given values to round", t, func() {
		convey.So(classifier.Round2(0.846), convey.ShouldAlmostEqual, 0.85, 1e-12)
		convey.So(classifier.Round2(2.3449), convey.ShouldAlmostEqual, 2.34, 1e-12)
		convey.So(classifier.Round2(0), convey.ShouldEqual, 0.0)
	})
}
