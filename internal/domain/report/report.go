// Package report compiles cluster assignments into a biodiversity report.
package report

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"gonum.org/v1/gonum/stat"

	"github.com/okian/argonauts/internal/domain/classifier"
	"github.com/okian/argonauts/internal/domain/model"
)

// ErrEmptyInput is returned when there are no assignments to report on.
var ErrEmptyInput = errors.New("no cluster assignments")

// Placeholder ranges for metrics the pipeline does not compute.
const (
	minShannon       = 1.5
	maxShannon       = 3.5
	minAvgConfidence = 0.7
	maxAvgConfidence = 0.99
)

// Namer draws placeholder metrics and classifies clusters.
type Namer interface {
	classifier.Classifier
	Uniform(lo, hi float64) float64
}

// Option applies a configuration option to the Synthesizer.
type Option func(*Synthesizer)

// WithClock sets the time source for generated_at.
func WithClock(now func() time.Time) Option {
	return func(s *Synthesizer) {
		if now != nil {
			s.now = now
		}
	}
}

// WithRunID fixes the run id instead of drawing a random one.
func WithRunID(id string) Option {
	return func(s *Synthesizer) {
		if id != "" {
			s.runID = id
		}
	}
}

// Synthesizer builds reports from assignments.
type Synthesizer struct {
	namer Namer
	now   func() time.Time
	runID string
}

// NewSynthesizer creates a Synthesizer around namer.
func NewSynthesizer(namer Namer, opts ...Option) *Synthesizer {
	s := &Synthesizer{namer: namer, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Synthesize counts reads per status, draws placeholder metrics, and lists one
// profile row per cluster id present in assignments, in ascending id order.
func (s *Synthesizer) Synthesize(ctx context.Context, assignments []model.Assignment) (*model.Report, error) {
	if len(assignments) == 0 {
		return nil, ErrEmptyInput
	}

	reads := make(map[int]int)
	for _, a := range assignments {
		reads[a.ClusterID]++
	}
	ids := make([]int, 0, len(reads))
	for id := range reads {
		ids = append(ids, id)
	}
	sort.Ints(ids)

	runID := s.runID
	if runID == "" {
		runID = uuid.NewString()
	}
	total := len(assignments)
	r := &model.Report{
		RunID:              runID,
		GeneratedAt:        s.now().UTC(),
		TotalASVsProcessed: total,
		TaxonomicProfile:   make([]model.ProfileEntry, 0, len(ids)),
	}

	// Headline placeholders are drawn before the per-cluster draws.
	shannon := classifier.Round2(s.namer.Uniform(minShannon, maxShannon))
	avgConfidence := classifier.Round2(s.namer.Uniform(minAvgConfidence, maxAvgConfidence))

	for _, id := range ids {
		res, err := s.namer.Classify(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("cluster %d: %w", id, err)
		}
		n := reads[id]
		switch res.Status {
		case model.StatusKnown:
			r.KnownSpeciesCount += n
		case model.StatusNovel:
			r.NovelTaxaCount += n
		}
		if id == model.NoiseCluster {
			r.UnassignedReadsCount += n
		}
		r.TaxonomicProfile = append(r.TaxonomicProfile, model.ProfileEntry{
			ClusterID:  id,
			Name:       res.Name,
			Status:     res.Status,
			ReadCount:  n,
			Confidence: res.Confidence,
			Lineage:    res.Lineage,
		})
	}

	r.Metrics = model.ReportMetrics{
		ShannonIndex:        shannon,
		UnassignedReadsRate: decimalString(classifier.Round2(float64(r.UnassignedReadsCount)/float64(total)*100)) + "%",
		AvgConfidence:       decimalString(avgConfidence),
	}
	r.Observed = observed(reads)
	return r, nil
}

// observed derives the cluster count and Shannon index over non-noise clusters.
func observed(reads map[int]int) model.ObservedStats {
	var st model.ObservedStats
	ids := make([]int, 0, len(reads))
	total := 0
	for id, n := range reads {
		if id != model.NoiseCluster {
			st.ClusterCount++
			total += n
			ids = append(ids, id)
		}
	}
	if total == 0 {
		return st
	}
	sort.Ints(ids)
	p := make([]float64, len(ids))
	for i, id := range ids {
		p[i] = float64(reads[id]) / float64(total)
	}
	st.ShannonIndex = math.Round(math.Abs(stat.Entropy(p))*1e4) / 1e4
	return st
}

// decimalString formats v with the shortest representation that keeps a decimal point.
func decimalString(v float64) string {
	s := strconv.FormatFloat(v, 'f', -1, 64)
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s
}
