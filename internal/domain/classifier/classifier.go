// Package classifier names clusters from a static lookup table.
//
// It stands in for a trained sequence classifier: names come from the table
// and confidences are drawn from a seeded random source.
package classifier

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"
	"sync"

	"github.com/okian/argonauts/internal/domain/model"
)

// Default classifier configuration constants.
const (
	defaultRandomSeed = 42
	minConfidence     = 0.8
	maxConfidence     = 0.99
	unresolvedLineage = "Full classification: ..."
)

var closestPhyla = []string{"Phylum Chordata", "Phylum Arthropoda"} //nolint:gochecknoglobals // fixed choice set

// Taxon maps one cluster id to a display name and status.
type Taxon struct {
	ClusterID int
	Name      string
	Status    string
}

// DefaultTaxa returns the built-in table.
func DefaultTaxa() []Taxon {
	return []Taxon{
		{ClusterID: 0, Name: "Bathynomus giganteus", Status: model.StatusKnown},
		{ClusterID: 1, Name: "Novel Taxa 1", Status: model.StatusNovel},
		{ClusterID: 2, Name: "Halobates micans", Status: model.StatusKnown},
		{ClusterID: model.NoiseCluster, Name: "Noise", Status: model.StatusNoise},
	}
}

// Option applies a configuration option to the LookupClassifier.
type Option func(*LookupClassifier)

// WithTaxa replaces the lookup table. Later entries win on duplicate ids.
func WithTaxa(taxa []Taxon) Option {
	return func(c *LookupClassifier) {
		c.table = make(map[int]Taxon, len(taxa))
		for _, t := range taxa {
			c.table[t.ClusterID] = t
		}
	}
}

// WithSeed sets the seed for confidence and lineage draws.
func WithSeed(seed uint64) Option {
	return func(c *LookupClassifier) {
		c.rng = rand.New(rand.NewPCG(seed, seed)) //nolint:gosec // reproducible placeholders
	}
}

// Result is the classification of one cluster.
type Result struct {
	ClusterID  int
	Name       string
	Status     string
	Confidence *float64
	Lineage    string
}

// Classifier assigns a taxon to a cluster id.
type Classifier interface {
	// Classify honours ctx for cancellation.
	Classify(ctx context.Context, clusterID int) (Result, error)
}

// LookupClassifier implements Classifier with a table and simulated confidences.
// Safe for concurrent use; draws are serialized so a fixed call order is reproducible.
type LookupClassifier struct {
	mu    sync.Mutex
	table map[int]Taxon
	rng   *rand.Rand
}

// NewLookupClassifier creates a classifier with the default table.
func NewLookupClassifier(opts ...Option) *LookupClassifier {
	c := &LookupClassifier{}
	WithTaxa(DefaultTaxa())(c)
	WithSeed(defaultRandomSeed)(c)
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Lookup returns the name and status for a cluster id without drawing randomness.
// Unmapped ids become "Unknown Taxa <id>" with status Unknown.
func (c *LookupClassifier) Lookup(clusterID int) (name, status string) {
	if t, ok := c.table[clusterID]; ok {
		return t.Name, t.Status
	}
	return fmt.Sprintf("Unknown Taxa %d", clusterID), model.StatusUnknown
}

// Classify looks up the cluster and draws a confidence for Known taxa and a
// closest phylum for Novel ones.
func (c *LookupClassifier) Classify(ctx context.Context, clusterID int) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, fmt.Errorf("classify: %w", err)
	}
	name, status := c.Lookup(clusterID)
	res := Result{ClusterID: clusterID, Name: name, Status: status, Lineage: unresolvedLineage}

	c.mu.Lock()
	defer c.mu.Unlock()
	if status == model.StatusKnown {
		conf := Round2(uniform(c.rng, minConfidence, maxConfidence))
		res.Confidence = &conf
	}
	if status == model.StatusNovel {
		res.Lineage = "Closest known: " + closestPhyla[c.rng.IntN(len(closestPhyla))]
	}
	return res, nil
}

// Uniform draws from [lo, hi) on the classifier's source.
func (c *LookupClassifier) Uniform(lo, hi float64) float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return uniform(c.rng, lo, hi)
}

func uniform(rng *rand.Rand, lo, hi float64) float64 {
	return lo + (hi-lo)*rng.Float64()
}

// Round2 rounds half away from zero to two decimals.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}
