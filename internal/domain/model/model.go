// Package model contains domain records passed between pipeline stages.
package model

import "time"

// NoiseCluster is the cluster id DBSCAN gives points outside every cluster.
const NoiseCluster = -1

// Sequence is one synthetic ASV read.
type Sequence struct {
	ID       string // deterministic UUIDv5
	Sequence string // bases over ACGT
	Label    string // provenance, e.g. "Known Species 3"
}

// Coordinate is the 2D projection of one sequence.
// Label is carried for validation only and never read by clustering.
type Coordinate struct {
	ID    string
	X     float64
	Y     float64
	Label string
}

// Assignment attaches a DBSCAN cluster id to a coordinate.
type Assignment struct {
	Coordinate
	ClusterID int
}

// IsNoise reports whether the assignment fell outside every cluster.
func (a Assignment) IsNoise() bool {
	return a.ClusterID == NoiseCluster
}

// Merge is one row of a linkage matrix.
// Left and Right are observation indices below n or earlier merges at n+step.
type Merge struct {
	Left     int
	Right    int
	Distance float64
	Size     int
}

// Taxon status tags.
const (
	StatusKnown   = "Known"
	StatusNovel   = "Novel"
	StatusNoise   = "Noise"
	StatusUnknown = "Unknown"
)

// Report is the biodiversity report handed to the frontend.
type Report struct {
	RunID                string         `json:"run_id"`
	GeneratedAt          time.Time      `json:"generated_at"`
	TotalASVsProcessed   int            `json:"total_asvs_processed"`
	KnownSpeciesCount    int            `json:"known_species_count"`
	NovelTaxaCount       int            `json:"novel_taxa_count"`
	UnassignedReadsCount int            `json:"unassigned_reads_count"`
	Metrics              ReportMetrics  `json:"metrics"`
	Observed             ObservedStats  `json:"observed_metrics"`
	TaxonomicProfile     []ProfileEntry `json:"taxonomic_profile"`
}

// ReportMetrics holds the headline figures.
// ShannonIndex and AvgConfidence are sampled placeholders.
type ReportMetrics struct {
	ShannonIndex        float64 `json:"shannon_index"`
	UnassignedReadsRate string  `json:"unassigned_reads_rate"`
	AvgConfidence       string  `json:"avg_confidence"`
}

// ObservedStats are derived from the cluster assignments.
type ObservedStats struct {
	ClusterCount int     `json:"cluster_count"`
	ShannonIndex float64 `json:"shannon_index"`
}

// ProfileEntry is one row of the taxonomic profile.
type ProfileEntry struct {
	ClusterID  int      `json:"cluster_id"`
	Name       string   `json:"name"`
	Status     string   `json:"status"`
	ReadCount  int      `json:"read_count"`
	Confidence *float64 `json:"confidence"`
	Lineage    string   `json:"lineage"`
}
