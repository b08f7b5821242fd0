// Package config defines pipeline configuration structures and loading hooks.
//
// Conventions:
// - Every stage reads its parameters from a section of Config.
// - New() returns the defaults used by the reference pipeline run.
// - Load layers a YAML file and ARGONAUTS_* environment variables on top.
package config

import (
	"fmt"
	"runtime"
	"time"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level" yaml:"log_level"`

	// LogFormat selects the log handler: text or json.
	LogFormat string `koanf:"log_format" yaml:"log_format"`

	// OutputDir receives every stage's handoff file.
	OutputDir string `koanf:"output_dir" yaml:"output_dir"`

	Generator  GeneratorConfig  `koanf:"generator" yaml:"generator"`
	Features   FeaturesConfig   `koanf:"features" yaml:"features"`
	Embedding  EmbeddingConfig  `koanf:"embedding" yaml:"embedding"`
	Clustering ClusteringConfig `koanf:"clustering" yaml:"clustering"`
	Report     ReportConfig     `koanf:"report" yaml:"report"`
	History    HistoryConfig    `koanf:"history" yaml:"history"`
	Serve      ServeConfig      `koanf:"serve" yaml:"serve"`
}

// GeneratorConfig drives the synthetic sequence generator.
type GeneratorConfig struct {
	KnownSpecies         int     `koanf:"known_species" yaml:"known_species"`
	NovelSpecies         int     `koanf:"novel_species" yaml:"novel_species"`
	KnownReadsPerSpecies int     `koanf:"known_reads_per_species" yaml:"known_reads_per_species"`
	NovelReadsPerSpecies int     `koanf:"novel_reads_per_species" yaml:"novel_reads_per_species"`
	Length               int     `koanf:"length" yaml:"length"`
	MutationRate         float64 `koanf:"mutation_rate" yaml:"mutation_rate"`
	Seed                 uint64  `koanf:"seed" yaml:"seed"`
	// WriteFASTA also exports the sequences, and the dereplicated uniques
	// seen at least MinAbundance times, as FASTA next to the CSV.
	WriteFASTA   bool `koanf:"write_fasta" yaml:"write_fasta"`
	MinAbundance int  `koanf:"min_abundance" yaml:"min_abundance"`
}

// FeaturesConfig drives the TF-IDF vectorizer.
type FeaturesConfig struct {
	NGramMin  int  `koanf:"ngram_min" yaml:"ngram_min"`
	NGramMax  int  `koanf:"ngram_max" yaml:"ngram_max"`
	Lowercase bool `koanf:"lowercase" yaml:"lowercase"`
}

// EmbeddingConfig drives t-SNE.
type EmbeddingConfig struct {
	Method            string  `koanf:"method" yaml:"method"`
	Perplexity        float64 `koanf:"perplexity" yaml:"perplexity"`
	EarlyExaggeration float64 `koanf:"early_exaggeration" yaml:"early_exaggeration"`
	// LearningRate of 0 selects max(n/early_exaggeration/4, 50).
	LearningRate float64 `koanf:"learning_rate" yaml:"learning_rate"`
	Iterations   int     `koanf:"iterations" yaml:"iterations"`
	Angle        float64 `koanf:"angle" yaml:"angle"`
	Seed         uint64  `koanf:"seed" yaml:"seed"`
	Workers      int     `koanf:"workers" yaml:"workers"`
}

// ClusteringConfig drives DBSCAN and the dendrogram.
type ClusteringConfig struct {
	Eps                 float64 `koanf:"eps" yaml:"eps"`
	MinSamples          int     `koanf:"min_samples" yaml:"min_samples"`
	Dendrogram          bool    `koanf:"dendrogram" yaml:"dendrogram"`
	DendrogramMaxPoints int     `koanf:"dendrogram_max_points" yaml:"dendrogram_max_points"`
	Plots               bool    `koanf:"plots" yaml:"plots"`
	Seed                uint64  `koanf:"seed" yaml:"seed"`
	// Workers bounds concurrent region queries.
	Workers int `koanf:"workers" yaml:"workers"`
}

// Taxon maps one cluster id to a display name and status tag.
type Taxon struct {
	ClusterID int    `koanf:"cluster_id" yaml:"cluster_id"`
	Name      string `koanf:"name" yaml:"name"`
	Status    string `koanf:"status" yaml:"status"`
}

// ReportConfig drives the report synthesizer.
type ReportConfig struct {
	Seed uint64  `koanf:"seed" yaml:"seed"`
	Taxa []Taxon `koanf:"taxa" yaml:"taxa"`
}

// HistoryConfig enables the SQLite run history when Path is set.
type HistoryConfig struct {
	Path        string        `koanf:"path" yaml:"path"`
	BusyTimeout time.Duration `koanf:"busy_timeout" yaml:"busy_timeout"`
	// MaxList caps how many runs one listing returns, in the store and over HTTP.
	MaxList int `koanf:"max_list" yaml:"max_list"`
}

// ServeConfig configures the read-only report viewer.
type ServeConfig struct {
	Addr string `koanf:"addr" yaml:"addr"`
}

// New returns the defaults of the reference pipeline run.
func New() *Config {
	return &Config{
		LogLevel:  "info",
		LogFormat: "text",
		OutputDir: "data_output",
		Generator: GeneratorConfig{
			KnownSpecies:         300,
			NovelSpecies:         200,
			KnownReadsPerSpecies: 100,
			NovelReadsPerSpecies: 50,
			Length:               250,
			MutationRate:         0.01,
			Seed:                 42,
			MinAbundance:         1,
		},
		Features: FeaturesConfig{
			NGramMin:  1,
			NGramMax:  3,
			Lowercase: true,
		},
		Embedding: EmbeddingConfig{
			Method:            "barnes_hut",
			Perplexity:        30,
			EarlyExaggeration: 12,
			Iterations:        1000,
			Angle:             0.5,
			Seed:              42,
			Workers:           runtime.NumCPU(),
		},
		Clustering: ClusteringConfig{
			Eps:                 0.5,
			MinSamples:          10,
			Dendrogram:          true,
			DendrogramMaxPoints: 2000,
			Plots:               true,
			Seed:                42,
			Workers:             runtime.NumCPU(),
		},
		Report: ReportConfig{
			Seed: 42,
			Taxa: DefaultTaxa(),
		},
		History: HistoryConfig{
			BusyTimeout: 5 * time.Second,
			MaxList:     100,
		},
		Serve: ServeConfig{
			Addr: ":9080",
		},
	}
}

// DefaultTaxa returns the static cluster-to-name table.
func DefaultTaxa() []Taxon {
	return []Taxon{
		{ClusterID: 0, Name: "Bathynomus giganteus", Status: "Known"},
		{ClusterID: 1, Name: "Novel Taxa 1", Status: "Novel"},
		{ClusterID: 2, Name: "Halobates micans", Status: "Known"},
		{ClusterID: -1, Name: "Noise", Status: "Noise"},
	}
}

// Validate rejects configurations no stage could run with.
func (c *Config) Validate() error {
	switch {
	case c.OutputDir == "":
		return fmt.Errorf("%w: output_dir must not be empty", ErrInvalidConfig)
	case c.Generator.Length <= 0:
		return fmt.Errorf("%w: generator.length must be positive", ErrInvalidConfig)
	case c.Generator.MutationRate < 0 || c.Generator.MutationRate > 1:
		return fmt.Errorf("%w: generator.mutation_rate must be within [0,1]", ErrInvalidConfig)
	case c.Generator.MinAbundance < 1:
		return fmt.Errorf("%w: generator.min_abundance must be at least 1", ErrInvalidConfig)
	case c.Features.NGramMin < 1 || c.Features.NGramMax < c.Features.NGramMin:
		return fmt.Errorf("%w: features ngram range is invalid", ErrInvalidConfig)
	case c.Embedding.Method != "barnes_hut" && c.Embedding.Method != "exact":
		return fmt.Errorf("%w: embedding.method must be barnes_hut or exact", ErrInvalidConfig)
	case c.Embedding.Perplexity <= 0:
		return fmt.Errorf("%w: embedding.perplexity must be positive", ErrInvalidConfig)
	case c.Clustering.Eps <= 0:
		return fmt.Errorf("%w: clustering.eps must be positive", ErrInvalidConfig)
	case c.Clustering.MinSamples < 1:
		return fmt.Errorf("%w: clustering.min_samples must be at least 1", ErrInvalidConfig)
	case c.History.MaxList < 1:
		return fmt.Errorf("%w: history.max_list must be at least 1", ErrInvalidConfig)
	}
	for _, t := range c.Report.Taxa {
		switch t.Status {
		case "Known", "Novel", "Noise", "Unknown":
		default:
			return fmt.Errorf("%w: taxon %q has unknown status %q", ErrInvalidConfig, t.Name, t.Status)
		}
	}
	return nil
}
