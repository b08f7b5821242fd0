package storage

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// StageRecord describes one stage execution in the manifest.
type StageRecord struct {
	Name       string         `yaml:"name"`
	StartedAt  time.Time      `yaml:"started_at"`
	Duration   time.Duration  `yaml:"duration"`
	Records    int            `yaml:"records"`
	Outputs    []string       `yaml:"outputs"`
	Parameters map[string]any `yaml:"parameters,omitempty"`
}

// Manifest summarizes a pipeline run next to its outputs.
type Manifest struct {
	RunID     string        `yaml:"run_id"`
	StartedAt time.Time     `yaml:"started_at"`
	Stages    []StageRecord `yaml:"stages"`
}

// Stage returns the record for name, if present.
func (m *Manifest) Stage(name string) (StageRecord, bool) {
	for _, s := range m.Stages {
		if s.Name == name {
			return s, true
		}
	}
	return StageRecord{}, false
}

// Upsert replaces the record with the same name or appends rec.
func (m *Manifest) Upsert(rec StageRecord) {
	for i, s := range m.Stages {
		if s.Name == rec.Name {
			m.Stages[i] = rec
			return
		}
	}
	m.Stages = append(m.Stages, rec)
}

// WriteManifest writes m as YAML.
func WriteManifest(path string, m *Manifest) error {
	return WriteAtomic(path, func(w io.Writer) error {
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(m); err != nil {
			return err
		}
		return enc.Close()
	})
}

// ReadManifest reads a manifest, returning an empty one when the file does not exist.
func ReadManifest(path string) (*Manifest, error) {
	raw, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return &Manifest{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	var m Manifest
	if err := yaml.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrMalformed, path, err)
	}
	return &m, nil
}
