// Package storage reads and writes the files stages hand to each other.
//
// Tables are CSV with a header row, cluster results and the report are JSON,
// the run manifest is YAML. Every write goes to a temporary file in the same
// directory and is renamed into place, so readers never see partial files.
package storage

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
)

// File names inside the output directory.
const (
	SequencesFile    = "synthetic_asv_data.csv"
	FASTAFile        = "synthetic_asv_data.fasta"
	UniquesFile      = "synthetic_asv_uniques.fasta"
	LatentFile       = "latent_space_data.csv"
	ClusterFile      = "cluster_results.json"
	ClusterPlotFile  = "cluster_plot.png"
	DendrogramFile   = "dendrogram.png"
	ReportFile       = "biodiversity_report.json"
	ManifestFile     = "run_manifest.yaml"
	outputPermission = 0o755
	filePermission   = 0o644
)

// Layout resolves handoff file paths under one output directory.
type Layout struct {
	Dir string
}

// NewLayout returns a Layout rooted at dir.
func NewLayout(dir string) Layout {
	return Layout{Dir: dir}
}

// Path joins name onto the output directory.
func (l Layout) Path(name string) string {
	return filepath.Join(l.Dir, name)
}

// Ensure creates the output directory if needed.
func (l Layout) Ensure() error {
	if err := os.MkdirAll(l.Dir, outputPermission); err != nil {
		return fmt.Errorf("create output dir %s: %w", l.Dir, err)
	}
	return nil
}

// WriteAtomic streams write into a temporary file in the same directory and renames it to path.
func WriteAtomic(path string, write func(io.Writer) error) (err error) {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer func() {
		if err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmp.Name())
		}
	}()

	if err = write(tmp); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	// CreateTemp opens files owner-only; outputs are read by other processes.
	if err = tmp.Chmod(filePermission); err != nil {
		return fmt.Errorf("chmod %s: %w", path, err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", path, err)
	}
	if err = os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("rename %s: %w", path, err)
	}
	return nil
}

func openInput(path string) (*os.File, error) {
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrMissing, path)
	}
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	return f, nil
}
