package storage

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/okian/argonauts/internal/domain/model"
)

// clusterRecord is one element of cluster_results.json.
type clusterRecord struct {
	ASVID     string  `json:"asv_id"`
	X         float64 `json:"x"`
	Y         float64 `json:"y"`
	Label     string  `json:"original_label"`
	ClusterID *int    `json:"cluster_id"`
}

// WriteAssignments writes cluster results as a JSON array of records.
func WriteAssignments(path string, as []model.Assignment) error {
	recs := make([]clusterRecord, len(as))
	for i, a := range as {
		id := a.ClusterID
		recs[i] = clusterRecord{ASVID: a.ID, X: a.X, Y: a.Y, Label: a.Label, ClusterID: &id}
	}
	return WriteAtomic(path, func(w io.Writer) error {
		return json.NewEncoder(w).Encode(recs)
	})
}

// ReadAssignments reads a file written by WriteAssignments. Every record needs a cluster_id.
func ReadAssignments(path string) ([]model.Assignment, error) {
	var recs []clusterRecord
	if err := readJSON(path, &recs); err != nil {
		return nil, err
	}
	out := make([]model.Assignment, len(recs))
	for i, r := range recs {
		if r.ClusterID == nil {
			return nil, fmt.Errorf("%w: %s record %d has no cluster_id", ErrMalformed, path, i)
		}
		out[i] = model.Assignment{
			Coordinate: model.Coordinate{ID: r.ASVID, X: r.X, Y: r.Y, Label: r.Label},
			ClusterID:  *r.ClusterID,
		}
	}
	return out, nil
}

// WriteReport writes the report indented by two spaces.
func WriteReport(path string, r *model.Report) error {
	return WriteAtomic(path, func(w io.Writer) error {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(r)
	})
}

// ReadReport reads a file written by WriteReport.
func ReadReport(path string) (*model.Report, error) {
	var r model.Report
	if err := readJSON(path, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

func readJSON(path string, v any) error {
	f, err := openInput(path)
	if err != nil {
		return err
	}
	defer f.Close()
	if err := json.NewDecoder(f).Decode(v); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrMalformed, path, err)
	}
	return nil
}
