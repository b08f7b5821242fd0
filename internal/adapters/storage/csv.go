package storage

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"slices"
	"strconv"

	"github.com/okian/argonauts/internal/domain/model"
)

var (
	sequenceHeader   = []string{"asv_id", "asv_sequence", "original_label"} //nolint:gochecknoglobals // file format
	coordinateHeader = []string{"asv_id", "x", "y", "original_label"}       //nolint:gochecknoglobals // file format
)

// WriteSequences writes the generator output table.
func WriteSequences(path string, seqs []model.Sequence) error {
	return WriteAtomic(path, func(w io.Writer) error {
		cw := csv.NewWriter(w)
		if err := cw.Write(sequenceHeader); err != nil {
			return err
		}
		for _, s := range seqs {
			if err := cw.Write([]string{s.ID, s.Sequence, s.Label}); err != nil {
				return err
			}
		}
		cw.Flush()
		return cw.Error()
	})
}

// ReadSequences reads a table written by WriteSequences.
func ReadSequences(path string) ([]model.Sequence, error) {
	var out []model.Sequence
	err := readTable(path, sequenceHeader, func(rec []string) error {
		out = append(out, model.Sequence{ID: rec[0], Sequence: rec[1], Label: rec[2]})
		return nil
	})
	return out, err
}

// WriteCoordinates writes the embedding table.
func WriteCoordinates(path string, coords []model.Coordinate) error {
	return WriteAtomic(path, func(w io.Writer) error {
		cw := csv.NewWriter(w)
		if err := cw.Write(coordinateHeader); err != nil {
			return err
		}
		for _, c := range coords {
			rec := []string{
				c.ID,
				strconv.FormatFloat(c.X, 'g', -1, 64),
				strconv.FormatFloat(c.Y, 'g', -1, 64),
				c.Label,
			}
			if err := cw.Write(rec); err != nil {
				return err
			}
		}
		cw.Flush()
		return cw.Error()
	})
}

// ReadCoordinates reads a table written by WriteCoordinates.
func ReadCoordinates(path string) ([]model.Coordinate, error) {
	var out []model.Coordinate
	err := readTable(path, coordinateHeader, func(rec []string) error {
		x, err := strconv.ParseFloat(rec[1], 64)
		if err != nil {
			return fmt.Errorf("%w: x %q", ErrMalformed, rec[1])
		}
		y, err := strconv.ParseFloat(rec[2], 64)
		if err != nil {
			return fmt.Errorf("%w: y %q", ErrMalformed, rec[2])
		}
		out = append(out, model.Coordinate{ID: rec[0], X: x, Y: y, Label: rec[3]})
		return nil
	})
	return out, err
}

func readTable(path string, header []string, row func([]string) error) error {
	f, err := openInput(path)
	if err != nil {
		return err
	}
	defer f.Close()

	cr := csv.NewReader(f)
	cr.FieldsPerRecord = len(header)
	cr.ReuseRecord = true

	got, err := cr.Read()
	if err != nil {
		return fmt.Errorf("%w: %s header: %w", ErrMalformed, path, err)
	}
	if !slices.Equal(got, header) {
		return fmt.Errorf("%w: %s header %v, want %v", ErrMalformed, path, got, header)
	}
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("%w: %s: %w", ErrMalformed, path, err)
		}
		if err := row(rec); err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
	}
}
