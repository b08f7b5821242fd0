package storage

import (
	"bufio"
	"fmt"
	"io"

	"github.com/okian/argonauts/internal/domain/derep"
	"github.com/okian/argonauts/internal/domain/model"
)

// fastaWidth is the residue count per sequence line.
const fastaWidth = 60

// WriteFASTA exports sequences as ">id label" records wrapped at 60 columns.
func WriteFASTA(path string, seqs []model.Sequence) error {
	return WriteAtomic(path, func(w io.Writer) error {
		bw := bufio.NewWriter(w)
		for _, s := range seqs {
			if err := writeRecord(bw, s.ID+" "+s.Label, s.Sequence); err != nil {
				return err
			}
		}
		return bw.Flush()
	})
}

// WriteUniquesFASTA exports dereplicated sequences as ">first_id;size=N" records
// in the order given.
func WriteUniquesFASTA(path string, uniques []derep.Unique) error {
	return WriteAtomic(path, func(w io.Writer) error {
		bw := bufio.NewWriter(w)
		for _, u := range uniques {
			if err := writeRecord(bw, fmt.Sprintf("%s;size=%d", u.FirstID, u.Abundance), u.Sequence); err != nil {
				return err
			}
		}
		return bw.Flush()
	})
}

func writeRecord(bw *bufio.Writer, header, seq string) error {
	if _, err := bw.WriteString(">" + header + "\n"); err != nil {
		return err
	}
	for i := 0; i < len(seq); i += fastaWidth {
		end := min(i+fastaWidth, len(seq))
		if _, err := bw.WriteString(seq[i:end] + "\n"); err != nil {
			return err
		}
	}
	return nil
}
