// Package derep collapses identical reads into unique sequences with abundances.
package derep

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/okian/argonauts/internal/domain/model"
)

// Unique is one distinct sequence and how many reads carried it.
type Unique struct {
	Sequence  string
	Abundance int
	// FirstID is the id of the first read recorded with this sequence.
	FirstID string
	Labels  []string
}

type entry struct {
	order  int
	unique Unique
	labels map[string]struct{}
}

// Dereplicator records reads and counts identical sequences. Safe for concurrent use.
type Dereplicator struct {
	mu           sync.RWMutex
	seen         map[string]*entry
	reads        atomic.Int64
	minAbundance int
}

// New creates an empty Dereplicator.
func New(opts ...Option) *Dereplicator {
	d := &Dereplicator{
		seen:         make(map[string]*entry),
		minAbundance: 1,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// SeenAndRecord records seq and reports whether an identical read was recorded before.
func (d *Dereplicator) SeenAndRecord(_ context.Context, seq model.Sequence) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.reads.Add(1)

	e, exists := d.seen[seq.Sequence]
	if !exists {
		e = &entry{
			order:  len(d.seen),
			unique: Unique{Sequence: seq.Sequence, FirstID: seq.ID},
			labels: make(map[string]struct{}),
		}
		d.seen[seq.Sequence] = e
	}
	e.unique.Abundance++
	if _, ok := e.labels[seq.Label]; !ok {
		e.labels[seq.Label] = struct{}{}
		e.unique.Labels = append(e.unique.Labels, seq.Label)
	}
	return exists
}

// Add records every read of seqs.
func (d *Dereplicator) Add(ctx context.Context, seqs []model.Sequence) {
	for _, s := range seqs {
		d.SeenAndRecord(ctx, s)
	}
}

// Reads is the number of reads recorded.
func (d *Dereplicator) Reads() int64 {
	return d.reads.Load()
}

// Size is the number of distinct sequences recorded.
func (d *Dereplicator) Size() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.seen)
}

// Uniques returns distinct sequences by descending abundance, ties in first-seen order.
func (d *Dereplicator) Uniques() []Unique {
	d.mu.RLock()
	entries := make([]*entry, 0, len(d.seen))
	for _, e := range d.seen {
		if e.unique.Abundance >= d.minAbundance {
			entries = append(entries, e)
		}
	}
	d.mu.RUnlock()

	sort.Slice(entries, func(i, j int) bool {
		if entries[i].unique.Abundance != entries[j].unique.Abundance {
			return entries[i].unique.Abundance > entries[j].unique.Abundance
		}
		return entries[i].order < entries[j].order
	})
	out := make([]Unique, len(entries))
	for i, e := range entries {
		u := e.unique
		u.Labels = append([]string(nil), e.unique.Labels...)
		out[i] = u
	}
	return out
}

// Summary is the dereplication outcome recorded in the run manifest.
type Summary struct {
	Reads         int `yaml:"reads"`
	Unique        int `yaml:"unique"`
	Singletons    int `yaml:"singletons"`
	MaxAbundance  int `yaml:"max_abundance"`
	SharedUniques int `yaml:"shared_uniques"`
}

// Summarize reports totals over every recorded sequence regardless of WithMinAbundance.
func (d *Dereplicator) Summarize() Summary {
	d.mu.RLock()
	defer d.mu.RUnlock()
	s := Summary{Reads: int(d.reads.Load()), Unique: len(d.seen)}
	for _, e := range d.seen {
		if e.unique.Abundance == 1 {
			s.Singletons++
		}
		if e.unique.Abundance > s.MaxAbundance {
			s.MaxAbundance = e.unique.Abundance
		}
		if len(e.labels) > 1 {
			s.SharedUniques++
		}
	}
	return s
}
