// Package generator fabricates synthetic ASV reads grouped by species.
//
// Every species group owns a random base pattern. Each read copies the
// pattern and substitutes a fixed number of distinct positions with a
// different base, so reads of one group stay close to each other.
package generator

import (
	"context"
	"fmt"
	"math/rand/v2"

	"github.com/google/uuid"

	"github.com/okian/argonauts/internal/domain/model"
)

// Alphabet is the set of bases reads are drawn from.
const Alphabet = "ACGT"

// Default generator configuration constants.
const (
	defaultKnownSpecies = 300
	defaultNovelSpecies = 200
	defaultKnownReads   = 100
	defaultNovelReads   = 50
	defaultLength       = 250
	defaultMutationRate = 0.01
	defaultSeed         = 42
)

// Generator produces a deterministic synthetic dataset for a seed.
type Generator struct {
	knownSpecies int
	novelSpecies int
	knownReads   int
	novelReads   int
	length       int
	mutationRate float64
	seed         uint64
}

// New creates a generator with the reference run defaults.
func New(opts ...Option) (*Generator, error) {
	g := &Generator{
		knownSpecies: defaultKnownSpecies,
		novelSpecies: defaultNovelSpecies,
		knownReads:   defaultKnownReads,
		novelReads:   defaultNovelReads,
		length:       defaultLength,
		mutationRate: defaultMutationRate,
		seed:         defaultSeed,
	}
	for _, opt := range opts {
		opt(g)
	}
	if err := g.validate(); err != nil {
		return nil, err
	}
	return g, nil
}

func (g *Generator) validate() error {
	switch {
	case g.knownSpecies < 0 || g.novelSpecies < 0:
		return fmt.Errorf("%w: species counts must not be negative", ErrInvalidOptions)
	case g.knownReads < 0 || g.novelReads < 0:
		return fmt.Errorf("%w: reads per species must not be negative", ErrInvalidOptions)
	case g.length <= 0:
		return fmt.Errorf("%w: length must be positive, got %d", ErrInvalidOptions, g.length)
	case g.mutationRate < 0 || g.mutationRate > 1:
		return fmt.Errorf("%w: mutation rate %v outside [0,1]", ErrInvalidOptions, g.mutationRate)
	}
	return nil
}

// MutationsPerRead is the number of substituted positions in every read.
func (g *Generator) MutationsPerRead() int {
	return int(float64(g.length) * g.mutationRate)
}

// Size is the number of reads Generate returns.
func (g *Generator) Size() int {
	return g.knownSpecies*g.knownReads + g.novelSpecies*g.novelReads
}

// Generate returns known groups first, then novel groups.
func (g *Generator) Generate(ctx context.Context) ([]model.Sequence, error) {
	rng := rand.New(rand.NewPCG(g.seed, g.seed^0x9e3779b97f4a7c15)) //nolint:gosec // reproducible synthetic data
	out := make([]model.Sequence, 0, g.Size())

	groups := []struct {
		prefix  string
		species int
		reads   int
	}{
		{"Known Species", g.knownSpecies, g.knownReads},
		{"Novel Species", g.novelSpecies, g.novelReads},
	}
	for _, grp := range groups {
		for i := 0; i < grp.species; i++ {
			if err := ctx.Err(); err != nil {
				return nil, fmt.Errorf("generate: %w", err)
			}
			label := fmt.Sprintf("%s %d", grp.prefix, i)
			pattern := g.pattern(rng)
			for r := 0; r < grp.reads; r++ {
				out = append(out, model.Sequence{
					ID:       g.readID(label, r),
					Sequence: g.mutate(rng, pattern),
					Label:    label,
				})
			}
		}
	}
	return out, nil
}

func (g *Generator) pattern(rng *rand.Rand) []byte {
	p := make([]byte, g.length)
	for i := range p {
		p[i] = Alphabet[rng.IntN(len(Alphabet))]
	}
	return p
}

// mutate substitutes MutationsPerRead distinct positions, each with a different base.
func (g *Generator) mutate(rng *rand.Rand, pattern []byte) string {
	read := make([]byte, len(pattern))
	copy(read, pattern)
	// Partial Fisher-Yates picks distinct positions.
	idx := rng.Perm(g.length)[:g.MutationsPerRead()]
	for _, pos := range idx {
		read[pos] = substitute(rng, read[pos])
	}
	return string(read)
}

func substitute(rng *rand.Rand, base byte) byte {
	var choices [3]byte
	n := 0
	for i := 0; i < len(Alphabet); i++ {
		if Alphabet[i] != base {
			choices[n] = Alphabet[i]
			n++
		}
	}
	return choices[rng.IntN(n)]
}

func (g *Generator) readID(label string, replicate int) string {
	name := fmt.Sprintf("%d/%s/%d", g.seed, label, replicate)
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(name)).String()
}

// Validate checks that seq has the given length and only contains Alphabet bases.
func Validate(seq string, length int) error {
	if len(seq) != length {
		return fmt.Errorf("%w: length %d, want %d", ErrInvalidSequence, len(seq), length)
	}
	for i := 0; i < len(seq); i++ {
		switch seq[i] {
		case 'A', 'C', 'G', 'T':
		default:
			return fmt.Errorf("%w: symbol %q at %d", ErrInvalidSequence, seq[i], i)
		}
	}
	return nil
}
