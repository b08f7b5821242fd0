package generator

// Option applies a configuration option to the Generator.
type Option func(*Generator)

// WithSpecies sets the number of known and novel species groups.
func WithSpecies(known, novel int) Option {
	return func(g *Generator) {
		g.knownSpecies = known
		g.novelSpecies = novel
	}
}

// WithReadsPerSpecies sets how many reads each known and novel group yields.
func WithReadsPerSpecies(known, novel int) Option {
	return func(g *Generator) {
		g.knownReads = known
		g.novelReads = novel
	}
}

// WithLength sets the fixed read length.
func WithLength(length int) Option {
	return func(g *Generator) {
		g.length = length
	}
}

// WithMutationRate sets the fraction of positions mutated in every read.
func WithMutationRate(rate float64) Option {
	return func(g *Generator) {
		g.mutationRate = rate
	}
}

// WithSeed sets the random seed.
func WithSeed(seed uint64) Option {
	return func(g *Generator) {
		g.seed = seed
	}
}
