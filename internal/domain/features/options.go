package features

// Option applies a configuration option to the Vectorizer.
type Option func(*Vectorizer)

// WithNGramRange sets the inclusive character n-gram lengths.
func WithNGramRange(minN, maxN int) Option {
	return func(v *Vectorizer) {
		v.minN = minN
		v.maxN = maxN
	}
}

// WithLowercase toggles lowercasing before analysis.
func WithLowercase(on bool) Option {
	return func(v *Vectorizer) {
		v.lowercase = on
	}
}
