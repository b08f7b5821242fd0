package derep

// Option applies a configuration option to the Dereplicator.
type Option func(*Dereplicator)

// WithMinAbundance hides unique sequences seen fewer than n times from Uniques.
// Values below 1 are ignored.
func WithMinAbundance(n int) Option {
	return func(d *Dereplicator) {
		if n > 0 {
			d.minAbundance = n
		}
	}
}
