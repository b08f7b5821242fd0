package clustering

// Option applies a configuration option to DBSCAN.
type Option func(*DBSCAN)

// WithEps sets the neighbourhood radius.
func WithEps(eps float64) Option {
	return func(d *DBSCAN) {
		d.eps = eps
	}
}

// WithMinSamples sets the neighbourhood size, the point itself included, that makes a core point.
func WithMinSamples(n int) Option {
	return func(d *DBSCAN) {
		d.minSamples = n
	}
}

// WithWorkers bounds the goroutines running region queries.
func WithWorkers(n int) Option {
	return func(d *DBSCAN) {
		if n > 0 {
			d.workers = n
		}
	}
}
