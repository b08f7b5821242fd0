package embedding

import "github.com/okian/argonauts/pkg/logger"

// Option applies a configuration option to TSNE.
type Option func(*TSNE)

// WithMethod selects MethodBarnesHut or MethodExact.
func WithMethod(method string) Option {
	return func(t *TSNE) {
		t.method = method
	}
}

// WithPerplexity sets the effective number of neighbours.
func WithPerplexity(p float64) Option {
	return func(t *TSNE) {
		if p > 0 {
			t.perplexity = p
		}
	}
}

// WithEarlyExaggeration sets the factor applied to P during exploration.
func WithEarlyExaggeration(ee float64) Option {
	return func(t *TSNE) {
		if ee > 0 {
			t.earlyExaggeration = ee
		}
	}
}

// WithLearningRate sets a fixed learning rate. Zero keeps the automatic rate.
func WithLearningRate(lr float64) Option {
	return func(t *TSNE) {
		if lr >= 0 {
			t.learningRate = lr
		}
	}
}

// WithIterations sets the total optimization iterations.
func WithIterations(n int) Option {
	return func(t *TSNE) {
		if n > 0 {
			t.iterations = n
		}
	}
}

// WithAngle sets the Barnes-Hut opening angle.
func WithAngle(angle float64) Option {
	return func(t *TSNE) {
		if angle >= 0 {
			t.angle = angle
		}
	}
}

// WithSeed sets the seed of the random initial layout.
func WithSeed(seed uint64) Option {
	return func(t *TSNE) {
		t.seed = seed
	}
}

// WithWorkers bounds the goroutines used for neighbour search and gradients.
func WithWorkers(n int) Option {
	return func(t *TSNE) {
		if n > 0 {
			t.workers = n
		}
	}
}

// WithLogger reports optimizer progress at debug level.
func WithLogger(l logger.Logger) Option {
	return func(t *TSNE) {
		if l != nil {
			t.log = l
		}
	}
}
