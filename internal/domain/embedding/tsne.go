// Package embedding projects high-dimensional feature rows to 2D with t-SNE.
//
// Two methods are provided. MethodExact builds dense affinities and evaluates
// the full O(n^2) gradient. MethodBarnesHut keeps affinities for the
// 3*perplexity nearest neighbours and approximates repulsion with a quadtree.
// Row-parallel work writes into per-row slots, so results do not depend on
// the number of workers.
package embedding

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"
	"runtime"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/okian/argonauts/pkg/logger"
)

// Supported methods.
const (
	MethodBarnesHut = "barnes_hut"
	MethodExact     = "exact"
)

const (
	components                = 2
	explorationIterations     = 250
	iterationsWithoutProgress = 300
	checkEvery                = 50
	minGradNorm               = 1e-7
	minGain                   = 0.01
	initialScale              = 1e-4
	explorationMomentum       = 0.5
	finalMomentum             = 0.8
	minAutoLearningRate       = 50
)

// Result describes how the optimization ended.
type Result struct {
	KL         float64
	Iterations int
	Method     string
}

// TSNE holds t-SNE hyperparameters. It keeps no state between calls.
type TSNE struct {
	method            string
	perplexity        float64
	earlyExaggeration float64
	learningRate      float64
	iterations        int
	angle             float64
	seed              uint64
	workers           int
	log               logger.Logger
}

// New creates a TSNE with the reference defaults.
func New(opts ...Option) *TSNE {
	t := &TSNE{
		method:            MethodBarnesHut,
		perplexity:        30,
		earlyExaggeration: 12,
		iterations:        1000,
		angle:             0.5,
		seed:              42,
		workers:           runtime.NumCPU(),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

type phase struct {
	start, end   int
	momentum     float64
	exaggeration float64
	patience     int
}

// FitTransform embeds the rows of x into an n x 2 matrix.
func (t *TSNE) FitTransform(ctx context.Context, x mat.Matrix) (*mat.Dense, Result, error) {
	n, _ := x.Dims()
	if n < 2 {
		return nil, Result{}, fmt.Errorf("%w: need at least 2 samples, got %d", ErrInvalidInput, n)
	}
	if t.perplexity >= float64(n) {
		return nil, Result{}, fmt.Errorf("%w: perplexity %v must be less than the %d samples", ErrInvalidInput, t.perplexity, n)
	}
	dense := mat.DenseCopyOf(x)

	var obj objective
	switch t.method {
	case MethodExact:
		p, err := exactAffinities(ctx, dense, t.perplexity, t.workers)
		if err != nil {
			return nil, Result{}, fmt.Errorf("affinities: %w", err)
		}
		obj = &exactObjective{p: p, n: n, workers: t.workers}
	case MethodBarnesHut:
		p, err := neighbourAffinities(ctx, dense, t.perplexity, t.workers)
		if err != nil {
			return nil, Result{}, fmt.Errorf("affinities: %w", err)
		}
		obj = &barnesHutObjective{p: p, n: n, angle: t.angle, workers: t.workers}
	default:
		return nil, Result{}, fmt.Errorf("%w: %q", ErrUnknownMethod, t.method)
	}

	y := t.initialLayout(n)
	lr := t.learningRate
	if lr == 0 {
		lr = math.Max(float64(n)/t.earlyExaggeration/4, minAutoLearningRate)
	}

	last, kl, err := t.descend(ctx, obj, y, lr, phase{
		start:        0,
		end:          min(explorationIterations, t.iterations),
		momentum:     explorationMomentum,
		exaggeration: t.earlyExaggeration,
		patience:     explorationIterations,
	})
	if err != nil {
		return nil, Result{}, err
	}
	if t.iterations > explorationIterations {
		last, kl, err = t.descend(ctx, obj, y, lr, phase{
			start:        last + 1,
			end:          t.iterations,
			momentum:     finalMomentum,
			exaggeration: 1,
			patience:     iterationsWithoutProgress,
		})
		if err != nil {
			return nil, Result{}, err
		}
	}

	return mat.NewDense(n, components, y), Result{KL: kl, Iterations: last + 1, Method: t.method}, nil
}

func (t *TSNE) initialLayout(n int) []float64 {
	rng := rand.New(rand.NewPCG(t.seed, t.seed^0xda3e39cb94b95bdb)) //nolint:gosec // reproducible layout
	y := make([]float64, n*components)
	for i := range y {
		y[i] = initialScale * rng.NormFloat64()
	}
	return y
}

// descend runs momentum gradient descent with per-coordinate gains over one phase.
// It returns the index of the last iteration run and the last KL evaluated.
func (t *TSNE) descend(ctx context.Context, obj objective, y []float64, lr float64, ph phase) (int, float64, error) {
	update := make([]float64, len(y))
	gains := make([]float64, len(y))
	for i := range gains {
		gains[i] = 1
	}
	grad := make([]float64, len(y))

	kl := math.MaxFloat64
	best := math.MaxFloat64
	bestIter := ph.start
	last := ph.start
	for i := ph.start; i < ph.end; i++ {
		last = i
		check := (i+1)%checkEvery == 0
		withError := check || i == ph.end-1

		e, err := obj.gradient(ctx, y, grad, ph.exaggeration, withError)
		if err != nil {
			return last, kl, fmt.Errorf("iteration %d: %w", i, err)
		}
		if withError {
			kl = e
		}
		gradNorm := floats.Norm(grad, 2)

		for k := range grad {
			if update[k]*grad[k] < 0 {
				gains[k] += 0.2
			} else {
				gains[k] *= 0.8
			}
			gains[k] = math.Max(gains[k], minGain)
			update[k] = ph.momentum*update[k] - lr*gains[k]*grad[k]
			y[k] += update[k]
		}

		if !check {
			continue
		}
		if t.log != nil {
			t.log.Debug(ctx, "t-SNE progress",
				logger.Int("iteration", i+1),
				logger.Float64("kl", kl),
				logger.Float64("grad_norm", gradNorm),
				logger.Bool("exaggerated", ph.exaggeration != 1))
		}
		if kl < best {
			best, bestIter = kl, i
		} else if i-bestIter > ph.patience {
			break
		}
		if gradNorm <= minGradNorm {
			break
		}
	}
	return last, kl, nil
}
