package embedding

import (
	"context"
	"math"
)

const (
	// gradientScale is 2(dof+1)/dof for one degree of freedom.
	gradientScale  = 4.0
	machineEpsilon = 2.220446049250313e-16
	float32Tiny    = 1.1754944e-38
)

// objective evaluates the KL divergence gradient at y.
type objective interface {
	// gradient writes dKL/dy into grad. The returned KL is only meaningful when withError is set.
	gradient(ctx context.Context, y, grad []float64, exaggeration float64, withError bool) (float64, error)
}

// exactObjective uses the dense joint probability matrix.
type exactObjective struct {
	p       []float64
	n       int
	workers int
}

func (o *exactObjective) gradient(ctx context.Context, y, grad []float64, exaggeration float64, withError bool) (float64, error) {
	n := o.n
	rowQ := make([]float64, n)
	err := forEachRange(ctx, n, o.workers, func(lo, hi int) {
		for i := lo; i < hi; i++ {
			s := 0.0
			for j := 0; j < n; j++ {
				if j != i {
					s += studentT(y, i, j)
				}
			}
			rowQ[i] = s
		}
	})
	if err != nil {
		return 0, err
	}
	sumQ := 0.0
	for _, s := range rowQ {
		sumQ += s
	}

	rowKL := make([]float64, n)
	err = forEachRange(ctx, n, o.workers, func(lo, hi int) {
		for i := lo; i < hi; i++ {
			gx, gy, kl := 0.0, 0.0, 0.0
			for j := 0; j < n; j++ {
				if j == i {
					continue
				}
				num := studentT(y, i, j)
				q := math.Max(num/sumQ, machineEpsilon)
				p := exaggeration * o.p[i*n+j]
				pq := (p - q) * num
				gx += pq * (y[2*i] - y[2*j])
				gy += pq * (y[2*i+1] - y[2*j+1])
				if withError {
					kl += p * math.Log(math.Max(p, machineEpsilon)/q)
				}
			}
			grad[2*i] = gradientScale * gx
			grad[2*i+1] = gradientScale * gy
			rowKL[i] = kl
		}
	})
	if err != nil {
		return 0, err
	}
	return sum(rowKL), nil
}

// barnesHutObjective uses sparse neighbour affinities and a quadtree for repulsion.
type barnesHutObjective struct {
	p       *sparseMatrix
	n       int
	angle   float64
	workers int
}

func (o *barnesHutObjective) gradient(ctx context.Context, y, grad []float64, exaggeration float64, withError bool) (float64, error) {
	n := o.n
	tree := newQuadTree(y)
	angle2 := o.angle * o.angle

	neg := make([]float64, 2*n)
	rowQ := make([]float64, n)
	err := forEachRange(ctx, n, o.workers, func(lo, hi int) {
		stack := make([]int, 0, 64)
		for i := lo; i < hi; i++ {
			fx, fy, q := tree.repulsion(y[2*i], y[2*i+1], angle2, stack)
			neg[2*i], neg[2*i+1], rowQ[i] = fx, fy, q
		}
	})
	if err != nil {
		return 0, err
	}
	sumQ := math.Max(sum(rowQ), machineEpsilon)

	rowKL := make([]float64, n)
	err = forEachRange(ctx, n, o.workers, func(lo, hi int) {
		for i := lo; i < hi; i++ {
			px, py, kl := 0.0, 0.0, 0.0
			for k := o.p.indptr[i]; k < o.p.indptr[i+1]; k++ {
				j := o.p.indices[k]
				q := studentT(y, i, j)
				p := exaggeration * o.p.values[k]
				pq := p * q
				px += pq * (y[2*i] - y[2*j])
				py += pq * (y[2*i+1] - y[2*j+1])
				if withError {
					kl += p * math.Log(math.Max(p, float32Tiny)/math.Max(q/sumQ, float32Tiny))
				}
			}
			grad[2*i] = gradientScale * (px - neg[2*i]/sumQ)
			grad[2*i+1] = gradientScale * (py - neg[2*i+1]/sumQ)
			rowKL[i] = kl
		}
	})
	if err != nil {
		return 0, err
	}
	return sum(rowKL), nil
}

// studentT is the unnormalized heavy-tailed similarity 1/(1+|yi-yj|^2).
func studentT(y []float64, i, j int) float64 {
	dx := y[2*i] - y[2*j]
	dy := y[2*i+1] - y[2*j+1]
	return 1 / (1 + dx*dx + dy*dy)
}

func sum(v []float64) float64 {
	s := 0.0
	for _, x := range v {
		s += x
	}
	return s
}
