package embedding

import (
	"container/heap"
	"context"
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"
)

const (
	perplexityTolerance = 1e-5
	perplexitySteps     = 100
	minRowSum           = 1e-8
	// knnBlockRows rows of the Gram matrix are materialized per task.
	knnBlockRows = 64
)

// conditionalRow fills p with exp(-d*beta)/Z where beta is searched so that the
// entropy of p equals desiredEntropy. Index skip, if not negative, gets zero mass.
func conditionalRow(d []float64, skip int, desiredEntropy float64, p []float64) {
	beta := 1.0
	betaMin := math.Inf(-1)
	betaMax := math.Inf(1)

	for step := 0; step < perplexitySteps; step++ {
		sumP := 0.0
		for j, dj := range d {
			if j == skip {
				p[j] = 0
				continue
			}
			p[j] = math.Exp(-dj * beta)
			sumP += p[j]
		}
		if sumP == 0 {
			sumP = minRowSum
		}
		sumDP := 0.0
		for j := range p {
			p[j] /= sumP
			sumDP += d[j] * p[j]
		}

		diff := math.Log(sumP) + beta*sumDP - desiredEntropy
		if math.Abs(diff) <= perplexityTolerance {
			return
		}
		if diff > 0 {
			betaMin = beta
			if math.IsInf(betaMax, 1) {
				beta *= 2
			} else {
				beta = (beta + betaMax) / 2
			}
		} else {
			betaMax = beta
			if math.IsInf(betaMin, -1) {
				beta /= 2
			} else {
				beta = (beta + betaMin) / 2
			}
		}
	}
}

// squaredDistances returns the dense n x n matrix of squared Euclidean distances.
func squaredDistances(ctx context.Context, x *mat.Dense, workers int) ([]float64, error) {
	n, _ := x.Dims()
	out := make([]float64, n*n)
	err := forEachRange(ctx, n, workers, func(lo, hi int) {
		for i := lo; i < hi; i++ {
			xi := x.RawRowView(i)
			for j := 0; j < n; j++ {
				xj := x.RawRowView(j)
				s := 0.0
				for k := range xi {
					diff := xi[k] - xj[k]
					s += diff * diff
				}
				out[i*n+j] = s
			}
		}
	})
	return out, err
}

// exactAffinities returns the dense joint probability matrix P with a zero diagonal.
func exactAffinities(ctx context.Context, x *mat.Dense, perplexity float64, workers int) ([]float64, error) {
	n, _ := x.Dims()
	d, err := squaredDistances(ctx, x, workers)
	if err != nil {
		return nil, err
	}

	cond := make([]float64, n*n)
	target := math.Log(perplexity)
	err = forEachRange(ctx, n, workers, func(lo, hi int) {
		for i := lo; i < hi; i++ {
			conditionalRow(d[i*n:(i+1)*n], i, target, cond[i*n:(i+1)*n])
		}
	})
	if err != nil {
		return nil, err
	}

	p := d // distances are no longer needed
	sum := 0.0
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			p[i*n+j] = cond[i*n+j] + cond[j*n+i]
			sum += p[i*n+j]
		}
	}
	sum = math.Max(sum, machineEpsilon)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			if i == j {
				p[i*n+j] = 0
				continue
			}
			p[i*n+j] = math.Max(p[i*n+j]/sum, machineEpsilon)
		}
	}
	return p, nil
}

type neighbour struct {
	dist  float64
	index int
}

func closer(a, b neighbour) bool {
	if a.dist != b.dist {
		return a.dist < b.dist
	}
	return a.index < b.index
}

// farthestFirst is a max-heap keeping the k closest candidates seen so far.
type farthestFirst []neighbour

func (h farthestFirst) Len() int           { return len(h) }
func (h farthestFirst) Less(i, j int) bool { return closer(h[j], h[i]) }
func (h farthestFirst) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *farthestFirst) Push(x any)        { *h = append(*h, x.(neighbour)) }
func (h *farthestFirst) Pop() any {
	old := *h
	last := old[len(old)-1]
	*h = old[:len(old)-1]
	return last
}

// nearestNeighbours returns, for every row, the k closest other rows by squared
// Euclidean distance in ascending order. Results are flat n*k slices.
func nearestNeighbours(ctx context.Context, x *mat.Dense, k, workers int) ([]int, []float64, error) {
	n, dim := x.Dims()
	norms := make([]float64, n)
	for i := range norms {
		r := x.RawRowView(i)
		for _, v := range r {
			norms[i] += v * v
		}
	}

	idx := make([]int, n*k)
	dist := make([]float64, n*k)
	blocks := (n + knnBlockRows - 1) / knnBlockRows
	err := forEachRange(ctx, blocks, workers, func(bLo, bHi int) {
		var gram mat.Dense
		h := make(farthestFirst, 0, k+1)
		for b := bLo; b < bHi; b++ {
			lo := b * knnBlockRows
			hi := min(lo+knnBlockRows, n)
			gram.Reset()
			gram.Mul(x.Slice(lo, hi, 0, dim), x.T())
			for i := lo; i < hi; i++ {
				row := gram.RawRowView(i - lo)
				h = h[:0]
				for j := 0; j < n; j++ {
					if j == i {
						continue
					}
					c := neighbour{dist: math.Max(norms[i]+norms[j]-2*row[j], 0), index: j}
					if len(h) < k {
						heap.Push(&h, c)
					} else if closer(c, h[0]) {
						h[0] = c
						heap.Fix(&h, 0)
					}
				}
				sorted := []neighbour(h)
				sort.Slice(sorted, func(a, b int) bool { return closer(sorted[a], sorted[b]) })
				for r, nb := range sorted {
					idx[i*k+r] = nb.index
					dist[i*k+r] = nb.dist
				}
			}
		}
	})
	if err != nil {
		return nil, nil, fmt.Errorf("nearest neighbours: %w", err)
	}
	return idx, dist, nil
}

// sparseMatrix is a symmetric matrix in compressed sparse row form.
type sparseMatrix struct {
	indptr  []int
	indices []int
	values  []float64
}

func (s *sparseMatrix) sum() float64 {
	total := 0.0
	for _, v := range s.values {
		total += v
	}
	return total
}

// neighbourAffinities returns the sparse joint probability matrix built from the
// k nearest neighbours of every row.
func neighbourAffinities(ctx context.Context, x *mat.Dense, perplexity float64, workers int) (*sparseMatrix, error) {
	n, _ := x.Dims()
	k := min(n-1, int(3*perplexity+1))
	idx, dist, err := nearestNeighbours(ctx, x, k, workers)
	if err != nil {
		return nil, err
	}

	cond := make([]float64, n*k)
	target := math.Log(perplexity)
	err = forEachRange(ctx, n, workers, func(lo, hi int) {
		for i := lo; i < hi; i++ {
			conditionalRow(dist[i*k:(i+1)*k], -1, target, cond[i*k:(i+1)*k])
		}
	})
	if err != nil {
		return nil, err
	}
	return symmetrize(n, k, idx, cond), nil
}

// symmetrize builds P = (C + C^T) / sum(C + C^T) from a k-neighbour conditional matrix.
func symmetrize(n, k int, idx []int, cond []float64) *sparseMatrix {
	rows := make([][]neighbour, n)
	for i := 0; i < n; i++ {
		for r := 0; r < k; r++ {
			j, v := idx[i*k+r], cond[i*k+r]
			rows[i] = append(rows[i], neighbour{dist: v, index: j})
			rows[j] = append(rows[j], neighbour{dist: v, index: i})
		}
	}

	s := &sparseMatrix{indptr: make([]int, n+1)}
	for i, row := range rows {
		sort.Slice(row, func(a, b int) bool { return row[a].index < row[b].index })
		for r := 0; r < len(row); r++ {
			if r > 0 && row[r].index == row[r-1].index {
				s.values[len(s.values)-1] += row[r].dist
				continue
			}
			s.indices = append(s.indices, row[r].index)
			s.values = append(s.values, row[r].dist)
		}
		s.indptr[i+1] = len(s.indices)
		rows[i] = nil
	}

	total := math.Max(s.sum(), machineEpsilon)
	for i := range s.values {
		s.values[i] /= total
	}
	return s
}
