// Package clustering groups 2D coordinates with DBSCAN and builds Ward linkages.
package clustering

import (
	"context"
	"fmt"
	"runtime"
	"sort"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/spatial/kdtree"

	"github.com/okian/argonauts/internal/domain/model"
)

// Library defaults. The pipeline runs with eps 0.5 and min samples 10.
const (
	DefaultEps        = 1.5
	DefaultMinSamples = 2
)

// DBSCAN labels points by density reachability.
type DBSCAN struct {
	eps        float64
	minSamples int
	workers    int
}

// NewDBSCAN creates a DBSCAN with library defaults.
func NewDBSCAN(opts ...Option) (*DBSCAN, error) {
	d := &DBSCAN{eps: DefaultEps, minSamples: DefaultMinSamples, workers: runtime.NumCPU()}
	for _, opt := range opts {
		opt(d)
	}
	if d.eps <= 0 {
		return nil, fmt.Errorf("%w: eps must be positive, got %v", ErrInvalidParams, d.eps)
	}
	if d.minSamples < 1 {
		return nil, fmt.Errorf("%w: min samples must be at least 1, got %d", ErrInvalidParams, d.minSamples)
	}
	return d, nil
}

// Summary counts the outcome of a DBSCAN pass.
type Summary struct {
	Clusters int
	Noise    int
	Core     int
	// Sizes holds member counts indexed by cluster id.
	Sizes []int
}

// Labels returns one cluster id per point and the core point mask.
// Clusters are numbered from 0 in order of their lowest-index core point; noise is -1.
func (d *DBSCAN) Labels(ctx context.Context, points [][2]float64) ([]int, []bool, error) {
	neighbourhoods, err := d.regionQueries(ctx, points)
	if err != nil {
		return nil, nil, err
	}

	core := make([]bool, len(points))
	for i, nb := range neighbourhoods {
		core[i] = len(nb) >= d.minSamples
	}

	labels := make([]int, len(points))
	for i := range labels {
		labels[i] = model.NoiseCluster
	}

	next := 0
	var stack []int
	for i := range points {
		if labels[i] != model.NoiseCluster || !core[i] {
			continue
		}
		// Depth-first expansion; border points keep the first cluster that reaches them.
		for p := i; ; {
			if labels[p] == model.NoiseCluster {
				labels[p] = next
				if core[p] {
					for _, q := range neighbourhoods[p] {
						if labels[q] == model.NoiseCluster {
							stack = append(stack, q)
						}
					}
				}
			}
			if len(stack) == 0 {
				break
			}
			p = stack[len(stack)-1]
			stack = stack[:len(stack)-1]
		}
		next++
	}
	return labels, core, nil
}

// Assign labels coordinates and summarizes the result.
func (d *DBSCAN) Assign(ctx context.Context, coords []model.Coordinate) ([]model.Assignment, Summary, error) {
	points := make([][2]float64, len(coords))
	for i, c := range coords {
		points[i] = [2]float64{c.X, c.Y}
	}
	labels, core, err := d.Labels(ctx, points)
	if err != nil {
		return nil, Summary{}, err
	}

	out := make([]model.Assignment, len(coords))
	var s Summary
	for i, c := range coords {
		out[i] = model.Assignment{Coordinate: c, ClusterID: labels[i]}
		if core[i] {
			s.Core++
		}
		if labels[i] == model.NoiseCluster {
			s.Noise++
			continue
		}
		for len(s.Sizes) <= labels[i] {
			s.Sizes = append(s.Sizes, 0)
		}
		s.Sizes[labels[i]]++
	}
	s.Clusters = len(s.Sizes)
	return out, s, nil
}

// regionQueries returns, for every point, the ascending indices of points within eps, itself included.
func (d *DBSCAN) regionQueries(ctx context.Context, points [][2]float64) ([][]int, error) {
	if len(points) == 0 {
		return nil, nil
	}

	// kdtree.New reorders its input, so the tree gets its own copy.
	pts := make(kdtree.Points, len(points))
	byCoord := make(map[[2]float64][]int, len(points))
	for i, p := range points {
		pts[i] = kdtree.Point{p[0], p[1]}
		byCoord[p] = append(byCoord[p], i)
	}
	tree := kdtree.New(pts, false)
	eps2 := d.eps * d.eps

	out := make([][]int, len(points))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(d.workers)
	chunk := (len(points) + d.workers - 1) / d.workers
	for lo := 0; lo < len(points); lo += chunk {
		hi := min(lo+chunk, len(points))
		g.Go(func() error {
			for i := lo; i < hi; i++ {
				if i%1024 == 0 {
					if err := gctx.Err(); err != nil {
						return err
					}
				}
				out[i] = neighbourhood(tree, points[i], eps2, byCoord)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("region queries: %w", err)
	}
	return out, nil
}

func neighbourhood(tree *kdtree.Tree, p [2]float64, eps2 float64, byCoord map[[2]float64][]int) []int {
	keeper := kdtree.NewDistKeeper(eps2)
	tree.NearestSet(keeper, kdtree.Point{p[0], p[1]})

	var idx []int
	seen := make(map[[2]float64]struct{}, keeper.Len())
	for _, cd := range keeper.Heap {
		if cd.Comparable == nil || cd.Dist > eps2 {
			continue
		}
		q := cd.Comparable.(kdtree.Point)
		key := [2]float64{q[0], q[1]}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		idx = append(idx, byCoord[key]...)
	}
	sort.Ints(idx)
	return idx
}
