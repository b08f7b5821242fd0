package clustering

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"
	"sort"

	"github.com/okian/argonauts/internal/domain/model"
)

// Ward returns the n-1 merges of Ward's minimum variance linkage over points.
//
// Merges are found with a nearest-neighbour chain and the Lance-Williams
// update, then sorted by distance. Merge i creates cluster n+i; Left is the
// smaller of the two ids.
func Ward(ctx context.Context, points [][2]float64) ([]model.Merge, error) {
	n := len(points)
	if n < 2 {
		return nil, fmt.Errorf("%w: ward linkage needs 2 points, got %d", ErrTooFewPoints, n)
	}

	dist := newCondensed(n)
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			dist.set(i, j, math.Hypot(points[i][0]-points[j][0], points[i][1]-points[j][1]))
		}
	}

	size := make([]int, n)
	for i := range size {
		size[i] = 1
	}
	merges := make([]model.Merge, 0, n-1)
	chain := make([]int, 0, n)

	for step := 0; step < n-1; step++ {
		if step%256 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, fmt.Errorf("ward linkage: %w", err)
			}
		}
		if len(chain) == 0 {
			for i := range size {
				if size[i] > 0 {
					chain = append(chain, i)
					break
				}
			}
		}

		var x, y int
		var best float64
		for {
			x = chain[len(chain)-1]
			best = math.Inf(1)
			if len(chain) > 1 {
				y = chain[len(chain)-2]
				best = dist.get(x, y)
			}
			for i := range size {
				if size[i] == 0 || i == x {
					continue
				}
				if d := dist.get(x, i); d < best {
					best, y = d, i
				}
			}
			if len(chain) > 1 && y == chain[len(chain)-2] {
				break
			}
			chain = append(chain, y)
		}
		chain = chain[:len(chain)-2]

		if x > y {
			x, y = y, x
		}
		nx, ny := size[x], size[y]
		merges = append(merges, model.Merge{Left: x, Right: y, Distance: best, Size: nx + ny})
		size[x] = 0
		size[y] = nx + ny

		for i, ni := range size {
			if ni == 0 || i == y {
				continue
			}
			dix, diy := dist.get(i, x), dist.get(i, y)
			fi, fx, fy := float64(ni), float64(nx), float64(ny)
			d := ((fi+fx)*dix*dix + (fi+fy)*diy*diy - fi*best*best) / (fi + fx + fy)
			dist.set(i, y, math.Sqrt(math.Max(d, 0)))
		}
	}

	sort.SliceStable(merges, func(a, b int) bool { return merges[a].Distance < merges[b].Distance })
	relabel(merges, n)
	return merges, nil
}

// relabel rewrites slot ids from the chain into cluster ids n+i of the sorted order.
func relabel(merges []model.Merge, n int) {
	parent := make([]int, 2*n-1)
	sizes := make([]int, 2*n-1)
	for i := range parent {
		parent[i] = i
	}
	for i := 0; i < n; i++ {
		sizes[i] = 1
	}
	find := func(x int) int {
		root := x
		for parent[root] != root {
			root = parent[root]
		}
		for parent[x] != root {
			parent[x], x = root, parent[x]
		}
		return root
	}

	next := n
	for i := range merges {
		a, b := find(merges[i].Left), find(merges[i].Right)
		if a > b {
			a, b = b, a
		}
		parent[a], parent[b] = next, next
		sizes[next] = sizes[a] + sizes[b]
		merges[i].Left, merges[i].Right, merges[i].Size = a, b, sizes[next]
		next++
	}
}

// LeafOrder returns observation indices in dendrogram order, left subtree first.
func LeafOrder(merges []model.Merge, n int) []int {
	if n == 0 {
		return nil
	}
	if len(merges) == 0 {
		return []int{0}
	}
	order := make([]int, 0, n)
	stack := []int{n + len(merges) - 1}
	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if id < n {
			order = append(order, id)
			continue
		}
		m := merges[id-n]
		stack = append(stack, m.Right, m.Left)
	}
	return order
}

// Sample returns at most limit indices of [0,n) in ascending order.
// The choice depends only on n, limit and seed.
func Sample(n, limit int, seed uint64) []int {
	if limit <= 0 || n <= limit {
		idx := make([]int, n)
		for i := range idx {
			idx[i] = i
		}
		return idx
	}
	rng := rand.New(rand.NewPCG(seed, uint64(n))) //nolint:gosec // reproducible sampling
	idx := rng.Perm(n)[:limit]
	sort.Ints(idx)
	return idx
}

// condensed stores the upper triangle of a symmetric matrix with an empty diagonal.
type condensed struct {
	n    int
	data []float64
}

func newCondensed(n int) *condensed {
	return &condensed{n: n, data: make([]float64, n*(n-1)/2)}
}

func (c *condensed) index(i, j int) int {
	if i > j {
		i, j = j, i
	}
	return c.n*i - i*(i+1)/2 + j - i - 1
}

func (c *condensed) get(i, j int) float64 { return c.data[c.index(i, j)] }

func (c *condensed) set(i, j int, v float64) { c.data[c.index(i, j)] = v }
