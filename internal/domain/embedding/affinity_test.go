package embedding

import (
	"context"
	"math"
	"math/rand/v2"
	"sort"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
	"gonum.org/v1/gonum/mat"
)

func randomMatrix(seed uint64, n, d int) *mat.Dense {
	rng := rand.New(rand.NewPCG(seed, seed))
	data := make([]float64, n*d)
	for i := range data {
		data[i] = rng.NormFloat64()
	}
	return mat.NewDense(n, d, data)
}

func entropy(p []float64) float64 {
	h := 0.0
	for _, v := range p {
		if v > 0 {
			h -= v * math.Log(v)
		}
	}
	return h
}

func TestConditionalRow(t *testing.T) {
	Convey("Given squared distances to 40 neighbours", t, func() {
		rng := rand.New(rand.NewPCG(1, 2))
		d := make([]float64, 40)
		for i := range d {
			d[i] = rng.Float64() * 10
		}
		p := make([]float64, len(d))

		Convey("When searching for perplexity 10", func() {
			conditionalRow(d, -1, math.Log(10), p)

			Convey("Then the row is a distribution with the target entropy", func() {
				So(sum(p), ShouldAlmostEqual, 1.0, 1e-9)
				So(entropy(p), ShouldAlmostEqual, math.Log(10), 1e-4)
			})
		})

		Convey("When an index is skipped", func() {
			conditionalRow(d, 3, math.Log(5), p)

			Convey("Then it carries no mass", func() {
				So(p[3], ShouldEqual, 0.0)
				So(sum(p), ShouldAlmostEqual, 1.0, 1e-9)
			})
		})
	})
}

func TestNearestNeighbours(t *testing.T) {
	Convey("Given random rows", t, func() {
		x := randomMatrix(3, 150, 6)
		k := 7

		Convey("When finding neighbours with several workers", func() {
			idx, dist, err := nearestNeighbours(context.Background(), x, k, 4)
			So(err, ShouldBeNil)

			Convey("Then they match a brute force search", func() {
				for _, i := range []int{0, 63, 64, 149} {
					type cand struct {
						d float64
						j int
					}
					var all []cand
					for j := 0; j < 150; j++ {
						if j == i {
							continue
						}
						s := 0.0
						for c := 0; c < 6; c++ {
							diff := x.At(i, c) - x.At(j, c)
							s += diff * diff
						}
						all = append(all, cand{s, j})
					}
					sort.Slice(all, func(a, b int) bool { return all[a].d < all[b].d })
					for r := 0; r < k; r++ {
						So(idx[i*k+r], ShouldEqual, all[r].j)
						So(dist[i*k+r], ShouldAlmostEqual, all[r].d, 1e-9)
					}
				}
			})
		})
	})
}

func TestAffinities(t *testing.T) {
	Convey("Given random rows", t, func() {
		ctx := context.Background()
		x := randomMatrix(5, 30, 4)

		Convey("When building neighbour affinities", func() {
			p, err := neighbourAffinities(ctx, x, 5, 2)
			So(err, ShouldBeNil)

			Convey("Then P sums to one and is symmetric", func() {
				So(p.sum(), ShouldAlmostEqual, 1.0, 1e-9)
				lookup := func(i, j int) float64 {
					for k := p.indptr[i]; k < p.indptr[i+1]; k++ {
						if p.indices[k] == j {
							return p.values[k]
						}
					}
					return 0
				}
				for i := 0; i < 30; i++ {
					for k := p.indptr[i]; k < p.indptr[i+1]; k++ {
						j := p.indices[k]
						So(j, ShouldNotEqual, i)
						So(lookup(j, i), ShouldAlmostEqual, p.values[k], 1e-15)
					}
				}
			})
		})

		Convey("When building exact affinities", func() {
			p, err := exactAffinities(ctx, x, 5, 3)
			So(err, ShouldBeNil)

			Convey("Then P sums to one with a zero diagonal", func() {
				So(sum(p), ShouldAlmostEqual, 1.0, 1e-9)
				for i := 0; i < 30; i++ {
					So(p[i*30+i], ShouldEqual, 0.0)
					So(p[i*30+(i+1)%30], ShouldAlmostEqual, p[((i+1)%30)*30+i], 1e-15)
				}
			})
		})
	})
}

func TestQuadTree(t *testing.T) {
	Convey("Given a random 2D layout", t, func() {
		rng := rand.New(rand.NewPCG(9, 9))
		n := 200
		y := make([]float64, 2*n)
		for i := range y {
			y[i] = rng.NormFloat64() * 5
		}
		tree := newQuadTree(y)

		Convey("Then the root holds every point", func() {
			So(tree.cells[0].size, ShouldEqual, n)
		})

		Convey("When the opening angle is zero", func() {
			fx, fy, sq := tree.repulsion(y[0], y[1], 0, nil)

			Convey("Then repulsion equals the direct sum", func() {
				var ex, ey, eq float64
				for j := 1; j < n; j++ {
					q := studentT(y, 0, j)
					eq += q
					ex += q * q * (y[0] - y[2*j])
					ey += q * q * (y[1] - y[2*j+1])
				}
				So(sq, ShouldAlmostEqual, eq, 1e-9)
				So(fx, ShouldAlmostEqual, ex, 1e-9)
				So(fy, ShouldAlmostEqual, ey, 1e-9)
			})
		})

		Convey("When the opening angle is 0.5", func() {
			_, _, sq := tree.repulsion(y[0], y[1], 0.25, nil)
			var eq float64
			for j := 1; j < n; j++ {
				eq += studentT(y, 0, j)
			}

			Convey("Then the normalization is close to the direct sum", func() {
				So(math.Abs(sq-eq)/eq, ShouldBeLessThan, 0.05)
			})
		})
	})

	Convey("Given coincident points", t, func() {
		y := []float64{1, 1, 1, 1, 1, 1, 4, 4}
		tree := newQuadTree(y)

		Convey("Then the tree terminates and skips the query point's own leaf", func() {
			_, _, sq := tree.repulsion(4, 4, 0, nil)
			So(sq, ShouldAlmostEqual, 3/(1+18.0), 1e-12)
		})
	})
}

func TestGradients(t *testing.T) {
	Convey("Given affinities over every neighbour", t, func() {
		ctx := context.Background()
		n := 12
		x := randomMatrix(11, n, 3)
		exactP, err := exactAffinities(ctx, x, 5, 2)
		So(err, ShouldBeNil)
		sparseP, err := neighbourAffinities(ctx, x, 5, 2)
		So(err, ShouldBeNil)

		rng := rand.New(rand.NewPCG(4, 4))
		y := make([]float64, 2*n)
		for i := range y {
			y[i] = rng.NormFloat64()
		}

		Convey("When the Barnes-Hut angle is zero", func() {
			exact := &exactObjective{p: exactP, n: n, workers: 3}
			bh := &barnesHutObjective{p: sparseP, n: n, angle: 0, workers: 2}
			ge := make([]float64, 2*n)
			gb := make([]float64, 2*n)
			klE, err := exact.gradient(ctx, y, ge, 12, true)
			So(err, ShouldBeNil)
			klB, err := bh.gradient(ctx, y, gb, 12, true)
			So(err, ShouldBeNil)

			Convey("Then both methods agree", func() {
				for i := range ge {
					So(gb[i], ShouldAlmostEqual, ge[i], 1e-9)
				}
				So(klB, ShouldAlmostEqual, klE, 1e-6)
			})
		})
	})
}
