package embedding

import "math"

const (
	// quadMaxDepth stops subdivision of nearly coincident points.
	quadMaxDepth = 50
	// duplicateEpsilon is the per-axis distance under which a leaf is the query point itself.
	duplicateEpsilon = 1e-6
)

type quadCell struct {
	comX, comY float64 // centre of mass
	size       int
	width2     float64 // squared largest side
	leaf       bool
	children   [4]int // -1 when empty
}

// quadTree summarizes 2D points for Barnes-Hut repulsion.
type quadTree struct {
	cells []quadCell
}

// newQuadTree builds a tree over y laid out as x0,y0,x1,y1,...
func newQuadTree(y []float64) *quadTree {
	n := len(y) / 2
	t := &quadTree{cells: make([]quadCell, 0, 2*n)}
	if n == 0 {
		return t
	}

	minX, minY := math.Inf(1), math.Inf(1)
	maxX, maxY := math.Inf(-1), math.Inf(-1)
	for i := 0; i < n; i++ {
		minX = math.Min(minX, y[2*i])
		maxX = math.Max(maxX, y[2*i])
		minY = math.Min(minY, y[2*i+1])
		maxY = math.Max(maxY, y[2*i+1])
	}
	// Pad so points on the upper bound fall inside a cell.
	padX := math.Max((maxX-minX)*1e-3, 1e-3)
	padY := math.Max((maxY-minY)*1e-3, 1e-3)

	points := make([]int, n)
	for i := range points {
		points[i] = i
	}
	t.build(y, points, minX-padX, minY-padY, maxX+padX, maxY+padY, 0)
	return t
}

func (t *quadTree) build(y []float64, points []int, x0, y0, x1, y1 float64, depth int) int {
	id := len(t.cells)
	t.cells = append(t.cells, quadCell{children: [4]int{-1, -1, -1, -1}})

	cx, cy := 0.0, 0.0
	for _, p := range points {
		cx += y[2*p]
		cy += y[2*p+1]
	}
	w := math.Max(x1-x0, y1-y0)
	c := quadCell{
		comX:     cx / float64(len(points)),
		comY:     cy / float64(len(points)),
		size:     len(points),
		width2:   w * w,
		children: [4]int{-1, -1, -1, -1},
	}
	if len(points) == 1 || depth >= quadMaxDepth || coincident(y, points) {
		c.leaf = true
		t.cells[id] = c
		return id
	}

	midX, midY := (x0+x1)/2, (y0+y1)/2
	var quads [4][]int
	for _, p := range points {
		q := 0
		if y[2*p] >= midX {
			q |= 1
		}
		if y[2*p+1] >= midY {
			q |= 2
		}
		quads[q] = append(quads[q], p)
	}
	for q, sub := range quads {
		if len(sub) == 0 {
			continue
		}
		qx0, qx1 := x0, midX
		if q&1 != 0 {
			qx0, qx1 = midX, x1
		}
		qy0, qy1 := y0, midY
		if q&2 != 0 {
			qy0, qy1 = midY, y1
		}
		c.children[q] = t.build(y, sub, qx0, qy0, qx1, qy1, depth+1)
	}
	t.cells[id] = c
	return id
}

func coincident(y []float64, points []int) bool {
	first := points[0]
	for _, p := range points[1:] {
		if y[2*p] != y[2*first] || y[2*p+1] != y[2*first+1] {
			return false
		}
	}
	return true
}

// repulsion returns the unnormalized negative force on (px,py) and its
// contribution to the Student-t normalization sum.
func (t *quadTree) repulsion(px, py, angle2 float64, stack []int) (fx, fy, sumQ float64) {
	if len(t.cells) == 0 {
		return 0, 0, 0
	}
	stack = append(stack[:0], 0)
	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		c := &t.cells[id]

		dx, dy := px-c.comX, py-c.comY
		d2 := dx*dx + dy*dy
		if c.leaf && math.Abs(dx) <= duplicateEpsilon && math.Abs(dy) <= duplicateEpsilon {
			continue
		}
		if c.leaf || c.width2/d2 < angle2 {
			q := 1 / (1 + d2)
			size := float64(c.size)
			sumQ += size * q
			mult := size * q * q
			fx += mult * dx
			fy += mult * dy
			continue
		}
		for _, child := range c.children {
			if child >= 0 {
				stack = append(stack, child)
			}
		}
	}
	return fx, fy, sumQ
}
