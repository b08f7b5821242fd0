// Package chart renders cluster scatter plots and dendrograms as PNG files.
package chart

import (
	"fmt"
	"image/color"
	"io"
	"sort"
	"strconv"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"

	"github.com/okian/argonauts/internal/adapters/storage"
	"github.com/okian/argonauts/internal/domain/clustering"
	"github.com/okian/argonauts/internal/domain/model"
)

const (
	// maxLabelledLeaves bounds the dendrogram leaves that get a tick label.
	maxLabelledLeaves = 100
	leafSpacing       = 10.0
)

var noiseColor = color.RGBA{R: 160, G: 160, B: 160, A: 255} //nolint:gochecknoglobals // fixed palette entry

// Options sets the canvas size.
type Options struct {
	Width  vg.Length
	Height vg.Length
}

// DefaultScatterOptions matches a 10x8 inch figure.
func DefaultScatterOptions() Options { return Options{Width: 10 * vg.Inch, Height: 8 * vg.Inch} }

// DefaultDendrogramOptions matches a 12x7 inch figure.
func DefaultDendrogramOptions() Options { return Options{Width: 12 * vg.Inch, Height: 7 * vg.Inch} }

// Scatter draws assignments coloured by cluster with noise in grey.
func Scatter(as []model.Assignment) (*plot.Plot, error) {
	p := plot.New()
	p.Title.Text = "DBSCAN Clusters in Latent Space"
	p.X.Label.Text = "Component 1"
	p.Y.Label.Text = "Component 2"
	p.Add(plotter.NewGrid())

	groups := make(map[int]plotter.XYs)
	for _, a := range as {
		groups[a.ClusterID] = append(groups[a.ClusterID], plotter.XY{X: a.X, Y: a.Y})
	}
	ids := make([]int, 0, len(groups))
	for id := range groups {
		ids = append(ids, id)
	}
	sort.Ints(ids)

	for _, id := range ids {
		s, err := plotter.NewScatter(groups[id])
		if err != nil {
			return nil, fmt.Errorf("scatter cluster %d: %w", id, err)
		}
		s.GlyphStyle.Shape = draw.CircleGlyph{}
		s.GlyphStyle.Radius = vg.Points(1.5)
		if id == model.NoiseCluster {
			s.GlyphStyle.Color = noiseColor
		} else {
			s.GlyphStyle.Color = plotutil.Color(id)
		}
		p.Add(s)
	}
	return p, nil
}

// Dendrogram draws a linkage as joined U shapes with leaves in LeafOrder.
// labels, if given, annotate leaves when there are few enough to read.
func Dendrogram(merges []model.Merge, n int, labels []string) (*plot.Plot, error) {
	if n < 2 || len(merges) != n-1 {
		return nil, fmt.Errorf("dendrogram: %d merges for %d leaves", len(merges), n)
	}
	p := plot.New()
	p.Title.Text = "Hierarchical Clustering Dendrogram"
	p.X.Label.Text = "ASV Cluster ID"
	p.Y.Label.Text = "Distance"

	x := make([]float64, n+len(merges))
	h := make([]float64, n+len(merges))
	order := clustering.LeafOrder(merges, n)
	for pos, leaf := range order {
		x[leaf] = leafSpacing/2 + leafSpacing*float64(pos)
	}

	for i, m := range merges {
		id := n + i
		x[id] = (x[m.Left] + x[m.Right]) / 2
		h[id] = m.Distance
		line, err := plotter.NewLine(plotter.XYs{
			{X: x[m.Left], Y: h[m.Left]},
			{X: x[m.Left], Y: m.Distance},
			{X: x[m.Right], Y: m.Distance},
			{X: x[m.Right], Y: h[m.Right]},
		})
		if err != nil {
			return nil, fmt.Errorf("dendrogram merge %d: %w", i, err)
		}
		line.LineStyle.Width = vg.Points(0.5)
		line.LineStyle.Color = plotutil.Color(0)
		p.Add(line)
	}

	if len(labels) == n && n <= maxLabelledLeaves {
		ticks := make([]plot.Tick, n)
		for pos, leaf := range order {
			ticks[pos] = plot.Tick{Value: x[leaf], Label: labels[leaf]}
		}
		p.X.Tick.Marker = plot.ConstantTicks(ticks)
	} else {
		p.X.Tick.Marker = plot.ConstantTicks(nil)
	}
	p.X.Min = 0
	p.X.Max = leafSpacing * float64(n)
	p.Y.Min = 0
	return p, nil
}

// ClusterLabels returns cluster ids of as as strings, for dendrogram leaves.
func ClusterLabels(as []model.Assignment) []string {
	out := make([]string, len(as))
	for i, a := range as {
		out[i] = strconv.Itoa(a.ClusterID)
	}
	return out
}

// Save renders p as PNG at path.
func Save(p *plot.Plot, opts Options, path string) error {
	wt, err := p.WriterTo(opts.Width, opts.Height, "png")
	if err != nil {
		return fmt.Errorf("render %s: %w", path, err)
	}
	return storage.WriteAtomic(path, func(w io.Writer) error {
		_, err := wt.WriteTo(w)
		return err
	})
}
