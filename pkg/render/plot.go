package render

import (
	"fmt"
	"image/color"
	"path/filepath"
	"strconv"
	"strings"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"

	"github.com/gilchrisn/community-detection/pkg/graph"
	"github.com/gilchrisn/community-detection/pkg/layout"
)

// DefaultTitle is the plot title used when Options.Title is empty.
const DefaultTitle = "Louvain Communities Detected"

// Options configures PDF
type Options struct {
	Title      string
	Width      vg.Length
	Height     vg.Length
	NodeRadius vg.Length
	ShowLabels bool
}

// DefaultOptions returns sensible default render options
func DefaultOptions() Options {
	return Options{
		Title:      DefaultTitle,
		Width:      10 * vg.Inch,
		Height:     10 * vg.Inch,
		NodeRadius: 4,
		ShowLabels: true,
	}
}

var edgeColor = color.RGBA{R: 0xb0, G: 0xb0, B: 0xb0, A: 0xff}

// supportedFormats lists the extensions PDF writes.
var supportedFormats = map[string]bool{
	"pdf": true,
	"svg": true,
	"png": true,
}

// PDF draws g with nodes coloured by community and saves it to path. The
// image format follows the file extension: pdf, svg or png.
func PDF(path string, g *graph.Graph, communities map[int64]int, l *layout.Layout, opts Options) error {
	format := strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))
	if !supportedFormats[format] {
		return fmt.Errorf("unsupported image format %q", filepath.Ext(path))
	}

	p, err := buildPlot(g, communities, l, opts)
	if err != nil {
		return err
	}

	if err := p.Save(opts.Width, opts.Height, path); err != nil {
		return fmt.Errorf("failed to save plot: %w", err)
	}
	return nil
}

func buildPlot(g *graph.Graph, communities map[int64]int, l *layout.Layout, opts Options) (*plot.Plot, error) {
	if l == nil {
		return nil, fmt.Errorf("layout is required")
	}
	for _, id := range g.Nodes() {
		if _, ok := l.Positions[id]; !ok {
			return nil, fmt.Errorf("node %d has no position", id)
		}
		if _, ok := communities[id]; !ok {
			return nil, fmt.Errorf("node %d has no community", id)
		}
	}

	p := plot.New()
	p.Title.Text = opts.Title
	if p.Title.Text == "" {
		p.Title.Text = DefaultTitle
	}
	p.HideAxes()
	p.Legend.Top = true

	// Fixed ranges keep the unit-square layout undistorted
	p.X.Min, p.X.Max = -0.05, 1.05
	p.Y.Min, p.Y.Max = -0.05, 1.05

	for _, e := range g.Edges() {
		from, to := l.Positions[e.From], l.Positions[e.To]
		line, err := plotter.NewLine(plotter.XYs{{X: from.X, Y: from.Y}, {X: to.X, Y: to.Y}})
		if err != nil {
			return nil, fmt.Errorf("failed to create edge line: %w", err)
		}
		line.Color = edgeColor
		line.Width = vg.Points(0.5)
		p.Add(line)
	}

	numComms := numCommunities(communities)
	members := make([]plotter.XYs, numComms)
	for _, id := range g.Nodes() {
		pos := l.Positions[id]
		c := communities[id]
		members[c] = append(members[c], plotter.XY{X: pos.X, Y: pos.Y})
	}

	colors := Palette(numComms)
	for c, pts := range members {
		if len(pts) == 0 {
			continue
		}
		scatter, err := plotter.NewScatter(pts)
		if err != nil {
			return nil, fmt.Errorf("failed to create scatter for community %d: %w", c, err)
		}
		scatter.GlyphStyle = draw.GlyphStyle{
			Color:  colors[c],
			Radius: opts.NodeRadius,
			Shape:  draw.CircleGlyph{},
		}
		p.Add(scatter)
		p.Legend.Add(fmt.Sprintf("Community %d", c+1), scatter)
	}

	if opts.ShowLabels {
		labels, err := nodeLabels(g, l)
		if err != nil {
			return nil, err
		}
		p.Add(labels)
	}

	return p, nil
}

func nodeLabels(g *graph.Graph, l *layout.Layout) (*plotter.Labels, error) {
	nodes := g.Nodes()
	data := plotter.XYLabels{
		XYs:    make(plotter.XYs, len(nodes)),
		Labels: make([]string, len(nodes)),
	}
	for i, id := range nodes {
		pos := l.Positions[id]
		data.XYs[i] = plotter.XY{X: pos.X, Y: pos.Y}
		data.Labels[i] = strconv.FormatInt(id, 10)
	}

	labels, err := plotter.NewLabels(data)
	if err != nil {
		return nil, fmt.Errorf("failed to create node labels: %w", err)
	}
	labels.Offset = vg.Point{X: 4, Y: 4}
	return labels, nil
}
