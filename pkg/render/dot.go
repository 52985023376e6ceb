package render

import (
	"fmt"
	"io"
	"strconv"

	"github.com/awalterschulze/gographviz"

	"github.com/gilchrisn/community-detection/pkg/graph"
	"github.com/gilchrisn/community-detection/pkg/layout"
)

const (
	dotGraphName = "communities"
	// dotScale converts unit-square positions to Graphviz points.
	dotScale = 500.0
)

// DOT writes g as an undirected Graphviz document. Nodes are filled with
// their community colour and pinned at their layout position so that
// `neato -n` reproduces the layout. A nil layout leaves positions to Graphviz.
func DOT(w io.Writer, g *graph.Graph, communities map[int64]int, l *layout.Layout) error {
	doc, err := buildDOT(g, communities, l)
	if err != nil {
		return err
	}
	if _, err := io.WriteString(w, doc.String()); err != nil {
		return fmt.Errorf("failed to write dot: %w", err)
	}
	return nil
}

func buildDOT(g *graph.Graph, communities map[int64]int, l *layout.Layout) (*gographviz.Escape, error) {
	doc := gographviz.NewEscape()
	if err := doc.SetName(dotGraphName); err != nil {
		return nil, err
	}
	if err := doc.SetDir(false); err != nil {
		return nil, err
	}
	if err := doc.AddAttr(dotGraphName, "label", DefaultTitle); err != nil {
		return nil, err
	}

	colors := Palette(numCommunities(communities))

	for _, id := range g.Nodes() {
		c, ok := communities[id]
		if !ok {
			return nil, fmt.Errorf("node %d has no community", id)
		}

		attrs := map[string]string{
			"style":     "filled",
			"fillcolor": Hex(colors[c]),
			"tooltip":   fmt.Sprintf("Community %d", c+1),
		}
		if l != nil {
			pos, ok := l.Positions[id]
			if !ok {
				return nil, fmt.Errorf("node %d has no position", id)
			}
			attrs["pos"] = fmt.Sprintf("%.2f,%.2f!", pos.X*dotScale, pos.Y*dotScale)
			attrs["pin"] = "true"
		}

		if err := doc.AddNode(dotGraphName, strconv.FormatInt(id, 10), attrs); err != nil {
			return nil, fmt.Errorf("failed to add node %d: %w", id, err)
		}
	}

	for _, e := range g.Edges() {
		attrs := map[string]string{}
		if e.Weight != 1 {
			attrs["label"] = strconv.FormatFloat(e.Weight, 'g', -1, 64)
		}
		from, to := strconv.FormatInt(e.From, 10), strconv.FormatInt(e.To, 10)
		if err := doc.AddEdge(from, to, false, attrs); err != nil {
			return nil, fmt.Errorf("failed to add edge %d-%d: %w", e.From, e.To, err)
		}
	}

	return doc, nil
}
