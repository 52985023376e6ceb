package graph

import (
	"gonum.org/v1/gonum/graph/simple"
)

// ToGonum converts the graph to a gonum weighted undirected graph using the
// original node ids. gonum simple graphs reject self edges, so self-loops
// are dropped; every node is still present.
func (g *Graph) ToGonum() *simple.WeightedUndirectedGraph {
	out := simple.NewWeightedUndirectedGraph(0, 0)

	for _, id := range g.ids {
		out.AddNode(simple.Node(id))
	}

	for _, e := range g.Edges() {
		if e.From == e.To {
			continue
		}
		out.SetWeightedEdge(simple.WeightedEdge{
			F: simple.Node(e.From),
			T: simple.Node(e.To),
			W: e.Weight,
		})
	}

	return out
}
