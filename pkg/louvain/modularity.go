package louvain

import (
	"sort"

	gonumgraph "gonum.org/v1/gonum/graph"
	"gonum.org/v1/gonum/graph/community"
	"gonum.org/v1/gonum/graph/simple"

	"github.com/gilchrisn/community-detection/pkg/graph"
)

// Modularity computes Newman's modularity of assignment over the whole graph.
//
// For every community c it adds in_c/2m - (tot_c/2m)^2, where in_c sums the
// weight of every ordered pair of adjacent nodes inside c (a self-loop is
// one such pair) and tot_c sums weighted degrees. Nodes missing from the
// assignment are treated as singletons. A graph without edges scores 0.
func Modularity(g *graph.Graph, assignment map[int64]int) float64 {
	n := g.NumNodes()
	if n == 0 {
		return 0
	}

	// Rank community ids so the per-community sums are accumulated in a fixed order.
	dense := Normalize(assignment)
	next := 0
	for _, c := range dense {
		if c >= next {
			next = c + 1
		}
	}

	nodeToComm := make([]int, n)
	for i := 0; i < n; i++ {
		c, ok := dense[g.NodeAt(i)]
		if !ok {
			c = next
			next++
		}
		nodeToComm[i] = c
	}

	return modularityOf(g, nodeToComm, next)
}

// modularityOf evaluates modularity for a dense node -> community slice whose
// community ids are all below numComms.
func modularityOf(g *graph.Graph, nodeToComm []int, numComms int) float64 {
	m2 := 2.0 * g.TotalWeight()
	if m2 == 0 {
		return 0
	}

	internal := make([]float64, numComms)
	total := make([]float64, numComms)
	occupied := make([]bool, numComms)

	for i, c := range nodeToComm {
		occupied[c] = true
		total[c] += g.DegreeAt(i)

		neighbors, weights := g.Adjacent(i)
		for k, j := range neighbors {
			if nodeToComm[j] == c {
				internal[c] += weights[k]
			}
		}
	}

	// Summing sorted terms makes the score depend only on the multiset of
	// communities, not on how they are labelled.
	terms := make([]float64, 0, numComms)
	for c := 0; c < numComms; c++ {
		if !occupied[c] {
			continue
		}
		terms = append(terms, internal[c]/m2-(total[c]/m2)*(total[c]/m2))
	}
	sort.Float64s(terms)

	q := 0.0
	for _, t := range terms {
		q += t
	}
	return q
}

// GonumModularity scores assignment with gonum's community.Q at resolution 1.
// gonum cannot represent self-loops, so the result matches Modularity only
// for graphs without them.
func GonumModularity(g *graph.Graph, assignment map[int64]int) float64 {
	groups := groupNodes(Normalize(assignment))
	communities := make([][]gonumgraph.Node, len(groups))
	for c, nodes := range groups {
		communities[c] = make([]gonumgraph.Node, len(nodes))
		for i, id := range nodes {
			communities[c][i] = simple.Node(id)
		}
	}
	return community.Q(g.ToGonum(), communities, 1)
}

// groupNodes collects the nodes of a normalized assignment by community, each
// list sorted ascending.
func groupNodes(normalized map[int64]int) [][]int64 {
	numComms := 0
	for _, c := range normalized {
		if c+1 > numComms {
			numComms = c + 1
		}
	}

	groups := make([][]int64, numComms)
	for node, c := range normalized {
		groups[c] = append(groups[c], node)
	}
	for _, nodes := range groups {
		sort.Slice(nodes, func(i, j int) bool { return nodes[i] < nodes[j] })
	}
	return groups
}
