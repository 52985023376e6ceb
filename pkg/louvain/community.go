package louvain

import (
	"github.com/gilchrisn/community-detection/pkg/graph"
)

// Community holds the node -> community assignment of dense node indices
// together with the per-community sums modularity is built from.
type Community struct {
	NodeToCommunity          []int     // NodeToCommunity[i] = community of node i
	CommunityWeights         []float64 // tot_c: sum of weighted degrees in c
	CommunityInternalWeights []float64 // in_c: weight over ordered adjacent pairs inside c
	CommunitySizes           []int
	m2                       float64
}

// NewCommunity places every node in its own community; community ids are the
// nodes' insertion indices.
func NewCommunity(g *graph.Graph) *Community {
	n := g.NumNodes()
	comm := &Community{
		NodeToCommunity:          make([]int, n),
		CommunityWeights:         make([]float64, n),
		CommunityInternalWeights: make([]float64, n),
		CommunitySizes:           make([]int, n),
		m2:                       2.0 * g.TotalWeight(),
	}

	for i := 0; i < n; i++ {
		comm.NodeToCommunity[i] = i
		comm.CommunityWeights[i] = g.DegreeAt(i)
		comm.CommunityInternalWeights[i] = g.SelfLoopAt(i)
		comm.CommunitySizes[i] = 1
	}

	return comm
}

// term is the contribution of one community to modularity.
func (c *Community) term(internal, total float64) float64 {
	if c.m2 == 0 {
		return 0
	}
	return internal/c.m2 - (total/c.m2)*(total/c.m2)
}

// Modularity sums the per-community terms in community id order.
func (c *Community) Modularity() float64 {
	q := 0.0
	for comm, size := range c.CommunitySizes {
		if size == 0 {
			continue
		}
		q += c.term(c.CommunityInternalWeights[comm], c.CommunityWeights[comm])
	}
	return q
}

// Assignment returns the raw assignment keyed by node id.
func (c *Community) Assignment(g *graph.Graph) map[int64]int {
	assignment := make(map[int64]int, len(c.NodeToCommunity))
	for i, comm := range c.NodeToCommunity {
		assignment[g.NodeAt(i)] = comm
	}
	return assignment
}

// NumCommunities counts non-empty communities.
func (c *Community) NumCommunities() int {
	count := 0
	for _, size := range c.CommunitySizes {
		if size > 0 {
			count++
		}
	}
	return count
}

// neighborCommunities returns the communities adjacent to node in order of
// first appearance along its adjacency list, excluding its own, and the edge
// weight from node into every adjacent community including its own.
// Self-loops are not counted.
func (c *Community) neighborCommunities(g *graph.Graph, node int) ([]int, map[int]float64) {
	current := c.NodeToCommunity[node]
	candidates := make([]int, 0)
	weightTo := map[int]float64{current: 0}

	neighbors, weights := g.Adjacent(node)
	for k, neighbor := range neighbors {
		if neighbor == node {
			continue
		}
		comm := c.NodeToCommunity[neighbor]
		if _, seen := weightTo[comm]; !seen {
			candidates = append(candidates, comm)
		}
		weightTo[comm] += weights[k]
	}

	return candidates, weightTo
}

// Gain returns the exact modularity change of moving node into target, given
// the node's edge weight into its current community and into target. Only the
// two affected community terms change.
func (c *Community) Gain(g *graph.Graph, node, target int, weightToCurrent, weightToTarget float64) float64 {
	current := c.NodeToCommunity[node]
	if current == target {
		return 0
	}

	degree := g.DegreeAt(node)
	loop := g.SelfLoopAt(node)

	inCur, totCur := c.CommunityInternalWeights[current], c.CommunityWeights[current]
	inTgt, totTgt := c.CommunityInternalWeights[target], c.CommunityWeights[target]

	before := c.term(inCur, totCur) + c.term(inTgt, totTgt)
	after := c.term(inCur-2*weightToCurrent-loop, totCur-degree) +
		c.term(inTgt+2*weightToTarget+loop, totTgt+degree)

	return after - before
}

// MoveNode moves node into target and updates the community sums.
func (c *Community) MoveNode(g *graph.Graph, node, target int, weightToCurrent, weightToTarget float64) {
	current := c.NodeToCommunity[node]
	if current == target {
		return
	}

	degree := g.DegreeAt(node)
	loop := g.SelfLoopAt(node)

	c.CommunityWeights[current] -= degree
	c.CommunityInternalWeights[current] -= 2*weightToCurrent + loop
	c.CommunitySizes[current]--

	c.CommunityWeights[target] += degree
	c.CommunityInternalWeights[target] += 2*weightToTarget + loop
	c.CommunitySizes[target]++

	c.NodeToCommunity[node] = target
}
