package graph

import (
	"errors"
	"fmt"
	"math"
	"sort"
)

// ErrInvalidEdgeWeight is returned when an edge weight is not a positive finite number.
var ErrInvalidEdgeWeight = errors.New("edge weight must be positive and finite")

// edgeKey identifies an undirected edge by its two dense node indices, lowest first.
type edgeKey struct {
	lo, hi int
}

func newEdgeKey(a, b int) edgeKey {
	if a > b {
		a, b = b, a
	}
	return edgeKey{lo: a, hi: b}
}

// Graph is an undirected weighted graph keyed by int64 node ids.
//
// Nodes keep the order in which they were first seen, so iteration is
// deterministic for a fixed construction order. Adding an edge that already
// exists overwrites its weight.
type Graph struct {
	ids         []int64
	index       map[int64]int
	adjacency   [][]int     // adjacency[i] = neighbor indices of node i, insertion order
	adjWeights  [][]float64 // adjWeights[i][k] = weight of edge i-adjacency[i][k]
	edges       map[edgeKey]float64
	degrees     []float64
	edgeCounts  []int
	totalWeight float64
}

// New creates an empty graph.
func New() *Graph {
	return &Graph{
		index: make(map[int64]int),
		edges: make(map[edgeKey]float64),
	}
}

// AddNode registers n if it is not already present and returns its dense index.
func (g *Graph) AddNode(n int64) int {
	if i, ok := g.index[n]; ok {
		return i
	}
	i := len(g.ids)
	g.ids = append(g.ids, n)
	g.index[n] = i
	g.adjacency = append(g.adjacency, nil)
	g.adjWeights = append(g.adjWeights, nil)
	g.degrees = append(g.degrees, 0)
	g.edgeCounts = append(g.edgeCounts, 0)
	return i
}

// AddEdge adds the undirected edge u-v, registering both nodes if needed.
// If the edge already exists its weight is replaced.
func (g *Graph) AddEdge(u, v int64, weight float64) error {
	if weight <= 0 || math.IsNaN(weight) || math.IsInf(weight, 0) {
		return fmt.Errorf("edge %d-%d with weight %v: %w", u, v, weight, ErrInvalidEdgeWeight)
	}

	a := g.AddNode(u)
	b := g.AddNode(v)
	key := newEdgeKey(a, b)

	if old, exists := g.edges[key]; exists {
		g.edges[key] = weight
		g.setAdjacentWeight(a, b, weight)
		delta := weight - old
		if a == b {
			g.degrees[a] += 2 * delta
		} else {
			g.setAdjacentWeight(b, a, weight)
			g.degrees[a] += delta
			g.degrees[b] += delta
		}
		g.totalWeight += delta
		return nil
	}

	g.edges[key] = weight
	g.adjacency[a] = append(g.adjacency[a], b)
	g.adjWeights[a] = append(g.adjWeights[a], weight)
	if a != b {
		g.adjacency[b] = append(g.adjacency[b], a)
		g.adjWeights[b] = append(g.adjWeights[b], weight)
		g.degrees[a] += weight
		g.degrees[b] += weight
		g.edgeCounts[a]++
		g.edgeCounts[b]++
	} else {
		// Self-loop: both ends land on the same node
		g.degrees[a] += 2 * weight
		g.edgeCounts[a] += 2
	}
	g.totalWeight += weight
	return nil
}

func (g *Graph) setAdjacentWeight(from, to int, weight float64) {
	for k, neighbor := range g.adjacency[from] {
		if neighbor == to {
			g.adjWeights[from][k] = weight
			return
		}
	}
}

// Nodes returns all node ids in insertion order.
func (g *Graph) Nodes() []int64 {
	nodes := make([]int64, len(g.ids))
	copy(nodes, g.ids)
	return nodes
}

// Neighbors returns the ids adjacent to n. A node with a self-loop is its own neighbor.
func (g *Graph) Neighbors(n int64) []int64 {
	i, ok := g.index[n]
	if !ok {
		return nil
	}
	neighbors := make([]int64, len(g.adjacency[i]))
	for k, j := range g.adjacency[i] {
		neighbors[k] = g.ids[j]
	}
	return neighbors
}

// Degree returns the sum of incident edge weights of n, or the number of
// incident edge ends when weighted is false. Self-loops count twice.
func (g *Graph) Degree(n int64, weighted bool) float64 {
	i, ok := g.index[n]
	if !ok {
		return 0
	}
	if weighted {
		return g.degrees[i]
	}
	return float64(g.edgeCounts[i])
}

// HasEdge reports whether u and v are adjacent.
func (g *Graph) HasEdge(u, v int64) bool {
	_, ok := g.EdgeWeight(u, v)
	return ok
}

// EdgeWeight returns the weight of edge u-v and whether it exists.
func (g *Graph) EdgeWeight(u, v int64) (float64, bool) {
	a, ok := g.index[u]
	if !ok {
		return 0, false
	}
	b, ok := g.index[v]
	if !ok {
		return 0, false
	}
	w, ok := g.edges[newEdgeKey(a, b)]
	return w, ok
}

// NumNodes returns the number of nodes.
func (g *Graph) NumNodes() int { return len(g.ids) }

// NumEdges returns the number of distinct undirected edges, self-loops included.
func (g *Graph) NumEdges() int { return len(g.edges) }

// TotalWeight returns m, the sum of all edge weights.
func (g *Graph) TotalWeight() float64 { return g.totalWeight }

// Index returns the dense insertion index of n.
func (g *Graph) Index(n int64) (int, bool) {
	i, ok := g.index[n]
	return i, ok
}

// NodeAt returns the id stored at dense index i.
func (g *Graph) NodeAt(i int) int64 { return g.ids[i] }

// Adjacent returns the neighbor indices of dense node i and the matching
// edge weights. The slices are owned by the graph and must not be modified.
func (g *Graph) Adjacent(i int) ([]int, []float64) {
	return g.adjacency[i], g.adjWeights[i]
}

// DegreeAt returns the weighted degree of dense node i.
func (g *Graph) DegreeAt(i int) float64 { return g.degrees[i] }

// SelfLoopAt returns the weight of the self-loop on dense node i, or 0.
func (g *Graph) SelfLoopAt(i int) float64 {
	return g.edges[edgeKey{lo: i, hi: i}]
}

// Edge is an undirected edge with its weight, From <= To in insertion order.
type Edge struct {
	From   int64
	To     int64
	Weight float64
}

// Edges returns every edge once, ordered by the insertion index of its endpoints.
func (g *Graph) Edges() []Edge {
	keys := make([]edgeKey, 0, len(g.edges))
	for key := range g.edges {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].lo != keys[j].lo {
			return keys[i].lo < keys[j].lo
		}
		return keys[i].hi < keys[j].hi
	})

	edges := make([]Edge, len(keys))
	for i, key := range keys {
		edges[i] = Edge{From: g.ids[key.lo], To: g.ids[key.hi], Weight: g.edges[key]}
	}
	return edges
}

// Validate checks adjacency symmetry and weight positivity.
func (g *Graph) Validate() error {
	for i := range g.ids {
		if len(g.adjacency[i]) != len(g.adjWeights[i]) {
			return fmt.Errorf("adjacency and weights arrays inconsistent for node %d", g.ids[i])
		}
		for k, j := range g.adjacency[i] {
			w := g.adjWeights[i][k]
			if w <= 0 {
				return fmt.Errorf("non-positive weight %f for edge %d-%d", w, g.ids[i], g.ids[j])
			}
			if stored, ok := g.edges[newEdgeKey(i, j)]; !ok || stored != w {
				return fmt.Errorf("graph is not symmetric: edge %d-%d", g.ids[i], g.ids[j])
			}
		}
	}
	return nil
}
