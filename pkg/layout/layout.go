package layout

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/graph/path"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/mds"

	"github.com/gilchrisn/community-detection/pkg/graph"
)

// Position represents a 2D coordinate
type Position struct {
	X, Y float64
}

// Layout holds node positions normalized to the unit square
type Layout struct {
	Positions map[int64]Position
	Stress    float64 // Kamada-Kawai stress of the raw coordinates
}

// Options configures Compute
type Options struct {
	// MaxDistance is the target distance between disconnected nodes.
	// Zero means one more than the largest finite shortest-path distance.
	MaxDistance float64
	// StressIterations is the number of stress majorization sweeps run
	// after the classical MDS initialisation.
	StressIterations int
}

// DefaultOptions returns sensible default layout options
func DefaultOptions() Options {
	return Options{
		MaxDistance:      0,
		StressIterations: 100,
	}
}

// Compute places the nodes of g in 2D so that Euclidean distances follow
// weighted shortest-path distances. Coordinates start from classical MDS
// (Torgerson scaling) and are refined by stress majorization, the energy
// Kamada-Kawai minimises. The result depends only on g and opts.
func Compute(g *graph.Graph, opts Options) (*Layout, error) {
	if g.NumNodes() == 0 {
		return nil, fmt.Errorf("graph has no nodes")
	}

	// Sort for deterministic ordering
	nodeList := g.Nodes()
	sort.Slice(nodeList, func(i, j int) bool { return nodeList[i] < nodeList[j] })

	if len(nodeList) == 1 {
		return &Layout{
			Positions: map[int64]Position{nodeList[0]: {X: 0.5, Y: 0.5}},
		}, nil
	}

	dist := distanceMatrix(g, nodeList, opts.MaxDistance)
	coords := torgerson(dist)
	stressMajorization(coords, dist, opts.StressIterations)

	return &Layout{
		Positions: normalize(nodeList, coords),
		Stress:    stress(coords, dist),
	}, nil
}

// distanceMatrix computes all-pairs shortest path lengths using edge weights
// as lengths. Unreachable pairs get maxDistance.
func distanceMatrix(g *graph.Graph, nodeList []int64, maxDistance float64) *mat.SymDense {
	n := len(nodeList)
	paths := path.DijkstraAllPaths(g.ToGonum())

	dist := mat.NewSymDense(n, nil)
	longest := 0.0
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			d := paths.Weight(nodeList[i], nodeList[j])
			if !math.IsInf(d, 0) && d > longest {
				longest = d
			}
			dist.SetSym(i, j, d)
		}
	}

	if maxDistance <= 0 {
		maxDistance = longest + 1
	}
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			if math.IsInf(dist.At(i, j), 0) {
				dist.SetSym(i, j, maxDistance)
			}
		}
	}

	return dist
}

// torgerson applies classical MDS and returns 2D coordinates. When fewer than
// two positive eigenvalues exist the missing axes stay zero; when none exist
// nodes are placed on a circle.
func torgerson(dist *mat.SymDense) [][2]float64 {
	n, _ := dist.Dims()
	coords := make([][2]float64, n)

	var scaled mat.Dense
	k, _ := mds.TorgersonScaling(&scaled, nil, dist)
	if k == 0 {
		for i := range coords {
			angle := 2 * math.Pi * float64(i) / float64(n)
			coords[i] = [2]float64{math.Cos(angle), math.Sin(angle)}
		}
		return coords
	}

	_, cols := scaled.Dims()
	for i := 0; i < n; i++ {
		for d := 0; d < 2 && d < cols; d++ {
			coords[i][d] = scaled.At(i, d)
		}
	}
	return coords
}

// stressMajorization runs localized SMACOF sweeps with weights d^-2. Nodes
// are updated in place, so each update minimises the majorizer of the
// current stress and the stress never increases.
func stressMajorization(coords [][2]float64, dist *mat.SymDense, iterations int) {
	n := len(coords)

	for iter := 0; iter < iterations; iter++ {
		for i := 0; i < n; i++ {
			var sumX, sumY, sumW float64
			for j := 0; j < n; j++ {
				if i == j {
					continue
				}
				d := dist.At(i, j)
				if d <= 0 {
					continue
				}
				w := 1 / (d * d)

				dx := coords[i][0] - coords[j][0]
				dy := coords[i][1] - coords[j][1]
				norm := math.Hypot(dx, dy)

				tx, ty := coords[j][0], coords[j][1]
				if norm > 0 {
					tx += d * dx / norm
					ty += d * dy / norm
				}
				sumX += w * tx
				sumY += w * ty
				sumW += w
			}
			if sumW > 0 {
				coords[i] = [2]float64{sumX / sumW, sumY / sumW}
			}
		}
	}
}

// stress is the Kamada-Kawai energy sum_{i<j} (|x_i - x_j| - d_ij)^2 / d_ij^2.
func stress(coords [][2]float64, dist *mat.SymDense) float64 {
	total := 0.0
	for i := range coords {
		for j := i + 1; j < len(coords); j++ {
			d := dist.At(i, j)
			if d <= 0 {
				continue
			}
			diff := math.Hypot(coords[i][0]-coords[j][0], coords[i][1]-coords[j][1]) - d
			total += diff * diff / (d * d)
		}
	}
	return total
}

// normalize maps coordinates into [0,1] on both axes, keeping the aspect ratio.
func normalize(nodeList []int64, coords [][2]float64) map[int64]Position {
	minX, maxX := math.Inf(1), math.Inf(-1)
	minY, maxY := math.Inf(1), math.Inf(-1)
	for _, c := range coords {
		minX, maxX = math.Min(minX, c[0]), math.Max(maxX, c[0])
		minY, maxY = math.Min(minY, c[1]), math.Max(maxY, c[1])
	}

	span := math.Max(maxX-minX, maxY-minY)
	offsetX := (span - (maxX - minX)) / 2
	offsetY := (span - (maxY - minY)) / 2

	positions := make(map[int64]Position, len(nodeList))
	for i, id := range nodeList {
		if span == 0 {
			positions[id] = Position{X: 0.5, Y: 0.5}
			continue
		}
		positions[id] = Position{
			X: (coords[i][0] - minX + offsetX) / span,
			Y: (coords[i][1] - minY + offsetY) / span,
		}
	}
	return positions
}
