package louvain

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gilchrisn/community-detection/pkg/graph"
	"github.com/gilchrisn/community-detection/pkg/utils"
)

// TestGraph describes a graph and the community count range expected for it
type TestGraph struct {
	Name        string
	Graph       *graph.Graph
	ExpectedMin int
	ExpectedMax int
	Description string
}

func newTestConfig(seed int64, maxIterations int) *Config {
	config := NewConfig()
	config.Set("algorithm.random_seed", seed)
	config.Set("algorithm.max_iterations", maxIterations)
	config.Set("logging.level", "disabled")
	config.SetLogOutput(io.Discard)
	return config
}

func newStrategyConfig(seed int64, maxIterations int, strategy GainStrategy) *Config {
	config := newTestConfig(seed, maxIterations)
	config.Set("algorithm.gain_strategy", string(strategy))
	return config
}

func mustAddEdge(t testing.TB, g *graph.Graph, u, v int64, w float64) {
	t.Helper()
	require.NoError(t, g.AddEdge(u, v, w))
}

func twoTriangles(t testing.TB) *graph.Graph {
	g := graph.New()
	mustAddEdge(t, g, 1, 2, 1)
	mustAddEdge(t, g, 2, 3, 1)
	mustAddEdge(t, g, 1, 3, 1)
	mustAddEdge(t, g, 4, 5, 1)
	mustAddEdge(t, g, 5, 6, 1)
	mustAddEdge(t, g, 4, 6, 1)
	return g
}

func clique(t testing.TB, offset int64, size int, weight float64) *graph.Graph {
	g := graph.New()
	addClique(t, g, offset, size, weight)
	return g
}

func addClique(t testing.TB, g *graph.Graph, offset int64, size int, weight float64) {
	for i := 0; i < size; i++ {
		for j := i + 1; j < size; j++ {
			mustAddEdge(t, g, offset+int64(i), offset+int64(j), weight)
		}
	}
}

// ringOfCliques joins count cliques of the given size in a cycle with one edge each.
func ringOfCliques(t testing.TB, count, size int) *graph.Graph {
	g := graph.New()
	for c := 0; c < count; c++ {
		addClique(t, g, int64(c*size), size, 1)
	}
	for c := 0; c < count; c++ {
		next := (c + 1) % count
		mustAddEdge(t, g, int64(c*size), int64(next*size+1), 1)
	}
	return g
}

func createTestGraphs(t testing.TB) []TestGraph {
	graphs := []TestGraph{}

	singleNode := graph.New()
	singleNode.AddNode(1)
	graphs = append(graphs, TestGraph{
		Name: "SingleNode", Graph: singleNode, ExpectedMin: 1, ExpectedMax: 1,
		Description: "Graph with single isolated node",
	})

	twoConnected := graph.New()
	mustAddEdge(t, twoConnected, 1, 2, 1)
	graphs = append(graphs, TestGraph{
		Name: "TwoConnected", Graph: twoConnected, ExpectedMin: 1, ExpectedMax: 2,
		Description: "Two nodes connected by single edge",
	})

	star := graph.New()
	for i := int64(1); i <= 5; i++ {
		mustAddEdge(t, star, 0, i, 1)
	}
	graphs = append(graphs, TestGraph{
		Name: "Star", Graph: star, ExpectedMin: 1, ExpectedMax: 6,
		Description: "Star graph with center node connected to 5 leaves",
	})

	chain := graph.New()
	for i := int64(1); i < 6; i++ {
		mustAddEdge(t, chain, i, i+1, 1)
	}
	graphs = append(graphs, TestGraph{
		Name: "Chain", Graph: chain, ExpectedMin: 1, ExpectedMax: 6,
		Description: "Linear chain of 6 nodes",
	})

	graphs = append(graphs, TestGraph{
		Name: "TwoTriangles", Graph: twoTriangles(t), ExpectedMin: 2, ExpectedMax: 2,
		Description: "Two disconnected triangles",
	})

	barbell := graph.New()
	addClique(t, barbell, 10, 3, 2)
	addClique(t, barbell, 20, 3, 2)
	mustAddEdge(t, barbell, 10, 20, 0.1)
	graphs = append(graphs, TestGraph{
		Name: "Barbell", Graph: barbell, ExpectedMin: 2, ExpectedMax: 6,
		Description: "Barbell graph: two cliques connected by weak bridge",
	})

	selfLoop := graph.New()
	mustAddEdge(t, selfLoop, 1, 1, 2)
	mustAddEdge(t, selfLoop, 1, 2, 1)
	mustAddEdge(t, selfLoop, 2, 2, 1)
	graphs = append(graphs, TestGraph{
		Name: "SelfLoop", Graph: selfLoop, ExpectedMin: 1, ExpectedMax: 2,
		Description: "Graph with self-loops",
	})

	return graphs
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		name     string
		input    map[int64]int
		expected map[int64]int
	}{
		{"empty", map[int64]int{}, map[int64]int{}},
		{"already dense", map[int64]int{1: 0, 2: 1, 3: 0}, map[int64]int{1: 0, 2: 1, 3: 0}},
		{"sparse ids", map[int64]int{1: 40, 2: 7, 3: 40, 4: 12}, map[int64]int{1: 2, 2: 0, 3: 2, 4: 1}},
		{"negative ids", map[int64]int{5: -3, 6: 9}, map[int64]int{5: 0, 6: 1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Normalize(tt.input))
		})
	}
}

func TestNormalizeDoesNotMutateInput(t *testing.T) {
	input := map[int64]int{1: 9, 2: 4}
	Normalize(input)
	assert.Equal(t, map[int64]int{1: 9, 2: 4}, input)
}

// buildGraph turns a flat list of endpoints into edges between consecutive pairs.
func buildGraph(endpoints []int, allowSelfLoops bool) *graph.Graph {
	g := graph.New()
	for i := 0; i+1 < len(endpoints); i += 2 {
		u, v := int64(endpoints[i]), int64(endpoints[i+1])
		if u == v && !allowSelfLoops {
			g.AddNode(u)
			continue
		}
		_ = g.AddEdge(u, v, float64(1+(endpoints[i]+endpoints[i+1])%3))
	}
	return g
}

func assign(g *graph.Graph, labels []int) map[int64]int {
	assignment := make(map[int64]int, g.NumNodes())
	for i, node := range g.Nodes() {
		assignment[node] = labels[i%len(labels)]
	}
	return assignment
}

func TestProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("normalize is dense and idempotent", prop.ForAll(
		func(labels []int) bool {
			assignment := make(map[int64]int, len(labels))
			for i, c := range labels {
				assignment[int64(i)] = c
			}

			once := Normalize(assignment)
			distinct := make(map[int]bool)
			for _, c := range once {
				distinct[c] = true
			}
			for c := 0; c < len(distinct); c++ {
				if !distinct[c] {
					return false
				}
			}

			twice := Normalize(once)
			if len(twice) != len(once) {
				return false
			}
			for node, c := range once {
				if twice[node] != c {
					return false
				}
			}
			return true
		},
		gen.SliceOf(gen.IntRange(-50, 50)),
	))

	properties.Property("modularity is invariant under relabeling", prop.ForAll(
		func(endpoints []int, labels []int, shift int) bool {
			g := buildGraph(endpoints, true)
			if g.NumNodes() == 0 {
				return true
			}
			assignment := assign(g, labels)
			relabeled := make(map[int64]int, len(assignment))
			for node, c := range assignment {
				relabeled[node] = -7*c + shift
			}

			return Modularity(g, assignment) == Modularity(g, relabeled)
		},
		gen.SliceOfN(24, gen.IntRange(0, 11)),
		gen.SliceOfN(12, gen.IntRange(0, 4)),
		gen.IntRange(-100, 100),
	))

	properties.Property("modularity agrees with gonum community.Q", prop.ForAll(
		func(endpoints []int, labels []int) bool {
			g := buildGraph(endpoints, false)
			if g.NumNodes() == 0 || g.TotalWeight() == 0 {
				return true
			}
			assignment := assign(g, labels)
			diff := Modularity(g, assignment) - GonumModularity(g, assignment)
			return diff < 1e-9 && diff > -1e-9
		},
		gen.SliceOfN(24, gen.IntRange(0, 11)),
		gen.SliceOfN(12, gen.IntRange(0, 4)),
	))

	properties.Property("run keeps every node assigned and never loses modularity", prop.ForAll(
		func(endpoints []int, seed int64) bool {
			g := buildGraph(endpoints, true)
			singletons := Modularity(g, NewCommunity(g).Assignment(g))

			optimizer := NewOptimizer(g, newTestConfig(seed, 50))
			result := optimizer.Run()

			if len(result.Communities) != g.NumNodes() {
				return false
			}
			incremental := optimizer.Modularity()
			if d := incremental - result.Modularity; d > 1e-9 || d < -1e-9 {
				return false
			}
			return result.Modularity >= singletons-1e-12
		},
		gen.SliceOfN(30, gen.IntRange(0, 14)),
		gen.Int64Range(0, 1000),
	))

	properties.Property("incremental and recompute strategies agree", prop.ForAll(
		func(endpoints []int, seed int64) bool {
			g := buildGraph(endpoints, true)

			incremental := NewOptimizer(g, newStrategyConfig(seed, 50, GainIncremental)).Run()
			recompute := NewOptimizer(g, newStrategyConfig(seed, 50, GainRecompute)).Run()

			return reflect.DeepEqual(incremental.Communities, recompute.Communities) &&
				incremental.State == recompute.State &&
				incremental.Statistics.Moves == recompute.Statistics.Moves
		},
		gen.SliceOfN(40, gen.IntRange(0, 14)),
		gen.Int64Range(0, 1000),
	))

	properties.TestingRun(t)
}

func TestModularityKnownValues(t *testing.T) {
	g := twoTriangles(t)

	split := map[int64]int{1: 0, 2: 0, 3: 0, 4: 1, 5: 1, 6: 1}
	assert.InDelta(t, 0.5, Modularity(g, split), 1e-12)

	together := map[int64]int{1: 0, 2: 0, 3: 0, 4: 0, 5: 0, 6: 0}
	assert.InDelta(t, 0.0, Modularity(g, together), 1e-12)

	singletons := map[int64]int{1: 0, 2: 1, 3: 2, 4: 3, 5: 4, 6: 5}
	assert.InDelta(t, -1.0/6.0, Modularity(g, singletons), 1e-12)

	// Nodes left out of the assignment count as singletons
	partial := map[int64]int{1: 0, 2: 0, 3: 0}
	expected := 0.25 - 3*(2.0/12.0)*(2.0/12.0)
	assert.InDelta(t, expected, Modularity(g, partial), 1e-12)

	assert.Equal(t, 0.0, Modularity(graph.New(), map[int64]int{}))
}

func TestModularitySelfLoop(t *testing.T) {
	g := graph.New()
	mustAddEdge(t, g, 1, 1, 1)
	mustAddEdge(t, g, 1, 2, 1)

	// 2m = 4; in = 2*1 + 1, tot = 3 + 1
	assert.InDelta(t, 3.0/4.0-1.0, Modularity(g, map[int64]int{1: 0, 2: 0}), 1e-12)
	// community {1}: in = 1, tot = 3; community {2}: in = 0, tot = 1
	assert.InDelta(t, 1.0/4.0-9.0/16.0-1.0/16.0, Modularity(g, map[int64]int{1: 0, 2: 1}), 1e-12)
}

func TestCommunityGainMatchesRecomputation(t *testing.T) {
	g := ringOfCliques(t, 3, 4)
	comm := NewCommunity(g)

	for node := 0; node < g.NumNodes(); node++ {
		candidates, weightTo := comm.neighborCommunities(g, node)
		for _, c := range candidates {
			before := modularityOf(g, comm.NodeToCommunity, g.NumNodes())
			current := comm.NodeToCommunity[node]

			gain := comm.Gain(g, node, c, weightTo[current], weightTo[c])
			comm.NodeToCommunity[node] = c
			after := modularityOf(g, comm.NodeToCommunity, g.NumNodes())
			comm.NodeToCommunity[node] = current

			assert.InDelta(t, after-before, gain, 1e-12, "node %d -> community %d", node, c)
		}
		if len(candidates) > 0 {
			c := candidates[0]
			comm.MoveNode(g, node, c, weightTo[comm.NodeToCommunity[node]], weightTo[c])
			assert.InDelta(t, modularityOf(g, comm.NodeToCommunity, g.NumNodes()), comm.Modularity(), 1e-12)
		}
	}
}

// hubOfTriangles attaches node 0 to one corner of each of count triangles, so
// the hub sees count candidate communities with equal gain.
func hubOfTriangles(t testing.TB, count int) *graph.Graph {
	g := graph.New()
	for c := 0; c < count; c++ {
		offset := int64(1 + 3*c)
		addClique(t, g, offset, 3, 1)
		mustAddEdge(t, g, 0, offset, 1)
	}
	return g
}

func TestStrategiesAgreeOnTies(t *testing.T) {
	graphs := map[string]*graph.Graph{
		"hub of triangles": hubOfTriangles(t, 3),
		"ring of cliques":  ringOfCliques(t, 5, 4),
		"star":             createTestGraphs(t)[2].Graph,
	}

	for name, g := range graphs {
		t.Run(name, func(t *testing.T) {
			for seed := int64(0); seed < 100; seed++ {
				incremental := NewOptimizer(g, newStrategyConfig(seed, 500, GainIncremental)).Run()
				recompute := NewOptimizer(g, newStrategyConfig(seed, 500, GainRecompute)).Run()

				require.Equal(t, incremental.Communities, recompute.Communities, "seed %d", seed)
				require.Equal(t, incremental.Statistics.Moves, recompute.Statistics.Moves, "seed %d", seed)
				require.InDelta(t, incremental.Modularity, recompute.Modularity, 1e-12, "seed %d", seed)
			}
		})
	}
}

func TestRecomputeSkipsZeroGainMoves(t *testing.T) {
	for seed := int64(0); seed < 50; seed++ {
		var buf bytes.Buffer
		tracker := utils.NewMoveTrackerWriter(&buf, "louvain")
		NewOptimizer(hubOfTriangles(t, 4), newStrategyConfig(seed, 500, GainRecompute)).WithMoveTracker(tracker).Run()
		require.NoError(t, tracker.Err())

		scanner := bufio.NewScanner(&buf)
		for scanner.Scan() {
			var ev utils.MoveEvent
			require.NoError(t, json.Unmarshal(scanner.Bytes(), &ev))
			assert.Greater(t, ev.Gain, gainEpsilon, "seed %d move %d", seed, ev.MoveNumber)
		}
	}
}

func TestRunZeroEdges(t *testing.T) {
	g := graph.New()
	for i := int64(10); i < 15; i++ {
		g.AddNode(i)
	}

	result := NewOptimizer(g, newTestConfig(0, 500)).Run()

	assert.Equal(t, Converged, result.State)
	assert.Equal(t, 1, result.Statistics.Passes)
	assert.Equal(t, 0, result.Statistics.Moves)
	assert.Equal(t, 5, result.NumCommunities)
	assert.Equal(t, map[int64]int{10: 0, 11: 1, 12: 2, 13: 3, 14: 4}, result.Communities)
	assert.Equal(t, 0.0, result.Modularity)
}

func TestRunEmptyGraph(t *testing.T) {
	result := NewOptimizer(graph.New(), newTestConfig(0, 500)).Run()

	assert.Equal(t, Converged, result.State)
	assert.Empty(t, result.Communities)
	assert.Equal(t, 0, result.NumCommunities)
}

func TestRunTwoTriangles(t *testing.T) {
	for _, strategy := range []GainStrategy{GainIncremental, GainRecompute} {
		t.Run(string(strategy), func(t *testing.T) {
			config := newTestConfig(0, 500)
			config.Set("algorithm.gain_strategy", string(strategy))

			result := NewOptimizer(twoTriangles(t), config).Run()

			assert.Equal(t, Converged, result.State)
			assert.Equal(t, 2, result.NumCommunities)
			assert.InDelta(t, 0.5, result.Modularity, 1e-9)
			assert.Equal(t, [][]int64{{1, 2, 3}, {4, 5, 6}}, result.Groups())
		})
	}
}

func TestRunClique(t *testing.T) {
	for _, strategy := range []GainStrategy{GainIncremental, GainRecompute} {
		t.Run(string(strategy), func(t *testing.T) {
			config := newTestConfig(0, 500)
			config.Set("algorithm.gain_strategy", string(strategy))

			result := NewOptimizer(clique(t, 1, 4, 1), config).Run()

			assert.Equal(t, Converged, result.State)
			assert.Equal(t, 1, result.NumCommunities)
			assert.InDelta(t, 0.0, result.Modularity, 1e-9)
			assert.Equal(t, map[int64]int{1: 0, 2: 0, 3: 0, 4: 0}, result.Communities)
		})
	}
}

func TestRunMaxIterationsZero(t *testing.T) {
	g := twoTriangles(t)
	optimizer := NewOptimizer(g, newTestConfig(0, 0))

	result := optimizer.Run()

	assert.Equal(t, MaxIterationsReached, result.State)
	assert.Equal(t, 0, result.Statistics.Passes)
	assert.Equal(t, map[int64]int{1: 0, 2: 1, 3: 2, 4: 3, 5: 4, 6: 5}, result.Communities)
	assert.Equal(t, map[int64]int{1: 0, 2: 1, 3: 2, 4: 3, 5: 4, 6: 5}, optimizer.Assignment())
}

func TestRunPassBound(t *testing.T) {
	g := ringOfCliques(t, 4, 5)

	result := NewOptimizer(g, newTestConfig(3, 1)).Run()

	assert.Equal(t, MaxIterationsReached, result.State, "the first pass always moves on a connected graph")
	assert.Equal(t, 1, result.Statistics.Passes)
	require.Len(t, result.Statistics.PassStats, 1)
	assert.Greater(t, result.Statistics.PassStats[0].Moves, 0)
}

func TestRunDeterminism(t *testing.T) {
	g := ringOfCliques(t, 6, 5)

	first := NewOptimizer(g, newTestConfig(7, 500)).Run()
	second := NewOptimizer(g, newTestConfig(7, 500)).Run()
	assert.Equal(t, first.Communities, second.Communities)
	assert.Equal(t, first.Modularity, second.Modularity)
	assert.Equal(t, first.Statistics.Moves, second.Statistics.Moves)

	// Re-running the same optimizer starts again from singletons
	optimizer := NewOptimizer(g, newTestConfig(7, 500))
	assert.Equal(t, first.Communities, optimizer.Run().Communities)
	assert.Equal(t, first.Communities, optimizer.Run().Communities)
}

func TestRunRingOfCliques(t *testing.T) {
	g := ringOfCliques(t, 6, 5)

	result := NewOptimizer(g, newTestConfig(0, 500)).Run()

	assert.Equal(t, Converged, result.State)
	assert.Greater(t, result.Modularity, 0.5)
	assert.InDelta(t, Modularity(g, result.Communities), result.Modularity, 1e-12)
}

func TestRunTestGraphs(t *testing.T) {
	for _, tg := range createTestGraphs(t) {
		t.Run(tg.Name, func(t *testing.T) {
			result, err := Run(tg.Graph, newTestConfig(42, 500))
			require.NoError(t, err)

			assert.Len(t, result.Communities, tg.Graph.NumNodes())
			assert.GreaterOrEqual(t, result.NumCommunities, tg.ExpectedMin, tg.Description)
			assert.LessOrEqual(t, result.NumCommunities, tg.ExpectedMax, tg.Description)
			assert.Len(t, result.Groups(), result.NumCommunities)
			assert.True(t, result.Converged())
		})
	}
}

func TestRunWithMoveTracking(t *testing.T) {
	path := filepath.Join(t.TempDir(), "moves.jsonl")
	config := newTestConfig(0, 500)
	config.Set("analysis.track_moves", true)
	config.Set("analysis.output_file", path)

	result, err := Run(twoTriangles(t), config)
	require.NoError(t, err)
	assert.Equal(t, 2, result.NumCommunities)

	config.Set("analysis.output_file", filepath.Join(t.TempDir(), "missing", "moves.jsonl"))
	_, err = Run(twoTriangles(t), config)
	assert.Error(t, err)
}

func TestOptimizerMoveTracker(t *testing.T) {
	var buf bytes.Buffer
	tracker := utils.NewMoveTrackerWriter(&buf, "louvain")

	result := NewOptimizer(twoTriangles(t), newTestConfig(0, 500)).WithMoveTracker(tracker).Run()

	lines := bytes.Count(buf.Bytes(), []byte("\n"))
	assert.Equal(t, result.Statistics.Moves, lines)
	assert.Equal(t, 4, lines, "two moves per triangle")
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "converged", Converged.String())
	assert.Equal(t, "max_iterations_reached", MaxIterationsReached.String())
	text, err := Iterating.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "iterating", string(text))
	assert.Equal(t, "state(9)", State(9).String())
}

func TestStateTextRoundTrip(t *testing.T) {
	for _, state := range []State{Initialized, Iterating, Converged, MaxIterationsReached} {
		data, err := json.Marshal(map[string]State{"state": state})
		require.NoError(t, err)

		var decoded map[string]State
		require.NoError(t, json.Unmarshal(data, &decoded))
		assert.Equal(t, state, decoded["state"])
	}

	var state State
	assert.ErrorContains(t, state.UnmarshalText([]byte("state(9)")), "unknown state")

	var result Result
	require.NoError(t, json.Unmarshal([]byte(`{"state":"converged"}`), &result))
	assert.Equal(t, Converged, result.State)
}

func TestConfigDefaults(t *testing.T) {
	config := NewConfig()
	assert.Equal(t, 500, config.MaxIterations())
	assert.Equal(t, int64(0), config.RandomSeed())
	assert.Equal(t, GainIncremental, config.GainStrategy())

	config.Set("algorithm.gain_strategy", "bogus")
	assert.Equal(t, GainIncremental, config.GainStrategy())
	config.Set("algorithm.gain_strategy", "recompute")
	assert.Equal(t, GainRecompute, config.GainStrategy())
}

func TestConfigLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "louvain.yaml")
	content := "algorithm:\n  max_iterations: 12\n  random_seed: 99\nlogging:\n  level: debug\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	config := NewConfig()
	require.NoError(t, config.LoadFromFile(path))
	assert.Equal(t, 12, config.MaxIterations())
	assert.Equal(t, int64(99), config.RandomSeed())
	assert.Equal(t, "debug", config.LogLevel())
}

func BenchmarkRun(b *testing.B) {
	g := ringOfCliques(b, 20, 8)
	for _, strategy := range []GainStrategy{GainIncremental, GainRecompute} {
		b.Run(fmt.Sprint(strategy), func(b *testing.B) {
			config := newTestConfig(0, 500)
			config.Set("algorithm.gain_strategy", string(strategy))
			for i := 0; i < b.N; i++ {
				NewOptimizer(g, config).Run()
			}
		})
	}
}
