package louvain

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/rs/zerolog"

	"github.com/gilchrisn/community-detection/pkg/graph"
	"github.com/gilchrisn/community-detection/pkg/utils"
)

// State is the lifecycle stage of an optimization run.
type State int

const (
	Initialized State = iota
	Iterating
	Converged
	MaxIterationsReached
)

func (s State) String() string {
	switch s {
	case Initialized:
		return "initialized"
	case Iterating:
		return "iterating"
	case Converged:
		return "converged"
	case MaxIterationsReached:
		return "max_iterations_reached"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// MarshalText encodes the state by name.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText decodes a state name written by MarshalText.
func (s *State) UnmarshalText(text []byte) error {
	switch string(text) {
	case "initialized":
		*s = Initialized
	case "iterating":
		*s = Iterating
	case "converged":
		*s = Converged
	case "max_iterations_reached":
		*s = MaxIterationsReached
	default:
		return fmt.Errorf("unknown state %q", text)
	}
	return nil
}

// gainEpsilon is the smallest gain that counts as an improvement over the
// current best. Gains closer than this are ties.
const gainEpsilon = 1e-12

// Optimizer greedily moves single nodes between neighboring communities while
// modularity strictly improves. The graph is read-only; only the assignment
// changes.
type Optimizer struct {
	graph   *graph.Graph
	config  *Config
	logger  zerolog.Logger
	tracker *utils.MoveTracker

	comm  *Community
	state State
	moves int
}

// NewOptimizer creates an optimizer with every node in its own community.
func NewOptimizer(g *graph.Graph, config *Config) *Optimizer {
	return &Optimizer{
		graph:  g,
		config: config,
		logger: config.CreateLogger(),
		comm:   NewCommunity(g),
		state:  Initialized,
	}
}

// WithMoveTracker records every committed move into tracker.
func (o *Optimizer) WithMoveTracker(tracker *utils.MoveTracker) *Optimizer {
	o.tracker = tracker
	return o
}

// State returns the current lifecycle stage.
func (o *Optimizer) State() State { return o.state }

// Assignment returns the current raw node -> community mapping.
func (o *Optimizer) Assignment() map[int64]int { return o.comm.Assignment(o.graph) }

// Modularity returns the modularity of the current assignment.
func (o *Optimizer) Modularity() float64 { return o.comm.Modularity() }

// Run optimizes from the singleton partition until a pass makes no move or
// the pass bound is reached. The visiting order of every pass is a shuffle
// drawn from a source seeded once with the configured seed, so equal seeds
// give equal partitions. Run always returns a result.
func (o *Optimizer) Run() *Result {
	startTime := time.Now()

	o.comm = NewCommunity(o.graph)
	o.state = Initialized
	o.moves = 0

	rng := rand.New(rand.NewSource(o.config.RandomSeed()))
	maxIterations := o.config.MaxIterations()
	strategy := o.config.GainStrategy()

	o.logger.Info().
		Int("nodes", o.graph.NumNodes()).
		Int("edges", o.graph.NumEdges()).
		Float64("total_weight", o.graph.TotalWeight()).
		Int64("seed", o.config.RandomSeed()).
		Int("max_iterations", maxIterations).
		Str("strategy", string(strategy)).
		Msg("Starting Louvain local optimization")

	result := &Result{
		Statistics: Statistics{PassStats: make([]PassStats, 0)},
	}

	nodes := make([]int, o.graph.NumNodes())
	pass := 0
	for ; pass < maxIterations; pass++ {
		o.state = Iterating
		passStart := time.Now()
		initialMod := o.comm.Modularity()

		for i := range nodes {
			nodes[i] = i
		}
		rng.Shuffle(len(nodes), func(i, j int) { nodes[i], nodes[j] = nodes[j], nodes[i] })

		passMoves := 0
		for _, node := range nodes {
			if o.moveNode(node, pass, strategy) {
				passMoves++
			}
		}

		finalMod := o.comm.Modularity()
		result.Statistics.PassStats = append(result.Statistics.PassStats, PassStats{
			Pass:              pass,
			Moves:             passMoves,
			InitialModularity: initialMod,
			FinalModularity:   finalMod,
			RuntimeMS:         time.Since(passStart).Milliseconds(),
		})

		if o.config.EnableProgress() && shouldReport(pass, o.config.ProgressInterval()) {
			o.logger.Info().
				Int("pass", pass+1).
				Int("moves", passMoves).
				Int("communities", o.comm.NumCommunities()).
				Float64("modularity", finalMod).
				Msg("Local optimization progress")
		}

		if passMoves == 0 {
			o.state = Converged
			pass++
			o.logger.Debug().Int("pass", pass).Msg("Converged: no moves")
			break
		}
	}

	if o.state != Converged {
		o.state = MaxIterationsReached
	}

	raw := o.comm.Assignment(o.graph)
	result.Communities = Normalize(raw)
	result.NumCommunities = o.comm.NumCommunities()
	result.Modularity = Modularity(o.graph, raw)
	result.State = o.state
	result.Statistics.Passes = pass
	result.Statistics.Moves = o.moves
	result.Statistics.Elapsed = time.Since(startTime)
	result.Statistics.RuntimeMS = result.Statistics.Elapsed.Milliseconds()

	o.logger.Info().
		Str("state", o.state.String()).
		Int("passes", pass).
		Int("moves", o.moves).
		Int("communities", result.NumCommunities).
		Float64("modularity", result.Modularity).
		Dur("elapsed", result.Statistics.Elapsed).
		Msg("Louvain local optimization completed")

	return result
}

func shouldReport(pass, interval int) bool {
	if interval <= 0 {
		return false
	}
	return pass%interval == 0
}

// moveNode considers every community adjacent to node and commits the one
// with the strictly largest positive modularity gain. Gains within gainEpsilon
// of each other are ties and keep the candidate seen first along the node's
// adjacency list. It reports whether node moved.
func (o *Optimizer) moveNode(node, pass int, strategy GainStrategy) bool {
	current := o.comm.NodeToCommunity[node]
	candidates, weightTo := o.comm.neighborCommunities(o.graph, node)
	if len(candidates) == 0 {
		return false
	}

	bestComm, bestGain := current, 0.0

	switch strategy {
	case GainRecompute:
		numComms := len(o.comm.NodeToCommunity)
		baseQ := modularityOf(o.graph, o.comm.NodeToCommunity, numComms)
		for _, c := range candidates {
			o.comm.NodeToCommunity[node] = c
			gain := modularityOf(o.graph, o.comm.NodeToCommunity, numComms) - baseQ
			if gain > bestGain+gainEpsilon {
				bestComm, bestGain = c, gain
			}
		}
		o.comm.NodeToCommunity[node] = current
	default:
		for _, c := range candidates {
			gain := o.comm.Gain(o.graph, node, c, weightTo[current], weightTo[c])
			if gain > bestGain+gainEpsilon {
				bestComm, bestGain = c, gain
			}
		}
	}

	if bestComm == current {
		return false
	}

	o.comm.MoveNode(o.graph, node, bestComm, weightTo[current], weightTo[bestComm])
	o.moves++

	if o.tracker != nil {
		o.tracker.LogMove(o.moves, pass, o.graph.NodeAt(node), current, bestComm, bestGain, o.comm.Modularity())
	}

	return true
}

// Run validates the graph and executes the optimizer with the configured move
// tracking. Errors only come from an inconsistent graph or an unwritable
// tracking file; the optimization itself cannot fail. A tracking file that
// fails to close is reported alongside the result.
func Run(g *graph.Graph, config *Config) (result *Result, err error) {
	if err := g.Validate(); err != nil {
		return nil, fmt.Errorf("invalid graph: %w", err)
	}

	optimizer := NewOptimizer(g, config)

	if config.EnableMoveTracking() {
		tracker, terr := utils.NewMoveTracker(config.TrackingOutputFile(), "louvain")
		if terr != nil {
			return nil, terr
		}
		defer func() {
			if cerr := tracker.Close(); cerr != nil && err == nil {
				err = fmt.Errorf("failed to close move tracking file: %w", cerr)
			}
		}()
		optimizer.WithMoveTracker(tracker)
	}

	result = optimizer.Run()

	if err := optimizer.tracker.Err(); err != nil {
		optimizer.logger.Warn().Err(err).Msg("Move tracking stopped early")
	}

	return result, nil
}
