package parser

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/gilchrisn/community-detection/pkg/graph"
)

const maxLineBytes = 1024 * 1024

// LoadError reports an edge-list resource that could not be read.
type LoadError struct {
	Path string
	Line int // last line reached, 0 if the resource never opened
	Err  error
}

func (e *LoadError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("load edge list %s: line %d: %v", e.Path, e.Line, e.Err)
	}
	return fmt.Sprintf("load edge list %s: %v", e.Path, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

// Options controls how edge-list lines are interpreted.
type Options struct {
	// Weighted accepts an optional third column holding a positive edge weight.
	Weighted bool
}

// Stats summarizes what a load accepted and skipped.
type Stats struct {
	Lines      int `json:"lines"`
	Edges      int `json:"edges"`
	Blank      int `json:"blank"`
	Skipped    int `json:"skipped"`
	BadWeights int `json:"bad_weights"`
}

// LoadEdgeList reads an unweighted edge list from path.
func LoadEdgeList(path string) (*graph.Graph, Stats, error) {
	return LoadEdgeListWithOptions(path, Options{})
}

// LoadEdgeListWithOptions reads an edge list from path.
func LoadEdgeListWithOptions(path string, opts Options) (*graph.Graph, Stats, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, Stats{}, &LoadError{Path: path, Err: err}
	}
	defer file.Close()

	g, stats, err := parse(file, opts)
	if err != nil {
		var loadErr *LoadError
		if errors.As(err, &loadErr) {
			loadErr.Path = path
		}
		return nil, stats, err
	}
	return g, stats, nil
}

// ParseEdgeList reads an unweighted edge list from r.
//
// Every line made of exactly two non-negative decimal integers "u v" becomes
// an edge of weight 1; any other non-empty line is skipped. Repeated pairs
// describe the same edge.
func ParseEdgeList(r io.Reader) (*graph.Graph, Stats, error) {
	return parse(r, Options{})
}

// ParseEdgeListWithOptions reads an edge list from r.
func ParseEdgeListWithOptions(r io.Reader, opts Options) (*graph.Graph, Stats, error) {
	return parse(r, opts)
}

func parse(r io.Reader, opts Options) (*graph.Graph, Stats, error) {
	g := graph.New()
	stats := Stats{}

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)

	for scanner.Scan() {
		stats.Lines++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			stats.Blank++
			continue
		}

		parts := strings.Fields(line)
		if len(parts) != 2 && !(opts.Weighted && len(parts) == 3) {
			stats.Skipped++
			continue
		}

		u, okU := parseNodeID(parts[0])
		v, okV := parseNodeID(parts[1])
		if !okU || !okV {
			stats.Skipped++
			continue
		}

		weight := 1.0
		if len(parts) == 3 {
			w, err := strconv.ParseFloat(parts[2], 64)
			if err != nil {
				stats.Skipped++
				continue
			}
			weight = w
		}

		if err := g.AddEdge(u, v, weight); err != nil {
			if errors.Is(err, graph.ErrInvalidEdgeWeight) {
				stats.BadWeights++
				continue
			}
			return nil, stats, &LoadError{Line: stats.Lines, Err: err}
		}
		stats.Edges++
	}

	if err := scanner.Err(); err != nil {
		return nil, stats, &LoadError{Path: "<reader>", Line: stats.Lines, Err: err}
	}

	return g, stats, nil
}

// parseNodeID accepts only plain digit strings, so signs and spaces are rejected.
func parseNodeID(s string) (int64, bool) {
	for _, r := range s {
		if r < '0' || r > '9' {
			return 0, false
		}
	}
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, false
	}
	return id, true
}
