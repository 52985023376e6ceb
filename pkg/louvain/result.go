package louvain

import "time"

// Result contains the outcome of one optimization run
type Result struct {
	Communities    map[int64]int `json:"communities"` // node -> normalized community
	Modularity     float64       `json:"modularity"`
	NumCommunities int           `json:"num_communities"`
	State          State         `json:"state"`
	Statistics     Statistics    `json:"statistics"`
}

// Statistics contains algorithm performance metrics
type Statistics struct {
	Passes    int           `json:"passes"`
	Moves     int           `json:"moves"`
	RuntimeMS int64         `json:"runtime_ms"`
	Elapsed   time.Duration `json:"-"`
	PassStats []PassStats   `json:"pass_stats"`
}

// PassStats contains per-pass statistics
type PassStats struct {
	Pass              int     `json:"pass"`
	Moves             int     `json:"moves"`
	InitialModularity float64 `json:"initial_modularity"`
	FinalModularity   float64 `json:"final_modularity"`
	RuntimeMS         int64   `json:"runtime_ms"`
}

// Groups returns the members of every community, indexed by normalized
// community id, each sorted ascending.
func (r *Result) Groups() [][]int64 {
	return groupNodes(r.Communities)
}

// Converged reports whether the run stopped because a pass made no move.
func (r *Result) Converged() bool {
	return r.State == Converged
}
