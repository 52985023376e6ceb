package service

import (
	"time"

	"github.com/gilchrisn/community-detection/pkg/louvain"
	"github.com/gilchrisn/community-detection/pkg/parser"
)

// Job represents a community detection job
type Job struct {
	ID          string        `json:"id"`
	Parameters  JobParameters `json:"parameters"`
	Status      JobStatus     `json:"status"`
	Input       parser.Stats  `json:"input"`
	Result      *JobResult    `json:"result,omitempty"`
	Error       string        `json:"error,omitempty"`
	CreatedAt   time.Time     `json:"createdAt"`
	UpdatedAt   time.Time     `json:"updatedAt"`
	StartedAt   *time.Time    `json:"startedAt,omitempty"`
	CompletedAt *time.Time    `json:"completedAt,omitempty"`
}

type JobStatus string

const (
	JobStatusQueued    JobStatus = "queued"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
)

// JobParameters overrides the optimizer defaults for one job. Nil fields
// keep the default.
type JobParameters struct {
	Seed          *int64                `json:"seed,omitempty"`
	MaxIterations *int                  `json:"maxIterations,omitempty"`
	Strategy      *louvain.GainStrategy `json:"strategy,omitempty"`
}

// JobResult summarizes a finished run
type JobResult struct {
	Modularity       float64       `json:"modularity"`
	NumCommunities   int           `json:"numCommunities"`
	State            louvain.State `json:"state"`
	Passes           int           `json:"passes"`
	Moves            int           `json:"moves"`
	ProcessingTimeMS int64         `json:"processingTimeMS"`
}

// CommunitiesResponse is the full partition of a completed job
type CommunitiesResponse struct {
	JobID       string        `json:"jobId"`
	Communities map[int64]int `json:"communities"`
	Groups      [][]int64     `json:"groups"`
	Modularity  float64       `json:"modularity"`
	State       louvain.State `json:"state"`
}
