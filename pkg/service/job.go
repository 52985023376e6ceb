package service

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/gilchrisn/community-detection/pkg/graph"
	"github.com/gilchrisn/community-detection/pkg/louvain"
	"github.com/gilchrisn/community-detection/pkg/parser"
)

var (
	// ErrJobNotFound is returned for unknown or removed job ids.
	ErrJobNotFound = errors.New("job not found")
	// ErrJobNotFinished is returned when a result is requested before the job completed.
	ErrJobNotFinished = errors.New("job not finished")
	// ErrServiceClosed is returned by Submit after Close.
	ErrServiceClosed = errors.New("job service closed")
)

// Options configures a JobService
type Options struct {
	MaxWorkers      int
	JobTTL          time.Duration
	CleanupInterval time.Duration
	// AlgorithmLogLevel is the zerolog level of per-job optimizer logs.
	AlgorithmLogLevel string
	// LogOutput receives per-job optimizer logs. Nil means os.Stderr.
	LogOutput io.Writer
}

// DefaultOptions returns the service defaults
func DefaultOptions() Options {
	return Options{
		MaxWorkers:        4,
		JobTTL:            time.Hour,
		CleanupInterval:   5 * time.Minute,
		AlgorithmLogLevel: "warn",
	}
}

// JobService runs detection jobs in the background on a bounded worker pool.
// Each job owns its graph and optimizer.
type JobService struct {
	jobs    map[string]*Job
	results map[string]*louvain.Result
	workers chan struct{}
	mutex   sync.RWMutex
	options Options

	stop     chan struct{}
	stopOnce sync.Once
	closed   bool
	wg       sync.WaitGroup
}

// NewJobService creates a new job service and starts its cleanup loop
func NewJobService(options Options) *JobService {
	if options.MaxWorkers <= 0 {
		options.MaxWorkers = 1
	}
	if options.LogOutput == nil {
		options.LogOutput = os.Stderr
	}

	service := &JobService{
		jobs:    make(map[string]*Job),
		results: make(map[string]*louvain.Result),
		workers: make(chan struct{}, options.MaxWorkers),
		options: options,
		stop:    make(chan struct{}),
	}

	if options.CleanupInterval > 0 {
		go service.cleanupLoop()
	}

	return service
}

// Submit parses the edge list and queues a job for it. Malformed input is
// rejected here so that the caller gets the error synchronously.
func (s *JobService) Submit(edgeList []byte, params JobParameters) (Job, error) {
	if params.MaxIterations != nil && *params.MaxIterations < 0 {
		return Job{}, fmt.Errorf("invalid parameters: max_iterations must be non-negative")
	}
	if params.Strategy != nil && *params.Strategy != louvain.GainIncremental && *params.Strategy != louvain.GainRecompute {
		return Job{}, fmt.Errorf("invalid parameters: unknown strategy %q", *params.Strategy)
	}

	g, stats, err := parser.ParseEdgeList(bytes.NewReader(edgeList))
	if err != nil {
		return Job{}, fmt.Errorf("invalid edge list: %w", err)
	}

	now := time.Now()
	job := &Job{
		ID:         uuid.New().String(),
		Parameters: params,
		Status:     JobStatusQueued,
		Input:      stats,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	s.mutex.Lock()
	if s.closed {
		s.mutex.Unlock()
		return Job{}, ErrServiceClosed
	}
	s.jobs[job.ID] = job
	snapshot := *job
	s.wg.Add(1)
	s.mutex.Unlock()

	log.Info().
		Str("job_id", job.ID).
		Int("nodes", g.NumNodes()).
		Int("edges", g.NumEdges()).
		Int("skipped_lines", stats.Skipped).
		Msg("Job submitted")

	go s.processJob(job.ID, g)

	return snapshot, nil
}

// Get returns a snapshot of a job
func (s *JobService) Get(jobID string) (Job, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	job, exists := s.jobs[jobID]
	if !exists {
		return Job{}, fmt.Errorf("%w: %s", ErrJobNotFound, jobID)
	}
	return *job, nil
}

// GetResult returns the full result of a completed job
func (s *JobService) GetResult(jobID string) (*louvain.Result, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	job, exists := s.jobs[jobID]
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrJobNotFound, jobID)
	}
	result, exists := s.results[jobID]
	if !exists {
		return nil, fmt.Errorf("%w: %s is %s", ErrJobNotFinished, jobID, job.Status)
	}
	return result, nil
}

// List returns snapshots of all jobs
func (s *JobService) List() []Job {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	jobs := make([]Job, 0, len(s.jobs))
	for _, job := range s.jobs {
		jobs = append(jobs, *job)
	}
	return jobs
}

// Delete removes a job and its result. A running job finishes in the
// background and its result is discarded.
func (s *JobService) Delete(jobID string) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if _, exists := s.jobs[jobID]; !exists {
		return fmt.Errorf("%w: %s", ErrJobNotFound, jobID)
	}
	delete(s.jobs, jobID)
	delete(s.results, jobID)

	log.Info().Str("job_id", jobID).Msg("Job deleted")
	return nil
}

// Close rejects further submissions, stops the cleanup loop and waits for
// running jobs.
func (s *JobService) Close() {
	s.mutex.Lock()
	s.closed = true
	s.mutex.Unlock()

	s.stopOnce.Do(func() { close(s.stop) })
	s.wg.Wait()
}

// processJob runs one job once a worker slot is free
func (s *JobService) processJob(jobID string, g *graph.Graph) {
	defer s.wg.Done()

	// Acquire worker slot
	s.workers <- struct{}{}
	defer func() { <-s.workers }()

	startTime := time.Now()
	params, ok := s.markRunning(jobID, startTime)
	if !ok {
		log.Debug().Str("job_id", jobID).Msg("Job removed before processing")
		return
	}

	config := s.configFor(params)
	result, err := louvain.Run(g, config)
	if err != nil {
		s.failJob(jobID, fmt.Errorf("algorithm execution failed: %w", err))
		return
	}

	s.completeJob(jobID, result)
}

func (s *JobService) configFor(params JobParameters) *louvain.Config {
	config := louvain.NewConfig()
	config.SetLogOutput(s.options.LogOutput)
	config.Set("logging.level", s.options.AlgorithmLogLevel)
	if params.Seed != nil {
		config.Set("algorithm.random_seed", *params.Seed)
	}
	if params.MaxIterations != nil {
		config.Set("algorithm.max_iterations", *params.MaxIterations)
	}
	if params.Strategy != nil {
		config.Set("algorithm.gain_strategy", string(*params.Strategy))
	}
	return config
}

func (s *JobService) markRunning(jobID string, startTime time.Time) (JobParameters, bool) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	job, exists := s.jobs[jobID]
	if !exists {
		return JobParameters{}, false
	}
	job.Status = JobStatusRunning
	job.StartedAt = &startTime
	job.UpdatedAt = startTime

	log.Debug().Str("job_id", jobID).Msg("Job processing started")
	return job.Parameters, true
}

// completeJob marks a job as completed with results
func (s *JobService) completeJob(jobID string, result *louvain.Result) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	job, exists := s.jobs[jobID]
	if !exists {
		return
	}

	now := time.Now()
	job.Status = JobStatusCompleted
	job.CompletedAt = &now
	job.UpdatedAt = now
	job.Result = &JobResult{
		Modularity:       result.Modularity,
		NumCommunities:   result.NumCommunities,
		State:            result.State,
		Passes:           result.Statistics.Passes,
		Moves:            result.Statistics.Moves,
		ProcessingTimeMS: result.Statistics.RuntimeMS,
	}
	s.results[jobID] = result

	log.Info().
		Str("job_id", jobID).
		Float64("modularity", result.Modularity).
		Int("communities", result.NumCommunities).
		Str("state", result.State.String()).
		Int64("processing_time_ms", result.Statistics.RuntimeMS).
		Msg("Job completed successfully")
}

// failJob marks a job as failed
func (s *JobService) failJob(jobID string, err error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	job, exists := s.jobs[jobID]
	if !exists {
		return
	}

	now := time.Now()
	job.Status = JobStatusFailed
	job.Error = err.Error()
	job.CompletedAt = &now
	job.UpdatedAt = now

	log.Error().Str("job_id", jobID).Err(err).Msg("Job failed")
}

// cleanupLoop periodically removes expired jobs
func (s *JobService) cleanupLoop() {
	ticker := time.NewTicker(s.options.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.cleanup(time.Now())
		case <-s.stop:
			return
		}
	}
}

// cleanup removes finished jobs not updated within the TTL
func (s *JobService) cleanup(now time.Time) int {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	cutoff := now.Add(-s.options.JobTTL)
	cleaned := 0
	for jobID, job := range s.jobs {
		finished := job.Status == JobStatusCompleted || job.Status == JobStatusFailed
		if finished && job.UpdatedAt.Before(cutoff) {
			delete(s.jobs, jobID)
			delete(s.results, jobID)
			cleaned++
		}
	}

	if cleaned > 0 {
		log.Info().Int("cleaned_jobs", cleaned).Msg("Job cleanup completed")
	}
	return cleaned
}
