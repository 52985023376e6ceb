package api

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"

	"github.com/gilchrisn/community-detection/pkg/louvain"
	"github.com/gilchrisn/community-detection/pkg/service"
	"github.com/gilchrisn/community-detection/pkg/utils"
)

// Version is reported by the health check
const Version = "1.0.0"

// Handlers contains HTTP request handlers
type Handlers struct {
	jobService   *service.JobService
	maxBodyBytes int64
}

// NewHandlers creates new API handlers. Request bodies larger than
// maxBodyBytes are rejected; zero disables the limit.
func NewHandlers(jobService *service.JobService, maxBodyBytes int64) *Handlers {
	return &Handlers{
		jobService:   jobService,
		maxBodyBytes: maxBodyBytes,
	}
}

// SubmitJob queues a detection job for the edge list in the request body.
// Query parameters seed, max_iterations and strategy override the defaults.
func (h *Handlers) SubmitJob(w http.ResponseWriter, r *http.Request) {
	params, validationErrors := parseJobParameters(r)
	if len(validationErrors) > 0 {
		utils.WriteValidationErrorResponse(w, "Invalid job parameters", validationErrors)
		return
	}

	body := r.Body
	if h.maxBodyBytes > 0 {
		body = http.MaxBytesReader(w, r.Body, h.maxBodyBytes)
	}
	edgeList, err := io.ReadAll(body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			utils.WriteErrorResponse(w, http.StatusRequestEntityTooLarge, "Edge list too large", err)
			return
		}
		utils.WriteErrorResponse(w, http.StatusBadRequest, "Failed to read request body", err)
		return
	}

	job, err := h.jobService.Submit(edgeList, params)
	if err != nil {
		if errors.Is(err, service.ErrServiceClosed) {
			utils.WriteErrorResponse(w, http.StatusServiceUnavailable, "Service is shutting down", err)
			return
		}
		log.Error().Err(err).Msg("Failed to submit job")
		utils.WriteErrorResponse(w, http.StatusBadRequest, "Failed to submit job", err)
		return
	}

	utils.WriteSuccessResponseWithStatus(w, http.StatusAccepted, "Job submitted", job)
}

func parseJobParameters(r *http.Request) (service.JobParameters, map[string]string) {
	var params service.JobParameters
	validationErrors := make(map[string]string)
	query := r.URL.Query()

	if value := query.Get("seed"); value != "" {
		seed, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			validationErrors["seed"] = "must be an integer"
		} else {
			params.Seed = &seed
		}
	}

	if value := query.Get("max_iterations"); value != "" {
		maxIterations, err := strconv.Atoi(value)
		if err != nil || maxIterations < 0 {
			validationErrors["max_iterations"] = "must be a non-negative integer"
		} else {
			params.MaxIterations = &maxIterations
		}
	}

	if value := query.Get("strategy"); value != "" {
		strategy := louvain.GainStrategy(value)
		if strategy != louvain.GainIncremental && strategy != louvain.GainRecompute {
			validationErrors["strategy"] = "must be 'incremental' or 'recompute'"
		} else {
			params.Strategy = &strategy
		}
	}

	return params, validationErrors
}

// ListJobs lists all jobs
func (h *Handlers) ListJobs(w http.ResponseWriter, r *http.Request) {
	utils.WriteSuccessResponse(w, "Jobs retrieved successfully", h.jobService.List())
}

// GetJob retrieves a job's status
func (h *Handlers) GetJob(w http.ResponseWriter, r *http.Request) {
	jobID := mux.Vars(r)["jobId"]

	job, err := h.jobService.Get(jobID)
	if err != nil {
		utils.WriteErrorResponse(w, http.StatusNotFound, "Job not found", err)
		return
	}

	utils.WriteSuccessResponse(w, "Job retrieved successfully", job)
}

// GetJobResult returns the normalized communities of a completed job
func (h *Handlers) GetJobResult(w http.ResponseWriter, r *http.Request) {
	jobID := mux.Vars(r)["jobId"]

	result, err := h.jobService.GetResult(jobID)
	switch {
	case errors.Is(err, service.ErrJobNotFound):
		utils.WriteErrorResponse(w, http.StatusNotFound, "Job not found", err)
		return
	case errors.Is(err, service.ErrJobNotFinished):
		utils.WriteErrorResponse(w, http.StatusConflict, "Job has no result yet", err)
		return
	case err != nil:
		utils.WriteErrorResponse(w, http.StatusInternalServerError, "Failed to get result", err)
		return
	}

	utils.WriteSuccessResponse(w, "Result retrieved successfully", service.CommunitiesResponse{
		JobID:       jobID,
		Communities: result.Communities,
		Groups:      result.Groups(),
		Modularity:  result.Modularity,
		State:       result.State,
	})
}

// DeleteJob removes a job and its result
func (h *Handlers) DeleteJob(w http.ResponseWriter, r *http.Request) {
	jobID := mux.Vars(r)["jobId"]

	if err := h.jobService.Delete(jobID); err != nil {
		utils.WriteErrorResponse(w, http.StatusNotFound, "Job not found", err)
		return
	}

	utils.WriteSuccessResponse(w, "Job deleted successfully", nil)
}

// HealthCheck returns server health status
func (h *Handlers) HealthCheck(w http.ResponseWriter, r *http.Request) {
	health := map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().Format(time.RFC3339),
		"version":   Version,
	}
	utils.WriteSuccessResponse(w, "Service is healthy", health)
}
