package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/tulibraries/combine/internal/api/response"
	"github.com/tulibraries/combine/internal/jobs"
	"github.com/tulibraries/combine/internal/session"
	"github.com/tulibraries/combine/internal/store"
	"github.com/tulibraries/combine/pkg/models"
)

// JobRunner defines the job lifecycle operations the handlers depend on.
type JobRunner interface {
	Create(ctx context.Context, params jobs.CreateParams) (*models.Job, error)
	Start(ctx context.Context, jobID int64) (*models.Job, error)
	RefreshStatus(ctx context.Context, jobID int64) (string, error)
	GetErrors(ctx context.Context, jobID int64) ([]*models.Record, error)
}

// JobDeleter runs the cleanup protocol and removes the job row.
type JobDeleter interface {
	DeleteJob(ctx context.Context, jobID int64) error
}

// JobReader is the read side of the job surface.
type JobReader interface {
	GetJob(ctx context.Context, id int64) (*models.Job, error)
	ListJobs(ctx context.Context, recordGroupID int64) ([]*models.Job, error)
}

// JobStatusCache serves the most recently observed remote status for a job,
// written by the runner on submit and on every refresh.
type JobStatusCache interface {
	GetJobStatus(ctx context.Context, jobID int64) (string, bool, error)
}

// NewCreateJobHandler returns the handler for POST /api/v1/jobs.
func NewCreateJobHandler(runner JobRunner) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			RecordGroupID int64           `json:"record_group_id"`
			JobType       string          `json:"job_type"`
			Name          string          `json:"name"`
			InputJobIDs   []int64         `json:"input_job_ids"`
			Details       json.RawMessage `json:"details"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid JSON body", nil)
			return
		}
		if req.JobType == "" {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "job_type is required", nil)
			return
		}

		job, err := runner.Create(r.Context(), jobs.CreateParams{
			RecordGroupID: req.RecordGroupID,
			JobType:       models.JobType(req.JobType),
			Name:          req.Name,
			InputJobIDs:   req.InputJobIDs,
			Details:       req.Details,
		})
		if err != nil {
			switch {
			case errors.Is(err, jobs.ErrUnknownJobType):
				response.Error(w, http.StatusBadRequest, "UNKNOWN_JOB_TYPE",
					"job_type is not recognized", nil)
			case errors.Is(err, jobs.ErrDependencyMissing):
				response.Error(w, http.StatusUnprocessableEntity, "DEPENDENCY_MISSING",
					"Required upstream jobs are missing or of the wrong count", nil)
			case errors.Is(err, store.ErrNotFound):
				response.Error(w, http.StatusNotFound, "NOT_FOUND",
					"Record group not found", nil)
			default:
				response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR",
					"An unexpected error occurred", nil)
			}
			return
		}
		response.Created(w, job)
	}
}

// NewStartJobHandler returns the handler for POST /api/v1/jobs/{jobID}/start.
func NewStartJobHandler(runner JobRunner) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		jobID, ok := jobIDParam(w, r)
		if !ok {
			return
		}

		job, err := runner.Start(r.Context(), jobID)
		if err != nil {
			switch {
			case errors.Is(err, session.ErrNoActiveSession):
				response.Error(w, http.StatusConflict, "NO_ACTIVE_SESSION",
					"No active session; create one before starting jobs", nil)
			case errors.Is(err, jobs.ErrAlreadySubmitted):
				response.Error(w, http.StatusConflict, "ALREADY_SUBMITTED",
					"Job was already submitted", nil)
			case errors.Is(err, jobs.ErrArtifactMissing):
				response.Error(w, http.StatusUnprocessableEntity, "ARTIFACT_MISSING",
					"A transformation or harvest endpoint the job references does not exist", nil)
			case errors.Is(err, store.ErrNotFound):
				response.Error(w, http.StatusNotFound, "NOT_FOUND", "Job not found", nil)
			default:
				response.Error(w, http.StatusBadGateway, "REMOTE_SERVICE_ERROR",
					"Could not submit job to the compute session", nil)
			}
			return
		}
		response.Accepted(w, job)
	}
}

// NewGetJobHandler returns the handler for GET /api/v1/jobs/{jobID}. A truthy
// refresh query parameter reconciles the status with the remote service first.
func NewGetJobHandler(reader JobReader, runner JobRunner, statuses JobStatusCache) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		jobID, ok := jobIDParam(w, r)
		if !ok {
			return
		}

		refresh := r.URL.Query().Get("refresh") == "true"
		if refresh {
			if _, err := runner.RefreshStatus(r.Context(), jobID); err != nil {
				if errors.Is(err, store.ErrNotFound) {
					response.Error(w, http.StatusNotFound, "NOT_FOUND", "Job not found", nil)
					return
				}
				response.Error(w, http.StatusBadGateway, "REMOTE_SERVICE_ERROR",
					"Could not refresh job status", nil)
				return
			}
		}

		job, err := reader.GetJob(r.Context(), jobID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				response.Error(w, http.StatusNotFound, "NOT_FOUND", "Job not found", nil)
				return
			}
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR",
				"An unexpected error occurred", nil)
			return
		}

		// Absent an explicit refresh, overlay the last remote status the
		// runner cached: a refresh running in another request can land it
		// ahead of the row just read. Finished jobs keep their row status.
		if !refresh && !job.Finished {
			if status, ok, err := statuses.GetJobStatus(r.Context(), jobID); err == nil && ok {
				job.Status = status
			}
		}
		response.JSON(w, job)
	}
}

// NewListJobsHandler returns the handler for
// GET /api/v1/record-groups/{recordGroupID}/jobs.
func NewListJobsHandler(reader JobReader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		groupID, err := strconv.ParseInt(chi.URLParam(r, "recordGroupID"), 10, 64)
		if err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST",
				"recordGroupID must be an integer", nil)
			return
		}

		list, err := reader.ListJobs(r.Context(), groupID)
		if err != nil {
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR",
				"An unexpected error occurred", nil)
			return
		}
		response.JSON(w, list)
	}
}

// NewJobErrorsHandler returns the handler for GET /api/v1/jobs/{jobID}/errors.
func NewJobErrorsHandler(runner JobRunner) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		jobID, ok := jobIDParam(w, r)
		if !ok {
			return
		}

		records, err := runner.GetErrors(r.Context(), jobID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				response.Error(w, http.StatusNotFound, "NOT_FOUND", "Job not found", nil)
				return
			}
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR",
				"An unexpected error occurred", nil)
			return
		}
		if records == nil {
			records = []*models.Record{}
		}
		response.JSON(w, records)
	}
}

// NewDeleteJobHandler returns the handler for DELETE /api/v1/jobs/{jobID}.
// Cleanup is best-effort; only a missing job or a failed row delete errors.
func NewDeleteJobHandler(deleter JobDeleter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		jobID, ok := jobIDParam(w, r)
		if !ok {
			return
		}

		if err := deleter.DeleteJob(r.Context(), jobID); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				response.Error(w, http.StatusNotFound, "NOT_FOUND", "Job not found", nil)
				return
			}
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR",
				"Could not delete job", nil)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func jobIDParam(w http.ResponseWriter, r *http.Request) (int64, bool) {
	jobID, err := strconv.ParseInt(chi.URLParam(r, "jobID"), 10, 64)
	if err != nil {
		response.Error(w, http.StatusBadRequest, "INVALID_REQUEST",
			"jobID must be an integer", nil)
		return 0, false
	}
	return jobID, true
}
