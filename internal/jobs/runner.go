package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/tulibraries/combine/internal/cache"
	"github.com/tulibraries/combine/internal/config"
	"github.com/tulibraries/combine/internal/livy"
	"github.com/tulibraries/combine/internal/store"
	"github.com/tulibraries/combine/pkg/models"
)

// ErrAlreadySubmitted means Start was called on a job that already holds a
// remote statement handle.
var ErrAlreadySubmitted = errors.New("job already submitted")

// ErrArtifactMissing means a transformation or harvest endpoint the job
// references does not exist, distinct from the job itself being missing.
var ErrArtifactMissing = errors.New("referenced artifact not found")

// statusCacheTTL bounds how long a cached job status may serve reads.
const statusCacheTTL = 30 * time.Minute

// SessionSource yields the single active compute session.
type SessionSource interface {
	GetActive(ctx context.Context) (*models.LivySession, error)
}

// CreateParams holds validated parameters for creating a job.
type CreateParams struct {
	RecordGroupID int64
	JobType       models.JobType
	Name          string
	InputJobIDs   []int64
	Details       json.RawMessage
}

// Runner creates jobs, submits them to the active compute session, and
// reconciles their status with the remote service.
type Runner struct {
	store    store.Store
	registry *Registry
	sessions SessionSource
	client   livy.Client
	cache    cache.Cache
	storage  config.StorageConfig
	analysis config.AnalysisConfig
	logger   *slog.Logger
}

// NewRunner creates a job Runner.
func NewRunner(st store.Store, registry *Registry, sessions SessionSource, client livy.Client, ca cache.Cache, storage config.StorageConfig, analysis config.AnalysisConfig, logger *slog.Logger) *Runner {
	return &Runner{
		store:    st,
		registry: registry,
		sessions: sessions,
		client:   client,
		cache:    ca,
		storage:  storage,
		analysis: analysis,
		logger:   logger,
	}
}

// Create validates dependencies and persists a job with its lineage edges in
// one transaction. Nothing is persisted when validation fails. The job is not
// submitted; callers follow up with Start.
func (r *Runner) Create(ctx context.Context, params CreateParams) (*models.Job, error) {
	builder, err := r.registry.Builder(params.JobType)
	if err != nil {
		return nil, err
	}
	if err := builder.ValidateInputs(params.InputJobIDs); err != nil {
		return nil, err
	}

	for _, inputID := range params.InputJobIDs {
		if _, err := r.store.GetJob(ctx, inputID); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return nil, fmt.Errorf("%w: job %d", ErrDependencyMissing, inputID)
			}
			return nil, fmt.Errorf("checking upstream job %d: %w", inputID, err)
		}
	}

	group, err := r.recordGroup(ctx, params)
	if err != nil {
		return nil, err
	}

	name := params.Name
	if name == "" {
		name = fmt.Sprintf("%s @ %s", params.JobType, time.Now().UTC().Format(time.RFC3339))
	}

	job := &models.Job{
		RecordGroupID: group.ID,
		JobType:       params.JobType,
		Name:          name,
		Status:        models.JobStatusInitializing,
		Details:       params.Details,
	}
	err = r.store.CreateJobWithInputs(ctx, job, params.InputJobIDs, builder.PublishesOutput(), func(jobID int64) string {
		return OutputLocation(r.storage.Root, group.OrganizationID, group.ID, params.JobType, jobID)
	})
	if err != nil {
		return nil, fmt.Errorf("creating job: %w", err)
	}

	r.logger.Info("created job",
		"job_id", job.ID, "job_type", job.JobType, "record_group_id", job.RecordGroupID)
	return job, nil
}

// recordGroup resolves the owning record group. Analysis jobs always attach
// to the reserved analysis hierarchy regardless of what the caller passed.
func (r *Runner) recordGroup(ctx context.Context, params CreateParams) (*models.RecordGroup, error) {
	if params.JobType == models.JobTypeAnalysis {
		group, err := r.store.GetRecordGroupByName(ctx, r.analysis.RecordGroupName)
		if err != nil {
			return nil, fmt.Errorf("resolving analysis record group: %w", err)
		}
		return group, nil
	}

	group, err := r.store.GetRecordGroup(ctx, params.RecordGroupID)
	if err != nil {
		return nil, fmt.Errorf("resolving record group %d: %w", params.RecordGroupID, err)
	}
	return group, nil
}

// Start renders the job's statement code and submits it to the active
// session. With no usable session the job stays initializing: not submitted,
// not retried, surfaced to the caller.
func (r *Runner) Start(ctx context.Context, jobID int64) (*models.Job, error) {
	job, err := r.store.GetJob(ctx, jobID)
	if err != nil {
		return nil, fmt.Errorf("loading job %d: %w", jobID, err)
	}
	if job.StatementID != nil {
		return nil, fmt.Errorf("%w: job %d has statement %d", ErrAlreadySubmitted, jobID, *job.StatementID)
	}

	sess, err := r.sessions.GetActive(ctx)
	if err != nil {
		return nil, err
	}

	builder, err := r.registry.Builder(job.JobType)
	if err != nil {
		return nil, err
	}

	inputs, err := r.store.InputJobs(ctx, job.ID)
	if err != nil {
		return nil, fmt.Errorf("loading upstream jobs: %w", err)
	}

	code, err := builder.Code(ctx, job, inputs)
	if err != nil {
		// The job row exists at this point, so a not-found from the builder
		// is a missing artifact, not a missing job.
		if errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrArtifactMissing, err)
		}
		return nil, err
	}

	handle, err := r.client.SubmitStatement(ctx, sess.SessionID, code)
	if err != nil {
		return nil, fmt.Errorf("submitting statement: %w", err)
	}

	if err := r.store.SetJobSubmission(ctx, job.ID, code, handle.ID, handle.URL, handle.State); err != nil {
		return nil, fmt.Errorf("recording submission: %w", err)
	}
	_ = r.cache.SetJobStatus(ctx, job.ID, handle.State, statusCacheTTL)

	job.SparkCode = &code
	job.StatementID = &handle.ID
	job.StatementURL = &handle.URL
	job.Status = handle.State

	r.logger.Info("submitted job",
		"job_id", job.ID, "job_type", job.JobType,
		"session_id", sess.SessionID, "statement_id", handle.ID)
	return job, nil
}

// RefreshStatus reconciles the job row with the remote statement state. A
// vanished statement (the session was recycled) marks the job gone, distinct
// from error, so operators know to resubmit rather than debug. A job that was
// never submitted keeps its current status.
func (r *Runner) RefreshStatus(ctx context.Context, jobID int64) (string, error) {
	job, err := r.store.GetJob(ctx, jobID)
	if err != nil {
		return "", fmt.Errorf("loading job %d: %w", jobID, err)
	}
	if job.StatementURL == nil {
		return job.Status, nil
	}

	state, err := r.client.StatementStatus(ctx, *job.StatementURL)
	if errors.Is(err, livy.ErrNotFound) {
		if err := r.store.UpdateJobStatus(ctx, job.ID, models.JobStatusGone, job.Finished); err != nil {
			return "", fmt.Errorf("marking job gone: %w", err)
		}
		_ = r.cache.SetJobStatus(ctx, job.ID, models.JobStatusGone, statusCacheTTL)
		r.logger.Info("job statement gone", "job_id", job.ID)
		return models.JobStatusGone, nil
	}
	if err != nil {
		return "", fmt.Errorf("fetching statement status: %w", err)
	}

	finished := state == models.JobStatusAvailable
	if err := r.store.UpdateJobStatus(ctx, job.ID, state, finished); err != nil {
		return "", fmt.Errorf("updating job status: %w", err)
	}
	if finished && !job.Finished {
		if err := r.store.UpdateJobRecordCount(ctx, job.ID); err != nil {
			r.logger.Warn("failed to update job record count", "job_id", job.ID, "error", err)
		}
	}
	_ = r.cache.SetJobStatus(ctx, job.ID, state, statusCacheTTL)
	return state, nil
}

// GetErrors returns the job's failed records per its variant's definition of
// failure. Harvest jobs always return nil.
func (r *Runner) GetErrors(ctx context.Context, jobID int64) ([]*models.Record, error) {
	job, err := r.store.GetJob(ctx, jobID)
	if err != nil {
		return nil, fmt.Errorf("loading job %d: %w", jobID, err)
	}

	builder, err := r.registry.Builder(job.JobType)
	if err != nil {
		return nil, err
	}
	return builder.Errors(ctx, job)
}
