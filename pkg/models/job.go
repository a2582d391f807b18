package models

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// JobType discriminates the CombineJob variant that owns a Job row.
type JobType string

const (
	JobTypeHarvest   JobType = "HarvestJob"
	JobTypeTransform JobType = "TransformJob"
	JobTypeMerge     JobType = "MergeJob"
	JobTypePublish   JobType = "PublishJob"
	JobTypeAnalysis  JobType = "AnalysisJob"
)

// Job statuses. "initializing" until submitted, then the remote statement
// state verbatim (waiting, running, available, error). "gone" means the
// remote statement vanished (session recycled) and is distinct from "error"
// so operators know to resubmit rather than debug.
const (
	JobStatusInitializing = "initializing"
	JobStatusWaiting      = "waiting"
	JobStatusRunning      = "running"
	JobStatusAvailable    = "available"
	JobStatusError        = "error"
	JobStatusGone         = "gone"
)

// Job is one persisted unit of harvest/transform/merge/publish/analysis work.
// OutputLocation is derived once at creation from
// (storage root, organization, record group, job type, job id) and never
// recomputed.
type Job struct {
	ID             int64           `db:"id"              json:"id"`
	RecordGroupID  int64           `db:"record_group_id" json:"record_group_id"`
	JobType        JobType         `db:"job_type"        json:"job_type"`
	Name           string          `db:"name"            json:"name"`
	SparkCode      *string         `db:"spark_code"      json:"-"`
	StatementID    *int            `db:"statement_id"    json:"statement_id,omitempty"`
	StatementURL   *string         `db:"statement_url"   json:"statement_url,omitempty"`
	Status         string          `db:"status"          json:"status"`
	Finished       bool            `db:"finished"        json:"finished"`
	OutputLocation string          `db:"output_location" json:"output_location"`
	RecordCount    int             `db:"record_count"    json:"record_count"`
	Details        json.RawMessage `db:"job_details"     json:"job_details,omitempty"`
	CreatedAt      time.Time       `db:"created_at"      json:"created_at"`
	UpdatedAt      *time.Time      `db:"updated_at"      json:"updated_at,omitempty"`
}

// OutputAsFilesystem returns OutputLocation as a local filesystem path,
// stripping the file:// scheme and any trailing slash. Jobs stored under a
// distributed-storage scheme keep their prefix and are not deletable locally.
func (j *Job) OutputAsFilesystem() string {
	return strings.TrimRight(strings.TrimPrefix(j.OutputLocation, "file://"), "/")
}

// LocalOutput reports whether the job output lives on the local filesystem.
func (j *Job) LocalOutput() bool {
	return strings.HasPrefix(j.OutputLocation, "file://")
}

// IndexName returns the deterministic search index name for this job.
func (j *Job) IndexName() string {
	return fmt.Sprintf("j%d", j.ID)
}

// JobInput is a directed lineage edge from a dependency (InputJobID) to the
// dependent job. Edges are append-only: a job's inputs are fixed at creation.
type JobInput struct {
	ID         int64 `db:"id"           json:"id"`
	JobID      int64 `db:"job_id"       json:"job_id"`
	InputJobID int64 `db:"input_job_id" json:"input_job_id"`
}

// JobPublish links a record group to the job whose output is its canonical
// published set.
type JobPublish struct {
	ID            int64 `db:"id"              json:"id"`
	RecordGroupID int64 `db:"record_group_id" json:"record_group_id"`
	JobID         int64 `db:"job_id"          json:"job_id"`
}
