// Package jobs implements the polymorphic job builders (harvest, transform,
// merge, publish, analysis) and the runner that submits them to the active
// compute session.
package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/tulibraries/combine/internal/store"
	"github.com/tulibraries/combine/pkg/models"
)

// Sentinel errors for job construction and dispatch.
var (
	// ErrDependencyMissing means a job type's required upstream jobs are
	// absent or of the wrong count. Rejected before any row is persisted.
	ErrDependencyMissing = errors.New("required upstream job missing")
	// ErrUnknownJobType means the persisted job_type has no registered builder.
	ErrUnknownJobType = errors.New("unknown job type")
)

// DefaultIndexMapper is the index-mapper identifier used when a job does not
// name one.
const DefaultIndexMapper = "GenericMapper"

// HarvestDetails is the job_details payload for Harvest jobs.
type HarvestDetails struct {
	OAIEndpointID int64             `json:"oai_endpoint_id"`
	Overrides     map[string]string `json:"overrides,omitempty"`
	IndexMapper   string            `json:"index_mapper,omitempty"`
}

// TransformDetails is the job_details payload for Transform jobs.
type TransformDetails struct {
	TransformationID int64  `json:"transformation_id"`
	IndexMapper      string `json:"index_mapper,omitempty"`
}

// MergeDetails is the job_details payload for Merge and Analysis jobs.
type MergeDetails struct {
	IndexMapper string `json:"index_mapper,omitempty"`
}

// PublishDetails is the job_details payload for Publish jobs.
type PublishDetails struct {
	IndexMapper string `json:"index_mapper,omitempty"`
}

// Builder is the per-job-type behavior: dependency arity, the rendered remote
// execution payload, and what "error" means for the variant. Parameters are
// always rendered into the payload by value (ids and URI strings), never by
// reference, since the remote session is a separate process.
type Builder interface {
	Type() models.JobType
	// ValidateInputs checks upstream arity. Called before any persistence.
	ValidateInputs(inputJobIDs []int64) error
	// Code renders the statement code submitted to the compute session.
	Code(ctx context.Context, job *models.Job, inputs []*models.Job) (string, error)
	// Errors returns the records this variant considers failed.
	Errors(ctx context.Context, job *models.Job) ([]*models.Record, error)
	// PublishesOutput reports whether creation also writes a publish edge.
	PublishesOutput() bool
}

// Registry maps the persisted job_type discriminator to its builder.
type Registry struct {
	builders map[models.JobType]Builder
}

// NewRegistry constructs the registry with one builder per job type.
func NewRegistry(st store.Store) *Registry {
	r := &Registry{builders: make(map[models.JobType]Builder)}
	for _, b := range []Builder{
		&HarvestBuilder{store: st},
		&TransformBuilder{store: st},
		&MergeBuilder{store: st},
		&PublishBuilder{store: st},
		&AnalysisBuilder{store: st},
	} {
		r.builders[b.Type()] = b
	}
	return r
}

// Builder returns the builder registered for a job type.
func (r *Registry) Builder(jobType models.JobType) (Builder, error) {
	b, ok := r.builders[jobType]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownJobType, jobType)
	}
	return b, nil
}

// OutputLocation derives a job's output URI. Computed once at creation from
// values fixed for the job's lifetime, never recomputed.
func OutputLocation(storageRoot string, orgID, recordGroupID int64, jobType models.JobType, jobID int64) string {
	return fmt.Sprintf("%s/organizations/%d/record_group/%d/jobs/%s/%d",
		strings.TrimRight(storageRoot, "/"), orgID, recordGroupID, jobType, jobID)
}

// IndexingResultsLocation derives the URI of a job's indexing-results
// directory, kept beside (not under) the job output.
func IndexingResultsLocation(storageRoot string, orgID, recordGroupID, jobID int64) string {
	return fmt.Sprintf("%s/organizations/%d/record_group/%d/jobs/indexing/%d",
		strings.TrimRight(storageRoot, "/"), orgID, recordGroupID, jobID)
}

// indexMapperOrDefault returns mapper or the process default.
func indexMapperOrDefault(mapper string) string {
	if mapper == "" {
		return DefaultIndexMapper
	}
	return mapper
}

// recordErrors is the shared Errors implementation for variants that surface
// records with a non-empty error field.
func recordErrors(ctx context.Context, st store.Store, job *models.Job) ([]*models.Record, error) {
	records, err := st.ListRecords(ctx, job.ID, true)
	if err != nil {
		return nil, fmt.Errorf("listing error records: %w", err)
	}
	return records, nil
}

// outputList renders upstream output locations as the list literal the remote
// entry point expects.
func outputList(inputs []*models.Job) string {
	locs := make([]string, 0, len(inputs))
	for _, in := range inputs {
		locs = append(locs, "'"+in.OutputLocation+"'")
	}
	return "[" + strings.Join(locs, ", ") + "]"
}

func decodeDetails(job *models.Job, v any) error {
	if len(job.Details) == 0 {
		return nil
	}
	if err := json.Unmarshal(job.Details, v); err != nil {
		return fmt.Errorf("decoding job %d details: %w", job.ID, err)
	}
	return nil
}
