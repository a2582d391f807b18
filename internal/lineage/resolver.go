// Package lineage walks the job graph to recover the ordered chain of one
// logical record's representations across every job it passed through.
package lineage

import (
	"context"
	"errors"
	"fmt"

	"github.com/tulibraries/combine/internal/store"
	"github.com/tulibraries/combine/pkg/models"
)

// Graph is the slice of persistence the resolver walks: lineage edges plus
// per-job record lookup.
type Graph interface {
	InputJobs(ctx context.Context, jobID int64) ([]*models.Job, error)
	OutputJobs(ctx context.Context, jobID int64) ([]*models.Job, error)
	GetRecordByJobAndRecordID(ctx context.Context, jobID int64, recordID string) (*models.Record, error)
}

// Options controls the shape of a lineage walk.
type Options struct {
	// IncludeDownstream also walks forward through dependent jobs.
	IncludeDownstream bool
	// InputRecordOnly returns only the single nearest upstream match, without
	// recursing further and without the record itself or its descendants.
	InputRecordOnly bool
}

// Resolver resolves record lineage over the job graph.
type Resolver struct {
	graph Graph
}

// NewResolver creates a lineage Resolver.
func NewResolver(graph Graph) *Resolver {
	return &Resolver{graph: graph}
}

// Resolve returns the record's chain of representations ordered
// oldest-ancestor-first, then the record itself, then descendants in
// traversal order. A record absent from some upstream job terminates that
// branch silently: the record did not exist at that stage, which is not an
// error. The graph is acyclic by construction (edges only ever point to jobs
// that predate their dependent), so the walk needs no cycle guard.
func (r *Resolver) Resolve(ctx context.Context, record *models.Record, opts Options) ([]*models.Record, error) {
	if opts.InputRecordOnly {
		return r.nearestUpstream(ctx, record)
	}

	chain := make([]*models.Record, 0, 4)
	if err := r.walkUpstream(ctx, record, &chain); err != nil {
		return nil, err
	}
	chain = append(chain, record)
	if opts.IncludeDownstream {
		if err := r.walkDownstream(ctx, record, &chain); err != nil {
			return nil, err
		}
	}
	return chain, nil
}

// nearestUpstream returns at most one record: the first upstream match across
// the record's input jobs.
func (r *Resolver) nearestUpstream(ctx context.Context, record *models.Record) ([]*models.Record, error) {
	inputs, err := r.graph.InputJobs(ctx, record.JobID)
	if err != nil {
		return nil, fmt.Errorf("loading input jobs of job %d: %w", record.JobID, err)
	}

	for _, job := range inputs {
		match, err := r.graph.GetRecordByJobAndRecordID(ctx, job.ID, record.RecordID)
		if errors.Is(err, store.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("looking up record %q in job %d: %w", record.RecordID, job.ID, err)
		}
		return []*models.Record{match}, nil
	}
	return nil, nil
}

// walkUpstream recurses through input jobs, appending each found ancestor
// after its own ancestors so the oldest lands first.
func (r *Resolver) walkUpstream(ctx context.Context, record *models.Record, chain *[]*models.Record) error {
	inputs, err := r.graph.InputJobs(ctx, record.JobID)
	if err != nil {
		return fmt.Errorf("loading input jobs of job %d: %w", record.JobID, err)
	}

	for _, job := range inputs {
		match, err := r.graph.GetRecordByJobAndRecordID(ctx, job.ID, record.RecordID)
		if errors.Is(err, store.ErrNotFound) {
			continue
		}
		if err != nil {
			return fmt.Errorf("looking up record %q in job %d: %w", record.RecordID, job.ID, err)
		}
		if err := r.walkUpstream(ctx, match, chain); err != nil {
			return err
		}
		*chain = append(*chain, match)
	}
	return nil
}

// walkDownstream recurses through dependent jobs, appending each found
// descendant before its own descendants.
func (r *Resolver) walkDownstream(ctx context.Context, record *models.Record, chain *[]*models.Record) error {
	outputs, err := r.graph.OutputJobs(ctx, record.JobID)
	if err != nil {
		return fmt.Errorf("loading output jobs of job %d: %w", record.JobID, err)
	}

	for _, job := range outputs {
		match, err := r.graph.GetRecordByJobAndRecordID(ctx, job.ID, record.RecordID)
		if errors.Is(err, store.ErrNotFound) {
			continue
		}
		if err != nil {
			return fmt.Errorf("looking up record %q in job %d: %w", record.RecordID, job.ID, err)
		}
		*chain = append(*chain, match)
		if err := r.walkDownstream(ctx, match, chain); err != nil {
			return err
		}
	}
	return nil
}
