package lineage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tulibraries/combine/internal/store"
	"github.com/tulibraries/combine/pkg/models"
)

// fakeGraph is an in-memory job graph: edges keyed by job ID, records keyed by
// (job ID, record ID).
type fakeGraph struct {
	inputs  map[int64][]*models.Job
	outputs map[int64][]*models.Job
	records map[int64]map[string]*models.Record
}

func (g *fakeGraph) InputJobs(_ context.Context, jobID int64) ([]*models.Job, error) {
	return g.inputs[jobID], nil
}

func (g *fakeGraph) OutputJobs(_ context.Context, jobID int64) ([]*models.Job, error) {
	return g.outputs[jobID], nil
}

func (g *fakeGraph) GetRecordByJobAndRecordID(_ context.Context, jobID int64, recordID string) (*models.Record, error) {
	if rec, ok := g.records[jobID][recordID]; ok {
		return rec, nil
	}
	return nil, store.ErrNotFound
}

// harvestTransformGraph models a two-stage pipeline: harvest job 1 feeds
// transform job 2, and record r1 exists in both.
func harvestTransformGraph() (*fakeGraph, *models.Record, *models.Record) {
	harvested := &models.Record{ID: 10, JobID: 1, RecordID: "r1"}
	transformed := &models.Record{ID: 20, JobID: 2, RecordID: "r1"}
	g := &fakeGraph{
		inputs: map[int64][]*models.Job{
			2: {{ID: 1, JobType: models.JobTypeHarvest}},
		},
		outputs: map[int64][]*models.Job{
			1: {{ID: 2, JobType: models.JobTypeTransform}},
		},
		records: map[int64]map[string]*models.Record{
			1: {"r1": harvested},
			2: {"r1": transformed},
		},
	}
	return g, harvested, transformed
}

func TestResolve_UpstreamChainOldestFirst(t *testing.T) {
	g, harvested, transformed := harvestTransformGraph()
	r := NewResolver(g)

	chain, err := r.Resolve(context.Background(), transformed, Options{})
	require.NoError(t, err)

	require.Len(t, chain, 2)
	assert.Same(t, harvested, chain[0])
	assert.Same(t, transformed, chain[1])
}

func TestResolve_Downstream(t *testing.T) {
	g, harvested, transformed := harvestTransformGraph()
	r := NewResolver(g)

	chain, err := r.Resolve(context.Background(), harvested, Options{IncludeDownstream: true})
	require.NoError(t, err)

	require.Len(t, chain, 2)
	assert.Same(t, harvested, chain[0])
	assert.Same(t, transformed, chain[1])
}

func TestResolve_ThreeStageChain(t *testing.T) {
	// harvest 1 -> transform 2 -> publish 3, r1 present at every stage
	r1h := &models.Record{ID: 10, JobID: 1, RecordID: "r1"}
	r1t := &models.Record{ID: 20, JobID: 2, RecordID: "r1"}
	r1p := &models.Record{ID: 30, JobID: 3, RecordID: "r1"}
	g := &fakeGraph{
		inputs: map[int64][]*models.Job{
			2: {{ID: 1}},
			3: {{ID: 2}},
		},
		outputs: map[int64][]*models.Job{
			1: {{ID: 2}},
			2: {{ID: 3}},
		},
		records: map[int64]map[string]*models.Record{
			1: {"r1": r1h},
			2: {"r1": r1t},
			3: {"r1": r1p},
		},
	}
	r := NewResolver(g)

	chain, err := r.Resolve(context.Background(), r1t, Options{IncludeDownstream: true})
	require.NoError(t, err)

	require.Len(t, chain, 3)
	assert.Same(t, r1h, chain[0])
	assert.Same(t, r1t, chain[1])
	assert.Same(t, r1p, chain[2])
}

func TestResolve_RecordAbsentUpstreamTerminatesBranch(t *testing.T) {
	// r2 only appears in the transform job; the harvest never produced it.
	r2t := &models.Record{ID: 21, JobID: 2, RecordID: "r2"}
	g := &fakeGraph{
		inputs: map[int64][]*models.Job{
			2: {{ID: 1}},
		},
		records: map[int64]map[string]*models.Record{
			2: {"r2": r2t},
		},
	}
	r := NewResolver(g)

	chain, err := r.Resolve(context.Background(), r2t, Options{})
	require.NoError(t, err)

	require.Len(t, chain, 1)
	assert.Same(t, r2t, chain[0])
}

func TestResolve_MergeCollectsAllUpstreamBranches(t *testing.T) {
	// harvests 1 and 2 both feed merge 3; r1 exists in both harvests.
	r1a := &models.Record{ID: 10, JobID: 1, RecordID: "r1"}
	r1b := &models.Record{ID: 11, JobID: 2, RecordID: "r1"}
	r1m := &models.Record{ID: 30, JobID: 3, RecordID: "r1"}
	g := &fakeGraph{
		inputs: map[int64][]*models.Job{
			3: {{ID: 1}, {ID: 2}},
		},
		records: map[int64]map[string]*models.Record{
			1: {"r1": r1a},
			2: {"r1": r1b},
			3: {"r1": r1m},
		},
	}
	r := NewResolver(g)

	chain, err := r.Resolve(context.Background(), r1m, Options{})
	require.NoError(t, err)

	require.Len(t, chain, 3)
	assert.Same(t, r1a, chain[0])
	assert.Same(t, r1b, chain[1])
	assert.Same(t, r1m, chain[2])
}

func TestResolve_InputRecordOnly(t *testing.T) {
	g, harvested, transformed := harvestTransformGraph()
	r := NewResolver(g)

	chain, err := r.Resolve(context.Background(), transformed, Options{InputRecordOnly: true})
	require.NoError(t, err)

	require.Len(t, chain, 1)
	assert.Same(t, harvested, chain[0])
}

func TestResolve_InputRecordOnlyOnRootRecord(t *testing.T) {
	g, harvested, _ := harvestTransformGraph()
	r := NewResolver(g)

	chain, err := r.Resolve(context.Background(), harvested, Options{InputRecordOnly: true})
	require.NoError(t, err)
	assert.Empty(t, chain)
}
