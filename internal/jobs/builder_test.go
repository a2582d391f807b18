package jobs

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tulibraries/combine/internal/store"
	"github.com/tulibraries/combine/pkg/models"
)

// fakeBuilderStore stubs only the lookups builders perform. Unstubbed methods
// panic through the embedded nil interface.
type fakeBuilderStore struct {
	store.Store
	endpoint       *models.OAIEndpoint
	transformation *models.Transformation
	records        []*models.Record
}

func (f *fakeBuilderStore) GetOAIEndpoint(context.Context, int64) (*models.OAIEndpoint, error) {
	if f.endpoint == nil {
		return nil, store.ErrNotFound
	}
	return f.endpoint, nil
}

func (f *fakeBuilderStore) GetTransformation(context.Context, int64) (*models.Transformation, error) {
	if f.transformation == nil {
		return nil, store.ErrNotFound
	}
	return f.transformation, nil
}

func (f *fakeBuilderStore) ListRecords(context.Context, int64, bool) ([]*models.Record, error) {
	return f.records, nil
}

func mustDetails(t *testing.T, v any) json.RawMessage {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	return data
}

func TestRegistry_UnknownType(t *testing.T) {
	r := NewRegistry(&fakeBuilderStore{})
	_, err := r.Builder(models.JobType("NopeJob"))
	assert.ErrorIs(t, err, ErrUnknownJobType)
}

func TestValidateInputs_Arity(t *testing.T) {
	r := NewRegistry(&fakeBuilderStore{})

	cases := []struct {
		jobType models.JobType
		inputs  []int64
		wantErr bool
	}{
		{models.JobTypeHarvest, nil, false},
		{models.JobTypeHarvest, []int64{1}, true},
		{models.JobTypeTransform, []int64{1}, false},
		{models.JobTypeTransform, nil, true},
		{models.JobTypeTransform, []int64{1, 2}, true},
		{models.JobTypeMerge, []int64{1}, false},
		{models.JobTypeMerge, []int64{1, 2, 3}, false},
		{models.JobTypeMerge, nil, true},
		{models.JobTypePublish, []int64{1}, false},
		{models.JobTypePublish, []int64{1, 2}, true},
		{models.JobTypeAnalysis, []int64{1, 2}, false},
		{models.JobTypeAnalysis, nil, true},
	}
	for _, tc := range cases {
		b, err := r.Builder(tc.jobType)
		require.NoError(t, err)

		err = b.ValidateInputs(tc.inputs)
		if tc.wantErr {
			assert.ErrorIs(t, err, ErrDependencyMissing, "%s with %d inputs", tc.jobType, len(tc.inputs))
		} else {
			assert.NoError(t, err, "%s with %d inputs", tc.jobType, len(tc.inputs))
		}
	}
}

func TestHarvestCode_RendersEndpointWithOverrides(t *testing.T) {
	st := &fakeBuilderStore{endpoint: &models.OAIEndpoint{
		ID:             3,
		Endpoint:       "http://oai.example.org/oai",
		Verb:           "ListRecords",
		MetadataPrefix: "mods",
		ScopeType:      models.ScopeTypeSetList,
		ScopeValue:     "set1,set2",
	}}
	b := &HarvestBuilder{store: st}

	job := &models.Job{
		ID:      42,
		JobType: models.JobTypeHarvest,
		Details: mustDetails(t, HarvestDetails{
			OAIEndpointID: 3,
			Overrides:     map[string]string{"scope_value": "set9"},
		}),
	}

	code, err := b.Code(context.Background(), job, nil)
	require.NoError(t, err)

	assert.Contains(t, code, "from jobs import HarvestSpark")
	assert.Contains(t, code, `endpoint="http://oai.example.org/oai"`)
	assert.Contains(t, code, `metadataPrefix="mods"`)
	assert.Contains(t, code, `scope_value="set9"`)
	assert.Contains(t, code, `job_id="42"`)
	assert.Contains(t, code, `index_mapper="GenericMapper"`)
}

func TestTransformCode_RendersFilepathAndInput(t *testing.T) {
	path := "/data/combine/transformations/ab12.xsl"
	st := &fakeBuilderStore{transformation: &models.Transformation{
		ID: 5, Name: "mods-to-dpla", Type: models.TransformationTypeXSLT, FilePath: &path,
	}}
	b := &TransformBuilder{store: st}

	job := &models.Job{
		ID:      43,
		JobType: models.JobTypeTransform,
		Details: mustDetails(t, TransformDetails{TransformationID: 5}),
	}
	input := &models.Job{ID: 42, OutputLocation: "file:///data/combine/organizations/1/record_group/2/jobs/HarvestJob/42"}

	code, err := b.Code(context.Background(), job, []*models.Job{input})
	require.NoError(t, err)

	assert.Contains(t, code, "from jobs import TransformSpark")
	assert.Contains(t, code, `transform_filepath="/data/combine/transformations/ab12.xsl"`)
	assert.Contains(t, code, `job_input="file:///data/combine/organizations/1/record_group/2/jobs/HarvestJob/42"`)
	assert.Contains(t, code, `job_id="43"`)
}

func TestTransformCode_UnrenderedArtifactFails(t *testing.T) {
	st := &fakeBuilderStore{transformation: &models.Transformation{
		ID: 5, Name: "py-transform", Type: models.TransformationTypePython,
	}}
	b := &TransformBuilder{store: st}

	job := &models.Job{
		ID:      43,
		Details: mustDetails(t, TransformDetails{TransformationID: 5}),
	}
	_, err := b.Code(context.Background(), job, []*models.Job{{ID: 42}})
	assert.Error(t, err)
}

func TestMergeCode_RendersInputList(t *testing.T) {
	b := &MergeBuilder{store: &fakeBuilderStore{}}

	job := &models.Job{ID: 44, JobType: models.JobTypeMerge}
	inputs := []*models.Job{
		{ID: 42, OutputLocation: "file:///data/a"},
		{ID: 43, OutputLocation: "file:///data/b"},
	}

	code, err := b.Code(context.Background(), job, inputs)
	require.NoError(t, err)

	assert.Contains(t, code, "from jobs import MergeSpark")
	assert.Contains(t, code, `job_inputs="['file:///data/a', 'file:///data/b']"`)
	assert.Contains(t, code, `job_id="44"`)
}

func TestPublishCode_RendersSingleInput(t *testing.T) {
	b := &PublishBuilder{store: &fakeBuilderStore{}}

	job := &models.Job{ID: 45, JobType: models.JobTypePublish}
	input := &models.Job{ID: 44, OutputLocation: "file:///data/m"}

	code, err := b.Code(context.Background(), job, []*models.Job{input})
	require.NoError(t, err)

	assert.Contains(t, code, "from jobs import PublishSpark")
	assert.Contains(t, code, `job_input="file:///data/m"`)
	assert.True(t, b.PublishesOutput())
}

func TestHarvestErrors_AlwaysNil(t *testing.T) {
	b := &HarvestBuilder{store: &fakeBuilderStore{records: []*models.Record{{ID: 1}}}}
	records, err := b.Errors(context.Background(), &models.Job{ID: 42})
	require.NoError(t, err)
	assert.Nil(t, records)
}

func TestTransformErrors_SurfacesErrorRecords(t *testing.T) {
	b := &TransformBuilder{store: &fakeBuilderStore{records: []*models.Record{
		{ID: 1, RecordID: "r1", Error: "bad xslt"},
	}}}
	records, err := b.Errors(context.Background(), &models.Job{ID: 43})
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "bad xslt", records[0].Error)
}

func TestOutputLocation_Deterministic(t *testing.T) {
	loc := OutputLocation("file:///data/combine/", 1, 2, models.JobTypeHarvest, 42)
	assert.Equal(t, "file:///data/combine/organizations/1/record_group/2/jobs/HarvestJob/42", loc)

	assert.Equal(t, loc, OutputLocation("file:///data/combine", 1, 2, models.JobTypeHarvest, 42))
}

func TestIndexingResultsLocation(t *testing.T) {
	loc := IndexingResultsLocation("file:///data/combine", 1, 2, 42)
	assert.Equal(t, "file:///data/combine/organizations/1/record_group/2/jobs/indexing/42", loc)
}
