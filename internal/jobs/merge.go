package jobs

import (
	"context"
	"fmt"

	"github.com/tulibraries/combine/internal/store"
	"github.com/tulibraries/combine/pkg/models"
)

// MergeBuilder builds merge jobs: one or more upstream jobs whose outputs are
// combined into a single output set.
type MergeBuilder struct {
	store store.Store
}

func (b *MergeBuilder) Type() models.JobType { return models.JobTypeMerge }

func (b *MergeBuilder) ValidateInputs(inputJobIDs []int64) error {
	if len(inputJobIDs) == 0 {
		return fmt.Errorf("%w: merge jobs take at least one upstream job", ErrDependencyMissing)
	}
	return nil
}

func (b *MergeBuilder) Code(ctx context.Context, job *models.Job, inputs []*models.Job) (string, error) {
	if len(inputs) == 0 {
		return "", fmt.Errorf("%w: merge job %d has no upstream jobs", ErrDependencyMissing, job.ID)
	}

	var details MergeDetails
	if err := decodeDetails(job, &details); err != nil {
		return "", err
	}

	return fmt.Sprintf(
		`from jobs import MergeSpark
MergeSpark.spark_function(spark, sc, job_inputs="%s", job_id="%d", index_mapper="%s")`,
		outputList(inputs), job.ID, indexMapperOrDefault(details.IndexMapper)), nil
}

func (b *MergeBuilder) Errors(ctx context.Context, job *models.Job) ([]*models.Record, error) {
	return recordErrors(ctx, b.store, job)
}

func (b *MergeBuilder) PublishesOutput() bool { return false }
