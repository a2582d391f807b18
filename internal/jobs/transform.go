package jobs

import (
	"context"
	"fmt"

	"github.com/tulibraries/combine/internal/store"
	"github.com/tulibraries/combine/pkg/models"
)

// TransformBuilder builds transformation jobs: exactly one upstream job whose
// output is run through a transformation artifact already written to disk.
type TransformBuilder struct {
	store store.Store
}

func (b *TransformBuilder) Type() models.JobType { return models.JobTypeTransform }

func (b *TransformBuilder) ValidateInputs(inputJobIDs []int64) error {
	if len(inputJobIDs) != 1 {
		return fmt.Errorf("%w: transform jobs take exactly one upstream job, got %d", ErrDependencyMissing, len(inputJobIDs))
	}
	return nil
}

func (b *TransformBuilder) Code(ctx context.Context, job *models.Job, inputs []*models.Job) (string, error) {
	if len(inputs) != 1 {
		return "", fmt.Errorf("%w: transform job %d has %d upstream jobs", ErrDependencyMissing, job.ID, len(inputs))
	}

	var details TransformDetails
	if err := decodeDetails(job, &details); err != nil {
		return "", err
	}

	transformation, err := b.store.GetTransformation(ctx, details.TransformationID)
	if err != nil {
		return "", fmt.Errorf("loading transformation %d: %w", details.TransformationID, err)
	}
	if transformation.FilePath == nil {
		return "", fmt.Errorf("transformation %q has no rendered file", transformation.Name)
	}

	return fmt.Sprintf(
		`from jobs import TransformSpark
TransformSpark.spark_function(spark, transform_filepath="%s", job_input="%s", job_id="%d", index_mapper="%s")`,
		*transformation.FilePath, inputs[0].OutputLocation, job.ID,
		indexMapperOrDefault(details.IndexMapper)), nil
}

func (b *TransformBuilder) Errors(ctx context.Context, job *models.Job) ([]*models.Record, error) {
	return recordErrors(ctx, b.store, job)
}

func (b *TransformBuilder) PublishesOutput() bool { return false }
