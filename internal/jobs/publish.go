package jobs

import (
	"context"
	"fmt"

	"github.com/tulibraries/combine/internal/store"
	"github.com/tulibraries/combine/pkg/models"
)

// PublishBuilder builds publish jobs: exactly one upstream job whose output
// becomes the record group's canonical published set. Creation additionally
// writes a publish edge linking the record group to this job.
type PublishBuilder struct {
	store store.Store
}

func (b *PublishBuilder) Type() models.JobType { return models.JobTypePublish }

func (b *PublishBuilder) ValidateInputs(inputJobIDs []int64) error {
	if len(inputJobIDs) != 1 {
		return fmt.Errorf("%w: publish jobs take exactly one upstream job, got %d", ErrDependencyMissing, len(inputJobIDs))
	}
	return nil
}

func (b *PublishBuilder) Code(ctx context.Context, job *models.Job, inputs []*models.Job) (string, error) {
	if len(inputs) != 1 {
		return "", fmt.Errorf("%w: publish job %d has %d upstream jobs", ErrDependencyMissing, job.ID, len(inputs))
	}

	var details PublishDetails
	if err := decodeDetails(job, &details); err != nil {
		return "", err
	}

	return fmt.Sprintf(
		`from jobs import PublishSpark
PublishSpark.spark_function(spark, job_input="%s", job_id="%d", index_mapper="%s")`,
		inputs[0].OutputLocation, job.ID, indexMapperOrDefault(details.IndexMapper)), nil
}

func (b *PublishBuilder) Errors(ctx context.Context, job *models.Job) ([]*models.Record, error) {
	return recordErrors(ctx, b.store, job)
}

func (b *PublishBuilder) PublishesOutput() bool { return true }
