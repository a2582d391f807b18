package jobs

import (
	"context"
	"fmt"

	"github.com/tulibraries/combine/internal/store"
	"github.com/tulibraries/combine/pkg/models"
)

// AnalysisBuilder builds analysis jobs: merge-shaped over any upstream jobs,
// but attached to the reserved analysis record group rather than a
// user-created one, so analysis output never pollutes user workflows.
type AnalysisBuilder struct {
	store store.Store
}

func (b *AnalysisBuilder) Type() models.JobType { return models.JobTypeAnalysis }

func (b *AnalysisBuilder) ValidateInputs(inputJobIDs []int64) error {
	if len(inputJobIDs) == 0 {
		return fmt.Errorf("%w: analysis jobs take at least one upstream job", ErrDependencyMissing)
	}
	return nil
}

func (b *AnalysisBuilder) Code(ctx context.Context, job *models.Job, inputs []*models.Job) (string, error) {
	if len(inputs) == 0 {
		return "", fmt.Errorf("%w: analysis job %d has no upstream jobs", ErrDependencyMissing, job.ID)
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

func (b *AnalysisBuilder) Errors(ctx context.Context, job *models.Job) ([]*models.Record, error) {
	return recordErrors(ctx, b.store, job)
}

func (b *AnalysisBuilder) PublishesOutput() bool { return false }
