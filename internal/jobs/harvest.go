package jobs

import (
	"context"
	"fmt"

	"github.com/tulibraries/combine/internal/store"
	"github.com/tulibraries/combine/pkg/models"
)

// HarvestBuilder builds OAI-PMH harvest jobs. Harvests are root nodes: they
// take no upstream jobs and pull from a configured OAI endpoint, with
// per-call overrides layered on top of the endpoint's stored values.
type HarvestBuilder struct {
	store store.Store
}

func (b *HarvestBuilder) Type() models.JobType { return models.JobTypeHarvest }

func (b *HarvestBuilder) ValidateInputs(inputJobIDs []int64) error {
	if len(inputJobIDs) != 0 {
		return fmt.Errorf("%w: harvest jobs take no upstream jobs, got %d", ErrDependencyMissing, len(inputJobIDs))
	}
	return nil
}

func (b *HarvestBuilder) Code(ctx context.Context, job *models.Job, _ []*models.Job) (string, error) {
	var details HarvestDetails
	if err := decodeDetails(job, &details); err != nil {
		return "", err
	}

	endpoint, err := b.store.GetOAIEndpoint(ctx, details.OAIEndpointID)
	if err != nil {
		return "", fmt.Errorf("loading oai endpoint %d: %w", details.OAIEndpointID, err)
	}

	vars := map[string]string{
		"endpoint":       endpoint.Endpoint,
		"verb":           endpoint.Verb,
		"metadataPrefix": endpoint.MetadataPrefix,
		"scope_type":     endpoint.ScopeType,
		"scope_value":    endpoint.ScopeValue,
	}
	for k, v := range details.Overrides {
		vars[k] = v
	}

	return fmt.Sprintf(
		`from jobs import HarvestSpark
HarvestSpark.spark_function(spark, endpoint="%s", verb="%s", metadataPrefix="%s", scope_type="%s", scope_value="%s", job_id="%d", index_mapper="%s")`,
		vars["endpoint"], vars["verb"], vars["metadataPrefix"],
		vars["scope_type"], vars["scope_value"], job.ID,
		indexMapperOrDefault(details.IndexMapper)), nil
}

// Errors returns nil for harvests: harvest failures are captured by the
// remote process itself and never surfaced back synchronously.
func (b *HarvestBuilder) Errors(_ context.Context, _ *models.Job) ([]*models.Record, error) {
	return nil, nil
}

func (b *HarvestBuilder) PublishesOutput() bool { return false }
