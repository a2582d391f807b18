package store

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/tulibraries/combine/pkg/models"
)

var ErrNotFound = errors.New("resource not found")
var ErrDuplicateKey = errors.New("duplicate key violation")

// Store is the data access interface. All database operations go through here.
type Store interface {
	Ping(ctx context.Context) error

	// Livy sessions. Session rows are never hard-deleted, only marked gone.
	CreateSession(ctx context.Context, session *models.LivySession) error
	UpdateSession(ctx context.Context, session *models.LivySession) error
	GetSession(ctx context.Context, id int64) (*models.LivySession, error)
	ActiveSessions(ctx context.Context) ([]*models.LivySession, error)

	// Owning hierarchy.
	CreateOrganization(ctx context.Context, org *models.Organization) error
	GetOrganization(ctx context.Context, id int64) (*models.Organization, error)
	CreateRecordGroup(ctx context.Context, group *models.RecordGroup) error
	GetRecordGroup(ctx context.Context, id int64) (*models.RecordGroup, error)
	GetRecordGroupByName(ctx context.Context, name string) (*models.RecordGroup, error)

	// Jobs and the lineage graph. A job and its input edges (and publish
	// link, for publish jobs) are created in one transaction: no reader ever
	// sees a job without its edges. Edges are append-only and only reference
	// jobs that already exist, which keeps the graph acyclic by construction.
	CreateJobWithInputs(ctx context.Context, job *models.Job, inputJobIDs []int64, publish bool, outputLocation func(jobID int64) string) error
	GetJob(ctx context.Context, id int64) (*models.Job, error)
	ListJobs(ctx context.Context, recordGroupID int64) ([]*models.Job, error)
	SetJobSubmission(ctx context.Context, id int64, sparkCode string, statementID int, statementURL, status string) error
	UpdateJobStatus(ctx context.Context, id int64, status string, finished bool) error
	UpdateJobRecordCount(ctx context.Context, id int64) error
	DeleteJob(ctx context.Context, id int64) error
	InputJobs(ctx context.Context, jobID int64) ([]*models.Job, error)
	OutputJobs(ctx context.Context, jobID int64) ([]*models.Job, error)
	ListJobPublishes(ctx context.Context) ([]*models.JobPublish, error)

	// Records and index-mapping failures.
	CreateRecord(ctx context.Context, record *models.Record) error
	GetRecord(ctx context.Context, id int64) (*models.Record, error)
	GetRecordByJobAndRecordID(ctx context.Context, jobID int64, recordID string) (*models.Record, error)
	ListRecords(ctx context.Context, jobID int64, errorsOnly bool) ([]*models.Record, error)
	PublishedRecordByID(ctx context.Context, recordID string) (*models.Record, error)
	ListIndexFailures(ctx context.Context, jobID int64) ([]*models.IndexMappingFailure, error)

	// Harvest endpoints and scenario artifacts.
	CreateOAIEndpoint(ctx context.Context, endpoint *models.OAIEndpoint) error
	GetOAIEndpoint(ctx context.Context, id int64) (*models.OAIEndpoint, error)
	GetTransformation(ctx context.Context, id int64) (*models.Transformation, error)
	GetTransformationByName(ctx context.Context, name string) (*models.Transformation, error)
	UpsertTransformation(ctx context.Context, t *models.Transformation) error
	GetValidationScenarioByName(ctx context.Context, name string) (*models.ValidationScenario, error)
	UpsertValidationScenario(ctx context.Context, v *models.ValidationScenario) error

	// API keys.
	GetAPIKeyByPrefix(ctx context.Context, prefix string) ([]*models.APIKey, error)
	UpdateAPIKeyLastUsed(ctx context.Context, id uuid.UUID) error
	CreateAPIKey(ctx context.Context, key *models.APIKey) error
	ListAPIKeys(ctx context.Context) ([]*models.APIKey, error)
	RevokeAPIKey(ctx context.Context, id uuid.UUID) error
}
