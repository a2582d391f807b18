package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/tulibraries/combine/pkg/models"
)

// PostgresStore implements the Store interface using pgx/v5.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgresStore.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Ping checks database connectivity.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// --- Livy sessions ---

const sessionColumns = `id, name, session_id, session_url, status, session_timestamp,
	app_id, driver_log_url, spark_ui_url, active, created_at, updated_at`

func scanSession(row pgx.Row) (*models.LivySession, error) {
	var sess models.LivySession
	err := row.Scan(&sess.ID, &sess.Name, &sess.SessionID, &sess.SessionURL, &sess.Status,
		&sess.SessionTimestamp, &sess.AppID, &sess.DriverLogURL, &sess.SparkUIURL,
		&sess.Active, &sess.CreatedAt, &sess.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan session: %w", err)
	}
	return &sess, nil
}

func (s *PostgresStore) CreateSession(ctx context.Context, session *models.LivySession) error {
	err := s.pool.QueryRow(ctx,
		`INSERT INTO livy_sessions (name, session_id, session_url, status, session_timestamp, active)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING id, created_at`,
		session.Name, session.SessionID, session.SessionURL, session.Status,
		session.SessionTimestamp, session.Active,
	).Scan(&session.ID, &session.CreatedAt)
	if err != nil {
		return fmt.Errorf("create session: %w", err)
	}
	return nil
}

func (s *PostgresStore) UpdateSession(ctx context.Context, session *models.LivySession) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE livy_sessions SET status = $2, session_timestamp = $3, app_id = $4,
		 driver_log_url = $5, spark_ui_url = $6, active = $7, updated_at = NOW()
		 WHERE id = $1`,
		session.ID, session.Status, session.SessionTimestamp, session.AppID,
		session.DriverLogURL, session.SparkUIURL, session.Active)
	if err != nil {
		return fmt.Errorf("update session: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) GetSession(ctx context.Context, id int64) (*models.LivySession, error) {
	return scanSession(s.pool.QueryRow(ctx,
		`SELECT `+sessionColumns+` FROM livy_sessions WHERE id = $1`, id))
}

func (s *PostgresStore) ActiveSessions(ctx context.Context) ([]*models.LivySession, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+sessionColumns+` FROM livy_sessions WHERE active ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("active sessions: %w", err)
	}
	defer rows.Close()

	var sessions []*models.LivySession
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, sess)
	}
	return sessions, rows.Err()
}

// --- Organizations and record groups ---

func (s *PostgresStore) CreateOrganization(ctx context.Context, org *models.Organization) error {
	err := s.pool.QueryRow(ctx,
		`INSERT INTO organizations (name, description, publish_id)
		 VALUES ($1, $2, $3) RETURNING id, created_at`,
		org.Name, org.Description, org.PublishID,
	).Scan(&org.ID, &org.CreatedAt)
	if err != nil {
		if isDuplicateKeyError(err) {
			return ErrDuplicateKey
		}
		return fmt.Errorf("create organization: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetOrganization(ctx context.Context, id int64) (*models.Organization, error) {
	var org models.Organization
	err := s.pool.QueryRow(ctx,
		`SELECT id, name, description, publish_id, created_at FROM organizations WHERE id = $1`, id,
	).Scan(&org.ID, &org.Name, &org.Description, &org.PublishID, &org.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get organization: %w", err)
	}
	return &org, nil
}

func (s *PostgresStore) CreateRecordGroup(ctx context.Context, group *models.RecordGroup) error {
	err := s.pool.QueryRow(ctx,
		`INSERT INTO record_groups (organization_id, name, description, publish_set_id)
		 VALUES ($1, $2, $3, $4) RETURNING id, created_at`,
		group.OrganizationID, group.Name, group.Description, group.PublishSetID,
	).Scan(&group.ID, &group.CreatedAt)
	if err != nil {
		if isDuplicateKeyError(err) {
			return ErrDuplicateKey
		}
		return fmt.Errorf("create record group: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetRecordGroup(ctx context.Context, id int64) (*models.RecordGroup, error) {
	var g models.RecordGroup
	err := s.pool.QueryRow(ctx,
		`SELECT id, organization_id, name, description, publish_set_id, created_at
		 FROM record_groups WHERE id = $1`, id,
	).Scan(&g.ID, &g.OrganizationID, &g.Name, &g.Description, &g.PublishSetID, &g.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get record group: %w", err)
	}
	return &g, nil
}

func (s *PostgresStore) GetRecordGroupByName(ctx context.Context, name string) (*models.RecordGroup, error) {
	var g models.RecordGroup
	err := s.pool.QueryRow(ctx,
		`SELECT id, organization_id, name, description, publish_set_id, created_at
		 FROM record_groups WHERE name = $1`, name,
	).Scan(&g.ID, &g.OrganizationID, &g.Name, &g.Description, &g.PublishSetID, &g.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get record group by name: %w", err)
	}
	return &g, nil
}

// --- Jobs and lineage edges ---

const jobColumns = `id, record_group_id, job_type, name, spark_code, statement_id,
	statement_url, status, finished, output_location, record_count, job_details,
	created_at, updated_at`

func scanJob(row pgx.Row) (*models.Job, error) {
	var j models.Job
	err := row.Scan(&j.ID, &j.RecordGroupID, &j.JobType, &j.Name, &j.SparkCode,
		&j.StatementID, &j.StatementURL, &j.Status, &j.Finished, &j.OutputLocation,
		&j.RecordCount, &j.Details, &j.CreatedAt, &j.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan job: %w", err)
	}
	return &j, nil
}

// CreateJobWithInputs inserts a job, derives its output location from the
// assigned id, and records its input edges (plus a publish link when publish
// is set) in one transaction. The job is never visible without its edges.
func (s *PostgresStore) CreateJobWithInputs(ctx context.Context, job *models.Job, inputJobIDs []int64, publish bool, outputLocation func(jobID int64) string) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin job create: %w", err)
	}
	defer tx.Rollback(ctx)

	err = tx.QueryRow(ctx,
		`INSERT INTO jobs (record_group_id, job_type, name, status, finished, record_count, job_details)
		 VALUES ($1, $2, $3, $4, FALSE, 0, $5)
		 RETURNING id, created_at`,
		job.RecordGroupID, job.JobType, job.Name, job.Status, job.Details,
	).Scan(&job.ID, &job.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert job: %w", err)
	}

	job.OutputLocation = outputLocation(job.ID)
	if _, err := tx.Exec(ctx,
		`UPDATE jobs SET output_location = $2 WHERE id = $1`, job.ID, job.OutputLocation); err != nil {
		return fmt.Errorf("set job output location: %w", err)
	}

	for _, inputID := range inputJobIDs {
		if _, err := tx.Exec(ctx,
			`INSERT INTO job_inputs (job_id, input_job_id) VALUES ($1, $2)`,
			job.ID, inputID); err != nil {
			return fmt.Errorf("insert job input edge: %w", err)
		}
	}

	if publish {
		if _, err := tx.Exec(ctx,
			`INSERT INTO job_publishes (record_group_id, job_id) VALUES ($1, $2)`,
			job.RecordGroupID, job.ID); err != nil {
			return fmt.Errorf("insert job publish link: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit job create: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetJob(ctx context.Context, id int64) (*models.Job, error) {
	return scanJob(s.pool.QueryRow(ctx,
		`SELECT `+jobColumns+` FROM jobs WHERE id = $1`, id))
}

func (s *PostgresStore) ListJobs(ctx context.Context, recordGroupID int64) ([]*models.Job, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+jobColumns+` FROM jobs WHERE record_group_id = $1 ORDER BY id`, recordGroupID)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()
	return collectJobs(rows)
}

func (s *PostgresStore) SetJobSubmission(ctx context.Context, id int64, sparkCode string, statementID int, statementURL, status string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE jobs SET spark_code = $2, statement_id = $3, statement_url = $4,
		 status = $5, updated_at = NOW() WHERE id = $1`,
		id, sparkCode, statementID, statementURL, status)
	if err != nil {
		return fmt.Errorf("set job submission: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) UpdateJobStatus(ctx context.Context, id int64, status string, finished bool) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE jobs SET status = $2, finished = $3, updated_at = NOW() WHERE id = $1`,
		id, status, finished)
	if err != nil {
		return fmt.Errorf("update job status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdateJobRecordCount rolls the count of records with a document up onto the
// job row.
func (s *PostgresStore) UpdateJobRecordCount(ctx context.Context, id int64) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE jobs SET record_count = (
		   SELECT COUNT(*) FROM records WHERE job_id = $1 AND document <> ''
		 ), updated_at = NOW() WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("update job record count: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) DeleteJob(ctx context.Context, id int64) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM jobs WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete job: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// InputJobs returns the jobs this job depends on.
func (s *PostgresStore) InputJobs(ctx context.Context, jobID int64) ([]*models.Job, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+jobColumns+` FROM jobs
		 WHERE id IN (SELECT input_job_id FROM job_inputs WHERE job_id = $1)
		 ORDER BY id`, jobID)
	if err != nil {
		return nil, fmt.Errorf("input jobs: %w", err)
	}
	defer rows.Close()
	return collectJobs(rows)
}

// OutputJobs returns the jobs for which this job is an input.
func (s *PostgresStore) OutputJobs(ctx context.Context, jobID int64) ([]*models.Job, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+jobColumns+` FROM jobs
		 WHERE id IN (SELECT job_id FROM job_inputs WHERE input_job_id = $1)
		 ORDER BY id`, jobID)
	if err != nil {
		return nil, fmt.Errorf("output jobs: %w", err)
	}
	defer rows.Close()
	return collectJobs(rows)
}

func (s *PostgresStore) ListJobPublishes(ctx context.Context) ([]*models.JobPublish, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, record_group_id, job_id FROM job_publishes ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list job publishes: %w", err)
	}
	defer rows.Close()

	var links []*models.JobPublish
	for rows.Next() {
		var l models.JobPublish
		if err := rows.Scan(&l.ID, &l.RecordGroupID, &l.JobID); err != nil {
			return nil, fmt.Errorf("scan job publish: %w", err)
		}
		links = append(links, &l)
	}
	return links, rows.Err()
}

func collectJobs(rows pgx.Rows) ([]*models.Job, error) {
	var jobs []*models.Job
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, j)
	}
	return jobs, rows.Err()
}

// --- Records ---

const recordColumns = `id, job_id, idx, record_id, document, error`

func scanRecord(row pgx.Row) (*models.Record, error) {
	var r models.Record
	err := row.Scan(&r.ID, &r.JobID, &r.Index, &r.RecordID, &r.Document, &r.Error)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan record: %w", err)
	}
	return &r, nil
}

func (s *PostgresStore) CreateRecord(ctx context.Context, record *models.Record) error {
	err := s.pool.QueryRow(ctx,
		`INSERT INTO records (job_id, idx, record_id, document, error)
		 VALUES ($1, $2, $3, $4, $5) RETURNING id`,
		record.JobID, record.Index, record.RecordID, record.Document, record.Error,
	).Scan(&record.ID)
	if err != nil {
		return fmt.Errorf("create record: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetRecord(ctx context.Context, id int64) (*models.Record, error) {
	return scanRecord(s.pool.QueryRow(ctx,
		`SELECT `+recordColumns+` FROM records WHERE id = $1`, id))
}

// GetRecordByJobAndRecordID returns the first record in a job with the given
// record id. Multiple matches in one job are not expected; the lowest id wins.
func (s *PostgresStore) GetRecordByJobAndRecordID(ctx context.Context, jobID int64, recordID string) (*models.Record, error) {
	return scanRecord(s.pool.QueryRow(ctx,
		`SELECT `+recordColumns+` FROM records
		 WHERE job_id = $1 AND record_id = $2 ORDER BY id LIMIT 1`, jobID, recordID))
}

func (s *PostgresStore) ListRecords(ctx context.Context, jobID int64, errorsOnly bool) ([]*models.Record, error) {
	query := `SELECT ` + recordColumns + ` FROM records WHERE job_id = $1 AND document <> '' ORDER BY id`
	if errorsOnly {
		query = `SELECT ` + recordColumns + ` FROM records WHERE job_id = $1 AND error <> '' ORDER BY id`
	}

	rows, err := s.pool.Query(ctx, query, jobID)
	if err != nil {
		return nil, fmt.Errorf("list records: %w", err)
	}
	defer rows.Close()

	var records []*models.Record
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

// PublishedRecordByID returns the single published record with the given
// record id. Published record ids must be unique across the published set;
// more than one match is an error, not a guess.
func (s *PostgresStore) PublishedRecordByID(ctx context.Context, recordID string) (*models.Record, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+recordColumns+` FROM records
		 WHERE record_id = $1
		   AND job_id IN (SELECT id FROM jobs WHERE job_type = $2)
		 ORDER BY id`, recordID, models.JobTypePublish)
	if err != nil {
		return nil, fmt.Errorf("published record by id: %w", err)
	}
	defer rows.Close()

	var matches []*models.Record
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		matches = append(matches, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	switch len(matches) {
	case 0:
		return nil, ErrNotFound
	case 1:
		return matches[0], nil
	default:
		return nil, fmt.Errorf("multiple published records found for id %s", recordID)
	}
}

func (s *PostgresStore) ListIndexFailures(ctx context.Context, jobID int64) ([]*models.IndexMappingFailure, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, job_id, record_id, mapping_error
		 FROM index_mapping_failures WHERE job_id = $1 ORDER BY id`, jobID)
	if err != nil {
		return nil, fmt.Errorf("list index failures: %w", err)
	}
	defer rows.Close()

	var failures []*models.IndexMappingFailure
	for rows.Next() {
		var f models.IndexMappingFailure
		if err := rows.Scan(&f.ID, &f.JobID, &f.RecordID, &f.MappingError); err != nil {
			return nil, fmt.Errorf("scan index failure: %w", err)
		}
		failures = append(failures, &f)
	}
	return failures, rows.Err()
}

// --- OAI endpoints and scenarios ---

func (s *PostgresStore) CreateOAIEndpoint(ctx context.Context, endpoint *models.OAIEndpoint) error {
	err := s.pool.QueryRow(ctx,
		`INSERT INTO oai_endpoints (name, endpoint, verb, metadata_prefix, scope_type, scope_value)
		 VALUES ($1, $2, $3, $4, $5, $6) RETURNING id`,
		endpoint.Name, endpoint.Endpoint, endpoint.Verb, endpoint.MetadataPrefix,
		endpoint.ScopeType, endpoint.ScopeValue,
	).Scan(&endpoint.ID)
	if err != nil {
		return fmt.Errorf("create oai endpoint: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetOAIEndpoint(ctx context.Context, id int64) (*models.OAIEndpoint, error) {
	var e models.OAIEndpoint
	err := s.pool.QueryRow(ctx,
		`SELECT id, name, endpoint, verb, metadata_prefix, scope_type, scope_value
		 FROM oai_endpoints WHERE id = $1`, id,
	).Scan(&e.ID, &e.Name, &e.Endpoint, &e.Verb, &e.MetadataPrefix, &e.ScopeType, &e.ScopeValue)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get oai endpoint: %w", err)
	}
	return &e, nil
}

func (s *PostgresStore) GetTransformation(ctx context.Context, id int64) (*models.Transformation, error) {
	var t models.Transformation
	err := s.pool.QueryRow(ctx,
		`SELECT id, name, payload, transformation_type, filepath, created_at, updated_at
		 FROM transformations WHERE id = $1`, id,
	).Scan(&t.ID, &t.Name, &t.Payload, &t.Type, &t.FilePath, &t.CreatedAt, &t.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get transformation: %w", err)
	}
	return &t, nil
}

func (s *PostgresStore) GetTransformationByName(ctx context.Context, name string) (*models.Transformation, error) {
	var t models.Transformation
	err := s.pool.QueryRow(ctx,
		`SELECT id, name, payload, transformation_type, filepath, created_at, updated_at
		 FROM transformations WHERE name = $1`, name,
	).Scan(&t.ID, &t.Name, &t.Payload, &t.Type, &t.FilePath, &t.CreatedAt, &t.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get transformation by name: %w", err)
	}
	return &t, nil
}

func (s *PostgresStore) UpsertTransformation(ctx context.Context, t *models.Transformation) error {
	err := s.pool.QueryRow(ctx,
		`INSERT INTO transformations (name, payload, transformation_type, filepath)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (name) DO UPDATE SET
		   payload = EXCLUDED.payload,
		   transformation_type = EXCLUDED.transformation_type,
		   filepath = EXCLUDED.filepath,
		   updated_at = NOW()
		 RETURNING id, created_at, updated_at`,
		t.Name, t.Payload, t.Type, t.FilePath,
	).Scan(&t.ID, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return fmt.Errorf("upsert transformation: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetValidationScenarioByName(ctx context.Context, name string) (*models.ValidationScenario, error) {
	var v models.ValidationScenario
	err := s.pool.QueryRow(ctx,
		`SELECT id, name, payload, validation_type, filepath, default_run, created_at, updated_at
		 FROM validation_scenarios WHERE name = $1`, name,
	).Scan(&v.ID, &v.Name, &v.Payload, &v.Type, &v.FilePath, &v.DefaultRun, &v.CreatedAt, &v.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get validation scenario: %w", err)
	}
	return &v, nil
}

func (s *PostgresStore) UpsertValidationScenario(ctx context.Context, v *models.ValidationScenario) error {
	err := s.pool.QueryRow(ctx,
		`INSERT INTO validation_scenarios (name, payload, validation_type, filepath, default_run)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (name) DO UPDATE SET
		   payload = EXCLUDED.payload,
		   validation_type = EXCLUDED.validation_type,
		   filepath = EXCLUDED.filepath,
		   default_run = EXCLUDED.default_run,
		   updated_at = NOW()
		 RETURNING id, created_at, updated_at`,
		v.Name, v.Payload, v.Type, v.FilePath, v.DefaultRun,
	).Scan(&v.ID, &v.CreatedAt, &v.UpdatedAt)
	if err != nil {
		return fmt.Errorf("upsert validation scenario: %w", err)
	}
	return nil
}

// --- API keys ---

func (s *PostgresStore) GetAPIKeyByPrefix(ctx context.Context, prefix string) ([]*models.APIKey, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, name, key_hash, key_prefix, scopes, last_used_at, deleted_at, created_at, updated_at
		 FROM api_keys WHERE key_prefix = $1 AND deleted_at IS NULL`, prefix)
	if err != nil {
		return nil, fmt.Errorf("get api key by prefix: %w", err)
	}
	defer rows.Close()
	return collectAPIKeys(rows)
}

func (s *PostgresStore) UpdateAPIKeyLastUsed(ctx context.Context, id uuid.UUID) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE api_keys SET last_used_at = NOW(), updated_at = NOW() WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("update api key last used: %w", err)
	}
	return nil
}

func (s *PostgresStore) CreateAPIKey(ctx context.Context, key *models.APIKey) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO api_keys (id, name, key_hash, key_prefix, scopes, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		key.ID, key.Name, key.KeyHash, key.KeyPrefix, key.Scopes, key.CreatedAt, key.UpdatedAt)
	if err != nil {
		if isDuplicateKeyError(err) {
			return ErrDuplicateKey
		}
		return fmt.Errorf("create api key: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListAPIKeys(ctx context.Context) ([]*models.APIKey, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, name, key_hash, key_prefix, scopes, last_used_at, deleted_at, created_at, updated_at
		 FROM api_keys WHERE deleted_at IS NULL ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list api keys: %w", err)
	}
	defer rows.Close()
	return collectAPIKeys(rows)
}

func (s *PostgresStore) RevokeAPIKey(ctx context.Context, id uuid.UUID) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE api_keys SET deleted_at = NOW(), updated_at = NOW()
		 WHERE id = $1 AND deleted_at IS NULL`, id)
	if err != nil {
		return fmt.Errorf("revoke api key: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func collectAPIKeys(rows pgx.Rows) ([]*models.APIKey, error) {
	var keys []*models.APIKey
	for rows.Next() {
		var k models.APIKey
		if err := rows.Scan(&k.ID, &k.Name, &k.KeyHash, &k.KeyPrefix, &k.Scopes,
			&k.LastUsedAt, &k.DeletedAt, &k.CreatedAt, &k.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan api key: %w", err)
		}
		keys = append(keys, &k)
	}
	return keys, rows.Err()
}

// isDuplicateKeyError checks if a pgx error is a unique constraint violation.
func isDuplicateKeyError(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505" // unique_violation
	}
	return false
}

// Compile-time check that PostgresStore implements Store.
var _ Store = (*PostgresStore)(nil)
