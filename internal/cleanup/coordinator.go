// Package cleanup reclaims the distributed side effects of a deleted job: the
// remote statement, published artifacts, search indices, and on-disk output.
// Every step is best-effort; the job row's deletion never waits on any of
// them succeeding.
package cleanup

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/tulibraries/combine/internal/config"
	"github.com/tulibraries/combine/internal/jobs"
	"github.com/tulibraries/combine/internal/livy"
	"github.com/tulibraries/combine/internal/search"
	"github.com/tulibraries/combine/internal/store"
	"github.com/tulibraries/combine/pkg/models"
)

// avroPartPattern extracts the hash segment shared by all part files of one
// job output, e.g. part-r-00000-<hash>.avro. Published symlinks carry the
// same hash in their filename.
var avroPartPattern = regexp.MustCompile(`part-r-[0-9]+-(.+?)\.avro`)

// Coordinator runs the cleanup protocol for one job at a time.
type Coordinator struct {
	store   store.Store
	client  livy.Client
	search  search.Client
	storage config.StorageConfig
	logger  *slog.Logger
}

// NewCoordinator creates a cleanup Coordinator.
func NewCoordinator(st store.Store, client livy.Client, searchClient search.Client, storage config.StorageConfig, logger *slog.Logger) *Coordinator {
	return &Coordinator{
		store:   st,
		client:  client,
		search:  searchClient,
		storage: storage,
		logger:  logger,
	}
}

// DeleteJob runs the cleanup protocol and then removes the job row. Cleanup
// failures are logged and swallowed; only the row deletion itself can fail
// this call.
func (c *Coordinator) DeleteJob(ctx context.Context, jobID int64) error {
	job, err := c.store.GetJob(ctx, jobID)
	if err != nil {
		return fmt.Errorf("loading job %d: %w", jobID, err)
	}

	c.Run(ctx, job)

	if err := c.store.DeleteJob(ctx, job.ID); err != nil {
		return fmt.Errorf("deleting job row: %w", err)
	}
	c.logger.Info("deleted job", "job_id", job.ID, "job_type", job.JobType)
	return nil
}

// Run reclaims a job's side effects. Each step is independently caught and
// logged; a failed step never aborts the remaining steps. Running twice on an
// already-cleaned job does nothing: every target's absence is a non-error.
func (c *Coordinator) Run(ctx context.Context, job *models.Job) {
	c.cancelStatement(ctx, job)
	if job.JobType == models.JobTypePublish {
		c.removePublished(ctx, job)
	}
	c.removeJobIndex(ctx, job)
	c.removeOutput(ctx, job)
}

// cancelStatement stops the remote statement if the job still looks live.
func (c *Coordinator) cancelStatement(ctx context.Context, job *models.Job) {
	if job.StatementURL == nil {
		return
	}

	state, err := c.client.StatementStatus(ctx, *job.StatementURL)
	if err != nil {
		c.logger.Debug("could not confirm statement state before delete",
			"job_id", job.ID, "error", err)
		return
	}
	if state != models.JobStatusWaiting && state != models.JobStatusRunning {
		return
	}

	if err := c.client.CancelStatement(ctx, *job.StatementURL); err != nil {
		c.logger.Warn("could not cancel remote statement",
			"job_id", job.ID, "error", err)
	}
}

// removePublished removes published symlinks whose filename carries this
// job's output hash and clears the record group's publish set from the
// published index.
func (c *Coordinator) removePublished(ctx context.Context, job *models.Job) {
	if hash := c.outputFilenameHash(job); hash != "" {
		c.removePublishedSymlinks(job, hash)
	}

	group, err := c.store.GetRecordGroup(ctx, job.RecordGroupID)
	if err != nil {
		c.logger.Warn("could not resolve record group for published index cleanup",
			"job_id", job.ID, "error", err)
		return
	}

	exists, err := c.search.IndexExists(ctx, search.PublishedIndex)
	if err != nil {
		c.logger.Warn("could not check published index",
			"job_id", job.ID, "error", err)
		return
	}
	if !exists {
		return
	}

	deleted, err := c.search.DeleteByQuery(ctx, search.PublishedIndex, "publish_set_id", group.PublishSetID)
	if err != nil {
		c.logger.Warn("could not remove published records from index",
			"job_id", job.ID, "publish_set_id", group.PublishSetID, "error", err)
		return
	}
	c.logger.Debug("removed published records",
		"job_id", job.ID, "publish_set_id", group.PublishSetID, "deleted", deleted)
}

func (c *Coordinator) removePublishedSymlinks(job *models.Job, hash string) {
	publishedDir := c.storage.PublishedDir()
	entries, err := os.ReadDir(publishedDir)
	if err != nil {
		c.logger.Debug("could not list published directory",
			"job_id", job.ID, "dir", publishedDir, "error", err)
		return
	}

	for _, entry := range entries {
		if !strings.Contains(entry.Name(), hash) {
			continue
		}
		if err := os.Remove(filepath.Join(publishedDir, entry.Name())); err != nil {
			c.logger.Warn("could not remove published symlink",
				"job_id", job.ID, "file", entry.Name(), "error", err)
		}
	}
}

// removeJobIndex drops the job's own search index when present.
func (c *Coordinator) removeJobIndex(ctx context.Context, job *models.Job) {
	exists, err := c.search.IndexExists(ctx, job.IndexName())
	if err != nil {
		c.logger.Warn("could not check job index",
			"job_id", job.ID, "index", job.IndexName(), "error", err)
		return
	}
	if !exists {
		return
	}

	if err := c.search.DeleteIndex(ctx, job.IndexName()); err != nil {
		c.logger.Warn("could not remove job index",
			"job_id", job.ID, "index", job.IndexName(), "error", err)
	}
}

// removeOutput removes the job's output tree and its indexing-results tree,
// local filesystem scheme only.
func (c *Coordinator) removeOutput(ctx context.Context, job *models.Job) {
	if job.LocalOutput() && job.OutputAsFilesystem() != "" {
		if err := os.RemoveAll(job.OutputAsFilesystem()); err != nil {
			c.logger.Warn("could not remove job output directory",
				"job_id", job.ID, "dir", job.OutputAsFilesystem(), "error", err)
		}
	}

	indexingDir := c.indexingDir(ctx, job)
	if indexingDir == "" {
		return
	}
	if err := os.RemoveAll(indexingDir); err != nil {
		c.logger.Warn("could not remove indexing results",
			"job_id", job.ID, "dir", indexingDir, "error", err)
	}
}

// indexingDir resolves the local path of the job's indexing-results
// directory, empty when the storage root is not local.
func (c *Coordinator) indexingDir(ctx context.Context, job *models.Job) string {
	if !strings.HasPrefix(c.storage.Root, "file://") {
		return ""
	}

	group, err := c.store.GetRecordGroup(ctx, job.RecordGroupID)
	if err != nil {
		c.logger.Debug("could not resolve record group for indexing cleanup",
			"job_id", job.ID, "error", err)
		return ""
	}

	loc := jobs.IndexingResultsLocation(c.storage.Root, group.OrganizationID, group.ID, job.ID)
	return strings.TrimPrefix(loc, "file://")
}

// outputFilenameHash extracts the shared hash from the job's avro part files,
// empty when the output is gone or holds no part files.
func (c *Coordinator) outputFilenameHash(job *models.Job) string {
	if !job.LocalOutput() {
		return ""
	}

	entries, err := os.ReadDir(job.OutputAsFilesystem())
	if err != nil {
		return ""
	}
	for _, entry := range entries {
		if m := avroPartPattern.FindStringSubmatch(entry.Name()); m != nil {
			return m[1]
		}
	}
	return ""
}
