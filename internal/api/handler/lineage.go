package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/tulibraries/combine/internal/api/response"
	"github.com/tulibraries/combine/internal/lineage"
	"github.com/tulibraries/combine/internal/store"
	"github.com/tulibraries/combine/pkg/models"
)

// RecordReader looks up records for lineage resolution.
type RecordReader interface {
	GetRecordByJobAndRecordID(ctx context.Context, jobID int64, recordID string) (*models.Record, error)
	PublishedRecordByID(ctx context.Context, recordID string) (*models.Record, error)
	ListRecords(ctx context.Context, jobID int64, errorsOnly bool) ([]*models.Record, error)
	ListIndexFailures(ctx context.Context, jobID int64) ([]*models.IndexMappingFailure, error)
}

// LineageResolver resolves a record's chain across the job graph.
type LineageResolver interface {
	Resolve(ctx context.Context, record *models.Record, opts lineage.Options) ([]*models.Record, error)
}

// NewRecordLineageHandler returns the handler for
// GET /api/v1/jobs/{jobID}/records/{recordID}/lineage. Query parameters:
// downstream=false limits the walk to ancestors, input_only=true returns only
// the nearest upstream match.
func NewRecordLineageHandler(reader RecordReader, resolver LineageResolver) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		jobID, ok := jobIDParam(w, r)
		if !ok {
			return
		}
		recordID := chi.URLParam(r, "recordID")

		record, err := reader.GetRecordByJobAndRecordID(r.Context(), jobID, recordID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				response.Error(w, http.StatusNotFound, "NOT_FOUND", "Record not found", nil)
				return
			}
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR",
				"An unexpected error occurred", nil)
			return
		}

		chain, err := resolver.Resolve(r.Context(), record, lineage.Options{
			IncludeDownstream: r.URL.Query().Get("downstream") != "false",
			InputRecordOnly:   r.URL.Query().Get("input_only") == "true",
		})
		if err != nil {
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR",
				"Could not resolve record lineage", nil)
			return
		}
		if chain == nil {
			chain = []*models.Record{}
		}
		response.JSON(w, chain)
	}
}

// NewListRecordsHandler returns the handler for
// GET /api/v1/jobs/{jobID}/records. errors_only=true narrows to failed records.
func NewListRecordsHandler(reader RecordReader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		jobID, ok := jobIDParam(w, r)
		if !ok {
			return
		}

		records, err := reader.ListRecords(r.Context(), jobID, r.URL.Query().Get("errors_only") == "true")
		if err != nil {
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR",
				"An unexpected error occurred", nil)
			return
		}
		if records == nil {
			records = []*models.Record{}
		}
		response.JSON(w, records)
	}
}

// NewJobIndexFailuresHandler returns the handler for
// GET /api/v1/jobs/{jobID}/index-failures: records the remote indexing task
// could not map, kept separate from transform-time record errors.
func NewJobIndexFailuresHandler(reader RecordReader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		jobID, ok := jobIDParam(w, r)
		if !ok {
			return
		}

		failures, err := reader.ListIndexFailures(r.Context(), jobID)
		if err != nil {
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR",
				"An unexpected error occurred", nil)
			return
		}
		if failures == nil {
			failures = []*models.IndexMappingFailure{}
		}
		response.JSON(w, failures)
	}
}

// NewPublishedRecordHandler returns the handler for
// GET /api/v1/published/records/{recordID}: the single published record with
// that id, across all publish sets.
func NewPublishedRecordHandler(reader RecordReader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		recordID := chi.URLParam(r, "recordID")

		record, err := reader.PublishedRecordByID(r.Context(), recordID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				response.Error(w, http.StatusNotFound, "NOT_FOUND",
					"No published record with that id", nil)
				return
			}
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR",
				"An unexpected error occurred", nil)
			return
		}
		response.JSON(w, record)
	}
}
