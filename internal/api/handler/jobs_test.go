package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/tulibraries/combine/internal/jobs"
	"github.com/tulibraries/combine/internal/session"
	"github.com/tulibraries/combine/internal/store"
	"github.com/tulibraries/combine/pkg/models"
)

// --- mocks ---

type mockRunner struct {
	createFn  func(params jobs.CreateParams) (*models.Job, error)
	startFn   func(jobID int64) (*models.Job, error)
	refreshFn func(jobID int64) (string, error)
	errorsFn  func(jobID int64) ([]*models.Record, error)
}

func (m *mockRunner) Create(_ context.Context, params jobs.CreateParams) (*models.Job, error) {
	return m.createFn(params)
}

func (m *mockRunner) Start(_ context.Context, jobID int64) (*models.Job, error) {
	return m.startFn(jobID)
}

func (m *mockRunner) RefreshStatus(_ context.Context, jobID int64) (string, error) {
	return m.refreshFn(jobID)
}

func (m *mockRunner) GetErrors(_ context.Context, jobID int64) ([]*models.Record, error) {
	return m.errorsFn(jobID)
}

type mockDeleter struct {
	fn func(jobID int64) error
}

func (m *mockDeleter) DeleteJob(_ context.Context, jobID int64) error {
	return m.fn(jobID)
}

type mockReader struct {
	getFn  func(id int64) (*models.Job, error)
	listFn func(recordGroupID int64) ([]*models.Job, error)
}

func (m *mockReader) GetJob(_ context.Context, id int64) (*models.Job, error) {
	return m.getFn(id)
}

func (m *mockReader) ListJobs(_ context.Context, recordGroupID int64) ([]*models.Job, error) {
	return m.listFn(recordGroupID)
}

type mockStatusCache struct {
	getFn func(jobID int64) (string, bool, error)
}

func (m *mockStatusCache) GetJobStatus(_ context.Context, jobID int64) (string, bool, error) {
	if m.getFn == nil {
		return "", false, nil
	}
	return m.getFn(jobID)
}

// --- helpers ---

// withURLParam injects a chi route parameter the way the router would.
func withURLParam(r *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

func parseErr(t *testing.T, rec *httptest.ResponseRecorder) (int, string) {
	t.Helper()
	var env struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&env); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return rec.Code, env.Error.Code
}

func parseData(t *testing.T, rec *httptest.ResponseRecorder, wantStatus int) map[string]any {
	t.Helper()
	if rec.Code != wantStatus {
		t.Fatalf("expected %d, got %d: %s", wantStatus, rec.Code, rec.Body.String())
	}
	var env struct {
		Data map[string]any `json:"data"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&env); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return env.Data
}

// --- tests ---

func TestCreateJobHandler_Success(t *testing.T) {
	var captured jobs.CreateParams
	runner := &mockRunner{createFn: func(params jobs.CreateParams) (*models.Job, error) {
		captured = params
		return &models.Job{ID: 99, JobType: params.JobType, Status: models.JobStatusInitializing}, nil
	}}
	h := NewCreateJobHandler(runner)
	rec := httptest.NewRecorder()

	body := map[string]any{
		"record_group_id": 2,
		"job_type":        "TransformJob",
		"input_job_ids":   []int64{42},
		"details":         map[string]any{"transformation_id": 5},
	}
	b, _ := json.Marshal(body)
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/jobs", bytes.NewReader(b)))

	data := parseData(t, rec, http.StatusCreated)
	if data["id"].(float64) != 99 {
		t.Errorf("unexpected id: %v", data["id"])
	}
	if captured.JobType != models.JobTypeTransform {
		t.Errorf("unexpected job type: %s", captured.JobType)
	}
	if len(captured.InputJobIDs) != 1 || captured.InputJobIDs[0] != 42 {
		t.Errorf("unexpected input ids: %v", captured.InputJobIDs)
	}
}

func TestCreateJobHandler_MissingJobType(t *testing.T) {
	h := NewCreateJobHandler(&mockRunner{})
	rec := httptest.NewRecorder()

	b, _ := json.Marshal(map[string]any{"record_group_id": 2})
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/jobs", bytes.NewReader(b)))

	status, code := parseErr(t, rec)
	if status != http.StatusBadRequest || code != "INVALID_REQUEST" {
		t.Errorf("expected 400 INVALID_REQUEST, got %d %s", status, code)
	}
}

func TestCreateJobHandler_UnknownJobType(t *testing.T) {
	runner := &mockRunner{createFn: func(jobs.CreateParams) (*models.Job, error) {
		return nil, jobs.ErrUnknownJobType
	}}
	h := NewCreateJobHandler(runner)
	rec := httptest.NewRecorder()

	b, _ := json.Marshal(map[string]any{"job_type": "NopeJob"})
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/jobs", bytes.NewReader(b)))

	status, code := parseErr(t, rec)
	if status != http.StatusBadRequest || code != "UNKNOWN_JOB_TYPE" {
		t.Errorf("expected 400 UNKNOWN_JOB_TYPE, got %d %s", status, code)
	}
}

func TestCreateJobHandler_DependencyMissing(t *testing.T) {
	runner := &mockRunner{createFn: func(jobs.CreateParams) (*models.Job, error) {
		return nil, jobs.ErrDependencyMissing
	}}
	h := NewCreateJobHandler(runner)
	rec := httptest.NewRecorder()

	b, _ := json.Marshal(map[string]any{"job_type": "TransformJob"})
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/jobs", bytes.NewReader(b)))

	status, code := parseErr(t, rec)
	if status != http.StatusUnprocessableEntity || code != "DEPENDENCY_MISSING" {
		t.Errorf("expected 422 DEPENDENCY_MISSING, got %d %s", status, code)
	}
}

func TestStartJobHandler_Accepted(t *testing.T) {
	runner := &mockRunner{startFn: func(jobID int64) (*models.Job, error) {
		return &models.Job{ID: jobID, Status: models.JobStatusWaiting}, nil
	}}
	h := NewStartJobHandler(runner)
	rec := httptest.NewRecorder()

	r := withURLParam(httptest.NewRequest(http.MethodPost, "/api/v1/jobs/99/start", nil), "jobID", "99")
	h.ServeHTTP(rec, r)

	data := parseData(t, rec, http.StatusAccepted)
	if data["status"] != models.JobStatusWaiting {
		t.Errorf("unexpected status: %v", data["status"])
	}
}

func TestStartJobHandler_NoActiveSession(t *testing.T) {
	runner := &mockRunner{startFn: func(int64) (*models.Job, error) {
		return nil, session.ErrNoActiveSession
	}}
	h := NewStartJobHandler(runner)
	rec := httptest.NewRecorder()

	r := withURLParam(httptest.NewRequest(http.MethodPost, "/api/v1/jobs/99/start", nil), "jobID", "99")
	h.ServeHTTP(rec, r)

	status, code := parseErr(t, rec)
	if status != http.StatusConflict || code != "NO_ACTIVE_SESSION" {
		t.Errorf("expected 409 NO_ACTIVE_SESSION, got %d %s", status, code)
	}
}

func TestStartJobHandler_AlreadySubmitted(t *testing.T) {
	runner := &mockRunner{startFn: func(int64) (*models.Job, error) {
		return nil, jobs.ErrAlreadySubmitted
	}}
	h := NewStartJobHandler(runner)
	rec := httptest.NewRecorder()

	r := withURLParam(httptest.NewRequest(http.MethodPost, "/api/v1/jobs/99/start", nil), "jobID", "99")
	h.ServeHTTP(rec, r)

	status, code := parseErr(t, rec)
	if status != http.StatusConflict || code != "ALREADY_SUBMITTED" {
		t.Errorf("expected 409 ALREADY_SUBMITTED, got %d %s", status, code)
	}
}

func TestStartJobHandler_MissingArtifact(t *testing.T) {
	runner := &mockRunner{startFn: func(int64) (*models.Job, error) {
		return nil, jobs.ErrArtifactMissing
	}}
	h := NewStartJobHandler(runner)
	rec := httptest.NewRecorder()

	r := withURLParam(httptest.NewRequest(http.MethodPost, "/api/v1/jobs/99/start", nil), "jobID", "99")
	h.ServeHTTP(rec, r)

	status, code := parseErr(t, rec)
	if status != http.StatusUnprocessableEntity || code != "ARTIFACT_MISSING" {
		t.Errorf("expected 422 ARTIFACT_MISSING, got %d %s", status, code)
	}
}

func TestStartJobHandler_RemoteFailure(t *testing.T) {
	runner := &mockRunner{startFn: func(int64) (*models.Job, error) {
		return nil, errors.New("connection refused")
	}}
	h := NewStartJobHandler(runner)
	rec := httptest.NewRecorder()

	r := withURLParam(httptest.NewRequest(http.MethodPost, "/api/v1/jobs/99/start", nil), "jobID", "99")
	h.ServeHTTP(rec, r)

	status, code := parseErr(t, rec)
	if status != http.StatusBadGateway || code != "REMOTE_SERVICE_ERROR" {
		t.Errorf("expected 502 REMOTE_SERVICE_ERROR, got %d %s", status, code)
	}
}

func TestGetJobHandler_RefreshParam(t *testing.T) {
	refreshed := false
	runner := &mockRunner{refreshFn: func(int64) (string, error) {
		refreshed = true
		return models.JobStatusAvailable, nil
	}}
	reader := &mockReader{getFn: func(id int64) (*models.Job, error) {
		return &models.Job{ID: id, Status: models.JobStatusAvailable}, nil
	}}
	consulted := false
	statuses := &mockStatusCache{getFn: func(int64) (string, bool, error) {
		consulted = true
		return models.JobStatusRunning, true, nil
	}}
	h := NewGetJobHandler(reader, runner, statuses)
	rec := httptest.NewRecorder()

	r := withURLParam(httptest.NewRequest(http.MethodGet, "/api/v1/jobs/99?refresh=true", nil), "jobID", "99")
	h.ServeHTTP(rec, r)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !refreshed {
		t.Error("expected refresh to be invoked")
	}
	if consulted {
		t.Error("expected an explicit refresh to bypass the status cache")
	}
}

func TestGetJobHandler_ServesCachedStatus(t *testing.T) {
	reader := &mockReader{getFn: func(id int64) (*models.Job, error) {
		return &models.Job{ID: id, Status: models.JobStatusWaiting}, nil
	}}
	statuses := &mockStatusCache{getFn: func(int64) (string, bool, error) {
		return models.JobStatusRunning, true, nil
	}}
	h := NewGetJobHandler(reader, &mockRunner{}, statuses)
	rec := httptest.NewRecorder()

	r := withURLParam(httptest.NewRequest(http.MethodGet, "/api/v1/jobs/99", nil), "jobID", "99")
	h.ServeHTTP(rec, r)

	data := parseData(t, rec, http.StatusOK)
	if data["status"] != models.JobStatusRunning {
		t.Errorf("expected cached status %q, got %v", models.JobStatusRunning, data["status"])
	}
}

func TestGetJobHandler_CacheMissKeepsRowStatus(t *testing.T) {
	reader := &mockReader{getFn: func(id int64) (*models.Job, error) {
		return &models.Job{ID: id, Status: models.JobStatusWaiting}, nil
	}}
	h := NewGetJobHandler(reader, &mockRunner{}, &mockStatusCache{})
	rec := httptest.NewRecorder()

	r := withURLParam(httptest.NewRequest(http.MethodGet, "/api/v1/jobs/99", nil), "jobID", "99")
	h.ServeHTTP(rec, r)

	data := parseData(t, rec, http.StatusOK)
	if data["status"] != models.JobStatusWaiting {
		t.Errorf("expected row status %q, got %v", models.JobStatusWaiting, data["status"])
	}
}

func TestGetJobHandler_FinishedJobIgnoresCache(t *testing.T) {
	reader := &mockReader{getFn: func(id int64) (*models.Job, error) {
		return &models.Job{ID: id, Status: models.JobStatusAvailable, Finished: true}, nil
	}}
	statuses := &mockStatusCache{getFn: func(int64) (string, bool, error) {
		return models.JobStatusRunning, true, nil
	}}
	h := NewGetJobHandler(reader, &mockRunner{}, statuses)
	rec := httptest.NewRecorder()

	r := withURLParam(httptest.NewRequest(http.MethodGet, "/api/v1/jobs/99", nil), "jobID", "99")
	h.ServeHTTP(rec, r)

	data := parseData(t, rec, http.StatusOK)
	if data["status"] != models.JobStatusAvailable {
		t.Errorf("expected row status %q, got %v", models.JobStatusAvailable, data["status"])
	}
}

func TestGetJobHandler_NotFound(t *testing.T) {
	reader := &mockReader{getFn: func(int64) (*models.Job, error) {
		return nil, store.ErrNotFound
	}}
	h := NewGetJobHandler(reader, &mockRunner{}, &mockStatusCache{})
	rec := httptest.NewRecorder()

	r := withURLParam(httptest.NewRequest(http.MethodGet, "/api/v1/jobs/99", nil), "jobID", "99")
	h.ServeHTTP(rec, r)

	status, code := parseErr(t, rec)
	if status != http.StatusNotFound || code != "NOT_FOUND" {
		t.Errorf("expected 404 NOT_FOUND, got %d %s", status, code)
	}
}

func TestGetJobHandler_BadID(t *testing.T) {
	h := NewGetJobHandler(&mockReader{}, &mockRunner{}, &mockStatusCache{})
	rec := httptest.NewRecorder()

	r := withURLParam(httptest.NewRequest(http.MethodGet, "/api/v1/jobs/abc", nil), "jobID", "abc")
	h.ServeHTTP(rec, r)

	status, code := parseErr(t, rec)
	if status != http.StatusBadRequest || code != "INVALID_REQUEST" {
		t.Errorf("expected 400 INVALID_REQUEST, got %d %s", status, code)
	}
}

func TestJobErrorsHandler_NilBecomesEmptyList(t *testing.T) {
	runner := &mockRunner{errorsFn: func(int64) ([]*models.Record, error) {
		return nil, nil
	}}
	h := NewJobErrorsHandler(runner)
	rec := httptest.NewRecorder()

	r := withURLParam(httptest.NewRequest(http.MethodGet, "/api/v1/jobs/42/errors", nil), "jobID", "42")
	h.ServeHTTP(rec, r)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var env struct {
		Data []*models.Record `json:"data"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&env); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if env.Data == nil {
		t.Error("expected empty list, got null")
	}
}

func TestDeleteJobHandler_NoContent(t *testing.T) {
	var deleted int64
	h := NewDeleteJobHandler(&mockDeleter{fn: func(jobID int64) error {
		deleted = jobID
		return nil
	}})
	rec := httptest.NewRecorder()

	r := withURLParam(httptest.NewRequest(http.MethodDelete, "/api/v1/jobs/42", nil), "jobID", "42")
	h.ServeHTTP(rec, r)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rec.Code)
	}
	if deleted != 42 {
		t.Errorf("expected job 42 deleted, got %d", deleted)
	}
}

func TestDeleteJobHandler_NotFound(t *testing.T) {
	h := NewDeleteJobHandler(&mockDeleter{fn: func(int64) error {
		return store.ErrNotFound
	}})
	rec := httptest.NewRecorder()

	r := withURLParam(httptest.NewRequest(http.MethodDelete, "/api/v1/jobs/42", nil), "jobID", "42")
	h.ServeHTTP(rec, r)

	status, code := parseErr(t, rec)
	if status != http.StatusNotFound || code != "NOT_FOUND" {
		t.Errorf("expected 404 NOT_FOUND, got %d %s", status, code)
	}
}
