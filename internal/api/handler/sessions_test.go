package handler

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/tulibraries/combine/internal/session"
	"github.com/tulibraries/combine/pkg/models"
)

type mockSessionManager struct {
	getActiveFn func() (*models.LivySession, error)
	createFn    func() (*models.LivySession, error)
	refreshFn   func(sess *models.LivySession) error
	stopFn      func(sess *models.LivySession) error
}

func (m *mockSessionManager) GetActive(context.Context) (*models.LivySession, error) {
	return m.getActiveFn()
}

func (m *mockSessionManager) Create(context.Context) (*models.LivySession, error) {
	return m.createFn()
}

func (m *mockSessionManager) Refresh(_ context.Context, sess *models.LivySession) error {
	return m.refreshFn(sess)
}

func (m *mockSessionManager) Stop(_ context.Context, sess *models.LivySession) error {
	return m.stopFn(sess)
}

func idleSession() *models.LivySession {
	return &models.LivySession{ID: 1, SessionID: 3, Status: models.SessionStatusIdle, Active: true}
}

func TestCreateSessionHandler_Created(t *testing.T) {
	mgr := &mockSessionManager{createFn: func() (*models.LivySession, error) {
		return idleSession(), nil
	}}
	rec := httptest.NewRecorder()
	NewCreateSessionHandler(mgr).ServeHTTP(rec,
		httptest.NewRequest(http.MethodPost, "/api/v1/sessions", nil))

	data := parseData(t, rec, http.StatusCreated)
	if data["session_id"].(float64) != 3 {
		t.Errorf("unexpected session_id: %v", data["session_id"])
	}
}

func TestCreateSessionHandler_SessionExists(t *testing.T) {
	mgr := &mockSessionManager{createFn: func() (*models.LivySession, error) {
		return nil, session.ErrSessionExists
	}}
	rec := httptest.NewRecorder()
	NewCreateSessionHandler(mgr).ServeHTTP(rec,
		httptest.NewRequest(http.MethodPost, "/api/v1/sessions", nil))

	status, code := parseErr(t, rec)
	if status != http.StatusConflict || code != "SESSION_EXISTS" {
		t.Errorf("expected 409 SESSION_EXISTS, got %d %s", status, code)
	}
}

func TestCreateSessionHandler_RemoteFailure(t *testing.T) {
	mgr := &mockSessionManager{createFn: func() (*models.LivySession, error) {
		return nil, errors.New("connection refused")
	}}
	rec := httptest.NewRecorder()
	NewCreateSessionHandler(mgr).ServeHTTP(rec,
		httptest.NewRequest(http.MethodPost, "/api/v1/sessions", nil))

	status, code := parseErr(t, rec)
	if status != http.StatusBadGateway || code != "REMOTE_SERVICE_ERROR" {
		t.Errorf("expected 502 REMOTE_SERVICE_ERROR, got %d %s", status, code)
	}
}

func TestGetActiveSessionHandler_NoActiveSession(t *testing.T) {
	mgr := &mockSessionManager{getActiveFn: func() (*models.LivySession, error) {
		return nil, session.ErrNoActiveSession
	}}
	rec := httptest.NewRecorder()
	NewGetActiveSessionHandler(mgr).ServeHTTP(rec,
		httptest.NewRequest(http.MethodGet, "/api/v1/sessions/active", nil))

	status, code := parseErr(t, rec)
	if status != http.StatusNotFound || code != "NO_ACTIVE_SESSION" {
		t.Errorf("expected 404 NO_ACTIVE_SESSION, got %d %s", status, code)
	}
}

func TestGetActiveSessionHandler_AmbiguousSession(t *testing.T) {
	mgr := &mockSessionManager{getActiveFn: func() (*models.LivySession, error) {
		return nil, session.ErrAmbiguousSession
	}}
	rec := httptest.NewRecorder()
	NewGetActiveSessionHandler(mgr).ServeHTTP(rec,
		httptest.NewRequest(http.MethodGet, "/api/v1/sessions/active", nil))

	status, code := parseErr(t, rec)
	if status != http.StatusConflict || code != "AMBIGUOUS_SESSION" {
		t.Errorf("expected 409 AMBIGUOUS_SESSION, got %d %s", status, code)
	}
}

func TestGetActiveSessionHandler_RefreshParam(t *testing.T) {
	refreshed := false
	mgr := &mockSessionManager{
		getActiveFn: func() (*models.LivySession, error) { return idleSession(), nil },
		refreshFn: func(*models.LivySession) error {
			refreshed = true
			return nil
		},
	}
	rec := httptest.NewRecorder()
	NewGetActiveSessionHandler(mgr).ServeHTTP(rec,
		httptest.NewRequest(http.MethodGet, "/api/v1/sessions/active?refresh=true", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !refreshed {
		t.Error("expected refresh to be invoked")
	}
}

func TestGetActiveSessionHandler_SkipsRefreshByDefault(t *testing.T) {
	mgr := &mockSessionManager{
		getActiveFn: func() (*models.LivySession, error) { return idleSession(), nil },
		refreshFn: func(*models.LivySession) error {
			t.Fatal("refresh should not be invoked without refresh=true")
			return nil
		},
	}
	rec := httptest.NewRecorder()
	NewGetActiveSessionHandler(mgr).ServeHTTP(rec,
		httptest.NewRequest(http.MethodGet, "/api/v1/sessions/active", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestStopSessionHandler_StopsActive(t *testing.T) {
	var stopped *models.LivySession
	mgr := &mockSessionManager{
		getActiveFn: func() (*models.LivySession, error) { return idleSession(), nil },
		stopFn: func(sess *models.LivySession) error {
			stopped = sess
			return nil
		},
	}
	rec := httptest.NewRecorder()
	NewStopSessionHandler(mgr).ServeHTTP(rec,
		httptest.NewRequest(http.MethodDelete, "/api/v1/sessions/active", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if stopped == nil || stopped.SessionID != 3 {
		t.Errorf("unexpected stopped session: %+v", stopped)
	}
}

func TestStopSessionHandler_NoActiveSession(t *testing.T) {
	mgr := &mockSessionManager{getActiveFn: func() (*models.LivySession, error) {
		return nil, session.ErrNoActiveSession
	}}
	rec := httptest.NewRecorder()
	NewStopSessionHandler(mgr).ServeHTTP(rec,
		httptest.NewRequest(http.MethodDelete, "/api/v1/sessions/active", nil))

	status, code := parseErr(t, rec)
	if status != http.StatusNotFound || code != "NO_ACTIVE_SESSION" {
		t.Errorf("expected 404 NO_ACTIVE_SESSION, got %d %s", status, code)
	}
}
