// Package handler contains the HTTP handlers for the control-plane API.
package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/tulibraries/combine/internal/api/response"
	"github.com/tulibraries/combine/internal/session"
	"github.com/tulibraries/combine/pkg/models"
)

// SessionManager defines the session operations the handlers depend on.
type SessionManager interface {
	GetActive(ctx context.Context) (*models.LivySession, error)
	Create(ctx context.Context) (*models.LivySession, error)
	Refresh(ctx context.Context, sess *models.LivySession) error
	Stop(ctx context.Context, sess *models.LivySession) error
}

// NewCreateSessionHandler returns the handler for POST /api/v1/sessions.
func NewCreateSessionHandler(mgr SessionManager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, err := mgr.Create(r.Context())
		if err != nil {
			switch {
			case errors.Is(err, session.ErrSessionExists):
				response.Error(w, http.StatusConflict, "SESSION_EXISTS",
					"An active session already exists", nil)
			case errors.Is(err, session.ErrAmbiguousSession):
				response.Error(w, http.StatusConflict, "AMBIGUOUS_SESSION",
					"Multiple active sessions found; stop the extras first", nil)
			default:
				response.Error(w, http.StatusBadGateway, "REMOTE_SERVICE_ERROR",
					"Could not create remote session", nil)
			}
			return
		}
		response.Created(w, sess)
	}
}

// NewGetActiveSessionHandler returns the handler for GET /api/v1/sessions/active.
// A truthy refresh query parameter reconciles with the remote service first.
func NewGetActiveSessionHandler(mgr SessionManager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, err := mgr.GetActive(r.Context())
		if err != nil {
			writeSessionError(w, err)
			return
		}

		if r.URL.Query().Get("refresh") == "true" {
			if err := mgr.Refresh(r.Context(), sess); err != nil {
				response.Error(w, http.StatusBadGateway, "REMOTE_SERVICE_ERROR",
					"Could not refresh session status", nil)
				return
			}
		}
		response.JSON(w, sess)
	}
}

// NewStopSessionHandler returns the handler for DELETE /api/v1/sessions/active.
func NewStopSessionHandler(mgr SessionManager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, err := mgr.GetActive(r.Context())
		if err != nil {
			writeSessionError(w, err)
			return
		}

		if err := mgr.Stop(r.Context(), sess); err != nil {
			response.Error(w, http.StatusBadGateway, "REMOTE_SERVICE_ERROR",
				"Could not stop session", nil)
			return
		}
		response.JSON(w, sess)
	}
}

func writeSessionError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, session.ErrNoActiveSession):
		response.Error(w, http.StatusNotFound, "NO_ACTIVE_SESSION",
			"No active session; create one first", nil)
	case errors.Is(err, session.ErrAmbiguousSession):
		response.Error(w, http.StatusConflict, "AMBIGUOUS_SESSION",
			"Multiple active sessions found; stop the extras first", nil)
	default:
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR",
			"An unexpected error occurred", nil)
	}
}
