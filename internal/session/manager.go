// Package session manages the lifecycle of the single active compute session
// that all job submissions funnel through.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/tulibraries/combine/internal/config"
	"github.com/tulibraries/combine/internal/livy"
	"github.com/tulibraries/combine/pkg/models"
)

// Sentinel errors for session lifecycle operations.
var (
	// ErrNoActiveSession means no session is active; the caller should create
	// one before submitting work.
	ErrNoActiveSession = errors.New("no active session")
	// ErrAmbiguousSession means more than one session row is marked active.
	// This is an operator-correctable inconsistency, never resolved by guessing.
	ErrAmbiguousSession = errors.New("multiple active sessions")
	// ErrSessionExists means an active session already exists or another
	// process holds the creation token.
	ErrSessionExists = errors.New("active session already exists")
)

// createTokenTTL bounds how long a crashed creator can block session creation.
const createTokenTTL = 2 * time.Minute

// Store is the subset of persistence the manager needs.
type Store interface {
	CreateSession(ctx context.Context, session *models.LivySession) error
	UpdateSession(ctx context.Context, session *models.LivySession) error
	ActiveSessions(ctx context.Context) ([]*models.LivySession, error)
}

// TokenCache serializes session creation across processes.
type TokenCache interface {
	AcquireSessionToken(ctx context.Context, ttl time.Duration) (bool, error)
	ReleaseSessionToken(ctx context.Context) error
}

// Manager owns the active-session invariant: at most one active session at
// steady state, created under a cluster-wide token.
type Manager struct {
	store  Store
	client livy.Client
	tokens TokenCache
	cfg    config.LivyConfig
	logger *slog.Logger
}

// NewManager creates a session Manager.
func NewManager(store Store, client livy.Client, tokens TokenCache, cfg config.LivyConfig, logger *slog.Logger) *Manager {
	return &Manager{store: store, client: client, tokens: tokens, cfg: cfg, logger: logger}
}

// GetActive returns the single active session. Zero active sessions is
// ErrNoActiveSession; more than one is ErrAmbiguousSession and must be
// resolved by an operator stopping the extras.
func (m *Manager) GetActive(ctx context.Context) (*models.LivySession, error) {
	sessions, err := m.store.ActiveSessions(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing active sessions: %w", err)
	}
	switch len(sessions) {
	case 0:
		return nil, ErrNoActiveSession
	case 1:
		return sessions[0], nil
	default:
		return nil, fmt.Errorf("%w: found %d", ErrAmbiguousSession, len(sessions))
	}
}

// Create starts a new remote session and persists it as the active one. It
// refuses if an active session already exists, and serializes concurrent
// creation through a shared token so two processes never both create.
func (m *Manager) Create(ctx context.Context) (*models.LivySession, error) {
	if _, err := m.GetActive(ctx); err == nil {
		return nil, ErrSessionExists
	} else if !errors.Is(err, ErrNoActiveSession) {
		return nil, err
	}

	acquired, err := m.tokens.AcquireSessionToken(ctx, createTokenTTL)
	if err != nil {
		return nil, fmt.Errorf("acquiring session creation token: %w", err)
	}
	if !acquired {
		return nil, ErrSessionExists
	}
	defer func() {
		if err := m.tokens.ReleaseSessionToken(context.WithoutCancel(ctx)); err != nil {
			m.logger.Warn("failed to release session creation token", "error", err)
		}
	}()

	// Re-check under the token: a concurrent creator may have created and
	// released between the first check and our acquisition.
	if _, err := m.GetActive(ctx); err == nil {
		return nil, ErrSessionExists
	} else if !errors.Is(err, ErrNoActiveSession) {
		return nil, err
	}

	handle, err := m.client.CreateSession(ctx, livy.SessionConfig{
		Kind:  m.cfg.SessionKind,
		Jars:  m.cfg.SessionJars,
		Files: m.cfg.SessionFiles,
		Conf: map[string]any{
			"spark.ui.port": m.cfg.SparkUIPort,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("creating remote session: %w", err)
	}

	sess := &models.LivySession{
		Name:             fmt.Sprintf("livy-session-%d", handle.ID),
		SessionID:        handle.ID,
		SessionURL:       handle.URL,
		Status:           handle.State,
		SessionTimestamp: handle.Timestamp,
		Active:           true,
	}
	if err := m.store.CreateSession(ctx, sess); err != nil {
		return nil, fmt.Errorf("persisting session: %w", err)
	}

	m.logger.Info("created compute session",
		"session_id", sess.SessionID, "status", sess.Status)
	return sess, nil
}

// Refresh reconciles the session row with the remote service. A vanished
// remote session marks the row gone and inactive rather than erroring: the
// remote having recycled it is a normal outcome, not a failure.
func (m *Manager) Refresh(ctx context.Context, sess *models.LivySession) error {
	status, err := m.client.SessionStatus(ctx, sess.SessionID)
	if errors.Is(err, livy.ErrNotFound) {
		sess.Status = models.SessionStatusGone
		sess.Active = false
		if err := m.store.UpdateSession(ctx, sess); err != nil {
			return fmt.Errorf("marking session gone: %w", err)
		}
		m.logger.Info("compute session gone", "session_id", sess.SessionID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("fetching remote session status: %w", err)
	}

	sess.Status = mapRemoteState(status.State)
	sess.SessionTimestamp = status.Timestamp
	if status.AppID != nil {
		sess.AppID = status.AppID
	}
	if status.DriverLogURL != nil {
		sess.DriverLogURL = status.DriverLogURL
	}
	if status.SparkUIURL != nil {
		sess.SparkUIURL = status.SparkUIURL
	}
	if !sess.Usable() {
		sess.Active = false
	}

	if err := m.store.UpdateSession(ctx, sess); err != nil {
		return fmt.Errorf("updating session: %w", err)
	}
	return nil
}

// Stop deletes the remote session and deactivates the row. A remote 404 is
// fine: the session is already gone.
func (m *Manager) Stop(ctx context.Context, sess *models.LivySession) error {
	if err := m.client.DeleteSession(ctx, sess.SessionID); err != nil && !errors.Is(err, livy.ErrNotFound) {
		return fmt.Errorf("deleting remote session: %w", err)
	}

	sess.Status = models.SessionStatusGone
	sess.Active = false
	if err := m.store.UpdateSession(ctx, sess); err != nil {
		return fmt.Errorf("deactivating session: %w", err)
	}

	m.logger.Info("stopped compute session", "session_id", sess.SessionID)
	return nil
}

// mapRemoteState folds the remote service's session states onto the local
// taxonomy. Terminal remote states all become "gone"; anything unrecognized
// is an error state.
func mapRemoteState(state string) string {
	switch state {
	case "not_started", "starting":
		return models.SessionStatusStarting
	case "idle":
		return models.SessionStatusIdle
	case "busy":
		return models.SessionStatusBusy
	case "shutting_down", "dead", "killed", "success":
		return models.SessionStatusGone
	default:
		return models.SessionStatusError
	}
}
