// Package models contains shared data models used across the Combine codebase.
package models

import "time"

// Livy session states as reported by the remote compute service. A session
// is usable only while starting, idle, or busy; "gone" is terminal and a new
// session must be created.
const (
	SessionStatusStarting = "starting"
	SessionStatusIdle     = "idle"
	SessionStatusBusy     = "busy"
	SessionStatusGone     = "gone"
	SessionStatusError    = "error"
)

// LivySession tracks one remote compute session's lifecycle. At most one row
// may be active at steady state; all job submissions funnel through it.
type LivySession struct {
	ID               int64      `db:"id"                json:"id"`
	Name             string     `db:"name"              json:"name"`
	SessionID        int        `db:"session_id"        json:"session_id"`
	SessionURL       string     `db:"session_url"       json:"session_url"`
	Status           string     `db:"status"            json:"status"`
	SessionTimestamp string     `db:"session_timestamp" json:"session_timestamp"`
	AppID            *string    `db:"app_id"            json:"app_id,omitempty"`
	DriverLogURL     *string    `db:"driver_log_url"    json:"driver_log_url,omitempty"`
	SparkUIURL       *string    `db:"spark_ui_url"      json:"spark_ui_url,omitempty"`
	Active           bool       `db:"active"            json:"active"`
	CreatedAt        time.Time  `db:"created_at"        json:"created_at"`
	UpdatedAt        *time.Time `db:"updated_at"        json:"updated_at,omitempty"`
}

// Usable reports whether the session can accept statements.
func (s *LivySession) Usable() bool {
	switch s.Status {
	case SessionStatusStarting, SessionStatusIdle, SessionStatusBusy:
		return true
	}
	return false
}
