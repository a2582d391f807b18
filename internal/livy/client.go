// Package livy is a thin HTTP client for a remote Livy-style compute session
// service. Every call is one bounded round trip; retry policy belongs to
// callers.
package livy

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// Sentinel errors for Livy client failures.
var (
	// ErrNotFound means the session or statement no longer exists on the
	// remote service. Callers must treat this as "gone", never as fatal.
	ErrNotFound = errors.New("livy resource not found")
	// ErrRemoteService covers any other non-2xx response, malformed payload,
	// or transport failure. Surfaced immediately, never retried here.
	ErrRemoteService = errors.New("livy remote service error")
)

// Client is the interface for driving the remote compute session service.
type Client interface {
	CreateSession(ctx context.Context, cfg SessionConfig) (*SessionHandle, error)
	SessionStatus(ctx context.Context, sessionID int) (*SessionStatus, error)
	DeleteSession(ctx context.Context, sessionID int) error
	SubmitStatement(ctx context.Context, sessionID int, code string) (*StatementHandle, error)
	ListStatements(ctx context.Context, sessionID int) ([]StatementHandle, error)
	StatementStatus(ctx context.Context, statementURL string) (string, error)
	CancelStatement(ctx context.Context, statementURL string) error
}

// SessionConfig is the body POSTed to /sessions.
type SessionConfig struct {
	Kind  string         `json:"kind"`
	Jars  []string       `json:"jars,omitempty"`
	Files []string       `json:"files,omitempty"`
	Conf  map[string]any `json:"conf,omitempty"`
}

// SessionHandle is returned from session creation.
type SessionHandle struct {
	ID        int
	State     string
	URL       string // Location header, path under the Livy host
	Timestamp string // Date header
}

// SessionStatus is the remote view of one session.
type SessionStatus struct {
	State        string
	AppID        *string
	DriverLogURL *string
	SparkUIURL   *string
	Timestamp    string
}

// StatementHandle identifies one submitted statement.
type StatementHandle struct {
	ID    int
	State string
	URL   string // Location header where present, else derived
}

// HTTPClient implements Client against one fixed Livy host:port.
type HTTPClient struct {
	baseURL string
	client  *http.Client
}

// NewHTTPClient creates a new Livy HTTP client.
func NewHTTPClient(baseURL string, timeout time.Duration) *HTTPClient {
	return &HTTPClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
	}
}

func (c *HTTPClient) CreateSession(ctx context.Context, cfg SessionConfig) (*SessionHandle, error) {
	resp, err := c.do(ctx, http.MethodPost, "/sessions", cfg)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: create session status %d", ErrRemoteService, resp.StatusCode)
	}

	var body sessionResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("%w: decoding session response: %v", ErrRemoteService, err)
	}

	return &SessionHandle{
		ID:        body.ID,
		State:     body.State,
		URL:       resp.Header.Get("Location"),
		Timestamp: resp.Header.Get("Date"),
	}, nil
}

func (c *HTTPClient) SessionStatus(ctx context.Context, sessionID int) (*SessionStatus, error) {
	resp, err := c.do(ctx, http.MethodGet, fmt.Sprintf("/sessions/%d", sessionID), nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, ErrNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: session status %d", ErrRemoteService, resp.StatusCode)
	}

	var body sessionResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("%w: decoding session response: %v", ErrRemoteService, err)
	}

	status := &SessionStatus{
		State:     body.State,
		AppID:     body.AppID,
		Timestamp: resp.Header.Get("Date"),
	}
	if body.AppInfo != nil {
		status.DriverLogURL = body.AppInfo.DriverLogURL
		status.SparkUIURL = body.AppInfo.SparkUIURL
	}
	return status, nil
}

func (c *HTTPClient) DeleteSession(ctx context.Context, sessionID int) error {
	resp, err := c.do(ctx, http.MethodDelete, fmt.Sprintf("/sessions/%d", sessionID), nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return ErrNotFound
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("%w: delete session status %d", ErrRemoteService, resp.StatusCode)
	}
	return nil
}

func (c *HTTPClient) SubmitStatement(ctx context.Context, sessionID int, code string) (*StatementHandle, error) {
	resp, err := c.do(ctx, http.MethodPost, fmt.Sprintf("/sessions/%d/statements", sessionID), statementRequest{Code: code})
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, ErrNotFound
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: submit statement status %d", ErrRemoteService, resp.StatusCode)
	}

	var body statementResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("%w: decoding statement response: %v", ErrRemoteService, err)
	}

	loc := resp.Header.Get("Location")
	if loc == "" {
		loc = fmt.Sprintf("/sessions/%d/statements/%d", sessionID, body.ID)
	}
	return &StatementHandle{ID: body.ID, State: body.State, URL: loc}, nil
}

// ListStatements returns all statements for a session.
func (c *HTTPClient) ListStatements(ctx context.Context, sessionID int) ([]StatementHandle, error) {
	resp, err := c.do(ctx, http.MethodGet, fmt.Sprintf("/sessions/%d/statements", sessionID), nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, ErrNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: list statements status %d", ErrRemoteService, resp.StatusCode)
	}

	var body statementsResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("%w: decoding statements response: %v", ErrRemoteService, err)
	}

	handles := make([]StatementHandle, 0, len(body.Statements))
	for _, s := range body.Statements {
		handles = append(handles, StatementHandle{
			ID:    s.ID,
			State: s.State,
			URL:   fmt.Sprintf("/sessions/%d/statements/%d", sessionID, s.ID),
		})
	}
	return handles, nil
}

// StatementStatus returns the remote state of a statement by its URL. A 400
// is treated like a 404: Livy answers 400 for statements of a recycled
// session, and both mean the statement is gone.
func (c *HTTPClient) StatementStatus(ctx context.Context, statementURL string) (string, error) {
	resp, err := c.do(ctx, http.MethodGet, statementURL, nil)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusBadRequest {
		return "", ErrNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: statement status %d", ErrRemoteService, resp.StatusCode)
	}

	var body statementResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", fmt.Errorf("%w: decoding statement response: %v", ErrRemoteService, err)
	}
	return body.State, nil
}

func (c *HTTPClient) CancelStatement(ctx context.Context, statementURL string) error {
	resp, err := c.do(ctx, http.MethodPost, statementURL+"/cancel", nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusBadRequest {
		return ErrNotFound
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("%w: cancel statement status %d", ErrRemoteService, resp.StatusCode)
	}
	return nil
}

func (c *HTTPClient) do(ctx context.Context, method, path string, payload any) (*http.Response, error) {
	var body *bytes.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("encoding request: %w", err)
		}
		body = bytes.NewReader(data)
	} else {
		body = bytes.NewReader(nil)
	}

	u := c.baseURL + "/" + strings.TrimLeft(path, "/")
	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, classifyError(err)
	}
	return resp, nil
}

// classifyError maps transport-level errors onto ErrRemoteService. A remote
// outage surfaces immediately rather than being retried here.
func classifyError(err error) error {
	return fmt.Errorf("%w: %v", ErrRemoteService, err)
}

// --- Livy response types ---

type sessionResponse struct {
	ID      int      `json:"id"`
	State   string   `json:"state"`
	AppID   *string  `json:"appId,omitempty"`
	AppInfo *appInfo `json:"appInfo,omitempty"`
}

type appInfo struct {
	DriverLogURL *string `json:"driverLogUrl,omitempty"`
	SparkUIURL   *string `json:"sparkUiUrl,omitempty"`
}

type statementRequest struct {
	Code string `json:"code"`
}

type statementResponse struct {
	ID    int    `json:"id"`
	State string `json:"state"`
}

type statementsResponse struct {
	Statements []statementResponse `json:"statements"`
}

// Compile-time check that HTTPClient implements Client.
var _ Client = (*HTTPClient)(nil)
