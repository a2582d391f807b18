// Package search talks to the Elasticsearch-shaped index that job results are
// mapped into. Only the small surface the control plane needs is covered:
// existence checks, index deletion, and delete-by-query.
package search

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

// PublishedIndex holds records across all published sets.
const PublishedIndex = "published"

// JobIndex returns the deterministic index name for a job's mapped records.
func JobIndex(jobID int64) string {
	return fmt.Sprintf("j%d", jobID)
}

// ErrSearchService covers unexpected responses and transport failures.
var ErrSearchService = errors.New("search service error")

// Client is the interface for search index maintenance.
type Client interface {
	IndexExists(ctx context.Context, name string) (bool, error)
	DeleteIndex(ctx context.Context, name string) error
	DeleteByQuery(ctx context.Context, index, field, value string) (int64, error)
}

// HTTPClient implements Client over the index server's HTTP API.
type HTTPClient struct {
	baseURL string
	client  *http.Client
}

// NewHTTPClient creates a new search HTTP client.
func NewHTTPClient(baseURL string, timeout time.Duration) *HTTPClient {
	return &HTTPClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
	}
}

func (c *HTTPClient) IndexExists(ctx context.Context, name string) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, c.baseURL+"/"+name, nil)
	if err != nil {
		return false, fmt.Errorf("building request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrSearchService, err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		return true, nil
	case http.StatusNotFound:
		return false, nil
	default:
		return false, fmt.Errorf("%w: index exists status %d", ErrSearchService, resp.StatusCode)
	}
}

// DeleteIndex removes an index. Deleting an absent index is a no-op, so the
// call is idempotent.
func (c *HTTPClient) DeleteIndex(ctx context.Context, name string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.baseURL+"/"+name, nil)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSearchService, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("%w: delete index status %d", ErrSearchService, resp.StatusCode)
	}
	return nil
}

// DeleteByQuery removes all documents in index whose field matches value and
// returns the number deleted. A missing index deletes nothing.
func (c *HTTPClient) DeleteByQuery(ctx context.Context, index, field, value string) (int64, error) {
	body, err := json.Marshal(deleteByQueryRequest{
		Query: matchQuery{Match: map[string]string{field: value}},
	})
	if err != nil {
		return 0, fmt.Errorf("encoding query: %w", err)
	}

	u := fmt.Sprintf("%s/%s/_delete_by_query", c.baseURL, index)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(body))
	if err != nil {
		return 0, fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrSearchService, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return 0, nil
	}
	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("%w: delete by query status %d", ErrSearchService, resp.StatusCode)
	}

	var out deleteByQueryResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return 0, fmt.Errorf("%w: decoding response: %v", ErrSearchService, err)
	}
	return out.Deleted, nil
}

// --- request/response types ---

type deleteByQueryRequest struct {
	Query matchQuery `json:"query"`
}

type matchQuery struct {
	Match map[string]string `json:"match"`
}

type deleteByQueryResponse struct {
	Deleted int64 `json:"deleted"`
}

// Compile-time check that HTTPClient implements Client.
var _ Client = (*HTTPClient)(nil)
