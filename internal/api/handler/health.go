package handler

import (
	"context"
	"net/http"

	"github.com/tulibraries/combine/internal/api/response"
)

// Pinger reports liveness of one dependency.
type Pinger interface {
	Ping(ctx context.Context) error
}

// NewHealthHandler returns the handler for GET /api/v1/health. Degraded
// dependencies are reported but do not fail the check; the process is up.
func NewHealthHandler(db, cache Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status := healthResponse{Status: "ok", Database: "ok", Cache: "ok"}
		if err := db.Ping(r.Context()); err != nil {
			status.Status = "degraded"
			status.Database = "unreachable"
		}
		if err := cache.Ping(r.Context()); err != nil {
			status.Status = "degraded"
			status.Cache = "unreachable"
		}
		response.JSON(w, status)
	}
}

type healthResponse struct {
	Status   string `json:"status"`
	Database string `json:"database"`
	Cache    string `json:"cache"`
}
