package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	mw "github.com/tulibraries/combine/internal/api/middleware"
	"github.com/tulibraries/combine/internal/api/response"
)

// Dependencies holds all handler and middleware dependencies for the router.
type Dependencies struct {
	Auth      *mw.Auth
	RateLimit *mw.RateLimit

	HealthHandler http.HandlerFunc

	CreateSessionHandler    http.HandlerFunc
	GetActiveSessionHandler http.HandlerFunc
	StopSessionHandler      http.HandlerFunc

	CreateJobHandler http.HandlerFunc
	StartJobHandler  http.HandlerFunc
	GetJobHandler    http.HandlerFunc
	ListJobsHandler  http.HandlerFunc
	JobErrorsHandler http.HandlerFunc
	DeleteJobHandler http.HandlerFunc

	ListRecordsHandler      http.HandlerFunc
	RecordLineageHandler    http.HandlerFunc
	JobIndexFailuresHandler http.HandlerFunc
	PublishedRecordHandler  http.HandlerFunc

	CreateKeyHandler http.HandlerFunc
	ListKeysHandler  http.HandlerFunc
	RevokeKeyHandler http.HandlerFunc
}

// NewRouter builds the Chi router with middleware stack and all routes.
func NewRouter(deps Dependencies) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(mw.Logger)
	r.Use(mw.Recovery)

	// Public health check
	r.Get("/api/v1/health", orNotImplemented(deps.HealthHandler))

	// Protected routes
	r.Group(func(r chi.Router) {
		r.Use(deps.Auth.Authenticate)
		r.Use(deps.RateLimit.Limit)

		r.Post("/api/v1/sessions", orNotImplemented(deps.CreateSessionHandler))
		r.Get("/api/v1/sessions/active", orNotImplemented(deps.GetActiveSessionHandler))
		r.Delete("/api/v1/sessions/active", orNotImplemented(deps.StopSessionHandler))

		r.Post("/api/v1/jobs", orNotImplemented(deps.CreateJobHandler))
		r.Get("/api/v1/jobs/{jobID}", orNotImplemented(deps.GetJobHandler))
		r.Post("/api/v1/jobs/{jobID}/start", orNotImplemented(deps.StartJobHandler))
		r.Get("/api/v1/jobs/{jobID}/errors", orNotImplemented(deps.JobErrorsHandler))
		r.Delete("/api/v1/jobs/{jobID}", orNotImplemented(deps.DeleteJobHandler))
		r.Get("/api/v1/record-groups/{recordGroupID}/jobs", orNotImplemented(deps.ListJobsHandler))

		r.Get("/api/v1/jobs/{jobID}/records", orNotImplemented(deps.ListRecordsHandler))
		r.Get("/api/v1/jobs/{jobID}/records/{recordID}/lineage", orNotImplemented(deps.RecordLineageHandler))
		r.Get("/api/v1/jobs/{jobID}/index-failures", orNotImplemented(deps.JobIndexFailuresHandler))
		r.Get("/api/v1/published/records/{recordID}", orNotImplemented(deps.PublishedRecordHandler))

		// Admin routes
		r.Group(func(r chi.Router) {
			r.Use(deps.Auth.RequireScope("admin"))

			r.Post("/api/v1/admin/keys", orNotImplemented(deps.CreateKeyHandler))
			r.Get("/api/v1/admin/keys", orNotImplemented(deps.ListKeysHandler))
			r.Delete("/api/v1/admin/keys/{keyID}", orNotImplemented(deps.RevokeKeyHandler))
		})
	})

	return r
}

// orNotImplemented returns the handler if non-nil, or a 501 placeholder.
func orNotImplemented(h http.HandlerFunc) http.HandlerFunc {
	if h != nil {
		return h
	}
	return func(w http.ResponseWriter, r *http.Request) {
		response.Error(w, http.StatusNotImplemented, "NOT_IMPLEMENTED", "Endpoint not yet implemented", nil)
	}
}
