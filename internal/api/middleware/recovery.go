package middleware

import (
	"log/slog"
	"net/http"
	"runtime/debug"

	"github.com/tulibraries/combine/internal/api/response"
)

// Recovery converts handler panics into a 500 envelope instead of letting
// chi tear down the connection, and logs the stack for the postmortem.
func Recovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			slog.Error("panic recovered",
				"panic", rec,
				"method", r.Method,
				"path", r.URL.Path,
				"stack", string(debug.Stack()),
			)
			response.Error(w, http.StatusInternalServerError,
				"INTERNAL_ERROR", "An unexpected error occurred", nil)
		}()
		next.ServeHTTP(w, r)
	})
}
