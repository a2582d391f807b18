package middleware

import (
	"context"
	"net/http"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/tulibraries/combine/internal/api/response"
	"github.com/tulibraries/combine/internal/store"
	"github.com/tulibraries/combine/pkg/models"
)

// keyPrefixLen matches the prefix column length in the api_keys table.
const keyPrefixLen = 8

// Auth authenticates requests against stored API keys.
type Auth struct {
	store store.Store
}

func NewAuth(s store.Store) *Auth {
	return &Auth{store: s}
}

// Authenticate resolves the Bearer token to an API key and records the
// caller's prefix and scopes on the request context. The prefix narrows
// the candidate set; the bcrypt comparison decides the match.
func (a *Auth) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := bearerToken(r)
		if len(raw) < keyPrefixLen {
			response.Error(w, http.StatusUnauthorized,
				"INVALID_TOKEN", "Missing or invalid Authorization header", nil)
			return
		}

		candidates, err := a.store.GetAPIKeyByPrefix(r.Context(), raw[:keyPrefixLen])
		if err != nil {
			response.Error(w, http.StatusInternalServerError,
				"INTERNAL_ERROR", "Failed to validate API key", nil)
			return
		}

		key := matchKey(candidates, raw)
		if key == nil {
			response.Error(w, http.StatusUnauthorized,
				"INVALID_TOKEN", "Invalid API key", nil)
			return
		}

		// Touch last_used_at off the request path; a miss here must not
		// fail or slow the call.
		go a.store.UpdateAPIKeyLastUsed(context.Background(), key.ID)

		r = r.WithContext(withCaller(r.Context(), key.KeyPrefix, key.Scopes))
		next.ServeHTTP(w, r)
	})
}

// RequireScope gates a route group on a scope carried by the caller's key.
func (a *Auth) RequireScope(scope string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			caller := models.APIKey{Scopes: callerScopes(r)}
			if !caller.HasScope(scope) {
				response.Error(w, http.StatusForbidden,
					"FORBIDDEN", "Insufficient permissions", nil)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func matchKey(candidates []*models.APIKey, raw string) *models.APIKey {
	for _, k := range candidates {
		if bcrypt.CompareHashAndPassword([]byte(k.KeyHash), []byte(raw)) == nil {
			return k
		}
	}
	return nil
}

func bearerToken(r *http.Request) string {
	scheme, token, found := strings.Cut(r.Header.Get("Authorization"), " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}
