package middleware

import (
	"context"
	"net/http"
)

// contextKey is unexported so other packages cannot collide with the
// values the auth middleware stashes on the request context.
type contextKey int

const (
	callerPrefixKey contextKey = iota
	callerScopesKey
)

func withCaller(ctx context.Context, prefix string, scopes []string) context.Context {
	ctx = context.WithValue(ctx, callerPrefixKey, prefix)
	return context.WithValue(ctx, callerScopesKey, scopes)
}

// callerPrefix returns the key prefix of the authenticated caller, if any.
func callerPrefix(r *http.Request) (string, bool) {
	prefix, ok := r.Context().Value(callerPrefixKey).(string)
	return prefix, ok
}

func callerScopes(r *http.Request) []string {
	scopes, _ := r.Context().Value(callerScopesKey).([]string)
	return scopes
}
