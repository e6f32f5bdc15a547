package server

import "net/http"

// ContextKey is the type used for request context keys.
type ContextKey string

const (
	CtxUserID   ContextKey = "userID"
	CtxUsername ContextKey = "username"
	CtxRole     ContextKey = "role"
)

// Username returns the acting user from the request context, falling back
// to "api" for bearer-token requests.
func Username(r *http.Request) string {
	if name, ok := r.Context().Value(CtxUsername).(string); ok && name != "" {
		return name
	}
	return "api"
}

// Role returns the acting user's role, or "" for bearer-token requests.
func Role(r *http.Request) string {
	role, _ := r.Context().Value(CtxRole).(string)
	return role
}
