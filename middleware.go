package main

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strings"
	"time"

	"boqops/internal/auth"
	"boqops/internal/server"
)

const sessionCookie = "boqops_session"

func logging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if r.Method == "OPTIONS" {
			w.WriteHeader(200)
			return
		}
		next.ServeHTTP(w, r)
		log.Printf("%s %s %s", r.Method, r.URL.Path, time.Since(start))
	})
}

func authJSONError(w http.ResponseWriter, msg, code string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg, "code": code})
}

func requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := r.URL.Path

		// Exempt paths
		if path == "/" ||
			strings.HasPrefix(path, "/static/") ||
			path == "/auth/login" ||
			path == "/auth/logout" {
			next.ServeHTTP(w, r)
			return
		}

		// Bearer token first (API keys)
		authHeader := r.Header.Get("Authorization")
		if strings.HasPrefix(authHeader, "Bearer ") {
			token := strings.TrimPrefix(authHeader, "Bearer ")
			if auth.ValidateAPIKey(db, token) {
				next.ServeHTTP(w, r)
				return
			}
			authJSONError(w, "Invalid API key", "UNAUTHORIZED", 401)
			return
		}

		cookie, err := r.Cookie(sessionCookie)
		if err != nil {
			if !strings.HasPrefix(path, "/api/") && path != "/auth/me" {
				http.Redirect(w, r, "/login", http.StatusSeeOther)
				return
			}
			authJSONError(w, "Unauthorized", "UNAUTHORIZED", 401)
			return
		}

		u := auth.SessionUser(db, cookie.Value)
		if u == nil {
			if !strings.HasPrefix(path, "/api/") && path != "/auth/me" {
				http.Redirect(w, r, "/login", http.StatusSeeOther)
				return
			}
			authJSONError(w, "Invalid or expired session", "UNAUTHORIZED", 401)
			return
		}

		// Sliding window: extend session expiry on each authenticated request
		newExpiry := time.Now().Add(auth.SessionTTL)
		db.Exec("UPDATE sessions SET expires_at = ? WHERE token = ?",
			newExpiry.Format("2006-01-02 15:04:05"), cookie.Value)
		http.SetCookie(w, &http.Cookie{
			Name:     sessionCookie,
			Value:    cookie.Value,
			Path:     "/",
			HttpOnly: true,
			SameSite: http.SameSiteLaxMode,
			Expires:  newExpiry,
		})

		ctx := context.WithValue(r.Context(), server.CtxUserID, u.ID)
		ctx = context.WithValue(ctx, server.CtxUsername, u.Username)
		ctx = context.WithValue(ctx, server.CtxRole, u.Role)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// isAdminOnly returns true if the API path (after /api/v1/) is restricted
// to the admin role.
func isAdminOnly(apiPath string) bool {
	seg := strings.SplitN(apiPath, "/", 2)[0]
	switch seg {
	case "users", "apikeys":
		return true
	}
	return false
}

// requireRBAC enforces role-based access control on /api/v1/ routes.
func requireRBAC(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := r.URL.Path
		if !strings.HasPrefix(path, "/api/v1/") {
			next.ServeHTTP(w, r)
			return
		}

		role, _ := r.Context().Value(server.CtxRole).(string)
		// Bearer tokens carry no role context and get full access
		if role == "" || role == "admin" {
			next.ServeHTTP(w, r)
			return
		}

		apiPath := strings.TrimSuffix(strings.TrimPrefix(path, "/api/v1/"), "/")

		if role == "readonly" {
			if r.Method != "GET" {
				authJSONError(w, "Read-only access", "FORBIDDEN", 403)
				return
			}
			next.ServeHTTP(w, r)
			return
		}

		if role == "user" && isAdminOnly(apiPath) {
			authJSONError(w, "Admin access required", "FORBIDDEN", 403)
			return
		}
		next.ServeHTTP(w, r)
	})
}

