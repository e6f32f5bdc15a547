package main

import (
	"net/http"
	"time"

	"boqops/internal/audit"
	"boqops/internal/auth"
	"boqops/internal/response"
	"boqops/internal/server"
)

func handleLogin(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := response.DecodeBody(r, &req); err != nil {
		response.Err(w, "invalid request body", 400)
		return
	}

	token, u, err := auth.Login(db, req.Username, req.Password)
	if err != nil {
		status := 401
		if err == auth.ErrAccountDeactivated || err == auth.ErrAccountLocked {
			status = 403
		}
		response.Err(w, err.Error(), status)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Expires:  time.Now().Add(auth.SessionTTL),
	})

	audit.Log(db, hub, r, audit.ActionLogin, "auth", u.Username, "logged in")
	response.JSON(w, map[string]interface{}{
		"username":     u.Username,
		"display_name": u.DisplayName,
		"role":         u.Role,
	})
}

func handleLogout(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if cookie, err := r.Cookie(sessionCookie); err == nil {
		if u := auth.SessionUser(db, cookie.Value); u != nil {
			audit.Log(db, hub, r, audit.ActionLogout, "auth", u.Username, "logged out")
		}
		auth.Logout(db, cookie.Value)
	}
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		MaxAge:   -1,
	})
	response.JSON(w, map[string]string{"status": "logged out"})
}

func handleMe(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	username := server.Username(r)
	role := server.Role(r)
	if username == "api" {
		response.JSON(w, map[string]string{"username": "api", "role": "admin"})
		return
	}

	var displayName string
	db.QueryRow("SELECT display_name FROM users WHERE username = ?", username).Scan(&displayName)
	response.JSON(w, map[string]string{
		"username":     username,
		"display_name": displayName,
		"role":         role,
	})
}
