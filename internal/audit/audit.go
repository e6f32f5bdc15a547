package audit

import (
	"database/sql"
	"log"
	"net/http"
	"strconv"
	"strings"

	"boqops/internal/websocket"
)

// Action constants.
const (
	ActionCreate   = "CREATE"
	ActionUpdate   = "UPDATE"
	ActionDelete   = "DELETE"
	ActionExport   = "EXPORT"
	ActionUpload   = "UPLOAD"
	ActionGenerate = "GENERATE"
	ActionApprove  = "APPROVE"
	ActionReject   = "REJECT"
	ActionLogin    = "LOGIN"
	ActionLogout   = "LOGOUT"
)

// SessionCookie is the name of the dashboard session cookie.
const SessionCookie = "boqops_session"

// Log records an audit entry and broadcasts the change to connected
// dashboards. Audit failures are logged, never propagated: the business
// operation has already happened.
func Log(db *sql.DB, hub *websocket.Hub, r *http.Request, action, module, recordID, summary string) {
	username := Username(db, r)
	_, err := db.Exec(`INSERT INTO audit_log (username, action, module, record_id, summary, ip_address)
		VALUES (?, ?, ?, ?, ?, ?)`,
		username, action, module, recordID, summary, ClientIP(r))
	if err != nil {
		log.Printf("audit: %v", err)
	}
	if hub != nil {
		hub.Broadcast(websocket.Event{Module: module, ID: recordID, Action: action})
	}
}

// LogExport records a data export with the record count in the summary.
func LogExport(db *sql.DB, hub *websocket.Hub, r *http.Request, module, format string, recordCount int) {
	Log(db, hub, r, ActionExport, module, "",
		strings.ToUpper(format)+" export, "+strconv.Itoa(recordCount)+" records")
}

// Username resolves the acting user from the session cookie, falling back
// to "api" for bearer-token requests and "system" otherwise.
func Username(db *sql.DB, r *http.Request) string {
	if r == nil {
		return "system"
	}
	cookie, err := r.Cookie(SessionCookie)
	if err != nil {
		if strings.HasPrefix(r.Header.Get("Authorization"), "Bearer ") {
			return "api"
		}
		return "system"
	}
	var username string
	err = db.QueryRow(`SELECT u.username FROM users u JOIN sessions s ON u.id = s.user_id
		WHERE s.token = ?`, cookie.Value).Scan(&username)
	if err != nil {
		return "system"
	}
	return username
}

// ClientIP extracts the real client IP from the request (handles proxies).
func ClientIP(r *http.Request) string {
	if r == nil {
		return ""
	}
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		return strings.TrimSpace(strings.Split(xff, ",")[0])
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}
	ip := r.RemoteAddr
	if idx := strings.LastIndex(ip, ":"); idx != -1 {
		ip = ip[:idx]
	}
	return ip
}

