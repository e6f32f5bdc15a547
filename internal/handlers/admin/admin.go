// Package admin implements the administrative endpoints: user and API
// key management, the audit trail, notifications and the dashboard
// summary. User and key management routes sit behind the admin RBAC
// check in the middleware.
package admin

import (
	"database/sql"
	"net/http"
	"strconv"

	"boqops/internal/audit"
	"boqops/internal/auth"
	"boqops/internal/handlers/common"
	"boqops/internal/models"
	"boqops/internal/response"
	"boqops/internal/validation"
)

// Handler holds dependencies for admin handlers.
type Handler struct {
	DB    *sql.DB
	Audit func(r *http.Request, action, module, recordID, summary string)
}

func (h *Handler) audit(r *http.Request, action, module, recordID, summary string) {
	if h.Audit != nil {
		h.Audit(r, action, module, recordID, summary)
	}
}

// Dashboard handles GET /api/v1/dashboard.
func (h *Handler) Dashboard(w http.ResponseWriter, r *http.Request) {
	var d models.DashboardData
	h.DB.QueryRow("SELECT COUNT(*) FROM projects WHERE status = 'active'").Scan(&d.Projects)
	h.DB.QueryRow("SELECT COUNT(*) FROM sites").Scan(&d.Sites)
	h.DB.QueryRow("SELECT COUNT(*) FROM boqs").Scan(&d.BOQs)
	h.DB.QueryRow("SELECT COUNT(*) FROM boqs WHERE status = 'draft'").Scan(&d.BOQsDraft)
	h.DB.QueryRow("SELECT COUNT(*) FROM boqs WHERE status = 'approved'").Scan(&d.BOQsApproved)
	h.DB.QueryRow("SELECT COUNT(*) FROM purchase_orders WHERE status NOT IN ('closed','cancelled')").Scan(&d.OpenPOs)
	h.DB.QueryRow("SELECT COUNT(*) FROM rollout_sheets WHERE status = 'in_progress'").Scan(&d.RolloutActive)
	h.DB.QueryRow("SELECT COALESCE(SUM(total_value), 0) FROM boqs WHERE status = 'approved'").Scan(&d.BOQValue)
	response.JSON(w, d)
}

// AuditList handles GET /api/v1/audit with module/action/user filters.
func (h *Handler) AuditList(w http.ResponseWriter, r *http.Request) {
	p := common.ParseListParams(r)
	q := r.URL.Query()

	where := " WHERE 1=1"
	var args []interface{}
	if v := q.Get("module"); v != "" {
		where += " AND module = ?"
		args = append(args, v)
	}
	if v := q.Get("action"); v != "" {
		where += " AND action = ?"
		args = append(args, v)
	}
	if v := q.Get("user"); v != "" {
		where += " AND username = ?"
		args = append(args, v)
	}
	if p.Search != "" {
		where += " AND (record_id LIKE ? OR summary LIKE ?)"
		term := "%" + p.Search + "%"
		args = append(args, term, term)
	}

	var total int
	h.DB.QueryRow("SELECT COUNT(*) FROM audit_log"+where, args...).Scan(&total)

	rows, err := h.DB.Query(`SELECT id, username, action, module, record_id, summary, ip_address, created_at
		FROM audit_log`+where+" ORDER BY id DESC LIMIT ? OFFSET ?",
		append(args, p.Limit, p.Offset())...)
	if err != nil {
		response.Err(w, err.Error(), 500)
		return
	}
	defer rows.Close()

	items := []models.AuditEntry{}
	for rows.Next() {
		var e models.AuditEntry
		rows.Scan(&e.ID, &e.Username, &e.Action, &e.Module, &e.RecordID, &e.Summary, &e.IPAddress, &e.CreatedAt)
		items = append(items, e)
	}
	response.JSONMeta(w, items, total, p.Page, p.Limit)
}

// AuditExport handles GET /api/v1/audit/export as CSV.
func (h *Handler) AuditExport(w http.ResponseWriter, r *http.Request) {
	rows, err := h.DB.Query(`SELECT id, username, action, module, record_id, summary, ip_address, created_at
		FROM audit_log ORDER BY id DESC`)
	if err != nil {
		response.Err(w, err.Error(), 500)
		return
	}
	defer rows.Close()

	var data [][]string
	for rows.Next() {
		var e models.AuditEntry
		rows.Scan(&e.ID, &e.Username, &e.Action, &e.Module, &e.RecordID, &e.Summary, &e.IPAddress, &e.CreatedAt)
		data = append(data, []string{strconv.Itoa(e.ID), e.Username, e.Action, e.Module,
			e.RecordID, e.Summary, e.IPAddress, e.CreatedAt})
	}
	common.ExportCSV(w, "audit_log.csv",
		[]string{"ID", "User", "Action", "Module", "Record", "Summary", "IP", "Timestamp"}, data)
}

// Notifications handles GET /api/v1/notifications.
func (h *Handler) Notifications(w http.ResponseWriter, r *http.Request) {
	p := common.ParseListParams(r)
	unread := r.URL.Query().Get("unread") == "true"

	where := " WHERE 1=1"
	if unread {
		where += " AND read = 0"
	}

	var total int
	h.DB.QueryRow("SELECT COUNT(*) FROM notifications" + where).Scan(&total)

	rows, err := h.DB.Query(`SELECT id, title, message, module, record_id, read, created_at
		FROM notifications`+where+" ORDER BY id DESC LIMIT ? OFFSET ?", p.Limit, p.Offset())
	if err != nil {
		response.Err(w, err.Error(), 500)
		return
	}
	defer rows.Close()

	items := []models.Notification{}
	for rows.Next() {
		var n models.Notification
		rows.Scan(&n.ID, &n.Title, &n.Message, &n.Module, &n.RecordID, &n.Read, &n.CreatedAt)
		items = append(items, n)
	}
	response.JSONMeta(w, items, total, p.Page, p.Limit)
}

// NotificationRead handles POST /api/v1/notifications/:id/read.
func (h *Handler) NotificationRead(w http.ResponseWriter, r *http.Request, id string) {
	res, err := h.DB.Exec("UPDATE notifications SET read = 1 WHERE id = ?", id)
	if err != nil {
		response.Err(w, err.Error(), 500)
		return
	}
	if n, _ := res.RowsAffected(); n == 0 {
		response.Err(w, "notification not found", 404)
		return
	}
	response.JSON(w, map[string]string{"status": "read"})
}

// Users handles GET /api/v1/users.
func (h *Handler) Users(w http.ResponseWriter, r *http.Request) {
	rows, err := h.DB.Query(`SELECT id, username, display_name, role, active,
		COALESCE(last_login, ''), created_at FROM users ORDER BY username`)
	if err != nil {
		response.Err(w, err.Error(), 500)
		return
	}
	defer rows.Close()

	items := []models.User{}
	for rows.Next() {
		var u models.User
		rows.Scan(&u.ID, &u.Username, &u.DisplayName, &u.Role, &u.Active, &u.LastLogin, &u.CreatedAt)
		items = append(items, u)
	}
	response.JSON(w, items)
}

type userRequest struct {
	Username    string `json:"username"`
	Password    string `json:"password"`
	DisplayName string `json:"display_name"`
	Role        string `json:"role"`
	Active      *bool  `json:"active"`
}

// UserCreate handles POST /api/v1/users.
func (h *Handler) UserCreate(w http.ResponseWriter, r *http.Request) {
	var req userRequest
	if err := response.DecodeBody(r, &req); err != nil {
		response.Err(w, "invalid request body", 400)
		return
	}

	ve := &validation.ValidationErrors{}
	validation.RequireField(ve, "username", req.Username)
	validation.RequireField(ve, "password", req.Password)
	if req.Password != "" {
		if err := auth.ValidatePasswordStrength(req.Password); err != nil {
			ve.Add("password", err.Error())
		}
	}
	if req.Role == "" {
		req.Role = "user"
	}
	validation.ValidateEnum(ve, "role", req.Role, validation.ValidRoles)
	if ve.HasErrors() {
		response.ValidationErr(w, ve)
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		response.Err(w, err.Error(), 500)
		return
	}
	res, err := h.DB.Exec(`INSERT INTO users (username, password_hash, display_name, role)
		VALUES (?, ?, ?, ?)`, req.Username, hash, req.DisplayName, req.Role)
	if err != nil {
		response.Err(w, "username already exists", 409)
		return
	}
	id, _ := res.LastInsertId()

	h.audit(r, audit.ActionCreate, "user", req.Username, "created user with role "+req.Role)
	response.JSON(w, map[string]interface{}{"id": id, "username": req.Username, "role": req.Role})
}

// UserUpdate handles PUT /api/v1/users/:id. Password is optional;
// display name, role and active flag can change.
func (h *Handler) UserUpdate(w http.ResponseWriter, r *http.Request, id string) {
	var username string
	if err := h.DB.QueryRow("SELECT username FROM users WHERE id = ?", id).Scan(&username); err != nil {
		response.Err(w, "user not found", 404)
		return
	}

	var req userRequest
	if err := response.DecodeBody(r, &req); err != nil {
		response.Err(w, "invalid request body", 400)
		return
	}

	ve := &validation.ValidationErrors{}
	if req.Role != "" {
		validation.ValidateEnum(ve, "role", req.Role, validation.ValidRoles)
	}
	if req.Password != "" {
		if err := auth.ValidatePasswordStrength(req.Password); err != nil {
			ve.Add("password", err.Error())
		}
	}
	if ve.HasErrors() {
		response.ValidationErr(w, ve)
		return
	}

	if req.DisplayName != "" {
		h.DB.Exec("UPDATE users SET display_name = ? WHERE id = ?", req.DisplayName, id)
	}
	if req.Role != "" {
		h.DB.Exec("UPDATE users SET role = ? WHERE id = ?", req.Role, id)
	}
	if req.Active != nil {
		h.DB.Exec("UPDATE users SET active = ? WHERE id = ?", *req.Active, id)
		if !*req.Active {
			// Deactivation kills any live sessions.
			h.DB.Exec("DELETE FROM sessions WHERE user_id = ?", id)
		}
	}
	if req.Password != "" {
		hash, err := auth.HashPassword(req.Password)
		if err != nil {
			response.Err(w, err.Error(), 500)
			return
		}
		h.DB.Exec("UPDATE users SET password_hash = ? WHERE id = ?", hash, id)
	}

	h.audit(r, audit.ActionUpdate, "user", username, "updated user")
	response.JSON(w, map[string]string{"status": "updated"})
}

// APIKeys handles GET /api/v1/apikeys. Tokens are never echoed back.
func (h *Handler) APIKeys(w http.ResponseWriter, r *http.Request) {
	rows, err := h.DB.Query(`SELECT id, name, active, COALESCE(last_used, ''), created_at
		FROM api_keys ORDER BY id`)
	if err != nil {
		response.Err(w, err.Error(), 500)
		return
	}
	defer rows.Close()

	items := []models.APIKey{}
	for rows.Next() {
		var k models.APIKey
		rows.Scan(&k.ID, &k.Name, &k.Active, &k.LastUsed, &k.CreatedAt)
		items = append(items, k)
	}
	response.JSON(w, items)
}

// APIKeyCreate handles POST /api/v1/apikeys. The token is returned once
// in the creation response.
func (h *Handler) APIKeyCreate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name string `json:"name"`
	}
	if err := response.DecodeBody(r, &req); err != nil {
		response.Err(w, "invalid request body", 400)
		return
	}
	ve := &validation.ValidationErrors{}
	validation.RequireField(ve, "name", req.Name)
	if ve.HasErrors() {
		response.ValidationErr(w, ve)
		return
	}

	token := auth.GenerateToken()
	res, err := h.DB.Exec("INSERT INTO api_keys (name, token) VALUES (?, ?)", req.Name, token)
	if err != nil {
		response.Err(w, err.Error(), 500)
		return
	}
	id, _ := res.LastInsertId()

	h.audit(r, audit.ActionCreate, "apikey", req.Name, "created API key")
	response.JSON(w, models.APIKey{ID: int(id), Name: req.Name, Token: token, Active: true})
}

// APIKeyDelete handles DELETE /api/v1/apikeys/:id.
func (h *Handler) APIKeyDelete(w http.ResponseWriter, r *http.Request, id string) {
	res, err := h.DB.Exec("DELETE FROM api_keys WHERE id = ?", id)
	if err != nil {
		response.Err(w, err.Error(), 500)
		return
	}
	if n, _ := res.RowsAffected(); n == 0 {
		response.Err(w, "API key not found", 404)
		return
	}
	h.audit(r, audit.ActionDelete, "apikey", id, "revoked API key")
	response.JSON(w, map[string]string{"status": "deleted"})
}
