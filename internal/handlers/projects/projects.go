// Package projects implements project and site endpoints. Sites belong
// to projects and are what BOQs and rollout sheets hang off.
package projects

import (
	"database/sql"
	"fmt"
	"net/http"
	"time"

	"boqops/internal/audit"
	"boqops/internal/handlers/common"
	"boqops/internal/models"
	"boqops/internal/response"
	"boqops/internal/validation"
	"boqops/internal/websocket"
)

// Handler holds dependencies for project and site handlers.
type Handler struct {
	DB     *sql.DB
	Hub    *websocket.Hub
	NextID func(prefix, table string, digits int) string
	Audit  func(r *http.Request, action, module, recordID, summary string)
}

func (h *Handler) audit(r *http.Request, action, module, recordID, summary string) {
	if h.Audit != nil {
		h.Audit(r, action, module, recordID, summary)
	}
}

func (h *Handler) broadcast(module, id, action string) {
	if h.Hub != nil {
		h.Hub.Broadcast(websocket.Event{Module: module, ID: id, Action: action})
	}
}

// List handles GET /api/v1/projects.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	p := common.ParseListParams(r)
	status := r.URL.Query().Get("status")

	where := " WHERE 1=1"
	var args []interface{}
	if p.Search != "" {
		where += " AND (id LIKE ? OR name LIKE ? OR customer LIKE ?)"
		term := "%" + p.Search + "%"
		args = append(args, term, term, term)
	}
	if status != "" {
		where += " AND status = ?"
		args = append(args, status)
	}

	var total int
	h.DB.QueryRow("SELECT COUNT(*) FROM projects"+where, args...).Scan(&total)

	rows, err := h.DB.Query(`SELECT id, name, customer, region, status, created_at, updated_at
		FROM projects`+where+" ORDER BY created_at DESC LIMIT ? OFFSET ?",
		append(args, p.Limit, p.Offset())...)
	if err != nil {
		response.Err(w, err.Error(), 500)
		return
	}
	defer rows.Close()

	items := []models.Project{}
	for rows.Next() {
		var pr models.Project
		rows.Scan(&pr.ID, &pr.Name, &pr.Customer, &pr.Region, &pr.Status, &pr.CreatedAt, &pr.UpdatedAt)
		items = append(items, pr)
	}
	response.JSONMeta(w, items, total, p.Page, p.Limit)
}

// Get handles GET /api/v1/projects/:id.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request, id string) {
	pr, err := h.loadProject(id)
	if err != nil {
		response.Err(w, "project not found", 404)
		return
	}
	response.JSON(w, pr)
}

func (h *Handler) loadProject(id string) (*models.Project, error) {
	var pr models.Project
	err := h.DB.QueryRow(`SELECT id, name, customer, region, status, created_at, updated_at
		FROM projects WHERE id = ?`, id).
		Scan(&pr.ID, &pr.Name, &pr.Customer, &pr.Region, &pr.Status, &pr.CreatedAt, &pr.UpdatedAt)
	return &pr, err
}

// Create handles POST /api/v1/projects.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var pr models.Project
	if err := response.DecodeBody(r, &pr); err != nil {
		response.Err(w, "invalid request body", 400)
		return
	}

	ve := &validation.ValidationErrors{}
	validation.RequireField(ve, "name", pr.Name)
	validation.ValidateMaxLength(ve, "name", pr.Name, 200)
	if pr.Status == "" {
		pr.Status = "active"
	}
	validation.ValidateEnum(ve, "status", pr.Status, validation.ValidProjectStatuses)
	if ve.HasErrors() {
		response.ValidationErr(w, ve)
		return
	}

	pr.ID = h.NextID("PRJ", "projects", 3)
	now := time.Now().UTC().Format(time.RFC3339)
	_, err := h.DB.Exec(`INSERT INTO projects (id, name, customer, region, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`, pr.ID, pr.Name, pr.Customer, pr.Region, pr.Status, now, now)
	if err != nil {
		response.Err(w, err.Error(), 500)
		return
	}

	h.audit(r, audit.ActionCreate, "project", pr.ID, "created project "+pr.Name)
	h.broadcast("project", pr.ID, "create")
	pr.CreatedAt, pr.UpdatedAt = now, now
	response.JSON(w, pr)
}

// Update handles PUT /api/v1/projects/:id.
func (h *Handler) Update(w http.ResponseWriter, r *http.Request, id string) {
	existing, err := h.loadProject(id)
	if err != nil {
		response.Err(w, "project not found", 404)
		return
	}

	var pr models.Project
	if err := response.DecodeBody(r, &pr); err != nil {
		response.Err(w, "invalid request body", 400)
		return
	}
	if pr.Name == "" {
		pr.Name = existing.Name
	}
	if pr.Status == "" {
		pr.Status = existing.Status
	}

	ve := &validation.ValidationErrors{}
	validation.ValidateMaxLength(ve, "name", pr.Name, 200)
	validation.ValidateEnum(ve, "status", pr.Status, validation.ValidProjectStatuses)
	if ve.HasErrors() {
		response.ValidationErr(w, ve)
		return
	}

	_, err = h.DB.Exec(`UPDATE projects SET name = ?, customer = ?, region = ?, status = ?, updated_at = ?
		WHERE id = ?`, pr.Name, pr.Customer, pr.Region, pr.Status,
		time.Now().UTC().Format(time.RFC3339), id)
	if err != nil {
		response.Err(w, err.Error(), 500)
		return
	}

	h.audit(r, audit.ActionUpdate, "project", id, "updated project")
	h.broadcast("project", id, "update")
	updated, _ := h.loadProject(id)
	response.JSON(w, updated)
}

// Delete handles DELETE /api/v1/projects/:id. Sites cascade, so a
// project with BOQs or rollout sheets on its sites is refused.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request, id string) {
	if _, err := h.loadProject(id); err != nil {
		response.Err(w, "project not found", 404)
		return
	}
	var boqs int
	h.DB.QueryRow("SELECT COUNT(*) FROM boqs WHERE project_id = ?", id).Scan(&boqs)
	if boqs > 0 {
		response.Err(w, fmt.Sprintf("project has %d BOQs", boqs), 409)
		return
	}

	if _, err := h.DB.Exec("DELETE FROM projects WHERE id = ?", id); err != nil {
		response.Err(w, err.Error(), 500)
		return
	}
	h.audit(r, audit.ActionDelete, "project", id, "deleted project")
	h.broadcast("project", id, "delete")
	response.JSON(w, map[string]string{"status": "deleted"})
}

// Sites handles GET /api/v1/sites with q/project/region/type/status.
func (h *Handler) Sites(w http.ResponseWriter, r *http.Request) {
	p := common.ParseListParams(r)
	q := r.URL.Query()

	where := " WHERE 1=1"
	var args []interface{}
	if p.Search != "" {
		where += " AND (id LIKE ? OR name LIKE ?)"
		term := "%" + p.Search + "%"
		args = append(args, term, term)
	}
	if v := q.Get("project"); v != "" {
		where += " AND project_id = ?"
		args = append(args, v)
	}
	if v := q.Get("region"); v != "" {
		where += " AND region = ?"
		args = append(args, v)
	}
	if v := q.Get("type"); v != "" {
		where += " AND site_type = ?"
		args = append(args, v)
	}
	if v := q.Get("status"); v != "" {
		where += " AND status = ?"
		args = append(args, v)
	}

	var total int
	h.DB.QueryRow("SELECT COUNT(*) FROM sites"+where, args...).Scan(&total)

	rows, err := h.DB.Query(`SELECT id, project_id, name, region, site_type, address,
		latitude, longitude, status, created_at FROM sites`+where+
		" ORDER BY id LIMIT ? OFFSET ?", append(args, p.Limit, p.Offset())...)
	if err != nil {
		response.Err(w, err.Error(), 500)
		return
	}
	defer rows.Close()

	items := []models.Site{}
	for rows.Next() {
		var s models.Site
		rows.Scan(&s.ID, &s.ProjectID, &s.Name, &s.Region, &s.SiteType, &s.Address,
			&s.Latitude, &s.Longitude, &s.Status, &s.CreatedAt)
		items = append(items, s)
	}
	response.JSONMeta(w, items, total, p.Page, p.Limit)
}

// SiteGet handles GET /api/v1/sites/:id.
func (h *Handler) SiteGet(w http.ResponseWriter, r *http.Request, id string) {
	s, err := h.loadSite(id)
	if err != nil {
		response.Err(w, "site not found", 404)
		return
	}
	response.JSON(w, s)
}

func (h *Handler) loadSite(id string) (*models.Site, error) {
	var s models.Site
	err := h.DB.QueryRow(`SELECT id, project_id, name, region, site_type, address,
		latitude, longitude, status, created_at FROM sites WHERE id = ?`, id).
		Scan(&s.ID, &s.ProjectID, &s.Name, &s.Region, &s.SiteType, &s.Address,
			&s.Latitude, &s.Longitude, &s.Status, &s.CreatedAt)
	return &s, err
}

// SiteCreate handles POST /api/v1/sites. Site IDs come from the field
// (tower IDs), so the caller supplies them.
func (h *Handler) SiteCreate(w http.ResponseWriter, r *http.Request) {
	var s models.Site
	if err := response.DecodeBody(r, &s); err != nil {
		response.Err(w, "invalid request body", 400)
		return
	}

	ve := &validation.ValidationErrors{}
	validation.RequireField(ve, "id", s.ID)
	validation.ValidateRecordID(ve, "id", s.ID)
	validation.RequireField(ve, "project_id", s.ProjectID)
	if s.SiteType == "" {
		s.SiteType = "macro"
	}
	validation.ValidateEnum(ve, "site_type", s.SiteType, validation.ValidSiteTypes)
	if s.Status == "" {
		s.Status = "planned"
	}
	validation.ValidateEnum(ve, "status", s.Status, validation.ValidSiteStatuses)
	if s.ProjectID != "" {
		if _, err := h.loadProject(s.ProjectID); err != nil {
			ve.Add("project_id", "references a project that does not exist")
		}
	}
	if ve.HasErrors() {
		response.ValidationErr(w, ve)
		return
	}

	_, err := h.DB.Exec(`INSERT INTO sites (id, project_id, name, region, site_type, address,
		latitude, longitude, status) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		s.ID, s.ProjectID, s.Name, s.Region, s.SiteType, s.Address, s.Latitude, s.Longitude, s.Status)
	if err != nil {
		response.Err(w, "site ID already exists", 409)
		return
	}

	h.audit(r, audit.ActionCreate, "site", s.ID, "created site "+s.Name)
	h.broadcast("site", s.ID, "create")
	response.JSON(w, s)
}

// SiteUpdate handles PUT /api/v1/sites/:id.
func (h *Handler) SiteUpdate(w http.ResponseWriter, r *http.Request, id string) {
	existing, err := h.loadSite(id)
	if err != nil {
		response.Err(w, "site not found", 404)
		return
	}

	var s models.Site
	if err := response.DecodeBody(r, &s); err != nil {
		response.Err(w, "invalid request body", 400)
		return
	}
	if s.SiteType == "" {
		s.SiteType = existing.SiteType
	}
	if s.Status == "" {
		s.Status = existing.Status
	}

	ve := &validation.ValidationErrors{}
	validation.ValidateEnum(ve, "site_type", s.SiteType, validation.ValidSiteTypes)
	validation.ValidateEnum(ve, "status", s.Status, validation.ValidSiteStatuses)
	if ve.HasErrors() {
		response.ValidationErr(w, ve)
		return
	}

	_, err = h.DB.Exec(`UPDATE sites SET name = ?, region = ?, site_type = ?, address = ?,
		latitude = ?, longitude = ?, status = ? WHERE id = ?`,
		orDefault(s.Name, existing.Name), orDefault(s.Region, existing.Region), s.SiteType,
		orDefault(s.Address, existing.Address), orDefault(s.Latitude, existing.Latitude),
		orDefault(s.Longitude, existing.Longitude), s.Status, id)
	if err != nil {
		response.Err(w, err.Error(), 500)
		return
	}

	h.audit(r, audit.ActionUpdate, "site", id, "updated site")
	h.broadcast("site", id, "update")
	updated, _ := h.loadSite(id)
	response.JSON(w, updated)
}

// SiteDelete handles DELETE /api/v1/sites/:id.
func (h *Handler) SiteDelete(w http.ResponseWriter, r *http.Request, id string) {
	if _, err := h.loadSite(id); err != nil {
		response.Err(w, "site not found", 404)
		return
	}
	var boqs int
	h.DB.QueryRow("SELECT COUNT(*) FROM boqs WHERE site_id = ?", id).Scan(&boqs)
	if boqs > 0 {
		response.Err(w, fmt.Sprintf("site has %d BOQs", boqs), 409)
		return
	}

	if _, err := h.DB.Exec("DELETE FROM sites WHERE id = ?", id); err != nil {
		response.Err(w, err.Error(), 500)
		return
	}
	h.audit(r, audit.ActionDelete, "site", id, "deleted site")
	h.broadcast("site", id, "delete")
	response.JSON(w, map[string]string{"status": "deleted"})
}

func orDefault(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}
