package boq

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"boqops/internal/audit"
	"boqops/internal/handlers/common"
	"boqops/internal/models"
	"boqops/internal/response"
	"boqops/internal/server"
	"boqops/internal/validation"
)

// List handles GET /api/v1/boqs with q/project/status/page/limit.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	p := common.ParseListParams(r)
	project := r.URL.Query().Get("project")
	status := r.URL.Query().Get("status")

	where := " WHERE 1=1"
	var args []interface{}
	if p.Search != "" {
		where += " AND (b.id LIKE ? OR b.site_id LIKE ? OR s.name LIKE ?)"
		term := "%" + p.Search + "%"
		args = append(args, term, term, term)
	}
	if project != "" {
		where += " AND b.project_id = ?"
		args = append(args, project)
	}
	if status != "" {
		where += " AND b.status = ?"
		args = append(args, status)
	}

	var total int
	h.DB.QueryRow("SELECT COUNT(*) FROM boqs b LEFT JOIN sites s ON b.site_id = s.id"+where, args...).Scan(&total)

	query := `SELECT b.id, b.project_id, b.site_id, COALESCE(s.name,''), b.price_book_id,
		b.boq_type, b.status, b.total_value, b.created_by, b.created_at, b.updated_at
		FROM boqs b LEFT JOIN sites s ON b.site_id = s.id` + where +
		" ORDER BY b.created_at DESC LIMIT ? OFFSET ?"
	rows, err := h.DB.Query(query, append(args, p.Limit, p.Offset())...)
	if err != nil {
		response.Err(w, err.Error(), 500)
		return
	}
	defer rows.Close()

	items := []models.BOQ{}
	for rows.Next() {
		var b models.BOQ
		rows.Scan(&b.ID, &b.ProjectID, &b.SiteID, &b.SiteName, &b.PriceBookID,
			&b.BOQType, &b.Status, &b.TotalValue, &b.CreatedBy, &b.CreatedAt, &b.UpdatedAt)
		items = append(items, b)
	}
	response.JSONMeta(w, items, total, p.Page, p.Limit)
}

// Get handles GET /api/v1/boqs/:id.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request, id string) {
	b, err := h.loadBOQ(id)
	if err != nil {
		response.Err(w, "BOQ not found", 404)
		return
	}
	h.DB.QueryRow("SELECT COUNT(*) FROM boq_rows WHERE boq_id = ?", id).Scan(&b.RowCount)
	response.JSON(w, b)
}

func (h *Handler) loadBOQ(id string) (*models.BOQ, error) {
	var b models.BOQ
	err := h.DB.QueryRow(`SELECT b.id, b.project_id, b.site_id, COALESCE(s.name,''), b.price_book_id,
		b.boq_type, b.status, b.total_value, b.created_by, b.created_at, b.updated_at
		FROM boqs b LEFT JOIN sites s ON b.site_id = s.id WHERE b.id = ?`, id).
		Scan(&b.ID, &b.ProjectID, &b.SiteID, &b.SiteName, &b.PriceBookID,
			&b.BOQType, &b.Status, &b.TotalValue, &b.CreatedBy, &b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &b, nil
}

// Create handles POST /api/v1/boqs.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var b models.BOQ
	if err := response.DecodeBody(r, &b); err != nil {
		response.Err(w, "invalid body", 400)
		return
	}

	ve := &validation.ValidationErrors{}
	validation.RequireField(ve, "site_id", b.SiteID)
	validation.ValidateRecordID(ve, "site_id", b.SiteID)
	validation.ValidateEnum(ve, "boq_type", b.BOQType, validation.ValidBOQTypes)
	if b.SiteID != "" {
		h.validateForeignKey(ve, "site_id", "sites", b.SiteID)
	}
	if b.ProjectID != "" {
		h.validateForeignKey(ve, "project_id", "projects", b.ProjectID)
	}
	if b.PriceBookID != "" {
		h.validateForeignKey(ve, "price_book_id", "price_books", b.PriceBookID)
	}
	if ve.HasErrors() {
		response.ValidationErr(w, ve)
		return
	}
	if b.BOQType == "" {
		b.BOQType = "installation"
	}

	b.ID = h.NextID("BOQ", "boqs", 4)
	b.CreatedBy = server.Username(r)
	_, err := h.DB.Exec(`INSERT INTO boqs (id, project_id, site_id, price_book_id, boq_type, status, created_by)
		VALUES (?, ?, ?, ?, ?, 'draft', ?)`,
		b.ID, b.ProjectID, b.SiteID, b.PriceBookID, b.BOQType, b.CreatedBy)
	if err != nil {
		response.Err(w, err.Error(), 500)
		return
	}

	h.audit(r, audit.ActionCreate, b.ID, fmt.Sprintf("Created BOQ for site %s", b.SiteID))
	h.broadcast(b.ID, "created")
	created, _ := h.loadBOQ(b.ID)
	response.JSON(w, created)
}

// Update handles PUT /api/v1/boqs/:id. Only status and metadata change
// here; the grid has its own endpoints.
func (h *Handler) Update(w http.ResponseWriter, r *http.Request, id string) {
	existing, err := h.loadBOQ(id)
	if err != nil {
		response.Err(w, "BOQ not found", 404)
		return
	}

	var b models.BOQ
	if err := response.DecodeBody(r, &b); err != nil {
		response.Err(w, "invalid body", 400)
		return
	}

	ve := &validation.ValidationErrors{}
	validation.ValidateEnum(ve, "status", b.Status, validation.ValidBOQStatuses)
	validation.ValidateEnum(ve, "boq_type", b.BOQType, validation.ValidBOQTypes)
	if ve.HasErrors() {
		response.ValidationErr(w, ve)
		return
	}

	if b.Status == "" {
		b.Status = existing.Status
	}
	if b.BOQType == "" {
		b.BOQType = existing.BOQType
	}
	if b.PriceBookID == "" {
		b.PriceBookID = existing.PriceBookID
	}

	now := time.Now().Format("2006-01-02 15:04:05")
	_, err = h.DB.Exec(`UPDATE boqs SET status=?, boq_type=?, price_book_id=?, updated_at=? WHERE id=?`,
		b.Status, b.BOQType, b.PriceBookID, now, id)
	if err != nil {
		response.Err(w, err.Error(), 500)
		return
	}

	action := audit.ActionUpdate
	if b.Status != existing.Status {
		switch b.Status {
		case "approved":
			action = audit.ActionApprove
		case "rejected":
			action = audit.ActionReject
		}
	}
	h.audit(r, action, id, fmt.Sprintf("Status %s -> %s", existing.Status, b.Status))
	h.broadcast(id, "updated")
	updated, _ := h.loadBOQ(id)
	response.JSON(w, updated)
}

// Delete handles DELETE /api/v1/boqs/:id.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request, id string) {
	res, err := h.DB.Exec("DELETE FROM boqs WHERE id = ?", id)
	if err != nil {
		response.Err(w, err.Error(), 500)
		return
	}
	if n, _ := res.RowsAffected(); n == 0 {
		response.Err(w, "BOQ not found", 404)
		return
	}
	h.DB.Exec("DELETE FROM boq_rows WHERE boq_id = ?", id)
	h.audit(r, audit.ActionDelete, id, "Deleted BOQ")
	h.broadcast(id, "deleted")
	response.JSON(w, map[string]string{"deleted": id})
}

// Export handles GET /api/v1/boqs/export?format=csv|xlsx (list export).
func (h *Handler) Export(w http.ResponseWriter, r *http.Request) {
	format := r.URL.Query().Get("format")
	if format == "" {
		format = "csv"
	}
	rows, err := h.DB.Query(`SELECT b.id, b.project_id, b.site_id, COALESCE(s.name,''),
		b.boq_type, b.status, b.total_value, b.created_at
		FROM boqs b LEFT JOIN sites s ON b.site_id = s.id ORDER BY b.id`)
	if err != nil {
		response.Err(w, err.Error(), 500)
		return
	}
	defer rows.Close()

	headers := []string{"BOQ ID", "Project", "Site ID", "Site Name", "Type", "Status", "Total Value", "Created At"}
	var data [][]string
	for rows.Next() {
		var id, project, siteID, siteName, boqType, status, createdAt string
		var total float64
		rows.Scan(&id, &project, &siteID, &siteName, &boqType, &status, &total, &createdAt)
		data = append(data, []string{id, project, siteID, siteName, boqType, status,
			strconv.FormatFloat(total, 'f', 2, 64), createdAt})
	}
	h.audit(r, audit.ActionExport, "", fmt.Sprintf("exported %d BOQs as %s", len(data), format))

	if format == "xlsx" {
		common.ExportExcel(w, "BOQs", headers, data)
	} else {
		common.ExportCSV(w, "boqs.csv", headers, data)
	}
}

func (h *Handler) validateForeignKey(ve *validation.ValidationErrors, field, table, id string) {
	var exists int
	h.DB.QueryRow("SELECT COUNT(*) FROM "+table+" WHERE id = ?", id).Scan(&exists)
	if exists == 0 {
		ve.Add(field, "does not exist")
	}
}

