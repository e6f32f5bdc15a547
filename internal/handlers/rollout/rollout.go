// Package rollout implements rollout sheet endpoints: per-site phase
// tracking with region/phase filters and CSV import/export.
package rollout

import (
	"database/sql"
	"fmt"
	"io"
	"net/http"
	"time"

	"boqops/internal/audit"
	"boqops/internal/csvgrid"
	"boqops/internal/handlers/common"
	"boqops/internal/models"
	"boqops/internal/response"
	"boqops/internal/validation"
	"boqops/internal/websocket"
)

var sheetColumns = []string{"Sheet ID", "Project", "Site", "Phase", "Status", "Planned Date", "Actual Date", "Owner", "Notes"}

// Handler holds dependencies for rollout sheet handlers.
type Handler struct {
	DB     *sql.DB
	Hub    *websocket.Hub
	NextID func(prefix, table string, digits int) string
	Audit  func(r *http.Request, action, module, recordID, summary string)
}

func (h *Handler) audit(r *http.Request, action, recordID, summary string) {
	if h.Audit != nil {
		h.Audit(r, action, "rollout", recordID, summary)
	}
}

func (h *Handler) broadcast(id, action string) {
	if h.Hub != nil {
		h.Hub.Broadcast(websocket.Event{Module: "rollout", ID: id, Action: action})
	}
}

// List handles GET /api/v1/rollout with q/project/region/phase/status.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	p := common.ParseListParams(r)
	q := r.URL.Query()

	where := " WHERE 1=1"
	var args []interface{}
	if p.Search != "" {
		where += " AND (rs.id LIKE ? OR rs.site_id LIKE ? OR rs.owner LIKE ?)"
		term := "%" + p.Search + "%"
		args = append(args, term, term, term)
	}
	if v := q.Get("project"); v != "" {
		where += " AND rs.project_id = ?"
		args = append(args, v)
	}
	if v := q.Get("region"); v != "" {
		where += " AND s.region = ?"
		args = append(args, v)
	}
	if v := q.Get("phase"); v != "" {
		where += " AND rs.phase = ?"
		args = append(args, v)
	}
	if v := q.Get("status"); v != "" {
		where += " AND rs.status = ?"
		args = append(args, v)
	}

	join := " FROM rollout_sheets rs LEFT JOIN sites s ON rs.site_id = s.id"
	var total int
	h.DB.QueryRow("SELECT COUNT(*)"+join+where, args...).Scan(&total)

	rows, err := h.DB.Query(`SELECT rs.id, rs.project_id, rs.site_id, rs.phase, rs.status,
		rs.planned_date, rs.actual_date, rs.owner, rs.notes, rs.created_at, rs.updated_at`+
		join+where+" ORDER BY rs.planned_date, rs.id LIMIT ? OFFSET ?",
		append(args, p.Limit, p.Offset())...)
	if err != nil {
		response.Err(w, err.Error(), 500)
		return
	}
	defer rows.Close()

	items := []models.RolloutSheet{}
	for rows.Next() {
		var rs models.RolloutSheet
		rows.Scan(&rs.ID, &rs.ProjectID, &rs.SiteID, &rs.Phase, &rs.Status,
			&rs.PlannedDate, &rs.ActualDate, &rs.Owner, &rs.Notes, &rs.CreatedAt, &rs.UpdatedAt)
		items = append(items, rs)
	}
	response.JSONMeta(w, items, total, p.Page, p.Limit)
}

// Get handles GET /api/v1/rollout/:id.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request, id string) {
	rs, err := h.load(id)
	if err != nil {
		response.Err(w, "rollout sheet not found", 404)
		return
	}
	response.JSON(w, rs)
}

func (h *Handler) load(id string) (*models.RolloutSheet, error) {
	var rs models.RolloutSheet
	err := h.DB.QueryRow(`SELECT id, project_id, site_id, phase, status, planned_date,
		actual_date, owner, notes, created_at, updated_at FROM rollout_sheets WHERE id = ?`, id).
		Scan(&rs.ID, &rs.ProjectID, &rs.SiteID, &rs.Phase, &rs.Status, &rs.PlannedDate,
			&rs.ActualDate, &rs.Owner, &rs.Notes, &rs.CreatedAt, &rs.UpdatedAt)
	return &rs, err
}

func (h *Handler) validate(ve *validation.ValidationErrors, rs *models.RolloutSheet) {
	validation.RequireField(ve, "site_id", rs.SiteID)
	if rs.Phase == "" {
		rs.Phase = "survey"
	}
	validation.ValidateEnum(ve, "phase", rs.Phase, validation.ValidRolloutPhases)
	if rs.Status == "" {
		rs.Status = "planned"
	}
	validation.ValidateEnum(ve, "status", rs.Status, validation.ValidRolloutStatuses)
	if rs.PlannedDate != "" {
		validation.ValidateDate(ve, "planned_date", rs.PlannedDate)
	}
	if rs.ActualDate != "" {
		validation.ValidateDate(ve, "actual_date", rs.ActualDate)
	}
	if rs.SiteID != "" {
		var n int
		h.DB.QueryRow("SELECT COUNT(*) FROM sites WHERE id = ?", rs.SiteID).Scan(&n)
		if n == 0 {
			ve.Add("site_id", "references a site that does not exist")
		}
	}
}

// Create handles POST /api/v1/rollout.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var rs models.RolloutSheet
	if err := response.DecodeBody(r, &rs); err != nil {
		response.Err(w, "invalid request body", 400)
		return
	}

	ve := &validation.ValidationErrors{}
	h.validate(ve, &rs)
	if ve.HasErrors() {
		response.ValidationErr(w, ve)
		return
	}

	rs.ID = h.NextID("RS", "rollout_sheets", 4)
	now := time.Now().UTC().Format(time.RFC3339)
	_, err := h.DB.Exec(`INSERT INTO rollout_sheets (id, project_id, site_id, phase, status,
		planned_date, actual_date, owner, notes, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rs.ID, rs.ProjectID, rs.SiteID, rs.Phase, rs.Status,
		rs.PlannedDate, rs.ActualDate, rs.Owner, rs.Notes, now, now)
	if err != nil {
		response.Err(w, err.Error(), 500)
		return
	}

	h.audit(r, audit.ActionCreate, rs.ID, fmt.Sprintf("created rollout sheet for %s (%s)", rs.SiteID, rs.Phase))
	h.broadcast(rs.ID, "create")
	rs.CreatedAt, rs.UpdatedAt = now, now
	response.JSON(w, rs)
}

// Update handles PUT /api/v1/rollout/:id.
func (h *Handler) Update(w http.ResponseWriter, r *http.Request, id string) {
	existing, err := h.load(id)
	if err != nil {
		response.Err(w, "rollout sheet not found", 404)
		return
	}

	var rs models.RolloutSheet
	if err := response.DecodeBody(r, &rs); err != nil {
		response.Err(w, "invalid request body", 400)
		return
	}
	if rs.SiteID == "" {
		rs.SiteID = existing.SiteID
	}
	if rs.Phase == "" {
		rs.Phase = existing.Phase
	}
	if rs.Status == "" {
		rs.Status = existing.Status
	}

	ve := &validation.ValidationErrors{}
	h.validate(ve, &rs)
	if rs.Status == "done" && rs.ActualDate == "" {
		ve.Add("actual_date", "required when status is done")
	}
	if ve.HasErrors() {
		response.ValidationErr(w, ve)
		return
	}

	_, err = h.DB.Exec(`UPDATE rollout_sheets SET project_id = ?, site_id = ?, phase = ?,
		status = ?, planned_date = ?, actual_date = ?, owner = ?, notes = ?, updated_at = ?
		WHERE id = ?`,
		rs.ProjectID, rs.SiteID, rs.Phase, rs.Status, rs.PlannedDate, rs.ActualDate,
		rs.Owner, rs.Notes, time.Now().UTC().Format(time.RFC3339), id)
	if err != nil {
		response.Err(w, err.Error(), 500)
		return
	}

	h.audit(r, audit.ActionUpdate, id, "updated rollout sheet")
	h.broadcast(id, "update")
	updated, _ := h.load(id)
	response.JSON(w, updated)
}

// Delete handles DELETE /api/v1/rollout/:id.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request, id string) {
	if _, err := h.load(id); err != nil {
		response.Err(w, "rollout sheet not found", 404)
		return
	}
	if _, err := h.DB.Exec("DELETE FROM rollout_sheets WHERE id = ?", id); err != nil {
		response.Err(w, err.Error(), 500)
		return
	}
	h.audit(r, audit.ActionDelete, id, "deleted rollout sheet")
	h.broadcast(id, "delete")
	response.JSON(w, map[string]string{"status": "deleted"})
}

// Export handles GET /api/v1/rollout/export?format=csv|xlsx.
func (h *Handler) Export(w http.ResponseWriter, r *http.Request) {
	rows, err := h.DB.Query(`SELECT id, project_id, site_id, phase, status, planned_date,
		actual_date, owner, notes FROM rollout_sheets ORDER BY planned_date, id`)
	if err != nil {
		response.Err(w, err.Error(), 500)
		return
	}
	defer rows.Close()

	var data [][]string
	for rows.Next() {
		var rs models.RolloutSheet
		rows.Scan(&rs.ID, &rs.ProjectID, &rs.SiteID, &rs.Phase, &rs.Status,
			&rs.PlannedDate, &rs.ActualDate, &rs.Owner, &rs.Notes)
		data = append(data, []string{rs.ID, rs.ProjectID, rs.SiteID, rs.Phase, rs.Status,
			rs.PlannedDate, rs.ActualDate, rs.Owner, rs.Notes})
	}

	h.audit(r, audit.ActionExport, "", "exported rollout sheets")
	if r.URL.Query().Get("format") == "xlsx" {
		common.ExportExcel(w, "rollout", sheetColumns, data)
		return
	}
	common.ExportCSV(w, "rollout.csv", sheetColumns, data)
}

// Import handles POST /api/v1/rollout/import, a multipart CSV in the
// export layout. Rows with a known sheet ID update it; blank IDs create.
func (h *Handler) Import(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(validation.MaxUploadBytes); err != nil {
		response.Err(w, "invalid multipart form: "+err.Error(), 400)
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		response.Err(w, "missing file field", 400)
		return
	}
	defer file.Close()

	ve := &validation.ValidationErrors{}
	validation.ValidateCSVUpload(ve, header.Filename, header.Size)
	if ve.HasErrors() {
		response.ValidationErr(w, ve)
		return
	}

	data, err := io.ReadAll(io.LimitReader(file, validation.MaxUploadBytes+1))
	if err != nil {
		response.Err(w, "read failed: "+err.Error(), 500)
		return
	}

	grid := csvgrid.Parse(string(data))
	if len(grid) < 2 {
		response.Err(w, "file has no data rows", 400)
		return
	}
	for i, want := range sheetColumns {
		if i >= len(grid[0]) || grid[0][i] != want {
			response.Err(w, "column header row does not match the expected rollout layout", 400)
			return
		}
	}

	created, updated := 0, 0
	now := time.Now().UTC().Format(time.RFC3339)
	for i, row := range grid[1:] {
		if len(row) == 1 && row[0] == "" {
			continue
		}
		if len(row) < len(sheetColumns) {
			ve.Add("file", fmt.Sprintf("row %d: expected %d columns", i+2, len(sheetColumns)))
			continue
		}
		rs := models.RolloutSheet{
			ID: row[0], ProjectID: row[1], SiteID: row[2], Phase: row[3], Status: row[4],
			PlannedDate: row[5], ActualDate: row[6], Owner: row[7], Notes: row[8],
		}
		rowVE := &validation.ValidationErrors{}
		h.validate(rowVE, &rs)
		if rowVE.HasErrors() {
			ve.Add("file", fmt.Sprintf("row %d: %s", i+2, rowVE.Error()))
			continue
		}

		if rs.ID != "" {
			res, err := h.DB.Exec(`UPDATE rollout_sheets SET project_id = ?, site_id = ?, phase = ?,
				status = ?, planned_date = ?, actual_date = ?, owner = ?, notes = ?, updated_at = ?
				WHERE id = ?`,
				rs.ProjectID, rs.SiteID, rs.Phase, rs.Status, rs.PlannedDate, rs.ActualDate,
				rs.Owner, rs.Notes, now, rs.ID)
			if err == nil {
				if n, _ := res.RowsAffected(); n > 0 {
					updated++
					continue
				}
			}
			ve.Add("file", fmt.Sprintf("row %d: unknown sheet %s", i+2, rs.ID))
			continue
		}
		rs.ID = h.NextID("RS", "rollout_sheets", 4)
		if _, err := h.DB.Exec(`INSERT INTO rollout_sheets (id, project_id, site_id, phase, status,
			planned_date, actual_date, owner, notes, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			rs.ID, rs.ProjectID, rs.SiteID, rs.Phase, rs.Status,
			rs.PlannedDate, rs.ActualDate, rs.Owner, rs.Notes, now, now); err != nil {
			ve.Add("file", fmt.Sprintf("row %d: %v", i+2, err))
			continue
		}
		created++
	}

	if created == 0 && updated == 0 {
		if !ve.HasErrors() {
			ve.Add("file", "file has no data rows")
		}
		response.ValidationErr(w, ve)
		return
	}

	h.audit(r, audit.ActionUpload, "", fmt.Sprintf("imported rollout sheets (%d created, %d updated)", created, updated))
	h.broadcast("", "update")
	response.JSON(w, map[string]interface{}{
		"created": created,
		"updated": updated,
		"errors":  ve.Errors,
	})
}
