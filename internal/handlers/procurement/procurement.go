// Package procurement implements purchase order endpoints. Orders carry
// line items; the order total is always derived from its lines.
package procurement

import (
	"database/sql"
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
	"boqops/internal/websocket"
)

// Orders may only move forward through the lifecycle, except that any
// pre-delivery status can be cancelled.
var poTransitions = map[string][]string{
	"draft":        {"issued", "cancelled"},
	"issued":       {"acknowledged", "cancelled"},
	"acknowledged": {"delivered", "cancelled"},
	"delivered":    {"closed"},
	"closed":       {},
	"cancelled":    {},
}

var exportColumns = []string{"PO ID", "Project", "BOQ", "Vendor", "Status", "Expected Date", "Total Value"}

// Handler holds dependencies for purchase order handlers.
type Handler struct {
	DB     *sql.DB
	Hub    *websocket.Hub
	NextID func(prefix, table string, digits int) string
	Audit  func(r *http.Request, action, module, recordID, summary string)
}

func (h *Handler) audit(r *http.Request, action, recordID, summary string) {
	if h.Audit != nil {
		h.Audit(r, action, "po", recordID, summary)
	}
}

func (h *Handler) broadcast(id, action string) {
	if h.Hub != nil {
		h.Hub.Broadcast(websocket.Event{Module: "po", ID: id, Action: action})
	}
}

// List handles GET /api/v1/pos with q/project/status/vendor filters.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	p := common.ParseListParams(r)
	q := r.URL.Query()

	where := " WHERE 1=1"
	var args []interface{}
	if p.Search != "" {
		where += " AND (id LIKE ? OR vendor LIKE ? OR boq_id LIKE ?)"
		term := "%" + p.Search + "%"
		args = append(args, term, term, term)
	}
	if v := q.Get("project"); v != "" {
		where += " AND project_id = ?"
		args = append(args, v)
	}
	if v := q.Get("status"); v != "" {
		where += " AND status = ?"
		args = append(args, v)
	}
	if v := q.Get("vendor"); v != "" {
		where += " AND vendor = ?"
		args = append(args, v)
	}

	var total int
	h.DB.QueryRow("SELECT COUNT(*) FROM purchase_orders"+where, args...).Scan(&total)

	rows, err := h.DB.Query(`SELECT id, project_id, boq_id, vendor, status, expected_date, notes,
		created_by, created_at, updated_at FROM purchase_orders`+where+
		" ORDER BY created_at DESC LIMIT ? OFFSET ?", append(args, p.Limit, p.Offset())...)
	if err != nil {
		response.Err(w, err.Error(), 500)
		return
	}
	defer rows.Close()

	items := []models.PurchaseOrder{}
	for rows.Next() {
		var po models.PurchaseOrder
		rows.Scan(&po.ID, &po.ProjectID, &po.BOQID, &po.Vendor, &po.Status, &po.ExpectedDate,
			&po.Notes, &po.CreatedBy, &po.CreatedAt, &po.UpdatedAt)
		po.TotalValue = h.lineTotal(po.ID)
		items = append(items, po)
	}
	response.JSONMeta(w, items, total, p.Page, p.Limit)
}

// Get handles GET /api/v1/pos/:id, including line items.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request, id string) {
	po, err := h.load(id)
	if err != nil {
		response.Err(w, "purchase order not found", 404)
		return
	}
	po.Lines, err = h.loadLines(id)
	if err != nil {
		response.Err(w, err.Error(), 500)
		return
	}
	response.JSON(w, po)
}

func (h *Handler) load(id string) (*models.PurchaseOrder, error) {
	var po models.PurchaseOrder
	err := h.DB.QueryRow(`SELECT id, project_id, boq_id, vendor, status, expected_date, notes,
		created_by, created_at, updated_at FROM purchase_orders WHERE id = ?`, id).
		Scan(&po.ID, &po.ProjectID, &po.BOQID, &po.Vendor, &po.Status, &po.ExpectedDate,
			&po.Notes, &po.CreatedBy, &po.CreatedAt, &po.UpdatedAt)
	if err != nil {
		return nil, err
	}
	po.TotalValue = h.lineTotal(id)
	return &po, nil
}

func (h *Handler) loadLines(id string) ([]models.POLine, error) {
	rows, err := h.DB.Query(`SELECT id, po_id, item_code, description, uom, qty, unit_price
		FROM po_lines WHERE po_id = ? ORDER BY id`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	lines := []models.POLine{}
	for rows.Next() {
		var l models.POLine
		rows.Scan(&l.ID, &l.POID, &l.ItemCode, &l.Description, &l.UOM, &l.Qty, &l.UnitPrice)
		lines = append(lines, l)
	}
	return lines, rows.Err()
}

func (h *Handler) lineTotal(id string) float64 {
	var total float64
	h.DB.QueryRow("SELECT COALESCE(SUM(qty * unit_price), 0) FROM po_lines WHERE po_id = ?", id).Scan(&total)
	return total
}

type poRequest struct {
	models.PurchaseOrder
	Lines []models.POLine `json:"lines"`
}

// Create handles POST /api/v1/pos. Lines may be supplied inline.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req poRequest
	if err := response.DecodeBody(r, &req); err != nil {
		response.Err(w, "invalid request body", 400)
		return
	}

	ve := &validation.ValidationErrors{}
	validation.RequireField(ve, "vendor", req.Vendor)
	if req.Status == "" {
		req.Status = "draft"
	}
	validation.ValidateEnum(ve, "status", req.Status, validation.ValidPOStatuses)
	if req.ExpectedDate != "" {
		validation.ValidateDate(ve, "expected_date", req.ExpectedDate)
	}
	if req.BOQID != "" {
		var n int
		h.DB.QueryRow("SELECT COUNT(*) FROM boqs WHERE id = ?", req.BOQID).Scan(&n)
		if n == 0 {
			ve.Add("boq_id", "references a BOQ that does not exist")
		}
	}
	validateLines(ve, req.Lines)
	if ve.HasErrors() {
		response.ValidationErr(w, ve)
		return
	}

	id := h.NextID("PO", "purchase_orders", 4)
	now := time.Now().UTC().Format(time.RFC3339)
	tx, err := h.DB.Begin()
	if err != nil {
		response.Err(w, err.Error(), 500)
		return
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`INSERT INTO purchase_orders (id, project_id, boq_id, vendor, status,
		expected_date, notes, created_by, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, req.ProjectID, req.BOQID, req.Vendor, req.Status, req.ExpectedDate, req.Notes,
		server.Username(r), now, now); err != nil {
		response.Err(w, err.Error(), 500)
		return
	}
	for _, l := range req.Lines {
		if _, err := tx.Exec(`INSERT INTO po_lines (po_id, item_code, description, uom, qty, unit_price)
			VALUES (?, ?, ?, ?, ?, ?)`, id, l.ItemCode, l.Description, l.UOM, l.Qty, l.UnitPrice); err != nil {
			response.Err(w, err.Error(), 500)
			return
		}
	}
	if err := tx.Commit(); err != nil {
		response.Err(w, err.Error(), 500)
		return
	}

	h.audit(r, audit.ActionCreate, id, fmt.Sprintf("created PO for %s (%d lines)", req.Vendor, len(req.Lines)))
	h.broadcast(id, "create")
	po, _ := h.load(id)
	po.Lines, _ = h.loadLines(id)
	response.JSON(w, po)
}

// Update handles PUT /api/v1/pos/:id. A status change must follow the
// lifecycle; supplying lines replaces the whole set.
func (h *Handler) Update(w http.ResponseWriter, r *http.Request, id string) {
	existing, err := h.load(id)
	if err != nil {
		response.Err(w, "purchase order not found", 404)
		return
	}

	var req poRequest
	if err := response.DecodeBody(r, &req); err != nil {
		response.Err(w, "invalid request body", 400)
		return
	}
	if req.Vendor == "" {
		req.Vendor = existing.Vendor
	}
	if req.Status == "" {
		req.Status = existing.Status
	}

	ve := &validation.ValidationErrors{}
	validation.ValidateEnum(ve, "status", req.Status, validation.ValidPOStatuses)
	if req.ExpectedDate != "" {
		validation.ValidateDate(ve, "expected_date", req.ExpectedDate)
	}
	if req.Status != existing.Status && !allowedTransition(existing.Status, req.Status) {
		ve.Add("status", fmt.Sprintf("cannot move from %s to %s", existing.Status, req.Status))
	}
	validateLines(ve, req.Lines)
	if ve.HasErrors() {
		response.ValidationErr(w, ve)
		return
	}

	tx, err := h.DB.Begin()
	if err != nil {
		response.Err(w, err.Error(), 500)
		return
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`UPDATE purchase_orders SET project_id = ?, boq_id = ?, vendor = ?,
		status = ?, expected_date = ?, notes = ?, updated_at = ? WHERE id = ?`,
		orDefault(req.ProjectID, existing.ProjectID), orDefault(req.BOQID, existing.BOQID),
		req.Vendor, req.Status, orDefault(req.ExpectedDate, existing.ExpectedDate),
		orDefault(req.Notes, existing.Notes), time.Now().UTC().Format(time.RFC3339), id); err != nil {
		response.Err(w, err.Error(), 500)
		return
	}
	if req.Lines != nil {
		if _, err := tx.Exec("DELETE FROM po_lines WHERE po_id = ?", id); err != nil {
			response.Err(w, err.Error(), 500)
			return
		}
		for _, l := range req.Lines {
			if _, err := tx.Exec(`INSERT INTO po_lines (po_id, item_code, description, uom, qty, unit_price)
				VALUES (?, ?, ?, ?, ?, ?)`, id, l.ItemCode, l.Description, l.UOM, l.Qty, l.UnitPrice); err != nil {
				response.Err(w, err.Error(), 500)
				return
			}
		}
	}
	if err := tx.Commit(); err != nil {
		response.Err(w, err.Error(), 500)
		return
	}

	h.audit(r, audit.ActionUpdate, id, "updated PO")
	h.broadcast(id, "update")
	po, _ := h.load(id)
	po.Lines, _ = h.loadLines(id)
	response.JSON(w, po)
}

// Delete handles DELETE /api/v1/pos/:id. Only draft orders can be
// deleted; issued paperwork gets cancelled instead.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request, id string) {
	po, err := h.load(id)
	if err != nil {
		response.Err(w, "purchase order not found", 404)
		return
	}
	if po.Status != "draft" {
		response.Err(w, "only draft purchase orders can be deleted", 409)
		return
	}

	if _, err := h.DB.Exec("DELETE FROM purchase_orders WHERE id = ?", id); err != nil {
		response.Err(w, err.Error(), 500)
		return
	}
	h.audit(r, audit.ActionDelete, id, "deleted draft PO")
	h.broadcast(id, "delete")
	response.JSON(w, map[string]string{"status": "deleted"})
}

// Export handles GET /api/v1/pos/export?format=csv|xlsx.
func (h *Handler) Export(w http.ResponseWriter, r *http.Request) {
	rows, err := h.DB.Query(`SELECT id, project_id, boq_id, vendor, status, expected_date
		FROM purchase_orders ORDER BY created_at DESC`)
	if err != nil {
		response.Err(w, err.Error(), 500)
		return
	}
	defer rows.Close()

	var data [][]string
	for rows.Next() {
		var po models.PurchaseOrder
		rows.Scan(&po.ID, &po.ProjectID, &po.BOQID, &po.Vendor, &po.Status, &po.ExpectedDate)
		data = append(data, []string{
			po.ID, po.ProjectID, po.BOQID, po.Vendor, po.Status, po.ExpectedDate,
			strconv.FormatFloat(h.lineTotal(po.ID), 'f', 2, 64),
		})
	}

	h.audit(r, audit.ActionExport, "", "exported purchase orders")
	if r.URL.Query().Get("format") == "xlsx" {
		common.ExportExcel(w, "purchase_orders", exportColumns, data)
		return
	}
	common.ExportCSV(w, "purchase_orders.csv", exportColumns, data)
}

func validateLines(ve *validation.ValidationErrors, lines []models.POLine) {
	for i, l := range lines {
		field := fmt.Sprintf("lines[%d]", i)
		if l.ItemCode == "" {
			ve.Add(field, "item_code is required")
		}
		if l.Qty <= 0 {
			ve.Add(field, "qty must be positive")
		}
		if l.UnitPrice < 0 {
			ve.Add(field, "unit_price cannot be negative")
		}
	}
}

func allowedTransition(from, to string) bool {
	for _, s := range poTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

func orDefault(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}
